package auth

import (
	"bytes"
	"testing"

	"github.com/maxpert/amqp-client-go/protocol"
)

func TestPlainMechanism(t *testing.T) {
	plain := &PlainMechanism{}

	if plain.Name() != "PLAIN" {
		t.Errorf("Expected mechanism name 'PLAIN', got '%s'", plain.Name())
	}

	response, err := plain.Response(Credentials{Username: "testuser", Password: "testpass"})
	if err != nil {
		t.Fatalf("Expected a response, got error: %v", err)
	}
	want := []byte("\x00testuser\x00testpass")
	if !bytes.Equal(response, want) {
		t.Errorf("Expected %q, got %q", want, response)
	}

	if _, err := plain.Response(Credentials{Password: "p"}); err == nil {
		t.Error("Expected an error for an empty username")
	}
}

func TestParsePlainResponse(t *testing.T) {
	creds, err := ParsePlainResponse([]byte("\x00testuser\x00testpass"))
	if err != nil {
		t.Fatalf("Expected successful parse, got error: %v", err)
	}
	if creds.Username != "testuser" || creds.Password != "testpass" {
		t.Errorf("Unexpected credentials %+v", creds)
	}

	// Test invalid format (not enough parts)
	if _, err := ParsePlainResponse([]byte("nonuls")); err == nil {
		t.Error("Expected parse to fail with invalid format")
	}

	// Test empty username
	if _, err := ParsePlainResponse([]byte("\x00\x00pass")); err == nil {
		t.Error("Expected parse to fail with empty username")
	}

	// Test empty password
	if _, err := ParsePlainResponse([]byte("\x00user\x00")); err == nil {
		t.Error("Expected parse to fail with empty password")
	}

	if _, err := ParsePlainResponse(nil); err == nil {
		t.Error("Expected parse to fail with empty response")
	}
}

func TestAMQPlainMechanism(t *testing.T) {
	amqplain := &AMQPlainMechanism{}

	response, err := amqplain.Response(Credentials{Username: "guest", Password: "secret"})
	if err != nil {
		t.Fatalf("Expected a response, got error: %v", err)
	}

	// Re-attach a length prefix so the table decoder can read it back.
	framed := append([]byte{0, 0, 0, byte(len(response))}, response...)
	table, _, err := protocol.DecodeFieldTable(framed, 0)
	if err != nil {
		t.Fatalf("Failed to decode AMQPLAIN response: %v", err)
	}

	login, _ := table.Get("LOGIN")
	password, _ := table.Get("PASSWORD")
	if login != protocol.String("guest") || password != protocol.String("secret") {
		t.Errorf("Unexpected AMQPLAIN table %+v", table)
	}
}

func TestExternalAndAnonymousMechanisms(t *testing.T) {
	for _, m := range []Mechanism{&ExternalMechanism{}, &AnonymousMechanism{}} {
		response, err := m.Response(Credentials{Username: "ignored"})
		if err != nil {
			t.Errorf("%s: unexpected error %v", m.Name(), err)
		}
		if len(response) != 0 {
			t.Errorf("%s: expected an empty response, got %q", m.Name(), response)
		}
	}
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&PlainMechanism{})
	registry.Register(&ExternalMechanism{})

	mechanism, err := registry.Get("PLAIN")
	if err != nil {
		t.Errorf("Expected to find PLAIN mechanism, got error: %v", err)
	}
	if mechanism.Name() != "PLAIN" {
		t.Errorf("Expected mechanism name 'PLAIN', got '%s'", mechanism.Name())
	}

	if _, err := registry.Get("UNKNOWN"); err == nil {
		t.Error("Expected error for unknown mechanism")
	}

	// Registering again keeps the original position.
	registry.Register(&PlainMechanism{})
	if str := registry.String(); str != "PLAIN EXTERNAL" {
		t.Errorf("Expected 'PLAIN EXTERNAL', got '%s'", str)
	}
}

func TestRegistrySelect(t *testing.T) {
	registry := DefaultRegistry()

	mechanism, err := registry.Select("AMQPLAIN PLAIN")
	if err != nil {
		t.Fatalf("Expected a mechanism, got error: %v", err)
	}
	if mechanism.Name() != "PLAIN" {
		t.Errorf("Expected client preference PLAIN, got %s", mechanism.Name())
	}

	mechanism, err = registry.Select("AMQPLAIN EXTERNAL")
	if err != nil {
		t.Fatalf("Expected a mechanism, got error: %v", err)
	}
	if mechanism.Name() != "AMQPLAIN" {
		t.Errorf("Expected AMQPLAIN, got %s", mechanism.Name())
	}

	if _, err := registry.Select("EXTERNAL"); err == nil {
		t.Error("Expected an error when nothing overlaps")
	}
}

func TestDefaultRegistry(t *testing.T) {
	registry := DefaultRegistry()

	names := registry.List()
	if len(names) != 2 || names[0] != "PLAIN" || names[1] != "AMQPLAIN" {
		t.Errorf("Unexpected default mechanisms %v", names)
	}
}
