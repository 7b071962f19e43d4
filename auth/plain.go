package auth

import (
	"bytes"
	"fmt"

	"github.com/maxpert/amqp-client-go/protocol"
)

// PlainMechanism implements SASL PLAIN authentication
type PlainMechanism struct{}

// Name returns the mechanism name
func (p *PlainMechanism) Name() string {
	return "PLAIN"
}

// Response encodes the credentials as \0username\0password.
func (p *PlainMechanism) Response(creds Credentials) ([]byte, error) {
	if creds.Username == "" {
		return nil, fmt.Errorf("username cannot be empty")
	}
	var buf bytes.Buffer
	buf.WriteByte(0)
	buf.WriteString(creds.Username)
	buf.WriteByte(0)
	buf.WriteString(creds.Password)
	return buf.Bytes(), nil
}

// ParsePlainResponse decodes a PLAIN response.
// The response is a sequence of three strings separated by NUL (0x00) bytes:
// [authorization-identity] NUL [authentication-identity] NUL [password]
func ParsePlainResponse(response []byte) (Credentials, error) {
	if len(response) == 0 {
		return Credentials{}, fmt.Errorf("empty authentication response")
	}

	parts := bytes.Split(response, []byte{0})
	if len(parts) != 3 {
		return Credentials{}, fmt.Errorf("invalid PLAIN response format: expected 3 parts, got %d", len(parts))
	}

	creds := Credentials{Username: string(parts[1]), Password: string(parts[2])}
	if creds.Username == "" {
		return Credentials{}, fmt.Errorf("username cannot be empty")
	}
	if creds.Password == "" {
		return Credentials{}, fmt.Errorf("password cannot be empty")
	}
	return creds, nil
}

// AMQPlainMechanism implements the legacy AMQPLAIN mechanism: a field table
// body (no length prefix) holding LOGIN and PASSWORD.
type AMQPlainMechanism struct{}

// Name returns the mechanism name
func (a *AMQPlainMechanism) Name() string {
	return "AMQPLAIN"
}

// Response encodes the credentials as an AMQPLAIN table.
func (a *AMQPlainMechanism) Response(creds Credentials) ([]byte, error) {
	table, err := protocol.EncodeFieldTable(protocol.Table{
		{Key: "LOGIN", Value: protocol.String(creds.Username)},
		{Key: "PASSWORD", Value: protocol.String(creds.Password)},
	})
	if err != nil {
		return nil, err
	}
	return table[4:], nil
}
