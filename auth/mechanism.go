package auth

import (
	"fmt"
	"strings"
)

// Credentials are the identity a client presents during connection.start-ok.
type Credentials struct {
	Username string
	Password string
}

// Mechanism represents a client-side SASL authentication mechanism
type Mechanism interface {
	// Name returns the mechanism name (e.g., "PLAIN", "AMQPLAIN")
	Name() string

	// Response builds the initial SASL response sent in connection.start-ok
	Response(creds Credentials) ([]byte, error)
}

// Registry manages available authentication mechanisms in preference order
type Registry struct {
	order      []string
	mechanisms map[string]Mechanism
}

// NewRegistry creates a new mechanism registry
func NewRegistry() *Registry {
	return &Registry{
		mechanisms: make(map[string]Mechanism),
	}
}

// Register adds a mechanism to the registry. Earlier registrations are
// preferred by Select.
func (r *Registry) Register(mechanism Mechanism) {
	if _, exists := r.mechanisms[mechanism.Name()]; !exists {
		r.order = append(r.order, mechanism.Name())
	}
	r.mechanisms[mechanism.Name()] = mechanism
}

// Get retrieves a mechanism by name
func (r *Registry) Get(name string) (Mechanism, error) {
	mechanism, exists := r.mechanisms[name]
	if !exists {
		return nil, fmt.Errorf("unsupported authentication mechanism: %s", name)
	}
	return mechanism, nil
}

// List returns all registered mechanism names in preference order
func (r *Registry) List() []string {
	return append([]string(nil), r.order...)
}

// String returns a space-separated list of mechanism names for AMQP
func (r *Registry) String() string {
	return strings.Join(r.order, " ")
}

// Select picks the most preferred registered mechanism that appears in the
// server's space-separated mechanisms list from connection.start.
func (r *Registry) Select(serverMechanisms string) (Mechanism, error) {
	offered := make(map[string]bool)
	for _, name := range strings.Fields(serverMechanisms) {
		offered[name] = true
	}
	for _, name := range r.order {
		if offered[name] {
			return r.mechanisms[name], nil
		}
	}
	return nil, fmt.Errorf("no common authentication mechanism: server offers %q, client supports %q", serverMechanisms, r.String())
}

// DefaultRegistry returns a registry preferring PLAIN, then AMQPLAIN
func DefaultRegistry() *Registry {
	registry := NewRegistry()
	registry.Register(&PlainMechanism{})
	registry.Register(&AMQPlainMechanism{})
	return registry
}
