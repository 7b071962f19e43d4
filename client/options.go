package client

import (
	"context"

	"go.uber.org/zap"

	"github.com/maxpert/amqp-client-go/auth"
	"github.com/maxpert/amqp-client-go/metrics"
	"github.com/maxpert/amqp-client-go/protocol"
	"github.com/maxpert/amqp-client-go/transport"
)

// Dialer opens the byte stream to the broker.
type Dialer func(ctx context.Context) (transport.Transport, error)

// Option configures a Connection.
type Option func(*Connection)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Connection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the recorder that receives engine events.
func WithMetrics(recorder metrics.Recorder) Option {
	return func(c *Connection) {
		if recorder != nil {
			c.recorder = recorder
		}
	}
}

// WithTransport makes Connect use an already established byte stream
// instead of dialing the URI.
func WithTransport(t transport.Transport) Option {
	return func(c *Connection) {
		c.dial = func(context.Context) (transport.Transport, error) { return t, nil }
	}
}

// WithDialer replaces the dial step.
func WithDialer(dial Dialer) Option {
	return func(c *Connection) {
		c.dial = dial
	}
}

// WithMechanisms sets the SASL mechanisms offered to the broker, in order of
// preference.
func WithMechanisms(registry *auth.Registry) Option {
	return func(c *Connection) {
		if registry != nil {
			c.mechanisms = registry
		}
	}
}

// WithClientProperties adds entries to the client-properties table sent in
// connection.start-ok.
func WithClientProperties(props protocol.Table) Option {
	return func(c *Connection) {
		for _, f := range props {
			c.clientProps = c.clientProps.Set(f.Key, f.Value)
		}
	}
}
