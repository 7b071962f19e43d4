package config

import (
	"time"
)

// ConfigBuilder provides a fluent API for building configuration
type ConfigBuilder struct {
	config *Config
}

// NewConfigBuilder creates a new configuration builder with defaults
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		config: DefaultConfig(),
	}
}

// FromConfig creates a builder from an existing configuration
func FromConfig(config *Config) *ConfigBuilder {
	builder := NewConfigBuilder()
	*builder.config = *config
	return builder
}

// WithURI sets the broker URI
func (b *ConfigBuilder) WithURI(uri string) *ConfigBuilder {
	b.config.URI = uri
	return b
}

// Connection Configuration

// WithHeartbeat sets the proposed heartbeat interval
func (b *ConfigBuilder) WithHeartbeat(interval time.Duration) *ConfigBuilder {
	b.config.Connection.Heartbeat = interval
	return b
}

// WithFrameMax sets the proposed maximum frame size
func (b *ConfigBuilder) WithFrameMax(frameMax uint32) *ConfigBuilder {
	b.config.Connection.FrameMax = frameMax
	return b
}

// WithChannelMax sets the proposed channel limit
func (b *ConfigBuilder) WithChannelMax(channelMax uint16) *ConfigBuilder {
	b.config.Connection.ChannelMax = channelMax
	return b
}

// WithConnectTimeout sets the dial and handshake timeout
func (b *ConfigBuilder) WithConnectTimeout(timeout time.Duration) *ConfigBuilder {
	b.config.Connection.ConnectTimeout = timeout
	return b
}

// WithPollInterval sets how long a reactor step may block on the socket
func (b *ConfigBuilder) WithPollInterval(interval time.Duration) *ConfigBuilder {
	b.config.Connection.PollInterval = interval
	return b
}

// WithMechanism forces a SASL mechanism instead of negotiating one
func (b *ConfigBuilder) WithMechanism(mechanism string) *ConfigBuilder {
	b.config.Connection.Mechanism = mechanism
	return b
}

// Security Configuration

// WithTLS enables TLS with an optional client certificate and key
func (b *ConfigBuilder) WithTLS(certFile, keyFile string) *ConfigBuilder {
	b.config.TLS.Enabled = true
	b.config.TLS.CertFile = certFile
	b.config.TLS.KeyFile = keyFile
	return b
}

// WithTLSCA sets the TLS CA file
func (b *ConfigBuilder) WithTLSCA(caFile string) *ConfigBuilder {
	b.config.TLS.CAFile = caFile
	return b
}

// WithTLSServerName overrides the name used to verify the broker certificate
func (b *ConfigBuilder) WithTLSServerName(name string) *ConfigBuilder {
	b.config.TLS.ServerName = name
	return b
}

// Publisher Configuration

// WithConfirmMode selects auto, native or emulated publisher confirms
func (b *ConfigBuilder) WithConfirmMode(mode string) *ConfigBuilder {
	b.config.Publisher.ConfirmMode = mode
	return b
}

// Observability Configuration

// WithLogging configures logging settings
func (b *ConfigBuilder) WithLogging(level, logFile string) *ConfigBuilder {
	b.config.Logging.Level = level
	b.config.Logging.File = logFile
	return b
}

// WithMetrics enables the Prometheus endpoint on address
func (b *ConfigBuilder) WithMetrics(namespace, address string) *ConfigBuilder {
	b.config.Metrics.Enabled = true
	b.config.Metrics.Namespace = namespace
	b.config.Metrics.Address = address
	return b
}

// Build returns the configured Config
func (b *ConfigBuilder) Build() (*Config, error) {
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	return b.config, nil
}

// BuildUnsafe returns the configured Config without validation
func (b *ConfigBuilder) BuildUnsafe() *Config {
	return b.config
}
