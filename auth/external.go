package auth

// ExternalMechanism implements SASL EXTERNAL: the broker takes the identity
// from the TLS client certificate, so the response is empty.
type ExternalMechanism struct{}

// Name returns the mechanism name
func (e *ExternalMechanism) Name() string {
	return "EXTERNAL"
}

// Response returns an empty response; credentials are ignored.
func (e *ExternalMechanism) Response(Credentials) ([]byte, error) {
	return []byte{}, nil
}

// AnonymousMechanism implements SASL ANONYMOUS
// WARNING: brokers should only offer this in development/testing environments
type AnonymousMechanism struct{}

// Name returns the mechanism name
func (a *AnonymousMechanism) Name() string {
	return "ANONYMOUS"
}

// Response returns an empty trace token.
func (a *AnonymousMechanism) Response(Credentials) ([]byte, error) {
	return []byte{}, nil
}
