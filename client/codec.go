package client

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Content types understood by NewPublishing and DecodeBody.
const (
	ContentTypeJSON = "application/json"
	ContentTypeCBOR = "application/cbor"
)

// NewPublishing encodes v as the body of a message of the given content type.
func NewPublishing(contentType string, v interface{}) (Publishing, error) {
	var (
		body []byte
		err  error
	)
	switch contentType {
	case ContentTypeJSON:
		body, err = json.Marshal(v)
	case ContentTypeCBOR:
		body, err = cbor.Marshal(v)
	default:
		return Publishing{}, fmt.Errorf("unsupported content type %q", contentType)
	}
	if err != nil {
		return Publishing{}, fmt.Errorf("failed to encode %s body: %w", contentType, err)
	}
	msg := Publishing{Body: body}
	msg.ContentType = contentType
	return msg, nil
}

// DecodeBody decodes the message body into v according to its content type.
// An empty content type is treated as JSON.
func (r *Result) DecodeBody(v interface{}) error {
	switch r.Properties.ContentType {
	case ContentTypeJSON, "":
		if err := json.Unmarshal(r.Body, v); err != nil {
			return fmt.Errorf("failed to decode json body: %w", err)
		}
	case ContentTypeCBOR:
		if err := cbor.Unmarshal(r.Body, v); err != nil {
			return fmt.Errorf("failed to decode cbor body: %w", err)
		}
	default:
		return fmt.Errorf("unsupported content type %q", r.Properties.ContentType)
	}
	return nil
}
