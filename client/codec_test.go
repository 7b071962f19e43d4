package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxpert/amqp-client-go/internal/fakebroker"
)

type order struct {
	ID    string  `json:"id" cbor:"id"`
	Items []int   `json:"items" cbor:"items"`
	Total float64 `json:"total" cbor:"total"`
}

func TestNewPublishingRejectsUnknownType(t *testing.T) {
	_, err := NewPublishing("text/xml", order{})
	assert.ErrorContains(t, err, "unsupported content type")
}

func TestDecodeBodyEmptyContentTypeIsJSON(t *testing.T) {
	r := &Result{Body: []byte(`{"id":"o-1","items":[1,2],"total":3.5}`)}
	var got order
	require.NoError(t, r.DecodeBody(&got))
	assert.Equal(t, order{ID: "o-1", Items: []int{1, 2}, Total: 3.5}, got)

	r.Properties.ContentType = "text/plain"
	assert.Error(t, r.DecodeBody(&got))
}

func TestCodecThroughBroker(t *testing.T) {
	srv := startBroker(t, fakebroker.Options{})
	conn := connect(t, srv, nil)
	declareQueue(t, conn, "orders")

	want := order{ID: "o-42", Items: []int{3, 1, 4}, Total: 9.99}
	for _, contentType := range []string{ContentTypeJSON, ContentTypeCBOR} {
		t.Run(contentType, func(t *testing.T) {
			msg, err := NewPublishing(contentType, want)
			require.NoError(t, err)
			wait(t, conn, conn.BasicPublish("", "orders", msg))

			r := wait(t, conn, conn.BasicGet("orders", true))
			assert.Equal(t, contentType, r.Properties.ContentType)
			var got order
			require.NoError(t, r.DecodeBody(&got))
			assert.Equal(t, want, got)
		})
	}
}
