package client

import (
	"github.com/maxpert/amqp-client-go/protocol"
)

// Result is one completion of a promise: the broker's reply method and, for
// deliveries, the message properties and body. Err is set when the promise
// completed with an error.
type Result struct {
	Method     protocol.Method
	Properties protocol.Properties
	Body       []byte
	Err        error

	// Empty is true for a basic.get that found the queue empty.
	Empty bool

	promise *promise
	channel *channel
}

// DeliveryTag returns the broker delivery tag of a delivered message, or 0.
func (r *Result) DeliveryTag() uint64 {
	switch m := r.Method.(type) {
	case *protocol.BasicDeliverMethod:
		return m.DeliveryTag
	case *protocol.BasicGetOKMethod:
		return m.DeliveryTag
	}
	return 0
}

// ConsumerTag returns the consumer a delivery was made to.
func (r *Result) ConsumerTag() string {
	switch m := r.Method.(type) {
	case *protocol.BasicDeliverMethod:
		return m.ConsumerTag
	case *protocol.BasicConsumeOKMethod:
		return m.ConsumerTag
	case *protocol.BasicCancelOKMethod:
		return m.ConsumerTag
	}
	return ""
}

// Redelivered reports whether the broker delivered the message before.
func (r *Result) Redelivered() bool {
	switch m := r.Method.(type) {
	case *protocol.BasicDeliverMethod:
		return m.Redelivered
	case *protocol.BasicGetOKMethod:
		return m.Redelivered
	}
	return false
}

// Fields merges the reply method arguments and the message properties into one
// view keyed by their protocol names. Message headers appear under "headers".
func (r *Result) Fields() map[string]interface{} {
	f := make(map[string]interface{})
	switch m := r.Method.(type) {
	case *protocol.BasicDeliverMethod:
		f["consumer_tag"] = m.ConsumerTag
		f["delivery_tag"] = m.DeliveryTag
		f["redelivered"] = m.Redelivered
		f["exchange"] = m.Exchange
		f["routing_key"] = m.RoutingKey
	case *protocol.BasicGetOKMethod:
		f["delivery_tag"] = m.DeliveryTag
		f["redelivered"] = m.Redelivered
		f["exchange"] = m.Exchange
		f["routing_key"] = m.RoutingKey
		f["message_count"] = m.MessageCount
	case *protocol.BasicReturnMethod:
		f["reply_code"] = m.ReplyCode
		f["reply_text"] = m.ReplyText
		f["exchange"] = m.Exchange
		f["routing_key"] = m.RoutingKey
	case *protocol.QueueDeclareOKMethod:
		f["queue"] = m.Queue
		f["message_count"] = m.MessageCount
		f["consumer_count"] = m.ConsumerCount
	case *protocol.QueuePurgeOKMethod:
		f["message_count"] = m.MessageCount
	case *protocol.QueueDeleteOKMethod:
		f["message_count"] = m.MessageCount
	case *protocol.BasicConsumeOKMethod:
		f["consumer_tag"] = m.ConsumerTag
	case *protocol.BasicCancelOKMethod:
		f["consumer_tag"] = m.ConsumerTag
	case *protocol.ConnectionOpenOKMethod:
		f["known_hosts"] = m.Reserved1
	}
	if r.Empty {
		f["empty"] = true
	}

	p := r.Properties
	if p.ContentType != "" {
		f["content_type"] = p.ContentType
	}
	if p.ContentEncoding != "" {
		f["content_encoding"] = p.ContentEncoding
	}
	if len(p.Headers) > 0 {
		f["headers"] = p.Headers.Map()
	}
	if p.DeliveryMode != 0 {
		f["delivery_mode"] = p.DeliveryMode
	}
	if p.Priority != 0 {
		f["priority"] = p.Priority
	}
	if p.CorrelationID != "" {
		f["correlation_id"] = p.CorrelationID
	}
	if p.ReplyTo != "" {
		f["reply_to"] = p.ReplyTo
	}
	if p.Expiration != "" {
		f["expiration"] = p.Expiration
	}
	if p.MessageID != "" {
		f["message_id"] = p.MessageID
	}
	if !p.Timestamp.IsZero() {
		f["timestamp"] = p.Timestamp
	}
	if p.Type != "" {
		f["type"] = p.Type
	}
	if p.UserID != "" {
		f["user_id"] = p.UserID
	}
	if p.AppID != "" {
		f["app_id"] = p.AppID
	}
	if p.ClusterID != "" {
		f["cluster_id"] = p.ClusterID
	}
	return f
}
