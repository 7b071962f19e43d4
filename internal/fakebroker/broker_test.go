package fakebroker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxpert/amqp-client-go/protocol"
)

func queueNames(qs []*queue) []string {
	names := make([]string, 0, len(qs))
	for _, q := range qs {
		names = append(names, q.name)
	}
	return names
}

func TestDefaultExchangeRoutesByQueueName(t *testing.T) {
	b := newBroker()
	b.declareQueue("orders", false)

	assert.Equal(t, []string{"orders"}, queueNames(b.route(b.exchanges[""], "orders", nil)))
	assert.Empty(t, b.route(b.exchanges[""], "missing", nil))
}

func TestDeclareQueueGeneratesName(t *testing.T) {
	b := newBroker()
	q := b.declareQueue("", false)
	assert.Contains(t, q.name, "amq.gen-")

	// Redeclaring returns the existing queue
	again := b.declareQueue("stable", true)
	assert.Same(t, again, b.declareQueue("stable", false))
}

func TestDirectAndFanoutRouting(t *testing.T) {
	b := newBroker()
	b.declareQueue("a", false)
	b.declareQueue("b", false)

	b.bind("amq.direct", "a", "red", nil)
	b.bind("amq.direct", "b", "blue", nil)
	b.bind("amq.direct", "a", "red", nil) // duplicate binding is ignored
	assert.Len(t, b.exchanges["amq.direct"].bindings, 2)

	assert.Equal(t, []string{"a"}, queueNames(b.route(b.exchanges["amq.direct"], "red", nil)))
	assert.Empty(t, b.route(b.exchanges["amq.direct"], "green", nil))

	b.bind("amq.fanout", "a", "", nil)
	b.bind("amq.fanout", "b", "", nil)
	assert.ElementsMatch(t, []string{"a", "b"}, queueNames(b.route(b.exchanges["amq.fanout"], "anything", nil)))

	b.unbind("amq.fanout", "b", "")
	assert.Equal(t, []string{"a"}, queueNames(b.route(b.exchanges["amq.fanout"], "anything", nil)))
}

func TestTopicMatches(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"stock.usd.nyse", "stock.usd.nyse", true},
		{"stock.*.nyse", "stock.eur.nyse", true},
		{"stock.*.nyse", "stock.nyse", false},
		{"stock.#", "stock", true},
		{"stock.#", "stock.usd.nyse", true},
		{"#.nyse", "stock.usd.nyse", true},
		{"#", "", true},
		{"*", "", true},
		{"*.*", "one", false},
		{"a.#.z", "a.b.c.z", true},
		{"a.#.z", "a.b.c", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"|"+tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, topicMatches(tt.pattern, tt.key))
		})
	}
}

func TestHeadersRouting(t *testing.T) {
	b := newBroker()
	b.declareQueue("all", false)
	b.declareQueue("any", false)

	b.bind("amq.headers", "all", "", protocol.Table{
		{Key: "format", Value: protocol.String("pdf")},
		{Key: "type", Value: protocol.String("report")},
	})
	b.bind("amq.headers", "any", "", protocol.Table{
		{Key: "x-match", Value: protocol.String("any")},
		{Key: "format", Value: protocol.String("pdf")},
		{Key: "type", Value: protocol.String("log")},
	})
	ex := b.exchanges["amq.headers"]

	both := protocol.Table{
		{Key: "format", Value: protocol.String("pdf")},
		{Key: "type", Value: protocol.String("report")},
	}
	assert.ElementsMatch(t, []string{"all", "any"}, queueNames(b.route(ex, "", both)))

	onlyFormat := protocol.Table{{Key: "format", Value: protocol.String("pdf")}}
	assert.Equal(t, []string{"any"}, queueNames(b.route(ex, "", onlyFormat)))

	assert.Empty(t, b.route(ex, "", nil))
}

func TestDeleteQueueDropsBindings(t *testing.T) {
	b := newBroker()
	b.declareQueue("gone", false)
	b.bind("amq.fanout", "gone", "", nil)

	q, consumers := b.deleteQueue("gone")
	require.NotNil(t, q)
	assert.Empty(t, consumers)
	assert.Empty(t, b.exchanges["amq.fanout"].bindings)

	q, _ = b.deleteQueue("gone")
	assert.Nil(t, q)
}
