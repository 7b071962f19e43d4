package fakebroker

import (
	"reflect"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/maxpert/amqp-client-go/protocol"
)

// Exchange kinds the broker routes.
const (
	KindDirect  = "direct"
	KindFanout  = "fanout"
	KindTopic   = "topic"
	KindHeaders = "headers"
)

type message struct {
	exchange    string
	routingKey  string
	props       protocol.Properties
	body        []byte
	redelivered bool
}

type binding struct {
	queue      string
	routingKey string
	arguments  protocol.Table
}

type exchange struct {
	name     string
	kind     string
	durable  bool
	bindings []binding
}

type queue struct {
	name      string
	durable   bool
	messages  []*message
	consumers []*consumer
	next      int
}

type consumer struct {
	tag   string
	queue *queue
	ch    *channel
	noAck bool
}

// broker holds exchanges, queues and bindings. It is guarded by Server.mu.
type broker struct {
	exchanges map[string]*exchange
	queues    map[string]*queue
}

func newBroker() *broker {
	b := &broker{
		exchanges: make(map[string]*exchange),
		queues:    make(map[string]*queue),
	}
	b.exchanges[""] = &exchange{name: "", kind: KindDirect, durable: true}
	b.exchanges["amq.direct"] = &exchange{name: "amq.direct", kind: KindDirect, durable: true}
	b.exchanges["amq.fanout"] = &exchange{name: "amq.fanout", kind: KindFanout, durable: true}
	b.exchanges["amq.topic"] = &exchange{name: "amq.topic", kind: KindTopic, durable: true}
	b.exchanges["amq.headers"] = &exchange{name: "amq.headers", kind: KindHeaders, durable: true}
	return b
}

func validKind(kind string) bool {
	switch kind {
	case KindDirect, KindFanout, KindTopic, KindHeaders:
		return true
	}
	return false
}

func (b *broker) declareQueue(name string, durable bool) *queue {
	if name == "" {
		name = "amq.gen-" + uuid.NewString()
	}
	if q, ok := b.queues[name]; ok {
		return q
	}
	q := &queue{name: name, durable: durable}
	b.queues[name] = q
	return q
}

func (b *broker) bind(exchangeName, queueName, routingKey string, args protocol.Table) {
	ex := b.exchanges[exchangeName]
	for _, bd := range ex.bindings {
		if bd.queue == queueName && bd.routingKey == routingKey {
			return
		}
	}
	ex.bindings = append(ex.bindings, binding{queue: queueName, routingKey: routingKey, arguments: args})
}

func (b *broker) unbind(exchangeName, queueName, routingKey string) {
	ex, ok := b.exchanges[exchangeName]
	if !ok {
		return
	}
	ex.bindings = slices.DeleteFunc(ex.bindings, func(bd binding) bool {
		return bd.queue == queueName && bd.routingKey == routingKey
	})
}

// deleteQueue removes the queue and its bindings and returns the consumers
// it had.
func (b *broker) deleteQueue(name string) (*queue, []*consumer) {
	q, ok := b.queues[name]
	if !ok {
		return nil, nil
	}
	delete(b.queues, name)
	for _, ex := range b.exchanges {
		ex.bindings = slices.DeleteFunc(ex.bindings, func(bd binding) bool { return bd.queue == name })
	}
	consumers := q.consumers
	q.consumers = nil
	return q, consumers
}

// route returns the queues a message published to ex with routingKey ends up in.
func (b *broker) route(ex *exchange, routingKey string, headers protocol.Table) []*queue {
	if ex.name == "" {
		if q, ok := b.queues[routingKey]; ok {
			return []*queue{q}
		}
		return nil
	}
	var out []*queue
	for _, bd := range ex.bindings {
		var match bool
		switch ex.kind {
		case KindDirect:
			match = bd.routingKey == routingKey
		case KindFanout:
			match = true
		case KindTopic:
			match = topicMatches(bd.routingKey, routingKey)
		case KindHeaders:
			match = headersMatch(bd.arguments, headers)
		}
		if !match {
			continue
		}
		if q, ok := b.queues[bd.queue]; ok && !slices.Contains(out, q) {
			out = append(out, q)
		}
	}
	return out
}

// topicMatches reports whether routingKey matches a topic pattern where "*"
// is one word and "#" is zero or more.
func topicMatches(pattern, routingKey string) bool {
	return matchWords(strings.Split(pattern, "."), strings.Split(routingKey, "."))
}

func matchWords(pattern, key []string) bool {
	if len(pattern) == 0 {
		return len(key) == 0
	}
	switch pattern[0] {
	case "#":
		for i := 0; i <= len(key); i++ {
			if matchWords(pattern[1:], key[i:]) {
				return true
			}
		}
		return false
	case "*":
		return len(key) > 0 && matchWords(pattern[1:], key[1:])
	default:
		return len(key) > 0 && pattern[0] == key[0] && matchWords(pattern[1:], key[1:])
	}
}

// headersMatch applies x-match=all (the default) or x-match=any.
func headersMatch(args, headers protocol.Table) bool {
	matchAny := false
	if v, ok := args.Get("x-match"); ok {
		if s, ok := v.(protocol.String); ok && s == "any" {
			matchAny = true
		}
	}
	matched := 0
	wanted := 0
	for _, f := range args {
		if strings.HasPrefix(f.Key, "x-") {
			continue
		}
		wanted++
		if v, ok := headers.Get(f.Key); ok && reflect.DeepEqual(protocol.Native(v), protocol.Native(f.Value)) {
			matched++
		}
	}
	if matchAny {
		return matched > 0
	}
	return matched == wanted
}
