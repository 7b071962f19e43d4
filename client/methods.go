package client

import (
	"github.com/maxpert/amqp-client-go/protocol"
)

var (
	keyChannelOpenOK     = protocol.MethodKey(protocol.ClassChannel, protocol.ChannelOpenOK)
	keyExchangeDeclareOK = protocol.MethodKey(protocol.ClassExchange, protocol.ExchangeDeclareOK)
	keyExchangeDeleteOK  = protocol.MethodKey(protocol.ClassExchange, protocol.ExchangeDeleteOK)
	keyExchangeBindOK    = protocol.MethodKey(protocol.ClassExchange, protocol.ExchangeBindOK)
	keyExchangeUnbindOK  = protocol.MethodKey(protocol.ClassExchange, protocol.ExchangeUnbindOK)
	keyQueueDeclareOK    = protocol.MethodKey(protocol.ClassQueue, protocol.QueueDeclareOK)
	keyQueueBindOK       = protocol.MethodKey(protocol.ClassQueue, protocol.QueueBindOK)
	keyQueueUnbindOK     = protocol.MethodKey(protocol.ClassQueue, protocol.QueueUnbindOK)
	keyQueuePurgeOK      = protocol.MethodKey(protocol.ClassQueue, protocol.QueuePurgeOK)
	keyQueueDeleteOK     = protocol.MethodKey(protocol.ClassQueue, protocol.QueueDeleteOK)
	keyBasicQosOK        = protocol.MethodKey(protocol.ClassBasic, protocol.BasicQosOK)
	keyBasicConsumeOK    = protocol.MethodKey(protocol.ClassBasic, protocol.BasicConsumeOK)
	keyBasicCancel       = protocol.MethodKey(protocol.ClassBasic, protocol.BasicCancel)
	keyBasicCancelOK     = protocol.MethodKey(protocol.ClassBasic, protocol.BasicCancelOK)
	keyBasicDeliver      = protocol.MethodKey(protocol.ClassBasic, protocol.BasicDeliver)
	keyBasicGetOK        = protocol.MethodKey(protocol.ClassBasic, protocol.BasicGetOK)
	keyBasicGetEmpty     = protocol.MethodKey(protocol.ClassBasic, protocol.BasicGetEmpty)
	keyBasicAck          = protocol.MethodKey(protocol.ClassBasic, protocol.BasicAck)
	keyBasicNack         = protocol.MethodKey(protocol.ClassBasic, protocol.BasicNack)
	keyBasicReturn       = protocol.MethodKey(protocol.ClassBasic, protocol.BasicReturn)
	keyConfirmSelectOK   = protocol.MethodKey(protocol.ClassConfirm, protocol.ConfirmSelectOK)
)

// ExchangeDeclareOptions are the optional arguments of exchange.declare.
type ExchangeDeclareOptions struct {
	Passive    bool
	Durable    bool
	AutoDelete bool
	Internal   bool
	Arguments  protocol.Table
}

// QueueDeclareOptions are the optional arguments of queue.declare.
type QueueDeclareOptions struct {
	Passive    bool
	Durable    bool
	Exclusive  bool
	AutoDelete bool
	Arguments  protocol.Table
}

// QueueDeleteOptions are the optional arguments of queue.delete.
type QueueDeleteOptions struct {
	IfUnused bool
	IfEmpty  bool
}

// withChannel binds p to a channel and runs fn once the channel is open.
func (c *Connection) withChannel(p *promise, fn func(ch *channel)) {
	c.whenOpen(p, func() {
		ch, fresh, err := c.channels.acquire(p)
		if err != nil {
			p.fail(err)
			return
		}
		if !fresh {
			fn(ch)
			return
		}
		p.on(keyChannelOpenOK, func(*inbound) {
			ch.alive = true
			c.recorder.ChannelOpened()
			fn(ch)
		})
		if err := c.send(ch.number, &protocol.ChannelOpenMethod{}); err != nil {
			p.fail(err)
		}
	})
}

// request runs a one-step conversation: send m, complete with the reply
// identified by okKey.
func (c *Connection) request(m protocol.Method, okKey uint32) PromiseID {
	p := c.newPromise(false)
	c.withChannel(p, func(ch *channel) {
		p.on(okKey, func(unit *inbound) {
			p.done(&Result{Method: unit.method})
		})
		if err := c.send(ch.number, m); err != nil {
			p.fail(err)
		}
	})
	return p.id
}

// ExchangeDeclare declares an exchange of the given kind.
func (c *Connection) ExchangeDeclare(name, kind string, opts ExchangeDeclareOptions) PromiseID {
	return c.request(&protocol.ExchangeDeclareMethod{
		Exchange:   name,
		Type:       kind,
		Passive:    opts.Passive,
		Durable:    opts.Durable,
		AutoDelete: opts.AutoDelete,
		Internal:   opts.Internal,
		Arguments:  opts.Arguments,
	}, keyExchangeDeclareOK)
}

// ExchangeDelete deletes an exchange.
func (c *Connection) ExchangeDelete(name string, ifUnused bool) PromiseID {
	return c.request(&protocol.ExchangeDeleteMethod{
		Exchange: name,
		IfUnused: ifUnused,
	}, keyExchangeDeleteOK)
}

// ExchangeBind binds destination to source.
func (c *Connection) ExchangeBind(destination, source, routingKey string, args protocol.Table) PromiseID {
	return c.request(&protocol.ExchangeBindMethod{
		Destination: destination,
		Source:      source,
		RoutingKey:  routingKey,
		Arguments:   args,
	}, keyExchangeBindOK)
}

// ExchangeUnbind removes an exchange-to-exchange binding.
func (c *Connection) ExchangeUnbind(destination, source, routingKey string, args protocol.Table) PromiseID {
	return c.request(&protocol.ExchangeUnbindMethod{
		Destination: destination,
		Source:      source,
		RoutingKey:  routingKey,
		Arguments:   args,
	}, keyExchangeUnbindOK)
}

// QueueDeclare declares a queue. An empty name asks the broker to generate
// one; the result's Fields()["queue"] carries it.
func (c *Connection) QueueDeclare(name string, opts QueueDeclareOptions) PromiseID {
	return c.request(&protocol.QueueDeclareMethod{
		Queue:      name,
		Passive:    opts.Passive,
		Durable:    opts.Durable,
		Exclusive:  opts.Exclusive,
		AutoDelete: opts.AutoDelete,
		Arguments:  opts.Arguments,
	}, keyQueueDeclareOK)
}

// QueueBind binds a queue to an exchange.
func (c *Connection) QueueBind(queue, exchange, routingKey string, args protocol.Table) PromiseID {
	return c.request(&protocol.QueueBindMethod{
		Queue:      queue,
		Exchange:   exchange,
		RoutingKey: routingKey,
		Arguments:  args,
	}, keyQueueBindOK)
}

// QueueUnbind removes a queue binding.
func (c *Connection) QueueUnbind(queue, exchange, routingKey string, args protocol.Table) PromiseID {
	return c.request(&protocol.QueueUnbindMethod{
		Queue:      queue,
		Exchange:   exchange,
		RoutingKey: routingKey,
		Arguments:  args,
	}, keyQueueUnbindOK)
}

// QueuePurge removes all ready messages from a queue.
func (c *Connection) QueuePurge(queue string) PromiseID {
	return c.request(&protocol.QueuePurgeMethod{Queue: queue}, keyQueuePurgeOK)
}

// QueueDelete deletes a queue.
func (c *Connection) QueueDelete(queue string, opts QueueDeleteOptions) PromiseID {
	return c.request(&protocol.QueueDeleteMethod{
		Queue:    queue,
		IfUnused: opts.IfUnused,
		IfEmpty:  opts.IfEmpty,
	}, keyQueueDeleteOK)
}
