package client

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	amqperrors "github.com/maxpert/amqp-client-go/errors"
	"github.com/maxpert/amqp-client-go/protocol"
)

var (
	errNoQueues     = errors.New("consume: no queues given")
	errNotDelivery  = errors.New("result is not a delivery")
	errNoAckNeeded  = errors.New("delivery does not require acknowledgement")
	errNotConsuming = errors.New("promise is not a consumer")
)

// ConsumeQueue is one queue of a multi-queue consumer.
type ConsumeQueue struct {
	Queue string
	// ConsumerTag is generated when empty.
	ConsumerTag string
	NoLocal     bool
	Exclusive   bool
	Arguments   protocol.Table
}

// ConsumeOptions are shared by every queue of one consumer.
type ConsumeOptions struct {
	// PrefetchCount is sent as basic.qos before consuming starts; 0 leaves
	// the channel's limit alone.
	PrefetchCount uint16
	PrefetchSize  uint32
	NoAck         bool
}

type consumer struct {
	noAck     bool
	tags      []string
	started   bool
	cancelled bool
	cancelers []*promise

	// qos holds one waiter per basic.qos in flight, in send order.
	qos []qosWaiter
	// deferredQos are BasicQos requests issued before every tag started.
	deferredQos []func()
}

// qosWaiter is completed by the next basic.qos-ok. Either field may be nil.
type qosWaiter struct {
	p    *promise
	then func()
}

func (cons *consumer) remove(tag string) bool {
	i := slices.Index(cons.tags, tag)
	if i < 0 {
		return false
	}
	cons.tags = slices.Delete(cons.tags, i, i+1)
	return true
}

// BasicConsume starts consuming queue. Every delivery is a result of the
// returned promise; it completes when the consumer is cancelled.
func (c *Connection) BasicConsume(queue string, opts ConsumeOptions) PromiseID {
	return c.BasicConsumeMulti([]ConsumeQueue{{Queue: queue}}, opts)
}

// BasicConsumeMulti consumes several queues on one channel under one QoS
// setting. The promise completes once the last consumer tag is cancelled,
// by BasicCancel or by the broker.
func (c *Connection) BasicConsumeMulti(queues []ConsumeQueue, opts ConsumeOptions) PromiseID {
	p := c.newPromise(true)
	if len(queues) == 0 {
		p.fail(errNoQueues)
		return p.id
	}
	cons := &consumer{noAck: opts.NoAck}
	p.consumer = cons

	c.withChannel(p, func(ch *channel) {
		p.onEvery(keyBasicDeliver, func(unit *inbound) {
			c.onDeliver(p, unit)
		})
		p.onEvery(keyBasicCancel, func(unit *inbound) {
			c.onServerCancel(p, ch, unit.method.(*protocol.BasicCancelMethod))
		})
		p.onEvery(keyBasicQosOK, func(unit *inbound) {
			c.onQosOK(p, ch, unit)
		})

		consume := func() { c.consumeNext(p, ch, queues, opts.NoAck) }
		if opts.PrefetchCount == 0 && opts.PrefetchSize == 0 {
			consume()
			return
		}
		if err := c.send(ch.number, &protocol.BasicQosMethod{
			PrefetchSize:  opts.PrefetchSize,
			PrefetchCount: opts.PrefetchCount,
		}); err != nil {
			p.fail(err)
			return
		}
		cons.qos = append(cons.qos, qosWaiter{then: consume})
	})
	return p.id
}

// consumeNext issues basic.consume for queues[0] and continues with the rest
// once the broker confirms.
func (c *Connection) consumeNext(p *promise, ch *channel, queues []ConsumeQueue, noAck bool) {
	cons := p.consumer
	if len(queues) == 0 {
		cons.started = true
		deferred := cons.deferredQos
		cons.deferredQos = nil
		for _, send := range deferred {
			send()
		}
		if cons.cancelled {
			c.cancelTags(p, ch)
		}
		return
	}
	q := queues[0]
	tag := q.ConsumerTag
	if tag == "" {
		tag = "ctag-" + uuid.NewString()
	}
	p.on(keyBasicConsumeOK, func(unit *inbound) {
		m := unit.method.(*protocol.BasicConsumeOKMethod)
		cons.tags = append(cons.tags, m.ConsumerTag)
		c.logger.Debug("Consumer started",
			zap.String("queue", q.Queue),
			zap.String("consumer_tag", m.ConsumerTag),
			zap.Uint16("channel", ch.number))
		c.consumeNext(p, ch, queues[1:], noAck)
	})
	if err := c.send(ch.number, &protocol.BasicConsumeMethod{
		Queue:       q.Queue,
		ConsumerTag: tag,
		NoLocal:     q.NoLocal,
		NoAck:       noAck,
		Exclusive:   q.Exclusive,
		Arguments:   q.Arguments,
	}); err != nil {
		p.fail(err)
	}
}

func (c *Connection) onDeliver(p *promise, unit *inbound) {
	m := unit.method.(*protocol.BasicDeliverMethod)
	if !p.consumer.noAck {
		p.unacked.Add(m.DeliveryTag)
	}
	c.recorder.MessageDelivered(len(unit.body))
	p.ping(&Result{Method: m, Properties: unit.props, Body: unit.body})
}

// onServerCancel handles a broker basic.cancel, sent when a consumed queue
// goes away.
func (c *Connection) onServerCancel(p *promise, ch *channel, m *protocol.BasicCancelMethod) {
	cons := p.consumer
	cons.remove(m.ConsumerTag)
	if !m.NoWait {
		_ = c.send(ch.number, &protocol.BasicCancelOKMethod{ConsumerTag: m.ConsumerTag})
	}
	c.logger.Warn("Consumer cancelled by broker",
		zap.String("consumer_tag", m.ConsumerTag),
		zap.Int("remaining", len(cons.tags)))
	if len(cons.tags) > 0 {
		return
	}
	err := amqperrors.NewConsumerCancelled(m.ConsumerTag)
	p.done(&Result{Method: m, Err: err})
	for _, cp := range cons.cancelers {
		cp.done(&Result{Method: m})
	}
	cons.cancelers = nil
}

// BasicCancel cancels every consumer tag of the consumer promise consumerID.
// The consumer completes without error once the broker confirms the last
// one, and so does the returned promise.
func (c *Connection) BasicCancel(consumerID PromiseID) PromiseID {
	cp := c.newPromise(false)
	p, ok := c.promises[consumerID]
	switch {
	case !ok || p.internal:
		cp.fail(fmt.Errorf("%w: %d", amqperrors.ErrUnknownPromise, consumerID))
		return cp.id
	case p.consumer == nil:
		cp.fail(errNotConsuming)
		return cp.id
	case p.finished:
		cp.done(&Result{})
		return cp.id
	}

	cons := p.consumer
	cons.cancelers = append(cons.cancelers, cp)
	p.link(cp)
	if cons.cancelled {
		return cp.id
	}
	cons.cancelled = true
	c.whenOpen(cp, func() {
		if cons.started && p.ch != nil {
			c.cancelTags(p, p.ch)
		}
	})
	return cp.id
}

func (c *Connection) cancelTags(p *promise, ch *channel) {
	cons := p.consumer
	p.onEvery(keyBasicCancelOK, func(unit *inbound) {
		m := unit.method.(*protocol.BasicCancelOKMethod)
		cons.remove(m.ConsumerTag)
		if len(cons.tags) > 0 {
			return
		}
		p.done(&Result{Method: m})
		for _, cp := range cons.cancelers {
			cp.done(&Result{Method: m})
		}
		cons.cancelers = nil
	})
	for _, tag := range cons.tags {
		if err := c.send(ch.number, &protocol.BasicCancelMethod{ConsumerTag: tag}); err != nil {
			p.fail(err)
			return
		}
	}
}

// BasicQos changes the prefetch window of a consumer. A request made before
// every consumer tag has started is sent once they have. Replies complete
// the requests in the order they were sent.
func (c *Connection) BasicQos(consumerID PromiseID, prefetchCount uint16, prefetchSize uint32) PromiseID {
	qp := c.newPromise(false)
	p, ok := c.promises[consumerID]
	switch {
	case !ok || p.internal:
		qp.fail(fmt.Errorf("%w: %d", amqperrors.ErrUnknownPromise, consumerID))
		return qp.id
	case p.consumer == nil:
		qp.fail(errNotConsuming)
		return qp.id
	case p.finished:
		qp.fail(amqperrors.ErrConsumerCancelled)
		return qp.id
	}

	cons := p.consumer
	p.link(qp)
	send := func() {
		if p.finished {
			qp.fail(amqperrors.ErrConsumerCancelled)
			return
		}
		if err := c.send(p.ch.number, &protocol.BasicQosMethod{
			PrefetchSize:  prefetchSize,
			PrefetchCount: prefetchCount,
		}); err != nil {
			qp.fail(err)
			return
		}
		cons.qos = append(cons.qos, qosWaiter{p: qp})
	}
	c.whenOpen(qp, func() {
		if !cons.started {
			cons.deferredQos = append(cons.deferredQos, send)
			return
		}
		send()
	})
	return qp.id
}

// onQosOK completes the oldest basic.qos still waiting on the consumer.
func (c *Connection) onQosOK(p *promise, ch *channel, unit *inbound) {
	cons := p.consumer
	if len(cons.qos) == 0 {
		classID, methodID := unit.method.ID()
		c.fatal(amqperrors.NewUnexpectedMethod(ch.number, classID, methodID, protocol.MethodName(keyBasicQosOK)))
		return
	}
	w := cons.qos[0]
	cons.qos = slices.Delete(cons.qos, 0, 1)
	if w.p != nil {
		w.p.done(&Result{Method: unit.method})
	}
	if w.then != nil {
		w.then()
	}
}

// BasicGet fetches one message. The result has Empty set when the queue had
// nothing to deliver.
func (c *Connection) BasicGet(queue string, noAck bool) PromiseID {
	p := c.newPromise(false)
	c.withChannel(p, func(ch *channel) {
		p.on(keyBasicGetOK, func(unit *inbound) {
			m := unit.method.(*protocol.BasicGetOKMethod)
			if !noAck {
				p.unacked.Add(m.DeliveryTag)
			}
			c.recorder.MessageDelivered(len(unit.body))
			p.done(&Result{Method: m, Properties: unit.props, Body: unit.body})
		})
		p.on(keyBasicGetEmpty, func(unit *inbound) {
			p.done(&Result{Method: unit.method, Empty: true})
		})
		if err := c.send(ch.number, &protocol.BasicGetMethod{Queue: queue, NoAck: noAck}); err != nil {
			p.fail(err)
		}
	})
	return p.id
}

// BasicAck acknowledges the delivery r. With multiple, every earlier
// outstanding delivery of the same promise is acknowledged too.
func (c *Connection) BasicAck(r *Result, multiple bool) error {
	p, ch, err := c.settleTarget(r)
	if err != nil {
		return err
	}
	tag := r.DeliveryTag()
	if err := c.send(ch.number, &protocol.BasicAckMethod{DeliveryTag: tag, Multiple: multiple}); err != nil {
		return err
	}
	c.recorder.MessageAcknowledged()
	c.settleDelivery(p, r, multiple)
	return nil
}

// BasicReject rejects the delivery r.
func (c *Connection) BasicReject(r *Result, requeue bool) error {
	p, ch, err := c.settleTarget(r)
	if err != nil {
		return err
	}
	if err := c.send(ch.number, &protocol.BasicRejectMethod{DeliveryTag: r.DeliveryTag(), Requeue: requeue}); err != nil {
		return err
	}
	c.recorder.MessageRejected()
	c.settleDelivery(p, r, false)
	return nil
}

// BasicNack rejects the delivery r, and with multiple every earlier
// outstanding delivery of the same promise.
func (c *Connection) BasicNack(r *Result, multiple, requeue bool) error {
	p, ch, err := c.settleTarget(r)
	if err != nil {
		return err
	}
	if err := c.send(ch.number, &protocol.BasicNackMethod{
		DeliveryTag: r.DeliveryTag(),
		Multiple:    multiple,
		Requeue:     requeue,
	}); err != nil {
		return err
	}
	c.recorder.MessageRejected()
	c.settleDelivery(p, r, multiple)
	return nil
}

// settleTarget checks that r is a delivery that can still be settled on the
// channel it arrived on.
func (c *Connection) settleTarget(r *Result) (*promise, *channel, error) {
	if r == nil || r.promise == nil || r.DeliveryTag() == 0 {
		return nil, nil, errNotDelivery
	}
	if c.state != stateOpen && c.state != stateClosing {
		return nil, nil, c.closedErr()
	}
	p, ch := r.promise, r.channel
	if ch == nil || !ch.alive || p.ch != ch {
		return nil, nil, amqperrors.NewChannelError(amqperrors.ChannelErrorCode, "channel closed before delivery was settled", numberOf(ch))
	}
	if !p.unacked.Contains(r.DeliveryTag()) {
		return nil, nil, errNoAckNeeded
	}
	return p, ch, nil
}

func (c *Connection) settleDelivery(p *promise, r *Result, multiple bool) {
	tag := r.DeliveryTag()
	if multiple {
		p.unacked.RemoveRange(0, tag+1)
	} else {
		p.unacked.Remove(tag)
	}
	c.maybeRelease(p)
}

func numberOf(ch *channel) uint16 {
	if ch == nil {
		return 0
	}
	return ch.number
}
