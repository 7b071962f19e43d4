package client

import (
	"github.com/RoaringBitmap/roaring/roaring64"
	"go.uber.org/zap"

	"github.com/maxpert/amqp-client-go/config"
	amqperrors "github.com/maxpert/amqp-client-go/errors"
	"github.com/maxpert/amqp-client-go/metrics"
	"github.com/maxpert/amqp-client-go/protocol"
)

// Headers the publish pipeline adds to every message to correlate returns.
const (
	HeaderDeliveryTag = "x-amqpclient-delivery-tag"
	HeaderFooter      = "x-amqpclient-footer"
)

// Publishing is a message to publish.
type Publishing struct {
	protocol.Properties
	Body []byte

	// Mandatory asks the broker to return the message when no queue is bound.
	Mandatory bool
}

type pendingPublish struct {
	p          *promise
	exchange   string
	routingKey string
	msg        Publishing
}

// publisher owns the dedicated publish channel. Local delivery tags keep
// increasing across channel reopens; shift maps the broker's restarted tags
// back onto them.
type publisher struct {
	conn *Connection
	mode string
	p    *promise

	enabled bool
	tag     uint64
	shift   uint64
	reopens int

	inflight *roaring64.Bitmap
	waiting  map[uint64]*promise
	queue    []pendingPublish
}

func newPublisher(c *Connection, mode string) *publisher {
	p := c.newPromise(true)
	p.internal = true
	return &publisher{
		conn:     c,
		mode:     mode,
		p:        p,
		inflight: roaring64.New(),
		waiting:  make(map[uint64]*promise),
	}
}

func (pub *publisher) native() bool { return pub.mode == config.ConfirmNative }

func (pub *publisher) start() {
	if pub.native() {
		pub.p.onEvery(keyBasicAck, pub.onAck)
		pub.p.onEvery(keyBasicNack, pub.onNack)
	}
	pub.p.onEvery(keyBasicReturn, pub.onReturn)
	pub.conn.logger.Debug("Starting publish pipeline", zap.String("confirm_mode", pub.mode))
	pub.open()
}

func (pub *publisher) open() {
	pub.conn.withChannel(pub.p, func(ch *channel) {
		if !pub.native() {
			pub.ready()
			return
		}
		pub.p.on(keyConfirmSelectOK, func(*inbound) { pub.ready() })
		if err := pub.conn.send(ch.number, &protocol.ConfirmSelectMethod{}); err != nil {
			pub.p.fail(err)
		}
	})
	if pub.p.finished {
		pub.abandon()
	}
}

// ready flushes publishes queued while the channel was negotiated.
func (pub *publisher) ready() {
	pub.enabled = true
	queue := pub.queue
	pub.queue = nil
	for _, pp := range queue {
		pub.send(pp)
	}
}

// abandon fails every queued publish once the pipeline can no longer get a
// channel.
func (pub *publisher) abandon() {
	err := pub.p.err
	if err == nil {
		err = amqperrors.ErrConnectionClosed
	}
	queue := pub.queue
	pub.queue = nil
	for _, pp := range queue {
		pp.p.fail(err)
	}
}

func (pub *publisher) publish(pp pendingPublish) {
	switch {
	case pub.p.finished:
		err := pub.p.err
		if err == nil {
			err = amqperrors.ErrConnectionClosed
		}
		pp.p.fail(err)
	case !pub.enabled:
		pub.queue = append(pub.queue, pp)
	default:
		pub.send(pp)
	}
}

func (pub *publisher) send(pp pendingPublish) {
	c := pub.conn
	tag := pub.tag + 1

	props := pp.msg.Properties
	props.Headers = append(protocol.Table(nil), props.Headers...).
		Set(HeaderDeliveryTag, protocol.Int64(tag))

	number := pub.p.ch.number
	err := c.sendContent(number, &protocol.BasicPublishMethod{
		Exchange:   pp.exchange,
		RoutingKey: pp.routingKey,
		Mandatory:  pp.msg.Mandatory,
	}, props, pp.msg.Body)
	if err == nil && !pub.native() {
		err = c.sendContent(number, &protocol.BasicPublishMethod{Mandatory: true}, protocol.Properties{
			Headers: protocol.Table{
				{Key: HeaderDeliveryTag, Value: protocol.Int64(tag)},
				{Key: HeaderFooter, Value: protocol.Bool(true)},
			},
		}, nil)
	}
	if err != nil {
		pp.p.fail(err)
		c.recorder.PublishSettled(metrics.OutcomeFailed)
		return
	}

	pub.tag = tag
	pub.inflight.Add(tag)
	pub.waiting[tag] = pp.p
	c.recorder.MessagePublished(len(pp.msg.Body))
}

// settle completes the publish under local tag. A tag already settled is
// ignored.
func (pub *publisher) settle(tag uint64, r *Result, outcome string) {
	if !pub.inflight.Contains(tag) {
		return
	}
	pub.inflight.Remove(tag)
	p := pub.waiting[tag]
	delete(pub.waiting, tag)
	pub.conn.recorder.PublishSettled(outcome)
	if p != nil {
		p.done(r)
	}
}

// settleUpTo completes every in-flight tag up to and including tag.
func (pub *publisher) settleUpTo(tag uint64, result func(uint64) (*Result, string)) {
	for !pub.inflight.IsEmpty() {
		t := pub.inflight.Minimum()
		if t > tag {
			return
		}
		r, outcome := result(t)
		pub.settle(t, r, outcome)
	}
}

func (pub *publisher) onAck(unit *inbound) {
	m := unit.method.(*protocol.BasicAckMethod)
	local := m.DeliveryTag + pub.shift
	ack := func(uint64) (*Result, string) {
		return &Result{Method: m}, metrics.OutcomeConfirmed
	}
	if m.Multiple {
		pub.settleUpTo(local, ack)
		return
	}
	r, outcome := ack(local)
	pub.settle(local, r, outcome)
}

func (pub *publisher) onNack(unit *inbound) {
	m := unit.method.(*protocol.BasicNackMethod)
	local := m.DeliveryTag + pub.shift
	nack := func(t uint64) (*Result, string) {
		return &Result{Method: m, Err: amqperrors.NewMessageNacked(t)}, metrics.OutcomeNacked
	}
	if m.Multiple {
		pub.settleUpTo(local, nack)
		return
	}
	r, outcome := nack(local)
	pub.settle(local, r, outcome)
}

func (pub *publisher) onReturn(unit *inbound) {
	m := unit.method.(*protocol.BasicReturnMethod)
	tag, ok := headerTag(unit.props.Headers)
	if !ok {
		pub.conn.logger.Warn("Returned message carries no delivery tag",
			zap.String("exchange", m.Exchange),
			zap.String("routing_key", m.RoutingKey))
		return
	}

	if !pub.native() {
		if _, footer := unit.props.Headers.Get(HeaderFooter); footer {
			pub.settle(tag, &Result{Method: m}, metrics.OutcomeConfirmed)
			return
		}
	}
	pub.settle(tag, &Result{
		Method:     m,
		Properties: unit.props,
		Body:       unit.body,
		Err:        amqperrors.NewMessageReturned(int(m.ReplyCode), m.ReplyText, m.Exchange, m.RoutingKey, tag),
	}, metrics.OutcomeReturned)
}

// reopen fails every in-flight publish with err and negotiates a fresh
// channel. Publishes issued meanwhile are queued.
func (pub *publisher) reopen(err error) {
	if !pub.enabled {
		// Closed during confirm.select: another channel fails the same way.
		if ch := pub.p.ch; ch != nil {
			pub.p.ch = nil
			pub.conn.releaseChannel(ch)
		}
		pub.conn.logger.Error("Publish pipeline failed", zap.Error(err))
		pub.p.fail(err)
		pub.abandon()
		return
	}
	pub.enabled = false
	for !pub.inflight.IsEmpty() {
		pub.settle(pub.inflight.Minimum(), &Result{Err: err}, metrics.OutcomeFailed)
	}
	pub.shift = pub.tag
	pub.reopens++

	if ch := pub.p.ch; ch != nil {
		pub.p.ch = nil
		pub.conn.releaseChannel(ch)
	}
	pub.conn.logger.Info("Reopening publish channel",
		zap.Int("reopens", pub.reopens),
		zap.Uint64("tag_shift", pub.shift),
		zap.Error(err))
	pub.open()
}

func headerTag(headers protocol.Table) (uint64, bool) {
	v, ok := headers.Get(HeaderDeliveryTag)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case protocol.Int64:
		return uint64(n), n > 0
	case protocol.Int32:
		return uint64(n), n > 0
	case protocol.Int16:
		return uint64(n), n > 0
	case protocol.Uint8:
		return uint64(n), n > 0
	}
	return 0, false
}

// BasicPublish publishes msg. The promise completes when the broker has
// taken responsibility for the message: on basic.ack with native confirms,
// or when the trailing footer message comes back in emulated mode. A nack or
// a return completes it with a MessageError.
func (c *Connection) BasicPublish(exchange, routingKey string, msg Publishing) PromiseID {
	p := c.newPromise(false)
	c.whenOpen(p, func() {
		c.publisher.publish(pendingPublish{
			p:          p,
			exchange:   exchange,
			routingKey: routingKey,
			msg:        msg,
		})
	})
	return p.id
}
