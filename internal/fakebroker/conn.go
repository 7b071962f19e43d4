package fakebroker

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"net"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maxpert/amqp-client-go/auth"
	amqperrors "github.com/maxpert/amqp-client-go/errors"
	"github.com/maxpert/amqp-client-go/protocol"
)

type delivery struct {
	queue string
	msg   *message
}

type channel struct {
	conn    *conn
	number  uint16
	closing bool

	confirm    bool
	publishSeq uint64
	held       []uint64

	deliveryTag uint64
	unacked     map[uint64]*delivery
	prefetch    uint16
	consumers   map[string]*consumer

	publish *protocol.BasicPublishMethod
	header  *protocol.ContentHeader
	body    []byte
}

type conn struct {
	srv    *Server
	nc     net.Conn
	logger *zap.Logger
	wmu    sync.Mutex

	frameMax   uint32
	open       bool
	closing    bool
	heartbeats int
	channels   map[uint16]*channel
}

func newConn(s *Server, nc net.Conn) *conn {
	return &conn{
		srv:      s,
		nc:       nc,
		logger:   s.logger.With(zap.String("remote", nc.RemoteAddr().String())),
		frameMax: s.opts.FrameMax,
		channels: make(map[uint16]*channel),
	}
}

func (c *conn) serve() {
	defer c.shutdown()
	if err := c.handshake(); err != nil {
		c.logger.Debug("Handshake failed", zap.Error(err))
		return
	}
	for {
		f, err := protocol.ReadFrame(c.nc)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				c.logger.Debug("Read failed", zap.Error(err))
			}
			return
		}
		c.srv.mu.Lock()
		done := c.handle(f)
		c.srv.mu.Unlock()
		if done {
			return
		}
	}
}

func (c *conn) shutdown() {
	c.srv.mu.Lock()
	for _, ch := range c.channels {
		c.release(ch)
	}
	clear(c.channels)
	c.open = false
	c.srv.removeConn(c)
	c.srv.mu.Unlock()
	_ = c.nc.Close()
}

func serverProperties(confirms bool) protocol.Table {
	return protocol.Table{
		{Key: "product", Value: protocol.String("fakebroker")},
		{Key: "version", Value: protocol.String("0.9.1")},
		{Key: "capabilities", Value: protocol.Table{
			{Key: "publisher_confirms", Value: protocol.Bool(confirms)},
			{Key: "basic.nack", Value: protocol.Bool(true)},
			{Key: "consumer_cancel_notify", Value: protocol.Bool(true)},
			{Key: "connection.blocked", Value: protocol.Bool(true)},
			{Key: "exchange_exchange_bindings", Value: protocol.Bool(true)},
		}},
	}
}

func (c *conn) handshake() error {
	header := make([]byte, len(protocol.ProtocolHeader))
	if _, err := io.ReadFull(c.nc, header); err != nil {
		return err
	}
	if string(header) != protocol.ProtocolHeader {
		_, _ = c.nc.Write([]byte(protocol.ProtocolHeader))
		return fmt.Errorf("unsupported protocol header %q", header)
	}

	opts := c.srv.opts
	if err := c.send(0, &protocol.ConnectionStartMethod{
		VersionMajor:     0,
		VersionMinor:     9,
		ServerProperties: serverProperties(!opts.DisableConfirms),
		Mechanisms:       "PLAIN",
		Locales:          "en_US",
	}); err != nil {
		return err
	}

	m, err := c.readMethod()
	if err != nil {
		return err
	}
	startOK, ok := m.(*protocol.ConnectionStartOKMethod)
	if !ok {
		return fmt.Errorf("expected connection.start-ok, got %s", protocol.MethodName(protocol.KeyOf(m)))
	}
	creds, err := auth.ParsePlainResponse(startOK.Response)
	if startOK.Mechanism != "PLAIN" || err != nil || creds.Username != opts.Username || creds.Password != opts.Password {
		_ = c.send(0, &protocol.ConnectionCloseMethod{
			ReplyCode: amqperrors.AccessRefused,
			ReplyText: "ACCESS_REFUSED - Login was refused using authentication mechanism " + startOK.Mechanism,
			ClassID:   protocol.ClassConnection,
			MethodID:  protocol.ConnectionStartOK,
		})
		return errors.New("access refused")
	}

	if err := c.send(0, &protocol.ConnectionTuneMethod{
		ChannelMax: opts.ChannelMax,
		FrameMax:   opts.FrameMax,
		Heartbeat:  opts.Heartbeat,
	}); err != nil {
		return err
	}
	if m, err = c.readMethod(); err != nil {
		return err
	}
	tuneOK, ok := m.(*protocol.ConnectionTuneOKMethod)
	if !ok {
		return fmt.Errorf("expected connection.tune-ok, got %s", protocol.MethodName(protocol.KeyOf(m)))
	}
	if tuneOK.FrameMax > 0 {
		c.frameMax = tuneOK.FrameMax
	}

	if m, err = c.readMethod(); err != nil {
		return err
	}
	if _, ok := m.(*protocol.ConnectionOpenMethod); !ok {
		return fmt.Errorf("expected connection.open, got %s", protocol.MethodName(protocol.KeyOf(m)))
	}
	if err := c.send(0, &protocol.ConnectionOpenOKMethod{}); err != nil {
		return err
	}

	c.srv.mu.Lock()
	c.open = true
	c.srv.mu.Unlock()
	c.logger.Debug("Client connected", zap.String("user", creds.Username))
	return nil
}

// readMethod reads the next method frame, skipping heartbeats.
func (c *conn) readMethod() (protocol.Method, error) {
	for {
		f, err := protocol.ReadFrame(c.nc)
		if err != nil {
			return nil, err
		}
		switch f.Type {
		case protocol.FrameHeartbeat:
			continue
		case protocol.FrameMethod:
			return protocol.ParseMethod(f.Payload)
		default:
			return nil, fmt.Errorf("unexpected frame type %d during handshake", f.Type)
		}
	}
}

// handle processes one frame and reports whether the connection is done.
func (c *conn) handle(f *protocol.Frame) bool {
	switch f.Type {
	case protocol.FrameHeartbeat:
		c.heartbeats++
	case protocol.FrameMethod:
		m, err := protocol.ParseMethod(f.Payload)
		if err != nil {
			c.closeConnection(amqperrors.SyntaxError, "SYNTAX_ERROR - "+err.Error(), 0, 0)
			return false
		}
		if f.Channel == 0 {
			return c.handleConnection(m)
		}
		if !c.closing {
			c.handleChannel(f.Channel, m)
		}
	case protocol.FrameHeader:
		if !c.closing {
			c.handleHeader(f)
		}
	case protocol.FrameBody:
		if !c.closing {
			c.handleBody(f)
		}
	default:
		c.closeConnection(amqperrors.FrameError, fmt.Sprintf("FRAME_ERROR - unknown frame type %d", f.Type), 0, 0)
	}
	return false
}

func (c *conn) handleConnection(m protocol.Method) bool {
	switch m.(type) {
	case *protocol.ConnectionCloseMethod:
		c.sendOrDrop(0, &protocol.ConnectionCloseOKMethod{})
		return true
	case *protocol.ConnectionCloseOKMethod:
		return true
	}
	if !c.closing {
		classID, methodID := m.ID()
		c.closeConnection(amqperrors.CommandInvalid, "COMMAND_INVALID - unexpected method on channel 0", classID, methodID)
	}
	return false
}

func (c *conn) handleChannel(number uint16, m protocol.Method) {
	classID, methodID := m.ID()
	ch := c.channels[number]

	if _, ok := m.(*protocol.ChannelOpenMethod); ok {
		if ch != nil {
			c.closeConnection(amqperrors.ChannelErrorCode, "CHANNEL_ERROR - second 'channel.open' seen", classID, methodID)
			return
		}
		c.channels[number] = &channel{
			conn:      c,
			number:    number,
			unacked:   make(map[uint64]*delivery),
			consumers: make(map[string]*consumer),
		}
		c.sendOrDrop(number, &protocol.ChannelOpenOKMethod{})
		return
	}
	if ch == nil {
		c.closeConnection(amqperrors.ChannelErrorCode, "CHANNEL_ERROR - expected 'channel.open'", classID, methodID)
		return
	}
	if ch.closing {
		switch m.(type) {
		case *protocol.ChannelCloseOKMethod:
			delete(c.channels, number)
		case *protocol.ChannelCloseMethod:
			c.sendOrDrop(number, &protocol.ChannelCloseOKMethod{})
			delete(c.channels, number)
		}
		return
	}
	if ch.publish != nil {
		c.closeConnection(amqperrors.UnexpectedFrame, "UNEXPECTED_FRAME - expected content header", classID, methodID)
		return
	}

	switch m := m.(type) {
	case *protocol.ChannelCloseMethod:
		c.release(ch)
		delete(c.channels, number)
		c.sendOrDrop(number, &protocol.ChannelCloseOKMethod{})
	case *protocol.ChannelFlowMethod:
		c.sendOrDrop(number, &protocol.ChannelFlowOKMethod{Active: m.Active})
	case *protocol.ChannelFlowOKMethod:
	case *protocol.ExchangeDeclareMethod:
		c.exchangeDeclare(ch, m)
	case *protocol.ExchangeDeleteMethod:
		c.exchangeDelete(ch, m)
	case *protocol.ExchangeBindMethod:
		if c.requireExchange(ch, m.Source, classID, methodID) && c.requireExchange(ch, m.Destination, classID, methodID) && !m.NoWait {
			c.sendOrDrop(number, &protocol.ExchangeBindOKMethod{})
		}
	case *protocol.ExchangeUnbindMethod:
		if !m.NoWait {
			c.sendOrDrop(number, &protocol.ExchangeUnbindOKMethod{})
		}
	case *protocol.QueueDeclareMethod:
		c.queueDeclare(ch, m)
	case *protocol.QueueBindMethod:
		if c.requireQueue(ch, m.Queue, classID, methodID) == nil || !c.requireExchange(ch, m.Exchange, classID, methodID) {
			return
		}
		c.srv.broker.bind(m.Exchange, m.Queue, m.RoutingKey, m.Arguments)
		if !m.NoWait {
			c.sendOrDrop(number, &protocol.QueueBindOKMethod{})
		}
	case *protocol.QueueUnbindMethod:
		c.srv.broker.unbind(m.Exchange, m.Queue, m.RoutingKey)
		c.sendOrDrop(number, &protocol.QueueUnbindOKMethod{})
	case *protocol.QueuePurgeMethod:
		q := c.requireQueue(ch, m.Queue, classID, methodID)
		if q == nil {
			return
		}
		n := len(q.messages)
		q.messages = nil
		if !m.NoWait {
			c.sendOrDrop(number, &protocol.QueuePurgeOKMethod{MessageCount: uint32(n)})
		}
	case *protocol.QueueDeleteMethod:
		c.queueDelete(ch, m)
	case *protocol.BasicQosMethod:
		ch.prefetch = m.PrefetchCount
		c.sendOrDrop(number, &protocol.BasicQosOKMethod{})
		for _, cons := range ch.consumers {
			c.srv.dispatch(cons.queue)
		}
	case *protocol.BasicConsumeMethod:
		c.basicConsume(ch, m)
	case *protocol.BasicCancelMethod:
		if cons, ok := ch.consumers[m.ConsumerTag]; ok {
			c.removeConsumer(cons)
		}
		if !m.NoWait {
			c.sendOrDrop(number, &protocol.BasicCancelOKMethod{ConsumerTag: m.ConsumerTag})
		}
	case *protocol.BasicCancelOKMethod:
	case *protocol.BasicGetMethod:
		c.basicGet(ch, m)
	case *protocol.BasicPublishMethod:
		ch.publish = m
	case *protocol.BasicAckMethod:
		c.settle(ch, m.DeliveryTag, m.Multiple, false, classID, methodID)
	case *protocol.BasicRejectMethod:
		c.settle(ch, m.DeliveryTag, false, m.Requeue, classID, methodID)
	case *protocol.BasicNackMethod:
		c.settle(ch, m.DeliveryTag, m.Multiple, m.Requeue, classID, methodID)
	case *protocol.BasicRecoverMethod:
		c.requeueAll(ch)
		c.sendOrDrop(number, &protocol.BasicRecoverOKMethod{})
	case *protocol.ConfirmSelectMethod:
		if c.srv.opts.DisableConfirms {
			c.closeChannel(ch, amqperrors.NotImplemented, "NOT_IMPLEMENTED - publisher confirms are disabled", classID, methodID)
			return
		}
		ch.confirm = true
		if !m.NoWait {
			c.sendOrDrop(number, &protocol.ConfirmSelectOKMethod{})
		}
	default:
		c.closeConnection(amqperrors.NotImplemented,
			"NOT_IMPLEMENTED - "+protocol.MethodName(protocol.KeyOf(m)), classID, methodID)
	}
}

func (c *conn) requireExchange(ch *channel, name string, classID, methodID uint16) bool {
	if _, ok := c.srv.broker.exchanges[name]; ok {
		return true
	}
	c.closeChannel(ch, amqperrors.NotFound, fmt.Sprintf("NOT_FOUND - no exchange '%s' in vhost '/'", name), classID, methodID)
	return false
}

func (c *conn) requireQueue(ch *channel, name string, classID, methodID uint16) *queue {
	if q, ok := c.srv.broker.queues[name]; ok {
		return q
	}
	c.closeChannel(ch, amqperrors.NotFound, fmt.Sprintf("NOT_FOUND - no queue '%s' in vhost '/'", name), classID, methodID)
	return nil
}

func (c *conn) exchangeDeclare(ch *channel, m *protocol.ExchangeDeclareMethod) {
	classID, methodID := m.ID()
	b := c.srv.broker
	ex, exists := b.exchanges[m.Exchange]
	switch {
	case m.Passive:
		if !c.requireExchange(ch, m.Exchange, classID, methodID) {
			return
		}
	case !validKind(m.Type):
		c.closeConnection(amqperrors.CommandInvalid, fmt.Sprintf("COMMAND_INVALID - unknown exchange type '%s'", m.Type), classID, methodID)
		return
	case exists && ex.kind != m.Type:
		c.closeChannel(ch, amqperrors.PreconditionFailed,
			fmt.Sprintf("PRECONDITION_FAILED - inequivalent arg 'type' for exchange '%s'", m.Exchange), classID, methodID)
		return
	case !exists && strings.HasPrefix(m.Exchange, "amq."):
		c.closeChannel(ch, amqperrors.AccessRefused,
			fmt.Sprintf("ACCESS_REFUSED - exchange name '%s' contains reserved prefix 'amq.*'", m.Exchange), classID, methodID)
		return
	case !exists:
		b.exchanges[m.Exchange] = &exchange{name: m.Exchange, kind: m.Type, durable: m.Durable}
	}
	if !m.NoWait {
		c.sendOrDrop(ch.number, &protocol.ExchangeDeclareOKMethod{})
	}
}

func (c *conn) exchangeDelete(ch *channel, m *protocol.ExchangeDeleteMethod) {
	classID, methodID := m.ID()
	b := c.srv.broker
	ex, ok := b.exchanges[m.Exchange]
	if !ok {
		c.requireExchange(ch, m.Exchange, classID, methodID)
		return
	}
	if m.IfUnused && len(ex.bindings) > 0 {
		c.closeChannel(ch, amqperrors.PreconditionFailed,
			fmt.Sprintf("PRECONDITION_FAILED - exchange '%s' in use", m.Exchange), classID, methodID)
		return
	}
	delete(b.exchanges, m.Exchange)
	if !m.NoWait {
		c.sendOrDrop(ch.number, &protocol.ExchangeDeleteOKMethod{})
	}
}

func (c *conn) queueDeclare(ch *channel, m *protocol.QueueDeclareMethod) {
	classID, methodID := m.ID()
	var q *queue
	if m.Passive {
		if q = c.requireQueue(ch, m.Queue, classID, methodID); q == nil {
			return
		}
	} else {
		q = c.srv.broker.declareQueue(m.Queue, m.Durable)
	}
	if !m.NoWait {
		c.sendOrDrop(ch.number, &protocol.QueueDeclareOKMethod{
			Queue:         q.name,
			MessageCount:  uint32(len(q.messages)),
			ConsumerCount: uint32(len(q.consumers)),
		})
	}
}

func (c *conn) queueDelete(ch *channel, m *protocol.QueueDeleteMethod) {
	classID, methodID := m.ID()
	q, ok := c.srv.broker.queues[m.Queue]
	if ok && m.IfEmpty && len(q.messages) > 0 {
		c.closeChannel(ch, amqperrors.PreconditionFailed,
			fmt.Sprintf("PRECONDITION_FAILED - queue '%s' not empty", m.Queue), classID, methodID)
		return
	}
	if ok && m.IfUnused && len(q.consumers) > 0 {
		c.closeChannel(ch, amqperrors.PreconditionFailed,
			fmt.Sprintf("PRECONDITION_FAILED - queue '%s' in use", m.Queue), classID, methodID)
		return
	}
	n := c.srv.deleteQueue(m.Queue)
	if !m.NoWait {
		c.sendOrDrop(ch.number, &protocol.QueueDeleteOKMethod{MessageCount: uint32(n)})
	}
}

func (c *conn) basicConsume(ch *channel, m *protocol.BasicConsumeMethod) {
	classID, methodID := m.ID()
	q := c.requireQueue(ch, m.Queue, classID, methodID)
	if q == nil {
		return
	}
	tag := m.ConsumerTag
	if tag == "" {
		tag = "amq.ctag-" + uuid.NewString()
	}
	if _, dup := ch.consumers[tag]; dup {
		c.closeConnection(amqperrors.NotAllowed, fmt.Sprintf("NOT_ALLOWED - attempt to reuse consumer tag '%s'", tag), classID, methodID)
		return
	}
	cons := &consumer{tag: tag, queue: q, ch: ch, noAck: m.NoAck}
	ch.consumers[tag] = cons
	q.consumers = append(q.consumers, cons)
	if !m.NoWait {
		c.sendOrDrop(ch.number, &protocol.BasicConsumeOKMethod{ConsumerTag: tag})
	}
	c.srv.dispatch(q)
}

func (c *conn) removeConsumer(cons *consumer) {
	delete(cons.ch.consumers, cons.tag)
	q := cons.queue
	if i := slices.Index(q.consumers, cons); i >= 0 {
		q.consumers = slices.Delete(q.consumers, i, i+1)
	}
}

func (c *conn) basicGet(ch *channel, m *protocol.BasicGetMethod) {
	classID, methodID := m.ID()
	q := c.requireQueue(ch, m.Queue, classID, methodID)
	if q == nil {
		return
	}
	if len(q.messages) == 0 {
		c.sendOrDrop(ch.number, &protocol.BasicGetEmptyMethod{})
		return
	}
	msg := q.messages[0]
	q.messages = q.messages[1:]
	ch.deliveryTag++
	if !m.NoAck {
		ch.unacked[ch.deliveryTag] = &delivery{queue: q.name, msg: msg}
	}
	c.sendContentOrDrop(ch.number, &protocol.BasicGetOKMethod{
		DeliveryTag:  ch.deliveryTag,
		Redelivered:  msg.redelivered,
		Exchange:     msg.exchange,
		RoutingKey:   msg.routingKey,
		MessageCount: uint32(len(q.messages)),
	}, msg.props, msg.body)
}

func (c *conn) handleHeader(f *protocol.Frame) {
	ch := c.channels[f.Channel]
	if ch != nil && ch.closing {
		return
	}
	if ch == nil || ch.publish == nil || ch.header != nil {
		c.closeConnection(amqperrors.UnexpectedFrame, "UNEXPECTED_FRAME - content header without publish", 0, 0)
		return
	}
	header, err := protocol.ReadContentHeader(f)
	if err != nil {
		c.closeConnection(amqperrors.FrameError, "FRAME_ERROR - "+err.Error(), 0, 0)
		return
	}
	ch.header = header
	if header.BodySize == 0 {
		c.completePublish(ch)
	}
}

func (c *conn) handleBody(f *protocol.Frame) {
	ch := c.channels[f.Channel]
	if ch != nil && ch.closing {
		return
	}
	if ch == nil || ch.header == nil {
		c.closeConnection(amqperrors.UnexpectedFrame, "UNEXPECTED_FRAME - content body without header", 0, 0)
		return
	}
	ch.body = append(ch.body, f.Payload...)
	if uint64(len(ch.body)) >= ch.header.BodySize {
		c.completePublish(ch)
	}
}

// completePublish routes an assembled message, returns it when mandatory and
// unroutable, then confirms it.
func (c *conn) completePublish(ch *channel) {
	m, props, body := ch.publish, ch.header.Properties, ch.body
	ch.publish, ch.header, ch.body = nil, nil, nil

	b := c.srv.broker
	ex, ok := b.exchanges[m.Exchange]
	if !ok {
		c.requireExchange(ch, m.Exchange, protocol.ClassBasic, protocol.BasicPublish)
		return
	}
	var seq uint64
	if ch.confirm {
		ch.publishSeq++
		seq = ch.publishSeq
	}

	queues := b.route(ex, m.RoutingKey, props.Headers)
	if len(queues) == 0 && m.Mandatory {
		c.sendContentOrDrop(ch.number, &protocol.BasicReturnMethod{
			ReplyCode:  amqperrors.NoRoute,
			ReplyText:  "NO_ROUTE",
			Exchange:   m.Exchange,
			RoutingKey: m.RoutingKey,
		}, props, body)
	}
	for _, q := range queues {
		q.messages = append(q.messages, &message{
			exchange:   m.Exchange,
			routingKey: m.RoutingKey,
			props:      props,
			body:       body,
		})
		c.srv.dispatch(q)
	}

	if !ch.confirm {
		return
	}
	if c.srv.hold {
		ch.held = append(ch.held, seq)
		return
	}
	c.sendOrDrop(ch.number, &protocol.BasicAckMethod{DeliveryTag: seq})
}

// settle acks or rejects deliveries on ch. A tag the channel never handed
// out closes the channel.
func (c *conn) settle(ch *channel, tag uint64, multiple, requeue bool, classID, methodID uint16) {
	var tags []uint64
	if multiple {
		for _, t := range slices.Sorted(maps.Keys(ch.unacked)) {
			if tag == 0 || t <= tag {
				tags = append(tags, t)
			}
		}
	} else if _, ok := ch.unacked[tag]; ok {
		tags = []uint64{tag}
	}
	if len(tags) == 0 && !(multiple && tag == 0) {
		c.closeChannel(ch, amqperrors.PreconditionFailed,
			fmt.Sprintf("PRECONDITION_FAILED - unknown delivery tag %d", tag), classID, methodID)
		return
	}

	touched := make(map[string]bool)
	var back []*delivery
	for _, t := range tags {
		d := ch.unacked[t]
		delete(ch.unacked, t)
		touched[d.queue] = true
		if requeue {
			back = append(back, d)
		}
	}
	c.srv.requeue(back)
	for name := range touched {
		if q, ok := c.srv.broker.queues[name]; ok {
			c.srv.dispatch(q)
		}
	}
}

func (c *conn) requeueAll(ch *channel) {
	var back []*delivery
	for _, t := range slices.Sorted(maps.Keys(ch.unacked)) {
		back = append(back, ch.unacked[t])
	}
	clear(ch.unacked)
	c.srv.requeue(back)
}

// release cancels ch's consumers and requeues its unacknowledged deliveries.
func (c *conn) release(ch *channel) {
	var queues []*queue
	for _, cons := range ch.consumers {
		queues = append(queues, cons.queue)
		c.removeConsumer(cons)
	}
	ch.held = nil
	ch.resetContent()
	c.requeueAll(ch)
	for _, q := range queues {
		c.srv.dispatch(q)
	}
}

func (ch *channel) resetContent() {
	ch.publish, ch.header, ch.body = nil, nil, nil
}

// closeChannel starts a broker-initiated channel.close. Frames other than
// close and close-ok are dropped until the client answers.
func (c *conn) closeChannel(ch *channel, code uint16, text string, classID, methodID uint16) {
	c.release(ch)
	ch.closing = true
	c.sendOrDrop(ch.number, &protocol.ChannelCloseMethod{
		ReplyCode: code,
		ReplyText: text,
		ClassID:   classID,
		MethodID:  methodID,
	})
}

func (c *conn) closeConnection(code uint16, text string, classID, methodID uint16) {
	if c.closing {
		return
	}
	c.closing = true
	c.logger.Debug("Closing connection", zap.Uint16("code", code), zap.String("text", text))
	c.sendOrDrop(0, &protocol.ConnectionCloseMethod{
		ReplyCode: code,
		ReplyText: text,
		ClassID:   classID,
		MethodID:  methodID,
	})
}

func (c *conn) writeFrame(f *protocol.Frame) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return protocol.WriteFrame(c.nc, f)
}

func (c *conn) send(number uint16, m protocol.Method) error {
	f, err := protocol.EncodeMethodFrameForChannel(number, m)
	if err != nil {
		return err
	}
	return c.writeFrame(f)
}

func (c *conn) sendOrDrop(number uint16, m protocol.Method) {
	if err := c.send(number, m); err != nil {
		c.logger.Debug("Failed to send method",
			zap.String("method", protocol.MethodName(protocol.KeyOf(m))),
			zap.Error(err))
	}
}

func (c *conn) sendContentOrDrop(number uint16, m protocol.Method, props protocol.Properties, body []byte) {
	var buf bytes.Buffer
	if err := protocol.AppendContent(&buf, number, m, props, body, c.frameMax); err != nil {
		c.logger.Debug("Failed to encode content", zap.Error(err))
		return
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := buf.WriteTo(c.nc); err != nil {
		c.logger.Debug("Failed to send content", zap.Error(err))
	}
}

// dispatch hands ready messages of q to its consumers round-robin, skipping
// channels at their prefetch limit.
func (s *Server) dispatch(q *queue) {
	for len(q.messages) > 0 {
		cons := q.pick()
		if cons == nil {
			return
		}
		msg := q.messages[0]
		q.messages = q.messages[1:]

		ch := cons.ch
		ch.deliveryTag++
		if !cons.noAck {
			ch.unacked[ch.deliveryTag] = &delivery{queue: q.name, msg: msg}
		}
		ch.conn.sendContentOrDrop(ch.number, &protocol.BasicDeliverMethod{
			ConsumerTag: cons.tag,
			DeliveryTag: ch.deliveryTag,
			Redelivered: msg.redelivered,
			Exchange:    msg.exchange,
			RoutingKey:  msg.routingKey,
		}, msg.props, msg.body)
	}
}

func (q *queue) pick() *consumer {
	n := len(q.consumers)
	for i := 0; i < n; i++ {
		cons := q.consumers[(q.next+i)%n]
		ch := cons.ch
		if ch.closing || (ch.prefetch > 0 && len(ch.unacked) >= int(ch.prefetch)) {
			continue
		}
		q.next = (q.next + i + 1) % n
		return cons
	}
	return nil
}

// requeue puts deliveries back at the head of their queues, in order.
func (s *Server) requeue(back []*delivery) {
	for i := len(back) - 1; i >= 0; i-- {
		d := back[i]
		q, ok := s.broker.queues[d.queue]
		if !ok {
			continue
		}
		msg := *d.msg
		msg.redelivered = true
		q.messages = append([]*message{&msg}, q.messages...)
	}
}
