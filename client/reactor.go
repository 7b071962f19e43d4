package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	amqperrors "github.com/maxpert/amqp-client-go/errors"
	"github.com/maxpert/amqp-client-go/protocol"
	"github.com/maxpert/amqp-client-go/transport"
)

// frameOverhead is type + channel + size + end-byte.
const frameOverhead = 8

// step is one reactor iteration: flush what is queued, read at most once
// (bounded by the poll interval, ctx and the next heartbeat) and dispatch
// every complete frame.
func (c *Connection) step(ctx context.Context) error {
	if c.transport == nil {
		if c.state == stateClosed {
			return c.closedErr()
		}
		return errNotStarted
	}

	now := time.Now()
	c.heartbeatTick(now)
	if err := c.flush(); err != nil {
		c.teardown(amqperrors.NewConnectionLost(err))
		return nil
	}

	deadline := now.Add(c.cfg.PollInterval)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if c.heartbeat > 0 && c.state >= stateOpen {
		if due := c.lastWrite.Add(c.heartbeat); due.Before(deadline) {
			deadline = due
		}
	}
	if err := c.transport.SetReadDeadline(deadline); err != nil {
		c.teardown(amqperrors.NewConnectionLost(err))
		return nil
	}

	n, err := c.transport.Read(c.readBuf)
	if n > 0 {
		c.in = append(c.in, c.readBuf[:n]...)
		c.parse()
	}
	if err != nil && !transport.IsTimeout(err) && c.state != stateClosed {
		c.teardown(amqperrors.NewConnectionLost(err))
	}
	return nil
}

// flush writes the outbound buffer to the transport.
func (c *Connection) flush() error {
	if c.out.Len() == 0 {
		return nil
	}
	if _, err := c.out.WriteTo(c.transport); err != nil {
		return err
	}
	c.lastWrite = time.Now()
	return nil
}

// heartbeatTick queues a heartbeat when nothing was written for a whole
// heartbeat interval.
func (c *Connection) heartbeatTick(now time.Time) {
	if c.heartbeat <= 0 || c.state < stateOpen || c.state == stateClosed {
		return
	}
	if c.out.Len() == 0 && now.Sub(c.lastWrite) >= c.heartbeat {
		c.writeFrame(protocol.HeartbeatFrame())
	}
}

// parse decodes and dispatches every complete frame held in the input buffer.
func (c *Connection) parse() {
	consumed := 0
	for c.state != stateClosed {
		buf := c.in[consumed:]
		if c.state == stateHandshake && len(buf) >= len(protocol.ProtocolHeader) &&
			string(buf[:4]) == protocol.ProtocolHeader[:4] {
			// The broker answers an unsupported version with its own header.
			c.teardown(amqperrors.NewProtocolError(amqperrors.NotImplemented,
				fmt.Sprintf("broker rejected protocol header, offers %q", buf[:len(protocol.ProtocolHeader)]), 0, 0, 0))
			return
		}

		frame, n, err := protocol.ParseFrame(buf, c.frameMax)
		if err != nil {
			c.fatal(amqperrors.NewFrameError(err.Error(), 0))
			return
		}
		if n == 0 {
			break
		}
		consumed += n
		c.recorder.FrameReceived(frame.Type, n)
		c.dispatchFrame(frame)
	}
	if c.state == stateClosed {
		return
	}
	c.in = append(c.in[:0], c.in[consumed:]...)
}

func (c *Connection) dispatchFrame(f *protocol.Frame) {
	switch f.Type {
	case protocol.FrameHeartbeat:
		if f.Channel != 0 {
			c.fatal(amqperrors.NewFrameError(fmt.Sprintf("heartbeat on channel %d", f.Channel), f.Type))
			return
		}
		c.writeFrame(protocol.HeartbeatFrame())
	case protocol.FrameMethod:
		m, err := protocol.ParseMethod(f.Payload)
		if err != nil {
			if errors.Is(err, protocol.ErrUnknownMethod) {
				var classID, methodID uint16
				if len(f.Payload) >= 4 {
					classID = uint16(f.Payload[0])<<8 | uint16(f.Payload[1])
					methodID = uint16(f.Payload[2])<<8 | uint16(f.Payload[3])
				}
				c.fatal(amqperrors.NewProtocolError(amqperrors.CommandInvalid, err.Error(), f.Type, classID, methodID))
				return
			}
			c.fatal(amqperrors.NewSyntaxError(err.Error()))
			return
		}
		c.dispatchMethod(f.Channel, m)
	case protocol.FrameHeader:
		c.dispatchHeader(f)
	case protocol.FrameBody:
		c.dispatchBody(f)
	default:
		c.fatal(amqperrors.NewFrameError(fmt.Sprintf("unknown frame type %d", f.Type), f.Type))
	}
}

func (c *Connection) dispatchMethod(number uint16, m protocol.Method) {
	key := protocol.KeyOf(m)
	if ce := c.logger.Check(zap.DebugLevel, "Received method"); ce != nil {
		ce.Write(zap.Uint16("channel", number), zap.String("method", protocol.MethodName(key)))
	}

	if number == 0 {
		c.deliver(c.control, unitOf(m))
		return
	}

	ch := c.channel(number)
	if ch == nil {
		classID, methodID := m.ID()
		c.fatal(amqperrors.NewUnexpectedMethod(number, classID, methodID, protocol.MethodName(key)))
		return
	}
	if ch.assembling() {
		c.fatal(amqperrors.NewUnexpectedFrame(protocol.FrameHeader, protocol.FrameMethod))
		return
	}

	switch m := m.(type) {
	case *protocol.ChannelCloseMethod:
		c.onChannelClose(ch, m)
		return
	case *protocol.ChannelFlowMethod:
		c.logger.Info("Channel flow changed", zap.Uint16("channel", number), zap.Bool("active", m.Active))
		_ = c.send(number, &protocol.ChannelFlowOKMethod{Active: m.Active})
		return
	}

	if protocol.HasContent(m) {
		ch.method = m
		return
	}
	c.deliverTo(ch, unitOf(m))
}

func (c *Connection) dispatchHeader(f *protocol.Frame) {
	ch := c.channel(f.Channel)
	if ch == nil || !ch.assembling() || ch.header != nil {
		c.fatal(amqperrors.NewUnexpectedFrame(protocol.FrameMethod, f.Type))
		return
	}
	header, err := protocol.ReadContentHeader(f)
	if err != nil {
		c.fatal(amqperrors.NewSyntaxError(err.Error()))
		return
	}
	ch.header = header
	if header.BodySize == 0 {
		c.completeContent(ch)
		return
	}
	ch.body = make([]byte, 0, min(header.BodySize, uint64(c.frameMax)))
}

func (c *Connection) dispatchBody(f *protocol.Frame) {
	ch := c.channel(f.Channel)
	if ch == nil || ch.header == nil {
		c.fatal(amqperrors.NewUnexpectedFrame(protocol.FrameHeader, f.Type))
		return
	}
	ch.body = append(ch.body, f.Payload...)
	ch.received += uint64(len(f.Payload))
	if ch.received > ch.header.BodySize {
		c.fatal(amqperrors.NewFrameError(
			fmt.Sprintf("body exceeds declared size %d on channel %d", ch.header.BodySize, f.Channel), f.Type))
		return
	}
	if ch.received == ch.header.BodySize {
		c.completeContent(ch)
	}
}

func (c *Connection) completeContent(ch *channel) {
	unit := &inbound{
		method: ch.method,
		props:  ch.header.Properties,
		body:   ch.body,
	}
	if unit.body == nil {
		unit.body = []byte{}
	}
	ch.resetContent()
	c.deliverTo(ch, unit)
}

func (c *Connection) deliverTo(ch *channel, unit *inbound) {
	if ch.promise == nil {
		classID, methodID := unit.method.ID()
		c.fatal(amqperrors.NewUnexpectedMethod(ch.number, classID, methodID, protocol.MethodName(protocol.KeyOf(unit.method))))
		return
	}
	c.deliver(ch.promise, unit)
}

// deliver pops the continuation p registered for unit's method and runs it.
func (c *Connection) deliver(p *promise, unit *inbound) {
	key := protocol.KeyOf(unit.method)
	fn, ok := p.methods[key]
	if !ok {
		classID, methodID := unit.method.ID()
		var number uint16
		if p.ch != nil {
			number = p.ch.number
		}
		c.fatal(amqperrors.NewUnexpectedMethod(number, classID, methodID, protocol.MethodName(key)))
		return
	}
	delete(p.methods, key)
	fn(unit)
}

// onChannelClose answers a broker channel.close and ends the conversation
// that owned the channel. The publish pipeline reopens instead.
func (c *Connection) onChannelClose(ch *channel, m *protocol.ChannelCloseMethod) {
	_ = c.send(ch.number, &protocol.ChannelCloseOKMethod{})

	err := amqperrors.NewCloseError(ch.number, int(m.ReplyCode), m.ReplyText, m.ClassID, m.MethodID,
		protocol.MethodName(protocol.MethodKey(m.ClassID, m.MethodID)))
	if ch.alive {
		c.recorder.ChannelClosed()
	}
	p := ch.promise
	c.channels.kill(ch)

	c.logger.Warn("Channel closed by broker",
		zap.Uint16("channel", ch.number),
		zap.Uint16("reply_code", m.ReplyCode),
		zap.String("reply_text", m.ReplyText))

	if p == nil {
		return
	}
	if c.publisher != nil && p == c.publisher.p {
		c.publisher.reopen(err)
		return
	}
	p.fail(err)
}

func (c *Connection) channel(number uint16) *channel {
	if c.channels == nil {
		return nil
	}
	return c.channels.get(number)
}

func unitOf(m protocol.Method) *inbound {
	return &inbound{method: m}
}

// writeFrame queues f for the next flush.
func (c *Connection) writeFrame(f *protocol.Frame) {
	protocol.AppendFrame(&c.out, f)
	c.recorder.FrameSent(f.Type, len(f.Payload)+frameOverhead)
}

// send queues a method frame. Nothing is queued when m cannot be encoded.
func (c *Connection) send(number uint16, m protocol.Method) error {
	f, err := protocol.EncodeMethodFrameForChannel(number, m)
	if err != nil {
		return err
	}
	if ce := c.logger.Check(zap.DebugLevel, "Sending method"); ce != nil {
		ce.Write(zap.Uint16("channel", number), zap.String("method", protocol.MethodName(protocol.KeyOf(m))))
	}
	c.writeFrame(f)
	return nil
}

// sendContent queues a content method with its header and body frames.
func (c *Connection) sendContent(number uint16, m protocol.Method, props protocol.Properties, body []byte) error {
	methodFrame, err := protocol.EncodeMethodFrameForChannel(number, m)
	if err != nil {
		return err
	}
	classID, _ := m.ID()
	headerFrame, err := protocol.EncodeContentHeaderFrameForChannel(number, &protocol.ContentHeader{
		ClassID:    classID,
		BodySize:   uint64(len(body)),
		Properties: props,
	})
	if err != nil {
		return err
	}
	c.writeFrame(methodFrame)
	c.writeFrame(headerFrame)
	for _, chunk := range protocol.SplitBody(body, c.frameMax) {
		c.writeFrame(protocol.EncodeBodyFrameForChannel(number, chunk))
	}
	return nil
}
