package client

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/maxpert/amqp-client-go/auth"
	"github.com/maxpert/amqp-client-go/config"
	amqperrors "github.com/maxpert/amqp-client-go/errors"
	"github.com/maxpert/amqp-client-go/protocol"
)

var (
	keyConnectionStart     = protocol.MethodKey(protocol.ClassConnection, protocol.ConnectionStart)
	keyConnectionSecure    = protocol.MethodKey(protocol.ClassConnection, protocol.ConnectionSecure)
	keyConnectionTune      = protocol.MethodKey(protocol.ClassConnection, protocol.ConnectionTune)
	keyConnectionOpenOK    = protocol.MethodKey(protocol.ClassConnection, protocol.ConnectionOpenOK)
	keyConnectionClose     = protocol.MethodKey(protocol.ClassConnection, protocol.ConnectionClose)
	keyConnectionCloseOK   = protocol.MethodKey(protocol.ClassConnection, protocol.ConnectionCloseOK)
	keyConnectionBlocked   = protocol.MethodKey(protocol.ClassConnection, protocol.ConnectionBlocked)
	keyConnectionUnblocked = protocol.MethodKey(protocol.ClassConnection, protocol.ConnectionUnblocked)
)

// Connect dials the broker and starts the handshake. The returned promise
// completes with connection.open-ok, or with the error that stopped the
// handshake. Operations issued before it completes are sent once the
// connection is open.
func (c *Connection) Connect(ctx context.Context) PromiseID {
	p := c.newPromise(false)
	if c.state != stateInit {
		p.fail(fmt.Errorf("connect: connection is %s", c.state))
		return p.id
	}
	c.state = stateHandshake
	c.connectP = p

	dialCtx := ctx
	if c.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
	}
	t, err := c.dial(dialCtx)
	if err != nil {
		c.teardown(amqperrors.NewConnectionLost(err))
		return p.id
	}
	c.transport = t
	c.lastWrite = time.Now()

	c.logger.Debug("Starting handshake", zap.String("address", c.uri.Address()), zap.String("vhost", c.uri.Vhost))

	c.control.onEvery(keyConnectionClose, c.onConnectionClose)
	c.control.onEvery(keyConnectionBlocked, func(unit *inbound) {
		m := unit.method.(*protocol.ConnectionBlockedMethod)
		c.blocked = true
		c.logger.Warn("Connection blocked by broker", zap.String("reason", m.Reason))
	})
	c.control.onEvery(keyConnectionUnblocked, func(*inbound) {
		c.blocked = false
		c.logger.Info("Connection unblocked by broker")
	})
	c.control.on(keyConnectionStart, c.onStart)

	c.out.WriteString(protocol.ProtocolHeader)
	return p.id
}

func (c *Connection) onStart(unit *inbound) {
	start := unit.method.(*protocol.ConnectionStartMethod)
	c.serverProps = start.ServerProperties

	if start.VersionMajor != 0 || start.VersionMinor != 9 {
		c.fatal(amqperrors.NewProtocolError(amqperrors.NotImplemented,
			fmt.Sprintf("unsupported protocol version %d-%d", start.VersionMajor, start.VersionMinor),
			protocol.FrameMethod, protocol.ClassConnection, protocol.ConnectionStart))
		return
	}

	var (
		mech auth.Mechanism
		err  error
	)
	if c.cfg.Mechanism != "" {
		mech, err = c.mechanisms.Get(c.cfg.Mechanism)
	} else {
		mech, err = c.mechanisms.Select(start.Mechanisms)
	}
	if err != nil {
		c.teardown(amqperrors.NewAccessRefused(err.Error()))
		return
	}
	response, err := mech.Response(auth.Credentials{Username: c.uri.Username, Password: c.uri.Password})
	if err != nil {
		c.teardown(amqperrors.NewAccessRefused(err.Error()))
		return
	}

	c.logger.Debug("Broker offered connection start",
		zap.String("mechanisms", start.Mechanisms),
		zap.String("mechanism", mech.Name()))

	c.control.on(keyConnectionSecure, func(*inbound) {
		c.teardown(amqperrors.NewAccessRefused(fmt.Sprintf("mechanism %s does not support challenges", mech.Name())))
	})
	c.control.on(keyConnectionTune, c.onTune)
	if err := c.send(0, &protocol.ConnectionStartOKMethod{
		ClientProperties: c.clientProps,
		Mechanism:        mech.Name(),
		Response:         response,
		Locale:           c.cfg.Locale,
	}); err != nil {
		c.teardown(amqperrors.NewConnectionError(amqperrors.InternalError, err.Error()))
	}
}

func (c *Connection) onTune(unit *inbound) {
	tune := unit.method.(*protocol.ConnectionTuneMethod)
	delete(c.control.methods, keyConnectionSecure)

	c.channelMax = uint16(negotiate(uint32(c.cfg.ChannelMax), uint32(tune.ChannelMax), protocol.DefaultChannelMax))
	c.frameMax = negotiate(c.cfg.FrameMax, tune.FrameMax, protocol.DefaultFrameMax)
	c.heartbeat = negotiateHeartbeat(c.cfg.Heartbeat, time.Duration(tune.Heartbeat)*time.Second)

	c.logger.Debug("Tuned connection",
		zap.Uint16("channel_max", c.channelMax),
		zap.Uint32("frame_max", c.frameMax),
		zap.Duration("heartbeat", c.heartbeat))

	c.control.on(keyConnectionOpenOK, c.onOpenOK)
	err := c.send(0, &protocol.ConnectionTuneOKMethod{
		ChannelMax: c.channelMax,
		FrameMax:   c.frameMax,
		Heartbeat:  uint16(c.heartbeat / time.Second),
	})
	if err == nil {
		err = c.send(0, &protocol.ConnectionOpenMethod{VirtualHost: c.uri.Vhost})
	}
	if err != nil {
		c.teardown(amqperrors.NewConnectionError(amqperrors.InternalError, err.Error()))
	}
}

func (c *Connection) onOpenOK(unit *inbound) {
	c.state = stateOpen
	c.channels = newChannelPool(c.channelMax)
	c.recorder.ConnectionOpened()
	c.logger.Info("Connection established",
		zap.String("address", c.uri.Address()),
		zap.String("vhost", c.uri.Vhost))

	c.publisher = newPublisher(c, c.confirmModeFor(c.serverProps))
	c.publisher.start()

	pending := c.pendingOpen
	c.pendingOpen = nil
	for _, fn := range pending {
		if c.state != stateOpen {
			break
		}
		fn()
	}
	c.connectP.done(&Result{Method: unit.method})
}

// onConnectionClose handles a connection.close sent by the broker.
func (c *Connection) onConnectionClose(unit *inbound) {
	m := unit.method.(*protocol.ConnectionCloseMethod)
	_ = c.send(0, &protocol.ConnectionCloseOKMethod{})

	err := amqperrors.NewCloseError(0, int(m.ReplyCode), m.ReplyText, m.ClassID, m.MethodID,
		protocol.MethodName(protocol.MethodKey(m.ClassID, m.MethodID)))
	if c.state == stateClosing && int(m.ReplyCode) == amqperrors.ReplySuccess {
		c.finishClose(unit.method)
		return
	}
	c.teardown(err)
}

// Close starts a graceful connection.close. The returned promise completes
// when the broker confirms; every other outstanding promise completes with
// ErrConnectionClosed. Closing a closed connection succeeds immediately.
func (c *Connection) Close() PromiseID {
	p := c.newPromise(false)
	switch c.state {
	case stateClosed:
		p.done(&Result{})
	case stateInit, stateHandshake:
		p.done(&Result{})
		c.teardown(amqperrors.ErrConnectionClosed)
	case stateClosing:
		c.closers = append(c.closers, p)
	case stateOpen:
		c.state = stateClosing
		c.closers = append(c.closers, p)
		c.control.on(keyConnectionCloseOK, func(unit *inbound) {
			c.finishClose(unit.method)
		})
		if err := c.send(0, &protocol.ConnectionCloseMethod{
			ReplyCode: amqperrors.ReplySuccess,
			ReplyText: "Goodbye",
		}); err != nil {
			c.teardown(amqperrors.ErrConnectionClosed)
		}
	}
	return p.id
}

func (c *Connection) finishClose(m protocol.Method) {
	for _, p := range c.closers {
		p.done(&Result{Method: m})
	}
	c.closers = nil
	c.teardown(amqperrors.ErrConnectionClosed)
}

// confirmModeFor resolves "auto" against the broker's advertised capabilities.
func (c *Connection) confirmModeFor(serverProps protocol.Table) string {
	switch c.mode {
	case config.ConfirmNative, config.ConfirmEmulated:
		return c.mode
	}
	if caps, ok := serverProps.Get("capabilities"); ok {
		if table, ok := caps.(protocol.Table); ok {
			if v, ok := table.Get("publisher_confirms"); ok {
				if b, ok := v.(protocol.Bool); ok && bool(b) {
					return config.ConfirmNative
				}
			}
		}
	}
	return config.ConfirmEmulated
}

// negotiate picks the smaller of two proposals, where 0 means "no limit"
// and maps to ceiling.
func negotiate(client, server, ceiling uint32) uint32 {
	if client == 0 || client > ceiling {
		client = ceiling
	}
	if server == 0 || server > ceiling {
		server = ceiling
	}
	return min(client, server)
}

// negotiateHeartbeat picks the smaller non-zero interval.
func negotiateHeartbeat(client, server time.Duration) time.Duration {
	if client == 0 {
		return server
	}
	if server == 0 {
		return client
	}
	return min(client, server)
}
