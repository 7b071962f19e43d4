// Package client is a single-threaded AMQP 0-9-1 client engine. Every
// operation returns a PromiseID immediately after queueing its frames; the
// caller drives the socket with Wait or Loop, which dispatch broker replies
// to the promises that expect them.
//
// A Connection is not safe for concurrent use. LoopBreak is the only method
// that may be called from another goroutine.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maxpert/amqp-client-go/auth"
	"github.com/maxpert/amqp-client-go/config"
	amqperrors "github.com/maxpert/amqp-client-go/errors"
	"github.com/maxpert/amqp-client-go/metrics"
	"github.com/maxpert/amqp-client-go/protocol"
	"github.com/maxpert/amqp-client-go/transport"
)

// Client identification sent in connection.start-ok
const (
	Product  = "amqp-client-go"
	Version  = "0.1.0"
	Platform = "Go"
)

var errNotStarted = errors.New("connection not started: call Connect first")

type connState int

const (
	stateInit connState = iota
	stateHandshake
	stateOpen
	stateClosing
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateHandshake:
		return "handshake"
	case stateOpen:
		return "open"
	case stateClosing:
		return "closing"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection is one AMQP connection and everything multiplexed over it.
type Connection struct {
	id     string
	cfg    config.ConnectionConfig
	uri    config.URI
	mode   string
	logger *zap.Logger

	recorder    metrics.Recorder
	mechanisms  *auth.Registry
	clientProps protocol.Table
	dial        Dialer

	transport transport.Transport
	out       bytes.Buffer
	in        []byte
	readBuf   []byte
	lastWrite time.Time

	state    connState
	closeErr error
	blocked  bool

	frameMax    uint32
	channelMax  uint16
	heartbeat   time.Duration
	serverProps protocol.Table

	promises map[PromiseID]*promise
	nextID   PromiseID

	control     *promise
	connectP    *promise
	closers     []*promise
	pendingOpen []func()

	channels  *channelPool
	publisher *publisher

	loopBreak atomic.Bool
}

// New creates an unconnected Connection from cfg. Tuning values given in the
// URI query override the ones in cfg.Connection.
func New(cfg *config.Config, opts ...Option) (*Connection, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	uri, err := config.ParseURI(cfg.URI)
	if err != nil {
		return nil, err
	}

	conn := cfg.Connection
	if uri.Heartbeat > 0 {
		conn.Heartbeat = uri.Heartbeat
	}
	if uri.FrameMax > 0 {
		conn.FrameMax = uri.FrameMax
	}
	if uri.ChannelMax > 0 {
		conn.ChannelMax = uri.ChannelMax
	}
	mode := cfg.Publisher.ConfirmMode
	if uri.ConfirmMode != "" {
		mode = uri.ConfirmMode
	}

	var tlsConfig *tls.Config
	if uri.TLS() || cfg.TLS.Enabled {
		tlsConfig, err = transport.TLSConfig(cfg.TLS, uri.Host)
		if err != nil {
			return nil, amqperrors.NewConfigError(err.Error(), "tls", "", err)
		}
	}

	c := &Connection{
		id:         uuid.NewString(),
		cfg:        conn,
		uri:        uri,
		mode:       mode,
		logger:     zap.NewNop(),
		recorder:   metrics.NopRecorder{},
		mechanisms: auth.DefaultRegistry(),
		clientProps: protocol.Table{
			{Key: "product", Value: protocol.String(Product)},
			{Key: "version", Value: protocol.String(Version)},
			{Key: "platform", Value: protocol.String(Platform)},
			{Key: "capabilities", Value: protocol.Table{
				{Key: "authentication_failure_close", Value: protocol.Bool(true)},
				{Key: "basic.nack", Value: protocol.Bool(true)},
				{Key: "connection.blocked", Value: protocol.Bool(true)},
				{Key: "consumer_cancel_notify", Value: protocol.Bool(true)},
				{Key: "publisher_confirms", Value: protocol.Bool(true)},
			}},
		},
		readBuf:  make([]byte, 32*1024),
		frameMax: protocol.DefaultFrameMax,
		promises: make(map[PromiseID]*promise),
	}
	c.dial = func(ctx context.Context) (transport.Transport, error) {
		return transport.Dial(ctx, uri.Address(), tlsConfig)
	}

	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("connection_id", c.id))

	c.control = c.newPromise(true)
	c.control.internal = true
	c.control.ch = &channel{number: 0, alive: true, promise: c.control}

	return c, nil
}

// ID returns the connection's unique id, used in logs.
func (c *Connection) ID() string { return c.id }

// IsOpen reports whether the handshake finished and the connection is usable.
func (c *Connection) IsOpen() bool { return c.state == stateOpen }

// Blocked reports whether the broker sent connection.blocked and has not yet
// sent connection.unblocked.
func (c *Connection) Blocked() bool { return c.blocked }

// FrameMax returns the negotiated maximum frame size.
func (c *Connection) FrameMax() uint32 { return c.frameMax }

// ChannelMax returns the negotiated channel limit.
func (c *Connection) ChannelMax() uint16 { return c.channelMax }

// Heartbeat returns the negotiated heartbeat interval; 0 means disabled.
func (c *Connection) Heartbeat() time.Duration { return c.heartbeat }

// ServerProperties returns the table the broker sent in connection.start.
func (c *Connection) ServerProperties() protocol.Table { return c.serverProps }

// ConfirmMode returns the publisher confirm mode in use, native or emulated,
// once the connection is open.
func (c *Connection) ConfirmMode() string {
	if c.publisher == nil {
		return ""
	}
	return c.publisher.mode
}

// Err returns the error that closed the connection, or nil.
func (c *Connection) Err() error { return c.closeErr }

// SetCallback sets fn to run whenever a result of promise id is delivered.
func (c *Connection) SetCallback(id PromiseID, fn Callback) error {
	p, ok := c.promises[id]
	if !ok || p.internal {
		return fmt.Errorf("%w: %d", amqperrors.ErrUnknownPromise, id)
	}
	p.callback = fn
	return nil
}

// Wait drives the connection until one of the given promises has a result,
// delivers the oldest such result and returns it. The returned error is the
// result's Err, a context error, or ErrUnknownPromise for an id that does not
// exist or was already released.
func (c *Connection) Wait(ctx context.Context, ids ...PromiseID) (*Result, error) {
	for {
		for _, id := range ids {
			p, ok := c.promises[id]
			if !ok || p.internal {
				return nil, fmt.Errorf("%w: %d", amqperrors.ErrUnknownPromise, id)
			}
			if len(p.results) > 0 {
				r := c.run(p)
				return r, r.Err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.step(ctx); err != nil {
			return nil, err
		}
	}
}

// Loop drives the connection and delivers every ready result to its
// callback until LoopBreak is called or ctx ends. A deadline ending the loop
// is not an error.
func (c *Connection) Loop(ctx context.Context) error {
	c.loopBreak.Store(false)
	for {
		c.runReady()
		if c.loopBreak.Load() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		if err := c.step(ctx); err != nil {
			c.runReady()
			return err
		}
	}
}

// LoopBreak makes a running Loop return after its current iteration.
func (c *Connection) LoopBreak() {
	c.loopBreak.Store(true)
}

// runReady delivers every queued result, oldest promise first.
func (c *Connection) runReady() {
	var ready []PromiseID
	for id, p := range c.promises {
		if len(p.results) > 0 {
			ready = append(ready, id)
		}
	}
	slices.Sort(ready)
	for _, id := range ready {
		for {
			p, ok := c.promises[id]
			if !ok || len(p.results) == 0 {
				break
			}
			c.run(p)
		}
	}
}

// whenOpen runs fn once the connection is open. Operations issued before
// the handshake finishes are queued.
func (c *Connection) whenOpen(p *promise, fn func()) {
	switch c.state {
	case stateOpen:
		fn()
	case stateInit, stateHandshake:
		c.pendingOpen = append(c.pendingOpen, fn)
	default:
		p.fail(c.closedErr())
	}
}

func (c *Connection) closedErr() error {
	if c.closeErr != nil {
		return c.closeErr
	}
	return amqperrors.ErrConnectionClosed
}

// teardown closes the transport and force-completes every outstanding
// promise with err.
func (c *Connection) teardown(err error) {
	if c.state == stateClosed {
		return
	}
	wasOpen := c.state == stateOpen || c.state == stateClosing
	c.state = stateClosed
	c.closeErr = err

	if c.transport != nil {
		if ferr := c.flush(); ferr != nil {
			c.logger.Debug("Failed to flush before close", zap.Error(ferr))
		}
		if cerr := c.transport.Close(); cerr != nil {
			c.logger.Debug("Failed to close transport", zap.Error(cerr))
		}
		c.transport = nil
	}
	c.in = nil
	c.pendingOpen = nil

	ids := make([]PromiseID, 0, len(c.promises))
	for id := range c.promises {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		p := c.promises[id]
		p.fail(err)
		if p.internal {
			delete(c.promises, id)
		}
	}
	c.recorder.PromisesPending(len(c.promises))

	if c.channels != nil {
		for _, ch := range c.channels.byNumber[1:] {
			if ch != nil && ch.alive {
				ch.alive = false
				c.recorder.ChannelClosed()
			}
		}
		c.channels.idle = nil
	}
	if wasOpen {
		c.recorder.ConnectionClosed()
	}

	if errors.Is(err, amqperrors.ErrConnectionClosed) && !amqperrors.IsConnectionError(err) {
		c.logger.Info("Connection closed")
	} else {
		c.logger.Warn("Connection closed with error", zap.Error(err))
	}
}

// fatal reports a locally detected protocol violation to the broker and
// tears the connection down.
func (c *Connection) fatal(perr *amqperrors.ProtocolError) {
	if c.state == stateClosed {
		return
	}
	c.logger.Error("Protocol violation", zap.Error(perr))
	if c.transport != nil {
		_ = c.send(0, &protocol.ConnectionCloseMethod{
			ReplyCode: uint16(perr.Code),
			ReplyText: perr.Message,
			ClassID:   perr.ClassID,
			MethodID:  perr.MethodID,
		})
	}
	c.teardown(perr)
}

// releaseChannel hands ch back to the pool once its promise is released.
func (c *Connection) releaseChannel(ch *channel) {
	if ch.number == 0 || c.channels == nil {
		return
	}
	if c.state == stateClosed {
		return
	}
	c.channels.release(ch)
}
