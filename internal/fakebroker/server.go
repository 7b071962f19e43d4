// Package fakebroker is an in-process AMQP 0-9-1 broker for tests. It speaks
// enough of the protocol to exercise a client end to end: handshake, queues,
// exchanges, publisher confirms, returns, consumers and basic.get. Hooks let
// a test hold confirms, close channels and delete queues under a client.
package fakebroker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maxpert/amqp-client-go/protocol"
)

// Options configure a Server. Zero values pick usable defaults.
type Options struct {
	Username string
	Password string

	// DisableConfirms hides the publisher_confirms capability and rejects
	// confirm.select.
	DisableConfirms bool

	FrameMax   uint32
	ChannelMax uint16
	// Heartbeat is the interval proposed in connection.tune, in seconds.
	Heartbeat uint16

	Logger *zap.Logger
}

// Server accepts client connections on a loopback listener.
type Server struct {
	opts   Options
	logger *zap.Logger
	ln     net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	// mu guards the broker state, every connection's channels and the hooks.
	mu     sync.Mutex
	broker *broker
	conns  []*conn
	hold   bool
	closed bool
}

// Start listens on an ephemeral loopback port and serves until Close.
func Start(opts Options) (*Server, error) {
	if opts.Username == "" {
		opts.Username = "guest"
	}
	if opts.Password == "" {
		opts.Password = "guest"
	}
	if opts.FrameMax == 0 {
		opts.FrameMax = 131072
	}
	if opts.ChannelMax == 0 {
		opts.ChannelMax = 2047
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("fakebroker: listen: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	s := &Server{
		opts:   opts,
		logger: logger.Named("fakebroker"),
		ln:     ln,
		ctx:    ctx,
		cancel: cancel,
		group:  group,
		broker: newBroker(),
	}
	group.Go(s.accept)
	return s, nil
}

// Addr returns the listener address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// URI returns an amqp:// URI pointing at the server with its credentials.
func (s *Server) URI() string {
	return fmt.Sprintf("amqp://%s:%s@%s/", s.opts.Username, s.opts.Password, s.Addr())
}

// Close stops accepting, drops every connection and waits for the
// connection goroutines to exit.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	conns := append([]*conn(nil), s.conns...)
	s.mu.Unlock()

	s.cancel()
	_ = s.ln.Close()
	for _, c := range conns {
		_ = c.nc.Close()
	}
	return s.group.Wait()
}

func (s *Server) accept() error {
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || s.ctx.Err() != nil {
				return nil
			}
			return err
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = nc.Close()
			return nil
		}
		c := newConn(s, nc)
		s.conns = append(s.conns, c)
		s.mu.Unlock()

		s.group.Go(func() error {
			c.serve()
			return nil
		})
	}
}

func (s *Server) removeConn(c *conn) {
	for i, other := range s.conns {
		if other == c {
			s.conns = append(s.conns[:i], s.conns[i+1:]...)
			return
		}
	}
}

// Connections returns the number of connections that finished the handshake
// and are still open.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.conns {
		if c.open {
			n++
		}
	}
	return n
}

// HoldConfirms stops acknowledging publishes on confirm channels until
// ReleaseConfirms or NackConfirms.
func (s *Server) HoldConfirms() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hold = true
}

// HeldConfirms returns the number of publishes whose confirm is held.
func (s *Server) HeldConfirms() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.conns {
		for _, ch := range c.channels {
			n += len(ch.held)
		}
	}
	return n
}

// ReleaseConfirms acknowledges every held publish with one cumulative
// basic.ack per channel and stops holding.
func (s *Server) ReleaseConfirms() {
	s.settleHeld(false)
}

// NackConfirms rejects every held publish with one cumulative basic.nack per
// channel and stops holding.
func (s *Server) NackConfirms() {
	s.settleHeld(true)
}

func (s *Server) settleHeld(nack bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hold = false
	for _, c := range s.conns {
		for _, ch := range c.channels {
			if len(ch.held) == 0 {
				continue
			}
			last := ch.held[len(ch.held)-1]
			ch.held = nil
			var m protocol.Method = &protocol.BasicAckMethod{DeliveryTag: last, Multiple: true}
			if nack {
				m = &protocol.BasicNackMethod{DeliveryTag: last, Multiple: true}
			}
			c.sendOrDrop(ch.number, m)
		}
	}
}

// CloseChannel makes the broker close channel number on every connection
// with the given reply code.
func (s *Server) CloseChannel(number uint16, code uint16, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		if ch, ok := c.channels[number]; ok && !ch.closing {
			c.closeChannel(ch, code, text, 0, 0)
		}
	}
}

// DeleteQueue deletes a queue out from under its consumers, which receive a
// basic.cancel.
func (s *Server) DeleteQueue(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteQueue(name)
}

func (s *Server) deleteQueue(name string) int {
	q, consumers := s.broker.deleteQueue(name)
	if q == nil {
		return 0
	}
	for _, cons := range consumers {
		delete(cons.ch.consumers, cons.tag)
		cons.ch.conn.sendOrDrop(cons.ch.number, &protocol.BasicCancelMethod{ConsumerTag: cons.tag, NoWait: true})
	}
	return len(q.messages)
}

// MessageCount returns the number of ready messages in a queue.
func (s *Server) MessageCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.broker.queues[name]; ok {
		return len(q.messages)
	}
	return 0
}

// Unacked returns the number of delivered messages awaiting acknowledgement
// across every connection.
func (s *Server) Unacked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.conns {
		for _, ch := range c.channels {
			n += len(ch.unacked)
		}
	}
	return n
}

// Heartbeats returns the number of heartbeat frames received from clients.
func (s *Server) Heartbeats() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.conns {
		n += c.heartbeats
	}
	return n
}

// SendHeartbeat sends a heartbeat frame to every client.
func (s *Server) SendHeartbeat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		if err := c.writeFrame(protocol.HeartbeatFrame()); err != nil {
			c.logger.Debug("Failed to send heartbeat", zap.Error(err))
		}
	}
}

// SendFrame writes a raw frame to every client.
func (s *Server) SendFrame(f *protocol.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		if err := c.writeFrame(f); err != nil {
			c.logger.Debug("Failed to send frame", zap.Error(err))
		}
	}
}

// SendMethod writes m on channel number to every client.
func (s *Server) SendMethod(number uint16, m protocol.Method) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.sendOrDrop(number, m)
	}
}

// CloseConnection sends connection.close with code to every client.
func (s *Server) CloseConnection(code uint16, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.closing = true
		c.sendOrDrop(0, &protocol.ConnectionCloseMethod{ReplyCode: code, ReplyText: text})
	}
}
