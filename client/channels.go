package client

import (
	"github.com/RoaringBitmap/roaring"

	amqperrors "github.com/maxpert/amqp-client-go/errors"
	"github.com/maxpert/amqp-client-go/protocol"
)

// channel is one logical AMQP channel. It is owned by at most one promise.
type channel struct {
	number  uint16
	alive   bool
	promise *promise

	// content reassembly
	method   protocol.Method
	header   *protocol.ContentHeader
	body     []byte
	received uint64
}

// assembling reports whether a content method is waiting for its header or
// body frames.
func (ch *channel) assembling() bool {
	return ch.method != nil
}

func (ch *channel) resetContent() {
	ch.method = nil
	ch.header = nil
	ch.body = nil
	ch.received = 0
}

// channelPool hands out channel numbers 1..max. Numbers never opened (or
// whose channel died) live in free; opened channels without an owner live in
// idle and are reused without another channel.open.
type channelPool struct {
	max      uint16
	free     *roaring.Bitmap
	idle     []*channel
	byNumber []*channel
}

func newChannelPool(max uint16) *channelPool {
	if max == 0 {
		max = protocol.DefaultChannelMax
	}
	free := roaring.New()
	free.AddRange(1, uint64(max)+1)
	return &channelPool{
		max:      max,
		free:     free,
		byNumber: make([]*channel, int(max)+1),
	}
}

// get returns the channel registered under number, or nil.
func (cp *channelPool) get(number uint16) *channel {
	if int(number) >= len(cp.byNumber) {
		return nil
	}
	return cp.byNumber[number]
}

// acquire binds p to a channel. fresh is true when the channel still needs a
// channel.open round trip.
func (cp *channelPool) acquire(p *promise) (ch *channel, fresh bool, err error) {
	if n := len(cp.idle); n > 0 {
		ch = cp.idle[n-1]
		cp.idle[n-1] = nil
		cp.idle = cp.idle[:n-1]
		ch.promise = p
		p.ch = ch
		return ch, false, nil
	}
	if cp.free.IsEmpty() {
		return nil, false, amqperrors.ErrChannelsExhausted
	}
	number := uint16(cp.free.Minimum())
	cp.free.Remove(uint32(number))
	ch = &channel{number: number, promise: p}
	cp.byNumber[number] = ch
	p.ch = ch
	return ch, true, nil
}

// release unbinds ch from its promise. A live channel goes to the idle list;
// a dead one gives its number back so the next user renegotiates it.
func (cp *channelPool) release(ch *channel) {
	ch.promise = nil
	ch.resetContent()
	if ch.alive {
		cp.idle = append(cp.idle, ch)
		return
	}
	cp.forget(ch)
}

// forget drops ch from the arena and frees its number.
func (cp *channelPool) forget(ch *channel) {
	if cp.byNumber[ch.number] == ch {
		cp.byNumber[ch.number] = nil
	}
	cp.free.Add(uint32(ch.number))
}

// kill marks ch dead. An idle dead channel is forgotten right away.
func (cp *channelPool) kill(ch *channel) {
	ch.alive = false
	ch.resetContent()
	for i, idle := range cp.idle {
		if idle == ch {
			cp.idle = append(cp.idle[:i], cp.idle[i+1:]...)
			cp.forget(ch)
			return
		}
	}
}

func (cp *channelPool) isIdle(ch *channel) bool {
	for _, idle := range cp.idle {
		if idle == ch {
			return true
		}
	}
	return false
}

// open returns the number of channels currently registered.
func (cp *channelPool) open() int {
	n := 0
	for _, ch := range cp.byNumber[1:] {
		if ch != nil {
			n++
		}
	}
	return n
}
