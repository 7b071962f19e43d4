package client

import (
	"slices"

	"github.com/RoaringBitmap/roaring/roaring64"
	"go.uber.org/zap"

	"github.com/maxpert/amqp-client-go/protocol"
)

// PromiseID identifies one conversation with the broker. Ids are never reused
// within a connection.
type PromiseID uint64

// Callback runs when a queued result of a promise is delivered, from inside
// Wait or Loop.
type Callback func(id PromiseID, result *Result)

type promiseState int

const (
	statePending promiseState = iota
	stateReady
	stateDrained
	stateReleased
)

func (s promiseState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateReady:
		return "ready"
	case stateDrained:
		return "drained"
	case stateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// inbound is one dispatched unit: a method, plus properties and body when the
// method carries content.
type inbound struct {
	method protocol.Method
	props  protocol.Properties
	body   []byte
}

type continuation func(in *inbound)

type promise struct {
	id   PromiseID
	conn *Connection
	ch   *channel

	// methods maps an expected method key to the next step. An entry is
	// removed when it fires.
	methods map[uint32]continuation

	reentrant bool
	finished  bool
	state     promiseState
	results   []*Result
	callback  Callback

	// unacked holds delivery tags handed to the caller whose ack is still
	// outstanding. The channel is kept while it is non-empty.
	unacked *roaring64.Bitmap

	// internal promises are owned by the connection and never surface
	// results to the caller.
	internal bool
	err      error

	// linked promises ride on this promise's channel and fail with it.
	linked   []*promise
	consumer *consumer

	// onRelease runs after the channel has been handed back.
	onRelease func()
}

func (c *Connection) newPromise(reentrant bool) *promise {
	c.nextID++
	p := &promise{
		id:        c.nextID,
		conn:      c,
		methods:   make(map[uint32]continuation),
		reentrant: reentrant,
		unacked:   roaring64.New(),
	}
	c.promises[p.id] = p
	c.recorder.PromisesPending(len(c.promises))
	return p
}

// on registers fn for the next arrival of the method identified by key.
func (p *promise) on(key uint32, fn continuation) {
	p.methods[key] = fn
}

// onEvery registers fn for every arrival of the method identified by key.
func (p *promise) onEvery(key uint32, fn continuation) {
	var again continuation
	again = func(in *inbound) {
		p.methods[key] = again
		fn(in)
	}
	p.methods[key] = again
}

// ping queues a non-terminal result. Only reentrant promises may ping.
func (p *promise) ping(r *Result) {
	if !p.reentrant {
		p.conn.logger.Error("Ping on single-shot promise", zap.Uint64("promise", uint64(p.id)))
		return
	}
	if p.finished {
		return
	}
	p.enqueue(r)
}

// done queues the terminal result. Later continuations are discarded.
func (p *promise) done(r *Result) {
	if p.finished {
		return
	}
	p.finished = true
	clear(p.methods)
	p.enqueue(r)
}

// fail completes the promise with err. Unacknowledged deliveries can no
// longer be settled once the channel is gone, so they are forgotten.
func (p *promise) fail(err error) {
	if p.finished {
		return
	}
	p.err = err
	p.unacked.Clear()
	p.done(&Result{Err: err})
	for _, l := range p.linked {
		l.fail(err)
	}
	p.linked = nil
}

// link makes l fail together with p. Finished links are dropped first so a
// long-lived consumer does not accumulate them.
func (p *promise) link(l *promise) {
	p.linked = slices.DeleteFunc(p.linked, func(x *promise) bool { return x.finished })
	p.linked = append(p.linked, l)
}

func (p *promise) enqueue(r *Result) {
	if p.internal {
		return
	}
	r.promise = p
	r.channel = p.ch
	p.results = append(p.results, r)
	p.state = stateReady
}

// next pops the oldest queued result.
func (p *promise) next() *Result {
	if len(p.results) == 0 {
		return nil
	}
	r := p.results[0]
	p.results[0] = nil
	p.results = p.results[1:]
	if len(p.results) == 0 {
		p.state = stateDrained
	}
	return r
}

// releasable reports whether the promise may give up its channel and id.
func (p *promise) releasable() bool {
	return p.finished && len(p.results) == 0 && p.unacked.IsEmpty() && p.state != stateReleased
}

// run delivers the oldest queued result to the callback and releases the
// promise when nothing else can happen to it.
func (c *Connection) run(p *promise) *Result {
	r := p.next()
	if r == nil {
		return nil
	}
	if p.callback != nil {
		p.callback(p.id, r)
	}
	c.maybeRelease(p)
	return r
}

func (c *Connection) maybeRelease(p *promise) {
	if !p.releasable() {
		return
	}
	p.state = stateReleased
	if p.ch != nil {
		ch := p.ch
		p.ch = nil
		c.releaseChannel(ch)
	}
	delete(c.promises, p.id)
	c.recorder.PromisesPending(len(c.promises))
	if p.onRelease != nil {
		p.onRelease()
	}
}
