package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amqperrors "github.com/maxpert/amqp-client-go/errors"
	"github.com/maxpert/amqp-client-go/protocol"
)

func TestChannelPoolAcquireLowestFirst(t *testing.T) {
	pool := newChannelPool(3)
	conn := newTestConnection(t)

	for want := uint16(1); want <= 3; want++ {
		p := conn.newPromise(false)
		ch, fresh, err := pool.acquire(p)
		require.NoError(t, err)
		assert.True(t, fresh)
		assert.Equal(t, want, ch.number)
		assert.Same(t, ch, p.ch)
		assert.Same(t, p, ch.promise)
	}

	_, _, err := pool.acquire(conn.newPromise(false))
	assert.ErrorIs(t, err, amqperrors.ErrChannelsExhausted)
	assert.Equal(t, 3, pool.open())
}

func TestChannelPoolReusesIdle(t *testing.T) {
	pool := newChannelPool(10)
	conn := newTestConnection(t)

	p := conn.newPromise(false)
	ch, _, err := pool.acquire(p)
	require.NoError(t, err)
	ch.alive = true
	pool.release(ch)
	assert.True(t, pool.isIdle(ch))
	assert.Nil(t, ch.promise)

	q := conn.newPromise(false)
	again, fresh, err := pool.acquire(q)
	require.NoError(t, err)
	assert.False(t, fresh, "idle channel needs no channel.open")
	assert.Same(t, ch, again)
	assert.False(t, pool.isIdle(ch))
}

func TestChannelPoolDeadChannelRenegotiates(t *testing.T) {
	pool := newChannelPool(10)
	conn := newTestConnection(t)

	ch, _, err := pool.acquire(conn.newPromise(false))
	require.NoError(t, err)
	ch.alive = true

	pool.kill(ch)
	pool.release(ch)
	assert.False(t, pool.isIdle(ch))
	assert.Nil(t, pool.get(ch.number))

	next, fresh, err := pool.acquire(conn.newPromise(false))
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, ch.number, next.number)
	assert.NotSame(t, ch, next)
}

func TestChannelPoolKillIdle(t *testing.T) {
	pool := newChannelPool(10)
	conn := newTestConnection(t)

	ch, _, err := pool.acquire(conn.newPromise(false))
	require.NoError(t, err)
	ch.alive = true
	pool.release(ch)
	require.True(t, pool.isIdle(ch))

	pool.kill(ch)
	assert.False(t, pool.isIdle(ch))
	assert.Nil(t, pool.get(ch.number))
	assert.True(t, pool.free.Contains(uint32(ch.number)))
}

func TestChannelPoolContentReset(t *testing.T) {
	pool := newChannelPool(0)
	assert.Equal(t, uint16(protocol.DefaultChannelMax), pool.max)

	conn := newTestConnection(t)
	ch, _, err := pool.acquire(conn.newPromise(false))
	require.NoError(t, err)
	ch.alive = true
	ch.body = []byte("partial")
	ch.received = 7
	pool.release(ch)
	assert.False(t, ch.assembling())
	assert.Nil(t, ch.body)
	assert.Zero(t, ch.received)
}
