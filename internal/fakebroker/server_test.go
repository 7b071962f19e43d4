package fakebroker

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/maxpert/amqp-client-go/protocol"
)

func start(t *testing.T, opts Options) *Server {
	t.Helper()
	opts.Logger = zaptest.NewLogger(t)
	srv, err := Start(opts)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, srv.Close()) })
	return srv
}

// The broker is checked against an independent client so that client tests
// built on it test the client and not a shared misunderstanding.
func TestServerWithAMQP091Client(t *testing.T) {
	srv := start(t, Options{})

	conn, err := amqp.Dial(srv.URI())
	require.NoError(t, err)
	defer conn.Close()

	ch, err := conn.Channel()
	require.NoError(t, err)
	require.NoError(t, ch.Confirm(false))
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 4))

	q, err := ch.QueueDeclare("interop", false, false, false, false, nil)
	require.NoError(t, err)
	assert.Equal(t, "interop", q.Name)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ch.PublishWithContext(ctx, "", "interop", false, false, amqp.Publishing{
		ContentType: "text/plain",
		Headers:     amqp.Table{"n": int32(7)},
		Body:        []byte("hi"),
	}))

	select {
	case c := <-confirms:
		assert.True(t, c.Ack)
		assert.Equal(t, uint64(1), c.DeliveryTag)
	case <-ctx.Done():
		t.Fatal("no confirm")
	}

	deliveries, err := ch.Consume("interop", "c1", false, false, false, false, nil)
	require.NoError(t, err)
	select {
	case d := <-deliveries:
		assert.Equal(t, "hi", string(d.Body))
		assert.Equal(t, "text/plain", d.ContentType)
		assert.Equal(t, int32(7), d.Headers["n"])
		require.NoError(t, d.Ack(false))
	case <-ctx.Done():
		t.Fatal("no delivery")
	}

	require.Eventually(t, func() bool { return srv.Unacked() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, srv.Connections())

	require.NoError(t, ch.Cancel("c1", false))
	require.NoError(t, ch.Close())
}

func TestServerRefusesBadCredentials(t *testing.T) {
	srv := start(t, Options{Username: "app", Password: "secret"})

	_, err := amqp.Dial("amqp://app:wrong@" + srv.Addr() + "/")
	require.Error(t, err)

	conn, err := amqp.Dial(srv.URI())
	require.NoError(t, err)
	require.NoError(t, conn.Close())
}

func TestServerRejectsProtocolHeader(t *testing.T) {
	srv := start(t, Options{})

	nc, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer nc.Close()

	_, err = nc.Write([]byte("AMQP\x00\x00\x08\x00"))
	require.NoError(t, err)
	require.NoError(t, nc.SetReadDeadline(time.Now().Add(5*time.Second)))

	reply := make([]byte, len(protocol.ProtocolHeader))
	_, err = io.ReadFull(nc, reply)
	require.NoError(t, err)
	assert.Equal(t, protocol.ProtocolHeader, string(reply))
}

func TestServerForcesClose(t *testing.T) {
	srv := start(t, Options{})

	conn, err := amqp.Dial(srv.URI())
	require.NoError(t, err)
	defer conn.Close()
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	srv.CloseConnection(320, "CONNECTION_FORCED - test")
	select {
	case e := <-closed:
		require.NotNil(t, e)
		assert.Equal(t, 320, e.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("connection not closed")
	}
}
