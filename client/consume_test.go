package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amqperrors "github.com/maxpert/amqp-client-go/errors"
	"github.com/maxpert/amqp-client-go/internal/fakebroker"
	"github.com/maxpert/amqp-client-go/protocol"
)

// drive steps conn for d without delivering results.
func drive(t *testing.T, conn *Connection, d time.Duration) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		err := conn.step(ctx)
		cancel()
		require.NoError(t, err)
	}
}

func consumerStarted(conn *Connection, id PromiseID) func() bool {
	return func() bool {
		p, ok := conn.promises[id]
		return ok && p.consumer.started
	}
}

func publishAll(t *testing.T, conn *Connection, queue string, bodies ...string) {
	t.Helper()
	for _, body := range bodies {
		wait(t, conn, conn.BasicPublish("", queue, Publishing{Body: []byte(body)}))
	}
}

func TestConsumeEmptyQueueTimesOut(t *testing.T) {
	srv := startBroker(t, fakebroker.Options{})
	conn := connect(t, srv, nil)
	declareQueue(t, conn, "empty")

	consumer := conn.BasicConsume("empty", ConsumeOptions{})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := conn.Wait(ctx, consumer)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, conn.IsOpen())
}

func TestConsumeCancelledByBroker(t *testing.T) {
	srv := startBroker(t, fakebroker.Options{})
	conn := connect(t, srv, nil)
	declareQueue(t, conn, "doomed")

	consumer := conn.BasicConsume("doomed", ConsumeOptions{})
	pump(t, conn, consumerStarted(conn, consumer))

	srv.DeleteQueue("doomed")
	r, err := conn.Wait(testContext(t), consumer)
	require.Error(t, err)
	assert.ErrorIs(t, err, amqperrors.ErrConsumerCancelled)
	assert.IsType(t, &protocol.BasicCancelMethod{}, r.Method)
	assert.NotContains(t, conn.promises, consumer)
}

func TestBasicCancel(t *testing.T) {
	srv := startBroker(t, fakebroker.Options{})
	conn := connect(t, srv, nil)
	declareQueue(t, conn, "a")
	declareQueue(t, conn, "b")
	publishAll(t, conn, "a", "from-a")
	publishAll(t, conn, "b", "from-b")

	consumer := conn.BasicConsumeMulti([]ConsumeQueue{
		{Queue: "a", ConsumerTag: "tag-a"},
		{Queue: "b", ConsumerTag: "tag-b"},
	}, ConsumeOptions{})

	got := map[string]string{}
	for range 2 {
		d := wait(t, conn, consumer)
		got[d.ConsumerTag()] = string(d.Body)
		require.NoError(t, conn.BasicAck(d, false))
	}
	assert.Equal(t, map[string]string{"tag-a": "from-a", "tag-b": "from-b"}, got)

	cancel := conn.BasicCancel(consumer)
	wait(t, conn, cancel)
	final := wait(t, conn, consumer)
	assert.NoError(t, final.Err)
	assert.NotContains(t, conn.promises, consumer)

	publishAll(t, conn, "a", "unconsumed")
	assert.Equal(t, 1, srv.MessageCount("a"))
}

func TestBasicCancelBeforeConsumeOK(t *testing.T) {
	srv := startBroker(t, fakebroker.Options{})
	conn := connect(t, srv, nil)
	declareQueue(t, conn, "quick")

	consumer := conn.BasicConsume("quick", ConsumeOptions{})
	first := conn.BasicCancel(consumer)
	second := conn.BasicCancel(consumer)

	wait(t, conn, first)
	wait(t, conn, second)
	final := wait(t, conn, consumer)
	assert.NoError(t, final.Err)
}

func TestBasicCancelValidatesTarget(t *testing.T) {
	srv := startBroker(t, fakebroker.Options{})
	conn := connect(t, srv, nil)

	_, err := conn.Wait(testContext(t), conn.BasicCancel(PromiseID(12345)))
	assert.ErrorIs(t, err, amqperrors.ErrUnknownPromise)

	declare := conn.QueueDeclare("q", QueueDeclareOptions{})
	_, err = conn.Wait(testContext(t), conn.BasicCancel(declare))
	assert.ErrorIs(t, err, errNotConsuming)
	wait(t, conn, declare)

	_, err = conn.Wait(testContext(t), conn.BasicQos(declare, 1, 0))
	assert.ErrorIs(t, err, amqperrors.ErrUnknownPromise)
}

func TestConsumePrefetch(t *testing.T) {
	srv := startBroker(t, fakebroker.Options{})
	conn := connect(t, srv, nil)
	declareQueue(t, conn, "slow")
	publishAll(t, conn, "slow", "1", "2", "3")

	consumer := conn.BasicConsume("slow", ConsumeOptions{PrefetchCount: 1})
	d := wait(t, conn, consumer)
	assert.Equal(t, "1", string(d.Body))

	drive(t, conn, 100*time.Millisecond)
	assert.Empty(t, conn.promises[consumer].results, "prefetch holds back the next delivery")
	assert.Equal(t, 2, srv.MessageCount("slow"))

	require.NoError(t, conn.BasicAck(d, false))
	d = wait(t, conn, consumer)
	assert.Equal(t, "2", string(d.Body))

	wait(t, conn, conn.BasicQos(consumer, 0, 0))
	d3 := wait(t, conn, consumer)
	assert.Equal(t, "3", string(d3.Body))

	require.NoError(t, conn.BasicAck(d3, true))
	assert.True(t, conn.promises[consumer].unacked.IsEmpty(), "multiple ack settles earlier deliveries")
	pump(t, conn, func() bool { return srv.Unacked() == 0 })
}

func TestConsumeNoAck(t *testing.T) {
	srv := startBroker(t, fakebroker.Options{})
	conn := connect(t, srv, nil)
	declareQueue(t, conn, "fire")
	publishAll(t, conn, "fire", "x")

	consumer := conn.BasicConsume("fire", ConsumeOptions{NoAck: true})
	d := wait(t, conn, consumer)
	assert.ErrorIs(t, conn.BasicAck(d, false), errNoAckNeeded)
	assert.Equal(t, 0, srv.Unacked())
}

func TestRejectRequeues(t *testing.T) {
	srv := startBroker(t, fakebroker.Options{})
	conn := connect(t, srv, nil)
	declareQueue(t, conn, "retry")
	publishAll(t, conn, "retry", "again")

	consumer := conn.BasicConsume("retry", ConsumeOptions{})
	d := wait(t, conn, consumer)
	assert.False(t, d.Redelivered())
	require.NoError(t, conn.BasicReject(d, true))
	assert.ErrorIs(t, conn.BasicAck(d, false), errNoAckNeeded, "a settled delivery cannot be settled twice")

	d = wait(t, conn, consumer)
	assert.True(t, d.Redelivered())
	assert.Equal(t, "again", string(d.Body))
	require.NoError(t, conn.BasicNack(d, false, false))
	pump(t, conn, func() bool { return srv.Unacked() == 0 })
	assert.Equal(t, 0, srv.MessageCount("retry"))
}

func TestAckAfterChannelClosed(t *testing.T) {
	srv := startBroker(t, fakebroker.Options{})
	conn := connect(t, srv, nil)
	declareQueue(t, conn, "fragile")
	publishAll(t, conn, "fragile", "m")

	consumer := conn.BasicConsume("fragile", ConsumeOptions{})
	d := wait(t, conn, consumer)
	number := conn.promises[consumer].ch.number

	srv.CloseChannel(number, amqperrors.PreconditionFailed, "PRECONDITION_FAILED - test")
	_, err := conn.Wait(testContext(t), consumer)
	require.Error(t, err)
	assert.True(t, amqperrors.IsChannelError(err))

	err = conn.BasicAck(d, false)
	require.Error(t, err)
	assert.True(t, amqperrors.IsChannelError(err))
	assert.Equal(t, 1, srv.MessageCount("fragile"), "unacked delivery went back to the queue")
}

func TestAckRejectsNonDeliveries(t *testing.T) {
	srv := startBroker(t, fakebroker.Options{})
	conn := connect(t, srv, nil)

	r := wait(t, conn, conn.QueueDeclare("plain", QueueDeclareOptions{}))
	assert.ErrorIs(t, conn.BasicAck(r, false), errNotDelivery)
	assert.ErrorIs(t, conn.BasicAck(nil, false), errNotDelivery)
	assert.ErrorIs(t, conn.BasicReject(&Result{}, false), errNotDelivery)
}

func TestBasicGet(t *testing.T) {
	srv := startBroker(t, fakebroker.Options{})
	conn := connect(t, srv, nil)
	declareQueue(t, conn, "jobs")

	r := wait(t, conn, conn.BasicGet("jobs", false))
	assert.True(t, r.Empty)
	assert.Equal(t, true, r.Fields()["empty"])

	publishAll(t, conn, "jobs", "job-1", "job-2")
	id := conn.BasicGet("jobs", false)
	r = wait(t, conn, id)
	assert.False(t, r.Empty)
	assert.Equal(t, "job-1", string(r.Body))
	assert.Equal(t, uint32(1), r.Fields()["message_count"])
	assert.Contains(t, conn.promises, id, "unacked get keeps its channel")
	assert.Equal(t, 1, srv.Unacked())

	require.NoError(t, conn.BasicAck(r, false))
	assert.NotContains(t, conn.promises, id)
	pump(t, conn, func() bool { return srv.Unacked() == 0 })
}

func TestConsumeMissingQueue(t *testing.T) {
	srv := startBroker(t, fakebroker.Options{})
	conn := connect(t, srv, nil)

	_, err := conn.Wait(testContext(t), conn.BasicConsume("ghost", ConsumeOptions{}))
	require.Error(t, err)
	assert.True(t, amqperrors.IsNotFound(err))

	_, err = conn.Wait(testContext(t), conn.BasicConsumeMulti(nil, ConsumeOptions{}))
	assert.ErrorIs(t, err, errNoQueues)
}

func TestBasicQosOverlapping(t *testing.T) {
	srv := startBroker(t, fakebroker.Options{})
	conn := connect(t, srv, nil)
	declareQueue(t, conn, "tuned")

	consumer := conn.BasicConsume("tuned", ConsumeOptions{})
	pump(t, conn, consumerStarted(conn, consumer))

	first := conn.BasicQos(consumer, 5, 0)
	second := conn.BasicQos(consumer, 10, 0)
	r := wait(t, conn, second)
	assert.IsType(t, &protocol.BasicQosOKMethod{}, r.Method)
	wait(t, conn, first)
	assert.True(t, conn.IsOpen())
	assert.Empty(t, conn.promises[consumer].consumer.qos)

	publishAll(t, conn, "tuned", "after")
	d := wait(t, conn, consumer)
	assert.Equal(t, "after", string(d.Body))
	require.NoError(t, conn.BasicAck(d, false))
}

func TestBasicQosBeforeConsumeOK(t *testing.T) {
	srv := startBroker(t, fakebroker.Options{})
	setup := connect(t, srv, nil)
	for _, q := range []string{"early-fresh", "early-idle"} {
		declareQueue(t, setup, q)
		publishAll(t, setup, q, q)
	}

	cases := []struct {
		name  string
		queue string
		idle  bool
	}{
		{name: "fresh channel", queue: "early-fresh"},
		{name: "idle channel", queue: "early-idle", idle: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn := connect(t, srv, nil)
			if tc.idle {
				// leaves an open channel that the consumer picks up
				declareQueue(t, conn, tc.queue)
			}

			consumer := conn.BasicConsume(tc.queue, ConsumeOptions{PrefetchCount: 3})
			qos := conn.BasicQos(consumer, 1, 0)
			wait(t, conn, qos)
			assert.True(t, consumerStarted(conn, consumer)())

			d := wait(t, conn, consumer)
			assert.Equal(t, tc.queue, string(d.Body))
			require.NoError(t, conn.BasicAck(d, false))
			assert.True(t, conn.IsOpen())
		})
	}
}

func TestBasicQosDropsFinishedLinks(t *testing.T) {
	srv := startBroker(t, fakebroker.Options{})
	conn := connect(t, srv, nil)
	declareQueue(t, conn, "retuned")

	consumer := conn.BasicConsume("retuned", ConsumeOptions{})
	for i := 0; i < 20; i++ {
		wait(t, conn, conn.BasicQos(consumer, uint16(i+1), 0))
	}
	assert.LessOrEqual(t, len(conn.promises[consumer].linked), 1)
}

func TestBasicQosFailsWithConsumer(t *testing.T) {
	srv := startBroker(t, fakebroker.Options{})
	conn := connect(t, srv, nil)

	consumer := conn.BasicConsume("missing", ConsumeOptions{})
	qos := conn.BasicQos(consumer, 1, 0)
	_, err := conn.Wait(testContext(t), qos)
	require.Error(t, err)
	_, err = conn.Wait(testContext(t), consumer)
	require.Error(t, err)
}
