package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/maxpert/amqp-client-go/config"
	"github.com/maxpert/amqp-client-go/internal/fakebroker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startBroker(t testing.TB, opts fakebroker.Options) *fakebroker.Server {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = zaptest.NewLogger(t)
	}
	srv, err := fakebroker.Start(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, srv.Close())
	})
	return srv
}

func testConfig(srv *fakebroker.Server) *config.Config {
	cfg := config.DefaultConfig()
	cfg.URI = srv.URI()
	cfg.Connection.PollInterval = 10 * time.Millisecond
	cfg.Connection.ConnectTimeout = 5 * time.Second
	return cfg
}

func testContext(t testing.TB) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// connect opens a connection to srv and closes it when the test ends.
func connect(t testing.TB, srv *fakebroker.Server, modify func(*config.Config), opts ...Option) *Connection {
	t.Helper()
	cfg := testConfig(srv)
	if modify != nil {
		modify(cfg)
	}
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	conn, err := New(cfg, opts...)
	require.NoError(t, err)

	ctx := testContext(t)
	_, err = conn.Wait(ctx, conn.Connect(ctx))
	require.NoError(t, err)
	require.True(t, conn.IsOpen())

	t.Cleanup(func() {
		if conn.IsOpen() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, _ = conn.Wait(ctx, conn.Close())
		}
	})
	return conn
}

// pump drives conn until cond holds without delivering any result.
func pump(t testing.TB, conn *Connection, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		err := conn.step(ctx)
		cancel()
		require.NoError(t, err)
	}
}

// wait drives conn until id has a result and fails the test on error.
func wait(t testing.TB, conn *Connection, id PromiseID) *Result {
	t.Helper()
	r, err := conn.Wait(testContext(t), id)
	require.NoError(t, err)
	return r
}

func declareQueue(t testing.TB, conn *Connection, name string) {
	t.Helper()
	wait(t, conn, conn.QueueDeclare(name, QueueDeclareOptions{}))
}
