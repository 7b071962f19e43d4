package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/maxpert/amqp-client-go/client"
	"github.com/maxpert/amqp-client-go/config"
	"github.com/maxpert/amqp-client-go/internal/fakebroker"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func startBroker(t *testing.T, opts fakebroker.Options) *fakebroker.Server {
	t.Helper()
	opts.Logger = zaptest.NewLogger(t)
	srv, err := fakebroker.Start(opts)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, srv.Close()) })
	return srv
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, client.Product+" "+client.Version+"\n", out)
}

func TestPublishGetRoundTrip(t *testing.T) {
	srv := startBroker(t, fakebroker.Options{})
	uri := srv.URI()

	out, err := execute(t, "", "--uri", uri, "declare-queue", "jobs")
	require.NoError(t, err)
	assert.Equal(t, "jobs messages=0 consumers=0\n", out)

	out, err = execute(t, "", "--uri", uri, "publish", "", "jobs", "first", "-H", "source=cli")
	require.NoError(t, err)
	assert.Contains(t, out, "published 1 message(s), confirm mode native")

	// Body from stdin
	_, err = execute(t, "second", "--uri", uri, "publish", "", "jobs")
	require.NoError(t, err)
	assert.Equal(t, 2, srv.MessageCount("jobs"))

	out, err = execute(t, "", "--uri", uri, "get", "jobs")
	require.NoError(t, err)
	assert.Equal(t, "first\n", out)
	assert.Equal(t, 1, srv.MessageCount("jobs"))
}

func TestPublishEmulatedConfirms(t *testing.T) {
	srv := startBroker(t, fakebroker.Options{DisableConfirms: true})
	_, err := execute(t, "", "--uri", srv.URI(), "declare-queue", "plain")
	require.NoError(t, err)

	out, err := execute(t, "", "--uri", srv.URI(), "publish", "", "plain", "x", "--count", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "published 3 message(s), confirm mode emulated")
	assert.Equal(t, 3, srv.MessageCount("plain"))
}

func TestPublishMandatoryUnroutable(t *testing.T) {
	srv := startBroker(t, fakebroker.Options{})
	_, err := execute(t, "", "--uri", srv.URI(), "publish", "", "nowhere", "x", "--mandatory")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "312")
}

func TestConsumeCount(t *testing.T) {
	srv := startBroker(t, fakebroker.Options{})
	uri := srv.URI()
	_, err := execute(t, "", "--uri", uri, "declare-queue", "work")
	require.NoError(t, err)
	for _, body := range []string{"a", "b", "c"} {
		_, err := execute(t, "", "--uri", uri, "publish", "", "work", body)
		require.NoError(t, err)
	}

	out, err := execute(t, "", "--uri", uri, "consume", "work", "--count", "2", "--prefetch", "1")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", out)
	// The broker may have pushed "c" before the cancel; it is requeued once the connection is gone.
	require.Eventually(t, func() bool {
		return srv.MessageCount("work") == 1 && srv.Unacked() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestGetEmptyQueue(t *testing.T) {
	srv := startBroker(t, fakebroker.Options{})
	_, err := execute(t, "", "--uri", srv.URI(), "declare-queue", "idle")
	require.NoError(t, err)

	out, err := execute(t, "", "--uri", srv.URI(), "get", "idle")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestGeneratedConfigIsLoadable(t *testing.T) {
	srv := startBroker(t, fakebroker.Options{})
	path := filepath.Join(t.TempDir(), "client.yaml")

	_, err := execute(t, "", "config", "gen", "--out", path)
	require.NoError(t, err)
	_, err = execute(t, "", "config", "gen", "--out", path)
	assert.ErrorContains(t, err, "already exists")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Connection, cfg.Connection)

	out, err := execute(t, "", "--config", path, "--uri", srv.URI(), "declare-queue")
	require.NoError(t, err)
	assert.Contains(t, out, "amq.gen-")
}

func TestInvalidConfirmFlag(t *testing.T) {
	_, err := execute(t, "", "--confirm", "sometimes", "get", "q")
	assert.ErrorContains(t, err, "confirm_mode")
}
