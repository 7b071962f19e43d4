package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maxpert/amqp-client-go/client"
	"github.com/maxpert/amqp-client-go/config"
	"github.com/maxpert/amqp-client-go/logging"
	"github.com/maxpert/amqp-client-go/metrics"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configFile  string
	uri         string
	confirmMode string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "amqp-client",
		Short:         "Talk to an AMQP 0-9-1 broker from the command line",
		SilenceErrors: true,
		SilenceUsage:  true,
		Example: `
  # Publish one message to the default exchange and wait for the confirm
  amqp-client publish "" jobs 'hello'

  # Consume ten messages and ack them
  amqp-client consume jobs --count 10

  # Use a config file, with AMQP_* environment variables on top
  AMQP_CONNECTION_HEARTBEAT=10s amqp-client --config client.yaml get jobs
`,
	}
	cmd.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&a.uri, "uri", "", "broker URI, overrides the configured one")
	cmd.PersistentFlags().StringVar(&a.confirmMode, "confirm", "", "publisher confirm mode: auto, native or emulated")

	cmd.AddCommand(
		newPublishCommand(a),
		newConsumeCommand(a),
		newGetCommand(a),
		newDeclareQueueCommand(a),
		newConfigCommand(),
		newVersionCommand(),
	)
	return cmd
}

// load resolves the configuration and builds the logger.
func (a *app) load() error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	builder := config.FromConfig(cfg)
	if a.uri != "" {
		builder = builder.WithURI(a.uri)
	}
	if a.confirmMode != "" {
		builder = builder.WithConfirmMode(a.confirmMode)
	}
	if cfg, err = builder.Build(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// session opens a connection, runs fn and closes the connection again. When
// metrics are enabled a Prometheus endpoint is served for the duration.
func (a *app) session(ctx context.Context, fn func(ctx context.Context, conn *client.Connection) error) error {
	if err := a.load(); err != nil {
		return err
	}
	defer a.logger.Sync()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	opts := []client.Option{client.WithLogger(a.logger)}
	group, groupCtx := errgroup.WithContext(ctx)
	if a.cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		opts = append(opts, client.WithMetrics(metrics.NewCollector(a.cfg.Metrics.Namespace, registry)))
		server := metrics.NewServer(a.cfg.Metrics.Address, registry)
		if err := server.Listen(); err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		a.logger.Info("Serving metrics", zap.String("address", server.Addr()))
		group.Go(server.Start)
		group.Go(func() error {
			<-groupCtx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Stop(stopCtx)
		})
	}

	group.Go(func() error {
		// Ends the metrics server too.
		defer cancel()
		conn, err := client.New(a.cfg, opts...)
		if err != nil {
			return err
		}
		if _, err := conn.Wait(groupCtx, conn.Connect(groupCtx)); err != nil {
			return err
		}
		runErr := fn(groupCtx, conn)

		closeCtx, closeCancel := context.WithTimeout(context.Background(), a.cfg.Connection.ConnectTimeout)
		defer closeCancel()
		if _, err := conn.Wait(closeCtx, conn.Close()); err != nil && runErr == nil {
			a.logger.Warn("Close failed", zap.Error(err))
		}
		return runErr
	})
	return group.Wait()
}
