package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/maxpert/amqp-client-go/client"
	"github.com/maxpert/amqp-client-go/protocol"
)

func printDelivery(w io.Writer, r *client.Result) error {
	_, err := fmt.Fprintf(w, "%s\n", r.Body)
	return err
}

func newConsumeCommand(a *app) *cobra.Command {
	var (
		count    int
		noAck    bool
		prefetch uint16
		requeue  bool
	)
	cmd := &cobra.Command{
		Use:   "consume <queue>...",
		Short: "Consume messages until --count is reached or interrupted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queues := make([]client.ConsumeQueue, len(args))
			for i, q := range args {
				queues[i] = client.ConsumeQueue{Queue: q}
			}
			return a.session(cmd.Context(), func(ctx context.Context, conn *client.Connection) error {
				consumer := conn.BasicConsumeMulti(queues, client.ConsumeOptions{
					PrefetchCount: prefetch,
					NoAck:         noAck,
				})

				var (
					seen   int
					runErr error
				)
				err := conn.SetCallback(consumer, func(_ client.PromiseID, r *client.Result) {
					if r.Err != nil {
						runErr = r.Err
						conn.LoopBreak()
						return
					}
					if _, ok := r.Method.(*protocol.BasicDeliverMethod); !ok {
						return
					}
					if err := printDelivery(cmd.OutOrStdout(), r); err != nil {
						runErr = err
						conn.LoopBreak()
						return
					}
					if !noAck {
						if requeue {
							runErr = conn.BasicReject(r, true)
						} else {
							runErr = conn.BasicAck(r, false)
						}
						if runErr != nil {
							conn.LoopBreak()
							return
						}
					}
					seen++
					if count > 0 && seen >= count {
						conn.LoopBreak()
					}
				})
				if err != nil {
					return err
				}

				if err := conn.Loop(ctx); err != nil {
					return err
				}
				if runErr != nil {
					return runErr
				}

				a.logger.Debug("Cancelling consumer", zap.Int("consumed", seen))
				cancelCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Connection.ConnectTimeout)
				defer cancel()
				_, err = conn.Wait(cancelCtx, conn.BasicCancel(consumer))
				return err
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "stop after this many messages, 0 means forever")
	cmd.Flags().BoolVar(&noAck, "no-ack", false, "consume without acknowledgements")
	cmd.Flags().Uint16Var(&prefetch, "prefetch", 0, "basic.qos prefetch count")
	cmd.Flags().BoolVar(&requeue, "requeue", false, "reject every message back onto the queue instead of acking")
	return cmd
}

func newGetCommand(a *app) *cobra.Command {
	var noAck bool
	cmd := &cobra.Command{
		Use:   "get <queue>",
		Short: "Fetch a single message with basic.get",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.session(cmd.Context(), func(ctx context.Context, conn *client.Connection) error {
				r, err := conn.Wait(ctx, conn.BasicGet(args[0], noAck))
				if err != nil {
					return err
				}
				if r.Empty {
					_, err := fmt.Fprintln(cmd.ErrOrStderr(), "queue is empty")
					return err
				}
				if err := printDelivery(cmd.OutOrStdout(), r); err != nil {
					return err
				}
				if noAck {
					return nil
				}
				return conn.BasicAck(r, false)
			})
		},
	}
	cmd.Flags().BoolVar(&noAck, "no-ack", false, "fetch without acknowledging")
	return cmd
}
