package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maxpert/amqp-client-go/client"
)

func newDeclareQueueCommand(a *app) *cobra.Command {
	var (
		opts client.QueueDeclareOptions
		bind []string
	)
	cmd := &cobra.Command{
		Use:   "declare-queue [name]",
		Short: "Declare a queue, generating a name when none is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return a.session(cmd.Context(), func(ctx context.Context, conn *client.Connection) error {
				r, err := conn.Wait(ctx, conn.QueueDeclare(name, opts))
				if err != nil {
					return err
				}
				fields := r.Fields()
				queue, _ := fields["queue"].(string)
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s messages=%v consumers=%v\n",
					queue, fields["message_count"], fields["consumer_count"]); err != nil {
					return err
				}
				for _, exchange := range bind {
					if _, err := conn.Wait(ctx, conn.QueueBind(queue, exchange, queue, nil)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&opts.Passive, "passive", false, "only check that the queue exists")
	cmd.Flags().BoolVar(&opts.Durable, "durable", false, "survive a broker restart")
	cmd.Flags().BoolVar(&opts.Exclusive, "exclusive", false, "restrict the queue to this connection")
	cmd.Flags().BoolVar(&opts.AutoDelete, "auto-delete", false, "delete the queue when its last consumer goes away")
	cmd.Flags().StringSliceVar(&bind, "bind", nil, "bind the queue to these exchanges with its name as routing key")
	return cmd
}
