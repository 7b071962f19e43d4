package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/maxpert/amqp-client-go/client"
	"github.com/maxpert/amqp-client-go/protocol"
)

func newPublishCommand(a *app) *cobra.Command {
	var (
		contentType string
		headers     map[string]string
		mandatory   bool
		persistent  bool
		count       int
	)
	cmd := &cobra.Command{
		Use:   "publish <exchange> <routing-key> [body]",
		Short: "Publish a message and wait until the broker confirms it",
		Long:  "Publish a message. The body is read from stdin when it is not given as an argument.",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			var body []byte
			if len(args) == 3 {
				body = []byte(args[2])
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read body: %w", err)
				}
				body = data
			}

			msg := client.Publishing{Body: body, Mandatory: mandatory}
			msg.ContentType = contentType
			if persistent {
				msg.DeliveryMode = 2
			}
			keys := make([]string, 0, len(headers))
			for k := range headers {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				msg.Headers = msg.Headers.Set(k, protocol.String(headers[k]))
			}

			return a.session(cmd.Context(), func(ctx context.Context, conn *client.Connection) error {
				ids := make([]client.PromiseID, count)
				for i := range ids {
					ids[i] = conn.BasicPublish(args[0], args[1], msg)
				}
				for _, id := range ids {
					if _, err := conn.Wait(ctx, id); err != nil {
						return err
					}
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "published %d message(s), confirm mode %s\n", count, conn.ConfirmMode())
				return err
			})
		},
	}
	cmd.Flags().StringVar(&contentType, "content-type", "", "content type property")
	cmd.Flags().StringToStringVarP(&headers, "header", "H", nil, "message header as key=value, repeatable")
	cmd.Flags().BoolVar(&mandatory, "mandatory", false, "fail when no queue is bound to the routing key")
	cmd.Flags().BoolVar(&persistent, "persistent", false, "publish with delivery mode 2")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of copies to publish")
	return cmd
}
