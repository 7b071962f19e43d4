package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maxpert/amqp-client-go/client"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", client.Product, client.Version)
			return err
		},
	}
}
