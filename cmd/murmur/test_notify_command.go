package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"murmur/internal/daemon"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through the configured ntfy topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(func(d *daemon.Daemon) error {
				sent, message, err := d.TestNotification(cmd.Context())
				if err != nil {
					return fmt.Errorf("%s: %w", message, err)
				}
				if sent {
					fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), message)
				}
				return nil
			})
		},
	}
}
