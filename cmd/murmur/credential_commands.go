package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"murmur/internal/daemon"
)

func newCredentialCommand(ctx *commandContext) *cobra.Command {
	credCmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage the stored API credential",
	}
	credCmd.AddCommand(newCredentialSetCommand(ctx))
	credCmd.AddCommand(newCredentialStatusCommand(ctx))
	credCmd.AddCommand(newCredentialClearCommand(ctx))
	return credCmd
}

func newCredentialSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set [credential]",
		Short: "Store the API credential, encrypted at rest",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			credential, err := readCredential(args)
			if err != nil {
				return err
			}
			if credential == "" {
				return fmt.Errorf("credential must not be empty")
			}
			return ctx.withDaemon(func(d *daemon.Daemon) error {
				if err := d.Secrets().Store(cmd.Context(), credential); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Credential stored")
				return nil
			})
		},
	}
}

// readCredential takes the credential from the argument when given, otherwise
// from stdin so it can be piped in without landing in shell history.
func readCredential(args []string) (string, error) {
	if len(args) == 1 {
		return strings.TrimSpace(args[0]), nil
	}
	if isatty.IsTerminal(os.Stdin.Fd()) {
		fmt.Fprint(os.Stderr, "Credential: ")
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read credential: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func newCredentialStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether a credential is configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(func(d *daemon.Daemon) error {
				credential, err := d.Secrets().Retrieve(cmd.Context())
				if err != nil {
					return err
				}
				if credential == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "No credential configured")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Credential configured")
				}
				return nil
			})
		},
	}
}

func newCredentialClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(func(d *daemon.Daemon) error {
				if err := d.Secrets().Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Credential removed")
				return nil
			})
		},
	}
}
