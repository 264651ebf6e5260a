package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newExecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <command...>",
		Short: "Run a remote command without a PTY and print its output",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			m, session, sessionID, err := connect(ctx)
			if err != nil {
				return err
			}
			defer m.Close(sessionID)

			execChannel, err := session.OpenExec()
			if err != nil {
				return err
			}
			defer execChannel.Close()

			result, err := execChannel.Exec(strings.Join(args, " "))
			os.Stdout.Write(result.Stdout)
			os.Stderr.Write(result.Stderr)
			if err != nil {
				return err
			}
			if result.ExitCode != 0 {
				return fmt.Errorf("shellmaster: remote command exited %d", result.ExitCode)
			}
			return nil
		},
	}
}
