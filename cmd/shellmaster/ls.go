package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <remote-path>",
		Short: "List a remote directory over SFTP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			m, session, sessionID, err := connect(ctx)
			if err != nil {
				return err
			}
			defer m.Close(sessionID)

			engine, channel, err := openSFTP(session)
			if err != nil {
				return err
			}
			defer channel.Close()

			entries, err := engine.List(args[0])
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s\t%10d\t%s\n", e.Type, e.Size, e.Name)
			}
			return nil
		},
	}
}
