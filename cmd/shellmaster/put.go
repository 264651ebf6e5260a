package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iwoov/shellmaster/internal/sftpengine"
)

func newPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <local-path> <remote-path>",
		Short: "Upload a local file over SFTP",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			localPath, remotePath := args[0], args[1]

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

			item := sftpengine.NewTransferItem(uuid.NewString(), sftpengine.Upload, remotePath, localPath)
			err = engine.Run(item, func(p sftpengine.Progress) {
				fmt.Printf("\r%d / %d bytes", p.BytesTransferred, p.TotalBytes)
			}, nil)
			fmt.Println()
			return err
		},
	}
}
