package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/sftp"
	"github.com/spf13/cobra"

	"github.com/iwoov/shellmaster/internal/sftpengine"
)

func newGetCmd() *cobra.Command {
	var channels int
	cmd := &cobra.Command{
		Use:   "get <remote-path> <local-path>",
		Short: "Download a remote file, splitting large files across parallel SFTP channels",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			remotePath, localPath := args[0], args[1]

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

			attrs, err := engine.Stat(remotePath)
			if err != nil {
				return err
			}

			reportLastLine := func(transferred, total int64) {
				fmt.Printf("\r%d / %d bytes", transferred, total)
			}

			if channels <= 1 || attrs.Size < 4<<20 {
				item := sftpengine.NewTransferItem(uuid.NewString(), sftpengine.Download, remotePath, localPath)
				err = engine.Run(item, func(p sftpengine.Progress) {
					reportLastLine(p.BytesTransferred, p.TotalBytes)
				}, nil)
			} else {
				opener := func() (*sftp.Client, error) {
					ch, openErr := session.OpenSFTP()
					if openErr != nil {
						return nil, openErr
					}
					return ch.Client, nil
				}
				err = sftpengine.MultiChannelDownload(ctx, opener, remotePath, localPath, attrs.Size, channels,
					func(transferred, total int64, _ float64) {
						reportLastLine(transferred, total)
					})
			}
			fmt.Println()
			return err
		},
	}
	cmd.Flags().IntVar(&channels, "channels", sftpengine.DefaultChannelCount, "parallel channels for large downloads (clamped to [1,8])")
	return cmd
}
