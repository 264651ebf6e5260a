package sftpengine_test

import (
	"io"
	"testing"

	"github.com/pkg/sftp"
)

// pipeRWC adapts a pair of io.Pipe halves into the io.ReadWriteCloser the
// in-process SFTP server wants, so tests exercise the real wire protocol
// without a live SSH connection.
type pipeRWC struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (p *pipeRWC) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipeRWC) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p *pipeRWC) Close() error {
	p.r.Close()
	return p.w.Close()
}

// newClientServerPair starts an in-process SFTP server and returns a
// connected *sftp.Client talking to it over an io.Pipe, wiring pkg/sftp
// end to end without a network socket. pkg/sftp's Go server has no
// chroot jail, so tests pass real absolute paths under a t.TempDir()
// rather than a confined root.
func newClientServerPair(t *testing.T) *sftp.Client {
	t.Helper()

	clientRead, serverWrite := io.Pipe()
	serverRead, clientWrite := io.Pipe()

	server, err := sftp.NewServer(&pipeRWC{r: serverRead, w: serverWrite})
	if err != nil {
		t.Fatalf("sftp.NewServer: %v", err)
	}
	go func() {
		server.Serve()
		server.Close()
	}()
	t.Cleanup(func() { server.Close() })

	client, err := sftp.NewClientPipe(clientRead, clientWrite)
	if err != nil {
		t.Fatalf("sftp.NewClientPipe: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return client
}
