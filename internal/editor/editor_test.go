package editor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iwoov/shellmaster/internal/sftpengine"
)

type fakeDownloader struct {
	content []byte
}

func (d *fakeDownloader) Download(remotePath, localPath string, onProgress sftpengine.ProgressFunc, cancel sftpengine.CancelFunc) error {
	return os.WriteFile(localPath, d.content, 0o644)
}

func TestTempPathIsDeterministic(t *testing.T) {
	tempDir := t.TempDir()
	m, err := NewManager(tempDir, "")
	if err != nil {
		t.Fatal(err)
	}

	p1 := m.TempPath("session-1", "/etc/nginx/nginx.conf")
	p2 := m.TempPath("session-1", "/etc/nginx/nginx.conf")
	if p1 != p2 {
		t.Fatalf("TempPath is not deterministic: %q vs %q", p1, p2)
	}
	if filepath.Base(p1) == "" || !filepath.IsAbs(p1) {
		t.Fatalf("unexpected temp path: %q", p1)
	}

	other := m.TempPath("session-1", "/etc/hosts")
	if p1 == other {
		t.Fatal("different remote paths must not collide")
	}
}

func TestOpenForEditDownloadsAndWatchesForModification(t *testing.T) {
	tempDir := t.TempDir()
	m, err := NewManager(tempDir, "")
	if err != nil {
		t.Fatal(err)
	}

	downloader := &fakeDownloader{content: []byte("original")}
	localPath, err := m.openForEditNoSpawn(context.Background(), "session-1", downloader, "/etc/motd")
	if err != nil {
		t.Fatalf("OpenForEdit: %v", err)
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "original" {
		t.Fatalf("downloaded content = %q", data)
	}

	// Simulate the editor saving the file.
	time.Sleep(10 * time.Millisecond) // ensure a distinguishable mtime
	if err := os.WriteFile(localPath, []byte("edited"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case mod := <-m.Events():
		if mod.LocalPath != localPath || mod.RemotePath != "/etc/motd" || mod.SessionID != "session-1" {
			t.Fatalf("unexpected Modified event: %#v", mod)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("expected a Modified event after the file was rewritten")
	}
}

func TestCloseSessionRemovesTempFiles(t *testing.T) {
	tempDir := t.TempDir()
	m, err := NewManager(tempDir, "")
	if err != nil {
		t.Fatal(err)
	}

	downloader := &fakeDownloader{content: []byte("x")}
	localPath, err := m.openForEditNoSpawn(context.Background(), "session-1", downloader, "/tmp/f.txt")
	if err != nil {
		t.Fatal(err)
	}

	removed := m.CloseSession("session-1")
	if len(removed) != 1 || removed[0] != localPath {
		t.Fatalf("CloseSession returned %#v, want [%q]", removed, localPath)
	}
	if _, statErr := os.Stat(localPath); !os.IsNotExist(statErr) {
		t.Fatal("expected the temp file to be deleted")
	}
}
