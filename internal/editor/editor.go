// Package editor implements C9: round-tripping a remote file through the
// user's configured local editor. It downloads the file to a deterministic
// temp path, watches that path's parent directory for the editor's save,
// and re-uploads on change.
package editor

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/iwoov/shellmaster/internal/sftpengine"
	"github.com/iwoov/shellmaster/internal/shellerr"
)

// Downloader and Uploader are the subset of *sftpengine.Engine the editor
// round trip depends on, narrowed so tests can supply a fake.
type Downloader interface {
	Download(remotePath, localPath string, onProgress sftpengine.ProgressFunc, cancel sftpengine.CancelFunc) error
}

type Uploader interface {
	Upload(localPath, remotePath string, onProgress sftpengine.ProgressFunc, cancel sftpengine.CancelFunc) error
}

// Manager owns the temp directory tree and the shared file watcher for
// every session's open-for-edit files.
type Manager struct {
	tempRoot   string
	editorPath string // user-configured editor binary/app; empty means OS default
	watcher    *Watcher
}

// NewManager canonicalizes systemTempDir (so the watcher's real reported
// paths and the paths this package allocates agree on equality) and
// prepares "<system_temp>/shellmaster/edit" as the temp root. editorPath
// may be empty to use the OS default opener.
func NewManager(systemTempDir, editorPath string) (*Manager, error) {
	canonical, err := filepath.EvalSymlinks(systemTempDir)
	if err != nil {
		canonical = systemTempDir
	}
	return &Manager{
		tempRoot:   filepath.Join(canonical, "shellmaster", "edit"),
		editorPath: editorPath,
	}, nil
}

// TempPath computes the deterministic local path for sessionID/remotePath:
// "<temp_root>/<session_id>_<hash(remote_path)>_<basename>".
func (m *Manager) TempPath(sessionID, remotePath string) string {
	return filepath.Join(m.tempRoot, fmt.Sprintf("%s_%s_%s", sessionID, hashPath(remotePath), filepath.Base(remotePath)))
}

func hashPath(remotePath string) string {
	h := fnv.New32a()
	h.Write([]byte(remotePath))
	return fmt.Sprintf("%08x", h.Sum32())
}

// OpenForEdit downloads remotePath to its temp path, registers it with the
// watcher, and spawns the configured editor.
func (m *Manager) OpenForEdit(ctx context.Context, sessionID string, downloader Downloader, remotePath string) (string, error) {
	return m.openForEdit(ctx, sessionID, downloader, remotePath, true)
}

// openForEditNoSpawn is OpenForEdit without launching the editor process,
// used by tests that want the download/watch behavior without depending on
// an OS opener being present.
func (m *Manager) openForEditNoSpawn(ctx context.Context, sessionID string, downloader Downloader, remotePath string) (string, error) {
	return m.openForEdit(ctx, sessionID, downloader, remotePath, false)
}

func (m *Manager) openForEdit(ctx context.Context, sessionID string, downloader Downloader, remotePath string, spawn bool) (string, error) {
	if err := os.MkdirAll(m.tempRoot, 0o700); err != nil {
		return "", shellerr.Wrap(shellerr.Io, err, "editor: create temp root %q", m.tempRoot)
	}

	localPath := m.TempPath(sessionID, remotePath)
	if err := downloader.Download(remotePath, localPath, nil, nil); err != nil {
		return "", err
	}

	mtime, err := statMtime(localPath)
	if err != nil {
		return "", shellerr.Wrap(shellerr.Io, err, "editor: stat %q", localPath)
	}

	watcher, err := m.ensureWatcher()
	if err != nil {
		return "", shellerr.Wrap(shellerr.Io, err, "editor: start watcher")
	}
	if err := watcher.Watch(sessionID, localPath, remotePath, mtime); err != nil {
		return "", shellerr.Wrap(shellerr.Io, err, "editor: watch %q", localPath)
	}

	if spawn {
		if err := m.spawnEditor(localPath); err != nil {
			return "", shellerr.Wrap(shellerr.Io, err, "editor: launch editor for %q", localPath)
		}
	}

	return localPath, nil
}

func (m *Manager) ensureWatcher() (*Watcher, error) {
	if m.watcher != nil {
		return m.watcher, nil
	}
	w, err := NewWatcher()
	if err != nil {
		return nil, err
	}
	m.watcher = w
	return w, nil
}

// Events returns the shared Modified channel, nil if no watcher has been
// created yet (i.e. nothing has ever been opened for editing).
func (m *Manager) Events() <-chan Modified {
	if m.watcher == nil {
		return nil
	}
	return m.watcher.Events()
}

// AfterUpload refreshes the watcher's last-known mtime for localPath once a
// re-upload triggered by a Modified event has succeeded, so the next save
// is detected.
func (m *Manager) AfterUpload(localPath string) error {
	if m.watcher == nil {
		return nil
	}
	mtime, err := statMtime(localPath)
	if err != nil {
		return err
	}
	m.watcher.RefreshLastModified(localPath, mtime)
	return nil
}

// CloseSession removes every watched file belonging to sessionID, deletes
// their temp files, and drops the shared watcher entirely once no files
// remain for any session.
func (m *Manager) CloseSession(sessionID string) []string {
	if m.watcher == nil {
		return nil
	}
	paths := m.watcher.CloseSession(sessionID)
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", p).Msg("editor: remove temp file")
		}
	}
	if m.watcher.FileCount() == 0 {
		if err := m.watcher.Close(); err != nil {
			log.Debug().Err(err).Msg("editor: close watcher")
		}
		m.watcher = nil
	}
	return paths
}

func statMtime(path string) (time.Time, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

func parentDir(path string) string {
	return filepath.Dir(path)
}

// spawnEditor launches the configured editor (or the OS default opener)
// against localPath. It does not wait for the process to exit.
func (m *Manager) spawnEditor(localPath string) error {
	var cmd *exec.Cmd

	switch {
	case m.editorPath != "" && runtime.GOOS == "darwin" && strings.HasSuffix(m.editorPath, ".app"):
		cmd = exec.Command("open", "-a", m.editorPath, localPath)
	case m.editorPath != "":
		cmd = exec.Command(m.editorPath, localPath)
	case runtime.GOOS == "darwin":
		cmd = exec.Command("open", "-t", localPath)
	case runtime.GOOS == "windows":
		cmd = exec.Command("cmd", "/C", "start", "", localPath)
	default:
		cmd = exec.Command("xdg-open", localPath)
	}

	return cmd.Start()
}
