package sftpengine

import (
	"io"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"

	"github.com/iwoov/shellmaster/internal/shellerr"
)

// Engine drives protocol operations over a single SFTP channel. It does not
// own the channel's lifetime; the caller (internal/sshconn.Session) opens
// and closes it.
type Engine struct {
	client *sftp.Client
}

// New wraps an already-open *sftp.Client.
func New(client *sftp.Client) *Engine {
	return &Engine{client: client}
}

// normalizePath collapses "//", resolves "." and ".." lexically without
// crossing the root.
func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	cleaned := path.Clean(p)
	if !path.IsAbs(cleaned) {
		cleaned = "/" + cleaned
		cleaned = path.Clean(cleaned)
	}
	return cleaned
}

func classifyType(mode os.FileMode) FileType {
	switch {
	case mode&os.ModeSymlink != 0:
		return SymlinkFile
	case mode.IsDir():
		return DirectoryFile
	default:
		return RegularFile
	}
}

// List issues readdir against path and converts each result to a
// FileEntry, re-statting each entry with Lstat (which does not follow
// symlinks) so Type reflects the entry itself rather than its target.
func (e *Engine) List(remotePath string) ([]FileEntry, error) {
	dir := normalizePath(remotePath)
	infos, err := e.client.ReadDir(dir)
	if err != nil {
		return nil, shellerr.Wrap(shellerr.Io, err, "sftp: readdir %q", dir)
	}

	entries := make([]FileEntry, 0, len(infos))
	for _, fi := range infos {
		full := path.Join(dir, fi.Name())
		if lfi, lerr := e.client.Lstat(full); lerr == nil {
			fi = lfi
		}
		entries = append(entries, fileEntryFromInfo(fi, full))
	}
	return entries, nil
}

func fileEntryFromInfo(fi os.FileInfo, full string) FileEntry {
	entry := FileEntry{
		Name:        fi.Name(),
		Path:        full,
		Type:        classifyType(fi.Mode()),
		Size:        fi.Size(),
		Modified:    fi.ModTime(),
		Permissions: uint32(fi.Mode().Perm()),
	}
	if stat, ok := fi.Sys().(*sftp.FileStat); ok {
		entry.UID = int(stat.UID)
		entry.GID = int(stat.GID)
	}
	return entry
}

// Stat returns full metadata for a single path.
func (e *Engine) Stat(remotePath string) (Attrs, error) {
	p := normalizePath(remotePath)
	fi, err := e.client.Lstat(p)
	if err != nil {
		return Attrs{}, shellerr.Wrap(shellerr.Io, err, "sftp: stat %q", p)
	}
	attrs := Attrs{
		Path:        p,
		Type:        classifyType(fi.Mode()),
		Size:        fi.Size(),
		Permissions: uint32(fi.Mode().Perm()),
		Modified:    fi.ModTime(),
	}
	if stat, ok := fi.Sys().(*sftp.FileStat); ok {
		attrs.UID = int(stat.UID)
		attrs.GID = int(stat.GID)
		attrs.Accessed = time.Unix(int64(stat.Atime), 0)
	}
	return attrs, nil
}

// Mkdir creates a single directory; it does not create intermediate path
// segments.
func (e *Engine) Mkdir(remotePath string) error {
	p := normalizePath(remotePath)
	if err := e.client.Mkdir(p); err != nil {
		return shellerr.Wrap(shellerr.Io, err, "sftp: mkdir %q", p)
	}
	return nil
}

// Rename moves/renames from to to.
func (e *Engine) Rename(from, to string) error {
	src, dst := normalizePath(from), normalizePath(to)
	if err := e.client.Rename(src, dst); err != nil {
		return shellerr.Wrap(shellerr.Io, err, "sftp: rename %q -> %q", src, dst)
	}
	return nil
}

// Remove deletes a file or symlink (not a directory — use RemoveDir).
func (e *Engine) Remove(remotePath string) error {
	p := normalizePath(remotePath)
	if err := e.client.Remove(p); err != nil {
		return shellerr.Wrap(shellerr.Io, err, "sftp: remove %q", p)
	}
	return nil
}

// RemoveDir deletes an empty directory.
func (e *Engine) RemoveDir(remotePath string) error {
	p := normalizePath(remotePath)
	if err := e.client.RemoveDirectory(p); err != nil {
		return shellerr.Wrap(shellerr.Io, err, "sftp: rmdir %q", p)
	}
	return nil
}

// ReadFile reads an entire small file into memory.
func (e *Engine) ReadFile(remotePath string) ([]byte, error) {
	p := normalizePath(remotePath)
	f, err := e.client.Open(p)
	if err != nil {
		return nil, shellerr.Wrap(shellerr.Io, err, "sftp: open %q", p)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, shellerr.Wrap(shellerr.Io, err, "sftp: read %q", p)
	}
	return data, nil
}

// OpenRead opens remotePath for streaming reads.
func (e *Engine) OpenRead(remotePath string) (*sftp.File, error) {
	p := normalizePath(remotePath)
	f, err := e.client.Open(p)
	if err != nil {
		return nil, shellerr.Wrap(shellerr.Io, err, "sftp: open %q", p)
	}
	return f, nil
}

// OpenWrite creates (or truncates) remotePath for streaming writes.
func (e *Engine) OpenWrite(remotePath string) (*sftp.File, error) {
	p := normalizePath(remotePath)
	f, err := e.client.Create(p)
	if err != nil {
		return nil, shellerr.Wrap(shellerr.Io, err, "sftp: create %q", p)
	}
	return f, nil
}

// Download copies remote to local in 32 KiB blocks, reporting progress
// after each block and checking cancel before each one. A cancelled
// download leaves whatever partial bytes were already written at the
// destination intact; the caller observes Status == Cancelled and decides
// whether to clean up.
func (e *Engine) Download(remotePath, localPath string, onProgress ProgressFunc, cancel CancelFunc) error {
	remote := normalizePath(remotePath)
	src, err := e.client.Open(remote)
	if err != nil {
		return shellerr.Wrap(shellerr.Io, err, "sftp: open %q", remote)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return shellerr.Wrap(shellerr.Io, err, "sftp: stat %q", remote)
	}

	dst, err := os.Create(localPath)
	if err != nil {
		return shellerr.Wrap(shellerr.Io, err, "sftp: create local %q", localPath)
	}
	defer dst.Close()

	return transferLoop(src, dst, info.Size(), onProgress, cancel)
}

// Upload copies local to remote in 32 KiB blocks, symmetric to Download.
func (e *Engine) Upload(localPath, remotePath string, onProgress ProgressFunc, cancel CancelFunc) error {
	src, err := os.Open(localPath)
	if err != nil {
		return shellerr.Wrap(shellerr.Io, err, "sftp: open local %q", localPath)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return shellerr.Wrap(shellerr.Io, err, "sftp: stat local %q", localPath)
	}

	remote := normalizePath(remotePath)
	dst, err := e.client.Create(remote)
	if err != nil {
		return shellerr.Wrap(shellerr.Io, err, "sftp: create %q", remote)
	}
	defer dst.Close()

	return transferLoop(src, dst, info.Size(), onProgress, cancel)
}

// Run drives item through its full status lifecycle — Pending (already
// set by NewTransferItem) to Downloading/Uploading, then to exactly one
// of Completed, Cancelled or Failed — delegating the actual bytes to
// Download or Upload based on item.Direction. item.Progress is kept in
// sync with every onProgress callback, and item.Err is populated on a
// non-cancel failure.
func (e *Engine) Run(item *TransferItem, onProgress ProgressFunc, cancel CancelFunc) error {
	wrapped := func(p Progress) {
		item.Progress = p
		if onProgress != nil {
			onProgress(p)
		}
	}

	var err error
	switch item.Direction {
	case Download:
		item.Status = Downloading
		err = e.Download(item.RemotePath, item.LocalPath, wrapped, cancel)
	case Upload:
		item.Status = Uploading
		err = e.Upload(item.LocalPath, item.RemotePath, wrapped, cancel)
	}

	switch {
	case err == nil:
		item.Status = Completed
	case shellerr.Is(err, shellerr.Cancelled):
		item.Status = Cancelled
	default:
		item.Status = Failed
		item.Err = err
	}
	return err
}

// transferLoop is the 32 KiB block copy shared by Download and Upload.
func transferLoop(src io.Reader, dst io.Writer, total int64, onProgress ProgressFunc, cancel CancelFunc) error {
	start := time.Now()
	progress := Progress{TotalBytes: total, StartedAt: &start}
	buf := make([]byte, blockSize)
	var transferred int64

	for {
		if cancel != nil && cancel() {
			return shellerr.New(shellerr.Cancelled, "transfer cancelled")
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return shellerr.Wrap(shellerr.Io, writeErr, "sftp: write block")
			}
			transferred += int64(n)
			progress.recompute(transferred)
			if onProgress != nil {
				onProgress(progress)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return shellerr.Wrap(shellerr.Io, readErr, "sftp: read block")
		}
	}
}
