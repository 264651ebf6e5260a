// Package sftpengine implements C7 (the SFTP protocol engine) and C8 (the
// multi-channel parallel downloader). It consumes an *sftp.Client opened by
// internal/sshconn and turns it into the list/stat/mkdir/rename/remove/
// transfer operations the rest of the session runtime calls; C6
// (internal/sftpstate) owns the in-memory view these operations feed.
//
// Grounded on internal/terminal/sftp.go (github.com/pkg/sftp
// wrapping an *ssh.Client, 32 KiB block transfer loop), generalized to
// expose progress callbacks and cancellation instead of writing straight to
// an http.ResponseWriter.
package sftpengine

import "time"

const blockSize = 32 * 1024

// Direction is which way a TransferItem moves bytes.
type Direction int

const (
	Download Direction = iota
	Upload
)

// Status is a TransferItem's lifecycle state. Completed, Failed and
// Cancelled are terminal.
type Status int

const (
	Pending Status = iota
	Downloading
	Uploading
	Paused
	Completed
	Failed
	Cancelled
)

// Progress tracks one transfer's byte counters and throughput.
type Progress struct {
	BytesTransferred int64
	TotalBytes       int64
	SpeedBps         float64
	StartedAt        *time.Time
}

// Percentage returns BytesTransferred / TotalBytes, or 0 if TotalBytes is 0.
func (p Progress) Percentage() float64 {
	if p.TotalBytes == 0 {
		return 0
	}
	return float64(p.BytesTransferred) / float64(p.TotalBytes)
}

func (p *Progress) recompute(transferred int64) {
	p.BytesTransferred = transferred
	if p.StartedAt == nil {
		return
	}
	elapsed := time.Since(*p.StartedAt).Seconds()
	if elapsed <= 0 {
		p.SpeedBps = 0
		return
	}
	p.SpeedBps = float64(transferred) / elapsed
}

// TransferItem is one upload or download in flight.
type TransferItem struct {
	ID         string
	RemotePath string
	LocalPath  string
	Direction  Direction
	Status     Status
	Progress   Progress
	Err        error
}

// NewTransferItem builds a TransferItem in its initial Pending status. id
// is caller-assigned (the demo CLI and any GUI use it to key a transfer
// list).
func NewTransferItem(id string, direction Direction, remotePath, localPath string) *TransferItem {
	return &TransferItem{
		ID:         id,
		RemotePath: remotePath,
		LocalPath:  localPath,
		Direction:  direction,
		Status:     Pending,
	}
}

// ProgressFunc is invoked after every block with the transfer's current
// Progress snapshot.
type ProgressFunc func(Progress)

// CancelFunc reports whether the caller has asked the transfer to stop. It
// is checked before every block.
type CancelFunc func() bool

// FileType classifies an entry returned by List.
type FileType int

const (
	RegularFile FileType = iota
	DirectoryFile
	SymlinkFile
)

func (t FileType) String() string {
	switch t {
	case DirectoryFile:
		return "dir"
	case SymlinkFile:
		return "symlink"
	default:
		return "file"
	}
}

// FileEntry is one row of a List result, paired with internal/sftpstate's
// FileEntry by name/path/type but keeping the SFTP engine decoupled from
// the state package.
type FileEntry struct {
	Name        string
	Path        string
	Type        FileType
	Size        int64
	Modified    time.Time
	Permissions uint32
	UID         int
	GID         int
}

// Attrs is full file/dir metadata for a single Stat call.
type Attrs struct {
	Path        string
	Type        FileType
	Size        int64
	Permissions uint32
	UID         int
	GID         int
	Accessed    time.Time
	Modified    time.Time
}
