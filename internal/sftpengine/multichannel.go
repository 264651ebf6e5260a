package sftpengine

import (
	"context"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/sync/errgroup"

	"github.com/iwoov/shellmaster/internal/shellerr"
)

const minChunkSize int64 = 1 << 20 // 1 MiB

// DefaultChannelCount is used when a caller does not specify one.
const DefaultChannelCount = 4

// clampChannelCount bounds a requested channel count to [1, 8].
func clampChannelCount(n int) int {
	if n < 1 {
		return 1
	}
	if n > 8 {
		return 8
	}
	return n
}

// ChannelOpener opens a fresh SFTP channel on the caller's SSH connection.
// C8 needs one per chunk, which is why C3 (internal/sshconn) permits
// concurrent channel-open on a single session.
type ChannelOpener func() (*sftp.Client, error)

// MultiChannelProgressFunc reports the aggregate transfer state across all
// chunks: bytes transferred so far, the total file size, and the summed
// instantaneous speed across chunks.
type MultiChannelProgressFunc func(transferred, total int64, speedBps float64)

type chunkTask struct {
	index  int
	offset int64
	length int64
}

func planChunks(fileSize int64, channelCount int) []chunkTask {
	chunkSize := int64(math.Max(float64(minChunkSize), math.Ceil(float64(fileSize)/float64(channelCount))))

	var tasks []chunkTask
	var offset int64
	index := 0
	for offset < fileSize {
		length := chunkSize
		if remaining := fileSize - offset; remaining < length {
			length = remaining
		}
		tasks = append(tasks, chunkTask{index: index, offset: offset, length: length})
		offset += length
		index++
	}
	return tasks
}

type chunkProgress struct {
	bytesTransferred int64
	speedBps         float64
}

// MultiChannelDownload downloads remotePath (of the given fileSize) to
// localPath over channelCount parallel SFTP channels (clamped to [1, 8]).
// On any chunk failure, the partial local file is deleted and a combined
// error is returned; total bytes written equals fileSize iff every chunk
// succeeds.
func MultiChannelDownload(
	ctx context.Context,
	opener ChannelOpener,
	remotePath, localPath string,
	fileSize int64,
	channelCount int,
	onProgress MultiChannelProgressFunc,
) error {
	channelCount = clampChannelCount(channelCount)
	tasks := planChunks(fileSize, channelCount)

	local, err := os.OpenFile(localPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return shellerr.Wrap(shellerr.Io, err, "sftp: create local %q", localPath)
	}
	if err := local.Truncate(fileSize); err != nil {
		local.Close()
		os.Remove(localPath)
		return shellerr.Wrap(shellerr.Io, err, "sftp: preallocate %q", localPath)
	}

	var writeMu sync.Mutex
	var progressMu sync.Mutex
	progress := make([]chunkProgress, len(tasks))

	reportProgress := func() {
		if onProgress == nil {
			return
		}
		progressMu.Lock()
		var transferred int64
		var speed float64
		for _, p := range progress {
			transferred += p.bytesTransferred
			speed += p.speedBps
		}
		progressMu.Unlock()
		onProgress(transferred, fileSize, speed)
	}

	group, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		task := task
		group.Go(func() error {
			return downloadChunk(gctx, opener, remotePath, local, &writeMu, task, &progress[task.index], &progressMu, reportProgress)
		})
	}

	waitErr := group.Wait()
	if waitErr != nil {
		local.Close()
		os.Remove(localPath)
		return shellerr.Wrap(shellerr.Io, waitErr, "sftp: multi-channel download of %q failed", remotePath)
	}

	if err := local.Sync(); err != nil {
		local.Close()
		return shellerr.Wrap(shellerr.Io, err, "sftp: sync %q", localPath)
	}
	return local.Close()
}

func downloadChunk(
	ctx context.Context,
	opener ChannelOpener,
	remotePath string,
	local *os.File,
	writeMu *sync.Mutex,
	task chunkTask,
	slot *chunkProgress,
	progressMu *sync.Mutex,
	reportProgress func(),
) error {
	client, err := opener()
	if err != nil {
		return shellerr.Wrap(shellerr.Channel, err, "sftp: open channel for chunk %d", task.index)
	}
	defer client.Close()

	remote, err := client.Open(remotePath)
	if err != nil {
		return shellerr.Wrap(shellerr.Io, err, "sftp: open %q for chunk %d", remotePath, task.index)
	}
	defer remote.Close()

	start := time.Now()
	buf := make([]byte, blockSize)
	var chunkTransferred int64

	for chunkTransferred < task.length {
		if err := ctx.Err(); err != nil {
			return err
		}

		want := int64(len(buf))
		if remaining := task.length - chunkTransferred; remaining < want {
			want = remaining
		}

		n, readErr := remote.ReadAt(buf[:want], task.offset+chunkTransferred)
		if n > 0 {
			writeMu.Lock()
			_, writeErr := local.WriteAt(buf[:n], task.offset+chunkTransferred)
			writeMu.Unlock()
			if writeErr != nil {
				return shellerr.Wrap(shellerr.Io, writeErr, "sftp: write chunk %d", task.index)
			}

			chunkTransferred += int64(n)

			progressMu.Lock()
			slot.bytesTransferred = chunkTransferred
			if elapsed := time.Since(start).Seconds(); elapsed > 0 {
				slot.speedBps = float64(chunkTransferred) / elapsed
			}
			progressMu.Unlock()
			reportProgress()
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return shellerr.Wrap(shellerr.Io, readErr, "sftp: read chunk %d", task.index)
		}
	}

	if chunkTransferred != task.length {
		return shellerr.New(shellerr.Io, "sftp: chunk %d short read: got %d of %d bytes", task.index, chunkTransferred, task.length)
	}
	return nil
}
