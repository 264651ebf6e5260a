package editor

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/iwoov/shellmaster/internal/logging"
)

var log = logging.For("editor")

// Modified is emitted when a watched local file's mtime advances past what
// the watcher last recorded, meaning the external editor saved it.
type Modified struct {
	SessionID  string
	LocalPath  string
	RemotePath string
}

type watchedFile struct {
	sessionID    string
	remotePath   string
	lastModified time.Time
}

// Watcher tracks the set of local files opened for editing and reports
// Modified events when they change on disk. It watches parent directories
// rather than files directly — fsnotify watches don't deliver per-file
// events for paths that don't exist yet at registration time, and the
// parent is stable across the file's create/write/replace cycle an
// editor performs on save.
//
// Grounded on purpleidea-mgmt/util/recwatch, which
// solves the same non-recursive directory-watch problem with fsnotify;
// simplified here since C9 only ever watches flat parent directories, never
// a recursive subtree.
type Watcher struct {
	mu       sync.Mutex
	fs       *fsnotify.Watcher
	files    map[string]*watchedFile // localPath -> info
	dirRefs  map[string]int          // parent dir -> number of files under it
	events   chan Modified
	done     chan struct{}
	closeErr error
}

// NewWatcher starts the underlying fsnotify watcher and its event loop.
func NewWatcher() (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fs:      fs,
		files:   make(map[string]*watchedFile),
		dirRefs: make(map[string]int),
		events:  make(chan Modified, 16),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Events returns the channel of Modified notifications.
func (w *Watcher) Events() <-chan Modified {
	return w.events
}

// Watch registers localPath for change notification, ensuring its parent
// directory is watched exactly once regardless of how many files under it
// are tracked.
func (w *Watcher) Watch(sessionID, localPath, remotePath string, lastModified time.Time) error {
	dir := parentDir(localPath)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dirRefs[dir] == 0 {
		if err := w.fs.Add(dir); err != nil {
			return err
		}
	}
	w.dirRefs[dir]++
	w.files[localPath] = &watchedFile{sessionID: sessionID, remotePath: remotePath, lastModified: lastModified}
	return nil
}

// RefreshLastModified records mtime (read from disk by the caller, see
// Manager.AfterUpload) as localPath's last-known mtime after a successful
// re-upload, so the next editor save is detected again.
func (w *Watcher) RefreshLastModified(localPath string, mtime time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if wf, ok := w.files[localPath]; ok {
		wf.lastModified = mtime
	}
}

// FileCount returns the number of files currently tracked, across every
// session — used to decide whether the watcher can be dropped entirely.
func (w *Watcher) FileCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.files)
}

// CloseSession unregisters every file belonging to sessionID, removing the
// parent-directory watch once its last file is gone, and returns the local
// paths that were being watched so the caller can delete the temp files.
func (w *Watcher) CloseSession(sessionID string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var removed []string
	for localPath, wf := range w.files {
		if wf.sessionID != sessionID {
			continue
		}
		removed = append(removed, localPath)
		delete(w.files, localPath)

		dir := parentDir(localPath)
		w.dirRefs[dir]--
		if w.dirRefs[dir] <= 0 {
			delete(w.dirRefs, dir)
			if err := w.fs.Remove(dir); err != nil {
				log.Debug().Err(err).Str("dir", dir).Msg("editor: unwatch parent dir")
			}
		}
	}
	return removed
}

// Close stops the event loop and releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fs.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("editor: watcher error")
		}
	}
}

// handleEvent filters for writes/creates and checks the changed path
// against the watched-file map, emitting Modified only when the on-disk
// mtime has actually advanced — this both suppresses duplicate events from
// editors that issue several writes per save and avoids reacting to our
// own download.
func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	w.mu.Lock()
	wf, ok := w.files[ev.Name]
	w.mu.Unlock()
	if !ok {
		return
	}

	mtime, err := statMtime(ev.Name)
	if err != nil {
		return
	}
	if !mtime.After(wf.lastModified) {
		return
	}

	w.mu.Lock()
	wf.lastModified = mtime
	w.mu.Unlock()

	select {
	case w.events <- Modified{SessionID: wf.sessionID, LocalPath: ev.Name, RemotePath: wf.remotePath}:
	case <-w.done:
	}
}
