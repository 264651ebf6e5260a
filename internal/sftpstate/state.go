package sftpstate

import (
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const dirCacheSize = 256

// State is one session's SFTP view. Every exported method is synchronous
// and takes the internal mutex; callers observe the revision counters to
// detect changes cheaply (sample (revision, snapshot), compare-equal).
type State struct {
	mu sync.Mutex

	currentPath string
	homeDir     string
	showHidden  bool

	fileList         []FileEntry
	fileListRevision uint64

	expandedDirs         map[string]struct{}
	expandedDirsRevision uint64

	dirCache         *lru.Cache[string, CachedDirectory]
	dirCacheRevision uint64

	hist history

	loading bool
	err     error

	userCache         map[int]string
	userCacheRevision uint64

	groupCache         map[int]string
	groupCacheRevision uint64
}

// New creates a State rooted at homeDir, with hidden files shown by
// default.
func New(homeDir string) *State {
	cache, _ := lru.New[string, CachedDirectory](dirCacheSize)
	return &State{
		currentPath:  homeDir,
		homeDir:      homeDir,
		showHidden:   true,
		expandedDirs: make(map[string]struct{}),
		dirCache:     cache,
		userCache:    make(map[int]string),
		groupCache:   make(map[int]string),
	}
}

func (s *State) CurrentPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPath
}

func (s *State) setPathInternal(path string) {
	s.currentPath = path
	s.err = nil
}

// NavigateTo moves to path, recording the previous path in history unless
// it is unchanged.
func (s *State) NavigateTo(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentPath != path {
		s.hist.push(s.currentPath)
	}
	s.setPathInternal(path)
}

// GoBack navigates to the previous history entry, if any.
func (s *State) GoBack() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.hist.goBack(s.currentPath)
	if !ok {
		return false
	}
	s.setPathInternal(prev)
	return true
}

// GoForward navigates to the next history entry, if any.
func (s *State) GoForward() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := s.hist.goForward(s.currentPath)
	if !ok {
		return false
	}
	s.setPathInternal(next)
	return true
}

// GoUp navigates to the parent of the current path. A no-op at "/".
func (s *State) GoUp() bool {
	s.mu.Lock()
	current := s.currentPath
	s.mu.Unlock()

	parent := parentPath(current)
	if parent == current {
		return false
	}
	s.NavigateTo(parent)
	return true
}

// GoHome navigates to the home directory.
func (s *State) GoHome() {
	s.mu.Lock()
	home, current := s.homeDir, s.currentPath
	s.mu.Unlock()
	if current != home {
		s.NavigateTo(home)
	}
}

// Refresh invalidates the cache entry for the current path.
func (s *State) Refresh() {
	s.mu.Lock()
	path := s.currentPath
	s.mu.Unlock()
	s.InvalidateCache(path)
}

func (s *State) CanGoBack() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.canGoBack()
}

func (s *State) CanGoForward() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.canGoForward()
}

func (s *State) CanGoUp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPath != "/"
}

// IsCacheValid reports whether path has an unexpired cache entry.
func (s *State) IsCacheValid(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cached, ok := s.dirCache.Get(path)
	return ok && !cached.expired()
}

// GetCachedEntries returns the cached entries for path, if present and
// not expired.
func (s *State) GetCachedEntries(path string) ([]FileEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cached, ok := s.dirCache.Get(path)
	if !ok || cached.expired() {
		return nil, false
	}
	return cached.Entries, true
}

// UpdateCache stores entries for path and bumps the cache revision.
func (s *State) UpdateCache(path string, entries []FileEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirCache.Add(path, newCachedDirectory(entries))
	s.dirCacheRevision++
}

// InvalidateCache removes the cache entry for path, if any.
func (s *State) InvalidateCache(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirCache.Remove(path) {
		s.dirCacheRevision++
	}
}

// ClearCache empties the directory cache.
func (s *State) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirCache.Len() > 0 {
		s.dirCache.Purge()
		s.dirCacheRevision++
	}
}

// UpdateFileList replaces the current file list, filtering hidden entries
// when show_hidden is false.
func (s *State) UpdateFileList(entries []FileEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileList = filterHidden(entries, s.showHidden)
	s.fileListRevision++
}

func filterHidden(entries []FileEntry, showHidden bool) []FileEntry {
	if showHidden {
		return entries
	}
	visible := make([]FileEntry, 0, len(entries))
	for _, e := range entries {
		if !e.IsHidden() {
			visible = append(visible, e)
		}
	}
	return visible
}

// FileList returns the current file list.
func (s *State) FileList() []FileEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileList
}

// RemoveFileFromList pops the entry at path for an optimistic delete,
// returning its index so a failed delete can restore it with
// RestoreFileToList.
func (s *State) RemoveFileFromList(path string) (int, FileEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.fileList {
		if e.Path == path {
			entry := e
			s.fileList = append(s.fileList[:i], s.fileList[i+1:]...)
			s.fileListRevision++
			return i, entry, true
		}
	}
	return 0, FileEntry{}, false
}

// RestoreFileToList re-inserts entry at index (clamped to the list's
// current length), used to roll back a failed delete.
func (s *State) RestoreFileToList(index int, entry FileEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index > len(s.fileList) {
		index = len(s.fileList)
	}
	s.fileList = append(s.fileList, FileEntry{})
	copy(s.fileList[index+1:], s.fileList[index:])
	s.fileList[index] = entry
	s.fileListRevision++
}

// ToggleShowHidden flips show_hidden and, if the current path has a
// cached listing, re-applies the filter from it.
func (s *State) ToggleShowHidden() {
	s.mu.Lock()
	s.showHidden = !s.showHidden
	path := s.currentPath
	cached, ok := s.dirCache.Get(path)
	s.mu.Unlock()

	if ok && !cached.expired() {
		s.UpdateFileList(cached.Entries)
	}
}

func (s *State) ExpandDir(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expandedDirs[path]; !ok {
		s.expandedDirs[path] = struct{}{}
		s.expandedDirsRevision++
	}
}

func (s *State) CollapseDir(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expandedDirs[path]; ok {
		delete(s.expandedDirs, path)
		s.expandedDirsRevision++
	}
}

// ToggleExpand flips path's expanded state and returns the new state.
func (s *State) ToggleExpand(path string) bool {
	s.mu.Lock()
	_, expanded := s.expandedDirs[path]
	s.mu.Unlock()
	if expanded {
		s.CollapseDir(path)
		return false
	}
	s.ExpandDir(path)
	return true
}

func (s *State) IsExpanded(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.expandedDirs[path]
	return ok
}

// ExpandToPath expands the root and every ancestor segment of path, so a
// tree view can reveal it.
func (s *State) ExpandToPath(path string) {
	s.ExpandDir("/")
	var current strings.Builder
	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			continue
		}
		current.WriteByte('/')
		current.WriteString(segment)
		s.ExpandDir(current.String())
	}
}

func (s *State) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = loading
}

func (s *State) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *State) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	s.loading = false
}

func (s *State) Error() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *State) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
}

func (s *State) SetHomeDir(home string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.homeDir = home
}

// ParsePasswd parses /etc/passwd-formatted text (username:x:uid:gid:...)
// into the uid -> username cache.
func (s *State) ParsePasswd(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range strings.Split(content, "\n") {
		parts := strings.Split(line, ":")
		if len(parts) < 3 {
			continue
		}
		if uid, err := strconv.Atoi(parts[2]); err == nil {
			s.userCache[uid] = parts[0]
		}
	}
	s.userCacheRevision++
}

// ParseGroup parses /etc/group-formatted text (groupname:x:gid:members)
// into the gid -> groupname cache.
func (s *State) ParseGroup(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range strings.Split(content, "\n") {
		parts := strings.Split(line, ":")
		if len(parts) < 3 {
			continue
		}
		if gid, err := strconv.Atoi(parts[2]); err == nil {
			s.groupCache[gid] = parts[0]
		}
	}
	s.groupCacheRevision++
}

// GetUsername resolves uid from the cache, falling back to "uid-<n>".
func (s *State) GetUsername(uid int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name, ok := s.userCache[uid]; ok {
		return name
	}
	return "uid-" + strconv.Itoa(uid)
}

// GetGroupname resolves gid from the cache, falling back to "gid-<n>".
func (s *State) GetGroupname(gid int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name, ok := s.groupCache[gid]; ok {
		return name
	}
	return "gid-" + strconv.Itoa(gid)
}

// FormatOwner renders "user:group", substituting "-" for an absent uid or
// gid.
func (s *State) FormatOwner(uid, gid *int) string {
	user := "-"
	if uid != nil {
		user = s.GetUsername(*uid)
	}
	group := "-"
	if gid != nil {
		group = s.GetGroupname(*gid)
	}
	return user + ":" + group
}

// Revisions is a snapshot of every revision counter, for an observer to
// compare against a previously sampled value.
type Revisions struct {
	FileList     uint64
	ExpandedDirs uint64
	DirCache     uint64
	UserCache    uint64
	GroupCache   uint64
}

func (s *State) Revisions() Revisions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Revisions{
		FileList:     s.fileListRevision,
		ExpandedDirs: s.expandedDirsRevision,
		DirCache:     s.dirCacheRevision,
		UserCache:    s.userCacheRevision,
		GroupCache:   s.groupCacheRevision,
	}
}

// parentPath returns the parent of a posix-style absolute path. The
// parent of "/" is "/" (a no-op).
func parentPath(path string) string {
	if path == "/" || path == "" {
		return "/"
	}
	trimmed := strings.TrimRight(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx <= 0 {
		return "/"
	}
	return trimmed[:idx]
}
