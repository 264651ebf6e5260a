package sftpstate_test

import (
	"testing"
	"time"

	"github.com/iwoov/shellmaster/internal/sftpstate"
)

func TestFormatPermissions(t *testing.T) {
	cases := []struct {
		name  string
		entry sftpstate.FileEntry
		want  string
	}{
		{
			name:  "file 644",
			entry: sftpstate.FileEntry{Type: sftpstate.File, Permissions: 0o644},
			want:  "-rw-r--r--",
		},
		{
			name:  "dir 755",
			entry: sftpstate.FileEntry{Type: sftpstate.Directory, Permissions: 0o755},
			want:  "drwxr-xr-x",
		},
		{
			name:  "symlink 777",
			entry: sftpstate.FileEntry{Type: sftpstate.Symlink, Permissions: 0o777},
			want:  "lrwxrwxrwx",
		},
		{
			name:  "no permissions",
			entry: sftpstate.FileEntry{Type: sftpstate.File, Permissions: 0},
			want:  "----------",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.entry.FormatPermissions(); got != tc.want {
				t.Errorf("FormatPermissions() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParsePermissionsRoundTrip(t *testing.T) {
	for p := uint32(0); p <= 0o777; p++ {
		entry := sftpstate.FileEntry{Type: sftpstate.File, Permissions: p}
		got := sftpstate.ParsePermissions(entry.FormatPermissions())
		if got != p {
			t.Fatalf("round trip broke at %03o: got %03o", p, got)
		}
	}
}

func TestIsHidden(t *testing.T) {
	if !(sftpstate.FileEntry{Name: ".bashrc"}).IsHidden() {
		t.Error("expected .bashrc to be hidden")
	}
	if (sftpstate.FileEntry{Name: "bashrc"}).IsHidden() {
		t.Error("expected bashrc to not be hidden")
	}
	if (sftpstate.FileEntry{}).IsHidden() {
		t.Error("expected empty name to not be hidden")
	}
}

func TestCachedDirectoryExpiry(t *testing.T) {
	s := sftpstate.New("/home/user")
	s.UpdateCache("/home/user", []sftpstate.FileEntry{{Name: "a"}})
	if !s.IsCacheValid("/home/user") {
		t.Fatal("expected a freshly-updated cache entry to be valid")
	}
	// cacheTTL is 30s; this test only exercises the not-yet-expired path,
	// since sleeping past it would make the suite slow.
	_ = time.Second
}
