package pty_test

import (
	"bytes"
	"testing"

	"github.com/iwoov/shellmaster/internal/pty"
)

func TestKeyToBytesPlainLetter(t *testing.T) {
	got := pty.KeyToBytes(pty.KeyEvent{Key: pty.KeyRune, Rune: 'x'})
	if !bytes.Equal(got, []byte{'x'}) {
		t.Fatalf("got %v, want [x]", got)
	}
}

func TestKeyToBytesCtrlLetter(t *testing.T) {
	got := pty.KeyToBytes(pty.KeyEvent{Key: pty.KeyRune, Rune: 'x', Ctrl: true})
	want := []byte{'x' & 0x1F}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	// Ctrl-C is the commonly cited case: 0x03.
	gotC := pty.KeyToBytes(pty.KeyEvent{Key: pty.KeyRune, Rune: 'c', Ctrl: true})
	if !bytes.Equal(gotC, []byte{0x03}) {
		t.Fatalf("ctrl-c = %v, want [0x03]", gotC)
	}
}

func TestKeyToBytesAltLetter(t *testing.T) {
	got := pty.KeyToBytes(pty.KeyEvent{Key: pty.KeyRune, Rune: 'x', Alt: true})
	want := []byte{0x1B, 'x'}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestKeyToBytesNamedKeys(t *testing.T) {
	cases := []struct {
		key  pty.Key
		want []byte
	}{
		{pty.KeyEnter, []byte{0x0D}},
		{pty.KeyBackspace, []byte{0x7F}},
		{pty.KeyTab, []byte{0x09}},
		{pty.KeyEscape, []byte{0x1B}},
		{pty.KeyUp, []byte{0x1B, '[', 'A'}},
		{pty.KeyDown, []byte{0x1B, '[', 'B'}},
		{pty.KeyRight, []byte{0x1B, '[', 'C'}},
		{pty.KeyLeft, []byte{0x1B, '[', 'D'}},
		{pty.KeyHome, []byte{0x1B, '[', 'H'}},
		{pty.KeyEnd, []byte{0x1B, '[', 'F'}},
		{pty.KeyPageUp, []byte{0x1B, '[', '5', '~'}},
		{pty.KeyPageDown, []byte{0x1B, '[', '6', '~'}},
		{pty.KeyInsert, []byte{0x1B, '[', '2', '~'}},
		{pty.KeyDelete, []byte{0x1B, '[', '3', '~'}},
		{pty.KeyF1, []byte{0x1B, 'O', 'P'}},
		{pty.KeyF4, []byte{0x1B, 'O', 'S'}},
		{pty.KeyF5, []byte{0x1B, '[', '1', '5', '~'}},
		{pty.KeyF12, []byte{0x1B, '[', '2', '4', '~'}},
	}
	for _, c := range cases {
		got := pty.KeyToBytes(pty.KeyEvent{Key: c.key})
		if !bytes.Equal(got, c.want) {
			t.Errorf("key %v: got %v, want %v", c.key, got, c.want)
		}
	}
}

func TestKeyToBytesUTF8Rune(t *testing.T) {
	got := pty.KeyToBytes(pty.KeyEvent{Key: pty.KeyRune, Rune: '€'})
	want := []byte("€")
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
