package pty

import "unicode/utf8"

// Key identifies a logical keystroke from the emulator's keyboard layer,
// independent of the GUI toolkit that captured it.
type Key int

const (
	KeyEnter Key = iota
	KeyBackspace
	KeyTab
	KeyEscape
	KeyUp
	KeyDown
	KeyRight
	KeyLeft
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyInsert
	KeyDelete
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
	KeyRune
)

// KeyEvent is a single captured keystroke: which logical key, the rune
// for KeyRune, and which modifiers (Ctrl and Alt) were held.
type KeyEvent struct {
	Key  Key
	Rune rune
	Ctrl bool
	Alt  bool
}

var namedKeyBytes = map[Key][]byte{
	KeyEnter:     {0x0D},
	KeyBackspace: {0x7F},
	KeyTab:       {0x09},
	KeyEscape:    {0x1B},
	KeyUp:        {0x1B, '[', 'A'},
	KeyDown:      {0x1B, '[', 'B'},
	KeyRight:     {0x1B, '[', 'C'},
	KeyLeft:      {0x1B, '[', 'D'},
	KeyHome:      {0x1B, '[', 'H'},
	KeyEnd:       {0x1B, '[', 'F'},
	KeyPageUp:    {0x1B, '[', '5', '~'},
	KeyPageDown:  {0x1B, '[', '6', '~'},
	KeyInsert:    {0x1B, '[', '2', '~'},
	KeyDelete:    {0x1B, '[', '3', '~'},
	KeyF1:        {0x1B, 'O', 'P'},
	KeyF2:        {0x1B, 'O', 'Q'},
	KeyF3:        {0x1B, 'O', 'R'},
	KeyF4:        {0x1B, 'O', 'S'},
	KeyF5:        {0x1B, '[', '1', '5', '~'},
	KeyF6:        {0x1B, '[', '1', '7', '~'},
	KeyF7:        {0x1B, '[', '1', '8', '~'},
	KeyF8:        {0x1B, '[', '1', '9', '~'},
	KeyF9:        {0x1B, '[', '2', '0', '~'},
	KeyF10:       {0x1B, '[', '2', '1', '~'},
	KeyF11:       {0x1B, '[', '2', '3', '~'},
	KeyF12:       {0x1B, '[', '2', '4', '~'},
}

// KeyToBytes maps a captured keystroke to the byte sequence to write on
// the shell channel. Ctrl applies only to KeyRune, masking the rune's low
// byte to the 0x1F control range (so Ctrl-C is 0x03); it is ignored for
// named keys. Alt prefixes whatever bytes the key would have produced
// without Alt with ESC.
func KeyToBytes(ev KeyEvent) []byte {
	var base []byte
	if ev.Key == KeyRune {
		if ev.Ctrl {
			base = []byte{byte(ev.Rune) & 0x1F}
		} else {
			buf := make([]byte, utf8.UTFMax)
			n := utf8.EncodeRune(buf, ev.Rune)
			base = append([]byte(nil), buf[:n]...)
		}
	} else if bytes, ok := namedKeyBytes[ev.Key]; ok {
		base = append([]byte(nil), bytes...)
	}

	if ev.Alt {
		return append([]byte{0x1B}, base...)
	}
	return base
}
