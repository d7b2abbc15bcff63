package main

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKey is returned when a sendKeys entry names a key that is not
// in the translation table.
var ErrUnknownKey = errors.New("unknown key")

// namedKeys maps symbolic key names to the byte sequences a terminal sends.
// These are the standard xterm encodings.
var namedKeys = map[string]string{
	"Enter":     "\r",
	"Space":     " ",
	"Tab":       "\t",
	"Escape":    "\x1b",
	"Backspace": "\x7f",

	"Home":     "\x1b[H",
	"End":      "\x1b[F",
	"Insert":   "\x1b[2~",
	"Delete":   "\x1b[3~",
	"PageUp":   "\x1b[5~",
	"PageDown": "\x1b[6~",

	"F1":  "\x1bOP",
	"F2":  "\x1bOQ",
	"F3":  "\x1bOR",
	"F4":  "\x1bOS",
	"F5":  "\x1b[15~",
	"F6":  "\x1b[17~",
	"F7":  "\x1b[18~",
	"F8":  "\x1b[19~",
	"F9":  "\x1b[20~",
	"F10": "\x1b[21~",
	"F11": "\x1b[23~",
	"F12": "\x1b[24~",
}

// arrowKeys maps arrow names to their CSI final byte. Modified arrows use
// the xterm "CSI 1;<mod><final>" form.
var arrowKeys = map[string]byte{
	"Up":    'A',
	"Down":  'B',
	"Right": 'C',
	"Left":  'D',
}

// keyBytes translates a single sendKeys entry into the bytes to write to
// the PTY. Plain printable text passes through verbatim; recognized key
// names and C-/S-/A- modifier chords are translated. The second return is
// false when the entry looks like a key name but isn't one we know.
func keyBytes(name string) ([]byte, bool) {
	var ctrl, shift, alt bool

	base := name
peel:
	for {
		switch {
		case strings.HasPrefix(base, "C-") && len(base) > 2:
			ctrl = true
			base = base[2:]
		case strings.HasPrefix(base, "S-") && len(base) > 2:
			shift = true
			base = base[2:]
		case strings.HasPrefix(base, "A-") && len(base) > 2:
			alt = true
			base = base[2:]
		default:
			break peel
		}
	}

	// A bare or dangling modifier ("C-") is a mistake, not text.
	if base == "C-" || base == "S-" || base == "A-" {
		return nil, false
	}

	seq, ok := translateBase(base, ctrl, shift)
	if !ok {
		return nil, false
	}
	if alt {
		// Meta prefixes ESC to whatever the base produces.
		seq = append([]byte{0x1b}, seq...)
	}
	return seq, true
}

func translateBase(base string, ctrl, shift bool) ([]byte, bool) {
	if base == "" {
		return nil, false
	}

	if final, ok := arrowKeys[base]; ok {
		mod := 1
		if shift {
			mod += 1
		}
		if ctrl {
			mod += 4
		}
		if mod == 1 {
			return []byte{0x1b, '[', final}, true
		}
		return []byte(fmt.Sprintf("\x1b[1;%d%c", mod, final)), true
	}

	if seq, ok := namedKeys[base]; ok {
		if ctrl || shift {
			// No modified variants for these in the table.
			return nil, false
		}
		return []byte(seq), true
	}

	runes := []rune(base)

	if ctrl {
		// C-<letter> and C-<symbol> collapse to a single control byte.
		if len(runes) != 1 {
			return nil, false
		}
		c := runes[0]
		switch {
		case c >= 'a' && c <= 'z':
			return []byte{byte(c) - 0x60}, true
		case c >= '@' && c <= '_':
			return []byte{byte(c) & 0x1f}, true
		case c == '?':
			return []byte{0x7f}, true
		default:
			return nil, false
		}
	}

	if shift {
		if len(runes) != 1 {
			return nil, false
		}
		return []byte(strings.ToUpper(base)), true
	}

	// Anything left is either literal text or a misspelled key name.
	// Key names are single CamelCase words ("PageUp", "F13"); ordinary
	// text ("Hello", "echo hi") never has a second capital or digit
	// glued onto a leading capital.
	if looksLikeKeyName(base) {
		return nil, false
	}
	return []byte(base), true
}

// looksLikeKeyName reports whether s has the shape of a symbolic key name:
// a single word starting with an uppercase letter and containing a further
// uppercase letter or digit. "NotAKey" and "F13" qualify; "Hello" and
// "ls -la" do not.
func looksLikeKeyName(s string) bool {
	if s == "" || s[0] < 'A' || s[0] > 'Z' {
		return false
	}
	tail := s[1:]
	hasUpperOrDigit := false
	for i := 0; i < len(tail); i++ {
		c := tail[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			hasUpperOrDigit = true
		case c >= 'a' && c <= 'z':
		default:
			// Spaces or punctuation: plain text.
			return false
		}
	}
	return hasUpperOrDigit
}
