package keymap

import "strings"

// RepeatDelayMs is how long a key must be held before auto-repeat starts.
const RepeatDelayMs = 400

// RepeatIntervalMs is the interval between repeated sends once repeat has
// started.
const RepeatIntervalMs = 30

// EncodeKey converts a key symbol (as bubbletea/bubbles reports it,
// possibly with "ctrl+"/"shift+"/"alt+" modifier prefixes) into the byte
// sequence a focused terminal's PTY should receive, per core spec §4.6.
// Returns nil if the key is a modifier-only press (suppressed) or
// otherwise produces no bytes.
func EncodeKey(keySym string) []byte {
	ctrl := false
	sym := keySym
	for {
		switch {
		case strings.HasPrefix(sym, "ctrl+"):
			ctrl = true
			sym = sym[len("ctrl+"):]
		case strings.HasPrefix(sym, "shift+"):
			sym = sym[len("shift+"):]
		case strings.HasPrefix(sym, "alt+"):
			// Alt is forwarded as an ESC prefix ahead of the base
			// sequence, matching common terminal emulator convention.
			rest := EncodeKey(sym[len("alt+"):])
			if rest == nil {
				return nil
			}
			return append([]byte{0x1B}, rest...)
		default:
			goto resolved
		}
	}
resolved:

	if ctrl {
		if b, ok := ctrlByte(sym); ok {
			return []byte{b}
		}
	}

	switch sym {
	case "enter", "return":
		return []byte{0x0D}
	case "backspace":
		return []byte{0x7F}
	case "tab":
		return []byte{0x09}
	case "esc", "escape":
		return []byte{0x1B}
	case "up":
		return []byte("\x1B[A")
	case "down":
		return []byte("\x1B[B")
	case "right":
		return []byte("\x1B[C")
	case "left":
		return []byte("\x1B[D")
	case "home":
		return []byte("\x1B[H")
	case "end":
		return []byte("\x1B[F")
	case "pgup":
		return []byte("\x1B[5~")
	case "pgdown":
		return []byte("\x1B[6~")
	case "insert":
		return []byte("\x1B[2~")
	case "delete":
		return []byte("\x1B[3~")
	case "f1":
		return []byte("\x1BOP")
	case "f2":
		return []byte("\x1BOQ")
	case "f3":
		return []byte("\x1BOR")
	case "f4":
		return []byte("\x1BOS")
	case "f5":
		return []byte("\x1B[15~")
	case "f6":
		return []byte("\x1B[17~")
	case "f7":
		return []byte("\x1B[18~")
	case "f8":
		return []byte("\x1B[19~")
	case "f9":
		return []byte("\x1B[20~")
	case "f10":
		return []byte("\x1B[21~")
	case "f11":
		return []byte("\x1B[23~")
	case "f12":
		return []byte("\x1B[24~")
	case "shift", "ctrl", "alt", "super", "capslock", "numlock", "scrolllock":
		return nil
	}

	if len(sym) == 1 {
		return []byte(sym)
	}
	return nil
}

// ctrlByte maps a lowercased letter (or bracket punctuation) pressed
// alongside Ctrl to its C0 control byte.
func ctrlByte(sym string) (byte, bool) {
	if len(sym) == 1 {
		c := sym[0]
		switch {
		case c >= 'a' && c <= 'z':
			return c - 'a' + 1, true
		case c >= 'A' && c <= 'Z':
			return c - 'A' + 1, true
		case c == '[':
			return 0x1B, true
		case c == '\\':
			return 0x1C, true
		case c == ']':
			return 0x1D, true
		case c == '^':
			return 0x1E, true
		case c == '_':
			return 0x1F, true
		}
	}
	return 0, false
}
