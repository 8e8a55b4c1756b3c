// Package input is the external key producer. It reads a terminal, turns
// keystrokes into remote key codes and writes them to the KEY and MOD slots
// of the shared event buffer.
package input

// Remote key codes. A release is reported as the press code plus
// ReleaseOffset.
const (
	KeyBack        int32 = 0
	KeyUp          int32 = 2
	KeyDown        int32 = 3
	KeyLeft        int32 = 4
	KeyRight       int32 = 5
	KeyOK          int32 = 6
	KeyReplay      int32 = 7
	KeyRewind      int32 = 8
	KeyFastForward int32 = 9
	KeyInfo        int32 = 10
	KeyPlay        int32 = 13

	ReleaseOffset int32 = 100
)

// ModAlt is set in the modifier bits when the key was typed with Alt.
const ModAlt int32 = 1

// Key is a decoded keystroke.
type Key struct {
	Code      int32
	Modifiers int32
}

// Interrupt is decoded from Ctrl-C, which raw mode no longer turns into a
// signal.
var Interrupt = Key{Code: -1}

var plainKeys = map[byte]int32{
	'\r': KeyOK,
	'\n': KeyOK,
	0x7f: KeyBack,
	0x08: KeyBack,
	' ':  KeyPlay,
	'p':  KeyPlay,
	'r':  KeyReplay,
	'i':  KeyInfo,
	'*':  KeyInfo,
	',':  KeyRewind,
	'<':  KeyRewind,
	'.':  KeyFastForward,
	'>':  KeyFastForward,
	'h':  KeyLeft,
	'j':  KeyDown,
	'k':  KeyUp,
	'l':  KeyRight,
}

var csiKeys = map[byte]int32{
	'A': KeyUp,
	'B': KeyDown,
	'C': KeyRight,
	'D': KeyLeft,
}

type decodeState int

const (
	stateGround decodeState = iota
	stateEscape             // saw ESC
	stateCSI                // saw ESC [ or ESC O
)

// Decoder turns raw terminal bytes into keys. Escape sequences may be split
// across Feed calls; Flush ends a burst of input, turning a lone ESC into Back.
type Decoder struct {
	state decodeState
	param []byte
}

// Feed decodes b and returns the keys it completes. Bytes that map to no
// remote key are dropped.
func (d *Decoder) Feed(b []byte) []Key {
	var keys []Key
	for _, c := range b {
		if k, ok := d.feedByte(c); ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// Pending reports whether the input so far ends in an ESC that may still
// start a sequence.
func (d *Decoder) Pending() bool {
	return d.state == stateEscape
}

// Flush completes a pending lone ESC.
func (d *Decoder) Flush() []Key {
	if d.state == stateEscape {
		d.state = stateGround
		return []Key{{Code: KeyBack}}
	}
	return nil
}

func (d *Decoder) feedByte(c byte) (Key, bool) {
	switch d.state {
	case stateEscape:
		switch c {
		case '[', 'O':
			d.state = stateCSI
			d.param = d.param[:0]
			return Key{}, false
		case 0x1b:
			// ESC ESC: the first one was a lone ESC
			return Key{Code: KeyBack}, true
		}
		d.state = stateGround
		if code, ok := lookupPlain(c); ok {
			return Key{Code: code, Modifiers: ModAlt}, true
		}
		return Key{}, false

	case stateCSI:
		// parameters and intermediates until a final byte in 0x40..0x7e
		if c < 0x40 || c > 0x7e {
			d.param = append(d.param, c)
			return Key{}, false
		}
		d.state = stateGround
		code, ok := csiKeys[c]
		if !ok {
			return Key{}, false
		}
		mods := int32(0)
		// xterm encodes Alt as modifier parameter 3, e.g. ESC [ 1 ; 3 A
		if len(d.param) >= 3 && d.param[len(d.param)-2] == ';' && d.param[len(d.param)-1] == '3' {
			mods = ModAlt
		}
		return Key{Code: code, Modifiers: mods}, true
	}

	switch c {
	case 0x1b:
		d.state = stateEscape
		return Key{}, false
	case 0x03:
		return Interrupt, true
	}
	if code, ok := lookupPlain(c); ok {
		return Key{Code: code}, true
	}
	return Key{}, false
}

func lookupPlain(c byte) (int32, bool) {
	if c >= 'A' && c <= 'Z' {
		c += 'a' - 'A'
	}
	code, ok := plainKeys[c]
	return code, ok
}
