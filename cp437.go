package zip

import (
	"errors"
	"strings"
	"sync"
)

// errCP437Encode is returned when a string contains a rune that has no CP437 representation.
var errCP437Encode = errors.New("zip: string cannot be encoded as CP-437")

// cp437Table maps CP-437 byte values 0x00-0xFF to their Unicode code points.
// Entry 0x00 maps to U+0000; entries 0x01-0x1F use the original IBM PC
// display glyphs for control codes (as interpreted by virtually every ZIP
// tool), not the C0 control characters themselves.
var cp437Table = [256]rune{
	'\x00', '☺', '☻', '♥', '♦', '♣', '♠', '•',
	'◘', '○', '◙', '♂', '♀', '♪', '♫', '☼',
	'►', '◄', '↕', '‼', '¶', '§', '▬', '↨',
	'↑', '↓', '→', '←', '∟', '↔', '▲', '▼',
	' ', '!', '"', '#', '$', '%', '&', '\'',
	'(', ')', '*', '+', ',', '-', '.', '/',
	'0', '1', '2', '3', '4', '5', '6', '7',
	'8', '9', ':', ';', '<', '=', '>', '?',
	'@', 'A', 'B', 'C', 'D', 'E', 'F', 'G',
	'H', 'I', 'J', 'K', 'L', 'M', 'N', 'O',
	'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W',
	'X', 'Y', 'Z', '[', '\\', ']', '^', '_',
	'`', 'a', 'b', 'c', 'd', 'e', 'f', 'g',
	'h', 'i', 'j', 'k', 'l', 'm', 'n', 'o',
	'p', 'q', 'r', 's', 't', 'u', 'v', 'w',
	'x', 'y', 'z', '{', '|', '}', '~', '⌂',
	'Ç', 'ü', 'é', 'â', 'ä', 'à', 'å', 'ç',
	'ê', 'ë', 'è', 'ï', 'î', 'ì', 'Ä', 'Å',
	'É', 'æ', 'Æ', 'ô', 'ö', 'ò', 'û', 'ù',
	'ÿ', 'Ö', 'Ü', '¢', '£', '¥', '₧', 'ƒ',
	'á', 'í', 'ó', 'ú', 'ñ', 'Ñ', 'ª', 'º',
	'¿', '⌐', '¬', '½', '¼', '¡', '«', '»',
	'░', '▒', '▓', '│', '┤', '╡', '╢', '╖',
	'╕', '╣', '║', '╗', '╝', '╜', '╛', '┐',
	'└', '┴', '┬', '├', '─', '┼', '╞', '╟',
	'╚', '╔', '╩', '╦', '╠', '═', '╬', '╧',
	'╨', '╤', '╥', '╙', '╘', '╒', '╓', '╫',
	'╪', '┘', '┌', '█', '▄', '▌', '▐', '▀',
	'α', 'ß', 'Γ', 'π', 'Σ', 'σ', 'µ', 'τ',
	'Φ', 'Θ', 'Ω', 'δ', '∞', 'φ', 'ε', '∩',
	'≡', '±', '≥', '≤', '⌠', '⌡', '÷', '≈',
	'°', '∙', '·', '√', 'ⁿ', '²', '■', ' ',
}

// cp437ReverseTable maps a Unicode rune back to its CP-437 byte value. It is
// built lazily on first use of cp437Encode for a string outside the
// printable-ASCII fast path; cp437ReverseTableOnce guards that build since
// multiple Writers may call cp437Encode concurrently from different
// goroutines.
var (
	cp437ReverseTable     map[rune]byte
	cp437ReverseTableOnce sync.Once
)

func buildCP437ReverseTable() map[rune]byte {
	m := make(map[rune]byte, 256)
	for b, r := range cp437Table {
		if _, ok := m[r]; !ok {
			m[r] = byte(b)
		}
	}
	return m
}

// cp437Decode maps bytes b[start:end] through the CP-437 table. It never fails.
func cp437Decode(b []byte, start, end int) string {
	var sb strings.Builder
	sb.Grow(end - start)
	for _, c := range b[start:end] {
		sb.WriteRune(cp437Table[c])
	}
	return sb.String()
}

// cp437Encode maps s to CP-437 bytes. Pure printable ASCII (U+0020..U+007E)
// takes a fast path that is byte-identical to UTF-8. Any rune outside CP-437's
// repertoire causes an error.
func cp437Encode(s string) ([]byte, error) {
	isASCII := true
	for _, r := range s {
		if r < 0x20 || r > 0x7E {
			isASCII = false
			break
		}
	}
	if isASCII {
		return []byte(s), nil
	}

	cp437ReverseTableOnce.Do(func() {
		cp437ReverseTable = buildCP437ReverseTable()
	})

	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := cp437ReverseTable[r]
		if !ok {
			return nil, errCP437Encode
		}
		out = append(out, b)
	}
	return out, nil
}
