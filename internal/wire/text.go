// Package wire implements the 496-byte variant-record frame codec of
// spec.md §3/§4.2: fixed-width UTF-16LE text fields and the tagged frame
// variants carried inside each shared-memory block.
package wire

import (
	"encoding/binary"
	"unicode/utf16"

	"golang.org/x/text/encoding/unicode"
)

var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// encodeUTF16 converts a UTF-8 string to its UTF-16LE code units using the
// ecosystem encoder rather than a hand-rolled unicode/utf16 loop.
func encodeUTF16(s string) ([]uint16, error) {
	enc := utf16LE.NewEncoder()
	raw, err := enc.Bytes([]byte(s))
	if err != nil {
		return nil, err
	}
	units := make([]uint16, len(raw)/2)
	for i := range units {
		units[i] = uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
	}
	return units, nil
}

// decodeUTF16 converts UTF-16LE code units back to a UTF-8 string.
func decodeUTF16(units []uint16) (string, error) {
	raw := make([]byte, len(units)*2)
	for i, u := range units {
		raw[2*i] = byte(u)
		raw[2*i+1] = byte(u >> 8)
	}
	dec := utf16LE.NewDecoder()
	out, err := dec.Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// putFixedText writes s into dst (a codeUnits*2-byte field) as UTF-16LE.
// If s is shorter than the field, the following code unit is a zero
// terminator (spec.md §4.2); if s is exactly the field width, no
// terminator is written; if s is longer, it is truncated to fit and the
// field is left unterminated (there is no room for one).
func putFixedText(dst []byte, codeUnits int, s string) error {
	if len(dst) != codeUnits*2 {
		panic("wire: putFixedText: dst length mismatch")
	}
	units, err := encodeUTF16(s)
	if err != nil {
		return err
	}
	n := len(units)
	if n > codeUnits {
		n = codeUnits
	}
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(dst[i*2:i*2+2], units[i])
	}
	if n < codeUnits {
		// zero terminator; remaining bytes are assumed pre-zeroed.
		binary.LittleEndian.PutUint16(dst[n*2:n*2+2], 0)
	}
	return nil
}

// getFixedText reads a codeUnits*2-byte UTF-16LE field, stopping at the
// first zero code unit (or the field end if unterminated).
func getFixedText(src []byte, codeUnits int) (string, error) {
	if len(src) != codeUnits*2 {
		panic("wire: getFixedText: src length mismatch")
	}
	units := make([]uint16, 0, codeUnits)
	for i := 0; i < codeUnits; i++ {
		u := binary.LittleEndian.Uint16(src[i*2 : i*2+2])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return decodeUTF16(units)
}

// splitCodeUnits converts s to UTF-16 code units for multi-block message
// splitting (spec.md §4.2); it does not truncate.
func splitCodeUnits(s string) ([]uint16, error) {
	return encodeUTF16(s)
}

// codeUnitsToString is the inverse of splitCodeUnits, used when
// reassembling a Message plus its MessageExtensions.
func codeUnitsToString(units []uint16) (string, error) {
	return decodeUTF16(units)
}

// utf16Len returns the number of UTF-16 code units s would encode to,
// without allocating the fixed-width text helpers above.
func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}
