package extract

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeText converts raw bytes to a string. Valid UTF-8 (with or without a
// BOM) is used as is. Otherwise the bytes are read as Windows-1252, the
// usual encoding of Brazilian office documents, and as ISO-8859-1 when they
// use a byte Windows-1252 leaves undefined. ISO-8859-1 maps every byte, so
// decoding never fails.
func DecodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(bytes.TrimPrefix(data, utf8BOM))
	}
	if !hasUndefinedCP1252(data) {
		if out, err := charmap.Windows1252.NewDecoder().Bytes(data); err == nil {
			return string(out)
		}
	}
	// ISO-8859-1 assigns all 256 byte values, so this cannot fail.
	out, _ := charmap.ISO8859_1.NewDecoder().Bytes(data)
	return string(out)
}

// hasUndefinedCP1252 reports whether data holds one of the five byte values
// with no Windows-1252 assignment.
func hasUndefinedCP1252(data []byte) bool {
	for _, b := range data {
		switch b {
		case 0x81, 0x8D, 0x8F, 0x90, 0x9D:
			return true
		}
	}
	return false
}
