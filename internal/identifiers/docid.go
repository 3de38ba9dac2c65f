package identifiers

import (
	"math/rand/v2"
	"strings"
)

// ValidateDocID reports whether s looks like an RG number: after dropping
// everything but digits and X/x, 7 to 9 characters must remain. RG formats
// vary by issuing state, so there is no checksum.
func ValidateDocID(s string) bool {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= '0' && c <= '9') || c == 'X' || c == 'x' {
			n++
		}
	}
	return n >= 7 && n <= 9
}

const docIDCheckChars = "0123456789X"

// GenerateDocID returns a random RG formatted as NN.NNN.NNN-C, where C is a
// digit or X.
func GenerateDocID(rng *rand.Rand) string {
	var b strings.Builder
	b.Grow(12)
	for i := 0; i < 8; i++ {
		switch i {
		case 2, 5:
			b.WriteByte('.')
		}
		b.WriteByte(byte('0' + rng.IntN(10)))
	}
	b.WriteByte('-')
	b.WriteByte(docIDCheckChars[rng.IntN(len(docIDCheckChars))])
	return b.String()
}
