package identifiers

import (
	"math/rand/v2"
	"strings"
)

// ValidateTaxID reports whether s is a valid CPF. Punctuation is ignored;
// the remaining 11 digits must not all be equal and must carry the two
// mod-11 check digits.
func ValidateTaxID(s string) bool {
	digits := StripNonDigits(s)
	if len(digits) != 11 {
		return false
	}
	if strings.Count(digits, digits[:1]) == 11 {
		return false
	}

	var d [11]int
	for i := range digits {
		d[i] = int(digits[i] - '0')
	}
	first, second := taxIDCheckDigits(d[:9])
	return d[9] == first && d[10] == second
}

// GenerateTaxID returns a random valid CPF formatted as NNN.NNN.NNN-CC.
func GenerateTaxID(rng *rand.Rand) string {
	d := make([]int, 9, 11)
	for i := range d {
		d[i] = rng.IntN(10)
	}
	first, second := taxIDCheckDigits(d)
	d = append(d, first, second)

	var b strings.Builder
	b.Grow(14)
	for i, v := range d {
		switch i {
		case 3, 6:
			b.WriteByte('.')
		case 9:
			b.WriteByte('-')
		}
		b.WriteByte(byte('0' + v))
	}
	return b.String()
}

// taxIDCheckDigits computes both CPF check digits from the 9-digit base.
func taxIDCheckDigits(base []int) (int, int) {
	sum := 0
	for i := 0; i < 9; i++ {
		sum += base[i] * (10 - i)
	}
	first := mod11Digit(sum)

	sum = 0
	for i := 0; i < 9; i++ {
		sum += base[i] * (11 - i)
	}
	sum += first * 2
	return first, mod11Digit(sum)
}

func mod11Digit(sum int) int {
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

// StripNonDigits removes all non-digit characters from s.
func StripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
