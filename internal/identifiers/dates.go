package identifiers

import (
	"math/rand/v2"
	"strings"
	"time"
)

// MaxPlausibleAge bounds the implied age of an extracted birth date.
const MaxPlausibleAge = 120

var (
	adultDateStart = time.Date(1950, time.January, 1, 0, 0, 0, 0, time.UTC)
	adultDateEnd   = time.Date(2006, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// AdultDateRange returns the inclusive bounds used by GenerateAdultDate.
func AdultDateRange() (time.Time, time.Time) {
	return adultDateStart, adultDateEnd
}

// plausibleBirthDate is the age filter for extracted dates: the implied age
// (current year minus birth year) must lie in [0, MaxPlausibleAge].
func plausibleBirthDate(d, now time.Time) bool {
	age := now.Year() - d.Year()
	return age >= 0 && age <= MaxPlausibleAge
}

// DateSeparator returns the separator used in a DD?MM?YYYY string: '/', '-'
// or '.' (the fallback).
func DateSeparator(s string) byte {
	switch {
	case strings.Contains(s, "/"):
		return '/'
	case strings.Contains(s, "-"):
		return '-'
	default:
		return '.'
	}
}

// GenerateAdultDate returns a uniformly random date between 1950-01-01 and
// 2006-12-31 inclusive, formatted DD?MM?YYYY with the separator of original.
func GenerateAdultDate(rng *rand.Rand, original string) string {
	days := int(adultDateEnd.Sub(adultDateStart).Hours() / 24)
	d := adultDateStart.AddDate(0, 0, rng.IntN(days+1))

	sep := string(DateSeparator(original))
	return d.Format("02" + sep + "01" + sep + "2006")
}
