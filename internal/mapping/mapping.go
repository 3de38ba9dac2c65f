// Package mapping holds the original→replacement table that makes an
// anonymization reversible, and its canonical serialized form.
//
// A Mapping is sensitive: it contains every original value found in a
// document. It must only leave process memory encrypted (see internal/vault).
package mapping

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned when serialized bytes are not a well-formed mapping.
var ErrMalformed = errors.New("malformed mapping data")

// Category names one of the four mapping tables. The string value is the
// serialized top-level key.
type Category string

// Mapping categories in substitution order.
const (
	Persons Category = "persons"
	TaxIDs  Category = "tax_ids"
	DocIDs  Category = "doc_ids"
	Dates   Category = "dates"
)

// Categories lists every category in substitution order.
var Categories = []Category{Persons, TaxIDs, DocIDs, Dates}

// Mapping is the per-run table of original value → generated replacement,
// one map per category. Keys are unique within a category.
type Mapping struct {
	Persons map[string]string `json:"persons"`
	TaxIDs  map[string]string `json:"tax_ids"`
	DocIDs  map[string]string `json:"doc_ids"`
	Dates   map[string]string `json:"dates"`
}

// Summary counts unique mapped originals per category.
type Summary struct {
	Persons int `json:"persons"`
	TaxIDs  int `json:"tax_ids"`
	DocIDs  int `json:"doc_ids"`
	Dates   int `json:"dates"`
}

// Total returns the sum of all category counts.
func (s Summary) Total() int {
	return s.Persons + s.TaxIDs + s.DocIDs + s.Dates
}

// New returns an empty Mapping with all four tables allocated.
func New() *Mapping {
	return &Mapping{
		Persons: make(map[string]string),
		TaxIDs:  make(map[string]string),
		DocIDs:  make(map[string]string),
		Dates:   make(map[string]string),
	}
}

// Table returns the table for c, or nil for an unknown category.
func (m *Mapping) Table(c Category) map[string]string {
	switch c {
	case Persons:
		return m.Persons
	case TaxIDs:
		return m.TaxIDs
	case DocIDs:
		return m.DocIDs
	case Dates:
		return m.Dates
	}
	return nil
}

// Summary returns the per-category counts.
func (m *Mapping) Summary() Summary {
	return Summary{
		Persons: len(m.Persons),
		TaxIDs:  len(m.TaxIDs),
		DocIDs:  len(m.DocIDs),
		Dates:   len(m.Dates),
	}
}

// Len returns the total number of mapped originals.
func (m *Mapping) Len() int {
	return m.Summary().Total()
}

// Wipe empties every table so the plaintext values become unreachable.
func (m *Mapping) Wipe() {
	for _, c := range Categories {
		clear(m.Table(c))
	}
}

// Equal reports whether m and o hold the same entries.
func (m *Mapping) Equal(o *Mapping) bool {
	for _, c := range Categories {
		a, b := m.Table(c), o.Table(c)
		if len(a) != len(b) {
			return false
		}
		for k, v := range a {
			if w, ok := b[k]; !ok || w != v {
				return false
			}
		}
	}
	return true
}

func (m *Mapping) ensureTables() {
	if m.Persons == nil {
		m.Persons = make(map[string]string)
	}
	if m.TaxIDs == nil {
		m.TaxIDs = make(map[string]string)
	}
	if m.DocIDs == nil {
		m.DocIDs = make(map[string]string)
	}
	if m.Dates == nil {
		m.Dates = make(map[string]string)
	}
}

// Marshal encodes m as canonical UTF-8 JSON: an object with the four
// category keys, each a string→string object with sorted keys.
func Marshal(m *Mapping) ([]byte, error) {
	c := *m
	c.ensureTables()
	data, err := json.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("encoding mapping: %w", err)
	}
	return data, nil
}

// Unmarshal decodes data produced by Marshal. Unknown top-level keys,
// non-object payloads and non-string values yield ErrMalformed. Missing
// categories decode as empty tables.
func Unmarshal(data []byte) (*Mapping, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformed)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()

	var m Mapping
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after mapping", ErrMalformed)
	}
	m.ensureTables()
	return &m, nil
}
