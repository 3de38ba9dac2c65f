// Package identifiers recognizes, validates and generates the structured
// identifiers handled by Lethe: CPF tax IDs, RG document numbers and
// birth dates.
//
// Recognition is regex-driven (patterns come from the embedded
// identifiers_br.yaml, optionally layered with an operator file) followed by
// hard validation gates. Matches that fail a gate are dropped without error;
// extraction favours precision over recall.
package identifiers

import (
	"fmt"
	"time"

	"github.com/dativo-io/lethe/patterns"
)

// Match is one recognized identifier and its byte offsets in the source text.
type Match struct {
	Value string
	Start int
	End   int
}

// DateMatch is a recognized birth date together with its parsed value.
type DateMatch struct {
	Match
	Date time.Time
}

// Extractor scans text with a compiled recognizer set.
type Extractor struct {
	patterns []Pattern
	now      func() time.Time
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*extractorConfig)

type extractorConfig struct {
	patternFile string
	now         func() time.Time
}

// WithPatternFile layers recognizers from a YAML file over the embedded
// defaults, matching on recognizer name. A missing file is skipped.
func WithPatternFile(path string) ExtractorOption {
	return func(c *extractorConfig) { c.patternFile = path }
}

// WithClock overrides the clock used by the birth-date age filter.
func WithClock(now func() time.Time) ExtractorOption {
	return func(c *extractorConfig) { c.now = now }
}

// DefaultRecognizers returns the recognizers parsed from the embedded
// identifiers_br.yaml.
func DefaultRecognizers() ([]RecognizerConfig, error) {
	rf, err := ParseRecognizerFile(patterns.IdentifiersBRYAML())
	if err != nil {
		return nil, fmt.Errorf("parsing embedded identifier patterns: %w", err)
	}
	return rf.Recognizers, nil
}

// NewExtractor builds an Extractor from the embedded defaults plus options.
func NewExtractor(opts ...ExtractorOption) (*Extractor, error) {
	cfg := extractorConfig{now: time.Now}
	for _, o := range opts {
		o(&cfg)
	}

	defaults, err := DefaultRecognizers()
	if err != nil {
		return nil, err
	}

	var extra []RecognizerConfig
	if cfg.patternFile != "" {
		rf, err := LoadRecognizerFile(cfg.patternFile)
		if err != nil {
			return nil, fmt.Errorf("loading pattern file: %w", err)
		}
		if rf != nil {
			extra = rf.Recognizers
		}
	}

	compiled, err := CompilePatterns(MergeRecognizers(defaults, extra))
	if err != nil {
		return nil, fmt.Errorf("compiling patterns: %w", err)
	}
	return &Extractor{patterns: compiled, now: cfg.now}, nil
}

var defaultExtractor *Extractor

func init() {
	e, err := NewExtractor()
	if err != nil {
		panic(fmt.Sprintf("loading embedded identifier patterns: %v", err))
	}
	defaultExtractor = e
}

// Default returns the extractor built from the embedded recognizers.
func Default() *Extractor { return defaultExtractor }

// ExtractTaxIDs finds valid CPFs using the embedded recognizers.
func ExtractTaxIDs(text string) []Match { return defaultExtractor.TaxIDs(text) }

// ExtractDocIDs finds RG-formatted numbers using the embedded recognizers.
func ExtractDocIDs(text string) []Match { return defaultExtractor.DocIDs(text) }

// ExtractBirthDates finds plausible birth dates using the embedded recognizers.
func ExtractBirthDates(text string) []DateMatch { return defaultExtractor.BirthDates(text) }

// TaxIDs returns every checksum-valid CPF in text, deduplicated by its
// digits-only value. The first occurrence keeps its original formatting.
func (e *Extractor) TaxIDs(text string) []Match {
	seen := make(map[string]bool)
	var out []Match
	for _, m := range e.scan(text, EntityTaxID) {
		key := StripNonDigits(m.Value)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}

// DocIDs returns every RG-formatted number in text. Values are not
// normalized, so "12.345.678-9" and its unpunctuated twin stay distinct.
func (e *Extractor) DocIDs(text string) []Match {
	return e.scan(text, EntityDocID)
}

// BirthDates returns date matches that parse strictly against their pattern's
// layout and pass the age plausibility filter.
func (e *Extractor) BirthDates(text string) []DateMatch {
	now := e.now()
	var out []DateMatch
	for _, p := range e.patterns {
		if p.Entity != EntityDate {
			continue
		}
		for _, loc := range p.Regex.FindAllStringIndex(text, -1) {
			value := text[loc[0]:loc[1]]
			d, err := time.Parse(p.Layout, value)
			if err != nil {
				continue
			}
			if !plausibleBirthDate(d, now) {
				continue
			}
			out = append(out, DateMatch{
				Match: Match{Value: value, Start: loc[0], End: loc[1]},
				Date:  d,
			})
		}
	}
	return out
}

// scan runs every pattern for entity in declaration order and keeps matches
// that pass the recognizer's validation gate.
func (e *Extractor) scan(text, entity string) []Match {
	var out []Match
	for _, p := range e.patterns {
		if p.Entity != entity {
			continue
		}
		for _, loc := range p.Regex.FindAllStringIndex(text, -1) {
			value := text[loc[0]:loc[1]]
			if !passesGate(p.Validation, value) {
				continue
			}
			out = append(out, Match{Value: value, Start: loc[0], End: loc[1]})
		}
	}
	return out
}

func passesGate(validation, value string) bool {
	switch validation {
	case ValidationCPF:
		return ValidateTaxID(value)
	case ValidationRG:
		return ValidateDocID(value)
	default:
		return true
	}
}
