// Package detector finds the sensitive entities Lethe anonymizes.
//
// Person names come from an injected PersonDetector (an NER sidecar, a
// gazetteer, or a test stub). CPFs, RGs and birth dates come from the regex
// recognizers in internal/identifiers. A missing or unready PersonDetector is
// a configuration error reported before any detection runs: skipping person
// detection would silently leave names in "anonymized" output.
package detector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/dativo-io/lethe/internal/identifiers"
	letheotel "github.com/dativo-io/lethe/internal/otel"
)

var tracer = letheotel.Tracer("github.com/dativo-io/lethe/internal/detector")

// ErrDetectorUnavailable is returned when the person-name capability is
// missing or misconfigured (sidecar down, model absent, empty gazetteer).
var ErrDetectorUnavailable = errors.New("person detector unavailable")

// Kind tags the category of a detected entity.
type Kind string

// Entity kinds.
const (
	KindPerson Kind = "PERSON"
	KindTaxID  Kind = "TAX_ID"
	KindDocID  Kind = "DOC_ID"
	KindDate   Kind = "DATE"
)

// Entity is one detected sensitive span. Start and End are byte offsets in
// the scanned text and are only bookkeeping: substitution matches by value.
type Entity struct {
	Text  string     `json:"text"`
	Kind  Kind       `json:"kind"`
	Start int        `json:"start"`
	End   int        `json:"end"`
	Date  *time.Time `json:"date,omitempty"` // parsed value, dates only
}

// Span is a person name reported by a PersonDetector.
type Span struct {
	Text  string
	Start int
	End   int
}

// PersonDetector is the name-recognition capability. Implementations only
// report person entities; other NER labels are filtered out before return.
type PersonDetector interface {
	// Ready returns an error wrapping ErrDetectorUnavailable when the
	// capability cannot serve requests.
	Ready(ctx context.Context) error
	DetectPersons(ctx context.Context, text string) ([]Span, error)
}

// Result groups detected entities by category.
type Result struct {
	Persons []Entity `json:"persons"`
	TaxIDs  []Entity `json:"tax_ids"`
	DocIDs  []Entity `json:"doc_ids"`
	Dates   []Entity `json:"dates"`
}

// Count returns the number of entities across all categories.
func (r *Result) Count() int {
	return len(r.Persons) + len(r.TaxIDs) + len(r.DocIDs) + len(r.Dates)
}

// Detector runs person detection and the structured extractors.
type Detector struct {
	persons PersonDetector
	ids     *identifiers.Extractor
}

// Option configures a Detector.
type Option func(*Detector)

// WithExtractor replaces the default identifier extractor (e.g. one built
// with an operator pattern file or a fixed clock).
func WithExtractor(e *identifiers.Extractor) Option {
	return func(d *Detector) { d.ids = e }
}

// New returns a Detector using persons for name recognition. A nil persons
// capability is rejected with ErrDetectorUnavailable.
func New(persons PersonDetector, opts ...Option) (*Detector, error) {
	if persons == nil {
		return nil, fmt.Errorf("%w: no person detector configured", ErrDetectorUnavailable)
	}
	d := &Detector{persons: persons, ids: identifiers.Default()}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Ready checks the person capability without scanning any text.
func (d *Detector) Ready(ctx context.Context) error {
	if err := d.persons.Ready(ctx); err != nil {
		return ensureUnavailable(err)
	}
	return nil
}

// DetectAll detects every entity category in text. Person detection
// failures abort the call; no partial result is returned.
func (d *Detector) DetectAll(ctx context.Context, text string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "detector.detect_all")
	defer span.End()

	if err := d.Ready(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "person detector unavailable")
		return nil, err
	}

	persons, err := d.DetectPersons(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "person detection failed")
		return nil, err
	}

	res := &Result{
		Persons: persons,
		TaxIDs:  wrap(d.ids.TaxIDs(text), KindTaxID),
		DocIDs:  wrap(d.ids.DocIDs(text), KindDocID),
		Dates:   wrapDates(d.ids.BirthDates(text)),
	}

	span.SetAttributes(letheotel.EntityCountAttributes(
		len(res.Persons), len(res.TaxIDs), len(res.DocIDs), len(res.Dates))...)
	return res, nil
}

// DetectPersons returns person entities, trimmed and deduplicated by exact
// text. The first occurrence of each name is kept.
func (d *Detector) DetectPersons(ctx context.Context, text string) ([]Entity, error) {
	spans, err := d.persons.DetectPersons(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("detecting persons: %w", err)
	}

	seen := make(map[string]bool, len(spans))
	out := make([]Entity, 0, len(spans))
	for _, s := range spans {
		name := strings.TrimSpace(s.Text)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, Entity{Text: name, Kind: KindPerson, Start: s.Start, End: s.End})
	}
	return out, nil
}

func wrap(ms []identifiers.Match, kind Kind) []Entity {
	out := make([]Entity, 0, len(ms))
	for _, m := range ms {
		out = append(out, Entity{Text: m.Value, Kind: kind, Start: m.Start, End: m.End})
	}
	return out
}

func wrapDates(ms []identifiers.DateMatch) []Entity {
	out := make([]Entity, 0, len(ms))
	for _, m := range ms {
		d := m.Date
		out = append(out, Entity{Text: m.Value, Kind: KindDate, Start: m.Start, End: m.End, Date: &d})
	}
	return out
}

func ensureUnavailable(err error) error {
	if errors.Is(err, ErrDetectorUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrDetectorUnavailable, err)
}
