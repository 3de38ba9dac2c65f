// Package testutil provides shared test helpers, stubs, and fake services for Lethe tests.
package testutil

import (
	"context"
	"sort"
	"strings"

	"github.com/dativo-io/lethe/internal/detector"
)

// StubPersonDetector implements detector.PersonDetector for tests without an
// NER model. It reports every occurrence of each name in Names, in the order
// Names is given, the way an NER engine reports entities in text order.
type StubPersonDetector struct {
	Names    []string // names to report when found in the text
	ReadyErr error    // if set, Ready returns this error
	Err      error    // if set, DetectPersons returns this error
	Calls    int      // number of DetectPersons calls
}

// Ready returns ReadyErr.
func (s *StubPersonDetector) Ready(_ context.Context) error { return s.ReadyErr }

// DetectPersons returns spans for every occurrence of each configured name,
// ordered by position.
func (s *StubPersonDetector) DetectPersons(_ context.Context, text string) ([]detector.Span, error) {
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	var spans []detector.Span
	for _, name := range s.Names {
		for from := 0; ; {
			i := strings.Index(text[from:], name)
			if i < 0 {
				break
			}
			start := from + i
			spans = append(spans, detector.Span{Text: name, Start: start, End: start + len(name)})
			from = start + len(name)
		}
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	return spans, nil
}

// NewDetector returns a detector.Detector backed by a StubPersonDetector.
// It panics if construction fails, which only happens with a nil stub.
func NewDetector(names ...string) *detector.Detector {
	d, err := detector.New(&StubPersonDetector{Names: names})
	if err != nil {
		panic(err)
	}
	return d
}
