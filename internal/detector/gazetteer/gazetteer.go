// Package gazetteer implements detector.PersonDetector by matching a fixed
// list of known names. It needs no external service, which makes it the
// offline choice for batch runs over documents whose parties are known up
// front (case files, contracts).
package gazetteer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/dativo-io/lethe/internal/detector"
)

// Detector matches whole-word, case-sensitive occurrences of known names.
// Longer names claim their span first, so "Maria Silva" is reported instead
// of "Maria" when both are listed.
type Detector struct {
	names []string
}

var _ detector.PersonDetector = (*Detector)(nil)

type nameFile struct {
	Names []string `yaml:"names"`
}

// New builds a Detector from names. Blank entries and duplicates are dropped.
func New(names []string) *Detector {
	seen := make(map[string]bool, len(names))
	var clean []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		clean = append(clean, n)
	}
	sort.SliceStable(clean, func(i, j int) bool {
		if len(clean[i]) != len(clean[j]) {
			return len(clean[i]) > len(clean[j])
		}
		return clean[i] < clean[j]
	})
	return &Detector{names: clean}
}

// Load reads a name list. Files ending in .yaml or .yml hold a "names"
// sequence; anything else is one name per line with # comments.
func Load(path string) (*Detector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading name list %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var nf nameFile
		if err := yaml.Unmarshal(data, &nf); err != nil {
			return nil, fmt.Errorf("parsing name list %s: %w", path, err)
		}
		return New(nf.Names), nil
	default:
		var names []string
		sc := bufio.NewScanner(bytes.NewReader(data))
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			names = append(names, line)
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("scanning name list %s: %w", path, err)
		}
		return New(names), nil
	}
}

// Len returns the number of distinct names.
func (d *Detector) Len() int { return len(d.names) }

// Ready fails when the list is empty.
func (d *Detector) Ready(_ context.Context) error {
	if len(d.names) == 0 {
		return fmt.Errorf("%w: name list is empty", detector.ErrDetectorUnavailable)
	}
	return nil
}

// DetectPersons returns every non-overlapping whole-word occurrence, ordered
// by position.
func (d *Detector) DetectPersons(ctx context.Context, text string) ([]detector.Span, error) {
	var spans []detector.Span
	for _, name := range d.names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for from := 0; from < len(text); {
			i := strings.Index(text[from:], name)
			if i < 0 {
				break
			}
			start := from + i
			end := start + len(name)
			from = start + 1
			if !wordBoundary(text, start, end) || overlaps(spans, start, end) {
				continue
			}
			spans = append(spans, detector.Span{Text: name, Start: start, End: end})
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	return spans, nil
}

func wordBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func overlaps(spans []detector.Span, start, end int) bool {
	for _, s := range spans {
		if start < s.End && s.Start < end {
			return true
		}
	}
	return false
}
