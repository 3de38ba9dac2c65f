// Package anonymizer turns detection results into a reversible mapping and
// rewrites text with it.
//
// Substitution is value-based: every occurrence of an original anywhere in
// the text is replaced, not only the detected span. Persons go first
// (longest original first, case-insensitive), then CPFs, RGs and dates by
// exact match. Within each category entries are applied longest first with
// ties broken lexically, so output never depends on map iteration order.
package anonymizer

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dativo-io/lethe/internal/detector"
	"github.com/dativo-io/lethe/internal/mapping"
	letheotel "github.com/dativo-io/lethe/internal/otel"
)

var tracer = letheotel.Tracer("github.com/dativo-io/lethe/internal/anonymizer")

// GenerateReplacements adds a replacement to m for every detected original
// that m does not already map. Existing entries are left untouched and their
// replacements are never handed out again within the same category.
func GenerateReplacements(res *detector.Result, m *mapping.Mapping, gen *Generator) {
	for _, c := range mapping.Categories {
		table := m.Table(c)
		values := make([]string, 0, len(table))
		for _, v := range table {
			values = append(values, v)
		}
		gen.reserve(c, values...)
	}

	persons := append(originals(res.Persons), mappedOriginals(m.Persons)...)
	fill(m.Persons, res.Persons, mapping.Persons, gen, overlapsAny(persons))
	fill(m.TaxIDs, res.TaxIDs, mapping.TaxIDs, gen, equalsAny(originals(res.TaxIDs)))
	fill(m.DocIDs, res.DocIDs, mapping.DocIDs, gen, equalsAny(originals(res.DocIDs)))
	fill(m.Dates, res.Dates, mapping.Dates, gen, equalsAny(originals(res.Dates)))
}

func fill(table map[string]string, ents []detector.Entity, c mapping.Category, gen *Generator, reject func(string) bool) {
	for _, e := range ents {
		if _, ok := table[e.Text]; ok {
			continue
		}
		table[e.Text] = gen.next(c, e.Text, reject)
	}
}

func mappedOriginals(table map[string]string) []string {
	out := make([]string, 0, len(table))
	for k := range table {
		out = append(out, k)
	}
	return out
}

func originals(ents []detector.Entity) []string {
	out := make([]string, len(ents))
	for i, e := range ents {
		out[i] = e.Text
	}
	return out
}

// Apply substitutes every mapped original in text with its replacement.
func Apply(ctx context.Context, text string, m *mapping.Mapping) string {
	_, span := tracer.Start(ctx, "anonymizer.apply")
	defer span.End()
	span.SetAttributes(attribute.Int("anonymizer.entries", m.Len()))

	for _, orig := range longestFirst(m.Persons) {
		text = replaceFold(text, orig, m.Persons[orig])
	}
	for _, c := range mapping.Categories[1:] {
		table := m.Table(c)
		for _, orig := range longestFirst(table) {
			text = strings.ReplaceAll(text, orig, table[orig])
		}
	}
	return text
}

// Reverse restores originals in anonymized text. Person replacements are
// matched case-insensitively and restored with the original's casing as
// stored in the mapping.
func Reverse(ctx context.Context, text string, m *mapping.Mapping) string {
	_, span := tracer.Start(ctx, "anonymizer.reverse")
	defer span.End()
	span.SetAttributes(attribute.Int("anonymizer.entries", m.Len()))

	persons := invert(m.Persons)
	for _, repl := range longestFirst(persons) {
		text = replaceFold(text, repl, persons[repl])
	}
	for _, c := range mapping.Categories[1:] {
		inv := invert(m.Table(c))
		for _, repl := range longestFirst(inv) {
			text = strings.ReplaceAll(text, repl, inv[repl])
		}
	}
	return text
}

// Summary returns the per-category entry counts of m.
func Summary(m *mapping.Mapping) mapping.Summary {
	return m.Summary()
}

// replaceFold replaces every case-insensitive occurrence of old with the
// literal repl.
func replaceFold(text, old, repl string) string {
	if old == "" {
		return text
	}
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(old))
	return re.ReplaceAllLiteralString(text, repl)
}

// longestFirst returns the keys of table ordered by descending byte length,
// then lexically.
func longestFirst(table map[string]string) []string {
	keys := make([]string, 0, len(table))
	for k := range table {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

func invert(table map[string]string) map[string]string {
	out := make(map[string]string, len(table))
	for k, v := range table {
		out[v] = k
	}
	return out
}
