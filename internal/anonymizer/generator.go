package anonymizer

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/dativo-io/lethe/internal/identifiers"
	"github.com/dativo-io/lethe/internal/mapping"
	"github.com/dativo-io/lethe/patterns"
)

// maxAttempts bounds the retries spent looking for an unused replacement.
const maxAttempts = 64

// secondSurnameOdds is the chance (out of 100) that a fake person gets two
// surnames, as in "Ana Costa Ribeiro".
const secondSurnameOdds = 35

type namePool struct {
	First []string `yaml:"first_names"`
	Last  []string `yaml:"last_names"`
}

var defaultNames namePool

func init() {
	if err := yaml.Unmarshal(patterns.NamesPTBRYAML(), &defaultNames); err != nil {
		panic(fmt.Sprintf("loading embedded name pool: %v", err))
	}
	if len(defaultNames.First) == 0 || len(defaultNames.Last) < 2 {
		panic("embedded name pool is empty")
	}
}

// Generator produces fake replacement values. A Generator built with a seed
// yields the same sequence of values for the same sequence of calls.
// Generators are not safe for concurrent use.
type Generator struct {
	rng   *rand.Rand
	names namePool
	used  map[mapping.Category]map[string]bool
}

// NewGenerator returns a Generator. A nil seed draws from a randomly seeded
// source.
func NewGenerator(seed *int64) *Generator {
	var src *rand.PCG
	if seed != nil {
		s := uint64(*seed)
		src = rand.NewPCG(s, s^0x9e3779b97f4a7c15)
	} else {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Generator{
		rng:   rand.New(src),
		names: defaultNames,
		used:  make(map[mapping.Category]map[string]bool),
	}
}

// Person returns a fake pt_BR full name.
func (g *Generator) Person() string {
	first := g.names.First[g.rng.IntN(len(g.names.First))]
	last := g.names.Last[g.rng.IntN(len(g.names.Last))]
	if g.rng.IntN(100) >= secondSurnameOdds {
		return first + " " + last
	}
	second := g.names.Last[g.rng.IntN(len(g.names.Last))]
	if second == last {
		return first + " " + last
	}
	return first + " " + last + " " + second
}

// TaxID returns a checksum-valid fake CPF.
func (g *Generator) TaxID() string { return identifiers.GenerateTaxID(g.rng) }

// DocID returns a fake RG.
func (g *Generator) DocID() string { return identifiers.GenerateDocID(g.rng) }

// Date returns a fake adult birth date using the separator of original.
func (g *Generator) Date(original string) string {
	return identifiers.GenerateAdultDate(g.rng, original)
}

// reserve marks values as taken in category c.
func (g *Generator) reserve(c mapping.Category, values ...string) {
	set := g.used[c]
	if set == nil {
		set = make(map[string]bool)
		g.used[c] = set
	}
	for _, v := range values {
		set[v] = true
	}
}

// next draws a replacement for original in category c that no other entry
// of the category already uses and that reject does not refuse.
func (g *Generator) next(c mapping.Category, original string, reject func(string) bool) string {
	var candidate string
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate = g.draw(c, original)
		if g.used[c][candidate] || (reject != nil && reject(candidate)) {
			continue
		}
		g.reserve(c, candidate)
		return candidate
	}
	log.Warn().Str("category", string(c)).Int("attempts", maxAttempts).Msg("replacement_pool_exhausted")
	g.reserve(c, candidate)
	return candidate
}

func (g *Generator) draw(c mapping.Category, original string) string {
	switch c {
	case mapping.Persons:
		return g.Person()
	case mapping.TaxIDs:
		return g.TaxID()
	case mapping.DocIDs:
		return g.DocID()
	case mapping.Dates:
		return g.Date(original)
	}
	panic("anonymizer: unknown category " + string(c))
}

// overlapsAny returns a reject func refusing candidates that contain, or are
// contained in, any of originals, ignoring case. Person substitution is
// sequential in both directions: a replacement containing a later original is
// rewritten again by Apply, and a replacement inside a longer original is
// rewritten again by Reverse once that original has been restored.
func overlapsAny(originals []string) func(string) bool {
	lowered := make([]string, 0, len(originals))
	for _, o := range originals {
		if o != "" {
			lowered = append(lowered, strings.ToLower(o))
		}
	}
	return func(candidate string) bool {
		lc := strings.ToLower(candidate)
		for _, o := range lowered {
			if strings.Contains(lc, o) || strings.Contains(o, lc) {
				return true
			}
		}
		return false
	}
}

// equalsAny returns a reject func refusing candidates equal to one of originals.
func equalsAny(originals []string) func(string) bool {
	set := make(map[string]bool, len(originals))
	for _, o := range originals {
		set[o] = true
	}
	return func(candidate string) bool { return set[candidate] }
}
