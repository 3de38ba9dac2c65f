// Package engine is the front-end facade over detection, substitution and the
// mapping vault. The CLI and HTTP API only talk to an Engine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/dativo-io/lethe/internal/anonymizer"
	"github.com/dativo-io/lethe/internal/detector"
	"github.com/dativo-io/lethe/internal/mapping"
	letheotel "github.com/dativo-io/lethe/internal/otel"
	"github.com/dativo-io/lethe/internal/vault"
)

var tracer = letheotel.Tracer("github.com/dativo-io/lethe/internal/engine")

// ErrEmptyInput is returned for empty or whitespace-only text.
var ErrEmptyInput = errors.New("input text is empty")

// Result is the outcome of one anonymization.
type Result struct {
	Text      string
	Encrypted []byte           // vault blob holding the mapping
	Summary   mapping.Summary  // unique originals per category
	Mapping   *mapping.Mapping // plaintext mapping, only with WithMappingDisclosure
}

// AnonymizeOption configures one Anonymize call.
type AnonymizeOption func(*anonymizeConfig)

type anonymizeConfig struct {
	disclose bool
}

// WithMappingDisclosure returns the plaintext mapping in Result.Mapping.
// The caller becomes responsible for it and should call Wipe when done.
func WithMappingDisclosure() AnonymizeOption {
	return func(c *anonymizeConfig) { c.disclose = true }
}

// Engine runs anonymization and reversal.
type Engine struct {
	detector *detector.Detector
}

// New returns an Engine using d for detection.
func New(d *detector.Detector) *Engine {
	return &Engine{detector: d}
}

// Detector returns the engine's detector.
func (e *Engine) Detector() *detector.Detector { return e.detector }

// Anonymize detects entities in text, replaces them with fake values and
// seals the mapping under password. A nil seed gives non-reproducible
// replacements. On error no partial output is returned.
func (e *Engine) Anonymize(ctx context.Context, text, password string, seed *int64, opts ...AnonymizeOption) (*Result, error) {
	ctx, span := tracer.Start(ctx, "engine.anonymize")
	defer span.End()

	var cfg anonymizeConfig
	for _, o := range opts {
		o(&cfg)
	}

	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	if password == "" {
		return nil, vault.ErrEmptyPassword
	}

	res, err := e.detector.DetectAll(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "detection failed")
		if errors.Is(err, detector.ErrDetectorUnavailable) {
			log.Error().Err(err).Msg("detector_unavailable")
		}
		return nil, err
	}

	m := mapping.New()
	anonymizer.GenerateReplacements(res, m, anonymizer.NewGenerator(seed))
	out := anonymizer.Apply(ctx, text, m)

	blob, err := vault.Encrypt(ctx, m, password)
	if err != nil {
		m.Wipe()
		span.RecordError(err)
		span.SetStatus(codes.Error, "encryption failed")
		return nil, fmt.Errorf("encrypting mapping: %w", err)
	}

	summary := anonymizer.Summary(m)
	span.SetAttributes(letheotel.EntityCountAttributes(
		summary.Persons, summary.TaxIDs, summary.DocIDs, summary.Dates)...)
	span.SetAttributes(attribute.Bool("lethe.seeded", seed != nil))
	recordReplaced(ctx, summary)
	log.Debug().
		Int("persons", summary.Persons).
		Int("tax_ids", summary.TaxIDs).
		Int("doc_ids", summary.DocIDs).
		Int("dates", summary.Dates).
		Msg("document_anonymized")

	result := &Result{Text: out, Encrypted: blob, Summary: summary}
	if cfg.disclose {
		result.Mapping = m
	} else {
		m.Wipe()
	}
	return result, nil
}

// Reverse decrypts blob with password and restores the originals in text.
// The plaintext mapping is wiped before returning.
func (e *Engine) Reverse(ctx context.Context, text string, blob []byte, password string) (string, error) {
	ctx, span := tracer.Start(ctx, "engine.reverse")
	defer span.End()

	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyInput
	}

	m, err := vault.Decrypt(ctx, blob, password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decryption failed")
		return "", err
	}
	defer m.Wipe()

	return anonymizer.Reverse(ctx, text, m), nil
}
