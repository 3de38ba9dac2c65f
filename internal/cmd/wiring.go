package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dativo-io/lethe/internal/config"
	"github.com/dativo-io/lethe/internal/detector"
	"github.com/dativo-io/lethe/internal/detector/gazetteer"
	"github.com/dativo-io/lethe/internal/detector/ner"
	"github.com/dativo-io/lethe/internal/engine"
	"github.com/dativo-io/lethe/internal/identifiers"
)

// passwordEnv is read when --password is not given.
const passwordEnv = "LETHE_PASSWORD"

var errNoPassword = errors.New("no password: pass --password or set " + passwordEnv)

// buildPersonDetector returns the person-name backend selected by config.
func buildPersonDetector(cfg *config.Config) (detector.PersonDetector, error) {
	switch cfg.Detector {
	case config.DetectorGazetteer:
		g, err := gazetteer.Load(cfg.NamesFile)
		if err != nil {
			return nil, fmt.Errorf("loading names file: %w", err)
		}
		return g, nil
	default:
		return ner.New(cfg.NERURL, ner.WithTimeout(cfg.NERTimeout)), nil
	}
}

func buildDetector(cfg *config.Config) (*detector.Detector, error) {
	persons, err := buildPersonDetector(cfg)
	if err != nil {
		return nil, err
	}
	ids, err := identifiers.NewExtractor(identifiers.WithPatternFile(cfg.PatternsFile))
	if err != nil {
		return nil, fmt.Errorf("identifier patterns: %w", err)
	}
	return detector.New(persons, detector.WithExtractor(ids))
}

func buildEngine(cfg *config.Config) (*engine.Engine, error) {
	d, err := buildDetector(cfg)
	if err != nil {
		return nil, err
	}
	return engine.New(d), nil
}

// resolvePassword prefers the flag value and falls back to LETHE_PASSWORD.
func resolvePassword(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}
	return "", errNoPassword
}

// siblingPath returns <dir>/<stem><suffix> for input, e.g.
// ("docs/contrato.pdf", "_anonimizado.txt") → "docs/contrato_anonimizado.txt".
func siblingPath(input, suffix string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(input), stem+suffix)
}
