package identifiers

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Entity names accepted in supported_entity.
const (
	EntityTaxID = "TAX_ID"
	EntityDocID = "DOC_ID"
	EntityDate  = "DATE"
)

// Validation gates a recognizer can request. Matches failing their gate are
// dropped silently.
const (
	ValidationCPF       = "cpf"
	ValidationRG        = "rg"
	ValidationBirthDate = "birth_date"
)

// RecognizerFile is the top-level YAML structure for a recognizer config file.
type RecognizerFile struct {
	Recognizers []RecognizerConfig `yaml:"recognizers"`
}

// RecognizerConfig is one named recognizer: an entity, a validation gate and
// an ordered list of regex patterns.
type RecognizerConfig struct {
	Name            string          `yaml:"name"`
	SupportedEntity string          `yaml:"supported_entity"`
	Enabled         *bool           `yaml:"enabled,omitempty"`
	Validation      string          `yaml:"validation"`
	Patterns        []PatternConfig `yaml:"patterns,omitempty"`
}

// PatternConfig is a single regex pattern within a recognizer. Layout is the
// Go time layout used to parse date matches and is ignored for other entities.
type PatternConfig struct {
	Name   string `yaml:"name"`
	Regex  string `yaml:"regex"`
	Layout string `yaml:"layout,omitempty"`
}

// Pattern is a compiled, ready-to-use recognizer pattern.
type Pattern struct {
	Recognizer string
	Name       string
	Entity     string
	Validation string
	Layout     string
	Regex      *regexp.Regexp
}

func (r *RecognizerConfig) isEnabled() bool {
	if r.Enabled == nil {
		return true
	}
	return *r.Enabled
}

// ParseRecognizerFile parses recognizer YAML bytes into a RecognizerFile.
func ParseRecognizerFile(data []byte) (*RecognizerFile, error) {
	var rf RecognizerFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing recognizer YAML: %w", err)
	}
	return &rf, nil
}

// LoadRecognizerFile reads and parses a recognizer YAML file from disk.
// Returns nil (not an error) if the file does not exist.
func LoadRecognizerFile(path string) (*RecognizerFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading recognizer file %s: %w", path, err)
	}
	return ParseRecognizerFile(data)
}

// MergeRecognizers merges layers in order. A recognizer in a later layer
// replaces an earlier one with the same Name; new names are appended.
func MergeRecognizers(layers ...[]RecognizerConfig) []RecognizerConfig {
	index := make(map[string]int)
	var merged []RecognizerConfig

	for _, layer := range layers {
		for _, rc := range layer {
			if idx, exists := index[rc.Name]; exists {
				merged[idx] = rc
			} else {
				index[rc.Name] = len(merged)
				merged = append(merged, rc)
			}
		}
	}
	return merged
}

// CompilePatterns converts recognizer configs into compiled patterns,
// preserving declaration order. Disabled recognizers are skipped.
func CompilePatterns(recognizers []RecognizerConfig) ([]Pattern, error) {
	var out []Pattern
	for _, rec := range recognizers {
		if !rec.isEnabled() {
			continue
		}
		switch rec.SupportedEntity {
		case EntityTaxID, EntityDocID, EntityDate:
		default:
			return nil, fmt.Errorf("recognizer %q: unsupported entity %q", rec.Name, rec.SupportedEntity)
		}
		switch rec.Validation {
		case ValidationCPF, ValidationRG, ValidationBirthDate:
		default:
			return nil, fmt.Errorf("recognizer %q: unknown validation %q", rec.Name, rec.Validation)
		}
		if (rec.SupportedEntity == EntityDate) != (rec.Validation == ValidationBirthDate) {
			return nil, fmt.Errorf("recognizer %q: %s validation does not apply to %s", rec.Name, rec.Validation, rec.SupportedEntity)
		}
		for _, p := range rec.Patterns {
			re, err := regexp.Compile(p.Regex)
			if err != nil {
				return nil, fmt.Errorf("compiling pattern %q in recognizer %q: %w", p.Name, rec.Name, err)
			}
			if rec.Validation == ValidationBirthDate && p.Layout == "" {
				return nil, fmt.Errorf("pattern %q in recognizer %q: date patterns need a layout", p.Name, rec.Name)
			}
			out = append(out, Pattern{
				Recognizer: rec.Name,
				Name:       p.Name,
				Entity:     rec.SupportedEntity,
				Validation: rec.Validation,
				Layout:     p.Layout,
				Regex:      re,
			})
		}
	}
	return out, nil
}
