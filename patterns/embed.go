// Package patterns provides embedded default recognizer and name-list definitions.
// Recognizer YAML uses the Presidio-style recognizer layout with Lethe
// extensions (validation gate, date layout).
package patterns

import _ "embed"

//go:embed identifiers_br.yaml
var identifiersBRYAML []byte

//go:embed names_pt_br.yaml
var namesPTBRYAML []byte

// IdentifiersBRYAML returns the embedded Brazilian identifier recognizers (CPF, RG, dates).
func IdentifiersBRYAML() []byte { return identifiersBRYAML }

// NamesPTBRYAML returns the embedded pt_BR first and last names used for fake persons.
func NamesPTBRYAML() []byte { return namesPTBRYAML }
