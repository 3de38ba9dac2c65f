package otel

import (
	"go.opentelemetry.io/otel/attribute"
)

// Entity count attributes shared by detection, substitution and the facade.
const (
	AttrPersons = attribute.Key("lethe.persons")
	AttrTaxIDs  = attribute.Key("lethe.tax_ids")
	AttrDocIDs  = attribute.Key("lethe.doc_ids")
	AttrDates   = attribute.Key("lethe.dates")

	AttrDocumentKind  = attribute.Key("lethe.document.kind")
	AttrDocumentBytes = attribute.Key("lethe.document.bytes")
)

// EntityCountAttributes returns the four per-category count attributes.
func EntityCountAttributes(persons, taxIDs, docIDs, dates int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrPersons.Int(persons),
		AttrTaxIDs.Int(taxIDs),
		AttrDocIDs.Int(docIDs),
		AttrDates.Int(dates),
	}
}
