package otel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntityCountAttributes(t *testing.T) {
	attrs := EntityCountAttributes(1, 2, 3, 4)
	assert.Len(t, attrs, 4)

	got := map[string]int64{}
	for _, kv := range attrs {
		got[string(kv.Key)] = kv.Value.AsInt64()
	}
	assert.Equal(t, map[string]int64{
		"lethe.persons": 1,
		"lethe.tax_ids": 2,
		"lethe.doc_ids": 3,
		"lethe.dates":   4,
	}, got)
}
