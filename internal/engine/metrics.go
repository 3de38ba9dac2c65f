package engine

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dativo-io/lethe/internal/mapping"
)

const meterName = "github.com/dativo-io/lethe/internal/engine"

var (
	replacedCounter   metric.Int64Counter
	metricsOnce       sync.Once
	metricsRegistered  bool
)

func initMetrics() {
	meter := otel.Meter(meterName)
	var err error
	replacedCounter, err = meter.Int64Counter(
		"lethe.entities.replaced",
		metric.WithDescription("Unique originals replaced per anonymization, by category"),
		metric.WithUnit("{entity}"),
	)
	if err != nil {
		return
	}
	metricsRegistered = true
}

// recordReplaced adds the per-category counts of one anonymization run.
func recordReplaced(ctx context.Context, s mapping.Summary) {
	metricsOnce.Do(initMetrics)
	if !metricsRegistered {
		return
	}
	counts := map[mapping.Category]int{
		mapping.Persons: s.Persons,
		mapping.TaxIDs:  s.TaxIDs,
		mapping.DocIDs:  s.DocIDs,
		mapping.Dates:   s.Dates,
	}
	for _, c := range mapping.Categories {
		if counts[c] == 0 {
			continue
		}
		replacedCounter.Add(ctx, int64(counts[c]), metric.WithAttributes(attribute.String("category", string(c))))
	}
}
