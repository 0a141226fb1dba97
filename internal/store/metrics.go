package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	catalogerrors "github.com/abgdnv/gocatalog/internal/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/abgdnv/gocatalog/internal/store"

type storeMetrics struct {
	mutations     metric.Int64Counter
	resets        metric.Int64Counter
	persistTiming metric.Float64Histogram
}

func newStoreMetrics() *storeMetrics {
	meter := otel.Meter(meterName)
	mutations, err := meter.Int64Counter("catalog_mutations",
		metric.WithDescription("Catalog mutations by operation and outcome"))
	if err != nil {
		panic(fmt.Sprintf("failed to create catalog_mutations counter: %v", err))
	}
	resets, err := meter.Int64Counter("catalog_storage_resets",
		metric.WithDescription("Times unreadable persisted content was set aside and the catalog restarted empty"))
	if err != nil {
		panic(fmt.Sprintf("failed to create catalog_storage_resets counter: %v", err))
	}
	persistTiming, err := meter.Float64Histogram("catalog_persist_duration",
		metric.WithDescription("Time spent writing the catalog to its medium"),
		metric.WithUnit("s"))
	if err != nil {
		panic(fmt.Sprintf("failed to create catalog_persist_duration histogram: %v", err))
	}
	return &storeMetrics{mutations: mutations, resets: resets, persistTiming: persistTiming}
}

func (m *storeMetrics) mutation(ctx context.Context, op string, err error) {
	m.mutations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome(err)),
	))
}

func (m *storeMetrics) persisted(ctx context.Context, started time.Time, err error) {
	m.persistTiming.Record(ctx, time.Since(started).Seconds(), metric.WithAttributes(
		attribute.Bool("success", err == nil),
	))
}

func (m *storeMetrics) reset(ctx context.Context) {
	m.resets.Add(ctx, 1)
}

func outcome(err error) string {
	var validationErr *catalogerrors.ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &validationErr):
		return "invalid"
	case errors.Is(err, catalogerrors.ErrProductNotFound):
		return "not_found"
	default:
		return "error"
	}
}
