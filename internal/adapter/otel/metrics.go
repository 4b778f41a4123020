package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/neomorfeo/uastudio/internal/app"
)

// Compile-time check: BatchMetrics implements app.BatchRecorder.
var _ app.BatchRecorder = (*BatchMetrics)(nil)

// BatchMetrics records generation outcomes as OpenTelemetry metrics.
type BatchMetrics struct {
	batches  metric.Int64Counter
	produced metric.Int64Counter
	attempts metric.Int64Histogram
}

// NewBatchMetrics registers the generation instruments on the global meter provider.
func NewBatchMetrics() (*BatchMetrics, error) {
	meter := otel.Meter(tracerName)

	batches, err := meter.Int64Counter("uastudio.batches",
		metric.WithDescription("Generation batches run, by outcome"))
	if err != nil {
		return nil, fmt.Errorf("creating batches counter: %w", err)
	}

	produced, err := meter.Int64Counter("uastudio.agents.produced",
		metric.WithDescription("Unique agent strings accepted into the registry"))
	if err != nil {
		return nil, fmt.Errorf("creating produced counter: %w", err)
	}

	attempts, err := meter.Int64Histogram("uastudio.batch.attempts",
		metric.WithDescription("Candidates generated per batch"))
	if err != nil {
		return nil, fmt.Errorf("creating attempts histogram: %w", err)
	}

	return &BatchMetrics{batches: batches, produced: produced, attempts: attempts}, nil
}

// RecordBatch adds one finished batch to the instruments.
func (m *BatchMetrics) RecordBatch(ctx context.Context, b app.Batch) {
	outcome := attribute.String("outcome", "complete")
	if b.Exhausted {
		outcome = attribute.String("outcome", "exhausted")
	}
	m.batches.Add(ctx, 1, metric.WithAttributes(outcome))
	m.produced.Add(ctx, int64(b.Produced()))
	m.attempts.Record(ctx, int64(b.Attempts), metric.WithAttributes(outcome))
}
