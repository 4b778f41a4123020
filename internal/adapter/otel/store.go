package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/uastudio/internal/domain"
)

const tracerName = "github.com/neomorfeo/uastudio/internal/adapter/otel"

// TracingStore wraps a domain.SnapshotStore with OpenTelemetry tracing.
// Each method creates a span with size attributes and records errors.
type TracingStore struct {
	next   domain.SnapshotStore
	tracer trace.Tracer
}

// Compile-time check: TracingStore implements domain.SnapshotStore.
var _ domain.SnapshotStore = (*TracingStore)(nil)

// NewTracingStore creates a tracing decorator around the given store.
func NewTracingStore(next domain.SnapshotStore) *TracingStore {
	return &TracingStore{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (s *TracingStore) LoadRegistry(ctx context.Context) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "SnapshotStore.LoadRegistry")
	defer span.End()

	agents, err := s.next.LoadRegistry(ctx)
	if err != nil {
		recordError(span, err)
	} else {
		span.SetAttributes(attribute.Int("registry.size", len(agents)))
	}
	return agents, err
}

func (s *TracingStore) LoadSessions(ctx context.Context) ([]domain.Session, error) {
	ctx, span := s.tracer.Start(ctx, "SnapshotStore.LoadSessions")
	defer span.End()

	sessions, err := s.next.LoadSessions(ctx)
	if err != nil {
		recordError(span, err)
	} else {
		span.SetAttributes(attribute.Int("sessions.count", len(sessions)))
	}
	return sessions, err
}

func (s *TracingStore) LoadActive(ctx context.Context) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "SnapshotStore.LoadActive")
	defer span.End()

	agents, err := s.next.LoadActive(ctx)
	if err != nil {
		recordError(span, err)
	} else {
		span.SetAttributes(attribute.Int("active.size", len(agents)))
	}
	return agents, err
}

func (s *TracingStore) Save(ctx context.Context, snap domain.Snapshot) error {
	ctx, span := s.tracer.Start(ctx, "SnapshotStore.Save",
		trace.WithAttributes(
			attribute.Int("registry.size", len(snap.Registry)),
			attribute.Int("sessions.count", len(snap.Sessions)),
			attribute.Int("active.size", len(snap.Active)),
		),
	)
	defer span.End()

	err := s.next.Save(ctx, snap)
	if err != nil {
		recordError(span, err)
	}
	return err
}

func (s *TracingStore) Clear(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "SnapshotStore.Clear")
	defer span.End()

	err := s.next.Clear(ctx)
	if err != nil {
		recordError(span, err)
	}
	return err
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
