package otel_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	adapter "github.com/neomorfeo/uastudio/internal/adapter/otel"
	"github.com/neomorfeo/uastudio/internal/domain"
)

// --- Test tracer setup ---

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter
}

// --- Mock store ---

type mockStore struct {
	snap    domain.Snapshot
	loadErr error
}

func (m *mockStore) LoadRegistry(_ context.Context) ([]string, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.snap.Registry, nil
}

func (m *mockStore) LoadSessions(_ context.Context) ([]domain.Session, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.snap.Sessions, nil
}

func (m *mockStore) LoadActive(_ context.Context) ([]string, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.snap.Active, nil
}

func (m *mockStore) Save(_ context.Context, snap domain.Snapshot) error {
	m.snap = snap
	return nil
}

func (m *mockStore) Clear(_ context.Context) error {
	m.snap = domain.Snapshot{}
	return nil
}

// --- Tests ---

func TestTracingStore_Save_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := &mockStore{}
	store := adapter.NewTracingStore(inner)

	snap := domain.Snapshot{
		Registry: []string{"a", "b", "c"},
		Sessions: []domain.Session{domain.NewSession("s-1", time.Now(), []string{"a"})},
		Active:   []string{"b", "c"},
	}
	require.NoError(t, store.Save(context.Background(), snap))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "SnapshotStore.Save", spans[0].Name)
	assertAttribute(t, spans[0], "registry.size", "3")
	assertAttribute(t, spans[0], "sessions.count", "1")
	assertAttribute(t, spans[0], "active.size", "2")
	assert.Equal(t, snap, inner.snap)
}

func TestTracingStore_LoadRegistry_RecordsSize(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := &mockStore{snap: domain.Snapshot{Registry: []string{"a", "b"}}}
	store := adapter.NewTracingStore(inner)

	agents, err := store.LoadRegistry(context.Background())
	require.NoError(t, err)
	assert.Len(t, agents, 2)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assertAttribute(t, spans[0], "registry.size", "2")
}

func TestTracingStore_LoadActive_RecordsSize(t *testing.T) {
	exporter := setupTestTracer(t)
	store := adapter.NewTracingStore(&mockStore{snap: domain.Snapshot{Active: []string{"x"}}})

	agents, err := store.LoadActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, agents)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "SnapshotStore.LoadActive", spans[0].Name)
	assertAttribute(t, spans[0], "active.size", "1")
}

func TestTracingStore_LoadSessions_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	loadErr := &domain.StorageError{Op: "load", Blob: "sessions", Err: errors.New("bad json")}
	store := adapter.NewTracingStore(&mockStore{loadErr: loadErr})

	_, err := store.LoadSessions(context.Background())
	require.ErrorIs(t, err, loadErr)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.NotEmpty(t, spans[0].Events, "expected error event on span")
}

func TestTracingStore_Clear_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	store := adapter.NewTracingStore(&mockStore{})

	require.NoError(t, store.Clear(context.Background()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "SnapshotStore.Clear", spans[0].Name)
}

// assertAttribute checks that a span has an attribute with the given key and string value.
func assertAttribute(t *testing.T, span tracetest.SpanStub, key, want string) {
	t.Helper()
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			assert.Equal(t, want, attr.Value.Emit(), "attribute %q", key)
			return
		}
	}
	t.Errorf("attribute %q not found on span %q", key, span.Name)
}
