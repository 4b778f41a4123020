package app

import (
	"time"

	"github.com/neomorfeo/uastudio/internal/domain"
)

// Option configures a GenerationEngine.
type Option func(e *GenerationEngine)

// WithStore enables persistence through store.
func WithStore(store domain.SnapshotStore) Option {
	return func(e *GenerationEngine) { e.store = store }
}

// WithPublisher emits domain events through publisher.
func WithPublisher(publisher domain.EventPublisher) Option {
	return func(e *GenerationEngine) { e.publisher = publisher }
}

// WithSource replaces the candidate generator.
func WithSource(source CandidateSource) Option {
	return func(e *GenerationEngine) { e.source = source }
}

// WithClock replaces the wall clock used to stamp sessions and events.
func WithClock(now func() time.Time) Option {
	return func(e *GenerationEngine) { e.now = now }
}

// WithSessionIDs replaces the session identifier generator.
func WithSessionIDs(newID func() string) Option {
	return func(e *GenerationEngine) { e.newID = newID }
}

// WithProgress registers a progress callback invoked every ProgressInterval
// attempts and once when a batch completes. The callback runs while the
// engine is locked and must not call back into it.
func WithProgress(fn ProgressFunc) Option {
	return func(e *GenerationEngine) { e.progress = fn }
}

// WithRecorder reports every finished batch to r.
func WithRecorder(r BatchRecorder) Option {
	return func(e *GenerationEngine) { e.recorder = r }
}
