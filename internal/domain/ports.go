package domain

import (
	"context"
	"time"
)

// Snapshot is the full persisted state of an engine.
type Snapshot struct {
	Registry []string
	Sessions []Session
	// Active is the pending batch in generation order.
	Active []string
}

// SnapshotStore defines the persistence contract for engine state.
// The registry, the session history and the active batch are independent
// blobs: any of them may be missing or unreadable without affecting the others.
type SnapshotStore interface {
	LoadRegistry(ctx context.Context) ([]string, error)
	LoadSessions(ctx context.Context) ([]Session, error)
	LoadActive(ctx context.Context) ([]string, error)
	Save(ctx context.Context, snap Snapshot) error
	Clear(ctx context.Context) error
}

// TransitionValidator checks and applies engine lifecycle transitions.
type TransitionValidator interface {
	Apply(ctx context.Context, current State, event Event) (State, error)
}

// NoticeKind names a domain event emitted by the engine.
type NoticeKind string

const (
	NoticeBatchGenerated  NoticeKind = "batch.generated"
	NoticeSessionArchived NoticeKind = "session.archived"
	NoticeSessionDeleted  NoticeKind = "session.deleted"
	NoticeStoreReset      NoticeKind = "store.reset"
)

// Notice describes something that happened to the engine's state.
type Notice struct {
	Kind      NoticeKind
	SessionID string
	Count     int
	Exhausted bool
	At        time.Time
}

// EventPublisher defines the contract for emitting domain events.
type EventPublisher interface {
	Publish(ctx context.Context, notice Notice) error
}
