package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrEngineBusy      = errors.New("a generation is already in progress")
)

// TransitionError is returned when a state transition is not allowed.
type TransitionError struct {
	Event   Event
	Current State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
}

// StorageError reports a failed read or write of a persisted blob.
// It never invalidates in-memory state.
type StorageError struct {
	Op   string // "load", "save" or "clear"
	Blob string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Blob == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Blob, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
