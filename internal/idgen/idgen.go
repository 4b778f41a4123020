// Package idgen provides pluggable session identifier strategies.
package idgen

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/nrednav/cuid2"
	"github.com/oklog/ulid/v2"
	"github.com/segmentio/ksuid"
)

// Strategy names a supported identifier scheme.
type Strategy string

const (
	ULID   Strategy = "ulid"
	KSUID  Strategy = "ksuid"
	UUID   Strategy = "uuid"
	NanoID Strategy = "nanoid"
	CUID2  Strategy = "cuid2"
)

const (
	nanoIDSize  = 21
	cuid2Length = 24
)

// Generator produces collision-resistant identifiers.
type Generator func() string

// New returns the generator for the given strategy. An empty strategy
// selects ULID, which sorts in creation order.
func New(s Strategy) (Generator, error) {
	switch s {
	case ULID, "":
		return newULID(), nil
	case KSUID:
		return func() string { return ksuid.New().String() }, nil
	case UUID:
		return func() string { return uuid.NewString() }, nil
	case NanoID:
		return func() string { return gonanoid.Must(nanoIDSize) }, nil
	case CUID2:
		gen, err := cuid2.Init(cuid2.WithLength(cuid2Length))
		if err != nil {
			return nil, fmt.Errorf("init cuid2 generator: %w", err)
		}
		return gen, nil
	default:
		return nil, fmt.Errorf("unsupported id strategy %q (use ulid, ksuid, uuid, nanoid or cuid2)", s)
	}
}

// newULID returns a generator with monotonic entropy so ids minted within
// the same millisecond still sort in creation order.
func newULID() Generator {
	var mu sync.Mutex
	entropy := ulid.DefaultEntropy()
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
	}
}
