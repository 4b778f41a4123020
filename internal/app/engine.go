package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/neomorfeo/uastudio/internal/agent"
	"github.com/neomorfeo/uastudio/internal/domain"
	"github.com/neomorfeo/uastudio/internal/idgen"
	"github.com/neomorfeo/uastudio/internal/logging"
)

const (
	// MinCount and MaxCount bound the size of a single batch.
	MinCount = 1
	MaxCount = 5000

	// ProgressInterval is the number of attempts between progress reports.
	ProgressInterval = 8

	minTries       = 20000
	triesPerTarget = 50

	blobRegistry = "registry"
	blobSessions = "sessions"
	blobActive   = "active"
)

// CandidateSource renders candidate agent strings.
type CandidateSource interface {
	Generate(p domain.Profile, o domain.Options) string
}

// ProgressFunc receives the number of accepted strings and the batch target.
type ProgressFunc func(produced, target int)

// BatchRecorder observes finished batches (metrics, audit).
type BatchRecorder interface {
	RecordBatch(ctx context.Context, b Batch)
}

// Batch is the outcome of a GenerateBatch call.
type Batch struct {
	Agents    []string
	Requested int
	Attempts  int
	// Exhausted is set when the retry budget ran out before Requested
	// strings were found. Len(Agents) is then the number actually produced.
	Exhausted bool
	// Archived is the session created from the previous batch, if any.
	Archived *domain.Session
}

// Produced returns how many strings the batch holds.
func (b Batch) Produced() int { return len(b.Agents) }

// Stats summarizes the engine state.
type Stats struct {
	Sessions int
	Registry int
	Active   int
}

// ClampCount forces a requested batch size into [MinCount, MaxCount].
func ClampCount(n int) int {
	return min(max(n, MinCount), MaxCount)
}

// MaxTries is the retry budget for a batch of n strings.
func MaxTries(n int) int {
	return max(minTries, n*triesPerTarget)
}

// GenerationEngine owns the registry, the session history and the active
// batch, and runs every operation on them. Only one generation may be in
// flight at a time; mutations issued meanwhile fail with ErrEngineBusy.
type GenerationEngine struct {
	validator domain.TransitionValidator
	store     domain.SnapshotStore
	publisher domain.EventPublisher
	recorder  BatchRecorder
	source    CandidateSource
	progress  ProgressFunc
	now       func() time.Time
	newID     func() string

	stateMu sync.Mutex
	state   domain.State

	mu       sync.Mutex
	registry *domain.Registry
	sessions *domain.SessionLog
	active   []string
}

// NewGenerationEngine creates an idle engine with empty state. Without
// WithStore nothing is persisted.
func NewGenerationEngine(validator domain.TransitionValidator, opts ...Option) *GenerationEngine {
	e := &GenerationEngine{
		validator: validator,
		now:       time.Now,
		state:     domain.StateIdle,
		registry:  domain.NewRegistry(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.source == nil {
		e.source = agent.New(agent.NewRandomRand(), e.now)
	}
	if e.newID == nil {
		gen, _ := idgen.New(idgen.ULID)
		e.newID = gen
	}
	e.sessions = domain.NewSessionLog(e.newID, e.now)
	return e
}

// Load restores persisted state. Unreadable blobs degrade to empty state;
// the returned error only reports what was skipped. The registry is then
// repaired to hold exactly the session members plus the active batch:
// session strings are re-registered, and registered strings owned by
// nothing are adopted into the active batch so the next generation
// archives them.
func (e *GenerationEngine) Load(ctx context.Context) error {
	if e.store == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	log := logging.Ctx(ctx)

	agents, err := e.store.LoadRegistry(ctx)
	if err != nil {
		err = asStorageError("load", blobRegistry, err)
		log.Warn().Err(err).Str(logging.FieldBlob, blobRegistry).Msg("registry not restored, starting empty")
		errs = append(errs, err)
		agents = nil
	}

	sessions, err := e.store.LoadSessions(ctx)
	if err != nil {
		err = asStorageError("load", blobSessions, err)
		log.Warn().Err(err).Str(logging.FieldBlob, blobSessions).Msg("session history not restored, starting empty")
		errs = append(errs, err)
		sessions = nil
	}

	active, err := e.store.LoadActive(ctx)
	if err != nil {
		err = asStorageError("load", blobActive, err)
		log.Warn().Err(err).Str(logging.FieldBlob, blobActive).Msg("active batch not restored")
		errs = append(errs, err)
		active = nil
	}

	cleaned := domain.DedupeSessions(sessions)
	if len(cleaned) != len(sessions) {
		log.Warn().
			Int(logging.FieldSessions, len(cleaned)).
			Int("dropped", len(sessions)-len(cleaned)).
			Msg("duplicate or empty sessions dropped from history")
	}
	sessions = cleaned

	e.registry = domain.NewRegistry(agents...)
	owned := make(map[string]struct{}, len(agents))
	for _, s := range sessions {
		for _, a := range s.Agents {
			e.registry.Insert(a)
			owned[a] = struct{}{}
		}
	}

	e.active = nil
	for _, a := range active {
		if _, ok := owned[a]; ok {
			continue
		}
		owned[a] = struct{}{}
		e.registry.Insert(a)
		e.active = append(e.active, a)
	}

	var orphans []string
	for _, a := range e.registry.Members() {
		if _, ok := owned[a]; !ok {
			orphans = append(orphans, a)
		}
	}
	if len(orphans) > 0 {
		slices.Sort(orphans)
		e.active = append(e.active, orphans...)
		log.Info().Int("adopted", len(orphans)).Msg("unowned registry strings moved to the active batch")
	}

	e.sessions.Restore(sessions)

	log.Info().
		Int(logging.FieldSessions, e.sessions.Len()).
		Int(logging.FieldRegistry, e.registry.Len()).
		Int(logging.FieldActive, len(e.active)).
		Msg("state loaded")

	return errors.Join(errs...)
}

// GenerateBatch archives the pending batch, then collects up to n strings
// never seen by the registry. n is clamped to [MinCount, MaxCount]. The
// loop stops after MaxTries(n) candidates; running out is reported through
// Batch.Exhausted, not as an error. A non-nil *domain.StorageError means
// the batch is valid but could not be saved.
func (e *GenerationEngine) GenerateBatch(ctx context.Context, n int, profile domain.Profile, opts domain.Options) (Batch, error) {
	if err := e.begin(ctx, domain.EventBeginGeneration); err != nil {
		return Batch{}, err
	}
	defer e.end(ctx, domain.EventEndGeneration)

	e.mu.Lock()
	defer e.mu.Unlock()

	n = ClampCount(n)
	opts = opts.Normalize()
	batch := Batch{Requested: n, Agents: make([]string, 0, n)}

	if s, ok := e.archiveLocked(); ok {
		batch.Archived = &s
	}

	maxTries := MaxTries(n)
	for len(batch.Agents) < n && batch.Attempts < maxTries {
		batch.Attempts++
		ua := e.source.Generate(profile, opts)
		if !e.registry.Contains(ua) {
			e.registry.Insert(ua)
			batch.Agents = append(batch.Agents, ua)
		}
		if e.progress != nil && batch.Attempts%ProgressInterval == 0 {
			e.progress(len(batch.Agents), n)
		}
	}
	batch.Exhausted = len(batch.Agents) < n
	e.active = slices.Clone(batch.Agents)
	if e.progress != nil {
		e.progress(len(batch.Agents), n)
	}

	log := logging.Ctx(ctx)
	if batch.Exhausted {
		log.Warn().
			Int(logging.FieldRequested, n).
			Int(logging.FieldProduced, batch.Produced()).
			Int(logging.FieldAttempts, batch.Attempts).
			Msg("retry limit reached before batch was complete")
	} else {
		log.Info().
			Int(logging.FieldProduced, batch.Produced()).
			Int(logging.FieldAttempts, batch.Attempts).
			Msg("batch generated")
	}

	saveErr := e.saveLocked(ctx)

	if batch.Archived != nil {
		e.publish(ctx, domain.Notice{Kind: domain.NoticeSessionArchived, SessionID: batch.Archived.ID, Count: batch.Archived.Count})
	}
	e.publish(ctx, domain.Notice{Kind: domain.NoticeBatchGenerated, Count: batch.Produced(), Exhausted: batch.Exhausted})
	if e.recorder != nil {
		e.recorder.RecordBatch(ctx, batch)
	}

	return batch, saveErr
}

// ArchiveIfPending moves a non-empty active batch into the session history.
// The returned flag is false when there was nothing to archive.
func (e *GenerationEngine) ArchiveIfPending(ctx context.Context) (domain.Session, bool, error) {
	if err := e.begin(ctx, domain.EventBeginMaintenance); err != nil {
		return domain.Session{}, false, err
	}
	defer e.end(ctx, domain.EventEndMaintenance)

	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.archiveLocked()
	if !ok {
		return domain.Session{}, false, nil
	}
	saveErr := e.saveLocked(ctx)
	e.publish(ctx, domain.Notice{Kind: domain.NoticeSessionArchived, SessionID: s.ID, Count: s.Count})
	return s, true, saveErr
}

// ClearActive drops the active batch without archiving it and releases its
// strings from the registry. It returns how many strings were released.
func (e *GenerationEngine) ClearActive(ctx context.Context) (int, error) {
	if err := e.begin(ctx, domain.EventBeginMaintenance); err != nil {
		return 0, err
	}
	defer e.end(ctx, domain.EventEndMaintenance)

	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.active)
	if n == 0 {
		return 0, nil
	}
	for _, a := range e.active {
		e.registry.Remove(a)
	}
	e.active = nil
	return n, e.saveLocked(ctx)
}

// ViewSession returns an archived session without touching any state.
func (e *GenerationEngine) ViewSession(_ context.Context, id string) (domain.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions.Find(id)
}

// ExportSession renders an archived session as CSV.
func (e *GenerationEngine) ExportSession(ctx context.Context, id string) ([]byte, error) {
	s, err := e.ViewSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return EncodeCSV(s.Agents), nil
}

// DeleteSession removes a session and releases its strings for reuse.
// Deleting an unknown id returns domain.ErrSessionNotFound and changes nothing.
func (e *GenerationEngine) DeleteSession(ctx context.Context, id string) (domain.Session, error) {
	if err := e.begin(ctx, domain.EventBeginMaintenance); err != nil {
		return domain.Session{}, err
	}
	defer e.end(ctx, domain.EventEndMaintenance)

	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.sessions.Find(id)
	if err != nil {
		return domain.Session{}, err
	}
	agents, err := e.sessions.Delete(id)
	if err != nil {
		return domain.Session{}, err
	}
	for _, a := range agents {
		e.registry.Remove(a)
	}

	log := logging.Ctx(ctx)
	log.Info().
		Str(logging.FieldSessionID, id).
		Int(logging.FieldRegistry, e.registry.Len()).
		Msg("session deleted")

	saveErr := e.saveLocked(ctx)
	e.publish(ctx, domain.Notice{Kind: domain.NoticeSessionDeleted, SessionID: id, Count: s.Count})
	return s, saveErr
}

// RestoreLast returns the most recently archived session for preview. It
// does not change the active batch.
func (e *GenerationEngine) RestoreLast(_ context.Context) (domain.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions.Last()
}

// ResetAll forgets every string, session and the active batch, and wipes
// persisted state. Resetting an empty engine is a no-op.
func (e *GenerationEngine) ResetAll(ctx context.Context) error {
	if err := e.begin(ctx, domain.EventBeginMaintenance); err != nil {
		return err
	}
	defer e.end(ctx, domain.EventEndMaintenance)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.registry.Clear()
	e.sessions.Clear()
	e.active = nil

	var clearErr error
	if e.store != nil {
		if err := e.store.Clear(ctx); err != nil {
			clearErr = asStorageError("clear", "", err)
			log := logging.Ctx(ctx)
			log.Warn().Err(clearErr).Msg("persisted state not cleared")
		}
	}
	e.publish(ctx, domain.Notice{Kind: domain.NoticeStoreReset})
	return clearErr
}

// Search returns the active strings containing q, case-insensitively.
// An empty query returns the whole active batch.
func (e *GenerationEngine) Search(_ context.Context, q string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return slices.Clone(e.active)
	}
	var out []string
	for _, a := range e.active {
		if strings.Contains(strings.ToLower(a), q) {
			out = append(out, a)
		}
	}
	return out
}

// Active returns a copy of the active batch.
func (e *GenerationEngine) Active(ctx context.Context) []string {
	return e.Search(ctx, "")
}

// Sessions returns the archived sessions oldest first.
func (e *GenerationEngine) Sessions(_ context.Context) []domain.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions.All()
}

// Contains reports whether s is currently reserved.
func (e *GenerationEngine) Contains(s string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Contains(s)
}

// Stats returns the current sizes of the engine's collections.
func (e *GenerationEngine) Stats(_ context.Context) Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Sessions: e.sessions.Len(),
		Registry: e.registry.Len(),
		Active:   len(e.active),
	}
}

// State returns the engine lifecycle state.
func (e *GenerationEngine) State() domain.State {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

// archiveLocked appends the active batch to the history. Its strings stay
// registered. e.mu must be held.
func (e *GenerationEngine) archiveLocked() (domain.Session, bool) {
	if len(e.active) == 0 {
		return domain.Session{}, false
	}
	s := e.sessions.Append(e.active)
	e.active = nil
	return s, true
}

// saveLocked writes a full snapshot. Failures are logged and returned as a
// *domain.StorageError; in-memory state is kept as is. e.mu must be held.
func (e *GenerationEngine) saveLocked(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	agents := e.registry.Members()
	slices.Sort(agents)
	err := e.store.Save(ctx, domain.Snapshot{
		Registry: agents,
		Sessions: e.sessions.All(),
		Active:   slices.Clone(e.active),
	})
	if err != nil {
		err = asStorageError("save", "", err)
		log := logging.Ctx(ctx)
		log.Warn().Err(err).Msg("state not saved; persisted copy is stale")
		return err
	}
	return nil
}

func (e *GenerationEngine) publish(ctx context.Context, n domain.Notice) {
	if e.publisher == nil {
		return
	}
	n.At = e.now().UTC()
	if err := e.publisher.Publish(ctx, n); err != nil {
		log := logging.Ctx(ctx)
		log.Warn().Err(err).Str("notice", string(n.Kind)).Msg("publishing notice failed")
	}
}

// begin moves the engine out of idle, failing with ErrEngineBusy when
// another operation holds it.
func (e *GenerationEngine) begin(ctx context.Context, event domain.Event) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	next, err := e.validator.Apply(ctx, e.state, event)
	if err != nil {
		var trErr *domain.TransitionError
		if errors.As(err, &trErr) {
			return fmt.Errorf("%w (state %s)", domain.ErrEngineBusy, trErr.Current)
		}
		return err
	}
	e.state = next
	return nil
}

func (e *GenerationEngine) end(ctx context.Context, event domain.Event) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	next, err := e.validator.Apply(ctx, e.state, event)
	if err != nil {
		log := logging.Ctx(ctx)
		log.Error().Err(err).Msg("engine state out of sync, forcing idle")
		next = domain.StateIdle
	}
	e.state = next
}

func asStorageError(op, blob string, err error) error {
	var se *domain.StorageError
	if errors.As(err, &se) {
		return se
	}
	return &domain.StorageError{Op: op, Blob: blob, Err: err}
}
