package importer

// service.go coordinates import sessions.
//
// Each session walks the state machine created -> parsing -> validating ->
// committing -> terminal. Per-row defects never fail a session; only a
// ParseError or a schema misconfiguration does. The orchestrator goroutine
// exclusively owns the session counters: parsers, validators and commit
// workers return outcomes, they never touch shared state directly.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"rosterimport/internal/metrics"
	"rosterimport/internal/schema"
)

// ErrSessionNotFound is returned for unknown or already-expired session ids.
var ErrSessionNotFound = errors.New("import session not found")

// ErrUnknownSchema is returned when no definition is registered for the
// requested schema key.
var ErrUnknownSchema = errors.New("unknown schema key")

// SessionTimeout is the maximum duration for one import session.
var SessionTimeout = 10 * time.Minute

// sessionRetention is how long a finished session stays queryable in memory.
var sessionRetention = 5 * time.Minute

// Store persists finished sessions for history and error re-export.
type Store interface {
	SaveSummary(ctx context.Context, s Summary) error
	ListSummaries(ctx context.Context, limit int) ([]Summary, error)
	GetErrors(ctx context.Context, sessionID string) ([]RowError, error)
}

// Options configures a Service.
type Options struct {
	CommitWorkers   int           // concurrent downstream calls per session (default 6)
	ValidateWorkers int           // concurrent row validations (default GOMAXPROCS)
	MaxConcurrent   int           // simultaneous sessions (default 5)
	MaxWaitTime     time.Duration // wait for a session slot (default 30s)
	SessionTimeout  time.Duration // per-session deadline (default 10m)
}

// Service runs import sessions and tracks their progress and results.
type Service struct {
	committer Committer
	store     Store // nil disables persistence
	metrics   *metrics.Metrics
	limiter   *Limiter
	opts      Options

	mu       sync.RWMutex
	sessions map[string]*session
}

// session is the in-memory mutable aggregate for one run of the pipeline.
type session struct {
	ID        string
	SchemaKey string
	FileName  string
	StartedAt time.Time

	cancel  context.CancelFunc
	tracker *progressTracker
	done    chan struct{}

	mu      sync.Mutex
	summary *Summary
}

// NewService creates an import service. committer is required; store and m
// may be nil.
func NewService(committer Committer, store Store, m *metrics.Metrics, opts Options) *Service {
	if committer == nil {
		panic("importer: committer is required")
	}
	if opts.CommitWorkers <= 0 {
		opts.CommitWorkers = 6
	}
	if opts.SessionTimeout <= 0 {
		opts.SessionTimeout = SessionTimeout
	}

	return &Service{
		committer: committer,
		store:     store,
		metrics:   m,
		limiter:   NewLimiter(opts.MaxConcurrent, opts.MaxWaitTime),
		opts:      opts,
		sessions:  make(map[string]*session),
	}
}

// Start begins an asynchronous import session over fileData, which must be
// the complete uploaded file. It returns the session id immediately; use
// SubscribeProgress and Summary to observe the run.
func (s *Service) Start(ctx context.Context, schemaKey, fileName, contentType string, fileData []byte) (string, error) {
	def, ok := schema.Get(schemaKey)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSchema, schemaKey)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	sessionID := uuid.New().String()
	runCtx, cancel := context.WithTimeout(context.Background(), s.opts.SessionTimeout)

	sess := &session{
		ID:        sessionID,
		SchemaKey: schemaKey,
		FileName:  fileName,
		StartedAt: time.Now(),
		cancel:    cancel,
		tracker:   newProgressTracker(sessionID),
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	s.sessions[sessionID] = sess
	s.mu.Unlock()

	s.metrics.SessionStarted()

	go s.run(runCtx, sess, def, contentType, fileData)

	return sessionID, nil
}

// Cancel requests cancellation of an in-flight session. Rows not yet
// dispatched to the downstream endpoint receive cancelled outcomes;
// dispatched calls drain to real outcomes.
func (s *Service) Cancel(sessionID string) error {
	sess, ok := s.get(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	sess.cancel()
	return nil
}

// SubscribeProgress returns a channel of progress snapshots. The channel is
// closed when the session reaches a terminal state.
func (s *Service) SubscribeProgress(sessionID string) (<-chan Progress, error) {
	sess, ok := s.get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return sess.tracker.subscribe(), nil
}

// GetProgress returns the current progress without blocking.
func (s *Service) GetProgress(sessionID string) (Progress, error) {
	sess, ok := s.get(sessionID)
	if !ok {
		return Progress{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return sess.tracker.snapshot(), nil
}

// Summary blocks until the session finishes and returns its final summary.
func (s *Service) Summary(ctx context.Context, sessionID string) (*Summary, error) {
	sess, ok := s.get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	select {
	case <-sess.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.summary, nil
}

// History returns recently finished sessions from the store, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]Summary, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListSummaries(ctx, limit)
}

// SessionErrors returns the persisted error report for a finished session.
func (s *Service) SessionErrors(ctx context.Context, sessionID string) ([]RowError, error) {
	// Prefer the in-memory summary while the session is retained.
	if sess, ok := s.get(sessionID); ok {
		select {
		case <-sess.done:
			sess.mu.Lock()
			defer sess.mu.Unlock()
			return sess.summary.Errors, nil
		default:
			return nil, fmt.Errorf("session %s still running", sessionID)
		}
	}

	if s.store == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return s.store.GetErrors(ctx, sessionID)
}

func (s *Service) get(sessionID string) (*session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	return sess, ok
}

// cleanup removes the session from tracking after a delay.
func (s *Service) cleanup(sessionID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
	})
}
