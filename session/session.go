// Package session holds the per-user analysis state: which domain was
// analyzed, whether an exchange is running and the last result or failure.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seo-optimizer/segment-architect/oracle"
	"github.com/seo-optimizer/segment-architect/segment"
	"github.com/seo-optimizer/segment-architect/stats"
)

// Status of a session.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusError   Status = "error"
)

// FailureMessage is shown for every failed analysis; the failure kind is
// only logged.
const FailureMessage = "An error occurred while analyzing the domain. Please try again."

var (
	ErrClosed   = errors.New("session closed")
	ErrInFlight = errors.New("analysis already in progress")
	// ErrOraclePanic is the recorded cause when the oracle panics.
	ErrOraclePanic = errors.New("oracle panicked")
	// ErrEmptyDomain matches oracle.ErrEmptyDomain.
	ErrEmptyDomain = oracle.ErrEmptyDomain
)

// Snapshot is a point-in-time copy of a session. It shares no memory with
// the session.
type Snapshot struct {
	ID        string            `json:"id"`
	Status    Status            `json:"status"`
	Domain    string            `json:"domain,omitempty"`
	Segments  []segment.Segment `json:"segments"`
	Message   string            `json:"error,omitempty"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// HasResult reports whether the snapshot holds segments ready for export.
func (s Snapshot) HasResult() bool {
	return s.Status == StatusIdle && len(s.Segments) > 0
}

type options struct {
	timeout  time.Duration
	recorder stats.Recorder
	logger   *zap.Logger
}

// Option configures sessions.
type Option func(*options)

// WithTimeout bounds each oracle exchange. Zero leaves it to the oracle.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithRecorder counts analysis outcomes.
func WithRecorder(r stats.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{recorder: stats.Nop{}, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Session is the analysis state of one user. It is safe for concurrent use.
type Session struct {
	id     string
	oracle oracle.Oracle
	opts   options

	mu       sync.Mutex
	status   Status
	domain   string
	segments []segment.Segment
	err      error
	updated  time.Time
	lastUsed time.Time
	closed   bool
}

// New creates an idle session backed by o.
func New(id string, o oracle.Oracle, opts ...Option) *Session {
	now := time.Now()
	return &Session{
		id:       id,
		oracle:   o,
		opts:     buildOptions(opts),
		status:   StatusIdle,
		segments: []segment.Segment{},
		updated:  now,
		lastUsed: now,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Analyze runs one exchange for domain and blocks until it resolves.
//
// The previous result and error are cleared before the oracle is called. A
// second call while one is running fails with ErrInFlight. The exchange is
// not cancelled when ctx is; it is bounded by the session timeout only.
// On failure the oracle error is returned and the session moves to
// StatusError.
func (s *Session) Analyze(ctx context.Context, domain string) error {
	domain = strings.TrimSpace(domain)

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case s.status == StatusLoading:
		s.mu.Unlock()
		return ErrInFlight
	case domain == "":
		s.mu.Unlock()
		return ErrEmptyDomain
	}
	s.status = StatusLoading
	s.domain = domain
	s.segments = []segment.Segment{}
	s.err = nil
	s.touch()
	s.mu.Unlock()

	callCtx := context.WithoutCancel(ctx)
	if s.opts.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, s.opts.timeout)
		defer cancel()
	}

	returned := false
	defer func() {
		if !returned {
			s.abandon(domain)
		}
	}()

	start := time.Now()
	result, err := s.oracle.Analyze(callCtx, domain)
	elapsed := time.Since(start)
	returned = true

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.opts.logger.Debug("Dropping result for closed session",
			zap.String("session", s.id),
			zap.String("domain", domain))
		return ErrClosed
	}

	s.touch()
	if err != nil {
		s.status = StatusError
		s.err = err
		s.opts.recorder.Record(stats.AnalysisFailed)
		s.opts.logger.Warn("Analysis failed",
			zap.String("session", s.id),
			zap.String("domain", domain),
			zap.Error(err),
			zap.Duration("elapsed", elapsed))
		return err
	}

	s.status = StatusIdle
	s.segments = segment.Clone(result.Segments)
	s.opts.recorder.Record(stats.AnalysisSucceeded)
	s.opts.logger.Info("Analysis completed",
		zap.String("session", s.id),
		zap.String("domain", domain),
		zap.Int("segments", len(s.segments)),
		zap.Duration("elapsed", elapsed))
	return nil
}

// abandon leaves the loading state after the oracle panicked. The panic
// keeps propagating to the caller.
func (s *Session) abandon(domain string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.status = StatusError
	s.segments = []segment.Segment{}
	s.err = ErrOraclePanic
	s.touch()
	s.opts.recorder.Record(stats.AnalysisFailed)
	s.opts.logger.Error("Oracle panicked",
		zap.String("session", s.id),
		zap.String("domain", domain))
}

// Snapshot returns a deep copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastUsed = time.Now()
	snap := Snapshot{
		ID:        s.id,
		Status:    s.status,
		Domain:    s.domain,
		Segments:  segment.Clone(s.segments),
		UpdatedAt: s.updated,
	}
	if s.status == StatusError {
		snap.Message = FailureMessage
	}
	return snap
}

// Err returns the cause of the last failed analysis, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close discards the state. A running exchange finishes but its result is
// dropped, and later calls to Analyze return ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.segments = []segment.Segment{}
	s.err = nil
}

// idleFor reports how long the session has gone unused. Running sessions
// are never idle.
func (s *Session) idleFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusLoading {
		return 0
	}
	return now.Sub(s.lastUsed)
}

// touch must be called with s.mu held.
func (s *Session) touch() {
	now := time.Now()
	s.updated = now
	s.lastUsed = now
}
