package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seo-optimizer/segment-architect/oracle"
)

// ErrNotFound is returned for unknown or evicted session ids.
var ErrNotFound = errors.New("session not found")

// DefaultTTL is how long an unused session is kept.
const DefaultTTL = time.Hour

// Registry holds sessions keyed by id and evicts idle ones.
type Registry struct {
	oracle   oracle.Oracle
	opts     []Option
	logger   *zap.Logger
	ttl      time.Duration
	sessions map[string]*Session
	mutex    sync.RWMutex
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewRegistry starts a registry whose sessions share o and opts.
func NewRegistry(o oracle.Oracle, ttl time.Duration, opts ...Option) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	r := &Registry{
		oracle:   o,
		opts:     opts,
		logger:   buildOptions(opts).logger,
		ttl:      ttl,
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	go r.periodicCleanup(max(ttl/4, time.Second))

	return r
}

// Create registers a new idle session.
func (r *Registry) Create() *Session {
	s := New(uuid.NewString(), r.oracle, r.opts...)

	r.mutex.Lock()
	r.sessions[s.ID()] = s
	r.mutex.Unlock()

	r.logger.Debug("Session created", zap.String("session", s.ID()))
	return s
}

// Get returns the session with id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mutex.RLock()
	s, ok := r.sessions[id]
	r.mutex.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete closes and removes the session with id.
func (r *Registry) Delete(id string) error {
	r.mutex.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mutex.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Close()
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.sessions)
}

// Close stops eviction and closes every session.
func (r *Registry) Close() {
	r.stopOnce.Do(func() {
		close(r.stop)
		<-r.done

		r.mutex.Lock()
		defer r.mutex.Unlock()
		for id, s := range r.sessions {
			s.Close()
			delete(r.sessions, id)
		}
	})
}

func (r *Registry) periodicCleanup(interval time.Duration) {
	defer close(r.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			r.evict(now)
		case <-r.stop:
			return
		}
	}
}

// evict closes sessions unused for longer than the TTL.
func (r *Registry) evict(now time.Time) int {
	r.mutex.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.idleFor(now) > r.ttl {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mutex.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		r.logger.Debug("Evicted idle sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}
