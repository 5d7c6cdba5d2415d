package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestRegistry(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions...)

	r := NewRegistry(staticOracle{result: success().result}, time.Hour)
	defer r.Close()

	s := r.Create()
	_, err := uuid.Parse(s.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	got, err := r.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, got.Analyze(context.Background(), "example.com"))
	assert.Len(t, s.Snapshot().Segments, 1)

	other := r.Create()
	assert.NotEqual(t, s.ID(), other.ID())
	assert.Empty(t, other.Snapshot().Segments, "sessions do not share state")

	require.NoError(t, r.Delete(s.ID()))
	assert.ErrorIs(t, r.Delete(s.ID()), ErrNotFound)
	_, err = r.Get(s.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Analyze(context.Background(), "example.com"), ErrClosed)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryEvictsIdleSessions(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions...)

	r := NewRegistry(staticOracle{result: success().result}, time.Minute)
	defer r.Close()

	idle := r.Create()
	fresh := r.Create()

	later := time.Now().Add(2 * time.Minute)
	fresh.mu.Lock()
	fresh.lastUsed = later
	fresh.mu.Unlock()

	assert.Equal(t, 1, r.evict(later))
	_, err := r.Get(idle.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Get(fresh.ID())
	assert.NoError(t, err)
	assert.ErrorIs(t, idle.Analyze(context.Background(), "example.com"), ErrClosed)
}

func TestRegistryKeepsRunningSessions(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions...)

	o := newGatedOracle()
	r := NewRegistry(o, time.Minute)
	defer r.Close()

	s := r.Create()
	done, _ := startAnalyze(t, context.Background(), s, o, "example.com")

	assert.Equal(t, 0, r.evict(time.Now().Add(time.Hour)))
	assert.Equal(t, 1, r.Len())

	o.release <- success()
	require.NoError(t, wait(t, done))
}

func TestRegistryClose(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions...)

	r := NewRegistry(staticOracle{}, 0)
	s := r.Create()

	r.Close()
	r.Close()

	assert.Equal(t, 0, r.Len())
	assert.ErrorIs(t, s.Analyze(context.Background(), "example.com"), ErrClosed)
}
