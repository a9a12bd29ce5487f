package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(limit int, window time.Duration, now *time.Time) *Limiter {
	l := New(NewMemoryStore(), limit, window)
	l.nowFunc = func() time.Time { return *now }
	return l
}

func TestLimiter_RejectsLimitPlusOne(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	l := newTestLimiter(5, time.Minute, &now)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := l.Allow(ctx, "user-x")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 5-(i+1), d.Remaining)
	}

	d, err := l.Allow(ctx, "user-x")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryAfter)
	assert.Equal(t, 60, d.RetryAfterSeconds())
}

func TestLimiter_WindowResetsLazily(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	l := newTestLimiter(2, time.Minute, &now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := l.Allow(ctx, "user-x")
		require.NoError(t, err)
	}

	now = now.Add(30 * time.Second)
	d, err := l.Allow(ctx, "user-x")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 30*time.Second, d.RetryAfter)

	now = now.Add(30 * time.Second)
	d, err = l.Allow(ctx, "user-x")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
}

func TestLimiter_IdentitiesIndependent(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	l := newTestLimiter(1, time.Minute, &now)
	ctx := context.Background()

	d, _ := l.Allow(ctx, "a")
	assert.True(t, d.Allowed)
	d, _ = l.Allow(ctx, "a")
	assert.False(t, d.Allowed)

	d, _ = l.Allow(ctx, "b")
	assert.True(t, d.Allowed)
}

func TestLimiter_ConcurrentSameIdentity(t *testing.T) {
	l := New(NewMemoryStore(), 50, time.Hour)
	ctx := context.Background()

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Allow(ctx, "hot-user")
			if err == nil && d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), allowed.Load())
}

type failingStore struct{}

func (failingStore) Increment(context.Context, string, time.Time, time.Duration) (Window, error) {
	return Window{}, errors.New("connection refused")
}

func TestLimiter_StoreErrorReturned(t *testing.T) {
	l := New(failingStore{}, 5, time.Minute)

	d, err := l.Allow(context.Background(), "user-x")
	require.Error(t, err)
	assert.False(t, d.Allowed)
	assert.Contains(t, err.Error(), "ratelimit: increment user-x")
}

func TestNew_Defaults(t *testing.T) {
	l := New(NewMemoryStore(), 0, 0)
	assert.Equal(t, 1, l.limit)
	assert.Equal(t, time.Minute, l.window)
}

func TestDecision_RetryAfterSeconds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		d    time.Duration
		want int
	}{
		{0, 1},
		{300 * time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{42 * time.Second, 42},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Decision{RetryAfter: tt.d}.RetryAfterSeconds(), tt.d.String())
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	_, _ = s.Increment(ctx, "a", now, time.Minute)
	_, _ = s.Increment(ctx, "b", now.Add(50*time.Second), time.Minute)
	require.Equal(t, 2, s.Len())

	removed := s.Sweep(now.Add(time.Minute))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, s.Len())
}
