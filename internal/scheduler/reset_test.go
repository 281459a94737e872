package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinote/tinote/internal/testutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// After fires almost immediately so loops and backoffs do not wait on wall time.
func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	return time.After(time.Millisecond)
}

type fakeResetter struct {
	mu     sync.Mutex
	calls  []int
	errs   []error
	called chan struct{}
}

func newFakeResetter(errs ...error) *fakeResetter {
	return &fakeResetter{errs: errs, called: make(chan struct{}, 16)}
}

func (r *fakeResetter) ResetAll(ctx context.Context, value int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, value)
	r.called <- struct{}{}
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return 0, err
	}
	return 3, nil
}

func (r *fakeResetter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

var seoul = time.FixedZone("KST", 9*60*60)

func at(day, hour, minute, sec int) time.Time {
	return time.Date(2026, 3, day, hour, minute, sec, 0, seoul)
}

func newTestScheduler(resetter Resetter, clock Clock, hour, minute int) *ResetScheduler {
	return NewResetScheduler(resetter, Config{
		Hour:           hour,
		Minute:         minute,
		Location:       seoul,
		CheckInterval:  time.Millisecond,
		Credits:        10,
		AttemptTimeout: time.Second,
		MaxAttempts:    3,
	}, clock, testutil.NopLogger())
}

func TestTick_FiresExactlyOnceOnCrossing(t *testing.T) {
	r := newFakeResetter()
	s := newTestScheduler(r, nil, 0, 0)
	ctx := context.Background()

	s.tick(ctx, at(1, 23, 59, 58))
	s.tick(ctx, at(1, 23, 59, 59))
	assert.Equal(t, 0, r.count())

	s.tick(ctx, at(2, 0, 0, 0))
	assert.Equal(t, 1, r.count())

	s.tick(ctx, at(2, 0, 0, 1))
	s.tick(ctx, at(2, 0, 0, 2))
	s.tick(ctx, at(2, 12, 0, 0))
	assert.Equal(t, 1, r.count())
	assert.Equal(t, []int{10}, r.calls)
}

func TestTick_FiresAgainNextDay(t *testing.T) {
	r := newFakeResetter()
	s := newTestScheduler(r, nil, 4, 30)
	ctx := context.Background()

	s.tick(ctx, at(1, 4, 29, 0))
	s.tick(ctx, at(1, 4, 31, 0))
	s.tick(ctx, at(2, 4, 29, 59))
	s.tick(ctx, at(2, 4, 30, 0))

	assert.Equal(t, 2, r.count())
}

func TestTick_NoCatchUpAtStartup(t *testing.T) {
	r := newFakeResetter()
	s := newTestScheduler(r, nil, 0, 0)
	ctx := context.Background()

	s.tick(ctx, at(1, 9, 0, 0))
	s.tick(ctx, at(1, 9, 0, 1))
	s.tick(ctx, at(1, 23, 0, 0))

	assert.Equal(t, 0, r.count())
}

func TestTick_DelayedTickStillFires(t *testing.T) {
	r := newFakeResetter()
	s := newTestScheduler(r, nil, 0, 0)
	ctx := context.Background()

	s.tick(ctx, at(1, 23, 58, 0))
	s.tick(ctx, at(2, 0, 3, 0))

	assert.Equal(t, 1, r.count())
}

func TestTick_ClockGoingBackwardsDoesNotRefire(t *testing.T) {
	r := newFakeResetter()
	s := newTestScheduler(r, nil, 0, 0)
	ctx := context.Background()

	s.tick(ctx, at(1, 23, 59, 59))
	s.tick(ctx, at(2, 0, 0, 1))
	s.tick(ctx, at(1, 23, 59, 50))
	s.tick(ctx, at(2, 0, 0, 5))

	assert.Equal(t, 1, r.count())
}

func TestTick_RetriesThenContinues(t *testing.T) {
	fail := errors.New("db unavailable")
	r := newFakeResetter(fail, fail)
	clock := newFakeClock(at(1, 0, 0, 0))
	s := newTestScheduler(r, clock, 0, 0)
	ctx := context.Background()

	s.tick(ctx, at(1, 23, 59, 59))
	s.tick(ctx, at(2, 0, 0, 0))

	assert.Equal(t, 3, r.count())
}

func TestTick_AbandonsAfterMaxAttempts(t *testing.T) {
	fail := errors.New("db unavailable")
	r := newFakeResetter(fail, fail, fail)
	clock := newFakeClock(at(1, 0, 0, 0))
	s := newTestScheduler(r, clock, 0, 0)
	ctx := context.Background()

	s.tick(ctx, at(1, 23, 59, 59))
	s.tick(ctx, at(2, 0, 0, 0))
	assert.Equal(t, 3, r.count())

	s.tick(ctx, at(2, 0, 0, 1))
	assert.Equal(t, 3, r.count())

	s.tick(ctx, at(2, 23, 59, 59))
	s.tick(ctx, at(3, 0, 0, 0))
	assert.Equal(t, 4, r.count())
}

func TestRun_FiresOnCrossingAndShutsDown(t *testing.T) {
	r := newFakeResetter()
	clock := newFakeClock(at(1, 23, 59, 59))
	s := newTestScheduler(r, clock, 0, 0)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Run(context.Background())
	}()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, r.count())

	clock.Set(at(2, 0, 0, 1))

	select {
	case <-r.called:
	case <-time.After(2 * time.Second):
		t.Fatal("reset was not called after crossing")
	}

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, r.count())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(shutdownCtx))
	require.NoError(t, <-errCh)
}

func TestRun_RejectsSecondStart(t *testing.T) {
	s := newTestScheduler(newFakeResetter(), newFakeClock(at(1, 12, 0, 0)), 0, 0)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	assert.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.started
	}, time.Second, 5*time.Millisecond)

	assert.Error(t, s.Run(ctx))

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

type blockingResetter struct {
	once    sync.Once
	started chan struct{}
	seen    chan error
}

func (r *blockingResetter) ResetAll(ctx context.Context, value int) (int64, error) {
	r.once.Do(func() { close(r.started) })
	<-ctx.Done()
	select {
	case r.seen <- ctx.Err():
	default:
	}
	return 0, ctx.Err()
}

func TestShutdown_CancelsInFlightReset(t *testing.T) {
	r := &blockingResetter{started: make(chan struct{}), seen: make(chan error, 1)}
	clock := newFakeClock(at(1, 23, 59, 59))
	s := newTestScheduler(r, clock, 0, 0)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	clock.Set(at(2, 0, 0, 1))

	select {
	case <-r.started:
	case <-time.After(2 * time.Second):
		t.Fatal("reset was not started after crossing")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(shutdownCtx))
	require.NoError(t, <-errCh)
	assert.ErrorIs(t, <-r.seen, context.Canceled)
}

func TestShutdown_NotStarted(t *testing.T) {
	s := newTestScheduler(newFakeResetter(), nil, 0, 0)
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestNextRetryDelay(t *testing.T) {
	tests := []struct {
		attempt  int
		minDelay time.Duration
		maxDelay time.Duration
	}{
		{-1, 4 * time.Second, 6 * time.Second},
		{0, 4 * time.Second, 6 * time.Second},
		{1, 24 * time.Second, 36 * time.Second},
		{2, 96 * time.Second, 144 * time.Second},
		{10, 8 * time.Minute, 12 * time.Minute},
	}

	for _, tt := range tests {
		for i := 0; i < 10; i++ {
			delay := NextRetryDelay(tt.attempt)
			if delay < tt.minDelay || delay > tt.maxDelay {
				t.Errorf("NextRetryDelay(%d) = %v, want between %v and %v",
					tt.attempt, delay, tt.minDelay, tt.maxDelay)
			}
		}
	}
}

func TestIsExhausted(t *testing.T) {
	assert.False(t, IsExhausted(2, 3))
	assert.True(t, IsExhausted(3, 3))
	assert.True(t, IsExhausted(4, 3))
}
