package admission

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

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestControllerRemainingDecreasesToZero(t *testing.T) {
	clock := newFakeClock()
	c := NewController(WithClock(clock.Now))

	const limit = 5
	for i := 1; i <= limit; i++ {
		d := c.Check("203.0.113.1", "blacklist", limit)
		require.True(t, d.Allowed, "request %d", i)
		require.Equal(t, limit-i, d.Remaining)
		require.Equal(t, limit, d.Limit)
		clock.Advance(time.Second)
	}

	d := c.Check("203.0.113.1", "blacklist", limit)
	require.False(t, d.Allowed)
	require.Equal(t, 0, d.Remaining)
	require.Equal(t, 55, d.ResetIn)
}

func TestControllerFirstRequestResetsInFullWindow(t *testing.T) {
	c := NewController(WithClock(newFakeClock().Now))

	d := c.Check("client", "blacklist", 20)
	assert.True(t, d.Allowed)
	assert.Equal(t, 19, d.Remaining)
	assert.Equal(t, 60, d.ResetIn)
}

func TestControllerResetInRoundsUp(t *testing.T) {
	clock := newFakeClock()
	c := NewController(WithClock(clock.Now))

	c.Check("client", "blacklist", 3)
	clock.Advance(1500 * time.Millisecond)

	d := c.Check("client", "blacklist", 3)
	require.True(t, d.Allowed)
	assert.Equal(t, 59, d.ResetIn)
}

func TestControllerStartsFreshWindowAfterExpiry(t *testing.T) {
	clock := newFakeClock()
	c := NewController(WithClock(clock.Now))

	for i := 0; i < 2; i++ {
		c.Check("client", "blacklist", 2)
	}
	denied := c.Check("client", "blacklist", 2)
	require.False(t, denied.Allowed)

	clock.Advance(time.Duration(denied.ResetIn) * time.Second)
	// The window boundary itself still belongs to the old window.
	require.False(t, c.Check("client", "blacklist", 2).Allowed)

	clock.Advance(time.Millisecond)
	d := c.Check("client", "blacklist", 2)
	require.True(t, d.Allowed)
	require.Equal(t, 1, d.Remaining)
	require.Equal(t, 60, d.ResetIn)
}

func TestControllerEndpointsAreIndependent(t *testing.T) {
	c := NewController(WithClock(newFakeClock().Now))

	for i := 0; i < 3; i++ {
		c.Check("client", "lookup", 3)
	}
	require.False(t, c.Check("client", "lookup", 3).Allowed)

	d := c.Check("client", "blacklist", 3)
	require.True(t, d.Allowed)
	require.Equal(t, 2, d.Remaining)
}

func TestControllerClientsAreIndependent(t *testing.T) {
	c := NewController(WithClock(newFakeClock().Now))

	require.True(t, c.Check("a", "blacklist", 1).Allowed)
	require.False(t, c.Check("a", "blacklist", 1).Allowed)
	require.True(t, c.Check("b", "blacklist", 1).Allowed)
}

func TestControllerNonPositiveLimitDenies(t *testing.T) {
	c := NewController(WithClock(newFakeClock().Now))

	d := c.Check("client", "blacklist", 0)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 0, c.Size("blacklist"))
}

func TestControllerConcurrentChecksNeverOverAdmit(t *testing.T) {
	c := NewController()

	const (
		limit   = 10
		workers = 200
	)

	var (
		wg      sync.WaitGroup
		allowed atomic.Int64
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if c.Check("same-client", "blacklist", limit).Allowed {
				allowed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, int64(limit), allowed.Load())
}

func TestControllerSweepEvictsExpiredRecords(t *testing.T) {
	clock := newFakeClock()
	c := NewController(WithClock(clock.Now))

	c.Check("old", "blacklist", 5)
	c.Check("old", "lookup", 5)
	clock.Advance(45 * time.Second)
	c.Check("fresh", "blacklist", 5)
	clock.Advance(16 * time.Second)

	evicted := c.Sweep()
	require.Equal(t, 2, evicted)
	require.Equal(t, 1, c.Size("blacklist"))
	require.Equal(t, 0, c.Size("lookup"))

	// A swept client starts over.
	d := c.Check("old", "blacklist", 5)
	require.Equal(t, 4, d.Remaining)
}

func TestControllerStartStop(t *testing.T) {
	c := NewController(WithWindow(10*time.Millisecond), WithSweepInterval(5*time.Millisecond))
	require.False(t, c.Running())

	c.Check("client", "blacklist", 5)
	c.Start(context.Background())
	c.Start(context.Background())
	require.True(t, c.Running())

	require.Eventually(t, func() bool {
		return c.Size("blacklist") == 0
	}, time.Second, 5*time.Millisecond)

	c.Stop()
	require.False(t, c.Running())
	c.Stop()
}

func TestControllerStopsWithContext(t *testing.T) {
	c := NewController(WithSweepInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	cancel()

	require.Eventually(t, func() bool { return !c.Running() }, time.Second, time.Millisecond)
	c.Stop()
}

type failingStats struct{ calls atomic.Int64 }

func (f *failingStats) Record(context.Context, StatsEvent) error {
	f.calls.Add(1)
	return errors.New("stats backend down")
}

func TestControllerStatsFailureDoesNotAffectDecision(t *testing.T) {
	stats := &failingStats{}
	c := NewController(WithStats(stats))

	d := c.Check("client", "blacklist", 1)
	require.True(t, d.Allowed)
	require.Equal(t, int64(1), stats.calls.Load())
}

// blockingStats waits for its context to end, recording what it saw.
type blockingStats struct {
	errAtEntry  error
	hasDeadline bool
}

func (b *blockingStats) Record(ctx context.Context, _ StatsEvent) error {
	b.errAtEntry = ctx.Err()
	_, b.hasDeadline = ctx.Deadline()
	<-ctx.Done()
	return ctx.Err()
}

func TestControllerBoundsStatsRecording(t *testing.T) {
	stats := &blockingStats{}
	c := NewController(WithStats(stats), WithStatsTimeout(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	d := c.CheckContext(ctx, "client", "blacklist", 2)
	require.True(t, d.Allowed)
	assert.Less(t, time.Since(start), time.Second)
	assert.NoError(t, stats.errAtEntry, "request cancellation leaked into stats recording")
	assert.True(t, stats.hasDeadline)
}

func TestControllerRecordsStats(t *testing.T) {
	stats := NewMemoryStats()
	c := NewController(WithStats(stats), WithClock(newFakeClock().Now))

	c.Check("client", "blacklist", 1)
	c.Check("client", "blacklist", 1)
	c.Check("client", "lookup", 1)

	snap := stats.Snapshot()
	assert.Equal(t, Counters{Allowed: 2, Denied: 1}, snap.Total)
	assert.Equal(t, Counters{Allowed: 1, Denied: 1}, snap.ByEndpoint["blacklist"])
	assert.Equal(t, Counters{Allowed: 1}, snap.ByEndpoint["lookup"])
	assert.Equal(t, []string{"blacklist", "lookup"}, stats.Endpoints())
}

func TestRedisStatsNilClientIsNoop(t *testing.T) {
	s := NewRedisStats(nil, WithRedisPrefix("test:"), WithRedisTTL(time.Minute))
	require.NoError(t, s.Record(context.Background(), StatsEvent{Endpoint: "blacklist", Allowed: true}))
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())
	require.Equal(t, "test", s.prefix)
}
