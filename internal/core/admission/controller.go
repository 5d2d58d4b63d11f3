// Package admission implements fixed-window admission control keyed by
// endpoint and client.
package admission

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iplens/iplens/internal/core"
	"github.com/iplens/iplens/internal/metrics"
	"github.com/iplens/iplens/internal/observability"
)

// DefaultWindow is the fixed counting window.
const DefaultWindow = time.Minute

// DefaultStatsTimeout bounds a single stats Record call.
const DefaultStatsTimeout = 100 * time.Millisecond

// Controller owns the per-endpoint counter stores.
//
// Mutation of a record happens under its endpoint store's mutex, so checks for
// the same (endpoint, client) pair are linearizable while different endpoints
// never contend. The sweep takes the same per-store locks one store at a time.
type Controller struct {
	window        time.Duration
	sweepInterval time.Duration
	clock         func() time.Time
	stats         StatsRecorder
	statsTimeout  time.Duration

	mu     sync.RWMutex
	stores map[string]*endpointStore

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

type endpointStore struct {
	mu      sync.Mutex
	records map[string]*core.RateWindowRecord
}

// Option configures a Controller.
type Option func(*Controller)

// WithWindow overrides the counting window.
func WithWindow(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.window = d
		}
	}
}

// WithSweepInterval overrides how often expired records are evicted.
// Defaults to the window duration.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.sweepInterval = d
		}
	}
}

// WithClock injects the time source.
func WithClock(clock func() time.Time) Option {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithStats reports every decision to recorder.
func WithStats(recorder StatsRecorder) Option {
	return func(c *Controller) { c.stats = recorder }
}

// WithStatsTimeout overrides how long a decision may wait on the recorder.
func WithStatsTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.statsTimeout = d
		}
	}
}

// NewController creates a controller. The sweep does not run until Start.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		window:       DefaultWindow,
		statsTimeout: DefaultStatsTimeout,
		stores:       make(map[string]*endpointStore),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sweepInterval <= 0 {
		c.sweepInterval = c.window
	}
	return c
}

// Window returns the configured counting window.
func (c *Controller) Window() time.Duration {
	return c.window
}

// Check records a request from clientID against endpoint and reports whether
// it is admitted under limit requests per window.
func (c *Controller) Check(clientID, endpoint string, limit int) core.Decision {
	return c.CheckContext(context.Background(), clientID, endpoint, limit)
}

// CheckContext is Check with a context for the stats recorder. The recorder
// gets a context detached from ctx's cancellation and bounded by the stats
// timeout, so a stalled backend delays a decision by at most that long.
func (c *Controller) CheckContext(ctx context.Context, clientID, endpoint string, limit int) core.Decision {
	endpoint = strings.TrimSpace(endpoint)
	now := c.now()

	var decision core.Decision
	if limit <= 0 {
		decision = core.Decision{Allowed: false, Limit: limit, Remaining: 0, ResetIn: ceilSeconds(c.window)}
	} else {
		decision = c.store(endpoint).admit(clientID, limit, now, c.window)
	}

	metrics.RecordAdmission(endpoint, decision.Allowed)
	if c.stats != nil {
		c.recordStats(ctx, StatsEvent{
			Endpoint: endpoint,
			Client:   clientID,
			Allowed:  decision.Allowed,
			At:       now,
		})
	}

	return decision
}

func (c *Controller) recordStats(ctx context.Context, ev StatsEvent) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.statsTimeout)
	defer cancel()

	if err := c.stats.Record(ctx, ev); err != nil && observability.ServerLogger != nil {
		observability.ServerLogger.Warn("Failed to record admission stats",
			zap.String("endpoint", ev.Endpoint),
			zap.Error(err))
	}
}

func (s *endpointStore) admit(clientID string, limit int, now time.Time, window time.Duration) core.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.records[clientID]
	if record.Expired(now, window) {
		s.records[clientID] = &core.RateWindowRecord{WindowStart: now, Count: 1}
		return core.Decision{Allowed: true, Limit: limit, Remaining: limit - 1, ResetIn: ceilSeconds(window)}
	}

	resetIn := ceilSeconds(record.WindowStart.Add(window).Sub(now))
	if record.Count >= limit {
		return core.Decision{Allowed: false, Limit: limit, Remaining: 0, ResetIn: resetIn}
	}

	record.Count++
	return core.Decision{Allowed: true, Limit: limit, Remaining: limit - record.Count, ResetIn: resetIn}
}

func (c *Controller) store(endpoint string) *endpointStore {
	c.mu.RLock()
	s, ok := c.stores[endpoint]
	c.mu.RUnlock()
	if ok {
		return s
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok = c.stores[endpoint]; ok {
		return s
	}
	s = &endpointStore{records: make(map[string]*core.RateWindowRecord)}
	c.stores[endpoint] = s
	return s
}

// Sweep evicts every record whose window has ended and returns the number of
// records removed.
func (c *Controller) Sweep() int {
	now := c.now()

	c.mu.RLock()
	stores := make(map[string]*endpointStore, len(c.stores))
	for endpoint, s := range c.stores {
		stores[endpoint] = s
	}
	c.mu.RUnlock()

	evicted := 0
	for endpoint, s := range stores {
		removed := s.evictExpired(now, c.window)
		if removed > 0 {
			metrics.RecordSweepEvictions(endpoint, removed)
		}
		evicted += removed
	}
	return evicted
}

func (s *endpointStore) evictExpired(now time.Time, window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for client, record := range s.records {
		if record.Expired(now, window) {
			delete(s.records, client)
			removed++
		}
	}
	return removed
}

// Size returns the number of live records held for endpoint.
func (c *Controller) Size(endpoint string) int {
	c.mu.RLock()
	s, ok := c.stores[endpoint]
	c.mu.RUnlock()
	if !ok {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Start launches the background sweep. It stops when ctx is cancelled or Stop
// is called. Calling Start on a running controller is a no-op.
func (c *Controller) Start(ctx context.Context) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	if c.cancel != nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	ticker := time.NewTicker(c.sweepInterval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				evicted := c.Sweep()
				if observability.ServerLogger != nil {
					observability.ServerLogger.Debug("Admission sweep completed",
						zap.Int("evicted", evicted))
				}
			}
		}
	}()
}

// Stop halts the background sweep and waits for it to exit.
func (c *Controller) Stop() {
	c.lifecycle.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.lifecycle.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the background sweep is active.
func (c *Controller) Running() bool {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	if c.done == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *Controller) now() time.Time {
	if c.clock != nil {
		return c.clock()
	}
	return time.Now()
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
