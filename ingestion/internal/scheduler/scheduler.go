// Package scheduler drives the ingestion sources on randomized timers.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/telhawk-systems/sportsagg/common/logging"
	"github.com/telhawk-systems/sportsagg/common/models"
	"github.com/telhawk-systems/sportsagg/ingestion/internal/metrics"
	"github.com/telhawk-systems/sportsagg/ingestion/pkg/source"
)

// Publisher sends a batch of reports downstream.
type Publisher interface {
	Publish(ctx context.Context, events []models.IngestedEvent) (int, error)
}

// Rand picks the pause between cycles. *gofakeit.Faker satisfies it.
type Rand interface {
	IntRange(min, max int) int
}

// Observer is told about every batch that was published.
type Observer func(events []models.IngestedEvent)

// Config configures the scheduler.
type Config struct {
	// Interval is the longest pause between two cycles of one source.
	Interval time.Duration
	// MinDelay is the shortest pause. Defaults to one second.
	MinDelay time.Duration
}

// SourceStats are the counters kept for one source.
type SourceStats struct {
	Cycles    uint64    `json:"cycles"`
	Fetched   uint64    `json:"fetched"`
	Published uint64    `json:"published"`
	Errors    uint64    `json:"errors"`
	LastCycle time.Time `json:"last_cycle,omitzero"`
}

type sourceState struct {
	src       source.Source
	cycles    atomic.Uint64
	fetched   atomic.Uint64
	published atomic.Uint64
	errors    atomic.Uint64
	lastCycle atomic.Int64
}

// Scheduler runs one loop per source: fetch, publish, notify observers, then
// sleep a random duration in [MinDelay, Interval].
type Scheduler struct {
	mu        sync.Mutex
	sources   []*sourceState
	publisher Publisher
	rand      Rand
	observers []Observer
	cfg       Config
	logger    *slog.Logger

	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a scheduler over sources.
func New(sources []source.Source, publisher Publisher, rnd Rand, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = time.Second
	}
	if cfg.Interval < cfg.MinDelay {
		cfg.Interval = cfg.MinDelay
	}
	if logger == nil {
		logger = slog.Default()
	}

	states := make([]*sourceState, 0, len(sources))
	for _, src := range sources {
		states = append(states, &sourceState{src: src})
	}
	return &Scheduler{
		sources:   states,
		publisher: publisher,
		rand:      rnd,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "scheduler")),
	}
}

// Observe registers fn to receive each published batch. Must be called
// before Start.
func (s *Scheduler) Observe(fn Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Start launches a goroutine per source. The first cycle runs immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already running")
	}
	if len(s.sources) == 0 {
		return errors.New("no sources configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel

	s.logger.Info("Scheduler starting",
		slog.Int("sources", len(s.sources)),
		slog.Duration("interval", s.cfg.Interval))

	for _, st := range s.sources {
		s.wg.Add(1)
		go s.run(runCtx, st)
	}
	return nil
}

// Stop cancels every loop, including a fetch or publish in progress, and
// waits for them to exit.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return errors.New("scheduler not running")
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
	return nil
}

// Stats returns counters keyed by source name.
func (s *Scheduler) Stats() map[string]SourceStats {
	stats := make(map[string]SourceStats, len(s.sources))
	for _, st := range s.sources {
		ss := SourceStats{
			Cycles:    st.cycles.Load(),
			Fetched:   st.fetched.Load(),
			Published: st.published.Load(),
			Errors:    st.errors.Load(),
		}
		if last := st.lastCycle.Load(); last != 0 {
			ss.LastCycle = time.Unix(0, last).UTC()
		}
		stats[st.src.Name()] = ss
	}
	return stats
}

func (s *Scheduler) run(ctx context.Context, st *sourceState) {
	defer s.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		s.cycle(ctx, st)
		timer.Reset(s.nextDelay())
	}
}

func (s *Scheduler) cycle(ctx context.Context, st *sourceState) {
	name := st.src.Name()
	start := time.Now()
	defer func() {
		st.cycles.Add(1)
		st.lastCycle.Store(start.UnixNano())
		metrics.CycleDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	events, err := st.src.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		st.errors.Add(1)
		metrics.FetchesTotal.WithLabelValues(name, "error").Inc()
		s.logger.ErrorContext(ctx, "Source fetch failed", logging.Source(name), logging.Error(err))
		return
	}
	metrics.FetchesTotal.WithLabelValues(name, "ok").Inc()
	st.fetched.Add(uint64(len(events)))
	metrics.EventsFetched.WithLabelValues(name).Add(float64(len(events)))
	if len(events) == 0 {
		return
	}

	n, err := s.publisher.Publish(ctx, events)
	if n > 0 {
		st.published.Add(uint64(n))
		metrics.EventsPublished.WithLabelValues(name).Add(float64(n))
		s.notify(events[:n])
	}
	if err != nil && ctx.Err() == nil {
		st.errors.Add(1)
		metrics.PublishErrors.WithLabelValues(name).Inc()
		s.logger.ErrorContext(ctx, "Publish failed",
			logging.Source(name),
			logging.Count(n),
			logging.Error(err))
	}
}

func (s *Scheduler) notify(events []models.IngestedEvent) {
	s.mu.Lock()
	observers := s.observers
	s.mu.Unlock()

	for _, fn := range observers {
		fn(events)
	}
}

func (s *Scheduler) nextDelay() time.Duration {
	lo := int(s.cfg.MinDelay / time.Millisecond)
	hi := int(s.cfg.Interval / time.Millisecond)
	return time.Duration(s.rand.IntRange(lo, hi)) * time.Millisecond
}
