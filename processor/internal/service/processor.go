// Package service runs one inbound game report through the deduplication
// pipeline: validate, fingerprint, consult the oracle, insert, update the oracle.
package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/telhawk-systems/sportsagg/common/fingerprint"
	"github.com/telhawk-systems/sportsagg/common/logging"
	"github.com/telhawk-systems/sportsagg/common/models"
	"github.com/telhawk-systems/sportsagg/common/storage"
	"github.com/telhawk-systems/sportsagg/processor/internal/metrics"
)

// Outcome is the terminal state of a processing attempt that did not fail.
type Outcome int

const (
	// OutcomeNone is returned together with a non-nil error.
	OutcomeNone Outcome = iota
	// OutcomeSkipped means the oracle reported the game as already seen.
	OutcomeSkipped
	// OutcomeInserted means a new game row was written.
	OutcomeInserted
	// OutcomeConflicted means the store already held the fingerprint.
	OutcomeConflicted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeInserted:
		return "inserted"
	case OutcomeConflicted:
		return "conflicted"
	default:
		return "none"
	}
}

// Acknowledge reports whether the transport should ack the message.
func (o Outcome) Acknowledge() bool {
	return o != OutcomeNone
}

// Result describes a finished attempt.
type Result struct {
	Outcome     Outcome
	Fingerprint string
	Adjacent    string

	// GameID is set when Outcome is OutcomeInserted.
	GameID string
}

// Oracle is the duplicate hint consulted before the store.
type Oracle interface {
	IsDuplicate(ctx context.Context, primary, adjacent string) bool
	MarkProcessed(ctx context.Context, fingerprint string) error
}

// Recorder receives the outcome of every finished attempt, keyed by source.
type Recorder interface {
	Record(source, outcome string)
}

// Processor orchestrates the pipeline and captures basic telemetry. It holds
// no per-event state and is safe for concurrent use.
type Processor struct {
	oracle    Oracle
	store     storage.Inserter
	recorder  Recorder
	logger    *logging.Logger
	now       func() time.Time
	startedAt time.Time

	received   atomic.Uint64
	skipped    atomic.Uint64
	inserted   atomic.Uint64
	conflicted atomic.Uint64
	malformed  atomic.Uint64
	failed     atomic.Uint64
	cancelled  atomic.Uint64
}

// NewProcessor creates a new Processor. A nil logger uses the slog default.
func NewProcessor(oracle Oracle, store storage.Inserter, logger *logging.Logger) *Processor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Processor{
		oracle:    oracle,
		store:     store,
		logger:    logger.Component("processor"),
		now:       time.Now,
		startedAt: time.Now().UTC(),
	}
}

// UseRecorder attaches a per-source outcome recorder. Call before Process.
func (p *Processor) UseRecorder(r Recorder) {
	p.recorder = r
}

func (p *Processor) record(source, outcome string) {
	if p.recorder != nil {
		p.recorder.Record(source, outcome)
	}
}

// Process runs event through the pipeline. A nil error means the attempt
// reached a terminal outcome and may be acknowledged. Malformed events return
// an error wrapping models.ErrMalformedEvent; cancellation returns the
// context error; anything else is a transient failure worth redelivering.
func (p *Processor) Process(ctx context.Context, event *models.IngestedEvent) (Result, error) {
	start := time.Now()
	p.received.Add(1)
	metrics.InFlight.Inc()
	defer func() {
		metrics.InFlight.Dec()
		metrics.ProcessingDuration.Observe(time.Since(start).Seconds())
	}()

	if err := ctx.Err(); err != nil {
		return p.cancel(ctx, err)
	}

	if err := event.Validate(); err != nil {
		p.malformed.Add(1)
		metrics.EventsTotal.WithLabelValues("malformed").Inc()
		p.logger.WarnContext(ctx, "rejected malformed event", logging.Error(err))
		if event != nil {
			p.record(event.Normalized(p.now()).Source, "malformed")
		}
		return Result{}, err
	}

	normalized := event.Normalized(p.now())
	pair := fingerprint.Compute(&normalized)
	result := Result{Fingerprint: pair.Primary, Adjacent: pair.Adjacent}

	duplicate := p.oracle.IsDuplicate(ctx, pair.Primary, pair.Adjacent)
	if err := ctx.Err(); err != nil {
		return p.cancel(ctx, err)
	}
	if duplicate {
		p.skipped.Add(1)
		metrics.EventsTotal.WithLabelValues(OutcomeSkipped.String()).Inc()
		p.logger.DebugContext(ctx, "skipped game already seen",
			logging.Fingerprint(pair.Primary),
			logging.Source(normalized.Source))
		result.Outcome = OutcomeSkipped
		p.record(normalized.Source, OutcomeSkipped.String())
		return result, nil
	}

	game := &models.Game{
		ScheduledAtUTC:  normalized.ScheduledAtUTC,
		SportType:       fingerprint.Normalize(normalized.SportType),
		CompetitionName: fingerprint.Normalize(normalized.CompetitionName),
		HomeTeam:        fingerprint.Normalize(normalized.HomeTeam),
		AwayTeam:        fingerprint.Normalize(normalized.AwayTeam),
		Fingerprint:     pair.Primary,
	}

	storeStart := time.Now()
	inserted, err := p.store.Insert(ctx, game)
	metrics.StoreDuration.Observe(time.Since(storeStart).Seconds())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return p.cancel(ctx, ctxErr)
		}
		p.failed.Add(1)
		metrics.StoreErrors.Inc()
		metrics.EventsTotal.WithLabelValues("failed").Inc()
		p.logger.ErrorContext(ctx, "failed to store game",
			logging.Fingerprint(pair.Primary),
			logging.Source(normalized.Source),
			logging.Error(err))
		return Result{}, fmt.Errorf("insert game %s: %w", pair.Primary, err)
	}

	// The row is committed; the cache update must not be lost to a late cancel.
	markCtx := context.WithoutCancel(ctx)

	switch inserted.Outcome {
	case storage.OutcomeInserted:
		p.inserted.Add(1)
		metrics.EventsTotal.WithLabelValues(OutcomeInserted.String()).Inc()
		result.Outcome = OutcomeInserted
		result.GameID = inserted.ID
		if err := p.oracle.MarkProcessed(markCtx, pair.Primary); err != nil {
			p.logger.WarnContext(ctx, "failed to record processed fingerprint",
				logging.Fingerprint(pair.Primary),
				logging.Error(err))
		}
		p.logger.InfoContext(ctx, "stored game",
			logging.Fingerprint(pair.Primary),
			logging.Sport(game.SportType),
			logging.Source(normalized.Source),
			logging.Duration(time.Since(start)))

	case storage.OutcomeConflict:
		p.conflicted.Add(1)
		metrics.EventsTotal.WithLabelValues(OutcomeConflicted.String()).Inc()
		result.Outcome = OutcomeConflicted
		p.logger.InfoContext(ctx, "game already stored",
			logging.Fingerprint(pair.Primary),
			logging.Constraint(inserted.Constraint),
			logging.Source(normalized.Source))
		if err := p.oracle.MarkProcessed(markCtx, pair.Primary); err != nil {
			p.logger.DebugContext(ctx, "failed to record conflicted fingerprint",
				logging.Fingerprint(pair.Primary),
				logging.Error(err))
		}

	default:
		p.failed.Add(1)
		metrics.EventsTotal.WithLabelValues("failed").Inc()
		return Result{}, fmt.Errorf("insert game %s: unexpected outcome %s", pair.Primary, inserted.Outcome)
	}

	p.record(normalized.Source, result.Outcome.String())
	return result, nil
}

func (p *Processor) cancel(ctx context.Context, err error) (Result, error) {
	p.cancelled.Add(1)
	metrics.EventsTotal.WithLabelValues("cancelled").Inc()
	p.logger.DebugContext(ctx, "processing cancelled", logging.Error(err))
	return Result{}, err
}

// Stats is a snapshot of processor counters.
type Stats struct {
	UptimeSeconds int64  `json:"uptime_seconds"`
	Received      uint64 `json:"received"`
	Skipped       uint64 `json:"skipped"`
	Inserted      uint64 `json:"inserted"`
	Conflicted    uint64 `json:"conflicted"`
	Malformed     uint64 `json:"malformed"`
	Failed        uint64 `json:"failed"`
	Cancelled     uint64 `json:"cancelled"`
}

// Health returns live counters for health checks.
func (p *Processor) Health() Stats {
	return Stats{
		UptimeSeconds: int64(time.Since(p.startedAt).Seconds()),
		Received:      p.received.Load(),
		Skipped:       p.skipped.Load(),
		Inserted:      p.inserted.Load(),
		Conflicted:    p.conflicted.Load(),
		Malformed:     p.malformed.Load(),
		Failed:        p.failed.Load(),
		Cancelled:     p.cancelled.Load(),
	}
}
