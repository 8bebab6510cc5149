package sourcestats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/telhawk-systems/sportsagg/common/logging"
	"github.com/telhawk-systems/sportsagg/common/models"
)

// Collector accumulates outcomes in memory and flushes them to Redis
// periodically. Safe for concurrent use.
type Collector struct {
	client        *Client
	flushInterval time.Duration
	logger        *slog.Logger
	now           func() time.Time

	mu      sync.Mutex
	batches map[string]*Batch

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCollector starts a collector flushing every flushInterval.
func NewCollector(client *Client, flushInterval time.Duration, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if flushInterval <= 0 {
		flushInterval = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Collector{
		client:        client,
		flushInterval: flushInterval,
		logger:        logger.With(slog.String("component", "sourcestats")),
		now:           time.Now,
		batches:       make(map[string]*Batch),
		cancel:        cancel,
	}

	c.wg.Add(1)
	go c.flushLoop(ctx)
	return c
}

// Record counts one outcome for source. Names differing only in case or
// surrounding whitespace share one set of counters.
func (c *Collector) Record(source, outcome string) {
	now := c.now()
	source = models.NormalizeSource(source)

	c.mu.Lock()
	defer c.mu.Unlock()

	batch, ok := c.batches[source]
	if !ok {
		batch = NewBatch(source)
		c.batches[source] = batch
	}
	batch.Add(outcome, now)
}

func (c *Collector) flushLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.flush()
			return
		case <-ticker.C:
			c.flush()
		}
	}
}

func (c *Collector) flush() {
	c.mu.Lock()
	batches := c.batches
	c.batches = make(map[string]*Batch)
	c.mu.Unlock()

	if len(batches) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var flushed int
	var total int64
	for source, batch := range batches {
		if err := c.client.FlushBatch(ctx, batch); err != nil {
			c.logger.Error("failed to flush source stats",
				logging.Source(source),
				slog.Int64("outcomes", batch.Total()),
				logging.Error(err))

			// Keep the counts for the next flush.
			c.mu.Lock()
			if existing, ok := c.batches[source]; ok {
				existing.Merge(batch)
			} else {
				c.batches[source] = batch
			}
			c.mu.Unlock()
			continue
		}
		flushed++
		total += batch.Total()
	}

	if flushed > 0 {
		c.logger.Debug("flushed source stats",
			slog.Int("sources", flushed),
			slog.Int64("outcomes", total))
	}
}

// FlushNow writes everything accumulated so far.
func (c *Collector) FlushNow() {
	c.flush()
}

// Stop ends the flush loop after a final flush.
func (c *Collector) Stop() {
	c.cancel()
	c.wg.Wait()
}

// Pending returns the outcome counts not yet flushed, by source.
func (c *Collector) Pending() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := make(map[string]int64, len(c.batches))
	for source, batch := range c.batches {
		pending[source] = batch.Total()
	}
	return pending
}
