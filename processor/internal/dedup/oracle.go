package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/telhawk-systems/sportsagg/common/logging"
	"github.com/telhawk-systems/sportsagg/processor/internal/metrics"
)

// DefaultTTL is how long a processed fingerprint is remembered.
const DefaultTTL = 2 * time.Hour

// Oracle answers whether a fingerprint was seen recently. Its answers are
// hints: a cache failure counts as "not seen", and the store constraint stays
// the authority on duplicates.
type Oracle struct {
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewOracle creates an Oracle over cache. A nil cache behaves as NopCache.
func NewOracle(cache Cache, ttl time.Duration, logger *slog.Logger) *Oracle {
	if cache == nil {
		cache = NopCache{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Oracle{
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "oracle")),
	}
}

// TTL returns the expiry applied by MarkProcessed.
func (o *Oracle) TTL() time.Duration {
	return o.ttl
}

// IsDuplicate checks primary and adjacent concurrently and reports true if
// either is present. Cache errors are logged and treated as absent.
func (o *Oracle) IsDuplicate(ctx context.Context, primary, adjacent string) bool {
	keys := []string{primary, adjacent}
	found := make([]bool, len(keys))

	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func() {
			defer wg.Done()
			found[i] = o.exists(ctx, key)
		}()
	}
	wg.Wait()

	hit := found[0] || found[1]
	if hit {
		metrics.OracleChecks.WithLabelValues("hit").Inc()
	} else {
		metrics.OracleChecks.WithLabelValues("miss").Inc()
	}
	return hit
}

func (o *Oracle) exists(ctx context.Context, key string) bool {
	ok, err := o.cache.Exists(ctx, key)
	if err != nil {
		metrics.OracleErrors.WithLabelValues("exists").Inc()
		if ctx.Err() == nil {
			o.logger.WarnContext(ctx, "cache check failed, treating as not seen",
				logging.Fingerprint(key),
				logging.Error(err))
		}
		return false
	}
	return ok
}

// MarkProcessed records fingerprint as seen for the oracle TTL.
func (o *Oracle) MarkProcessed(ctx context.Context, fingerprint string) error {
	if err := o.cache.Set(ctx, fingerprint, o.ttl); err != nil {
		metrics.OracleErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("mark %s processed: %w", fingerprint, err)
	}
	return nil
}
