// Package sourcestats keeps per-source processing outcomes in Redis.
//
// Every processor instance writes to the same keys, so any instance can
// report totals for the whole deployment.
//
// Redis Key Structure:
//
//	sportsagg:srcstats:{source}                 - Hash of outcome totals plus last_seen_at
//	sportsagg:srchourly:{source}:{YYYYMMDDHH}   - Hash of outcome counts for that hour (expires 48h)
//	sportsagg:srcinstances:{source}             - Hash of processor instance -> last seen (expires 24h)
package sourcestats

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	statsPrefix     = "sportsagg:srcstats:"
	hourlyPrefix    = "sportsagg:srchourly:"
	instancesPrefix = "sportsagg:srcinstances:"

	hourLayout  = "2006010215"
	lastSeenKey = "last_seen_at"

	hourlyTTL    = 48 * time.Hour
	instancesTTL = 24 * time.Hour
)

// Stats are the combined counters for one source.
type Stats struct {
	Source      string            `json:"source"`
	LastSeenAt  *time.Time        `json:"last_seen_at,omitempty"`
	Totals      map[string]int64  `json:"totals"`
	LastHour    map[string]int64  `json:"last_hour"`
	Last24h     map[string]int64  `json:"last_24h"`
	Instances   map[string]string `json:"instances,omitempty"`
	RetrievedAt time.Time         `json:"retrieved_at"`
}

// Client reads and writes source counters.
type Client struct {
	redis      *redis.Client
	instanceID string
	now        func() time.Time
}

// NewClient wraps an existing Redis connection. instanceID should be unique
// per processor instance (hostname, pod name).
func NewClient(client *redis.Client, instanceID string) *Client {
	return &Client{redis: client, instanceID: instanceID, now: time.Now}
}

// Batch accumulates outcome counts for one source between flushes.
type Batch struct {
	Source   string
	Counts   map[string]int64
	LastSeen time.Time
}

// NewBatch creates an empty batch for source.
func NewBatch(source string) *Batch {
	return &Batch{Source: source, Counts: make(map[string]int64)}
}

// Add counts one outcome seen at t.
func (b *Batch) Add(outcome string, t time.Time) {
	b.Counts[outcome]++
	if t.After(b.LastSeen) {
		b.LastSeen = t
	}
}

// Merge folds other into b.
func (b *Batch) Merge(other *Batch) {
	for outcome, n := range other.Counts {
		b.Counts[outcome] += n
	}
	if other.LastSeen.After(b.LastSeen) {
		b.LastSeen = other.LastSeen
	}
}

// Total is the number of outcomes in the batch.
func (b *Batch) Total() int64 {
	var n int64
	for _, c := range b.Counts {
		n += c
	}
	return n
}

// FlushBatch writes batch in one pipeline.
func (c *Client) FlushBatch(ctx context.Context, batch *Batch) error {
	if batch.Total() == 0 {
		return nil
	}

	now := c.now().UTC()
	hourlyKey := hourlyPrefix + batch.Source + ":" + now.Format(hourLayout)
	statsKey := statsPrefix + batch.Source
	instancesKey := instancesPrefix + batch.Source

	pipe := c.redis.Pipeline()
	pipe.HSet(ctx, statsKey, lastSeenKey, strconv.FormatInt(batch.LastSeen.Unix(), 10))
	for outcome, n := range batch.Counts {
		pipe.HIncrBy(ctx, statsKey, outcome, n)
		pipe.HIncrBy(ctx, hourlyKey, outcome, n)
	}
	pipe.Expire(ctx, hourlyKey, hourlyTTL)
	pipe.HSet(ctx, instancesKey, c.instanceID, strconv.FormatInt(now.Unix(), 10))
	pipe.Expire(ctx, instancesKey, instancesTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to flush source stats: %w", err)
	}
	return nil
}

// GetStats reads the counters for source.
func (c *Client) GetStats(ctx context.Context, source string) (*Stats, error) {
	now := c.now().UTC()

	pipe := c.redis.Pipeline()
	totalsCmd := pipe.HGetAll(ctx, statsPrefix+source)
	hourly := make([]*redis.MapStringStringCmd, 24)
	for i := range hourly {
		hour := now.Add(-time.Duration(i) * time.Hour).Format(hourLayout)
		hourly[i] = pipe.HGetAll(ctx, hourlyPrefix+source+":"+hour)
	}
	instancesCmd := pipe.HGetAll(ctx, instancesPrefix+source)

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get source stats: %w", err)
	}

	stats := &Stats{
		Source:      source,
		Totals:      make(map[string]int64),
		LastHour:    make(map[string]int64),
		Last24h:     make(map[string]int64),
		Instances:   make(map[string]string),
		RetrievedAt: now,
	}

	for field, value := range totalsCmd.Val() {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		if field == lastSeenKey {
			t := time.Unix(n, 0).UTC()
			stats.LastSeenAt = &t
			continue
		}
		stats.Totals[field] = n
	}

	for i, cmd := range hourly {
		for outcome, value := range cmd.Val() {
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				continue
			}
			if i == 0 {
				stats.LastHour[outcome] += n
			}
			stats.Last24h[outcome] += n
		}
	}

	for instance, lastSeen := range instancesCmd.Val() {
		if unix, err := strconv.ParseInt(lastSeen, 10, 64); err == nil {
			stats.Instances[instance] = time.Unix(unix, 0).UTC().Format(time.RFC3339)
		}
	}
	return stats, nil
}

// ListSources returns every source with recorded totals.
func (c *Client) ListSources(ctx context.Context) ([]string, error) {
	var sources []string
	iter := c.redis.Scan(ctx, 0, statsPrefix+"*", 1000).Iterator()
	for iter.Next(ctx) {
		sources = append(sources, strings.TrimPrefix(iter.Val(), statsPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sources: %w", err)
	}
	return sources, nil
}

// All returns stats for every known source.
func (c *Client) All(ctx context.Context) (map[string]*Stats, error) {
	sources, err := c.ListSources(ctx)
	if err != nil {
		return nil, err
	}

	results := make(map[string]*Stats, len(sources))
	for _, source := range sources {
		stats, err := c.GetStats(ctx, source)
		if err != nil {
			return nil, err
		}
		results[source] = stats
	}
	return results, nil
}
