package scoringservice

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	scoringmetrics "github.com/Black-And-White-Club/ctf-bot/pkg/observability/metrics/scoring"
)

// SolveCounter returns the number of solves currently recorded for a task.
type SolveCounter func(ctx context.Context, taskID int64) (int, error)

// PriceCache memoizes the current and last awarded price of each task.
//
// Misses are loaded from a single count query shared by concurrent callers.
// A load only stores its result if no Clear and no RecordSolve for the same
// task happened while it ran, so a slow load can never overwrite fresher
// values.
type PriceCache struct {
	count   SolveCounter
	metrics scoringmetrics.ScoringMetrics
	group   singleflight.Group

	mu         sync.RWMutex
	current    map[int64]int
	awarded    map[int64]int
	versions   map[int64]uint64
	generation uint64
}

type priceEntry struct {
	current int
	awarded int
}

// NewPriceCache creates an empty cache backed by count.
func NewPriceCache(count SolveCounter, metrics scoringmetrics.ScoringMetrics) *PriceCache {
	if metrics == nil {
		metrics = scoringmetrics.NewNoop()
	}
	return &PriceCache{
		count:    count,
		metrics:  metrics,
		current:  make(map[int64]int),
		awarded:  make(map[int64]int),
		versions: make(map[int64]uint64),
	}
}

// CurrentPrice is what the next solver of the task would be awarded.
func (c *PriceCache) CurrentPrice(ctx context.Context, taskID int64) (int, error) {
	c.mu.RLock()
	v, ok := c.current[taskID]
	c.mu.RUnlock()
	if ok {
		c.metrics.RecordPriceCacheHit(ctx, "current")
		return v, nil
	}
	c.metrics.RecordPriceCacheMiss(ctx, "current")
	e, err := c.load(ctx, taskID)
	if err != nil {
		return 0, err
	}
	return e.current, nil
}

// AwardedPrice is what the most recent solver of the task received, or zero.
func (c *PriceCache) AwardedPrice(ctx context.Context, taskID int64) (int, error) {
	c.mu.RLock()
	v, ok := c.awarded[taskID]
	c.mu.RUnlock()
	if ok {
		c.metrics.RecordPriceCacheHit(ctx, "awarded")
		return v, nil
	}
	c.metrics.RecordPriceCacheMiss(ctx, "awarded")
	e, err := c.load(ctx, taskID)
	if err != nil {
		return 0, err
	}
	return e.awarded, nil
}

// Generation identifies the current cache epoch. It changes on every Clear.
func (c *PriceCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// RecordSolve updates the task's entries after a solve that found
// countBefore existing solves. It is a no-op when the cache was cleared
// since gen was read, and reports whether the entries were written.
func (c *PriceCache) RecordSolve(gen uint64, taskID int64, countBefore int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[taskID]++
	if c.generation != gen {
		return false
	}
	c.awarded[taskID] = Price(countBefore)
	c.current[taskID] = Price(countBefore + 1)
	return true
}

// Clear drops every entry.
func (c *PriceCache) Clear() {
	c.mu.Lock()
	c.generation++
	clear(c.current)
	clear(c.awarded)
	clear(c.versions)
	c.mu.Unlock()
	c.metrics.RecordPriceCacheInvalidation(context.Background())
}

func (c *PriceCache) load(ctx context.Context, taskID int64) (priceEntry, error) {
	c.mu.RLock()
	gen := c.generation
	c.mu.RUnlock()

	key := strconv.FormatUint(gen, 10) + ":" + strconv.FormatInt(taskID, 10)
	v, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		ver := c.versions[taskID]
		c.mu.RUnlock()

		n, err := c.count(ctx, taskID)
		if err != nil {
			return priceEntry{}, err
		}
		e := priceEntry{current: Price(n), awarded: AwardedPrice(n)}

		c.mu.Lock()
		if c.generation == gen && c.versions[taskID] == ver {
			c.current[taskID] = e.current
			c.awarded[taskID] = e.awarded
		}
		c.mu.Unlock()
		return e, nil
	})
	if err != nil {
		return priceEntry{}, err
	}
	return v.(priceEntry), nil
}
