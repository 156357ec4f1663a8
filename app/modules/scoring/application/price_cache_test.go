package scoringservice

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

func TestPriceCacheLoadsOnMiss(t *testing.T) {
	var calls atomic.Int32
	counts := map[int64]int{1: 0, 2: 5}
	cache := NewPriceCache(func(ctx context.Context, taskID int64) (int, error) {
		calls.Add(1)
		return counts[taskID], nil
	}, nil)
	ctx := context.Background()

	current, err := cache.CurrentPrice(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, Price(5), current)

	awarded, err := cache.AwardedPrice(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, Price(4), awarded)
	assert.Equal(t, int32(1), calls.Load(), "both maps come from one count")

	awarded, err = cache.AwardedPrice(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, awarded)
}

func TestPriceCacheDeduplicatesConcurrentMisses(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	cache := NewPriceCache(func(ctx context.Context, taskID int64) (int, error) {
		calls.Add(1)
		<-release
		return 3, nil
	}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := cache.CurrentPrice(context.Background(), 9)
			assert.NoError(t, err)
			assert.Equal(t, Price(3), v)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestPriceCacheClearDuringLoadDiscardsResult(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	cache := NewPriceCache(func(ctx context.Context, taskID int64) (int, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return 4, nil
		}
		return 0, nil
	}, nil)

	done := make(chan int)
	go func() {
		v, _ := cache.CurrentPrice(context.Background(), 1)
		done <- v
	}()
	<-started
	cache.Clear()
	close(release)
	assert.Equal(t, Price(4), <-done, "the in-flight caller still gets its answer")

	v, err := cache.CurrentPrice(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, InitialPoints, v, "stale load must not be stored")
	assert.Equal(t, int32(2), calls.Load())
}

func TestPriceCacheRecordSolveBeatsSlowLoad(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	cache := NewPriceCache(func(ctx context.Context, taskID int64) (int, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}
		return 0, nil
	}, nil)

	done := make(chan struct{})
	go func() {
		_, _ = cache.CurrentPrice(context.Background(), 1)
		close(done)
	}()
	<-started
	require.True(t, cache.RecordSolve(cache.Generation(), 1, 0))
	close(release)
	<-done

	v, err := cache.CurrentPrice(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, Price(1), v)
	awarded, err := cache.AwardedPrice(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, Price(0), awarded)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPriceCacheRecordSolveStaleGeneration(t *testing.T) {
	cache := NewPriceCache(func(ctx context.Context, taskID int64) (int, error) { return 0, nil }, nil)
	gen := cache.Generation()
	cache.Clear()

	assert.False(t, cache.RecordSolve(gen, 1, 7))
	v, err := cache.CurrentPrice(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, InitialPoints, v)
}

func TestPriceCacheLoadError(t *testing.T) {
	boom := errors.New("boom")
	cache := NewPriceCache(func(ctx context.Context, taskID int64) (int, error) { return 0, boom }, nil)

	_, err := cache.CurrentPrice(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
	_, err = cache.AwardedPrice(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
}

func TestPriceCacheConcurrentAccess(t *testing.T) {
	cache := NewPriceCache(func(ctx context.Context, taskID int64) (int, error) { return int(taskID % 7), nil }, nil)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := int64(i % 5)
				switch (w + i) % 4 {
				case 0:
					cache.RecordSolve(cache.Generation(), id, i%10)
				case 1:
					if i%50 == 0 {
						cache.Clear()
					}
				default:
					_, _ = cache.CurrentPrice(context.Background(), id)
					_, _ = cache.AwardedPrice(context.Background(), id)
				}
			}
		}(w)
	}
	wg.Wait()
}
