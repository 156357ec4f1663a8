package scoringmetrics

import (
	"context"
	"time"
)

// ScoringMetrics records scoring engine behaviour.
type ScoringMetrics interface {
	RecordOperationAttempt(ctx context.Context, operation, service string)
	RecordOperationSuccess(ctx context.Context, operation, service string)
	RecordOperationFailure(ctx context.Context, operation, service string)
	RecordOperationDuration(ctx context.Context, operation, service string, duration time.Duration)

	// RecordFlagSubmission counts submissions by outcome (correct, wrong_flag, ...).
	RecordFlagSubmission(ctx context.Context, outcome string)
	RecordLockWait(ctx context.Context, duration time.Duration)
	RecordLockTimeout(ctx context.Context)

	// RecordPriceCacheHit and RecordPriceCacheMiss take the map name ("current" or "awarded").
	RecordPriceCacheHit(ctx context.Context, cache string)
	RecordPriceCacheMiss(ctx context.Context, cache string)
	RecordPriceCacheInvalidation(ctx context.Context)
}
