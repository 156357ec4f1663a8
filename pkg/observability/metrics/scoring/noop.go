package scoringmetrics

import (
	"context"
	"time"
)

type noop struct{}

// NewNoop returns metrics that discard everything.
func NewNoop() ScoringMetrics { return noop{} }

func (noop) RecordOperationAttempt(context.Context, string, string)                 {}
func (noop) RecordOperationSuccess(context.Context, string, string)                 {}
func (noop) RecordOperationFailure(context.Context, string, string)                 {}
func (noop) RecordOperationDuration(context.Context, string, string, time.Duration) {}
func (noop) RecordFlagSubmission(context.Context, string)                           {}
func (noop) RecordLockWait(context.Context, time.Duration)                          {}
func (noop) RecordLockTimeout(context.Context)                                      {}
func (noop) RecordPriceCacheHit(context.Context, string)                            {}
func (noop) RecordPriceCacheMiss(context.Context, string)                           {}
func (noop) RecordPriceCacheInvalidation(context.Context)                           {}
