package scoringservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	scoringdb "github.com/Black-And-White-Club/ctf-bot/app/modules/scoring/infrastructure/repositories"
	"github.com/Black-And-White-Club/ctf-bot/pkg/observability/attr"
	"github.com/Black-And-White-Club/ctf-bot/pkg/results"
	scoringtypes "github.com/Black-And-White-Club/ctf-bot/pkg/types/scoring"
)

// submission is the outcome of the submission transaction.
type submission struct {
	result      scoringtypes.FlagResult
	countBefore int
}

// SubmitFlag implements the flag submission protocol. The whole check and
// insert runs under a single lock so a (player, task) pair can never be
// awarded twice.
func (s *ScoringService) SubmitFlag(ctx context.Context, competitionID, playerID int64, flag string) (scoringtypes.FlagResult, error) {
	identifier := fmt.Sprintf("competition=%d player=%d", competitionID, playerID)

	result, err := withTelemetry(s, ctx, "SubmitFlag", identifier, func(ctx context.Context) (results.OperationResult[scoringtypes.FlagResult, error], error) {
		release, err := s.acquireSubmissionLock(ctx)
		if err != nil {
			return results.OperationResult[scoringtypes.FlagResult, error]{}, err
		}
		defer release()

		gen := s.cache.Generation()

		txCtx, cancel := context.WithTimeout(ctx, s.cfg.SubmissionTimeout)
		defer cancel()

		res, err := runInTx(s, txCtx, func(ctx context.Context, db bun.IDB) (results.OperationResult[submission, error], error) {
			return s.submitFlagLogic(ctx, db, competitionID, playerID, flag)
		})
		if err != nil {
			s.metrics.RecordFlagSubmission(ctx, "error")
			return results.OperationResult[scoringtypes.FlagResult, error]{}, err
		}

		sub := *res.Success
		if sub.result.IsCorrect() {
			s.cache.RecordSolve(gen, sub.result.Task.ID, sub.countBefore)
			s.publish(ctx, scoringtypes.Added(*sub.result.Solve))
			s.logger.InfoContext(ctx, "Flag accepted",
				attr.ExtractCorrelationID(ctx),
				attr.CompetitionID(competitionID),
				attr.PlayerID(playerID),
				attr.TaskID(sub.result.Task.ID),
				attr.Int("awarded_price", sub.result.AwardedPrice),
			)
		}
		s.metrics.RecordFlagSubmission(ctx, string(sub.result.Outcome))

		return results.SuccessResult[scoringtypes.FlagResult, error](sub.result), nil
	})
	return finish(result, err)
}

// acquireSubmissionLock waits at most LockTimeout for the submission lock.
func (s *ScoringService) acquireSubmissionLock(ctx context.Context) (func(), error) {
	start := time.Now()
	lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockTimeout)
	defer cancel()

	if err := s.lock.Acquire(lockCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.metrics.RecordLockTimeout(ctx)
		s.metrics.RecordFlagSubmission(ctx, "lock_timeout")
		return nil, ErrConcurrencyTimeout
	}
	s.metrics.RecordLockWait(ctx, time.Since(start))
	return func() { s.lock.Release(1) }, nil
}

func (s *ScoringService) submitFlagLogic(ctx context.Context, db bun.IDB, competitionID, playerID int64, flag string) (results.OperationResult[submission, error], error) {
	outcome := func(o scoringtypes.FlagOutcome, task *scoringtypes.Task) (results.OperationResult[submission, error], error) {
		return results.SuccessResult[submission, error](submission{
			result: scoringtypes.FlagResult{Outcome: o, Task: task},
		}), nil
	}

	if _, err := s.repo.GetPlayer(ctx, db, playerID); err != nil {
		if errors.Is(err, scoringdb.ErrNotFound) {
			return outcome(scoringtypes.OutcomeNoSuchPlayer, nil)
		}
		return results.OperationResult[submission, error]{}, fmt.Errorf("failed to get player: %w", err)
	}

	dbTask, err := s.repo.FindTaskByFlag(ctx, db, competitionID, flag)
	if err != nil {
		if errors.Is(err, scoringdb.ErrNotFound) {
			return outcome(scoringtypes.OutcomeWrongFlag, nil)
		}
		return results.OperationResult[submission, error]{}, fmt.Errorf("failed to find task by flag: %w", err)
	}
	task := toTask(dbTask).Redacted()

	solved, err := s.repo.SolveExists(ctx, db, playerID, task.ID)
	if err != nil {
		return results.OperationResult[submission, error]{}, fmt.Errorf("failed to check existing solve: %w", err)
	}
	if solved {
		return outcome(scoringtypes.OutcomeAlreadySolved, &task)
	}

	n, err := s.repo.CountSolves(ctx, db, task.ID)
	if err != nil {
		return results.OperationResult[submission, error]{}, fmt.Errorf("failed to count solves: %w", err)
	}

	dbSolve := &scoringdb.Solve{PlayerID: playerID, TaskID: task.ID, CreatedAt: time.Now().UTC()}
	if err := s.repo.CreateSolve(ctx, db, dbSolve); err != nil {
		if errors.Is(err, scoringdb.ErrDuplicateSolve) {
			return outcome(scoringtypes.OutcomeAlreadySolved, &task)
		}
		return results.OperationResult[submission, error]{}, fmt.Errorf("failed to create solve: %w", err)
	}

	solve := toSolve(dbSolve)
	return results.SuccessResult[submission, error](submission{
		result: scoringtypes.FlagResult{
			Outcome:      scoringtypes.OutcomeCorrect,
			AwardedPrice: Price(n),
			Task:         &task,
			Solve:        &solve,
		},
		countBefore: n,
	}), nil
}
