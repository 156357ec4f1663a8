package scoringservice

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/uptrace/bun"

	scoringdb "github.com/Black-And-White-Club/ctf-bot/app/modules/scoring/infrastructure/repositories"
	"github.com/Black-And-White-Club/ctf-bot/pkg/results"
	scoringtypes "github.com/Black-And-White-Club/ctf-bot/pkg/types/scoring"
)

// query runs a read-only operation inside telemetry and a transaction.
func query[S any](s *ScoringService, ctx context.Context, operationName, identifier string, fn func(ctx context.Context, db bun.IDB) (results.OperationResult[S, error], error)) (S, error) {
	result, err := withTelemetry(s, ctx, operationName, identifier, func(ctx context.Context) (results.OperationResult[S, error], error) {
		return runInTx(s, ctx, fn)
	})
	return finish(result, err)
}

func idString(id *int64) string {
	if id == nil {
		return "all"
	}
	return strconv.FormatInt(*id, 10)
}

func (s *ScoringService) GetCompetition(ctx context.Context, id int64) (*scoringtypes.Competition, error) {
	return query(s, ctx, "GetCompetition", strconv.FormatInt(id, 10), func(ctx context.Context, db bun.IDB) (results.OperationResult[*scoringtypes.Competition, error], error) {
		row, err := s.repo.GetCompetition(ctx, db, id)
		if err != nil {
			if errors.Is(err, scoringdb.ErrNotFound) {
				return results.FailureResult[*scoringtypes.Competition, error](ErrCompetitionNotFound), nil
			}
			return results.OperationResult[*scoringtypes.Competition, error]{}, fmt.Errorf("failed to get competition: %w", err)
		}
		out := toCompetition(row)
		return results.SuccessResult[*scoringtypes.Competition, error](&out), nil
	})
}

func (s *ScoringService) ListCompetitions(ctx context.Context) ([]scoringtypes.Competition, error) {
	return query(s, ctx, "ListCompetitions", "all", func(ctx context.Context, db bun.IDB) (results.OperationResult[[]scoringtypes.Competition, error], error) {
		rows, err := s.repo.ListCompetitions(ctx, db)
		if err != nil {
			return results.OperationResult[[]scoringtypes.Competition, error]{}, fmt.Errorf("failed to list competitions: %w", err)
		}
		return results.SuccessResult[[]scoringtypes.Competition, error](mapSlice(rows, toCompetition)), nil
	})
}

func (s *ScoringService) GetTask(ctx context.Context, id int64) (*scoringtypes.Task, error) {
	return query(s, ctx, "GetTask", strconv.FormatInt(id, 10), func(ctx context.Context, db bun.IDB) (results.OperationResult[*scoringtypes.Task, error], error) {
		row, err := s.repo.GetTask(ctx, db, id)
		if err != nil {
			if errors.Is(err, scoringdb.ErrNotFound) {
				return results.FailureResult[*scoringtypes.Task, error](ErrTaskNotFound), nil
			}
			return results.OperationResult[*scoringtypes.Task, error]{}, fmt.Errorf("failed to get task: %w", err)
		}
		out := toTask(row)
		return results.SuccessResult[*scoringtypes.Task, error](&out), nil
	})
}

func (s *ScoringService) ListTasks(ctx context.Context) ([]scoringtypes.Task, error) {
	return query(s, ctx, "ListTasks", "all", func(ctx context.Context, db bun.IDB) (results.OperationResult[[]scoringtypes.Task, error], error) {
		rows, err := s.repo.ListTasks(ctx, db, nil)
		if err != nil {
			return results.OperationResult[[]scoringtypes.Task, error]{}, fmt.Errorf("failed to list tasks: %w", err)
		}
		return results.SuccessResult[[]scoringtypes.Task, error](mapSlice(rows, toTask)), nil
	})
}

// TasksOf lists the tasks of one competition.
func (s *ScoringService) TasksOf(ctx context.Context, competitionID int64) ([]scoringtypes.Task, error) {
	return query(s, ctx, "TasksOf", strconv.FormatInt(competitionID, 10), func(ctx context.Context, db bun.IDB) (results.OperationResult[[]scoringtypes.Task, error], error) {
		rows, err := s.tasksOfCompetition(ctx, db, &competitionID)
		if err != nil {
			if errors.Is(err, ErrCompetitionNotFound) {
				return results.FailureResult[[]scoringtypes.Task, error](err), nil
			}
			return results.OperationResult[[]scoringtypes.Task, error]{}, err
		}
		return results.SuccessResult[[]scoringtypes.Task, error](mapSlice(rows, toTask)), nil
	})
}

// tasksOfCompetition lists tasks, checking the competition exists when one is given.
func (s *ScoringService) tasksOfCompetition(ctx context.Context, db bun.IDB, competitionID *int64) ([]scoringdb.Task, error) {
	if competitionID != nil {
		if _, err := s.repo.GetCompetition(ctx, db, *competitionID); err != nil {
			if errors.Is(err, scoringdb.ErrNotFound) {
				return nil, ErrCompetitionNotFound
			}
			return nil, fmt.Errorf("failed to get competition: %w", err)
		}
	}
	rows, err := s.repo.ListTasks(ctx, db, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return rows, nil
}

// TaskViews projects tasks with solve counts and cached prices.
func (s *ScoringService) TaskViews(ctx context.Context, competitionID *int64) ([]scoringtypes.TaskView, error) {
	return query(s, ctx, "TaskViews", idString(competitionID), func(ctx context.Context, db bun.IDB) (results.OperationResult[[]scoringtypes.TaskView, error], error) {
		rows, err := s.tasksOfCompetition(ctx, db, competitionID)
		if err != nil {
			if errors.Is(err, ErrCompetitionNotFound) {
				return results.FailureResult[[]scoringtypes.TaskView, error](err), nil
			}
			return results.OperationResult[[]scoringtypes.TaskView, error]{}, err
		}
		counts, err := s.repo.CountSolvesByTask(ctx, db, competitionID)
		if err != nil {
			return results.OperationResult[[]scoringtypes.TaskView, error]{}, fmt.Errorf("failed to count solves: %w", err)
		}

		views := make([]scoringtypes.TaskView, 0, len(rows))
		for i := range rows {
			task := toTask(&rows[i]).Redacted()
			current, err := s.cache.CurrentPrice(ctx, task.ID)
			if err != nil {
				return results.OperationResult[[]scoringtypes.TaskView, error]{}, fmt.Errorf("failed to get current price: %w", err)
			}
			awarded, err := s.cache.AwardedPrice(ctx, task.ID)
			if err != nil {
				return results.OperationResult[[]scoringtypes.TaskView, error]{}, fmt.Errorf("failed to get awarded price: %w", err)
			}
			views = append(views, scoringtypes.TaskView{
				Task:             task,
				SolveCount:       counts[task.ID],
				CurrentPrice:     current,
				LastAwardedPrice: awarded,
			})
		}
		return results.SuccessResult[[]scoringtypes.TaskView, error](views), nil
	})
}

func (s *ScoringService) GetPlayer(ctx context.Context, id int64) (*scoringtypes.Player, error) {
	return query(s, ctx, "GetPlayer", strconv.FormatInt(id, 10), func(ctx context.Context, db bun.IDB) (results.OperationResult[*scoringtypes.Player, error], error) {
		row, err := s.repo.GetPlayer(ctx, db, id)
		if err != nil {
			if errors.Is(err, scoringdb.ErrNotFound) {
				return results.FailureResult[*scoringtypes.Player, error](ErrPlayerNotFound), nil
			}
			return results.OperationResult[*scoringtypes.Player, error]{}, fmt.Errorf("failed to get player: %w", err)
		}
		out := toPlayer(row)
		return results.SuccessResult[*scoringtypes.Player, error](&out), nil
	})
}

func (s *ScoringService) ListPlayers(ctx context.Context) ([]scoringtypes.Player, error) {
	return query(s, ctx, "ListPlayers", "all", func(ctx context.Context, db bun.IDB) (results.OperationResult[[]scoringtypes.Player, error], error) {
		rows, err := s.repo.ListPlayers(ctx, db)
		if err != nil {
			return results.OperationResult[[]scoringtypes.Player, error]{}, fmt.Errorf("failed to list players: %w", err)
		}
		return results.SuccessResult[[]scoringtypes.Player, error](mapSlice(rows, toPlayer)), nil
	})
}

// SolvesOf returns the player's solves, optionally limited to one competition.
func (s *ScoringService) SolvesOf(ctx context.Context, playerID int64, competitionID *int64) ([]scoringtypes.SolveView, error) {
	identifier := strconv.FormatInt(playerID, 10) + "@" + idString(competitionID)
	return query(s, ctx, "SolvesOf", identifier, func(ctx context.Context, db bun.IDB) (results.OperationResult[[]scoringtypes.SolveView, error], error) {
		if _, err := s.repo.GetPlayer(ctx, db, playerID); err != nil {
			if errors.Is(err, scoringdb.ErrNotFound) {
				return results.FailureResult[[]scoringtypes.SolveView, error](ErrPlayerNotFound), nil
			}
			return results.OperationResult[[]scoringtypes.SolveView, error]{}, fmt.Errorf("failed to get player: %w", err)
		}

		tasks, err := s.tasksOfCompetition(ctx, db, competitionID)
		if err != nil {
			if errors.Is(err, ErrCompetitionNotFound) {
				return results.FailureResult[[]scoringtypes.SolveView, error](err), nil
			}
			return results.OperationResult[[]scoringtypes.SolveView, error]{}, err
		}
		byID := make(map[int64]scoringtypes.Task, len(tasks))
		for i := range tasks {
			byID[tasks[i].ID] = toTask(&tasks[i]).Redacted()
		}

		solves, err := s.repo.ListSolves(ctx, db, scoringdb.SolveFilter{PlayerID: &playerID, CompetitionID: competitionID})
		if err != nil {
			return results.OperationResult[[]scoringtypes.SolveView, error]{}, fmt.Errorf("failed to list solves: %w", err)
		}

		views := make([]scoringtypes.SolveView, 0, len(solves))
		for _, solve := range solves {
			task, ok := byID[solve.TaskID]
			if !ok {
				continue
			}
			views = append(views, scoringtypes.SolveView{
				Solve:        rankedToSolve(solve),
				Task:         task,
				AwardedPrice: Price(solve.Ordinal),
			})
		}
		return results.SuccessResult[[]scoringtypes.SolveView, error](views), nil
	})
}
