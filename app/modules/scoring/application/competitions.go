package scoringservice

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/uptrace/bun"

	scoringdb "github.com/Black-And-White-Club/ctf-bot/app/modules/scoring/infrastructure/repositories"
	"github.com/Black-And-White-Club/ctf-bot/pkg/results"
	scoringtypes "github.com/Black-And-White-Club/ctf-bot/pkg/types/scoring"
)

type competitionInput struct {
	Name string `validate:"required,max=128"`
}

// CreateCompetition stores a new competition.
func (s *ScoringService) CreateCompetition(ctx context.Context, name string) (*scoringtypes.Competition, error) {
	name = strings.TrimSpace(name)

	result, err := withTelemetry(s, ctx, "CreateCompetition", name, func(ctx context.Context) (results.OperationResult[*scoringtypes.Competition, error], error) {
		if err := s.validateStruct(competitionInput{Name: name}); err != nil {
			return results.FailureResult[*scoringtypes.Competition, error](err), nil
		}

		res, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[*scoringtypes.Competition, error], error) {
			c := &scoringdb.Competition{Name: name}
			if err := s.repo.CreateCompetition(ctx, db, c); err != nil {
				return results.OperationResult[*scoringtypes.Competition, error]{}, fmt.Errorf("failed to create competition: %w", err)
			}
			out := toCompetition(c)
			return results.SuccessResult[*scoringtypes.Competition, error](&out), nil
		})
		if err == nil && res.IsSuccess() {
			s.publish(ctx, scoringtypes.Added(**res.Success))
		}
		return res, err
	})
	return finish(result, err)
}

// UpdateCompetition renames a competition.
func (s *ScoringService) UpdateCompetition(ctx context.Context, c scoringtypes.Competition) (*scoringtypes.Competition, error) {
	c.Name = strings.TrimSpace(c.Name)

	result, err := withTelemetry(s, ctx, "UpdateCompetition", strconv.FormatInt(c.ID, 10), func(ctx context.Context) (results.OperationResult[*scoringtypes.Competition, error], error) {
		if err := s.validateStruct(competitionInput{Name: c.Name}); err != nil {
			return results.FailureResult[*scoringtypes.Competition, error](err), nil
		}

		res, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[*scoringtypes.Competition, error], error) {
			row := &scoringdb.Competition{ID: c.ID, Name: c.Name}
			if err := s.repo.UpdateCompetition(ctx, db, row); err != nil {
				if errors.Is(err, scoringdb.ErrNoRowsAffected) || errors.Is(err, scoringdb.ErrNotFound) {
					return results.FailureResult[*scoringtypes.Competition, error](ErrCompetitionNotFound), nil
				}
				return results.OperationResult[*scoringtypes.Competition, error]{}, fmt.Errorf("failed to update competition: %w", err)
			}
			out := toCompetition(row)
			return results.SuccessResult[*scoringtypes.Competition, error](&out), nil
		})
		if err == nil && res.IsSuccess() {
			s.publish(ctx, scoringtypes.Updated(**res.Success))
		}
		return res, err
	})
	return finish(result, err)
}

// DeleteCompetition removes a competition, its tasks and their solves, then
// clears the price cache. Delete events go out child first.
func (s *ScoringService) DeleteCompetition(ctx context.Context, id int64) error {
	result, err := withTelemetry(s, ctx, "DeleteCompetition", strconv.FormatInt(id, 10), func(ctx context.Context) (results.OperationResult[[]scoringtypes.DbEvent, error], error) {
		res, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[[]scoringtypes.DbEvent, error], error) {
			return s.deleteCompetitionLogic(ctx, db, id)
		})
		if err == nil && res.IsSuccess() {
			s.cache.Clear()
			s.publish(ctx, *res.Success...)
		}
		return res, err
	})
	_, err = finish(result, err)
	return err
}

func (s *ScoringService) deleteCompetitionLogic(ctx context.Context, db bun.IDB, id int64) (results.OperationResult[[]scoringtypes.DbEvent, error], error) {
	comp, err := s.repo.GetCompetition(ctx, db, id)
	if err != nil {
		if errors.Is(err, scoringdb.ErrNotFound) {
			return results.FailureResult[[]scoringtypes.DbEvent, error](ErrCompetitionNotFound), nil
		}
		return results.OperationResult[[]scoringtypes.DbEvent, error]{}, fmt.Errorf("failed to get competition: %w", err)
	}

	tasks, err := s.repo.ListTasks(ctx, db, &id)
	if err != nil {
		return results.OperationResult[[]scoringtypes.DbEvent, error]{}, fmt.Errorf("failed to list tasks: %w", err)
	}
	filter := scoringdb.SolveFilter{CompetitionID: &id}
	solves, err := s.repo.ListSolves(ctx, db, filter)
	if err != nil {
		return results.OperationResult[[]scoringtypes.DbEvent, error]{}, fmt.Errorf("failed to list solves: %w", err)
	}

	if len(solves) > 0 {
		if _, err := s.repo.DeleteSolves(ctx, db, filter); err != nil {
			return results.OperationResult[[]scoringtypes.DbEvent, error]{}, fmt.Errorf("failed to delete solves: %w", err)
		}
	}
	if len(tasks) > 0 {
		if _, err := s.repo.DeleteTasksByCompetition(ctx, db, id); err != nil {
			return results.OperationResult[[]scoringtypes.DbEvent, error]{}, fmt.Errorf("failed to delete tasks: %w", err)
		}
	}
	if err := s.repo.DeleteCompetition(ctx, db, id); err != nil {
		if errors.Is(err, scoringdb.ErrNoRowsAffected) {
			return results.FailureResult[[]scoringtypes.DbEvent, error](ErrCompetitionNotFound), nil
		}
		return results.OperationResult[[]scoringtypes.DbEvent, error]{}, fmt.Errorf("failed to delete competition: %w", err)
	}

	events := solveDeletions(solves)
	for i := range tasks {
		events = append(events, scoringtypes.Deleted(toTask(&tasks[i])))
	}
	events = append(events, scoringtypes.Deleted(toCompetition(comp)))
	return results.SuccessResult[[]scoringtypes.DbEvent, error](events), nil
}
