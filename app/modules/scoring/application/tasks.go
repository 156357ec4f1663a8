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

// taskFields are the operator-editable task fields.
type taskFields struct {
	Category    string `validate:"required,max=64"`
	Name        string `validate:"required,max=128"`
	Description string `validate:"max=8192"`
	Flag        string `validate:"required,max=256"`
	Attachment  string `validate:"max=1024"`
}

// CreateTask adds a task to an existing competition.
func (s *ScoringService) CreateTask(ctx context.Context, req scoringtypes.CreateTaskRequest) (*scoringtypes.Task, error) {
	req.Category = strings.TrimSpace(req.Category)
	req.Name = strings.TrimSpace(req.Name)

	result, err := withTelemetry(s, ctx, "CreateTask", req.Name, func(ctx context.Context) (results.OperationResult[*scoringtypes.Task, error], error) {
		if err := s.validateStruct(req); err != nil {
			return results.FailureResult[*scoringtypes.Task, error](err), nil
		}

		res, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[*scoringtypes.Task, error], error) {
			if _, err := s.repo.GetCompetition(ctx, db, req.CompetitionID); err != nil {
				if errors.Is(err, scoringdb.ErrNotFound) {
					return results.FailureResult[*scoringtypes.Task, error](ErrCompetitionNotFound), nil
				}
				return results.OperationResult[*scoringtypes.Task, error]{}, fmt.Errorf("failed to get competition: %w", err)
			}

			row := &scoringdb.Task{
				CompetitionID: req.CompetitionID,
				Category:      req.Category,
				Name:          req.Name,
				Description:   req.Description,
				Flag:          req.Flag,
				Attachment:    req.Attachment,
			}
			if err := s.repo.CreateTask(ctx, db, row); err != nil {
				return results.OperationResult[*scoringtypes.Task, error]{}, fmt.Errorf("failed to create task: %w", err)
			}
			out := toTask(row)
			return results.SuccessResult[*scoringtypes.Task, error](&out), nil
		})
		if err == nil && res.IsSuccess() {
			s.publish(ctx, scoringtypes.Added(**res.Success))
		}
		return res, err
	})
	return finish(result, err)
}

// UpdateTask persists category, name, description, flag and attachment.
func (s *ScoringService) UpdateTask(ctx context.Context, t scoringtypes.Task) (*scoringtypes.Task, error) {
	t.Category = strings.TrimSpace(t.Category)
	t.Name = strings.TrimSpace(t.Name)

	result, err := withTelemetry(s, ctx, "UpdateTask", strconv.FormatInt(t.ID, 10), func(ctx context.Context) (results.OperationResult[*scoringtypes.Task, error], error) {
		if err := s.validateStruct(taskFields{
			Category:    t.Category,
			Name:        t.Name,
			Description: t.Description,
			Flag:        t.Flag,
			Attachment:  t.Attachment,
		}); err != nil {
			return results.FailureResult[*scoringtypes.Task, error](err), nil
		}

		res, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[*scoringtypes.Task, error], error) {
			row, err := s.repo.GetTask(ctx, db, t.ID)
			if err != nil {
				if errors.Is(err, scoringdb.ErrNotFound) {
					return results.FailureResult[*scoringtypes.Task, error](ErrTaskNotFound), nil
				}
				return results.OperationResult[*scoringtypes.Task, error]{}, fmt.Errorf("failed to get task: %w", err)
			}

			row.Category = t.Category
			row.Name = t.Name
			row.Description = t.Description
			row.Flag = t.Flag
			row.Attachment = t.Attachment
			if err := s.repo.UpdateTask(ctx, db, row); err != nil {
				if errors.Is(err, scoringdb.ErrNoRowsAffected) {
					return results.FailureResult[*scoringtypes.Task, error](ErrTaskNotFound), nil
				}
				return results.OperationResult[*scoringtypes.Task, error]{}, fmt.Errorf("failed to update task: %w", err)
			}
			out := toTask(row)
			return results.SuccessResult[*scoringtypes.Task, error](&out), nil
		})
		if err == nil && res.IsSuccess() {
			s.publish(ctx, scoringtypes.Updated(**res.Success))
		}
		return res, err
	})
	return finish(result, err)
}

// DeleteTask removes a task and its solves, then clears the price cache.
func (s *ScoringService) DeleteTask(ctx context.Context, id int64) error {
	result, err := withTelemetry(s, ctx, "DeleteTask", strconv.FormatInt(id, 10), func(ctx context.Context) (results.OperationResult[[]scoringtypes.DbEvent, error], error) {
		res, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[[]scoringtypes.DbEvent, error], error) {
			row, err := s.repo.GetTask(ctx, db, id)
			if err != nil {
				if errors.Is(err, scoringdb.ErrNotFound) {
					return results.FailureResult[[]scoringtypes.DbEvent, error](ErrTaskNotFound), nil
				}
				return results.OperationResult[[]scoringtypes.DbEvent, error]{}, fmt.Errorf("failed to get task: %w", err)
			}

			filter := scoringdb.SolveFilter{TaskID: &id}
			solves, err := s.repo.ListSolves(ctx, db, filter)
			if err != nil {
				return results.OperationResult[[]scoringtypes.DbEvent, error]{}, fmt.Errorf("failed to list solves: %w", err)
			}
			if len(solves) > 0 {
				if _, err := s.repo.DeleteSolves(ctx, db, filter); err != nil {
					return results.OperationResult[[]scoringtypes.DbEvent, error]{}, fmt.Errorf("failed to delete solves: %w", err)
				}
			}
			if err := s.repo.DeleteTask(ctx, db, id); err != nil {
				if errors.Is(err, scoringdb.ErrNoRowsAffected) {
					return results.FailureResult[[]scoringtypes.DbEvent, error](ErrTaskNotFound), nil
				}
				return results.OperationResult[[]scoringtypes.DbEvent, error]{}, fmt.Errorf("failed to delete task: %w", err)
			}

			events := append(solveDeletions(solves), scoringtypes.Deleted(toTask(row)))
			return results.SuccessResult[[]scoringtypes.DbEvent, error](events), nil
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
