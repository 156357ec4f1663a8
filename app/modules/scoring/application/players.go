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

type playerInput struct {
	ID   int64  `validate:"required"`
	Name string `validate:"required,max=128"`
}

// CreatePlayer registers a player under the id assigned by its front end.
func (s *ScoringService) CreatePlayer(ctx context.Context, id int64, name string) (*scoringtypes.Player, error) {
	name = strings.TrimSpace(name)

	result, err := withTelemetry(s, ctx, "CreatePlayer", strconv.FormatInt(id, 10), func(ctx context.Context) (results.OperationResult[*scoringtypes.Player, error], error) {
		if err := s.validateStruct(playerInput{ID: id, Name: name}); err != nil {
			return results.FailureResult[*scoringtypes.Player, error](err), nil
		}

		res, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[*scoringtypes.Player, error], error) {
			row := &scoringdb.Player{ID: id, Name: name}
			if err := s.repo.CreatePlayer(ctx, db, row); err != nil {
				if errors.Is(err, scoringdb.ErrDuplicatePlayer) {
					return results.FailureResult[*scoringtypes.Player, error](ErrPlayerExists), nil
				}
				return results.OperationResult[*scoringtypes.Player, error]{}, fmt.Errorf("failed to create player: %w", err)
			}
			out := toPlayer(row)
			return results.SuccessResult[*scoringtypes.Player, error](&out), nil
		})
		if err == nil && res.IsSuccess() {
			s.publish(ctx, scoringtypes.Added(**res.Success))
		}
		return res, err
	})
	return finish(result, err)
}

// UpdatePlayer changes a player's display name.
func (s *ScoringService) UpdatePlayer(ctx context.Context, p scoringtypes.Player) (*scoringtypes.Player, error) {
	p.Name = strings.TrimSpace(p.Name)

	result, err := withTelemetry(s, ctx, "UpdatePlayer", strconv.FormatInt(p.ID, 10), func(ctx context.Context) (results.OperationResult[*scoringtypes.Player, error], error) {
		if err := s.validateStruct(playerInput{ID: p.ID, Name: p.Name}); err != nil {
			return results.FailureResult[*scoringtypes.Player, error](err), nil
		}

		res, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[*scoringtypes.Player, error], error) {
			row := &scoringdb.Player{ID: p.ID, Name: p.Name}
			if err := s.repo.UpdatePlayer(ctx, db, row); err != nil {
				if errors.Is(err, scoringdb.ErrNoRowsAffected) || errors.Is(err, scoringdb.ErrNotFound) {
					return results.FailureResult[*scoringtypes.Player, error](ErrPlayerNotFound), nil
				}
				return results.OperationResult[*scoringtypes.Player, error]{}, fmt.Errorf("failed to update player: %w", err)
			}
			out := toPlayer(row)
			return results.SuccessResult[*scoringtypes.Player, error](&out), nil
		})
		if err == nil && res.IsSuccess() {
			s.publish(ctx, scoringtypes.Updated(**res.Success))
		}
		return res, err
	})
	return finish(result, err)
}

// DeletePlayer removes a player and their solves, then clears the price cache.
func (s *ScoringService) DeletePlayer(ctx context.Context, id int64) error {
	result, err := withTelemetry(s, ctx, "DeletePlayer", strconv.FormatInt(id, 10), func(ctx context.Context) (results.OperationResult[[]scoringtypes.DbEvent, error], error) {
		res, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[[]scoringtypes.DbEvent, error], error) {
			row, err := s.repo.GetPlayer(ctx, db, id)
			if err != nil {
				if errors.Is(err, scoringdb.ErrNotFound) {
					return results.FailureResult[[]scoringtypes.DbEvent, error](ErrPlayerNotFound), nil
				}
				return results.OperationResult[[]scoringtypes.DbEvent, error]{}, fmt.Errorf("failed to get player: %w", err)
			}

			filter := scoringdb.SolveFilter{PlayerID: &id}
			solves, err := s.repo.ListSolves(ctx, db, filter)
			if err != nil {
				return results.OperationResult[[]scoringtypes.DbEvent, error]{}, fmt.Errorf("failed to list solves: %w", err)
			}
			if len(solves) > 0 {
				if _, err := s.repo.DeleteSolves(ctx, db, filter); err != nil {
					return results.OperationResult[[]scoringtypes.DbEvent, error]{}, fmt.Errorf("failed to delete solves: %w", err)
				}
			}
			if err := s.repo.DeletePlayer(ctx, db, id); err != nil {
				if errors.Is(err, scoringdb.ErrNoRowsAffected) {
					return results.FailureResult[[]scoringtypes.DbEvent, error](ErrPlayerNotFound), nil
				}
				return results.OperationResult[[]scoringtypes.DbEvent, error]{}, fmt.Errorf("failed to delete player: %w", err)
			}

			events := append(solveDeletions(solves), scoringtypes.Deleted(toPlayer(row)))
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
