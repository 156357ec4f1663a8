package scoringservice

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/uptrace/bun"

	scoringdb "github.com/Black-And-White-Club/ctf-bot/app/modules/scoring/infrastructure/repositories"
	"github.com/Black-And-White-Club/ctf-bot/pkg/results"
	scoringtypes "github.com/Black-And-White-Club/ctf-bot/pkg/types/scoring"
)

// Scoreboard sums, for every player, the price each of their solves was
// awarded. A solve's price is fixed by its position among the solves of its
// task. The global board lists every player, those without solves last with
// a score of zero; a competition board lists only players who scored in it.
// Ties keep registration order.
func (s *ScoringService) Scoreboard(ctx context.Context, competitionID *int64) ([]scoringtypes.ScoreboardEntry, error) {
	return query(s, ctx, "Scoreboard", idString(competitionID), func(ctx context.Context, db bun.IDB) (results.OperationResult[[]scoringtypes.ScoreboardEntry, error], error) {
		return s.scoreboardLogic(ctx, db, competitionID)
	})
}

func (s *ScoringService) scoreboardLogic(ctx context.Context, db bun.IDB, competitionID *int64) (results.OperationResult[[]scoringtypes.ScoreboardEntry, error], error) {
	players, err := s.repo.ListPlayers(ctx, db)
	if err != nil {
		return results.OperationResult[[]scoringtypes.ScoreboardEntry, error]{}, fmt.Errorf("failed to list players: %w", err)
	}
	solves, err := s.repo.ListSolves(ctx, db, scoringdb.SolveFilter{CompetitionID: competitionID})
	if err != nil {
		return results.OperationResult[[]scoringtypes.ScoreboardEntry, error]{}, fmt.Errorf("failed to list solves: %w", err)
	}

	index := make(map[int64]int, len(players))
	board := make([]scoringtypes.ScoreboardEntry, len(players))
	for i, p := range players {
		index[p.ID] = i
		board[i] = scoringtypes.ScoreboardEntry{PlayerID: p.ID, PlayerName: p.Name}
	}
	for _, solve := range solves {
		i, ok := index[solve.PlayerID]
		if !ok {
			continue
		}
		board[i].Score += Price(solve.Ordinal)
		board[i].Solves++
	}

	if competitionID != nil {
		board = slices.DeleteFunc(board, func(e scoringtypes.ScoreboardEntry) bool { return e.Solves == 0 })
	}
	sort.SliceStable(board, func(a, b int) bool {
		return board[a].Score > board[b].Score
	})
	return results.SuccessResult[[]scoringtypes.ScoreboardEntry, error](board), nil
}
