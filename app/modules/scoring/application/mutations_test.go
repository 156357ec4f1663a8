package scoringservice

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	scoringdb "github.com/Black-And-White-Club/ctf-bot/app/modules/scoring/infrastructure/repositories"
	scoringtypes "github.com/Black-And-White-Club/ctf-bot/pkg/types/scoring"
)

func TestEveryMutationPublishesOneEvent(t *testing.T) {
	repo := NewFakeScoringRepo()
	svc := newTestService(t, repo)
	sub := subscribe(t, svc)
	ctx := context.Background()

	comp, err := svc.CreateCompetition(ctx, "Quals")
	require.NoError(t, err)
	task, err := svc.CreateTask(ctx, scoringtypes.CreateTaskRequest{
		CompetitionID: comp.ID, Category: "web", Name: "xss", Flag: "flag{xss}",
	})
	require.NoError(t, err)
	player, err := svc.CreatePlayer(ctx, 1001, "alice")
	require.NoError(t, err)

	_, err = svc.UpdateCompetition(ctx, scoringtypes.Competition{ID: comp.ID, Name: "Quals 2026"})
	require.NoError(t, err)
	task.Description = "find the bug"
	_, err = svc.UpdateTask(ctx, *task)
	require.NoError(t, err)
	_, err = svc.UpdatePlayer(ctx, scoringtypes.Player{ID: player.ID, Name: "alice2"})
	require.NoError(t, err)

	res, err := svc.SubmitFlag(ctx, comp.ID, player.ID, "flag{xss}")
	require.NoError(t, err)
	require.True(t, res.IsCorrect())

	// A rejected submission publishes nothing.
	_, err = svc.SubmitFlag(ctx, comp.ID, player.ID, "flag{xss}")
	require.NoError(t, err)

	require.NoError(t, svc.DeletePlayer(ctx, player.ID))

	want := []eventKey{
		{scoringtypes.EventAdd, scoringtypes.KindCompetition, comp.ID},
		{scoringtypes.EventAdd, scoringtypes.KindTask, task.ID},
		{scoringtypes.EventAdd, scoringtypes.KindPlayer, player.ID},
		{scoringtypes.EventUpdate, scoringtypes.KindCompetition, comp.ID},
		{scoringtypes.EventUpdate, scoringtypes.KindTask, task.ID},
		{scoringtypes.EventUpdate, scoringtypes.KindPlayer, player.ID},
		{scoringtypes.EventAdd, scoringtypes.KindSolve, res.Solve.ID},
		{scoringtypes.EventDelete, scoringtypes.KindSolve, res.Solve.ID},
		{scoringtypes.EventDelete, scoringtypes.KindPlayer, player.ID},
	}
	got := collect(t, sub, len(want))
	if diff := cmp.Diff(want, keys(got)); diff != "" {
		t.Errorf("event sequence mismatch (-want +got):\n%s", diff)
	}
	expectNoEvent(t, sub)

	updated := got[4].Record.(scoringtypes.Task)
	assert.Equal(t, "find the bug", updated.Description)
	assert.Equal(t, comp.ID, updated.CompetitionID)
	assert.Equal(t, "alice2", got[8].Record.(scoringtypes.Player).Name)
}

func TestLateSubscriberReconstructsFromQueries(t *testing.T) {
	repo := NewFakeScoringRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	comp, err := svc.CreateCompetition(ctx, "Quals")
	require.NoError(t, err)

	sub := subscribe(t, svc)
	snapshot, err := svc.ListCompetitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []scoringtypes.Competition{*comp}, snapshot)

	p, err := svc.CreatePlayer(ctx, 7, "bob")
	require.NoError(t, err)

	got := collect(t, sub, 1)
	assert.Equal(t, []eventKey{{scoringtypes.EventAdd, scoringtypes.KindPlayer, p.ID}}, keys(got))
	expectNoEvent(t, sub)
}

func TestDeleteCompetitionCascades(t *testing.T) {
	repo := NewFakeScoringRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()
	fx := seed(t, svc, []string{"flag{a}", "flag{b}"}, 2)

	other, err := svc.CreateCompetition(ctx, "Finals")
	require.NoError(t, err)
	keep, err := svc.CreateTask(ctx, scoringtypes.CreateTaskRequest{
		CompetitionID: other.ID, Category: "pwn", Name: "keep", Flag: "flag{keep}",
	})
	require.NoError(t, err)

	for _, p := range fx.players {
		for _, flag := range []string{"flag{a}", "flag{b}"} {
			res, err := svc.SubmitFlag(ctx, fx.competition.ID, p.ID, flag)
			require.NoError(t, err)
			require.True(t, res.IsCorrect())
		}
	}
	_, err = svc.SubmitFlag(ctx, other.ID, 1, "flag{keep}")
	require.NoError(t, err)

	// Warm the cache for the doomed task.
	price, err := svc.PriceCache().CurrentPrice(ctx, fx.tasks[0].ID)
	require.NoError(t, err)
	require.Equal(t, Price(2), price)

	sub := subscribe(t, svc)
	require.NoError(t, svc.DeleteCompetition(ctx, fx.competition.ID))

	events := collect(t, sub, 4+2+1)
	for i, evt := range events {
		assert.Equal(t, scoringtypes.EventDelete, evt.Type)
		switch {
		case i < 4:
			assert.Equal(t, scoringtypes.KindSolve, evt.Record.Kind())
		case i < 6:
			assert.Equal(t, scoringtypes.KindTask, evt.Record.Kind())
		default:
			assert.Equal(t, scoringtypes.KindCompetition, evt.Record.Kind())
		}
	}

	_, err = svc.GetCompetition(ctx, fx.competition.ID)
	assert.ErrorIs(t, err, ErrCompetitionNotFound)
	_, err = svc.GetTask(ctx, fx.tasks[0].ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.Equal(t, 1, repo.SolveCount())
	assert.Equal(t, 1, repo.TaskCount())

	board, err := svc.Scoreboard(ctx, &fx.competition.ID)
	require.NoError(t, err)
	assert.Empty(t, board)

	// The cache was cleared, so the next read recounts from zero.
	price, err = svc.PriceCache().CurrentPrice(ctx, fx.tasks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, InitialPoints, price)

	remaining, err := svc.TasksOf(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, []scoringtypes.Task{*keep}, remaining)
}

func TestDeleteTaskAndPlayer(t *testing.T) {
	repo := NewFakeScoringRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()
	fx := seed(t, svc, []string{"flag{a}", "flag{b}"}, 2)

	for _, p := range fx.players {
		_, err := svc.SubmitFlag(ctx, fx.competition.ID, p.ID, "flag{a}")
		require.NoError(t, err)
	}
	_, err := svc.SubmitFlag(ctx, fx.competition.ID, 1, "flag{b}")
	require.NoError(t, err)

	sub := subscribe(t, svc)
	require.NoError(t, svc.DeletePlayer(ctx, 1))
	assert.Equal(t, []eventKey{
		{scoringtypes.EventDelete, scoringtypes.KindSolve, 0},
		{scoringtypes.EventDelete, scoringtypes.KindSolve, 0},
		{scoringtypes.EventDelete, scoringtypes.KindPlayer, 1},
	}, zeroSolveIDs(keys(collect(t, sub, 3))))
	assert.Equal(t, 1, repo.SolveCount())

	// Player 2 was second on task a and moves up once player 1 is gone.
	views, err := svc.SolvesOf(ctx, 2, nil)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, InitialPoints, views[0].AwardedPrice)

	require.NoError(t, svc.DeleteTask(ctx, fx.tasks[0].ID))
	got := keys(collect(t, sub, 2))
	assert.Equal(t, scoringtypes.KindSolve, got[0].Kind)
	assert.Equal(t, eventKey{scoringtypes.EventDelete, scoringtypes.KindTask, fx.tasks[0].ID}, got[1])
	assert.Equal(t, 0, repo.SolveCount())

	assert.ErrorIs(t, svc.DeleteTask(ctx, fx.tasks[0].ID), ErrTaskNotFound)
	assert.ErrorIs(t, svc.DeletePlayer(ctx, 1), ErrPlayerNotFound)
	assert.ErrorIs(t, svc.DeleteCompetition(ctx, 999), ErrCompetitionNotFound)
	expectNoEvent(t, sub)
}

func zeroSolveIDs(in []eventKey) []eventKey {
	for i := range in {
		if in[i].Kind == scoringtypes.KindSolve {
			in[i].ID = 0
		}
	}
	return in
}

func TestDeleteFailureLeavesCacheAndPublishesNothing(t *testing.T) {
	repo := NewFakeScoringRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()
	fx := seed(t, svc, []string{"flag{a}"}, 1)
	_, err := svc.SubmitFlag(ctx, fx.competition.ID, 1, "flag{a}")
	require.NoError(t, err)

	gen := svc.PriceCache().Generation()
	sub := subscribe(t, svc)
	repo.DeleteSolvesFunc = func(ctx context.Context, db bun.IDB, filter scoringdb.SolveFilter) (int, error) {
		return 0, errors.New("disk full")
	}

	err = svc.DeletePlayer(ctx, 1)
	assert.ErrorIs(t, err, ErrStorage)
	assert.Equal(t, gen, svc.PriceCache().Generation())
	expectNoEvent(t, sub)
}

func TestCreateAndUpdateValidation(t *testing.T) {
	repo := NewFakeScoringRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()
	sub := subscribe(t, svc)

	_, err := svc.CreateCompetition(ctx, "   ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateTask(ctx, scoringtypes.CreateTaskRequest{CompetitionID: 1, Category: "web", Name: "x"})
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorContains(t, err, "flag")

	_, err = svc.CreateTask(ctx, scoringtypes.CreateTaskRequest{CompetitionID: 42, Category: "web", Name: "x", Flag: "f"})
	assert.ErrorIs(t, err, ErrCompetitionNotFound)

	_, err = svc.CreatePlayer(ctx, 0, "nobody")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreatePlayer(ctx, 5, "eve")
	require.NoError(t, err)
	_, err = svc.CreatePlayer(ctx, 5, "eve again")
	assert.ErrorIs(t, err, ErrPlayerExists)

	_, err = svc.UpdatePlayer(ctx, scoringtypes.Player{ID: 6, Name: "ghost"})
	assert.ErrorIs(t, err, ErrPlayerNotFound)
	_, err = svc.UpdateCompetition(ctx, scoringtypes.Competition{ID: 77, Name: "ghost"})
	assert.ErrorIs(t, err, ErrCompetitionNotFound)
	_, err = svc.UpdateTask(ctx, scoringtypes.Task{ID: 88, Category: "c", Name: "n", Flag: "f"})
	assert.ErrorIs(t, err, ErrTaskNotFound)

	// Only the successful CreatePlayer published.
	got := collect(t, sub, 1)
	assert.Equal(t, []eventKey{{scoringtypes.EventAdd, scoringtypes.KindPlayer, 5}}, keys(got))
	expectNoEvent(t, sub)
}

func TestUpdateTaskKeepsCompetition(t *testing.T) {
	repo := NewFakeScoringRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()
	fx := seed(t, svc, []string{"flag{a}"}, 0)

	edited := fx.tasks[0]
	edited.CompetitionID = 12345
	edited.Flag = "flag{rotated}"
	got, err := svc.UpdateTask(ctx, edited)
	require.NoError(t, err)
	assert.Equal(t, fx.competition.ID, got.CompetitionID)
	assert.Equal(t, "flag{rotated}", got.Flag)
}

func TestCreateTaskStorageError(t *testing.T) {
	repo := NewFakeScoringRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()
	comp, err := svc.CreateCompetition(ctx, "Quals")
	require.NoError(t, err)

	repo.CreateTaskFunc = func(ctx context.Context, db bun.IDB, t *scoringdb.Task) error {
		return errors.New("timeout")
	}
	_, err = svc.CreateTask(ctx, scoringtypes.CreateTaskRequest{CompetitionID: comp.ID, Category: "c", Name: "n", Flag: "f"})
	assert.ErrorIs(t, err, ErrStorage)
}
