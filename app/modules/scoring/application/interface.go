package scoringservice

import (
	"context"

	"github.com/Black-And-White-Club/ctf-bot/app/eventbus"
	scoringtypes "github.com/Black-And-White-Club/ctf-bot/pkg/types/scoring"
)

// Service defines the contract for the scoring engine.
type Service interface {
	// SubmitFlag checks flag against the tasks of a competition and records a
	// solve when it matches. Submissions are serialized.
	SubmitFlag(ctx context.Context, competitionID, playerID int64, flag string) (scoringtypes.FlagResult, error)

	CreateCompetition(ctx context.Context, name string) (*scoringtypes.Competition, error)
	UpdateCompetition(ctx context.Context, c scoringtypes.Competition) (*scoringtypes.Competition, error)
	// DeleteCompetition removes the competition with its tasks and their solves.
	DeleteCompetition(ctx context.Context, id int64) error
	GetCompetition(ctx context.Context, id int64) (*scoringtypes.Competition, error)
	ListCompetitions(ctx context.Context) ([]scoringtypes.Competition, error)

	CreateTask(ctx context.Context, req scoringtypes.CreateTaskRequest) (*scoringtypes.Task, error)
	// UpdateTask persists the editable fields; the competition link is kept.
	UpdateTask(ctx context.Context, t scoringtypes.Task) (*scoringtypes.Task, error)
	DeleteTask(ctx context.Context, id int64) error
	GetTask(ctx context.Context, id int64) (*scoringtypes.Task, error)
	ListTasks(ctx context.Context) ([]scoringtypes.Task, error)
	TasksOf(ctx context.Context, competitionID int64) ([]scoringtypes.Task, error)
	// TaskViews lists tasks with their solve counts and prices, flags removed.
	TaskViews(ctx context.Context, competitionID *int64) ([]scoringtypes.TaskView, error)

	CreatePlayer(ctx context.Context, id int64, name string) (*scoringtypes.Player, error)
	UpdatePlayer(ctx context.Context, p scoringtypes.Player) (*scoringtypes.Player, error)
	DeletePlayer(ctx context.Context, id int64) error
	GetPlayer(ctx context.Context, id int64) (*scoringtypes.Player, error)
	ListPlayers(ctx context.Context) ([]scoringtypes.Player, error)

	// SolvesOf returns a player's solves in submission order.
	SolvesOf(ctx context.Context, playerID int64, competitionID *int64) ([]scoringtypes.SolveView, error)
	// Scoreboard ranks every player by summed awarded price, highest first.
	Scoreboard(ctx context.Context, competitionID *int64) ([]scoringtypes.ScoreboardEntry, error)

	// Subscribe attaches to the change feed. Only events published after it
	// returns are delivered.
	Subscribe(ctx context.Context) (*eventbus.Subscription[scoringtypes.DbEvent], error)
	Unsubscribe(sub *eventbus.Subscription[scoringtypes.DbEvent]) error
}

var _ Service = (*ScoringService)(nil)
