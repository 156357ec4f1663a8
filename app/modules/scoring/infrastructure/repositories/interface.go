package scoringdb

import (
	"context"

	"github.com/uptrace/bun"
)

// Repository defines the contract for scoring persistence. Every method takes
// the bun.IDB to run on; nil falls back to the repository's own connection.
type Repository interface {
	CreateCompetition(ctx context.Context, db bun.IDB, c *Competition) error
	GetCompetition(ctx context.Context, db bun.IDB, id int64) (*Competition, error)
	ListCompetitions(ctx context.Context, db bun.IDB) ([]Competition, error)
	UpdateCompetition(ctx context.Context, db bun.IDB, c *Competition) error
	DeleteCompetition(ctx context.Context, db bun.IDB, id int64) error

	CreateTask(ctx context.Context, db bun.IDB, t *Task) error
	GetTask(ctx context.Context, db bun.IDB, id int64) (*Task, error)
	// ListTasks returns tasks ordered by id, limited to one competition when competitionID is set.
	ListTasks(ctx context.Context, db bun.IDB, competitionID *int64) ([]Task, error)
	// FindTaskByFlag returns the task of the competition whose flag equals flag exactly.
	FindTaskByFlag(ctx context.Context, db bun.IDB, competitionID int64, flag string) (*Task, error)
	UpdateTask(ctx context.Context, db bun.IDB, t *Task) error
	DeleteTask(ctx context.Context, db bun.IDB, id int64) error
	DeleteTasksByCompetition(ctx context.Context, db bun.IDB, competitionID int64) (int, error)

	CreatePlayer(ctx context.Context, db bun.IDB, p *Player) error
	GetPlayer(ctx context.Context, db bun.IDB, id int64) (*Player, error)
	ListPlayers(ctx context.Context, db bun.IDB) ([]Player, error)
	UpdatePlayer(ctx context.Context, db bun.IDB, p *Player) error
	DeletePlayer(ctx context.Context, db bun.IDB, id int64) error

	CreateSolve(ctx context.Context, db bun.IDB, s *Solve) error
	SolveExists(ctx context.Context, db bun.IDB, playerID, taskID int64) (bool, error)
	CountSolves(ctx context.Context, db bun.IDB, taskID int64) (int, error)
	// CountSolvesByTask returns solve counts keyed by task id for tasks with at least one solve.
	CountSolvesByTask(ctx context.Context, db bun.IDB, competitionID *int64) (map[int64]int, error)
	// ListSolves returns matching solves ordered by id, each with its ordinal on its task.
	ListSolves(ctx context.Context, db bun.IDB, filter SolveFilter) ([]RankedSolve, error)
	DeleteSolves(ctx context.Context, db bun.IDB, filter SolveFilter) (int, error)
}
