package scoringdb

import (
	"time"

	"github.com/uptrace/bun"
)

// Competition is a row of the competitions table.
type Competition struct {
	bun.BaseModel `bun:"table:competitions,alias:c"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Name      string    `bun:"name,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// Task is a row of the tasks table.
type Task struct {
	bun.BaseModel `bun:"table:tasks,alias:t"`

	ID            int64     `bun:"id,pk,autoincrement"`
	CompetitionID int64     `bun:"competition_id,notnull"`
	Category      string    `bun:"category,notnull"`
	Name          string    `bun:"name,notnull"`
	Description   string    `bun:"description,notnull,default:''"`
	Flag          string    `bun:"flag,notnull"`
	Attachment    string    `bun:"attachment,notnull,default:''"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// Player is a row of the players table. ID is assigned by the caller.
type Player struct {
	bun.BaseModel `bun:"table:players,alias:p"`

	ID        int64     `bun:"id,pk"`
	Name      string    `bun:"name,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// Solve is a row of the solves table.
type Solve struct {
	bun.BaseModel `bun:"table:solves,alias:s"`

	ID        int64     `bun:"id,pk,autoincrement"`
	PlayerID  int64     `bun:"player_id,notnull"`
	TaskID    int64     `bun:"task_id,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// RankedSolve is a solve with Ordinal, the number of solves on the same task
// that precede it.
type RankedSolve struct {
	ID        int64     `bun:"id"`
	PlayerID  int64     `bun:"player_id"`
	TaskID    int64     `bun:"task_id"`
	CreatedAt time.Time `bun:"created_at"`
	Ordinal   int       `bun:"ordinal"`
}

// SolveFilter narrows solve queries. Nil fields do not filter.
type SolveFilter struct {
	PlayerID      *int64
	TaskID        *int64
	CompetitionID *int64
}
