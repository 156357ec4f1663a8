// Package scoringtypes holds the records and results exchanged between the
// scoring engine and its consumers.
package scoringtypes

import "time"

// RecordKind names one of the tracked record kinds.
type RecordKind string

const (
	KindCompetition RecordKind = "competition"
	KindTask        RecordKind = "task"
	KindPlayer      RecordKind = "player"
	KindSolve       RecordKind = "solve"
)

// Record is any tracked entity carried by a DbEvent.
type Record interface {
	Kind() RecordKind
	RecordID() int64
}

type Competition struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (Competition) Kind() RecordKind  { return KindCompetition }
func (c Competition) RecordID() int64 { return c.ID }

// Task is a challenge. CompetitionID is fixed once the task is created.
type Task struct {
	ID            int64  `json:"id"`
	CompetitionID int64  `json:"competition_id"`
	Category      string `json:"category"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Flag          string `json:"flag,omitempty"`
	Attachment    string `json:"attachment,omitempty"`
}

func (Task) Kind() RecordKind  { return KindTask }
func (t Task) RecordID() int64 { return t.ID }

// Redacted returns a copy of the task without its flag.
func (t Task) Redacted() Task {
	t.Flag = ""
	return t
}

// Player is identified by the id its front end assigns (for example a chat user id).
type Player struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (Player) Kind() RecordKind  { return KindPlayer }
func (p Player) RecordID() int64 { return p.ID }

// Solve records that a player submitted a task's flag. Solves are never updated.
type Solve struct {
	ID        int64     `json:"id"`
	PlayerID  int64     `json:"player_id"`
	TaskID    int64     `json:"task_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (Solve) Kind() RecordKind  { return KindSolve }
func (s Solve) RecordID() int64 { return s.ID }

// Redact strips secrets from a record before it leaves the process.
func Redact(r Record) Record {
	switch v := r.(type) {
	case Task:
		return v.Redacted()
	case *Task:
		t := v.Redacted()
		return t
	default:
		return r
	}
}

// FlagOutcome is the verdict of a flag submission.
type FlagOutcome string

const (
	OutcomeNoSuchPlayer  FlagOutcome = "no_such_player"
	OutcomeWrongFlag     FlagOutcome = "wrong_flag"
	OutcomeAlreadySolved FlagOutcome = "already_solved"
	OutcomeCorrect       FlagOutcome = "correct"
)

// FlagResult is returned by a flag submission. AwardedPrice, Task and Solve
// are only set for a correct submission; Task is also set for AlreadySolved.
type FlagResult struct {
	Outcome      FlagOutcome `json:"outcome"`
	AwardedPrice int         `json:"awarded_price,omitempty"`
	Task         *Task       `json:"task,omitempty"`
	Solve        *Solve      `json:"solve,omitempty"`
}

// IsCorrect reports whether the submission created a solve.
func (r FlagResult) IsCorrect() bool { return r.Outcome == OutcomeCorrect }

// TaskView is a task together with its derived prices.
type TaskView struct {
	Task             Task `json:"task"`
	SolveCount       int  `json:"solve_count"`
	CurrentPrice     int  `json:"current_price"`
	LastAwardedPrice int  `json:"last_awarded_price"`
}

// SolveView is one entry of a player's solve history.
type SolveView struct {
	Solve        Solve `json:"solve"`
	Task         Task  `json:"task"`
	AwardedPrice int   `json:"awarded_price"`
}

// ScoreboardEntry is one ranked row of a scoreboard.
type ScoreboardEntry struct {
	PlayerID   int64  `json:"player_id"`
	PlayerName string `json:"player_name"`
	Score      int    `json:"score"`
	Solves     int    `json:"solves"`
}

// CreateTaskRequest carries the fields of a new task.
type CreateTaskRequest struct {
	CompetitionID int64  `json:"competition_id" validate:"required"`
	Category      string `json:"category" validate:"required,max=64"`
	Name          string `json:"name" validate:"required,max=128"`
	Description   string `json:"description" validate:"max=8192"`
	Flag          string `json:"flag" validate:"required,max=256"`
	Attachment    string `json:"attachment" validate:"max=1024"`
}
