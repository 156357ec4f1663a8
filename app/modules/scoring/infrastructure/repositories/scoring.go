package scoringdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

const uniqueViolation = "23505"

// ordinalExpr counts the solves on the same task created before s.
const ordinalExpr = "(SELECT count(*) FROM solves AS prev WHERE prev.task_id = s.task_id AND prev.id < s.id) AS ordinal"

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new scoring repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

// resolveDB returns the provided db handle, falling back to the repository's
// default connection if db is nil.
func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation
}

func rowsAffected(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNoRowsAffected
	}
	return nil
}

func getByID[M any](ctx context.Context, db bun.IDB, id int64, what string) (*M, error) {
	m := new(M)
	err := db.NewSelect().Model(m).Where("?TableAlias.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", what, err)
	}
	return m, nil
}

// -----------------------------------------------------------------------------
// Competitions
// -----------------------------------------------------------------------------

func (r *Impl) CreateCompetition(ctx context.Context, db bun.IDB, c *Competition) error {
	db = r.resolveDB(db)
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	if _, err := db.NewInsert().Model(c).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("scoringdb.CreateCompetition: %w", err)
	}
	return nil
}

func (r *Impl) GetCompetition(ctx context.Context, db bun.IDB, id int64) (*Competition, error) {
	return getByID[Competition](ctx, r.resolveDB(db), id, "competition")
}

func (r *Impl) ListCompetitions(ctx context.Context, db bun.IDB) ([]Competition, error) {
	db = r.resolveDB(db)
	var out []Competition
	if err := db.NewSelect().Model(&out).Order("c.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("scoringdb.ListCompetitions: %w", err)
	}
	return out, nil
}

func (r *Impl) UpdateCompetition(ctx context.Context, db bun.IDB, c *Competition) error {
	db = r.resolveDB(db)
	c.UpdatedAt = time.Now().UTC()
	res, err := db.NewUpdate().
		Model(c).
		Column("name", "updated_at").
		WherePK().
		Returning("created_at").
		Exec(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoRowsAffected
	}
	if err != nil {
		return fmt.Errorf("scoringdb.UpdateCompetition: %w", err)
	}
	return rowsAffected(res)
}

func (r *Impl) DeleteCompetition(ctx context.Context, db bun.IDB, id int64) error {
	db = r.resolveDB(db)
	res, err := db.NewDelete().Model((*Competition)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("scoringdb.DeleteCompetition: %w", err)
	}
	return rowsAffected(res)
}

// -----------------------------------------------------------------------------
// Tasks
// -----------------------------------------------------------------------------

func (r *Impl) CreateTask(ctx context.Context, db bun.IDB, t *Task) error {
	db = r.resolveDB(db)
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	if _, err := db.NewInsert().Model(t).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("scoringdb.CreateTask: %w", err)
	}
	return nil
}

func (r *Impl) GetTask(ctx context.Context, db bun.IDB, id int64) (*Task, error) {
	return getByID[Task](ctx, r.resolveDB(db), id, "task")
}

func (r *Impl) ListTasks(ctx context.Context, db bun.IDB, competitionID *int64) ([]Task, error) {
	db = r.resolveDB(db)
	var out []Task
	q := db.NewSelect().Model(&out).Order("t.id ASC")
	if competitionID != nil {
		q = q.Where("t.competition_id = ?", *competitionID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("scoringdb.ListTasks: %w", err)
	}
	return out, nil
}

func (r *Impl) FindTaskByFlag(ctx context.Context, db bun.IDB, competitionID int64, flag string) (*Task, error) {
	db = r.resolveDB(db)
	t := new(Task)
	err := db.NewSelect().
		Model(t).
		Where("t.competition_id = ?", competitionID).
		Where("t.flag = ?", flag).
		Order("t.id ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scoringdb.FindTaskByFlag: %w", err)
	}
	return t, nil
}

// UpdateTask persists the operator-editable fields. The competition link is never changed.
func (r *Impl) UpdateTask(ctx context.Context, db bun.IDB, t *Task) error {
	db = r.resolveDB(db)
	t.UpdatedAt = time.Now().UTC()
	res, err := db.NewUpdate().
		Model(t).
		Column("category", "name", "description", "flag", "attachment", "updated_at").
		WherePK().
		Returning("competition_id, created_at").
		Exec(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoRowsAffected
	}
	if err != nil {
		return fmt.Errorf("scoringdb.UpdateTask: %w", err)
	}
	return rowsAffected(res)
}

func (r *Impl) DeleteTask(ctx context.Context, db bun.IDB, id int64) error {
	db = r.resolveDB(db)
	res, err := db.NewDelete().Model((*Task)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("scoringdb.DeleteTask: %w", err)
	}
	return rowsAffected(res)
}

func (r *Impl) DeleteTasksByCompetition(ctx context.Context, db bun.IDB, competitionID int64) (int, error) {
	db = r.resolveDB(db)
	res, err := db.NewDelete().Model((*Task)(nil)).Where("competition_id = ?", competitionID).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("scoringdb.DeleteTasksByCompetition: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// -----------------------------------------------------------------------------
// Players
// -----------------------------------------------------------------------------

func (r *Impl) CreatePlayer(ctx context.Context, db bun.IDB, p *Player) error {
	db = r.resolveDB(db)
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if _, err := db.NewInsert().Model(p).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePlayer
		}
		return fmt.Errorf("scoringdb.CreatePlayer: %w", err)
	}
	return nil
}

func (r *Impl) GetPlayer(ctx context.Context, db bun.IDB, id int64) (*Player, error) {
	return getByID[Player](ctx, r.resolveDB(db), id, "player")
}

// ListPlayers returns players in registration order.
func (r *Impl) ListPlayers(ctx context.Context, db bun.IDB) ([]Player, error) {
	db = r.resolveDB(db)
	var out []Player
	if err := db.NewSelect().Model(&out).Order("p.created_at ASC", "p.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("scoringdb.ListPlayers: %w", err)
	}
	return out, nil
}

func (r *Impl) UpdatePlayer(ctx context.Context, db bun.IDB, p *Player) error {
	db = r.resolveDB(db)
	p.UpdatedAt = time.Now().UTC()
	res, err := db.NewUpdate().
		Model(p).
		Column("name", "updated_at").
		WherePK().
		Returning("created_at").
		Exec(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoRowsAffected
	}
	if err != nil {
		return fmt.Errorf("scoringdb.UpdatePlayer: %w", err)
	}
	return rowsAffected(res)
}

func (r *Impl) DeletePlayer(ctx context.Context, db bun.IDB, id int64) error {
	db = r.resolveDB(db)
	res, err := db.NewDelete().Model((*Player)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("scoringdb.DeletePlayer: %w", err)
	}
	return rowsAffected(res)
}

// -----------------------------------------------------------------------------
// Solves
// -----------------------------------------------------------------------------

func (r *Impl) CreateSolve(ctx context.Context, db bun.IDB, s *Solve) error {
	db = r.resolveDB(db)
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if _, err := db.NewInsert().Model(s).Returning("id").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSolve
		}
		return fmt.Errorf("scoringdb.CreateSolve: %w", err)
	}
	return nil
}

func (r *Impl) SolveExists(ctx context.Context, db bun.IDB, playerID, taskID int64) (bool, error) {
	db = r.resolveDB(db)
	exists, err := db.NewSelect().
		Model((*Solve)(nil)).
		Where("s.player_id = ?", playerID).
		Where("s.task_id = ?", taskID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("scoringdb.SolveExists: %w", err)
	}
	return exists, nil
}

func (r *Impl) CountSolves(ctx context.Context, db bun.IDB, taskID int64) (int, error) {
	db = r.resolveDB(db)
	n, err := db.NewSelect().Model((*Solve)(nil)).Where("s.task_id = ?", taskID).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("scoringdb.CountSolves: %w", err)
	}
	return n, nil
}

func (r *Impl) CountSolvesByTask(ctx context.Context, db bun.IDB, competitionID *int64) (map[int64]int, error) {
	db = r.resolveDB(db)
	var rows []struct {
		TaskID     int64 `bun:"task_id"`
		SolveCount int   `bun:"solve_count"`
	}
	q := db.NewSelect().
		Model((*Solve)(nil)).
		ColumnExpr("s.task_id").
		ColumnExpr("count(*) AS solve_count").
		GroupExpr("s.task_id")
	if competitionID != nil {
		q = q.Join("JOIN tasks AS t ON t.id = s.task_id").Where("t.competition_id = ?", *competitionID)
	}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("scoringdb.CountSolvesByTask: %w", err)
	}
	out := make(map[int64]int, len(rows))
	for _, row := range rows {
		out[row.TaskID] = row.SolveCount
	}
	return out, nil
}

func (r *Impl) ListSolves(ctx context.Context, db bun.IDB, filter SolveFilter) ([]RankedSolve, error) {
	db = r.resolveDB(db)
	var out []RankedSolve
	q := db.NewSelect().
		Model((*Solve)(nil)).
		ColumnExpr("s.id, s.player_id, s.task_id, s.created_at").
		ColumnExpr(ordinalExpr).
		OrderExpr("s.id ASC")
	if filter.PlayerID != nil {
		q = q.Where("s.player_id = ?", *filter.PlayerID)
	}
	if filter.TaskID != nil {
		q = q.Where("s.task_id = ?", *filter.TaskID)
	}
	if filter.CompetitionID != nil {
		q = q.Where("s.task_id IN (SELECT id FROM tasks WHERE competition_id = ?)", *filter.CompetitionID)
	}
	if err := q.Scan(ctx, &out); err != nil {
		return nil, fmt.Errorf("scoringdb.ListSolves: %w", err)
	}
	return out, nil
}

// DeleteSolves removes the matching solves. An empty filter is rejected.
func (r *Impl) DeleteSolves(ctx context.Context, db bun.IDB, filter SolveFilter) (int, error) {
	if filter.PlayerID == nil && filter.TaskID == nil && filter.CompetitionID == nil {
		return 0, errors.New("scoringdb.DeleteSolves: refusing to delete without a filter")
	}
	db = r.resolveDB(db)
	q := db.NewDelete().Model((*Solve)(nil))
	if filter.PlayerID != nil {
		q = q.Where("player_id = ?", *filter.PlayerID)
	}
	if filter.TaskID != nil {
		q = q.Where("task_id = ?", *filter.TaskID)
	}
	if filter.CompetitionID != nil {
		q = q.Where("task_id IN (SELECT id FROM tasks WHERE competition_id = ?)", *filter.CompetitionID)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("scoringdb.DeleteSolves: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}
