package scoringservice

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/uptrace/bun"

	scoringdb "github.com/Black-And-White-Club/ctf-bot/app/modules/scoring/infrastructure/repositories"
)

// ------------------------
// Fake Scoring Repo
// ------------------------

// FakeScoringRepo is an in-memory repository. Any ...Func field that is set
// replaces the in-memory behaviour of that method.
type FakeScoringRepo struct {
	mu    sync.Mutex
	trace []string

	nextID       int64
	competitions map[int64]scoringdb.Competition
	tasks        map[int64]scoringdb.Task
	players      map[int64]scoringdb.Player
	playerOrder  []int64
	solves       map[int64]scoringdb.Solve

	GetPlayerFunc    func(ctx context.Context, db bun.IDB, id int64) (*scoringdb.Player, error)
	CreateSolveFunc  func(ctx context.Context, db bun.IDB, s *scoringdb.Solve) error
	CountSolvesFunc  func(ctx context.Context, db bun.IDB, taskID int64) (int, error)
	ListSolvesFunc   func(ctx context.Context, db bun.IDB, filter scoringdb.SolveFilter) ([]scoringdb.RankedSolve, error)
	DeleteSolvesFunc func(ctx context.Context, db bun.IDB, filter scoringdb.SolveFilter) (int, error)
	CreateTaskFunc   func(ctx context.Context, db bun.IDB, t *scoringdb.Task) error

	// solveExistsHook runs after SolveExists has answered; tests use it to
	// widen the check-then-insert window.
	solveExistsHook func()
}

func NewFakeScoringRepo() *FakeScoringRepo {
	return &FakeScoringRepo{
		trace:        []string{},
		competitions: map[int64]scoringdb.Competition{},
		tasks:        map[int64]scoringdb.Task{},
		players:      map[int64]scoringdb.Player{},
		solves:       map[int64]scoringdb.Solve{},
	}
}

func (f *FakeScoringRepo) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeScoringRepo) id() int64 {
	f.nextID++
	return f.nextID
}

// --- Competitions ---

func (f *FakeScoringRepo) CreateCompetition(ctx context.Context, db bun.IDB, c *scoringdb.Competition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateCompetition")
	c.ID = f.id()
	c.CreatedAt = time.Now().UTC()
	f.competitions[c.ID] = *c
	return nil
}

func (f *FakeScoringRepo) GetCompetition(ctx context.Context, db bun.IDB, id int64) (*scoringdb.Competition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetCompetition")
	c, ok := f.competitions[id]
	if !ok {
		return nil, scoringdb.ErrNotFound
	}
	return &c, nil
}

func (f *FakeScoringRepo) ListCompetitions(ctx context.Context, db bun.IDB) ([]scoringdb.Competition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListCompetitions")
	out := make([]scoringdb.Competition, 0, len(f.competitions))
	for _, c := range f.competitions {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *FakeScoringRepo) UpdateCompetition(ctx context.Context, db bun.IDB, c *scoringdb.Competition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateCompetition")
	existing, ok := f.competitions[c.ID]
	if !ok {
		return scoringdb.ErrNoRowsAffected
	}
	existing.Name = c.Name
	f.competitions[c.ID] = existing
	return nil
}

func (f *FakeScoringRepo) DeleteCompetition(ctx context.Context, db bun.IDB, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteCompetition")
	if _, ok := f.competitions[id]; !ok {
		return scoringdb.ErrNoRowsAffected
	}
	delete(f.competitions, id)
	return nil
}

// --- Tasks ---

func (f *FakeScoringRepo) CreateTask(ctx context.Context, db bun.IDB, t *scoringdb.Task) error {
	if f.CreateTaskFunc != nil {
		return f.CreateTaskFunc(ctx, db, t)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateTask")
	t.ID = f.id()
	f.tasks[t.ID] = *t
	return nil
}

func (f *FakeScoringRepo) GetTask(ctx context.Context, db bun.IDB, id int64) (*scoringdb.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetTask")
	t, ok := f.tasks[id]
	if !ok {
		return nil, scoringdb.ErrNotFound
	}
	return &t, nil
}

func (f *FakeScoringRepo) ListTasks(ctx context.Context, db bun.IDB, competitionID *int64) ([]scoringdb.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListTasks")
	return f.tasksLocked(competitionID), nil
}

func (f *FakeScoringRepo) tasksLocked(competitionID *int64) []scoringdb.Task {
	out := []scoringdb.Task{}
	for _, t := range f.tasks {
		if competitionID == nil || t.CompetitionID == *competitionID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *FakeScoringRepo) FindTaskByFlag(ctx context.Context, db bun.IDB, competitionID int64, flag string) (*scoringdb.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("FindTaskByFlag")
	for _, t := range f.tasksLocked(&competitionID) {
		if t.Flag == flag {
			return &t, nil
		}
	}
	return nil, scoringdb.ErrNotFound
}

func (f *FakeScoringRepo) UpdateTask(ctx context.Context, db bun.IDB, t *scoringdb.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateTask")
	existing, ok := f.tasks[t.ID]
	if !ok {
		return scoringdb.ErrNoRowsAffected
	}
	competitionID := existing.CompetitionID
	existing = *t
	existing.CompetitionID = competitionID
	f.tasks[t.ID] = existing
	return nil
}

func (f *FakeScoringRepo) DeleteTask(ctx context.Context, db bun.IDB, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteTask")
	if _, ok := f.tasks[id]; !ok {
		return scoringdb.ErrNoRowsAffected
	}
	delete(f.tasks, id)
	return nil
}

func (f *FakeScoringRepo) DeleteTasksByCompetition(ctx context.Context, db bun.IDB, competitionID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteTasksByCompetition")
	n := 0
	for id, t := range f.tasks {
		if t.CompetitionID == competitionID {
			delete(f.tasks, id)
			n++
		}
	}
	return n, nil
}

// --- Players ---

func (f *FakeScoringRepo) CreatePlayer(ctx context.Context, db bun.IDB, p *scoringdb.Player) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreatePlayer")
	if _, ok := f.players[p.ID]; ok {
		return scoringdb.ErrDuplicatePlayer
	}
	p.CreatedAt = time.Now().UTC()
	f.players[p.ID] = *p
	f.playerOrder = append(f.playerOrder, p.ID)
	return nil
}

func (f *FakeScoringRepo) GetPlayer(ctx context.Context, db bun.IDB, id int64) (*scoringdb.Player, error) {
	if f.GetPlayerFunc != nil {
		return f.GetPlayerFunc(ctx, db, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetPlayer")
	p, ok := f.players[id]
	if !ok {
		return nil, scoringdb.ErrNotFound
	}
	return &p, nil
}

func (f *FakeScoringRepo) ListPlayers(ctx context.Context, db bun.IDB) ([]scoringdb.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListPlayers")
	out := make([]scoringdb.Player, 0, len(f.players))
	for _, id := range f.playerOrder {
		if p, ok := f.players[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *FakeScoringRepo) UpdatePlayer(ctx context.Context, db bun.IDB, p *scoringdb.Player) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdatePlayer")
	existing, ok := f.players[p.ID]
	if !ok {
		return scoringdb.ErrNoRowsAffected
	}
	existing.Name = p.Name
	f.players[p.ID] = existing
	return nil
}

func (f *FakeScoringRepo) DeletePlayer(ctx context.Context, db bun.IDB, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeletePlayer")
	if _, ok := f.players[id]; !ok {
		return scoringdb.ErrNoRowsAffected
	}
	delete(f.players, id)
	return nil
}

// --- Solves ---

func (f *FakeScoringRepo) CreateSolve(ctx context.Context, db bun.IDB, s *scoringdb.Solve) error {
	if f.CreateSolveFunc != nil {
		return f.CreateSolveFunc(ctx, db, s)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateSolve")
	for _, existing := range f.solves {
		if existing.PlayerID == s.PlayerID && existing.TaskID == s.TaskID {
			return scoringdb.ErrDuplicateSolve
		}
	}
	s.ID = f.id()
	f.solves[s.ID] = *s
	return nil
}

func (f *FakeScoringRepo) SolveExists(ctx context.Context, db bun.IDB, playerID, taskID int64) (bool, error) {
	f.mu.Lock()
	f.record("SolveExists")
	exists := false
	for _, s := range f.solves {
		if s.PlayerID == playerID && s.TaskID == taskID {
			exists = true
			break
		}
	}
	hook := f.solveExistsHook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return exists, nil
}

func (f *FakeScoringRepo) CountSolves(ctx context.Context, db bun.IDB, taskID int64) (int, error) {
	if f.CountSolvesFunc != nil {
		return f.CountSolvesFunc(ctx, db, taskID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CountSolves")
	n := 0
	for _, s := range f.solves {
		if s.TaskID == taskID {
			n++
		}
	}
	return n, nil
}

func (f *FakeScoringRepo) CountSolvesByTask(ctx context.Context, db bun.IDB, competitionID *int64) (map[int64]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CountSolvesByTask")
	out := map[int64]int{}
	for _, s := range f.solves {
		if f.matchesLocked(s, scoringdb.SolveFilter{CompetitionID: competitionID}) {
			out[s.TaskID]++
		}
	}
	return out, nil
}

func (f *FakeScoringRepo) matchesLocked(s scoringdb.Solve, filter scoringdb.SolveFilter) bool {
	if filter.PlayerID != nil && s.PlayerID != *filter.PlayerID {
		return false
	}
	if filter.TaskID != nil && s.TaskID != *filter.TaskID {
		return false
	}
	if filter.CompetitionID != nil {
		t, ok := f.tasks[s.TaskID]
		if !ok || t.CompetitionID != *filter.CompetitionID {
			return false
		}
	}
	return true
}

func (f *FakeScoringRepo) ListSolves(ctx context.Context, db bun.IDB, filter scoringdb.SolveFilter) ([]scoringdb.RankedSolve, error) {
	if f.ListSolvesFunc != nil {
		return f.ListSolvesFunc(ctx, db, filter)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListSolves")

	all := make([]scoringdb.Solve, 0, len(f.solves))
	for _, s := range f.solves {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	seen := map[int64]int{}
	out := []scoringdb.RankedSolve{}
	for _, s := range all {
		ordinal := seen[s.TaskID]
		seen[s.TaskID]++
		if !f.matchesLocked(s, filter) {
			continue
		}
		out = append(out, scoringdb.RankedSolve{
			ID:        s.ID,
			PlayerID:  s.PlayerID,
			TaskID:    s.TaskID,
			CreatedAt: s.CreatedAt,
			Ordinal:   ordinal,
		})
	}
	return out, nil
}

func (f *FakeScoringRepo) DeleteSolves(ctx context.Context, db bun.IDB, filter scoringdb.SolveFilter) (int, error) {
	if f.DeleteSolvesFunc != nil {
		return f.DeleteSolvesFunc(ctx, db, filter)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteSolves")
	n := 0
	for id, s := range f.solves {
		if f.matchesLocked(s, filter) {
			delete(f.solves, id)
			n++
		}
	}
	return n, nil
}

// --- Accessors for assertions ---

func (f *FakeScoringRepo) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeScoringRepo) SolveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.solves)
}

func (f *FakeScoringRepo) TaskCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

// Ensure the fake actually satisfies the interface
var _ scoringdb.Repository = (*FakeScoringRepo)(nil)
