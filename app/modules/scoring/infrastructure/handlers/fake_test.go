package scoringhandlers

import (
	"context"
	"sync"

	"github.com/Black-And-White-Club/ctf-bot/app/eventbus"
	scoringservice "github.com/Black-And-White-Club/ctf-bot/app/modules/scoring/application"
	scoringtypes "github.com/Black-And-White-Club/ctf-bot/pkg/types/scoring"
)

// ------------------------
// Fake Scoring Service
// ------------------------

// FakeService lets tests override individual methods. Unset methods return
// zero values.
type FakeService struct {
	mu    sync.Mutex
	trace []string

	SubmitFlagFunc        func(ctx context.Context, competitionID, playerID int64, flag string) (scoringtypes.FlagResult, error)
	CreateCompetitionFunc func(ctx context.Context, name string) (*scoringtypes.Competition, error)
	UpdateCompetitionFunc func(ctx context.Context, c scoringtypes.Competition) (*scoringtypes.Competition, error)
	DeleteCompetitionFunc func(ctx context.Context, id int64) error
	GetCompetitionFunc    func(ctx context.Context, id int64) (*scoringtypes.Competition, error)
	ListCompetitionsFunc  func(ctx context.Context) ([]scoringtypes.Competition, error)
	CreateTaskFunc        func(ctx context.Context, req scoringtypes.CreateTaskRequest) (*scoringtypes.Task, error)
	UpdateTaskFunc        func(ctx context.Context, t scoringtypes.Task) (*scoringtypes.Task, error)
	DeleteTaskFunc        func(ctx context.Context, id int64) error
	GetTaskFunc           func(ctx context.Context, id int64) (*scoringtypes.Task, error)
	TaskViewsFunc         func(ctx context.Context, competitionID *int64) ([]scoringtypes.TaskView, error)
	CreatePlayerFunc      func(ctx context.Context, id int64, name string) (*scoringtypes.Player, error)
	UpdatePlayerFunc      func(ctx context.Context, p scoringtypes.Player) (*scoringtypes.Player, error)
	DeletePlayerFunc      func(ctx context.Context, id int64) error
	GetPlayerFunc         func(ctx context.Context, id int64) (*scoringtypes.Player, error)
	ListPlayersFunc       func(ctx context.Context) ([]scoringtypes.Player, error)
	SolvesOfFunc          func(ctx context.Context, playerID int64, competitionID *int64) ([]scoringtypes.SolveView, error)
	ScoreboardFunc        func(ctx context.Context, competitionID *int64) ([]scoringtypes.ScoreboardEntry, error)
	SubscribeFunc         func(ctx context.Context) (*eventbus.Subscription[scoringtypes.DbEvent], error)
}

var _ scoringservice.Service = (*FakeService)(nil)

func (f *FakeService) record(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, step)
}

// Trace returns the names of the methods called, in order.
func (f *FakeService) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeService) SubmitFlag(ctx context.Context, competitionID, playerID int64, flag string) (scoringtypes.FlagResult, error) {
	f.record("SubmitFlag")
	if f.SubmitFlagFunc != nil {
		return f.SubmitFlagFunc(ctx, competitionID, playerID, flag)
	}
	return scoringtypes.FlagResult{}, nil
}

func (f *FakeService) CreateCompetition(ctx context.Context, name string) (*scoringtypes.Competition, error) {
	f.record("CreateCompetition")
	if f.CreateCompetitionFunc != nil {
		return f.CreateCompetitionFunc(ctx, name)
	}
	return &scoringtypes.Competition{}, nil
}

func (f *FakeService) UpdateCompetition(ctx context.Context, c scoringtypes.Competition) (*scoringtypes.Competition, error) {
	f.record("UpdateCompetition")
	if f.UpdateCompetitionFunc != nil {
		return f.UpdateCompetitionFunc(ctx, c)
	}
	return &c, nil
}

func (f *FakeService) DeleteCompetition(ctx context.Context, id int64) error {
	f.record("DeleteCompetition")
	if f.DeleteCompetitionFunc != nil {
		return f.DeleteCompetitionFunc(ctx, id)
	}
	return nil
}

func (f *FakeService) GetCompetition(ctx context.Context, id int64) (*scoringtypes.Competition, error) {
	f.record("GetCompetition")
	if f.GetCompetitionFunc != nil {
		return f.GetCompetitionFunc(ctx, id)
	}
	return &scoringtypes.Competition{ID: id}, nil
}

func (f *FakeService) ListCompetitions(ctx context.Context) ([]scoringtypes.Competition, error) {
	f.record("ListCompetitions")
	if f.ListCompetitionsFunc != nil {
		return f.ListCompetitionsFunc(ctx)
	}
	return []scoringtypes.Competition{}, nil
}

func (f *FakeService) CreateTask(ctx context.Context, req scoringtypes.CreateTaskRequest) (*scoringtypes.Task, error) {
	f.record("CreateTask")
	if f.CreateTaskFunc != nil {
		return f.CreateTaskFunc(ctx, req)
	}
	return &scoringtypes.Task{}, nil
}

func (f *FakeService) UpdateTask(ctx context.Context, t scoringtypes.Task) (*scoringtypes.Task, error) {
	f.record("UpdateTask")
	if f.UpdateTaskFunc != nil {
		return f.UpdateTaskFunc(ctx, t)
	}
	return &t, nil
}

func (f *FakeService) DeleteTask(ctx context.Context, id int64) error {
	f.record("DeleteTask")
	if f.DeleteTaskFunc != nil {
		return f.DeleteTaskFunc(ctx, id)
	}
	return nil
}

func (f *FakeService) GetTask(ctx context.Context, id int64) (*scoringtypes.Task, error) {
	f.record("GetTask")
	if f.GetTaskFunc != nil {
		return f.GetTaskFunc(ctx, id)
	}
	return &scoringtypes.Task{ID: id}, nil
}

func (f *FakeService) ListTasks(ctx context.Context) ([]scoringtypes.Task, error) {
	f.record("ListTasks")
	return []scoringtypes.Task{}, nil
}

func (f *FakeService) TasksOf(ctx context.Context, competitionID int64) ([]scoringtypes.Task, error) {
	f.record("TasksOf")
	return []scoringtypes.Task{}, nil
}

func (f *FakeService) TaskViews(ctx context.Context, competitionID *int64) ([]scoringtypes.TaskView, error) {
	f.record("TaskViews")
	if f.TaskViewsFunc != nil {
		return f.TaskViewsFunc(ctx, competitionID)
	}
	return []scoringtypes.TaskView{}, nil
}

func (f *FakeService) CreatePlayer(ctx context.Context, id int64, name string) (*scoringtypes.Player, error) {
	f.record("CreatePlayer")
	if f.CreatePlayerFunc != nil {
		return f.CreatePlayerFunc(ctx, id, name)
	}
	return &scoringtypes.Player{ID: id, Name: name}, nil
}

func (f *FakeService) UpdatePlayer(ctx context.Context, p scoringtypes.Player) (*scoringtypes.Player, error) {
	f.record("UpdatePlayer")
	if f.UpdatePlayerFunc != nil {
		return f.UpdatePlayerFunc(ctx, p)
	}
	return &p, nil
}

func (f *FakeService) DeletePlayer(ctx context.Context, id int64) error {
	f.record("DeletePlayer")
	if f.DeletePlayerFunc != nil {
		return f.DeletePlayerFunc(ctx, id)
	}
	return nil
}

func (f *FakeService) GetPlayer(ctx context.Context, id int64) (*scoringtypes.Player, error) {
	f.record("GetPlayer")
	if f.GetPlayerFunc != nil {
		return f.GetPlayerFunc(ctx, id)
	}
	return &scoringtypes.Player{ID: id}, nil
}

func (f *FakeService) ListPlayers(ctx context.Context) ([]scoringtypes.Player, error) {
	f.record("ListPlayers")
	if f.ListPlayersFunc != nil {
		return f.ListPlayersFunc(ctx)
	}
	return []scoringtypes.Player{}, nil
}

func (f *FakeService) SolvesOf(ctx context.Context, playerID int64, competitionID *int64) ([]scoringtypes.SolveView, error) {
	f.record("SolvesOf")
	if f.SolvesOfFunc != nil {
		return f.SolvesOfFunc(ctx, playerID, competitionID)
	}
	return []scoringtypes.SolveView{}, nil
}

func (f *FakeService) Scoreboard(ctx context.Context, competitionID *int64) ([]scoringtypes.ScoreboardEntry, error) {
	f.record("Scoreboard")
	if f.ScoreboardFunc != nil {
		return f.ScoreboardFunc(ctx, competitionID)
	}
	return []scoringtypes.ScoreboardEntry{}, nil
}

func (f *FakeService) Subscribe(ctx context.Context) (*eventbus.Subscription[scoringtypes.DbEvent], error) {
	f.record("Subscribe")
	if f.SubscribeFunc != nil {
		return f.SubscribeFunc(ctx)
	}
	return nil, eventbus.ErrClosed
}

func (f *FakeService) Unsubscribe(sub *eventbus.Subscription[scoringtypes.DbEvent]) error {
	f.record("Unsubscribe")
	if sub == nil {
		return nil
	}
	return sub.Close()
}
