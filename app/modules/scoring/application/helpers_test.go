package scoringservice

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Black-And-White-Club/ctf-bot/app/eventbus"
	scoringmetrics "github.com/Black-And-White-Club/ctf-bot/pkg/observability/metrics/scoring"
	scoringtypes "github.com/Black-And-White-Club/ctf-bot/pkg/types/scoring"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, repo *FakeScoringRepo) *ScoringService {
	t.Helper()
	bus := eventbus.New(eventbus.Config{QueueSize: 256, SubscriberTimeout: time.Second}, discardLogger(), nil)
	t.Cleanup(func() { _ = bus.Close() })

	return NewScoringService(
		repo,
		bus,
		discardLogger(),
		scoringmetrics.NewNoop(),
		noop.NewTracerProvider().Tracer("test"),
		nil,
		Config{LockTimeout: time.Second, SubmissionTimeout: time.Second},
	)
}

type fixture struct {
	competition scoringtypes.Competition
	tasks       []scoringtypes.Task
	players     []scoringtypes.Player
}

// seed creates one competition with the given flags and players with ids 1..players.
func seed(t *testing.T, svc *ScoringService, flags []string, players int) fixture {
	t.Helper()
	ctx := context.Background()

	comp, err := svc.CreateCompetition(ctx, "Quals")
	require.NoError(t, err)
	fx := fixture{competition: *comp}

	for i, flag := range flags {
		task, err := svc.CreateTask(ctx, scoringtypes.CreateTaskRequest{
			CompetitionID: comp.ID,
			Category:      "misc",
			Name:          "task-" + string(rune('a'+i)),
			Flag:          flag,
		})
		require.NoError(t, err)
		fx.tasks = append(fx.tasks, *task)
	}
	for i := 1; i <= players; i++ {
		p, err := svc.CreatePlayer(ctx, int64(i), "player-"+string(rune('a'+i-1)))
		require.NoError(t, err)
		fx.players = append(fx.players, *p)
	}
	return fx
}

func subscribe(t *testing.T, svc *ScoringService) *eventbus.Subscription[scoringtypes.DbEvent] {
	t.Helper()
	sub, err := svc.Subscribe(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Unsubscribe(sub) })
	return sub
}

func collect(t *testing.T, sub *eventbus.Subscription[scoringtypes.DbEvent], n int) []scoringtypes.DbEvent {
	t.Helper()
	out := make([]scoringtypes.DbEvent, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case evt, ok := <-sub.Events():
			require.True(t, ok, "subscription closed after %d events", len(out))
			out = append(out, evt)
		case <-timeout:
			t.Fatalf("received %d of %d events", len(out), n)
		}
	}
	return out
}

func expectNoEvent(t *testing.T, sub *eventbus.Subscription[scoringtypes.DbEvent]) {
	t.Helper()
	select {
	case evt := <-sub.Events():
		t.Fatalf("unexpected event %s %s", evt.Type, evt.Record.Kind())
	case <-time.After(50 * time.Millisecond):
	}
}

// eventKey summarises an event for comparisons.
type eventKey struct {
	Type scoringtypes.EventType
	Kind scoringtypes.RecordKind
	ID   int64
}

func keys(events []scoringtypes.DbEvent) []eventKey {
	out := make([]eventKey, 0, len(events))
	for _, e := range events {
		out = append(out, eventKey{Type: e.Type, Kind: e.Record.Kind(), ID: e.Record.RecordID()})
	}
	return out
}
