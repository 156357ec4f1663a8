package scoringhandlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Black-And-White-Club/ctf-bot/app/eventbus"
	"github.com/Black-And-White-Club/ctf-bot/pkg/observability/attr"
	scoringtypes "github.com/Black-And-White-Club/ctf-bot/pkg/types/scoring"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Frame types sent on the events socket.
const (
	frameSnapshot = "snapshot"
	frameEvent    = "event"
)

// snapshot is the full state a client starts from. Flags are removed.
type snapshot struct {
	Competitions []scoringtypes.Competition     `json:"competitions"`
	Tasks        []scoringtypes.TaskView        `json:"tasks"`
	Players      []scoringtypes.Player          `json:"players"`
	Scoreboard   []scoringtypes.ScoreboardEntry `json:"scoreboard"`
}

type frame struct {
	Type     string                  `json:"type"`
	Snapshot *snapshot               `json:"snapshot,omitempty"`
	Event    scoringtypes.EventType  `json:"event,omitempty"`
	Kind     scoringtypes.RecordKind `json:"kind,omitempty"`
	Record   scoringtypes.Record     `json:"record,omitempty"`
}

// Events subscribes before taking the snapshot so nothing committed after
// the snapshot is missed. A client that falls behind is disconnected with
// a close frame and is expected to reconnect.
func (h *ScoringHandlers) Events(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Failed to upgrade events socket", attr.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	sub, err := h.service.Subscribe(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to subscribe events socket", attr.Error(err))
		closeWith(conn, websocket.CloseInternalServerErr, "subscribe failed")
		return
	}
	defer func() { _ = h.service.Unsubscribe(sub) }()

	snap, err := h.snapshot(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to build events snapshot", attr.Error(err))
		closeWith(conn, websocket.CloseInternalServerErr, "snapshot failed")
		return
	}
	if err := writeFrame(conn, frame{Type: frameSnapshot, Snapshot: snap}); err != nil {
		return
	}

	h.logger.InfoContext(ctx, "Events socket attached", attr.String("subscription_id", sub.ID()))

	go readPump(conn, cancel)
	h.writePump(ctx, conn, sub)
}

func (h *ScoringHandlers) snapshot(ctx context.Context) (*snapshot, error) {
	competitions, err := h.service.ListCompetitions(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := h.service.TaskViews(ctx, nil)
	if err != nil {
		return nil, err
	}
	players, err := h.service.ListPlayers(ctx)
	if err != nil {
		return nil, err
	}
	board, err := h.service.Scoreboard(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &snapshot{Competitions: competitions, Tasks: tasks, Players: players, Scoreboard: board}, nil
}

func (h *ScoringHandlers) writePump(ctx context.Context, conn *websocket.Conn, sub *eventbus.Subscription[scoringtypes.DbEvent]) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			closeWith(conn, websocket.CloseNormalClosure, "")
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case evt, ok := <-sub.Events():
			if !ok {
				if errors.Is(sub.Err(), eventbus.ErrSlowSubscriber) {
					h.logger.WarnContext(ctx, "Events socket fell behind, disconnecting", attr.String("subscription_id", sub.ID()))
					closeWith(conn, websocket.CloseTryAgainLater, "fell behind, reconnect")
					return
				}
				closeWith(conn, websocket.CloseGoingAway, "")
				return
			}
			evt = evt.Redacted()
			if err := writeFrame(conn, frame{Type: frameEvent, Event: evt.Type, Kind: evt.Record.Kind(), Record: evt.Record}); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages and keeps the pong deadline fresh. It
// cancels the connection context once the client goes away.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, f frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(f)
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
}
