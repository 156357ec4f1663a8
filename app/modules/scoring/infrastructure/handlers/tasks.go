package scoringhandlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	scoringtypes "github.com/Black-And-White-Club/ctf-bot/pkg/types/scoring"
)

// taskRequest carries the editable task fields. The flag is write-only.
type taskRequest struct {
	Category    string `json:"category"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Flag        string `json:"flag"`
	Attachment  string `json:"attachment"`
}

// ListTasks serves both /tasks and /competitions/{competitionID}/tasks.
func (h *ScoringHandlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	r, span := h.span(r, "ListTasks")
	defer span.End()

	competitionID, err := competitionScope(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.service.TaskViews(r.Context(), competitionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ScoringHandlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	r, span := h.span(r, "CreateTask")
	defer span.End()

	var req scoringtypes.CreateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if id, err := pathID(r, "competitionID"); err == nil {
		req.CompetitionID = id
	}
	out, err := h.service.CreateTask(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out.Redacted())
}

func (h *ScoringHandlers) GetTask(w http.ResponseWriter, r *http.Request) {
	r, span := h.span(r, "GetTask")
	defer span.End()

	id, err := pathID(r, "taskID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.service.GetTask(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out.Redacted())
}

func (h *ScoringHandlers) UpdateTask(w http.ResponseWriter, r *http.Request) {
	r, span := h.span(r, "UpdateTask")
	defer span.End()

	id, err := pathID(r, "taskID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.service.UpdateTask(r.Context(), scoringtypes.Task{
		ID:          id,
		Category:    req.Category,
		Name:        req.Name,
		Description: req.Description,
		Flag:        req.Flag,
		Attachment:  req.Attachment,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out.Redacted())
}

func (h *ScoringHandlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	r, span := h.span(r, "DeleteTask")
	defer span.End()

	id, err := pathID(r, "taskID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.service.DeleteTask(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// competitionScope reads the competition from the path, falling back to the
// competition_id query parameter. Nil means every competition.
func competitionScope(r *http.Request) (*int64, error) {
	if chi.URLParam(r, "competitionID") != "" {
		id, err := pathID(r, "competitionID")
		if err != nil {
			return nil, err
		}
		return &id, nil
	}
	return queryID(r, "competition_id")
}
