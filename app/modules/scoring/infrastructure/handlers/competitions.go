package scoringhandlers

import (
	"net/http"

	"go.opentelemetry.io/otel/trace"

	scoringtypes "github.com/Black-And-White-Club/ctf-bot/pkg/types/scoring"
)

type competitionRequest struct {
	Name string `json:"name"`
}

// span starts a handler span and returns the request bound to its context.
func (h *ScoringHandlers) span(r *http.Request, name string) (*http.Request, trace.Span) {
	ctx, span := h.tracer.Start(r.Context(), "ScoringHandlers."+name)
	return r.WithContext(ctx), span
}

func (h *ScoringHandlers) ListCompetitions(w http.ResponseWriter, r *http.Request) {
	r, span := h.span(r, "ListCompetitions")
	defer span.End()

	out, err := h.service.ListCompetitions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ScoringHandlers) CreateCompetition(w http.ResponseWriter, r *http.Request) {
	r, span := h.span(r, "CreateCompetition")
	defer span.End()

	var req competitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.service.CreateCompetition(r.Context(), req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *ScoringHandlers) GetCompetition(w http.ResponseWriter, r *http.Request) {
	r, span := h.span(r, "GetCompetition")
	defer span.End()

	id, err := pathID(r, "competitionID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.service.GetCompetition(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ScoringHandlers) UpdateCompetition(w http.ResponseWriter, r *http.Request) {
	r, span := h.span(r, "UpdateCompetition")
	defer span.End()

	id, err := pathID(r, "competitionID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req competitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.service.UpdateCompetition(r.Context(), scoringtypes.Competition{ID: id, Name: req.Name})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ScoringHandlers) DeleteCompetition(w http.ResponseWriter, r *http.Request) {
	r, span := h.span(r, "DeleteCompetition")
	defer span.End()

	id, err := pathID(r, "competitionID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.service.DeleteCompetition(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
