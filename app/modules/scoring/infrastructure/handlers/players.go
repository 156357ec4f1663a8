package scoringhandlers

import (
	"net/http"

	scoringtypes "github.com/Black-And-White-Club/ctf-bot/pkg/types/scoring"
)

// playerRequest carries the caller-assigned id on create; on update the id
// comes from the path.
type playerRequest struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (h *ScoringHandlers) ListPlayers(w http.ResponseWriter, r *http.Request) {
	r, span := h.span(r, "ListPlayers")
	defer span.End()

	out, err := h.service.ListPlayers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ScoringHandlers) CreatePlayer(w http.ResponseWriter, r *http.Request) {
	r, span := h.span(r, "CreatePlayer")
	defer span.End()

	var req playerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.service.CreatePlayer(r.Context(), req.ID, req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *ScoringHandlers) GetPlayer(w http.ResponseWriter, r *http.Request) {
	r, span := h.span(r, "GetPlayer")
	defer span.End()

	id, err := pathID(r, "playerID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.service.GetPlayer(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ScoringHandlers) UpdatePlayer(w http.ResponseWriter, r *http.Request) {
	r, span := h.span(r, "UpdatePlayer")
	defer span.End()

	id, err := pathID(r, "playerID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req playerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.service.UpdatePlayer(r.Context(), scoringtypes.Player{ID: id, Name: req.Name})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ScoringHandlers) DeletePlayer(w http.ResponseWriter, r *http.Request) {
	r, span := h.span(r, "DeletePlayer")
	defer span.End()

	id, err := pathID(r, "playerID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.service.DeletePlayer(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PlayerSolves lists a player's solves; ?competition_id= narrows the list.
func (h *ScoringHandlers) PlayerSolves(w http.ResponseWriter, r *http.Request) {
	r, span := h.span(r, "PlayerSolves")
	defer span.End()

	id, err := pathID(r, "playerID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	competitionID, err := queryID(r, "competition_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.service.SolvesOf(r.Context(), id, competitionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
