package scoringhandlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/Black-And-White-Club/ctf-bot/pkg/observability/attr"
)

type submitRequest struct {
	PlayerID int64  `json:"player_id"`
	Flag     string `json:"flag"`
}

// SubmitFlag answers with the submission verdict. Every verdict, including
// a wrong flag, is a 200; only faults map to error statuses.
func (h *ScoringHandlers) SubmitFlag(w http.ResponseWriter, r *http.Request) {
	r, span := h.span(r, "SubmitFlag")
	defer span.End()

	competitionID, err := pathID(r, "competitionID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Flag == "" {
		h.writeError(w, r, fmt.Errorf("%w: flag is required", errBadRequest))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(strconv.FormatInt(req.PlayerID, 10)) {
		h.logger.WarnContext(r.Context(), "Flag submission rate limited",
			attr.ExtractCorrelationID(r.Context()),
			attr.CompetitionID(competitionID),
			attr.PlayerID(req.PlayerID),
		)
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many submissions, slow down"})
		return
	}

	out, err := h.service.SubmitFlag(r.Context(), competitionID, req.PlayerID, req.Flag)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Scoreboard serves both /scoreboard and /competitions/{competitionID}/scoreboard.
func (h *ScoringHandlers) Scoreboard(w http.ResponseWriter, r *http.Request) {
	r, span := h.span(r, "Scoreboard")
	defer span.End()

	competitionID, err := competitionScope(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.service.Scoreboard(r.Context(), competitionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
