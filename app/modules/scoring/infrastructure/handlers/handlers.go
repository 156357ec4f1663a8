package scoringhandlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"

	scoringservice "github.com/Black-And-White-Club/ctf-bot/app/modules/scoring/application"
	"github.com/Black-And-White-Club/ctf-bot/pkg/observability/attr"
)

const maxBodyBytes = 1 << 20

// retryAfterSeconds is sent with 503 responses for transient faults.
const retryAfterSeconds = "1"

// ScoringHandlers implements Handlers.
type ScoringHandlers struct {
	service  scoringservice.Service
	logger   *slog.Logger
	tracer   trace.Tracer
	limiter  *KeyedRateLimiter
	upgrader websocket.Upgrader
}

// NewScoringHandlers creates the HTTP handlers. limiter may be nil to
// disable submission rate limiting.
func NewScoringHandlers(
	service scoringservice.Service,
	logger *slog.Logger,
	tracer trace.Tracer,
	limiter *KeyedRateLimiter,
	allowedOrigins []string,
) *ScoringHandlers {
	return &ScoringHandlers{
		service: service,
		logger:  logger,
		tracer:  tracer,
		limiter: limiter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
	}
}

var _ Handlers = (*ScoringHandlers)(nil)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors to status codes. Faults get a generic body.
func (h *ScoringHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, scoringservice.ErrCompetitionNotFound),
		errors.Is(err, scoringservice.ErrTaskNotFound),
		errors.Is(err, scoringservice.ErrPlayerNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, scoringservice.ErrValidation), errors.Is(err, errBadRequest):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, scoringservice.ErrPlayerExists):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, scoringservice.ErrConcurrencyTimeout):
		h.logger.WarnContext(ctx, "Request timed out waiting for submission lock",
			attr.ExtractCorrelationID(ctx),
			attr.String("path", r.URL.Path),
		)
		w.Header().Set("Retry-After", retryAfterSeconds)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "busy, try again later"})
	default:
		h.logger.ErrorContext(ctx, "Request failed",
			attr.ExtractCorrelationID(ctx),
			attr.String("path", r.URL.Path),
			attr.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error, try again later"})
	}
}

var errBadRequest = errors.New("bad request")

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, raw)
	}
	return id, nil
}

// queryID parses an optional numeric query parameter.
func queryID(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, raw)
	}
	return &id, nil
}
