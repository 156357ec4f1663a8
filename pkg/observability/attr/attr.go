// Package attr provides the slog attribute helpers shared by services and
// handlers so log fields stay consistently named.
package attr

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
)

type ctxKey struct{}

// CorrelationIDKey is the log field and message metadata key for correlation ids.
const CorrelationIDKey = middleware.CorrelationIDMetadataKey

// WithCorrelationID stores id in ctx. An empty id generates a fresh one.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

// CorrelationIDFromContext returns the correlation id carried by ctx, if any.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// ExtractCorrelationID returns the correlation id of ctx as a log attribute.
func ExtractCorrelationID(ctx context.Context) slog.Attr {
	return slog.String(CorrelationIDKey, CorrelationIDFromContext(ctx))
}

func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

func Int(key string, value int) slog.Attr {
	return slog.Int(key, value)
}

func Int64(key string, value int64) slog.Attr {
	return slog.Int64(key, value)
}

func Any(key string, value any) slog.Attr {
	return slog.Any(key, value)
}

// Error returns the error under the "error" key. A nil error logs as an empty string.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// CompetitionID, TaskID and PlayerID keep id field names uniform across packages.
func CompetitionID(id int64) slog.Attr { return slog.Int64("competition_id", id) }

func TaskID(id int64) slog.Attr { return slog.Int64("task_id", id) }

func PlayerID(id int64) slog.Attr { return slog.Int64("player_id", id) }
