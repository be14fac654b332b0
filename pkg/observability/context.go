package observability

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	runIDCtxKey         contextKey = "run_id"
	triggerSourceCtxKey contextKey = "trigger_source"
)

// Standard attribute keys used in logs.
const (
	RunIDKey         = "run_id"
	TriggerSourceKey = "trigger_source"
	OperationKey     = "operation"
	DurationKey      = "duration_ms"
	ErrorKey         = "error"
)

// WithRunID adds a pipeline run ID to the context.
// If id is empty, a new UUID is generated.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.New().String()
	}
	return context.WithValue(ctx, runIDCtxKey, id)
}

// RunIDFromContext extracts the pipeline run ID from context.
func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(runIDCtxKey).(string); ok {
		return id
	}
	return ""
}

// WithTriggerSource records what triggered the current pipeline run
// (http header X-Source, "watcher", "cli").
func WithTriggerSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, triggerSourceCtxKey, source)
}

// TriggerSourceFromContext extracts the trigger source from context.
func TriggerSourceFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if source, ok := ctx.Value(triggerSourceCtxKey).(string); ok {
		return source
	}
	return ""
}

// NewRunContext creates a context for a single pipeline run.
func NewRunContext(ctx context.Context, source string) context.Context {
	ctx = WithRunID(ctx, "")
	if source != "" {
		ctx = WithTriggerSource(ctx, source)
	}
	return ctx
}
