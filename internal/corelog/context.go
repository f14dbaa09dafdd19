package corelog

import "context"

type correlationIDKey struct{}

// WithCorrelationID attaches a correlation ID (typically a task or node key)
// to ctx so nested span logs can be tied back to the originating request.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationID reads back the correlation ID set by WithCorrelationID, if any.
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}
	return ""
}
