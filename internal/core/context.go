package core

import "context"

type requestIDKey struct{}

// WithRequestID attaches the request's correlation id to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// GetRequestID returns the id set by WithRequestID, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// LogAttrs returns slog key/value pairs identifying the request behind ctx.
func LogAttrs(ctx context.Context) []any {
	if id := GetRequestID(ctx); id != "" {
		return []any{"request_id", id}
	}
	return nil
}
