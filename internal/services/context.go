package services

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	segmentKey   contextKey = "segment"
)

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithSegment annotates context with the caller's segment index. Negative
// values are ignored.
func WithSegment(ctx context.Context, segment int) context.Context {
	if segment < 0 {
		return ctx
	}
	return context.WithValue(ctx, segmentKey, segment)
}

// SegmentFromContext extracts the segment index if present.
func SegmentFromContext(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(segmentKey).(int)
	return v, ok
}
