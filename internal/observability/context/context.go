package context

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
)

type requestIDKey struct{}
type creatorIDKey struct{}
type correlationIDKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// WithCreatorID stores the authenticated creator (page owner).
func WithCreatorID(ctx context.Context, creatorID string) context.Context {
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return ctx
	}
	return context.WithValue(ctx, creatorIDKey{}, creatorID)
}

func CreatorIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(creatorIDKey{}).(string)
	return v
}

// EnsureCorrelationID guarantees a correlation id on the context, generating
// a ULID when missing. Published events carry it.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if v, ok := ctx.Value(correlationIDKey{}).(string); ok && v != "" {
		return ctx, v
	}
	cid := ulid.Make().String()
	return context.WithValue(ctx, correlationIDKey{}, cid), cid
}
