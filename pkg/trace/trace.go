// Package trace carries a request trace id through contexts, HTTP headers and
// message headers.
package trace

import (
	"context"

	"github.com/google/uuid"
)

// HeaderName is the HTTP and AMQP header that carries the trace id.
const HeaderName = "X-Trace-ID"

type ctxKey struct{}

// NewID returns a fresh trace id.
func NewID() string {
	return uuid.NewString()
}

func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

func WithContext(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, traceID)
}

// Ensure returns ctx with a trace id, generating one when absent.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := NewID()
	return WithContext(ctx, id), id
}
