// ABOUTME: Request correlation ID system for tracing scan requests end to end
// ABOUTME: Generates, propagates, and extracts correlation IDs across process boundaries

package observability

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// CorrelationIDHeader is the HTTP header name for correlation IDs.
const CorrelationIDHeader = "X-Correlation-ID"

// correlationIDKey is the context key for storing correlation IDs.
type correlationIDKey struct{}

// CorrelationID represents a unique identifier for tracing requests.
type CorrelationID string

// String returns the string representation of the correlation ID.
func (c CorrelationID) String() string {
	return string(c)
}

// NewCorrelationID generates a new unique correlation ID.
func NewCorrelationID() CorrelationID {
	return CorrelationID(uuid.New().String())
}

// WithCorrelationID returns a new context with the correlation ID attached.
func WithCorrelationID(ctx context.Context, id CorrelationID) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// FromContext extracts the correlation ID from the context.
// Returns empty string if no correlation ID is present.
func FromContext(ctx context.Context) CorrelationID {
	id, ok := ctx.Value(correlationIDKey{}).(CorrelationID)
	if !ok {
		return ""
	}
	return id
}

// EnsureCorrelationID returns the context's correlation ID, attaching
// a fresh one when absent. Used at the queue intake boundary.
func EnsureCorrelationID(ctx context.Context) (context.Context, CorrelationID) {
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := NewCorrelationID()
	return WithCorrelationID(ctx, id), id
}

// CorrelationMiddleware wraps an HTTP handler to inject correlation IDs.
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := CorrelationID(r.Header.Get(CorrelationIDHeader))
		if id == "" {
			id = NewCorrelationID()
		}
		ctx := WithCorrelationID(r.Context(), id)

		w.Header().Set(CorrelationIDHeader, string(id))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
