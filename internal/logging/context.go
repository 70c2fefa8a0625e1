// Package logging carries a request-scoped slog logger and correlation ids
// through context.Context.
package logging

import (
	"context"
	"log/slog"
)

type scopeKey struct{}

// scope is the logging state attached to a context. Values are copied on
// every derivation so parent contexts never observe child changes.
type scope struct {
	logger    *slog.Logger
	requestID string
	traceID   string
	spanID    string
}

func scopeFrom(ctx context.Context) scope {
	if ctx == nil {
		return scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

func withScope(ctx context.Context, update func(*scope)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	s := scopeFrom(ctx)
	update(&s)
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithLogger stores the provided logger on the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		return ctx
	}
	return withScope(ctx, func(s *scope) { s.logger = logger })
}

// FromContext returns the request-scoped logger or falls back to slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if logger := scopeFrom(ctx).logger; logger != nil {
		return logger
	}
	return slog.Default()
}

// WithRequestID stores a request identifier on the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return withScope(ctx, func(s *scope) { s.requestID = requestID })
}

// RequestIDFromContext retrieves a previously stored request identifier.
func RequestIDFromContext(ctx context.Context) string {
	return scopeFrom(ctx).requestID
}

// WithUser enriches the request logger with the authenticated user's id.
func WithUser(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return WithLogger(ctx, FromContext(ctx).With(slog.String("user_id", userID)))
}

// Detach returns a background context that keeps the logging scope of ctx
// but not its cancellation or deadline. Background jobs started by a request
// use it so their log lines stay correlated with that request.
func Detach(ctx context.Context) context.Context {
	return context.WithValue(context.Background(), scopeKey{}, scopeFrom(ctx))
}

// TraceIDFromContext retrieves the trace identifier from the context.
func TraceIDFromContext(ctx context.Context) string {
	return scopeFrom(ctx).traceID
}

// SpanIDFromContext retrieves the span identifier from the context.
func SpanIDFromContext(ctx context.Context) string {
	return scopeFrom(ctx).spanID
}
