package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span times one operation. Spans nest: a span started from a context that
// already carries one records it as parent and shares its trace id.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
	err    error
}

// StartSpan derives a child span from ctx. attrs are attached to every log
// line written through the returned context.
func StartSpan(ctx context.Context, name string, attrs ...slog.Attr) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	parent := scopeFrom(ctx)
	logger := FromContext(ctx)

	traceID := parent.traceID
	if traceID == "" {
		traceID = uuid.NewString()
		logger = logger.With(slog.String("trace_id", traceID))
	}
	spanID := uuid.NewString()

	args := make([]any, 0, len(attrs)+3)
	args = append(args, slog.String("span_id", spanID), slog.String("span_name", name))
	if parent.spanID != "" {
		args = append(args, slog.String("parent_span_id", parent.spanID))
	}
	for _, a := range attrs {
		args = append(args, a)
	}
	logger = logger.With(args...)

	ctx = withScope(ctx, func(s *scope) {
		s.logger = logger
		s.traceID = traceID
		s.spanID = spanID
	})

	return ctx, &Span{name: name, logger: logger, start: time.Now()}
}

// Fail marks the span as failed. The last non-nil error wins.
func (s *Span) Fail(err error) {
	if s == nil || err == nil {
		return
	}
	s.err = err
}

// End emits the completion record: debug on success, warn when Fail was
// called.
func (s *Span) End() {
	if s == nil {
		return
	}
	elapsed := slog.Duration("duration", time.Since(s.start))
	if s.err != nil {
		s.logger.Warn("span failed", elapsed, slog.String("error", s.err.Error()))
		return
	}
	s.logger.Debug("span completed", elapsed)
}
