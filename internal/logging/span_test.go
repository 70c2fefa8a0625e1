package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
)

func debugLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func decodeEntries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var entry map[string]any
		if err := dec.Decode(&entry); err != nil {
			t.Fatalf("decode log entry: %v", err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestStartSpanEnrichesLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), debugLogger(&buf))

	ctx, span := StartSpan(ctx, "gallery.add", slog.String("youtube_id", "dQw4w9WgXcQ"))
	if TraceIDFromContext(ctx) == "" || SpanIDFromContext(ctx) == "" {
		t.Fatal("expected trace and span ids on context")
	}

	child, childSpan := StartSpan(ctx, "store.insert")
	if TraceIDFromContext(child) != TraceIDFromContext(ctx) {
		t.Fatal("expected child span to share the trace id")
	}
	if SpanIDFromContext(child) == SpanIDFromContext(ctx) {
		t.Fatal("expected child span to get its own id")
	}
	childSpan.End()
	span.End()

	entries := decodeEntries(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries got %d", len(entries))
	}
	if entries[0]["span_name"] != "store.insert" || entries[0]["parent_span_id"] != SpanIDFromContext(ctx) {
		t.Fatalf("unexpected child span entry: %v", entries[0])
	}
	if entries[0]["youtube_id"] != "dQw4w9WgXcQ" {
		t.Fatalf("expected parent attributes on child entry: %v", entries[0])
	}
	if entries[1]["span_name"] != "gallery.add" || entries[1]["parent_span_id"] != nil {
		t.Fatalf("unexpected root span entry: %v", entries[1])
	}
}

func TestSpanFailLogsWarning(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), debugLogger(&buf))

	_, span := StartSpan(ctx, "sharing.open")
	span.Fail(nil)
	span.Fail(errors.New("store unavailable"))
	span.End()

	entries := decodeEntries(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry got %d", len(entries))
	}
	if entries[0]["level"] != "WARN" || entries[0]["error"] != "store unavailable" {
		t.Fatalf("unexpected entry: %v", entries[0])
	}
}

func TestStartSpanDoesNotLeakIntoParent(t *testing.T) {
	parent := WithRequestID(context.Background(), "req-1")
	child, _ := StartSpan(parent, "child")

	if SpanIDFromContext(parent) != "" {
		t.Fatal("parent context must not see the child span")
	}
	if RequestIDFromContext(child) != "req-1" {
		t.Fatal("child should keep the request id")
	}
}

func TestDetachKeepsScopeWithoutCancellation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	base, _ := StartSpan(WithRequestID(WithLogger(context.Background(), logger), "req-1"), "request")
	ctx, cancel := context.WithCancel(base)
	cancel()

	detached := Detach(ctx)
	if detached.Err() != nil {
		t.Fatal("expected detached context to ignore cancellation")
	}
	if RequestIDFromContext(detached) != "req-1" {
		t.Fatal("expected request id to be carried over")
	}
	if TraceIDFromContext(detached) != TraceIDFromContext(ctx) {
		t.Fatal("expected trace id to be carried over")
	}
	if FromContext(detached) != FromContext(ctx) {
		t.Fatal("expected logger to be carried over")
	}
}

func TestWithUser(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))
	FromContext(WithUser(ctx, "user-1")).Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log entry: %v", err)
	}
	if entry["user_id"] != "user-1" {
		t.Fatalf("expected user_id attribute, got %v", entry)
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Fatal("expected default logger")
	}
}
