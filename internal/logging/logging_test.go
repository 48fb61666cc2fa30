package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestFromFallsBackToDefault(t *testing.T) {
	if got := From(context.Background()); got != slog.Default() {
		t.Fatalf("expected default logger")
	}
	l := slog.Default().With("request_id", "abc")
	if got := From(With(context.Background(), l)); got != l {
		t.Fatalf("expected stored logger")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"loud":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
