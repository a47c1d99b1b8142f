package logx

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" info ", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"verbose", zerolog.InfoLevel}, // unknown falls back to default
		{"", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in, zerolog.InfoLevel); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestZeroValueIsSafe(t *testing.T) {
	t.Parallel()
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero logger must report IsZero")
	}
	// Must not panic.
	l.Info("ignored")
	l.With(String("k", "v")).Error("ignored too")
}

func TestNopIsNotZero(t *testing.T) {
	t.Parallel()
	l := Nop()
	if l.IsZero() {
		t.Fatal("Nop logger is intentionally non-zero")
	}
	l.Warn("ignored")
}

func TestServiceApplySwapsLevel(t *testing.T) {
	t.Parallel()
	svc, log := New(Config{Level: "error", Console: true})
	defer svc.Close()

	if log.Enabled(LevelDebug) {
		t.Fatal("debug must be disabled at error level")
	}
	svc.Apply(Config{Level: "debug", Console: true})
	if !log.Enabled(LevelDebug) {
		t.Fatal("Apply must take effect on existing loggers")
	}
}
