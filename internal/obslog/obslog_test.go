package obslog

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevelFallsBackToInfo(t *testing.T) {
	cases := []string{"", "not-a-level", "TRACE-ish"}
	for _, c := range cases {
		if got := parseLevel(c); got != zerolog.InfoLevel {
			t.Fatalf("parseLevel(%q) = %v, want info", c, got)
		}
	}
}

func TestParseLevelHonorsRecognizedNames(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"WARN":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
	}
	for raw, want := range cases {
		if got := parseLevel(raw); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}
