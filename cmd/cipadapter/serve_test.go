package main

import (
	"testing"

	"github.com/tturner/cipadapter/internal/logging"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]logging.LogLevel{
		"error":   logging.LogLevelError,
		"info":    logging.LogLevelInfo,
		"verbose": logging.LogLevelVerbose,
		"debug":   logging.LogLevelDebug,
		"silent":  logging.LogLevelSilent,
	}
	for name, want := range cases {
		got, ok := parseLogLevel(name)
		if !ok {
			t.Errorf("parseLogLevel(%q) reported not ok", name)
		}
		if got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestParseLogLevelRejectsUnknown(t *testing.T) {
	if _, ok := parseLogLevel("chatty"); ok {
		t.Error("expected ok=false for an unrecognized level name")
	}
}
