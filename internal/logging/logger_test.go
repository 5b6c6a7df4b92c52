package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewLogger(t *testing.T) {
	t.Run("no file", func(t *testing.T) {
		l, err := NewLogger(LogLevelInfo, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer l.Close()
		if l.GetLevel() != LogLevelInfo {
			t.Errorf("level = %d, want %d", l.GetLevel(), LogLevelInfo)
		}
		if l.file != nil {
			t.Error("file should be nil when no path given")
		}
	})

	t.Run("with file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.log")
		l, err := NewLogger(LogLevelDebug, path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer l.Close()
		if l.file == nil {
			t.Error("file should not be nil")
		}
		l.Info("adapter ready")
		if err := l.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		if len(data) == 0 {
			t.Error("expected log file to contain output")
		}
	})

	t.Run("invalid path", func(t *testing.T) {
		_, err := NewLogger(LogLevelInfo, "/nonexistent/dir/test.log")
		if err == nil {
			t.Error("expected error for invalid path")
		}
	})
}

func TestSetGetLevel(t *testing.T) {
	l, err := NewLogger(LogLevelInfo, "")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer l.Close()

	l.SetLevel(LogLevelDebug)
	if l.GetLevel() != LogLevelDebug {
		t.Errorf("level = %d, want %d", l.GetLevel(), LogLevelDebug)
	}
}

func TestLogConnectionEvent(t *testing.T) {
	l, err := NewLogger(LogLevelInfo, "")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer l.Close()

	l.LogConnectionEvent("forward-open established", "exclusive-owner", 0x55AA, 1, 0xDEADBEEF, nil)
	l.LogConnectionEvent("forward-open rejected", "input-only", 0x55AB, 1, 0xDEADBEEF, errConnRejected)
}

var errConnRejected = &testError{"ownership conflict"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

func TestLogStartup(t *testing.T) {
	l, err := NewLogger(LogLevelInfo, "")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer l.Close()
	l.LogStartup("adapter-01", "0.0.0.0", 44818, 2222, "config.yaml")
}

func TestLogHex(t *testing.T) {
	l, err := NewLogger(LogLevelDebug, "")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer l.Close()
	l.LogHex("forward-open request", []byte{0x0A, 0x05, 0x11, 0x11})
}

func TestLogHex_SkipsAtLowLevel(t *testing.T) {
	l, err := NewLogger(LogLevelError, "")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer l.Close()
	l.LogHex("should not render", []byte{0x00})
}

func TestClose_NilFile(t *testing.T) {
	l, err := NewLogger(LogLevelInfo, "")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close with no file: %v", err)
	}
}
