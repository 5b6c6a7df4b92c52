package main

import (
	"testing"

	"github.com/tturner/cipadapter/internal/config"
	"github.com/tturner/cipadapter/internal/logging"
	"github.com/tturner/cipadapter/internal/stack"
)

func TestNoopApplicationSatisfiesApplicationCallbacks(t *testing.T) {
	var _ stack.ApplicationCallbacks = noopApplication{}
}

func TestListClassesRegistersStandardClasses(t *testing.T) {
	cfg := config.CreateDefaultConfig()
	logger, err := logging.NewLogger(logging.LogLevelSilent, "")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer logger.Close()

	s, err := stack.New(cfg, noopApplication{}, logger)
	if err != nil {
		t.Fatalf("stack.New: %v", err)
	}

	ids := s.Registry.SortedClassIDs()
	want := map[uint16]bool{0x01: false, 0x02: false, 0x04: false, 0x06: false, 0xF5: false, 0xF6: false}
	for _, id := range ids {
		if _, ok := want[id]; ok {
			want[id] = true
		}
	}
	for id, found := range want {
		if !found {
			t.Errorf("expected class %#04x to be registered", id)
		}
	}
}
