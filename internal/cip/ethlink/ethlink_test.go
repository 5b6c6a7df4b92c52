package ethlink

import (
	"testing"

	"github.com/tturner/cipadapter/internal/cip/ciptypes"
	"github.com/tturner/cipadapter/internal/cip/object"
)

func TestRegisterEncodesPhysicalAddress(t *testing.T) {
	registry := object.NewRegistry()
	inst, err := Register(registry, Config{SpeedMbps: 100, FullDuplex: true, MACAddress: "aa:bb:cc:dd:ee:ff"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	attr, ok := inst.Attribute(AttrPhysicalAddress)
	if !ok {
		t.Fatal("missing physical address attribute")
	}
	w := ciptypes.NewWriter()
	if err := attr.Get(w); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(w.Bytes()) != 6 {
		t.Fatalf("mac length = %d, want 6", len(w.Bytes()))
	}
}

func TestRegisterHandlesMissingMAC(t *testing.T) {
	registry := object.NewRegistry()
	inst, err := Register(registry, Config{SpeedMbps: 10})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	attr, _ := inst.Attribute(AttrPhysicalAddress)
	w := ciptypes.NewWriter()
	if err := attr.Get(w); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(w.Bytes()) != 6 {
		t.Fatalf("mac length = %d, want 6 zero bytes", len(w.Bytes()))
	}
}
