package tcpip

import (
	"encoding/binary"
	"testing"

	"github.com/tturner/cipadapter/internal/cip/ciptypes"
	"github.com/tturner/cipadapter/internal/cip/object"
)

func TestRegisterEncodesInterfaceConfig(t *testing.T) {
	registry := object.NewRegistry()
	inst, err := Register(registry, Config{
		IPAddress:  "10.0.0.5",
		SubnetMask: "255.255.255.0",
		Gateway:    "10.0.0.1",
		HostName:   "adapter01",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	attr, ok := inst.Attribute(AttrInterfaceConfig)
	if !ok {
		t.Fatal("missing interface config attribute")
	}
	w := ciptypes.NewWriter()
	if err := attr.Get(w); err != nil {
		t.Fatalf("Get: %v", err)
	}
	body := w.Bytes()
	if len(body) != 20 {
		t.Fatalf("body length = %d, want 20", len(body))
	}
	if binary.LittleEndian.Uint32(body[0:4]) != ipToUint32("10.0.0.5") {
		t.Errorf("ip mismatch: %v", body[0:4])
	}
}

func TestIPToUint32Invalid(t *testing.T) {
	if ipToUint32("not-an-ip") != 0 {
		t.Error("expected 0 for unparseable address")
	}
}
