package identity

import (
	"testing"

	"github.com/tturner/cipadapter/internal/cip/object"
	"github.com/tturner/cipadapter/internal/cip/spec"
)

func TestRegisterExposesAttributes(t *testing.T) {
	registry := object.NewRegistry()
	inst, err := Register(registry, Config{
		VendorID:    1,
		DeviceType:  0x0C,
		ProductCode: 42,
		SerialNumber: 0xCAFEBABE,
		ProductName: "cipadapter",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if inst.ID != 1 {
		t.Fatalf("instance id = %d, want 1", inst.ID)
	}

	attr, ok := inst.Attribute(AttrProductCode)
	if !ok {
		t.Fatal("missing product code attribute")
	}
	cls, _ := registry.GetClass(spec.ClassIdentity)
	if cls.ID != spec.ClassIdentity {
		t.Fatalf("class id = %#x, want %#x", cls.ID, spec.ClassIdentity)
	}
	_ = attr
}

func TestResetIsNoop(t *testing.T) {
	registry := object.NewRegistry()
	if _, err := Register(registry, Config{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	cls, _ := registry.GetClass(spec.ClassIdentity)
	inst, _ := cls.Instance(1)
	fn := cls.InstanceServices[spec.ServiceReset]
	status, _ := fn(inst, nil, nil)
	if status != spec.StatusSuccess {
		t.Errorf("status = %v, want Success", status)
	}
}
