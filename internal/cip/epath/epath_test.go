package epath

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeLogicalRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		logical LogicalType
		value   uint32
	}{
		{"class 8-bit", LogicalClassID, 0x04},
		{"instance 8-bit", LogicalInstanceID, 0x01},
		{"attribute 16-bit", LogicalAttributeID, 0x1234},
		{"connection point 32-bit", LogicalConnectionPoint, 0x00123456},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := EncodeLogical(tt.logical, tt.value)
			segs, err := Decode(buf)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if len(segs) != 1 {
				t.Fatalf("got %d segments, want 1", len(segs))
			}
			if segs[0].Logical != tt.logical || segs[0].Value != tt.value {
				t.Errorf("got {%v %v}, want {%v %v}", segs[0].Logical, segs[0].Value, tt.logical, tt.value)
			}
		})
	}
}

func TestDecodeClassInstanceAttributePath(t *testing.T) {
	var buf []byte
	buf = append(buf, EncodeLogical(LogicalClassID, 0x04)...)
	buf = append(buf, EncodeLogical(LogicalInstanceID, 1)...)
	buf = append(buf, EncodeLogical(LogicalAttributeID, 3)...)

	segs, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	class, instance, attribute, hasAttr := ClassInstanceAttribute(segs)
	if class != 4 || instance != 1 || attribute != 3 || !hasAttr {
		t.Errorf("got class=%d instance=%d attribute=%d hasAttr=%v", class, instance, attribute, hasAttr)
	}
}

func TestElectronicKeyRoundTrip(t *testing.T) {
	want := ElectronicKey{
		VendorID:      0x1234,
		DeviceType:    0x0C,
		ProductCode:   0x0001,
		RevisionMajor: 1,
		RevisionMinor: 2,
		Compatibility: true,
	}
	buf := EncodeElectronicKey(want)
	segs, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(segs) != 1 || segs[0].Logical != LogicalElectronicKey {
		t.Fatalf("expected single electronic key segment, got %+v", segs)
	}
	got, err := DecodeElectronicKey(segs[0].Data)
	if err != nil {
		t.Fatalf("DecodeElectronicKey: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestDecodePortSegment(t *testing.T) {
	buf := []byte{byte(TypePort)<<5 | 1, 1, 0x02}
	segs, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(segs) != 1 || segs[0].Value != 1 || !bytes.Equal(segs[0].Data, []byte{0x02}) {
		t.Errorf("got %+v", segs[0])
	}
}

func TestDecodeTruncatedSegmentErrors(t *testing.T) {
	buf := []byte{byte(TypeLogical)<<5 | byte(LogicalClassID)<<2 | byte(Format16)}
	if _, err := Decode(buf); err == nil {
		t.Error("expected error for truncated 16-bit logical segment")
	}
}

func TestDecodeMultiSegmentForwardOpenPath(t *testing.T) {
	var buf []byte
	buf = append(buf, EncodeElectronicKey(ElectronicKey{VendorID: 1, DeviceType: 1, ProductCode: 1, RevisionMajor: 1, RevisionMinor: 1})...)
	buf = append(buf, EncodeLogical(LogicalClassID, 4)...)
	buf = append(buf, EncodeLogical(LogicalInstanceID, 100)...)

	segs, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3", len(segs))
	}
	if segs[0].Logical != LogicalElectronicKey {
		t.Errorf("segment 0 = %v, want electronic key", segs[0].Logical)
	}
}
