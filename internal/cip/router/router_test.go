package router

import (
	"encoding/binary"
	"testing"

	"github.com/tturner/cipadapter/internal/cip/ciptypes"
	"github.com/tturner/cipadapter/internal/cip/encap"
	"github.com/tturner/cipadapter/internal/cip/epath"
	"github.com/tturner/cipadapter/internal/cip/object"
	"github.com/tturner/cipadapter/internal/cip/spec"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	registry := object.NewRegistry()
	cls := object.NewClass(spec.ClassAssembly, 2)
	if err := registry.RegisterClass(cls); err != nil {
		t.Fatalf("RegisterClass: %v", err)
	}
	cls.RegisterService(spec.ServiceGetAttributeSingle, func(inst *object.Instance, req []byte, w *ciptypes.Writer) (spec.GeneralStatus, []uint16) {
		attr, _ := inst.Attribute(3)
		_ = attr.Get(w)
		return spec.StatusSuccess, nil
	})
	buf := []byte{0xAA, 0xBB}
	attrs := map[byte]*object.Attribute{
		3: {Number: 3, Type: ciptypes.UsintArray, Access: object.AccessGet,
			Get: func(w *ciptypes.Writer) error { return w.PutBytes(buf) }},
	}
	if _, err := registry.CreateInstance(spec.ClassAssembly, 150, attrs); err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	return New(registry, IdentitySummary{VendorID: 1, ProductName: "test"})
}

// TestRegisterSession covers spec.md scenario S1: a RegisterSession request
// with protocol version 1 gets a nonzero session handle echoed back.
func TestRegisterSession(t *testing.T) {
	r := newTestRouter(t)
	body := []byte{0x01, 0x00, 0x00, 0x00}
	msg := encap.Message{Header: encap.Header{Command: encap.CommandRegisterSession}, Body: body}
	reply, err := r.HandleEncapsulation(msg)
	if err != nil {
		t.Fatalf("HandleEncapsulation: %v", err)
	}
	if reply.Header.SessionHandle == 0 {
		t.Error("expected nonzero session handle")
	}
	if reply.Header.Status != encap.StatusSuccess {
		t.Errorf("status = %v, want Success", reply.Header.Status)
	}
}

func TestRegisterSessionRejectsUnsupportedProtocolVersion(t *testing.T) {
	r := newTestRouter(t)
	body := []byte{0x02, 0x00, 0x00, 0x00}
	msg := encap.Message{Header: encap.Header{Command: encap.CommandRegisterSession}, Body: body}
	reply, err := r.HandleEncapsulation(msg)
	if err != nil {
		t.Fatalf("HandleEncapsulation: %v", err)
	}
	if reply.Header.Status != encap.StatusUnsupportedProto {
		t.Errorf("status = %v, want StatusUnsupportedProto", reply.Header.Status)
	}
}

func TestNOPProducesNoReply(t *testing.T) {
	r := newTestRouter(t)
	reply, err := r.HandleEncapsulation(encap.Message{Header: encap.Header{Command: encap.CommandNOP}})
	if err != nil {
		t.Fatalf("HandleEncapsulation: %v", err)
	}
	if reply.Header.Command != 0 || reply.Body != nil {
		t.Errorf("expected zero-value reply for NOP, got %+v", reply)
	}
}

func TestSendRRDataGetAttributeSingle(t *testing.T) {
	r := newTestRouter(t)

	var path []byte
	path = append(path, epath.EncodeLogical(epath.LogicalClassID, uint32(spec.ClassAssembly))...)
	path = append(path, epath.EncodeLogical(epath.LogicalInstanceID, 150)...)
	path = append(path, epath.EncodeLogical(epath.LogicalAttributeID, 3)...)

	mrReq := []byte{spec.ServiceGetAttributeSingle, byte(len(path) / 2)}
	mrReq = append(mrReq, path...)

	cpf := encap.EncodeCPF([]encap.Item{
		{TypeID: encap.ItemNullAddress, Data: nil},
		{TypeID: encap.ItemUnconnectedData, Data: mrReq},
	})
	var body []byte
	body = append(body, 0, 0, 0, 0) // interface handle
	body = append(body, 0, 0)       // timeout
	body = append(body, cpf...)

	msg := encap.Message{Header: encap.Header{Command: encap.CommandSendRRData}, Body: body}
	reply, err := r.HandleEncapsulation(msg)
	if err != nil {
		t.Fatalf("HandleEncapsulation: %v", err)
	}
	if reply.Header.Status != encap.StatusSuccess {
		t.Fatalf("encap status = %v, want Success", reply.Header.Status)
	}

	items, err := encap.DecodeCPF(reply.Body[6:])
	if err != nil {
		t.Fatalf("DecodeCPF: %v", err)
	}
	unconn, ok := encap.FindItem(items, encap.ItemUnconnectedData)
	if !ok {
		t.Fatal("missing unconnected data item in reply")
	}
	if unconn.Data[0] != spec.ServiceGetAttributeSingle|spec.ReplyBit {
		t.Errorf("reply service = %#x, want %#x", unconn.Data[0], spec.ServiceGetAttributeSingle|spec.ReplyBit)
	}
	if spec.GeneralStatus(unconn.Data[2]) != spec.StatusSuccess {
		t.Errorf("general status = %v, want Success", spec.GeneralStatus(unconn.Data[2]))
	}
	payload := unconn.Data[4:]
	if len(payload) != 2 || payload[0] != 0xAA || payload[1] != 0xBB {
		t.Errorf("payload = %v, want [0xAA 0xBB]", payload)
	}
}

func TestSendRRDataPathDestinationUnknown(t *testing.T) {
	r := newTestRouter(t)

	var path []byte
	path = append(path, epath.EncodeLogical(epath.LogicalClassID, uint32(spec.ClassAssembly))...)
	path = append(path, epath.EncodeLogical(epath.LogicalInstanceID, 999)...)

	mrReq := []byte{spec.ServiceGetAttributeSingle, byte(len(path) / 2)}
	mrReq = append(mrReq, path...)

	cpf := encap.EncodeCPF([]encap.Item{
		{TypeID: encap.ItemNullAddress, Data: nil},
		{TypeID: encap.ItemUnconnectedData, Data: mrReq},
	})
	var body []byte
	body = append(body, 0, 0, 0, 0, 0, 0)
	body = append(body, cpf...)

	reply, err := r.HandleEncapsulation(encap.Message{Header: encap.Header{Command: encap.CommandSendRRData}, Body: body})
	if err != nil {
		t.Fatalf("HandleEncapsulation: %v", err)
	}
	items, err := encap.DecodeCPF(reply.Body[6:])
	if err != nil {
		t.Fatalf("DecodeCPF: %v", err)
	}
	unconn, _ := encap.FindItem(items, encap.ItemUnconnectedData)
	if spec.GeneralStatus(unconn.Data[2]) != spec.StatusPathDestinationUnknown {
		t.Errorf("general status = %v, want PathDestinationUnknown", spec.GeneralStatus(unconn.Data[2]))
	}
}

// TestGenericGetAttributeSingleFallsBackToAttributeMap covers a class (like
// Identity) that registers no explicit Get_Attribute_Single handler and
// relies on the router to answer straight from the instance's attributes.
func TestGenericGetAttributeSingleFallsBackToAttributeMap(t *testing.T) {
	registry := object.NewRegistry()
	cls := object.NewClass(0x01, 1)
	if err := registry.RegisterClass(cls); err != nil {
		t.Fatalf("RegisterClass: %v", err)
	}
	attrs := map[byte]*object.Attribute{
		7: {Number: 7, Type: ciptypes.Uint, Access: object.AccessGet,
			Get: func(w *ciptypes.Writer) error { return w.PutUint16(0x2A) }},
	}
	if _, err := registry.CreateInstance(0x01, 1, attrs); err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	r := New(registry, IdentitySummary{})

	var path []byte
	path = append(path, epath.EncodeLogical(epath.LogicalClassID, 0x01)...)
	path = append(path, epath.EncodeLogical(epath.LogicalInstanceID, 1)...)
	path = append(path, epath.EncodeLogical(epath.LogicalAttributeID, 7)...)
	mrReq := []byte{spec.ServiceGetAttributeSingle, byte(len(path) / 2)}
	mrReq = append(mrReq, path...)

	respData := r.dispatch(mrReq)
	if spec.GeneralStatus(respData[2]) != spec.StatusSuccess {
		t.Fatalf("status = %v, want Success", spec.GeneralStatus(respData[2]))
	}
	if binary.LittleEndian.Uint16(respData[4:6]) != 0x2A {
		t.Errorf("payload = %#x, want 0x2A", binary.LittleEndian.Uint16(respData[4:6]))
	}
}

func TestMessageRouterResponseEncoding(t *testing.T) {
	resp := Response{Service: 0x8E, GeneralStatus: spec.StatusSuccess, ExtendedStatus: []uint16{0x0100}, Data: []byte{1, 2}}
	encoded := EncodeResponse(resp)
	if encoded[0] != 0x8E || encoded[2] != 0x00 || encoded[3] != 1 {
		t.Fatalf("unexpected header bytes: %v", encoded[:4])
	}
	if binary.LittleEndian.Uint16(encoded[4:6]) != 0x0100 {
		t.Errorf("extended status = %#x, want 0x0100", binary.LittleEndian.Uint16(encoded[4:6]))
	}
	if encoded[6] != 1 || encoded[7] != 2 {
		t.Errorf("data = %v, want [1 2]", encoded[6:8])
	}
}
