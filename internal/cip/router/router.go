// Package router implements the explicit message router: it decodes an
// encapsulation frame's Common Packet Format items, extracts the Message
// Router Request, resolves the addressed object through the registry, and
// formats the Message Router Response (spec.md §4.4).
package router

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/tturner/cipadapter/internal/cip/ciptypes"
	"github.com/tturner/cipadapter/internal/cip/encap"
	"github.com/tturner/cipadapter/internal/cip/epath"
	"github.com/tturner/cipadapter/internal/cip/object"
	"github.com/tturner/cipadapter/internal/cip/spec"
)

// Request is a decoded Message Router Request: service code, request path,
// and request data (the bytes following the path).
type Request struct {
	Service byte
	Path    []epath.Segment
	Data    []byte
}

// Response is a Message Router Response ready for wire encoding.
type Response struct {
	Service         byte // reply service: request service | spec.ReplyBit
	GeneralStatus   spec.GeneralStatus
	ExtendedStatus  []uint16
	Data            []byte
}

// DecodeRequest parses a Message Router Request body: service byte,
// request-path-size (16-bit words), request path, then request data.
func DecodeRequest(body []byte) (Request, error) {
	if len(body) < 2 {
		return Request{}, fmt.Errorf("router: message router request too short")
	}
	service := body[0]
	pathWords := int(body[1])
	pathLen := pathWords * 2
	if len(body) < 2+pathLen {
		return Request{}, fmt.Errorf("router: truncated request path")
	}
	segs, err := epath.Decode(body[2 : 2+pathLen])
	if err != nil {
		return Request{}, fmt.Errorf("router: %w", err)
	}
	return Request{Service: service, Path: segs, Data: body[2+pathLen:]}, nil
}

// EncodeResponse serialises a Message Router Response: reply service,
// reserved byte, general status, additional-status size (words), additional
// status words, response data.
func EncodeResponse(resp Response) []byte {
	buf := make([]byte, 4, 4+2*len(resp.ExtendedStatus)+len(resp.Data))
	buf[0] = resp.Service
	buf[1] = 0x00
	buf[2] = byte(resp.GeneralStatus)
	buf[3] = byte(len(resp.ExtendedStatus))
	for _, ext := range resp.ExtendedStatus {
		var w [2]byte
		binary.LittleEndian.PutUint16(w[:], ext)
		buf = append(buf, w[:]...)
	}
	buf = append(buf, resp.Data...)
	return buf
}

// Session tracks one registered encapsulation session (TCP connection with
// a RegisterSession handshake completed).
type Session struct {
	Handle uint32
}

// Router dispatches encapsulation commands and, for SendRRData/SendUnitData,
// Message Router Requests against a CipClass/CipInstance registry.
type Router struct {
	Registry  *object.Registry
	nextSession uint32
	sessions  map[uint32]*Session
	identity  IdentitySummary
}

// IdentitySummary is the subset of the Identity object's attributes the
// router needs to answer ListIdentity without depending on the Identity
// object's full attribute table (which lives in internal/cip/identity).
type IdentitySummary struct {
	VendorID       uint16
	DeviceType     uint16
	ProductCode    uint16
	RevisionMajor  byte
	RevisionMinor  byte
	Status         uint16
	SerialNumber   uint32
	ProductName    string
}

// New returns a Router bound to registry, answering ListIdentity with id.
func New(registry *object.Registry, id IdentitySummary) *Router {
	return &Router{
		Registry:    registry,
		nextSession: 1,
		sessions:    make(map[uint32]*Session),
		identity:    id,
	}
}

// HandleEncapsulation processes one complete encapsulation frame and
// returns the reply frame to send back, or an error if the frame was
// malformed beyond what an encapsulation-status reply can express.
func (r *Router) HandleEncapsulation(msg encap.Message) (encap.Message, error) {
	reply := encap.Message{Header: msg.Header}
	switch msg.Header.Command {
	case encap.CommandNOP:
		return encap.Message{}, nil // NOP is discarded; no reply is sent

	case encap.CommandListServices:
		reply.Body = r.listServicesBody()

	case encap.CommandListIdentity:
		reply.Body = r.listIdentityBody()

	case encap.CommandListInterfaces:
		reply.Body = encap.EncodeCPF(nil)

	case encap.CommandRegisterSession:
		if len(msg.Body) < 4 || binary.LittleEndian.Uint16(msg.Body[0:2]) != 1 {
			reply.Header.Status = encap.StatusUnsupportedProto
			return reply, nil
		}
		handle := atomic.AddUint32(&r.nextSession, 1)
		r.sessions[handle] = &Session{Handle: handle}
		reply.Header.SessionHandle = handle
		reply.Body = msg.Body

	case encap.CommandUnRegisterSession:
		delete(r.sessions, msg.Header.SessionHandle)
		return encap.Message{}, nil

	case encap.CommandSendRRData:
		body, status := r.handleSendRRData(msg.Body)
		reply.Body = body
		reply.Header.Status = status

	case encap.CommandSendUnitData:
		body, status := r.handleSendUnitData(msg.Body)
		reply.Body = body
		reply.Header.Status = status

	default:
		reply.Header.Status = encap.StatusInvalidCommand
	}
	return reply, nil
}

func (r *Router) handleSendRRData(body []byte) ([]byte, encap.Status) {
	if len(body) < 6 {
		return nil, encap.StatusIncorrectData
	}
	cpfBody := body[6:]
	items, err := encap.DecodeCPF(cpfBody)
	if err != nil {
		return nil, encap.StatusIncorrectData
	}
	unconn, ok := encap.FindItem(items, encap.ItemUnconnectedData)
	if !ok {
		return nil, encap.StatusIncorrectData
	}
	respData := r.dispatch(unconn.Data)
	replyItems := []encap.Item{
		{TypeID: encap.ItemNullAddress, Data: nil},
		{TypeID: encap.ItemUnconnectedData, Data: respData},
	}
	var out []byte
	out = append(out, body[0:6]...)
	out = append(out, encap.EncodeCPF(replyItems)...)
	return out, encap.StatusSuccess
}

func (r *Router) handleSendUnitData(body []byte) ([]byte, encap.Status) {
	if len(body) < 6 {
		return nil, encap.StatusIncorrectData
	}
	cpfBody := body[6:]
	items, err := encap.DecodeCPF(cpfBody)
	if err != nil {
		return nil, encap.StatusIncorrectData
	}
	conn, ok := encap.FindItem(items, encap.ItemConnectedData)
	if !ok {
		return nil, encap.StatusIncorrectData
	}
	respData := r.dispatch(conn.Data)
	addrItem, hasAddr := encap.FindItem(items, encap.ItemConnectedAddress)
	var replyItems []encap.Item
	if hasAddr {
		replyItems = append(replyItems, encap.Item{TypeID: encap.ItemConnectedAddress, Data: addrItem.Data})
	} else {
		replyItems = append(replyItems, encap.Item{TypeID: encap.ItemNullAddress, Data: nil})
	}
	replyItems = append(replyItems, encap.Item{TypeID: encap.ItemConnectedData, Data: respData})
	var out []byte
	out = append(out, body[0:6]...)
	out = append(out, encap.EncodeCPF(replyItems)...)
	return out, encap.StatusSuccess
}

// dispatch decodes a Message Router Request and invokes the matching
// service, returning the encoded Message Router Response.
func (r *Router) dispatch(data []byte) []byte {
	req, err := DecodeRequest(data)
	if err != nil {
		return EncodeResponse(Response{Service: 0, GeneralStatus: spec.StatusPathSegmentError})
	}
	replyService := req.Service | spec.ReplyBit

	classID, instanceID, attribute, hasAttribute := epath.ClassInstanceAttribute(req.Path)
	cls, ok := r.Registry.GetClass(uint16(classID))
	if !ok {
		return EncodeResponse(Response{Service: replyService, GeneralStatus: spec.StatusPathDestinationUnknown})
	}
	inst, ok := cls.Instance(uint16(instanceID))
	if !ok {
		return EncodeResponse(Response{Service: replyService, GeneralStatus: spec.StatusPathDestinationUnknown})
	}
	fn, ok := cls.InstanceServices[req.Service]
	if !ok && hasAttribute {
		// Classes with several attributes (Identity, TCP/IP Interface,
		// Ethernet Link) don't each need their own Get/Set_Attribute_Single
		// handler; the router answers generically from the attribute the
		// path already resolved.
		switch req.Service {
		case spec.ServiceGetAttributeSingle:
			return EncodeResponse(genericGetAttributeSingle(inst, byte(attribute), replyService))
		case spec.ServiceSetAttributeSingle:
			return EncodeResponse(genericSetAttributeSingle(inst, byte(attribute), req.Data, replyService))
		}
	}
	if !ok {
		return EncodeResponse(Response{Service: replyService, GeneralStatus: spec.StatusServiceNotSupported})
	}
	w := ciptypes.NewWriter()
	status, extStatus := fn(inst, req.Data, w)
	return EncodeResponse(Response{Service: replyService, GeneralStatus: status, ExtendedStatus: extStatus, Data: w.Bytes()})
}

func genericGetAttributeSingle(inst *object.Instance, attribute byte, replyService byte) Response {
	attr, ok := inst.Attribute(attribute)
	if !ok || !attr.Access.Readable() {
		return Response{Service: replyService, GeneralStatus: spec.StatusAttributeNotSupported}
	}
	w := ciptypes.NewWriter()
	if err := attr.Get(w); err != nil {
		return Response{Service: replyService, GeneralStatus: spec.StatusDeviceStateConflict}
	}
	return Response{Service: replyService, GeneralStatus: spec.StatusSuccess, Data: w.Bytes()}
}

func genericSetAttributeSingle(inst *object.Instance, attribute byte, data []byte, replyService byte) Response {
	attr, ok := inst.Attribute(attribute)
	if !ok {
		return Response{Service: replyService, GeneralStatus: spec.StatusAttributeNotSupported}
	}
	if !attr.Access.Writable() {
		return Response{Service: replyService, GeneralStatus: spec.StatusAttributeNotSettable}
	}
	if err := attr.Set(ciptypes.NewReader(data)); err != nil {
		return Response{Service: replyService, GeneralStatus: spec.StatusInvalidAttributeValue}
	}
	return Response{Service: replyService, GeneralStatus: spec.StatusSuccess}
}

func (r *Router) listServicesBody() []byte {
	items := []encap.Item{{TypeID: 0x0100, Data: []byte{0x01, 0x00, 0x20, 0x00}}}
	return encap.EncodeCPF(items)
}

func (r *Router) listIdentityBody() []byte {
	item := make([]byte, 0, 32)
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], r.identity.VendorID)
	item = append(item, buf[:]...)
	binary.LittleEndian.PutUint16(buf[:], r.identity.DeviceType)
	item = append(item, buf[:]...)
	binary.LittleEndian.PutUint16(buf[:], r.identity.ProductCode)
	item = append(item, buf[:]...)
	item = append(item, r.identity.RevisionMajor, r.identity.RevisionMinor)
	binary.LittleEndian.PutUint16(buf[:], r.identity.Status)
	item = append(item, buf[:]...)
	var snBuf [4]byte
	binary.LittleEndian.PutUint32(snBuf[:], r.identity.SerialNumber)
	item = append(item, snBuf[:]...)
	item = append(item, byte(len(r.identity.ProductName)))
	item = append(item, []byte(r.identity.ProductName)...)
	return encap.EncodeCPF([]encap.Item{{TypeID: 0x0C, Data: item}})
}
