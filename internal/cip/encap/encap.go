// Package encap implements the EtherNet/IP encapsulation header and Common
// Packet Format items that wrap every CIP message on the wire (spec.md §4.4,
// §6). All multi-byte fields are little-endian.
package encap

import (
	"encoding/binary"
	"fmt"
)

// Command identifies an encapsulation command.
type Command uint16

const (
	CommandNOP              Command = 0x0000
	CommandListServices     Command = 0x0004
	CommandListIdentity     Command = 0x0063
	CommandListInterfaces   Command = 0x0064
	CommandRegisterSession  Command = 0x0065
	CommandUnRegisterSession Command = 0x0066
	CommandSendRRData       Command = 0x006F
	CommandSendUnitData     Command = 0x0070
)

// Status is an encapsulation-level status code, distinct from the CIP
// general status carried inside the message-router reply.
type Status uint32

const (
	StatusSuccess          Status = 0x0000
	StatusInvalidCommand   Status = 0x0001
	StatusInsufficientMem  Status = 0x0002
	StatusIncorrectData    Status = 0x0003
	StatusInvalidSession   Status = 0x0064
	StatusInvalidLength    Status = 0x0065
	StatusUnsupportedProto Status = 0x0069
)

const HeaderLen = 24

// Header is the 24-byte EtherNet/IP encapsulation header.
type Header struct {
	Command       Command
	Length        uint16 // length of the body that follows, not including this header
	SessionHandle uint32
	Status        Status
	SenderContext [8]byte
	Options       uint32
}

// Message is a decoded encapsulation frame: header plus body bytes.
type Message struct {
	Header Header
	Body   []byte
}

// Encode serialises msg, recomputing Header.Length from len(Body).
func Encode(msg Message) []byte {
	buf := make([]byte, HeaderLen, HeaderLen+len(msg.Body))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(msg.Header.Command))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(msg.Body)))
	binary.LittleEndian.PutUint32(buf[4:8], msg.Header.SessionHandle)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(msg.Header.Status))
	copy(buf[12:20], msg.Header.SenderContext[:])
	binary.LittleEndian.PutUint32(buf[20:24], msg.Header.Options)
	return append(buf, msg.Body...)
}

// Decode parses a complete encapsulation frame (header plus body) out of
// data. It does not require data to contain exactly one frame; callers that
// read from a stream use Header.Length to split multiple frames.
func Decode(data []byte) (Message, error) {
	if len(data) < HeaderLen {
		return Message{}, fmt.Errorf("encap: frame too short: %d bytes (minimum %d)", len(data), HeaderLen)
	}
	var h Header
	h.Command = Command(binary.LittleEndian.Uint16(data[0:2]))
	h.Length = binary.LittleEndian.Uint16(data[2:4])
	h.SessionHandle = binary.LittleEndian.Uint32(data[4:8])
	h.Status = Status(binary.LittleEndian.Uint32(data[8:12]))
	copy(h.SenderContext[:], data[12:20])
	h.Options = binary.LittleEndian.Uint32(data[20:24])

	if len(data) < HeaderLen+int(h.Length) {
		return Message{}, fmt.Errorf("encap: truncated body: have %d bytes, want %d", len(data)-HeaderLen, h.Length)
	}
	body := data[HeaderLen : HeaderLen+int(h.Length)]
	return Message{Header: h, Body: body}, nil
}

// CPF item type_ids (spec.md §6).
const (
	ItemNullAddress        uint16 = 0x0000
	ItemConnectedAddress    uint16 = 0x00A1
	ItemConnectedData       uint16 = 0x00B1
	ItemUnconnectedData     uint16 = 0x00B2
	ItemSockaddrInfoOtoT    uint16 = 0x8000
	ItemSockaddrInfoTtoO    uint16 = 0x8001
)

// Item is one Common Packet Format TLV.
type Item struct {
	TypeID uint16
	Data   []byte
}

// DecodeCPF parses a Common Packet Format item list: uint16 item_count
// followed by that many (type_id, length, bytes) items.
func DecodeCPF(body []byte) ([]Item, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("encap: CPF body too short for item count")
	}
	count := binary.LittleEndian.Uint16(body[0:2])
	pos := 2
	items := make([]Item, 0, count)
	for i := uint16(0); i < count; i++ {
		if pos+4 > len(body) {
			return nil, fmt.Errorf("encap: truncated CPF item header at index %d", i)
		}
		typeID := binary.LittleEndian.Uint16(body[pos : pos+2])
		length := binary.LittleEndian.Uint16(body[pos+2 : pos+4])
		pos += 4
		if pos+int(length) > len(body) {
			return nil, fmt.Errorf("encap: truncated CPF item data at index %d", i)
		}
		items = append(items, Item{TypeID: typeID, Data: body[pos : pos+int(length)]})
		pos += int(length)
	}
	return items, nil
}

// EncodeCPF serialises an item list back into a CPF body.
func EncodeCPF(items []Item) []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, uint16(len(items)))
	for _, it := range items {
		header := make([]byte, 4)
		binary.LittleEndian.PutUint16(header[0:2], it.TypeID)
		binary.LittleEndian.PutUint16(header[2:4], uint16(len(it.Data)))
		buf = append(buf, header...)
		buf = append(buf, it.Data...)
	}
	return buf
}

// ConnectedAddress returns the 32-bit connection ID carried in a
// Connected-Address CPF item's data.
func ConnectedAddress(data []byte) (uint32, error) {
	if len(data) != 4 {
		return 0, fmt.Errorf("encap: connected-address item must be 4 bytes, got %d", len(data))
	}
	return binary.LittleEndian.Uint32(data), nil
}

// EncodeConnectedAddress builds a Connected-Address CPF item payload.
func EncodeConnectedAddress(connID uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, connID)
	return b
}

// FindItem returns the first item in items whose TypeID matches typeID.
func FindItem(items []Item, typeID uint16) (Item, bool) {
	for _, it := range items {
		if it.TypeID == typeID {
			return it, true
		}
	}
	return Item{}, false
}
