// Package epath encodes and decodes CIP EPATH segments: class, instance,
// attribute, connection-point, electronic-key, data, port and network
// segments, each with its own header byte and payload (spec.md §4.1).
package epath

import (
	"encoding/binary"
	"fmt"
)

// SegmentType is the 3-bit segment-type field of an EPATH segment header.
type SegmentType byte

const (
	TypePort     SegmentType = 0b000
	TypeLogical  SegmentType = 0b001
	TypeNetwork  SegmentType = 0b010
	TypeSymbolic SegmentType = 0b011
	TypeData     SegmentType = 0b100
)

// LogicalType is the logical-segment subtype (bits 2-4 of the header byte).
type LogicalType byte

const (
	LogicalClassID         LogicalType = 0x0
	LogicalInstanceID      LogicalType = 0x1
	LogicalMemberID        LogicalType = 0x2
	LogicalConnectionPoint LogicalType = 0x3
	LogicalAttributeID     LogicalType = 0x4
	LogicalElectronicKey   LogicalType = 0x5
)

// LogicalFormat is the logical-segment value width (bits 0-1).
type LogicalFormat byte

const (
	Format8  LogicalFormat = 0b00
	Format16 LogicalFormat = 0b01
	Format32 LogicalFormat = 0b10
)

// Segment is one decoded EPATH element.
type Segment struct {
	SegType  SegmentType
	Logical  LogicalType   // valid when SegType == TypeLogical
	Format   LogicalFormat // valid when SegType == TypeLogical
	Value    uint32        // class/instance/attribute/connection-point id, or port number
	Data     []byte        // electronic key payload, data-segment payload, or port link address
}

// ElectronicKey is the decoded payload of a Logical/Special electronic-key
// segment (CIP Vol 1, 2-4.5).
type ElectronicKey struct {
	VendorID       uint16
	DeviceType     uint16
	ProductCode    uint16
	RevisionMajor  byte
	RevisionMinor  byte
	Compatibility  bool // major-revision bit 0x80 set: "compatible with" rather than exact match
}

// Decode parses a contiguous run of EPATH segments out of buf. Returns an
// error (CIPster's codec returns -1 for the equivalent condition) on a
// truncated or unrecognized segment header.
func Decode(buf []byte) ([]Segment, error) {
	var segs []Segment
	for i := 0; i < len(buf); {
		header := buf[i]
		segType := SegmentType((header >> 5) & 0x07)
		i++

		switch segType {
		case TypeLogical:
			logical := LogicalType((header >> 2) & 0x07)
			format := LogicalFormat(header & 0x03)

			if logical == LogicalElectronicKey {
				if i >= len(buf) {
					return nil, fmt.Errorf("epath: truncated electronic key segment")
				}
				keyFormat := buf[i]
				i++
				if keyFormat != 0x04 {
					return nil, fmt.Errorf("epath: unsupported electronic key format 0x%02X", keyFormat)
				}
				if i+8 > len(buf) {
					return nil, fmt.Errorf("epath: truncated electronic key payload")
				}
				segs = append(segs, Segment{SegType: segType, Logical: logical, Data: append([]byte(nil), buf[i:i+8]...)})
				i += 8
				continue
			}

			n := 1
			if format == Format16 {
				n = 2
				if i < len(buf) && buf[i] == 0x00 {
					i++ // pad byte before 16/32-bit values
				}
			} else if format == Format32 {
				n = 4
				if i < len(buf) && buf[i] == 0x00 {
					i++
				}
			}
			if i+n > len(buf) {
				return nil, fmt.Errorf("epath: truncated logical segment")
			}
			var value uint32
			switch n {
			case 1:
				value = uint32(buf[i])
			case 2:
				value = uint32(binary.LittleEndian.Uint16(buf[i : i+2]))
			case 4:
				value = binary.LittleEndian.Uint32(buf[i : i+4])
			}
			i += n
			segs = append(segs, Segment{SegType: segType, Logical: logical, Format: format, Value: value})

		case TypePort:
			portNumber := uint32(header & 0x0F)
			extended := header&0x10 != 0
			if extended {
				if i+2 > len(buf) {
					return nil, fmt.Errorf("epath: truncated extended port segment")
				}
				portNumber = uint32(binary.LittleEndian.Uint16(buf[i : i+2]))
				i += 2
			}
			if i >= len(buf) {
				return nil, fmt.Errorf("epath: truncated port segment link address")
			}
			linkLen := int(buf[i])
			i++
			if i+linkLen > len(buf) {
				return nil, fmt.Errorf("epath: truncated port segment link address bytes")
			}
			link := append([]byte(nil), buf[i:i+linkLen]...)
			i += linkLen
			if linkLen%2 != 0 && i < len(buf) {
				i++ // pad byte
			}
			segs = append(segs, Segment{SegType: segType, Value: portNumber, Data: link})

		case TypeNetwork:
			if i >= len(buf) {
				return nil, fmt.Errorf("epath: truncated network segment")
			}
			n := int(header & 0x1F)
			if i+n > len(buf) {
				return nil, fmt.Errorf("epath: truncated network segment data")
			}
			segs = append(segs, Segment{SegType: segType, Data: append([]byte(nil), buf[i:i+n]...)})
			i += n

		case TypeData:
			if i >= len(buf) {
				return nil, fmt.Errorf("epath: truncated data segment")
			}
			n := int(buf[i]) * 2
			i++
			if i+n > len(buf) {
				return nil, fmt.Errorf("epath: truncated data segment payload")
			}
			segs = append(segs, Segment{SegType: segType, Data: append([]byte(nil), buf[i:i+n]...)})
			i += n

		default:
			return nil, fmt.Errorf("epath: unsupported segment type %03b", segType)
		}
	}
	return segs, nil
}

// EncodeLogical encodes one padded logical segment (class/instance/attribute/
// connection-point), choosing the narrowest format that fits value.
func EncodeLogical(logical LogicalType, value uint32) []byte {
	switch {
	case value <= 0xFF:
		return []byte{byte(TypeLogical)<<5 | byte(logical)<<2 | byte(Format8), byte(value)}
	case value <= 0xFFFF:
		b := make([]byte, 4)
		b[0] = byte(TypeLogical)<<5 | byte(logical)<<2 | byte(Format16)
		b[1] = 0x00
		binary.LittleEndian.PutUint16(b[2:], uint16(value))
		return b
	default:
		b := make([]byte, 6)
		b[0] = byte(TypeLogical)<<5 | byte(logical)<<2 | byte(Format32)
		b[1] = 0x00
		binary.LittleEndian.PutUint32(b[2:], value)
		return b
	}
}

// EncodeElectronicKey encodes a Logical/Special electronic-key segment.
func EncodeElectronicKey(k ElectronicKey) []byte {
	b := make([]byte, 2, 10)
	b[0] = byte(TypeLogical)<<5 | byte(LogicalElectronicKey)<<2
	b[1] = 0x04 // key format
	b = binary.LittleEndian.AppendUint16(b, k.VendorID)
	b = binary.LittleEndian.AppendUint16(b, k.DeviceType)
	b = binary.LittleEndian.AppendUint16(b, k.ProductCode)
	major := k.RevisionMajor
	if k.Compatibility {
		major |= 0x80
	}
	b = append(b, major, k.RevisionMinor)
	return b
}

// DecodeElectronicKey decodes the payload captured in a Segment whose
// Logical field is LogicalElectronicKey.
func DecodeElectronicKey(data []byte) (ElectronicKey, error) {
	if len(data) != 8 {
		return ElectronicKey{}, fmt.Errorf("epath: electronic key payload must be 8 bytes, got %d", len(data))
	}
	major := data[6]
	return ElectronicKey{
		VendorID:      binary.LittleEndian.Uint16(data[0:2]),
		DeviceType:    binary.LittleEndian.Uint16(data[2:4]),
		ProductCode:   binary.LittleEndian.Uint16(data[4:6]),
		RevisionMajor: major &^ 0x80,
		RevisionMinor: data[7],
		Compatibility: major&0x80 != 0,
	}, nil
}

// ClassInstanceAttribute extracts the (class, instance, attribute) triple
// addressed by segs, the common shape for a Get/Set_Attribute_Single path.
// hasAttribute is false when only class/instance were present.
func ClassInstanceAttribute(segs []Segment) (class, instance, attribute uint32, hasAttribute bool) {
	for _, s := range segs {
		if s.SegType != TypeLogical {
			continue
		}
		switch s.Logical {
		case LogicalClassID:
			class = s.Value
		case LogicalInstanceID, LogicalConnectionPoint:
			instance = s.Value
		case LogicalAttributeID:
			attribute = s.Value
			hasAttribute = true
		}
	}
	return
}
