package connmgr

import (
	"encoding/binary"
	"fmt"

	"github.com/tturner/cipadapter/internal/cip/epath"
)

// ForwardOpenRequest is the decoded Forward-Open (0x54) / Large-Forward-Open
// (0x5B) service request (spec.md §4.5).
type ForwardOpenRequest struct {
	Priority                    byte
	TimeoutTicks                byte
	OToTConnectionID            uint32 // picked by the originator
	TToOConnectionID            uint32
	ConnectionSerialNumber      uint16
	OriginatorVendorID          uint16
	OriginatorSerialNumber      uint32
	ConnectionTimeoutMultiplier byte
	OToTRPI                     uint32
	OToTNCP                     NetworkConnectionParams
	TToORPI                     uint32
	TToONCP                     NetworkConnectionParams
	TransportClassTrigger       byte
	Segments                    []epath.Segment
	ConfigData                  []byte // data segment payload following the config path, if any
}

// ElectronicKeyOf returns the request's electronic key segment, if the
// connection path carried one.
func (r ForwardOpenRequest) ElectronicKeyOf() (epath.ElectronicKey, bool) {
	for _, s := range r.Segments {
		if s.SegType == epath.TypeLogical && s.Logical == epath.LogicalElectronicKey {
			key, err := epath.DecodeElectronicKey(s.Data)
			if err != nil {
				return epath.ElectronicKey{}, false
			}
			return key, true
		}
	}
	return epath.ElectronicKey{}, false
}

// ConnPathOf extracts the ConnPath (consuming/producing/config points)
// carried in the connection path's logical segments. CIP convention lists
// config, then consuming (O->T), then producing (T->O) logical segments in
// that order; this walks all logical segments in sequence and assigns them
// positionally among the (up to three) non-key, non-data segments.
func (r ForwardOpenRequest) ConnPathOf() ConnPath {
	var points []int32
	for _, s := range r.Segments {
		if s.SegType != epath.TypeLogical {
			continue
		}
		if s.Logical == epath.LogicalElectronicKey {
			continue
		}
		points = append(points, int32(s.Value))
	}
	var cp ConnPath
	cp.ConfigPoint = -1
	switch len(points) {
	case 2:
		cp.ConsumingPoint = points[0]
		cp.ProducingPoint = points[1]
	case 3:
		cp.ConfigPoint = points[0]
		cp.HasConfig = true
		cp.ConsumingPoint = points[1]
		cp.ProducingPoint = points[2]
	}
	return cp
}

// ParseForwardOpenRequest decodes a Forward-Open service request. large
// selects the Large-Forward-Open (0x5B) wire shape, whose O->T/T->O NCP
// fields are 32-bit instead of 16-bit; the connection serial number is
// always 16-bit and the originator serial number always 32-bit, in both
// variants.
func ParseForwardOpenRequest(data []byte, large bool) (ForwardOpenRequest, error) {
	const fixedLen = 1 + 1 + 4 + 4 + 2 + 2 + 4 + 1 + 3 + 4
	if len(data) < fixedLen {
		return ForwardOpenRequest{}, fmt.Errorf("connmgr: forward-open request too short: %d bytes", len(data))
	}
	var req ForwardOpenRequest
	pos := 0
	req.Priority = data[pos]
	pos++
	req.TimeoutTicks = data[pos]
	pos++
	req.OToTConnectionID = binary.LittleEndian.Uint32(data[pos:])
	pos += 4
	req.TToOConnectionID = binary.LittleEndian.Uint32(data[pos:])
	pos += 4
	req.ConnectionSerialNumber = binary.LittleEndian.Uint16(data[pos:])
	pos += 2
	req.OriginatorVendorID = binary.LittleEndian.Uint16(data[pos:])
	pos += 2
	req.OriginatorSerialNumber = binary.LittleEndian.Uint32(data[pos:])
	pos += 4
	req.ConnectionTimeoutMultiplier = data[pos]
	pos++
	pos += 3 // reserved

	req.OToTRPI = binary.LittleEndian.Uint32(data[pos:])
	pos += 4

	ncpWidth := 2
	if large {
		ncpWidth = 4
	}
	if len(data) < pos+ncpWidth {
		return ForwardOpenRequest{}, fmt.Errorf("connmgr: truncated O->T NCP")
	}
	if large {
		req.OToTNCP = DecodeNCP32(binary.LittleEndian.Uint32(data[pos:]))
	} else {
		req.OToTNCP = DecodeNCP16(binary.LittleEndian.Uint16(data[pos:]))
	}
	pos += ncpWidth

	if len(data) < pos+4+ncpWidth {
		return ForwardOpenRequest{}, fmt.Errorf("connmgr: truncated T->O fields")
	}
	req.TToORPI = binary.LittleEndian.Uint32(data[pos:])
	pos += 4
	if large {
		req.TToONCP = DecodeNCP32(binary.LittleEndian.Uint32(data[pos:]))
	} else {
		req.TToONCP = DecodeNCP16(binary.LittleEndian.Uint16(data[pos:]))
	}
	pos += ncpWidth

	if len(data) < pos+2 {
		return ForwardOpenRequest{}, fmt.Errorf("connmgr: truncated transport/path-size fields")
	}
	req.TransportClassTrigger = data[pos]
	pos++
	pathWords := int(data[pos])
	pos++
	pathLen := pathWords * 2
	if len(data) < pos+pathLen {
		return ForwardOpenRequest{}, fmt.Errorf("connmgr: truncated connection path")
	}
	segs, err := epath.Decode(data[pos : pos+pathLen])
	if err != nil {
		return ForwardOpenRequest{}, fmt.Errorf("connmgr: connection path: %w", err)
	}
	req.Segments = segs
	pos += pathLen

	for _, s := range segs {
		if s.SegType == epath.TypeData {
			req.ConfigData = s.Data
		}
	}

	return req, nil
}
