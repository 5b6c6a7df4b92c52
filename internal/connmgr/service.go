package connmgr

import (
	"encoding/binary"

	"github.com/tturner/cipadapter/internal/cip/ciptypes"
	"github.com/tturner/cipadapter/internal/cip/object"
	"github.com/tturner/cipadapter/internal/cip/spec"
)

// RegisterClass registers the Connection Manager object (class 0x06,
// instance 1) on registry and wires Forward-Open, Large-Forward-Open,
// Forward-Close and GetConnectionOwner to m (spec.md §4.5).
func (m *Manager) RegisterClass(registry *object.Registry) error {
	cls := object.NewClass(spec.ClassConnectionManager, 1)
	if err := registry.RegisterClass(cls); err != nil {
		return err
	}
	if _, err := cls.CreateInstance(1, nil); err != nil {
		return err
	}
	cls.RegisterService(spec.ServiceForwardOpen, m.serviceForwardOpen(false))
	cls.RegisterService(spec.ServiceLargeForwardOpen, m.serviceForwardOpen(true))
	cls.RegisterService(spec.ServiceForwardClose, m.serviceForwardClose)
	cls.RegisterService(spec.ServiceGetConnectionOwner, m.serviceGetConnectionOwner)
	return nil
}

func (m *Manager) serviceForwardOpen(large bool) object.ServiceFunc {
	return func(inst *object.Instance, request []byte, resp *ciptypes.Writer) (spec.GeneralStatus, []uint16) {
		req, err := ParseForwardOpenRequest(request, large)
		if err != nil {
			return spec.StatusPathSegmentError, nil
		}
		result := m.OpenConnection(req)
		if result.GeneralStatus != spec.StatusSuccess {
			return result.GeneralStatus, []uint16{uint16(result.ExtendedStatus)}
		}
		encodeForwardOpenSuccess(resp, result.Conn, req)
		return spec.StatusSuccess, nil
	}
}

// encodeForwardOpenSuccess writes the Forward-Open success reply body:
// O->T/T->O connection IDs, connection serial number, originator
// vendor/serial, O->T/T->O APIs, and a zero-length application reply size.
func encodeForwardOpenSuccess(resp *ciptypes.Writer, conn *Conn, req ForwardOpenRequest) {
	_ = resp.PutUint32(req.OToTConnectionID)
	_ = resp.PutUint32(req.TToOConnectionID)
	_ = resp.PutUint16(req.ConnectionSerialNumber)
	_ = resp.PutUint16(req.OriginatorVendorID)
	_ = resp.PutUint32(req.OriginatorSerialNumber)
	_ = resp.PutUint32(conn.OToTAPI)
	_ = resp.PutUint32(conn.TToOAPI)
	_ = resp.PutUint8(0) // application reply size, in words; none produced
}

func (m *Manager) serviceForwardClose(inst *object.Instance, request []byte, resp *ciptypes.Writer) (spec.GeneralStatus, []uint16) {
	const fixedLen = 1 + 1 + 2 + 2 + 4
	if len(request) < fixedLen {
		return spec.StatusPathSegmentError, nil
	}
	triad := ConnTriad{
		ConnectionSerialNumber: binary.LittleEndian.Uint16(request[2:4]),
		OriginatorVendorID:     binary.LittleEndian.Uint16(request[4:6]),
		OriginatorSerialNumber: binary.LittleEndian.Uint32(request[6:10]),
	}
	status, ext := m.CloseConnection(triad)
	if status != spec.StatusSuccess {
		return status, []uint16{uint16(ext)}
	}
	_ = resp.PutUint16(triad.ConnectionSerialNumber)
	_ = resp.PutUint16(triad.OriginatorVendorID)
	_ = resp.PutUint32(triad.OriginatorSerialNumber)
	_ = resp.PutUint8(0)
	return spec.StatusSuccess, nil
}

func (m *Manager) serviceGetConnectionOwner(inst *object.Instance, request []byte, resp *ciptypes.Writer) (spec.GeneralStatus, []uint16) {
	// GetConnectionOwner is rarely exercised; every request gets the
	// default response (Success, empty reply) and its path is not
	// examined (spec.md §4.5).
	return spec.StatusSuccess, nil
}
