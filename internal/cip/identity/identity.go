// Package identity implements the Identity object (CIP class 0x01,
// instance 1): the vendor id, device type, product code, revision, status,
// serial number, and product name a scanner reads via ListIdentity or an
// explicit Get_Attribute_Single (spec.md §4.2).
package identity

import (
	"github.com/tturner/cipadapter/internal/cip/ciptypes"
	"github.com/tturner/cipadapter/internal/cip/object"
	"github.com/tturner/cipadapter/internal/cip/spec"
)

// Attribute numbers defined by CIP Vol 1 for the Identity object.
const (
	AttrVendorID      byte = 1
	AttrDeviceType    byte = 2
	AttrProductCode   byte = 3
	AttrRevision      byte = 4
	AttrStatus        byte = 5
	AttrSerialNumber  byte = 6
	AttrProductName   byte = 7
)

// Config is the Identity object's fixed attribute values, supplied once at
// boot from internal/config.
type Config struct {
	VendorID      uint16
	DeviceType    uint16
	ProductCode   uint16
	RevisionMajor byte
	RevisionMinor byte
	Status        uint16
	SerialNumber  uint32
	ProductName   string
}

// Register creates class 0x01 instance 1 on registry with cfg's values.
// Status is taken from cfg.Status once and reported unchanged afterwards.
func Register(registry *object.Registry, cfg Config) (*object.Instance, error) {
	cls := object.NewClass(spec.ClassIdentity, 1)
	if err := registry.RegisterClass(cls); err != nil {
		return nil, err
	}
	status := cfg.Status
	attrs := map[byte]*object.Attribute{
		AttrVendorID: {Number: AttrVendorID, Type: ciptypes.Uint, Access: object.AccessGet,
			Get: func(w *ciptypes.Writer) error { return w.PutUint16(cfg.VendorID) }},
		AttrDeviceType: {Number: AttrDeviceType, Type: ciptypes.Uint, Access: object.AccessGet,
			Get: func(w *ciptypes.Writer) error { return w.PutUint16(cfg.DeviceType) }},
		AttrProductCode: {Number: AttrProductCode, Type: ciptypes.Uint, Access: object.AccessGet,
			Get: func(w *ciptypes.Writer) error { return w.PutUint16(cfg.ProductCode) }},
		AttrRevision: {Number: AttrRevision, Type: ciptypes.UsintArray, Access: object.AccessGet,
			Get: func(w *ciptypes.Writer) error {
				if err := w.PutUint8(cfg.RevisionMajor); err != nil {
					return err
				}
				return w.PutUint8(cfg.RevisionMinor)
			}},
		AttrStatus: {Number: AttrStatus, Type: ciptypes.Uint, Access: object.AccessGet,
			Get: func(w *ciptypes.Writer) error { return w.PutUint16(status) }},
		AttrSerialNumber: {Number: AttrSerialNumber, Type: ciptypes.Udint, Access: object.AccessGet,
			Get: func(w *ciptypes.Writer) error { return w.PutUint32(cfg.SerialNumber) }},
		AttrProductName: {Number: AttrProductName, Type: ciptypes.ShortString, Access: object.AccessGet,
			Get: func(w *ciptypes.Writer) error { return w.PutShortString(cfg.ProductName) }},
	}
	inst, err := cls.CreateInstance(1, attrs)
	if err != nil {
		return nil, err
	}
	// Get_Attribute_Single/Set_Attribute_Single are answered generically by
	// the router from this instance's Attributes map; only Reset needs a
	// handler of its own here.
	cls.RegisterService(spec.ServiceReset, serviceReset)
	return inst, nil
}

// serviceReset is a no-op acknowledgement; the adapter has no persistent
// state to reset (spec §1 Non-goals: no persistent config storage).
func serviceReset(inst *object.Instance, request []byte, resp *ciptypes.Writer) (spec.GeneralStatus, []uint16) {
	return spec.StatusSuccess, nil
}
