// Package ethlink implements the Ethernet Link object (CIP class 0xF6,
// instance 1): interface speed/duplex and the MAC address (spec.md §4.2).
package ethlink

import (
	"net"

	"github.com/tturner/cipadapter/internal/cip/ciptypes"
	"github.com/tturner/cipadapter/internal/cip/object"
	"github.com/tturner/cipadapter/internal/cip/spec"
)

const (
	AttrInterfaceSpeed  byte = 1
	AttrInterfaceFlags  byte = 2
	AttrPhysicalAddress byte = 3
)

// Config describes the adapter's single Ethernet interface.
type Config struct {
	SpeedMbps  uint32
	FullDuplex bool
	MACAddress string // "aa:bb:cc:dd:ee:ff"
}

// Register creates class 0xF6 instance 1 on registry.
func Register(registry *object.Registry, cfg Config) (*object.Instance, error) {
	cls := object.NewClass(spec.ClassEthernetLink, 4)
	if err := registry.RegisterClass(cls); err != nil {
		return nil, err
	}
	flags := uint32(1) // link up
	if cfg.FullDuplex {
		flags |= 1 << 1
	}
	mac, _ := net.ParseMAC(cfg.MACAddress)
	attrs := map[byte]*object.Attribute{
		AttrInterfaceSpeed: {Number: AttrInterfaceSpeed, Type: ciptypes.Udint, Access: object.AccessGet,
			Get: func(w *ciptypes.Writer) error { return w.PutUint32(cfg.SpeedMbps) }},
		AttrInterfaceFlags: {Number: AttrInterfaceFlags, Type: ciptypes.Dword, Access: object.AccessGet,
			Get: func(w *ciptypes.Writer) error { return w.PutUint32(flags) }},
		AttrPhysicalAddress: {Number: AttrPhysicalAddress, Type: ciptypes.UsintArray, Access: object.AccessGet,
			Get: func(w *ciptypes.Writer) error {
				if len(mac) != 6 {
					return w.PutBytes(make([]byte, 6))
				}
				return w.PutBytes(mac)
			}},
	}
	return cls.CreateInstance(1, attrs)
}
