// Package tcpip implements the TCP/IP Interface object (CIP class 0xF5,
// instance 1): the subset of attributes a scanner reads to learn the
// adapter's configured IP address (spec.md §4.2).
package tcpip

import (
	"encoding/binary"
	"net"

	"github.com/tturner/cipadapter/internal/cip/ciptypes"
	"github.com/tturner/cipadapter/internal/cip/object"
	"github.com/tturner/cipadapter/internal/cip/spec"
)

const (
	AttrInterfaceConfig byte = 5 // IP address, subnet mask, gateway, two name servers
	AttrHostName        byte = 6
)

// Config is the adapter's static IP configuration.
type Config struct {
	IPAddress   string
	SubnetMask  string
	Gateway     string
	HostName    string
}

// Register creates class 0xF5 instance 1 on registry.
func Register(registry *object.Registry, cfg Config) (*object.Instance, error) {
	cls := object.NewClass(spec.ClassTCPIPInterface, 3)
	if err := registry.RegisterClass(cls); err != nil {
		return nil, err
	}
	attrs := map[byte]*object.Attribute{
		AttrInterfaceConfig: {Number: AttrInterfaceConfig, Type: ciptypes.UsintArray, Access: object.AccessGet,
			Get: func(w *ciptypes.Writer) error { return encodeInterfaceConfig(w, cfg) }},
		AttrHostName: {Number: AttrHostName, Type: ciptypes.String, Access: object.AccessGet,
			Get: func(w *ciptypes.Writer) error { return w.PutString(cfg.HostName) }},
	}
	return cls.CreateInstance(1, attrs)
}

func encodeInterfaceConfig(w *ciptypes.Writer, cfg Config) error {
	for _, addr := range []string{cfg.IPAddress, cfg.SubnetMask, cfg.Gateway} {
		if err := w.PutUint32(ipToUint32(addr)); err != nil {
			return err
		}
	}
	// No name servers configured: both are written as zero. No domain
	// name field is written.
	if err := w.PutUint32(0); err != nil {
		return err
	}
	return w.PutUint32(0)
}

func ipToUint32(addr string) uint32 {
	ip := net.ParseIP(addr)
	if ip == nil {
		return 0
	}
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}
	return binary.BigEndian.Uint32(v4)
}
