// Package spec holds the CIP class IDs, service codes, and status code
// enumerations shared by the router, object registry, and connection
// manager. It carries no behavior, only the vocabulary the rest of the
// stack is built on.
package spec

// Standard CIP class IDs registered at init (spec.md §4.2).
const (
	ClassIdentity         uint16 = 0x01
	ClassMessageRouter    uint16 = 0x02
	ClassAssembly         uint16 = 0x04
	ClassConnectionManager uint16 = 0x06
	ClassTCPIPInterface   uint16 = 0xF5
	ClassEthernetLink     uint16 = 0xF6
)

// Common services, applicable to most classes.
const (
	ServiceGetAttributeAll    byte = 0x01
	ServiceSetAttributeAll    byte = 0x02
	ServiceGetAttributeList   byte = 0x03
	ServiceSetAttributeList   byte = 0x04
	ServiceReset              byte = 0x05
	ServiceGetAttributeSingle byte = 0x0E
	ServiceSetAttributeSingle byte = 0x10
)

// Connection Manager class (0x06) services.
const (
	ServiceForwardClose     byte = 0x4E
	ServiceGetConnectionOwner byte = 0x5A
	ServiceGetConnectionData  byte = 0x56
	ServiceSearchConnectionData byte = 0x57
	ServiceForwardOpen      byte = 0x54
	ServiceLargeForwardOpen byte = 0x5B
)

// ReplyBit is ORed into the service code of a response (CIP Vol 1, 2-4.1).
const ReplyBit byte = 0x80
