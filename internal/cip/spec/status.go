package spec

// GeneralStatus is the 8-bit CIP general status carried in every service
// response (spec.md §4.4, §7).
type GeneralStatus byte

const (
	StatusSuccess                 GeneralStatus = 0x00
	StatusConnectionFailure       GeneralStatus = 0x01
	StatusResourceUnavailable     GeneralStatus = 0x02
	StatusInvalidParameterValue   GeneralStatus = 0x03
	StatusPathSegmentError        GeneralStatus = 0x04
	StatusPathDestinationUnknown  GeneralStatus = 0x05
	StatusPartialTransfer         GeneralStatus = 0x06
	StatusConnectionLost          GeneralStatus = 0x07
	StatusServiceNotSupported     GeneralStatus = 0x08
	StatusInvalidAttributeValue   GeneralStatus = 0x09
	StatusAttributeListError      GeneralStatus = 0x0A
	StatusAlreadyInRequestedState GeneralStatus = 0x0B
	StatusObjectStateConflict     GeneralStatus = 0x0C
	StatusObjectAlreadyExists     GeneralStatus = 0x0D
	StatusAttributeNotSettable    GeneralStatus = 0x0E
	StatusPrivilegeViolation      GeneralStatus = 0x0F
	StatusDeviceStateConflict     GeneralStatus = 0x10
	StatusReplyDataTooLarge       GeneralStatus = 0x11
	StatusFragmentationOfPrimitive GeneralStatus = 0x12
	StatusNotEnoughData           GeneralStatus = 0x13
	StatusAttributeNotSupported   GeneralStatus = 0x14
	StatusTooMuchData             GeneralStatus = 0x15
)

func (s GeneralStatus) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusConnectionFailure:
		return "ConnectionFailure"
	case StatusResourceUnavailable:
		return "ResourceUnavailable"
	case StatusInvalidParameterValue:
		return "InvalidParameterValue"
	case StatusPathSegmentError:
		return "PathSegmentError"
	case StatusPathDestinationUnknown:
		return "PathDestinationUnknown"
	case StatusServiceNotSupported:
		return "ServiceNotSupported"
	case StatusInvalidAttributeValue:
		return "InvalidAttributeValue"
	case StatusObjectStateConflict:
		return "ObjectStateConflict"
	case StatusAttributeNotSettable:
		return "AttributeNotSettable"
	case StatusPrivilegeViolation:
		return "PrivilegeViolation"
	case StatusAttributeNotSupported:
		return "AttributeNotSupported"
	default:
		return "Unknown"
	}
}

// ExtendedStatus is the 16-bit Connection Manager extended status carried
// alongside StatusConnectionFailure in a rejected Forward-Open reply
// (spec.md §4.5, §7; grounded on CIPster's connection_manager error enum).
type ExtendedStatus uint16

const (
	ExtSuccess                          ExtendedStatus = 0x0000
	ExtErrorOwnershipConflict           ExtendedStatus = 0x0100
	ExtTargetObjectOutOfConnections     ExtendedStatus = 0x0113
	ExtRPINotSupported                  ExtendedStatus = 0x0114
	ExtInvalidProducingApplicationPath  ExtendedStatus = 0x0115
	ExtInvalidConsumingApplicationPath  ExtendedStatus = 0x0116
	ExtInconsistentApplicationPathCombo ExtendedStatus = 0x0117
	ExtNullForwardOpenNotSupported      ExtendedStatus = 0x0118
	ExtNonListenOnlyConnectionNotOpened ExtendedStatus = 0x0119
	ExtTargetForConnectionNotConfigured ExtendedStatus = 0x0126
	ExtRPINotAcceptable                 ExtendedStatus = 0x0127
	ExtDeviceNotConfiguredForKey        ExtendedStatus = 0x0128
	ExtConnectionNotFoundAtTarget       ExtendedStatus = 0x0204
	ExtInvalidConnectionSize            ExtendedStatus = 0x0112
)

func (e ExtendedStatus) String() string {
	switch e {
	case ExtSuccess:
		return "Success"
	case ExtErrorOwnershipConflict:
		return "ErrorOwnershipConflict"
	case ExtTargetObjectOutOfConnections:
		return "TargetObjectOutOfConnections"
	case ExtRPINotSupported:
		return "RPINotSupported"
	case ExtInvalidProducingApplicationPath:
		return "InvalidProducingApplicationPath"
	case ExtInvalidConsumingApplicationPath:
		return "InvalidConsumingApplicationPath"
	case ExtInconsistentApplicationPathCombo:
		return "InconsistentApplicationPathCombo"
	case ExtNullForwardOpenNotSupported:
		return "NullForwardOpenNotSupported"
	case ExtNonListenOnlyConnectionNotOpened:
		return "NonListenOnlyConnectionNotOpened"
	case ExtTargetForConnectionNotConfigured:
		return "TargetForConnectionNotConfigured"
	case ExtRPINotAcceptable:
		return "RPINotAcceptable"
	case ExtDeviceNotConfiguredForKey:
		return "DeviceNotConfiguredForKey"
	case ExtConnectionNotFoundAtTarget:
		return "ConnectionNotFoundAtTarget"
	case ExtInvalidConnectionSize:
		return "InvalidConnectionSize"
	default:
		return "Unknown"
	}
}
