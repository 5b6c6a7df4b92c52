package connmgr

import (
	"fmt"

	"github.com/tturner/cipadapter/internal/cip/spec"
)

// ConnectionPointConfig is a (output_assembly, input_assembly,
// config_assembly) triple registered before runtime (spec.md §3). Triples
// are immutable once registered.
type ConnectionPointConfig struct {
	OutputAssembly int32
	InputAssembly  int32
	ConfigAssembly int32 // -1 means "config path optional"
}

func (c ConnectionPointConfig) matchesConfig(configPoint int32, hasConfig bool) bool {
	if c.ConfigAssembly == -1 {
		return !hasConfig
	}
	return hasConfig && c.ConfigAssembly == configPoint
}

// exclusiveOwnerSlot pairs a registered triple with its single connection
// slot (spec.md: "one slot per triple").
type exclusiveOwnerSlot struct {
	cfg  ConnectionPointConfig
	conn *Conn
}

// multiSlot pairs a registered triple with its N connection slots
// (input-only and listen-only allow several simultaneous connections per
// triple, bounded by slotsPerPath).
type multiSlot struct {
	cfg   ConnectionPointConfig
	conns []*Conn // fixed-size, nil entries are free slots
}

// PointVectors holds the three connection-point configuration vectors a
// Manager consults during Forward-Open (spec.md §3, §5 "Resource bounds";
// grounded on appcontype.cc's g_exclusive_owner / g_input_only /
// g_listen_only).
type PointVectors struct {
	maxExclusiveOwner int
	maxInputOnly      int
	maxListenOnly     int
	slotsPerPath      int

	exclusiveOwner []*exclusiveOwnerSlot
	inputOnly      []*multiSlot
	listenOnly     []*multiSlot
}

// NewPointVectors returns empty vectors bounded by the given compile-time
// (here: config-time) resource limits.
func NewPointVectors(maxExclusiveOwner, maxInputOnly, maxListenOnly, slotsPerPath int) *PointVectors {
	return &PointVectors{
		maxExclusiveOwner: maxExclusiveOwner,
		maxInputOnly:      maxInputOnly,
		maxListenOnly:     maxListenOnly,
		slotsPerPath:      slotsPerPath,
	}
}

// ConfigureExclusiveOwnerConnectionPoint registers an exclusive-owner
// triple. Returns false if the vector is already at capacity.
func (v *PointVectors) ConfigureExclusiveOwnerConnectionPoint(output, input, config int32) bool {
	if len(v.exclusiveOwner) >= v.maxExclusiveOwner {
		return false
	}
	v.exclusiveOwner = append(v.exclusiveOwner, &exclusiveOwnerSlot{
		cfg: ConnectionPointConfig{OutputAssembly: output, InputAssembly: input, ConfigAssembly: config},
	})
	return true
}

// ConfigureInputOnlyConnectionPoint registers an input-only triple.
func (v *PointVectors) ConfigureInputOnlyConnectionPoint(output, input, config int32) bool {
	if len(v.inputOnly) >= v.maxInputOnly {
		return false
	}
	v.inputOnly = append(v.inputOnly, &multiSlot{
		cfg:   ConnectionPointConfig{OutputAssembly: output, InputAssembly: input, ConfigAssembly: config},
		conns: make([]*Conn, v.slotsPerPath),
	})
	return true
}

// ConfigureListenOnlyConnectionPoint registers a listen-only triple.
func (v *PointVectors) ConfigureListenOnlyConnectionPoint(output, input, config int32) bool {
	if len(v.listenOnly) >= v.maxListenOnly {
		return false
	}
	v.listenOnly = append(v.listenOnly, &multiSlot{
		cfg:   ConnectionPointConfig{OutputAssembly: output, InputAssembly: input, ConfigAssembly: config},
		conns: make([]*Conn, v.slotsPerPath),
	})
	return true
}

// arbitrationRequest is the subset of a would-be Conn that ownership
// arbitration reads: the requested connection path and the T->O NCP
// (needed to classify a listen-only request before a slot is found).
type arbitrationRequest struct {
	ConnPath ConnPath
	TToONCP  NetworkConnectionParams
}

// connectedOutputAssembly reports whether any Established connection (of
// any instance type) already consumes into outputPoint, grounding
// getExclusiveOwnerConnection's "GetConnectedOutputAssembly" guard.
func connectedOutputAssembly(active []*Conn, outputPoint int32) bool {
	for _, c := range active {
		if c.State == StateEstablished && c.ConnPath.ConsumingPoint == outputPoint {
			return true
		}
	}
	return false
}

// resolveExclusiveOwner grounds getExclusiveOwnerConnection: matches on
// (output, input, config), and rejects with ErrorOwnershipConflict if some
// other active connection already owns that output assembly.
func (v *PointVectors) resolveExclusiveOwner(req arbitrationRequest, active []*Conn) (*exclusiveOwnerSlot, spec.ExtendedStatus) {
	for _, slot := range v.exclusiveOwner {
		if slot.cfg.OutputAssembly == req.ConnPath.ConsumingPoint &&
			slot.cfg.InputAssembly == req.ConnPath.ProducingPoint &&
			slot.cfg.matchesConfig(req.ConnPath.ConfigPoint, req.ConnPath.HasConfig) {

			if connectedOutputAssembly(active, req.ConnPath.ConsumingPoint) {
				return nil, spec.ExtErrorOwnershipConflict
			}
			if slot.conn != nil && slot.conn.State == StateEstablished {
				return nil, spec.ExtErrorOwnershipConflict
			}
			return slot, spec.ExtSuccess
		}
	}
	return nil, spec.ExtSuccess
}

// resolveInputOnly grounds getInputOnlyConnection.
func (v *PointVectors) resolveInputOnly(req arbitrationRequest) (*multiSlot, int, spec.ExtendedStatus) {
	for _, slot := range v.inputOnly {
		if slot.cfg.OutputAssembly != req.ConnPath.ConsumingPoint {
			continue
		}
		if slot.cfg.InputAssembly != req.ConnPath.ProducingPoint {
			return nil, -1, spec.ExtInvalidProducingApplicationPath
		}
		if !slot.cfg.matchesConfig(req.ConnPath.ConfigPoint, req.ConnPath.HasConfig) {
			return nil, -1, spec.ExtInconsistentApplicationPathCombo
		}
		for i, c := range slot.conns {
			if c == nil || c.State == StateNonExistent {
				return slot, i, spec.ExtSuccess
			}
		}
		return nil, -1, spec.ExtTargetObjectOutOfConnections
	}
	return nil, -1, spec.ExtSuccess
}

// resolveListenOnly grounds getListenOnlyConnection.
func (v *PointVectors) resolveListenOnly(req arbitrationRequest, active []*Conn) (*multiSlot, int, spec.ExtendedStatus) {
	if req.TToONCP.ConnectionType != ConnTypeMulticast {
		return nil, -1, spec.ExtNonListenOnlyConnectionNotOpened
	}
	for _, slot := range v.listenOnly {
		if slot.cfg.OutputAssembly != req.ConnPath.ConsumingPoint {
			continue
		}
		if slot.cfg.InputAssembly != req.ConnPath.ProducingPoint {
			return nil, -1, spec.ExtInvalidProducingApplicationPath
		}
		if !slot.cfg.matchesConfig(req.ConnPath.ConfigPoint, req.ConnPath.HasConfig) {
			return nil, -1, spec.ExtInconsistentApplicationPathCombo
		}
		if getExistingProducerMulticastConnection(active, req.ConnPath.ProducingPoint) == nil {
			return nil, -1, spec.ExtNonListenOnlyConnectionNotOpened
		}
		for i, c := range slot.conns {
			if c == nil || c.State == StateNonExistent {
				return slot, i, spec.ExtSuccess
			}
		}
		return nil, -1, spec.ExtTargetObjectOutOfConnections
	}
	return nil, -1, spec.ExtSuccess
}

// resolveConnectionPoint grounds GetIoConnectionForConnectionData: try
// exclusive-owner, then input-only, then listen-only, in that order. The
// `0 == *extended_error` sentinel ambiguity from the C++ source (spec.md §9
// open question) is carried forward: ExtSuccess is numerically zero, and a
// "not found, no error" result at any stage falls through to the next
// stage exactly as the source does.
func (v *PointVectors) resolveConnectionPoint(req arbitrationRequest, active []*Conn) (InstanceType, *exclusiveOwnerSlot, *multiSlot, int, spec.ExtendedStatus) {
	if slot, ext := v.resolveExclusiveOwner(req, active); slot != nil {
		return InstanceIoExclusiveOwner, slot, nil, -1, spec.ExtSuccess
	} else if ext != spec.ExtSuccess {
		return 0, nil, nil, -1, ext
	}

	if slot, idx, ext := v.resolveInputOnly(req); slot != nil {
		return InstanceIoInputOnly, nil, slot, idx, spec.ExtSuccess
	} else if ext != spec.ExtSuccess {
		return 0, nil, nil, -1, ext
	}

	if slot, idx, ext := v.resolveListenOnly(req, active); slot != nil {
		return InstanceIoListenOnly, nil, slot, idx, spec.ExtSuccess
	} else if ext != spec.ExtSuccess {
		return 0, nil, nil, -1, ext
	}

	// No application connection type was found that suits the given data.
	// The CIPster source flags this fall-through with "TODO check error
	// code VS"; the mapping is retained verbatim (spec.md §9).
	return 0, nil, nil, -1, spec.ExtInconsistentApplicationPathCombo
}

func getExistingProducerMulticastConnection(active []*Conn, producingPoint int32) *Conn {
	for _, c := range active {
		if c.InstanceType != InstanceIoExclusiveOwner && c.InstanceType != InstanceIoInputOnly {
			continue
		}
		if c.ConnPath.ProducingPoint == producingPoint &&
			c.TToONCP.ConnectionType == ConnTypeMulticast &&
			c.ProducingSocket != InvalidSocket {
			return c
		}
	}
	return nil
}

// getNextNonControlMasterConnection grounds GetNextNonControlMasterConnection:
// the first peer that produces the same assembly over multicast but does
// not itself own the socket.
func getNextNonControlMasterConnection(active []*Conn, producingPoint int32) *Conn {
	for _, c := range active {
		if c.InstanceType != InstanceIoExclusiveOwner && c.InstanceType != InstanceIoInputOnly {
			continue
		}
		if c.ConnPath.ProducingPoint == producingPoint &&
			c.TToONCP.ConnectionType == ConnTypeMulticast &&
			c.ProducingSocket == InvalidSocket {
			return c
		}
	}
	return nil
}

// connectionWithSameConfigPointExists grounds ConnectionWithSameConfigPointExists.
func connectionWithSameConfigPointExists(active []*Conn, configPoint int32) bool {
	for _, c := range active {
		if c.ConnPath.ConfigPoint == configPoint {
			return true
		}
	}
	return false
}

func validateAssemblySize(assemblyLen int, ncp NetworkConnectionParams, overhead int) error {
	want := assemblyLen + overhead
	if int(ncp.Size) != want {
		return fmt.Errorf("connmgr: NCP size %d does not match assembly length %d (+%d overhead)", ncp.Size, assemblyLen, overhead)
	}
	return nil
}
