package connmgr

import (
	"fmt"

	"github.com/tturner/cipadapter/internal/cip/assembly"
	"github.com/tturner/cipadapter/internal/cip/epath"
	"github.com/tturner/cipadapter/internal/cip/spec"
)

// SocketDirection distinguishes the two UDP endpoints a connection may bind
// (spec.md §6 host socket surface).
type SocketDirection int

const (
	SocketConsuming SocketDirection = iota
	SocketProducing
)

// HostSockets is the platform socket surface the Connection Manager and
// connection runtime depend on; the host (cmd/cipadapter, or a test double)
// supplies the implementation.
type HostSockets interface {
	CreateUdpSocket(direction SocketDirection, addr string) (int, error)
	SendUdpData(handle int, addr string, data []byte) error
	CloseSocket(handle int) error
}

// ConnectionEvent is the kind of lifecycle event reported through
// CheckIoConnectionEvent (spec.md §4.5, §7).
type ConnectionEvent int

const (
	EventOpened ConnectionEvent = iota
	EventClosed
	EventTimedOut
)

// EventSink receives Connection Manager lifecycle notifications.
type EventSink interface {
	CheckIoConnectionEvent(consumingPoint, producingPoint int32, event ConnectionEvent)
}

// AssemblyLookup is the narrow view of the assembly registrar the
// Connection Manager needs: resolving a connection point to its buffer and
// firing the data-received callback for config assemblies.
type AssemblyLookup interface {
	Instance(instanceID uint16) (*assembly.Instance, bool)
	AfterAssemblyDataReceived(inst *assembly.Instance) error
}

// DeviceIdentity is the subset of the Identity object's attributes the
// Connection Manager checks against an incoming electronic key (spec.md
// §4.5 step 1).
type DeviceIdentity struct {
	VendorID      uint16
	DeviceType    uint16
	ProductCode   uint16
	RevisionMajor byte
	RevisionMinor byte
}

// Manager is the Connection Manager: the three connection-point
// configuration vectors, the active-connection list, and the host
// collaborators (sockets, assemblies, event sink) Forward-Open/Forward-Close
// processing needs (spec.md §4.5).
type Manager struct {
	Vectors    *PointVectors
	Assemblies AssemblyLookup
	Sockets    HostSockets
	Events     EventSink
	Identity   DeviceIdentity

	active []*Conn
}

// New returns a Manager ready to process Forward-Open/Forward-Close
// requests once its collaborators are wired.
func New(vectors *PointVectors, assemblies AssemblyLookup, sockets HostSockets, events EventSink, identity DeviceIdentity) *Manager {
	return &Manager{Vectors: vectors, Assemblies: assemblies, Sockets: sockets, Events: events, Identity: identity}
}

// Active returns the live connection list, filtered to Established
// connections per spec.md invariant 2 ("C in active_list <=> C.state ==
// Established").
func (m *Manager) Active() []*Conn {
	out := make([]*Conn, 0, len(m.active))
	for _, c := range m.active {
		if c.State == StateEstablished {
			out = append(out, c)
		}
	}
	return out
}

// Snapshot returns the raw active-connection list (including TimedOut
// entries pending reap), in list order, for the tick driver to walk. The
// caller must not retain the slice across a call that mutates m.active.
func (m *Manager) Snapshot() []*Conn {
	return m.active
}

// Reap removes every Conn in TimedOut or Closing state from the active
// list, notifying the event sink for timed-out connections. It must be
// called once per tick, after timer advancement, never mid-iteration
// (spec.md §5 "the entry is then unlinked").
func (m *Manager) Reap() {
	remaining := m.active[:0]
	for _, c := range m.active {
		switch c.State {
		case StateTimedOut:
			if m.Events != nil {
				m.Events.CheckIoConnectionEvent(c.ConnPath.ConsumingPoint, c.ConnPath.ProducingPoint, EventTimedOut)
			}
			c.State = StateNonExistent
		case StateClosing:
			continue
		default:
			remaining = append(remaining, c)
			continue
		}
	}
	m.active = remaining
}

// FindByConsumingID returns the Established Conn whose O->T connection ID
// matches id, used by the consuming-frame entry point to locate a CipConn
// by wire connection ID (spec.md §4.6 step 1).
func (m *Manager) FindByConsumingID(id uint32) *Conn {
	for _, c := range m.active {
		if c.State == StateEstablished && c.OToTConnectionID == id {
			return c
		}
	}
	return nil
}

// OpenResult carries either a newly Established Conn or a rejection reason.
type OpenResult struct {
	Conn           *Conn
	GeneralStatus  spec.GeneralStatus
	ExtendedStatus spec.ExtendedStatus
}

// OpenConnectionFrom runs OpenConnection and records originatorAddr on the
// resulting Conn, used by the consuming-frame anti-hijack check (spec.md
// §4.6 step 2).
func (m *Manager) OpenConnectionFrom(req ForwardOpenRequest, originatorAddr string) OpenResult {
	result := m.OpenConnection(req)
	if result.Conn != nil {
		result.Conn.OriginatorAddr = originatorAddr
	}
	return result
}

// OpenConnection runs the nine-step Forward-Open procedure (spec.md §4.5).
func (m *Manager) OpenConnection(req ForwardOpenRequest) OpenResult {
	// Step 1: electronic key check.
	if key, present := req.ElectronicKeyOf(); present {
		if key.VendorID != m.Identity.VendorID || key.DeviceType != m.Identity.DeviceType ||
			key.ProductCode != m.Identity.ProductCode ||
			(key.RevisionMajor != m.Identity.RevisionMajor && !key.Compatibility) ||
			(key.Compatibility && key.RevisionMajor > m.Identity.RevisionMajor) {
			return OpenResult{GeneralStatus: spec.StatusConnectionFailure, ExtendedStatus: spec.ExtDeviceNotConfiguredForKey}
		}
	}

	// Step 2: extract consuming/producing/config points.
	connPath := req.ConnPathOf()

	// Step 3 (classification) folds into step 4's arbitration, which
	// re-derives the instance type from which vector matches.
	arb := arbitrationRequest{ConnPath: connPath, TToONCP: req.TToONCP}

	// Step 4: locate a matching ConnectionPointConfig; exclusive-owner,
	// then input-only, then listen-only, with ownership arbitration.
	instanceType, excl, multi, slotIdx, extStatus := m.Vectors.resolveConnectionPoint(arb, m.active)
	if extStatus != spec.ExtSuccess {
		return OpenResult{GeneralStatus: spec.StatusConnectionFailure, ExtendedStatus: extStatus}
	}

	conn := &Conn{
		State:            StateConfiguring,
		InstanceType:     instanceType,
		ConnPath:         connPath,
		OToTNCP:          req.OToTNCP,
		TToONCP:          req.TToONCP,
		OToTRPI:          req.OToTRPI,
		TToORPI:          req.TToORPI,
		OToTConnectionID: req.OToTConnectionID,
		TToOConnectionID: req.TToOConnectionID,
		Triad: ConnTriad{
			ConnectionSerialNumber: req.ConnectionSerialNumber,
			OriginatorVendorID:     req.OriginatorVendorID,
			OriginatorSerialNumber: req.OriginatorSerialNumber,
		},
		ProducingSocket: InvalidSocket,
		ConsumingSocket: InvalidSocket,
	}

	// Step 5: validate NCP sizes against the bound assembly lengths.
	classID := req.TransportClassTrigger & 0x0F
	overhead := 2 // 16-bit sequence count
	if classID == 0 {
		overhead += 4 // 32-bit run/idle header
	}
	if m.Assemblies != nil {
		if inst, ok := m.Assemblies.Instance(uint16(connPath.ConsumingPoint)); ok && req.OToTNCP.ConnectionType != ConnTypeNull {
			if err := validateAssemblySize(inst.Len(), req.OToTNCP, overhead); err != nil {
				return OpenResult{GeneralStatus: spec.StatusConnectionFailure, ExtendedStatus: spec.ExtInvalidConnectionSize}
			}
		}
		if inst, ok := m.Assemblies.Instance(uint16(connPath.ProducingPoint)); ok && req.TToONCP.ConnectionType != ConnTypeNull {
			if err := validateAssemblySize(inst.Len(), req.TToONCP, overhead); err != nil {
				return OpenResult{GeneralStatus: spec.StatusConnectionFailure, ExtendedStatus: spec.ExtInvalidConnectionSize}
			}
		}
	}

	// Step 6: config data, if present, is written into the config assembly
	// and AfterAssemblyDataReceived is invoked on it.
	if connPath.HasConfig && len(req.ConfigData) > 0 && m.Assemblies != nil {
		if inst, ok := m.Assemblies.Instance(uint16(connPath.ConfigPoint)); ok {
			inst.Write(req.ConfigData)
			if err := m.Assemblies.AfterAssemblyDataReceived(inst); err != nil {
				return OpenResult{GeneralStatus: spec.StatusPrivilegeViolation}
			}
		}
	}

	// Step 7: actual packet intervals equal the requested ones; the target
	// does not coerce (spec.md §4.5 step 7).
	conn.OToTAPI = conn.OToTRPI
	conn.TToOAPI = conn.TToORPI

	// Step 8: open sockets via the multicast coordinator.
	if err := m.bindSockets(conn); err != nil {
		return OpenResult{GeneralStatus: spec.StatusResourceUnavailable}
	}

	// Step 9: transition to Established, link into the active list, arm
	// watchdog and transmission-trigger timers.
	conn.State = StateEstablished
	conn.TimeoutMicros = int64(conn.TToORPI) * int64(req.ConnectionTimeoutMultiplier)
	if conn.TimeoutMicros == 0 {
		conn.TimeoutMicros = int64(conn.OToTRPI) * int64(req.ConnectionTimeoutMultiplier)
	}
	conn.InactivityWatchdogTimer = conn.TimeoutMicros
	conn.TransmissionTriggerTimer = int64(conn.TToOAPI)

	m.active = append(m.active, conn)
	switch instanceType {
	case InstanceIoExclusiveOwner:
		excl.conn = conn
	case InstanceIoInputOnly:
		multi.conns[slotIdx] = conn
	case InstanceIoListenOnly:
		multi.conns[slotIdx] = conn
	}

	if m.Events != nil {
		m.Events.CheckIoConnectionEvent(connPath.ConsumingPoint, connPath.ProducingPoint, EventOpened)
	}

	return OpenResult{Conn: conn, GeneralStatus: spec.StatusSuccess}
}

// bindSockets implements the multicast coordinator's Forward-Open side
// (spec.md §4.7): a new multicast producer either attaches to an existing
// producer master or becomes the master itself; point-to-point connections
// always bind their own sockets.
func (m *Manager) bindSockets(conn *Conn) error {
	if conn.OToTNCP.ConnectionType != ConnTypeNull && m.Sockets != nil {
		handle, err := m.Sockets.CreateUdpSocket(SocketConsuming, "")
		if err != nil {
			return fmt.Errorf("connmgr: consuming socket: %w", err)
		}
		conn.ConsumingSocket = handle
	}

	if conn.TToONCP.ConnectionType == ConnTypeNull {
		return nil
	}

	if conn.TToONCP.ConnectionType == ConnTypeMulticast {
		if master := getExistingProducerMulticastConnection(m.active, conn.ConnPath.ProducingPoint); master != nil {
			conn.ProducingSocket = InvalidSocket // shares the master's socket by reference
			return nil
		}
	}

	if m.Sockets == nil {
		return nil
	}
	handle, err := m.Sockets.CreateUdpSocket(SocketProducing, "")
	if err != nil {
		return fmt.Errorf("connmgr: producing socket: %w", err)
	}
	conn.ProducingSocket = handle
	return nil
}

// CloseConnection runs Forward-Close (spec.md §4.5): locate the active
// connection whose triad matches, close it, unlink it, and report success;
// no match reports ConnectionNotFoundAtTarget.
func (m *Manager) CloseConnection(triad ConnTriad) (spec.GeneralStatus, spec.ExtendedStatus) {
	for i, c := range m.active {
		if c.Triad == triad {
			m.closeConn(c)
			m.active = append(m.active[:i], m.active[i+1:]...)
			return spec.StatusSuccess, spec.ExtSuccess
		}
	}
	return spec.StatusConnectionFailure, spec.ExtConnectionNotFoundAtTarget
}

// closeConn releases conn's sockets, transferring multicast producer
// ownership to the next non-control-master peer if one exists (spec.md
// §4.7), and notifies the application.
func (m *Manager) closeConn(conn *Conn) {
	wasMaster := conn.ProducingSocket != InvalidSocket && conn.TToONCP.ConnectionType == ConnTypeMulticast

	if conn.ConsumingSocket != InvalidSocket && m.Sockets != nil {
		_ = m.Sockets.CloseSocket(conn.ConsumingSocket)
		conn.ConsumingSocket = InvalidSocket
	}

	if wasMaster {
		if peer := getNextNonControlMasterConnection(m.active, conn.ConnPath.ProducingPoint); peer != nil {
			if m.Sockets != nil {
				handle, err := m.Sockets.CreateUdpSocket(SocketProducing, "")
				if err == nil {
					peer.ProducingSocket = handle
				}
			}
		}
		if m.Sockets != nil && conn.ProducingSocket != InvalidSocket {
			_ = m.Sockets.CloseSocket(conn.ProducingSocket)
		}
	} else if conn.ProducingSocket != InvalidSocket && m.Sockets != nil {
		_ = m.Sockets.CloseSocket(conn.ProducingSocket)
	}
	conn.ProducingSocket = InvalidSocket

	conn.State = StateNonExistent
	if m.Events != nil {
		m.Events.CheckIoConnectionEvent(conn.ConnPath.ConsumingPoint, conn.ConnPath.ProducingPoint, EventClosed)
	}
}

// CloseAll grounds CloseAllConnections: closes every active connection.
// cmd/cipadapter's serve binds it as the application's device-reset hook.
func (m *Manager) CloseAll() {
	for _, c := range m.active {
		m.closeConn(c)
	}
	m.active = nil
}

// CloseAllForInput grounds CloseAllConnectionsForInputWithSameType.
func (m *Manager) CloseAllForInput(producingPoint int32, instanceType InstanceType) {
	remaining := m.active[:0]
	for _, c := range m.active {
		if c.InstanceType == instanceType && c.ConnPath.ProducingPoint == producingPoint {
			m.closeConn(c)
			continue
		}
		remaining = append(remaining, c)
	}
	m.active = remaining
}

// ConnectionWithSameConfigPointExists reports whether any active connection
// references configPoint as its config assembly.
func (m *Manager) ConnectionWithSameConfigPointExists(configPoint int32) bool {
	return connectionWithSameConfigPointExists(m.active, configPoint)
}

// GetConnectionOwner implements the rarely-exercised 0x5A service: it
// reports whether a connection exists for the given connection path,
// returning the default (not found) when none does (spec.md §4.5).
func (m *Manager) GetConnectionOwner(segs []epath.Segment) (found bool, triad ConnTriad) {
	var points []int32
	for _, s := range segs {
		if s.SegType == epath.TypeLogical && s.Logical != epath.LogicalElectronicKey {
			points = append(points, int32(s.Value))
		}
	}
	if len(points) < 2 {
		return false, ConnTriad{}
	}
	consuming, producing := points[0], points[1]
	for _, c := range m.active {
		if c.ConnPath.ConsumingPoint == consuming && c.ConnPath.ProducingPoint == producing {
			return true, c.Triad
		}
	}
	return false, ConnTriad{}
}
