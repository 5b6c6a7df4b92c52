package connmgr

import (
	"testing"

	"github.com/tturner/cipadapter/internal/cip/assembly"
	"github.com/tturner/cipadapter/internal/cip/epath"
	"github.com/tturner/cipadapter/internal/cip/object"
	"github.com/tturner/cipadapter/internal/cip/spec"
)

type fakeSockets struct {
	nextHandle int
	created    int
	closed     int
}

func (f *fakeSockets) CreateUdpSocket(direction SocketDirection, addr string) (int, error) {
	f.nextHandle++
	f.created++
	return f.nextHandle, nil
}

func (f *fakeSockets) CloseSocket(handle int) error {
	f.closed++
	return nil
}

func (f *fakeSockets) SendUdpData(handle int, addr string, data []byte) error {
	return nil
}

type fakeEvents struct {
	events []ConnectionEvent
}

func (f *fakeEvents) CheckIoConnectionEvent(consuming, producing int32, event ConnectionEvent) {
	f.events = append(f.events, event)
}

func newTestManager(t *testing.T) (*Manager, *assembly.Registrar, *fakeSockets) {
	t.Helper()
	registry := object.NewRegistry()
	registrar, err := assembly.NewRegistrar(registry, noopCallbacks{})
	if err != nil {
		t.Fatalf("NewRegistrar: %v", err)
	}
	if _, err := registrar.CreateAssemblyInstance(100, make([]byte, 4)); err != nil {
		t.Fatalf("CreateAssemblyInstance(100): %v", err)
	}
	if _, err := registrar.CreateAssemblyInstance(101, make([]byte, 4)); err != nil {
		t.Fatalf("CreateAssemblyInstance(101): %v", err)
	}

	vectors := NewPointVectors(1, 2, 2, 2)
	vectors.ConfigureExclusiveOwnerConnectionPoint(100, 101, -1)

	sockets := &fakeSockets{}
	identity := DeviceIdentity{VendorID: 1, DeviceType: 12, ProductCode: 42, RevisionMajor: 1, RevisionMinor: 0}
	mgr := New(vectors, registrar, sockets, &fakeEvents{}, identity)
	return mgr, registrar, sockets
}

type noopCallbacks struct{}

func (noopCallbacks) AfterAssemblyDataReceived(inst *assembly.Instance) error { return nil }
func (noopCallbacks) BeforeAssemblyDataSend(inst *assembly.Instance) bool     { return false }
func (noopCallbacks) RunIdleChanged(runIdle uint32)                          {}

func buildForwardOpenRequest(consuming, producing int32) ForwardOpenRequest {
	var segs []epath.Segment
	segs = append(segs, epath.Segment{SegType: epath.TypeLogical, Logical: epath.LogicalInstanceID, Value: uint32(consuming)})
	segs = append(segs, epath.Segment{SegType: epath.TypeLogical, Logical: epath.LogicalInstanceID, Value: uint32(producing)})
	return ForwardOpenRequest{
		ConnectionSerialNumber: 0x1234,
		OriginatorVendorID:     1,
		OriginatorSerialNumber: 0xAABBCCDD,
		OToTRPI:                10000,
		OToTNCP:                NetworkConnectionParams{Size: 4 + 2, ConnectionType: ConnTypePointToPoint},
		TToORPI:                10000,
		TToONCP:                NetworkConnectionParams{Size: 4 + 2, ConnectionType: ConnTypePointToPoint},
		TransportClassTrigger:  1,
		Segments:               segs,
	}
}

// TestOpenConnectionExclusiveOwner covers spec.md scenario S2: an
// exclusive-owner Forward-Open against a configured connection point
// succeeds and lands the connection in the active list.
func TestOpenConnectionExclusiveOwner(t *testing.T) {
	mgr, _, sockets := newTestManager(t)
	req := buildForwardOpenRequest(100, 101)

	result := mgr.OpenConnection(req)
	if result.GeneralStatus != spec.StatusSuccess {
		t.Fatalf("GeneralStatus = %v, want Success (ext=%v)", result.GeneralStatus, result.ExtendedStatus)
	}
	if result.Conn.State != StateEstablished {
		t.Errorf("state = %v, want Established", result.Conn.State)
	}
	if len(mgr.Active()) != 1 {
		t.Errorf("active connections = %d, want 1", len(mgr.Active()))
	}
	if sockets.created == 0 {
		t.Error("expected sockets to be created")
	}
}

// TestOpenConnectionOwnershipConflict covers spec.md scenario S3: a second
// exclusive-owner Forward-Open against the same output assembly is rejected.
func TestOpenConnectionOwnershipConflict(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	req := buildForwardOpenRequest(100, 101)

	first := mgr.OpenConnection(req)
	if first.GeneralStatus != spec.StatusSuccess {
		t.Fatalf("first open: GeneralStatus = %v", first.GeneralStatus)
	}

	second := mgr.OpenConnection(req)
	if second.GeneralStatus != spec.StatusConnectionFailure {
		t.Fatalf("second open: GeneralStatus = %v, want ConnectionFailure", second.GeneralStatus)
	}
	if second.ExtendedStatus != spec.ExtErrorOwnershipConflict {
		t.Errorf("ExtendedStatus = %v, want ErrorOwnershipConflict", second.ExtendedStatus)
	}
}

// TestCloseConnectionRemovesFromActiveList covers Forward-Close matching by
// triad and releasing sockets.
func TestCloseConnectionRemovesFromActiveList(t *testing.T) {
	mgr, _, sockets := newTestManager(t)
	req := buildForwardOpenRequest(100, 101)
	opened := mgr.OpenConnection(req)
	if opened.GeneralStatus != spec.StatusSuccess {
		t.Fatalf("open: GeneralStatus = %v", opened.GeneralStatus)
	}

	status, ext := mgr.CloseConnection(opened.Conn.Triad)
	if status != spec.StatusSuccess || ext != spec.ExtSuccess {
		t.Fatalf("CloseConnection = (%v, %v), want success", status, ext)
	}
	if len(mgr.Active()) != 0 {
		t.Errorf("active connections = %d, want 0 after close", len(mgr.Active()))
	}
	if sockets.closed == 0 {
		t.Error("expected sockets to be closed")
	}
}

func TestCloseConnectionNotFound(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	status, ext := mgr.CloseConnection(ConnTriad{ConnectionSerialNumber: 0xFFFF})
	if status != spec.StatusConnectionFailure || ext != spec.ExtConnectionNotFoundAtTarget {
		t.Fatalf("CloseConnection = (%v, %v), want ConnectionNotFoundAtTarget", status, ext)
	}
}

// TestOpenConnectionListenOnlyWithoutProducer covers spec.md scenario S6: a
// listen-only Forward-Open fails with NonListenOnlyConnectionNotOpened when
// no multicast producer exists yet.
func TestOpenConnectionListenOnlyWithoutProducer(t *testing.T) {
	mgr, registrar, _ := newTestManager(t)
	if _, err := registrar.CreateAssemblyInstance(200, make([]byte, 4)); err != nil {
		t.Fatalf("CreateAssemblyInstance(200): %v", err)
	}
	if _, err := registrar.CreateAssemblyInstance(201, make([]byte, 4)); err != nil {
		t.Fatalf("CreateAssemblyInstance(201): %v", err)
	}
	mgr.Vectors.ConfigureListenOnlyConnectionPoint(200, 201, -1)

	req := buildForwardOpenRequest(200, 201)
	req.TToONCP.ConnectionType = ConnTypeMulticast

	result := mgr.OpenConnection(req)
	if result.GeneralStatus != spec.StatusConnectionFailure {
		t.Fatalf("GeneralStatus = %v, want ConnectionFailure", result.GeneralStatus)
	}
	if result.ExtendedStatus != spec.ExtNonListenOnlyConnectionNotOpened {
		t.Errorf("ExtendedStatus = %v, want NonListenOnlyConnectionNotOpened", result.ExtendedStatus)
	}
}
