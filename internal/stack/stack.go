// Package stack wires the object registry, standard CIP classes, the
// Connection Manager, and the connection runtime into one running adapter
// (spec.md §1, §4.2). It is the glue layer cmd/cipadapter drives; the
// protocol logic itself lives in internal/cip and internal/connmgr.
package stack

import (
	"fmt"

	"github.com/tturner/cipadapter/internal/cip/assembly"
	"github.com/tturner/cipadapter/internal/cip/ethlink"
	"github.com/tturner/cipadapter/internal/cip/identity"
	"github.com/tturner/cipadapter/internal/cip/object"
	"github.com/tturner/cipadapter/internal/cip/router"
	"github.com/tturner/cipadapter/internal/cip/spec"
	"github.com/tturner/cipadapter/internal/cip/tcpip"
	"github.com/tturner/cipadapter/internal/config"
	"github.com/tturner/cipadapter/internal/connmgr"
	"github.com/tturner/cipadapter/internal/connmgr/iorun"
	"github.com/tturner/cipadapter/internal/logging"
)

// ApplicationCallbacks is the full host-application callback surface a
// Stack drives (original_source/cipster_api.h's ApplicationInitialization /
// HandleApplication / CheckIoConnectionEvent / AfterAssemblyDataReceived /
// BeforeAssemblyDataSend / ResetDevice / ResetDeviceToInitialConfiguration /
// RunIdleChanged). internal/app supplies the concrete implementation; tests
// supply fakes.
type ApplicationCallbacks interface {
	ApplicationInitialization() error
	HandleApplication() error
	CheckIoConnectionEvent(consumingPoint, producingPoint int32, event connmgr.ConnectionEvent)
	AfterAssemblyDataReceived(instanceID uint16) error
	BeforeAssemblyDataSend(instanceID uint16) bool
	ResetDevice() error
	ResetDeviceToInitialConfiguration() error
	RunIdleChanged(runIdle uint32)
}

// Stack is one running adapter: registry, standard classes, connection
// manager, connection runtime, and the router that decodes/dispatches
// encapsulated CIP requests onto them.
type Stack struct {
	Registry   *object.Registry
	Assemblies *assembly.Registrar
	ConnMgr    *connmgr.Manager
	Driver     *iorun.Driver
	Router     *router.Router
	Sockets    *UDPSockets
	Logger     *logging.Logger

	cfg *config.AdapterConfig
}

// New builds a Stack from cfg: registers the standard classes (spec.md
// §4.2), creates the configured assemblies, configures the Connection
// Manager's three connection-point vectors, and wires the tick driver.
func New(cfg *config.AdapterConfig, app ApplicationCallbacks, logger *logging.Logger) (*Stack, error) {
	registry := object.NewRegistry()

	assemblyCallbacks := assemblyCallbacksAdapter{app: app}
	registrar, err := assembly.NewRegistrar(registry, assemblyCallbacks)
	if err != nil {
		return nil, fmt.Errorf("stack: register assembly class: %w", err)
	}
	for _, a := range cfg.Assemblies {
		if _, err := registrar.CreateAssemblyInstance(a.Instance, make([]byte, a.SizeBytes)); err != nil {
			return nil, fmt.Errorf("stack: create assembly %q (instance %d): %w", a.Name, a.Instance, err)
		}
	}

	if _, err := identity.Register(registry, identity.Config{
		VendorID:      cfg.Identity.VendorID,
		DeviceType:    cfg.Identity.DeviceType,
		ProductCode:   cfg.Identity.ProductCode,
		RevisionMajor: cfg.Identity.RevisionMajor,
		RevisionMinor: cfg.Identity.RevisionMinor,
		SerialNumber:  cfg.Identity.SerialNumber,
		ProductName:   cfg.Identity.ProductName,
	}); err != nil {
		return nil, fmt.Errorf("stack: register identity class: %w", err)
	}

	if _, err := tcpip.Register(registry, tcpip.Config{
		IPAddress: cfg.Network.ListenIP,
		HostName:  cfg.Name,
	}); err != nil {
		return nil, fmt.Errorf("stack: register tcp/ip interface class: %w", err)
	}

	if _, err := ethlink.Register(registry, ethlink.Config{SpeedMbps: 100, FullDuplex: true}); err != nil {
		return nil, fmt.Errorf("stack: register ethernet link class: %w", err)
	}

	routerCls := object.NewClass(spec.ClassMessageRouter, 1)
	if err := registry.RegisterClass(routerCls); err != nil {
		return nil, fmt.Errorf("stack: register message router class: %w", err)
	}
	if _, err := routerCls.CreateInstance(1, nil); err != nil {
		return nil, fmt.Errorf("stack: create message router instance: %w", err)
	}

	const slotsPerPath = 4 // simultaneous connections per input-only/listen-only triple
	vectors := connmgr.NewPointVectors(
		maxOrDefault(len(cfg.ConnectionManager.ExclusiveOwners)),
		maxOrDefault(len(cfg.ConnectionManager.InputOnly)),
		maxOrDefault(len(cfg.ConnectionManager.ListenOnly)),
		slotsPerPath,
	)
	configurePoints(cfg.ConnectionManager.ExclusiveOwners, vectors.ConfigureExclusiveOwnerConnectionPoint)
	configurePoints(cfg.ConnectionManager.InputOnly, vectors.ConfigureInputOnlyConnectionPoint)
	configurePoints(cfg.ConnectionManager.ListenOnly, vectors.ConfigureListenOnlyConnectionPoint)

	sockets := NewUDPSockets()
	events := connectionEventSink{app: app}
	identityCfg := connmgr.DeviceIdentity{
		VendorID:      cfg.Identity.VendorID,
		DeviceType:    cfg.Identity.DeviceType,
		ProductCode:   cfg.Identity.ProductCode,
		RevisionMajor: cfg.Identity.RevisionMajor,
		RevisionMinor: cfg.Identity.RevisionMinor,
	}
	mgr := connmgr.New(vectors, registrar, sockets, events, identityCfg)
	if err := mgr.RegisterClass(registry); err != nil {
		return nil, fmt.Errorf("stack: register connection manager class: %w", err)
	}

	driver := iorun.New(mgr, assemblyBufferLookup{r: registrar}, app, sockets, 10000)
	driver.MulticastGroup = cfg.Network.MulticastGroup

	r := router.New(registry, router.IdentitySummary{
		VendorID:      cfg.Identity.VendorID,
		DeviceType:    cfg.Identity.DeviceType,
		ProductCode:   cfg.Identity.ProductCode,
		RevisionMajor: cfg.Identity.RevisionMajor,
		RevisionMinor: cfg.Identity.RevisionMinor,
		SerialNumber:  cfg.Identity.SerialNumber,
		ProductName:   cfg.Identity.ProductName,
	})

	return &Stack{
		Registry:   registry,
		Assemblies: registrar,
		ConnMgr:    mgr,
		Driver:     driver,
		Router:     r,
		Sockets:    sockets,
		Logger:     logger,
		cfg:        cfg,
	}, nil
}

func maxOrDefault(n int) int {
	if n == 0 {
		return 1
	}
	return n
}

func configurePoints(points []config.ConnectionPointConfig, configure func(output, input, config int32) bool) {
	for _, p := range points {
		configure(p.ConsumingAssembly, p.ProducingAssembly, p.ConfigAssembly)
	}
}

// assemblyCallbacksAdapter bridges ApplicationCallbacks's uint16-keyed
// methods to assembly.Callbacks's *assembly.Instance-keyed methods. Go's
// interface satisfaction requires exact method signatures, so a structural
// match on field shape alone (both ultimately carry an instance id) isn't
// enough; this adapter is the translation.
type assemblyCallbacksAdapter struct {
	app ApplicationCallbacks
}

func (a assemblyCallbacksAdapter) AfterAssemblyDataReceived(inst *assembly.Instance) error {
	return a.app.AfterAssemblyDataReceived(inst.ID)
}

func (a assemblyCallbacksAdapter) BeforeAssemblyDataSend(inst *assembly.Instance) bool {
	return a.app.BeforeAssemblyDataSend(inst.ID)
}

func (a assemblyCallbacksAdapter) RunIdleChanged(runIdle uint32) {
	a.app.RunIdleChanged(runIdle)
}

// assemblyBufferLookup bridges assembly.Registrar's concrete
// *assembly.Instance return type to iorun.AssemblyLookup's Buffer
// interface return type. *assembly.Instance structurally satisfies
// iorun.Buffer, but Go requires the declared return type to match the
// interface exactly, so a thin wrapper is needed even though no
// conversion logic is involved.
type assemblyBufferLookup struct {
	r *assembly.Registrar
}

func (a assemblyBufferLookup) Instance(id uint16) (iorun.Buffer, bool) {
	inst, ok := a.r.Instance(id)
	if !ok {
		return nil, false
	}
	return inst, true
}

// connectionEventSink bridges connmgr.EventSink to ApplicationCallbacks;
// the method signatures already match exactly, so this wrapper only
// forwards CheckIoConnectionEvent to the application.
type connectionEventSink struct {
	app ApplicationCallbacks
}

func (s connectionEventSink) CheckIoConnectionEvent(consumingPoint, producingPoint int32, event connmgr.ConnectionEvent) {
	s.app.CheckIoConnectionEvent(consumingPoint, producingPoint, event)
}
