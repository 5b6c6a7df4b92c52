// Package assembly implements the Assembly object (CIP class 0x04): a
// CipInstance whose single attribute (number 3) is a contiguous byte buffer
// owned by the application and only borrowed by the stack (spec.md §3, §4.3).
package assembly

import (
	"fmt"
	"sync"

	"github.com/tturner/cipadapter/internal/cip/ciptypes"
	"github.com/tturner/cipadapter/internal/cip/object"
	"github.com/tturner/cipadapter/internal/cip/spec"
)

// AttributeData is the attribute number carrying the assembly's byte buffer.
const AttributeData byte = 3

// Callbacks are invoked synchronously by the stack around assembly data
// movement. The application supplies one implementation for the whole
// stack; Instance passed in identifies which assembly fired.
type Callbacks interface {
	// AfterAssemblyDataReceived runs after a valid consuming frame has been
	// fully written into inst's buffer. A non-nil error maps to a CIP
	// general status and, for a config assembly during Forward-Open, may
	// reject the connection.
	AfterAssemblyDataReceived(inst *Instance) error
	// BeforeAssemblyDataSend runs immediately before producing a frame from
	// inst's buffer. The bool return is informational: true if the data
	// changed since the previous call.
	BeforeAssemblyDataSend(inst *Instance) bool
	// RunIdleChanged fires when an O->T frame's run/idle header differs
	// from the previously observed value.
	RunIdleChanged(runIdle uint32)
}

// Instance is one live assembly: a borrowed buffer plus the bookkeeping the
// Connection Manager and connection runtime need.
type Instance struct {
	mu         sync.Mutex
	ID         uint16
	Buffer     []byte // borrowed from the application; never reallocated
	lastRunIdle uint32
	haveRunIdle bool
}

// Len returns the assembly's fixed buffer length. Heartbeat assemblies
// (input-only / listen-only with no payload) have Len() == 0.
func (i *Instance) Len() int {
	return len(i.Buffer)
}

// Read copies the current buffer contents into dst, returning the number of
// bytes copied.
func (i *Instance) Read(dst []byte) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return copy(dst, i.Buffer)
}

// Write copies src into the buffer, truncating to the buffer's fixed
// length; it does not resize the buffer (spec.md invariant 1: buffer length
// is constant after creation).
func (i *Instance) Write(src []byte) {
	i.mu.Lock()
	defer i.mu.Unlock()
	copy(i.Buffer, src)
}

// ObserveRunIdle records a run/idle header value, returning true the first
// time it differs from the previously observed value (or on first call).
func (i *Instance) ObserveRunIdle(runIdle uint32) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	changed := !i.haveRunIdle || runIdle != i.lastRunIdle
	i.lastRunIdle = runIdle
	i.haveRunIdle = true
	return changed
}

// Registrar creates Assembly-class (0x04) instances on a registry and wires
// their Get/Set_Attribute_Single services to callbacks. One Registrar per
// Stack; it also hands out *Instance handles the Connection Manager binds
// connection points to.
type Registrar struct {
	registry  *object.Registry
	class     *object.Class
	callbacks Callbacks
	instances map[uint16]*Instance
}

// NewRegistrar registers class 0x04 on registry and returns a Registrar
// ready to create instances.
func NewRegistrar(registry *object.Registry, callbacks Callbacks) (*Registrar, error) {
	cls := object.NewClass(spec.ClassAssembly, 2)
	if err := registry.RegisterClass(cls); err != nil {
		return nil, err
	}
	r := &Registrar{registry: registry, class: cls, callbacks: callbacks, instances: make(map[uint16]*Instance)}
	cls.RegisterService(spec.ServiceGetAttributeSingle, r.serviceGetAttributeSingle)
	cls.RegisterService(spec.ServiceSetAttributeSingle, r.serviceSetAttributeSingle)
	return r, nil
}

// CreateAssemblyInstance creates a CipInstance of class 0x04 at instanceID
// whose attribute 3 shares buffer with the caller. Passing an empty buffer
// creates the zero-length "heartbeat" form used by input-only and
// listen-only connections.
func (r *Registrar) CreateAssemblyInstance(instanceID uint16, buffer []byte) (*Instance, error) {
	if _, exists := r.instances[instanceID]; exists {
		return nil, fmt.Errorf("assembly: instance %d already exists", instanceID)
	}
	inst := &Instance{ID: instanceID, Buffer: buffer}
	attrs := map[byte]*object.Attribute{
		AttributeData: {
			Number: AttributeData,
			Type:   ciptypes.UsintArray,
			Access: object.AccessGet | object.AccessSet,
			Get: func(w *ciptypes.Writer) error {
				return w.PutBytes(inst.Buffer)
			},
			Set: func(rd *ciptypes.Reader) error {
				inst.Write(rd.Rest())
				return nil
			},
		},
	}
	if _, err := r.class.CreateInstance(instanceID, attrs); err != nil {
		return nil, err
	}
	r.instances[instanceID] = inst
	return inst, nil
}

// Instance returns the live *Instance for instanceID, if created.
func (r *Registrar) Instance(instanceID uint16) (*Instance, bool) {
	inst, ok := r.instances[instanceID]
	return inst, ok
}

// AfterAssemblyDataReceived forwards to the registrar's callbacks, letting
// callers outside the Set_Attribute_Single path (the Connection Manager's
// Forward-Open config-data step) reuse the same hook.
func (r *Registrar) AfterAssemblyDataReceived(inst *Instance) error {
	if r.callbacks == nil {
		return nil
	}
	return r.callbacks.AfterAssemblyDataReceived(inst)
}

func (r *Registrar) serviceGetAttributeSingle(inst *object.Instance, request []byte, resp *ciptypes.Writer) (spec.GeneralStatus, []uint16) {
	attr, ok := inst.Attribute(AttributeData)
	if !ok || !attr.Access.Readable() {
		return spec.StatusAttributeNotSupported, nil
	}
	if err := attr.Get(resp); err != nil {
		return spec.StatusDeviceStateConflict, nil
	}
	return spec.StatusSuccess, nil
}

func (r *Registrar) serviceSetAttributeSingle(inst *object.Instance, request []byte, resp *ciptypes.Writer) (spec.GeneralStatus, []uint16) {
	attr, ok := inst.Attribute(AttributeData)
	if !ok {
		return spec.StatusAttributeNotSupported, nil
	}
	if !attr.Access.Writable() {
		return spec.StatusAttributeNotSettable, nil
	}
	if err := attr.Set(ciptypes.NewReader(request)); err != nil {
		return spec.StatusInvalidAttributeValue, nil
	}
	assemblyInst, ok := r.instances[inst.ID]
	if ok && r.callbacks != nil {
		if err := r.callbacks.AfterAssemblyDataReceived(assemblyInst); err != nil {
			return spec.StatusDeviceStateConflict, nil
		}
	}
	return spec.StatusSuccess, nil
}
