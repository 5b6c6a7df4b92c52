// Package object implements the CIP object model: classes, instances and
// attributes, and the registry that binds them (spec.md §3, §4.2).
package object

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tturner/cipadapter/internal/cip/ciptypes"
	"github.com/tturner/cipadapter/internal/cip/spec"
)

// AccessFlags encodes whether an attribute may be read, written, or both.
type AccessFlags byte

const (
	AccessGet AccessFlags = 1 << iota
	AccessSet
)

func (a AccessFlags) Readable() bool { return a&AccessGet != 0 }
func (a AccessFlags) Writable() bool { return a&AccessSet != 0 }

// Attribute is a single (number, type, storage, access) tuple. Get/Set read
// or write through to whatever storage the instance owns; Assembly
// instances wire these to a borrowed byte slice, other objects wire them to
// struct fields.
type Attribute struct {
	Number byte
	Type   ciptypes.DataType
	Access AccessFlags
	Get    func(w *ciptypes.Writer) error
	Set    func(r *ciptypes.Reader) error
}

// Instance is a class member identified by a 16-bit instance_id, unique
// within its class. Instance 0 is reserved for class-level attributes.
type Instance struct {
	ID         uint16
	Class      *Class
	Attributes map[byte]*Attribute
}

// Attribute looks up one of the instance's attributes by number.
func (i *Instance) Attribute(number byte) (*Attribute, bool) {
	a, ok := i.Attributes[number]
	return a, ok
}

// ServiceFunc implements one CIP service for a class or instance. request
// is the service's request-data bytes (the payload after the EPATH); the
// function writes its reply payload into resp and returns the general
// status plus any additional (extended) status words, which the router
// carries into the Message Router Response's additional-status list
// (non-empty only for rejections such as Forward-Open's Connection Manager
// error enumeration).
type ServiceFunc func(inst *Instance, request []byte, resp *ciptypes.Writer) (spec.GeneralStatus, []uint16)

// Class is a CIP object class: an id, a revision, class-level attributes,
// a service table, and the live instance map.
type Class struct {
	ID                uint16
	Revision           uint16
	ClassAttributes    map[byte]*Attribute
	InstanceServices   map[byte]ServiceFunc
	Instances          map[uint16]*Instance
	nextAutoInstanceID uint16
}

// NewClass returns an empty class ready for instance creation and service
// registration.
func NewClass(id uint16, revision uint16) *Class {
	return &Class{
		ID:               id,
		Revision:         revision,
		ClassAttributes:  make(map[byte]*Attribute),
		InstanceServices: make(map[byte]ServiceFunc),
		Instances:        make(map[uint16]*Instance),
	}
}

// RegisterService binds a service code to its handler for every instance of
// this class.
func (c *Class) RegisterService(service byte, fn ServiceFunc) {
	c.InstanceServices[service] = fn
}

// CreateInstance allocates an instance at instanceID with the given
// attributes. Fails if the id is already taken.
func (c *Class) CreateInstance(instanceID uint16, attrs map[byte]*Attribute) (*Instance, error) {
	if _, exists := c.Instances[instanceID]; exists {
		return nil, fmt.Errorf("object: class 0x%02X instance %d already exists", c.ID, instanceID)
	}
	inst := &Instance{ID: instanceID, Class: c, Attributes: attrs}
	c.Instances[instanceID] = inst
	return inst, nil
}

// Instance looks up a live instance by id.
func (c *Class) Instance(instanceID uint16) (*Instance, bool) {
	inst, ok := c.Instances[instanceID]
	return inst, ok
}

// SortedInstanceIDs returns the class's instance ids in ascending order, the
// iteration order Registry.IterateInstances promises.
func (c *Class) SortedInstanceIDs() []uint16 {
	ids := make([]uint16, 0, len(c.Instances))
	for id := range c.Instances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Registry is the process-wide class_id → Class map plus, within each
// class, the instance_id → Instance map (spec.md §4.2). It is safe for
// concurrent reads; the stack's single-threaded cooperative model means
// writes only happen during init and Forward-Open/Forward-Close handling,
// which the Connection Manager already serializes onto one goroutine, but
// the mutex guards against a host wiring registry access from elsewhere
// (e.g. a diagnostics endpoint).
type Registry struct {
	mu      sync.RWMutex
	classes map[uint16]*Class
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{classes: make(map[uint16]*Class)}
}

// RegisterClass adds cls to the registry. Registration is one-shot per
// class_id; a duplicate registration fails.
func (r *Registry) RegisterClass(cls *Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.classes[cls.ID]; exists {
		return fmt.Errorf("object: class 0x%02X already registered", cls.ID)
	}
	r.classes[cls.ID] = cls
	return nil
}

// GetClass looks up a registered class by id.
func (r *Registry) GetClass(classID uint16) (*Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cls, ok := r.classes[classID]
	return cls, ok
}

// CreateInstance is a convenience wrapper that resolves the class then
// creates the instance on it.
func (r *Registry) CreateInstance(classID, instanceID uint16, attrs map[byte]*Attribute) (*Instance, error) {
	cls, ok := r.GetClass(classID)
	if !ok {
		return nil, fmt.Errorf("object: class 0x%02X not registered", classID)
	}
	return cls.CreateInstance(instanceID, attrs)
}

// GetInstance resolves (class_id, instance_id) to a live Instance.
func (r *Registry) GetInstance(classID, instanceID uint16) (*Instance, bool) {
	cls, ok := r.GetClass(classID)
	if !ok {
		return nil, false
	}
	return cls.Instance(instanceID)
}

// IterateInstances calls fn for every instance of classID, in ascending
// instance_id order, stopping early if fn returns false.
func (r *Registry) IterateInstances(classID uint16, fn func(*Instance) bool) {
	cls, ok := r.GetClass(classID)
	if !ok {
		return
	}
	for _, id := range cls.SortedInstanceIDs() {
		if !fn(cls.Instances[id]) {
			return
		}
	}
}

// SortedClassIDs returns registered class ids in ascending order.
func (r *Registry) SortedClassIDs() []uint16 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]uint16, 0, len(r.classes))
	for id := range r.classes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
