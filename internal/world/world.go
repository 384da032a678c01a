// Package world defines the host object model that templates are applied to
// and provides Memory, an in-process implementation used by the CLI and tests.
//
// The engine only needs a small set of primitives: create a child object,
// insert and remove a typed capability, and a relation recording which
// templates are currently applied to which objects. Hosts with their own
// entity system implement World on top of it.
package world

import (
	"fmt"
	"sort"
	"sync"

	"github.com/conneroisu/protoplast/internal/types"
)

// World is the object/runtime interface the engine drives.
type World interface {
	// Spawn creates a new object. A parent of types.NoObject creates a root.
	Spawn(parent types.ObjectID) types.ObjectID
	// Despawn destroys an object and everything below it.
	Despawn(obj types.ObjectID) error
	// Exists reports whether the object is alive.
	Exists(obj types.ObjectID) bool
	// Children returns the direct children of obj in creation order.
	Children(obj types.ObjectID) []types.ObjectID

	// Insert attaches (or replaces) the capability typeID on obj.
	Insert(obj types.ObjectID, typeID string, payload any) error
	// Remove detaches the capability typeID from obj. Removing an absent
	// capability is not an error.
	Remove(obj types.ObjectID, typeID string) error
	// Capability returns the payload of typeID on obj.
	Capability(obj types.ObjectID, typeID string) (any, bool)

	// Bind records that template is applied to obj.
	Bind(obj types.ObjectID, template string)
	// Unbind drops the record that template is applied to obj.
	Unbind(obj types.ObjectID, template string)
	// Bound returns the objects template is applied to, in bind order.
	Bound(template string) []types.ObjectID
	// Templates returns the templates applied to obj, in bind order.
	Templates(obj types.ObjectID) []string
}

// Entity is a borrowed view of one object, handed to schematics and hooks.
// It must not be retained past the call it was passed to.
type Entity struct {
	id    types.ObjectID
	world World
}

// NewEntity returns a view of obj in w.
func NewEntity(w World, obj types.ObjectID) Entity {
	return Entity{id: obj, world: w}
}

// ID returns the object id.
func (e Entity) ID() types.ObjectID { return e.id }

// World returns the world the object lives in.
func (e Entity) World() World { return e.world }

// Insert attaches a capability to the object.
func (e Entity) Insert(typeID string, payload any) error {
	return e.world.Insert(e.id, typeID, payload)
}

// Remove detaches a capability from the object.
func (e Entity) Remove(typeID string) error {
	return e.world.Remove(e.id, typeID)
}

// Get returns a capability payload.
func (e Entity) Get(typeID string) (any, bool) {
	return e.world.Capability(e.id, typeID)
}

// Has reports whether the capability is present.
func (e Entity) Has(typeID string) bool {
	_, ok := e.world.Capability(e.id, typeID)
	return ok
}

type object struct {
	parent       types.ObjectID
	children     []types.ObjectID
	capabilities map[string]any
	templates    []string
}

// Memory is a World kept entirely in process memory.
type Memory struct {
	objects map[types.ObjectID]*object
	bound   map[string][]types.ObjectID
	nextID  types.ObjectID
	mutex   sync.RWMutex
}

// NewMemory creates an empty in-memory world.
func NewMemory() *Memory {
	return &Memory{
		objects: make(map[types.ObjectID]*object),
		bound:   make(map[string][]types.ObjectID),
	}
}

// Spawn creates a new object
func (m *Memory) Spawn(parent types.ObjectID) types.ObjectID {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.nextID++
	id := m.nextID
	m.objects[id] = &object{
		parent:       parent,
		capabilities: make(map[string]any),
	}
	if p, ok := m.objects[parent]; ok {
		p.children = append(p.children, id)
	}
	return id
}

// Despawn destroys obj and its descendants
func (m *Memory) Despawn(obj types.ObjectID) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	o, ok := m.objects[obj]
	if !ok {
		return fmt.Errorf("despawn %s: no such object", obj)
	}
	if p, ok := m.objects[o.parent]; ok {
		p.children = removeObject(p.children, obj)
	}
	m.despawnLocked(obj)
	return nil
}

func (m *Memory) despawnLocked(obj types.ObjectID) {
	o, ok := m.objects[obj]
	if !ok {
		return
	}
	for _, child := range o.children {
		m.despawnLocked(child)
	}
	for _, template := range o.templates {
		m.bound[template] = removeObject(m.bound[template], obj)
		if len(m.bound[template]) == 0 {
			delete(m.bound, template)
		}
	}
	delete(m.objects, obj)
}

// Exists reports whether obj is alive
func (m *Memory) Exists(obj types.ObjectID) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, ok := m.objects[obj]
	return ok
}

// Children returns the children of obj
func (m *Memory) Children(obj types.ObjectID) []types.ObjectID {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	o, ok := m.objects[obj]
	if !ok {
		return nil
	}
	return append([]types.ObjectID(nil), o.children...)
}

// Parent returns the parent of obj, or types.NoObject for roots.
func (m *Memory) Parent(obj types.ObjectID) types.ObjectID {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if o, ok := m.objects[obj]; ok {
		return o.parent
	}
	return types.NoObject
}

// Insert attaches a capability
func (m *Memory) Insert(obj types.ObjectID, typeID string, payload any) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	o, ok := m.objects[obj]
	if !ok {
		return fmt.Errorf("insert %s into %s: no such object", typeID, obj)
	}
	o.capabilities[typeID] = payload
	return nil
}

// Remove detaches a capability
func (m *Memory) Remove(obj types.ObjectID, typeID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	o, ok := m.objects[obj]
	if !ok {
		return fmt.Errorf("remove %s from %s: no such object", typeID, obj)
	}
	delete(o.capabilities, typeID)
	return nil
}

// Capability returns a capability payload
func (m *Memory) Capability(obj types.ObjectID, typeID string) (any, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	o, ok := m.objects[obj]
	if !ok {
		return nil, false
	}
	payload, ok := o.capabilities[typeID]
	return payload, ok
}

// Capabilities returns the sorted capability type ids present on obj.
func (m *Memory) Capabilities(obj types.ObjectID) []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	o, ok := m.objects[obj]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(o.capabilities))
	for name := range o.capabilities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bind records template as applied to obj. Binding twice is a no-op.
func (m *Memory) Bind(obj types.ObjectID, template string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	o, ok := m.objects[obj]
	if !ok {
		return
	}
	for _, t := range o.templates {
		if t == template {
			return
		}
	}
	o.templates = append(o.templates, template)
	m.bound[template] = append(m.bound[template], obj)
}

// Unbind drops the template record for obj
func (m *Memory) Unbind(obj types.ObjectID, template string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if o, ok := m.objects[obj]; ok {
		for i, t := range o.templates {
			if t == template {
				o.templates = append(o.templates[:i], o.templates[i+1:]...)
				break
			}
		}
	}
	m.bound[template] = removeObject(m.bound[template], obj)
	if len(m.bound[template]) == 0 {
		delete(m.bound, template)
	}
}

// Bound returns the objects template is applied to
func (m *Memory) Bound(template string) []types.ObjectID {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return append([]types.ObjectID(nil), m.bound[template]...)
}

// Templates returns the templates applied to obj
func (m *Memory) Templates(obj types.ObjectID) []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	o, ok := m.objects[obj]
	if !ok {
		return nil
	}
	return append([]string(nil), o.templates...)
}

// Count returns the number of live objects.
func (m *Memory) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.objects)
}

func removeObject(list []types.ObjectID, obj types.ObjectID) []types.ObjectID {
	for i, id := range list {
		if id == obj {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
