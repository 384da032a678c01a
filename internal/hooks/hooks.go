// Package hooks holds the host callbacks fired at each lifecycle boundary of
// the template manager and application engine. Every slot is optional; an
// unset slot is a no-op.
//
// Hooks run synchronously, in line with the call that triggers them. The
// values they receive are borrowed views and must not be retained after the
// callback returns. Only the apply/remove hooks receive a mutable Entity.
package hooks

import (
	"github.com/conneroisu/protoplast/internal/cycles"
	"github.com/conneroisu/protoplast/internal/registry"
	"github.com/conneroisu/protoplast/internal/schematic"
	"github.com/conneroisu/protoplast/internal/tree"
	"github.com/conneroisu/protoplast/internal/types"
	"github.com/conneroisu/protoplast/internal/world"
)

// TemplateHook observes a registered or reloaded template.
type TemplateHook func(template *registry.Template)

// UnregisterHook observes a template leaving the store.
type UnregisterHook func(id string, handle types.Handle)

// PrototypeHook fires around the application or removal of a whole template.
type PrototypeHook func(template *registry.Template, entity world.Entity, node *tree.Node)

// SchematicHook fires around the application or removal of one schematic.
// index is the schematic's position within node.Template.
type SchematicHook func(s *schematic.Schematic, index int, entity world.Entity, node *tree.Node)

// Hooks is the full set of lifecycle callbacks.
type Hooks struct {
	OnRegister   TemplateHook
	OnReload     TemplateHook
	OnUnregister UnregisterHook

	OnBeforeApplyPrototype  PrototypeHook
	OnAfterApplyPrototype   PrototypeHook
	OnBeforeRemovePrototype PrototypeHook
	OnAfterRemovePrototype  PrototypeHook

	OnBeforeApplySchematic  SchematicHook
	OnAfterApplySchematic   SchematicHook
	OnBeforeRemoveSchematic SchematicHook
	OnAfterRemoveSchematic  SchematicHook

	// OnCycle chooses the response to each cycle; nil means cycles.Default
	OnCycle cycles.Policy
}

// Register fires OnRegister.
func (h *Hooks) Register(template *registry.Template) {
	if h != nil && h.OnRegister != nil {
		h.OnRegister(template)
	}
}

// Reload fires OnReload.
func (h *Hooks) Reload(template *registry.Template) {
	if h != nil && h.OnReload != nil {
		h.OnReload(template)
	}
}

// Unregister fires OnUnregister.
func (h *Hooks) Unregister(id string, handle types.Handle) {
	if h != nil && h.OnUnregister != nil {
		h.OnUnregister(id, handle)
	}
}

// BeforeApplyPrototype fires OnBeforeApplyPrototype.
func (h *Hooks) BeforeApplyPrototype(entity world.Entity, node *tree.Node) {
	if h != nil && h.OnBeforeApplyPrototype != nil {
		h.OnBeforeApplyPrototype(node.Template, entity, node)
	}
}

// AfterApplyPrototype fires OnAfterApplyPrototype.
func (h *Hooks) AfterApplyPrototype(entity world.Entity, node *tree.Node) {
	if h != nil && h.OnAfterApplyPrototype != nil {
		h.OnAfterApplyPrototype(node.Template, entity, node)
	}
}

// BeforeRemovePrototype fires OnBeforeRemovePrototype.
func (h *Hooks) BeforeRemovePrototype(entity world.Entity, node *tree.Node) {
	if h != nil && h.OnBeforeRemovePrototype != nil {
		h.OnBeforeRemovePrototype(node.Template, entity, node)
	}
}

// AfterRemovePrototype fires OnAfterRemovePrototype.
func (h *Hooks) AfterRemovePrototype(entity world.Entity, node *tree.Node) {
	if h != nil && h.OnAfterRemovePrototype != nil {
		h.OnAfterRemovePrototype(node.Template, entity, node)
	}
}

// BeforeApplySchematic fires OnBeforeApplySchematic.
func (h *Hooks) BeforeApplySchematic(index int, entity world.Entity, node *tree.Node) {
	if h != nil && h.OnBeforeApplySchematic != nil {
		h.OnBeforeApplySchematic(&node.Template.Schematics[index], index, entity, node)
	}
}

// AfterApplySchematic fires OnAfterApplySchematic.
func (h *Hooks) AfterApplySchematic(index int, entity world.Entity, node *tree.Node) {
	if h != nil && h.OnAfterApplySchematic != nil {
		h.OnAfterApplySchematic(&node.Template.Schematics[index], index, entity, node)
	}
}

// BeforeRemoveSchematic fires OnBeforeRemoveSchematic.
func (h *Hooks) BeforeRemoveSchematic(index int, entity world.Entity, node *tree.Node) {
	if h != nil && h.OnBeforeRemoveSchematic != nil {
		h.OnBeforeRemoveSchematic(&node.Template.Schematics[index], index, entity, node)
	}
}

// AfterRemoveSchematic fires OnAfterRemoveSchematic.
func (h *Hooks) AfterRemoveSchematic(index int, entity world.Entity, node *tree.Node) {
	if h != nil && h.OnAfterRemoveSchematic != nil {
		h.OnAfterRemoveSchematic(&node.Template.Schematics[index], index, entity, node)
	}
}

// CyclePolicy returns the policy trees should be built with: OnCycle when
// set, otherwise cycles.Default.
func (h *Hooks) CyclePolicy() cycles.Policy {
	if h != nil && h.OnCycle != nil {
		return h.OnCycle
	}
	return cycles.Default()
}
