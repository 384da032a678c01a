// Package engine walks resolved dependency trees and drives schematic apply
// and remove against the host world, firing hooks at every template and
// schematic boundary.
//
// Apply order for one node: before_apply_prototype, the node's schematics in
// declaration order (each wrapped in before/after_apply_schematic), the
// node's children in schematic order, after_apply_prototype. Remove is the
// mirror image: before_remove_prototype, children in reverse order,
// schematics in reverse order, after_remove_prototype.
//
// A failing schematic halts the walk. Schematics already applied stay
// applied; there is no rollback.
package engine

import (
	"context"

	"github.com/conneroisu/protoplast/internal/errors"
	"github.com/conneroisu/protoplast/internal/hooks"
	"github.com/conneroisu/protoplast/internal/logging"
	"github.com/conneroisu/protoplast/internal/schematic"
	"github.com/conneroisu/protoplast/internal/tree"
	"github.com/conneroisu/protoplast/internal/types"
	"github.com/conneroisu/protoplast/internal/world"
)

// State is the progress of one request.
type State int

const (
	StateNotStarted State = iota
	StateRemovingOld
	StateApplyingSelf
	StateApplyingChildren
	StateComplete
	StateFailed
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateRemovingOld:
		return "removing-old"
	case StateApplyingSelf:
		return "applying-self"
	case StateApplyingChildren:
		return "applying-children"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Execution records the outcome of one apply, remove or reapply request.
type Execution struct {
	state   State
	history []State
	err     error
	applied int
	removed int
	root    types.ObjectID
}

func newExecution() *Execution {
	return &Execution{state: StateNotStarted, history: []State{StateNotStarted}}
}

func (x *Execution) enter(s State) {
	if x.state == s {
		return
	}
	x.state = s
	x.history = append(x.history, s)
}

func (x *Execution) fail(err error) error {
	x.err = err
	x.enter(StateFailed)
	return err
}

// State returns the terminal (or current) state.
func (x *Execution) State() State { return x.state }

// History returns every state the request passed through, in order.
func (x *Execution) History() []State { return append([]State(nil), x.history...) }

// Err returns the error that failed the request, if any.
func (x *Execution) Err() error { return x.err }

// Applied returns how many schematics were applied.
func (x *Execution) Applied() int { return x.applied }

// Removed returns how many schematics were removed.
func (x *Execution) Removed() int { return x.removed }

// Root returns the object the tree root was applied to.
func (x *Execution) Root() types.ObjectID { return x.root }

// Engine applies and removes dependency trees.
type Engine struct {
	world  world.World
	kinds  *schematic.Registry
	hooks  *hooks.Hooks
	logger logging.Logger
}

// New creates an engine. hooks and logger may be nil.
func New(w world.World, kinds *schematic.Registry, h *hooks.Hooks, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Engine{
		world:  w,
		kinds:  kinds,
		hooks:  h,
		logger: logger.WithComponent("engine"),
	}
}

// walk holds the request-scoped object assignment for one tree.
type walk struct {
	tree    *tree.Tree
	objects []types.ObjectID
	claimed map[types.ObjectID]bool
}

func newWalk(t *tree.Tree) *walk {
	w := &walk{
		tree:    t,
		objects: make([]types.ObjectID, t.Len()),
		claimed: make(map[types.ObjectID]bool),
	}
	w.objects[0] = t.Root().Object
	return w
}

// Apply applies t to its root object.
func (e *Engine) Apply(ctx context.Context, t *tree.Tree) (*Execution, error) {
	x := newExecution()
	x.root = t.Root().Object
	if err := e.checkRoot(t); err != nil {
		return x, x.fail(err)
	}
	if err := e.applyNode(ctx, x, newWalk(t), t.Root()); err != nil {
		return x, x.fail(err)
	}
	x.enter(StateComplete)
	return x, nil
}

// Remove removes t from its root object.
func (e *Engine) Remove(ctx context.Context, t *tree.Tree) (*Execution, error) {
	x := newExecution()
	x.root = t.Root().Object
	x.enter(StateRemovingOld)
	if err := e.checkRoot(t); err != nil {
		return x, x.fail(err)
	}
	if err := e.removeNode(ctx, x, newWalk(t), t.Root()); err != nil {
		return x, x.fail(err)
	}
	x.enter(StateComplete)
	return x, nil
}

// Reapply removes previous and then applies next on the same root object.
// previous may be nil, in which case only the apply phase runs.
func (e *Engine) Reapply(ctx context.Context, previous, next *tree.Tree) (*Execution, error) {
	x := newExecution()
	x.root = next.Root().Object
	if err := e.checkRoot(next); err != nil {
		return x, x.fail(err)
	}
	if previous != nil {
		x.enter(StateRemovingOld)
		if err := e.removeNode(ctx, x, newWalk(previous), previous.Root()); err != nil {
			return x, x.fail(err)
		}
	}
	if err := e.applyNode(ctx, x, newWalk(next), next.Root()); err != nil {
		return x, x.fail(err)
	}
	x.enter(StateComplete)
	return x, nil
}

func (e *Engine) checkRoot(t *tree.Tree) error {
	root := t.Root()
	if root.Object == types.NoObject || !e.world.Exists(root.Object) {
		return errors.ErrUnknownObject(root.Template.ID, root.Object)
	}
	return nil
}

func (e *Engine) applyNode(ctx context.Context, x *Execution, w *walk, node *tree.Node) error {
	obj := w.objects[node.Index]
	if !node.IsRoot() {
		parentObj := w.objects[node.Parent]
		if node.Target == schematic.TargetChild {
			obj = e.world.Spawn(parentObj)
		} else {
			obj = parentObj
		}
		w.objects[node.Index] = obj
	}
	entity := world.NewEntity(e.world, obj)
	template := node.Template

	e.logger.Debug(ctx, "Applying template",
		"template", template.ID,
		"object", obj.String(),
		"depth", node.Depth)

	e.world.Bind(obj, template.ID)

	x.enter(StateApplyingSelf)
	e.hooks.BeforeApplyPrototype(entity, node)
	for i := range template.Schematics {
		if err := e.applySchematic(x, entity, node, i); err != nil {
			return err
		}
	}

	if len(node.Children) > 0 {
		x.enter(StateApplyingChildren)
		for _, child := range w.tree.Children(node) {
			if err := e.applyNode(ctx, x, w, child); err != nil {
				return err
			}
		}
	}

	e.hooks.AfterApplyPrototype(entity, node)
	return nil
}

func (e *Engine) applySchematic(x *Execution, entity world.Entity, node *tree.Node, index int) error {
	s := node.Template.Schematics[index]
	e.hooks.BeforeApplySchematic(index, entity, node)

	kind, ok := e.kinds.Lookup(s.Type)
	if !ok {
		return errors.ErrSchematicApplyFailed(node.Template.ID, index, s.Type, entity.ID(),
			errors.ErrUnknownSchematicType(node.Template.ID, s.Type))
	}
	if kind.Apply != nil {
		input, err := schematic.Clone(s.Input)
		if err == nil {
			err = kind.Apply(&schematic.Context{Entity: entity, Template: node.Template.ID, Index: index}, input)
		}
		if err != nil {
			return errors.ErrSchematicApplyFailed(node.Template.ID, index, s.Type, entity.ID(), err)
		}
	}
	x.applied++

	e.hooks.AfterApplySchematic(index, entity, node)
	return nil
}

func (e *Engine) removeNode(ctx context.Context, x *Execution, w *walk, node *tree.Node) error {
	obj := w.objects[node.Index]
	if !node.IsRoot() {
		parentObj := w.objects[node.Parent]
		if node.Target == schematic.TargetChild {
			obj = e.findChild(w, parentObj, node.Template.ID)
			if obj == types.NoObject {
				e.logger.Debug(ctx, "No child object to remove",
					"template", node.Template.ID,
					"parent", parentObj.String())
				return nil
			}
		} else {
			obj = parentObj
		}
		w.objects[node.Index] = obj
	}
	entity := world.NewEntity(e.world, obj)
	template := node.Template

	e.logger.Debug(ctx, "Removing template",
		"template", template.ID,
		"object", obj.String(),
		"depth", node.Depth)

	e.hooks.BeforeRemovePrototype(entity, node)

	children := w.tree.Children(node)
	for i := len(children) - 1; i >= 0; i-- {
		if err := e.removeNode(ctx, x, w, children[i]); err != nil {
			return err
		}
	}

	for i := len(template.Schematics) - 1; i >= 0; i-- {
		if err := e.removeSchematic(x, entity, node, i); err != nil {
			return err
		}
	}

	e.hooks.AfterRemovePrototype(entity, node)
	e.world.Unbind(obj, template.ID)

	if !node.IsRoot() && node.Target == schematic.TargetChild {
		if err := e.world.Despawn(obj); err != nil {
			return errors.ErrSchematicRemoveFailed(w.tree.Node(node.Parent).Template.ID, node.Schematic,
				schematic.TypeChild, obj, err)
		}
	}
	return nil
}

func (e *Engine) removeSchematic(x *Execution, entity world.Entity, node *tree.Node, index int) error {
	s := node.Template.Schematics[index]
	e.hooks.BeforeRemoveSchematic(index, entity, node)

	kind, ok := e.kinds.Lookup(s.Type)
	if !ok {
		return errors.ErrSchematicRemoveFailed(node.Template.ID, index, s.Type, entity.ID(),
			errors.ErrUnknownSchematicType(node.Template.ID, s.Type))
	}
	if kind.Remove != nil {
		input, err := schematic.Clone(s.Input)
		if err == nil {
			err = kind.Remove(&schematic.Context{Entity: entity, Template: node.Template.ID, Index: index}, input)
		}
		if err != nil {
			return errors.ErrSchematicRemoveFailed(node.Template.ID, index, s.Type, entity.ID(), err)
		}
	}
	x.removed++

	e.hooks.AfterRemoveSchematic(index, entity, node)
	return nil
}

// findChild returns the first child of parent bound to template that this
// walk has not already claimed.
func (e *Engine) findChild(w *walk, parent types.ObjectID, template string) types.ObjectID {
	for _, child := range e.world.Children(parent) {
		if w.claimed[child] {
			continue
		}
		for _, bound := range e.world.Templates(child) {
			if bound == template {
				w.claimed[child] = true
				return child
			}
		}
	}
	return types.NoObject
}
