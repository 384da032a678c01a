// Package tree resolves a template and its nested template references into
// a dependency tree: an arena of (template, object) application steps
// addressed by index, built fresh for every apply or remove request.
//
// Cycles are found with an active-path stack of template ids. When a
// dependency names an id already on the stack, the cycle is handed to the
// configured policy, which either prunes the closing edge or aborts the
// build. A dependency on an unregistered id always aborts the build; a
// partial tree is never returned.
package tree

import (
	"fmt"

	"github.com/conneroisu/protoplast/internal/cycles"
	"github.com/conneroisu/protoplast/internal/errors"
	"github.com/conneroisu/protoplast/internal/registry"
	"github.com/conneroisu/protoplast/internal/schematic"
	"github.com/conneroisu/protoplast/internal/types"
)

// Node is one application step.
type Node struct {
	// Index is the node's position in the arena; nodes are stored in
	// depth-first pre-order, so Index is also the apply order of the
	// nodes' before hooks
	Index int
	// Template is a borrowed snapshot from the store
	Template *registry.Template
	// Object is the target object when it is known at build time: the
	// root object and every node reached from it through self edges.
	// Nodes at or below a child edge carry types.NoObject; their object
	// is created when the tree is applied.
	Object types.ObjectID
	// Target is how the node attaches to its parent
	Target schematic.Target
	// Parent is the parent's index, -1 for the root
	Parent int
	// Schematic is the index of the parent schematic that produced this
	// node, -1 for the root
	Schematic int
	// Children are child indexes in the parent's schematic order
	Children []int
	// Depth is 0 for the root
	Depth int
}

// IsRoot reports whether n is the tree root.
func (n *Node) IsRoot() bool {
	return n.Parent < 0
}

// Tree is a resolved dependency tree.
type Tree struct {
	nodes  []Node
	pruned []cycles.Cycle
}

// Root returns the root node.
func (t *Tree) Root() *Node {
	return &t.nodes[0]
}

// Node returns the node at index i.
func (t *Tree) Node(i int) *Node {
	return &t.nodes[i]
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Children returns the child nodes of n in schematic order.
func (t *Tree) Children(n *Node) []*Node {
	children := make([]*Node, len(n.Children))
	for i, idx := range n.Children {
		children[i] = &t.nodes[idx]
	}
	return children
}

// Pruned returns the cycles cut from the tree under a Cancel response.
func (t *Tree) Pruned() []cycles.Cycle {
	return t.pruned
}

// Templates returns the distinct template ids in the tree in pre-order.
func (t *Tree) Templates() []string {
	seen := make(map[string]bool, len(t.nodes))
	ids := make([]string, 0, len(t.nodes))
	for i := range t.nodes {
		id := t.nodes[i].Template.ID
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// Lookup fetches templates by id. *registry.Store satisfies it.
type Lookup interface {
	Get(id string) (*registry.Template, bool)
}

// Builder builds dependency trees.
type Builder struct {
	store  Lookup
	kinds  *schematic.Registry
	policy cycles.Policy
}

// NewBuilder creates a builder. A nil policy selects cycles.Default.
func NewBuilder(store Lookup, kinds *schematic.Registry, policy cycles.Policy) *Builder {
	if policy == nil {
		policy = cycles.Default()
	}
	return &Builder{
		store:  store,
		kinds:  kinds,
		policy: policy,
	}
}

// Build resolves the template id against obj. It fails with
// ERR_UNKNOWN_TEMPLATE when id is not registered.
func (b *Builder) Build(id string, obj types.ObjectID) (*Tree, error) {
	root, ok := b.store.Get(id)
	if !ok {
		return nil, errors.ErrUnknownTemplate(id)
	}
	return b.BuildFrom(root, obj)
}

// BuildFrom resolves a template snapshot against obj. Nested references are
// looked up in the store; the root itself is not, which lets a reload
// tear down the previous revision of a template.
func (b *Builder) BuildFrom(root *registry.Template, obj types.ObjectID) (*Tree, error) {
	t := &Tree{nodes: make([]Node, 0, 1+len(root.Schematics))}
	t.nodes = append(t.nodes, Node{
		Index:     0,
		Template:  root,
		Object:    obj,
		Target:    schematic.TargetSelf,
		Parent:    -1,
		Schematic: -1,
	})

	path := []string{root.ID}
	if err := b.resolve(t, 0, path); err != nil {
		return nil, err
	}
	return t, nil
}

func (b *Builder) resolve(t *Tree, idx int, path []string) error {
	template := t.nodes[idx].Template

	for i, s := range template.Schematics {
		dep, err := b.kinds.Dependency(s)
		if err != nil {
			return errors.ErrInvalidDefinition(template.Source, err.Error()).WithTemplate(template.ID)
		}
		if dep == nil {
			continue
		}

		if at := indexOf(path, dep.Template); at >= 0 {
			cycle := cycles.Cycle{
				Path:      append(append([]string(nil), path[at:]...), dep.Template),
				Schematic: i,
			}
			switch response := b.policy(cycle); response {
			case cycles.Cancel:
				t.pruned = append(t.pruned, cycle)
				continue
			case cycles.Panic:
				return errors.ErrCycleDetected(cycle.Path)
			default:
				return errors.NewInternalError(errors.ErrCodeInternalError,
					fmt.Sprintf("cycle policy returned unknown response %d", response), nil)
			}
		}

		child, ok := b.store.Get(dep.Template)
		if !ok {
			return errors.ErrMissingDependency(dep.Template, template.ID)
		}

		parent := &t.nodes[idx]
		object := parent.Object
		if dep.Target == schematic.TargetChild {
			object = types.NoObject
		}
		childIdx := len(t.nodes)
		t.nodes = append(t.nodes, Node{
			Index:     childIdx,
			Template:  child,
			Object:    object,
			Target:    dep.Target,
			Parent:    idx,
			Schematic: i,
			Depth:     parent.Depth + 1,
		})
		// append may have moved the arena
		t.nodes[idx].Children = append(t.nodes[idx].Children, childIdx)

		if err := b.resolve(t, childIdx, append(path, dep.Template)); err != nil {
			return err
		}
	}
	return nil
}

func indexOf(path []string, id string) int {
	for i, p := range path {
		if p == id {
			return i
		}
	}
	return -1
}
