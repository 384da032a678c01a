// Package schematic defines the unit of behavior attached to a template and
// the dispatch table that maps a schematic type to its apply, remove and
// dependency-extraction functions.
//
// A Schematic is plain data: a type name, an input document and an optional
// dependency edge naming another template. Behavior lives in a Kind, looked
// up by type name in a Registry populated at startup.
package schematic

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/conneroisu/protoplast/internal/world"
)

// Target says which object a nested template is applied to.
type Target string

const (
	// TargetSelf applies the nested template to the same object.
	TargetSelf Target = "self"
	// TargetChild applies the nested template to a newly spawned child.
	TargetChild Target = "child"
)

// Valid reports whether t is a known target. The empty target means self.
func (t Target) Valid() bool {
	return t == "" || t == TargetSelf || t == TargetChild
}

// Dependency is an edge from a schematic to another template.
type Dependency struct {
	Template string `yaml:"template" json:"template" msgpack:"template"`
	Target   Target `yaml:"target,omitempty" json:"target,omitempty" msgpack:"target,omitempty"`
}

// Schematic is one typed behavior descriptor attached to a template. It is
// immutable once stored; Input is cloned before every apply or remove.
type Schematic struct {
	Type    string         `yaml:"type" json:"type" msgpack:"type"`
	Input   map[string]any `yaml:"input,omitempty" json:"input,omitempty" msgpack:"input,omitempty"`
	Depends *Dependency    `yaml:"depends,omitempty" json:"depends,omitempty" msgpack:"depends,omitempty"`
}

// Context is handed to a kind's apply and remove functions.
type Context struct {
	// Entity is the object the schematic acts on
	Entity world.Entity
	// Template is the id of the template the schematic belongs to
	Template string
	// Index is the schematic's position within the template
	Index int
}

// ApplyFunc inserts the schematic's effect into ctx.Entity.
type ApplyFunc func(ctx *Context, input map[string]any) error

// RemoveFunc undoes the effect of the matching ApplyFunc.
type RemoveFunc func(ctx *Context, input map[string]any) error

// DependencyFunc extracts the dependency edge a schematic declares through
// its input. It returns nil when the schematic names no template.
type DependencyFunc func(input map[string]any) (*Dependency, error)

// ValidateFunc checks a schematic input at registration time.
type ValidateFunc func(input map[string]any) error

// Kind is the behavior registered for one schematic type.
type Kind struct {
	Name       string
	Apply      ApplyFunc
	Remove     RemoveFunc
	Dependency DependencyFunc
	Validate   ValidateFunc
}

// Registry is the dispatch table from schematic type to Kind.
type Registry struct {
	kinds map[string]Kind
	mutex sync.RWMutex
}

// NewRegistry creates an empty dispatch table.
func NewRegistry() *Registry {
	return &Registry{
		kinds: make(map[string]Kind),
	}
}

// NewDefaultRegistry creates a dispatch table holding the built-in kinds.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, kind := range Builtins() {
		r.MustRegister(kind)
	}
	return r
}

// Register adds a kind. Registering the same name twice is an error.
func (r *Registry) Register(kind Kind) error {
	if kind.Name == "" {
		return fmt.Errorf("schematic kind has no name")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.kinds[kind.Name]; exists {
		return fmt.Errorf("schematic kind %q already registered", kind.Name)
	}
	r.kinds[kind.Name] = kind
	return nil
}

// MustRegister is Register that panics on error, for use at startup.
func (r *Registry) MustRegister(kind Kind) {
	if err := r.Register(kind); err != nil {
		panic(err)
	}
}

// Lookup returns the kind registered under name.
func (r *Registry) Lookup(name string) (Kind, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	kind, ok := r.kinds[name]
	return kind, ok
}

// Names returns the registered kind names in sorted order.
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	names := make([]string, 0, len(r.kinds))
	for name := range r.kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that s has a registered type, a well-formed dependency
// and an input its kind accepts.
func (r *Registry) Validate(s Schematic) error {
	kind, ok := r.Lookup(s.Type)
	if !ok {
		return &UnknownTypeError{Type: s.Type}
	}
	if kind.Validate != nil {
		if err := kind.Validate(s.Input); err != nil {
			return fmt.Errorf("schematic %s: %w", s.Type, err)
		}
	}
	if _, err := r.Dependency(s); err != nil {
		return err
	}
	return nil
}

// Dependency returns the template edge s declares, or nil. An explicit
// Depends field wins over the kind's extractor. The returned target is
// never empty.
func (r *Registry) Dependency(s Schematic) (*Dependency, error) {
	var dep *Dependency
	if s.Depends != nil {
		d := *s.Depends
		dep = &d
	} else if kind, ok := r.Lookup(s.Type); ok && kind.Dependency != nil {
		d, err := kind.Dependency(s.Input)
		if err != nil {
			return nil, fmt.Errorf("schematic %s: %w", s.Type, err)
		}
		dep = d
	}
	if dep == nil {
		return nil, nil
	}
	if dep.Template == "" {
		return nil, fmt.Errorf("schematic %s: dependency names no template", s.Type)
	}
	if !dep.Target.Valid() {
		return nil, fmt.Errorf("schematic %s: unknown dependency target %q", s.Type, dep.Target)
	}
	if dep.Target == "" {
		dep.Target = TargetSelf
	}
	return dep, nil
}

// UnknownTypeError is returned for a schematic whose type has no kind.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown schematic type %q", e.Type)
}

// Clone deep-copies a schematic input so a runtime instance never shares
// maps or slices with the stored template. Scalars keep their concrete Go
// type; any other value is copied through msgpack into a fresh value of the
// same type.
func Clone(input map[string]any) (map[string]any, error) {
	if input == nil {
		return nil, nil
	}
	out, err := cloneValue(input)
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

func cloneValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		if x == nil {
			return x, nil
		}
		out := make(map[string]any, len(x))
		for k, item := range x {
			c, err := cloneValue(item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = c
		}
		return out, nil
	case []any:
		if x == nil {
			return x, nil
		}
		out := make([]any, len(x))
		for i, item := range x {
			c, err := cloneValue(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = c
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return v, nil
	}

	packed, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding schematic input: %w", err)
	}
	copied := reflect.New(rv.Type())
	if err := msgpack.Unmarshal(packed, copied.Interface()); err != nil {
		return nil, fmt.Errorf("decoding schematic input: %w", err)
	}
	return copied.Elem().Interface(), nil
}
