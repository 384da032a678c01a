// Package manager is the entry point hosts call into: it keeps the template
// store consistent under register, reload and unregister, and turns spawn,
// apply and remove requests into dependency trees run by the engine.
//
// Requests are expected to be serialized by the caller. Hooks run in line
// with the request that fired them; a hook that starts a nested mutation of
// a template the outer request is still processing gets ERR_REENTRANT_OPERATION.
package manager

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"

	"github.com/conneroisu/protoplast/internal/engine"
	"github.com/conneroisu/protoplast/internal/errors"
	"github.com/conneroisu/protoplast/internal/hooks"
	"github.com/conneroisu/protoplast/internal/logging"
	"github.com/conneroisu/protoplast/internal/registry"
	"github.com/conneroisu/protoplast/internal/schematic"
	"github.com/conneroisu/protoplast/internal/tree"
	"github.com/conneroisu/protoplast/internal/types"
	"github.com/conneroisu/protoplast/internal/world"
)

// Option configures a Manager.
type Option func(*Manager)

// WithHooks sets the lifecycle hooks. The cycle policy is taken from
// hooks.OnCycle.
func WithHooks(h *hooks.Hooks) Option {
	return func(m *Manager) { m.hooks = h }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithKinds replaces the default schematic kind registry.
func WithKinds(kinds *schematic.Registry) Option {
	return func(m *Manager) {
		if kinds != nil {
			m.kinds = kinds
		}
	}
}

// WithStore uses an existing template store.
func WithStore(store *registry.Store) Option {
	return func(m *Manager) {
		if store != nil {
			m.store = store
		}
	}
}

// Manager orchestrates the template store, tree builder and engine.
type Manager struct {
	store   *registry.Store
	kinds   *schematic.Registry
	world   world.World
	hooks   *hooks.Hooks
	logger  logging.Logger
	builder *tree.Builder
	engine  *engine.Engine

	mu         sync.Mutex
	processing map[string]string
}

// New creates a manager driving w.
func New(w world.World, opts ...Option) *Manager {
	m := &Manager{
		store:      registry.NewStore(),
		kinds:      schematic.NewDefaultRegistry(),
		world:      w,
		logger:     logging.NewNopLogger(),
		processing: make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithComponent("manager")
	m.builder = tree.NewBuilder(m.store, m.kinds, m.hooks.CyclePolicy())
	m.engine = engine.New(w, m.kinds, m.hooks, m.logger)
	return m
}

// Store returns the template store.
func (m *Manager) Store() *registry.Store { return m.store }

// Kinds returns the schematic kind registry.
func (m *Manager) Kinds() *schematic.Registry { return m.kinds }

// World returns the world templates are applied to.
func (m *Manager) World() world.World { return m.world }

// Analyzer returns a static dependency analyzer over the store.
func (m *Manager) Analyzer() *registry.DependencyAnalyzer {
	return registry.NewDependencyAnalyzer(m.store, m.kinds)
}

// Register validates def and inserts it as a new template.
func (m *Manager) Register(ctx context.Context, def registry.Definition) (types.Handle, error) {
	if err := m.validate(def); err != nil {
		return types.InvalidHandle, err
	}
	release, err := m.enter("register", def.ID)
	if err != nil {
		return types.InvalidHandle, err
	}
	defer release()

	template, err := m.store.Insert(def)
	if err != nil {
		return types.InvalidHandle, err
	}

	m.logger.Debug(ctx, "Template registered",
		"template", template.ID,
		"handle", template.Handle.String(),
		"schematics", len(template.Schematics))
	m.hooks.Register(template)
	return template.Handle, nil
}

// Reload replaces the schematics of an existing template, keeping its
// handle, then re-applies it to every object currently bound to it in bind
// order: the previous revision is removed and the new one applied. The
// first failure stops the queue and is returned; the store keeps the new
// revision either way.
func (m *Manager) Reload(ctx context.Context, def registry.Definition) error {
	op := logging.StartOperation(m.logger, "reload")
	if err := m.validate(def); err != nil {
		op.EndWithError(ctx, err)
		return err
	}
	release, err := m.enter("reload", def.ID)
	if err != nil {
		op.EndWithError(ctx, err)
		return err
	}
	defer release()

	previous, current, err := m.store.Replace(def)
	if err != nil {
		op.EndWithError(ctx, err)
		return err
	}

	m.logger.Debug(ctx, "Template reloaded",
		"template", current.ID,
		"handle", current.Handle.String(),
		"revision", current.Revision,
		"version", current.Version)
	m.hooks.Reload(current)

	queue := m.world.Bound(current.ID)
	for len(queue) > 0 {
		obj := queue[0]
		queue = queue[1:]
		if !m.world.Exists(obj) {
			continue
		}
		if err := m.reapply(ctx, previous, obj); err != nil {
			m.logger.Error(ctx, err, "Re-application failed",
				"template", current.ID,
				"object", obj.String(),
				"pending", len(queue))
			op.EndWithError(ctx, err)
			return err
		}
	}

	op.End(ctx)
	return nil
}

func (m *Manager) reapply(ctx context.Context, previous *registry.Template, obj types.ObjectID) error {
	old, err := m.builder.BuildFrom(previous, obj)
	if err != nil {
		return err
	}
	next, err := m.builder.Build(previous.ID, obj)
	if err != nil {
		return err
	}
	m.warnPruned(ctx, next)

	release, err := m.enter("reload", without(union(old.Templates(), next.Templates()), previous.ID)...)
	if err != nil {
		return err
	}
	defer release()

	_, err = m.engine.Reapply(ctx, old, next)
	return err
}

// Unregister removes a template from the store. Objects it was applied to
// keep their state and their binding; only future requests are affected.
func (m *Manager) Unregister(ctx context.Context, id string) error {
	release, err := m.enter("unregister", id)
	if err != nil {
		return err
	}
	defer release()

	template, err := m.store.Remove(id)
	if err != nil {
		return err
	}

	m.logger.Debug(ctx, "Template unregistered",
		"template", id,
		"handle", template.Handle.String(),
		"bound_objects", len(m.world.Bound(id)))
	m.hooks.Unregister(id, template.Handle)
	return nil
}

// Lookup returns the current snapshot of a template.
func (m *Manager) Lookup(id string) (*registry.Template, bool) {
	return m.store.Get(id)
}

// LookupHandle returns the current snapshot of a template by handle.
func (m *Manager) LookupHandle(handle types.Handle) (*registry.Template, bool) {
	return m.store.GetByHandle(handle)
}

// Apply resolves id against obj and applies the resulting tree. Tree
// construction failures abort before anything is applied.
func (m *Manager) Apply(ctx context.Context, obj types.ObjectID, id string) (*engine.Execution, error) {
	return m.run(ctx, "apply", obj, id, m.engine.Apply)
}

// Remove resolves id against obj and runs the removal walk.
func (m *Manager) Remove(ctx context.Context, obj types.ObjectID, id string) (*engine.Execution, error) {
	return m.run(ctx, "remove", obj, id, m.engine.Remove)
}

// Spawn creates a new root object and applies id to it. If the tree cannot
// be built the object is despawned again; if the apply fails the object is
// returned with whatever state was applied.
func (m *Manager) Spawn(ctx context.Context, id string) (types.ObjectID, error) {
	obj := m.world.Spawn(types.NoObject)
	t, err := m.build(ctx, id, obj)
	if err != nil {
		_ = m.world.Despawn(obj)
		return types.NoObject, err
	}
	if _, err := m.execute(ctx, "spawn", t, m.engine.Apply); err != nil {
		return obj, err
	}
	return obj, nil
}

type walkFunc func(context.Context, *tree.Tree) (*engine.Execution, error)

func (m *Manager) run(ctx context.Context, operation string, obj types.ObjectID, id string, walk walkFunc) (*engine.Execution, error) {
	t, err := m.build(ctx, id, obj)
	if err != nil {
		return nil, err
	}
	return m.execute(ctx, operation, t, walk)
}

func (m *Manager) build(ctx context.Context, id string, obj types.ObjectID) (*tree.Tree, error) {
	t, err := m.builder.Build(id, obj)
	if err != nil {
		m.logger.Error(ctx, err, "Dependency tree construction failed",
			"template", id,
			"object", obj.String())
		return nil, err
	}
	m.warnPruned(ctx, t)
	return t, nil
}

func (m *Manager) execute(ctx context.Context, operation string, t *tree.Tree, walk walkFunc) (*engine.Execution, error) {
	release, err := m.enter(operation, t.Templates()...)
	if err != nil {
		return nil, err
	}
	defer release()

	op := logging.StartOperation(m.logger.With("template", t.Root().Template.ID), operation)
	x, err := walk(ctx, t)
	if err != nil {
		op.EndWithError(ctx, err)
		return x, err
	}
	op.End(ctx)
	return x, nil
}

func (m *Manager) warnPruned(ctx context.Context, t *tree.Tree) {
	for _, c := range t.Pruned() {
		m.logger.Warn(ctx, nil, "Pruned template cycle",
			"template", t.Root().Template.ID,
			"cycle", c.String())
	}
}

// enter marks ids as being processed by operation and returns the function
// that clears the marks. It fails without marking anything if any id is
// already in progress.
func (m *Manager) enter(operation string, ids ...string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		if held, busy := m.processing[id]; busy {
			return nil, errors.ErrReentrant(id, operation).WithContext("in_progress", held)
		}
	}
	for _, id := range ids {
		m.processing[id] = operation
	}
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, id := range ids {
			delete(m.processing, id)
		}
	}, nil
}

func (m *Manager) validate(def registry.Definition) error {
	if strings.TrimSpace(def.ID) == "" {
		return errors.ErrInvalidDefinition(def.Source, "template id must not be empty")
	}
	for i, s := range def.Schematics {
		err := m.kinds.Validate(s)
		if err == nil {
			continue
		}
		var unknown *schematic.UnknownTypeError
		if stderrors.As(err, &unknown) {
			return errors.ErrUnknownSchematicType(def.ID, unknown.Type).
				WithContext("index", i)
		}
		return errors.ErrInvalidDefinition(def.Source,
			fmt.Sprintf("schematic %d: %v", i, err)).
			WithTemplate(def.ID)
	}
	return nil
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, id := range list {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

func without(ids []string, drop string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
