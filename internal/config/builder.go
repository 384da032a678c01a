package config

import (
	"path/filepath"
	"strings"

	"github.com/conneroisu/protoplast/internal/cycles"
	"github.com/conneroisu/protoplast/internal/hooks"
)

// ProtoConfig is the runtime settings object handed to the manager and
// loader: the file suffixes that mark a source as a template and one slot
// per lifecycle hook. It is built fluently and owned by the caller; nothing
// here is global.
//
// Usage:
//
//	cfg := NewProtoConfig().
//	    WithExtensions("prototype.yaml").
//	    OnRegister(func(t *registry.Template) { ... }).
//	    OnCycle(cycles.Always(cycles.Cancel))
//	m := manager.New(w, manager.WithHooks(cfg.Hooks()))
type ProtoConfig struct {
	extensions []string
	hooks      hooks.Hooks
}

// NewProtoConfig returns a config with DefaultExtensions and no hooks.
func NewProtoConfig() *ProtoConfig {
	return &ProtoConfig{
		extensions: append([]string(nil), DefaultExtensions...),
	}
}

// FromConfig returns a ProtoConfig seeded from file configuration: its
// extensions and cycle policy.
func FromConfig(c *Config) (*ProtoConfig, error) {
	policy, err := c.CyclePolicy()
	if err != nil {
		return nil, err
	}
	return NewProtoConfig().
		WithExtensions(c.Sources.Extensions...).
		OnCycle(policy), nil
}

// WithExtensions replaces the recognized template suffixes. A leading dot
// is ignored.
func (pc *ProtoConfig) WithExtensions(extensions ...string) *ProtoConfig {
	pc.extensions = pc.extensions[:0]
	for _, ext := range extensions {
		if ext = strings.TrimPrefix(ext, "."); ext != "" {
			pc.extensions = append(pc.extensions, ext)
		}
	}
	return pc
}

// Extensions returns the recognized template suffixes.
func (pc *ProtoConfig) Extensions() []string {
	return append([]string(nil), pc.extensions...)
}

// Matches reports whether path names a template source.
func (pc *ProtoConfig) Matches(path string) bool {
	base := filepath.Base(path)
	for _, ext := range pc.extensions {
		if strings.HasSuffix(base, "."+ext) && len(base) > len(ext)+1 {
			return true
		}
	}
	return false
}

// Hooks returns a copy of the configured hook set.
func (pc *ProtoConfig) Hooks() *hooks.Hooks {
	h := pc.hooks
	return &h
}

// OnRegister sets the hook fired after a template is registered
func (pc *ProtoConfig) OnRegister(fn hooks.TemplateHook) *ProtoConfig {
	pc.hooks.OnRegister = fn
	return pc
}

// OnReload sets the hook fired after a template's schematics are replaced
func (pc *ProtoConfig) OnReload(fn hooks.TemplateHook) *ProtoConfig {
	pc.hooks.OnReload = fn
	return pc
}

// OnUnregister sets the hook fired after a template is removed from the store
func (pc *ProtoConfig) OnUnregister(fn hooks.UnregisterHook) *ProtoConfig {
	pc.hooks.OnUnregister = fn
	return pc
}

// OnBeforeApplyPrototype sets the hook fired before a template's schematics are applied
func (pc *ProtoConfig) OnBeforeApplyPrototype(fn hooks.PrototypeHook) *ProtoConfig {
	pc.hooks.OnBeforeApplyPrototype = fn
	return pc
}

// OnAfterApplyPrototype sets the hook fired once a template and its children are applied
func (pc *ProtoConfig) OnAfterApplyPrototype(fn hooks.PrototypeHook) *ProtoConfig {
	pc.hooks.OnAfterApplyPrototype = fn
	return pc
}

// OnBeforeRemovePrototype sets the hook fired before a template is removed from an object
func (pc *ProtoConfig) OnBeforeRemovePrototype(fn hooks.PrototypeHook) *ProtoConfig {
	pc.hooks.OnBeforeRemovePrototype = fn
	return pc
}

// OnAfterRemovePrototype sets the hook fired once a template and its children are removed
func (pc *ProtoConfig) OnAfterRemovePrototype(fn hooks.PrototypeHook) *ProtoConfig {
	pc.hooks.OnAfterRemovePrototype = fn
	return pc
}

// OnBeforeApplySchematic sets the hook fired before each schematic apply
func (pc *ProtoConfig) OnBeforeApplySchematic(fn hooks.SchematicHook) *ProtoConfig {
	pc.hooks.OnBeforeApplySchematic = fn
	return pc
}

// OnAfterApplySchematic sets the hook fired after each successful schematic apply
func (pc *ProtoConfig) OnAfterApplySchematic(fn hooks.SchematicHook) *ProtoConfig {
	pc.hooks.OnAfterApplySchematic = fn
	return pc
}

// OnBeforeRemoveSchematic sets the hook fired before each schematic remove
func (pc *ProtoConfig) OnBeforeRemoveSchematic(fn hooks.SchematicHook) *ProtoConfig {
	pc.hooks.OnBeforeRemoveSchematic = fn
	return pc
}

// OnAfterRemoveSchematic sets the hook fired after each successful schematic remove
func (pc *ProtoConfig) OnAfterRemoveSchematic(fn hooks.SchematicHook) *ProtoConfig {
	pc.hooks.OnAfterRemoveSchematic = fn
	return pc
}

// OnCycle sets the cycle policy. A nil policy restores cycles.Default.
func (pc *ProtoConfig) OnCycle(policy cycles.Policy) *ProtoConfig {
	pc.hooks.OnCycle = policy
	return pc
}
