//go:build property
// +build property

package manager

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/protoplast/internal/errors"
	"github.com/conneroisu/protoplast/internal/registry"
	"github.com/conneroisu/protoplast/internal/schematic"
	"github.com/conneroisu/protoplast/internal/types"
	"github.com/conneroisu/protoplast/internal/world"
)

// TestRegistryProperties tests store identity properties
func TestRegistryProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("one entry per distinct id", prop.ForAll(
		func(ids []string) bool {
			m := New(world.NewMemory())
			unique := make(map[string]bool)
			for _, id := range ids {
				_, err := m.Register(context.Background(), def(id))
				if unique[id] {
					if !errors.HasCode(err, errors.ErrCodeDuplicateID) {
						return false
					}
					continue
				}
				if err != nil {
					return false
				}
				unique[id] = true
			}
			return m.Store().Count() == len(unique)
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.Property("reload preserves handle", prop.ForAll(
		func(id string, reloads int) bool {
			m := New(world.NewMemory())
			handle, err := m.Register(context.Background(), def(id))
			if err != nil {
				return false
			}
			for i := 0; i < reloads; i++ {
				if err := m.Reload(context.Background(), def(id, component(fmt.Sprintf("C%d", i)))); err != nil {
					return false
				}
			}
			current, ok := m.Lookup(id)
			return ok && current.Handle == handle && current.Revision == uint64(reloads+1)
		},
		gen.Identifier(),
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}

// TestApplyOrderProperties tests schematic ordering properties
func TestApplyOrderProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	setup := func(n int) (*Manager, *[]string, types.ObjectID) {
		var calls []string
		kinds := schematic.NewDefaultRegistry()
		kinds.MustRegister(schematic.Kind{
			Name: "step",
			Apply: func(ctx *schematic.Context, _ map[string]any) error {
				calls = append(calls, fmt.Sprintf("apply:%d", ctx.Index))
				return nil
			},
			Remove: func(ctx *schematic.Context, _ map[string]any) error {
				calls = append(calls, fmt.Sprintf("remove:%d", ctx.Index))
				return nil
			},
		})
		w := world.NewMemory()
		m := New(w, WithKinds(kinds))

		schematics := make([]schematic.Schematic, n)
		for i := range schematics {
			schematics[i] = schematic.Schematic{Type: "step"}
		}
		if _, err := m.Register(context.Background(), registry.Definition{ID: "T", Schematics: schematics}); err != nil {
			panic(err)
		}
		return m, &calls, w.Spawn(types.NoObject)
	}

	properties.Property("apply follows declaration order", prop.ForAll(
		func(n, repeats int) bool {
			m, calls, obj := setup(n)
			for r := 0; r < repeats; r++ {
				*calls = nil
				if _, err := m.Apply(context.Background(), obj, "T"); err != nil {
					return false
				}
				if len(*calls) != n {
					return false
				}
				for i, call := range *calls {
					if call != fmt.Sprintf("apply:%d", i) {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(0, 12),
		gen.IntRange(1, 3),
	))

	properties.Property("remove mirrors apply", prop.ForAll(
		func(n int) bool {
			m, calls, obj := setup(n)
			if _, err := m.Apply(context.Background(), obj, "T"); err != nil {
				return false
			}
			applied := append([]string(nil), (*calls)...)
			*calls = nil
			if _, err := m.Remove(context.Background(), obj, "T"); err != nil {
				return false
			}
			removed := *calls
			if len(removed) != len(applied) {
				return false
			}
			for i := range applied {
				if removed[len(removed)-1-i] != "remove:"+applied[i][len("apply:"):] {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 12),
	))

	properties.TestingRun(t)
}
