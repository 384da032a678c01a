package schematic

import (
	"fmt"
	"sort"
)

// Built-in schematic type names.
const (
	TypeComponent  = "component"
	TypeComponents = "components"
	TypeInclude    = "include"
	TypeChild      = "child"
)

// Builtins returns the kinds every default registry carries.
//
//	component:  {name: Health, value: 100}      insert one capability
//	components: {Health: 100, Name: orc}        insert several capabilities
//	include:    {template: Armored}             apply a template to the same object
//	child:      {template: Sword}               apply a template to a new child object
func Builtins() []Kind {
	return []Kind{
		{
			Name:     TypeComponent,
			Validate: validateComponent,
			Apply: func(ctx *Context, input map[string]any) error {
				name, _ := input["name"].(string)
				return ctx.Entity.Insert(name, input["value"])
			},
			Remove: func(ctx *Context, input map[string]any) error {
				name, _ := input["name"].(string)
				return ctx.Entity.Remove(name)
			},
		},
		{
			Name: TypeComponents,
			Apply: func(ctx *Context, input map[string]any) error {
				for _, name := range sortedKeys(input) {
					if err := ctx.Entity.Insert(name, input[name]); err != nil {
						return err
					}
				}
				return nil
			},
			Remove: func(ctx *Context, input map[string]any) error {
				names := sortedKeys(input)
				for i := len(names) - 1; i >= 0; i-- {
					if err := ctx.Entity.Remove(names[i]); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Name:       TypeInclude,
			Validate:   validateTemplateRef,
			Dependency: templateRef(TargetSelf),
		},
		{
			Name:       TypeChild,
			Validate:   validateTemplateRef,
			Dependency: templateRef(TargetChild),
		},
	}
}

func validateComponent(input map[string]any) error {
	name, ok := input["name"].(string)
	if !ok || name == "" {
		return fmt.Errorf("input.name must be a non-empty string")
	}
	return nil
}

func validateTemplateRef(input map[string]any) error {
	id, ok := input["template"].(string)
	if !ok || id == "" {
		return fmt.Errorf("input.template must be a non-empty string")
	}
	return nil
}

func templateRef(target Target) DependencyFunc {
	return func(input map[string]any) (*Dependency, error) {
		if err := validateTemplateRef(input); err != nil {
			return nil, err
		}
		return &Dependency{Template: input["template"].(string), Target: target}, nil
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
