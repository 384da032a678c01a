// Package cycles decides what happens when a template depends on itself,
// directly or through other templates, while a dependency tree is built.
package cycles

import (
	"fmt"
	"strings"
)

// Response is a policy's verdict on one cycle.
type Response int

const (
	// Cancel prunes the edge that closes the cycle and keeps building.
	Cancel Response = iota
	// Panic aborts the whole request with a cycle error.
	Panic
)

// String returns the string representation of the response
func (r Response) String() string {
	switch r {
	case Cancel:
		return "cancel"
	case Panic:
		return "panic"
	default:
		return "unknown"
	}
}

// Cycle is the ordered path of template ids that closed on itself. The
// first and last ids are equal: A -> B -> A.
type Cycle struct {
	Path []string
	// Schematic is the index, within the second-to-last template, of the
	// schematic whose edge closes the cycle
	Schematic int
}

// Root returns the repeated template id.
func (c Cycle) Root() string {
	if len(c.Path) == 0 {
		return ""
	}
	return c.Path[0]
}

// Len returns the number of distinct templates in the cycle.
func (c Cycle) Len() int {
	if len(c.Path) == 0 {
		return 0
	}
	return len(c.Path) - 1
}

// String renders the path as "A -> B -> A".
func (c Cycle) String() string {
	return strings.Join(c.Path, " -> ")
}

// Policy maps a cycle to a response. It must be pure: the same cycle always
// gets the same answer and the cycle must not be retained.
type Policy func(Cycle) Response

// Always returns a policy that gives the same response to every cycle.
func Always(response Response) Policy {
	return func(Cycle) Response { return response }
}

// Default is the policy used when the host supplies none: Panic in
// development builds and Cancel in builds tagged "release".
func Default() Policy {
	return Always(defaultResponse)
}

// DefaultResponse returns the response Default gives.
func DefaultResponse() Response {
	return defaultResponse
}

// ParsePolicy converts a configuration value into a policy. "default" and
// the empty string select Default.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return Default(), nil
	case "panic":
		return Always(Panic), nil
	case "cancel":
		return Always(Cancel), nil
	default:
		return nil, fmt.Errorf("unknown cycle policy %q (want default, panic or cancel)", name)
	}
}
