// Package types provides identifiers shared across the protoplast packages.
// It exists so the registry, world and engine packages can exchange handles
// and events without importing each other.
package types

import (
	"strconv"
	"time"
)

// Handle is the opaque, stable identity of a registered template. It is
// allocated on first registration and survives every reload of the same id.
type Handle uint64

// InvalidHandle is never allocated by a store.
const InvalidHandle Handle = 0

// IsValid reports whether the handle was allocated by a store.
func (h Handle) IsValid() bool {
	return h != InvalidHandle
}

// String returns the handle in "#n" form.
func (h Handle) String() string {
	return "#" + strconv.FormatUint(uint64(h), 10)
}

// ObjectID identifies a live object in the host world.
type ObjectID uint64

// NoObject marks a tree node whose object is created at apply time.
const NoObject ObjectID = 0

// String returns the object id in "obj:n" form.
func (o ObjectID) String() string {
	return "obj:" + strconv.FormatUint(uint64(o), 10)
}

// EventType represents the type of template change event.
type EventType string

const (
	EventTypeRegistered   EventType = "registered"
	EventTypeReloaded     EventType = "reloaded"
	EventTypeUnregistered EventType = "unregistered"
)

// TemplateEvent represents a change in the template store, delivered to
// store watchers after the mutation has been committed.
type TemplateEvent struct {
	// Type indicates the kind of change
	Type EventType
	// ID is the template identifier
	ID string
	// Handle is the template handle (preserved across reloads)
	Handle Handle
	// Revision is the store revision of the template after the change
	Revision uint64
	// Timestamp records when the event occurred
	Timestamp time.Time
}
