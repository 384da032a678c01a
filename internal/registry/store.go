// Package registry holds loaded templates. The Store is a flat map keyed by
// template id with a secondary index by handle; it owns every Template value
// and hands out immutable snapshots.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/conneroisu/protoplast/internal/errors"
	"github.com/conneroisu/protoplast/internal/schematic"
	"github.com/conneroisu/protoplast/internal/types"
)

// Definition is an already-decoded template as supplied by a template source.
type Definition struct {
	// ID is the unique template identifier
	ID string
	// Version is the optional semantic version declared by the source
	Version string
	// Schematics are applied in declaration order
	Schematics []schematic.Schematic
	// Source is the file the definition was decoded from, if any
	Source string
	// Digest is the content digest of Source at decode time
	Digest string
}

// Template is a registered template. Values returned by the Store are
// snapshots: a reload stores a new Template under the same ID and Handle
// and never mutates one already handed out.
type Template struct {
	ID         string
	Handle     types.Handle
	Version    string
	Schematics []schematic.Schematic
	Source     string
	Digest     string
	// Revision starts at 1 and increases on every reload
	Revision   uint64
	Registered time.Time
	Modified   time.Time
}

// Store manages all registered templates
type Store struct {
	templates  map[string]*Template
	handles    map[types.Handle]string
	nextHandle types.Handle
	mutex      sync.RWMutex
	watchers   []chan types.TemplateEvent
}

// NewStore creates a new template store
func NewStore() *Store {
	return &Store{
		templates: make(map[string]*Template),
		handles:   make(map[types.Handle]string),
		watchers:  make([]chan types.TemplateEvent, 0),
	}
}

// Insert registers a new template and allocates its handle. It fails with
// ERR_DUPLICATE_ID when the id is already present.
func (s *Store) Insert(def Definition) (*Template, error) {
	schematics, err := copySchematics(def)
	if err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.templates[def.ID]; exists {
		return nil, errors.ErrDuplicateID(def.ID)
	}

	s.nextHandle++
	now := time.Now()
	template := &Template{
		ID:         def.ID,
		Handle:     s.nextHandle,
		Version:    def.Version,
		Schematics: schematics,
		Source:     def.Source,
		Digest:     def.Digest,
		Revision:   1,
		Registered: now,
		Modified:   now,
	}
	s.templates[def.ID] = template
	s.handles[template.Handle] = def.ID

	s.notify(types.EventTypeRegistered, template)
	return template, nil
}

// Replace swaps the schematics of an existing template, keeping its id and
// handle. It returns the previous and the new snapshot.
func (s *Store) Replace(def Definition) (previous, current *Template, err error) {
	schematics, err := copySchematics(def)
	if err != nil {
		return nil, nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	previous, exists := s.templates[def.ID]
	if !exists {
		return nil, nil, errors.ErrUnknownTemplate(def.ID)
	}

	current = &Template{
		ID:         previous.ID,
		Handle:     previous.Handle,
		Version:    def.Version,
		Schematics: schematics,
		Source:     def.Source,
		Digest:     def.Digest,
		Revision:   previous.Revision + 1,
		Registered: previous.Registered,
		Modified:   time.Now(),
	}
	if current.Source == "" {
		current.Source = previous.Source
	}
	s.templates[def.ID] = current

	s.notify(types.EventTypeReloaded, current)
	return previous, current, nil
}

// Remove deletes a template and returns the removed snapshot.
func (s *Store) Remove(id string) (*Template, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	template, exists := s.templates[id]
	if !exists {
		return nil, errors.ErrUnknownTemplate(id)
	}

	delete(s.templates, id)
	delete(s.handles, template.Handle)

	s.notify(types.EventTypeUnregistered, template)
	return template, nil
}

// Get retrieves a template by id
func (s *Store) Get(id string) (*Template, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	template, exists := s.templates[id]
	return template, exists
}

// GetByHandle retrieves a template by handle
func (s *Store) GetByHandle(handle types.Handle) (*Template, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	id, exists := s.handles[handle]
	if !exists {
		return nil, false
	}
	return s.templates[id], true
}

// GetAll returns all registered templates keyed by id
func (s *Store) GetAll() map[string]*Template {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	result := make(map[string]*Template, len(s.templates))
	for id, template := range s.templates {
		result[id] = template
	}
	return result
}

// IDs returns the registered template ids in sorted order
func (s *Store) IDs() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ids := make([]string, 0, len(s.templates))
	for id := range s.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of registered templates
func (s *Store) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.templates)
}

// Watch returns a channel that receives template events
func (s *Store) Watch() <-chan types.TemplateEvent {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ch := make(chan types.TemplateEvent, 100)
	s.watchers = append(s.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it
func (s *Store) UnWatch(ch <-chan types.TemplateEvent) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for i, watcher := range s.watchers {
		if watcher == ch {
			close(watcher)
			s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
			break
		}
	}
}

// notify must be called with the mutex held
func (s *Store) notify(eventType types.EventType, template *Template) {
	event := types.TemplateEvent{
		Type:      eventType,
		ID:        template.ID,
		Handle:    template.Handle,
		Revision:  template.Revision,
		Timestamp: time.Now(),
	}

	for _, watcher := range s.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}

// copySchematics deep-copies the schematics of def so the caller keeps no
// reference into the stored template.
func copySchematics(def Definition) ([]schematic.Schematic, error) {
	out := make([]schematic.Schematic, len(def.Schematics))
	for i, s := range def.Schematics {
		input, err := schematic.Clone(s.Input)
		if err != nil {
			return nil, errors.ErrInvalidDefinition(def.ID, fmt.Sprintf("schematic %d: %v", i, err))
		}
		out[i] = schematic.Schematic{Type: s.Type, Input: input}
		if s.Depends != nil {
			dep := *s.Depends
			out[i].Depends = &dep
		}
	}
	return out, nil
}
