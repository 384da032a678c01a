// Package loader is the template source: it finds template files, decodes
// them into definitions and turns file change notifications into register,
// reload and unregister calls on the manager.
package loader

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/conneroisu/protoplast/internal/config"
	"github.com/conneroisu/protoplast/internal/errors"
	"github.com/conneroisu/protoplast/internal/logging"
	"github.com/conneroisu/protoplast/internal/manager"
	"github.com/conneroisu/protoplast/internal/registry"
)

// ChangeKind is the kind of a file change.
type ChangeKind int

const (
	ChangeCreated ChangeKind = iota
	ChangeModified
	ChangeRemoved
)

// String returns the string representation of the change kind
func (k ChangeKind) String() string {
	switch k {
	case ChangeCreated:
		return "created"
	case ChangeModified:
		return "modified"
	case ChangeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Change is one file change notification.
type Change struct {
	Path string
	Kind ChangeKind
}

// Action is what a change did to the store.
type Action string

const (
	ActionRegistered   Action = "registered"
	ActionReloaded     Action = "reloaded"
	ActionUnregistered Action = "unregistered"
	ActionUnchanged    Action = "unchanged"
	ActionIgnored      Action = "ignored"
	ActionFailed       Action = "failed"
)

// Result reports the outcome of one change.
type Result struct {
	Path     string
	Template string
	Action   Action
	Err      error
}

// Loader feeds template files into a manager.
type Loader struct {
	manager   *manager.Manager
	settings  *config.ProtoConfig
	exclude   []string
	logger    logging.Logger
	collector *errors.ErrorCollector

	mu      sync.Mutex
	sources map[string]string
}

// New creates a loader. settings decides which files are templates;
// exclude holds filepath.Match patterns checked against base names.
func New(m *manager.Manager, settings *config.ProtoConfig, exclude []string, logger logging.Logger) *Loader {
	if settings == nil {
		settings = config.NewProtoConfig()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Loader{
		manager:   m,
		settings:  settings,
		exclude:   exclude,
		logger:    logger.WithComponent("loader"),
		collector: errors.NewErrorCollector(),
		sources:   make(map[string]string),
	}
}

// Errors returns the collector holding the latest failure of each file.
func (l *Loader) Errors() *errors.ErrorCollector { return l.collector }

// Accepts reports whether path is a template file that is not excluded.
func (l *Loader) Accepts(path string) bool {
	if !l.settings.Matches(path) {
		return false
	}
	base := filepath.Base(path)
	for _, pattern := range l.exclude {
		if ok, _ := filepath.Match(pattern, base); ok {
			return false
		}
	}
	return true
}

// ReadFile reads and decodes one template file.
func (l *Loader) ReadFile(path string) (*registry.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO(err, path)
	}
	return Decode(path, data, l.settings.Extensions())
}

// Discover walks roots and returns every accepted template file, sorted.
// Missing roots are skipped.
func (l *Loader) Discover(roots ...string) ([]string, error) {
	var files []string
	for _, root := range roots {
		if _, err := os.Stat(root); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if l.Accepts(path) {
				files = append(files, filepath.Clean(path))
			}
			return nil
		})
		if err != nil {
			return nil, errors.WrapIO(err, root)
		}
	}
	sort.Strings(files)
	return files, nil
}

// LoadDir discovers and loads every template below roots. Failing files are
// recorded in Errors and do not stop the load.
func (l *Loader) LoadDir(ctx context.Context, roots ...string) ([]Result, error) {
	op := logging.StartOperation(l.logger, "load")

	files, err := l.Discover(roots...)
	if err != nil {
		op.EndWithError(ctx, err)
		return nil, err
	}

	changes := make([]Change, len(files))
	for i, file := range files {
		changes[i] = Change{Path: file, Kind: ChangeCreated}
	}
	results := l.Sync(ctx, changes)

	op.End(ctx)
	return results, nil
}

// Sync applies a batch of file changes to the manager in order. A created or
// modified file registers its template, or reloads it when this same file
// registered the id; bytes whose digest matches the stored template are
// skipped. A second file declaring an id that another file provides fails
// with DuplicateId. A removed file unregisters the template it last provided.
func (l *Loader) Sync(ctx context.Context, changes []Change) []Result {
	results := make([]Result, 0, len(changes))
	for _, change := range changes {
		result := l.apply(ctx, change)
		l.collector.ClearFile(result.Path)
		if result.Err != nil {
			l.collector.Add(errors.NewSourceError(result.Path, result.Template, result.Err))
		}
		l.logger.Debug(ctx, "Source change processed",
			"path", change.Path,
			"kind", change.Kind.String(),
			"template", result.Template,
			"action", string(result.Action))
		results = append(results, result)
	}
	return results
}

func (l *Loader) apply(ctx context.Context, change Change) Result {
	path := filepath.Clean(change.Path)
	result := Result{Path: path}

	if !l.Accepts(path) {
		result.Action = ActionIgnored
		return result
	}

	if change.Kind == ChangeRemoved {
		return l.remove(ctx, path)
	}

	def, err := l.ReadFile(path)
	if err != nil {
		if os.IsNotExist(errors.ExtractCause(err)) {
			return l.remove(ctx, path)
		}
		result.Action, result.Err = ActionFailed, err
		return result
	}
	result.Template = def.ID

	// the file now provides a different id: retire the old one first
	if previous, ok := l.source(path); ok && previous != def.ID {
		if err := l.manager.Unregister(ctx, previous); err != nil && !errors.HasCode(err, errors.ErrCodeUnknownTemplate) {
			result.Action, result.Err = ActionFailed, err
			return result
		}
		l.forget(path)
	}

	// only the file that registered an id may reload it; any other file
	// declaring the same id falls through to Register and DuplicateId
	if previous, ok := l.source(path); ok && previous == def.ID {
		current, ok := l.manager.Lookup(def.ID)
		if !ok {
			l.forget(path)
			return l.register(ctx, path, def, result)
		}
		if current.Digest != "" && current.Digest == def.Digest {
			result.Action = ActionUnchanged
			l.remember(path, def.ID)
			return result
		}
		if err := l.manager.Reload(ctx, *def); err != nil {
			result.Action, result.Err = ActionFailed, err
			return result
		}
		result.Action = ActionReloaded
		l.remember(path, def.ID)
		return result
	}

	return l.register(ctx, path, def, result)
}

func (l *Loader) register(ctx context.Context, path string, def *registry.Definition, result Result) Result {
	if _, err := l.manager.Register(ctx, *def); err != nil {
		result.Action, result.Err = ActionFailed, err
		return result
	}
	result.Action = ActionRegistered
	l.remember(path, def.ID)
	return result
}

func (l *Loader) remove(ctx context.Context, path string) Result {
	result := Result{Path: path}
	id, ok := l.source(path)
	if !ok {
		result.Action = ActionIgnored
		return result
	}
	result.Template = id
	l.forget(path)

	if err := l.manager.Unregister(ctx, id); err != nil {
		result.Action, result.Err = ActionFailed, err
		return result
	}
	result.Action = ActionUnregistered
	return result
}

func (l *Loader) source(path string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.sources[path]
	return id, ok
}

func (l *Loader) remember(path, id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sources[path] = id
}

func (l *Loader) forget(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sources, path)
}

// Sources returns the file each loaded template came from, by id.
func (l *Loader) Sources() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]string, len(l.sources))
	for path, id := range l.sources {
		out[id] = path
	}
	return out
}
