package natives

import (
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/rindel/internal/engine"
)

// Native is a built native definition, ready to apply.
type Native interface {
	Definition() *engine.NativeDefinition
}

// Emitter is a native that accepts values from its host.
type Emitter interface {
	Native
	Emit(act *engine.UserActivation, v engine.Value) error
}

// Factory builds a native from program configuration.
type Factory func(config map[string]any) (Native, error)

// static is a native with no host-facing surface.
type static struct {
	def *engine.NativeDefinition
}

func (s static) Definition() *engine.NativeDefinition { return s.def }

// Registry maps native names to factories.
//
// Thread-safety: Registry is safe for concurrent use, so one registry can
// serve scenarios running in parallel. Each Build returns a fresh native.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry holding the whole catalog.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister("source", NewSource)
	r.MustRegister("counter", NewCounter)
	r.MustRegister("display", NewDisplay)
	r.MustRegister("constant", NewConstant)
	r.MustRegister("add", NewAdd)
	r.MustRegister("event_count", NewEventCount)
	r.MustRegister("hold", NewHold)
	r.MustRegister("map", NewMap)
	return r
}

// Register adds a factory. Names must be unique.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("register native: name and factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("register native %q: already registered", name)
	}
	r.factories[name] = f
	return nil
}

// MustRegister is Register for package-level catalogs; it panics on error.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Build creates and validates a native by name.
func (r *Registry) Build(name string, config map[string]any) (Native, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown native %q", name)
	}
	n, err := f(config)
	if err != nil {
		return nil, fmt.Errorf("native %q: %w", name, err)
	}
	if err := n.Definition().Validate(); err != nil {
		return nil, fmt.Errorf("native %q: %w", name, err)
	}
	return n, nil
}
