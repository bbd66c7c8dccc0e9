package compare

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Fallback is the comparator used when a section names an unregistered one.
const Fallback = "basic"

// NotFoundWarning is reported when a requested comparator is not registered
// and the fallback is used instead. It is a warning, not a failure.
type NotFoundWarning struct {
	Requested string
	Fallback  string
}

func (w *NotFoundWarning) Error() string {
	return fmt.Sprintf("comparator %q is not registered, using %q", w.Requested, w.Fallback)
}

// IsNotFoundWarning reports whether err carries a NotFoundWarning.
func IsNotFoundWarning(err error) bool {
	var w *NotFoundWarning
	return errors.As(err, &w)
}

// Registry maps comparator names to factories. Names are case-insensitive.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Default returns a registry with the built-in comparators.
func Default() *Registry {
	r := NewRegistry()
	r.MustRegister("basic", NewBasic)
	r.MustRegister("cplc", NewCPLC)
	r.MustRegister("algperf", NewAlgPerf)
	return r
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds a factory under name. Registering a name twice replaces the
// earlier factory.
func (r *Registry) Register(name string, f Factory) error {
	key := normalize(name)
	if key == "" {
		return errors.New("comparator name is empty")
	}
	if f == nil {
		return fmt.Errorf("comparator %q: nil factory", key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[key] = f
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[normalize(name)]
	return f, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for n := range r.factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Resolution is the outcome of resolving a comparator name.
type Resolution struct {
	Requested string
	Name      string
	Factory   Factory
	Warning   *NotFoundWarning
}

// Resolve finds the factory for name, falling back to basic with a warning
// when name is unknown. It fails only if the fallback itself is missing.
func (r *Registry) Resolve(name string) (Resolution, error) {
	key := normalize(name)
	if f, ok := r.Lookup(key); ok {
		return Resolution{Requested: name, Name: key, Factory: f}, nil
	}
	f, ok := r.Lookup(Fallback)
	if !ok {
		return Resolution{}, fmt.Errorf("comparator %q is not registered and no %q fallback exists", name, Fallback)
	}
	return Resolution{
		Requested: name,
		Name:      Fallback,
		Factory:   f,
		Warning:   &NotFoundWarning{Requested: name, Fallback: Fallback},
	}, nil
}
