package processor

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"mediaflow/internal/arg"
)

// ErrUnknownProcessor is wrapped by UnknownProcessorError.
var ErrUnknownProcessor = errors.New("unknown processor")

// UnknownProcessorError is returned when a class name has no registered factory.
type UnknownProcessorError struct {
	ClassName string
}

func (e *UnknownProcessorError) Error() string {
	return fmt.Sprintf("processor: %v %q", ErrUnknownProcessor, e.ClassName)
}

func (e *UnknownProcessorError) Unwrap() error { return ErrUnknownProcessor }

// Factory builds a fresh, uninitialized processor.
type Factory func() Processor

// Info describes a registered processor for listings.
type Info struct {
	Name      string
	Kind      Kind
	Arguments []arg.Argument
	Traits    Traits
}

// Registry maps class names to factories. It is built once at process start.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, factory Factory) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("processor: empty class name")
	}
	if factory == nil {
		return fmt.Errorf("processor: nil factory for %s", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	return nil
}

// MustRegister is Register that panics on error, for static registration.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Lookup returns the factory for name or an *UnknownProcessorError.
func (r *Registry) Lookup(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[strings.TrimSpace(name)]
	if !ok {
		return nil, &UnknownProcessorError{ClassName: name}
	}
	return f, nil
}

// Names returns registered class names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe builds a throwaway instance of every factory and reports its shape.
func (r *Registry) Describe() []Info {
	names := r.Names()
	out := make([]Info, 0, len(names))
	for _, name := range names {
		f, err := r.Lookup(name)
		if err != nil {
			continue
		}
		p := f()
		out = append(out, Info{
			Name:      name,
			Kind:      KindOf(p),
			Arguments: p.Arguments(),
			Traits:    p.Traits(),
		})
	}
	return out
}
