package registry

import (
	"sync"

	"github.com/matzehuels/witlink/pkg/errors"
)

// Registry maps component names to artifacts for one composition run.
//
// It is filled before resolution starts (local components, then fetched
// ones) and frozen afterwards. Writes are serialized by a mutex so fetch
// results may be merged from any goroutine; the linker only reads.
type Registry struct {
	mu        sync.RWMutex
	artifacts map[string]*Artifact
	order     []string
	frozen    bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{artifacts: make(map[string]*Artifact)}
}

// Register binds name to a copy of a. The copy's Name is set to name.
// It fails with DUPLICATE_INSTANCE if name is taken and REGISTRY_FROZEN
// after [Registry.Freeze].
func (r *Registry) Register(name string, a *Artifact) error {
	if a == nil {
		return errors.New(errors.ErrCodeInvalidInput, "register %q: nil artifact", name)
	}
	c := a.Clone()
	c.Name = name
	if err := c.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return errors.New(errors.ErrCodeRegistryFrozen, "register %q: registry is frozen", name).WithInstance(name)
	}
	if _, exists := r.artifacts[name]; exists {
		return errors.New(errors.ErrCodeDuplicateInstance, "component %q is already registered", name).WithInstance(name)
	}
	r.artifacts[name] = c
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the artifact registered under name, or UNKNOWN_INSTANCE.
// The returned artifact must not be modified.
func (r *Registry) Lookup(name string) (*Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.artifacts[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeUnknownInstance, "no component named %q", name).WithInstance(name)
	}
	return a, nil
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered components.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// ByPackage returns the names of components whose package key
// ("namespace:name") equals key, in registration order.
func (r *Registry) ByPackage(key string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, name := range r.order {
		if r.artifacts[name].Package.Key() == key {
			out = append(out, name)
		}
	}
	return out
}

// Freeze makes the registry read-only. It is idempotent.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether [Registry.Freeze] has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}
