package capability

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

// ErrDuplicate is returned when a capability name is registered twice.
var ErrDuplicate = errors.New("capability: already registered")

// Catalog is the read-only view the validator and compiler consume.
type Catalog interface {
	Lookup(name string) (Capability, bool)
	Names() []string
}

// Registry maintains known capabilities. Reads are safe to run concurrently;
// callers must not register while a validation or compilation is in flight.
type Registry struct {
	mu   sync.RWMutex
	caps map[string]Capability
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{caps: map[string]Capability{}}
}

// Register validates and installs a capability.
func (r *Registry) Register(c Capability) error {
	if err := c.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.caps[c.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, c.Name)
	}
	for name, other := range r.caps {
		if name == c.ArgsTypeName() || c.Name == other.ArgsTypeName() {
			return fmt.Errorf("capability: %s collides with the argument type of %s", c.Name, name)
		}
		if importsName(other, c.Name) || importsName(c, name) {
			return fmt.Errorf("capability: %s collides with an import of %s", c.Name, name)
		}
	}
	if importsName(c, c.Name) {
		return fmt.Errorf("capability: %s collides with its own import", c.Name)
	}
	r.caps[c.Name] = c
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(c Capability) {
	if err := r.Register(c); err != nil {
		panic(err)
	}
}

// RegisterAll installs every capability from the given definition files.
func (r *Registry) RegisterAll(files []DefinitionFile) error {
	for _, file := range files {
		for _, c := range file.Capabilities {
			if err := r.Register(c); err != nil {
				return fmt.Errorf("%s: %w", file.Path, err)
			}
		}
	}
	return nil
}

// importsName reports whether one of c's imports binds name at file scope.
func importsName(c Capability, name string) bool {
	for _, imp := range c.Imports {
		if path.Base(strings.TrimSpace(imp)) == name {
			return true
		}
	}
	return false
}

// Lookup returns the capability registered under name.
func (r *Registry) Lookup(name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[name]
	return c, ok
}

// Names returns a sorted list of registered capability names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.caps))
	for name := range r.caps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len reports how many capabilities are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.caps)
}
