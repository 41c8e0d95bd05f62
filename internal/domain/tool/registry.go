package tool

import (
	"fmt"
	"sort"

	"github.com/finch-ai/finch/internal/domain"
)

// Registry holds the set of invocable capabilities. Registration happens
// once during process initialization; after that the registry is read-only,
// which is what makes concurrent lookups safe without locking.
type Registry struct {
	specs map[string]*Spec
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]*Spec)}
}

// Register adds a spec to the registry. Registering a duplicate name is a
// configuration error at startup, not a runtime fault.
func (r *Registry) Register(spec *Spec) error {
	if spec == nil || spec.Name == "" {
		return fmt.Errorf("tool registry: spec must have a name")
	}
	if spec.Handler == nil {
		return fmt.Errorf("tool registry: tool %q has no handler", spec.Name)
	}
	if _, exists := r.specs[spec.Name]; exists {
		return fmt.Errorf("%w: %q", domain.ErrDuplicateTool, spec.Name)
	}
	r.specs[spec.Name] = spec
	return nil
}

// Lookup returns the spec for name.
func (r *Registry) Lookup(name string) (*Spec, error) {
	spec, ok := r.specs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownTool, name)
	}
	return spec, nil
}

// List returns all registered specs sorted by name. Used to build the
// oracle's available-actions prompt.
func (r *Registry) List() []*Spec {
	specs := make([]*Spec, 0, len(r.specs))
	for _, s := range r.specs {
		specs = append(specs, s)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.specs)
}
