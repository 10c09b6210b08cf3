package command

import "fmt"

// Registry maps command names to their executor/undoer/redoer triples.
type Registry struct {
	specs map[string]Spec
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]Spec)}
}

// Register adds or replaces the spec for name.
func (r *Registry) Register(spec Spec) {
	r.specs[spec.Name] = spec
}

// Lookup returns the spec for name, or an error if unregistered.
func (r *Registry) Lookup(name string) (Spec, error) {
	spec, ok := r.specs[name]
	if !ok {
		return Spec{}, fmt.Errorf("command: %q is not registered", name)
	}
	return spec, nil
}

// Names returns every registered command name.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.specs))
	for name := range r.specs {
		out = append(out, name)
	}
	return out
}
