// Package module defines the passive module registry: a map external
// driver code populates and consults, keyed by module name, that the
// compiler and interpreter core never read or write through themselves.
package module

// Module is an opaque unit of host-provided functionality a driver may
// register against an agent before running a program. The core treats its
// contents as inert; a Module only ever becomes visible to a running
// program through a builtin the driver itself wires into the global table.
type Module struct {
	Name  string
	Value any
}

// Registry is a name-keyed collection of Modules a driver assembles before
// handing it to agent.Agent.Modules(), which is itself just a
// map[uint64]any keyed by interned id -- Registry exists purely to give
// driver code typed construction instead of hand-building that map inline.
type Registry struct {
	entries map[string]*Module
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*Module)}
}

// Register adds or replaces a Module under its own name.
func (r *Registry) Register(m *Module) {
	r.entries[m.Name] = m
}

// Lookup returns the Module registered under name, if any.
func (r *Registry) Lookup(name string) (*Module, bool) {
	m, ok := r.entries[name]
	return m, ok
}

// Names returns every registered module name, in no particular order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}
