package harness

import (
	"fmt"
	"sync"
)

// Unit is one named body of work. Body signals failure by panicking,
// normally through the check package.
type Unit struct {
	Name        string
	MeasureTime bool
	Body        func()
}

// Module is an ordered group of units run and reported together.
type Module struct {
	Name  string
	units []Unit
}

// NewModule returns an empty module.
func NewModule(name string) *Module {
	return &Module{Name: name}
}

// Test appends a unit whose success is not printed.
func (m *Module) Test(name string, body func()) *Module {
	return m.Add(Unit{Name: name, Body: body})
}

// Timed appends a unit whose success is printed with its elapsed time.
func (m *Module) Timed(name string, body func()) *Module {
	return m.Add(Unit{Name: name, MeasureTime: true, Body: body})
}

// Add appends u.
func (m *Module) Add(u Unit) *Module {
	m.units = append(m.units, u)

	return m
}

// Units returns the units in declaration order.
func (m *Module) Units() []Unit {
	out := make([]Unit, len(m.units))
	copy(out, m.units)

	return out
}

// Registry collects modules in registration order.
type Registry struct {
	mu      sync.Mutex
	modules []*Module
	byName  map[string]*Module
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Module)}
}

// DefaultRegistry holds modules registered with the package-level
// Register, typically from init functions.
var DefaultRegistry = NewRegistry()

// Register adds m to DefaultRegistry.
func Register(m *Module) error {
	return DefaultRegistry.Register(m)
}

// Register adds m. Module names must be non-empty and unique.
func (r *Registry) Register(m *Module) error {
	if m == nil || m.Name == "" {
		return fmt.Errorf("register module: empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[m.Name]; ok {
		return fmt.Errorf("register module %q: already registered", m.Name)
	}

	r.byName[m.Name] = m
	r.modules = append(r.modules, m)

	return nil
}

// Modules returns the registered modules in registration order.
func (r *Registry) Modules() []*Module {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Module, len(r.modules))
	copy(out, r.modules)

	return out
}

// Lookup returns the module registered under name.
func (r *Registry) Lookup(name string) (*Module, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byName[name]

	return m, ok
}
