package blueprint

import (
	"fmt"
	"sync"

	"github.com/axon-labs/soma"
)

// Builder constructs a soma instance from its definition config.
type Builder[S any, Y comparable] func(config map[string]any) (soma.Soma[S, Y], error)

// TypeDef describes a registered soma type.
type TypeDef[S any, Y comparable] struct {
	Type        string
	Description string
	Build       Builder[S, Y]
}

// Registry holds the soma types one protocol knows how to build, plus the
// role parser that maps definition role strings onto the protocol's
// synapse type.
type Registry[S any, Y comparable] struct {
	mu        sync.RWMutex
	types     map[string]TypeDef[S, Y]
	order     []string // preserves registration order
	parseRole func(string) (Y, error)
}

// NewRegistry creates an empty registry. parseRole maps a definition's
// role string to the protocol's synapse value.
func NewRegistry[S any, Y comparable](parseRole func(string) (Y, error)) *Registry[S, Y] {
	return &Registry[S, Y]{
		types:     make(map[string]TypeDef[S, Y]),
		parseRole: parseRole,
	}
}

// Register adds a soma type definition. If a type with the same name
// already exists it is overwritten.
func (r *Registry[S, Y]) Register(def TypeDef[S, Y]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[def.Type]; !exists {
		r.order = append(r.order, def.Type)
	}
	r.types[def.Type] = def
}

// Known reports whether a type name is registered.
func (r *Registry[S, Y]) Known(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[name]
	return ok
}

// Get returns a registered type definition.
func (r *Registry[S, Y]) Get(name string) (TypeDef[S, Y], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.types[name]
	return def, ok
}

// Types returns all registered type definitions in registration order.
func (r *Registry[S, Y]) Types() []TypeDef[S, Y] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]TypeDef[S, Y], 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.types[name])
	}
	return out
}

// Build assembles a live organelle from a definition. Every soma in the
// definition is constructed through its registered builder, the main soma
// becomes the organelle's main child, and every connection is recorded
// for delivery at Init. The returned map resolves definition IDs to the
// handles the organelle assigned.
func (r *Registry[S, Y]) Build(reactor *soma.Reactor, def *Definition) (*soma.Organelle[S, Y], map[string]soma.Handle, error) {
	if diags := def.ValidateWithTypes(r.Known); HasErrors(diags) {
		return nil, nil, &DiagnosticError{Diagnostics: diags}
	}

	build := func(sd SomaDef) (soma.Soma[S, Y], error) {
		td, ok := r.Get(sd.Type)
		if !ok {
			return nil, fmt.Errorf("unknown soma type %q", sd.Type)
		}
		node, err := td.Build(sd.Config)
		if err != nil {
			return nil, fmt.Errorf("building soma %q: %w", sd.ID, err)
		}
		return node, nil
	}

	var mainDef SomaDef
	for _, sd := range def.Somas {
		if sd.ID == def.Main {
			mainDef = sd
			break
		}
	}

	main, err := build(mainDef)
	if err != nil {
		return nil, nil, err
	}

	org := soma.NewOrganelle[S, Y](reactor, main).WithLabel(def.Name)
	handles := map[string]soma.Handle{def.Main: org.MainHandle()}

	for _, sd := range def.Somas {
		if sd.ID == def.Main {
			continue
		}
		node, err := build(sd)
		if err != nil {
			return nil, nil, err
		}
		hdl, err := org.AddSoma(node)
		if err != nil {
			return nil, nil, fmt.Errorf("adding soma %q: %w", sd.ID, err)
		}
		handles[sd.ID] = hdl
	}

	for i, c := range def.Connections {
		role, err := r.parseRole(c.Role)
		if err != nil {
			return nil, nil, fmt.Errorf("connections[%d]: role %q: %w", i, c.Role, err)
		}
		if err := org.Connect(handles[c.Input], handles[c.Output], role); err != nil {
			return nil, nil, fmt.Errorf("connections[%d]: %w", i, err)
		}
	}

	return org, handles, nil
}
