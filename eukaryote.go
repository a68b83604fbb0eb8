package soma

import "context"

// Nucleus is user-defined leaf logic. It only ever sees impulses the
// membrane did not consume: Start (re-emitted after verification),
// signals, probes, and stop. The membrane is passed in for role lookups
// and role-addressed sends.
//
// Update consumes the nucleus and returns its successor state, mirroring
// the Soma contract one level down.
type Nucleus[S any, Y comparable] interface {
	Update(ctx context.Context, membrane *Membrane[S, Y], imp Impulse[S, Y]) (Nucleus[S, Y], error)
}

// NucleusFunc adapts a function to the Nucleus interface. The function
// returns the nucleus to rebind to, which for stateless logic is simply
// itself.
type NucleusFunc[S any, Y comparable] func(ctx context.Context, membrane *Membrane[S, Y], imp Impulse[S, Y]) (Nucleus[S, Y], error)

// Update calls the function.
func (f NucleusFunc[S, Y]) Update(ctx context.Context, membrane *Membrane[S, Y], imp Impulse[S, Y]) (Nucleus[S, Y], error) {
	return f(ctx, membrane, imp)
}

// Eukaryote wraps a nucleus and a membrane into a complete leaf soma:
// the membrane handles lifecycle and wiring, the nucleus handles
// everything else.
type Eukaryote[S any, Y comparable] struct {
	membrane *Membrane[S, Y]
	nucleus  Nucleus[S, Y]
}

// NewEukaryote builds a leaf soma from user logic and its connection
// constraints.
func NewEukaryote[S any, Y comparable](nucleus Nucleus[S, Y], inputs, outputs []Constraint[Y]) (*Eukaryote[S, Y], error) {
	membrane, err := NewMembrane[S, Y](inputs, outputs)
	if err != nil {
		return nil, err
	}

	return &Eukaryote[S, Y]{
		membrane: membrane,
		nucleus:  nucleus,
	}, nil
}

// Membrane exposes the wrapped membrane, mainly for tests and for somas
// that emit outside an Update call.
func (e *Eukaryote[S, Y]) Membrane() *Membrane[S, Y] {
	return e.membrane
}

// Update feeds the impulse through the membrane first and forwards only
// unconsumed impulses to the nucleus.
func (e *Eukaryote[S, Y]) Update(ctx context.Context, imp Impulse[S, Y]) (Soma[S, Y], error) {
	rest, err := e.membrane.Update(imp)
	if err != nil {
		return nil, err
	}
	if rest == nil {
		return e, nil
	}

	next, err := e.nucleus.Update(ctx, e.membrane, *rest)
	if err != nil {
		return nil, err
	}
	e.nucleus = next

	return e, nil
}

var _ Soma[any, string] = (*Eukaryote[any, string])(nil)
