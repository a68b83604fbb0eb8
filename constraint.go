package soma

import (
	"context"
	"fmt"
)

// constraintKind selects between the two binding disciplines.
type constraintKind uint8

const (
	requireOne constraintKind = iota + 1
	variadic
)

// Constraint declares how connections may bind to a role. A soma lists
// its input and output constraints at construction; the membrane enforces
// them as wiring impulses arrive and verifies them at Start.
type Constraint[Y comparable] struct {
	kind constraintKind
	role Y
}

// RequireOne declares a role that must be bound to exactly one peer.
func RequireOne[Y comparable](role Y) Constraint[Y] {
	return Constraint[Y]{kind: requireOne, role: role}
}

// Variadic declares a role that may be bound to zero or more peers.
func Variadic[Y comparable](role Y) Constraint[Y] {
	return Constraint[Y]{kind: variadic, role: role}
}

// Role returns the role the constraint governs.
func (c Constraint[Y]) Role() Y {
	return c.role
}

// binding tracks the handles bound to one declared role.
type binding[Y comparable] struct {
	constraint Constraint[Y]
	one        Handle
	filled     bool
	many       []Handle
}

// Membrane is the constraint helper every leaf soma wires through. It
// consumes Init, AddInput, AddOutput, and Start when they are valid,
// keeps role-keyed binding maps for both directions, and hands anything
// else back to user code untouched. Start is re-emitted after
// verification so the soma can observe the transition.
type Membrane[S any, Y comparable] struct {
	effector *Effector[S, Y]
	parent   *Handle

	inputs  map[Y]*binding[Y]
	outputs map[Y]*binding[Y]
}

// NewMembrane builds a membrane from the declared input and output
// constraints. Declaring the same role twice on one side is an error.
func NewMembrane[S any, Y comparable](inputs, outputs []Constraint[Y]) (*Membrane[S, Y], error) {
	in, err := createRoles(inputs)
	if err != nil {
		return nil, err
	}
	out, err := createRoles(outputs)
	if err != nil {
		return nil, err
	}

	return &Membrane[S, Y]{inputs: in, outputs: out}, nil
}

func createRoles[Y comparable](constraints []Constraint[Y]) (map[Y]*binding[Y], error) {
	m := make(map[Y]*binding[Y], len(constraints))
	for _, c := range constraints {
		if _, exists := m[c.role]; exists {
			return nil, fmt.Errorf("%w: %v", ErrRoleDuplicate, c.role)
		}
		m[c.role] = &binding[Y]{constraint: c}
	}
	return m, nil
}

// Update feeds an impulse through the membrane. It returns nil when the
// membrane consumed the impulse, or the impulse the soma should handle
// itself. Invalid wiring is reported synchronously.
func (m *Membrane[S, Y]) Update(imp Impulse[S, Y]) (*Impulse[S, Y], error) {
	switch imp.Kind {
	case KindInit:
		if err := m.init(imp.Parent, imp.Effector); err != nil {
			return nil, err
		}
		return nil, nil

	case KindAddInput:
		if err := addRole(m.inputs, imp.Peer, imp.Role); err != nil {
			return nil, err
		}
		return nil, nil

	case KindAddOutput:
		if err := addRole(m.outputs, imp.Peer, imp.Role); err != nil {
			return nil, err
		}
		return nil, nil

	case KindStart:
		if err := m.verify(); err != nil {
			return nil, err
		}
		return &imp, nil

	default:
		return &imp, nil
	}
}

func (m *Membrane[S, Y]) init(parent *Handle, effector *Effector[S, Y]) error {
	if m.effector != nil {
		return ErrInitRepeated
	}
	m.effector = effector
	m.parent = parent
	return nil
}

// verify checks that Init arrived and every RequireOne role is filled.
func (m *Membrane[S, Y]) verify() error {
	if m.effector == nil {
		return ErrNotInitialized
	}
	if err := verifyConstraints(m.inputs); err != nil {
		return err
	}
	return verifyConstraints(m.outputs)
}

func addRole[Y comparable](m map[Y]*binding[Y], peer Handle, role Y) error {
	b, ok := m[role]
	if !ok {
		return fmt.Errorf("%w: %v", ErrRoleUnknown, role)
	}

	switch b.constraint.kind {
	case requireOne:
		if b.filled {
			return fmt.Errorf("%w: %v", ErrRoleOccupied, role)
		}
		b.one = peer
		b.filled = true
	case variadic:
		b.many = append(b.many, peer)
	}

	return nil
}

func verifyConstraints[Y comparable](m map[Y]*binding[Y]) error {
	for role, b := range m {
		if b.constraint.kind == requireOne && !b.filled {
			return fmt.Errorf("%w: %v", ErrRoleUnbound, role)
		}
	}
	return nil
}

// Effector returns the effector delivered at Init.
func (m *Membrane[S, Y]) Effector() (*Effector[S, Y], error) {
	if m.effector == nil {
		return nil, ErrNotInitialized
	}
	return m.effector, nil
}

// Parent returns the enclosing scope's handle, nil at the top level or
// before Init.
func (m *Membrane[S, Y]) Parent() *Handle {
	return m.parent
}

// ReqInput returns the handle bound to a RequireOne input role.
func (m *Membrane[S, Y]) ReqInput(role Y) (Handle, error) {
	return getReq(m.inputs, role)
}

// VarInput returns the handles bound to a Variadic input role, in
// binding order.
func (m *Membrane[S, Y]) VarInput(role Y) ([]Handle, error) {
	return getVar(m.inputs, role)
}

// ReqOutput returns the handle bound to a RequireOne output role.
func (m *Membrane[S, Y]) ReqOutput(role Y) (Handle, error) {
	return getReq(m.outputs, role)
}

// VarOutput returns the handles bound to a Variadic output role, in
// binding order.
func (m *Membrane[S, Y]) VarOutput(role Y) ([]Handle, error) {
	return getVar(m.outputs, role)
}

// SendReqInput resolves a RequireOne input role and sends sig to it.
func (m *Membrane[S, Y]) SendReqInput(ctx context.Context, role Y, sig S) error {
	dest, err := m.ReqInput(role)
	if err != nil {
		return err
	}
	eff, err := m.Effector()
	if err != nil {
		return err
	}
	return eff.Send(ctx, dest, sig)
}

// SendReqOutput resolves a RequireOne output role and sends sig to it.
func (m *Membrane[S, Y]) SendReqOutput(ctx context.Context, role Y, sig S) error {
	dest, err := m.ReqOutput(role)
	if err != nil {
		return err
	}
	eff, err := m.Effector()
	if err != nil {
		return err
	}
	return eff.Send(ctx, dest, sig)
}

func getReq[Y comparable](m map[Y]*binding[Y], role Y) (Handle, error) {
	b, ok := m[role]
	if !ok || b.constraint.kind != requireOne {
		return Handle{}, fmt.Errorf("%w: %v", ErrRoleUnknown, role)
	}
	if !b.filled {
		return Handle{}, fmt.Errorf("%w: %v", ErrRoleUnbound, role)
	}
	return b.one, nil
}

func getVar[Y comparable](m map[Y]*binding[Y], role Y) ([]Handle, error) {
	b, ok := m[role]
	if !ok || b.constraint.kind != variadic {
		return nil, fmt.Errorf("%w: %v", ErrRoleUnknown, role)
	}
	return b.many, nil
}
