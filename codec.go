package soma

import "context"

// Codec converts the payload fields of one protocol into another. A soma
// whose signal and synapse types differ from its enclosing organelle's is
// attached with a codec pair, one per direction; impulses crossing the
// boundary are translated field-wise while handle fields pass through
// unchanged.
type Codec[S1 any, Y1 comparable, S2 any, Y2 comparable] struct {
	// Signal converts a user payload.
	Signal func(S1) S2

	// Synapse converts a connection role.
	Synapse func(Y1) Y2
}

// Identity returns the codec that maps a protocol onto itself.
func Identity[S any, Y comparable]() Codec[S, Y, S, Y] {
	return Codec[S, Y, S, Y]{
		Signal:  func(s S) S { return s },
		Synapse: func(y Y) Y { return y },
	}
}

// Convert translates an impulse between protocols. Handle fields are
// preserved; Role and Signal fields go through the codec's conversion
// functions.
//
// Init impulses cannot be value-converted — their effector is a live
// channel half, adapted by the organelle's drive task instead — so
// Convert panics on them. That is a programmer error, never runtime
// traffic.
func (c Codec[S1, Y1, S2, Y2]) Convert(imp Impulse[S1, Y1]) Impulse[S2, Y2] {
	out := Impulse[S2, Y2]{
		Kind: imp.Kind,
		Peer: imp.Peer,
		Src:  imp.Src,
		Dest: imp.Dest,
		Err:  imp.Err,
	}

	switch imp.Kind {
	case KindInit:
		panic("soma: Init impulses are adapted by the drive task, not converted")
	case KindAddInput, KindAddOutput:
		out.Role = c.Synapse(imp.Role)
	case KindPayload, KindSignal:
		out.Signal = c.Signal(imp.Signal)
	}

	return out
}

// adaptEffector wraps an effector of the enclosing protocol so a child of
// a different protocol can emit through it. The child's identity is kept;
// every emitted impulse is converted upward before it reaches the
// organelle's routing queue.
func adaptEffector[CS any, CY comparable, S any, Y comparable](
	eff *Effector[S, Y],
	up Codec[CS, CY, S, Y],
) *Effector[CS, CY] {
	inner := eff.send
	return &Effector[CS, CY]{
		this:    eff.this,
		reactor: eff.reactor,
		send: func(ctx context.Context, imp Impulse[CS, CY]) error {
			return inner(ctx, up.Convert(imp))
		},
	}
}
