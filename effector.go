package soma

import "context"

// Effector is the outbound handle a soma receives at Init. Every impulse
// emitted through it is stamped with the owning soma's identity, so a
// soma can only ever speak as itself. Effectors are value-cloneable and
// carry the reactor so somas may spawn auxiliary tasks in the same scope.
//
// An effector is intended for use only by the soma whose identity it
// bears; the runtime does not enforce this.
type Effector[S any, Y comparable] struct {
	this    Handle
	send    func(ctx context.Context, imp Impulse[S, Y]) error
	reactor *Reactor
}

// NewEffector builds an effector that emits into ch on behalf of this.
func NewEffector[S any, Y comparable](this Handle, ch chan<- Impulse[S, Y], reactor *Reactor) *Effector[S, Y] {
	return &Effector[S, Y]{
		this:    this,
		send:    chanSend(ch),
		reactor: reactor,
	}
}

// chanSend adapts a channel half into a context-aware send function. A
// full channel suspends the sender; this is the runtime's only
// backpressure.
func chanSend[S any, Y comparable](ch chan<- Impulse[S, Y]) func(context.Context, Impulse[S, Y]) error {
	return func(ctx context.Context, imp Impulse[S, Y]) error {
		select {
		case ch <- imp:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// This returns the handle of the soma the effector speaks for.
func (e *Effector[S, Y]) This() Handle {
	return e.this
}

// Reactor returns the cooperative scope the owning soma runs in.
func (e *Effector[S, Y]) Reactor() *Reactor {
	return e.reactor
}

// Send emits Payload(this, dest, sig) into the enclosing scope.
func (e *Effector[S, Y]) Send(ctx context.Context, dest Handle, sig S) error {
	return e.send(ctx, NewPayload[S, Y](e.this, dest, sig))
}

// Emit hands an arbitrary impulse to the enclosing scope. The organelle
// uses this for Stop and Err forwarding; leaf somas normally want Send.
func (e *Effector[S, Y]) Emit(ctx context.Context, imp Impulse[S, Y]) error {
	return e.send(ctx, imp)
}

// Spawn runs task on the effector's reactor.
func (e *Effector[S, Y]) Spawn(task func(ctx context.Context)) {
	e.reactor.Spawn(task)
}
