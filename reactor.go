package soma

import (
	"context"
	"sync"
)

// Reactor is the cooperative task scope every soma runs in. Routing tasks,
// drive tasks, and any auxiliary tasks a soma spawns through its effector
// all share one reactor; cancelling the reactor's context is the teardown
// path for all of them.
type Reactor struct {
	ctx context.Context
	wg  sync.WaitGroup
}

// NewReactor creates a reactor bound to ctx. Tasks observe ctx through the
// argument passed to them and must return promptly once it is done.
func NewReactor(ctx context.Context) *Reactor {
	return &Reactor{ctx: ctx}
}

// Spawn runs task as an independent unit within the reactor's scope.
func (r *Reactor) Spawn(task func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		task(r.ctx)
	}()
}

// Wait blocks until every spawned task has returned. Callers cancel the
// reactor's context first; Wait does not cancel anything itself.
func (r *Reactor) Wait() {
	r.wg.Wait()
}

// Context returns the context tasks in this reactor observe.
func (r *Reactor) Context() context.Context {
	return r.ctx
}
