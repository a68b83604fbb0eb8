// Package soma is a hierarchical actor runtime. Its fundamental unit is a
// soma: a node that exchanges typed impulses over typed connections with
// other somas. Somas compose into organelles — composite somas that present
// a single-soma interface to their enclosing scope — allowing networks to
// nest to arbitrary depth while each level sees only its own peers.
//
// The runtime routes point-to-point payloads through nested composites,
// rewriting source identities at each boundary so that an organelle's
// internals stay hidden, verifies connection constraints before anything
// starts, and drives every soma as an independent cooperative task over a
// shared reactor.
//
// Subpackages carry the supporting stack: journal persists runtime events,
// otel and metrics translate them for observability backends, blueprint
// loads declarative topologies, and probe schedules live diagnostics.
package soma

import "context"

// Soma is the contract every node satisfies, leaf or composite.
//
// Update consumes the soma and returns its successor state. Implementations
// receive every impulse addressed to them — lifecycle, wiring, and signal
// traffic alike — and must not block outside channel operations. Errors
// returned from Update are lifted to Err impulses by the enclosing
// organelle's drive task.
type Soma[S any, Y comparable] interface {
	Update(ctx context.Context, imp Impulse[S, Y]) (Soma[S, Y], error)
}
