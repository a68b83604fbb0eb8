// Package journal persists runtime events for later inspection. A store
// keeps events per run; the Recorder adapts a store to the kernel's
// event-handler contract, stamping each event with a per-run sequence
// number so readers can page through a run in order.
package journal

import (
	"context"
	"sync"

	"github.com/axon-labs/soma"
)

// EventStore persists and retrieves runtime events.
type EventStore interface {
	// Append stores an event. The event's Seq must already be assigned.
	Append(ctx context.Context, event soma.Event) error

	// List returns events for a run with Seq greater than afterSeq, in
	// sequence order. limit <= 0 means no limit.
	List(ctx context.Context, runID string, afterSeq uint64, limit int) ([]soma.Event, error)

	// LatestSeq returns the highest sequence number stored for a run,
	// zero when the run is unknown.
	LatestSeq(ctx context.Context, runID string) (uint64, error)

	// Close releases store resources.
	Close() error
}

// Recorder turns a store into a soma.EventHandler. It assigns sequence
// numbers per run and appends synchronously; storage failures are handed
// to onErr when set and dropped otherwise, so a broken store never stalls
// the routing fabric.
type Recorder struct {
	store EventStore
	onErr func(error)

	mu   sync.Mutex
	seqs map[string]uint64
}

// NewRecorder creates a recorder over store. onErr may be nil.
func NewRecorder(store EventStore, onErr func(error)) *Recorder {
	return &Recorder{
		store: store,
		onErr: onErr,
		seqs:  make(map[string]uint64),
	}
}

// Handler returns the event handler to register on an organelle.
func (r *Recorder) Handler() soma.EventHandler {
	return func(e soma.Event) {
		r.mu.Lock()
		r.seqs[e.RunID]++
		e.Seq = r.seqs[e.RunID]
		r.mu.Unlock()

		if err := r.store.Append(context.Background(), e); err != nil && r.onErr != nil {
			r.onErr(err)
		}
	}
}
