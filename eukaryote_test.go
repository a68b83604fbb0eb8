package soma

import (
	"context"
	"errors"
	"testing"
)

func TestEukaryote_MembraneConsumesLifecycle(t *testing.T) {
	var seen []ImpulseKind
	var logic NucleusFunc[string, testRole]
	logic = func(ctx context.Context, m *Membrane[string, testRole], imp Impulse[string, testRole]) (Nucleus[string, testRole], error) {
		seen = append(seen, imp.Kind)
		return logic, nil
	}

	leaf, err := NewEukaryote[string, testRole](logic,
		[]Constraint[testRole]{RequireOne(roleData)}, nil)
	if err != nil {
		t.Fatalf("NewEukaryote() error = %v", err)
	}

	ctx := context.Background()
	ch := make(chan Impulse[string, testRole], 1)
	parent := NewHandle()

	var node Soma[string, testRole] = leaf
	for _, imp := range []Impulse[string, testRole]{
		NewInit(&parent, newTestEffector(NewHandle(), ch)),
		NewAddInput[string, testRole](NewHandle(), roleData),
		NewStart[string, testRole](),
		NewSignal[string, testRole](NewHandle(), "sig"),
	} {
		node, err = node.Update(ctx, imp)
		if err != nil {
			t.Fatalf("Update(%s) error = %v", imp.Kind, err)
		}
	}

	// The nucleus sees Start (re-emitted after verification) and the
	// signal; Init and the wiring stay inside the membrane.
	want := []ImpulseKind{KindStart, KindSignal}
	if len(seen) != len(want) {
		t.Fatalf("nucleus saw %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("nucleus saw %v, want %v", seen, want)
			break
		}
	}
}

func TestEukaryote_WiringErrorSurfaces(t *testing.T) {
	leaf := newNoop(t)

	_, err := leaf.Update(context.Background(), NewStart[string, testRole]())
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Start before Init: error = %v, want ErrNotInitialized", err)
	}
}

func TestEukaryote_NucleusErrorPropagates(t *testing.T) {
	failure := errors.New("nucleus exploded")
	var logic NucleusFunc[string, testRole]
	logic = func(ctx context.Context, m *Membrane[string, testRole], imp Impulse[string, testRole]) (Nucleus[string, testRole], error) {
		if imp.Kind == KindSignal {
			return nil, failure
		}
		return logic, nil
	}

	leaf, err := NewEukaryote[string, testRole](logic, nil, nil)
	if err != nil {
		t.Fatalf("NewEukaryote() error = %v", err)
	}

	ctx := context.Background()
	ch := make(chan Impulse[string, testRole], 1)
	node, err := leaf.Update(ctx, NewInit(nil, newTestEffector(NewHandle(), ch)))
	if err != nil {
		t.Fatalf("Update(Init) error = %v", err)
	}

	_, err = node.Update(ctx, NewSignal[string, testRole](NewHandle(), "sig"))
	if !errors.Is(err, failure) {
		t.Errorf("Update(Signal) error = %v, want the nucleus failure", err)
	}
}

func TestEukaryote_NucleusRebinds(t *testing.T) {
	count := 0
	var counting NucleusFunc[string, testRole]
	counting = func(ctx context.Context, m *Membrane[string, testRole], imp Impulse[string, testRole]) (Nucleus[string, testRole], error) {
		if imp.Kind == KindSignal {
			count++
		}
		return counting, nil
	}

	leaf, err := NewEukaryote[string, testRole](counting, nil, nil)
	if err != nil {
		t.Fatalf("NewEukaryote() error = %v", err)
	}

	ctx := context.Background()
	ch := make(chan Impulse[string, testRole], 1)
	var node Soma[string, testRole] = leaf
	node, err = node.Update(ctx, NewInit(nil, newTestEffector(NewHandle(), ch)))
	if err != nil {
		t.Fatalf("Update(Init) error = %v", err)
	}

	for i := 0; i < 3; i++ {
		node, err = node.Update(ctx, NewSignal[string, testRole](NewHandle(), "sig"))
		if err != nil {
			t.Fatalf("Update(Signal) error = %v", err)
		}
	}
	if count != 3 {
		t.Errorf("nucleus observed %d signals, want 3", count)
	}
}
