package soma

import (
	"context"
	"testing"
	"time"
)

// testRole is the synapse type used throughout the kernel tests.
type testRole string

const (
	roleData testRole = "data_in"
	roleSink testRole = "sink"
	roleLink testRole = "link"
)

// wireSignal and wireRole form a foreign protocol for conversion tests.
type wireSignal struct {
	Text string
}

type wireRole string

func downCodec() Codec[string, testRole, wireSignal, wireRole] {
	return Codec[string, testRole, wireSignal, wireRole]{
		Signal:  func(s string) wireSignal { return wireSignal{Text: s} },
		Synapse: func(r testRole) wireRole { return wireRole(r) },
	}
}

func upCodec() Codec[wireSignal, wireRole, string, testRole] {
	return Codec[wireSignal, wireRole, string, testRole]{
		Signal:  func(s wireSignal) string { return s.Text },
		Synapse: func(r wireRole) testRole { return testRole(r) },
	}
}

// delivery records a signal as observed by a recording leaf.
type delivery struct {
	src Handle
	sig string
}

// newRecorder builds a leaf that records every post-Start signal it
// observes into out.
func newRecorder(t *testing.T, inputs []Constraint[testRole], out chan<- delivery) *Eukaryote[string, testRole] {
	t.Helper()

	var logic NucleusFunc[string, testRole]
	logic = func(ctx context.Context, m *Membrane[string, testRole], imp Impulse[string, testRole]) (Nucleus[string, testRole], error) {
		if imp.Kind == KindSignal {
			select {
			case out <- delivery{src: imp.Src, sig: imp.Signal}:
			case <-ctx.Done():
			}
		}
		return logic, nil
	}

	leaf, err := NewEukaryote[string, testRole](logic, inputs, nil)
	if err != nil {
		t.Fatalf("NewEukaryote() error = %v", err)
	}
	return leaf
}

// newForwarder builds a leaf that relays every post-Start signal to its
// RequireOne output role.
func newForwarder(t *testing.T, in, out testRole) *Eukaryote[string, testRole] {
	t.Helper()

	var logic NucleusFunc[string, testRole]
	logic = func(ctx context.Context, m *Membrane[string, testRole], imp Impulse[string, testRole]) (Nucleus[string, testRole], error) {
		if imp.Kind == KindSignal {
			if err := m.SendReqOutput(ctx, out, imp.Signal); err != nil {
				return nil, err
			}
		}
		return logic, nil
	}

	leaf, err := NewEukaryote[string, testRole](logic,
		[]Constraint[testRole]{RequireOne(in)},
		[]Constraint[testRole]{RequireOne(out)},
	)
	if err != nil {
		t.Fatalf("NewEukaryote() error = %v", err)
	}
	return leaf
}

// newStartSender builds a leaf that sends sig to its RequireOne output
// role once Start arrives.
func newStartSender(t *testing.T, out testRole, sig string) *Eukaryote[string, testRole] {
	t.Helper()

	var logic NucleusFunc[string, testRole]
	logic = func(ctx context.Context, m *Membrane[string, testRole], imp Impulse[string, testRole]) (Nucleus[string, testRole], error) {
		if imp.Kind == KindStart {
			if err := m.SendReqOutput(ctx, out, sig); err != nil {
				return nil, err
			}
		}
		return logic, nil
	}

	leaf, err := NewEukaryote[string, testRole](logic, nil,
		[]Constraint[testRole]{RequireOne(out)},
	)
	if err != nil {
		t.Fatalf("NewEukaryote() error = %v", err)
	}
	return leaf
}

// newNoop builds a leaf with no constraints that ignores everything.
func newNoop(t *testing.T) *Eukaryote[string, testRole] {
	t.Helper()

	var logic NucleusFunc[string, testRole]
	logic = func(ctx context.Context, m *Membrane[string, testRole], imp Impulse[string, testRole]) (Nucleus[string, testRole], error) {
		return logic, nil
	}

	leaf, err := NewEukaryote[string, testRole](logic, nil, nil)
	if err != nil {
		t.Fatalf("NewEukaryote() error = %v", err)
	}
	return leaf
}

// waitDelivery receives one delivery or fails the test after two seconds.
func waitDelivery(t *testing.T, ch <-chan delivery) delivery {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return delivery{}
	}
}

// waitErr receives a run result or fails the test after two seconds.
func waitErr(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for run to finish")
		return nil
	}
}
