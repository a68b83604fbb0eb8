package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/axon-labs/soma"
)

func newTestSQLiteStore(t *testing.T, cfg SQLiteStoreConfig) *SQLiteEventStore {
	t.Helper()
	if cfg.DSN == "" {
		cfg.DSN = filepath.Join(t.TempDir(), "journal.db")
	}
	s, err := NewSQLiteEventStore(cfg)
	if err != nil {
		t.Fatalf("NewSQLiteEventStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteEventStore_AppendAndList(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t, SQLiteStoreConfig{})

	node := soma.NewHandle()
	src := soma.NewHandle()

	e := soma.Event{
		Kind:    soma.EventSignalDelivered,
		RunID:   "run-1",
		Label:   "pipeline",
		Seq:     1,
		Node:    node,
		Src:     src,
		Impulse: soma.KindSignal,
		Time:    time.Now().UTC(),
	}
	if err := s.Append(ctx, e); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := s.Append(ctx, soma.Event{
		Kind:  soma.EventSomaFailed,
		RunID: "run-1",
		Seq:   2,
		Node:  node,
		Time:  time.Now().UTC(),
		Err:   errors.New("update exploded"),
	}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	events, err := s.List(ctx, "run-1", 0, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("List() returned %d events, want 2", len(events))
	}

	got := events[0]
	if got.Kind != soma.EventSignalDelivered || got.Label != "pipeline" {
		t.Errorf("round-tripped event = %+v", got)
	}
	if got.Node != node || got.Src != src {
		t.Error("handles should survive the round trip")
	}
	if got.Impulse != soma.KindSignal {
		t.Errorf("round-tripped impulse = %v, want signal", got.Impulse)
	}

	if events[1].Err == nil || events[1].Err.Error() != "update exploded" {
		t.Errorf("round-tripped error = %v, want the stored text", events[1].Err)
	}
}

func TestSQLiteEventStore_ListPaging(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t, SQLiteStoreConfig{})

	for seq := uint64(1); seq <= 10; seq++ {
		if err := s.Append(ctx, testEvent("run-1", seq, soma.EventProbe)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	events, err := s.List(ctx, "run-1", 4, 3)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("List() returned %d events, want 3", len(events))
	}
	for i, want := range []uint64{5, 6, 7} {
		if events[i].Seq != want {
			t.Errorf("events[%d].Seq = %d, want %d", i, events[i].Seq, want)
		}
	}
}

func TestSQLiteEventStore_LatestSeqAndRunIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t, SQLiteStoreConfig{})

	seq, err := s.LatestSeq(ctx, "missing")
	if err != nil {
		t.Fatalf("LatestSeq() error = %v", err)
	}
	if seq != 0 {
		t.Errorf("LatestSeq(missing) = %d, want 0", seq)
	}

	for seq := uint64(1); seq <= 4; seq++ {
		if err := s.Append(ctx, testEvent("run-b", seq, soma.EventStarted)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	if err := s.Append(ctx, testEvent("run-a", 1, soma.EventStarted)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	seq, err = s.LatestSeq(ctx, "run-b")
	if err != nil {
		t.Fatalf("LatestSeq() error = %v", err)
	}
	if seq != 4 {
		t.Errorf("LatestSeq(run-b) = %d, want 4", seq)
	}

	ids, err := s.RunIDs(ctx)
	if err != nil {
		t.Fatalf("RunIDs() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "run-a" || ids[1] != "run-b" {
		t.Errorf("RunIDs() = %v, want [run-a run-b]", ids)
	}
}

func TestSQLiteEventStore_PruneByCount(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t, SQLiteStoreConfig{RetentionCount: 3, PruneInterval: time.Hour})

	for seq := uint64(1); seq <= 10; seq++ {
		if err := s.Append(ctx, testEvent("run-1", seq, soma.EventProbe)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	if err := s.Prune(ctx); err != nil {
		t.Fatalf("Prune() error = %v", err)
	}

	events, err := s.List(ctx, "run-1", 0, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("after prune, %d events remain, want 3", len(events))
	}
	if events[0].Seq != 8 {
		t.Errorf("oldest surviving seq = %d, want 8", events[0].Seq)
	}
}
