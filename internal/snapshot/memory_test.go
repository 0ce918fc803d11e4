package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/inamate/compositor/internal/document"
)

func TestMemoryStoreVersions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	comp := document.NewEmptyComposition("comp_1", "Intro")

	if err := s.Create(ctx, Record{ID: comp.ID, Name: comp.Name, OwnerID: "u1"}, comp); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := s.Create(ctx, Record{ID: comp.ID}, comp); err == nil {
		t.Error("Create() of an existing id succeeded")
	}

	comp.Layers = append(comp.Layers, document.Layer{ID: "layer_a", Kind: document.LayerKindShape})
	snap, err := s.Save(ctx, comp)
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if snap.Version != 2 {
		t.Errorf("Save() version = %d, want 2", snap.Version)
	}

	latest, err := s.Latest(ctx, comp.ID)
	if err != nil {
		t.Fatalf("Latest() error: %v", err)
	}
	if len(latest.Layers) != 1 || latest.Layers[0].ID != "layer_a" {
		t.Errorf("Latest() layers = %+v", latest.Layers)
	}

	// Later mutation of the saved value must not leak into the store.
	comp.Layers[0].ID = "changed"
	latest, _ = s.Latest(ctx, comp.ID)
	if latest.Layers[0].ID != "layer_a" {
		t.Errorf("stored layer id = %q, want layer_a", latest.Layers[0].ID)
	}

	history, err := s.History(ctx, comp.ID, 0)
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if len(history) != 2 || history[0].Version != 2 || history[1].Version != 1 {
		t.Errorf("History() = %+v, want versions [2 1]", history)
	}
	if history, _ := s.History(ctx, comp.ID, 1); len(history) != 1 {
		t.Errorf("History(limit 1) len = %d, want 1", len(history))
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Get(ctx, "comp_x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if _, err := s.Latest(ctx, "comp_x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Latest() error = %v, want ErrNotFound", err)
	}
	if _, err := s.History(ctx, "comp_x", 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("History() error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "comp_x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreSaveCreatesRecord(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if _, err := s.Save(ctx, document.NewEmptyComposition("comp_2", "Loose")); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	rec, err := s.Get(ctx, "comp_2")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if rec.OwnerID != "" || rec.Name != "Loose" {
		t.Errorf("Get() = %+v, want unowned record named Loose", rec)
	}
}

func TestMemoryStoreListByOwner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	for _, rec := range []Record{
		{ID: "comp_a", OwnerID: "u1"},
		{ID: "comp_b", OwnerID: "u2"},
		{ID: "comp_c", OwnerID: "u1"},
	} {
		if err := s.Create(ctx, rec, document.NewEmptyComposition(rec.ID, "")); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "comp_c" || got[1].ID != "comp_a" {
		t.Errorf("List() = %+v, want [comp_c comp_a]", got)
	}

	if err := s.Delete(ctx, "comp_c"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := s.Latest(ctx, "comp_c"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Latest() after Delete error = %v, want ErrNotFound", err)
	}
}
