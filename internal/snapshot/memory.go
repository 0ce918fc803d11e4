package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/inamate/compositor/internal/document"
	"github.com/inamate/compositor/internal/typeid"
)

// MemoryStore keeps compositions in process. It backs tests and servers
// started without a database.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string]Record
	snapshots map[string][]stored
	now       func() time.Time
}

type stored struct {
	meta Snapshot
	doc  []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]Record),
		snapshots: make(map[string][]stored),
		now:       time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Create(ctx context.Context, rec Record, comp *document.Composition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return fmt.Errorf("composition %s already exists", rec.ID)
	}
	now := s.now()
	rec.CreatedAt, rec.UpdatedAt = now, now
	s.records[rec.ID] = rec
	_, err := s.appendLocked(comp)
	return err
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) List(ctx context.Context, ownerID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, rec := range s.records {
		if rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b Record) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	delete(s.snapshots, id)
	return nil
}

func (s *MemoryStore) Latest(ctx context.Context, id string) (*document.Composition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.snapshots[id]
	if len(history) == 0 {
		return nil, ErrNotFound
	}
	var comp document.Composition
	if err := json.Unmarshal(history[len(history)-1].doc, &comp); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &comp, nil
}

func (s *MemoryStore) Save(ctx context.Context, comp *document.Composition) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[comp.ID]
	if !ok {
		rec = Record{ID: comp.ID, Name: comp.Name, CreatedAt: s.now()}
	}
	rec.UpdatedAt = s.now()
	s.records[comp.ID] = rec
	return s.appendLocked(comp)
}

func (s *MemoryStore) appendLocked(comp *document.Composition) (Snapshot, error) {
	doc, err := json.Marshal(comp)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode composition: %w", err)
	}
	meta := Snapshot{
		ID:            typeid.NewSnapshotID(),
		CompositionID: comp.ID,
		Version:       len(s.snapshots[comp.ID]) + 1,
		CreatedAt:     s.now(),
	}
	s.snapshots[comp.ID] = append(s.snapshots[comp.ID], stored{meta: meta, doc: doc})
	return meta, nil
}

func (s *MemoryStore) History(ctx context.Context, id string, limit int) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.records[id]; !ok {
		return nil, ErrNotFound
	}
	history := s.snapshots[id]
	out := make([]Snapshot, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, history[i].meta)
	}
	return out, nil
}
