// Package composition exposes the composition records of a user over HTTP.
package composition

import (
	"context"
	"errors"
	"fmt"

	"github.com/inamate/compositor/internal/document"
	"github.com/inamate/compositor/internal/snapshot"
	"github.com/inamate/compositor/internal/typeid"
)

var (
	ErrNotFound  = errors.New("composition not found")
	ErrForbidden = errors.New("forbidden")
	ErrInvalid   = errors.New("invalid composition")
)

// PlaygroundID is the shared composition open to anonymous users.
const PlaygroundID = "comp_playground"

// Live reports the in-memory state of compositions that are open in an
// editing session.
type Live interface {
	Composition(ctx context.Context, id string) (*document.Composition, bool)
}

type Service struct {
	store snapshot.Store
	live  Live
}

// NewService creates a service over store. live may be nil, in which case
// reads always come from the latest snapshot.
func NewService(store snapshot.Store, live Live) *Service {
	return &Service{store: store, live: live}
}

// Composition is the summary returned by the API.
type Composition struct {
	snapshot.Record
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	FPS         int    `json:"fps"`
	Background  string `json:"background"`
	TotalFrames int    `json:"totalFrames"`
	LayerCount  int    `json:"layerCount"`
}

type CreateParams struct {
	Name   string `json:"name"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	FPS    int    `json:"fps,omitempty"`
	// Sample seeds the composition with the sample layers.
	Sample bool `json:"sample,omitempty"`
}

func (s *Service) Create(ctx context.Context, ownerID string, p CreateParams) (*Composition, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if p.Width < 0 || p.Height < 0 || p.FPS < 0 {
		return nil, fmt.Errorf("%w: negative size or frame rate", ErrInvalid)
	}

	id := typeid.NewCompositionID()
	var comp *document.Composition
	if p.Sample {
		comp = document.NewSampleComposition(id)
		comp.Name = p.Name
	} else {
		comp = document.NewEmptyComposition(id, p.Name)
	}
	if p.Width > 0 {
		comp.Width = p.Width
	}
	if p.Height > 0 {
		comp.Height = p.Height
	}
	if p.FPS > 0 {
		comp.FPS = p.FPS
	}

	rec := snapshot.Record{ID: id, Name: p.Name, OwnerID: ownerID}
	if err := s.store.Create(ctx, rec, comp); err != nil {
		return nil, fmt.Errorf("create composition: %w", err)
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get composition: %w", err)
	}
	return summarize(rec, comp), nil
}

func (s *Service) Get(ctx context.Context, id, userID string) (*Composition, error) {
	rec, err := s.authorize(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	comp, err := s.current(ctx, id)
	if err != nil {
		return nil, err
	}
	return summarize(rec, comp), nil
}

func (s *Service) List(ctx context.Context, userID string) ([]snapshot.Record, error) {
	recs, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list compositions: %w", err)
	}
	if recs == nil {
		recs = []snapshot.Record{}
	}
	return recs, nil
}

func (s *Service) Delete(ctx context.Context, id, userID string) error {
	if _, err := s.authorize(ctx, id, userID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return mapStoreError(err)
	}
	return nil
}

// Latest returns the current state of a composition: the live session state
// when it is open, otherwise the newest snapshot.
func (s *Service) Latest(ctx context.Context, id, userID string) (*document.Composition, error) {
	if id == PlaygroundID {
		comp, err := s.current(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return document.NewSampleComposition(id), nil
		}
		return comp, err
	}
	if _, err := s.authorize(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.current(ctx, id)
}

func (s *Service) History(ctx context.Context, id, userID string, limit int) ([]snapshot.Snapshot, error) {
	if _, err := s.authorize(ctx, id, userID); err != nil {
		return nil, err
	}
	snaps, err := s.store.History(ctx, id, limit)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if snaps == nil {
		snaps = []snapshot.Snapshot{}
	}
	return snaps, nil
}

// Authorize checks that userID may open the composition. The playground is
// open to everyone.
func (s *Service) Authorize(ctx context.Context, id, userID string) error {
	if id == PlaygroundID {
		return nil
	}
	_, err := s.authorize(ctx, id, userID)
	return err
}

func (s *Service) authorize(ctx context.Context, id, userID string) (snapshot.Record, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return snapshot.Record{}, mapStoreError(err)
	}
	if rec.OwnerID != userID {
		return snapshot.Record{}, ErrForbidden
	}
	return rec, nil
}

func (s *Service) current(ctx context.Context, id string) (*document.Composition, error) {
	if s.live != nil {
		if comp, ok := s.live.Composition(ctx, id); ok {
			return comp, nil
		}
	}
	comp, err := s.store.Latest(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return comp, nil
}

func mapStoreError(err error) error {
	if errors.Is(err, snapshot.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func summarize(rec snapshot.Record, comp *document.Composition) *Composition {
	return &Composition{
		Record:      rec,
		Width:       comp.Width,
		Height:      comp.Height,
		FPS:         comp.FPS,
		Background:  comp.Background,
		TotalFrames: comp.TotalFrames(),
		LayerCount:  len(comp.Layers),
	}
}
