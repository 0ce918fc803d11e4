// Package layerstore holds the ordered layer sequence of a composition.
//
// Order defines paint order: the front-most layer is last. Every operation
// returns a new Sequence and never mutates the receiver, so observers can
// compare sequences cheaply. Invalid input (unknown id, out-of-range index)
// returns the receiver unchanged.
package layerstore

import "github.com/inamate/compositor/internal/document"

// Sequence is an immutable ordered list of layers.
type Sequence struct {
	layers []document.Layer
}

// New builds a sequence from a persisted layer list. The input is copied.
func New(layers []document.Layer) Sequence {
	out := make([]document.Layer, len(layers))
	for i, l := range layers {
		out[i] = l.Clone()
	}
	return Sequence{layers: out}
}

// Len returns the number of layers.
func (s Sequence) Len() int { return len(s.layers) }

// At returns a copy of the layer at index i.
func (s Sequence) At(i int) (document.Layer, bool) {
	if i < 0 || i >= len(s.layers) {
		return document.Layer{}, false
	}
	return s.layers[i].Clone(), true
}

// Layers returns a deep copy of the ordered layers.
func (s Sequence) Layers() []document.Layer {
	out := make([]document.Layer, len(s.layers))
	for i, l := range s.layers {
		out[i] = l.Clone()
	}
	return out
}

// IndexOf returns the position of the layer with the given id, or -1.
func (s Sequence) IndexOf(id string) int {
	for i := range s.layers {
		if s.layers[i].ID == id {
			return i
		}
	}
	return -1
}

// Get returns a copy of the layer with the given id.
func (s Sequence) Get(id string) (document.Layer, bool) {
	return s.At(s.IndexOf(id))
}

// Same reports whether two sequences share the same backing array, which is
// true exactly when one was returned unchanged from an operation on the other.
func (s Sequence) Same(other Sequence) bool {
	if len(s.layers) != len(other.layers) {
		return false
	}
	if len(s.layers) == 0 {
		return true
	}
	return &s.layers[0] == &other.layers[0]
}

// Add appends a layer at the end (z-top).
func (s Sequence) Add(l document.Layer) Sequence {
	return s.InsertAt(len(s.layers), l)
}

// InsertAt inserts a layer at index, clamped to [0, Len()].
func (s Sequence) InsertAt(index int, l document.Layer) Sequence {
	index = max(0, min(index, len(s.layers)))
	out := make([]document.Layer, 0, len(s.layers)+1)
	out = append(out, s.layers[:index]...)
	out = append(out, l.Clone())
	out = append(out, s.layers[index:]...)
	return Sequence{layers: out}
}

// RemoveAt removes the layer at index.
func (s Sequence) RemoveAt(index int) Sequence {
	if index < 0 || index >= len(s.layers) {
		return s
	}
	out := make([]document.Layer, 0, len(s.layers)-1)
	out = append(out, s.layers[:index]...)
	out = append(out, s.layers[index+1:]...)
	return Sequence{layers: out}
}

// Remove removes the layer with the given id.
func (s Sequence) Remove(id string) Sequence {
	return s.RemoveAt(s.IndexOf(id))
}

// MoveLayer swaps the layer at index with its neighbour at index+direction.
func (s Sequence) MoveLayer(index, direction int) Sequence {
	target := index + direction
	if index < 0 || index >= len(s.layers) || target < 0 || target >= len(s.layers) || direction == 0 {
		return s
	}
	out := make([]document.Layer, len(s.layers))
	copy(out, s.layers)
	out[index], out[target] = out[target], out[index]
	return Sequence{layers: out}
}

// UpdateGeometry merges patch into the canonical geometry of the layer with
// the given id.
func (s Sequence) UpdateGeometry(id string, patch document.GeometryPatch) Sequence {
	return s.update(id, func(l *document.Layer) {
		l.Geometry = patch.Apply(l.Geometry)
	})
}

// SetHidden sets the hidden flag of the layer with the given id.
func (s Sequence) SetHidden(id string, hidden bool) Sequence {
	return s.update(id, func(l *document.Layer) {
		l.Hidden = hidden
	})
}

// Replace swaps the layer with the given id for l, keeping its position.
func (s Sequence) Replace(id string, l document.Layer) Sequence {
	return s.update(id, func(dst *document.Layer) {
		*dst = l.Clone()
	})
}

// Update applies fn to a private copy of the layer with the given id.
func (s Sequence) Update(id string, fn func(l *document.Layer)) Sequence {
	return s.update(id, fn)
}

func (s Sequence) update(id string, fn func(l *document.Layer)) Sequence {
	i := s.IndexOf(id)
	if i < 0 {
		return s
	}
	out := make([]document.Layer, len(s.layers))
	copy(out, s.layers)
	l := out[i].Clone()
	fn(&l)
	out[i] = l
	return Sequence{layers: out}
}
