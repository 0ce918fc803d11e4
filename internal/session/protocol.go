package session

import (
	"encoding/json"

	"github.com/inamate/compositor/internal/document"
	"github.com/inamate/compositor/internal/engine"
)

type Message struct {
	Type    string          `json:"type"`
	Seq     int64           `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	// Pointer and keyboard input
	TypePointerDown = "pointer.down"
	TypePointerMove = "pointer.move"
	TypePointerUp   = "pointer.up"
	TypeToolSet     = "tool.set"

	// Selection and handles
	TypeSelect            = "select"
	TypeSelectionClear    = "selection.clear"
	TypeTransformBegin    = "transform.begin"
	TypeTransformUpdate   = "transform.update"
	TypeTransformEnd      = "transform.end"
	TypeInteractionCancel = "interaction.cancel"

	// Layer operations
	TypeLayerAdd      = "layer.add"
	TypeLayerRemove   = "layer.remove"
	TypeLayerMove     = "layer.move"
	TypeLayerFront    = "layer.front"
	TypeLayerBack     = "layer.back"
	TypeLayerHidden   = "layer.hidden"
	TypeLayerGeometry = "layer.geometry"
	TypeLayerContent  = "layer.content"

	// View
	TypeZoomSet       = "zoom.set"
	TypePlayheadSet   = "playhead.set"
	TypePlayheadClear = "playhead.clear"
	TypeMaskRequest   = "mask.request"

	// Server to client
	TypeWelcome            = "welcome"
	TypeCompositionChanged = "composition.changed"
	TypeAnchors            = "anchors"
	TypeToolbarFollow      = "toolbar.follow"
	TypeScene              = "scene"
	TypeLayerAdded         = "layer.added"
	TypeMask               = "mask"
	TypeError              = "error"
)

// --- Client payloads ---

type PointerPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ToolPayload struct {
	Mode engine.ToolMode `json:"mode"`
}

type LayerIDPayload struct {
	ID string `json:"id"`
}

type TransformUpdatePayload struct {
	engine.HandleTransform
}

type LayerAddPayload struct {
	// Index inserts at a position; nil appends on top.
	Index *int           `json:"index,omitempty"`
	Layer document.Layer `json:"layer"`
}

type LayerMovePayload struct {
	Index     int `json:"index"`
	Direction int `json:"direction"`
}

type LayerHiddenPayload struct {
	ID     string `json:"id"`
	Hidden bool   `json:"hidden"`
}

type LayerGeometryPayload struct {
	ID    string                 `json:"id"`
	Patch document.GeometryPatch `json:"patch"`
}

type LayerContentPayload struct {
	ID      string           `json:"id"`
	Content document.Content `json:"content"`
}

type ZoomPayload struct {
	Zoom float64 `json:"zoom"`
}

type PlayheadPayload struct {
	Frame int `json:"frame"`
}

// --- Server payloads ---

type WelcomePayload struct {
	ClientID    string               `json:"clientId"`
	Composition document.Composition `json:"composition"`
}

type LayersPayload struct {
	Layers []document.Layer `json:"layers"`
}

type AnchorsPayload struct {
	Anchors []engine.Anchor `json:"anchors"`
}

// ScenePayload is the renderer input after every handled event.
type ScenePayload struct {
	Commands       []engine.DrawCommand `json:"commands"`
	Zoom           float64              `json:"zoom"`
	Frame          *int                 `json:"frame,omitempty"`
	Tool           engine.ToolMode      `json:"tool"`
	SelectedID     string               `json:"selectedId,omitempty"`
	HandlesID      string               `json:"handlesId,omitempty"`
	TransformState string               `json:"transformState"`
	EraseState     string               `json:"eraseState"`
	// Surface is the erase surface preview as a PNG data URI while erasing.
	Surface string `json:"surface,omitempty"`
}

type MaskPayload struct {
	Image  string `json:"image"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func newMessage(typ string, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: typ, Payload: data}, nil
}
