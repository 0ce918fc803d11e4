package session

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/inamate/compositor/internal/geom"
	"github.com/inamate/compositor/internal/raster"
)

func (h *Hub) handleMessage(c *Client, msg *Message) {
	r := h.rooms[c.CompositionID]
	if r == nil || r.clients[c.ClientID] != c {
		return
	}
	if !r.ready {
		c.sendError("composition is loading")
		return
	}
	if err := h.dispatch(r, c, msg); err != nil {
		slog.Warn("invalid message", "error", err, "type", msg.Type, "client", c.ClientID)
		c.sendError(err.Error())
		return
	}
	h.broadcast(r, TypeScene, h.scene(r))
}

func decode[T any](msg *Message) (T, error) {
	var v T
	if len(msg.Payload) == 0 {
		return v, fmt.Errorf("%s: missing payload", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, &v); err != nil {
		return v, fmt.Errorf("%s: invalid payload: %w", msg.Type, err)
	}
	return v, nil
}

func (h *Hub) dispatch(r *room, c *Client, msg *Message) error {
	e := r.engine

	switch msg.Type {
	case TypePointerDown, TypePointerMove, TypePointerUp:
		p, err := decode[PointerPayload](msg)
		if err != nil {
			return err
		}
		pt := geom.Point{X: p.X, Y: p.Y}
		switch msg.Type {
		case TypePointerDown:
			e.PointerDown(pt)
		case TypePointerMove:
			e.PointerMove(pt)
		default:
			e.PointerUp(pt)
		}

	case TypeToolSet:
		p, err := decode[ToolPayload](msg)
		if err != nil {
			return err
		}
		e.SetToolMode(p.Mode)

	case TypeSelect:
		p, err := decode[LayerIDPayload](msg)
		if err != nil {
			return err
		}
		e.Select(p.ID)

	case TypeSelectionClear:
		e.ClearSelection()

	case TypeTransformBegin:
		p, err := decode[LayerIDPayload](msg)
		if err != nil {
			return err
		}
		e.BeginTransform(p.ID)

	case TypeTransformUpdate:
		p, err := decode[TransformUpdatePayload](msg)
		if err != nil {
			return err
		}
		e.UpdateTransform(p.HandleTransform)

	case TypeTransformEnd:
		e.EndTransform()

	case TypeInteractionCancel:
		e.CancelInteraction()

	case TypeLayerAdd:
		p, err := decode[LayerAddPayload](msg)
		if err != nil {
			return err
		}
		var id string
		if p.Index != nil {
			id = e.InsertLayer(*p.Index, p.Layer)
		} else {
			id = e.AddLayer(p.Layer)
		}
		send(c, TypeLayerAdded, LayerIDPayload{ID: id})

	case TypeLayerRemove, TypeLayerFront, TypeLayerBack:
		p, err := decode[LayerIDPayload](msg)
		if err != nil {
			return err
		}
		switch msg.Type {
		case TypeLayerRemove:
			e.RemoveLayer(p.ID)
		case TypeLayerFront:
			e.BringToFront(p.ID)
		default:
			e.SendToBack(p.ID)
		}

	case TypeLayerMove:
		p, err := decode[LayerMovePayload](msg)
		if err != nil {
			return err
		}
		e.MoveLayer(p.Index, p.Direction)

	case TypeLayerHidden:
		p, err := decode[LayerHiddenPayload](msg)
		if err != nil {
			return err
		}
		e.SetHidden(p.ID, p.Hidden)

	case TypeLayerGeometry:
		p, err := decode[LayerGeometryPayload](msg)
		if err != nil {
			return err
		}
		e.UpdateGeometry(p.ID, p.Patch)

	case TypeLayerContent:
		p, err := decode[LayerContentPayload](msg)
		if err != nil {
			return err
		}
		e.ReplaceContent(p.ID, p.Content)

	case TypeZoomSet:
		p, err := decode[ZoomPayload](msg)
		if err != nil {
			return err
		}
		e.SetZoom(p.Zoom)

	case TypePlayheadSet:
		p, err := decode[PlayheadPayload](msg)
		if err != nil {
			return err
		}
		e.SetPlayhead(p.Frame)

	case TypePlayheadClear:
		e.ClearPlayhead()

	case TypeMaskRequest:
		return h.sendMask(r, c)

	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	return nil
}

// sendMask replies with the mask strokes rendered white on black at
// composition size.
func (h *Hub) sendMask(r *room, c *Client) error {
	comp := r.engine.Composition()
	img, err := h.renderer.RenderMask(r.engine.MaskStrokes(), comp.Width, comp.Height)
	if err != nil {
		return fmt.Errorf("render mask: %w", err)
	}
	src, err := raster.EncodeDataURI(img)
	if err != nil {
		return fmt.Errorf("encode mask: %w", err)
	}
	send(c, TypeMask, MaskPayload{Image: src, Width: comp.Width, Height: comp.Height})
	return nil
}
