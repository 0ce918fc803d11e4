// Package session hosts composition engines behind websocket connections.
//
// A Hub runs a single event loop that owns every engine. Client messages,
// image decode results and snapshot saves are all funneled through that loop,
// so engines are never touched from two goroutines.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/inamate/compositor/internal/document"
	"github.com/inamate/compositor/internal/engine"
	"github.com/inamate/compositor/internal/raster"
	"github.com/inamate/compositor/internal/snapshot"
)

const shutdownSaveTimeout = 10 * time.Second

// room is an open composition and the connections editing it.
type room struct {
	id      string
	ownerID string
	engine  *engine.Engine
	clients map[string]*Client

	// ready is false until the composition has been loaded
	ready  bool
	dirty  bool
	saving bool
}

type inbound struct {
	client *Client
	msg    *Message
}

type Hub struct {
	store        snapshot.Store
	images       *raster.Loader
	renderer     *raster.Renderer
	opts         engine.Options
	saveInterval time.Duration

	// Owned by Run
	rooms map[string]*room
	ctx   context.Context

	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	tasks      chan func()
	done       chan struct{}
}

func NewHub(store snapshot.Store, images *raster.Loader, opts engine.Options, saveInterval time.Duration) *Hub {
	if saveInterval <= 0 {
		saveInterval = 5 * time.Second
	}
	return &Hub{
		store:        store,
		images:       images,
		renderer:     raster.NewRenderer(images),
		opts:         opts,
		saveInterval: saveInterval,
		rooms:        make(map[string]*room),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		inbound:      make(chan inbound, 64),
		tasks:        make(chan func(), 64),
		done:         make(chan struct{}),
	}
}

// Run processes events until ctx is canceled. Dirty compositions are saved
// before it returns.
func (h *Hub) Run(ctx context.Context) {
	h.ctx = ctx
	defer close(h.done)

	ticker := time.NewTicker(h.saveInterval)
	defer ticker.Stop()

	for {
		select {
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		case in := <-h.inbound:
			h.handleMessage(in.client, in.msg)
		case fn := <-h.tasks:
			fn()
		case <-ticker.C:
			h.saveDirty()
			h.evictIdle()
		case <-ctx.Done():
			h.shutdown()
			return
		}
	}
}

// Register attaches a client to its composition's room. It returns false
// once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Submit queues a client message for the event loop.
func (h *Hub) Submit(c *Client, msg *Message) bool {
	select {
	case h.inbound <- inbound{client: c, msg: msg}:
		return true
	case <-h.done:
		return false
	}
}

// post runs fn on the event loop.
func (h *Hub) post(fn func()) bool {
	select {
	case h.tasks <- fn:
		return true
	case <-h.done:
		return false
	}
}

// Composition returns the live state of an open composition.
func (h *Hub) Composition(ctx context.Context, id string) (*document.Composition, bool) {
	result := make(chan *document.Composition, 1)
	ok := h.post(func() {
		r := h.rooms[id]
		if r == nil || !r.ready {
			result <- nil
			return
		}
		comp := r.engine.Composition()
		result <- &comp
	})
	if !ok {
		return nil, false
	}
	select {
	case comp := <-result:
		return comp, comp != nil
	case <-ctx.Done():
		return nil, false
	}
}

func (h *Hub) addClient(c *Client) {
	r, ok := h.rooms[c.CompositionID]
	if !ok {
		r = h.newRoom(c.CompositionID, c.UserID)
		h.rooms[r.id] = r
		h.load(r)
	}
	if r.ownerID != c.UserID {
		slog.Warn("composition is open by another user", "composition", r.id, "user", c.UserID)
		c.sendError("composition is open by another user")
		close(c.send)
		return
	}

	r.clients[c.ClientID] = c
	if r.ready {
		h.welcome(r, c)
	}
	slog.Info("client joined", "client", c.ClientID, "composition", r.id)
}

func (h *Hub) removeClient(c *Client) {
	r, ok := h.rooms[c.CompositionID]
	if !ok || r.clients[c.ClientID] != c {
		return
	}
	delete(r.clients, c.ClientID)
	close(c.send)

	if len(r.clients) == 0 && r.ready && r.dirty {
		h.save(r)
	}
	slog.Info("client left", "client", c.ClientID, "composition", r.id)
}

func (h *Hub) newRoom(id, ownerID string) *room {
	r := &room{
		id:      id,
		ownerID: ownerID,
		clients: make(map[string]*Client),
	}
	r.engine = engine.NewEngine(h.opts, h.renderer, engine.Callbacks{
		CompositionChanged: func(layers []document.Layer) {
			r.dirty = true
			if r.ready {
				h.broadcast(r, TypeCompositionChanged, LayersPayload{Layers: layers})
			}
		},
		AnchorsChanged: func(anchors []engine.Anchor) {
			if r.ready {
				h.broadcast(r, TypeAnchors, AnchorsPayload{Anchors: anchors})
			}
		},
		ToolbarFollow: func(anchor engine.Anchor) {
			if r.ready {
				h.broadcast(r, TypeToolbarFollow, anchor)
			}
		},
		ImageRequested: func(layerID, src string) {
			h.decodeImage(r, layerID, src)
		},
	})
	return r
}

// load reads the latest snapshot off the loop. A composition without
// snapshots starts from the sample composition.
func (h *Hub) load(r *room) {
	ctx := h.ctx
	go func() {
		comp, err := h.store.Latest(ctx, r.id)
		fresh := false
		if errors.Is(err, snapshot.ErrNotFound) {
			comp, err, fresh = document.NewSampleComposition(r.id), nil, true
		}
		h.post(func() { h.loaded(r, comp, fresh, err) })
	}()
}

func (h *Hub) loaded(r *room, comp *document.Composition, fresh bool, err error) {
	if h.rooms[r.id] != r {
		return
	}
	if err != nil {
		slog.Error("load composition", "error", err, "composition", r.id)
		for _, c := range r.clients {
			c.sendError("failed to load composition")
			close(c.send)
		}
		delete(h.rooms, r.id)
		return
	}

	r.engine.Load(*comp)
	r.ready = true
	r.dirty = fresh
	for _, c := range r.clients {
		h.welcome(r, c)
	}
	slog.Info("composition opened", "composition", r.id, "layers", len(comp.Layers))
}

func (h *Hub) welcome(r *room, c *Client) {
	send(c, TypeWelcome, WelcomePayload{ClientID: c.ClientID, Composition: r.engine.Composition()})
	send(c, TypeAnchors, AnchorsPayload{Anchors: r.engine.ToolbarAnchors()})
	send(c, TypeScene, h.scene(r))
}

// decodeImage loads an image source off the loop and reports the result to
// the engine. Results for rooms that were closed in the meantime are dropped.
func (h *Hub) decodeImage(r *room, layerID, src string) {
	ctx := h.ctx
	go func() {
		img, err := h.images.Load(ctx, src)
		h.post(func() {
			if h.rooms[r.id] != r {
				return
			}
			if err != nil {
				slog.Warn("image decode failed", "error", err, "layer", layerID)
				r.engine.ImageFailed(layerID)
			} else {
				b := img.Bounds()
				r.engine.ImageLoaded(layerID, b.Dx(), b.Dy())
			}
			if r.ready {
				h.broadcast(r, TypeScene, h.scene(r))
			}
		})
	}()
}

func (h *Hub) saveDirty() {
	for _, r := range h.rooms {
		if r.ready && r.dirty && !r.saving {
			h.save(r)
		}
	}
}

// save writes a snapshot off the loop. A failed save leaves the room dirty
// so the next tick retries.
func (h *Hub) save(r *room) {
	comp := r.engine.Composition()
	r.dirty = false
	r.saving = true
	ctx := h.ctx
	go func() {
		snap, err := h.store.Save(ctx, &comp)
		h.post(func() {
			r.saving = false
			if err != nil {
				slog.Error("save composition", "error", err, "composition", r.id)
				r.dirty = true
				return
			}
			slog.Debug("composition saved", "composition", r.id, "version", snap.Version)
		})
	}()
}

// evictIdle closes rooms without clients once their changes are saved.
func (h *Hub) evictIdle() {
	for id, r := range h.rooms {
		if len(r.clients) == 0 && !r.dirty && !r.saving {
			delete(h.rooms, id)
			slog.Debug("composition closed", "composition", id)
		}
	}
}

func (h *Hub) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownSaveTimeout)
	defer cancel()

	for id, r := range h.rooms {
		if r.ready && (r.dirty || r.saving) {
			comp := r.engine.Composition()
			if _, err := h.store.Save(ctx, &comp); err != nil {
				slog.Error("save composition on shutdown", "error", err, "composition", id)
			}
		}
		for _, c := range r.clients {
			close(c.send)
		}
		delete(h.rooms, id)
	}
}

func (h *Hub) broadcast(r *room, typ string, payload any) {
	msg, err := newMessage(typ, payload)
	if err != nil {
		slog.Error("marshal payload", "error", err, "type", typ)
		return
	}
	for _, c := range r.clients {
		c.Send(msg)
	}
}

func send(c *Client, typ string, payload any) {
	msg, err := newMessage(typ, payload)
	if err != nil {
		slog.Error("marshal payload", "error", err, "type", typ)
		return
	}
	c.Send(msg)
}

func (h *Hub) scene(r *room) ScenePayload {
	e := r.engine
	p := ScenePayload{
		Commands:       e.DrawCommands(),
		Zoom:           e.Zoom(),
		Tool:           e.ToolMode(),
		HandlesID:      e.HandlesLayer(),
		TransformState: e.TransformState().String(),
		EraseState:     e.EraseState().String(),
	}
	p.SelectedID, _ = e.Selection()
	if frame, ok := e.Frame(); ok {
		p.Frame = &frame
	}
	if img, _, ok := e.ErasePreview(); ok {
		src, err := raster.EncodeDataURI(img)
		if err != nil {
			slog.Warn("encode erase preview", "error", err)
		}
		p.Surface = src
	}
	return p
}
