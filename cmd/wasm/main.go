//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/inamate/compositor/internal/document"
	"github.com/inamate/compositor/internal/engine"
	"github.com/inamate/compositor/internal/geom"
	"github.com/inamate/compositor/internal/raster"
)

var (
	eng      *engine.Engine
	images   *raster.Loader
	renderer *raster.Renderer

	// Event listeners registered by the UI with on(event, fn)
	listeners = map[string]js.Value{}
)

func main() {
	images = raster.NewLoader("")
	renderer = raster.NewRenderer(images)
	eng = engine.NewEngine(engine.DefaultOptions(), renderer, engine.Callbacks{
		CompositionChanged: func(layers []document.Layer) { emit("compositionChanged", layers) },
		ToolbarFollow:      func(a engine.Anchor) { emit("toolbarFollow", a) },
		AnchorsChanged:     func(anchors []engine.Anchor) { emit("anchorsChanged", anchors) },
		ImageRequested: func(layerID, src string) {
			emit("imageRequested", map[string]string{"id": layerID, "src": src})
		},
	})

	// Create the engine API object
	compositor := js.Global().Get("Object").New()

	// --- Commands (frontend → engine) ---
	compositor.Set("on", js.FuncOf(on))
	compositor.Set("loadComposition", js.FuncOf(loadComposition))
	compositor.Set("loadSampleComposition", js.FuncOf(loadSampleComposition))
	compositor.Set("pointerDown", js.FuncOf(pointer(eng.PointerDown)))
	compositor.Set("pointerMove", js.FuncOf(pointer(eng.PointerMove)))
	compositor.Set("pointerUp", js.FuncOf(pointer(eng.PointerUp)))
	compositor.Set("setToolMode", js.FuncOf(setToolMode))
	compositor.Set("select", js.FuncOf(selectLayer))
	compositor.Set("clearSelection", js.FuncOf(clearSelection))
	compositor.Set("beginTransform", js.FuncOf(beginTransform))
	compositor.Set("updateTransform", js.FuncOf(updateTransform))
	compositor.Set("endTransform", js.FuncOf(endTransform))
	compositor.Set("cancelInteraction", js.FuncOf(cancelInteraction))
	compositor.Set("addLayer", js.FuncOf(addLayer))
	compositor.Set("removeLayer", js.FuncOf(byID(eng.RemoveLayer)))
	compositor.Set("bringToFront", js.FuncOf(byID(eng.BringToFront)))
	compositor.Set("sendToBack", js.FuncOf(byID(eng.SendToBack)))
	compositor.Set("moveLayer", js.FuncOf(moveLayer))
	compositor.Set("setHidden", js.FuncOf(setHidden))
	compositor.Set("updateGeometry", js.FuncOf(updateGeometry))
	compositor.Set("replaceContent", js.FuncOf(replaceContent))
	compositor.Set("setZoom", js.FuncOf(setZoom))
	compositor.Set("setPlayhead", js.FuncOf(setPlayhead))
	compositor.Set("clearPlayhead", js.FuncOf(clearPlayhead))
	compositor.Set("imageLoaded", js.FuncOf(imageLoaded))
	compositor.Set("imageFailed", js.FuncOf(byID(eng.ImageFailed)))
	compositor.Set("cacheImage", js.FuncOf(cacheImage))

	// --- Queries (frontend ← engine) ---
	compositor.Set("render", js.FuncOf(render))
	compositor.Set("hitTest", js.FuncOf(hitTest))
	compositor.Set("getSelectionBounds", js.FuncOf(getSelectionBounds))
	compositor.Set("getSelection", js.FuncOf(getSelection))
	compositor.Set("toolbarAnchors", js.FuncOf(toolbarAnchors))
	compositor.Set("getComposition", js.FuncOf(getComposition))
	compositor.Set("getZoom", js.FuncOf(getZoom))
	compositor.Set("getToolMode", js.FuncOf(getToolMode))
	compositor.Set("getEraseState", js.FuncOf(getEraseState))
	compositor.Set("erasePreview", js.FuncOf(erasePreview))
	compositor.Set("renderMask", js.FuncOf(renderMask))

	// Register on global scope
	js.Global().Set("compositorEngine", compositor)

	// Signal that WASM is ready
	js.Global().Set("compositorWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func emit(event string, payload any) {
	fn, ok := listeners[event]
	if !ok {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fn.Invoke(string(data))
}

func errorResult(err error) interface{} {
	return js.ValueOf(map[string]interface{}{"error": err.Error()})
}

func okResult() interface{} {
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func toJSON(v any) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return js.ValueOf("null")
	}
	return js.ValueOf(string(data))
}

// --- Command Handlers ---

func on(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 || args[1].Type() != js.TypeFunction {
		return nil
	}
	listeners[args[0].String()] = args[1]
	return nil
}

func loadComposition(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing composition JSON"})
	}
	var comp document.Composition
	if err := json.Unmarshal([]byte(args[0].String()), &comp); err != nil {
		return errorResult(err)
	}
	eng.Load(comp)
	return okResult()
}

func loadSampleComposition(this js.Value, args []js.Value) interface{} {
	compositionID := "comp_sample"
	if len(args) > 0 && args[0].Type() == js.TypeString {
		compositionID = args[0].String()
	}
	eng.Load(*document.NewSampleComposition(compositionID))
	return okResult()
}

func pointer(handle func(geom.Point)) func(js.Value, []js.Value) interface{} {
	return func(this js.Value, args []js.Value) interface{} {
		if len(args) < 2 {
			return nil
		}
		handle(geom.Point{X: args[0].Float(), Y: args[1].Float()})
		return nil
	}
}

func byID(handle func(string)) func(js.Value, []js.Value) interface{} {
	return func(this js.Value, args []js.Value) interface{} {
		if len(args) < 1 {
			return nil
		}
		handle(args[0].String())
		return nil
	}
}

func setToolMode(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	eng.SetToolMode(engine.ToolMode(args[0].String()))
	return nil
}

func selectLayer(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(false)
	}
	return js.ValueOf(eng.Select(args[0].String()))
}

func clearSelection(this js.Value, args []js.Value) interface{} {
	eng.ClearSelection()
	return nil
}

func beginTransform(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(false)
	}
	return js.ValueOf(eng.BeginTransform(args[0].String()))
}

func updateTransform(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	var t engine.HandleTransform
	if err := json.Unmarshal([]byte(args[0].String()), &t); err != nil {
		return errorResult(err)
	}
	eng.UpdateTransform(t)
	return nil
}

func endTransform(this js.Value, args []js.Value) interface{} {
	eng.EndTransform()
	return nil
}

func cancelInteraction(this js.Value, args []js.Value) interface{} {
	eng.CancelInteraction()
	return nil
}

func addLayer(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf("")
	}
	var l document.Layer
	if err := json.Unmarshal([]byte(args[0].String()), &l); err != nil {
		return js.ValueOf("")
	}
	if len(args) > 1 && args[1].Type() == js.TypeNumber {
		return js.ValueOf(eng.InsertLayer(args[1].Int(), l))
	}
	return js.ValueOf(eng.AddLayer(l))
}

func moveLayer(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	eng.MoveLayer(args[0].Int(), args[1].Int())
	return nil
}

func setHidden(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	eng.SetHidden(args[0].String(), args[1].Bool())
	return nil
}

func updateGeometry(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	var patch document.GeometryPatch
	if err := json.Unmarshal([]byte(args[1].String()), &patch); err != nil {
		return errorResult(err)
	}
	eng.UpdateGeometry(args[0].String(), patch)
	return nil
}

func replaceContent(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	var content document.Content
	if err := json.Unmarshal([]byte(args[1].String()), &content); err != nil {
		return errorResult(err)
	}
	eng.ReplaceContent(args[0].String(), content)
	return nil
}

func setZoom(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	eng.SetZoom(args[0].Float())
	return nil
}

func setPlayhead(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	eng.SetPlayhead(args[0].Int())
	return nil
}

func clearPlayhead(this js.Value, args []js.Value) interface{} {
	eng.ClearPlayhead()
	return nil
}

// imageLoaded(id, naturalWidth, naturalHeight) is called by the UI once the
// browser has decoded a requested image.
func imageLoaded(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return nil
	}
	eng.ImageLoaded(args[0].String(), args[1].Int(), args[2].Int())
	return nil
}

// cacheImage(src, dataURI) hands decoded pixels to the rasterizer so that
// erase surfaces can be built from remote images.
func cacheImage(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	img, err := raster.DecodeDataURI(args[1].String())
	if err != nil {
		return errorResult(err)
	}
	images.Put(args[0].String(), img)
	return okResult()
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) interface{} {
	out, err := engine.DrawCommandsToJSON(eng.DrawCommands())
	if err != nil {
		return js.ValueOf("[]")
	}
	return js.ValueOf(out)
}

func hitTest(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("")
	}
	return js.ValueOf(eng.HitTest(geom.Point{X: args[0].Float(), Y: args[1].Float()}))
}

func getSelectionBounds(this js.Value, args []js.Value) interface{} {
	b, ok := eng.SelectionBounds()
	if !ok {
		return js.ValueOf("null")
	}
	return js.ValueOf(engine.RectToJSON(b))
}

func getSelection(this js.Value, args []js.Value) interface{} {
	id, kind := eng.Selection()
	return toJSON(map[string]string{"id": id, "kind": string(kind)})
}

func toolbarAnchors(this js.Value, args []js.Value) interface{} {
	return toJSON(eng.ToolbarAnchors())
}

func getComposition(this js.Value, args []js.Value) interface{} {
	return toJSON(eng.Composition())
}

func getZoom(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.Zoom())
}

func getToolMode(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(string(eng.ToolMode()))
}

func getEraseState(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.EraseState().String())
}

func erasePreview(this js.Value, args []js.Value) interface{} {
	img, bounds, ok := eng.ErasePreview()
	if !ok {
		return js.ValueOf("null")
	}
	src, err := raster.EncodeDataURI(img)
	if err != nil {
		return js.ValueOf("null")
	}
	return toJSON(map[string]any{"image": src, "bounds": bounds})
}

func renderMask(this js.Value, args []js.Value) interface{} {
	comp := eng.Composition()
	img, err := renderer.RenderMask(eng.MaskStrokes(), comp.Width, comp.Height)
	if err != nil {
		return errorResult(err)
	}
	src, err := raster.EncodeDataURI(img)
	if err != nil {
		return errorResult(err)
	}
	return js.ValueOf(src)
}
