// Package editor ties one client's session together: the scene store, the
// active tool, the camera, the connection to a room and the local snapshot
// that keeps offline work across restarts.
package editor

import (
	"fmt"
	stdsync "sync"

	"github.com/charmbracelet/log"

	"drawflow/internal/scene"
	"drawflow/internal/sync"
	"drawflow/internal/tools"
)

// LocalStore is the slice of the on-disk client store the engine needs.
type LocalStore interface {
	LoadShapes() ([]scene.Shape, error)
	SaveShapes(shapes []scene.Shape) error
	LoadSettings() (*scene.RoomSettings, error)
	SaveSettings(settings *scene.RoomSettings) error
	SetUsername(name string) error
}

// Publisher is the slice of the sync client the engine drives. Nil means
// the session is purely local.
type Publisher interface {
	Status() sync.Status
	Connect(roomID string) error
	Disconnect()
	PublishAdd(s scene.Shape)
	PublishUpdate(s scene.Shape)
	PublishRemove(id string)
	PublishSync(shapes []scene.Shape)
	PublishSettings(settings scene.RoomSettings)
	PublishUsername(username string)
	PublishCursor(x, y float64)
	SetSettingsFunc(fn func(scene.RoomSettings))
}

// Engine is one editing session.
type Engine struct {
	store  *scene.Store
	client Publisher
	local  LocalStore
	logger *log.Logger

	mu       stdsync.Mutex
	tool     tools.Tool
	toolbox  map[string]tools.Tool
	style    scene.Style
	settings scene.RoomSettings
	camera   Camera
	measurer Measurer
	textEdit func(shapeID string)
}

// NewEngine builds a session around the given store. client and local may be
// nil; the engine degrades to in-memory editing.
func NewEngine(store *scene.Store, client Publisher, local LocalStore, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	e := &Engine{
		store:    store,
		client:   client,
		local:    local,
		logger:   logger.With("component", "editor"),
		toolbox:  make(map[string]tools.Tool),
		style:    scene.DefaultStyle(),
		settings: scene.RoomSettings{Theme: "light", CanvasBackground: "#ffffff"},
		camera:   NewCamera(),
		measurer: approxMeasurer{},
	}
	for _, t := range []tools.Tool{
		tools.NewSelector(),
		tools.NewRect(),
		tools.NewEllipse(),
		tools.NewRhombus(),
		tools.NewLine(),
		tools.NewArrow(),
		tools.NewPencil(),
		tools.NewText(),
		tools.NewEraser(),
	} {
		e.toolbox[t.Name()] = t
	}
	store.SetCommitFunc(e.onCommit)
	if client != nil {
		client.SetSettingsFunc(e.applyRemoteSettings)
	}
	if err := e.SetTool("select"); err != nil {
		panic(err) // the default toolbox always has select
	}
	return e
}

// Scene returns the session's store. Part of the tool host contract.
func (e *Engine) Scene() *scene.Store { return e.store }

// Style returns the style stamped onto new shapes.
func (e *Engine) Style() scene.Style {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.style
}

// SetStyle changes the style for subsequently drawn shapes.
func (e *Engine) SetStyle(s scene.Style) {
	e.mu.Lock()
	e.style = s
	e.mu.Unlock()
}

// ApplyStyle restyles every selected shape, keeping each shape's rotation.
func (e *Engine) ApplyStyle(s scene.Style) {
	e.SetStyle(s)
	for _, id := range e.store.Selection() {
		e.store.UpdateShape(id, func(sh scene.Shape) scene.Shape {
			rot := sh.Rotation
			sh.Style = s
			sh.Rotation = rot
			return sh
		})
	}
}

// MeasureText reports text extent via the session's measurer.
func (e *Engine) MeasureText(text string, fontSize float64) (w, h float64) {
	e.mu.Lock()
	m := e.measurer
	e.mu.Unlock()
	return m.Measure(text, fontSize)
}

// SetMeasurer installs a real font metrics source.
func (e *Engine) SetMeasurer(m Measurer) {
	e.mu.Lock()
	e.measurer = m
	e.mu.Unlock()
}

// SetTextEditFunc registers the frontend's text input opener.
func (e *Engine) SetTextEditFunc(fn func(shapeID string)) {
	e.mu.Lock()
	e.textEdit = fn
	e.mu.Unlock()
}

// BeginTextEdit is called by tools when a text shape wants input focus.
func (e *Engine) BeginTextEdit(shapeID string) {
	e.mu.Lock()
	fn := e.textEdit
	e.mu.Unlock()
	if fn != nil {
		fn(shapeID)
	}
}

// SetText replaces a text shape's content and recomputes its cached extent.
func (e *Engine) SetText(shapeID, text string) {
	e.store.UpdateShape(shapeID, func(s scene.Shape) scene.Shape {
		if s.Type != scene.ShapeText {
			return s
		}
		s.Text = text
		s.W, s.H = e.MeasureText(text, s.FontSize)
		return s
	})
}

// SetTool switches the active tool, finishing any in-flight gesture first.
func (e *Engine) SetTool(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	next, ok := e.toolbox[name]
	if !ok {
		return fmt.Errorf("unknown tool %q", name)
	}
	if e.tool == next {
		return nil
	}
	if e.tool != nil {
		e.tool.Deactivate()
	}
	e.tool = next
	next.Activate(e)
	return nil
}

// ActiveTool reports the current tool's name.
func (e *Engine) ActiveTool() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tool == nil {
		return ""
	}
	return e.tool.Name()
}

// Camera returns the current viewport transform.
func (e *Engine) Camera() Camera {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.camera
}

// Pan shifts the viewport by a screen-space delta.
func (e *Engine) Pan(dx, dy float64) {
	e.mu.Lock()
	e.camera.Pan(dx, dy)
	e.mu.Unlock()
}

// ZoomAt zooms about a screen position.
func (e *Engine) ZoomAt(p scene.Point, factor float64) {
	e.mu.Lock()
	e.camera.ZoomAt(p, factor)
	e.mu.Unlock()
}

// Pointer events arrive in screen coordinates and are forwarded to the
// active tool in scene coordinates. Motion also feeds remote presence.

func (e *Engine) PointerDown(screen scene.Point, mods tools.Modifiers) {
	tool, p := e.toScene(screen)
	if tool != nil {
		tool.PointerDown(p, mods)
	}
}

func (e *Engine) PointerMove(screen scene.Point, mods tools.Modifiers) {
	tool, p := e.toScene(screen)
	if tool != nil {
		tool.PointerMove(p, mods)
	}
	if e.client != nil && e.client.Status() == sync.StatusJoined {
		e.client.PublishCursor(p.X, p.Y)
	}
}

func (e *Engine) PointerUp(screen scene.Point, mods tools.Modifiers) {
	tool, p := e.toScene(screen)
	if tool != nil {
		tool.PointerUp(p, mods)
	}
}

func (e *Engine) DoubleClick(screen scene.Point) {
	tool, p := e.toScene(screen)
	if dc, ok := tool.(tools.DoubleClicker); ok {
		dc.DoubleClick(p)
	}
}

func (e *Engine) toScene(screen scene.Point) (tools.Tool, scene.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tool, e.camera.ToScene(screen)
}

// Undo reverts the last committed edit and propagates the whole scene, since
// a history step is not expressible as a single shape delta.
func (e *Engine) Undo() {
	if !e.store.CanUndo() {
		return
	}
	e.store.Undo()
	e.propagateSnapshot()
}

// Redo reapplies the last undone edit.
func (e *Engine) Redo() {
	if !e.store.CanRedo() {
		return
	}
	e.store.Redo()
	e.propagateSnapshot()
}

// DeleteSelection removes every selected shape.
func (e *Engine) DeleteSelection() {
	for _, id := range e.store.Selection() {
		e.store.RemoveShape(id)
	}
}

// LoadLocal restores the offline snapshot and settings from disk.
func (e *Engine) LoadLocal() error {
	if e.local == nil {
		return nil
	}
	shapes, err := e.local.LoadShapes()
	if err != nil {
		return fmt.Errorf("load local shapes: %w", err)
	}
	if shapes != nil {
		e.store.ReplaceAll(shapes)
	}
	settings, err := e.local.LoadSettings()
	if err != nil {
		return fmt.Errorf("load local settings: %w", err)
	}
	if settings != nil {
		e.mu.Lock()
		e.settings = *settings
		e.mu.Unlock()
	}
	return nil
}

// JoinRoom connects the session to a shared room.
func (e *Engine) JoinRoom(roomID string) error {
	if e.client == nil {
		return fmt.Errorf("session has no sync client")
	}
	return e.client.Connect(roomID)
}

// LeaveRoom returns the session to local-only editing, persisting the
// current scene first.
func (e *Engine) LeaveRoom() {
	if e.client != nil {
		e.client.Disconnect()
	}
	e.persistLocal()
}

// Settings returns the current room settings.
func (e *Engine) Settings() scene.RoomSettings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// SetSettings applies a settings change locally and shares it with the room.
func (e *Engine) SetSettings(s scene.RoomSettings) {
	e.mu.Lock()
	e.settings = s
	e.mu.Unlock()
	if e.joined() {
		e.client.PublishSettings(s)
	} else if e.local != nil {
		if err := e.local.SaveSettings(&s); err != nil {
			e.logger.Warn("persist settings failed", "err", err)
		}
	}
}

func (e *Engine) applyRemoteSettings(s scene.RoomSettings) {
	e.mu.Lock()
	e.settings = s
	e.mu.Unlock()
}

// SetUsername persists the display name and announces it to the room.
func (e *Engine) SetUsername(name string) error {
	if e.local != nil {
		if err := e.local.SetUsername(name); err != nil {
			return err
		}
	}
	if e.joined() {
		e.client.PublishUsername(name)
	}
	return nil
}

// onCommit routes each committed edit: to the room when joined, otherwise to
// the local snapshot.
func (e *Engine) onCommit(c scene.Commit) {
	if e.joined() {
		switch c.Op {
		case scene.CommitAdd:
			if c.Shape != nil {
				e.client.PublishAdd(*c.Shape)
			}
		case scene.CommitUpdate:
			if c.Shape != nil {
				e.client.PublishUpdate(*c.Shape)
			}
		case scene.CommitRemove:
			e.client.PublishRemove(c.ShapeID)
		}
		return
	}
	e.persistLocal()
}

func (e *Engine) propagateSnapshot() {
	if e.joined() {
		e.client.PublishSync(e.store.Shapes())
		return
	}
	e.persistLocal()
}

func (e *Engine) persistLocal() {
	if e.local == nil {
		return
	}
	if err := e.local.SaveShapes(e.store.Shapes()); err != nil {
		e.logger.Warn("persist scene failed", "err", err)
	}
}

func (e *Engine) joined() bool {
	return e.client != nil && e.client.Status() == sync.StatusJoined
}
