package tools

import (
	"fmt"
	"slices"
)

// Whiteboard actions. ActionUndo is shared with roll call.
const (
	ActionClear = "clear"
	ActionSave  = "save"
)

// Close policies for a whiteboard with unsaved strokes.
const (
	CloseAsk     = "ask"
	CloseDiscard = "discard"
	CloseSave    = "save"
)

// Stroke is one pointer drag.
type Stroke struct {
	Color  string
	Points []Point
}

// Exporter persists the stroke buffer, returning where it went.
type Exporter interface {
	Export(strokes []Stroke, bounds Rect) (string, error)
}

// WhiteboardOptions are the whiteboard settings.
type WhiteboardOptions struct {
	OnClose string
	Color   string
}

// Whiteboard owns an ephemeral stroke buffer over the screen. While active it
// holds the pointer capture.
type Whiteboard struct {
	exporter Exporter
	opts     WhiteboardOptions

	host    Host
	active  bool
	bounds  Rect
	strokes []Stroke
	drawing bool
	dirty   bool
}

func NewWhiteboard(exporter Exporter, opts WhiteboardOptions) *Whiteboard {
	return &Whiteboard{exporter: exporter, opts: opts}
}

func (w *Whiteboard) ID() ID { return WhiteboardID }

func (w *Whiteboard) SetOptions(opts WhiteboardOptions) { w.opts = opts }

// Activate starts a fresh, empty layer and captures the pointer.
func (w *Whiteboard) Activate(h Host) error {
	if err := h.InstallCapture(); err != nil {
		return fmt.Errorf("whiteboard: %w", err)
	}
	w.host = h
	w.active = true
	w.bounds = h.Surface()
	w.strokes = nil
	w.drawing = false
	w.dirty = false
	return nil
}

// Deactivate yields the screen. Without Force it applies the close policy and
// refuses with ErrUnsavedStrokes under "ask". With Force the buffer is
// exported when Persist is set and discarded otherwise. The capture is always
// released once the tool yields, even when the export fails.
func (w *Whiteboard) Deactivate(opts DeactivateOptions) error {
	if !w.active {
		return nil
	}
	persist := opts.Persist
	if w.dirty && !opts.Force {
		switch w.opts.OnClose {
		case CloseSave:
			persist = true
		case CloseDiscard:
			persist = false
		default:
			return ErrUnsavedStrokes
		}
	}
	var exportErr error
	if persist && len(w.strokes) > 0 {
		_, exportErr = w.export()
	}
	if exportErr != nil && !opts.Force {
		return exportErr
	}
	w.host.ReleaseCapture()
	w.host = nil
	w.active = false
	w.strokes = nil
	w.drawing = false
	w.dirty = false
	return exportErr
}

func (w *Whiteboard) State() ToolState {
	if !w.active {
		return Idle{}
	}
	return WhiteboardActive{Drawing: w.drawing, Strokes: len(w.strokes), Dirty: w.dirty}
}

func (w *Whiteboard) HandleEvent(ev Event) error {
	if !w.active {
		return ErrNotActive
	}
	switch e := ev.(type) {
	case PointerEvent:
		w.pointer(e)
	case ActionEvent:
		switch e.Action {
		case ActionUndo:
			w.UndoStroke()
		case ActionClear:
			w.Clear()
		case ActionSave:
			path, err := w.Save()
			if err != nil {
				return err
			}
			w.host.Notify(Notice{Text: "saved " + path})
		default:
			return fmt.Errorf("whiteboard: unknown action %q", e.Action)
		}
	}
	return nil
}

func (w *Whiteboard) pointer(e PointerEvent) {
	if !w.bounds.Contains(e.At) && e.Kind != PointerUp {
		return
	}
	switch e.Kind {
	case PointerDown:
		w.strokes = append(w.strokes, Stroke{Color: w.opts.Color, Points: []Point{e.At}})
		w.drawing = true
		w.dirty = true
	case PointerMove:
		if !w.drawing {
			return
		}
		s := &w.strokes[len(w.strokes)-1]
		if last := s.Points[len(s.Points)-1]; last != e.At {
			s.Points = append(s.Points, e.At)
		}
	case PointerUp:
		w.drawing = false
	}
}

// UndoStroke removes the newest stroke.
func (w *Whiteboard) UndoStroke() {
	if len(w.strokes) == 0 {
		return
	}
	w.strokes = w.strokes[:len(w.strokes)-1]
	w.drawing = false
	w.dirty = len(w.strokes) > 0
}

// Clear empties the buffer.
func (w *Whiteboard) Clear() {
	w.strokes = nil
	w.drawing = false
	w.dirty = false
}

// Save exports the buffer and marks it clean.
func (w *Whiteboard) Save() (string, error) {
	if !w.active {
		return "", ErrNotActive
	}
	path, err := w.export()
	if err != nil {
		return "", err
	}
	w.dirty = false
	return path, nil
}

func (w *Whiteboard) export() (string, error) {
	if w.exporter == nil {
		return "", fmt.Errorf("whiteboard: no exporter configured")
	}
	path, err := w.exporter.Export(w.Strokes(), w.bounds)
	if err != nil {
		return "", fmt.Errorf("whiteboard export: %w", err)
	}
	return path, nil
}

// Strokes returns a copy of the buffer, oldest first.
func (w *Whiteboard) Strokes() []Stroke {
	out := make([]Stroke, len(w.strokes))
	for i, s := range w.strokes {
		out[i] = Stroke{Color: s.Color, Points: slices.Clone(s.Points)}
	}
	return out
}

// Dirty reports unsaved strokes.
func (w *Whiteboard) Dirty() bool { return w.dirty }
