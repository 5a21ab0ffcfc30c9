// Package tools holds the three classroom tools and the capability interface
// the overlay coordinator drives them through.
//
// A tool never activates itself. The coordinator calls Activate with a Host
// that grants access to the screen surface and to pointer capture, and calls
// Deactivate before any other tool is activated.
package tools

import (
	"errors"
	"time"
)

// ID names a tool.
type ID string

const (
	RollCallID   ID = "rollcall"
	WhiteboardID ID = "whiteboard"
	TimerID      ID = "timer"
)

// ErrUnsavedStrokes is returned by the whiteboard when asked to close with
// strokes that the close policy says must be confirmed first.
var ErrUnsavedStrokes = errors.New("whiteboard has unsaved strokes")

var (
	// ErrNotActive is returned by tool operations that need an active tool.
	ErrNotActive = errors.New("tool is not active")
	// ErrNoCurrentStudent is returned when awarding points before any call.
	ErrNoCurrentStudent = errors.New("no student has been called yet")
)

// Point is a cell position on the screen.
type Point struct{ X, Y int }

// Rect is a cell rectangle on the screen.
type Rect struct{ X, Y, W, H int }

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.Y >= r.Y && p.X < r.X+r.W && p.Y < r.Y+r.H
}

// Level grades a notice.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// Notice is a user-facing message. Bell asks the front end for an audible cue.
type Notice struct {
	Level Level
	Text  string
	Err   error
	Bell  bool
}

// Host is what the coordinator lends to the active tool.
type Host interface {
	// Surface is the screen area the tool may draw on.
	Surface() Rect
	// InstallCapture routes pointer input to the calling tool. Only the
	// active tool can hold the capture.
	InstallCapture() error
	// ReleaseCapture gives pointer input back. Releasing twice is harmless.
	ReleaseCapture()
	// Notify queues a notice without blocking.
	Notify(Notice)
}

// DeactivateOptions tells a tool how to yield. Force means the tool must
// yield; Persist asks it to keep its work where that applies.
type DeactivateOptions struct {
	Force   bool
	Persist bool
}

// Tool is the capability every tool implements.
type Tool interface {
	ID() ID
	Activate(Host) error
	// Deactivate may refuse when Force is false.
	Deactivate(DeactivateOptions) error
	HandleEvent(Event) error
	State() ToolState
}

// Event is delivered to the active tool.
type Event interface{ isEvent() }

// ActionEvent is a hotkey that resolved to one of the tool's actions.
type ActionEvent struct{ Action string }

// PointerKind distinguishes pointer events.
type PointerKind int

const (
	PointerDown PointerKind = iota
	PointerMove
	PointerUp
)

// PointerEvent is a captured pointer event in screen cells.
type PointerEvent struct {
	Kind PointerKind
	At   Point
}

// TickEvent is a scheduled tick from the UI loop.
type TickEvent struct{ Now time.Time }

func (ActionEvent) isEvent()  {}
func (PointerEvent) isEvent() {}
func (TickEvent) isEvent()    {}

// ToolState is the sealed set of tool states.
type ToolState interface{ toolState() }

// Idle is the state of an inactive tool.
type Idle struct{}

// RollCallActive is the roll-call state. Cursor is the roster position of the
// current student, -1 before the first draw.
type RollCallActive struct {
	Cursor  int
	Filter  string
	Current string
	Panel   Panel
}

// WhiteboardActive is the whiteboard state. Strokes is the size of the
// stroke buffer.
type WhiteboardActive struct {
	Drawing bool
	Strokes int
	Dirty   bool
}

// TimerActive is the timer state.
type TimerActive struct {
	Mode      TimerMode
	Remaining time.Duration
	Elapsed   time.Duration
	Running   bool
}

func (Idle) toolState()             {}
func (RollCallActive) toolState()   {}
func (WhiteboardActive) toolState() {}
func (TimerActive) toolState()      {}

// Clock abstracts time for the timer.
type Clock interface{ Now() time.Time }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}
