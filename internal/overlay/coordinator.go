// Package overlay arbitrates which tool owns the screen.
//
// The Coordinator is the only place tool activation changes. At most one tool
// is active at any time: a request for another tool first deactivates the
// current one, then activates the new one, strictly in that order on the
// caller's goroutine. A tool that refuses to yield leaves the request pending
// until ResolvePending is called.
package overlay

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jask/classtools/internal/tools"
)

// Phase is the coordinator's activation phase.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRequesting
	PhaseActivating
	PhaseActive
	PhaseDeactivating
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRequesting:
		return "requesting"
	case PhaseActivating:
		return "activating"
	case PhaseActive:
		return "active"
	case PhaseDeactivating:
		return "deactivating"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Transition is one phase change, reported to observers.
type Transition struct {
	From, To Phase
	Tool     tools.ID
}

// Resolution answers a pending request that the active tool refused.
type Resolution int

const (
	// ResolveCancel drops the pending request; the active tool stays.
	ResolveCancel Resolution = iota
	// ResolvePersist forces the active tool out, keeping its work.
	ResolvePersist
	// ResolveDiscard forces the active tool out, dropping its work.
	ResolveDiscard
)

var (
	ErrUnknownTool  = errors.New("unknown tool")
	ErrBusy         = errors.New("activation already in progress")
	ErrCaptureHeld  = errors.New("input capture held by another tool")
	ErrNotActiveOwn = errors.New("only the active tool may capture input")
	ErrNoPending    = errors.New("no pending request")
)

// ActivationRefusedError reports that the active tool declined to yield.
// Requested is empty when the refused request was a plain close.
type ActivationRefusedError struct {
	Active    tools.ID
	Requested tools.ID
	Err       error
}

func (e *ActivationRefusedError) Error() string {
	if e.Requested == "" {
		return fmt.Sprintf("%s refused to close: %v", e.Active, e.Err)
	}
	return fmt.Sprintf("%s refused to yield to %s: %v", e.Active, e.Requested, e.Err)
}

func (e *ActivationRefusedError) Unwrap() error { return e.Err }

const noticeBuffer = 32

// Options configure a Coordinator.
type Options struct {
	Toolbar   tools.Point
	Collapsed bool
	Logger    *slog.Logger
}

type pendingRequest struct {
	target tools.ID
}

// Coordinator owns the single ToolState, the toolbar geometry, the input
// capture and hotkey routing. It is not safe for concurrent use; every call
// happens on the UI loop.
type Coordinator struct {
	tools   map[tools.ID]tools.Tool
	order   []tools.ID
	hotkeys *Registry
	logger  *slog.Logger

	phase   Phase
	active  tools.ID
	pending *pendingRequest
	capture tools.ID

	screen  tools.Rect
	toolbar Toolbar

	notices   chan tools.Notice
	observers []func(Transition)
}

// New creates a coordinator over the given tools, in toolbar order.
func New(hotkeys *Registry, opts Options, ts ...tools.Tool) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if hotkeys == nil {
		hotkeys = NewRegistry()
	}
	c := &Coordinator{
		tools:   make(map[tools.ID]tools.Tool, len(ts)),
		hotkeys: hotkeys,
		logger:  logger,
		notices: make(chan tools.Notice, noticeBuffer),
	}
	for _, t := range ts {
		if _, dup := c.tools[t.ID()]; dup {
			continue
		}
		c.tools[t.ID()] = t
		c.order = append(c.order, t.ID())
	}
	c.toolbar = Toolbar{want: opts.Toolbar, Pos: opts.Toolbar, Collapsed: opts.Collapsed}
	c.reclamp()
	return c
}

// Observe registers fn to see every phase transition.
func (c *Coordinator) Observe(fn func(Transition)) {
	if fn != nil {
		c.observers = append(c.observers, fn)
	}
}

// Tools returns the tool ids in toolbar order.
func (c *Coordinator) Tools() []tools.ID { return append([]tools.ID(nil), c.order...) }

// Tool returns the tool with id.
func (c *Coordinator) Tool(id tools.ID) (tools.Tool, bool) {
	t, ok := c.tools[id]
	return t, ok
}

// Phase returns the current phase.
func (c *Coordinator) Phase() Phase { return c.phase }

// Active returns the active tool id, or "" when idle.
func (c *Coordinator) Active() tools.ID { return c.active }

// State returns the single system-wide tool state.
func (c *Coordinator) State() tools.ToolState {
	if c.active == "" {
		return tools.Idle{}
	}
	return c.tools[c.active].State()
}

// Pending reports the queued request, if any. ok is false when nothing is
// pending; target is "" for a pending close.
func (c *Coordinator) Pending() (target tools.ID, ok bool) {
	if c.pending == nil {
		return "", false
	}
	return c.pending.target, true
}

// CaptureOwner returns the tool holding pointer capture, or "".
func (c *Coordinator) CaptureOwner() tools.ID { return c.capture }

// Hotkeys returns the registry.
func (c *Coordinator) Hotkeys() *Registry { return c.hotkeys }

// Request activates id, deactivating the current tool first. Requesting the
// active tool is a no-op. If the current tool refuses, the request is queued
// and an *ActivationRefusedError is returned and also posted as a notice.
func (c *Coordinator) Request(id tools.ID) error {
	if _, ok := c.tools[id]; !ok {
		return fmt.Errorf("%w %q", ErrUnknownTool, id)
	}
	if c.phase != PhaseIdle && c.phase != PhaseActive {
		return ErrBusy
	}
	if c.active == id {
		c.pending = nil
		return nil
	}
	return c.switchTo(id, tools.DeactivateOptions{})
}

// Toggle closes id when it is active and requests it otherwise.
func (c *Coordinator) Toggle(id tools.ID) error {
	if c.active == id && id != "" {
		return c.Close()
	}
	return c.Request(id)
}

// Close deactivates the active tool.
func (c *Coordinator) Close() error {
	if c.active == "" {
		return nil
	}
	if c.phase != PhaseActive {
		return ErrBusy
	}
	return c.switchTo("", tools.DeactivateOptions{})
}

// ResolvePending answers a refused request.
func (c *Coordinator) ResolvePending(r Resolution) error {
	if c.pending == nil {
		return ErrNoPending
	}
	p := c.pending
	c.pending = nil
	if r == ResolveCancel {
		c.logger.Info("pending request cancelled", "active", c.active, "requested", p.target)
		c.Notify(tools.Notice{Text: "cancelled"})
		return nil
	}
	return c.switchTo(p.target, tools.DeactivateOptions{Force: true, Persist: r == ResolvePersist})
}

// switchTo runs Requesting → Deactivating → Idle → Activating → Active.
// target "" stops after Idle.
func (c *Coordinator) switchTo(target tools.ID, opts tools.DeactivateOptions) error {
	if target != "" {
		c.setPhase(PhaseRequesting, target)
	}
	if c.active != "" {
		if err := c.deactivate(opts); err != nil {
			refused := &ActivationRefusedError{Active: c.active, Requested: target, Err: err}
			c.pending = &pendingRequest{target: target}
			c.setPhase(PhaseActive, c.active)
			c.logger.Info("activation refused", "active", c.active, "requested", target, "error", err)
			c.Notify(tools.Notice{Level: tools.LevelWarn, Text: refused.Error(), Err: refused})
			return refused
		}
	}
	c.pending = nil
	if target == "" {
		return nil
	}
	return c.activate(target)
}

func (c *Coordinator) deactivate(opts tools.DeactivateOptions) error {
	id := c.active
	c.setPhase(PhaseDeactivating, id)
	err := c.tools[id].Deactivate(opts)
	if err != nil && !opts.Force {
		return err
	}
	if err != nil {
		// forced: the tool has yielded but could not keep its work
		c.logger.Warn("forced deactivation lost work", "tool", id, "error", err)
		c.Notify(tools.Notice{Level: tools.LevelError, Text: fmt.Sprintf("%s: %v", id, err), Err: err})
	}
	c.releaseCapture(id)
	c.active = ""
	c.setPhase(PhaseIdle, id)
	return nil
}

func (c *Coordinator) activate(id tools.ID) error {
	c.setPhase(PhaseActivating, id)
	c.active = id
	if err := c.tools[id].Activate(&host{c: c, id: id}); err != nil {
		c.releaseCapture(id)
		c.active = ""
		c.setPhase(PhaseIdle, id)
		c.logger.Warn("activation failed", "tool", id, "error", err)
		c.Notify(tools.Notice{Level: tools.LevelError, Text: err.Error(), Err: err})
		return fmt.Errorf("activate %s: %w", id, err)
	}
	c.setPhase(PhaseActive, id)
	return nil
}

func (c *Coordinator) setPhase(p Phase, id tools.ID) {
	t := Transition{From: c.phase, To: p, Tool: id}
	c.phase = p
	c.logger.Debug("tool transition", "from", t.From.String(), "to", t.To.String(), "tool", id)
	for _, fn := range c.observers {
		fn(t)
	}
}

func (c *Coordinator) releaseCapture(id tools.ID) {
	if c.capture == id {
		c.capture = ""
	}
}

// Shutdown forces the active tool out and releases the capture. Unsaved
// work is dropped unless persist is set.
func (c *Coordinator) Shutdown(persist bool) {
	c.pending = nil
	if c.active != "" {
		_ = c.deactivate(tools.DeactivateOptions{Force: true, Persist: persist})
	}
	c.capture = ""
	c.phase = PhaseIdle
}

// Dispatch delivers ev to the active tool. Errors become notices as well as
// being returned.
func (c *Coordinator) Dispatch(ev tools.Event) error {
	if c.active == "" || c.phase != PhaseActive {
		return nil
	}
	if _, ok := ev.(tools.PointerEvent); ok && c.capture != c.active {
		return nil
	}
	if err := c.tools[c.active].HandleEvent(ev); err != nil {
		c.Notify(tools.Notice{Level: tools.LevelWarn, Text: err.Error(), Err: err})
		return err
	}
	return nil
}

// Notify queues n for the front end. When the queue is full the oldest notice
// is dropped so callers never block.
func (c *Coordinator) Notify(n tools.Notice) {
	for {
		select {
		case c.notices <- n:
			return
		default:
		}
		select {
		case <-c.notices:
		default:
		}
	}
}

// Notices is the single channel of user-facing messages.
func (c *Coordinator) Notices() <-chan tools.Notice { return c.notices }

// DrainNotices returns every queued notice without blocking.
func (c *Coordinator) DrainNotices() []tools.Notice {
	var out []tools.Notice
	for {
		select {
		case n := <-c.notices:
			out = append(out, n)
		default:
			return out
		}
	}
}

// host is the tools.Host lent to one tool.
type host struct {
	c  *Coordinator
	id tools.ID
}

func (h *host) Surface() tools.Rect { return h.c.screen }

func (h *host) InstallCapture() error {
	if h.c.active != h.id {
		return ErrNotActiveOwn
	}
	if h.c.capture != "" && h.c.capture != h.id {
		return fmt.Errorf("%w: %s", ErrCaptureHeld, h.c.capture)
	}
	h.c.capture = h.id
	return nil
}

func (h *host) ReleaseCapture() { h.c.releaseCapture(h.id) }

func (h *host) Notify(n tools.Notice) { h.c.Notify(n) }
