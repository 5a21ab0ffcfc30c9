// Package tui is the terminal front end: a single bubbletea loop that feeds
// keys, pointer events and timer ticks to the overlay coordinator and draws
// the active tool under the floating toolbar.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/classtools/internal/config"
	"github.com/jask/classtools/internal/narration"
	"github.com/jask/classtools/internal/overlay"
	"github.com/jask/classtools/internal/roster"
	"github.com/jask/classtools/internal/tools"
)

const tickInterval = 250 * time.Millisecond

// RosterLoader reloads the roster file. On failure it returns the roster
// still in use.
type RosterLoader interface {
	Load(ctx context.Context) (*roster.Roster, []roster.Warning, error)
}

// Deps are the App's collaborators. Settings, Rosters, Narration and
// JournalErrors may be nil.
type Deps struct {
	Coordinator   *overlay.Coordinator
	RollCall      *tools.RollCall
	Whiteboard    *tools.Whiteboard
	Timer         *tools.Timer
	Settings      *config.Store
	Rosters       RosterLoader
	Narration     *narration.Worker
	JournalErrors <-chan error
	Clock         tools.Clock
	Logger        *slog.Logger
	// Bell receives "\a" for notices that ask for an audible cue.
	Bell io.Writer
}

type (
	tickMsg      struct{}
	narrationMsg narration.Result
	journalMsg   struct{ err error }
	rosterMsg    struct {
		r        *roster.Roster
		warnings []roster.Warning
		err      error
	}
)

// App is the bubbletea model.
type App struct {
	ctx  context.Context
	deps Deps

	width, height int

	status      string
	statusLevel tools.Level

	ticking bool

	// toolbar drag in progress: the grab offset inside the bar
	dragging bool
	grab     tools.Point

	finding bool
	prompt  textinput.Model

	// last settings pushed into the tools
	settings config.Settings

	quitting bool
}

// New creates the App. When Settings is set, later settings changes are
// applied to the tools.
func New(ctx context.Context, deps Deps) *App {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Clock == nil {
		deps.Clock = tools.SystemClock
	}
	if deps.Bell == nil {
		deps.Bell = os.Stdout
	}
	prompt := textinput.New()
	prompt.Placeholder = "name"
	prompt.Prompt = "> "
	prompt.CharLimit = 64
	a := &App{ctx: ctx, deps: deps, prompt: prompt}
	if deps.Settings != nil {
		a.settings = deps.Settings.Settings()
		deps.Settings.OnChange(a.applySettings)
	}
	return a
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.waitNarration(), a.waitJournal())
}

func (a *App) waitNarration() tea.Cmd {
	if a.deps.Narration == nil {
		return nil
	}
	ch := a.deps.Narration.Results()
	return func() tea.Msg {
		r, ok := <-ch
		if !ok {
			return nil
		}
		return narrationMsg(r)
	}
}

func (a *App) waitJournal() tea.Cmd {
	if a.deps.JournalErrors == nil {
		return nil
	}
	ch := a.deps.JournalErrors
	return func() tea.Msg {
		err, ok := <-ch
		if !ok {
			return nil
		}
		return journalMsg{err: err}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = m.Width, m.Height
		a.deps.Coordinator.SetScreen(tools.Rect{W: m.Width, H: max(m.Height-2, 1)})
	case tea.KeyMsg:
		cmds = append(cmds, a.handleKey(m))
	case tea.MouseMsg:
		a.handleMouse(m)
	case tickMsg:
		a.ticking = false
		_ = a.deps.Coordinator.Dispatch(tools.TickEvent{Now: a.deps.Clock.Now()})
	case narrationMsg:
		if m.Err != nil {
			a.deps.Logger.Warn("narration failed", "text", m.Text, "error", m.Err)
		} else {
			a.deps.Logger.Debug("narrated", "text", m.Text, "took", m.Duration)
		}
		cmds = append(cmds, a.waitNarration())
	case journalMsg:
		a.setStatus(tools.Notice{Level: tools.LevelError, Text: "history not saved: " + m.err.Error()})
		cmds = append(cmds, a.waitJournal())
	case rosterMsg:
		a.applyRoster(m)
	}
	if a.quitting {
		return a, tea.Quit
	}
	cmds = append(cmds, a.drainNotices(), a.scheduleTick())
	return a, tea.Batch(cmds...)
}

func (a *App) handleKey(m tea.KeyMsg) tea.Cmd {
	c := a.deps.Coordinator
	if a.finding {
		a.handleFindKey(m)
		return nil
	}
	if _, pending := c.Pending(); pending {
		a.handlePendingKey(m.String())
		return nil
	}

	k := m.String()
	if b := c.Hotkeys().Lookup(k, c.ActiveScope()); b != nil && b.Scope == config.ScopeRollCall && b.Action == tools.ActionFind {
		a.finding = true
		a.prompt.Reset()
		// the cursor stays solid; blink messages are never routed back
		_ = a.prompt.Focus()
		return nil
	}
	before := c.Toolbar()
	action, err := c.HandleKey(k)
	if err != nil {
		a.deps.Logger.Debug("key handling failed", "key", k, "error", err)
	}
	if after := c.Toolbar(); after != before {
		a.saveToolbar()
	}
	switch action {
	case overlay.ActionQuit:
		a.quit()
	case overlay.ActionReloadRoster:
		return a.reloadRoster()
	}
	return nil
}

func (a *App) handlePendingKey(k string) {
	var res overlay.Resolution
	switch k {
	case "y", "enter":
		res = overlay.ResolvePersist
	case "n":
		res = overlay.ResolveDiscard
	case "esc", "ctrl+c":
		res = overlay.ResolveCancel
	default:
		return
	}
	if err := a.deps.Coordinator.ResolvePending(res); err != nil {
		a.deps.Logger.Warn("resolve pending request", "error", err)
	}
}

func (a *App) handleFindKey(m tea.KeyMsg) {
	switch m.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		a.finding = false
		a.prompt.Blur()
		return
	case tea.KeyEnter:
		a.finding = false
		a.prompt.Blur()
		q := strings.TrimSpace(a.prompt.Value())
		if q == "" {
			return
		}
		if _, err := a.deps.RollCall.CallByName(q); err != nil {
			a.deps.Coordinator.Notify(tools.Notice{Level: tools.LevelWarn, Text: err.Error(), Err: err})
		}
		return
	}
	a.prompt, _ = a.prompt.Update(m)
}

func (a *App) handleMouse(m tea.MouseMsg) {
	c := a.deps.Coordinator
	p := tools.Point{X: m.X, Y: m.Y}
	switch m.Action {
	case tea.MouseActionPress:
		if m.Button != tea.MouseButtonLeft {
			return
		}
		if btn, ok, onBar := c.ToolbarHit(p); onBar {
			if !ok {
				pos := c.Toolbar().Pos
				a.dragging = true
				a.grab = tools.Point{X: p.X - pos.X, Y: p.Y - pos.Y}
				return
			}
			a.pressButton(btn)
			return
		}
		a.pointer(tools.PointerDown, p)
	case tea.MouseActionMotion:
		if a.dragging {
			c.MoveToolbar(tools.Point{X: p.X - a.grab.X, Y: p.Y - a.grab.Y})
			return
		}
		a.pointer(tools.PointerMove, p)
	case tea.MouseActionRelease:
		if a.dragging {
			a.dragging = false
			a.saveToolbar()
			return
		}
		a.pointer(tools.PointerUp, p)
	}
}

func (a *App) pressButton(btn overlay.ToolbarButton) {
	c := a.deps.Coordinator
	if btn.Tool == "" {
		c.SetCollapsed(!c.Toolbar().Collapsed)
		a.saveToolbar()
		return
	}
	var refused *overlay.ActivationRefusedError
	if err := c.Toggle(btn.Tool); err != nil && !errors.As(err, &refused) {
		a.deps.Logger.Warn("toolbar toggle failed", "tool", btn.Tool, "error", err)
	}
}

func (a *App) pointer(kind tools.PointerKind, p tools.Point) {
	c := a.deps.Coordinator
	if c.CaptureOwner() == "" {
		return
	}
	_ = c.Dispatch(tools.PointerEvent{Kind: kind, At: p})
}

func (a *App) quit() {
	persist := a.deps.Settings != nil && a.deps.Settings.Settings().Whiteboard.OnClose == tools.CloseSave
	a.deps.Coordinator.Shutdown(persist)
	a.quitting = true
}

func (a *App) reloadRoster() tea.Cmd {
	if a.deps.Rosters == nil {
		return nil
	}
	loader := a.deps.Rosters
	ctx := a.ctx
	a.setStatus(tools.Notice{Text: "reloading roster..."})
	return func() tea.Msg {
		r, warnings, err := loader.Load(ctx)
		return rosterMsg{r: r, warnings: warnings, err: err}
	}
}

func (a *App) applyRoster(m rosterMsg) {
	c := a.deps.Coordinator
	if m.err != nil {
		c.Notify(tools.Notice{Level: tools.LevelError, Text: "roster not reloaded: " + m.err.Error(), Err: m.err})
		return
	}
	a.deps.RollCall.ReplaceRoster(m.r)
	text := fmt.Sprintf("roster reloaded: %d students", m.r.Len())
	level := tools.LevelInfo
	if n := len(m.warnings); n > 0 {
		text += fmt.Sprintf(", %d rows skipped", n)
		level = tools.LevelWarn
	}
	c.Notify(tools.Notice{Level: level, Text: text})
}

func (a *App) saveToolbar() {
	s := a.deps.Settings
	if s == nil {
		return
	}
	tb := a.deps.Coordinator.Toolbar()
	for key, v := range map[string]any{
		"toolbar.x":         tb.Pos.X,
		"toolbar.y":         tb.Pos.Y,
		"toolbar.collapsed": tb.Collapsed,
	} {
		if err := s.Set(key, v); err != nil {
			a.deps.Logger.Warn("toolbar setting rejected", "key", key, "error", err)
		}
	}
	if err := s.Save(); err != nil {
		a.deps.Coordinator.Notify(tools.Notice{Level: tools.LevelWarn, Text: "settings not saved: " + err.Error(), Err: err})
	}
}

// drainNotices moves queued notices to the status bar. The newest one wins.
func (a *App) drainNotices() tea.Cmd {
	bell := false
	for _, n := range a.deps.Coordinator.DrainNotices() {
		a.setStatus(n)
		bell = bell || n.Bell
	}
	if !bell {
		return nil
	}
	w := a.deps.Bell
	return func() tea.Msg {
		_, _ = io.WriteString(w, "\a")
		return nil
	}
}

func (a *App) setStatus(n tools.Notice) {
	a.status = n.Text
	a.statusLevel = n.Level
	if n.Level != tools.LevelInfo {
		a.deps.Logger.Info("notice", "level", int(n.Level), "text", n.Text)
	}
}

// scheduleTick keeps one tick in flight while the timer runs.
func (a *App) scheduleTick() tea.Cmd {
	if a.ticking || a.deps.Timer == nil || !a.deps.Timer.Running() {
		return nil
	}
	a.ticking = true
	return tea.Tick(tickInterval, func(time.Time) tea.Msg { return tickMsg{} })
}
