package tui

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/require"

	"github.com/jask/classtools/internal/config"
	"github.com/jask/classtools/internal/overlay"
	"github.com/jask/classtools/internal/roster"
	"github.com/jask/classtools/internal/selection"
	"github.com/jask/classtools/internal/tools"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeExporter struct{ exported int }

func (e *fakeExporter) Export([]tools.Stroke, tools.Rect) (string, error) {
	e.exported++
	return "/tmp/board.png", nil
}

type fixture struct {
	app      *App
	coord    *overlay.Coordinator
	rollcall *tools.RollCall
	board    *tools.Whiteboard
	timer    *tools.Timer
	clock    *fakeClock
	exporter *fakeExporter
	bell     *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return buildFixture(t, nil)
}

// buildFixture wires the App to store when it is not nil.
func buildFixture(t *testing.T, store *config.Store) *fixture {
	t.Helper()
	r, warnings := roster.New([]roster.Student{
		{ID: "1", Name: "Alice", Group: "A", Weight: 1},
		{ID: "2", Name: "Bob", Group: "B", Weight: 1},
		{ID: "3", Name: "Carol", Group: "A", Weight: 1},
	})
	require.Empty(t, warnings)
	clock := &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	exporter := &fakeExporter{}
	rc := tools.NewRollCall(selection.New(r, 7), nil, tools.RollCallOptions{ShowName: true}, nil)
	wb := tools.NewWhiteboard(exporter, tools.WhiteboardOptions{OnClose: tools.CloseAsk, Color: "#ff0000"})
	tm := tools.NewTimer(clock, tools.TimerOptions{Mode: tools.Countdown, Duration: 2 * time.Second, Sound: true})

	reg, errs := overlay.LoadHotkeys(config.DefaultHotkeys())
	require.Empty(t, errs)
	coord := overlay.New(reg, overlay.Options{Toolbar: tools.Point{X: 2, Y: 1}}, rc, wb, tm)

	bell := &bytes.Buffer{}
	app := New(context.Background(), Deps{
		Coordinator: coord,
		RollCall:    rc,
		Whiteboard:  wb,
		Timer:       tm,
		Settings:    store,
		Clock:       clock,
		Bell:        bell,
	})
	f := &fixture{app: app, coord: coord, rollcall: rc, board: wb, timer: tm, clock: clock, exporter: exporter, bell: bell}
	f.send(tea.WindowSizeMsg{Width: 100, Height: 30})
	return f
}

// send runs msg through Update and executes the resulting commands, feeding
// their messages back in. Nothing runs while a tick is in flight; tests
// deliver tickMsg by hand.
func (f *fixture) send(msg tea.Msg) {
	_, cmd := f.app.Update(msg)
	f.run(cmd)
}

func (f *fixture) run(cmd tea.Cmd) {
	if cmd == nil || f.app.ticking {
		return
	}
	switch m := cmd().(type) {
	case nil:
	case tea.BatchMsg:
		for _, c := range m {
			f.run(c)
		}
	case tea.QuitMsg:
	default:
		f.send(m)
	}
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	case "ctrl+w":
		return tea.KeyMsg{Type: tea.KeyCtrlW}
	case "ctrl+t":
		return tea.KeyMsg{Type: tea.KeyCtrlT}
	case "ctrl+b":
		return tea.KeyMsg{Type: tea.KeyCtrlB}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "alt+left":
		return tea.KeyMsg{Type: tea.KeyLeft, Alt: true}
	case "alt+right":
		return tea.KeyMsg{Type: tea.KeyRight, Alt: true}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func mouse(action tea.MouseAction, x, y int) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Action: action, Button: tea.MouseButtonLeft}
}

func (f *fixture) view() string { return ansi.Strip(f.app.View()) }

func TestWindowSizeSetsSurface(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, tools.Rect{W: 100, H: 28}, f.coord.Screen())
	v := f.view()
	require.Contains(t, v, "Roll call")
	require.Contains(t, v, "Timer")
	require.Len(t, splitLines(v), 30)
}

func TestRollCallThroughKeys(t *testing.T) {
	f := newFixture(t)
	f.send(keyMsg("ctrl+r"))
	require.Equal(t, tools.RollCallID, f.coord.Active())
	require.Contains(t, f.view(), "press space")

	f.send(keyMsg("space"))
	cur, ok := f.rollcall.Current()
	require.True(t, ok)
	require.Contains(t, f.view(), cur.Name)

	f.send(keyMsg("h"))
	require.Equal(t, tools.PanelHistory, f.rollcall.Panel())
	require.Contains(t, f.view(), "#1")

	f.send(keyMsg("esc"))
	require.Equal(t, tools.ID(""), f.coord.Active())
	require.NotContains(t, f.view(), cur.Name)
}

func TestFindPromptCallsByName(t *testing.T) {
	f := newFixture(t)
	f.send(keyMsg("ctrl+r"))
	f.send(keyMsg("/"))
	require.True(t, f.app.finding)
	require.Contains(t, f.view(), "Call by name")

	f.send(keyMsg("b"))
	f.send(keyMsg("o"))
	f.send(keyMsg("x"))
	f.send(tea.KeyMsg{Type: tea.KeyBackspace})
	f.send(keyMsg("b"))
	f.send(keyMsg("enter"))
	require.False(t, f.app.finding)
	cur, ok := f.rollcall.Current()
	require.True(t, ok)
	require.Equal(t, "2", cur.ID)
}

func TestWhiteboardDrawAndConfirmSwitch(t *testing.T) {
	f := newFixture(t)
	f.send(keyMsg("ctrl+w"))
	require.Equal(t, tools.WhiteboardID, f.coord.CaptureOwner())

	f.send(mouse(tea.MouseActionPress, 10, 10))
	f.send(mouse(tea.MouseActionMotion, 14, 10))
	f.send(mouse(tea.MouseActionRelease, 14, 10))
	strokes := f.board.Strokes()
	require.Len(t, strokes, 1)
	require.Contains(t, f.view(), "█████")

	f.send(keyMsg("ctrl+t"))
	require.Equal(t, tools.WhiteboardID, f.coord.Active())
	require.Contains(t, f.view(), "Unsaved drawing")

	// unrelated keys do nothing while the prompt is open
	f.send(keyMsg("space"))
	require.Equal(t, tools.WhiteboardID, f.coord.Active())

	f.send(keyMsg("y"))
	require.Equal(t, tools.TimerID, f.coord.Active())
	require.Equal(t, 1, f.exporter.exported)
	require.Equal(t, tools.ID(""), f.coord.CaptureOwner())
	require.NotContains(t, f.view(), "Unsaved drawing")
}

func TestPendingCancelKeepsWhiteboard(t *testing.T) {
	f := newFixture(t)
	f.send(keyMsg("ctrl+w"))
	f.send(mouse(tea.MouseActionPress, 10, 10))
	f.send(mouse(tea.MouseActionRelease, 10, 10))
	f.send(keyMsg("esc"))
	_, pending := f.coord.Pending()
	require.True(t, pending)

	f.send(keyMsg("esc"))
	_, pending = f.coord.Pending()
	require.False(t, pending)
	require.Equal(t, tools.WhiteboardID, f.coord.Active())
	require.Equal(t, 0, f.exporter.exported)
}

func TestPointerIgnoredWithoutCapture(t *testing.T) {
	f := newFixture(t)
	f.send(keyMsg("ctrl+t"))
	f.send(mouse(tea.MouseActionPress, 50, 20))
	f.send(mouse(tea.MouseActionRelease, 50, 20))
	require.Empty(t, f.board.Strokes())
}

func TestTimerTicksAndRingsBell(t *testing.T) {
	f := newFixture(t)
	f.send(keyMsg("ctrl+t"))
	_, cmd := f.app.Update(keyMsg("space"))
	require.NotNil(t, cmd)
	require.True(t, f.timer.Running())
	require.True(t, f.app.ticking)

	f.clock.Advance(time.Second)
	f.send(tickMsg{})
	require.True(t, f.timer.Running())
	require.Contains(t, f.view(), "00:01")

	f.clock.Advance(1500 * time.Millisecond)
	f.send(tickMsg{})
	require.False(t, f.timer.Running())
	require.True(t, f.timer.Expired())
	require.Equal(t, "\a", f.bell.String())
	require.Contains(t, f.view(), "time's up")
	require.False(t, f.app.ticking)
}

func TestToolbarClickAndDrag(t *testing.T) {
	f := newFixture(t)
	btns := f.coord.ToolbarButtons()
	timerBtn := btns[2]
	require.Equal(t, tools.TimerID, timerBtn.Tool)

	f.send(mouse(tea.MouseActionPress, timerBtn.Rect.X, timerBtn.Rect.Y))
	require.Equal(t, tools.TimerID, f.coord.Active())
	f.send(mouse(tea.MouseActionPress, timerBtn.Rect.X, timerBtn.Rect.Y))
	require.Equal(t, tools.ID(""), f.coord.Active())

	pos := f.coord.Toolbar().Pos
	f.send(mouse(tea.MouseActionPress, pos.X, pos.Y))
	require.True(t, f.app.dragging)
	f.send(mouse(tea.MouseActionMotion, pos.X+20, pos.Y+5))
	f.send(mouse(tea.MouseActionMotion, 500, 500))
	f.send(mouse(tea.MouseActionRelease, 500, 500))
	require.False(t, f.app.dragging)
	require.Equal(t, tools.Point{X: 100 - overlay.ToolbarWidth, Y: 28 - overlay.ToolbarHeight}, f.coord.Toolbar().Pos)

	f.send(keyMsg("ctrl+b"))
	require.True(t, f.coord.Toolbar().Collapsed)
}

func TestRosterReloadMessages(t *testing.T) {
	f := newFixture(t)
	f.send(rosterMsg{err: errors.New("bad header")})
	require.Contains(t, f.app.status, "roster not reloaded")
	require.Equal(t, tools.LevelError, f.app.statusLevel)
	require.Equal(t, 3, f.rollcall.Engine().Roster().Len())

	next, _ := roster.New([]roster.Student{{ID: "9", Name: "Dan", Weight: 1}})
	f.send(rosterMsg{r: next, warnings: []roster.Warning{{Row: 3, Reason: "empty name"}}})
	require.Equal(t, 1, f.rollcall.Engine().Roster().Len())
	require.Contains(t, f.app.status, "1 rows skipped")
	require.Equal(t, tools.LevelWarn, f.app.statusLevel)
}

func TestQuitShutsDown(t *testing.T) {
	f := newFixture(t)
	f.send(keyMsg("ctrl+w"))
	_, cmd := f.app.Update(keyMsg("q"))
	require.NotNil(t, cmd)
	require.Equal(t, tea.QuitMsg{}, cmd())
	require.Equal(t, tools.ID(""), f.coord.Active())
	require.Equal(t, tools.ID(""), f.coord.CaptureOwner())
	require.Empty(t, f.app.View())
}

func TestOverlayAtClipsToFrame(t *testing.T) {
	base := "aaaaa\nbbbbb\nccccc"
	got := overlayAt(base, "XY\nZW", 4, 2, 5, 3)
	require.Equal(t, "aaaaa\nbbbbb\ncccc"+"X", got)
	require.Equal(t, []tools.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 1}, {X: 3, Y: 2}}, cellLine(tools.Point{}, tools.Point{X: 3, Y: 2}))
	require.Equal(t, "1:00:05", formatClock(time.Hour+5*time.Second))
	require.Equal(t, "04:59", formatClock(299400*time.Millisecond))
}

func TestSettingsWritesKeepLiveToolState(t *testing.T) {
	store, warnings := config.Load(filepath.Join(t.TempDir(), "config.toml"))
	require.Empty(t, warnings)
	f := buildFixture(t, store)

	f.send(keyMsg("ctrl+r"))
	f.send(keyMsg("g"))
	require.Equal(t, "A", f.rollcall.Options().Group)

	f.send(keyMsg("alt+right"))
	require.Equal(t, 3, store.Settings().Toolbar.X)
	require.Equal(t, "A", f.rollcall.Options().Group, "moving the toolbar keeps the group")

	f.send(keyMsg("ctrl+t"))
	require.Equal(t, tools.TimerID, f.coord.Active())
	f.send(keyMsg("+"))
	f.send(keyMsg("m"))
	require.Equal(t, tools.Stopwatch, f.timer.Mode())
	duration := f.timer.Duration()
	require.Equal(t, 62*time.Second, duration)

	f.send(keyMsg("alt+left"))
	require.Equal(t, 2, store.Settings().Toolbar.X)
	require.Equal(t, tools.Stopwatch, f.timer.Mode())
	require.Equal(t, duration, f.timer.Duration())

	require.NoError(t, store.Set("rollcall.group", "b"))
	require.Equal(t, "B", f.rollcall.Options().Group)

	require.NoError(t, store.Set("timer.default_seconds", 90))
	require.Equal(t, 90*time.Second, f.timer.Duration())
	require.Equal(t, tools.Stopwatch, f.timer.Mode(), "mode setting unchanged")

	require.NoError(t, store.Set("rollcall.avoid_recent", 2))
	require.Equal(t, 2, f.rollcall.Options().AvoidRecent)
	require.Equal(t, "B", f.rollcall.Options().Group)
	require.True(t, f.rollcall.Options().ShowName)
}
