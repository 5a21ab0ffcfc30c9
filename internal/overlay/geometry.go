package overlay

import "github.com/jask/classtools/internal/tools"

// Toolbar sizes in cells, including the border.
const (
	ToolbarWidth          = 44
	ToolbarHeight         = 3
	CollapsedToolbarWidth = 7
)

// Toolbar is the floating launcher. It is always drawn on top of the active
// tool and always lies inside the screen.
type Toolbar struct {
	// want is where the user put the toolbar; Pos is want clamped to the
	// current screen, so shrinking and regrowing the screen restores it.
	want      tools.Point
	Pos       tools.Point
	Collapsed bool
}

// Size returns the toolbar's cell size.
func (t Toolbar) Size() (w, h int) {
	if t.Collapsed {
		return CollapsedToolbarWidth, ToolbarHeight
	}
	return ToolbarWidth, ToolbarHeight
}

// Rect returns the toolbar's screen rectangle.
func (t Toolbar) Rect() tools.Rect {
	w, h := t.Size()
	return tools.Rect{X: t.Pos.X, Y: t.Pos.Y, W: w, H: h}
}

// clamp returns p moved the least distance needed for a w×h box to fit in
// screen. A box larger than the screen is pinned to the top-left corner.
func clamp(p tools.Point, w, h int, screen tools.Rect) tools.Point {
	if screen.W <= 0 || screen.H <= 0 {
		return tools.Point{X: max(p.X, 0), Y: max(p.Y, 0)}
	}
	maxX := max(screen.X+screen.W-w, screen.X)
	maxY := max(screen.Y+screen.H-h, screen.Y)
	return tools.Point{
		X: min(max(p.X, screen.X), maxX),
		Y: min(max(p.Y, screen.Y), maxY),
	}
}

// SetScreen records new screen bounds and re-clamps the toolbar.
func (c *Coordinator) SetScreen(r tools.Rect) {
	c.screen = r
	c.reclamp()
}

// Screen returns the current screen bounds.
func (c *Coordinator) Screen() tools.Rect { return c.screen }

// Toolbar returns the toolbar state.
func (c *Coordinator) Toolbar() Toolbar { return c.toolbar }

// MoveToolbar asks for the toolbar at p. The result is clamped to the
// screen. Asking for the current position is a no-op and reports false.
func (c *Coordinator) MoveToolbar(p tools.Point) bool {
	w, h := c.toolbar.Size()
	next := clamp(p, w, h, c.screen)
	if next == c.toolbar.Pos && c.toolbar.want == next {
		return false
	}
	c.toolbar.want = next
	c.toolbar.Pos = next
	c.logger.Debug("toolbar moved", "x", next.X, "y", next.Y)
	return true
}

// Nudge moves the toolbar by (dx, dy) from where it is drawn.
func (c *Coordinator) Nudge(dx, dy int) bool {
	return c.MoveToolbar(tools.Point{X: c.toolbar.Pos.X + dx, Y: c.toolbar.Pos.Y + dy})
}

// SetCollapsed shrinks or expands the toolbar, keeping it on screen.
func (c *Coordinator) SetCollapsed(collapsed bool) bool {
	if c.toolbar.Collapsed == collapsed {
		return false
	}
	c.toolbar.Collapsed = collapsed
	c.reclamp()
	return true
}

func (c *Coordinator) reclamp() {
	w, h := c.toolbar.Size()
	c.toolbar.Pos = clamp(c.toolbar.want, w, h, c.screen)
}

// ToolbarButton is one clickable cell range on the toolbar. Tool is empty for
// the collapse toggle.
type ToolbarButton struct {
	Tool  tools.ID
	Label string
	Rect  tools.Rect
}

var toolbarLabels = map[tools.ID]string{
	tools.RollCallID:   "Roll call",
	tools.WhiteboardID: "Board",
	tools.TimerID:      "Timer",
}

// ToolbarButtons lays out the toolbar's buttons in screen cells, left to
// right inside the border.
func (c *Coordinator) ToolbarButtons() []ToolbarButton {
	x, y := c.toolbar.Pos.X+1, c.toolbar.Pos.Y+1
	if c.toolbar.Collapsed {
		return []ToolbarButton{{Label: "»", Rect: tools.Rect{X: x + 1, Y: y, W: 3, H: 1}}}
	}
	var out []ToolbarButton
	for _, id := range c.order {
		label, ok := toolbarLabels[id]
		if !ok {
			label = string(id)
		}
		w := len([]rune(label)) + 2
		out = append(out, ToolbarButton{Tool: id, Label: label, Rect: tools.Rect{X: x, Y: y, W: w, H: 1}})
		x += w + 1
	}
	out = append(out, ToolbarButton{Label: "«", Rect: tools.Rect{X: x, Y: y, W: 3, H: 1}})
	return out
}

// ToolbarHit returns the button under p. ok is false when p misses every
// button; onBar reports whether p is on the toolbar at all.
func (c *Coordinator) ToolbarHit(p tools.Point) (btn ToolbarButton, ok, onBar bool) {
	if !c.toolbar.Rect().Contains(p) {
		return ToolbarButton{}, false, false
	}
	for _, b := range c.ToolbarButtons() {
		if b.Rect.Contains(p) {
			return b, true, true
		}
	}
	return ToolbarButton{}, false, true
}
