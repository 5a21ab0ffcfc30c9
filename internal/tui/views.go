package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/jask/classtools/internal/overlay"
	"github.com/jask/classtools/internal/tools"
)

func (a *App) View() string {
	if a.quitting {
		return ""
	}
	c := a.deps.Coordinator
	screen := c.Screen()
	width, height := screen.W, screen.H
	if width <= 0 || height <= 0 {
		width, height = 80, 22
	}

	body := fitLines(a.renderTool(width, height), width, height)
	tb := c.Toolbar()
	body = overlayAt(body, a.renderToolbar(), tb.Pos.X, tb.Pos.Y, width, height)

	if modal := a.renderModal(); modal != "" {
		lines := splitLines(modal)
		x := max((width-maxLineWidth(lines))/2, 0)
		y := max((height-len(lines))/2, 0)
		body = overlayAt(body, modal, x, y, width, height)
	}
	return body + "\n" + a.renderStatus(width) + "\n" + a.renderFooter(a.footerBindings(), width)
}

func (a *App) renderTool(width, height int) string {
	switch st := a.deps.Coordinator.State().(type) {
	case tools.RollCallActive:
		return a.renderRollCall(st, width, height)
	case tools.WhiteboardActive:
		return a.renderWhiteboard(width, height)
	case tools.TimerActive:
		return a.renderTimer(st, width, height)
	}
	return ""
}

func (a *App) renderToolbar() string {
	c := a.deps.Coordinator
	tb := c.Toolbar()
	w, _ := tb.Size()
	var b strings.Builder
	cursor := tb.Pos.X + 1
	for _, btn := range c.ToolbarButtons() {
		b.WriteString(strings.Repeat(" ", max(btn.Rect.X-cursor, 0)))
		style := toolbarButtonStyle
		if btn.Tool != "" && btn.Tool == c.Active() {
			style = toolbarActiveStyle
		}
		b.WriteString(style.Render(btn.Label))
		cursor = btn.Rect.X + btn.Rect.W
	}
	return toolbarStyle.Width(w - 2).Render(b.String())
}

func (a *App) renderRollCall(st tools.RollCallActive, width, height int) string {
	rc := a.deps.RollCall
	group := st.Filter
	if group == "" {
		group = "all"
	}
	header := titleStyle.Render("Roll call") + dimStyle.Render(fmt.Sprintf("  group: %s  students: %d", group, rc.Engine().Roster().Len()))

	var content string
	switch st.Panel {
	case tools.PanelHistory:
		content = a.renderHistory(height - 6)
	case tools.PanelScoreboard:
		content = a.renderScoreboard(height - 6)
	default:
		name := dimStyle.Render("press space to call a student")
		if s, ok := rc.Current(); ok {
			name = bigNameStyle.Render(rc.Label(s))
			if s.Score != 0 {
				name += "\n" + dimStyle.Render(fmt.Sprintf("score %d", s.Score))
			}
		}
		content = name
	}
	panel := panelStyle.Width(min(width-4, 60)).Render(header + "\n\n" + content)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, panel)
}

func (a *App) renderHistory(rows int) string {
	entries := a.deps.RollCall.History()
	if len(entries) == 0 {
		return dimStyle.Render("no calls yet this session")
	}
	if rows > 0 && len(entries) > rows {
		entries = entries[:rows]
	}
	var lines []string
	for _, e := range entries {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("#%-4d ", e.Ordinal))+textStyle.Render(e.Label))
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderScoreboard(rows int) string {
	rc := a.deps.RollCall
	students := rc.Scoreboard()
	if rows > 0 && len(students) > rows {
		students = students[:rows]
	}
	var lines []string
	for i, s := range students {
		mark := "  "
		if cur, ok := rc.Current(); ok && cur.ID == s.ID {
			mark = cursorStyle.Render("> ")
		}
		lines = append(lines, fmt.Sprintf("%s%2d. %-24s %4d", mark, i+1, rc.Label(s), s.Score))
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderWhiteboard(width, height int) string {
	grid := make([][]string, height)
	for y := range grid {
		grid[y] = make([]string, width)
		for x := range grid[y] {
			grid[y][x] = " "
		}
	}
	for _, s := range a.deps.Whiteboard.Strokes() {
		if len(s.Points) == 0 {
			continue
		}
		ink := lipgloss.NewStyle().Foreground(lipgloss.Color(s.Color)).Render("█")
		prev := s.Points[0]
		for _, p := range s.Points {
			for _, cell := range cellLine(prev, p) {
				if cell.Y >= 0 && cell.Y < height && cell.X >= 0 && cell.X < width {
					grid[cell.Y][cell.X] = ink
				}
			}
			prev = p
		}
	}
	lines := make([]string, height)
	for y, row := range grid {
		lines[y] = strings.Join(row, "")
	}
	return strings.Join(lines, "\n")
}

// cellLine returns the cells on the segment from p to q.
func cellLine(p, q tools.Point) []tools.Point {
	dx, dy := abs(q.X-p.X), -abs(q.Y-p.Y)
	sx, sy := 1, 1
	if p.X > q.X {
		sx = -1
	}
	if p.Y > q.Y {
		sy = -1
	}
	var out []tools.Point
	e := dx + dy
	for {
		out = append(out, p)
		if p == q {
			return out
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			p.X += sx
		}
		if e2 <= dx {
			e += dx
			p.Y += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (a *App) renderTimer(st tools.TimerActive, width, height int) string {
	t := a.deps.Timer
	shown, label := st.Remaining, "countdown"
	if st.Mode == tools.Stopwatch {
		shown, label = st.Elapsed, "stopwatch"
	}
	state := "paused"
	color := colorSubtext0
	switch {
	case st.Running:
		state, color = "running", colorSuccess
	case t.Expired():
		state, color = "time's up", colorPeach
	}
	clock := lipgloss.NewStyle().Foreground(color).Bold(true).Padding(1, 6).Render(formatClock(shown))
	info := dimStyle.Render(fmt.Sprintf("%s · %s · %s", label, state, formatClock(t.Duration())))
	panel := panelStyle.Render(lipgloss.JoinVertical(lipgloss.Center, titleStyle.Render("Timer"), clock, info))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, panel)
}

// formatClock renders d as MM:SS, or H:MM:SS from an hour up.
func formatClock(d time.Duration) string {
	d = d.Round(time.Second)
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	m := int(d%time.Hour) / int(time.Minute)
	s := int(d%time.Minute) / int(time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func (a *App) renderModal() string {
	c := a.deps.Coordinator
	switch {
	case a.finding:
		return modalStyle.Width(36).Render(titleStyle.Render("Call by name") + "\n" + a.prompt.View())
	default:
		target, ok := c.Pending()
		if !ok {
			return ""
		}
		what := "close the whiteboard"
		if target != "" {
			what = "switch to " + string(target)
		}
		return modalStyle.Render(titleStyle.Render("Unsaved drawing") + "\n" +
			textStyle.Render("Save before you "+what+"?") + "\n\n" +
			helpKeyStyle.Render("y") + " save  " + helpKeyStyle.Render("n") + " discard  " + helpKeyStyle.Render("esc") + " cancel")
	}
}

func (a *App) renderStatus(width int) string {
	style := statusBarStyle.Foreground(levelColor(a.statusLevel))
	flat := strings.ReplaceAll(a.status, "\n", " ")
	if width <= 0 {
		return style.Render(flat)
	}
	return style.Width(width).Render(flat)
}

func (a *App) footerBindings() []key.Binding {
	reg := a.deps.Coordinator.Hotkeys()
	scope := a.deps.Coordinator.ActiveScope()
	var out []key.Binding
	if scope != overlay.ScopeGlobal {
		out = append(out, reg.HelpBindings(scope)...)
	}
	return append(out, reg.HelpBindings(overlay.ScopeGlobal)...)
}

func (a *App) renderFooter(bindings []key.Binding, width int) string {
	// every character carries the footer background
	bg := colorMantle
	keyStyle := helpKeyStyle.Background(bg)
	descStyle := helpDescStyle.Background(bg)
	space := lipgloss.NewStyle().Background(bg).Render(" ")
	sep := lipgloss.NewStyle().Background(bg).Render("  ")

	parts := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		help := binding.Help()
		if help.Key == "" && help.Desc == "" {
			continue
		}
		parts = append(parts, keyStyle.Render(help.Key)+space+descStyle.Render(help.Desc))
	}
	content := strings.Join(parts, sep)
	if width <= 0 {
		return footerStyle.Render(content)
	}
	return footerStyle.Width(width).MaxHeight(1).Render(content)
}
