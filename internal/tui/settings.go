package tui

import (
	"github.com/jask/classtools/internal/config"
	"github.com/jask/classtools/internal/tools"
)

// RollCallOptions maps settings onto the roll-call tool.
func RollCallOptions(s config.Settings) tools.RollCallOptions {
	return tools.RollCallOptions{
		AvoidRecent: s.RollCall.AvoidRecent,
		Group:       s.RollCall.Group,
		ShowID:      s.RollCall.ShowID,
		ShowName:    s.RollCall.ShowName,
		Narrate:     s.Narration.Enabled,
	}
}

// WhiteboardOptions maps settings onto the whiteboard.
func WhiteboardOptions(s config.Settings) tools.WhiteboardOptions {
	return tools.WhiteboardOptions{OnClose: s.Whiteboard.OnClose, Color: s.Whiteboard.BrushColor}
}

// TimerOptions maps settings onto the timer.
func TimerOptions(s config.Settings) tools.TimerOptions {
	return tools.TimerOptions{Mode: tools.TimerMode(s.Timer.Mode), Duration: s.Timer.Default, Sound: s.Timer.Sound}
}

// applySettings pushes the options that changed since the last call into the
// tools. Values chosen from the keyboard (the roll-call group, the timer's
// mode and duration) stay until their own setting changes.
func (a *App) applySettings(next config.Settings) {
	prev := a.settings
	a.settings = next

	if rc := a.deps.RollCall; rc != nil && (prev.RollCall != next.RollCall || prev.Narration.Enabled != next.Narration.Enabled) {
		opts := rc.Options()
		opts.AvoidRecent = next.RollCall.AvoidRecent
		opts.ShowID = next.RollCall.ShowID
		opts.ShowName = next.RollCall.ShowName
		opts.Narrate = next.Narration.Enabled
		if prev.RollCall.Group != next.RollCall.Group {
			opts.Group = next.RollCall.Group
		}
		rc.SetOptions(opts)
	}

	if wb := a.deps.Whiteboard; wb != nil && prev.Whiteboard != next.Whiteboard {
		wb.SetOptions(WhiteboardOptions(next))
	}

	if t := a.deps.Timer; t != nil && prev.Timer != next.Timer {
		opts := tools.TimerOptions{Mode: t.Mode(), Duration: t.Duration(), Sound: next.Timer.Sound}
		if prev.Timer.Mode != next.Timer.Mode {
			opts.Mode = tools.TimerMode(next.Timer.Mode)
		}
		if prev.Timer.Default != next.Timer.Default {
			opts.Duration = next.Timer.Default
		}
		t.SetOptions(opts)
	}
}
