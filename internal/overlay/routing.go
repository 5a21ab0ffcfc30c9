package overlay

import (
	"errors"
	"fmt"

	"github.com/jask/classtools/internal/config"
	"github.com/jask/classtools/internal/tools"
)

// Global actions.
const (
	ActionToggleRollCall   = "toggle_rollcall"
	ActionToggleWhiteboard = "toggle_whiteboard"
	ActionToggleTimer      = "toggle_timer"
	ActionClose            = "close"
	ActionQuit             = "quit"
	ActionReloadRoster     = "reload_roster"
	ActionCollapseToolbar  = "collapse_toolbar"
	ActionMoveLeft         = "move_left"
	ActionMoveRight        = "move_right"
	ActionMoveUp           = "move_up"
	ActionMoveDown         = "move_down"
)

// LoadHotkeys registers bindings in order. A binding whose keys conflict
// falls back to its built-in keys; if those conflict too it is dropped. Every
// conflict is reported.
func LoadHotkeys(bindings []config.HotkeyBinding) (*Registry, []error) {
	defaults := make(map[string][]string)
	for _, b := range config.DefaultHotkeys() {
		defaults[b.Scope+"."+b.Action] = b.Keys
	}
	r := NewRegistry()
	var errs []error
	for _, b := range bindings {
		err := r.Register(Binding{Scope: b.Scope, Action: b.Action, Keys: b.Keys, Help: b.Help})
		if err == nil {
			continue
		}
		errs = append(errs, err)
		def, ok := defaults[b.Scope+"."+b.Action]
		if !ok {
			continue
		}
		if err := r.Register(Binding{Scope: b.Scope, Action: b.Action, Keys: def, Help: b.Help}); err != nil {
			errs = append(errs, fmt.Errorf("hotkey %s.%s dropped: %w", b.Scope, b.Action, err))
		}
	}
	return r, errs
}

// ActiveScope is the hotkey scope routed next to the global one.
func (c *Coordinator) ActiveScope() string {
	if c.active == "" {
		return ScopeGlobal
	}
	return string(c.active)
}

// HandleKey routes one key press. Tool actions go to the active tool as an
// ActionEvent; toolbar and activation actions are handled here. Any other
// global action (quit, reload_roster) is returned for the caller to perform.
// An unbound key returns "" and no error.
func (c *Coordinator) HandleKey(keyName string) (string, error) {
	b := c.hotkeys.Lookup(keyName, c.ActiveScope())
	if b == nil {
		return "", nil
	}
	if b.Scope != ScopeGlobal {
		return "", c.Dispatch(tools.ActionEvent{Action: b.Action})
	}
	switch b.Action {
	case ActionToggleRollCall:
		return "", c.toggleQuiet(tools.RollCallID)
	case ActionToggleWhiteboard:
		return "", c.toggleQuiet(tools.WhiteboardID)
	case ActionToggleTimer:
		return "", c.toggleQuiet(tools.TimerID)
	case ActionClose:
		return "", quietRefusal(c.Close())
	case ActionCollapseToolbar:
		c.SetCollapsed(!c.toolbar.Collapsed)
	case ActionMoveLeft:
		c.Nudge(-1, 0)
	case ActionMoveRight:
		c.Nudge(1, 0)
	case ActionMoveUp:
		c.Nudge(0, -1)
	case ActionMoveDown:
		c.Nudge(0, 1)
	default:
		return b.Action, nil
	}
	return "", nil
}

func (c *Coordinator) toggleQuiet(id tools.ID) error {
	if _, ok := c.tools[id]; !ok {
		return nil
	}
	return quietRefusal(c.Toggle(id))
}

// quietRefusal hides a refusal from key handlers: it is already queued as a
// pending request and posted as a notice.
func quietRefusal(err error) error {
	var refused *ActivationRefusedError
	if errors.As(err, &refused) {
		return nil
	}
	return err
}
