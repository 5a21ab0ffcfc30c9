package config

import (
	"os"
	"path/filepath"
)

// Scopes used by hotkey bindings. A binding in ScopeGlobal is routed no matter
// which tool is active; a tool scope only routes while that tool is active.
const (
	ScopeGlobal     = "global"
	ScopeRollCall   = "rollcall"
	ScopeWhiteboard = "whiteboard"
	ScopeTimer      = "timer"
)

// HotkeyBinding maps keys to one action within a scope.
type HotkeyBinding struct {
	Scope  string
	Action string
	Keys   []string
	Help   string
}

var defaultHotkeys = []HotkeyBinding{
	{Scope: ScopeGlobal, Action: "toggle_rollcall", Keys: []string{"ctrl+r"}, Help: "roll call"},
	{Scope: ScopeGlobal, Action: "toggle_whiteboard", Keys: []string{"ctrl+w"}, Help: "whiteboard"},
	{Scope: ScopeGlobal, Action: "toggle_timer", Keys: []string{"ctrl+t"}, Help: "timer"},
	{Scope: ScopeGlobal, Action: "close", Keys: []string{"esc"}, Help: "close tool"},
	{Scope: ScopeGlobal, Action: "quit", Keys: []string{"q", "ctrl+c"}, Help: "quit"},
	{Scope: ScopeGlobal, Action: "reload_roster", Keys: []string{"ctrl+l"}, Help: "reload roster"},
	{Scope: ScopeGlobal, Action: "collapse_toolbar", Keys: []string{"ctrl+b"}, Help: "collapse bar"},
	{Scope: ScopeGlobal, Action: "move_left", Keys: []string{"alt+left"}, Help: "move bar"},
	{Scope: ScopeGlobal, Action: "move_right", Keys: []string{"alt+right"}, Help: "move bar"},
	{Scope: ScopeGlobal, Action: "move_up", Keys: []string{"alt+up"}, Help: "move bar"},
	{Scope: ScopeGlobal, Action: "move_down", Keys: []string{"alt+down"}, Help: "move bar"},

	{Scope: ScopeRollCall, Action: "next", Keys: []string{"space", "enter"}, Help: "call next"},
	{Scope: ScopeRollCall, Action: "undo", Keys: []string{"u"}, Help: "undo"},
	{Scope: ScopeRollCall, Action: "history", Keys: []string{"h"}, Help: "history"},
	{Scope: ScopeRollCall, Action: "group", Keys: []string{"g"}, Help: "group"},
	{Scope: ScopeRollCall, Action: "award", Keys: []string{"+"}, Help: "award point"},
	{Scope: ScopeRollCall, Action: "scoreboard", Keys: []string{"b"}, Help: "scoreboard"},
	{Scope: ScopeRollCall, Action: "reset", Keys: []string{"R"}, Help: "reset session"},
	{Scope: ScopeRollCall, Action: "find", Keys: []string{"/"}, Help: "find student"},

	{Scope: ScopeWhiteboard, Action: "undo", Keys: []string{"u"}, Help: "undo stroke"},
	{Scope: ScopeWhiteboard, Action: "clear", Keys: []string{"c"}, Help: "clear"},
	{Scope: ScopeWhiteboard, Action: "save", Keys: []string{"s"}, Help: "save image"},

	{Scope: ScopeTimer, Action: "start_pause", Keys: []string{"space"}, Help: "start/pause"},
	{Scope: ScopeTimer, Action: "reset", Keys: []string{"r"}, Help: "reset"},
	{Scope: ScopeTimer, Action: "mode", Keys: []string{"m"}, Help: "mode"},
	{Scope: ScopeTimer, Action: "longer", Keys: []string{"+", "="}, Help: "+1 min"},
	{Scope: ScopeTimer, Action: "shorter", Keys: []string{"-"}, Help: "-1 min"},
}

// DefaultHotkeys returns a copy of the built-in hotkey table.
func DefaultHotkeys() []HotkeyBinding {
	out := make([]HotkeyBinding, 0, len(defaultHotkeys))
	for _, b := range defaultHotkeys {
		b.Keys = append([]string(nil), b.Keys...)
		out = append(out, b)
	}
	return out
}

func hotkeyKey(b HotkeyBinding) string {
	return "hotkeys." + b.Scope + "." + b.Action
}

// defaultTable is the fixed default for every option the core reads.
func defaultTable() map[string]any {
	cfgDir := configDir()
	dataDir := dataDir()
	table := map[string]any{
		"toolbar.x":              2,
		"toolbar.y":              1,
		"toolbar.collapsed":      false,
		"rollcall.avoid_recent":  1,
		"rollcall.group":         "",
		"rollcall.seed":          0,
		"rollcall.show_id":       true,
		"rollcall.show_name":     true,
		"narration.enabled":      false,
		"narration.voice":        "",
		"narration.command":      "",
		"timer.default_seconds":  300,
		"timer.mode":             "countdown",
		"timer.sound":            true,
		"whiteboard.on_close":    "ask",
		"whiteboard.export_dir":  "",
		"whiteboard.brush_color": "#ff0000",
		"roster.path":            filepath.Join(cfgDir, "students.csv"),
		"database.path":          filepath.Join(dataDir, "classtools.db"),
	}
	for _, b := range defaultHotkeys {
		table[hotkeyKey(b)] = append([]string(nil), b.Keys...)
	}
	return table
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "classtools")
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "classtools")
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "classtools")
}

func dataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "classtools")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "classtools")
}

// DefaultPath returns the config file location, honouring CLASSTOOLS_CONFIG.
func DefaultPath() string {
	if p := os.Getenv("CLASSTOOLS_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(configDir(), "config.toml")
}
