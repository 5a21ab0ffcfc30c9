package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Settings is the typed view of every option the core reads.
type Settings struct {
	Toolbar    ToolbarSettings
	Hotkeys    []HotkeyBinding
	RollCall   RollCallSettings
	Narration  NarrationSettings
	Timer      TimerSettings
	Whiteboard WhiteboardSettings
	Roster     RosterSettings
	Database   DatabaseSettings
}

// ToolbarSettings holds the floating toolbar placement.
type ToolbarSettings struct {
	X         int
	Y         int
	Collapsed bool
}

// RollCallSettings holds selection defaults.
type RollCallSettings struct {
	AvoidRecent int
	Group       string
	Seed        uint64
	ShowID      bool
	ShowName    bool
}

// NarrationSettings controls text-to-speech.
type NarrationSettings struct {
	Enabled bool
	Voice   string
	Command string
}

// TimerSettings holds timer defaults.
type TimerSettings struct {
	Default time.Duration
	Mode    string
	Sound   bool
}

// WhiteboardSettings holds the annotation layer options.
type WhiteboardSettings struct {
	OnClose    string
	ExportDir  string
	BrushColor string
}

type RosterSettings struct {
	Path string
}

type DatabaseSettings struct {
	Path string
}

// ConfigurationError reports a missing or invalid option. The store always
// falls back to the default, so these are warnings rather than failures.
type ConfigurationError struct {
	Key    string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config %s=%v: %s", e.Key, e.Value, e.Reason)
}

const maxTimerSeconds = 24 * 60 * 60

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Store owns the settings file and notifies subscribers on change.
// It is not safe for concurrent use; callers stay on the UI loop.
type Store struct {
	v *viper.Viper
	// file holds only what Save writes: the file's keys and keys from Set
	file     *viper.Viper
	path     string
	current  Settings
	warnings []error
	subs     []func(Settings)
}

// Load reads the settings file at path (DefaultPath when empty). A missing file
// is not an error. Invalid values are reported as *ConfigurationError and replaced
// by their defaults; the returned store is always usable.
func Load(path string) (*Store, []error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	s := &Store{path: path}
	s.warnings = s.read()
	return s, s.warnings
}

func (s *Store) read() []error {
	v := viper.New()
	for key, value := range defaultTable() {
		v.SetDefault(key, value)
	}
	v.SetConfigType("toml")
	v.SetConfigFile(s.path)
	v.SetEnvPrefix("CLASSTOOLS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var warnings []error
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			warnings = append(warnings, &ConfigurationError{Reason: fmt.Sprintf("read %s: %v; using defaults", s.path, err)})
		}
	}
	s.v = v
	s.file = readFileOnly(s.path)
	settings, problems := decode(v)
	s.current = settings
	return append(warnings, problems...)
}

// decode builds Settings from v, falling back per key.
func decode(v *viper.Viper) (Settings, []error) {
	d := decoder{v: v}
	out := Settings{
		Toolbar: ToolbarSettings{
			X:         d.intMin("toolbar.x", 0),
			Y:         d.intMin("toolbar.y", 0),
			Collapsed: d.boolean("toolbar.collapsed"),
		},
		RollCall: RollCallSettings{
			AvoidRecent: d.intMin("rollcall.avoid_recent", 0),
			Group:       strings.ToUpper(strings.TrimSpace(d.str("rollcall.group"))),
			Seed:        d.uint("rollcall.seed"),
			ShowID:      d.boolean("rollcall.show_id"),
			ShowName:    d.boolean("rollcall.show_name"),
		},
		Narration: NarrationSettings{
			Enabled: d.boolean("narration.enabled"),
			Voice:   strings.TrimSpace(d.str("narration.voice")),
			Command: strings.TrimSpace(d.str("narration.command")),
		},
		Timer: TimerSettings{
			Default: time.Duration(d.intRange("timer.default_seconds", 1, maxTimerSeconds)) * time.Second,
			Mode:    d.oneOf("timer.mode", "countdown", "stopwatch"),
			Sound:   d.boolean("timer.sound"),
		},
		Whiteboard: WhiteboardSettings{
			OnClose:    d.oneOf("whiteboard.on_close", "ask", "discard", "save"),
			ExportDir:  strings.TrimSpace(d.str("whiteboard.export_dir")),
			BrushColor: d.color("whiteboard.brush_color"),
		},
		Roster:   RosterSettings{Path: d.path("roster.path")},
		Database: DatabaseSettings{Path: d.path("database.path")},
	}
	for _, b := range defaultHotkeys {
		b.Keys = d.keys(hotkeyKey(b), b.Keys)
		out.Hotkeys = append(out.Hotkeys, b)
	}
	return out, d.errs
}

type decoder struct {
	v    *viper.Viper
	errs []error
}

func (d *decoder) fallback(key string, value any, reason string) any {
	def := defaultTable()[key]
	d.errs = append(d.errs, &ConfigurationError{Key: key, Value: value, Reason: reason + "; using default"})
	return def
}

func (d *decoder) intMin(key string, lo int) int {
	raw := d.v.Get(key)
	n, err := cast.ToIntE(raw)
	if err != nil || n < lo {
		return d.fallback(key, raw, fmt.Sprintf("want integer >= %d", lo)).(int)
	}
	return n
}

func (d *decoder) intRange(key string, lo, hi int) int {
	raw := d.v.Get(key)
	n, err := cast.ToIntE(raw)
	if err != nil || n < lo || n > hi {
		return d.fallback(key, raw, fmt.Sprintf("want integer in [%d, %d]", lo, hi)).(int)
	}
	return n
}

func (d *decoder) uint(key string) uint64 {
	raw := d.v.Get(key)
	n, err := cast.ToUint64E(raw)
	if err != nil {
		return uint64(d.fallback(key, raw, "want non-negative integer").(int))
	}
	return n
}

func (d *decoder) boolean(key string) bool {
	raw := d.v.Get(key)
	if b, ok := raw.(bool); ok {
		return b
	}
	b, ok := ParseBool(cast.ToString(raw))
	if !ok {
		return d.fallback(key, raw, "want boolean").(bool)
	}
	return b
}

func (d *decoder) str(key string) string {
	raw := d.v.Get(key)
	s, err := cast.ToStringE(raw)
	if err != nil {
		return d.fallback(key, raw, "want string").(string)
	}
	return s
}

func (d *decoder) oneOf(key string, allowed ...string) string {
	s := strings.ToLower(strings.TrimSpace(d.str(key)))
	for _, a := range allowed {
		if s == a {
			return s
		}
	}
	return d.fallback(key, s, "want one of "+strings.Join(allowed, ", ")).(string)
}

func (d *decoder) color(key string) string {
	s := strings.TrimSpace(d.str(key))
	if !colorPattern.MatchString(s) {
		return d.fallback(key, s, "want #rrggbb").(string)
	}
	return strings.ToLower(s)
}

func (d *decoder) path(key string) string {
	s := strings.TrimSpace(d.str(key))
	if s == "" {
		return d.fallback(key, s, "empty path").(string)
	}
	if strings.HasPrefix(s, "~/") {
		s = filepath.Join(os.Getenv("HOME"), s[2:])
	}
	return s
}

func (d *decoder) keys(key string, def []string) []string {
	raw := d.v.Get(key)
	keys, err := cast.ToStringSliceE(raw)
	if err != nil {
		d.errs = append(d.errs, &ConfigurationError{Key: key, Value: raw, Reason: "want list of keys; using default"})
		return append([]string(nil), def...)
	}
	out := keys[:0:0]
	for _, k := range keys {
		if strings.TrimSpace(k) != "" || k == " " {
			out = append(out, k)
		}
	}
	if len(out) == 0 {
		d.errs = append(d.errs, &ConfigurationError{Key: key, Value: raw, Reason: "no keys; using default"})
		return append([]string(nil), def...)
	}
	return out
}

// ParseBool accepts the usual spellings of true and false. ok is false for
// anything else so callers can fall back to their default.
func ParseBool(s string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

// Path returns the file the store reads and writes.
func (s *Store) Path() string { return s.path }

// Settings returns the current settings.
func (s *Store) Settings() Settings { return s.current }

// Warnings returns the problems found by the last load.
func (s *Store) Warnings() []error { return append([]error(nil), s.warnings...) }

// OnChange registers fn to be called after every successful Set or Reload.
func (s *Store) OnChange(fn func(Settings)) {
	if fn != nil {
		s.subs = append(s.subs, fn)
	}
}

// Set validates and applies a single option. An invalid value is rejected with
// a *ConfigurationError and the previous value stays in effect.
func (s *Store) Set(key string, value any) error {
	key = strings.ToLower(strings.TrimSpace(key))
	if _, known := defaultTable()[key]; !known {
		return &ConfigurationError{Key: key, Value: value, Reason: "unknown option"}
	}
	previous := s.v.Get(key)
	s.v.Set(key, value)
	settings, problems := decode(s.v)
	for _, p := range problems {
		var ce *ConfigurationError
		if errors.As(p, &ce) && ce.Key == key {
			s.v.Set(key, previous)
			return ce
		}
	}
	s.file.Set(key, value)
	s.current = settings
	s.notify()
	return nil
}

// Save writes the settings file atomically. Only keys read from the file and
// keys passed to Set are written; defaults and environment overrides are not.
// Keys the core does not know about are written back unchanged.
func (s *Store) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	tmp := filepath.Join(filepath.Dir(s.path), ".classtools-settings.tmp.toml")
	if err := s.file.WriteConfigAs(tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// Reload re-reads the file. Subscribers are notified even when warnings are
// returned, because the defaults that replaced bad values are now in effect.
func (s *Store) Reload() []error {
	s.warnings = s.read()
	s.notify()
	return s.Warnings()
}

// readFileOnly loads the settings file without defaults or environment
// overrides. An unreadable file gives an empty viper.
func readFileOnly(path string) *viper.Viper {
	f := viper.New()
	f.SetConfigType("toml")
	f.SetConfigFile(path)
	if err := f.ReadInConfig(); err != nil {
		f = viper.New()
		f.SetConfigType("toml")
	}
	return f
}

func (s *Store) notify() {
	for _, fn := range s.subs {
		fn(s.current)
	}
}
