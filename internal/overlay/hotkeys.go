package overlay

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// Hotkey scopes. A tool scope routes only while that tool is active.
const (
	ScopeGlobal = "global"
)

// Binding maps keys to one action within a scope.
type Binding struct {
	Scope  string
	Action string
	Keys   []string
	Help   string
}

// HotkeyConflictError is returned when a key is already bound to another
// action that could be routed at the same time.
type HotkeyConflictError struct {
	Key      string
	Scope    string
	Existing string
	Incoming string
}

func (e *HotkeyConflictError) Error() string {
	return fmt.Sprintf("hotkey %q in scope %q already bound to %q, cannot bind %q", e.Key, e.Scope, e.Existing, e.Incoming)
}

// Registry holds hotkey bindings per scope. Every key routes to exactly one
// (scope, action) pair: keys are unique within a scope, and a tool scope
// cannot reuse a global key.
type Registry struct {
	bindingsByScope map[string][]*Binding
	indexByScope    map[string]map[string]*Binding
}

func NewRegistry() *Registry {
	return &Registry{
		bindingsByScope: make(map[string][]*Binding),
		indexByScope:    make(map[string]map[string]*Binding),
	}
}

// Register adds b, failing with *HotkeyConflictError when any of its keys is
// taken. Nothing is registered on failure.
func (r *Registry) Register(b Binding) error {
	scope := strings.TrimSpace(b.Scope)
	action := strings.TrimSpace(b.Action)
	if scope == "" || action == "" {
		return fmt.Errorf("hotkey: scope and action are required")
	}
	keys := normalizeKeyList(b.Keys)
	if len(keys) == 0 {
		return fmt.Errorf("hotkey %s.%s: keys are required", scope, action)
	}
	for _, existing := range r.bindingsByScope[scope] {
		if existing.Action == action {
			return fmt.Errorf("hotkey %s.%s: already registered", scope, action)
		}
	}
	for _, k := range keys {
		if err := r.conflict(scope, action, k); err != nil {
			return err
		}
	}

	copyBinding := b
	copyBinding.Scope = scope
	copyBinding.Action = action
	copyBinding.Keys = keys
	r.bindingsByScope[scope] = append(r.bindingsByScope[scope], &copyBinding)
	if _, ok := r.indexByScope[scope]; !ok {
		r.indexByScope[scope] = make(map[string]*Binding)
	}
	for _, k := range keys {
		r.indexByScope[scope][k] = &copyBinding
	}
	return nil
}

func (r *Registry) conflict(scope, action, k string) error {
	if b, ok := r.indexByScope[scope][k]; ok && b.Action != action {
		return &HotkeyConflictError{Key: k, Scope: scope, Existing: b.Action, Incoming: action}
	}
	if scope == ScopeGlobal {
		for other, index := range r.indexByScope {
			if other == ScopeGlobal {
				continue
			}
			if b, ok := index[k]; ok {
				return &HotkeyConflictError{Key: k, Scope: scope, Existing: other + "." + b.Action, Incoming: action}
			}
		}
		return nil
	}
	if b, ok := r.indexByScope[ScopeGlobal][k]; ok {
		return &HotkeyConflictError{Key: k, Scope: scope, Existing: ScopeGlobal + "." + b.Action, Incoming: action}
	}
	return nil
}

// Rebind replaces the keys of an existing binding. The previous keys stay in
// effect when the new ones conflict.
func (r *Registry) Rebind(scope, action string, keys []string) error {
	var target *Binding
	for _, b := range r.bindingsByScope[scope] {
		if b.Action == action {
			target = b
			break
		}
	}
	if target == nil {
		return fmt.Errorf("hotkey %s.%s: unknown binding", scope, action)
	}
	norm := normalizeKeyList(keys)
	if len(norm) == 0 {
		return fmt.Errorf("hotkey %s.%s: keys are required", scope, action)
	}
	previous := target.Keys
	target.Keys = nil
	r.rebuildIndex()
	for _, k := range norm {
		if err := r.conflict(scope, action, k); err != nil {
			target.Keys = previous
			r.rebuildIndex()
			return err
		}
	}
	target.Keys = norm
	r.rebuildIndex()
	return nil
}

// Lookup resolves keyName in scope, falling back to the global scope.
func (r *Registry) Lookup(keyName, scope string) *Binding {
	if r == nil || keyName == "" {
		return nil
	}
	keyName = normalizeKeyName(keyName)
	if b := r.indexByScope[scope][keyName]; b != nil {
		return b
	}
	if scope != ScopeGlobal {
		return r.indexByScope[ScopeGlobal][keyName]
	}
	return nil
}

// BindingsForScope returns copies of the scope's bindings in registration order.
func (r *Registry) BindingsForScope(scope string) []Binding {
	items := r.bindingsByScope[scope]
	out := make([]Binding, 0, len(items))
	for _, b := range items {
		c := *b
		c.Keys = append([]string(nil), b.Keys...)
		out = append(out, c)
	}
	return out
}

// HelpBindings converts a scope's bindings for bubbles/help.
func (r *Registry) HelpBindings(scope string) []key.Binding {
	items := r.BindingsForScope(scope)
	out := make([]key.Binding, 0, len(items))
	for _, b := range items {
		out = append(out, key.NewBinding(key.WithKeys(b.Keys...), key.WithHelp(b.Keys[0], b.Help)))
	}
	return out
}

// Export lists every binding sorted by scope and action.
func (r *Registry) Export() []Binding {
	var out []Binding
	for scope := range r.bindingsByScope {
		out = append(out, r.BindingsForScope(scope)...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Scope != out[j].Scope {
			return out[i].Scope < out[j].Scope
		}
		return out[i].Action < out[j].Action
	})
	return out
}

func (r *Registry) rebuildIndex() {
	r.indexByScope = make(map[string]map[string]*Binding, len(r.bindingsByScope))
	for scope, bindings := range r.bindingsByScope {
		r.indexByScope[scope] = make(map[string]*Binding)
		for _, b := range bindings {
			for _, k := range b.Keys {
				r.indexByScope[scope][k] = b
			}
		}
	}
}

func normalizeKeyList(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool)
	for _, k := range keys {
		n := normalizeKeyName(k)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func normalizeKeyName(k string) string {
	if k == " " {
		return "space"
	}
	trimmed := strings.TrimSpace(k)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) == 1 {
		ch := trimmed[0]
		if ch >= 'A' && ch <= 'Z' {
			// keep a single uppercase rune distinct from its lowercase key
			return trimmed
		}
	}
	s := strings.ToLower(trimmed)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "control+", "ctrl+")
	s = strings.ReplaceAll(s, "ctl+", "ctrl+")
	s = strings.ReplaceAll(s, "option+", "alt+")
	s = strings.ReplaceAll(s, "return", "enter")
	s = strings.ReplaceAll(s, "spacebar", "space")
	s = strings.ReplaceAll(s, "escape", "esc")
	return s
}
