package tools

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/jask/classtools/internal/roster"
	"github.com/jask/classtools/internal/selection"
)

// Roll-call actions.
const (
	ActionNext       = "next"
	ActionUndo       = "undo"
	ActionHistory    = "history"
	ActionGroup      = "group"
	ActionAward      = "award"
	ActionScoreboard = "scoreboard"
	ActionReset      = "reset"
	// ActionFind opens the front end's name prompt; the result arrives
	// through CallByName.
	ActionFind = "find"
)

// Panel is the roll-call view.
type Panel int

const (
	PanelMain Panel = iota
	PanelHistory
	PanelScoreboard
)

// Narrator speaks text in the background. Speak must not block; it reports
// false when the utterance was dropped.
type Narrator interface {
	Speak(text string) bool
}

// RollCallListener observes roll-call mutations, typically to persist them.
type RollCallListener interface {
	Called(selection.CallRecord)
	Undone(selection.CallRecord)
	SessionReset()
	Scored(studentID string, score int)
}

// RollCallOptions are the roll-call settings.
type RollCallOptions struct {
	AvoidRecent int
	Group       string
	ShowID      bool
	ShowName    bool
	Narrate     bool
	ScoreOrder  string
}

// HistoryEntry is a call record with the student's display label.
type HistoryEntry struct {
	Ordinal   uint64
	StudentID string
	Label     string
}

// RollCall wraps the selection engine with the roll-call actions.
type RollCall struct {
	engine   *selection.Engine
	narrator Narrator
	listener RollCallListener
	opts     RollCallOptions
	logger   *slog.Logger

	host    Host
	active  bool
	current string
	panel   Panel
}

// NewRollCall creates the roll-call tool. narrator may be nil.
func NewRollCall(engine *selection.Engine, narrator Narrator, opts RollCallOptions, logger *slog.Logger) *RollCall {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RollCall{engine: engine, narrator: narrator, opts: opts, logger: logger}
}

func (r *RollCall) ID() ID { return RollCallID }

// SetListener installs l; nil removes it.
func (r *RollCall) SetListener(l RollCallListener) { r.listener = l }

// SetOptions applies changed settings. The current student is kept.
func (r *RollCall) SetOptions(opts RollCallOptions) { r.opts = opts }

func (r *RollCall) Options() RollCallOptions { return r.opts }

func (r *RollCall) Activate(h Host) error {
	r.host = h
	r.active = true
	r.panel = PanelMain
	return nil
}

// Deactivate never refuses. A draw is atomic on the UI loop, so closing
// between events cannot interrupt one.
func (r *RollCall) Deactivate(DeactivateOptions) error {
	r.active = false
	r.host = nil
	r.panel = PanelMain
	return nil
}

func (r *RollCall) State() ToolState {
	if !r.active {
		return Idle{}
	}
	return RollCallActive{
		Cursor:  r.engine.Roster().Index(r.current),
		Filter:  r.opts.Group,
		Current: r.current,
		Panel:   r.panel,
	}
}

func (r *RollCall) HandleEvent(ev Event) error {
	if !r.active {
		return ErrNotActive
	}
	a, ok := ev.(ActionEvent)
	if !ok {
		return nil
	}
	switch a.Action {
	case ActionNext:
		_, err := r.CallNext(r.opts.Group)
		return err
	case ActionUndo:
		_, err := r.Undo()
		return err
	case ActionHistory:
		r.togglePanel(PanelHistory)
	case ActionScoreboard:
		r.togglePanel(PanelScoreboard)
	case ActionGroup:
		g := r.CycleGroup()
		if g == "" {
			g = "all"
		}
		r.notify(Notice{Text: "group: " + g})
	case ActionAward:
		_, err := r.Award(1)
		return err
	case ActionReset:
		r.ResetSession()
		r.notify(Notice{Text: "session reset"})
	case ActionFind:
	default:
		return fmt.Errorf("roll call: unknown action %q", a.Action)
	}
	return nil
}

func (r *RollCall) togglePanel(p Panel) {
	if r.panel == p {
		r.panel = PanelMain
		return
	}
	r.panel = p
}

// Panel returns the current view.
func (r *RollCall) Panel() Panel { return r.panel }

// CallNext draws the next student matching filter and narrates the result.
// Narration never affects the draw.
func (r *RollCall) CallNext(filter string) (roster.Student, error) {
	s, rec, err := r.engine.Draw(filter, r.opts.AvoidRecent)
	if err != nil {
		return roster.Student{}, err
	}
	r.called(s, rec)
	return s, nil
}

// CallByName records a call for the best fuzzy match of query.
func (r *RollCall) CallByName(query string) (roster.Student, error) {
	hits := r.engine.Roster().Search(query, 1)
	if len(hits) == 0 {
		return roster.Student{}, fmt.Errorf("%w: no student like %q", selection.ErrNoEligibleCandidate, query)
	}
	s, rec, err := r.engine.Call(hits[0].ID)
	if err != nil {
		return roster.Student{}, err
	}
	r.called(s, rec)
	return s, nil
}

func (r *RollCall) called(s roster.Student, rec selection.CallRecord) {
	r.current = s.ID
	r.panel = PanelMain
	if r.listener != nil {
		r.listener.Called(rec)
	}
	r.narrate(s)
}

func (r *RollCall) narrate(s roster.Student) {
	if !r.opts.Narrate || r.narrator == nil {
		return
	}
	text := s.Name
	if !r.opts.ShowName {
		text = s.ID
	}
	if !r.narrator.Speak(text) {
		r.logger.Warn("narration dropped", "student", s.ID)
	}
}

// Undo reverts the most recent call.
func (r *RollCall) Undo() (selection.CallRecord, error) {
	rec, err := r.engine.UndoLast()
	if err != nil {
		return selection.CallRecord{}, err
	}
	r.current = ""
	if last, ok := r.engine.Last(); ok {
		r.current = last.StudentID
	}
	if r.listener != nil {
		r.listener.Undone(rec)
	}
	return rec, nil
}

// ResetSession clears the call history.
func (r *RollCall) ResetSession() {
	r.engine.ResetSession()
	r.current = ""
	if r.listener != nil {
		r.listener.SessionReset()
	}
}

// CycleGroup moves the filter to the next group, wrapping through "all".
func (r *RollCall) CycleGroup() string {
	groups := r.engine.Roster().Groups()
	next := ""
	if i := slices.Index(groups, r.opts.Group); i < 0 && len(groups) > 0 {
		next = groups[0]
	} else if i >= 0 && i+1 < len(groups) {
		next = groups[i+1]
	}
	r.opts.Group = next
	return next
}

// Award adds delta points to the current student.
func (r *RollCall) Award(delta int) (int, error) {
	if r.current == "" {
		return 0, ErrNoCurrentStudent
	}
	score, ok := r.engine.Roster().AddScore(r.current, delta)
	if !ok {
		return 0, fmt.Errorf("award: student %s left the roster", r.current)
	}
	if r.listener != nil {
		r.listener.Scored(r.current, score)
	}
	return score, nil
}

// Current returns the most recently called student.
func (r *RollCall) Current() (roster.Student, bool) {
	if r.current == "" {
		return roster.Student{}, false
	}
	return r.engine.Roster().Get(r.current)
}

// History returns the session's calls, newest first.
func (r *RollCall) History() []HistoryEntry {
	records := r.engine.History()
	out := make([]HistoryEntry, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		label := rec.StudentID
		if s, ok := r.engine.Roster().Get(rec.StudentID); ok {
			label = r.Label(s)
		}
		out = append(out, HistoryEntry{Ordinal: rec.Ordinal, StudentID: rec.StudentID, Label: label})
	}
	return out
}

// Scoreboard returns the roster ordered for the scoreboard panel.
func (r *RollCall) Scoreboard() []roster.Student {
	return r.engine.Roster().Scoreboard(r.opts.ScoreOrder)
}

// Label formats a student according to the show_id/show_name options.
func (r *RollCall) Label(s roster.Student) string {
	switch {
	case r.opts.ShowID && r.opts.ShowName:
		return s.ID + "  " + s.Name
	case r.opts.ShowID:
		return s.ID
	default:
		return s.Name
	}
}

// ReplaceRoster swaps the roster under the engine. The current student is
// dropped when it is no longer listed.
func (r *RollCall) ReplaceRoster(next *roster.Roster) {
	if next == nil {
		return
	}
	r.engine.ReplaceRoster(next)
	if _, ok := next.Get(r.current); !ok {
		r.current = ""
	}
	if r.opts.Group != "" && !slices.Contains(next.Groups(), r.opts.Group) {
		r.opts.Group = ""
	}
}

// Engine exposes the selection engine for read-only views.
func (r *RollCall) Engine() *selection.Engine { return r.engine }

func (r *RollCall) notify(n Notice) {
	if r.host != nil {
		r.host.Notify(n)
	}
}
