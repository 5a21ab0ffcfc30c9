// Package selection implements the weighted, no-repeat roll-call draw.
//
// The engine owns the session's call history. Every draw appends a CallRecord
// with a strictly increasing ordinal and stamps the student's LastCalled with
// that ordinal. The avoid-recent window excludes the n most recently called
// distinct students; when the window would leave nobody eligible it is relaxed
// to the largest size that still leaves a candidate.
package selection

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/jask/classtools/internal/roster"
)

var (
	ErrEmptyRoster         = errors.New("roster is empty")
	ErrNoEligibleCandidate = errors.New("no student matches the filter")
	ErrNothingToUndo       = errors.New("nothing to undo")
)

// CallRecord is one entry of the session's call history.
type CallRecord struct {
	StudentID string
	Ordinal   uint64
}

// Engine is not safe for concurrent use; it lives on the UI loop.
type Engine struct {
	roster  *roster.Roster
	rng     *rand.Rand
	seed    uint64
	records []CallRecord
	// previous LastCalled of the student named by each record, for undo
	prev []uint64
	seq  uint64
}

// New creates an engine over r. A zero seed picks one from the wall clock.
func New(r *roster.Roster, seed uint64) *Engine {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	if r == nil {
		r, _ = roster.New(nil)
	}
	return &Engine{
		roster: r,
		seed:   seed,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Seed returns the seed the engine was created with.
func (e *Engine) Seed() uint64 { return e.seed }

// Roster returns the engine's roster. Callers must not mutate LastCalled
// through it.
func (e *Engine) Roster() *roster.Roster { return e.roster }

// History returns a copy of the call history, oldest first.
func (e *Engine) History() []CallRecord { return slices.Clone(e.records) }

// Last returns the most recent record.
func (e *Engine) Last() (CallRecord, bool) {
	if len(e.records) == 0 {
		return CallRecord{}, false
	}
	return e.records[len(e.records)-1], true
}

// Draw picks the next student matching filter, avoiding the avoidRecentN most
// recently called students where possible.
func (e *Engine) Draw(filter string, avoidRecentN int) (roster.Student, CallRecord, error) {
	eligible, err := e.eligible(filter, avoidRecentN)
	if err != nil {
		return roster.Student{}, CallRecord{}, err
	}
	picked := eligible[e.pick(eligible)]

	rec := e.record(picked.ID)
	picked.LastCalled = rec.Ordinal
	return picked, rec, nil
}

// Call records a call for the student with id, bypassing the draw. The call
// counts towards the avoid-recent window like any other.
func (e *Engine) Call(id string) (roster.Student, CallRecord, error) {
	if e.roster.Len() == 0 {
		return roster.Student{}, CallRecord{}, ErrEmptyRoster
	}
	s, ok := e.roster.Get(id)
	if !ok {
		return roster.Student{}, CallRecord{}, fmt.Errorf("%w: no student %q", ErrNoEligibleCandidate, id)
	}
	rec := e.record(id)
	s.LastCalled = rec.Ordinal
	return s, rec, nil
}

func (e *Engine) record(id string) CallRecord {
	e.seq++
	rec := CallRecord{StudentID: id, Ordinal: e.seq}
	prev, _ := e.roster.SetLastCalled(id, rec.Ordinal)
	e.records = append(e.records, rec)
	e.prev = append(e.prev, prev)
	return rec
}

// Eligible returns the candidates the next Draw would choose from, in roster
// order. It returns nil when Draw would fail.
func (e *Engine) Eligible(filter string, avoidRecentN int) []roster.Student {
	out, err := e.eligible(filter, avoidRecentN)
	if err != nil {
		return nil
	}
	return out
}

// EffectiveWindow reports the avoid-recent window Draw would actually apply
// after relaxation.
func (e *Engine) EffectiveWindow(filter string, avoidRecentN int) int {
	matching := e.roster.Filter(filter)
	if len(matching) == 0 {
		return 0
	}
	_, n := e.relax(matching, avoidRecentN)
	return n
}

func (e *Engine) eligible(filter string, avoidRecentN int) ([]roster.Student, error) {
	if e.roster.Len() == 0 {
		return nil, ErrEmptyRoster
	}
	matching := e.roster.Filter(filter)
	if len(matching) == 0 {
		return nil, fmt.Errorf("%w %q", ErrNoEligibleCandidate, filter)
	}
	out, _ := e.relax(matching, avoidRecentN)
	return out, nil
}

// relax applies the largest window <= n that leaves at least one candidate.
func (e *Engine) relax(matching []roster.Student, n int) ([]roster.Student, int) {
	recent := e.recentIDs(max(n, 0))
	for w := len(recent); w > 0; w-- {
		out := without(matching, recent[:w])
		if len(out) > 0 {
			return out, w
		}
	}
	return matching, 0
}

// recentIDs returns up to n distinct student ids, most recent first.
func (e *Engine) recentIDs(n int) []string {
	if n == 0 {
		return nil
	}
	out := make([]string, 0, n)
	for i := len(e.records) - 1; i >= 0 && len(out) < n; i-- {
		id := e.records[i].StudentID
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func without(students []roster.Student, ids []string) []roster.Student {
	out := make([]roster.Student, 0, len(students))
	for _, s := range students {
		if !slices.Contains(ids, s.ID) {
			out = append(out, s)
		}
	}
	return out
}

// pick samples an index proportional to weight. A point falling exactly on a
// boundary goes to the later student, so ties resolve in roster order. Zero
// total weight falls back to a uniform pick.
func (e *Engine) pick(candidates []roster.Student) int {
	var total float64
	for _, s := range candidates {
		total += s.Weight
	}
	if total <= 0 {
		return e.rng.IntN(len(candidates))
	}
	x := e.rng.Float64() * total
	var acc float64
	for i, s := range candidates {
		acc += s.Weight
		if x < acc {
			return i
		}
	}
	// rounding left x at the very top; take the last weighted candidate
	for i := len(candidates) - 1; i >= 0; i-- {
		if candidates[i].Weight > 0 {
			return i
		}
	}
	return len(candidates) - 1
}

// UndoLast removes the most recent record and restores the student's previous
// LastCalled. The ordinal counter steps back too, so a redraw reuses it.
func (e *Engine) UndoLast() (CallRecord, error) {
	if len(e.records) == 0 {
		return CallRecord{}, ErrNothingToUndo
	}
	last := len(e.records) - 1
	rec := e.records[last]
	e.roster.SetLastCalled(rec.StudentID, e.prev[last])
	e.records = e.records[:last]
	e.prev = e.prev[:last]
	e.seq = rec.Ordinal - 1
	return rec, nil
}

// ResetSession clears the call history. Roster weights are untouched and
// ordinals keep increasing.
func (e *Engine) ResetSession() {
	e.records = nil
	e.prev = nil
	e.roster.ClearLastCalled()
}

// ReplaceRoster swaps in r and re-stamps LastCalled from the retained history.
// Records for students no longer on the roster stay in the history.
func (e *Engine) ReplaceRoster(r *roster.Roster) {
	if r == nil {
		return
	}
	e.roster = r
	e.restamp()
}

// Restore replaces the history with records, typically read back from the
// journal at start-up. Ordinals must be strictly increasing.
func (e *Engine) Restore(records []CallRecord) error {
	for i := 1; i < len(records); i++ {
		if records[i].Ordinal <= records[i-1].Ordinal {
			return fmt.Errorf("restore history: ordinal %d after %d", records[i].Ordinal, records[i-1].Ordinal)
		}
	}
	e.records = slices.Clone(records)
	if n := len(records); n > 0 {
		e.seq = max(e.seq, records[n-1].Ordinal)
	}
	e.restamp()
	return nil
}

// SetNextOrdinal makes the next draw use at least ordinal+1. Used after a
// reset so a persisted session never reuses an ordinal.
func (e *Engine) SetNextOrdinal(ordinal uint64) {
	if ordinal > e.seq {
		e.seq = ordinal
	}
}

func (e *Engine) restamp() {
	e.roster.ClearLastCalled()
	e.prev = make([]uint64, len(e.records))
	last := make(map[string]uint64)
	for i, rec := range e.records {
		e.prev[i] = last[rec.StudentID]
		last[rec.StudentID] = rec.Ordinal
		e.roster.SetLastCalled(rec.StudentID, rec.Ordinal)
	}
}
