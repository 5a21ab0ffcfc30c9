// Package roster holds the in-memory class list used by roll call.
//
// A Roster is an ordered list of students keyed by a unique id. Group tags are
// single-valued: a student belongs to at most one group.
package roster

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
)

// Student is one roster entry. LastCalled is the ordinal of the latest call
// record for the student, 0 when the student has not been called.
type Student struct {
	ID         string
	Name       string
	Group      string
	Weight     float64
	LastCalled uint64
	Score      int
}

// Warning describes a skipped or suspicious source row.
type Warning struct {
	Row    int
	Reason string
}

func (w Warning) String() string {
	if w.Row <= 0 {
		return w.Reason
	}
	return fmt.Sprintf("row %d: %s", w.Row, w.Reason)
}

// Roster is an ordered set of students with unique ids.
type Roster struct {
	students []Student
	index    map[string]int
}

// New builds a roster from already-typed students. Names and groups are
// normalised, missing ids are derived from the name, and entries with an
// empty name, a duplicate id or an invalid weight are skipped with a warning.
func New(students []Student) (*Roster, []Warning) {
	r := &Roster{index: make(map[string]int, len(students))}
	var warnings []Warning
	for i, s := range students {
		if w, ok := r.add(s, i+1); !ok {
			warnings = append(warnings, w)
		}
	}
	warnings = append(warnings, r.similarNames()...)
	return r, warnings
}

func (r *Roster) add(s Student, row int) (Warning, bool) {
	s.Name = normalizeName(s.Name)
	s.Group = normalizeGroup(s.Group)
	s.ID = normalizeID(s.ID)
	if s.Name == "" {
		return Warning{Row: row, Reason: "missing name"}, false
	}
	if s.ID == "" {
		s.ID = DeriveID(s.Name)
	}
	if math.IsNaN(s.Weight) || math.IsInf(s.Weight, 0) || s.Weight < 0 {
		return Warning{Row: row, Reason: fmt.Sprintf("invalid weight %v for %s", s.Weight, s.Name)}, false
	}
	if _, dup := r.index[s.ID]; dup {
		return Warning{Row: row, Reason: fmt.Sprintf("duplicate id %s (%s)", s.ID, s.Name)}, false
	}
	r.index[s.ID] = len(r.students)
	r.students = append(r.students, s)
	return Warning{}, true
}

// similarNames flags long names one edit apart, which are usually typos of
// the same student entered twice.
func (r *Roster) similarNames() []Warning {
	var out []Warning
	for i := range r.students {
		a := strings.ToLower(r.students[i].Name)
		if utf8.RuneCountInString(a) < 6 {
			continue
		}
		for j := i + 1; j < len(r.students); j++ {
			b := strings.ToLower(r.students[j].Name)
			if utf8.RuneCountInString(b) < 6 {
				continue
			}
			if levenshtein.ComputeDistance(a, b) <= 1 {
				out = append(out, Warning{Reason: fmt.Sprintf("names %q and %q look alike", r.students[i].Name, r.students[j].Name)})
			}
		}
	}
	return out
}

// DeriveID returns a stable id for a student listed without one.
func DeriveID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("student:"+normalizeName(name))).String()
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeGroup(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

// normalizeID trims whitespace and turns spreadsheet floats like "101.0" into "101".
func normalizeID(s string) string {
	s = strings.Join(strings.Fields(s), "")
	if f, err := strconv.ParseFloat(s, 64); err == nil && strings.ContainsAny(s, ".eE") {
		if f == math.Trunc(f) && math.Abs(f) < 1e15 {
			return strconv.FormatInt(int64(f), 10)
		}
	}
	return s
}

// Len returns the number of students.
func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.students)
}

// Students returns a copy of the students in roster order.
func (r *Roster) Students() []Student {
	if r == nil {
		return nil
	}
	return slices.Clone(r.students)
}

// At returns the student at position i in roster order.
func (r *Roster) At(i int) Student { return r.students[i] }

// Get looks a student up by id.
func (r *Roster) Get(id string) (Student, bool) {
	if r == nil {
		return Student{}, false
	}
	i, ok := r.index[id]
	if !ok {
		return Student{}, false
	}
	return r.students[i], true
}

// Index returns the roster position of id, or -1.
func (r *Roster) Index(id string) int {
	if r == nil {
		return -1
	}
	if i, ok := r.index[id]; ok {
		return i
	}
	return -1
}

// Groups returns the distinct non-empty group tags in sorted order.
func (r *Roster) Groups() []string {
	if r == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, s := range r.students {
		if s.Group != "" && !seen[s.Group] {
			seen[s.Group] = true
			out = append(out, s.Group)
		}
	}
	slices.Sort(out)
	return out
}

// Matches reports whether s is selected by group filter. An empty filter
// selects everyone.
func Matches(s Student, group string) bool {
	group = normalizeGroup(group)
	return group == "" || s.Group == group
}

// Filter returns the students in group, in roster order.
func (r *Roster) Filter(group string) []Student {
	if r == nil {
		return nil
	}
	out := make([]Student, 0, len(r.students))
	for _, s := range r.students {
		if Matches(s, group) {
			out = append(out, s)
		}
	}
	return out
}

// Clone returns a deep copy.
func (r *Roster) Clone() *Roster {
	if r == nil {
		return nil
	}
	out := &Roster{students: slices.Clone(r.students), index: make(map[string]int, len(r.index))}
	for k, v := range r.index {
		out.index[k] = v
	}
	return out
}

// SetLastCalled overwrites LastCalled for id and returns the previous value.
func (r *Roster) SetLastCalled(id string, ordinal uint64) (uint64, bool) {
	i, ok := r.index[id]
	if !ok {
		return 0, false
	}
	prev := r.students[i].LastCalled
	r.students[i].LastCalled = ordinal
	return prev, true
}

// ClearLastCalled resets LastCalled for every student.
func (r *Roster) ClearLastCalled() {
	for i := range r.students {
		r.students[i].LastCalled = 0
	}
}

// AddScore adds delta to the student's score and returns the new score.
func (r *Roster) AddScore(id string, delta int) (int, bool) {
	i, ok := r.index[id]
	if !ok {
		return 0, false
	}
	r.students[i].Score += delta
	return r.students[i].Score, true
}

// SetScore overwrites the student's score.
func (r *Roster) SetScore(id string, score int) bool {
	i, ok := r.index[id]
	if ok {
		r.students[i].Score = score
	}
	return ok
}

// Scoreboard orderings.
const (
	OrderRank = "rank"
	OrderID   = "id"
)

// Scoreboard returns the students sorted by score (OrderRank) or by id (OrderID).
func (r *Roster) Scoreboard(order string) []Student {
	out := r.Students()
	switch order {
	case OrderID:
		slices.SortStableFunc(out, func(a, b Student) int { return CompareIDs(a.ID, b.ID) })
	default:
		slices.SortStableFunc(out, func(a, b Student) int {
			if c := cmp.Compare(b.Score, a.Score); c != 0 {
				return c
			}
			return CompareIDs(a.ID, b.ID)
		})
	}
	return out
}

// CompareIDs orders numeric ids numerically and everything else lexically,
// numeric ids first.
func CompareIDs(a, b string) int {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		return cmp.Compare(na, nb)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return cmp.Compare(a, b)
}

// Search finds students by id or approximate name. Exact id matches rank
// first, then substring matches, then names within a small edit distance.
func (r *Roster) Search(query string, limit int) []Student {
	q := strings.ToLower(normalizeName(query))
	if r == nil || q == "" {
		return nil
	}
	type hit struct {
		pos, rank, dist int
	}
	maxDist := max(1, utf8.RuneCountInString(q)/3)
	var hits []hit
	for i, s := range r.students {
		name := strings.ToLower(s.Name)
		switch {
		case strings.EqualFold(s.ID, q):
			hits = append(hits, hit{pos: i, rank: 0})
		case strings.Contains(name, q):
			hits = append(hits, hit{pos: i, rank: 1, dist: utf8.RuneCountInString(name) - utf8.RuneCountInString(q)})
		default:
			if d := levenshtein.ComputeDistance(q, name); d <= maxDist {
				hits = append(hits, hit{pos: i, rank: 2, dist: d})
			}
		}
	}
	slices.SortStableFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(a.rank, b.rank); c != 0 {
			return c
		}
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		return cmp.Compare(a.pos, b.pos)
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]Student, 0, len(hits))
	for _, h := range hits {
		out = append(out, r.students[h.pos])
	}
	return out
}
