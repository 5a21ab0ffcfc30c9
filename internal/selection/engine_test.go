package selection

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/classtools/internal/roster"
	"github.com/jask/classtools/internal/testdata"
)

func threeStudents(t *testing.T) *roster.Roster {
	t.Helper()
	r, warnings := roster.New([]roster.Student{
		{ID: "1", Name: "张三", Weight: 1},
		{ID: "2", Name: "李四", Weight: 1},
		{ID: "3", Name: "王五", Weight: 1},
	})
	require.Empty(t, warnings)
	return r
}

func TestDrawScenarioAvoidsMostRecent(t *testing.T) {
	e := New(threeStudents(t), 7)

	first, rec1, err := e.Draw("", 1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), rec1.Ordinal)
	require.Equal(t, uint64(1), first.LastCalled)

	ids := func(students []roster.Student) []string {
		var out []string
		for _, s := range students {
			out = append(out, s.ID)
		}
		return out
	}
	require.NotContains(t, ids(e.Eligible("", 1)), first.ID)

	second, rec2, err := e.Draw("", 1)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, uint64(2), rec2.Ordinal)

	// second is now the most recent; first is eligible again already, and
	// undoing the second draw must make second eligible again too
	require.NotContains(t, ids(e.Eligible("", 1)), second.ID)
	undone, err := e.UndoLast()
	require.NoError(t, err)
	require.Equal(t, rec2, undone)
	require.Contains(t, ids(e.Eligible("", 1)), second.ID)
	require.NotContains(t, ids(e.Eligible("", 1)), first.ID)

	// a fresh engine with the same seed repeats the first pick
	again, _, err := New(threeStudents(t), 7).Draw("", 1)
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)
}

func TestDrawErrors(t *testing.T) {
	empty, _ := roster.New(nil)
	_, _, err := New(empty, 1).Draw("", 0)
	require.ErrorIs(t, err, ErrEmptyRoster)

	r, _ := roster.New([]roster.Student{{ID: "1", Name: "A", Group: "x", Weight: 1}})
	e := New(r, 1)
	_, _, err = e.Draw("y", 0)
	require.ErrorIs(t, err, ErrNoEligibleCandidate)
	require.Empty(t, e.History())

	_, err = e.UndoLast()
	require.ErrorIs(t, err, ErrNothingToUndo)
}

func TestDrawIsReproducible(t *testing.T) {
	r := testdata.Roster(30, 42)
	run := func() []CallRecord {
		e := New(r.Clone(), 99)
		for i := 0; i < 200; i++ {
			group := ""
			if i%3 == 0 {
				group = "A"
			}
			_, _, err := e.Draw(group, i%4)
			require.NoError(t, err)
		}
		return e.History()
	}
	require.Equal(t, run(), run())
}

func TestDrawNeverLeavesEligibleSet(t *testing.T) {
	r := testdata.Roster(12, 3)
	e := New(r, 5)
	groups := append([]string{""}, r.Groups()...)
	for i := 0; i < 500; i++ {
		group := groups[i%len(groups)]
		n := i % 6
		eligible := e.Eligible(group, n)
		require.NotEmpty(t, eligible)

		picked, _, err := e.Draw(group, n)
		require.NoError(t, err)
		require.True(t, roster.Matches(picked, group))
		require.True(t, slices.ContainsFunc(eligible, func(s roster.Student) bool { return s.ID == picked.ID }),
			"draw %d picked %s outside eligible set", i, picked.ID)
	}
}

func TestWindowRelaxesInsteadOfStarving(t *testing.T) {
	r, _ := roster.New([]roster.Student{
		{ID: "1", Name: "A", Group: "x", Weight: 1},
		{ID: "2", Name: "B", Group: "x", Weight: 1},
		{ID: "3", Name: "C", Group: "y", Weight: 1},
	})
	e := New(r, 11)
	require.NoError(t, e.Restore([]CallRecord{{StudentID: "1", Ordinal: 1}, {StudentID: "2", Ordinal: 2}}))

	// both x students are recent; a window of 5 relaxes to 1 and leaves "1"
	require.Equal(t, 1, e.EffectiveWindow("x", 5))
	eligible := e.Eligible("x", 5)
	require.Len(t, eligible, 1)
	require.Equal(t, "1", eligible[0].ID)

	// a single matching student is always drawable
	picked, _, err := e.Draw("y", 3)
	require.NoError(t, err)
	require.Equal(t, "3", picked.ID)
	picked, _, err = e.Draw("y", 3)
	require.NoError(t, err)
	require.Equal(t, "3", picked.ID)
}

func TestUndoRoundTrip(t *testing.T) {
	r := testdata.Roster(8, 9)
	e := New(r, 21)
	for i := 0; i < 20; i++ {
		_, _, err := e.Draw("", 2)
		require.NoError(t, err)
	}
	for i := 0; i < 10; i++ {
		beforeStudents := e.Roster().Students()
		beforeHistory := e.History()

		_, _, err := e.Draw("", 2)
		require.NoError(t, err)
		_, err = e.UndoLast()
		require.NoError(t, err)

		require.Equal(t, beforeStudents, e.Roster().Students())
		require.Equal(t, beforeHistory, e.History())

		_, _, err = e.Draw("", 2)
		require.NoError(t, err)
	}
}

func TestOrdinalsStrictlyIncrease(t *testing.T) {
	e := New(threeStudents(t), 3)
	for i := 0; i < 5; i++ {
		_, _, err := e.Draw("", 0)
		require.NoError(t, err)
	}
	_, err := e.UndoLast()
	require.NoError(t, err)
	_, rec, err := e.Draw("", 0)
	require.NoError(t, err)
	require.Equal(t, uint64(5), rec.Ordinal)

	e.ResetSession()
	require.Empty(t, e.History())
	for _, s := range e.Roster().Students() {
		require.Zero(t, s.LastCalled)
	}
	_, rec, err = e.Draw("", 0)
	require.NoError(t, err)
	require.Equal(t, uint64(6), rec.Ordinal)

	history := e.History()
	for i := 1; i < len(history); i++ {
		require.Greater(t, history[i].Ordinal, history[i-1].Ordinal)
	}
}

func TestWeightedFairness(t *testing.T) {
	r, _ := roster.New([]roster.Student{
		{ID: "a", Name: "A", Weight: 1},
		{ID: "b", Name: "B", Weight: 2},
		{ID: "c", Name: "C", Weight: 3},
		{ID: "d", Name: "D", Weight: 4},
		{ID: "z", Name: "Z", Weight: 0},
	})
	e := New(r, 1234)
	const n = 40000
	counts := map[string]int{}
	for i := 0; i < n; i++ {
		s, _, err := e.Draw("", 0)
		require.NoError(t, err)
		counts[s.ID]++
	}
	require.Zero(t, counts["z"])
	for id, w := range map[string]float64{"a": 1, "b": 2, "c": 3, "d": 4} {
		got := float64(counts[id]) / n
		want := w / 10
		require.LessOrEqual(t, math.Abs(got-want), 0.015, fmt.Sprintf("student %s: got %.3f want %.3f", id, got, want))
	}
}

func TestZeroTotalWeightFallsBackToUniform(t *testing.T) {
	r, _ := roster.New([]roster.Student{
		{ID: "1", Name: "A", Weight: 0},
		{ID: "2", Name: "B", Weight: 0},
	})
	e := New(r, 8)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		s, _, err := e.Draw("", 0)
		require.NoError(t, err)
		seen[s.ID] = true
	}
	require.Len(t, seen, 2)
}

func TestReplaceRosterKeepsHistory(t *testing.T) {
	e := New(threeStudents(t), 4)
	s, rec, err := e.Draw("", 1)
	require.NoError(t, err)

	next, _ := roster.New([]roster.Student{
		{ID: s.ID, Name: "renamed", Weight: 1},
		{ID: "9", Name: "new", Weight: 1},
	})
	e.ReplaceRoster(next)
	got, ok := e.Roster().Get(s.ID)
	require.True(t, ok)
	require.Equal(t, rec.Ordinal, got.LastCalled)
	require.Equal(t, []CallRecord{rec}, e.History())

	picked, _, err := e.Draw("", 1)
	require.NoError(t, err)
	require.Equal(t, "9", picked.ID)

	_, err = e.UndoLast()
	require.NoError(t, err)
	_, err = e.UndoLast()
	require.NoError(t, err)
	got, _ = e.Roster().Get(s.ID)
	require.Zero(t, got.LastCalled)
}

func TestRestoreRejectsOutOfOrderHistory(t *testing.T) {
	e := New(threeStudents(t), 4)
	err := e.Restore([]CallRecord{{StudentID: "1", Ordinal: 3}, {StudentID: "2", Ordinal: 3}})
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrEmptyRoster))

	require.NoError(t, e.Restore([]CallRecord{{StudentID: "1", Ordinal: 3}, {StudentID: "1", Ordinal: 5}}))
	_, rec, err := e.Draw("", 1)
	require.NoError(t, err)
	require.Equal(t, uint64(6), rec.Ordinal)
	require.NotEqual(t, "1", rec.StudentID)

	undone, err := e.UndoLast()
	require.NoError(t, err)
	require.Equal(t, rec, undone)
	undone, err = e.UndoLast()
	require.NoError(t, err)
	require.Equal(t, uint64(5), undone.Ordinal)
	got, _ := e.Roster().Get("1")
	require.Equal(t, uint64(3), got.LastCalled)
}

func TestCallSpecificStudent(t *testing.T) {
	e := New(threeStudents(t), 2)
	s, rec, err := e.Call("2")
	require.NoError(t, err)
	require.Equal(t, "李四", s.Name)
	require.Equal(t, uint64(1), rec.Ordinal)

	for _, s := range e.Eligible("", 1) {
		require.NotEqual(t, "2", s.ID)
	}
	_, _, err = e.Call("404")
	require.ErrorIs(t, err, ErrNoEligibleCandidate)
	require.Len(t, e.History(), 1)
}
