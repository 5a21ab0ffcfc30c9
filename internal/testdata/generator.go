package testdata

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"

	"github.com/jask/classtools/internal/database"
	"github.com/jask/classtools/internal/database/repository"
	"github.com/jask/classtools/internal/roster"
)

var (
	familyNames = []string{"张", "李", "王", "赵", "陈", "刘", "杨", "黄", "周", "吴"}
	givenNames  = []string{"伟", "芳", "娜", "敏", "静", "磊", "洋", "艳", "勇", "军", "杰", "涛"}
	groups      = []string{"A", "B", "C", "D"}
)

// Students returns n deterministic students with ids 1..n. Groups cycle
// through A-D and weights vary between 0.5 and 3.
func Students(n int, seed uint64) []roster.Student {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]roster.Student, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, roster.Student{
			ID:     strconv.Itoa(i + 1),
			Name:   familyNames[rng.IntN(len(familyNames))] + givenNames[rng.IntN(len(givenNames))] + strconv.Itoa(i+1),
			Group:  groups[i%len(groups)],
			Weight: float64(1+rng.IntN(6)) / 2,
		})
	}
	return out
}

// Roster builds a roster from Students.
func Roster(n int, seed uint64) *roster.Roster {
	r, _ := roster.New(Students(n, seed))
	return r
}

// WriteCSV writes a headed roster CSV with n generated students.
func WriteCSV(path string, n int, seed uint64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	_ = w.Write([]string{"id", "name", "group", "weight"})
	for _, s := range Students(n, seed) {
		_ = w.Write([]string{s.ID, s.Name, s.Group, strconv.FormatFloat(s.Weight, 'f', -1, 64)})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Seed opens a session and records calls for the given student ids, with
// ordinals starting at 1.
func Seed(ctx context.Context, db *sql.DB, studentIDs ...string) (repository.Session, error) {
	s, err := database.EnsureSession(ctx, db)
	if err != nil {
		return repository.Session{}, err
	}
	calls := repository.NewCallRepo(db)
	now := database.Now()
	for i, id := range studentIDs {
		c := repository.Call{SessionID: s.ID, Ordinal: uint64(i + 1), StudentID: id, CalledAt: now}
		if err := calls.Append(ctx, c); err != nil {
			return repository.Session{}, fmt.Errorf("seed call %d: %w", i+1, err)
		}
	}
	return s, nil
}
