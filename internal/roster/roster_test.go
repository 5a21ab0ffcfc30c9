package roster

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewNormalisesAndSkipsBadEntries(t *testing.T) {
	r, warnings := New([]Student{
		{ID: " 1 ", Name: " Ada   Lovelace ", Group: " a ", Weight: 1},
		{ID: "1", Name: "Duplicate", Weight: 1},
		{ID: "2", Name: "   ", Weight: 1},
		{ID: "3", Name: "Negative", Weight: -2},
		{Name: "No Id", Weight: 0.5},
	})
	require.Equal(t, 2, r.Len())
	require.Len(t, warnings, 3)

	ada, ok := r.Get("1")
	require.True(t, ok)
	require.Equal(t, "Ada Lovelace", ada.Name)
	require.Equal(t, "A", ada.Group)

	noID := r.At(1)
	require.Equal(t, DeriveID("No Id"), noID.ID)
	require.Equal(t, 0.5, noID.Weight)
}

// Group tags are single-valued: a comma-separated tag is one opaque group.
func TestGroupTagsAreSingleValued(t *testing.T) {
	r, _ := New([]Student{
		{ID: "1", Name: "A", Group: "x,y", Weight: 1},
		{ID: "2", Name: "B", Group: "x", Weight: 1},
	})
	require.Equal(t, []string{"X", "X,Y"}, r.Groups())
	require.Len(t, r.Filter("x"), 1)
	require.Len(t, r.Filter(""), 2)
}

func TestNormalizeIDFromSpreadsheetFloat(t *testing.T) {
	require.Equal(t, "101", normalizeID("101.0"))
	require.Equal(t, "101", normalizeID(" 101 "))
	require.Equal(t, "A-7", normalizeID("A-7"))
	require.Equal(t, "1.5", normalizeID("1.5"))
}

func TestParseCSVWithChineseHeaders(t *testing.T) {
	in := "学号,姓名,分组,成绩\n101,张三,a,3\n102,李四,B,\n,,,\n103,王五,A,x\n"
	rows, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	r, warnings := FromRows(rows)
	require.Equal(t, 3, r.Len())
	require.Len(t, warnings, 1)
	s, _ := r.Get("101")
	require.Equal(t, "张三", s.Name)
	require.Equal(t, "A", s.Group)
	require.Equal(t, 3, s.Score)
	require.Equal(t, 1.0, s.Weight)
}

func TestParseCSVRequiresNameColumn(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("id,group\n1,A\n"))
	require.Error(t, err)
}

func TestFromRowsSkipsBadWeight(t *testing.T) {
	r, warnings := FromRows([]Row{
		{Line: 2, ID: "1", Name: "Ann", Weight: "heavy"},
		{Line: 3, ID: "2", Name: "Ben", Weight: "2.5"},
	})
	require.Equal(t, 1, r.Len())
	require.Len(t, warnings, 1)
	require.Equal(t, 2, warnings[0].Row)
	require.Equal(t, 2.5, r.At(0).Weight)
}

func TestLoadFileFormats(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"class.yaml": "students:\n  - id: 1\n    name: Ann\n    group: a\n    weight: 2\n  - name: Ben\n",
		"list.yml":   "- id: 7\n  name: Cat\n",
		"class.toml": "[[student]]\nid = 1\nname = \"Ann\"\nweight = 1.5\n\n[[student]]\nid = 2\nname = \"Ben\"\n",
		"class.csv":  "id,name,group,weight\n1,Ann,A,1\n2,Ben,B,3\n",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}

	r, warnings, err := LoadFile(filepath.Join(dir, "class.yaml"))
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, 2, r.Len())
	require.Equal(t, 2.0, r.At(0).Weight)
	require.Equal(t, "A", r.At(0).Group)

	r, _, err = LoadFile(filepath.Join(dir, "list.yml"))
	require.NoError(t, err)
	require.Equal(t, "7", r.At(0).ID)

	r, _, err = LoadFile(filepath.Join(dir, "class.toml"))
	require.NoError(t, err)
	require.Equal(t, 2, r.Len())
	require.Equal(t, 1.5, r.At(0).Weight)

	r, _, err = LoadFile(filepath.Join(dir, "class.csv"))
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, r.Groups())
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	_, _, err := LoadFile(filepath.Join(dir, "missing.csv"))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	require.True(t, errors.Is(err, os.ErrNotExist))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("students: [name: :"), 0o644))
	_, _, err = LoadFile(bad)
	require.ErrorAs(t, err, &le)

	xlsx := filepath.Join(dir, "class.xlsx")
	require.NoError(t, os.WriteFile(xlsx, []byte("PK"), 0o644))
	_, _, err = LoadFile(xlsx)
	require.ErrorAs(t, err, &le)
}

func TestWriteTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "students.csv")
	require.NoError(t, WriteTemplate(path))
	require.Error(t, WriteTemplate(path))

	r, warnings, err := LoadFile(path)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, 3, r.Len())
	require.Equal(t, "张三", r.At(0).Name)
}

func TestSearch(t *testing.T) {
	r, _ := New([]Student{
		{ID: "1", Name: "Johnathan", Weight: 1},
		{ID: "2", Name: "Jon", Weight: 1},
		{ID: "3", Name: "Maria", Weight: 1},
		{ID: "jo", Name: "Zed", Weight: 1},
	})
	got := r.Search("jo", 0)
	require.Equal(t, "jo", got[0].ID)
	require.Equal(t, "2", got[1].ID)
	require.Equal(t, "1", got[2].ID)

	got = r.Search("mario", 1)
	require.Len(t, got, 1)
	require.Equal(t, "3", got[0].ID)

	require.Empty(t, r.Search("   ", 5))
}

func TestSimilarNamesWarning(t *testing.T) {
	_, warnings := New([]Student{
		{ID: "1", Name: "Katherine", Weight: 1},
		{ID: "2", Name: "Katharine", Weight: 1},
		{ID: "3", Name: "Bo", Weight: 1},
		{ID: "4", Name: "Bi", Weight: 1},
	})
	require.Len(t, warnings, 1)
}

func TestScoreboard(t *testing.T) {
	r, _ := New([]Student{
		{ID: "10", Name: "A", Weight: 1, Score: 1},
		{ID: "9", Name: "B", Weight: 1, Score: 5},
		{ID: "x", Name: "C", Weight: 1, Score: 5},
	})
	rank := r.Scoreboard(OrderRank)
	require.Equal(t, []string{"9", "x", "10"}, ids(rank))
	byID := r.Scoreboard(OrderID)
	require.Equal(t, []string{"9", "10", "x"}, ids(byID))

	score, ok := r.AddScore("10", 2)
	require.True(t, ok)
	require.Equal(t, 3, score)
}

func TestCloneIsIndependent(t *testing.T) {
	r, _ := New([]Student{{ID: "1", Name: "A", Weight: 1}})
	c := r.Clone()
	_, _ = c.SetLastCalled("1", 9)
	require.Equal(t, uint64(0), r.At(0).LastCalled)
	require.Equal(t, uint64(9), c.At(0).LastCalled)
}

func ids(students []Student) []string {
	out := make([]string, 0, len(students))
	for _, s := range students {
		out = append(out, s.ID)
	}
	return out
}
