package roster

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// LoadError means the source could not be read as a roster at all. Callers
// keep their previous roster when they see it.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load roster %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Row is one untyped source row before validation.
type Row struct {
	Line   int
	ID     string
	Name   string
	Group  string
	Weight string
	Score  string
}

// column aliases, including the Chinese headers of the spreadsheet template
var columnAliases = map[string]string{
	"id":         "id",
	"student_id": "id",
	"学号":         "id",
	"name":       "name",
	"姓名":         "name",
	"group":      "group",
	"分组":         "group",
	"weight":     "weight",
	"权重":         "weight",
	"score":      "score",
	"成绩":         "score",
}

// FromRows validates raw rows. Weight defaults to 1 when blank.
func FromRows(rows []Row) (*Roster, []Warning) {
	r := &Roster{index: make(map[string]int, len(rows))}
	var warnings []Warning
	for _, row := range rows {
		s := Student{ID: row.ID, Name: row.Name, Group: row.Group, Weight: 1}
		if w := strings.TrimSpace(row.Weight); w != "" {
			f, err := strconv.ParseFloat(w, 64)
			if err != nil {
				warnings = append(warnings, Warning{Row: row.Line, Reason: fmt.Sprintf("weight %q is not a number", w)})
				continue
			}
			s.Weight = f
		}
		if sc := strings.TrimSpace(row.Score); sc != "" {
			f, err := strconv.ParseFloat(sc, 64)
			if err != nil {
				warnings = append(warnings, Warning{Row: row.Line, Reason: fmt.Sprintf("score %q is not a number; using 0", sc)})
			} else {
				s.Score = int(math.Round(f))
			}
		}
		if w, ok := r.add(s, row.Line); !ok {
			warnings = append(warnings, w)
		}
	}
	warnings = append(warnings, r.similarNames()...)
	return r, warnings
}

// LoadFile reads a roster from a .csv, .yaml/.yml or .toml file.
func LoadFile(path string) (*Roster, []Warning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &LoadError{Source: path, Err: err}
	}
	var rows []Row
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".txt":
		rows, err = ParseCSV(bytes.NewReader(data))
	case ".yaml", ".yml":
		rows, err = ParseYAML(data)
	case ".toml":
		rows, err = ParseTOML(data)
	default:
		err = fmt.Errorf("unsupported roster format %q", ext)
	}
	if err != nil {
		return nil, nil, &LoadError{Source: path, Err: err}
	}
	r, warnings := FromRows(rows)
	return r, warnings, nil
}

// ParseCSV reads a headed CSV. A name column is required; unreadable lines are
// returned as rows with no name so they surface as warnings.
func ParseCSV(in io.Reader) ([]Row, error) {
	csvr := csv.NewReader(bufio.NewReader(in))
	csvr.TrimLeadingSpace = true
	csvr.FieldsPerRecord = -1

	header, err := csvr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		h = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
		if field, ok := columnAliases[strings.ToLower(h)]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}
	if _, ok := cols["name"]; !ok {
		return nil, errors.New("header has no name column")
	}
	get := func(rec []string, field string) string {
		i, ok := cols[field]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var rows []Row
	line := 1
	for {
		line++
		rec, err := csvr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			rows = append(rows, Row{Line: line})
			continue
		}
		if isBlank(rec) {
			continue
		}
		rows = append(rows, Row{
			Line:   line,
			ID:     get(rec, "id"),
			Name:   get(rec, "name"),
			Group:  get(rec, "group"),
			Weight: get(rec, "weight"),
			Score:  get(rec, "score"),
		})
	}
	return rows, nil
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// ParseYAML accepts either a top-level list of students or a mapping with a
// "students" list.
func ParseYAML(data []byte) ([]Row, error) {
	var doc struct {
		Students []map[string]any `yaml:"students"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		var list []map[string]any
		if listErr := yaml.Unmarshal(data, &list); listErr != nil {
			return nil, err
		}
		doc.Students = list
	}
	return rowsFromMaps(doc.Students), nil
}

// ParseTOML reads [[student]] tables.
func ParseTOML(data []byte) ([]Row, error) {
	var doc struct {
		Student []map[string]any `toml:"student"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return rowsFromMaps(doc.Student), nil
}

func rowsFromMaps(items []map[string]any) []Row {
	rows := make([]Row, 0, len(items))
	for i, item := range items {
		row := Row{Line: i + 1}
		for k, v := range item {
			field, ok := columnAliases[strings.ToLower(strings.TrimSpace(k))]
			if !ok || v == nil {
				continue
			}
			s := fmt.Sprint(v)
			switch field {
			case "id":
				row.ID = s
			case "name":
				row.Name = s
			case "group":
				row.Group = s
			case "weight":
				row.Weight = s
			case "score":
				row.Score = s
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteTemplate creates a starter roster at path. It refuses to overwrite.
func WriteTemplate(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir roster dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create roster template: %w", err)
	}
	w := csv.NewWriter(f)
	_ = w.WriteAll([][]string{
		{"id", "name", "group", "weight", "score"},
		{"101", "张三", "A", "1", "0"},
		{"102", "李四", "B", "1", "0"},
		{"103", "王五", "A", "1", "0"},
	})
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write roster template: %w", err)
	}
	return f.Close()
}
