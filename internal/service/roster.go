package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/jask/classtools/internal/database/repository"
	"github.com/jask/classtools/internal/roster"
)

// ErrEmptyRosterFile is returned when a roster file parses but holds no
// usable student.
var ErrEmptyRosterFile = errors.New("roster file has no students")

// RosterService loads roster files. A failed load never replaces the roster
// already in use.
type RosterService struct {
	Scores *repository.ScoreRepo
	Logger *slog.Logger

	mu      sync.Mutex
	path    string
	current *roster.Roster
}

// NewRosterService reads rosters from path. scores may be nil.
func NewRosterService(path string, scores *repository.ScoreRepo, logger *slog.Logger) *RosterService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RosterService{Scores: scores, Logger: logger, path: path}
}

// Path returns the roster file in use.
func (s *RosterService) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// SetPath points the service at another file. The current roster is kept
// until the next successful Load.
func (s *RosterService) SetPath(path string) {
	s.mu.Lock()
	s.path = path
	s.mu.Unlock()
}

// Current returns the last successfully loaded roster, or nil.
func (s *RosterService) Current() *roster.Roster {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// EnsureTemplate writes the starter roster when the file does not exist yet.
// It reports whether a template was written.
func (s *RosterService) EnsureTemplate() (bool, error) {
	path := s.Path()
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat roster: %w", err)
	}
	if err := roster.WriteTemplate(path); err != nil {
		return false, err
	}
	s.Logger.Info("roster template written", "path", path)
	return true, nil
}

// Load reads the roster file and overlays persisted scores. On any failure
// the previous roster stays current and is returned alongside the error.
func (s *RosterService) Load(ctx context.Context) (*roster.Roster, []roster.Warning, error) {
	path := s.Path()
	next, warnings, err := roster.LoadFile(path)
	if err == nil && next.Len() == 0 {
		err = &roster.LoadError{Source: path, Err: ErrEmptyRosterFile}
	}
	if err == nil {
		err = s.mergeScores(ctx, next)
	}
	if err != nil {
		s.Logger.Warn("roster load failed, keeping previous roster", "path", path, "error", err)
		return s.Current(), warnings, err
	}
	for _, w := range warnings {
		s.Logger.Warn("roster row skipped", "path", path, "warning", w.String())
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	s.Logger.Info("roster loaded", "path", path, "students", next.Len(), "warnings", len(warnings))
	return next, warnings, nil
}

// mergeScores lets persisted scores override the file's score column.
func (s *RosterService) mergeScores(ctx context.Context, r *roster.Roster) error {
	if s.Scores == nil {
		return nil
	}
	scores, err := s.Scores.List(ctx)
	if err != nil {
		return fmt.Errorf("load scores: %w", err)
	}
	for _, sc := range scores {
		r.SetScore(sc.StudentID, sc.Score)
	}
	return nil
}
