package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/jask/classtools/internal/database/repository"
)

// EnsureSession returns the open roll-call session, starting one when none
// exists. It is idempotent and safe to run on every startup.
func EnsureSession(ctx context.Context, db *sql.DB) (repository.Session, error) {
	sessions := repository.NewSessionRepo(db)
	current, err := sessions.Current(ctx)
	if err != nil {
		return repository.Session{}, fmt.Errorf("current session: %w", err)
	}
	if current != nil {
		return *current, nil
	}
	return StartSession(ctx, db)
}

// StartSession opens a new session with a fresh id.
func StartSession(ctx context.Context, db *sql.DB) (repository.Session, error) {
	s := repository.Session{ID: uuid.NewString(), StartedAt: Now()}
	if err := repository.NewSessionRepo(db).Start(ctx, s); err != nil {
		return repository.Session{}, fmt.Errorf("start session: %w", err)
	}
	return s, nil
}
