package repository

import "time"

// Session is one roll-call session. EndedAt is nil while the session is open.
type Session struct {
	ID        string
	StartedAt time.Time
	EndedAt   *time.Time
}

// Call is one persisted call record.
type Call struct {
	SessionID string
	Ordinal   uint64
	StudentID string
	CalledAt  time.Time
}

// Score is a student's accumulated points.
type Score struct {
	StudentID string
	Score     int
	UpdatedAt time.Time
}
