package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/jask/classtools/internal/database"
	"github.com/jask/classtools/internal/database/repository"
	"github.com/jask/classtools/internal/selection"
	"github.com/jask/classtools/internal/tools"
)

var _ tools.RollCallListener = (*Journal)(nil)

// Restored is what the journal found on disk at open.
type Restored struct {
	Session    repository.Session
	Records    []selection.CallRecord
	MaxOrdinal uint64
	Scores     map[string]int
}

type opKind int

const (
	opAppend opKind = iota
	opUndo
	opReset
	opScore
	opFlush
)

type op struct {
	kind    opKind
	record  selection.CallRecord
	student string
	score   int
	done    chan struct{}
}

// Journal persists roll-call mutations. Callers on the UI loop enqueue and
// return immediately; a single writer goroutine applies the ops in order.
// Write failures are logged and reported on Errors, never returned.
type Journal struct {
	db       *sql.DB
	calls    *repository.CallRepo
	sessions *repository.SessionRepo
	scores   *repository.ScoreRepo
	logger   *slog.Logger

	mu      sync.Mutex
	queue   []op
	session repository.Session
	closed  bool
	started bool

	wake    chan struct{}
	errs    chan error
	stopped chan struct{}
}

// OpenJournal attaches to the current session, starting one if needed, and
// reads back its history and every persisted score.
func OpenJournal(ctx context.Context, db *sql.DB, logger *slog.Logger) (*Journal, Restored, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	j := &Journal{
		db:       db,
		calls:    repository.NewCallRepo(db),
		sessions: repository.NewSessionRepo(db),
		scores:   repository.NewScoreRepo(db),
		logger:   logger,
		wake:     make(chan struct{}, 1),
		errs:     make(chan error, 8),
		stopped:  make(chan struct{}),
	}
	session, err := database.EnsureSession(ctx, db)
	if err != nil {
		return nil, Restored{}, err
	}
	j.session = session

	calls, err := j.calls.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, Restored{}, fmt.Errorf("list calls: %w", err)
	}
	maxOrdinal, err := j.calls.MaxOrdinal(ctx)
	if err != nil {
		return nil, Restored{}, fmt.Errorf("max ordinal: %w", err)
	}
	scores, err := j.scores.List(ctx)
	if err != nil {
		return nil, Restored{}, fmt.Errorf("list scores: %w", err)
	}

	res := Restored{Session: session, MaxOrdinal: maxOrdinal, Scores: make(map[string]int, len(scores))}
	for _, c := range calls {
		res.Records = append(res.Records, selection.CallRecord{StudentID: c.StudentID, Ordinal: c.Ordinal})
	}
	for _, s := range scores {
		res.Scores[s.StudentID] = s.Score
	}
	logger.Info("journal opened", "session", session.ID, "calls", len(calls), "max_ordinal", maxOrdinal)
	return j, res, nil
}

// Start runs the writer until ctx is cancelled or Close is called.
func (j *Journal) Start(ctx context.Context) {
	j.mu.Lock()
	if j.started || j.closed {
		j.mu.Unlock()
		return
	}
	j.started = true
	j.mu.Unlock()
	go j.run(ctx)
}

// Session returns the session calls are currently written to.
func (j *Journal) Session() repository.Session {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.session
}

// Errors reports write failures. Delivery is best effort; a slow reader
// misses errors rather than stalling the writer.
func (j *Journal) Errors() <-chan error { return j.errs }

// Called records a draw.
func (j *Journal) Called(rec selection.CallRecord) { j.enqueue(op{kind: opAppend, record: rec}) }

// Undone removes an undone draw.
func (j *Journal) Undone(rec selection.CallRecord) { j.enqueue(op{kind: opUndo, record: rec}) }

// SessionReset closes the current session and starts a fresh one.
func (j *Journal) SessionReset() { j.enqueue(op{kind: opReset}) }

// Scored stores a student's new score.
func (j *Journal) Scored(studentID string, score int) {
	j.enqueue(op{kind: opScore, student: studentID, score: score})
}

// Flush blocks until every op queued before it has been applied, or ctx ends.
func (j *Journal) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if !j.enqueue(op{kind: opFlush, done: done}) {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue and stops the writer. Ops enqueued after Close are
// dropped.
func (j *Journal) Close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	started := j.started
	j.mu.Unlock()
	if !started {
		return
	}
	j.signal()
	<-j.stopped
}

func (j *Journal) enqueue(o op) bool {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		j.logger.Debug("journal closed, op dropped", "kind", int(o.kind))
		return false
	}
	j.queue = append(j.queue, o)
	j.mu.Unlock()
	j.signal()
	return true
}

func (j *Journal) signal() {
	select {
	case j.wake <- struct{}{}:
	default:
	}
}

func (j *Journal) run(ctx context.Context) {
	defer close(j.stopped)
	for {
		j.mu.Lock()
		batch := j.queue
		j.queue = nil
		closed := j.closed
		j.mu.Unlock()

		for _, o := range batch {
			j.apply(ctx, o)
		}
		if closed && len(batch) == 0 {
			return
		}
		if len(batch) > 0 {
			continue
		}
		select {
		case <-j.wake:
		case <-ctx.Done():
			j.mu.Lock()
			j.closed = true
			j.mu.Unlock()
		}
	}
}

func (j *Journal) apply(ctx context.Context, o op) {
	var err error
	switch o.kind {
	case opFlush:
		close(o.done)
		return
	case opAppend:
		err = j.calls.Append(ctx, repository.Call{
			SessionID: j.Session().ID,
			Ordinal:   o.record.Ordinal,
			StudentID: o.record.StudentID,
			CalledAt:  database.Now(),
		})
	case opUndo:
		err = j.calls.Delete(ctx, j.Session().ID, o.record.Ordinal)
	case opScore:
		err = j.scores.Upsert(ctx, o.student, o.score, database.Now())
	case opReset:
		err = j.reset(ctx)
	}
	if err != nil {
		j.report(fmt.Errorf("journal: %w", err))
	}
}

func (j *Journal) reset(ctx context.Context) error {
	prev := j.Session()
	if err := j.sessions.End(ctx, prev.ID, database.Now()); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	next, err := database.StartSession(ctx, j.db)
	if err != nil {
		return err
	}
	j.mu.Lock()
	j.session = next
	j.mu.Unlock()
	j.logger.Info("session reset", "previous", prev.ID, "session", next.ID)
	return nil
}

func (j *Journal) report(err error) {
	j.logger.Warn("journal write failed", "error", err)
	select {
	case j.errs <- err:
	default:
	}
}
