package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/classtools/internal/database/repository"
)

func TestPrepareMigratesAndIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "classtools.db")
	db, err := Prepare(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Prepare(path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('sessions','calls','scores')`).Scan(&n))
	require.Equal(t, 3, n)
}

func TestEnsureSessionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := Prepare(filepath.Join(t.TempDir(), "classtools.db"))
	require.NoError(t, err)
	defer db.Close()

	first, err := EnsureSession(ctx, db)
	require.NoError(t, err)
	again, err := EnsureSession(ctx, db)
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)

	sessions := repository.NewSessionRepo(db)
	require.NoError(t, sessions.End(ctx, first.ID, Now()))
	next, err := EnsureSession(ctx, db)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, next.ID)

	all, err := sessions.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.NotNil(t, all[0].EndedAt)
	require.Nil(t, all[1].EndedAt)
}

func TestCallsAndScores(t *testing.T) {
	ctx := context.Background()
	db, err := Prepare(filepath.Join(t.TempDir(), "classtools.db"))
	require.NoError(t, err)
	defer db.Close()

	s, err := EnsureSession(ctx, db)
	require.NoError(t, err)
	calls := repository.NewCallRepo(db)
	now := Now()
	for i, id := range []string{"1", "2", "1"} {
		require.NoError(t, calls.Append(ctx, repository.Call{SessionID: s.ID, Ordinal: uint64(i + 1), StudentID: id, CalledAt: now}))
	}
	require.Error(t, calls.Append(ctx, repository.Call{SessionID: s.ID, Ordinal: 1, StudentID: "3", CalledAt: now}))
	require.Error(t, calls.Append(ctx, repository.Call{SessionID: "missing", Ordinal: 9, StudentID: "3", CalledAt: now}))

	require.NoError(t, calls.Delete(ctx, s.ID, 3))
	require.NoError(t, calls.Delete(ctx, s.ID, 3))
	list, err := calls.ListBySession(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "2", list[1].StudentID)
	require.WithinDuration(t, now, list[0].CalledAt, time.Second)

	top, err := calls.MaxOrdinal(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), top)

	counts, err := calls.CountByStudent(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"1": 1, "2": 1}, counts)

	scores := repository.NewScoreRepo(db)
	got, err := scores.Get(ctx, "1")
	require.NoError(t, err)
	require.Nil(t, got)
	require.NoError(t, scores.Upsert(ctx, "1", 2, now))
	require.NoError(t, scores.Upsert(ctx, "1", 5, now))
	got, err = scores.Get(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, 5, got.Score)
}
