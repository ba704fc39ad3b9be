package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()

	s, err := Open(filepath.Join(dir, "history.db"), 0)
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestAction(t *testing.T, s *Store, atNs int64, action, outcome string) int64 {
	t.Helper()

	id, err := s.InsertAction(&ActionRecord{
		AtNs:        atNs,
		Action:      action,
		TargetTitle: "Untitled - Notepad",
		Outcome:     outcome,
	})
	require.NoError(t, err)
	return id
}

func TestOpenAndClose(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(filepath.Join(dir, "history.db"), 0)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestOpenCreatesDirectory(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(filepath.Join(dir, "sub", "nested", "history.db"), 0)
	require.NoError(t, err)
	defer s.Close()
}

func TestOpenTwiceSkipsAppliedMigrations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")

	s1, err := Open(path, 0)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path, 0)
	require.NoError(t, err)
	defer s2.Close()

	version, err := SchemaVersion(s2.DB())
	require.NoError(t, err)
	assert.Equal(t, len(schemaHistory), version)
}

func TestCloseNilDB(t *testing.T) {
	s := &Store{db: nil}
	assert.NoError(t, s.Close())
}

func TestInsertAndGetAction(t *testing.T) {
	s := openTestStore(t)

	rec := &ActionRecord{
		AtNs:        time.Now().UnixNano(),
		Action:      "send_primary",
		TargetTitle: "main.go - Visual Studio Code",
		Outcome:     "ok",
		Detail:      "",
	}

	id, err := s.InsertAction(rec)
	require.NoError(t, err)
	require.Greater(t, id, int64(0))

	got, err := s.GetAction(id)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, id, got.ID)
	assert.Equal(t, rec.AtNs, got.AtNs)
	assert.Equal(t, rec.Action, got.Action)
	assert.Equal(t, rec.TargetTitle, got.TargetTitle)
	assert.Equal(t, rec.Outcome, got.Outcome)
	assert.Equal(t, rec.Detail, got.Detail)
}

func TestGetActionNotFound(t *testing.T) {
	s := openTestStore(t)

	got, err := s.GetAction(99999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRecentActionsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().UnixNano()

	insertTestAction(t, s, base, "send_primary", "ok")
	insertTestAction(t, s, base+1, "send_secondary", "ok")
	insertTestAction(t, s, base+2, "toggle", "ok")

	recent, err := s.RecentActions(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	assert.Equal(t, "toggle", recent[0].Action)
	assert.Equal(t, "send_secondary", recent[1].Action)
}

func TestRecentActionsDefaultLimit(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().UnixNano()

	for i := 0; i < 3; i++ {
		insertTestAction(t, s, base+int64(i), "send_primary", "ok")
	}

	recent, err := s.RecentActions(0)
	require.NoError(t, err)
	assert.Len(t, recent, 3)
}

func TestActionRangeInclusiveBounds(t *testing.T) {
	s := openTestStore(t)

	insertTestAction(t, s, 100, "send_primary", "ok")
	insertTestAction(t, s, 200, "send_secondary", "ok")
	insertTestAction(t, s, 300, "toggle", "ok")
	insertTestAction(t, s, 400, "exit", "ok")

	got, err := s.ActionRange(200, 300)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "send_secondary", got[0].Action)
	assert.Equal(t, "toggle", got[1].Action)
}

func TestCountByOutcome(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().UnixNano()

	insertTestAction(t, s, base, "send_primary", "ok")
	insertTestAction(t, s, base+1, "send_primary", "ok")
	insertTestAction(t, s, base+2, "send_secondary", "focus-failed")

	counts, err := s.CountByOutcome()
	require.NoError(t, err)

	assert.Equal(t, int64(2), counts["ok"])
	assert.Equal(t, int64(1), counts["focus-failed"])
}

func TestPruneOlderThan(t *testing.T) {
	s := openTestStore(t)

	insertTestAction(t, s, 100, "send_primary", "ok")
	insertTestAction(t, s, 200, "send_secondary", "ok")
	insertTestAction(t, s, 300, "toggle", "ok")

	removed, err := s.PruneOlderThan(300)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	remaining, err := s.RecentActions(10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "toggle", remaining[0].Action)
}

func TestStatsEmpty(t *testing.T) {
	s := openTestStore(t)

	st, err := s.Stats()
	require.NoError(t, err)

	assert.Equal(t, int64(0), st.Total)
	assert.Equal(t, int64(0), st.OldestNs)
	assert.Equal(t, int64(0), st.NewestNs)
}

func TestStats(t *testing.T) {
	s := openTestStore(t)

	insertTestAction(t, s, 100, "send_primary", "ok")
	insertTestAction(t, s, 300, "toggle", "ok")

	st, err := s.Stats()
	require.NoError(t, err)

	assert.Equal(t, int64(2), st.Total)
	assert.Equal(t, int64(100), st.OldestNs)
	assert.Equal(t, int64(300), st.NewestNs)
}

func TestSecondReaderSeesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")

	writer, err := Open(path, 0)
	require.NoError(t, err)
	defer writer.Close()

	insertTestAction(t, writer, 100, "send_primary", "ok")

	reader, err := Open(path, 0)
	require.NoError(t, err)
	defer reader.Close()

	got, err := reader.RecentActions(10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestValidateSchema(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, ValidateSchema(s.DB()))
}

func TestMigrationRoundTrip(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	version, err := SchemaVersion(db)
	require.NoError(t, err)
	require.Equal(t, len(schemaHistory), version)

	// Roll all migrations back; the actions table disappears with V1.
	for i := 0; i < len(schemaHistory); i++ {
		require.NoError(t, RollbackMigration(db))
	}

	version, err = SchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, 0, version)
	assert.Error(t, ValidateSchema(db))

	assert.Error(t, RollbackMigration(db), "rollback past version 0 should fail")

	// Re-applying restores the full schema.
	require.NoError(t, MigrateDB(db))
	assert.NoError(t, ValidateSchema(db))
}
