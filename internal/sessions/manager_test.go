package sessions

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return NewManager(s), s
}

func TestManager_CreateAndEnd(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	start := time.Date(2026, 10, 18, 9, 0, 0, 0, time.Local)

	id, err := m.CreateSession(ctx, "alice", nil, start, models.ModeWork)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, m.EndSession(ctx, id, start.Add(25*time.Minute), 1500))
	got, err := m.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1500, got.Duration)
	assert.False(t, got.Open())
}

func TestManager_CreateWithIDIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t)
	start := time.Date(2026, 10, 18, 9, 0, 0, 0, time.Local)
	id := ulid.Make().String()
	ctx := models.WithSessionID(context.Background(), id)

	first, err := m.CreateSession(ctx, "alice", nil, start, models.ModeWork)
	require.NoError(t, err)
	assert.Equal(t, id, first)

	again, err := m.CreateSession(ctx, "alice", nil, start, models.ModeWork)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	list, err := m.ListSessions(context.Background(), models.SessionFilter{UserID: "alice"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = m.CreateSession(ctx, "bob", nil, start, models.ModeWork)
	assert.ErrorIs(t, err, ErrInvalidSession)

	bad := models.WithSessionID(context.Background(), "not-an-id")
	_, err = m.CreateSession(bad, "alice", nil, start, models.ModeWork)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestManager_Validation(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	start := time.Now()

	_, err := m.CreateSession(ctx, "", nil, start, models.ModeWork)
	assert.ErrorIs(t, err, ErrInvalidSession)
	_, err = m.CreateSession(ctx, "alice", nil, start, models.Mode("nap"))
	assert.ErrorIs(t, err, ErrInvalidSession)
	_, err = m.CreateSession(ctx, "alice", nil, time.Time{}, models.ModeWork)
	assert.ErrorIs(t, err, ErrInvalidSession)

	missing := "nope"
	_, err = m.CreateSession(ctx, "alice", &missing, start, models.ModeWork)
	assert.ErrorIs(t, err, ErrInvalidSession)

	bobs := &models.Category{UserID: "bob", Name: "bob's"}
	require.NoError(t, s.CreateCategory(ctx, bobs))
	_, err = m.CreateSession(ctx, "alice", &bobs.ID, start, models.ModeWork)
	assert.ErrorIs(t, err, ErrInvalidSession)

	id, err := m.CreateSession(ctx, "alice", nil, start, models.ModeWork)
	require.NoError(t, err)
	assert.ErrorIs(t, m.EndSession(ctx, id, start.Add(-time.Minute), 10), ErrInvalidSession)
	assert.ErrorIs(t, m.EndSession(ctx, id, start, -1), ErrInvalidSession)
	assert.ErrorIs(t, m.UpdateSessionCategory(ctx, id, &bobs.ID), ErrInvalidSession)
	assert.ErrorIs(t, m.EndSession(ctx, "missing", start, 1), store.ErrNotFound)

	_, err = m.ListSessions(ctx, models.SessionFilter{Mode: "nap"})
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestManager_ResolveCategory(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()

	c := &models.Category{UserID: "alice", Name: "coding"}
	require.NoError(t, s.CreateCategory(ctx, c))

	id, err := m.ResolveCategory(ctx, "alice", "coding")
	require.NoError(t, err)
	assert.Equal(t, c.ID, *id)

	id, err = m.ResolveCategory(ctx, "alice", c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, *id)

	id, err = m.ResolveCategory(ctx, "alice", "")
	require.NoError(t, err)
	assert.Nil(t, id)

	_, err = m.ResolveCategory(ctx, "bob", "coding")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestManager_Export(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()

	c := &models.Category{UserID: "alice", Name: "writing"}
	require.NoError(t, s.CreateCategory(ctx, c))
	start := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	id, err := m.CreateSession(ctx, "alice", &c.ID, start, models.ModeWork)
	require.NoError(t, err)
	require.NoError(t, m.EndSession(ctx, id, start.Add(30*time.Minute), 1800))

	var buf bytes.Buffer
	n, err := m.Export(ctx, &buf, models.SessionFilter{UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var doc struct {
		User     string         `yaml:"user"`
		Sessions []ExportRecord `yaml:"sessions"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "alice", doc.User)
	require.Len(t, doc.Sessions, 1)
	assert.Equal(t, "writing", doc.Sessions[0].Category)
	assert.Equal(t, 1800, doc.Sessions[0].Duration)
}
