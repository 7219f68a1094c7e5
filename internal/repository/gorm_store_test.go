package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/jmulyadi/Github-Agent/internal/domain"
)

func newTestGormStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := OpenGorm("sqlite", filepath.Join(t.TempDir(), "nested", "transcript.db"))
	require.NoError(t, err)
	store, err := NewGormStore(context.Background(), db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return store
}

func TestGormStore_AppendAndFetchNewestFirst(t *testing.T) {
	store := newTestGormStore(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		require.NoError(t, store.Append(ctx, "s1", "c1", domain.MessageTypeUser, fmt.Sprintf("m%d", i), nil))
	}

	recs, err := store.Fetch(ctx, "s1", "c1", 10)
	require.NoError(t, err)
	require.Len(t, recs, 10)
	require.Equal(t, "m11", *recs[0].Message.Content)
	require.Equal(t, "m2", *recs[9].Message.Content)
	require.Equal(t, "s1", recs[0].SessionID)
	require.NotEmpty(t, recs[0].ID)
}

func TestGormStore_FetchIsScoped(t *testing.T) {
	store := newTestGormStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", "c1", domain.MessageTypeUser, "mine", nil))
	require.NoError(t, store.Append(ctx, "s1", "c2", domain.MessageTypeUser, "other chat", nil))
	require.NoError(t, store.Append(ctx, "s2", "c1", domain.MessageTypeUser, "other session", nil))

	recs, err := store.Fetch(ctx, "s1", "c1", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "mine", *recs[0].Message.Content)
}

func TestGormStore_FetchEmpty(t *testing.T) {
	store := newTestGormStore(t)
	recs, err := store.Fetch(context.Background(), "s1", "c1", 10)
	require.NoError(t, err)
	require.Empty(t, recs)
}

func TestGormStore_AppendKeepsData(t *testing.T) {
	store := newTestGormStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", "c1", domain.MessageTypeAI, "sorry", map[string]string{
		"error":      "boom",
		"request_id": "r1",
	}))

	recs, err := store.Fetch(ctx, "s1", "c1", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, domain.MessageTypeAI, recs[0].Message.Type)
	require.Equal(t, map[string]string{"error": "boom", "request_id": "r1"}, recs[0].Message.Data)
}

func TestGormStore_MalformedRowsDecodeLeniently(t *testing.T) {
	store := newTestGormStore(t)
	ctx := context.Background()

	rows := []messageRow{
		{SessionID: "s1", ChatID: "c1", Message: datatypes.JSON(`"not an object"`), CreatedAt: time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC)},
		{SessionID: "s1", ChatID: "c1", Message: datatypes.JSON(`{"type":"user"}`), CreatedAt: time.Date(2026, 1, 1, 0, 0, 2, 0, time.UTC)},
		{SessionID: "s1", ChatID: "c1", Message: datatypes.JSON(`{"type":"ai","content":"ok","data":{"n":3}}`), CreatedAt: time.Date(2026, 1, 1, 0, 0, 3, 0, time.UTC)},
	}
	require.NoError(t, store.db.Create(&rows).Error)

	recs, err := store.Fetch(ctx, "s1", "c1", 10)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	require.Equal(t, "ok", *recs[0].Message.Content)
	require.Equal(t, "3", recs[0].Message.Data["n"])

	require.Equal(t, domain.MessageTypeUser, recs[1].Message.Type)
	require.Nil(t, recs[1].Message.Content)

	require.Nil(t, recs[2].Message)
}

func TestGormStore_MissingScope(t *testing.T) {
	store := newTestGormStore(t)
	err := store.Append(context.Background(), "", "c1", domain.MessageTypeUser, "hi", nil)
	require.Error(t, err)
}

func TestGormStore_UnavailableAfterClose(t *testing.T) {
	store := newTestGormStore(t)
	require.NoError(t, store.Close())
	_, err := store.Fetch(context.Background(), "s1", "c1", 10)
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestNewGormStore_NilDB(t *testing.T) {
	_, err := NewGormStore(context.Background(), nil)
	require.Error(t, err)
}

func TestOpenGorm_RequiresDSNForPostgres(t *testing.T) {
	_, err := OpenGorm("postgres", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "dsn is required")
}

func TestOpenGorm_UnsupportedDriver(t *testing.T) {
	_, err := OpenGorm("oracle", "x")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported driver")
}

func TestSQLiteFilePath(t *testing.T) {
	cases := []struct {
		dsn  string
		want string
		ok   bool
	}{
		{dsn: ":memory:", ok: false},
		{dsn: "file::memory:?cache=shared", ok: false},
		{dsn: "data/transcript.db?_pragma=busy_timeout(5000)", want: "data/transcript.db", ok: true},
		{dsn: "file:/tmp/x.db?mode=rwc", want: "/tmp/x.db", ok: true},
		{dsn: "file:x.db?mode=memory", ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.dsn, func(t *testing.T) {
			got, ok := sqliteFilePath(tc.dsn)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}
