package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dskvich/brahmos-bot/pkg/database"
	"github.com/dskvich/brahmos-bot/pkg/domain"
)

type sample struct {
	Users []int64 `json:"users"`
}

func TestFileDocumentMissingFile(t *testing.T) {
	doc := NewFileDocument(filepath.Join(t.TempDir(), "absent.json"))

	var got sample
	err := doc.Load(context.Background(), &got)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFileDocumentRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "premium_users.json")
	doc := NewFileDocument(path)

	require.NoError(t, doc.Save(context.Background(), sample{Users: []int64{1, 2}}))
	require.NoError(t, doc.Save(context.Background(), sample{Users: []int64{3}}))

	var got sample
	require.NoError(t, doc.Load(context.Background(), &got))
	assert.Equal(t, []int64{3}, got.Users)
	assert.Equal(t, "premium_users.json", doc.Name())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestFileDocumentCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage_data.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var got sample
	err := NewFileDocument(path).Load(context.Background(), &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLDocumentRoundTrip(t *testing.T) {
	db, err := database.NewSQLite(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	doc := NewSQLDocument(db, database.SQLite, "premium_users")

	var got sample
	assert.ErrorIs(t, doc.Load(ctx, &got), domain.ErrNotFound)

	require.NoError(t, doc.Save(ctx, sample{Users: []int64{5}}))
	require.NoError(t, doc.Save(ctx, sample{Users: []int64{5, 6}}))

	require.NoError(t, doc.Load(ctx, &got))
	assert.Equal(t, []int64{5, 6}, got.Users)
}
