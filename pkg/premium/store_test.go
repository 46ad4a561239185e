package premium

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dskvich/brahmos-bot/pkg/repository"
)

type failingDoc struct{}

func (failingDoc) Load(context.Context, any) error { return errors.New("disk on fire") }
func (failingDoc) Save(context.Context, any) error { return errors.New("disk on fire") }

func newFileStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "premium_users.json")
	store := NewStore(repository.NewFileDocument(path))
	require.NoError(t, store.Load(context.Background()))
	return store, path
}

func TestMissingDocumentMeansEmptySet(t *testing.T) {
	store, _ := newFileStore(t)

	assert.False(t, store.IsPremium(42))
	assert.Zero(t, store.Count())
}

func TestAddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, _ := newFileStore(t)

	changed, err := store.Add(ctx, 42)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = store.Add(ctx, 42)
	require.NoError(t, err)
	assert.False(t, changed)

	assert.True(t, store.IsPremium(42))
	assert.Equal(t, []int64{42}, store.List())
}

func TestRemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, _ := newFileStore(t)

	_, err := store.Add(ctx, 42)
	require.NoError(t, err)

	changed, err := store.Remove(ctx, 42)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = store.Remove(ctx, 42)
	require.NoError(t, err)
	assert.False(t, changed)

	assert.False(t, store.IsPremium(42))
}

func TestMembershipSurvivesReload(t *testing.T) {
	ctx := context.Background()
	store, path := newFileStore(t)

	for _, id := range []int64{30, 10, 20} {
		_, err := store.Add(ctx, id)
		require.NoError(t, err)
	}
	_, err := store.Remove(ctx, 20)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[10, 30]`, string(data))

	reloaded := NewStore(repository.NewFileDocument(path))
	require.NoError(t, reloaded.Load(ctx))
	assert.True(t, reloaded.IsPremium(10))
	assert.True(t, reloaded.IsPremium(30))
	assert.False(t, reloaded.IsPremium(20))
}

func TestSaveFailureKeepsMembership(t *testing.T) {
	store := NewStore(failingDoc{})

	changed, err := store.Add(context.Background(), 7)
	assert.Error(t, err)
	assert.True(t, changed)
	assert.True(t, store.IsPremium(7))
}

func TestLoadFailureLeavesEmptySet(t *testing.T) {
	store := NewStore(failingDoc{})

	assert.Error(t, store.Load(context.Background()))
	assert.Zero(t, store.Count())
}

func TestStoresSharingADocumentDoNotLoseUpdates(t *testing.T) {
	ctx := context.Background()
	bot, path := newFileStore(t)
	cli := NewStore(repository.NewFileDocument(path))
	require.NoError(t, cli.Load(ctx))

	_, err := bot.Add(ctx, 1)
	require.NoError(t, err)
	_, err = cli.Add(ctx, 2)
	require.NoError(t, err)
	_, err = bot.Add(ctx, 3)
	require.NoError(t, err)
	_, err = cli.Remove(ctx, 1)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[2, 3]`, string(data))

	require.NoError(t, bot.Refresh(ctx))
	assert.Equal(t, []int64{2, 3}, bot.List())
}

type flakyDoc struct {
	saved    []int64
	failSave bool
}

func (d *flakyDoc) Load(_ context.Context, v any) error {
	*(v.(*[]int64)) = append([]int64(nil), d.saved...)
	return nil
}

func (d *flakyDoc) Save(_ context.Context, v any) error {
	if d.failSave {
		return errors.New("disk full")
	}
	d.saved = append([]int64(nil), v.([]int64)...)
	return nil
}

func TestUnsavedChangeSurvivesNextMutation(t *testing.T) {
	ctx := context.Background()
	doc := &flakyDoc{failSave: true}
	store := NewStore(doc)

	_, err := store.Add(ctx, 7)
	require.Error(t, err)
	require.NoError(t, store.Refresh(ctx))
	assert.True(t, store.IsPremium(7))

	doc.failSave = false
	_, err = store.Add(ctx, 8)
	require.NoError(t, err)

	assert.Equal(t, []int64{7, 8}, doc.saved)
}
