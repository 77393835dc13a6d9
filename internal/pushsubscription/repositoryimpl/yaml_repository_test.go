package repositoryimpl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagetrack/stagetrack/internal/pushsubscription"
	"github.com/stagetrack/stagetrack/pkg/cerr"
	"github.com/stagetrack/stagetrack/pkg/storage"
)

func newTestRepository(t *testing.T) *YAMLRepository {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewYAMLRepository(store)
}

func TestSaveAndGet(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	s := pushsubscription.New("https://push.example/ep1", "p256dh", "auth", "Firefox")
	require.NoError(t, repo.Save(ctx, s))

	got, err := repo.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Endpoint, got.Endpoint)
	assert.Equal(t, "Firefox", got.UserAgent)
}

func TestSaveReplacesSameEndpoint(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	old := pushsubscription.New("https://push.example/ep1", "k1", "a1", "")
	require.NoError(t, repo.Save(ctx, old))

	renewed := pushsubscription.New("https://push.example/ep1", "k2", "a2", "")
	require.NoError(t, repo.Save(ctx, renewed))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "k2", all[0].P256dhKey)

	_, err = repo.Get(ctx, old.ID)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestDeleteByEndpoint(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	s := pushsubscription.New("https://push.example/ep1", "k", "a", "")
	require.NoError(t, repo.Save(ctx, s))
	require.NoError(t, repo.DeleteByEndpoint(ctx, s.Endpoint))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	err = repo.DeleteByEndpoint(ctx, "https://push.example/missing")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}
