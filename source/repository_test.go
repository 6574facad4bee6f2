package source

import (
	"context"
	"errors"
	"testing"

	"github.com/sardine-ai/go-widget-config/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRepositoryContract checks the behavior every backend shares.
func testRepositoryContract(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()

	for _, channel := range model.Channels {
		_, err := repo.Read(ctx, channel)
		assert.ErrorIs(t, err, ErrNotFound, "fresh %s", channel)
	}

	require.NoError(t, repo.Write(ctx, model.SceneList, `[{"name":"Evening","id":1}]`))
	blob, err := repo.Read(ctx, model.SceneList)
	require.NoError(t, err)
	assert.Equal(t, `[{"name":"Evening","id":1}]`, blob)

	require.NoError(t, repo.Write(ctx, model.SceneList, "[]"))
	blob, err = repo.Read(ctx, model.SceneList)
	require.NoError(t, err)
	assert.Equal(t, "[]", blob)

	_, err = repo.Read(ctx, model.ControlDeviceList)
	assert.ErrorIs(t, err, ErrNotFound, "writes must not leak into other channels")

	require.NoError(t, repo.Delete(ctx, model.SceneList))
	_, err = repo.Read(ctx, model.SceneList)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, repo.Delete(ctx, model.SceneList), "deleting an absent blob")
}

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository("memory")
	assert.Equal(t, "memory", repo.GetName())
	testRepositoryContract(t, repo)
}

func TestMemoryRepositoryZeroValue(t *testing.T) {
	var repo MemoryRepository
	require.NoError(t, repo.Write(context.Background(), model.AppInfo, "{}"))
	blob, err := repo.Read(context.Background(), model.AppInfo)
	require.NoError(t, err)
	assert.Equal(t, "{}", blob)
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "scene_configuration.json", objectName("", model.SceneList))
	assert.Equal(t, "widgets/common_configuration.json", objectName("widgets/", model.AppInfo))
}

func TestErrNotFoundIsSentinel(t *testing.T) {
	_, err := NewMemoryRepository("m").Read(context.Background(), model.StateDeviceList)
	assert.True(t, errors.Is(err, ErrNotFound))
}
