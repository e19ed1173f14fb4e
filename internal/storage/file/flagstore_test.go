package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagStore_Persist(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "flags.json")

	store, err := Open(path)
	require.NoError(t, err)

	claimed, err := store.Claim(ctx, "unique-visit")
	require.NoError(t, err)
	assert.True(t, claimed)

	t.Run("файл создан без временного", func(t *testing.T) {
		assert.FileExists(t, path)
		assert.NoFileExists(t, path+".tmp")
	})

	t.Run("флаг переживает переоткрытие", func(t *testing.T) {
		reopened, err := Open(path)
		require.NoError(t, err)

		has, err := reopened.Has(ctx, "unique-visit")
		require.NoError(t, err)
		assert.True(t, has)

		claimed, err := reopened.Claim(ctx, "unique-visit")
		require.NoError(t, err)
		assert.False(t, claimed)
	})

	t.Run("содержимое файла", func(t *testing.T) {
		_, err := store.Claim(ctx, "engaged")
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.JSONEq(t, `{"flags":["engaged","unique-visit"]}`, string(data))
	})
}

func TestFlagStore_Open(t *testing.T) {
	t.Run("нет файла", func(t *testing.T) {
		store, err := Open(filepath.Join(t.TempDir(), "missing.json"))
		require.NoError(t, err)

		has, err := store.Has(context.Background(), "engaged")
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("битый файл", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

		_, err := Open(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode state file")
	})

	t.Run("пустой путь держит флаги только в памяти", func(t *testing.T) {
		store, err := Open("")
		require.NoError(t, err)

		claimed, err := store.Claim(context.Background(), "engaged")
		require.NoError(t, err)
		assert.True(t, claimed)
	})
}

func TestFlagStore_ClaimRollback(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "state")
	path := filepath.Join(dir, "flags.json")

	store, err := Open(path)
	require.NoError(t, err)

	// каталог подменён файлом, запись невозможна
	require.NoError(t, os.WriteFile(dir, []byte("busy"), 0o600))

	claimed, err := store.Claim(ctx, "unique-visit")
	require.Error(t, err)
	assert.False(t, claimed)

	has, err := store.Has(ctx, "unique-visit")
	require.NoError(t, err)
	assert.False(t, has, "флаг не должен остаться в памяти")

	t.Run("повтор после восстановления", func(t *testing.T) {
		require.NoError(t, os.Remove(dir))

		claimed, err := store.Claim(ctx, "unique-visit")
		require.NoError(t, err)
		assert.True(t, claimed)
		assert.FileExists(t, path)
	})
}
