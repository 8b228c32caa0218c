// Package local_test tests the filesystem sink.
package local_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/logo-resolver/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		sink, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, sink)
	})

	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "logos")
		_, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})
}

func TestStore(t *testing.T) {
	dir := t.TempDir()
	sink, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)

	t.Run("ValidStore", func(t *testing.T) {
		data := []byte("png bytes")
		uri, err := sink.Store(context.Background(), "example_com_1234abcd.png", "image/png", data)
		require.NoError(t, err)

		want := filepath.Join(dir, "example_com_1234abcd.png")
		assert.Equal(t, "file://"+filepath.ToSlash(want), uri)
		// #nosec G304 -- test reads from the controlled temp directory.
		got, err := os.ReadFile(want)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("EmptyName", func(t *testing.T) {
		_, err := sink.Store(context.Background(), "", "image/png", []byte("x"))
		assert.Error(t, err)
	})

	t.Run("Traversal", func(t *testing.T) {
		_, err := sink.Store(context.Background(), "../outside.png", "image/png", []byte("x"))
		assert.Error(t, err)
	})
}

func TestStoreWithPrefix(t *testing.T) {
	dir := t.TempDir()
	sink, err := local.New(local.Config{BaseDir: dir, Prefix: "run-1"})
	require.NoError(t, err)

	_, err = sink.Store(context.Background(), "a_com_00000000.jpg", "image/jpeg", []byte("jpg"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "run-1", "a_com_00000000.jpg"))
	assert.NoError(t, err)
}

func TestStoreConcurrentDistinctNames(t *testing.T) {
	dir := t.TempDir()
	sink, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := sink.Store(context.Background(), fmt.Sprintf("site_%02d.png", i), "image/png", []byte{byte(i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 16)
}
