package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thiremani/lattice/engine"
)

func TestIsHashDir(t *testing.T) {
	assert.True(t, isHashDir("0a1b2c3d"))
	assert.False(t, isHashDir("0a1b2c3"))
	assert.False(t, isHashDir("0a1b2c3g"))
	assert.False(t, isHashDir(".lock"))
}

func TestDefaultCacheHonorsEnv(t *testing.T) {
	t.Setenv("LATTICE_CACHE", "/tmp/lattice-test-cache")
	assert.Equal(t, "/tmp/lattice-test-cache", defaultCache())

	t.Setenv("LATTICE_CACHE", "")
	assert.NotEmpty(t, defaultCache())
}

func TestModuleHashDependsOnOptions(t *testing.T) {
	short, full := moduleHash("define void @f() {}", engine.DefaultOptions())
	assert.Len(t, full, 64)
	assert.Equal(t, full[:8], short)

	_, again := moduleHash("define void @f() {}", engine.DefaultOptions())
	assert.Equal(t, full, again)

	_, o0 := moduleHash("define void @f() {}", engine.Options{})
	assert.NotEqual(t, full, o0)
}

func TestCacheModuleReusesDirectory(t *testing.T) {
	dir := t.TempDir()
	opts := engine.DefaultOptions()

	path, cached, err := cacheModule(dir, "power", "; module power", opts)
	require.NoError(t, err)
	assert.False(t, cached)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "; module power", string(data))
	assert.True(t, isHashDir(filepath.Base(filepath.Dir(path))))

	again, cached, err := cacheModule(dir, "power", "; module power", opts)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, path, again)

	other, cached, err := cacheModule(dir, "power", "; module power v2", opts)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.NotEqual(t, path, other)
}

func TestCacheModuleRewritesCorruptEntry(t *testing.T) {
	dir := t.TempDir()
	opts := engine.DefaultOptions()

	path, _, err := cacheModule(dir, "countdown", "; module countdown", opts)
	require.NoError(t, err)
	hashFile := filepath.Join(filepath.Dir(path), HASH_FILE)
	require.NoError(t, os.WriteFile(hashFile, []byte("truncated"), 0644))

	again, cached, err := cacheModule(dir, "countdown", "; module countdown", opts)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, path, again)

	stored, err := os.ReadFile(hashFile)
	require.NoError(t, err)
	_, full := moduleHash("; module countdown", opts)
	assert.Equal(t, full, string(stored))
}

func TestCleanupOldModules(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-30 * 24 * time.Hour)

	names := []string{"00000001", "00000002", "00000003", "00000004"}
	for i, name := range names {
		p := filepath.Join(dir, name)
		require.NoError(t, os.Mkdir(p, 0755))
		mtime := old.Add(time.Duration(i) * time.Hour)
		if name == "00000004" {
			mtime = time.Now()
		}
		require.NoError(t, os.Chtimes(p, mtime, mtime))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "keepme"), 0755))

	cleanupOldModules(dir, 2, 7*24*60*60)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var left []string
	for _, e := range entries {
		left = append(left, e.Name())
	}
	assert.ElementsMatch(t, []string{"00000003", "00000004", "keepme"}, left)
}

func TestEngineOptionsFromEnv(t *testing.T) {
	t.Setenv("LATTICE_OPT", "")
	assert.Equal(t, engine.DefaultOptions(), engineOptions())

	t.Setenv("LATTICE_OPT", "0")
	assert.Equal(t, engine.Options{OptLevel: 0, Vectorize: false}, engineOptions())

	t.Setenv("LATTICE_OPT", "9")
	assert.Equal(t, engine.DefaultOptions(), engineOptions())
}

func TestFindProgram(t *testing.T) {
	p, ok := findProgram("countdown")
	require.True(t, ok)
	assert.Equal(t, "countdown", p.Func.Name)

	_, ok = findProgram("missing")
	assert.False(t, ok)
}
