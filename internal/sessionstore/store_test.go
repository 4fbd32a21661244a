package sessionstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDirAndExists(t *testing.T) {
	s := New(t.TempDir())
	assert.False(t, s.Exists(1))

	dir, err := s.EnsureDir(1)
	require.NoError(t, err)
	assert.True(t, s.Exists(1))

	// idempotent, same path back
	again, err := s.EnsureDir(1)
	require.NoError(t, err)
	assert.Equal(t, dir, again)
}

func TestRemoveAll(t *testing.T) {
	s := New(t.TempDir())
	dir, err := s.EnsureDir(2)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "creds.json"), []byte("{}"), 0o600))

	require.NoError(t, s.RemoveAll(2))
	assert.False(t, s.Exists(2))

	// removing again is harmless
	require.NoError(t, s.RemoveAll(2))
}

func TestInstancesIsolated(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.EnsureDir(1)
	require.NoError(t, err)
	_, err = s.EnsureDir(2)
	require.NoError(t, err)

	require.NoError(t, s.RemoveAll(1))
	assert.False(t, s.Exists(1))
	assert.True(t, s.Exists(2))
}
