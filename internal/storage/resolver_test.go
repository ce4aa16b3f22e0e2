package storage

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) (*Resolver, string) {
	root := t.TempDir()
	resolver, err := NewResolver(root)
	require.NoError(t, err)
	return resolver, resolver.Root()
}

func TestResolveValidPaths(t *testing.T) {
	resolver, root := newTestResolver(t)

	t.Run("Empty path resolves to root", func(t *testing.T) {
		got, err := resolver.Resolve("")
		require.NoError(t, err)
		assert.Equal(t, root, got)
	})

	t.Run("Nested path stays under root", func(t *testing.T) {
		got, err := resolver.Resolve("album/track.mp3")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "album", "track.mp3"), got)
	})

	t.Run("Redundant segments are cleaned", func(t *testing.T) {
		got, err := resolver.Resolve("album/./sub/../track.mp3")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "album", "track.mp3"), got)
	})
}

func TestResolveEscapes(t *testing.T) {
	resolver, _ := newTestResolver(t)

	cases := []string{
		"..",
		"../outside",
		"../../etc/passwd",
		"album/../../outside",
		"album/../../../deep/escape",
	}
	for _, relative := range cases {
		t.Run(relative, func(t *testing.T) {
			_, err := resolver.Resolve(relative)
			assert.True(t, errors.Is(err, ErrPathEscape), "expected PathEscape for %q, got %v", relative, err)
		})
	}

	t.Run("Absolute path rejected", func(t *testing.T) {
		_, err := resolver.Resolve(string(filepath.Separator) + "etc")
		assert.True(t, errors.Is(err, ErrPathEscape))
	})
}

func TestResolveSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires privileges on windows")
	}

	resolver, root := newTestResolver(t)

	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("secret"), 0644))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "sneaky")))

	_, err := resolver.Resolve("sneaky/secret.txt")
	assert.True(t, errors.Is(err, ErrPathEscape))
}

func TestResolveNonExistentSuffix(t *testing.T) {
	resolver, root := newTestResolver(t)

	// Confinement must hold for paths that do not exist yet, since
	// uploads and folder creation resolve before creating anything.
	got, err := resolver.Resolve("new/deeply/nested/dir")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "new", "deeply", "nested", "dir"), got)
}
