package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiodrop/audiodrop/internal/auth"
	"github.com/audiodrop/audiodrop/internal/config"
)

func TestCreateFolder(t *testing.T) {
	fs, root := newTestFilesystem(t)

	t.Run("Creates nested folders", func(t *testing.T) {
		created, err := fs.CreateFolder(auth.PrivilegeEditor, "albums", "live")
		require.NoError(t, err)
		assert.True(t, created)

		info, err := os.Stat(filepath.Join(root, "albums", "live"))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("Idempotent on existing folder", func(t *testing.T) {
		created, err := fs.CreateFolder(auth.PrivilegeEditor, "albums", "live")
		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("Viewer denied", func(t *testing.T) {
		_, err := fs.CreateFolder(auth.PrivilegeViewer, "", "nope")
		assert.ErrorIs(t, err, auth.ErrUnauthorized)
	})

	t.Run("Escape rejected", func(t *testing.T) {
		_, err := fs.CreateFolder(auth.PrivilegeEditor, "..", "outside")
		assert.ErrorIs(t, err, ErrPathEscape)
	})
}

func TestDeleteItem(t *testing.T) {
	fs, root := newTestFilesystem(t)

	t.Run("Deletes a file", func(t *testing.T) {
		target := filepath.Join(root, "gone.mp3")
		require.NoError(t, os.WriteFile(target, []byte("x"), 0644))

		status, err := fs.DeleteItem(auth.PrivilegeEditor, "", "gone.mp3")
		require.NoError(t, err)
		assert.Equal(t, DeleteRemoved, status)
		assert.NoFileExists(t, target)
	})

	t.Run("Deletes an empty folder", func(t *testing.T) {
		require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))

		status, err := fs.DeleteItem(auth.PrivilegeEditor, "", "empty")
		require.NoError(t, err)
		assert.Equal(t, DeleteRemoved, status)
		assert.NoDirExists(t, filepath.Join(root, "empty"))
	})

	t.Run("Leaves a non-empty folder in place", func(t *testing.T) {
		inner := filepath.Join(root, "full", "keep.mp3")
		require.NoError(t, os.MkdirAll(filepath.Dir(inner), 0755))
		require.NoError(t, os.WriteFile(inner, []byte("x"), 0644))

		status, err := fs.DeleteItem(auth.PrivilegeEditor, "", "full")
		require.NoError(t, err, "non-empty delete must not be a fatal error")
		assert.Equal(t, DeleteSkippedNotEmpty, status)
		assert.DirExists(t, filepath.Join(root, "full"))
		assert.FileExists(t, inner)
	})

	t.Run("Missing target is a no-op", func(t *testing.T) {
		status, err := fs.DeleteItem(auth.PrivilegeEditor, "", "never-existed")
		require.NoError(t, err)
		assert.Equal(t, DeleteMissing, status)
	})

	t.Run("Viewer denied", func(t *testing.T) {
		_, err := fs.DeleteItem(auth.PrivilegeViewer, "", "anything")
		assert.ErrorIs(t, err, auth.ErrUnauthorized)
	})
}

func TestUpload(t *testing.T) {
	fs, root := newTestFilesystem(t)

	t.Run("Stores an allowed file", func(t *testing.T) {
		result, err := fs.Upload(auth.PrivilegeEditor, "", "track.mp3", strings.NewReader("audio bytes"))
		require.NoError(t, err)
		assert.Equal(t, UploadStored, result.Status)
		assert.Equal(t, "track.mp3", result.Filename)
		assert.Equal(t, int64(len("audio bytes")), result.Size)
		assert.FileExists(t, filepath.Join(root, "track.mp3"))
	})

	t.Run("Collision yields numbered suffixes", func(t *testing.T) {
		result, err := fs.Upload(auth.PrivilegeEditor, "", "track.mp3", strings.NewReader("second"))
		require.NoError(t, err)
		assert.Equal(t, "track_1.mp3", result.Filename)

		result, err = fs.Upload(auth.PrivilegeEditor, "", "track.mp3", strings.NewReader("third"))
		require.NoError(t, err)
		assert.Equal(t, "track_2.mp3", result.Filename)

		assert.FileExists(t, filepath.Join(root, "track_1.mp3"))
		assert.FileExists(t, filepath.Join(root, "track_2.mp3"))
	})

	t.Run("Disallowed extension skipped silently", func(t *testing.T) {
		result, err := fs.Upload(auth.PrivilegeEditor, "", "malware.exe", strings.NewReader("nope"))
		require.NoError(t, err, "disallowed extension must not be a fatal error")
		assert.Equal(t, UploadSkipped, result.Status)
		assert.NoFileExists(t, filepath.Join(root, "malware.exe"))
	})

	t.Run("Upload into subfolder", func(t *testing.T) {
		result, err := fs.Upload(auth.PrivilegeEditor, "sub/dir", "deep.ogg", strings.NewReader("x"))
		require.NoError(t, err)
		assert.Equal(t, UploadStored, result.Status)
		assert.FileExists(t, filepath.Join(root, "sub", "dir", "deep.ogg"))
	})

	t.Run("Path components in filename discarded", func(t *testing.T) {
		result, err := fs.Upload(auth.PrivilegeEditor, "", "../evil.mp3", strings.NewReader("x"))
		require.NoError(t, err)
		assert.Equal(t, "evil.mp3", result.Filename)
		assert.FileExists(t, filepath.Join(root, "evil.mp3"))
	})

	t.Run("Viewer denied", func(t *testing.T) {
		_, err := fs.Upload(auth.PrivilegeViewer, "", "x.mp3", strings.NewReader("x"))
		assert.ErrorIs(t, err, auth.ErrUnauthorized)
	})
}

func TestUploadSizeLimit(t *testing.T) {
	root := t.TempDir()
	fs, err := NewFilesystem(config.StorageConfig{Root: root, MaxUploadBytes: 5})
	require.NoError(t, err)

	t.Run("Over-limit upload rejected whole", func(t *testing.T) {
		_, err := fs.Upload(auth.PrivilegeEditor, "", "big.mp3", strings.NewReader("0123456789"))
		assert.ErrorIs(t, err, ErrTooLarge)
		assert.NoFileExists(t, filepath.Join(root, "big.mp3"), "no truncated file may reach the final name")

		entries, err := os.ReadDir(root)
		require.NoError(t, err)
		assert.Empty(t, entries, "temp file must be cleaned up after rejection")
	})

	t.Run("Upload exactly at the limit stored intact", func(t *testing.T) {
		result, err := fs.Upload(auth.PrivilegeEditor, "", "fits.mp3", strings.NewReader("12345"))
		require.NoError(t, err)
		assert.Equal(t, UploadStored, result.Status)
		assert.Equal(t, int64(5), result.Size)

		data, err := os.ReadFile(filepath.Join(root, "fits.mp3"))
		require.NoError(t, err)
		assert.Equal(t, "12345", string(data))
	})
}

func TestOpen(t *testing.T) {
	fs, root := newTestFilesystem(t)

	require.NoError(t, os.WriteFile(filepath.Join(root, "song.mp3"), []byte("bytes"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dir"), 0755))

	t.Run("Opens an existing file", func(t *testing.T) {
		reader, info, err := fs.Open("song.mp3")
		require.NoError(t, err)
		defer reader.Close()
		assert.Equal(t, "song.mp3", info.Name())
		assert.Equal(t, int64(5), info.Size())
	})

	t.Run("Missing file is not found", func(t *testing.T) {
		_, _, err := fs.Open("absent.mp3")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Directory is not found", func(t *testing.T) {
		_, _, err := fs.Open("dir")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
