package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiodrop/audiodrop/internal/config"
)

func newTestFilesystem(t *testing.T) (*Filesystem, string) {
	root := t.TempDir()
	fs, err := NewFilesystem(config.StorageConfig{Root: root, MaxUploadBytes: 1 << 20})
	require.NoError(t, err)
	return fs, fs.Resolver().Root()
}

func writeFileAt(t *testing.T, path string, mtime time.Time) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestListOrderingAndFiltering(t *testing.T) {
	fs, root := newTestFilesystem(t)

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	writeFileAt(t, filepath.Join(root, "a.mp3"), base)
	writeFileAt(t, filepath.Join(root, "b.wav"), base.Add(10*time.Second))
	writeFileAt(t, filepath.Join(root, "notes.txt"), base.Add(20*time.Second))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "drafts"), 0755))

	files, folders, err := fs.List("")
	require.NoError(t, err)

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"b.wav", "a.mp3"}, names, "files must be mtime-descending and exclude notes.txt")
	assert.Equal(t, []string{"drafts"}, folders, "folders included regardless of contents")
}

func TestListFolderOrdering(t *testing.T) {
	fs, root := newTestFilesystem(t)

	for _, name := range []string{"zulu", "alpha", "mike"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name), 0755))
	}

	_, folders, err := fs.List("")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mike", "zulu"}, folders)
}

func TestListMissingDirectory(t *testing.T) {
	fs, _ := newTestFilesystem(t)

	files, folders, err := fs.List("does/not/exist")
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Empty(t, folders)
}

func TestListCaseInsensitiveExtensions(t *testing.T) {
	fs, root := newTestFilesystem(t)

	writeFileAt(t, filepath.Join(root, "LOUD.MP3"), time.Now())
	writeFileAt(t, filepath.Join(root, "quiet.FlAc"), time.Now())

	files, _, err := fs.List("")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestListEscapeRejected(t *testing.T) {
	fs, _ := newTestFilesystem(t)

	_, _, err := fs.List("../outside")
	assert.ErrorIs(t, err, ErrPathEscape)
}
