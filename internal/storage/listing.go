package storage

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// List enumerates the immediate children of a confined directory.
// Files are limited to the allowed audio extensions and ordered by
// last-modified time descending; folders are included unconditionally
// and ordered lexicographically. A missing directory yields two empty
// slices rather than an error.
func (fs *Filesystem) List(relative string) ([]FileEntry, []string, error) {
	dir, err := fs.resolver.Resolve(relative)
	if err != nil {
		return nil, nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []FileEntry{}, []string{}, nil
		}
		return nil, nil, NewErrorWithCause("ReadDir", "Failed to read directory", err)
	}

	files := []FileEntry{}
	folders := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			folders = append(folders, entry.Name())
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !AllowedExtensions[ext] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			logrus.WithError(err).WithField("name", entry.Name()).Warn("Skipping unreadable entry")
			continue
		}
		files = append(files, FileEntry{
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Strings(folders)
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})

	return files, folders, nil
}
