package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/audiodrop/audiodrop/internal/auth"
	"github.com/audiodrop/audiodrop/internal/config"
)

// Filesystem implements listing and mutation operations under a single
// storage root. All paths pass through the resolver.
type Filesystem struct {
	resolver *Resolver
	cfg      config.StorageConfig
}

// NewFilesystem creates the filesystem layer rooted at cfg.Root.
func NewFilesystem(cfg config.StorageConfig) (*Filesystem, error) {
	resolver, err := NewResolver(cfg.Root)
	if err != nil {
		return nil, err
	}
	return &Filesystem{resolver: resolver, cfg: cfg}, nil
}

// Resolver exposes the path resolver for collaborators that need
// confinement without the mutation surface.
func (fs *Filesystem) Resolver() *Resolver { return fs.resolver }

// CreateFolder creates parent/name and any missing ancestors. Already
// existing directories succeed. OS-level failures are logged and
// surfaced as a degraded (false) result rather than an error so the
// enclosing request can still complete.
func (fs *Filesystem) CreateFolder(priv auth.Privilege, parent, name string) (bool, error) {
	if !priv.CanEdit() {
		return false, auth.ErrUnauthorized
	}
	if name == "" {
		return false, nil
	}

	target, err := fs.resolver.Resolve(filepath.Join(parent, name))
	if err != nil {
		return false, err
	}

	if err := os.MkdirAll(target, 0755); err != nil {
		logrus.WithError(err).WithField("path", target).Error("Failed to create folder")
		return false, nil
	}
	return true, nil
}

// DeleteItem removes parent/name. Missing targets are a no-op, files
// are removed, directories are removed only when empty. A non-empty
// directory is left in place and reported through the status, never as
// an error.
func (fs *Filesystem) DeleteItem(priv auth.Privilege, parent, name string) (DeleteStatus, error) {
	if !priv.CanEdit() {
		return DeleteFailed, auth.ErrUnauthorized
	}

	target, err := fs.resolver.Resolve(filepath.Join(parent, name))
	if err != nil {
		return DeleteFailed, err
	}

	info, err := os.Stat(target)
	if os.IsNotExist(err) {
		return DeleteMissing, nil
	}
	if err != nil {
		logrus.WithError(err).WithField("path", target).Error("Failed to stat item for deletion")
		return DeleteFailed, nil
	}

	if !info.IsDir() {
		if err := os.Remove(target); err != nil {
			logrus.WithError(err).WithField("path", target).Error("Failed to delete file")
			return DeleteFailed, nil
		}
		return DeleteRemoved, nil
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		logrus.WithError(err).WithField("path", target).Error("Failed to read directory for deletion")
		return DeleteFailed, nil
	}
	if len(entries) > 0 {
		logrus.WithField("path", target).Warn("Refusing to delete non-empty folder")
		return DeleteSkippedNotEmpty, nil
	}
	if err := os.Remove(target); err != nil {
		logrus.WithError(err).WithField("path", target).Error("Failed to delete folder")
		return DeleteFailed, nil
	}
	return DeleteRemoved, nil
}

// Upload stores incoming bytes under the target directory. Disallowed
// extensions are skipped without error. Name collisions are resolved by
// appending _1, _2, ... before the extension.
func (fs *Filesystem) Upload(priv auth.Privilege, targetDir, filename string, data io.Reader) (UploadResult, error) {
	if !priv.CanEdit() {
		return UploadResult{Status: UploadSkipped}, auth.ErrUnauthorized
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !AllowedExtensions[ext] {
		logrus.WithField("filename", filename).Warn("Rejected upload with disallowed extension")
		return UploadResult{Status: UploadSkipped}, nil
	}

	dir, err := fs.resolver.Resolve(targetDir)
	if err != nil {
		return UploadResult{Status: UploadSkipped}, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return UploadResult{Status: UploadSkipped}, NewErrorWithCause("CreateDirectory", "Failed to create target directory", err)
	}

	// Only the base name of the incoming filename is used; any path
	// component the client sends is discarded.
	base := filepath.Base(filepath.FromSlash(filename))
	finalName, err := fs.collisionSafeName(dir, base)
	if err != nil {
		return UploadResult{Status: UploadSkipped}, err
	}
	finalPath := filepath.Join(dir, finalName)

	tempFile, err := os.CreateTemp(dir, ".tmp_")
	if err != nil {
		return UploadResult{Status: UploadSkipped}, NewErrorWithCause("CreateTempFile", "Failed to create temporary file", err)
	}
	defer os.Remove(tempFile.Name())
	defer tempFile.Close()

	// Read one byte past the cap so an over-limit body is detected and
	// rejected whole instead of being stored truncated.
	reader := io.Reader(data)
	if fs.cfg.MaxUploadBytes > 0 {
		reader = io.LimitReader(data, fs.cfg.MaxUploadBytes+1)
	}
	size, err := io.Copy(tempFile, reader)
	if err != nil {
		return UploadResult{Status: UploadSkipped}, NewErrorWithCause("WriteData", "Failed to write upload", err)
	}
	if fs.cfg.MaxUploadBytes > 0 && size > fs.cfg.MaxUploadBytes {
		logrus.WithFields(logrus.Fields{
			"filename": filename,
			"limit":    fs.cfg.MaxUploadBytes,
		}).Warn("Rejected upload over size limit")
		return UploadResult{Status: UploadSkipped}, ErrTooLarge
	}
	tempFile.Close()

	if err := os.Rename(tempFile.Name(), finalPath); err != nil {
		return UploadResult{Status: UploadSkipped}, NewErrorWithCause("AtomicMove", "Failed to move upload to final location", err)
	}

	logrus.WithFields(logrus.Fields{
		"filename": finalName,
		"dir":      targetDir,
		"size":     size,
	}).Info("Stored upload")

	return UploadResult{Status: UploadStored, Filename: finalName, Size: size}, nil
}

// Open returns a reader for a confined file. Directories and missing
// paths fail with ErrNotFound.
func (fs *Filesystem) Open(relative string) (io.ReadCloser, os.FileInfo, error) {
	full, err := fs.resolver.Resolve(relative)
	if err != nil {
		return nil, nil, err
	}

	info, err := os.Stat(full)
	if os.IsNotExist(err) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, NewErrorWithCause("StatFile", "Failed to stat file", err)
	}
	if info.IsDir() {
		return nil, nil, ErrNotFound
	}

	file, err := os.Open(full)
	if err != nil {
		return nil, nil, NewErrorWithCause("OpenFile", "Failed to open file", err)
	}
	return file, info, nil
}

// Stat resolves a path and reports whether it exists and whether it is
// a directory.
func (fs *Filesystem) Stat(relative string) (os.FileInfo, error) {
	full, err := fs.resolver.Resolve(relative)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, NewErrorWithCause("StatFile", "Failed to stat path", err)
	}
	return info, nil
}

// collisionSafeName returns base unchanged when unused, otherwise
// name_1.ext, name_2.ext, ... until a free name is found.
func (fs *Filesystem) collisionSafeName(dir, base string) (string, error) {
	candidate := base
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for counter := 1; ; counter++ {
		_, err := os.Stat(filepath.Join(dir, candidate))
		if os.IsNotExist(err) {
			return candidate, nil
		}
		if err != nil {
			return "", NewErrorWithCause("StatFile", "Failed to probe candidate name", err)
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, counter, ext)
	}
}
