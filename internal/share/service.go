package share

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/audiodrop/audiodrop/internal/auth"
	"github.com/audiodrop/audiodrop/internal/storage"
)

// tokenBytes is the entropy behind every share token. The token is the
// base64url encoding of this many random bytes.
const tokenBytes = 8

// Service owns the share-link lifecycle: creation, resolution with lazy
// expiry pruning, and deletion. All store mutations go through one
// mutex, so two racing requests cannot lose each other's writes within
// this process.
type Service struct {
	mu      sync.Mutex
	store   Store
	fs      *storage.Filesystem
	baseURL string

	// now is swappable in tests to step across the expiry boundary.
	now func() time.Time
}

// NewService creates a share service. baseURL is the public prefix
// share URLs are built from, without trailing slash.
func NewService(store Store, fs *storage.Filesystem, baseURL string) *Service {
	return &Service{
		store:   store,
		fs:      fs,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create makes a share link for an existing file or folder. The target
// path is confined and must exist; whether it is a directory is fixed
// at creation time. Expiry is always creation time plus TTL.
func (s *Service) Create(ctx context.Context, priv auth.Privilege, itemPath, linkName string) (*Record, string, error) {
	if !priv.CanEdit() {
		return nil, "", auth.ErrUnauthorized
	}

	info, err := s.fs.Stat(itemPath)
	if err != nil {
		return nil, "", err
	}

	if linkName == "" {
		linkName = fmt.Sprintf("Share of %s", path.Base(slashPath(itemPath)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.store.Load(ctx)
	if err != nil {
		return nil, "", err
	}

	token, err := s.freshToken(records)
	if err != nil {
		return nil, "", err
	}

	// Timestamps persist at second precision, so they are fixed at
	// that granularity here too.
	now := s.now().Truncate(time.Second)
	record := &Record{
		Token:       token,
		LinkName:    linkName,
		ItemPath:    itemPath,
		IsDirectory: info.IsDir(),
		CreatedAt:   now,
		ExpiresAt:   now.Add(TTL),
	}
	records[token] = record

	if err := s.store.Save(ctx, records); err != nil {
		return nil, "", err
	}

	logrus.WithFields(logrus.Fields{
		"token":     token,
		"item":      itemPath,
		"directory": record.IsDirectory,
		"expires":   record.ExpiresAt,
	}).Info("Created share link")

	return record, s.shareURL(token), nil
}

// Authorize loads the record behind a token, enforcing expiry. An
// expired record is pruned from the store before ErrShareExpired is
// returned, so ErrShareNotFound and ErrShareExpired stay distinct.
func (s *Service) Authorize(ctx context.Context, token string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	record, ok := records[token]
	if !ok {
		return nil, ErrShareNotFound
	}

	if record.IsExpired(s.now()) {
		delete(records, token)
		if err := s.store.Save(ctx, records); err != nil {
			logrus.WithError(err).WithField("token", token).Error("Failed to prune expired share")
		}
		return nil, ErrShareExpired
	}

	return record, nil
}

// Resolve turns a token into a share view. The stored path is confined
// again at resolution time, independent of the creation-time check. A
// directory share lists its immediate allowed files with download
// references and its sub-folder names; a file share references the file
// itself. Existence on disk is not re-verified here.
func (s *Service) Resolve(ctx context.Context, token string) (*View, error) {
	record, err := s.Authorize(ctx, token)
	if err != nil {
		return nil, err
	}

	if _, err := s.fs.Resolver().Resolve(record.ItemPath); err != nil {
		return nil, err
	}

	view := &View{
		LinkName:    record.LinkName,
		ItemName:    path.Base(slashPath(record.ItemPath)),
		IsDirectory: record.IsDirectory,
		ExpiresAt:   record.ExpiresAt,
	}

	if record.IsDirectory {
		files, folders, err := s.fs.List(record.ItemPath)
		if err != nil {
			return nil, err
		}
		view.Folders = folders
		view.Files = make([]SharedFile, 0, len(files))
		for _, f := range files {
			view.Files = append(view.Files, SharedFile{
				Name:        f.Name,
				DownloadURL: s.downloadURL(token, f.Name),
			})
		}
	} else {
		view.FileURL = s.downloadURL(token, view.ItemName)
	}

	return view, nil
}

// DeleteLink removes a token from the store. Deleting an absent token
// is not an error.
func (s *Service) DeleteLink(ctx context.Context, priv auth.Privilege, token string) error {
	if !priv.CanEdit() {
		return auth.ErrUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	if _, ok := records[token]; !ok {
		return nil
	}
	delete(records, token)
	if err := s.store.Save(ctx, records); err != nil {
		return err
	}

	logrus.WithField("token", token).Info("Deleted share link")
	return nil
}

// ListLinks returns every stored link with its computed expiry state,
// newest first. Expired-but-unswept links are included, flagged, and
// left in place; pruning happens only on resolution.
func (s *Service) ListLinks(ctx context.Context, priv auth.Privilege) ([]LinkInfo, error) {
	if !priv.CanView() {
		return nil, auth.ErrUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	links := make([]LinkInfo, 0, len(records))
	for _, r := range records {
		links = append(links, LinkInfo{
			Token:       r.Token,
			LinkName:    r.LinkName,
			ItemPath:    r.ItemPath,
			IsDirectory: r.IsDirectory,
			ExpiresAt:   r.ExpiresAt,
			IsExpired:   r.IsExpired(now),
			URL:         s.shareURL(r.Token),
		})
	}
	sort.Slice(links, func(i, j int) bool {
		return links[i].ExpiresAt.After(links[j].ExpiresAt)
	})
	return links, nil
}

func (s *Service) shareURL(token string) string {
	return fmt.Sprintf("%s/share/%s", s.baseURL, token)
}

func (s *Service) downloadURL(token, name string) string {
	return fmt.Sprintf("%s/share/%s/files/%s", s.baseURL, token, url.PathEscape(name))
}

// freshToken samples tokens until one not present in the mapping comes
// up. Collisions are vanishingly rare at this entropy but the store
// contract guarantees uniqueness, so they are handled anyway.
func (s *Service) freshToken(existing map[string]*Record) (string, error) {
	for {
		buf := make([]byte, tokenBytes)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate share token: %w", err)
		}
		token := base64.RawURLEncoding.EncodeToString(buf)
		if _, taken := existing[token]; !taken {
			return token, nil
		}
	}
}

// slashPath normalizes stored item paths to forward slashes for display.
func slashPath(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
