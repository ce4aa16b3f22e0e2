package share

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// persistedRecord is the on-disk shape of one share. Field names match
// the historical document format, so existing share files keep working.
type persistedRecord struct {
	LinkName    string `json:"link_name,omitempty"`
	ItemName    string `json:"item_name,omitempty"`
	Filename    string `json:"filename,omitempty"` // legacy alias of item_name
	IsDirectory bool   `json:"is_directory,omitempty"`
	CreatedAt   string `json:"creation_date"`
	ExpiresAt   string `json:"expiry_date"`
}

// JSONStore persists the share mapping as a single JSON document which
// is rewritten wholesale on every save.
type JSONStore struct {
	path string
}

// NewJSONStore creates a store writing to the given file path.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Load reads the document. A missing file, unreadable file, parse
// failure or non-object document all yield an empty mapping.
func (s *JSONStore) Load(ctx context.Context) (map[string]*Record, error) {
	records := make(map[string]*Record)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logrus.WithError(err).WithField("path", s.path).Warn("Failed to read share store, starting empty")
		}
		return records, nil
	}

	var raw map[string]persistedRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		logrus.WithError(err).WithField("path", s.path).Warn("Malformed share store, starting empty")
		return records, nil
	}

	for token, pr := range raw {
		records[token] = fromPersisted(token, pr)
	}
	return records, nil
}

// Save rewrites the whole document.
func (s *JSONStore) Save(ctx context.Context, records map[string]*Record) error {
	raw := make(map[string]persistedRecord, len(records))
	for token, r := range records {
		raw[token] = persistedRecord{
			LinkName:    r.LinkName,
			ItemName:    r.ItemPath,
			IsDirectory: r.IsDirectory,
			CreatedAt:   r.CreatedAt.UTC().Format(time.RFC3339),
			ExpiresAt:   r.ExpiresAt.UTC().Format(time.RFC3339),
		}
	}

	data, err := json.MarshalIndent(raw, "", "    ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}

// fromPersisted tolerates absent optional fields: link_name falls back
// to a placeholder, item_name to the legacy filename field.
func fromPersisted(token string, pr persistedRecord) *Record {
	itemPath := pr.ItemName
	if itemPath == "" {
		itemPath = pr.Filename
	}
	linkName := pr.LinkName
	if linkName == "" {
		linkName = "Unnamed link"
	}

	createdAt, err := time.Parse(time.RFC3339, pr.CreatedAt)
	if err != nil {
		createdAt = time.Time{}
	}
	expiresAt, err := time.Parse(time.RFC3339, pr.ExpiresAt)
	if err != nil {
		// An unparseable expiry is treated as already expired so the
		// record gets pruned on first resolution instead of living
		// forever.
		expiresAt = time.Time{}
	}

	return &Record{
		Token:       token,
		LinkName:    linkName,
		ItemPath:    itemPath,
		IsDirectory: pr.IsDirectory,
		CreatedAt:   createdAt,
		ExpiresAt:   expiresAt,
	}
}
