package share

import (
	"errors"
	"time"
)

// Common share errors
var (
	ErrShareNotFound = errors.New("share not found")
	ErrShareExpired  = errors.New("share has expired")
)

// TTL is the fixed lifetime of every share link.
const TTL = 48 * time.Hour

// Record is one share link. ItemPath is the path of the shared item
// relative to the storage root; it is confined at creation time and
// again at every resolution.
type Record struct {
	Token       string    `json:"token"`
	LinkName    string    `json:"linkName"`
	ItemPath    string    `json:"itemPath"`
	IsDirectory bool      `json:"isDirectory"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// IsExpired checks if the record is past its expiry.
func (r *Record) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// SharedFile pairs a listed file with a servable download reference.
type SharedFile struct {
	Name        string `json:"name"`
	DownloadURL string `json:"downloadUrl"`
}

// View is what resolving a valid token yields. For a directory share,
// Files holds the immediate allowed files and Folders the sub-folder
// names (display only, not independently navigable). For a file share,
// FileURL references the file itself.
type View struct {
	LinkName    string       `json:"linkName"`
	ItemName    string       `json:"itemName"`
	IsDirectory bool         `json:"isDirectory"`
	ExpiresAt   time.Time    `json:"expiresAt"`
	Files       []SharedFile `json:"files,omitempty"`
	Folders     []string     `json:"folders,omitempty"`
	FileURL     string       `json:"fileUrl,omitempty"`
}

// LinkInfo is the management listing of one share link, expired or not.
type LinkInfo struct {
	Token       string    `json:"token"`
	LinkName    string    `json:"linkName"`
	ItemPath    string    `json:"itemPath"`
	IsDirectory bool      `json:"isDirectory"`
	ExpiresAt   time.Time `json:"expiresAt"`
	IsExpired   bool      `json:"isExpired"`
	URL         string    `json:"url"`
}
