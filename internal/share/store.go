package share

import "context"

// Store defines the interface for share persistence. The whole mapping
// is loaded and rewritten on every mutation; there is no per-record
// delete primitive. Load never fails on missing or malformed state, it
// returns an empty mapping instead.
type Store interface {
	Load(ctx context.Context) (map[string]*Record, error)
	Save(ctx context.Context, records map[string]*Record) error
}
