package index

import "context"

// EntryIndex defines the search index operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type EntryIndex interface {
	Upsert(row Row, body string) error
	Delete(key string) (string, error)
	GetChecksum(key string) (string, error)
	AllChecksums() (map[string]string, error)
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
	Count() (int, error)
	Close() error
}

// Verify *DB satisfies EntryIndex at compile time.
var _ EntryIndex = (*DB)(nil)
