package kvstore

import "context"

// Store is the remote key-value store used for per-player assignment
// records. Keys are slash-separated paths (e.g. "players/<uid>/scene").
// Writes are last-writer-wins per path; no multi-path transaction is
// assumed or required.
type Store interface {
	// Read returns the value at path. The second return is false when the
	// path has never been written.
	Read(ctx context.Context, path string) (string, bool, error)

	// Write stores the value at path, replacing any previous value
	Write(ctx context.Context, path string, value string) error

	// Delete removes the value at path, if any
	Delete(ctx context.Context, path string) error
}
