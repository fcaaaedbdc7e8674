package taxonomy

import "context"

// SnapshotStore port (object storage for exported trees)
type SnapshotStore interface {
	// Put stores data under key and returns a location for it.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
