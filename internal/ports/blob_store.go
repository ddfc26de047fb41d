package ports

import "context"

// Namespaced blob store used to persist the route cache between sessions.
type BlobStore interface {
	// Return the stored payload, or nil when the namespace has never been written.
	Load(ctx context.Context, namespace string) ([]byte, error)
	Save(ctx context.Context, namespace string, payload []byte) error
	Delete(ctx context.Context, namespace string) error
}
