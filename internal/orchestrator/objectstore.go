package orchestrator

import "context"

// ObjectStore is the external object-storage capability: existence checks
// for produced artifacts and public URL construction for playback.
// Exists is an idempotent, retryable read.
type ObjectStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	PublicURL(key string) string
}
