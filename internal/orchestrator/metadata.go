package orchestrator

import (
	"context"
	"errors"
)

// ErrMetadataNotFound is returned by MetadataStore implementations when no
// record exists for the requested segment.
var ErrMetadataNotFound = errors.New("segment metadata not found")

// MetadataStore is the external lookup capability for segment metadata.
// Reads are idempotent and retryable.
type MetadataStore interface {
	GetSegmentMetadata(ctx context.Context, id SegmentID) (*SegmentMetadata, error)
}
