package orchestrator

import (
	"context"
	"fmt"
	"sync"
)

// InMemoryMetadataStore is an in-memory MetadataStore for tests and local
// development.
type InMemoryMetadataStore struct {
	mu       sync.RWMutex
	segments map[SegmentID]SegmentMetadata
}

// NewInMemoryMetadataStore returns a new empty in-memory metadata store.
func NewInMemoryMetadataStore() *InMemoryMetadataStore {
	return &InMemoryMetadataStore{
		segments: make(map[SegmentID]SegmentMetadata),
	}
}

// Put registers metadata for a segment. Metadata is created out-of-band in
// production; Put is the test/dev stand-in for that path.
func (s *InMemoryMetadataStore) Put(m SegmentMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments[m.SegmentID] = m
}

// GetSegmentMetadata implements MetadataStore.
func (s *InMemoryMetadataStore) GetSegmentMetadata(_ context.Context, id SegmentID) (*SegmentMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.segments[id]
	if !ok {
		return nil, ErrMetadataNotFound
	}
	return &m, nil
}

// InMemoryObjectStore is an in-memory ObjectStore for tests and local
// development. Keys are marked present with Put.
type InMemoryObjectStore struct {
	mu           sync.RWMutex
	objects      map[string]struct{}
	publicDomain string
}

// NewInMemoryObjectStore returns an empty in-memory object store whose
// public URLs are rooted at publicDomain.
func NewInMemoryObjectStore(publicDomain string) *InMemoryObjectStore {
	return &InMemoryObjectStore{
		objects:      make(map[string]struct{}),
		publicDomain: publicDomain,
	}
}

// Put marks an object as existing.
func (s *InMemoryObjectStore) Put(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = struct{}{}
}

// Exists implements ObjectStore.
func (s *InMemoryObjectStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

// PublicURL implements ObjectStore.
func (s *InMemoryObjectStore) PublicURL(key string) string {
	return fmt.Sprintf("https://%s/%s", s.publicDomain, key)
}
