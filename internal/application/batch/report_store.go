package batch

import (
	"context"
	"sync"
)

// ReportStore persists generated error reports and hands back a stable
// object key. The production implementation writes to object storage; the
// in-memory variant backs tests and single-node deployments.
type ReportStore interface {
	// Put stores the report under the key and returns the key as stored
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// MemoryReportStore keeps reports in memory
type MemoryReportStore struct {
	mu      sync.RWMutex
	reports map[string][]byte
}

// NewMemoryReportStore creates an empty in-memory report store
func NewMemoryReportStore() *MemoryReportStore {
	return &MemoryReportStore{reports: make(map[string][]byte)}
}

// Put stores the report body under the key
func (s *MemoryReportStore) Put(_ context.Context, key, _ string, body []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(body))
	copy(cp, body)
	s.reports[key] = cp
	return key, nil
}

// Get returns a stored report body
func (s *MemoryReportStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.reports[key]
	return body, ok
}

var _ ReportStore = (*MemoryReportStore)(nil)
