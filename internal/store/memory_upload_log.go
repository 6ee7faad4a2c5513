package store

import (
	"context"
	"sync"

	"github.com/mvoss/imgpress/internal/domain"
)

// MemoryUploadLog keeps recent records in memory. It is the default when no
// database is configured and the fake of choice in tests.
type MemoryUploadLog struct {
	mu      sync.Mutex
	records []domain.UploadRecord
}

func NewMemoryUploadLog() *MemoryUploadLog {
	return &MemoryUploadLog{}
}

func (s *MemoryUploadLog) CreateUploadRecord(_ context.Context, rec domain.UploadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *MemoryUploadLog) Records() []domain.UploadRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UploadRecord, len(s.records))
	copy(out, s.records)
	return out
}
