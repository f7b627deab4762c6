package codebook

import (
	"context"
	"sync"
)

// Repository persists codebook records as a unit.  Load returns an empty
// slice and no error when nothing has been saved yet.
type Repository interface {
	Load(ctx context.Context) ([]Record, error)
	Save(ctx context.Context, records []Record) error
}

// MemoryRepository keeps records in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Load(_ context.Context) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneRecords(r.records), nil
}

func (r *MemoryRepository) Save(_ context.Context, records []Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = cloneRecords(records)
	return nil
}

func cloneRecords(in []Record) []Record {
	out := make([]Record, len(in))
	for i, rec := range in {
		out[i] = Record{
			ID:         rec.ID,
			Dictionary: append([]int(nil), rec.Dictionary...),
			Counts:     append([]int64(nil), rec.Counts...),
		}
	}
	return out
}

var _ Repository = (*MemoryRepository)(nil)
