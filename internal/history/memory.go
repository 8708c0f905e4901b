package history

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository, indexed
// by owner.
type MemoryRepository struct {
	mu      sync.RWMutex
	byOwner map[string][]Record
}

// NewMemoryRepository creates a new in-memory history repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byOwner: make(map[string][]Record),
	}
}

// Add stores a record.
func (r *MemoryRepository) Add(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byOwner[rec.OwnerID] = append(r.byOwner[rec.OwnerID], rec)
	return nil
}

// ListByOwner returns copies of the owner's records ordered by CreatedAt
// descending.
func (r *MemoryRepository) ListByOwner(_ context.Context, ownerID string, f Filter) ([]Record, error) {
	r.mu.RLock()
	records := r.byOwner[ownerID]
	result := make([]Record, 0, len(records))
	for _, rec := range records {
		if f.Modality != "" && rec.Modality != f.Modality {
			continue
		}
		result = append(result, rec)
	}
	r.mu.RUnlock()

	slices.SortStableFunc(result, func(a, b Record) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})

	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

// Delete removes one of the owner's records.
func (r *MemoryRepository) Delete(_ context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := r.byOwner[ownerID]
	i := slices.IndexFunc(records, func(rec Record) bool { return rec.ID == id })
	if i < 0 {
		return ErrRecordNotFound
	}
	r.byOwner[ownerID] = slices.Delete(records, i, i+1)
	return nil
}
