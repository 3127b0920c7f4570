package leads

import (
	"context"
	"sort"
	"sync"
)

// Repository is the audit log of accepted-for-delivery submissions.
type Repository interface {
	Append(ctx context.Context, rec Record) error
	ListRecent(ctx context.Context, limit int) ([]Record, error)
	GetByID(ctx context.Context, id string) (*Record, error)
}

// InMemoryRepository keeps the audit log in process memory
type InMemoryRepository struct {
	mu      sync.RWMutex
	records []Record
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Append stores a copy of rec
func (r *InMemoryRepository) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
	return nil
}

// ListRecent returns up to limit records, newest first.
func (r *InMemoryRepository) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	r.mu.RLock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetByID retrieves a record by ID
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.records {
		if r.records[i].ID == id {
			rec := r.records[i]
			return &rec, nil
		}
	}
	return nil, ErrSubmissionNotFound
}
