// Package memory keeps history in process memory. Used by tests and `database.driver: memory`.
package memory

import (
	"context"
	"sort"
	"sync"

	domain "github.com/bryanwahyu/webtaxon/internal/domain/classification"
)

type HistoryRepository struct {
	mu      sync.RWMutex
	entries map[string]*domain.HistoryEntry
	order   []string
}

func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{entries: make(map[string]*domain.HistoryEntry)}
}

// Save inserts or replaces an entry by id.
func (r *HistoryRepository) Save(ctx context.Context, e *domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[e.ID]; !ok {
		r.order = append(r.order, e.ID)
	}
	r.entries[e.ID] = clone(e)
	return nil
}

func (r *HistoryRepository) Get(ctx context.Context, id string) (*domain.HistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(e), nil
}

// Paginate returns newest entries first.
func (r *HistoryRepository) Paginate(ctx context.Context, page, pageSize int) ([]*domain.HistoryEntry, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	all := r.snapshot()
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	offset := (page - 1) * pageSize
	if offset >= len(all) {
		return []*domain.HistoryEntry{}, nil
	}
	end := offset + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *HistoryRepository) All(ctx context.Context) ([]*domain.HistoryEntry, error) {
	all := r.snapshot()
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return all, nil
}

func (r *HistoryRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.order)), nil
}

func (r *HistoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.entries, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *HistoryRepository) Ping(ctx context.Context) error { return nil }

// snapshot copies entries in insertion order.
func (r *HistoryRepository) snapshot() []*domain.HistoryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.HistoryEntry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, clone(r.entries[id]))
	}
	return out
}

func clone(e *domain.HistoryEntry) *domain.HistoryEntry {
	cp := *e
	if e.Classification != nil {
		c := *e.Classification
		c.ContentTypeHierarchy = append([]string(nil), c.ContentTypeHierarchy...)
		c.Keywords = append([]string(nil), c.Keywords...)
		cp.Classification = &c
	}
	return &cp
}
