package transaction

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu    sync.RWMutex
	items map[string]Transaction
	now   func() time.Time
}

// NewMemoryRepository builds an in-memory transaction store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{items: make(map[string]Transaction), now: time.Now}
}

func (r *memoryRepository) Create(_ context.Context, tx Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx.UpdatedAt = tx.CreatedAt
	r.items[tx.ID] = tx
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tx, ok := r.items[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return tx, nil
}

func (r *memoryRepository) List(_ context.Context, filter Filter) ([]Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Transaction
	for _, tx := range r.items {
		if filter.UserID != "" && tx.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		if filter.Type != "" && tx.Type != filter.Type {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *memoryRepository) UpdateStatus(_ context.Context, id, from, to string, patch Patch) (Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.items[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if tx.Status != from {
		return Transaction{}, ErrStatusConflict
	}
	tx.Status = to
	if patch.MobileMoneyReference != nil {
		tx.MobileMoneyReference = *patch.MobileMoneyReference
	}
	if patch.CryptoTxHash != nil {
		tx.CryptoTxHash = *patch.CryptoTxHash
	}
	if patch.AdminNotes != nil {
		tx.AdminNotes = *patch.AdminNotes
	}
	tx.UpdatedAt = r.now().UTC()
	r.items[id] = tx
	return tx, nil
}

func (r *memoryRepository) ListStale(_ context.Context, updatedBefore time.Time, limit int) ([]Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Transaction
	for _, tx := range r.items {
		if !tx.Terminal() && tx.UpdatedAt.Before(updatedBefore) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepository) Touch(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	tx.UpdatedAt = r.now().UTC()
	r.items[id] = tx
	return nil
}
