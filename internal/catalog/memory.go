package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"catalog-recon/internal/reconcile/model"
)

// MemoryStore: каталог в памяти (dev-режим и тесты).
type MemoryStore struct {
	mu       sync.RWMutex
	products map[int64]model.Product
}

func NewMemoryStore(products ...model.Product) *MemoryStore {
	s := &MemoryStore{products: make(map[int64]model.Product, len(products))}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *MemoryStore) List(ctx context.Context) ([]model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return model.Product{}, fmt.Errorf("%w: %d", model.ErrProductNotFound, id)
	}
	return p, nil
}

func (s *MemoryStore) BulkUpdate(ctx context.Context, mode model.Mode, items []model.ValueUpdate) (model.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := model.BulkResult{Updated: []int64{}, Errors: []model.ItemError{}}
	for _, it := range items {
		p, ok := s.products[it.ProductID]
		if !ok {
			res.Errors = append(res.Errors, model.ItemError{ProductID: it.ProductID, Error: model.ErrProductNotFound.Error()})
			continue
		}
		if it.Value < 0 {
			res.Errors = append(res.Errors, model.ItemError{ProductID: it.ProductID, Error: model.ErrInvalidValue.Error()})
			continue
		}
		if mode == model.ModeCost {
			p.Cost = it.Value
		} else {
			p.Price = it.Value
		}
		s.products[it.ProductID] = p
		res.Updated = append(res.Updated, it.ProductID)
	}
	return res, nil
}

func (s *MemoryStore) Update(ctx context.Context, id int64, patch model.ProductPatch) (model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return model.Product{}, fmt.Errorf("%w: %d", model.ErrProductNotFound, id)
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Cost != nil {
		p.Cost = *patch.Cost
	}
	s.products[id] = p
	return p, nil
}

// Delete нужен для сценариев, где товар пропал между анализом и записью.
func (s *MemoryStore) Delete(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, id)
}
