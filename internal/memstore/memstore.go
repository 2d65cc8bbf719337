// Package memstore is an in-process expense backend used for demo mode
// and tests. It implements the same operations as the REST client.
package memstore

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"

	"kharcha/internal/core"
)

// ErrNotFound is returned for updates and deletes against unknown ids.
var ErrNotFound = errors.New("expense not found")

type Store struct {
	mu     sync.Mutex
	items  map[string]core.Expense
	nextID int64
}

func New() *Store {
	return &Store{items: make(map[string]core.Expense), nextID: 1}
}

// Seed inserts records as-is, keeping their ids. Test helper.
func (s *Store) Seed(records ...core.Expense) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range records {
		s.items[e.ID] = e
	}
}

func (s *Store) ListMonthly(_ context.Context, year, month int) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.items {
		if e.Date.InMonth(year, month) {
			out = append(out, e)
		}
	}
	// Map iteration order is random; downstream tie-breaks depend on input
	// order, so pin it.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) Create(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = "mem-" + strconv.FormatInt(s.nextID, 10)
	s.nextID++
	s.items[e.ID] = e
	return e, nil
}

func (s *Store) Update(_ context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[e.ID]; !ok {
		return ErrNotFound
	}
	s.items[e.ID] = e
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}
