package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"auctionhouse/internal/auction"
	"auctionhouse/internal/store"
)

// Store is an in-memory store.Store with the same CAS semantics as the
// Postgres implementation. Used by tests and single-process setups.
type Store struct {
	mu      sync.RWMutex
	records map[string]*auction.Record
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{records: make(map[string]*auction.Record)}
}

func (s *Store) Create(_ context.Context, rec *auction.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return auction.ErrConflict
	}
	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*auction.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, auction.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) CompareAndSwap(_ context.Context, rec *auction.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[rec.ID]
	if !ok {
		return auction.ErrNotFound
	}
	if cur.Version != rec.Version {
		return auction.ErrConflict
	}
	rec.Version++
	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *Store) List(_ context.Context, status auction.Status, limit, offset int) ([]auction.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]auction.Record, 0, len(s.records))
	for _, rec := range s.records {
		if status != "" && rec.Status != status {
			continue
		}
		all = append(all, *rec.Clone())
	}
	sort.Slice(all, func(i, j int) bool { return all[i].EndsAt.After(all[j].EndsAt) })

	if offset >= len(all) {
		return []auction.Record{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *Store) ListOpenExpired(_ context.Context, now time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, rec := range s.records {
		if rec.Status == auction.Open && rec.ExpiredAt(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
