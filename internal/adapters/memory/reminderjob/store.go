package reminderjob

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rice-apps/carpool-backend/internal/domain"
	"github.com/rice-apps/carpool-backend/internal/ports/out/reminderjob"
)

// Store is an in-memory implementation of reminderjob.Store.
// It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	byRideID map[domain.RideID]reminderjob.Job
}

func NewStore() *Store {
	return &Store{
		byRideID: make(map[domain.RideID]reminderjob.Job),
	}
}

func (s *Store) Create(ctx context.Context, j reminderjob.Job) error {
	_ = ctx
	if j.RideID == "" {
		return reminderjob.ErrAlreadyExists // treat empty key as invalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byRideID[j.RideID]; ok {
		return reminderjob.ErrAlreadyExists
	}
	s.byRideID[j.RideID] = cloneJob(j)
	return nil
}

func (s *Store) GetByRideID(ctx context.Context, id domain.RideID) (reminderjob.Job, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.byRideID[id]
	if !ok {
		return reminderjob.Job{}, reminderjob.ErrNotFound
	}
	return cloneJob(j), nil
}

func (s *Store) Save(ctx context.Context, j reminderjob.Job) error {
	_ = ctx
	if j.RideID == "" {
		return reminderjob.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byRideID[j.RideID] = cloneJob(j)
	return nil
}

func (s *Store) CancelByRideID(ctx context.Context, id domain.RideID) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byRideID[id]; !ok {
		return 0, nil
	}
	delete(s.byRideID, id)
	return 1, nil
}

func (s *Store) ListDue(ctx context.Context, now time.Time) ([]reminderjob.Job, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]reminderjob.Job, 0)
	for _, j := range s.byRideID {
		if !j.FireAt.After(now) {
			out = append(out, cloneJob(j))
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].FireAt.Equal(out[k].FireAt) {
			return out[i].FireAt.Before(out[k].FireAt)
		}
		return string(out[i].RideID) < string(out[k].RideID)
	})
	return out, nil
}

func cloneJob(j reminderjob.Job) reminderjob.Job {
	cp := j
	if j.Recipients != nil {
		cp.Recipients = append([]string(nil), j.Recipients...)
	}
	return cp
}
