package riderepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rice-apps/carpool-backend/internal/domain"
	"github.com/rice-apps/carpool-backend/internal/ports/out/riderepo"
)

// Repo is an in-memory implementation of riderepo.Repository.
// It is safe for concurrent use; membership mutations hold the write lock so
// AddRider/RemoveRider are atomic.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.RideID]riderepo.Ride
}

func NewRepo() *Repo {
	return &Repo{
		byID: make(map[domain.RideID]riderepo.Ride),
	}
}

func (r *Repo) Create(ctx context.Context, rd riderepo.Ride) error {
	_ = ctx
	if rd.ID == "" {
		return riderepo.ErrAlreadyExists // treat empty ID as invalid
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[rd.ID]; ok {
		return riderepo.ErrAlreadyExists
	}
	r.byID[rd.ID] = cloneRide(rd)
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.RideID) (riderepo.Ride, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	rd, ok := r.byID[id]
	if !ok {
		return riderepo.Ride{}, riderepo.ErrNotFound
	}
	return cloneRide(rd), nil
}

func (r *Repo) AddRider(ctx context.Context, id domain.RideID, userID domain.UserID) (riderepo.Ride, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	rd, ok := r.byID[id]
	if !ok {
		return riderepo.Ride{}, riderepo.ErrNotFound
	}
	for _, rid := range rd.RiderIDs {
		if rid == userID {
			return riderepo.Ride{}, riderepo.ErrRiderExists
		}
	}
	rd.RiderIDs = append(rd.RiderIDs, userID)
	rd.UpdatedAt = time.Now().UTC()
	r.byID[id] = cloneRide(rd)
	return cloneRide(rd), nil
}

func (r *Repo) RemoveRider(ctx context.Context, id domain.RideID, userID domain.UserID) (riderepo.Ride, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	rd, ok := r.byID[id]
	if !ok {
		return riderepo.Ride{}, riderepo.ErrNotFound
	}
	kept := make([]domain.UserID, 0, len(rd.RiderIDs))
	found := false
	for _, rid := range rd.RiderIDs {
		if rid == userID {
			found = true
			continue
		}
		kept = append(kept, rid)
	}
	if !found {
		return riderepo.Ride{}, riderepo.ErrRiderNotFound
	}
	rd.RiderIDs = kept
	rd.UpdatedAt = time.Now().UTC()
	r.byID[id] = cloneRide(rd)
	return cloneRide(rd), nil
}

func (r *Repo) Delete(ctx context.Context, id domain.RideID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}

func (r *Repo) List(ctx context.Context) ([]riderepo.Ride, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]riderepo.Ride, 0, len(r.byID))
	for _, rd := range r.byID {
		out = append(out, cloneRide(rd))
	}
	sortRides(out)
	return out, nil
}

func (r *Repo) ListDepartingBefore(ctx context.Context, t time.Time) ([]riderepo.Ride, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]riderepo.Ride, 0)
	for _, rd := range r.byID {
		if rd.DepartingAt.Before(t) {
			out = append(out, cloneRide(rd))
		}
	}
	sortRides(out)
	return out, nil
}

func (r *Repo) ListDepartingAtOrAfter(ctx context.Context, t time.Time) ([]riderepo.Ride, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]riderepo.Ride, 0)
	for _, rd := range r.byID {
		if !rd.DepartingAt.Before(t) {
			out = append(out, cloneRide(rd))
		}
	}
	sortRides(out)
	return out, nil
}

func (r *Repo) ListForRider(ctx context.Context, userID domain.UserID) ([]riderepo.Ride, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]riderepo.Ride, 0)
	for _, rd := range r.byID {
		for _, rid := range rd.RiderIDs {
			if rid == userID {
				out = append(out, cloneRide(rd))
				break
			}
		}
	}
	sortRides(out)
	return out, nil
}

func cloneRide(rd riderepo.Ride) riderepo.Ride {
	cp := rd
	if rd.RiderIDs != nil {
		cp.RiderIDs = append([]domain.UserID(nil), rd.RiderIDs...)
	}
	return cp
}

func sortRides(rs []riderepo.Ride) {
	// Departure ascending; ties broken by ID to keep listings deterministic.
	sort.Slice(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if !a.DepartingAt.Equal(b.DepartingAt) {
			return a.DepartingAt.Before(b.DepartingAt)
		}
		return string(a.ID) < string(b.ID)
	})
}
