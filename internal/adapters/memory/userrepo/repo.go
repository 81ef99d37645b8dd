package userrepo

import (
	"context"
	"sync"

	"github.com/rice-apps/carpool-backend/internal/domain"
	"github.com/rice-apps/carpool-backend/internal/ports/out/userrepo"
)

// Repo is an in-memory implementation of userrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	byID         map[domain.UserID]userrepo.User
	idByUsername map[string]domain.UserID
}

func NewRepo() *Repo {
	return &Repo{
		byID:         make(map[domain.UserID]userrepo.User),
		idByUsername: make(map[string]domain.UserID),
	}
}

func (r *Repo) Create(ctx context.Context, u userrepo.User) error {
	_ = ctx
	if u.ID == "" {
		return userrepo.ErrAlreadyExists // treat empty ID as invalid
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[u.ID]; ok {
		return userrepo.ErrAlreadyExists
	}
	if _, ok := r.idByUsername[u.Username]; ok {
		return userrepo.ErrAlreadyExists
	}

	r.byID[u.ID] = cloneUser(u)
	r.idByUsername[u.Username] = u.ID
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.UserID) (userrepo.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return userrepo.User{}, userrepo.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *Repo) GetByUsername(ctx context.Context, username string) (userrepo.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idByUsername[username]
	if !ok {
		return userrepo.User{}, userrepo.ErrNotFound
	}
	u, ok := r.byID[id]
	if !ok {
		return userrepo.User{}, userrepo.ErrNotFound
	}
	return cloneUser(u), nil
}

func cloneUser(u userrepo.User) userrepo.User {
	out := u
	out.FirstName = cloneStringPtr(u.FirstName)
	out.LastName = cloneStringPtr(u.LastName)
	return out
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
