package user

import (
	"context"
	"proactiveCacher/domain"
	"proactiveCacher/pkg/logger"
	"sort"
	"sync"
)

// Registry is the in-memory set of registered users. Device authentication
// and batch decisions read it; Refresh reloads it from the store.
type Registry struct {
	mu    sync.RWMutex
	repo  UserRepository
	users map[string]domain.User
}

func NewRegistry(repo UserRepository) *Registry {
	return &Registry{
		repo:  repo,
		users: make(map[string]domain.User),
	}
}

func (r *Registry) Refresh(ctx context.Context) error {
	users, err := r.repo.FindAll(ctx)
	if err != nil {
		return err
	}

	next := make(map[string]domain.User, len(users))
	for _, u := range users {
		next[u.ID] = u
	}

	r.mu.Lock()
	r.users = next
	r.mu.Unlock()

	logger.Info("User registry loaded", "users", len(next))
	return nil
}

func (r *Registry) Contains(id string) bool {
	_, ok := r.Get(id)
	return ok
}

func (r *Registry) Get(id string) (domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	return u, ok
}

func (r *Registry) Add(u domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// Snapshot returns the users ordered by ID.
func (r *Registry) Snapshot() []domain.User {
	r.mu.RLock()
	out := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
