package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/api-starter/internal/model"
)

// MemoryUserRepo is an in-process UserRepo used when DB_DRIVER=memory and
// by tests. Each method behaves like a single-row atomic update; values are
// copied in and out so callers never share state with the map.
type MemoryUserRepo struct {
	mu    sync.RWMutex
	users map[string]model.User
	now   func() time.Time
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{users: map[string]model.User{}, now: func() time.Time { return time.Now().UTC() }}
}

func (r *MemoryUserRepo) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; ok {
		return ErrConflict
	}
	for _, existing := range r.users {
		if existing.Email == u.Email || existing.Username == u.Username {
			return ErrConflict
		}
	}
	now := r.now()
	u.CreatedAt, u.UpdatedAt = now, now
	r.users[u.ID] = copyUser(*u)
	return nil
}

func (r *MemoryUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := copyUser(u)
	return &c, nil
}

func (r *MemoryUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	return r.findBy(func(u model.User) bool { return u.Username == username })
}

func (r *MemoryUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return r.findBy(func(u model.User) bool { return u.Email == email })
}

func (r *MemoryUserRepo) List(_ context.Context, limit, offset int) ([]model.User, error) {
	r.mu.RLock()
	all := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		all = append(all, copyUser(u))
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit >= 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *MemoryUserRepo) SetRefreshTokenHash(_ context.Context, id string, hash *string) error {
	return r.mutate(id, func(u *model.User) {
		if hash == nil {
			u.RefreshTokenHash = nil
			return
		}
		h := *hash
		u.RefreshTokenHash = &h
	})
}

func (r *MemoryUserRepo) SetActive(_ context.Context, id string, active bool) error {
	return r.mutate(id, func(u *model.User) { u.IsActive = active })
}

func (r *MemoryUserRepo) SetRole(_ context.Context, id string, role model.Role) error {
	return r.mutate(id, func(u *model.User) { u.Role = role })
}

func (r *MemoryUserRepo) findBy(match func(model.User) bool) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			c := copyUser(u)
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryUserRepo) mutate(id string, fn func(*model.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = r.now()
	r.users[id] = u
	return nil
}

func copyUser(u model.User) model.User {
	if u.RefreshTokenHash != nil {
		h := *u.RefreshTokenHash
		u.RefreshTokenHash = &h
	}
	return u
}
