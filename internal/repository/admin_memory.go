package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"botadmin/internal/model"
)

// MemoryAdminRepository keeps accounts in process memory. It backs the
// server when no MySQL DSN is configured.
type MemoryAdminRepository struct {
	mu     sync.RWMutex
	nextID uint64
	users  map[uint64]model.AdminUser
}

func NewMemoryAdminRepository() *MemoryAdminRepository {
	return &MemoryAdminRepository{users: make(map[uint64]model.AdminUser)}
}

func (r *MemoryAdminRepository) FindByUsername(_ context.Context, username string) (*model.AdminUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *MemoryAdminRepository) FindByID(_ context.Context, id uint64) (*model.AdminUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *MemoryAdminRepository) Create(_ context.Context, user *model.AdminUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return fmt.Errorf("admin %q already exists", user.Username)
		}
	}
	r.nextID++
	now := time.Now()
	user.ID = r.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = *user
	return nil
}

// Deactivate flips IsActive off; it reports whether the account existed.
func (r *MemoryAdminRepository) Deactivate(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return false
	}
	u.IsActive = false
	r.users[id] = u
	return true
}

func (r *MemoryAdminRepository) Ping(context.Context) error {
	return nil
}
