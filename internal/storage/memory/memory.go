// Package memory реализует хранилище пользователей в памяти процесса.
// Используется, когда строка подключения к PostgreSQL не задана, и в тестах.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/RonMizrahi/access-control/internal/models"
	"github.com/RonMizrahi/access-control/internal/storage"
)

// Storage хранит пользователей в map под RWMutex.
type Storage struct {
	mu    sync.RWMutex
	users map[string]models.User
}

// New создаёт пустое хранилище.
func New() *Storage {
	return &Storage{users: make(map[string]models.User)}
}

// GetUserByUsername возвращает копию записи пользователя.
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.memory.GetUserByUsername"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	u, ok := s.users[username]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	u.Roles = slices.Clone(u.Roles)
	return &u, nil
}

// CreateUser сохраняет пользователя и возвращает его ID.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.memory.CreateUser"
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Roles = models.NewRoles(user.Roles...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Username]; ok {
		return "", fmt.Errorf("%s: %w", op, storage.ErrUserExists)
	}
	s.users[user.Username] = user
	return user.ID, nil
}

// UpdatePlan меняет тарифный план пользователя.
func (s *Storage) UpdatePlan(ctx context.Context, username string, plan models.SubscriptionPlan) error {
	const op = "storage.memory.UpdatePlan"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	u.Plan = plan
	s.users[username] = u
	return nil
}
