package accesscontrol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/RonMizrahi/access-control/internal/lib/password"
	"github.com/RonMizrahi/access-control/internal/models"
	"github.com/RonMizrahi/access-control/internal/storage"
)

// SeedPassword — пароль демонстрационных учётных записей.
const SeedPassword = "password"

// UserCreator создаёт учётную запись.
type UserCreator interface {
	CreateUser(ctx context.Context, user models.User) (string, error)
}

// Seed создаёт демонстрационных пользователей test-admin и test-user, если их нет.
func Seed(ctx context.Context, users UserCreator, log *slog.Logger) error {
	const op = "app.accesscontrol.Seed"

	hash, err := password.GetHash(SeedPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	seed := []models.User{
		{
			Username:     "test-admin",
			PasswordHash: hash,
			Roles:        models.NewRoles(models.RoleAdmin),
			Plan:         models.PlanProfessional,
		},
		{
			Username:     "test-user",
			PasswordHash: hash,
			Roles:        models.NewRoles(models.RoleUser),
			Plan:         models.PlanFree,
		},
	}
	for _, u := range seed {
		_, err := users.CreateUser(ctx, u)
		if errors.Is(err, storage.ErrUserExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		log.Info("seed user created", slog.String("username", u.Username), slog.String("plan", string(u.Plan)))
	}
	return nil
}
