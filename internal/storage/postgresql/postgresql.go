// Package postgresql реализует хранилище пользователей на PostgreSQL
// через database/sql и драйвер pgx.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/RonMizrahi/access-control/internal/models"
	"github.com/RonMizrahi/access-control/internal/storage"
)

const uniqueViolation = "23505"

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New открывает пул соединений и проверяет доступность базы.
func New(ctx context.Context, storageConnectionString string) (*Storage, error) {
	const op = "storage.postgresql.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Storage{DB: db}, nil
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.DB.Close()
}

// GetUserByUsername возвращает пользователя по его username.
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.postgresql.GetUserByUsername"

	query := `SELECT id, username, password_hash, roles, plan
			  FROM users
			  WHERE username = $1`
	var (
		u     models.User
		roles string
		plan  string
	)
	err := s.DB.QueryRowContext(ctx, query, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &roles, &plan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if u.Roles, err = models.ParseRoles(strings.Split(roles, ",")); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if u.Plan, err = models.ParsePlan(plan); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &u, nil
}

// CreateUser сохраняет нового пользователя и возвращает его ID.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.postgresql.CreateUser"

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	roles := strings.Join(models.NewRoles(user.Roles...).Strings(), ",")

	query := `INSERT INTO users (id, username, password_hash, roles, plan)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id`
	var id string
	err := s.DB.QueryRowContext(ctx, query,
		user.ID, user.Username, user.PasswordHash, roles, string(user.Plan)).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// UpdatePlan меняет тарифный план пользователя.
func (s *Storage) UpdatePlan(ctx context.Context, username string, plan models.SubscriptionPlan) error {
	const op = "storage.postgresql.UpdatePlan"

	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET plan = $1, updated_at = NOW() WHERE username = $2`,
		string(plan), username)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	return nil
}
