// Package services содержит логику аутентификации: проверку пароля,
// выпуск токена и проверку токена для удалённых клиентов.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/RonMizrahi/access-control/internal/lib/jwt"
	"github.com/RonMizrahi/access-control/internal/lib/password"
	"github.com/RonMizrahi/access-control/internal/lib/sl"
	"github.com/RonMizrahi/access-control/internal/models"
	"github.com/RonMizrahi/access-control/internal/storage"
)

// ErrInvalidCredentials возвращается и для неизвестного пользователя, и для неверного пароля.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserRepository описывает поиск пользователя по имени.
type UserRepository interface {
	// GetUserByUsername возвращает пользователя или storage.ErrUserNotFound.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// PasswordVerifier сравнивает пароль с сохранённым хэшем.
type PasswordVerifier interface {
	Matches(plain, hash string) bool
}

// LoginMetrics принимает события входа для метрик.
type LoginMetrics interface {
	LoginAttempt()
	LoginSucceeded()
	LoginFailed()
	ObserveLoginDuration(d time.Duration)
}

// AuditPublisher публикует события аудита входа.
type AuditPublisher interface {
	PublishLogin(ctx context.Context, event models.LoginEvent) error
}

// LoginRequest — данные попытки входа.
type LoginRequest struct {
	Username   string
	Password   string
	RemoteAddr string
}

// AuthService отвечает за вход и валидацию токенов.
type AuthService struct {
	log      *slog.Logger
	users    UserRepository
	jwtMaker jwt.Maker
	verifier PasswordVerifier
	metrics  LoginMetrics
	audit    AuditPublisher
	now      func() time.Time
}

// Option настраивает AuthService.
type Option func(*AuthService)

// WithPasswordVerifier подменяет проверку пароля (по умолчанию bcrypt).
func WithPasswordVerifier(v PasswordVerifier) Option {
	return func(s *AuthService) { s.verifier = v }
}

// WithMetrics подключает метрики входа.
func WithMetrics(m LoginMetrics) Option {
	return func(s *AuthService) { s.metrics = m }
}

// WithAudit подключает публикацию событий аудита.
func WithAudit(a AuditPublisher) Option {
	return func(s *AuthService) { s.audit = a }
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(log *slog.Logger, users UserRepository, jwtMaker jwt.Maker, opts ...Option) *AuthService {
	s := &AuthService{
		log:      log,
		users:    users,
		jwtMaker: jwtMaker,
		verifier: password.Bcrypt{},
		metrics:  noopMetrics{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login проверяет пароль пользователя и выпускает токен доступа.
//
// Неизвестный пользователь и неверный пароль неразличимы для вызывающего:
// оба случая возвращают ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (string, error) {
	const op = "services.auth.Login"
	log := s.log.With(sl.Op(op), slog.String("username", req.Username))

	start := s.now()
	s.metrics.LoginAttempt()
	defer func() { s.metrics.ObserveLoginDuration(s.now().Sub(start)) }()

	token, err := s.login(ctx, req)
	success := err == nil
	if success {
		s.metrics.LoginSucceeded()
		log.Info("login succeeded")
	} else {
		s.metrics.LoginFailed()
		if errors.Is(err, ErrInvalidCredentials) {
			log.Info("login rejected")
		} else {
			log.Error("login failed", sl.Err(err))
		}
	}
	s.publish(ctx, log, models.LoginEvent{
		Username:   req.Username,
		Success:    success,
		At:         start.UTC(),
		RemoteAddr: req.RemoteAddr,
	})

	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

func (s *AuthService) login(ctx context.Context, req LoginRequest) (string, error) {
	user, err := s.users.GetUserByUsername(ctx, req.Username)
	if errors.Is(err, storage.ErrUserNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if !s.verifier.Matches(req.Password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	return s.jwtMaker.GenerateToken(user.Username, user.Roles.Strings())
}

func (s *AuthService) publish(ctx context.Context, log *slog.Logger, event models.LoginEvent) {
	if s.audit == nil {
		return
	}
	if err := s.audit.PublishLogin(ctx, event); err != nil {
		log.Warn("failed to publish login event", sl.Err(err))
	}
}

// ValidateToken проверяет токен и возвращает личность из его claims.
// Хранилище не опрашивается.
func (s *AuthService) ValidateToken(_ context.Context, token string) (*models.Identity, error) {
	const op = "services.auth.ValidateToken"

	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	roles, err := models.ParseRoles(claims.Roles)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, jwt.ErrTokenMalformed, err)
	}
	return &models.Identity{Username: claims.Username(), Roles: roles}, nil
}

type noopMetrics struct{}

func (noopMetrics) LoginAttempt()                      {}
func (noopMetrics) LoginSucceeded()                    {}
func (noopMetrics) LoginFailed()                       {}
func (noopMetrics) ObserveLoginDuration(time.Duration) {}
