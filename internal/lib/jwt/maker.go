// Package jwt реализует кодек подписанных токенов доступа (HS256).
//
// Maker выпускает токен с username и ролями и проверяет его подпись и срок жизни.
// Ключ подписи задаётся при старте процесса и дальше не меняется, поэтому
// методы Maker безопасны для конкурентного вызова без блокировок.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL — время жизни токена по умолчанию.
const DefaultTokenTTL = 24 * time.Hour

// Ошибки проверки токена. На границе HTTP все три сводятся к одному ответу 401.
var (
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenInvalidSignature = errors.New("token signature is invalid")
	ErrTokenExpired          = errors.New("token expired")
)

// Maker описывает интерфейс для выпуска и проверки токенов.
type Maker interface {
	// GenerateToken выпускает токен для username с набором ролей.
	GenerateToken(username string, roles []string) (string, error)
	// ParseToken проверяет токен и возвращает его claims.
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// CustomClaims описывает данные, хранящиеся в токене.
type CustomClaims struct {
	Roles                []string `json:"roles"` // Роли пользователя на момент выпуска
	jwt.RegisteredClaims          // sub, iat, exp
}

// Username возвращает subject токена.
func (c *CustomClaims) Username() string {
	return c.Subject
}

// MakerImpl реализует Maker на секретном ключе и фиксированном TTL.
type MakerImpl struct {
	secretKey []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

// Option настраивает MakerImpl.
type Option func(*MakerImpl)

// WithClock подменяет источник текущего времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(m *MakerImpl) { m.now = now }
}

// NewJWTMaker создаёт MakerImpl. Нулевой ttl заменяется на DefaultTokenTTL.
func NewJWTMaker(secretKey string, ttl time.Duration, opts ...Option) *MakerImpl {
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	m := &MakerImpl{
		secretKey: []byte(secretKey),
		tokenTTL:  ttl,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL возвращает время жизни выпускаемых токенов.
func (m *MakerImpl) TTL() time.Duration {
	return m.tokenTTL
}

// GenerateToken создаёт токен {sub, roles, iat, exp = iat + TTL}, подписанный HS256.
func (m *MakerImpl) GenerateToken(username string, roles []string) (string, error) {
	const op = "jwt.GenerateToken"
	if username == "" {
		return "", fmt.Errorf("%s: empty username", op)
	}
	if roles == nil {
		roles = []string{}
	}

	issuedAt := jwt.NewNumericDate(m.now())
	claims := CustomClaims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  issuedAt,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(m.tokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

// ParseToken проверяет подпись, структуру и срок жизни токена.
//
// Токен действителен, пока now < exp; ровно в момент exp он уже просрочен.
// Возвращаемая ошибка оборачивает одну из ErrTokenMalformed,
// ErrTokenInvalidSignature или ErrTokenExpired.
func (m *MakerImpl) ParseToken(tokenStr string) (*CustomClaims, error) {
	const op = "jwt.ParseToken"

	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return m.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenMalformed)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%s: missing subject: %w", op, ErrTokenMalformed)
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenInvalidSignature
	default:
		return ErrTokenMalformed
	}
}
