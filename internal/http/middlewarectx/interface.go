package middlewarectx

import (
	"context"

	"github.com/RonMizrahi/access-control/internal/models"
	"github.com/RonMizrahi/access-control/internal/ratelimit"
)

// TokenValidator проверяет токен доступа и возвращает личность из его claims.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*models.Identity, error)
}

// Consumer списывает токен из корзины пользователя.
type Consumer interface {
	TryConsume(ctx context.Context, username string) (ratelimit.Decision, error)
}

// RejectionMetrics учитывает отказы ограничителя запросов.
type RejectionMetrics interface {
	RateLimitRejected(plan string)
}

// ThrottleMetrics учитывает отказы ограничителя входа.
type ThrottleMetrics interface {
	LoginThrottled()
}
