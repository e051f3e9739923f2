package middlewarectx

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"

	"github.com/RonMizrahi/access-control/internal/http/response"
	"github.com/RonMizrahi/access-control/internal/lib/sl"
	"github.com/RonMizrahi/access-control/internal/ratelimit"
)

const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderRetryAfter = "Retry-After"

	// MsgRateLimitExceeded — тело ответа 429.
	MsgRateLimitExceeded = "rate limit exceeded"
)

// RateLimit возвращает middleware, который списывает токен из корзины
// пользователя до вызова обработчика. Запросы без личности пропускаются.
func RateLimit(limiter Consumer, metrics RejectionMetrics, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			const op = "middlewarectx.RateLimit"
			log := log.With(
				sl.Op(op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("username", id.Username),
			)

			d, err := limiter.TryConsume(r.Context(), id.Username)
			if errors.Is(err, ratelimit.ErrUnknownUser) {
				log.Info("token subject not found in store")
				response.WriteError(w, r, http.StatusUnauthorized, MsgUnauthenticated)
				return
			}
			if err != nil {
				log.Error("failed to check rate limit", sl.Err(err))
				response.WriteError(w, r, http.StatusInternalServerError, "internal error")
				return
			}

			w.Header().Set(HeaderLimit, strconv.Itoa(d.Limit))
			w.Header().Set(HeaderRemaining, strconv.Itoa(d.Remaining))

			if !d.Allowed {
				metrics.RateLimitRejected(string(d.Plan))
				w.Header().Set(HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(d)))
				log.Info("rate limit exceeded", slog.String("plan", string(d.Plan)))
				response.WriteError(w, r, http.StatusTooManyRequests, MsgRateLimitExceeded)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// retryAfterSeconds округляет ожидание вверх до целых секунд, не меньше 1.
func retryAfterSeconds(d ratelimit.Decision) int {
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	return max(secs, 1)
}
