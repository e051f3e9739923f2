// Package middlewarectx содержит HTTP middleware конвейера запроса:
// определение личности по токену, ограничение запросов по плану,
// проверку ролей и ограничение частоты входа.
//
// Identity проверяет заголовок Authorization: Bearer <token> и кладёт
// models.Identity в контекст запроса. Публичные пути пропускаются без личности.
// Любая ошибка проверки токена даёт один и тот же ответ 401.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/RonMizrahi/access-control/internal/http/response"
	"github.com/RonMizrahi/access-control/internal/lib/sl"
	"github.com/RonMizrahi/access-control/internal/models"
)

const (
	bearerPrefix = "Bearer "

	// MsgUnauthenticated — тело ответа для любой ошибки аутентификации.
	MsgUnauthenticated = "unauthenticated"
)

type identityKey struct{}

// WithIdentity возвращает контекст с личностью запроса.
func WithIdentity(ctx context.Context, id *models.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom достаёт личность из контекста. ok == false для публичных путей.
func IdentityFrom(ctx context.Context) (*models.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*models.Identity)
	return id, ok && id != nil
}

// PublicPaths — пути, не требующие токена. Запись, оканчивающаяся на "*",
// задаёт префикс.
type PublicPaths []string

// Match сообщает, является ли path публичным.
func (p PublicPaths) Match(path string) bool {
	for _, pattern := range p {
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			if strings.HasPrefix(path, prefix) {
				return true
			}
			continue
		}
		if path == pattern {
			return true
		}
	}
	return false
}

// Identity возвращает middleware, который определяет личность запроса по токену.
func Identity(validator TokenValidator, public PublicPaths, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public.Match(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			const op = "middlewarectx.Identity"
			log := log.With(
				sl.Op(op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			token, ok := bearerToken(r)
			if !ok {
				log.Info("missing or malformed authorization header", slog.String("path", r.URL.Path))
				response.WriteError(w, r, http.StatusUnauthorized, MsgUnauthenticated)
				return
			}

			id, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				log.Info("token rejected", sl.Err(err))
				response.WriteError(w, r, http.StatusUnauthorized, MsgUnauthenticated)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, bearerPrefix)
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
