package middlewarectx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/RonMizrahi/access-control/internal/http/response"
	"github.com/RonMizrahi/access-control/internal/lib/sl"
	"github.com/RonMizrahi/access-control/internal/models"
)

// RequireRole пропускает только запросы, личность которых имеет роль role.
// Без личности отвечает 401, без роли 403.
func RequireRole(role models.Role, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.RequireRole"

			id, ok := IdentityFrom(r.Context())
			if !ok {
				response.WriteError(w, r, http.StatusUnauthorized, MsgUnauthenticated)
				return
			}
			if !id.Roles.Has(role) {
				log.Info("access denied",
					sl.Op(op),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("username", id.Username),
					slog.String("required_role", string(role)),
				)
				response.WriteError(w, r, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
