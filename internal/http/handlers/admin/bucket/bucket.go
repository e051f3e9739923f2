// Package bucket содержит административный обработчик просмотра корзины пользователя.
package bucket

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"

	"github.com/RonMizrahi/access-control/internal/http/response"
	"github.com/RonMizrahi/access-control/internal/ratelimit"
)

// Inspector возвращает состояние корзины без списания токенов.
type Inspector interface {
	Snapshot(username string) (ratelimit.Snapshot, bool)
}

type Handler struct {
	log     *slog.Logger
	limiter Inspector
}

func New(log *slog.Logger, limiter Inspector) *Handler {
	return &Handler{
		log:     log,
		limiter: limiter,
	}
}

// ServeHTTP godoc
// @Summary Состояние корзины пользователя
// @Description Токены с учётом пополнения на текущий момент. Запрос токен не списывает.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param username path string true "Имя пользователя"
// @Success 200 {object} response.Response{data=ratelimit.Snapshot}
// @Failure 401 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse "У пользователя нет активной корзины"
// @Router /api/v1/admin/ratelimit/{username} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	snap, ok := h.limiter.Snapshot(username)
	if !ok {
		response.WriteError(w, r, http.StatusNotFound, "no active bucket")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(snap))
}
