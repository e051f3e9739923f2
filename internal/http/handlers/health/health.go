// Package health содержит обработчик проверки живости сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/RonMizrahi/access-control/internal/http/response"
	"github.com/RonMizrahi/access-control/internal/lib/sl"
)

const pingTimeout = 2 * time.Second

const (
	StatusUp   = "UP"
	StatusDown = "DOWN"
)

// Pinger — проверка доступности базы данных. *sql.DB подходит без обёрток.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	log *slog.Logger
	db  Pinger
}

// New создаёт обработчик. При db == nil (хранилище в памяти) база не проверяется.
func New(log *slog.Logger, db Pinger) *Handler {
	return &Handler{
		log: log,
		db:  db,
	}
}

// ServeHTTP godoc
// @Summary Проверка живости
// @Description Возвращает DOWN и 503, если база данных недоступна
// @Tags Health
// @Produce json
// @Success 200 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health.ServeHTTP"

	if h.db == nil {
		render.JSON(w, r, response.StatusOKWithData(map[string]any{
			"status": StatusUp,
		}))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.log.Error("database ping failed",
			sl.Err(err),
			sl.Op(op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Response{
			Status: response.StatusError,
			Error:  "database unavailable",
			Data:   map[string]any{"status": StatusDown, "db": StatusDown},
		})
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"status": StatusUp,
		"db":     StatusUp,
	}))
}
