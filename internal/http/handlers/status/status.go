// Package status содержит демонстрационные защищённые обработчики:
// статус API двух версий и текущую личность запроса.
package status

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/RonMizrahi/access-control/internal/http/middlewarectx"
	"github.com/RonMizrahi/access-control/internal/http/response"
)

// V1Response — статус API версии 1.
type V1Response struct {
	Status    string `json:"status" example:"OK"`
	Version   string `json:"version" example:"1.0"`
	Timestamp int64  `json:"timestamp" example:"1735732800000"`
}

// V2Response — статус API версии 2.
type V2Response struct {
	Status    string `json:"status" example:"OK"`
	Version   string `json:"version" example:"2.0"`
	Timestamp int64  `json:"timestamp" example:"1735732800000"`
	Uptime    int64  `json:"uptime" example:"60000"` // миллисекунды
	Health    string `json:"health" example:"UP"`
}

// Handler отдаёт статус API и личность запроса.
type Handler struct {
	log     *slog.Logger
	started time.Time
	now     func() time.Time
}

// New создает Handler. started — время запуска процесса для расчёта uptime.
func New(log *slog.Logger, started time.Time) *Handler {
	return &Handler{
		log:     log,
		started: started,
		now:     time.Now,
	}
}

// V1 godoc
// @Summary Статус API v1
// @Tags Status
// @Produce json
// @Security BearerAuth
// @Success 200 {object} V1Response
// @Failure 401 {object} response.ErrorResponse
// @Failure 429 {object} response.ErrorResponse
// @Router /api/v1/status [get]
func (h *Handler) V1(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, V1Response{
		Status:    response.StatusOK,
		Version:   "1.0",
		Timestamp: h.now().UnixMilli(),
	})
}

// V2 godoc
// @Summary Статус API v2
// @Tags Status
// @Produce json
// @Security BearerAuth
// @Success 200 {object} V2Response
// @Failure 401 {object} response.ErrorResponse
// @Failure 429 {object} response.ErrorResponse
// @Router /api/v2/status [get]
func (h *Handler) V2(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	render.JSON(w, r, V2Response{
		Status:    response.StatusOK,
		Version:   "2.0",
		Timestamp: now.UnixMilli(),
		Uptime:    now.Sub(h.started).Milliseconds(),
		Health:    "UP",
	})
}

// Me godoc
// @Summary Текущий пользователь
// @Description Возвращает личность, восстановленную из токена.
// @Tags Status
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.Identity}
// @Failure 401 {object} response.ErrorResponse
// @Failure 429 {object} response.ErrorResponse
// @Router /api/v1/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.status.Me"

	id, ok := middlewarectx.IdentityFrom(r.Context())
	if !ok {
		h.log.Error("identity missing on protected route",
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
		response.WriteError(w, r, http.StatusUnauthorized, middlewarectx.MsgUnauthenticated)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(id))
}
