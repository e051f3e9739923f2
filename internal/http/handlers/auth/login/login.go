// Package login реализует HTTP-обработчик входа по имени пользователя и паролю.
//
// Обработчик декодирует и валидирует JSON, передаёт учётные данные сервису
// аутентификации и возвращает токен доступа. Неизвестный пользователь и неверный
// пароль дают одинаковый ответ 401.
package login

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/RonMizrahi/access-control/internal/http/response"
	"github.com/RonMizrahi/access-control/internal/lib/sl"
	services "github.com/RonMizrahi/access-control/internal/services/auth"
)

// Request — структура входных данных для входа.
type Request struct {
	Username string `json:"username" validate:"required,max=64" example:"test-user"`
	Password string `json:"password" validate:"required,max=72" example:"password"`
}

// Response — успешный ответ со свежим токеном.
type Response struct {
	Status string `json:"status" example:"OK"`
	Token  string `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
}

// Service описывает интерфейс бизнес-логики аутентификации.
type Service interface {
	Login(ctx context.Context, req services.LoginRequest) (string, error)
}

// Handler обрабатывает HTTP-запросы входа.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Вход пользователя
// @Description Проверяет имя пользователя и пароль, возвращает токен доступа.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Учетные данные пользователя"
// @Success 200 {object} Response "Успешный вход"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Неверные учетные данные"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 429 {object} response.ErrorResponse "Слишком много попыток входа"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /login [post]
// @Router /auth/login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			log.Error("validation failed", sl.Err(err))
			response.WriteError(w, r, http.StatusBadRequest, "invalid request body")
			return
		}
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(verrs))
		return
	}

	token, err := h.service.Login(r.Context(), services.LoginRequest{
		Username:   req.Username,
		Password:   req.Password,
		RemoteAddr: remoteHost(r),
	})
	if errors.Is(err, services.ErrInvalidCredentials) {
		log.Info("invalid credentials", slog.String("username", req.Username))
		response.WriteError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		log.Error("login failed", sl.Err(err))
		response.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	log.Info("login success", slog.String("username", req.Username))
	render.JSON(w, r, Response{Status: response.StatusOK, Token: token})
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
