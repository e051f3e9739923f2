// Package plan содержит административный обработчик смены тарифного плана.
package plan

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/RonMizrahi/access-control/internal/http/response"
	"github.com/RonMizrahi/access-control/internal/lib/sl"
	"github.com/RonMizrahi/access-control/internal/models"
	"github.com/RonMizrahi/access-control/internal/storage"
)

// Request — новый план пользователя.
type Request struct {
	Plan string `json:"plan" validate:"required,oneof=FREE BASIC PROFESSIONAL" example:"BASIC"`
}

// Service меняет план пользователя и сбрасывает его корзину.
type Service interface {
	ChangePlan(ctx context.Context, username string, plan models.SubscriptionPlan) error
}

type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Смена тарифного плана
// @Description Меняет план пользователя. Новый лимит применяется со следующего запроса.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param username path string true "Имя пользователя"
// @Param request body Request true "Новый план"
// @Success 200 {object} response.Response{data=models.PlanChange}
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/admin/users/{username}/plan [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.plan"

	username := chi.URLParam(r, "username")
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("username", username),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.ValidationError(verrs))
			return
		}
		response.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	plan, err := models.ParsePlan(req.Plan)
	if err != nil {
		response.WriteError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	err = h.service.ChangePlan(r.Context(), username, plan)
	if errors.Is(err, storage.ErrUserNotFound) {
		log.Info("user not found")
		response.WriteError(w, r, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		log.Error("failed to change plan", sl.Err(err))
		response.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	log.Info("plan changed", slog.String("plan", string(plan)))
	render.JSON(w, r, response.StatusOKWithData(models.PlanChange{Username: username, Plan: plan}))
}
