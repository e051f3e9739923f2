package accesscontrol

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/RonMizrahi/access-control/docs" // swagger spec
	"github.com/RonMizrahi/access-control/internal/http/handlers/admin/bucket"
	"github.com/RonMizrahi/access-control/internal/http/handlers/admin/plan"
	"github.com/RonMizrahi/access-control/internal/http/handlers/auth/login"
	"github.com/RonMizrahi/access-control/internal/http/handlers/health"
	"github.com/RonMizrahi/access-control/internal/http/handlers/status"
	"github.com/RonMizrahi/access-control/internal/http/middlewarectx"
	"github.com/RonMizrahi/access-control/internal/models"
	"github.com/RonMizrahi/access-control/internal/ratelimit"
	authservices "github.com/RonMizrahi/access-control/internal/services/auth"
)

// AuthService нужен и входу, и определению личности запроса.
type AuthService interface {
	login.Service
	middlewarectx.TokenValidator
}

// Metrics — метрики, которые пишут HTTP middleware.
type Metrics interface {
	middlewarectx.RejectionMetrics
	middlewarectx.ThrottleMetrics
}

// Deps — зависимости маршрутов.
//
// Validator определяет личность запроса; если не задан, используется Auth.
// DB проверяется в /health; nil означает хранилище в памяти.
type Deps struct {
	Logger    *slog.Logger
	Auth      AuthService
	Validator middlewarectx.TokenValidator
	DB        health.Pinger
	Limiter   *ratelimit.Limiter
	Plans     plan.Service
	Throttle  *middlewarectx.LoginThrottle
	Metrics   Metrics
	Gatherer  prometheus.Gatherer
	StartedAt time.Time
}

// PublicPaths — маршруты, доступные без токена.
var PublicPaths = middlewarectx.PublicPaths{
	"/login",
	"/auth/login",
	"/health",
	"/metrics",
	"/docs/*",
}

var _ AuthService = (*authservices.AuthService)(nil)

// RegisterRoutes регистрирует все маршруты приложения.
//
// Порядок конвейера: определение личности, затем корзина пользователя, затем обработчик.
// X-Forwarded-For и X-Real-IP не учитываются: ограничение попыток входа
// привязано к адресу соединения.
func RegisterRoutes(r chi.Router, d Deps) {
	validator := d.Validator
	if validator == nil {
		validator = d.Auth
	}

	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middlewarectx.Logger(d.Logger),
		middleware.Recoverer,
		middlewarectx.Identity(validator, PublicPaths, d.Logger),
		middlewarectx.RateLimit(d.Limiter, d.Metrics, d.Logger),
	)

	// Открытые конечные точки
	loginHandler := login.New(d.Logger, d.Auth)
	r.With(d.Throttle.Middleware(d.Logger)).Post("/login", loginHandler.ServeHTTP)
	r.With(d.Throttle.Middleware(d.Logger)).Post("/auth/login", loginHandler.ServeHTTP)
	r.Get("/health", health.New(d.Logger, d.DB).ServeHTTP)
	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	r.Get("/docs/*", httpSwagger.WrapHandler)

	statusHandler := status.New(d.Logger, d.StartedAt)
	r.Route("/api", func(r chi.Router) {
		r.Get("/v1/status", statusHandler.V1)
		r.Get("/v2/status", statusHandler.V2)
		r.Get("/v1/me", statusHandler.Me)

		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RequireRole(models.RoleAdmin, d.Logger))
			r.Get("/v1/admin/ratelimit/{username}", bucket.New(d.Logger, d.Limiter).ServeHTTP)
			r.Put("/v1/admin/users/{username}/plan", plan.New(d.Logger, d.Plans).ServeHTTP)
		})
	})
}
