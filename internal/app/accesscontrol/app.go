// Package accesscontrol собирает сервис контроля доступа: хранилище, сервисы,
// HTTP-маршруты и необязательные gRPC-сервер, шину смены планов и аудит входов.
package accesscontrol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"

	"github.com/RonMizrahi/access-control/internal/config"
	"github.com/RonMizrahi/access-control/internal/events"
	"github.com/RonMizrahi/access-control/internal/grpc/client"
	"github.com/RonMizrahi/access-control/internal/grpc/authrpc"
	"github.com/RonMizrahi/access-control/internal/grpc/server"
	"github.com/RonMizrahi/access-control/internal/http/handlers/health"
	"github.com/RonMizrahi/access-control/internal/http/middlewarectx"
	"github.com/RonMizrahi/access-control/internal/lib/jwt"
	"github.com/RonMizrahi/access-control/internal/lib/rabbitmq"
	"github.com/RonMizrahi/access-control/internal/lib/sl"
	"github.com/RonMizrahi/access-control/internal/metrics"
	"github.com/RonMizrahi/access-control/internal/migrations"
	"github.com/RonMizrahi/access-control/internal/models"
	"github.com/RonMizrahi/access-control/internal/ratelimit"
	authservices "github.com/RonMizrahi/access-control/internal/services/auth"
	planservices "github.com/RonMizrahi/access-control/internal/services/plan"
	"github.com/RonMizrahi/access-control/internal/storage/memory"
	"github.com/RonMizrahi/access-control/internal/storage/postgresql"
)

const (
	shutdownTimeout  = 15 * time.Second
	throttleIdleTTL  = 10 * time.Minute
	throttleSweepGap = time.Minute
)

// UserStore — хранилище учётных записей, общее для всех компонентов.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, user models.User) (string, error)
	UpdatePlan(ctx context.Context, username string, plan models.SubscriptionPlan) error
}

type App struct {
	cfg    *config.Config
	logger *slog.Logger

	server   *http.Server
	grpc     *grpc.Server
	grpcLis  net.Listener
	limiter  *ratelimit.Limiter
	throttle *middlewarectx.LoginThrottle
	planBus  *events.PlanBus
	plans    *planservices.Service

	closers []func() error
}

// New создаёт приложение. Внешние зависимости подключаются только если заданы в конфиге.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.accesscontrol.New"

	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	store, db, err := a.openStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.Init.AddAdmin {
		if err := Seed(ctx, store, logger); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	authOpts := []authservices.Option{authservices.WithMetrics(m)}
	if cfg.RabbitMQ.URL != "" {
		audit, err := a.openAudit(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		authOpts = append(authOpts, authservices.WithAudit(audit))
	}
	jwtMaker := jwt.NewJWTMaker(cfg.JWTToken.SecretKey, cfg.JWTToken.TokenTTL)
	authService := authservices.NewAuthService(logger, store, jwtMaker, authOpts...)

	var validator middlewarectx.TokenValidator = authService
	if cfg.GRPC.RemoteAuthAddress != "" {
		remote, err := client.NewAuthClient(cfg.GRPC.RemoteAuthAddress)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.closers = append(a.closers, remote.Close)
		validator = remote
		logger.Info("tokens are validated by remote auth service",
			slog.String("address", cfg.GRPC.RemoteAuthAddress))
	}

	idleTTL := cfg.RateLimit.IdleTTL
	if cfg.RateLimit.DisableEviction {
		idleTTL = 0
	}
	a.limiter = ratelimit.New(logger, store, ratelimit.WithIdleTTL(idleTTL))
	m.RegisterBucketGauge(a.limiter.Len)

	planOpts := []planservices.Option{planservices.WithInvalidator(a.limiter)}
	if cfg.RedisConnection.Address != "" {
		rdb, err := events.NewRedisClient(ctx, cfg.RedisConnection)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.closers = append(a.closers, rdb.Close)
		a.planBus = events.NewPlanBus(logger, rdb, cfg.RedisConnection.PlanChannel)
		planOpts = append(planOpts, planservices.WithPublisher(a.planBus))
	}
	a.plans = planservices.New(logger, store, planOpts...)

	a.throttle = middlewarectx.NewLoginThrottle(cfg.RateLimit.LoginRPS, cfg.RateLimit.LoginBurst, m)

	router := chi.NewRouter()
	RegisterRoutes(router, Deps{
		Logger:    logger,
		Auth:      authService,
		Validator: validator,
		DB:        db,
		Limiter:   a.limiter,
		Plans:     a.plans,
		Throttle:  a.throttle,
		Metrics:   m,
		Gatherer:  reg,
		StartedAt: time.Now(),
	})

	a.server = &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	if cfg.GRPC.Address != "" {
		lis, err := net.Listen("tcp", cfg.GRPC.Address)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.grpcLis = lis
		a.grpc = grpc.NewServer()
		authrpc.RegisterAuthServer(a.grpc, server.NewAuthServer(authService, logger))
	}

	ok = true
	return a, nil
}

// openStore возвращает хранилище и, для PostgreSQL, соединение для проверки живости.
func (a *App) openStore(ctx context.Context) (UserStore, health.Pinger, error) {
	if a.cfg.StorageConnectionString == "" {
		a.logger.Warn("storage connection string is empty, using in-memory user store")
		return memory.New(), nil, nil
	}

	db, err := postgresql.New(ctx, a.cfg.StorageConnectionString)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, db.Close)
	if err := migrations.Run(db.DB, a.cfg.MigrationsPath); err != nil {
		return nil, nil, err
	}
	return db, db.DB, nil
}

func (a *App) openAudit(ctx context.Context) (*events.LoginAudit, error) {
	cfg := a.cfg.RabbitMQ
	conn, err := rabbitmq.Connect(ctx, cfg.URL, cfg.Retries, cfg.RetryDelay)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, conn.Close)

	ch, err := rabbitmq.SetupChannel(conn, cfg.Exchange, rabbitmq.GetAuditQueues())
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, ch.Close)
	return events.NewLoginAudit(ch, cfg.Exchange), nil
}

// Handler возвращает корневой HTTP-обработчик.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run запускает серверы и фоновые задачи и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	const op = "app.accesscontrol.Run"
	defer a.close()

	a.limiter.StartJanitor(ctx, a.cfg.RateLimit.CleanupEvery)
	a.throttle.StartCleanup(ctx, throttleSweepGap, throttleIdleTTL)

	if a.planBus != nil {
		if err := a.planBus.Listen(ctx, a.plans.Apply); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()
	if a.grpc != nil {
		go func() {
			a.logger.Info("Auth gRPC service listening on", slog.String("address", a.grpcLis.Addr().String()))
			errCh <- a.grpc.Serve(a.grpcLis)
		}()
	}

	select {
	case err := <-errCh:
		a.stopGRPC()
		_ = a.server.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down servers gracefully")
		a.stopGRPC()
		return a.server.Shutdown(timeoutCtx)
	}
}

func (a *App) stopGRPC() {
	if a.grpc != nil {
		a.grpc.GracefulStop()
	}
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("failed to release resource", sl.Err(err))
		}
	}
	a.closers = nil
}
