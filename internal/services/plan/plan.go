// Package plan меняет тарифный план пользователя и распространяет изменение:
// локальная корзина лимита сбрасывается сразу, остальные реплики узнают
// о смене через шину событий.
package plan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RonMizrahi/access-control/internal/lib/sl"
	"github.com/RonMizrahi/access-control/internal/models"
)

// Updater сохраняет новый план пользователя.
type Updater interface {
	UpdatePlan(ctx context.Context, username string, plan models.SubscriptionPlan) error
}

// Invalidator сбрасывает корзину лимита пользователя.
type Invalidator interface {
	Invalidate(username string) bool
}

// Publisher рассылает событие смены плана.
type Publisher interface {
	PublishPlanChange(ctx context.Context, change models.PlanChange) error
}

// Service реализует смену плана.
type Service struct {
	log         *slog.Logger
	users       Updater
	invalidator Invalidator
	publisher   Publisher
}

// Option настраивает Service.
type Option func(*Service)

// WithInvalidator подключает локальный ограничитель запросов.
func WithInvalidator(i Invalidator) Option {
	return func(s *Service) { s.invalidator = i }
}

// WithPublisher подключает рассылку событий.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// New создаёт Service.
func New(log *slog.Logger, users Updater, opts ...Option) *Service {
	s := &Service{log: log, users: users}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChangePlan сохраняет план и сбрасывает корзину пользователя.
// Ошибка рассылки только логируется: план уже сохранён.
func (s *Service) ChangePlan(ctx context.Context, username string, plan models.SubscriptionPlan) error {
	const op = "services.plan.ChangePlan"
	log := s.log.With(sl.Op(op), slog.String("username", username), slog.String("plan", string(plan)))

	if err := s.users.UpdatePlan(ctx, username, plan); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.Apply(models.PlanChange{Username: username, Plan: plan})

	if s.publisher != nil {
		if err := s.publisher.PublishPlanChange(ctx, models.PlanChange{Username: username, Plan: plan}); err != nil {
			log.Warn("failed to broadcast plan change", sl.Err(err))
		}
	}
	log.Info("plan changed")
	return nil
}

// Apply применяет полученное событие смены плана к локальному ограничителю.
func (s *Service) Apply(change models.PlanChange) {
	if s.invalidator == nil {
		return
	}
	if s.invalidator.Invalidate(change.Username) {
		s.log.Debug("rate limit bucket invalidated", slog.String("username", change.Username))
	}
}
