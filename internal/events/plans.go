package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/RonMizrahi/access-control/internal/config"
	"github.com/RonMizrahi/access-control/internal/lib/sl"
	"github.com/RonMizrahi/access-control/internal/models"
)

// NewRedisClient создаёт клиента Redis и проверяет соединение.
func NewRedisClient(ctx context.Context, cfg config.RedisConnection) (*redis.Client, error) {
	const op = "events.NewRedisClient"
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return client, nil
}

// PlanBus рассылает события смены плана между репликами через канал Redis.
type PlanBus struct {
	log     *slog.Logger
	client  *redis.Client
	channel string
}

// NewPlanBus создаёт шину поверх клиента Redis.
func NewPlanBus(log *slog.Logger, client *redis.Client, channel string) *PlanBus {
	return &PlanBus{log: log, client: client, channel: channel}
}

// PublishPlanChange отправляет событие всем подписчикам канала.
func (b *PlanBus) PublishPlanChange(ctx context.Context, change models.PlanChange) error {
	const op = "events.PublishPlanChange"
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Listen подписывается на канал и вызывает handle для каждого события,
// пока ctx не отменён. Возвращается после подтверждения подписки.
func (b *PlanBus) Listen(ctx context.Context, handle func(models.PlanChange)) error {
	const op = "events.Listen"
	log := b.log.With(sl.Op(op), slog.String("channel", b.channel))

	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("%s: %w", op, err)
	}

	go func() {
		defer func() { _ = sub.Close() }()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var change models.PlanChange
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil || change.Username == "" {
					log.Warn("malformed plan change event", slog.String("payload", msg.Payload), sl.Err(err))
					continue
				}
				handle(change)
			}
		}
	}()

	log.Info("listening for plan changes")
	return nil
}
