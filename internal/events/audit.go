// Package events публикует доменные события сервиса: аудит входов в RabbitMQ
// и смены тарифных планов через Redis pub/sub.
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/RonMizrahi/access-control/internal/lib/rabbitmq"
	"github.com/RonMizrahi/access-control/internal/models"
)

// LoginAudit публикует события входа в exchange аудита.
type LoginAudit struct {
	mu       sync.Mutex // amqp.Channel не рассчитан на конкурентную публикацию
	ch       rabbitmq.Publisher
	exchange string
}

// NewLoginAudit создаёт публикатор поверх открытого канала.
func NewLoginAudit(ch rabbitmq.Publisher, exchange string) *LoginAudit {
	return &LoginAudit{ch: ch, exchange: exchange}
}

// PublishLogin отправляет событие с ключом login.success или login.failure.
func (a *LoginAudit) PublishLogin(ctx context.Context, event models.LoginEvent) error {
	const op = "events.PublishLogin"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	key := rabbitmq.RoutingKeyLoginFailure
	if event.Success {
		key = rabbitmq.RoutingKeyLoginSuccess
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := rabbitmq.PublishJSON(a.ch, a.exchange, key, event); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
