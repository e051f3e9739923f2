package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RonMizrahi/access-control/internal/config"
	"github.com/RonMizrahi/access-control/internal/models"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

type published struct {
	exchange string
	key      string
	body     []byte
}

type recordingChannel struct {
	mu   sync.Mutex
	msgs []published
}

func (r *recordingChannel) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, published{exchange: exchange, key: key, body: msg.Body})
	return nil
}

func TestLoginAudit_RoutingKeys(t *testing.T) {
	ch := &recordingChannel{}
	audit := NewLoginAudit(ch, "auth.events")
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, audit.PublishLogin(context.Background(),
		models.LoginEvent{Username: "alice", Success: true, At: at, RemoteAddr: "10.0.0.1"}))
	require.NoError(t, audit.PublishLogin(context.Background(),
		models.LoginEvent{Username: "mallory", Success: false, At: at}))

	require.Len(t, ch.msgs, 2)
	assert.Equal(t, "auth.events", ch.msgs[0].exchange)
	assert.Equal(t, "login.success", ch.msgs[0].key)
	assert.Equal(t, "login.failure", ch.msgs[1].key)

	var got models.LoginEvent
	require.NoError(t, json.Unmarshal(ch.msgs[0].body, &got))
	assert.Equal(t, "alice", got.Username)
	assert.True(t, got.Success)
	assert.True(t, at.Equal(got.At))
	assert.Equal(t, "10.0.0.1", got.RemoteAddr)
}

func TestLoginAudit_CancelledContext(t *testing.T) {
	ch := &recordingChannel{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewLoginAudit(ch, "auth.events").PublishLogin(ctx, models.LoginEvent{Username: "alice"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ch.msgs)
}

func setupPlanBus(t *testing.T) (*PlanBus, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), config.RedisConnection{
		Address:     mr.Addr(),
		DialTimeout: time.Second,
		Timeout:     time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewPlanBus(newNoopLogger(), client, "plan-changes"), mr
}

func TestPlanBus_PublishAndListen(t *testing.T) {
	bus, _ := setupPlanBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan models.PlanChange, 1)
	require.NoError(t, bus.Listen(ctx, func(c models.PlanChange) { received <- c }))

	want := models.PlanChange{Username: "alice", Plan: models.PlanProfessional}
	require.NoError(t, bus.PublishPlanChange(ctx, want))

	select {
	case got := <-received:
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatal("plan change was not delivered")
	}
}

func TestPlanBus_SkipsMalformedMessages(t *testing.T) {
	bus, mr := setupPlanBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan models.PlanChange, 2)
	require.NoError(t, bus.Listen(ctx, func(c models.PlanChange) { received <- c }))

	mr.Publish("plan-changes", "not json")
	mr.Publish("plan-changes", `{"plan":"BASIC"}`)
	require.NoError(t, bus.PublishPlanChange(ctx, models.PlanChange{Username: "bob", Plan: models.PlanBasic}))

	select {
	case got := <-received:
		assert.Equal(t, "bob", got.Username)
	case <-time.After(2 * time.Second):
		t.Fatal("valid plan change was not delivered")
	}
	assert.Empty(t, received)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	_, err := NewRedisClient(context.Background(), config.RedisConnection{
		Address:     "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
	})
	assert.Error(t, err)
}
