// Package ratelimit реализует ограничение запросов по корзине токенов
// отдельно для каждого пользователя.
//
// Корзина создаётся лениво при первом запросе пользователя: план читается из
// хранилища один раз, политика плана фиксируется в корзине. Корзины разных
// пользователей защищены собственными мьютексами и друг друга не блокируют.
// Простаивающие корзины удаляются фоновой очисткой (см. Limiter.StartJanitor),
// Invalidate сбрасывает корзину после смены плана.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RonMizrahi/access-control/internal/lib/sl"
	"github.com/RonMizrahi/access-control/internal/models"
	"github.com/RonMizrahi/access-control/internal/storage"
)

// ErrUnknownUser возвращается, если пользователя из токена нет в хранилище.
var ErrUnknownUser = errors.New("unknown user")

// UserProvider описывает поиск пользователя для определения плана.
type UserProvider interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Decision — результат проверки запроса.
type Decision struct {
	Allowed    bool
	Plan       models.SubscriptionPlan
	Limit      int           // ёмкость корзины
	Remaining  int           // токенов осталось после решения
	RetryAfter time.Duration // до следующего пополнения, только при отказе
}

// Snapshot — состояние корзины для административного API.
type Snapshot struct {
	Username   string                  `json:"username"`
	Plan       models.SubscriptionPlan `json:"plan"`
	Capacity   int                     `json:"capacity"`
	Tokens     int                     `json:"tokens"`
	LastRefill time.Time               `json:"last_refill"`
	LastSeen   time.Time               `json:"last_seen"`
}

type bucket struct {
	mu         sync.Mutex
	plan       models.SubscriptionPlan
	policy     models.RateLimitPolicy
	tokens     int
	lastRefill time.Time
	lastSeen   time.Time
	evicted    bool
}

// refill добавляет токены за целые прошедшие интервалы. Вызывается под b.mu.
func (b *bucket) refill(now time.Time) {
	if b.tokens >= b.policy.Capacity {
		// полная корзина не копит интервалы
		b.lastRefill = now
		return
	}
	elapsed := now.Sub(b.lastRefill)
	if elapsed < b.policy.RefillPeriod {
		return
	}
	periods := elapsed / b.policy.RefillPeriod
	added := int64(periods) * int64(b.policy.RefillAmount)
	b.tokens = int(min(int64(b.policy.Capacity), int64(b.tokens)+added))
	if b.tokens >= b.policy.Capacity {
		b.lastRefill = now
		return
	}
	b.lastRefill = b.lastRefill.Add(periods * b.policy.RefillPeriod)
}

// entry — ячейка map: корзина создаётся ровно один раз через once.
// invalidated выставляется Invalidate и действует и на корзину,
// которая ещё создаётся.
type entry struct {
	once        sync.Once
	bucket      atomic.Pointer[bucket]
	err         error
	invalidated atomic.Bool
}

// Limiter хранит корзины пользователей.
type Limiter struct {
	log     *slog.Logger
	users   UserProvider
	now     func() time.Time
	idleTTL time.Duration

	buckets sync.Map // username -> *entry
	size    atomic.Int64
}

// Option настраивает Limiter.
type Option func(*Limiter)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithIdleTTL задаёт время простоя, после которого корзина удаляется очисткой.
func WithIdleTTL(ttl time.Duration) Option {
	return func(l *Limiter) { l.idleTTL = ttl }
}

// DefaultIdleTTL не меньше времени полного пополнения любого плана,
// поэтому удаление простаивающей корзины неотличимо от полной корзины.
const DefaultIdleTTL = 2 * time.Hour

// New создаёт Limiter поверх хранилища пользователей.
func New(log *slog.Logger, users UserProvider, opts ...Option) *Limiter {
	l := &Limiter{
		log:     log,
		users:   users,
		now:     time.Now,
		idleTTL: DefaultIdleTTL,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TryConsume пытается списать один токен из корзины username.
// Ошибка возвращается только если корзину не удалось создать.
func (l *Limiter) TryConsume(ctx context.Context, username string) (Decision, error) {
	const op = "ratelimit.TryConsume"

	for {
		e, b, err := l.load(ctx, username)
		if err != nil {
			return Decision{}, fmt.Errorf("%s: %w", op, err)
		}

		b.mu.Lock()
		if b.evicted || e.invalidated.Load() {
			b.evicted = true
			b.mu.Unlock()
			l.remove(username, e)
			continue
		}
		now := l.now()
		b.refill(now)
		b.lastSeen = now

		d := Decision{Plan: b.plan, Limit: b.policy.Capacity}
		if b.tokens >= 1 {
			b.tokens--
			d.Allowed = true
		} else {
			d.RetryAfter = b.lastRefill.Add(b.policy.RefillPeriod).Sub(now)
		}
		d.Remaining = b.tokens
		b.mu.Unlock()

		return d, nil
	}
}

// load возвращает корзину username, создавая её при первом обращении.
// Неудачное создание не кэшируется: следующий запрос повторит чтение плана.
func (l *Limiter) load(ctx context.Context, username string) (*entry, *bucket, error) {
	fresh := &entry{}
	v, loaded := l.buckets.LoadOrStore(username, fresh)
	if !loaded {
		l.size.Add(1)
	}
	e := v.(*entry)

	e.once.Do(func() {
		b, err := l.create(ctx, username)
		if err != nil {
			e.err = err
			return
		}
		e.bucket.Store(b)
	})
	if e.err != nil {
		l.remove(username, e)
		return nil, nil, e.err
	}
	return e, e.bucket.Load(), nil
}

func (l *Limiter) create(ctx context.Context, username string) (*bucket, error) {
	user, err := l.users.GetUserByUsername(ctx, username)
	if errors.Is(err, storage.ErrUserNotFound) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, err
	}
	policy, ok := user.Plan.Policy()
	if !ok {
		return nil, fmt.Errorf("no rate limit policy for plan %q", user.Plan)
	}

	now := l.now()
	l.log.Debug("rate limit bucket created",
		slog.String("username", username),
		slog.String("plan", string(user.Plan)),
		slog.Int("capacity", policy.Capacity),
	)
	return &bucket{
		plan:       user.Plan,
		policy:     policy,
		tokens:     policy.Capacity,
		lastRefill: now,
		lastSeen:   now,
	}, nil
}

func (l *Limiter) remove(username string, e *entry) bool {
	if l.buckets.CompareAndDelete(username, e) {
		l.size.Add(-1)
		return true
	}
	return false
}

// Invalidate удаляет корзину username. Следующий запрос заново прочитает план.
func (l *Limiter) Invalidate(username string) bool {
	v, ok := l.buckets.Load(username)
	if !ok {
		return false
	}
	e := v.(*entry)
	e.invalidated.Store(true)
	if b := e.bucket.Load(); b != nil {
		b.mu.Lock()
		b.evicted = true
		b.mu.Unlock()
	}
	return l.remove(username, e)
}

// Snapshot возвращает текущее состояние корзины без списания токенов.
func (l *Limiter) Snapshot(username string) (Snapshot, bool) {
	v, ok := l.buckets.Load(username)
	if !ok {
		return Snapshot{}, false
	}
	b := v.(*entry).bucket.Load()
	if b == nil {
		return Snapshot{}, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.evicted {
		return Snapshot{}, false
	}
	view := bucket{policy: b.policy, tokens: b.tokens, lastRefill: b.lastRefill}
	view.refill(l.now())
	return Snapshot{
		Username:   username,
		Plan:       b.plan,
		Capacity:   b.policy.Capacity,
		Tokens:     view.tokens,
		LastRefill: view.lastRefill,
		LastSeen:   b.lastSeen,
	}, true
}

// Len возвращает число корзин в памяти.
func (l *Limiter) Len() int {
	return int(l.size.Load())
}

// EvictIdle удаляет корзины, не получавшие запросов дольше idleTTL.
// Возвращает число удалённых корзин.
func (l *Limiter) EvictIdle() int {
	if l.idleTTL <= 0 {
		return 0
	}
	deadline := l.now().Add(-l.idleTTL)
	evicted := 0

	l.buckets.Range(func(key, value any) bool {
		e := value.(*entry)
		b := e.bucket.Load()
		if b == nil {
			return true
		}
		b.mu.Lock()
		idle := !b.evicted && b.lastSeen.Before(deadline)
		if idle {
			b.evicted = true
		}
		b.mu.Unlock()

		if idle && l.remove(key.(string), e) {
			evicted++
		}
		return true
	})
	return evicted
}

// StartJanitor периодически вызывает EvictIdle, пока ctx не отменён.
func (l *Limiter) StartJanitor(ctx context.Context, every time.Duration) {
	const op = "ratelimit.StartJanitor"
	log := l.log.With(sl.Op(op))

	if every <= 0 || l.idleTTL <= 0 {
		log.Info("idle bucket eviction disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := l.EvictIdle(); n > 0 {
					log.Debug("idle buckets evicted", slog.Int("count", n), slog.Int("live", l.Len()))
				}
			}
		}
	}()
}
