package middlewarectx

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/middleware"
	"golang.org/x/time/rate"

	"github.com/RonMizrahi/access-control/internal/http/response"
	"github.com/RonMizrahi/access-control/internal/lib/sl"
)

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LoginThrottle ограничивает частоту входа отдельно для каждого IP клиента.
type LoginThrottle struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   rate.Limit
	burst   int
	metrics ThrottleMetrics
	now     func() time.Time
}

// NewLoginThrottle создаёт ограничитель на rps запросов в секунду с запасом burst.
func NewLoginThrottle(rps float64, burst int, metrics ThrottleMetrics) *LoginThrottle {
	return &LoginThrottle{
		clients: make(map[string]*client),
		limit:   rate.Limit(rps),
		burst:   burst,
		metrics: metrics,
		now:     time.Now,
	}
}

// Allow сообщает, можно ли пропустить ещё один вход с адреса ip.
func (t *LoginThrottle) Allow(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	c, ok := t.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// Cleanup удаляет адреса, не обращавшиеся дольше idle.
func (t *LoginThrottle) Cleanup(idle time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	deadline := t.now().Add(-idle)
	removed := 0
	for ip, c := range t.clients {
		if c.lastSeen.Before(deadline) {
			delete(t.clients, ip)
			removed++
		}
	}
	return removed
}

// StartCleanup периодически вызывает Cleanup, пока ctx не отменён.
func (t *LoginThrottle) StartCleanup(ctx context.Context, every, idle time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.Cleanup(idle)
			}
		}
	}()
}

// Middleware возвращает middleware, отвечающий 429 при превышении частоты входа.
func (t *LoginThrottle) Middleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.LoginThrottle"

			ip := clientIP(r)
			if !t.Allow(ip) {
				t.metrics.LoginThrottled()
				log.Warn("too many login attempts",
					sl.Op(op),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("client_ip", ip),
				)
				w.Header().Set(HeaderRetryAfter, "1")
				response.WriteError(w, r, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
