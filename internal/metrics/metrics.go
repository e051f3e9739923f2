// Package metrics регистрирует метрики Prometheus для входа и ограничения запросов.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "access_control"

// Metrics хранит коллекторы сервиса. Создаётся один раз на реестр.
type Metrics struct {
	loginAttempts      prometheus.Counter
	loginSuccesses     prometheus.Counter
	loginFailures      prometheus.Counter
	loginDuration      prometheus.Histogram
	loginThrottled     prometheus.Counter
	rateLimitRejection *prometheus.CounterVec

	reg prometheus.Registerer
}

// New регистрирует коллекторы в reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		loginAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts.",
		}),
		loginSuccesses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_successes_total",
			Help:      "Successful logins.",
		}),
		loginFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_failures_total",
			Help:      "Failed logins.",
		}),
		loginDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "login_duration_seconds",
			Help:      "Login processing time.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		loginThrottled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_throttled_total",
			Help:      "Login requests rejected by the per-client throttle.",
		}),
		rateLimitRejection: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the per-user rate limiter.",
		}, []string{"plan"}),
		reg: reg,
	}
}

func (m *Metrics) LoginAttempt()   { m.loginAttempts.Inc() }
func (m *Metrics) LoginSucceeded() { m.loginSuccesses.Inc() }
func (m *Metrics) LoginFailed()    { m.loginFailures.Inc() }
func (m *Metrics) LoginThrottled() { m.loginThrottled.Inc() }

func (m *Metrics) ObserveLoginDuration(d time.Duration) {
	m.loginDuration.Observe(d.Seconds())
}

// RateLimitRejected учитывает отказ ограничителя для плана.
func (m *Metrics) RateLimitRejected(plan string) {
	m.rateLimitRejection.WithLabelValues(plan).Inc()
}

// RegisterBucketGauge публикует число живых корзин, читая его при каждом сборе.
func (m *Metrics) RegisterBucketGauge(count func() int) {
	promauto.With(m.reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rate_limit_buckets",
		Help:      "Rate limit buckets held in memory.",
	}, func() float64 { return float64(count()) })
}
