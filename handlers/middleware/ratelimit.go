package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/spsmatrix/dapp/metrics"
)

var (
	rateLimitVisitors = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sps_api_rate_limiter_visitors_count",
		Help: "Number of visitors in the api rate limiter",
	})
	rateLimitNewVisitors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sps_api_rate_limiter_new_visitors_count",
		Help: "Number of new visitors in the api rate limiter",
	})
	rateLimitRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sps_api_rate_limiter_rejected_total",
		Help: "Number of api calls rejected by the rate limiter",
	})
)

type rateLimitEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware limits API calls per client IP. Mutating calls cost more
// than reads, so a client cannot flood the wallet with prompts.
type RateLimitMiddleware struct {
	proxyCount uint
	rateLimit  uint
	burstLimit uint
	postCost   int
	logger     logrus.FieldLogger

	mutex        sync.Mutex
	visitors     map[string]*rateLimitEntry
	cleanupTimer *time.Timer
	stopped      bool
	stopMetrics  func()
}

// NewRateLimitMiddleware creates a limiter allowing rateLimit calls per second
// with the given burst.
func NewRateLimitMiddleware(proxyCount, rateLimit, burstLimit uint, logger logrus.FieldLogger) *RateLimitMiddleware {
	if burstLimit == 0 {
		burstLimit = 10
	}
	postCost := 5
	if postCost > int(burstLimit) {
		postCost = int(burstLimit)
	}

	m := &RateLimitMiddleware{
		proxyCount: proxyCount,
		rateLimit:  rateLimit,
		burstLimit: burstLimit,
		postCost:   postCost,
		logger:     logger,
		visitors:   map[string]*rateLimitEntry{},
	}
	m.startCleanupTimer()

	m.stopMetrics = metrics.AddPreCollectFn(func() {
		m.mutex.Lock()
		defer m.mutex.Unlock()

		rateLimitVisitors.Set(float64(len(m.visitors)))
	})

	return m
}

func (m *RateLimitMiddleware) startCleanupTimer() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.stopped {
		return
	}
	m.cleanupTimer = time.AfterFunc(time.Minute, func() {
		m.cleanupVisitors()
		m.startCleanupTimer()
	})
}

func (m *RateLimitMiddleware) cleanupVisitors() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for ip, v := range m.visitors {
		if time.Since(v.lastSeen) > 3*time.Minute {
			delete(m.visitors, ip)
		}
	}
}

// Stop ends the visitor cleanup.
func (m *RateLimitMiddleware) Stop() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.stopped = true
	if m.cleanupTimer != nil {
		m.cleanupTimer.Stop()
	}
	m.stopMetrics()
}

func (m *RateLimitMiddleware) getVisitor(ip string) *rate.Limiter {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	visitor := m.visitors[ip]
	if visitor == nil {
		visitor = &rateLimitEntry{
			limiter:  rate.NewLimiter(rate.Limit(m.rateLimit), int(m.burstLimit)),
			lastSeen: time.Now(),
		}
		m.visitors[ip] = visitor
		rateLimitNewVisitors.Inc()
	} else {
		visitor.lastSeen = time.Now()
	}
	return visitor.limiter
}

func (m *RateLimitMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := GetClientIP(r, m.proxyCount)
		cost := 1
		if r.Method == http.MethodPost {
			cost = m.postCost
		}

		limiter := m.getVisitor(clientIP)
		if !limiter.AllowN(time.Now(), cost) {
			rateLimitRejected.Inc()
			w.Header().Set("X-RateLimit-Limit", strconv.FormatUint(uint64(m.rateLimit), 10))
			w.Header().Set("X-RateLimit-Remaining", "0")

			m.logger.WithFields(logrus.Fields{
				"client_ip": clientIP,
				"path":      r.URL.Path,
			}).Warn("API rate limit exceeded")

			APIErrorResponse(w, http.StatusTooManyRequests, "ERROR: rate limit exceeded")
			return
		}

		remaining := limiter.Tokens()
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.FormatUint(uint64(m.rateLimit), 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatFloat(remaining, 'f', 0, 64))

		next.ServeHTTP(w, r)
	})
}
