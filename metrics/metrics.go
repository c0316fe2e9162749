package metrics

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Metrics struct {
	mutex         sync.Mutex
	nextFnId      uint64
	preCollectFns map[uint64]func()
}

type MetricsHandler struct {
	handler http.Handler

	mutex           sync.Mutex
	lastCollectTime time.Time
}

var metrics *Metrics = &Metrics{
	preCollectFns: map[uint64]func(){},
}

// AddPreCollectFn registers a callback that updates gauges right before a
// scrape. The returned function unregisters it.
func AddPreCollectFn(fn func()) func() {
	metrics.mutex.Lock()
	defer metrics.mutex.Unlock()

	fnId := metrics.nextFnId
	metrics.nextFnId++
	metrics.preCollectFns[fnId] = fn

	return func() {
		metrics.mutex.Lock()
		defer metrics.mutex.Unlock()
		delete(metrics.preCollectFns, fnId)
	}
}

func runPreCollectFns() {
	metrics.mutex.Lock()
	fns := make([]func(), 0, len(metrics.preCollectFns))
	for _, fn := range metrics.preCollectFns {
		fns = append(fns, fn)
	}
	metrics.mutex.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// StartMetricsServer serves the metrics endpoint on a dedicated listener.
func StartMetricsServer(logger logrus.FieldLogger, host string, port string) (*http.Server, error) {
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "9090"
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(host, port),
		Handler:           GetMetricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, err
	}

	go func() {
		logger.Infof("metrics server listening on %v", srv.Addr)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("error serving metrics")
		}
	}()

	return srv, nil
}

func GetMetricsHandler() http.Handler {
	return &MetricsHandler{
		handler:         promhttp.Handler(),
		lastCollectTime: time.Now(),
	}
}

func (mh *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mh.mutex.Lock()
	if time.Since(mh.lastCollectTime) > 1*time.Second {
		runPreCollectFns()
		mh.lastCollectTime = time.Now()
	}
	mh.mutex.Unlock()

	mh.handler.ServeHTTP(w, r)
}
