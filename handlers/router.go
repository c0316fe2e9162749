package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni"

	"github.com/spsmatrix/dapp/dapp"
	"github.com/spsmatrix/dapp/handlers/api"
	"github.com/spsmatrix/dapp/handlers/middleware"
	"github.com/spsmatrix/dapp/metrics"
	"github.com/spsmatrix/dapp/types"
)

// Frontend is the http handler of the ui surface.
type Frontend struct {
	handler     http.Handler
	rateLimiter *middleware.RateLimitMiddleware
}

// NewFrontend builds the router serving the api of controller, wrapped in
// the configured middlewares.
func NewFrontend(controller *dapp.Controller, cfg *types.Config, logger logrus.FieldLogger) *Frontend {
	frontend := &Frontend{}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(NotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(MethodNotAllowed)

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.NewCorsMiddleware(cfg.Api.CorsOrigins))
	if cfg.RateLimit.Enabled {
		frontend.rateLimiter = middleware.NewRateLimitMiddleware(cfg.RateLimit.ProxyCount, cfg.RateLimit.Rate, cfg.RateLimit.Burst, logger.WithField("module", "ratelimit"))
		apiRouter.Use(frontend.rateLimiter.Middleware)
	}
	// preflight requests only reach the middlewares when a route matches
	apiRouter.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	api.NewApiHandler(controller, cfg.Frontend.SiteName, cfg.Frontend.Debug, logger.WithField("module", "api")).RegisterRoutes(apiRouter)

	if cfg.Metrics.Enabled && cfg.Metrics.Public {
		router.Handle("/metrics", metrics.GetMetricsHandler())
	}

	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.UseHandler(router)
	frontend.handler = n

	return frontend
}

func (f *Frontend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.handler.ServeHTTP(w, r)
}

func (f *Frontend) Close() {
	if f.rateLimiter != nil {
		f.rateLimiter.Stop()
	}
}
