package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sps_dapp_actions_total",
		Help: "Number of user actions by action and outcome",
	}, []string{"action", "outcome"})

	ConnectAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sps_dapp_connect_attempts_total",
		Help: "Number of wallet connection attempts by outcome",
	}, []string{"outcome"})

	AccessorFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sps_dapp_accessor_failures_total",
		Help: "Number of failed contract state reads by accessor",
	}, []string{"accessor"})

	RefreshesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sps_dapp_refreshes_total",
		Help: "Number of derived state refreshes",
	})

	ProviderEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sps_dapp_provider_events_total",
		Help: "Number of wallet provider events by name",
	}, []string{"event"})

	ConnectionConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sps_dapp_wallet_connected",
		Help: "1 while a wallet account is connected",
	})

	ConfirmationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sps_dapp_confirmation_seconds",
		Help:    "Time from transaction submission to inclusion",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300, 600},
	}, []string{"action"})
)
