package api

// @title SPS Matrix dApp API
// @version 1.0
// @description Wallet connection and contract actions of the SPS Matrix dApp.

// @BasePath /api/v1
// @schemes http https

// @tag.name State
// @tag.description Session, notification and debug state

// @tag.name Wallet
// @tag.description Wallet detection, connection and network switching

// @tag.name Actions
// @tag.description Contract transactions

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/spsmatrix/dapp/dapp"
)

// ApiHandler serves the ui surface of one controller.
type ApiHandler struct {
	controller *dapp.Controller
	siteName   string
	debug      bool
	logger     logrus.FieldLogger
}

// NewApiHandler creates the api handler. The debug panel is only served when debug is set.
func NewApiHandler(controller *dapp.Controller, siteName string, debug bool, logger logrus.FieldLogger) *ApiHandler {
	return &ApiHandler{
		controller: controller,
		siteName:   siteName,
		debug:      debug,
		logger:     logger,
	}
}

// RegisterRoutes adds the v1 routes to router, which is expected to be mounted at /api/v1.
func (h *ApiHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/state", h.ApiStateV1).Methods(http.MethodGet)
	router.HandleFunc("/notification", h.ApiNotificationV1).Methods(http.MethodGet)
	router.HandleFunc("/debug", h.ApiDebugV1).Methods(http.MethodGet)
	router.HandleFunc("/wallet/detect", h.ApiWalletDetectV1).Methods(http.MethodGet)

	router.HandleFunc("/connect", h.ApiConnectV1).Methods(http.MethodPost)
	router.HandleFunc("/disconnect", h.ApiDisconnectV1).Methods(http.MethodPost)
	router.HandleFunc("/register", h.ApiRegisterV1).Methods(http.MethodPost)
	router.HandleFunc("/withdraw/pool", h.ApiWithdrawPoolV1).Methods(http.MethodPost)
	router.HandleFunc("/withdraw/special", h.ApiWithdrawSpecialV1).Methods(http.MethodPost)
	router.HandleFunc("/contribute", h.ApiContributeV1).Methods(http.MethodPost)
	router.HandleFunc("/network/switch", h.ApiNetworkSwitchV1).Methods(http.MethodPost)
}
