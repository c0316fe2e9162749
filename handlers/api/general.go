package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/spsmatrix/dapp/dapp"
)

type ApiResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
}

type ApiErrorData struct {
	Kind dapp.ErrorKind `json:"kind,omitempty"`
}

func sendBadRequestResponse(w http.ResponseWriter, route, message string) {
	sendErrorWithCodeResponse(w, route, message, http.StatusBadRequest, nil)
}

func sendErrorWithCodeResponse(w http.ResponseWriter, route, message string, errorcode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errorcode)
	j := json.NewEncoder(w)
	response := &ApiResponse{}
	response.Status = "ERROR: " + message
	response.Data = data
	err := j.Encode(response)

	if err != nil {
		logrus.Errorf("error serializing json error for API %v route: %v", route, err)
	}
}

// sendDappErrorResponse maps a classified dapp error to a http status.
func sendDappErrorResponse(w http.ResponseWriter, route string, err error) {
	kind := dapp.KindOf(err)
	status := http.StatusInternalServerError

	switch kind {
	case dapp.KindActionBusy, dapp.KindRequestPending:
		status = http.StatusConflict
	case dapp.KindUserRejected:
		status = http.StatusForbidden
	case dapp.KindPreconditionFailed, dapp.KindNoAccountSelected, dapp.KindInsufficientFunds, dapp.KindUplineNotFound, dapp.KindAlreadyRegistered:
		status = http.StatusUnprocessableEntity
	case dapp.KindProviderNotFound, dapp.KindUnsupportedProvider, dapp.KindConnectionFailed, dapp.KindNetworkSwitchFailed, dapp.KindTransactionFailed:
		status = http.StatusBadGateway
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusRequestTimeout
	}

	sendErrorWithCodeResponse(w, route, dapp.UserMessage(err), status, &ApiErrorData{Kind: kind})
}

func SendOKResponse(w http.ResponseWriter, route string, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	j := json.NewEncoder(w)
	response := &ApiResponse{}
	response.Status = "OK"
	response.Data = data
	err := j.Encode(response)

	if err != nil {
		logrus.Errorf("error serializing json data for API %v route: %v", route, err)
	}
}
