package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/spsmatrix/dapp/dapp"
)

type APIRegisterRequestV1 struct {
	UplineID *string `json:"upline_id"`
	Position *string `json:"position"`
}

type APIContributeRequestV1 struct {
	Amount *string `json:"amount"`
}

type APIActionResponseV1 struct {
	FlowID  string            `json:"flow_id"`
	Action  dapp.ControlName  `json:"action"`
	State   string            `json:"state"`
	Control dapp.ControlState `json:"control"`
}

// decodeBody decodes an optional json body into out. An empty body is fine.
func decodeBody(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(out)
	if err == io.EOF {
		return nil
	}
	return err
}

// startAction dispatches the action. By default the call returns right after
// dispatch with 202, with ?wait=true it blocks until the flow completed.
func (h *ApiHandler) startAction(w http.ResponseWriter, r *http.Request, name dapp.ControlName) {
	route := r.URL.String()

	flow, err := h.controller.Start(name)
	if err != nil {
		sendDappErrorResponse(w, route, err)
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		SendOKResponse(w, route, http.StatusAccepted, &APIActionResponseV1{
			FlowID:  flow.ID(),
			Action:  name,
			State:   "started",
			Control: h.controller.Control(name).State(),
		})
		return
	}

	if err := flow.Wait(r.Context()); err != nil {
		sendDappErrorResponse(w, route, err)
		return
	}
	SendOKResponse(w, route, http.StatusOK, &APIActionResponseV1{
		FlowID:  flow.ID(),
		Action:  name,
		State:   "completed",
		Control: h.controller.Control(name).State(),
	})
}

// ApiConnectV1 godoc
// @Summary Connect the wallet
// @Tags Wallet
// @Description Resolves the wallet provider, requests account access and loads the contract state
// @Produce  json
// @Param  wait query bool false "Wait for the flow to complete"
// @Success 202 {object} ApiResponse{data=APIActionResponseV1} "Started"
// @Failure 409 {object} ApiResponse "Already in progress"
// @Router /api/v1/connect [post]
func (h *ApiHandler) ApiConnectV1(w http.ResponseWriter, r *http.Request) {
	h.startAction(w, r, dapp.ControlConnect)
}

// ApiDisconnectV1 godoc
// @Summary Disconnect the wallet
// @Tags Wallet
// @Description Clears the local session, the wallet keeps its own authorization
// @Produce  json
// @Success 200 {object} ApiResponse "Success"
// @Router /api/v1/disconnect [post]
func (h *ApiHandler) ApiDisconnectV1(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Disconnect(r.Context()); err != nil {
		sendDappErrorResponse(w, r.URL.String(), err)
		return
	}
	SendOKResponse(w, r.URL.String(), http.StatusOK, nil)
}

// ApiRegisterV1 godoc
// @Summary Register in the matrix
// @Tags Actions
// @Description Registers the connected account under an upline, paying the entry fee
// @Accept  json
// @Produce  json
// @Param  body body APIRegisterRequestV1 false "Upline id and position, replacing the stored input fields"
// @Param  wait query bool false "Wait for the transaction to be confirmed"
// @Success 202 {object} ApiResponse{data=APIActionResponseV1} "Started"
// @Failure 400 {object} ApiResponse "Invalid body"
// @Failure 409 {object} ApiResponse "Already in progress"
// @Router /api/v1/register [post]
func (h *ApiHandler) ApiRegisterV1(w http.ResponseWriter, r *http.Request) {
	request := &APIRegisterRequestV1{}
	if err := decodeBody(r, request); err != nil {
		sendBadRequestResponse(w, r.URL.String(), "invalid request body")
		return
	}

	if request.UplineID != nil || request.Position != nil {
		h.controller.UpdateInputs(func(inputs *dapp.InputValues) {
			if request.UplineID != nil {
				inputs.UplineID = *request.UplineID
			}
			if request.Position != nil {
				inputs.Position = *request.Position
			}
		})
	}

	h.startAction(w, r, dapp.ControlRegister)
}

// ApiWithdrawPoolV1 godoc
// @Summary Withdraw the pool reward
// @Tags Actions
// @Produce  json
// @Param  wait query bool false "Wait for the transaction to be confirmed"
// @Success 202 {object} ApiResponse{data=APIActionResponseV1} "Started"
// @Failure 409 {object} ApiResponse "Already in progress"
// @Router /api/v1/withdraw/pool [post]
func (h *ApiHandler) ApiWithdrawPoolV1(w http.ResponseWriter, r *http.Request) {
	h.startAction(w, r, dapp.ControlWithdrawPool)
}

// ApiWithdrawSpecialV1 godoc
// @Summary Withdraw the special rewards
// @Tags Actions
// @Produce  json
// @Param  wait query bool false "Wait for the transaction to be confirmed"
// @Success 202 {object} ApiResponse{data=APIActionResponseV1} "Started"
// @Failure 409 {object} ApiResponse "Already in progress"
// @Router /api/v1/withdraw/special [post]
func (h *ApiHandler) ApiWithdrawSpecialV1(w http.ResponseWriter, r *http.Request) {
	h.startAction(w, r, dapp.ControlWithdrawSpecial)
}

// ApiContributeV1 godoc
// @Summary Contribute to the miner pool
// @Tags Actions
// @Accept  json
// @Produce  json
// @Param  body body APIContributeRequestV1 false "Amount in native units, replacing the stored input field"
// @Param  wait query bool false "Wait for the transaction to be confirmed"
// @Success 202 {object} ApiResponse{data=APIActionResponseV1} "Started"
// @Failure 400 {object} ApiResponse "Invalid body"
// @Failure 409 {object} ApiResponse "Already in progress"
// @Router /api/v1/contribute [post]
func (h *ApiHandler) ApiContributeV1(w http.ResponseWriter, r *http.Request) {
	request := &APIContributeRequestV1{}
	if err := decodeBody(r, request); err != nil {
		sendBadRequestResponse(w, r.URL.String(), "invalid request body")
		return
	}

	if request.Amount != nil {
		h.controller.UpdateInputs(func(inputs *dapp.InputValues) {
			inputs.ContributeAmount = *request.Amount
		})
	}

	h.startAction(w, r, dapp.ControlContribute)
}

// ApiNetworkSwitchV1 godoc
// @Summary Switch the wallet network
// @Tags Wallet
// @Description Asks the wallet to switch to the required network, adding it when unknown
// @Produce  json
// @Param  wait query bool false "Wait for the switch to complete"
// @Success 202 {object} ApiResponse{data=APIActionResponseV1} "Started"
// @Failure 409 {object} ApiResponse "Already in progress"
// @Router /api/v1/network/switch [post]
func (h *ApiHandler) ApiNetworkSwitchV1(w http.ResponseWriter, r *http.Request) {
	h.startAction(w, r, dapp.ControlNetwork)
}
