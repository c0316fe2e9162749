package api

import (
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/spsmatrix/dapp/dapp"
	"github.com/spsmatrix/dapp/utils"
)

type APIStateResponseV1 struct {
	SiteName        string               `json:"site_name"`
	Phase           dapp.ConnectionPhase `json:"phase"`
	Connected       bool                 `json:"connected"`
	Status          string               `json:"status"`
	Source          string               `json:"source,omitempty"`
	Account         *common.Address      `json:"account,omitempty"`
	AccountShort    string               `json:"account_short"`
	ChainID         uint64               `json:"chain_id,omitempty"`
	RequiredChainID uint64               `json:"required_chain_id"`
	OnRequiredChain bool                 `json:"on_required_chain"`
	NetworkName     string               `json:"network_name"`
	Currency        string               `json:"currency"`
	Contract        common.Address       `json:"contract"`

	EntryFee             string `json:"entry_fee"`
	EntryFeeWei          string `json:"entry_fee_wei"`
	EntryFeeFromContract bool   `json:"entry_fee_from_contract"`

	WalletBalance     *APIAmountV1 `json:"wallet_balance"`
	TotalUsers        string       `json:"total_users"`
	PoolBalance       *APIAmountV1 `json:"pool_balance"`
	SpecialRewardPool *APIAmountV1 `json:"special_reward_pool"`
	EligibleUsers     string       `json:"eligible_users"`
	UpdatedAt         *time.Time   `json:"updated_at,omitempty"`

	Controls []dapp.ControlState `json:"controls"`
	Inputs   dapp.InputValues    `json:"inputs"`
}

type APIAmountV1 struct {
	Display string `json:"display"`
	Wei     string `json:"wei"`
}

func newAmount(wei *big.Int) *APIAmountV1 {
	if wei == nil {
		return nil
	}
	return &APIAmountV1{
		Display: utils.FormatNative(wei),
		Wei:     wei.String(),
	}
}

// ApiStateV1 godoc
// @Summary Get the dapp state
// @Tags State
// @Description Returns the connection state, the display values refreshed from the contract and the control states
// @Produce  json
// @Success 200 {object} ApiResponse{data=APIStateResponseV1} "Success"
// @Router /api/v1/state [get]
func (h *ApiHandler) ApiStateV1(w http.ResponseWriter, r *http.Request) {
	snapshot := h.controller.Snapshot()
	network := h.controller.Network()

	data := &APIStateResponseV1{
		SiteName:        h.siteName,
		Phase:           snapshot.Phase,
		Connected:       snapshot.Connected,
		Status:          "Not connected",
		Source:          snapshot.Source,
		AccountShort:    utils.FormatAddress(snapshot.Account),
		ChainID:         snapshot.ChainID,
		RequiredChainID: network.ChainID,
		OnRequiredChain: snapshot.OnRequired,
		NetworkName:     network.ChainName,
		Currency:        network.CurrencySymbol(),
		Contract:        h.controller.ContractAddress(),

		EntryFee:             utils.FormatNativeRounded(snapshot.EntryFee, network.CurrencySymbol()),
		EntryFeeFromContract: snapshot.EntryFeeSet,

		WalletBalance:     newAmount(snapshot.Derived.WalletBalance),
		TotalUsers:        utils.FormatCount(snapshot.Derived.TotalUsers),
		PoolBalance:       newAmount(snapshot.Derived.PoolBalance),
		SpecialRewardPool: newAmount(snapshot.Derived.SpecialRewardPool),
		EligibleUsers:     utils.FormatCount(snapshot.Derived.EligibleUsers),

		Controls: snapshot.Controls,
		Inputs:   snapshot.Inputs,
	}
	if snapshot.EntryFee != nil {
		data.EntryFeeWei = snapshot.EntryFee.String()
	}
	if snapshot.Connected {
		account := snapshot.Account
		data.Account = &account
		data.Status = "Connected"
		if !snapshot.OnRequired {
			data.Status = "Connected (wrong network)"
		}
	}
	if !snapshot.Derived.UpdatedAt.IsZero() {
		updatedAt := snapshot.Derived.UpdatedAt
		data.UpdatedAt = &updatedAt
	}

	SendOKResponse(w, r.URL.String(), http.StatusOK, data)
}

// ApiNotificationV1 godoc
// @Summary Get the visible notification
// @Tags State
// @Description Returns the currently visible notification banner, or null when none is shown
// @Produce  json
// @Success 200 {object} ApiResponse{data=dapp.Notification} "Success"
// @Router /api/v1/notification [get]
func (h *ApiHandler) ApiNotificationV1(w http.ResponseWriter, r *http.Request) {
	var notification *dapp.Notification
	if r.URL.Query().Get("latest") == "true" {
		notification = h.controller.Notifier().Latest()
	} else {
		notification = h.controller.Notifier().Current()
	}
	SendOKResponse(w, r.URL.String(), http.StatusOK, notification)
}

// ApiDebugV1 godoc
// @Summary Get the debug panel
// @Tags State
// @Description Returns the timestamped debug lines, oldest first
// @Produce  json
// @Success 200 {object} ApiResponse{data=[]dapp.DebugLine} "Success"
// @Failure 404 {object} ApiResponse "Debug panel disabled"
// @Router /api/v1/debug [get]
func (h *ApiHandler) ApiDebugV1(w http.ResponseWriter, r *http.Request) {
	if !h.debug {
		sendErrorWithCodeResponse(w, r.URL.String(), "debug panel disabled", http.StatusNotFound, nil)
		return
	}
	SendOKResponse(w, r.URL.String(), http.StatusOK, h.controller.Notifier().DebugLines())
}

// ApiWalletDetectV1 godoc
// @Summary Detect wallet providers
// @Tags Wallet
// @Description Reports which wallet bindings exist, whether they can serve requests and the authorized accounts, without prompting
// @Produce  json
// @Success 200 {object} ApiResponse{data=wallet.DetectionReport} "Success"
// @Router /api/v1/wallet/detect [get]
func (h *ApiHandler) ApiWalletDetectV1(w http.ResponseWriter, r *http.Request) {
	SendOKResponse(w, r.URL.String(), http.StatusOK, h.controller.Detect(r.Context()))
}
