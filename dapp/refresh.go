package dapp

import (
	"context"
	"math/big"
	"time"

	"github.com/spsmatrix/dapp/metrics"
	"github.com/spsmatrix/dapp/utils"
)

// refresh reads the balance and the contract accessors independently. A failed
// read is logged and keeps the previous value.
func (c *Controller) refresh(ctx context.Context) {
	handles := c.state.handles()
	if handles == nil {
		return
	}
	metrics.RefreshesTotal.Inc()

	c.dataMutex.RLock()
	derived := c.derived.copy()
	c.dataMutex.RUnlock()

	if balance, err := handles.web3.BalanceAt(ctx, handles.account); err != nil {
		c.accessorFailed("balance", err)
	} else {
		derived.WalletBalance = balance
	}

	accessors := []struct {
		name   string
		read   func(ctx context.Context) (*big.Int, error)
		target **big.Int
	}{
		{"totalUsers", handles.contract.TotalUsers, &derived.TotalUsers},
		{"poolBalance", handles.contract.PoolBalance, &derived.PoolBalance},
		{"specialRewardPool", handles.contract.SpecialRewardPool, &derived.SpecialRewardPool},
		{"eligiblePoolUserCount", handles.contract.EligiblePoolUserCount, &derived.EligibleUsers},
	}
	for _, accessor := range accessors {
		value, err := accessor.read(ctx)
		if err != nil {
			c.accessorFailed(accessor.name, err)
			continue
		}
		*accessor.target = value
	}

	derived.UpdatedAt = time.Now()

	c.dataMutex.Lock()
	c.derived = derived
	c.dataMutex.Unlock()
}

func (c *Controller) accessorFailed(accessor string, err error) {
	metrics.AccessorFailuresTotal.WithLabelValues(accessor).Inc()
	c.notifier.DebugLog("%v: %v", KindAccessorFailed, newError(KindAccessorFailed, accessor, err))
}

// loadEntryFee caches ENTRY_FEE(), falling back to the configured default.
func (c *Controller) loadEntryFee(ctx context.Context) {
	handles := c.state.handles()
	if handles == nil {
		return
	}

	fee, err := handles.contract.EntryFee(ctx)
	if err != nil {
		c.notifier.DebugLog("could not read entry fee, using default %v: %v", utils.FormatNativeRounded(c.opts.DefaultEntryFee, c.opts.Network.CurrencySymbol()), err)
		c.dataMutex.Lock()
		c.entryFee = new(big.Int).Set(c.opts.DefaultEntryFee)
		c.entryFeeSet = false
		c.dataMutex.Unlock()
		return
	}

	c.dataMutex.Lock()
	c.entryFee = fee
	c.entryFeeSet = true
	c.dataMutex.Unlock()
	c.notifier.DebugLog("entry fee: %v", utils.FormatNativeRounded(fee, c.opts.Network.CurrencySymbol()))
}
