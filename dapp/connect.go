package dapp

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/spsmatrix/dapp/contract"
	"github.com/spsmatrix/dapp/metrics"
	"github.com/spsmatrix/dapp/utils"
	"github.com/spsmatrix/dapp/wallet"
)

func (c *Controller) connect(ctx context.Context) error {
	if handles := c.state.handles(); handles != nil {
		c.notifier.DebugLog("already connected as %v", handles.account.Hex())
		return nil
	}

	err := c.connectProvider(ctx)
	if err != nil {
		if watcher := c.state.clear(); watcher != nil {
			watcher.stop()
		}
		metrics.ConnectAttemptsTotal.WithLabelValues(string(Classify(err))).Inc()
		c.notifier.DebugLog("connection failed: %v", err)
		c.notifier.Notify(UserMessage(err), LevelError, 0)
		return err
	}

	metrics.ConnectAttemptsTotal.WithLabelValues("success").Inc()
	return nil
}

func (c *Controller) connectProvider(ctx context.Context) error {
	c.state.setPhase(PhaseResolving)
	c.notifier.DebugLog("looking for a wallet provider")

	resolution, err := c.resolver.Resolve(c.opts.Bindings)
	if err != nil {
		return newError(KindProviderNotFound, "resolve", err)
	}

	provider, ok := resolution.Handle.(wallet.Provider)
	if !ok {
		return newError(KindUnsupportedProvider, "resolve", errors.New("wallet does not support EIP-1193 requests"))
	}
	c.notifier.DebugLog("wallet provider found: %v", resolution.Source)

	c.state.setPhase(PhaseAuthorizing)
	account, err := c.authorize(ctx, provider)
	if err != nil {
		return err
	}

	c.state.setPhase(PhaseProvisioning)
	c.provision(ctx, provider, resolution.Source, account)

	c.loadEntryFee(ctx)
	c.refresh(ctx)

	c.notifier.Notify("Wallet connected successfully!", LevelSuccess, 0)
	return nil
}

// authorize returns the first account the wallet exposes. Already authorized
// accounts are used without prompting.
func (c *Controller) authorize(ctx context.Context, provider wallet.Provider) (common.Address, error) {
	var accounts []common.Address
	err := provider.Request(ctx, &accounts, "eth_accounts")
	if err != nil {
		c.notifier.DebugLog("eth_accounts failed: %v", err)
	} else if len(accounts) > 0 {
		c.notifier.DebugLog("wallet already authorized: %v", accounts[0].Hex())
		return accounts[0], nil
	}

	c.notifier.Notify("Please confirm the connection in your wallet", LevelInfo, 0)

	accounts = nil
	err = provider.Request(ctx, &accounts, "eth_requestAccounts")
	if err != nil {
		c.notifier.DebugLog("eth_requestAccounts failed: %v", err)
		return common.Address{}, newError(classifyAuthorization(err), "eth_requestAccounts", err)
	}
	if len(accounts) == 0 {
		return common.Address{}, newError(KindNoAccountSelected, "eth_requestAccounts", errors.New("no account selected"))
	}

	return accounts[0], nil
}

// provision binds the wrapper, signer and contract handle to the account and
// marks the session connected. Signer and chain mismatches are reported only.
func (c *Controller) provision(ctx context.Context, provider wallet.Provider, source string, account common.Address) {
	logger := c.logger.WithFields(logrus.Fields{
		"source":  source,
		"account": account.Hex(),
	})

	web3 := wallet.NewWeb3Provider(provider, c.opts.ReceiptPollInterval, logger)
	signer := web3.GetSigner(account)
	matrix := contract.NewMatrix(c.opts.ContractAddress, c.opts.ContractABI, web3, signer)

	signerAddress, err := signer.GetAddress(ctx)
	if err != nil {
		c.notifier.DebugLog("could not read signer address: %v", err)
	} else if signerAddress != account {
		c.notifier.DebugLog("signer address %v differs from account %v", signerAddress.Hex(), account.Hex())
	}

	chainID, err := wallet.ChainID(ctx, provider)
	if err != nil {
		c.notifier.DebugLog("could not read chain id: %v", err)
	} else if chainID != c.opts.Network.ChainID {
		c.notifier.DebugLog("connected on chain %v, required %v", chainID, c.opts.Network.ChainID)
		if c.opts.AutoSwitchNetwork {
			if _, err := wallet.EnsureRequiredNetwork(ctx, provider, c.opts.Network, logger); err != nil {
				c.notifier.DebugLog("automatic network switch failed: %v", err)
			} else if current, err := wallet.ChainID(ctx, provider); err == nil {
				chainID = current
			}
		}
		if chainID != c.opts.Network.ChainID {
			c.notifier.Notify("Not on "+c.opts.Network.ChainName+", but the wallet is connected", LevelWarning, 0)
		}
	}

	watcher := &eventWatcher{
		subscription: provider.Subscribe(32),
		done:         make(chan struct{}),
	}

	c.state.mutex.Lock()
	c.state.source = source
	c.state.provider = provider
	c.state.web3 = web3
	c.state.signer = signer
	c.state.contract = matrix
	c.state.account = account
	c.state.chainID = chainID
	c.state.watcher = watcher
	c.state.phase = PhaseConnected
	c.state.mutex.Unlock()

	c.loop.spawn("Controller.watchEvents", func(ctx context.Context) {
		c.watchEvents(ctx, watcher)
	})

	c.notifier.DebugLog("connected %v via %v", account.Hex(), source)
}

func (c *Controller) watchEvents(ctx context.Context, watcher *eventWatcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-watcher.done:
			return
		case event := <-watcher.subscription.Channel():
			metrics.ProviderEventsTotal.WithLabelValues(event.Name).Inc()
			c.loop.post(event.Name, func(ctx context.Context) error {
				c.handleProviderEvent(ctx, watcher, event)
				return nil
			})
		}
	}
}

func (c *Controller) handleProviderEvent(ctx context.Context, watcher *eventWatcher, event *wallet.Event) {
	c.state.mutex.RLock()
	current := c.state.watcher == watcher
	c.state.mutex.RUnlock()
	if !current || !c.state.IsConnected() {
		return
	}

	switch event.Name {
	case wallet.EventAccountsChanged:
		c.handleAccountsChanged(ctx, event.Accounts)
	case wallet.EventChainChanged:
		if event.ChainID != nil && event.ChainID.IsUint64() {
			c.handleChainChanged(event.ChainID.Uint64())
		}
	}
}

func (c *Controller) handleAccountsChanged(ctx context.Context, accounts []common.Address) {
	if len(accounts) == 0 {
		c.notifier.DebugLog("wallet reports no accounts")
		c.disconnect("accounts cleared")
		return
	}

	account := accounts[0]

	c.state.mutex.Lock()
	if c.state.account != account {
		signer := c.state.web3.GetSigner(account)
		c.state.signer = signer
		c.state.contract = c.state.contract.WithTransactor(signer)
		c.state.account = account
		c.state.mutex.Unlock()

		c.notifier.DebugLog("active account changed to %v", account.Hex())
		c.notifier.Notify("Account changed", LevelInfo, 0)
	} else {
		c.state.mutex.Unlock()
	}

	c.refresh(ctx)
}

func (c *Controller) handleChainChanged(chainID uint64) {
	c.state.mutex.Lock()
	c.state.chainID = chainID
	c.state.mutex.Unlock()

	c.notifier.DebugLog("chain changed to %v", chainID)
	if chainID != c.opts.Network.ChainID {
		c.notifier.Notify("Please switch back to "+c.opts.Network.ChainName, LevelWarning, 0)
		return
	}

	c.notifier.Notify(c.opts.Network.ChainName+" network active", LevelSuccess, 0)
	c.scheduleRefresh(c.opts.ChainChangeRefreshDelay)
}

// scheduleRefresh queues one refresh after delay, replacing a pending one.
func (c *Controller) scheduleRefresh(delay time.Duration) {
	c.timerMutex.Lock()
	defer c.timerMutex.Unlock()

	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
	}
	c.refreshTimer = time.AfterFunc(delay, func() {
		defer utils.HandleSubroutinePanic("Controller.scheduleRefresh")
		c.loop.post("delayed refresh", func(ctx context.Context) error {
			c.refresh(ctx)
			return nil
		})
	})
}

func (c *Controller) disconnect(reason string) {
	c.timerMutex.Lock()
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
		c.refreshTimer = nil
	}
	c.timerMutex.Unlock()

	wasConnected := c.state.IsConnected()
	if watcher := c.state.clear(); watcher != nil {
		watcher.stop()
	}

	c.dataMutex.Lock()
	c.derived = DerivedContractState{}
	c.dataMutex.Unlock()

	if wasConnected {
		c.notifier.DebugLog("wallet disconnected (%v)", reason)
		c.notifier.Notify("Wallet disconnected", LevelInfo, 0)
	}
}

// AutoConnect connects after delay, but only when the wallet already reports
// authorized accounts, so no approval prompt is triggered.
func (c *Controller) AutoConnect(delay time.Duration) {
	c.loop.spawn("Controller.AutoConnect", func(ctx context.Context) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		if c.state.IsConnected() {
			return
		}

		resolution, err := c.resolver.Resolve(c.opts.Bindings)
		if err != nil {
			c.notifier.DebugLog("auto connect skipped: %v", err)
			return
		}
		provider, ok := resolution.Handle.(wallet.Provider)
		if !ok {
			return
		}

		var accounts []common.Address
		if err := provider.Request(ctx, &accounts, "eth_accounts"); err != nil || len(accounts) == 0 {
			c.notifier.DebugLog("auto connect skipped: wallet not authorized")
			return
		}

		c.notifier.DebugLog("wallet already authorized, connecting")
		if _, err := c.Start(ControlConnect); err != nil {
			c.notifier.DebugLog("auto connect skipped: %v", err)
		}
	})
}

func (c *Controller) ensureNetwork(ctx context.Context) error {
	provider := c.activeProvider()
	if provider == nil {
		err := newError(KindProviderNotFound, "network", wallet.ErrProviderNotFound)
		c.notifier.Notify(UserMessage(err), LevelError, 0)
		return err
	}

	switched, err := wallet.EnsureRequiredNetwork(ctx, provider, c.opts.Network, c.logger)
	if err != nil {
		dappErr := newError(KindNetworkSwitchFailed, "network", err)
		c.notifier.DebugLog("network switch failed: %v", err)
		c.notifier.Notify(UserMessage(dappErr), LevelError, 0)
		metrics.ActionsTotal.WithLabelValues(string(ControlNetwork), string(KindNetworkSwitchFailed)).Inc()
		return dappErr
	}

	metrics.ActionsTotal.WithLabelValues(string(ControlNetwork), "success").Inc()
	if switched {
		c.notifier.Notify(c.opts.Network.ChainName+" network active", LevelSuccess, 0)
	} else {
		c.notifier.DebugLog("already on %v", c.opts.Network.ChainName)
	}
	return nil
}

// activeProvider returns the connected provider, or resolves one when not connected.
func (c *Controller) activeProvider() wallet.Provider {
	if handles := c.state.handles(); handles != nil {
		return handles.provider
	}
	resolution, err := c.resolver.Resolve(c.opts.Bindings)
	if err != nil {
		return nil
	}
	provider, _ := resolution.Handle.(wallet.Provider)
	return provider
}
