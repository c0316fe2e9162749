package dapp

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/spsmatrix/dapp/metrics"
	"github.com/spsmatrix/dapp/types"
	"github.com/spsmatrix/dapp/wallet"
)

// GasLimits are the fixed gas ceilings per contract action.
type GasLimits struct {
	Register        uint64
	WithdrawPool    uint64
	WithdrawSpecial uint64
	Contribute      uint64
}

func (g *GasLimits) applyDefaults() {
	if g.Register == 0 {
		g.Register = 500000
	}
	if g.WithdrawPool == 0 {
		g.WithdrawPool = 300000
	}
	if g.WithdrawSpecial == 0 {
		g.WithdrawSpecial = 300000
	}
	if g.Contribute == 0 {
		g.Contribute = 200000
	}
}

type Options struct {
	Bindings *wallet.Bindings
	Resolver *wallet.Resolver
	Network  *types.NetworkDescriptor

	ContractAddress common.Address
	ContractABI     *abi.ABI
	DefaultEntryFee *big.Int
	GasLimits       GasLimits

	AutoSwitchNetwork       bool
	ReceiptPollInterval     time.Duration
	ChainChangeRefreshDelay time.Duration
	RefreshInterval         time.Duration

	Notifier *NotificationCenter
	Logger   logrus.FieldLogger
}

// Controller owns the session: connection state, cached entry fee, derived
// contract state, action controls and input fields. Every flow runs on the
// controller loop.
type Controller struct {
	opts     Options
	logger   logrus.FieldLogger
	notifier *NotificationCenter
	resolver *wallet.Resolver
	loop     *flowLoop

	state    ConnectionState
	controls *controlSet
	inputs   inputFields

	dataMutex   sync.RWMutex
	entryFee    *big.Int
	entryFeeSet bool
	derived     DerivedContractState

	timerMutex   sync.Mutex
	refreshTimer *time.Timer

	stopMetrics func()
}

func NewController(opts Options) (*Controller, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("missing logger")
	}
	if opts.Bindings == nil {
		return nil, fmt.Errorf("missing wallet bindings")
	}
	if opts.Network == nil || opts.Network.ChainID == 0 {
		return nil, fmt.Errorf("missing network descriptor")
	}
	if opts.ContractABI == nil {
		return nil, fmt.Errorf("missing contract abi")
	}
	if opts.DefaultEntryFee == nil {
		opts.DefaultEntryFee = big.NewInt(0)
	}
	if opts.ChainChangeRefreshDelay <= 0 {
		opts.ChainChangeRefreshDelay = time.Second
	}
	opts.GasLimits.applyDefaults()

	logger := opts.Logger.WithField("module", "dapp")
	if opts.Resolver == nil {
		opts.Resolver = wallet.NewResolver(logger.WithField("module", "resolver"))
	}
	if opts.Notifier == nil {
		opts.Notifier = NewNotificationCenter(logger.WithField("module", "notifier"), 10*time.Millisecond, 4*time.Second, 500)
	}

	controller := &Controller{
		opts:     opts,
		logger:   logger,
		notifier: opts.Notifier,
		resolver: opts.Resolver,
		loop:     newFlowLoop(logger, 256),
		controls: newControlSet(),
		entryFee: new(big.Int).Set(opts.DefaultEntryFee),
	}
	controller.state.phase = PhaseDisconnected

	controller.stopMetrics = metrics.AddPreCollectFn(func() {
		if controller.state.IsConnected() {
			metrics.ConnectionConnected.Set(1)
		} else {
			metrics.ConnectionConnected.Set(0)
		}
	})

	if opts.RefreshInterval > 0 {
		controller.loop.spawn("Controller.runPeriodicRefresh", controller.runPeriodicRefresh)
	}

	return controller, nil
}

func (c *Controller) Notifier() *NotificationCenter {
	return c.notifier
}

func (c *Controller) Network() *types.NetworkDescriptor {
	return c.opts.Network
}

func (c *Controller) ContractAddress() common.Address {
	return c.opts.ContractAddress
}

func (c *Controller) Control(name ControlName) *Control {
	return c.controls.get(name)
}

// Detect reports the wallet environment without connecting.
func (c *Controller) Detect(ctx context.Context) *wallet.DetectionReport {
	return c.resolver.Inspect(ctx, c.opts.Bindings)
}

// SetInputs replaces the form fields.
func (c *Controller) SetInputs(values InputValues) {
	c.inputs.set(values)
}

// UpdateInputs edits the form fields in place, so concurrent edits of
// different fields do not overwrite each other.
func (c *Controller) UpdateInputs(fn func(values *InputValues)) {
	c.inputs.update(fn)
}

func (c *Controller) Inputs() InputValues {
	return c.inputs.get()
}

// EntryFee returns the cached registration fee and whether it was read from
// the contract.
func (c *Controller) EntryFee() (*big.Int, bool) {
	c.dataMutex.RLock()
	defer c.dataMutex.RUnlock()
	return new(big.Int).Set(c.entryFee), c.entryFeeSet
}

func (c *Controller) Derived() DerivedContractState {
	c.dataMutex.RLock()
	defer c.dataMutex.RUnlock()
	return c.derived.copy()
}

func (c *Controller) Snapshot() *StateSnapshot {
	c.state.mutex.RLock()
	snapshot := &StateSnapshot{
		Phase:      c.state.phase,
		Connected:  c.state.isConnected(),
		Source:     c.state.source,
		Account:    c.state.account,
		ChainID:    c.state.chainID,
		OnRequired: c.state.chainID == c.opts.Network.ChainID,
	}
	c.state.mutex.RUnlock()

	snapshot.EntryFee, snapshot.EntryFeeSet = c.EntryFee()
	snapshot.Derived = c.Derived()
	snapshot.Controls = c.controls.states()
	snapshot.Inputs = c.inputs.get()
	return snapshot
}

// Start acquires the control of an action and dispatches the action onto the
// loop. A busy control is rejected right away.
func (c *Controller) Start(name ControlName) (*Flow, error) {
	control := c.controls.get(name)
	if control == nil {
		return nil, fmt.Errorf("unknown action: %v", name)
	}

	release, ok := control.Acquire()
	if !ok {
		err := newError(KindActionBusy, string(name), ErrActionBusy)
		c.notifier.DebugLog("%v ignored: already in progress", name)
		return nil, err
	}

	var fn func(ctx context.Context) error
	switch name {
	case ControlConnect:
		fn = c.connect
	case ControlRegister:
		fn = c.register
	case ControlWithdrawPool:
		fn = c.withdrawPool
	case ControlWithdrawSpecial:
		fn = c.withdrawSpecial
	case ControlContribute:
		fn = c.contribute
	case ControlNetwork:
		fn = c.ensureNetwork
	}

	flow := c.loop.post(string(name), func(ctx context.Context) error {
		defer release()
		return fn(ctx)
	})
	go func() {
		// flows dropped by a closing loop never run their release
		<-flow.Done()
		release()
	}()
	return flow, nil
}

func (c *Controller) run(ctx context.Context, name ControlName) error {
	flow, err := c.Start(name)
	if err != nil {
		return err
	}
	return flow.Wait(ctx)
}

func (c *Controller) Connect(ctx context.Context) error {
	return c.run(ctx, ControlConnect)
}

func (c *Controller) Register(ctx context.Context) error {
	return c.run(ctx, ControlRegister)
}

func (c *Controller) WithdrawPool(ctx context.Context) error {
	return c.run(ctx, ControlWithdrawPool)
}

func (c *Controller) WithdrawSpecial(ctx context.Context) error {
	return c.run(ctx, ControlWithdrawSpecial)
}

func (c *Controller) Contribute(ctx context.Context) error {
	return c.run(ctx, ControlContribute)
}

func (c *Controller) EnsureNetwork(ctx context.Context) error {
	return c.run(ctx, ControlNetwork)
}

func (c *Controller) Disconnect(ctx context.Context) error {
	return c.loop.runSync(ctx, "disconnect", func(ctx context.Context) error {
		c.disconnect("user")
		return nil
	})
}

// Refresh re-reads the derived contract state. It never fails.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.loop.runSync(ctx, "refresh", func(ctx context.Context) error {
		c.refresh(ctx)
		return nil
	})
}

func (c *Controller) Close() {
	c.timerMutex.Lock()
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
		c.refreshTimer = nil
	}
	c.timerMutex.Unlock()

	c.stopMetrics()
	c.loop.close()
	if watcher := c.state.clear(); watcher != nil {
		watcher.stop()
	}
	c.notifier.Close()
}

func (c *Controller) runPeriodicRefresh(ctx context.Context) {
	ticker := time.NewTicker(c.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !c.state.IsConnected() {
			continue
		}
		c.loop.post("periodic refresh", func(ctx context.Context) error {
			c.refresh(ctx)
			return nil
		})
	}
}
