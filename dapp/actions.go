package dapp

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/spsmatrix/dapp/contract"
	"github.com/spsmatrix/dapp/metrics"
	"github.com/spsmatrix/dapp/utils"
)

// contractAction describes one state changing contract call.
type contractAction struct {
	control  ControlName
	gasLimit uint64

	// prepare checks the preconditions and returns the value to send.
	prepare func(ctx context.Context, handles *connectionHandles) (*big.Int, error)
	submit  func(ctx context.Context, handles *connectionHandles, opts *contract.TransactOpts) (common.Hash, error)

	pendingMessage string
	successMessage string
	onSuccess      func()
}

var errTransactionReverted = errors.New("transaction reverted")

// runAction validates, submits, awaits inclusion and refreshes. The control
// was acquired by the caller and is restored by it.
func (c *Controller) runAction(ctx context.Context, action *contractAction) error {
	op := string(action.control)

	handles := c.state.handles()
	if handles == nil {
		return c.actionFailed(op, newError(KindPreconditionFailed, op, ErrNotConnected))
	}

	var value *big.Int
	if action.prepare != nil {
		var err error
		value, err = action.prepare(ctx, handles)
		if err != nil {
			if KindOf(err) == "" {
				err = newError(KindPreconditionFailed, op, err)
			}
			return c.actionFailed(op, err)
		}
	}

	c.notifier.Notify(action.pendingMessage, LevelInfo, 0)

	txHash, err := action.submit(ctx, handles, &contract.TransactOpts{
		Value:    value,
		GasLimit: action.gasLimit,
	})
	if err != nil {
		return c.actionFailed(op, err)
	}

	c.notifier.DebugLog("%v transaction sent: %v", op, txHash.Hex())
	c.notifier.Notify("Transaction sent! Waiting for confirmation...", LevelSuccess, 0)

	submitted := time.Now()
	receipt, err := handles.signer.WaitMined(ctx, txHash)
	if err != nil {
		return c.actionFailed(op, err)
	}
	metrics.ConfirmationSeconds.WithLabelValues(op).Observe(time.Since(submitted).Seconds())

	if receipt.Status != types.ReceiptStatusSuccessful {
		return c.actionFailed(op, newError(KindTransactionFailed, op, fmt.Errorf("%w: %v", errTransactionReverted, txHash.Hex())))
	}

	c.notifier.DebugLog("%v transaction confirmed in block %v", op, receipt.BlockNumber)
	c.notifier.Notify(action.successMessage, LevelSuccess, 0)
	metrics.ActionsTotal.WithLabelValues(op, "success").Inc()

	if action.onSuccess != nil {
		action.onSuccess()
	}
	c.refresh(ctx)
	return nil
}

func (c *Controller) actionFailed(op string, err error) error {
	kind := Classify(err)
	if KindOf(err) == "" {
		err = newError(kind, op, err)
	}

	metrics.ActionsTotal.WithLabelValues(op, string(kind)).Inc()
	c.notifier.DebugLog("%v failed: %v", op, err)
	c.notifier.Notify(UserMessage(err), LevelError, 0)
	return err
}

func (c *Controller) register(ctx context.Context) error {
	inputs := c.inputs.get()

	var uplineID *big.Int
	var position bool

	return c.runAction(ctx, &contractAction{
		control:  ControlRegister,
		gasLimit: c.opts.GasLimits.Register,
		prepare: func(ctx context.Context, handles *connectionHandles) (*big.Int, error) {
			var err error
			uplineID, err = parseUplineID(inputs.UplineID)
			if err != nil {
				return nil, err
			}
			position = parsePosition(inputs.Position)

			fee, _ := c.EntryFee()
			if err := c.checkBalanceForRegistration(ctx, handles, fee); err != nil {
				return nil, err
			}

			c.notifier.DebugLog("registering with upline %v, position %v", uplineID, position)
			return fee, nil
		},
		submit: func(ctx context.Context, handles *connectionHandles, opts *contract.TransactOpts) (common.Hash, error) {
			return handles.contract.Register(ctx, uplineID, position, opts)
		},
		pendingMessage: "Sending registration transaction...",
		successMessage: "Registration completed successfully!",
		onSuccess:      c.inputs.clearUpline,
	})
}

// checkBalanceForRegistration requires the fee plus a 10% margin for gas.
func (c *Controller) checkBalanceForRegistration(ctx context.Context, handles *connectionHandles, fee *big.Int) error {
	balance, err := handles.web3.BalanceAt(ctx, handles.account)
	if err != nil {
		return fmt.Errorf("could not check balance: %w", err)
	}

	required := new(big.Int).Mul(fee, big.NewInt(11))
	required.Div(required, big.NewInt(10))

	if balance.Cmp(required) < 0 {
		symbol := c.opts.Network.CurrencySymbol()
		c.notifier.DebugLog("insufficient balance, required: %v, available: %v", utils.FormatNativeExact(required), utils.FormatNativeExact(balance))
		return newError(KindInsufficientFunds, string(ControlRegister), fmt.Errorf("insufficient balance, required: %v %v", utils.FormatNative(required), symbol))
	}
	return nil
}

func (c *Controller) withdrawPool(ctx context.Context) error {
	return c.runAction(ctx, &contractAction{
		control:  ControlWithdrawPool,
		gasLimit: c.opts.GasLimits.WithdrawPool,
		prepare: func(ctx context.Context, handles *connectionHandles) (*big.Int, error) {
			withdrawable, err := handles.contract.IsPoolWithdrawable(ctx)
			if err != nil {
				return nil, fmt.Errorf("could not check pool status: %w", err)
			}
			if !withdrawable {
				return nil, errors.New("the pool is not withdrawable at the moment")
			}
			return nil, nil
		},
		submit: func(ctx context.Context, handles *connectionHandles, opts *contract.TransactOpts) (common.Hash, error) {
			return handles.contract.WithdrawPool(ctx, opts)
		},
		pendingMessage: "Withdrawing from the pool...",
		successMessage: "Pool withdrawal successful!",
	})
}

func (c *Controller) withdrawSpecial(ctx context.Context) error {
	return c.runAction(ctx, &contractAction{
		control:  ControlWithdrawSpecial,
		gasLimit: c.opts.GasLimits.WithdrawSpecial,
		submit: func(ctx context.Context, handles *connectionHandles, opts *contract.TransactOpts) (common.Hash, error) {
			return handles.contract.WithdrawSpecials(ctx, opts)
		},
		pendingMessage: "Withdrawing the special reward...",
		successMessage: "Special withdrawal successful!",
	})
}

func (c *Controller) contribute(ctx context.Context) error {
	inputs := c.inputs.get()

	return c.runAction(ctx, &contractAction{
		control:  ControlContribute,
		gasLimit: c.opts.GasLimits.Contribute,
		prepare: func(ctx context.Context, handles *connectionHandles) (*big.Int, error) {
			amount, err := parseContribution(inputs.ContributeAmount)
			if err != nil {
				return nil, err
			}
			c.notifier.DebugLog("contributing %v %v to the miner pool", utils.FormatNativeExact(amount), c.opts.Network.CurrencySymbol())
			return amount, nil
		},
		submit: func(ctx context.Context, handles *connectionHandles, opts *contract.TransactOpts) (common.Hash, error) {
			return handles.contract.ContributeToMinerPool(ctx, opts)
		},
		pendingMessage: "Sending contribution...",
		successMessage: "Your contribution was recorded!",
		onSuccess:      c.inputs.clearContribution,
	})
}
