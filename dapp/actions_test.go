package dapp

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spsmatrix/dapp/utils"
	"github.com/spsmatrix/dapp/wallet"
)

func TestActionsRequireConnection(t *testing.T) {
	env := newTestEnv(t, wallet.BindingEthereum)
	env.controller.SetInputs(InputValues{UplineID: "1", ContributeAmount: "5"})

	actions := map[ControlName]func(ctx context.Context) error{
		ControlRegister:        env.controller.Register,
		ControlWithdrawPool:    env.controller.WithdrawPool,
		ControlWithdrawSpecial: env.controller.WithdrawSpecial,
		ControlContribute:      env.controller.Contribute,
	}
	for name, action := range actions {
		err := action(context.Background())
		require.Error(t, err, name)
		assert.Equal(t, KindPreconditionFailed, KindOf(err), name)
		assert.ErrorIs(t, err, ErrNotConnected, name)
		assert.Equal(t, uint64(1), env.controller.Control(name).Restores(), name)
		assert.False(t, env.controller.Control(name).State().Disabled, name)
	}

	assert.Equal(t, 0, env.wallet.callCount("eth_sendTransaction"))
}

func TestRegisterBalanceCheck(t *testing.T) {
	tests := []struct {
		name    string
		balance int64
		sent    bool
	}{
		{"balance below fee plus margin", 300, false},
		{"balance just below margin", 385, false},
		{"balance covers margin", 400, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, wallet.BindingEthereum)
			env.wallet.update(func(w *scriptedWallet) {
				w.balance = new(big.Int).Sub(utils.NativeToWei(tc.balance), big.NewInt(1))
				if tc.sent {
					w.balance = utils.NativeToWei(tc.balance)
				}
			})
			env.connect(t)
			env.controller.SetInputs(InputValues{UplineID: "7", Position: "true"})

			err := env.controller.Register(context.Background())
			sent := env.wallet.sentTransactions()
			if !tc.sent {
				require.Error(t, err)
				assert.Equal(t, KindInsufficientFunds, KindOf(err))
				assert.Empty(t, sent)
				assert.Equal(t, "7", env.controller.Inputs().UplineID)
				return
			}

			require.NoError(t, err)
			require.Len(t, sent, 1)
			assert.Equal(t, testContract, *sent[0].To)
			assert.Equal(t, testAccount, *sent[0].From)
			assert.Equal(t, uint64(500000), uint64(*sent[0].Gas))
			assert.Equal(t, utils.NativeToWei(350).String(), sent[0].Value.ToInt().String())
			assert.Equal(t, "", env.controller.Inputs().UplineID)
			assert.Equal(t, uint64(1), env.controller.Control(ControlRegister).Restores())
		})
	}
}

func TestRegisterRequiresUpline(t *testing.T) {
	env := newTestEnv(t, wallet.BindingEthereum)
	env.connect(t)

	err := env.controller.Register(context.Background())
	assert.Equal(t, KindPreconditionFailed, KindOf(err))
	assert.Equal(t, 0, env.wallet.callCount("eth_sendTransaction"))
}

func TestRegisterFailureMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorKind
	}{
		{"rejected", &wallet.RequestError{Code: wallet.CodeUserRejected, Message: "User denied transaction signature."}, KindUserRejected},
		{"upline", &wallet.RequestError{Code: -32603, Message: "execution reverted: Upline does not exist"}, KindUplineNotFound},
		{"registered", &wallet.RequestError{Code: 3, Message: "execution reverted", Data: revertData("User already registered")}, KindAlreadyRegistered},
		{"funds", errors.New("insufficient funds for gas * price + value"), KindInsufficientFunds},
		{"other", errors.New("nonce too low"), KindTransactionFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, wallet.BindingEthereum)
			env.wallet.update(func(w *scriptedWallet) {
				w.sendError = tc.err
			})
			env.connect(t)
			env.controller.SetInputs(InputValues{UplineID: "1"})

			err := env.controller.Register(context.Background())
			require.Error(t, err)
			assert.Equal(t, tc.expected, KindOf(err))
			assert.Equal(t, uint64(1), env.controller.Control(ControlRegister).Restores())
			assert.Equal(t, "1", env.controller.Inputs().UplineID)
		})
	}
}

func TestWithdrawPoolChecksWithdrawable(t *testing.T) {
	env := newTestEnv(t, wallet.BindingEthereum)
	env.wallet.update(func(w *scriptedWallet) {
		w.views["isPoolWithdrawable"] = []interface{}{false}
	})
	env.connect(t)

	err := env.controller.WithdrawPool(context.Background())
	assert.Equal(t, KindPreconditionFailed, KindOf(err))
	assert.Equal(t, 0, env.wallet.callCount("eth_sendTransaction"))

	env.wallet.update(func(w *scriptedWallet) {
		w.views["isPoolWithdrawable"] = []interface{}{true}
	})
	require.NoError(t, env.controller.WithdrawPool(context.Background()))

	sent := env.wallet.sentTransactions()
	require.Len(t, sent, 1)
	assert.Equal(t, uint64(300000), uint64(*sent[0].Gas))
	assert.Nil(t, sent[0].Value)
}

func TestWithdrawSpecialRevertedReceipt(t *testing.T) {
	env := newTestEnv(t, wallet.BindingEthereum)
	env.wallet.update(func(w *scriptedWallet) {
		w.receiptFail = true
	})
	env.connect(t)

	err := env.controller.WithdrawSpecial(context.Background())
	assert.Equal(t, KindTransactionFailed, KindOf(err))
	assert.ErrorIs(t, err, errTransactionReverted)
	assert.Equal(t, uint64(1), env.controller.Control(ControlWithdrawSpecial).Restores())
}

func TestContribute(t *testing.T) {
	env := newTestEnv(t, wallet.BindingEthereum)
	env.connect(t)

	for _, amount := range []string{"", "0", "-1", "abc"} {
		env.controller.SetInputs(InputValues{ContributeAmount: amount})
		err := env.controller.Contribute(context.Background())
		assert.Equal(t, KindPreconditionFailed, KindOf(err), amount)
	}
	assert.Equal(t, 0, env.wallet.callCount("eth_sendTransaction"))

	env.controller.SetInputs(InputValues{ContributeAmount: "2.5"})
	require.NoError(t, env.controller.Contribute(context.Background()))

	sent := env.wallet.sentTransactions()
	require.Len(t, sent, 1)
	assert.Equal(t, uint64(200000), uint64(*sent[0].Gas))
	assert.Equal(t, "2500000000000000000", sent[0].Value.ToInt().String())
	assert.Equal(t, "", env.controller.Inputs().ContributeAmount)
}

func TestBusyControlRejectsSecondPress(t *testing.T) {
	env := newTestEnv(t, wallet.BindingEthereum)
	env.wallet.update(func(w *scriptedWallet) {
		w.holdReceipts = true
	})
	env.connect(t)

	flow, err := env.controller.Start(ControlWithdrawSpecial)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(env.wallet.sentTransactions()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.True(t, env.controller.Control(ControlWithdrawSpecial).State().Disabled)

	_, err = env.controller.Start(ControlWithdrawSpecial)
	assert.Equal(t, KindActionBusy, KindOf(err))

	env.wallet.update(func(w *scriptedWallet) {
		w.holdReceipts = false
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, flow.Wait(ctx))

	assert.Len(t, env.wallet.sentTransactions(), 1)
	assert.False(t, env.controller.Control(ControlWithdrawSpecial).State().Disabled)
	assert.Equal(t, uint64(1), env.controller.Control(ControlWithdrawSpecial).Restores())
}

func TestConfirmationEndsOnProviderFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"disconnected", &wallet.RequestError{Code: wallet.CodeDisconnected, Message: "provider disconnected"}},
		{"unauthorized", &wallet.RequestError{Code: wallet.CodeUnauthorized, Message: "not authorized"}},
		{"repeated failures", errors.New("connection refused")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, wallet.BindingEthereum)
			env.wallet.update(func(w *scriptedWallet) {
				w.receiptError = tc.err
			})
			env.connect(t)

			flow, err := env.controller.Start(ControlWithdrawSpecial)
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			err = flow.Wait(ctx)
			require.Error(t, err)
			assert.NotErrorIs(t, err, context.DeadlineExceeded)
			assert.Equal(t, KindTransactionFailed, KindOf(err))
			assert.False(t, env.controller.Control(ControlWithdrawSpecial).State().Disabled)
			assert.Equal(t, uint64(1), env.controller.Control(ControlWithdrawSpecial).Restores())

			require.NoError(t, env.controller.Disconnect(ctx))
			assert.False(t, env.controller.state.IsConnected())
		})
	}
}
