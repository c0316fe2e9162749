package dapp

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spsmatrix/dapp/contract"
	"github.com/spsmatrix/dapp/types"
	"github.com/spsmatrix/dapp/utils"
	"github.com/spsmatrix/dapp/wallet"
)

var (
	testAccount  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	otherAccount = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	testContract = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

func testNetwork() *types.NetworkDescriptor {
	return &types.NetworkDescriptor{
		ChainID:   137,
		ChainName: "Polygon Mainnet",
		NativeCurrency: types.NativeCurrency{
			Name:     "MATIC",
			Symbol:   "MATIC",
			Decimals: 18,
		},
		RpcUrls: []string{"https://polygon-rpc.com/"},
	}
}

type testEnv struct {
	controller *Controller
	wallet     *scriptedWallet
	bindings   *wallet.Bindings
}

func newTestEnv(t *testing.T, bindingName string) *testEnv {
	t.Helper()

	contractAbi, err := contract.LoadABI("")
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	scripted := newScriptedWallet(contractAbi)
	bindings := wallet.NewBindings()
	if bindingName != "" {
		bindings.Set(bindingName, scripted)
	}

	controller, err := NewController(Options{
		Bindings:                bindings,
		Network:                 testNetwork(),
		ContractAddress:         testContract,
		ContractABI:             contractAbi,
		DefaultEntryFee:         utils.NativeToWei(350),
		ReceiptPollInterval:     5 * time.Millisecond,
		ChainChangeRefreshDelay: 20 * time.Millisecond,
		Notifier:                NewNotificationCenter(logger, 0, time.Second, 100),
		Logger:                  logger,
	})
	require.NoError(t, err)
	t.Cleanup(controller.Close)

	return &testEnv{
		controller: controller,
		wallet:     scripted,
		bindings:   bindings,
	}
}

func (env *testEnv) connect(t *testing.T) {
	t.Helper()
	env.wallet.update(func(w *scriptedWallet) {
		w.authorized = []common.Address{testAccount}
	})
	require.NoError(t, env.controller.Connect(context.Background()))
	require.True(t, env.controller.state.IsConnected())
}

func TestConnectWithoutProvider(t *testing.T) {
	env := newTestEnv(t, "")

	err := env.controller.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindProviderNotFound, KindOf(err))
	assert.False(t, env.controller.state.IsConnected())
	assert.Equal(t, PhaseDisconnected, env.controller.state.Phase())
	assert.Equal(t, uint64(1), env.controller.Control(ControlConnect).Restores())
}

func TestConnectUnsupportedProvider(t *testing.T) {
	env := newTestEnv(t, "")
	env.bindings.Set(wallet.BindingEthereum, "not a provider")

	err := env.controller.Connect(context.Background())
	assert.Equal(t, KindUnsupportedProvider, KindOf(err))
	assert.False(t, env.controller.state.IsConnected())
}

func TestConnectAuthorizedSkipsPrompt(t *testing.T) {
	env := newTestEnv(t, wallet.BindingEthereum)
	env.connect(t)

	assert.Equal(t, 0, env.wallet.callCount("eth_requestAccounts"))

	snapshot := env.controller.Snapshot()
	assert.True(t, snapshot.Connected)
	assert.Equal(t, PhaseConnected, snapshot.Phase)
	assert.Equal(t, testAccount, snapshot.Account)
	assert.True(t, snapshot.OnRequired)
	assert.True(t, snapshot.EntryFeeSet)
	assert.Equal(t, utils.NativeToWei(350).String(), snapshot.EntryFee.String())
	assert.Equal(t, int64(42), snapshot.Derived.TotalUsers.Int64())
	assert.Equal(t, utils.NativeToWei(1000).String(), snapshot.Derived.WalletBalance.String())
}

func TestConnectPromptsForAccounts(t *testing.T) {
	env := newTestEnv(t, wallet.BindingEthereum)
	env.wallet.update(func(w *scriptedWallet) {
		w.approve = []common.Address{testAccount}
	})

	require.NoError(t, env.controller.Connect(context.Background()))
	assert.Equal(t, 1, env.wallet.callCount("eth_requestAccounts"))
	assert.Equal(t, testAccount, env.controller.Snapshot().Account)
}

func TestConnectAuthorizationFailures(t *testing.T) {
	tests := []struct {
		name         string
		requestError error
		approve      []common.Address
		expected     ErrorKind
	}{
		{"rejected", &wallet.RequestError{Code: wallet.CodeUserRejected, Message: "User rejected the request."}, nil, KindUserRejected},
		{"closed dialog", &wallet.RequestError{Code: wallet.CodeInternal, Message: "internal error"}, nil, KindUserRejected},
		{"pending code", &wallet.RequestError{Code: wallet.CodeResourceUnavailable, Message: "busy"}, nil, KindRequestPending},
		{"pending message", &wallet.RequestError{Code: -32000, Message: "Request of type 'wallet_requestPermissions' already pending"}, nil, KindRequestPending},
		{"no account", nil, []common.Address{}, KindNoAccountSelected},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, wallet.BindingEthereum)
			env.wallet.update(func(w *scriptedWallet) {
				w.requestError = tc.requestError
				w.approve = tc.approve
			})

			err := env.controller.Connect(context.Background())
			require.Error(t, err)
			assert.Equal(t, tc.expected, KindOf(err))
			assert.False(t, env.controller.state.IsConnected())
			assert.Equal(t, PhaseDisconnected, env.controller.state.Phase())
		})
	}
}

func TestConnectInstallsAlternateProvider(t *testing.T) {
	env := newTestEnv(t, wallet.BindingSafepalProvider)
	env.connect(t)

	installed, found := env.bindings.Lookup(wallet.BindingEthereum)
	require.True(t, found)
	assert.Same(t, env.wallet, installed)
	assert.Equal(t, wallet.BindingSafepalProvider, env.controller.Snapshot().Source)
}

func TestConnectWrongChainStillConnects(t *testing.T) {
	env := newTestEnv(t, wallet.BindingEthereum)
	env.wallet.update(func(w *scriptedWallet) {
		w.chainID = 1
	})
	env.connect(t)

	snapshot := env.controller.Snapshot()
	assert.True(t, snapshot.Connected)
	assert.False(t, snapshot.OnRequired)
	assert.Equal(t, 0, env.wallet.callCount("wallet_switchEthereumChain"))
}

func TestEntryFeeFallback(t *testing.T) {
	env := newTestEnv(t, wallet.BindingEthereum)
	env.wallet.update(func(w *scriptedWallet) {
		w.viewErrors["ENTRY_FEE"] = errAccessor
	})
	env.connect(t)

	fee, fromContract := env.controller.EntryFee()
	assert.False(t, fromContract)
	assert.Equal(t, utils.NativeToWei(350).String(), fee.String())
}

func TestAccountsChangedEmptyDisconnects(t *testing.T) {
	env := newTestEnv(t, wallet.BindingEthereum)
	env.connect(t)

	env.wallet.fire(&wallet.Event{Name: wallet.EventAccountsChanged, Accounts: []common.Address{}})

	require.Eventually(t, func() bool {
		return !env.controller.state.IsConnected()
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, common.Address{}, env.controller.Snapshot().Account)
	assert.Nil(t, env.controller.Derived().TotalUsers)
}

func TestAccountsChangedSwitchesAccount(t *testing.T) {
	env := newTestEnv(t, wallet.BindingEthereum)
	env.connect(t)
	before := env.wallet.viewCallCount("totalUsers")

	env.wallet.fire(&wallet.Event{Name: wallet.EventAccountsChanged, Accounts: []common.Address{otherAccount}})

	require.Eventually(t, func() bool {
		return env.controller.Snapshot().Account == otherAccount
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return env.wallet.viewCallCount("totalUsers") == before+1
	}, time.Second, 5*time.Millisecond)

	handles := env.controller.state.handles()
	require.NotNil(t, handles)
	assert.Equal(t, otherAccount, handles.signer.Address())
}

func TestChainChangedRefreshesOnce(t *testing.T) {
	env := newTestEnv(t, wallet.BindingEthereum)
	env.connect(t)
	before := env.wallet.viewCallCount("totalUsers")

	env.wallet.fire(&wallet.Event{Name: wallet.EventChainChanged, ChainID: big.NewInt(1)})
	require.Eventually(t, func() bool {
		return env.controller.Snapshot().ChainID == 1
	}, time.Second, 5*time.Millisecond)
	assert.False(t, env.controller.Snapshot().OnRequired)

	env.wallet.fire(&wallet.Event{Name: wallet.EventChainChanged, ChainID: big.NewInt(137)})
	require.Eventually(t, func() bool {
		return env.wallet.viewCallCount("totalUsers") == before+1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, before+1, env.wallet.viewCallCount("totalUsers"))
	assert.True(t, env.controller.Snapshot().OnRequired)
}

func TestEventsIgnoredAfterDisconnect(t *testing.T) {
	env := newTestEnv(t, wallet.BindingEthereum)
	env.connect(t)
	require.NoError(t, env.controller.Disconnect(context.Background()))

	env.wallet.fire(&wallet.Event{Name: wallet.EventAccountsChanged, Accounts: []common.Address{otherAccount}})
	time.Sleep(50 * time.Millisecond)

	assert.False(t, env.controller.state.IsConnected())
	assert.Equal(t, common.Address{}, env.controller.Snapshot().Account)
}

func TestEnsureNetworkSwitchesChain(t *testing.T) {
	env := newTestEnv(t, wallet.BindingEthereum)
	env.wallet.update(func(w *scriptedWallet) {
		w.chainID = 1
	})

	require.NoError(t, env.controller.EnsureNetwork(context.Background()))
	assert.Equal(t, 1, env.wallet.callCount("wallet_switchEthereumChain"))

	require.NoError(t, env.controller.EnsureNetwork(context.Background()))
	assert.Equal(t, 1, env.wallet.callCount("wallet_switchEthereumChain"))
}

func TestAutoConnectRequiresAuthorization(t *testing.T) {
	env := newTestEnv(t, wallet.BindingEthereum)
	env.wallet.update(func(w *scriptedWallet) {
		w.approve = []common.Address{testAccount}
	})

	env.controller.AutoConnect(0)
	time.Sleep(50 * time.Millisecond)
	assert.False(t, env.controller.state.IsConnected())
	assert.Equal(t, 0, env.wallet.callCount("eth_requestAccounts"))

	env.wallet.update(func(w *scriptedWallet) {
		w.authorized = []common.Address{testAccount}
	})
	env.controller.AutoConnect(0)
	require.Eventually(t, env.controller.state.IsConnected, time.Second, 5*time.Millisecond)
}
