package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spsmatrix/dapp/types"
)

type staticAuthorizer struct {
	passphrase string
	err        error
	calls      int
}

func (a *staticAuthorizer) Authorize(ctx context.Context, candidates []accounts.Account) (accounts.Account, string, error) {
	a.calls++
	if a.err != nil {
		return accounts.Account{}, "", a.err
	}
	if len(candidates) == 0 {
		return accounts.Account{}, "", ErrNoAccountsAvailable
	}
	return candidates[0], a.passphrase, nil
}

func newTestKeystoreProvider(t *testing.T, authorizer Authorizer) (*KeystoreProvider, accounts.Account) {
	t.Helper()

	ks := keystore.NewKeyStore(t.TempDir(), keystore.LightScryptN, keystore.LightScryptP)
	account, err := ks.NewAccount("secret")
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	provider := NewKeystoreProvider("ethereum", ks, authorizer, []*types.NetworkDescriptor{polygonNetwork()}, logger)
	t.Cleanup(func() {
		provider.Close()
	})
	return provider, account
}

func TestKeystoreRequestAccounts(t *testing.T) {
	authorizer := &staticAuthorizer{passphrase: "secret"}
	provider, account := newTestKeystoreProvider(t, authorizer)
	subscription := provider.Subscribe(4)
	defer subscription.Unsubscribe()

	var authorized []common.Address
	require.NoError(t, provider.Request(context.Background(), &authorized, "eth_accounts"))
	assert.Empty(t, authorized)

	require.NoError(t, provider.Request(context.Background(), &authorized, "eth_requestAccounts"))
	assert.Equal(t, []common.Address{account.Address}, authorized)

	select {
	case event := <-subscription.Channel():
		assert.Equal(t, EventAccountsChanged, event.Name)
		assert.Equal(t, []common.Address{account.Address}, event.Accounts)
	case <-time.After(time.Second):
		t.Fatal("no accountsChanged event")
	}

	require.NoError(t, provider.Request(context.Background(), &authorized, "eth_requestAccounts"))
	assert.Equal(t, 1, authorizer.calls)

	provider.Revoke()
	require.NoError(t, provider.Request(context.Background(), &authorized, "eth_accounts"))
	assert.Empty(t, authorized)

	select {
	case event := <-subscription.Channel():
		assert.Empty(t, event.Accounts)
	case <-time.After(time.Second):
		t.Fatal("no accountsChanged event after revoke")
	}
}

func TestKeystoreRequestAccountsFailures(t *testing.T) {
	tests := []struct {
		name       string
		authorizer *staticAuthorizer
		code       int
	}{
		{"declined", &staticAuthorizer{err: ErrAuthorizationDeclined}, CodeUserRejected},
		{"wrong passphrase", &staticAuthorizer{passphrase: "wrong"}, CodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			provider, _ := newTestKeystoreProvider(t, tc.authorizer)

			err := provider.Request(context.Background(), nil, "eth_requestAccounts")
			require.Error(t, err)
			code, ok := ErrorCode(err)
			require.True(t, ok)
			assert.Equal(t, tc.code, code)
		})
	}
}

func TestKeystoreNoAccounts(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ks := keystore.NewKeyStore(t.TempDir(), keystore.LightScryptN, keystore.LightScryptP)
	provider := NewKeystoreProvider("ethereum", ks, &staticAuthorizer{}, []*types.NetworkDescriptor{polygonNetwork()}, logger)
	defer provider.Close()

	var authorized []common.Address
	require.NoError(t, provider.Request(context.Background(), &authorized, "eth_requestAccounts"))
	assert.Empty(t, authorized)
}

func TestKeystoreChains(t *testing.T) {
	provider, _ := newTestKeystoreProvider(t, &staticAuthorizer{passphrase: "secret"})
	subscription := provider.Subscribe(4)
	defer subscription.Unsubscribe()

	chainID, err := ChainID(context.Background(), provider)
	require.NoError(t, err)
	assert.Equal(t, uint64(137), chainID)

	err = provider.Request(context.Background(), nil, "wallet_switchEthereumChain", types.SwitchChainParameter{ChainID: "0x13882"})
	code, _ := ErrorCode(err)
	assert.Equal(t, CodeUnrecognizedChain, code)

	amoy := polygonNetwork()
	amoy.ChainID = 80002
	amoy.ChainName = "Polygon Amoy"
	require.NoError(t, provider.Request(context.Background(), nil, "wallet_addEthereumChain", amoy.AddChainParameter()))

	chainID, err = ChainID(context.Background(), provider)
	require.NoError(t, err)
	assert.Equal(t, uint64(80002), chainID)

	select {
	case event := <-subscription.Channel():
		assert.Equal(t, EventChainChanged, event.Name)
		assert.Equal(t, int64(80002), event.ChainID.Int64())
	case <-time.After(time.Second):
		t.Fatal("no chainChanged event")
	}

	err = provider.Request(context.Background(), nil, "wallet_addEthereumChain", types.AddChainParameter{ChainID: "0x1"})
	code, _ = ErrorCode(err)
	assert.Equal(t, CodeInvalidParams, code)
}

func TestKeystoreSendRequiresAuthorization(t *testing.T) {
	provider, account := newTestKeystoreProvider(t, &staticAuthorizer{passphrase: "secret"})

	to := common.HexToAddress("0x02")
	err := provider.Request(context.Background(), nil, "eth_sendTransaction", &TransactionArgs{
		From:  &account.Address,
		To:    &to,
		Value: (*hexutil.Big)(common.Big1),
	})
	code, _ := ErrorCode(err)
	assert.Equal(t, CodeUnauthorized, code)

	err = provider.Request(context.Background(), nil, "personal_sign", "0x00", account.Address)
	code, _ = ErrorCode(err)
	assert.Equal(t, CodeUnsupportedMethod, code)
}
