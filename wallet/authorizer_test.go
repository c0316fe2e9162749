package wallet

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizerSelectAccount(t *testing.T) {
	candidates := []accounts.Account{
		{Address: common.HexToAddress("0x01")},
		{Address: common.HexToAddress("0x02")},
	}

	account, err := NewPassphraseAuthorizer("", "", false).selectAccount(candidates)
	require.NoError(t, err)
	assert.Equal(t, candidates[0].Address, account.Address)

	account, err = NewPassphraseAuthorizer("", candidates[1].Address.Hex(), false).selectAccount(candidates)
	require.NoError(t, err)
	assert.Equal(t, candidates[1].Address, account.Address)

	_, err = NewPassphraseAuthorizer("", "0x03", false).selectAccount(candidates)
	assert.Error(t, err)

	_, err = NewPassphraseAuthorizer("", "bogus", false).selectAccount(candidates)
	assert.Error(t, err)

	_, err = NewPassphraseAuthorizer("", "", false).selectAccount(nil)
	assert.ErrorIs(t, err, ErrNoAccountsAvailable)
}

func TestAuthorizerPassphraseFromEnv(t *testing.T) {
	candidates := []accounts.Account{{Address: common.HexToAddress("0x01")}}

	t.Setenv("SPS_TEST_PASSPHRASE", "secret")
	account, passphrase, err := NewPassphraseAuthorizer("SPS_TEST_PASSPHRASE", "", false).Authorize(context.Background(), candidates)
	require.NoError(t, err)
	assert.Equal(t, candidates[0].Address, account.Address)
	assert.Equal(t, "secret", passphrase)

	t.Setenv("SPS_TEST_PASSPHRASE", " ")
	_, _, err = NewPassphraseAuthorizer("SPS_TEST_PASSPHRASE", "", false).Authorize(context.Background(), candidates)
	assert.Error(t, err)

	_, _, err = NewPassphraseAuthorizer("SPS_TEST_UNSET_PASSPHRASE", "", false).Authorize(context.Background(), candidates)
	assert.ErrorIs(t, err, ErrAuthorizationDeclined)
}
