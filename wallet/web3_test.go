package wallet

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitMinedEndsOnProviderFailure(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		calls int
	}{
		{"disconnected", &RequestError{Code: CodeDisconnected, Message: "disconnected"}, 1},
		{"chain disconnected", &RequestError{Code: CodeChainDisconnected, Message: "chain disconnected"}, 1},
		{"unauthorized", &RequestError{Code: CodeUnauthorized, Message: "unauthorized"}, 1},
		{"transient errors", errors.New("connection reset by peer"), maxReceiptFailures},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			logger, _ := test.NewNullLogger()
			provider := newRecordingProvider(137)
			provider.responses["eth_getTransactionReceipt"] = tc.err
			signer := NewWeb3Provider(provider, time.Millisecond, logger).GetSigner(common.HexToAddress("0xa1"))

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			receipt, err := signer.WaitMined(ctx, common.HexToHash("0x01"))
			assert.Nil(t, receipt)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.err)
			assert.NotErrorIs(t, err, context.DeadlineExceeded)
			assert.Equal(t, tc.calls, provider.count("eth_getTransactionReceipt"))
		})
	}
}

func TestWaitMinedKeepsPollingWhileNotFound(t *testing.T) {
	logger, _ := test.NewNullLogger()
	provider := newRecordingProvider(137)
	signer := NewWeb3Provider(provider, time.Millisecond, logger).GetSigner(common.HexToAddress("0xa1"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := signer.WaitMined(ctx, common.HexToHash("0x01"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, provider.count("eth_getTransactionReceipt"), maxReceiptFailures)

	_, err = NewWeb3Provider(provider, time.Millisecond, logger).TransactionReceipt(context.Background(), common.HexToHash("0x01"))
	assert.ErrorIs(t, err, ethereum.NotFound)
}

func TestWeb3ProviderCodeAt(t *testing.T) {
	logger, _ := test.NewNullLogger()
	provider := newRecordingProvider(137)
	web3 := NewWeb3Provider(provider, time.Millisecond, logger)

	_, err := web3.CodeAt(context.Background(), common.HexToAddress("0xc3"), nil)
	require.NoError(t, err)
	_, err = web3.CallContract(context.Background(), ethereum.CallMsg{To: &common.Address{}}, big.NewInt(10))
	require.NoError(t, err)

	assert.Equal(t, []interface{}{common.HexToAddress("0xc3"), "latest"}, provider.params["eth_getCode"])
	assert.Equal(t, "0xa", provider.params["eth_call"][1])
}
