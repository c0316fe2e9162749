package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

// TransactionArgs are the eth_sendTransaction parameters.
type TransactionArgs struct {
	From  *common.Address `json:"from,omitempty"`
	To    *common.Address `json:"to,omitempty"`
	Gas   *hexutil.Uint64 `json:"gas,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
}

// Web3Provider is the typed wrapper over a raw provider handle.
type Web3Provider struct {
	provider     Provider
	pollInterval time.Duration
	logger       logrus.FieldLogger
}

func NewWeb3Provider(provider Provider, pollInterval time.Duration, logger logrus.FieldLogger) *Web3Provider {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Web3Provider{
		provider:     provider,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

func (w *Web3Provider) Provider() Provider {
	return w.provider
}

func (w *Web3Provider) ChainID(ctx context.Context) (*big.Int, error) {
	var result hexutil.Big
	if err := w.provider.Request(ctx, &result, "eth_chainId"); err != nil {
		return nil, err
	}
	return result.ToInt(), nil
}

func (w *Web3Provider) Accounts(ctx context.Context) ([]common.Address, error) {
	var result []common.Address
	if err := w.provider.Request(ctx, &result, "eth_accounts"); err != nil {
		return nil, err
	}
	return result, nil
}

func (w *Web3Provider) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	var result hexutil.Big
	if err := w.provider.Request(ctx, &result, "eth_getBalance", account, "latest"); err != nil {
		return nil, err
	}
	return result.ToInt(), nil
}

// CallContract and CodeAt make the wrapper usable as a bind.ContractCaller.
func (w *Web3Provider) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var result hexutil.Bytes
	if err := w.provider.Request(ctx, &result, "eth_call", toCallArg(msg), toBlockNumArg(blockNumber)); err != nil {
		return nil, err
	}
	return result, nil
}

func (w *Web3Provider) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	var result hexutil.Bytes
	if err := w.provider.Request(ctx, &result, "eth_getCode", contract, toBlockNumArg(blockNumber)); err != nil {
		return nil, err
	}
	return result, nil
}

func (w *Web3Provider) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	if err := w.provider.Request(ctx, &receipt, "eth_getTransactionReceipt", txHash); err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

// GetSigner returns a signer bound to account.
func (w *Web3Provider) GetSigner(account common.Address) *Signer {
	return &Signer{
		web3:    w,
		address: account,
	}
}

func toBlockNumArg(number *big.Int) string {
	if number == nil {
		return "latest"
	}
	return hexutil.EncodeBig(number)
}

func toCallArg(msg ethereum.CallMsg) interface{} {
	arg := map[string]interface{}{
		"to": msg.To,
	}
	if msg.From != (common.Address{}) {
		arg["from"] = msg.From
	}
	if len(msg.Data) > 0 {
		arg["data"] = hexutil.Bytes(msg.Data)
	}
	if msg.Value != nil {
		arg["value"] = (*hexutil.Big)(msg.Value)
	}
	if msg.Gas != 0 {
		arg["gas"] = hexutil.Uint64(msg.Gas)
	}
	return arg
}

// Signer submits transactions for one account through the wallet, which
// holds the keys and signs them.
type Signer struct {
	web3    *Web3Provider
	address common.Address
}

func (s *Signer) Address() common.Address {
	return s.address
}

// GetAddress asks the wallet which account it currently signs for.
func (s *Signer) GetAddress(ctx context.Context) (common.Address, error) {
	accounts, err := s.web3.Accounts(ctx)
	if err != nil {
		return common.Address{}, err
	}
	if len(accounts) == 0 {
		return common.Address{}, errors.New("wallet reports no accounts")
	}
	return accounts[0], nil
}

func (s *Signer) SendTransaction(ctx context.Context, args *TransactionArgs) (common.Hash, error) {
	from := s.address
	args.From = &from

	var txHash common.Hash
	if err := s.web3.provider.Request(ctx, &txHash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, err
	}
	return txHash, nil
}

// maxReceiptFailures bounds consecutive receipt lookups failing with
// anything other than "not found".
const maxReceiptFailures = 5

// WaitMined polls for the receipt of txHash until it is included. There is
// no timeout: the wait ends with the receipt, with ctx, or when the provider
// fails (disconnected / unauthorized, or too many consecutive errors).
func (s *Signer) WaitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(s.web3.pollInterval)
	defer ticker.Stop()

	logger := s.web3.logger.WithField("tx", txHash.Hex())
	failures := 0
	for {
		receipt, err := s.web3.TransactionReceipt(ctx, txHash)
		switch {
		case err == nil:
			return receipt, nil
		case errors.Is(err, ethereum.NotFound):
			failures = 0
			logger.Trace("transaction not yet mined")
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case isProviderFailure(err):
			return nil, fmt.Errorf("receipt retrieval failed: %w", err)
		default:
			failures++
			logger.Debugf("receipt retrieval failed (%v/%v): %v", failures, maxReceiptFailures, err)
			if failures >= maxReceiptFailures {
				return nil, fmt.Errorf("receipt retrieval failed %v times: %w", failures, err)
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func isProviderFailure(err error) bool {
	code, ok := ErrorCode(err)
	if !ok {
		return false
	}
	switch code {
	case CodeDisconnected, CodeChainDisconnected, CodeUnauthorized:
		return true
	}
	return false
}
