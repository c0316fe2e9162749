package contract

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/spsmatrix/dapp/config"
	"github.com/spsmatrix/dapp/wallet"
)

// Caller executes read-only contract calls.
type Caller = bind.ContractCaller

// Transactor submits transactions through the wallet.
type Transactor interface {
	Address() common.Address
	SendTransaction(ctx context.Context, args *wallet.TransactionArgs) (common.Hash, error)
}

// TransactOpts are the per call transaction settings.
type TransactOpts struct {
	Value    *big.Int
	GasLimit uint64
}

// LoadABI parses the matrix contract abi from path, or the embedded copy if path is empty.
func LoadABI(path string) (*abi.ABI, error) {
	abiJson := config.MatrixAbiJson
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading abi file: %w", err)
		}
		abiJson = string(data)
	}

	parsed, err := abi.JSON(strings.NewReader(abiJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse matrix abi: %w", err)
	}
	return &parsed, nil
}

// Matrix is a handle to the matrix contract bound to a fixed address, a
// read-only caller and (optionally) a signing account.
//
// Views go through a bind.BoundContract. Transactions are handed to the
// wallet as eth_sendTransaction, since the keys live in the wallet and
// bind's transact path needs a local signer.
type Matrix struct {
	address    common.Address
	abi        *abi.ABI
	bound      *bind.BoundContract
	transactor Transactor
}

func NewMatrix(address common.Address, contractAbi *abi.ABI, caller Caller, transactor Transactor) *Matrix {
	return &Matrix{
		address:    address,
		abi:        contractAbi,
		bound:      bind.NewBoundContract(address, *contractAbi, caller, nil, nil),
		transactor: transactor,
	}
}

func (m *Matrix) Address() common.Address {
	return m.address
}

func (m *Matrix) ABI() *abi.ABI {
	return m.abi
}

// WithTransactor returns a copy of the handle bound to another signing account.
func (m *Matrix) WithTransactor(transactor Transactor) *Matrix {
	return &Matrix{
		address:    m.address,
		abi:        m.abi,
		bound:      m.bound,
		transactor: transactor,
	}
}

func (m *Matrix) EntryFee(ctx context.Context) (*big.Int, error) {
	return m.callUint(ctx, "ENTRY_FEE")
}

func (m *Matrix) TotalUsers(ctx context.Context) (*big.Int, error) {
	return m.callUint(ctx, "totalUsers")
}

func (m *Matrix) PoolBalance(ctx context.Context) (*big.Int, error) {
	return m.callUint(ctx, "poolBalance")
}

func (m *Matrix) SpecialRewardPool(ctx context.Context) (*big.Int, error) {
	return m.callUint(ctx, "specialRewardPool")
}

func (m *Matrix) EligiblePoolUserCount(ctx context.Context) (*big.Int, error) {
	return m.callUint(ctx, "eligiblePoolUserCount")
}

func (m *Matrix) IsPoolWithdrawable(ctx context.Context) (bool, error) {
	values, err := m.call(ctx, "isPoolWithdrawable")
	if err != nil {
		return false, err
	}
	result, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("isPoolWithdrawable: unexpected result type %T", values[0])
	}
	return result, nil
}

func (m *Matrix) Register(ctx context.Context, uplineId *big.Int, position bool, opts *TransactOpts) (common.Hash, error) {
	return m.transact(ctx, opts, "register", uplineId, position)
}

func (m *Matrix) WithdrawPool(ctx context.Context, opts *TransactOpts) (common.Hash, error) {
	return m.transact(ctx, opts, "withdrawPool")
}

func (m *Matrix) WithdrawSpecials(ctx context.Context, opts *TransactOpts) (common.Hash, error) {
	return m.transact(ctx, opts, "withdrawSpecials")
}

func (m *Matrix) ContributeToMinerPool(ctx context.Context, opts *TransactOpts) (common.Hash, error) {
	return m.transact(ctx, opts, "contributeToMinerPool")
}

func (m *Matrix) callUint(ctx context.Context, method string) (*big.Int, error) {
	values, err := m.call(ctx, method)
	if err != nil {
		return nil, err
	}
	result, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%v: unexpected result type %T", method, values[0])
	}
	return result, nil
}

func (m *Matrix) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	opts := &bind.CallOpts{Context: ctx}
	if m.transactor != nil {
		opts.From = m.transactor.Address()
	}

	var values []interface{}
	if err := m.bound.Call(opts, &values, method, args...); err != nil {
		return nil, fmt.Errorf("%v: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%v: empty result", method)
	}
	return values, nil
}

func (m *Matrix) transact(ctx context.Context, opts *TransactOpts, method string, args ...interface{}) (common.Hash, error) {
	if m.transactor == nil {
		return common.Hash{}, fmt.Errorf("%v: no signer bound", method)
	}

	input, err := m.abi.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%v: %w", method, err)
	}

	to := m.address
	txArgs := &wallet.TransactionArgs{
		To:   &to,
		Data: input,
	}
	if opts != nil {
		if opts.GasLimit > 0 {
			gas := hexutil.Uint64(opts.GasLimit)
			txArgs.Gas = &gas
		}
		if opts.Value != nil && opts.Value.Sign() > 0 {
			txArgs.Value = (*hexutil.Big)(opts.Value)
		}
	}

	return m.transactor.SendTransaction(ctx, txArgs)
}
