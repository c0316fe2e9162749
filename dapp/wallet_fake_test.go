package dapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	dapptypes "github.com/spsmatrix/dapp/types"
	"github.com/spsmatrix/dapp/utils"
	"github.com/spsmatrix/dapp/wallet"
)

// scriptedWallet is an in-memory EIP-1193 provider answering from fixed state.
type scriptedWallet struct {
	abi *abi.ABI

	mutex        sync.Mutex
	authorized   []common.Address
	approve      []common.Address
	requestError error
	chainID      uint64
	balance      *big.Int
	views        map[string][]interface{}
	viewErrors   map[string]error
	sendError    error
	holdReceipts bool
	receiptFail  bool
	receiptError error
	sent         []*wallet.TransactionArgs
	calls        map[string]int
	viewCalls    map[string]int

	events utils.Dispatcher[*wallet.Event]
}

func newScriptedWallet(contractAbi *abi.ABI) *scriptedWallet {
	return &scriptedWallet{
		abi:     contractAbi,
		chainID: 137,
		balance: utils.NativeToWei(1000),
		views: map[string][]interface{}{
			"ENTRY_FEE":             {utils.NativeToWei(350)},
			"totalUsers":            {big.NewInt(42)},
			"poolBalance":           {utils.NativeToWei(10)},
			"specialRewardPool":     {utils.NativeToWei(5)},
			"eligiblePoolUserCount": {big.NewInt(3)},
			"isPoolWithdrawable":    {true},
		},
		viewErrors: map[string]error{},
		calls:      map[string]int{},
		viewCalls:  map[string]int{},
	}
}

func (w *scriptedWallet) Subscribe(capacity int) *utils.Subscription[*wallet.Event] {
	return w.events.Subscribe(capacity, false)
}

func (w *scriptedWallet) fire(event *wallet.Event) {
	w.events.Fire(event)
}

func (w *scriptedWallet) callCount(method string) int {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.calls[method]
}

func (w *scriptedWallet) viewCallCount(method string) int {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.viewCalls[method]
}

func (w *scriptedWallet) sentTransactions() []*wallet.TransactionArgs {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return append([]*wallet.TransactionArgs{}, w.sent...)
}

func (w *scriptedWallet) update(fn func(w *scriptedWallet)) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	fn(w)
}

func (w *scriptedWallet) Request(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.calls[method]++

	switch method {
	case "eth_accounts":
		return copyResult(result, w.authorized)

	case "eth_requestAccounts":
		if w.requestError != nil {
			return w.requestError
		}
		w.authorized = w.approve
		return copyResult(result, w.authorized)

	case "eth_chainId":
		return copyResult(result, hexutil.Uint64(w.chainID))

	case "eth_getBalance":
		return copyResult(result, (*hexutil.Big)(w.balance))

	case "eth_call":
		arg := params[0].(map[string]interface{})
		data := arg["data"].(hexutil.Bytes)
		abiMethod, err := w.abi.MethodById(data[:4])
		if err != nil {
			return err
		}
		w.viewCalls[abiMethod.Name]++
		if err := w.viewErrors[abiMethod.Name]; err != nil {
			return err
		}
		values, ok := w.views[abiMethod.Name]
		if !ok {
			return &wallet.RequestError{Code: 3, Message: "execution reverted"}
		}
		output, err := abiMethod.Outputs.Pack(values...)
		if err != nil {
			return err
		}
		return copyResult(result, hexutil.Bytes(output))

	case "eth_sendTransaction":
		if w.sendError != nil {
			return w.sendError
		}
		args := params[0].(*wallet.TransactionArgs)
		w.sent = append(w.sent, args)
		return copyResult(result, common.BigToHash(big.NewInt(int64(len(w.sent)))))

	case "eth_getCode":
		return copyResult(result, hexutil.Bytes{0x60, 0x80})

	case "eth_getTransactionReceipt":
		if w.receiptError != nil {
			return w.receiptError
		}
		if w.holdReceipts {
			return copyResult(result, nil)
		}
		status := types.ReceiptStatusSuccessful
		if w.receiptFail {
			status = types.ReceiptStatusFailed
		}
		receipt := &types.Receipt{
			Status:      status,
			TxHash:      params[0].(common.Hash),
			BlockNumber: big.NewInt(100),
			Logs:        []*types.Log{},
		}
		return copyResult(result, receipt)

	case "wallet_switchEthereumChain":
		var param dapptypes.SwitchChainParameter
		if err := roundtrip(params[0], &param); err != nil {
			return err
		}
		chainID, err := hexutil.DecodeUint64(param.ChainID)
		if err != nil {
			return err
		}
		w.chainID = chainID
		return nil
	}

	return &wallet.RequestError{Code: wallet.CodeUnsupportedMethod, Message: fmt.Sprintf("unsupported method %v", method)}
}

func copyResult(result interface{}, value interface{}) error {
	if result == nil {
		return nil
	}
	return roundtrip(value, result)
}

func roundtrip(value interface{}, out interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

var errAccessor = errors.New("execution reverted")
