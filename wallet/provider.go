package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/spsmatrix/dapp/utils"
)

// Provider is the EIP-1193 surface of a wallet: a request/response RPC method
// plus change events.
type Provider interface {
	// Request performs an RPC call and decodes the response into result (which may be nil).
	Request(ctx context.Context, result interface{}, method string, params ...interface{}) error

	// Subscribe registers for accountsChanged / chainChanged events.
	Subscribe(capacity int) *utils.Subscription[*Event]
}

const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
)

// Event is a provider change notification.
type Event struct {
	Name     string
	Accounts []common.Address // accountsChanged
	ChainID  *big.Int         // chainChanged
}

// EIP-1193 / JSON-RPC provider error codes
const (
	CodeUserRejected        = 4001
	CodeUnauthorized        = 4100
	CodeUnsupportedMethod   = 4200
	CodeDisconnected        = 4900
	CodeChainDisconnected   = 4901
	CodeUnrecognizedChain   = 4902
	CodeInvalidParams       = -32602
	CodeInternal            = -32603
	CodeResourceUnavailable = -32002
)

// RequestError is a provider error carrying an EIP-1193 code. It satisfies
// the go-ethereum rpc.Error and rpc.DataError interfaces, so errors coming
// from remote endpoints and from local providers are inspected the same way.
type RequestError struct {
	Code    int
	Message string
	Data    interface{}
}

var _ rpc.Error = (*RequestError)(nil)
var _ rpc.DataError = (*RequestError)(nil)

func (e *RequestError) Error() string {
	return e.Message
}

func (e *RequestError) ErrorCode() int {
	return e.Code
}

func (e *RequestError) ErrorData() interface{} {
	return e.Data
}

func userRejectedError() *RequestError {
	return &RequestError{Code: CodeUserRejected, Message: "User rejected the request."}
}

// ErrorCode extracts the provider error code from err.
func ErrorCode(err error) (int, bool) {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode(), true
	}
	return 0, false
}

// ErrorData extracts the provider error data from err.
func ErrorData(err error) (interface{}, bool) {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return dataErr.ErrorData(), dataErr.ErrorData() != nil
	}
	return nil, false
}

// setResult copies value into result using the JSON encoding, the same way
// a response from a remote endpoint would be decoded.
func setResult(result interface{}, value interface{}) error {
	if result == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, result)
}

// decodeParam decodes params[idx] into out.
func decodeParam(params []interface{}, idx int, out interface{}) error {
	if idx >= len(params) {
		return &RequestError{Code: CodeInvalidParams, Message: fmt.Sprintf("missing parameter %v", idx)}
	}
	raw, err := json.Marshal(params[idx])
	if err != nil {
		return &RequestError{Code: CodeInvalidParams, Message: err.Error()}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &RequestError{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid parameter %v: %v", idx, err)}
	}
	return nil
}
