package dapp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/spsmatrix/dapp/wallet"
)

// ErrorKind groups the failures surfaced to the user.
type ErrorKind string

const (
	KindProviderNotFound    ErrorKind = "ProviderNotFound"
	KindUnsupportedProvider ErrorKind = "UnsupportedProvider"
	KindUserRejected        ErrorKind = "UserRejected"
	KindRequestPending      ErrorKind = "RequestPending"
	KindNoAccountSelected   ErrorKind = "NoAccountSelected"
	KindNetworkSwitchFailed ErrorKind = "NetworkSwitchFailed"
	KindInsufficientFunds   ErrorKind = "InsufficientFunds"
	KindPreconditionFailed  ErrorKind = "PreconditionFailed"
	KindTransactionFailed   ErrorKind = "TransactionFailed"
	KindAccessorFailed      ErrorKind = "AccessorFailed"
	KindUplineNotFound      ErrorKind = "UplineNotFound"
	KindAlreadyRegistered   ErrorKind = "AlreadyRegistered"
	KindActionBusy          ErrorKind = "ActionBusy"
	KindConnectionFailed    ErrorKind = "ConnectionFailed"
)

var (
	ErrNotConnected = errors.New("wallet not connected, please connect your wallet first")
	ErrActionBusy   = errors.New("action already in progress")
)

// Error is a classified failure of a connection, network or contract flow.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%v: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of a classified error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var dappErr *Error
	if errors.As(err, &dappErr) {
		return dappErr.Kind
	}
	return ""
}

// Classify maps a raw contract call failure to an error kind. Structured
// provider codes and decoded revert reasons take precedence over matching
// the error text.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if kind := KindOf(err); kind != "" {
		return kind
	}

	if code, ok := wallet.ErrorCode(err); ok {
		switch code {
		case wallet.CodeUserRejected:
			return KindUserRejected
		case wallet.CodeResourceUnavailable:
			return KindRequestPending
		}
	}

	message := err.Error()
	if reason, ok := RevertReason(err); ok {
		message = reason + " " + message
	}
	return classifyMessage(message)
}

func classifyMessage(message string) ErrorKind {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "insufficient funds"):
		return KindInsufficientFunds
	case strings.Contains(lower, "upline does not exist"):
		return KindUplineNotFound
	case strings.Contains(lower, "user already registered"):
		return KindAlreadyRegistered
	case strings.Contains(lower, "user rejected"), strings.Contains(lower, "user denied"):
		return KindUserRejected
	case strings.Contains(lower, "already pending"):
		return KindRequestPending
	}
	return KindTransactionFailed
}

// classifyAuthorization maps an eth_requestAccounts failure. Some wallets
// report a closed approval dialog as an internal error.
func classifyAuthorization(err error) ErrorKind {
	if code, ok := wallet.ErrorCode(err); ok {
		switch code {
		case wallet.CodeUserRejected, wallet.CodeInternal:
			return KindUserRejected
		case wallet.CodeResourceUnavailable:
			return KindRequestPending
		}
	}
	if strings.Contains(strings.ToLower(err.Error()), "already pending") {
		return KindRequestPending
	}
	return KindConnectionFailed
}

// RevertReason decodes an Error(string) revert payload attached to err.
func RevertReason(err error) (string, bool) {
	data, ok := wallet.ErrorData(err)
	if !ok {
		return "", false
	}

	var raw []byte
	switch value := data.(type) {
	case string:
		decoded, err := hexutil.Decode(value)
		if err != nil {
			return "", false
		}
		raw = decoded
	case []byte:
		raw = value
	case hexutil.Bytes:
		raw = value
	default:
		return "", false
	}

	reason, err := abi.UnpackRevert(raw)
	if err != nil {
		return "", false
	}
	return reason, true
}

// UserMessage renders the notification text for a failed flow.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	kind := Classify(err)
	switch kind {
	case KindProviderNotFound:
		return "Wallet not found. Install or enable a wallet and try again."
	case KindUnsupportedProvider:
		return "The detected wallet does not support EIP-1193 requests."
	case KindUserRejected:
		return "Request rejected in the wallet."
	case KindRequestPending:
		return "A wallet request is already pending. Please open your wallet and confirm it."
	case KindNoAccountSelected:
		return "No account selected in the wallet."
	case KindInsufficientFunds:
		if message := unwrapMessage(err); strings.HasPrefix(message, "insufficient balance") {
			return message
		}
		return "Insufficient funds for this transaction."
	case KindUplineNotFound:
		return "Upline does not exist."
	case KindAlreadyRegistered:
		return "This account is already registered."
	case KindActionBusy:
		return "This action is already in progress."
	case KindPreconditionFailed, KindNetworkSwitchFailed, KindConnectionFailed:
		return unwrapMessage(err)
	}
	if reason, ok := RevertReason(err); ok {
		return "Transaction failed: " + reason
	}
	return "Transaction failed: " + unwrapMessage(err)
}

func unwrapMessage(err error) string {
	var dappErr *Error
	if errors.As(err, &dappErr) && dappErr.Err != nil {
		return dappErr.Err.Error()
	}
	return err.Error()
}
