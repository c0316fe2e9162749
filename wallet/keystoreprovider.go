package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"

	dapptypes "github.com/spsmatrix/dapp/types"
	"github.com/spsmatrix/dapp/utils"
)

// AccountKeystore is the part of the go-ethereum keystore the provider needs.
type AccountKeystore interface {
	Accounts() []accounts.Account
	Unlock(a accounts.Account, passphrase string) error
	Lock(addr common.Address) error
	SignTx(a accounts.Account, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// KeystoreProvider is a local wallet: keys live in a go-ethereum keystore,
// accounts are handed out after authorization and transactions are signed
// locally before being sent to the active chain's RPC endpoint.
type KeystoreProvider struct {
	name       string
	keystore   AccountKeystore
	authorizer Authorizer
	logger     logrus.FieldLogger

	mutex       sync.Mutex
	chains      map[uint64]*keystoreChain
	activeChain uint64
	authorized  []common.Address
	pending     bool

	events utils.Dispatcher[*Event]
}

type keystoreChain struct {
	descriptor dapptypes.NetworkDescriptor
	client     *rpc.Client
}

var _ Provider = (*KeystoreProvider)(nil)

// NewKeystoreProvider creates a keystore wallet knowing the given chains, the first one is active.
func NewKeystoreProvider(name string, keystore AccountKeystore, authorizer Authorizer, chains []*dapptypes.NetworkDescriptor, logger logrus.FieldLogger) *KeystoreProvider {
	provider := &KeystoreProvider{
		name:       name,
		keystore:   keystore,
		authorizer: authorizer,
		logger:     logger.WithField("provider", name),
		chains:     map[uint64]*keystoreChain{},
	}
	for idx, chain := range chains {
		provider.chains[chain.ChainID] = &keystoreChain{descriptor: *chain}
		if idx == 0 {
			provider.activeChain = chain.ChainID
		}
	}
	return provider
}

func (p *KeystoreProvider) GetName() string {
	return p.name
}

func (p *KeystoreProvider) Subscribe(capacity int) *utils.Subscription[*Event] {
	return p.events.Subscribe(capacity, false)
}

func (p *KeystoreProvider) Request(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	switch method {
	case "eth_accounts":
		return setResult(result, p.getAuthorized())
	case "eth_requestAccounts":
		accounts, err := p.requestAccounts(ctx)
		if err != nil {
			return err
		}
		return setResult(result, accounts)
	case "eth_chainId":
		p.mutex.Lock()
		chainID := p.activeChain
		p.mutex.Unlock()
		if chainID == 0 {
			return &RequestError{Code: CodeDisconnected, Message: "wallet has no active chain"}
		}
		return setResult(result, hexutil.Uint64(chainID))
	case "wallet_switchEthereumChain":
		var param dapptypes.SwitchChainParameter
		if err := decodeParam(params, 0, &param); err != nil {
			return err
		}
		if err := p.switchChain(param.ChainID); err != nil {
			return err
		}
		return setResult(result, nil)
	case "wallet_addEthereumChain":
		var param dapptypes.AddChainParameter
		if err := decodeParam(params, 0, &param); err != nil {
			return err
		}
		if err := p.addChain(&param); err != nil {
			return err
		}
		return setResult(result, nil)
	case "wallet_revokePermissions":
		p.Revoke()
		return setResult(result, nil)
	case "eth_sendTransaction":
		var args TransactionArgs
		if err := decodeParam(params, 0, &args); err != nil {
			return err
		}
		txHash, err := p.sendTransaction(ctx, &args)
		if err != nil {
			return err
		}
		return setResult(result, txHash)
	case "eth_sign", "personal_sign", "eth_signTypedData_v4":
		return &RequestError{Code: CodeUnsupportedMethod, Message: fmt.Sprintf("method %v not supported by %v", method, p.name)}
	}

	client, _, err := p.chainClient(ctx)
	if err != nil {
		return err
	}
	return client.CallContext(ctx, result, method, params...)
}

// Revoke drops all account authorizations and locks the keys.
func (p *KeystoreProvider) Revoke() {
	p.mutex.Lock()
	revoked := p.authorized
	p.authorized = nil
	p.mutex.Unlock()

	if len(revoked) == 0 {
		return
	}
	for _, address := range revoked {
		if err := p.keystore.Lock(address); err != nil {
			p.logger.Debugf("could not lock %v: %v", address.Hex(), err)
		}
	}
	p.events.Fire(&Event{Name: EventAccountsChanged, Accounts: []common.Address{}})
}

func (p *KeystoreProvider) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for _, chain := range p.chains {
		if chain.client != nil {
			chain.client.Close()
			chain.client = nil
		}
	}
	return nil
}

func (p *KeystoreProvider) getAuthorized() []common.Address {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	res := make([]common.Address, len(p.authorized))
	copy(res, p.authorized)
	return res
}

func (p *KeystoreProvider) requestAccounts(ctx context.Context) ([]common.Address, error) {
	p.mutex.Lock()
	if len(p.authorized) > 0 {
		res := make([]common.Address, len(p.authorized))
		copy(res, p.authorized)
		p.mutex.Unlock()
		return res, nil
	}
	if p.pending {
		p.mutex.Unlock()
		return nil, &RequestError{
			Code:    CodeResourceUnavailable,
			Message: "Request of type 'wallet_requestPermissions' already pending. Please wait.",
		}
	}
	p.pending = true
	p.mutex.Unlock()

	defer func() {
		p.mutex.Lock()
		p.pending = false
		p.mutex.Unlock()
	}()

	account, passphrase, err := p.authorizer.Authorize(ctx, p.keystore.Accounts())
	switch {
	case errors.Is(err, ErrNoAccountsAvailable):
		return []common.Address{}, nil
	case errors.Is(err, ErrAuthorizationDeclined):
		return nil, userRejectedError()
	case err != nil:
		return nil, &RequestError{Code: CodeInternal, Message: err.Error()}
	}

	if err := p.keystore.Unlock(account, passphrase); err != nil {
		return nil, &RequestError{Code: CodeInternal, Message: fmt.Sprintf("could not unlock account: %v", err)}
	}

	p.mutex.Lock()
	p.authorized = []common.Address{account.Address}
	p.mutex.Unlock()

	p.logger.Infof("account %v authorized", account.Address.Hex())
	p.events.Fire(&Event{Name: EventAccountsChanged, Accounts: []common.Address{account.Address}})

	return []common.Address{account.Address}, nil
}

func (p *KeystoreProvider) switchChain(chainIDHex string) error {
	chainID, err := hexutil.DecodeUint64(chainIDHex)
	if err != nil {
		return &RequestError{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid chain id %q: %v", chainIDHex, err)}
	}

	p.mutex.Lock()
	if _, known := p.chains[chainID]; !known {
		p.mutex.Unlock()
		return &RequestError{
			Code:    CodeUnrecognizedChain,
			Message: fmt.Sprintf("Unrecognized chain ID %q. Try adding the chain using wallet_addEthereumChain first.", chainIDHex),
		}
	}
	changed := p.activeChain != chainID
	p.activeChain = chainID
	p.mutex.Unlock()

	if changed {
		p.logger.Infof("switched to chain %v", chainID)
		p.events.Fire(&Event{Name: EventChainChanged, ChainID: new(big.Int).SetUint64(chainID)})
	}
	return nil
}

func (p *KeystoreProvider) addChain(param *dapptypes.AddChainParameter) error {
	descriptor, err := dapptypes.DescriptorFromAddChain(param)
	if err != nil {
		return &RequestError{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid chain id %q: %v", param.ChainID, err)}
	}
	if len(descriptor.RpcUrls) == 0 {
		return &RequestError{Code: CodeInvalidParams, Message: "rpcUrls must not be empty"}
	}

	p.mutex.Lock()
	if existing, known := p.chains[descriptor.ChainID]; known {
		existing.descriptor = *descriptor
	} else {
		p.chains[descriptor.ChainID] = &keystoreChain{descriptor: *descriptor}
	}
	p.mutex.Unlock()

	p.logger.Infof("added chain %v (%v)", descriptor.ChainName, descriptor.ChainID)
	return p.switchChain(param.ChainID)
}

func (p *KeystoreProvider) chainClient(ctx context.Context) (*rpc.Client, uint64, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	chain := p.chains[p.activeChain]
	if chain == nil {
		return nil, 0, &RequestError{Code: CodeDisconnected, Message: "wallet has no active chain"}
	}
	if chain.client == nil {
		if len(chain.descriptor.RpcUrls) == 0 {
			return nil, 0, &RequestError{Code: CodeDisconnected, Message: fmt.Sprintf("no rpc endpoint for chain %v", p.activeChain)}
		}
		client, err := rpc.DialContext(ctx, chain.descriptor.RpcUrls[0])
		if err != nil {
			return nil, 0, &RequestError{Code: CodeDisconnected, Message: err.Error()}
		}
		chain.client = client
	}
	return chain.client, p.activeChain, nil
}

func (p *KeystoreProvider) sendTransaction(ctx context.Context, args *TransactionArgs) (common.Hash, error) {
	if args.From == nil {
		return common.Hash{}, &RequestError{Code: CodeInvalidParams, Message: "missing from address"}
	}
	from := *args.From

	authorized := false
	for _, address := range p.getAuthorized() {
		if address == from {
			authorized = true
		}
	}
	if !authorized {
		return common.Hash{}, &RequestError{Code: CodeUnauthorized, Message: fmt.Sprintf("account %v is not authorized", from.Hex())}
	}

	rpcClient, chainID, err := p.chainClient(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	client := ethclient.NewClient(rpcClient)

	value := new(big.Int)
	if args.Value != nil {
		value = args.Value.ToInt()
	}

	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("could not get nonce: %w", err)
	}

	var gasLimit uint64
	if args.Gas != nil {
		gasLimit = uint64(*args.Gas)
	} else {
		gasLimit, err = client.EstimateGas(ctx, ethereum.CallMsg{
			From:  from,
			To:    args.To,
			Value: value,
			Data:  args.Data,
		})
		if err != nil {
			return common.Hash{}, err
		}
	}

	head, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("could not get latest header: %w", err)
	}

	var tx *types.Transaction
	if head.BaseFee != nil {
		tipCap, err := client.SuggestGasTipCap(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("could not get gas tip cap: %w", err)
		}
		feeCap := new(big.Int).Add(tipCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   new(big.Int).SetUint64(chainID),
			Nonce:     nonce,
			GasTipCap: tipCap,
			GasFeeCap: feeCap,
			Gas:       gasLimit,
			To:        args.To,
			Value:     value,
			Data:      args.Data,
		})
	} else {
		gasPrice, err := client.SuggestGasPrice(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("could not get gas price: %w", err)
		}
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gasLimit,
			To:       args.To,
			Value:    value,
			Data:     args.Data,
		})
	}

	signedTx, err := p.keystore.SignTx(accounts.Account{Address: from}, tx, new(big.Int).SetUint64(chainID))
	if err != nil {
		return common.Hash{}, &RequestError{Code: CodeUnauthorized, Message: fmt.Sprintf("could not sign transaction: %v", err)}
	}

	err = client.SendTransaction(ctx, signedTx)
	if err != nil {
		return common.Hash{}, err
	}

	p.logger.Infof("sent transaction %v (nonce %v)", signedTx.Hash().Hex(), nonce)
	return signedTx.Hash(), nil
}
