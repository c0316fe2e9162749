package wallet

import (
	"context"
	"math/big"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"

	"github.com/spsmatrix/dapp/utils"
)

// RPCProvider forwards requests to an external wallet endpoint speaking
// JSON-RPC (a desktop wallet exposing an RPC port, or a development node with
// unlocked accounts). Such endpoints do not push change events, so
// accountsChanged / chainChanged are synthesized by polling.
type RPCProvider struct {
	name         string
	endpoint     string
	headers      map[string]string
	pollInterval time.Duration
	logger       logrus.FieldLogger

	clientMutex sync.Mutex
	rpcClient   *rpc.Client

	events       utils.Dispatcher[*Event]
	pollMutex    sync.Mutex
	pollStarted  bool
	pollBaseline bool
	lastAccounts []common.Address
	lastChainID  *big.Int
	loopCtx      context.Context
	loopCancel   context.CancelFunc
}

var _ Provider = (*RPCProvider)(nil)

// NewRPCProvider is used to create a new rpc backed wallet provider
func NewRPCProvider(name, endpoint string, headers map[string]string, pollInterval time.Duration, logger logrus.FieldLogger) *RPCProvider {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	provider := &RPCProvider{
		name:         name,
		endpoint:     endpoint,
		headers:      headers,
		pollInterval: pollInterval,
		logger:       logger.WithField("provider", name),
	}
	provider.loopCtx, provider.loopCancel = context.WithCancel(context.Background())
	return provider
}

func (p *RPCProvider) Initialize(ctx context.Context) error {
	_, err := p.client(ctx)
	return err
}

func (p *RPCProvider) client(ctx context.Context) (*rpc.Client, error) {
	p.clientMutex.Lock()
	defer p.clientMutex.Unlock()

	if p.rpcClient != nil {
		return p.rpcClient, nil
	}

	rpcClient, err := rpc.DialContext(ctx, p.endpoint)
	if err != nil {
		return nil, err
	}

	for hKey, hVal := range p.headers {
		rpcClient.SetHeader(hKey, hVal)
	}

	p.rpcClient = rpcClient
	return rpcClient, nil
}

func (p *RPCProvider) GetName() string {
	return p.name
}

func (p *RPCProvider) Request(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	rpcClient, err := p.client(ctx)
	if err != nil {
		return &RequestError{Code: CodeDisconnected, Message: err.Error()}
	}

	err = rpcClient.CallContext(ctx, result, method, params...)
	if err != nil {
		return err
	}

	switch method {
	case "eth_requestAccounts", "wallet_switchEthereumChain", "wallet_addEthereumChain":
		// surface the resulting change right away instead of on the next poll
		p.pollChanges(ctx)
	}

	return nil
}

func (p *RPCProvider) Subscribe(capacity int) *utils.Subscription[*Event] {
	subscription := p.events.Subscribe(capacity, false)

	p.pollMutex.Lock()
	defer p.pollMutex.Unlock()
	if !p.pollStarted {
		p.pollStarted = true
		go p.runPollLoop()
	}

	return subscription
}

func (p *RPCProvider) Close() error {
	p.loopCancel()

	p.clientMutex.Lock()
	defer p.clientMutex.Unlock()
	if p.rpcClient != nil {
		p.rpcClient.Close()
		p.rpcClient = nil
	}
	return nil
}

func (p *RPCProvider) runPollLoop() {
	defer utils.HandleSubroutinePanic("RPCProvider.runPollLoop")

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		p.pollChanges(p.loopCtx)

		select {
		case <-p.loopCtx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *RPCProvider) pollChanges(ctx context.Context) {
	rpcClient, err := p.client(ctx)
	if err != nil {
		p.logger.Debugf("provider not reachable: %v", err)
		return
	}

	var accounts []common.Address
	if err := rpcClient.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		p.logger.Debugf("eth_accounts poll failed: %v", err)
		return
	}

	var chainID hexutil.Big
	if err := rpcClient.CallContext(ctx, &chainID, "eth_chainId"); err != nil {
		p.logger.Debugf("eth_chainId poll failed: %v", err)
		return
	}

	p.pollMutex.Lock()
	defer p.pollMutex.Unlock()

	if !p.pollBaseline {
		p.pollBaseline = true
		p.lastAccounts = accounts
		p.lastChainID = chainID.ToInt()
		return
	}

	if !slices.Equal(accounts, p.lastAccounts) {
		p.lastAccounts = accounts
		p.events.Fire(&Event{Name: EventAccountsChanged, Accounts: accounts})
	}
	if chainID.ToInt().Cmp(p.lastChainID) != 0 {
		p.lastChainID = chainID.ToInt()
		p.events.Fire(&Event{Name: EventChainChanged, ChainID: p.lastChainID})
	}
}
