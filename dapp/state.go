package dapp

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/spsmatrix/dapp/contract"
	"github.com/spsmatrix/dapp/utils"
	"github.com/spsmatrix/dapp/wallet"
)

type ConnectionPhase string

const (
	PhaseDisconnected ConnectionPhase = "disconnected"
	PhaseResolving    ConnectionPhase = "resolving"
	PhaseAuthorizing  ConnectionPhase = "authorizing"
	PhaseProvisioning ConnectionPhase = "provisioning"
	PhaseConnected    ConnectionPhase = "connected"
)

// ConnectionState is the session's wallet binding. Written only from the
// controller loop, read from anywhere.
type ConnectionState struct {
	mutex sync.RWMutex

	phase    ConnectionPhase
	source   string
	provider wallet.Provider
	web3     *wallet.Web3Provider
	signer   *wallet.Signer
	contract *contract.Matrix
	account  common.Address
	chainID  uint64
	watcher  *eventWatcher
}

// eventWatcher forwards the provider events of one connection into the loop.
type eventWatcher struct {
	subscription *utils.Subscription[*wallet.Event]
	done         chan struct{}
	stopOnce     sync.Once
}

func (w *eventWatcher) stop() {
	w.stopOnce.Do(func() {
		w.subscription.Unsubscribe()
		close(w.done)
	})
}

type connectionHandles struct {
	provider wallet.Provider
	web3     *wallet.Web3Provider
	signer   *wallet.Signer
	contract *contract.Matrix
	account  common.Address
}

// IsConnected is true iff all handles are bound and an account is selected.
func (cs *ConnectionState) IsConnected() bool {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()
	return cs.isConnected()
}

func (cs *ConnectionState) isConnected() bool {
	return cs.provider != nil && cs.signer != nil && cs.contract != nil && cs.account != (common.Address{})
}

func (cs *ConnectionState) Phase() ConnectionPhase {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()
	return cs.phase
}

func (cs *ConnectionState) setPhase(phase ConnectionPhase) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()
	cs.phase = phase
}

func (cs *ConnectionState) handles() *connectionHandles {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()
	if !cs.isConnected() {
		return nil
	}
	return &connectionHandles{
		provider: cs.provider,
		web3:     cs.web3,
		signer:   cs.signer,
		contract: cs.contract,
		account:  cs.account,
	}
}

// clear drops all handles and returns the event watcher to stop.
func (cs *ConnectionState) clear() *eventWatcher {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	watcher := cs.watcher
	cs.phase = PhaseDisconnected
	cs.source = ""
	cs.provider = nil
	cs.web3 = nil
	cs.signer = nil
	cs.contract = nil
	cs.account = common.Address{}
	cs.chainID = 0
	cs.watcher = nil
	return watcher
}

// DerivedContractState holds the display values refreshed from the chain.
// Each value stays nil until it was fetched once.
type DerivedContractState struct {
	WalletBalance     *big.Int
	TotalUsers        *big.Int
	PoolBalance       *big.Int
	SpecialRewardPool *big.Int
	EligibleUsers     *big.Int
	UpdatedAt         time.Time
}

func (d *DerivedContractState) copy() DerivedContractState {
	return DerivedContractState{
		WalletBalance:     copyBig(d.WalletBalance),
		TotalUsers:        copyBig(d.TotalUsers),
		PoolBalance:       copyBig(d.PoolBalance),
		SpecialRewardPool: copyBig(d.SpecialRewardPool),
		EligibleUsers:     copyBig(d.EligibleUsers),
		UpdatedAt:         d.UpdatedAt,
	}
}

func copyBig(value *big.Int) *big.Int {
	if value == nil {
		return nil
	}
	return new(big.Int).Set(value)
}

// StateSnapshot is the read model of the session for the ui surface.
type StateSnapshot struct {
	Phase       ConnectionPhase
	Connected   bool
	Source      string
	Account     common.Address
	ChainID     uint64
	OnRequired  bool
	EntryFee    *big.Int
	EntryFeeSet bool
	Derived     DerivedContractState
	Controls    []ControlState
	Inputs      InputValues
}
