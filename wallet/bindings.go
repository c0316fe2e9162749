package wallet

import (
	"fmt"
	"sort"
	"sync"
)

// well known binding names, in the order wallets inject them
const (
	BindingEthereum        = "ethereum"
	BindingSafepalProvider = "safepalProvider"
	BindingSafepalWallet   = "safepalwallet"
	BindingWeb3            = "web3"
)

// Web3Binding is the legacy web3 object, only its current provider is of interest.
type Web3Binding struct {
	CurrentProvider interface{}
}

// Bindings is the host environment a wallet injects itself into: a set of
// named global objects. Values are untyped, their capabilities are checked
// by the consumer.
type Bindings struct {
	mutex  sync.RWMutex
	values map[string]interface{}
}

func NewBindings() *Bindings {
	return &Bindings{
		values: map[string]interface{}{},
	}
}

func (b *Bindings) Lookup(name string) (interface{}, bool) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	value, found := b.values[name]
	if found && value == nil {
		return nil, false
	}
	return value, found
}

func (b *Bindings) Set(name string, value interface{}) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.values[name] = value
}

func (b *Bindings) Delete(name string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	delete(b.values, name)
}

func (b *Bindings) Names() []string {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	names := make([]string, 0, len(b.values))
	for name := range b.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *Bindings) String() string {
	return fmt.Sprintf("bindings%v", b.Names())
}
