// Package execution applies messages to the state, running native contracts.
package execution

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fbslo/frooties-contract/pkg/frooties"
)

// NativeContract is a contract implemented in Go.
type NativeContract interface {
	Run(l frooties.Ledger, msg frooties.Msg, input []byte) ([]byte, error)
}

// Registry maps addresses to deployed native contracts.
type Registry struct {
	mu        sync.RWMutex
	contracts map[common.Address]NativeContract
	frooties  map[common.Address]*frooties.Contract
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		contracts: make(map[common.Address]NativeContract),
		frooties:  make(map[common.Address]*frooties.Contract),
	}
}

// Register binds a contract to addr.
func (r *Registry) Register(addr common.Address, c NativeContract) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts[addr] = c
	if fc, ok := c.(*frooties.Contract); ok {
		r.frooties[addr] = fc
	}
}

// Unregister removes the contract at addr.
func (r *Registry) Unregister(addr common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.contracts, addr)
	delete(r.frooties, addr)
}

// Get returns the contract at addr.
func (r *Registry) Get(addr common.Address) (NativeContract, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contracts[addr]
	return c, ok
}

// Frooties returns the Frooties contract at addr.
func (r *Registry) Frooties(addr common.Address) (*frooties.Contract, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.frooties[addr]
	return c, ok
}

// Addresses returns the addresses of all registered contracts.
func (r *Registry) Addresses() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addrs := make([]common.Address, 0, len(r.contracts))
	for addr := range r.contracts {
		addrs = append(addrs, addr)
	}
	return addrs
}
