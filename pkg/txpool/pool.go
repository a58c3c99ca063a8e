// Package txpool holds transactions waiting to be mined.
package txpool

import (
	"errors"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fbslo/frooties-contract/pkg/state"
)

// Common errors.
var (
	ErrNonceTooLow       = errors.New("nonce too low")
	ErrNonceTooHigh      = errors.New("nonce too high")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrTxAlreadyKnown    = errors.New("transaction already known")
	ErrTxNotFound        = errors.New("transaction not found")
	ErrInvalidSender     = errors.New("invalid sender")
	ErrWrongChain        = errors.New("transaction chain id mismatch")
)

// PendingTx is a pooled transaction with its sender. The sender of an
// impersonated transaction is not derivable from its signature.
type PendingTx struct {
	Tx   *types.Transaction
	From common.Address
}

// Pool manages pending transactions.
type Pool interface {
	Add(tx *types.Transaction) (common.Address, error)
	AddWithSender(tx *types.Transaction, from common.Address) error
	Remove(hash common.Hash) error
	Get(hash common.Hash) *types.Transaction
	Pending() []PendingTx
	PendingNonce(addr common.Address) uint64
	Count() int
	Clear()
}

type txEntry struct {
	tx   *types.Transaction
	from common.Address
	seq  uint64
}

// InMemoryPool implements Pool with in-memory storage.
type InMemoryPool struct {
	stateManager  state.Reader
	chainID       *big.Int
	signer        types.Signer
	pending       map[common.Hash]*txEntry
	byAddress     map[common.Address][]*txEntry
	pendingNonces map[common.Address]uint64 // next expected nonce per address
	seq           uint64
	mu            sync.RWMutex
}

// NewInMemoryPool creates a new in-memory transaction pool.
func NewInMemoryPool(stateManager state.Reader, chainID *big.Int) *InMemoryPool {
	return &InMemoryPool{
		stateManager:  stateManager,
		chainID:       chainID,
		signer:        types.LatestSignerForChainID(chainID),
		pending:       make(map[common.Hash]*txEntry),
		byAddress:     make(map[common.Address][]*txEntry),
		pendingNonces: make(map[common.Address]uint64),
	}
}

// Signer returns the signer used to recover senders.
func (p *InMemoryPool) Signer() types.Signer {
	return p.signer
}

// Add adds a signed transaction to the pool and returns its sender.
func (p *InMemoryPool) Add(tx *types.Transaction) (common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if tx.Protected() && tx.ChainId().Cmp(p.chainID) != 0 {
		return common.Address{}, ErrWrongChain
	}
	from, err := types.Sender(p.signer, tx)
	if err != nil {
		return common.Address{}, ErrInvalidSender
	}

	return from, p.addLocked(tx, from)
}

// AddWithSender adds an unsigned transaction on behalf of from.
func (p *InMemoryPool) AddWithSender(tx *types.Transaction, from common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.addLocked(tx, from)
}

func (p *InMemoryPool) addLocked(tx *types.Transaction, from common.Address) error {
	if _, exists := p.pending[tx.Hash()]; exists {
		return ErrTxAlreadyKnown
	}

	if err := p.validateTx(tx, from); err != nil {
		return err
	}

	p.seq++
	entry := &txEntry{tx: tx, from: from, seq: p.seq}
	p.pending[tx.Hash()] = entry
	p.byAddress[from] = append(p.byAddress[from], entry)

	nextNonce := tx.Nonce() + 1
	if nextNonce > p.pendingNonces[from] {
		p.pendingNonces[from] = nextNonce
	}

	return nil
}

func (p *InMemoryPool) validateTx(tx *types.Transaction, from common.Address) error {
	currentNonce := p.stateManager.GetNonce(from)

	pendingNonce := currentNonce
	if pn, ok := p.pendingNonces[from]; ok && pn > pendingNonce {
		pendingNonce = pn
	}

	txNonce := tx.Nonce()
	if txNonce < currentNonce {
		return ErrNonceTooLow
	}
	if txNonce > pendingNonce {
		return ErrNonceTooHigh
	}

	// Fees are not charged, only the value has to be covered.
	if p.stateManager.GetBalance(from).Cmp(tx.Value()) < 0 {
		return ErrInsufficientFunds
	}

	return nil
}

// Remove removes a transaction from the pool.
func (p *InMemoryPool) Remove(hash common.Hash) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, exists := p.pending[hash]
	if !exists {
		return ErrTxNotFound
	}

	delete(p.pending, hash)

	txs := p.byAddress[entry.from]
	for i, e := range txs {
		if e.tx.Hash() == hash {
			p.byAddress[entry.from] = append(txs[:i], txs[i+1:]...)
			break
		}
	}
	if len(p.byAddress[entry.from]) == 0 {
		delete(p.byAddress, entry.from)
		delete(p.pendingNonces, entry.from)
	}

	return nil
}

// Get retrieves a transaction by hash.
func (p *InMemoryPool) Get(hash common.Hash) *types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if entry, exists := p.pending[hash]; exists {
		return entry.tx
	}
	return nil
}

// Pending returns all pending transactions in arrival order.
func (p *InMemoryPool) Pending() []PendingTx {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries := make([]*txEntry, 0, len(p.pending))
	for _, entry := range p.pending {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})

	txs := make([]PendingTx, len(entries))
	for i, entry := range entries {
		txs[i] = PendingTx{Tx: entry.tx, From: entry.from}
	}
	return txs
}

// PendingNonce returns the next expected nonce for an address.
func (p *InMemoryPool) PendingNonce(addr common.Address) uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	current := p.stateManager.GetNonce(addr)
	if nonce, ok := p.pendingNonces[addr]; ok && nonce > current {
		return nonce
	}
	return current
}

// Count returns the number of pending transactions.
func (p *InMemoryPool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.pending)
}

// Clear removes all transactions from the pool.
func (p *InMemoryPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending = make(map[common.Hash]*txEntry)
	p.byAddress = make(map[common.Address][]*txEntry)
	p.pendingNonces = make(map[common.Address]uint64)
}
