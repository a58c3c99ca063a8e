// Package state holds the account ledger the simulator executes against.
package state

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInsufficientBalance is returned when a transfer exceeds the sender balance.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Reader provides read-only state access.
type Reader interface {
	GetBalance(addr common.Address) *big.Int
	GetNonce(addr common.Address) uint64
	GetCode(addr common.Address) []byte
	GetStorageAt(addr common.Address, slot common.Hash) common.Hash
	Exist(addr common.Address) bool
}

// Writer provides state modification.
type Writer interface {
	SetBalance(addr common.Address, balance *big.Int) error
	SetNonce(addr common.Address, nonce uint64) error
	SetCode(addr common.Address, code []byte) error
	SetStorageAt(addr common.Address, slot, value common.Hash) error
	Transfer(from, to common.Address, amount *big.Int) error
}

// Manager combines read and write access with journaling.
//
// Snapshots nest: reverting to an id drops it and every later one, discarding
// an id keeps the current state and forgets the snapshot and every later one.
type Manager interface {
	Reader
	Writer
	Root() common.Hash
	Snapshot() int
	RevertToSnapshot(id int)
	DiscardSnapshot(id int)
}

type account struct {
	balance  *big.Int
	nonce    uint64
	code     []byte
	codeHash common.Hash
	storage  map[common.Hash]common.Hash
}

func newAccount() *account {
	return &account{
		balance: new(big.Int),
		storage: make(map[common.Hash]common.Hash),
	}
}

func (a *account) copy() *account {
	cpy := &account{
		balance:  new(big.Int).Set(a.balance),
		nonce:    a.nonce,
		code:     common.CopyBytes(a.code),
		codeHash: a.codeHash,
		storage:  make(map[common.Hash]common.Hash, len(a.storage)),
	}
	for k, v := range a.storage {
		cpy.storage[k] = v
	}
	return cpy
}

type snapshot struct {
	id       int
	accounts map[common.Address]*account
}

// InMemoryManager implements Manager on plain maps.
type InMemoryManager struct {
	accounts   map[common.Address]*account
	snapshots  []snapshot
	nextSnapID int
	mu         sync.RWMutex
}

// NewInMemoryManager creates an empty ledger.
func NewInMemoryManager() *InMemoryManager {
	return &InMemoryManager{
		accounts: make(map[common.Address]*account),
	}
}

// getOrCreate returns the account for addr, creating it if needed.
// Caller must hold the write lock.
func (m *InMemoryManager) getOrCreate(addr common.Address) *account {
	acc, ok := m.accounts[addr]
	if !ok {
		acc = newAccount()
		m.accounts[addr] = acc
	}
	return acc
}

// GetBalance returns the balance of an account.
func (m *InMemoryManager) GetBalance(addr common.Address) *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if acc, ok := m.accounts[addr]; ok {
		return new(big.Int).Set(acc.balance)
	}
	return new(big.Int)
}

// GetNonce returns the nonce of an account.
func (m *InMemoryManager) GetNonce(addr common.Address) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if acc, ok := m.accounts[addr]; ok {
		return acc.nonce
	}
	return 0
}

// GetCode returns the code of an account.
func (m *InMemoryManager) GetCode(addr common.Address) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if acc, ok := m.accounts[addr]; ok {
		return common.CopyBytes(acc.code)
	}
	return nil
}

// GetStorageAt returns the value stored at slot.
func (m *InMemoryManager) GetStorageAt(addr common.Address, slot common.Hash) common.Hash {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if acc, ok := m.accounts[addr]; ok {
		return acc.storage[slot]
	}
	return common.Hash{}
}

// Exist reports whether the account has been touched.
func (m *InMemoryManager) Exist(addr common.Address) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.accounts[addr]
	return ok
}

// SetBalance sets the balance of an account.
func (m *InMemoryManager) SetBalance(addr common.Address, balance *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getOrCreate(addr).balance = new(big.Int).Set(balance)
	return nil
}

// SetNonce sets the nonce of an account.
func (m *InMemoryManager) SetNonce(addr common.Address, nonce uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getOrCreate(addr).nonce = nonce
	return nil
}

// SetCode sets the code of an account.
func (m *InMemoryManager) SetCode(addr common.Address, code []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc := m.getOrCreate(addr)
	acc.code = common.CopyBytes(code)
	acc.codeHash = crypto.Keccak256Hash(code)
	return nil
}

// SetStorageAt sets the value stored at slot. Writing the zero hash clears it.
func (m *InMemoryManager) SetStorageAt(addr common.Address, slot, value common.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc := m.getOrCreate(addr)
	if value == (common.Hash{}) {
		delete(acc.storage, slot)
		return nil
	}
	acc.storage[slot] = value
	return nil
}

// Transfer moves amount from one account to another.
func (m *InMemoryManager) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	src := m.getOrCreate(from)
	if src.balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	dst := m.getOrCreate(to)
	src.balance = new(big.Int).Sub(src.balance, amount)
	dst.balance = new(big.Int).Add(dst.balance, amount)
	return nil
}

// Root hashes the whole ledger in address order.
func (m *InMemoryManager) Root() common.Hash {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.accounts) == 0 {
		return common.Hash{}
	}

	addrs := make([]common.Address, 0, len(m.accounts))
	for addr := range m.accounts {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})

	var buf bytes.Buffer
	for _, addr := range addrs {
		acc := m.accounts[addr]
		buf.Write(addr.Bytes())
		buf.Write(common.BigToHash(acc.balance).Bytes())
		_ = binary.Write(&buf, binary.BigEndian, acc.nonce)
		buf.Write(acc.codeHash.Bytes())

		slots := make([]common.Hash, 0, len(acc.storage))
		for slot := range acc.storage {
			slots = append(slots, slot)
		}
		sort.Slice(slots, func(i, j int) bool {
			return bytes.Compare(slots[i][:], slots[j][:]) < 0
		})
		for _, slot := range slots {
			buf.Write(slot.Bytes())
			buf.Write(acc.storage[slot].Bytes())
		}
	}
	return crypto.Keccak256Hash(buf.Bytes())
}

// Snapshot captures the current ledger and returns its id.
func (m *InMemoryManager) Snapshot() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	accounts := make(map[common.Address]*account, len(m.accounts))
	for addr, acc := range m.accounts {
		accounts[addr] = acc.copy()
	}

	id := m.nextSnapID
	m.nextSnapID++
	m.snapshots = append(m.snapshots, snapshot{id: id, accounts: accounts})
	return id
}

// RevertToSnapshot restores the ledger captured by id. Unknown ids are ignored.
func (m *InMemoryManager) RevertToSnapshot(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.snapshotIndex(id)
	if idx < 0 {
		return
	}

	snap := m.snapshots[idx]
	m.accounts = make(map[common.Address]*account, len(snap.accounts))
	for addr, acc := range snap.accounts {
		m.accounts[addr] = acc.copy()
	}
	m.snapshots = m.snapshots[:idx]
}

// DiscardSnapshot forgets snapshot id without touching the ledger.
func (m *InMemoryManager) DiscardSnapshot(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if idx := m.snapshotIndex(id); idx >= 0 {
		m.snapshots = m.snapshots[:idx]
	}
}

func (m *InMemoryManager) snapshotIndex(id int) int {
	for i, snap := range m.snapshots {
		if snap.id == id {
			return i
		}
	}
	return -1
}

// SnapshotCount returns the number of live snapshots.
func (m *InMemoryManager) SnapshotCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.snapshots)
}
