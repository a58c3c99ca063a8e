// Package snapshot implements evm_snapshot and evm_revert.
package snapshot

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fbslo/frooties-contract/pkg/blockchain"
	"github.com/fbslo/frooties-contract/pkg/cheats"
	"github.com/fbslo/frooties-contract/pkg/state"
	"github.com/fbslo/frooties-contract/pkg/tracing"
	"github.com/fbslo/frooties-contract/pkg/txpool"
)

// Snapshot holds a point-in-time capture of the simulator.
type Snapshot struct {
	ID          uint64
	StateSnapID int
	BlockNumber uint64
	Time        cheats.TimeState
}

// Manager manages simulator snapshots. Reverting restores state, chain head,
// virtual time and an empty transaction pool.
type Manager struct {
	stateManager state.Manager
	chain        *blockchain.Chain
	pool         txpool.Pool
	cheats       *cheats.Manager
	traces       *tracing.Store

	snapshots map[uint64]*Snapshot
	nextID    uint64

	mu sync.RWMutex
}

// NewManager creates a new snapshot manager. traces may be nil.
func NewManager(sm state.Manager, chain *blockchain.Chain, pool txpool.Pool, cm *cheats.Manager, traces *tracing.Store) *Manager {
	return &Manager{
		stateManager: sm,
		chain:        chain,
		pool:         pool,
		cheats:       cm,
		traces:       traces,
		snapshots:    make(map[uint64]*Snapshot),
		nextID:       1,
	}
}

// Snapshot creates a new snapshot and returns its ID.
func (m *Manager) Snapshot() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &Snapshot{
		ID:          m.nextID,
		StateSnapID: m.stateManager.Snapshot(),
		BlockNumber: m.chain.BlockNumber(),
		Time:        m.cheats.SaveTime(),
	}

	m.snapshots[m.nextID] = snap
	m.nextID++

	return snap.ID
}

// Revert reverts to a previous snapshot. The snapshot and every later one
// are consumed. It returns false for unknown IDs.
func (m *Manager) Revert(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, exists := m.snapshots[id]
	if !exists {
		return false
	}

	m.stateManager.RevertToSnapshot(snap.StateSnapID)
	m.dropTraces(snap.BlockNumber)
	if err := m.chain.Rewind(snap.BlockNumber); err != nil {
		return false
	}
	m.cheats.RestoreTime(snap.Time)
	m.pool.Clear()

	for snapID := range m.snapshots {
		if snapID >= id {
			delete(m.snapshots, snapID)
		}
	}

	return true
}

func (m *Manager) dropTraces(keep uint64) {
	if m.traces == nil {
		return
	}
	var hashes []common.Hash
	for n := keep + 1; n <= m.chain.BlockNumber(); n++ {
		block, err := m.chain.BlockByNumber(n)
		if err != nil {
			break
		}
		for _, tx := range block.Transactions() {
			hashes = append(hashes, tx.Hash())
		}
	}
	m.traces.Delete(hashes...)
}

// Delete removes a snapshot without reverting to it.
func (m *Manager) Delete(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.snapshots[id]; !exists {
		return false
	}

	delete(m.snapshots, id)
	return true
}

// List returns all snapshot IDs.
func (m *Manager) List() []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]uint64, 0, len(m.snapshots))
	for id := range m.snapshots {
		ids = append(ids, id)
	}
	return ids
}

// Clear removes all snapshots.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshots = make(map[uint64]*Snapshot)
}

// Count returns the number of snapshots.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.snapshots)
}

// Get retrieves a snapshot by ID.
func (m *Manager) Get(id uint64) (*Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, exists := m.snapshots[id]
	return snap, exists
}
