// Package cheats provides the hardhat/anvil cheat codes of the simulator.
package cheats

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"

	"github.com/fbslo/frooties-contract/pkg/state"
)

// ErrTimestampTooLow is returned when a block would not move time forward.
var ErrTimestampTooLow = errors.New("timestamp is lower than or equal to previous block's timestamp")

// Manager implements cheat code functionality.
type Manager struct {
	stateManager state.Writer
	clock        clockwork.Clock

	impersonated    map[common.Address]bool
	autoImpersonate bool

	// Virtual time is wall clock plus offset. A pending next-block timestamp
	// overrides it once and re-anchors the offset, as hardhat does.
	timeOffset         int64
	nextBlockTimestamp uint64

	automine bool

	mu sync.RWMutex
}

// NewManager creates a cheat code manager. A nil clock means the wall clock.
func NewManager(sm state.Writer, clock clockwork.Clock) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		stateManager: sm,
		clock:        clock,
		impersonated: make(map[common.Address]bool),
		automine:     true,
	}
}

// Clock returns the clock virtual time is derived from.
func (m *Manager) Clock() clockwork.Clock {
	return m.clock
}

// SetBalance sets the balance of an account.
func (m *Manager) SetBalance(addr common.Address, balance *big.Int) error {
	return m.stateManager.SetBalance(addr, balance)
}

// SetNonce sets the nonce of an account.
func (m *Manager) SetNonce(addr common.Address, nonce uint64) error {
	return m.stateManager.SetNonce(addr, nonce)
}

// SetStorageAt sets the storage value at a slot.
func (m *Manager) SetStorageAt(addr common.Address, slot, value common.Hash) error {
	return m.stateManager.SetStorageAt(addr, slot, value)
}

// ImpersonateAccount lets transactions be sent from addr without its key.
func (m *Manager) ImpersonateAccount(addr common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.impersonated[addr] = true
}

// StopImpersonatingAccount disables impersonation for an address.
func (m *Manager) StopImpersonatingAccount(addr common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.impersonated, addr)
}

// SetAutoImpersonate enables or disables impersonation of every address.
func (m *Manager) SetAutoImpersonate(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.autoImpersonate = enabled
}

// IsImpersonating returns true if the address is being impersonated.
func (m *Manager) IsImpersonating(addr common.Address) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.autoImpersonate || m.impersonated[addr]
}

// Now returns the current virtual timestamp.
func (m *Manager) Now() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.nowLocked()
}

func (m *Manager) nowLocked() uint64 {
	now := m.clock.Now().Unix() + m.timeOffset
	if now < 0 {
		return 0
	}
	return uint64(now)
}

// IncreaseTime moves virtual time forward and returns the new timestamp.
func (m *Manager) IncreaseTime(seconds uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.timeOffset += int64(seconds)
	return m.nowLocked()
}

// SetTime moves the virtual clock to timestamp. The clock keeps advancing
// from there.
func (m *Manager) SetTime(timestamp uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.timeOffset = int64(timestamp) - m.clock.Now().Unix()
}

// SetNextBlockTimestamp pins the timestamp of the next mined block.
func (m *Manager) SetNextBlockTimestamp(timestamp uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextBlockTimestamp = timestamp
}

// NextBlockTimestamp returns the pinned timestamp, or 0 when none is set.
func (m *Manager) NextBlockTimestamp() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.nextBlockTimestamp
}

// NextBlockTime returns the timestamp of a block built on a parent with the
// given time. A pinned timestamp is consumed.
func (m *Manager) NextBlockTime(parentTime uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ts := m.nextBlockTimestamp; ts != 0 {
		if ts <= parentTime {
			return 0, ErrTimestampTooLow
		}
		m.nextBlockTimestamp = 0
		m.timeOffset = int64(ts) - m.clock.Now().Unix()
		return ts, nil
	}

	ts := m.nowLocked()
	if ts <= parentTime {
		ts = parentTime + 1
	}
	return ts, nil
}

// TimeState is the virtual clock configuration.
type TimeState struct {
	Offset             int64
	NextBlockTimestamp uint64
}

// SaveTime captures the virtual clock configuration.
func (m *Manager) SaveTime() TimeState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return TimeState{Offset: m.timeOffset, NextBlockTimestamp: m.nextBlockTimestamp}
}

// RestoreTime reinstates a configuration captured by SaveTime.
func (m *Manager) RestoreTime(ts TimeState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.timeOffset = ts.Offset
	m.nextBlockTimestamp = ts.NextBlockTimestamp
}

// SetAutomine enables or disables mining a block per transaction.
func (m *Manager) SetAutomine(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.automine = enabled
}

// IsAutomine returns true if auto-mining is enabled.
func (m *Manager) IsAutomine() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.automine
}

// Reset restores the defaults.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.impersonated = make(map[common.Address]bool)
	m.autoImpersonate = false
	m.timeOffset = 0
	m.nextBlockTimestamp = 0
	m.automine = true
}
