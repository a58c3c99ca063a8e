package state

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob   = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func TestNewInMemoryManager(t *testing.T) {
	sm := NewInMemoryManager()
	require.NotNil(t, sm)
	assert.False(t, sm.Exist(alice))
	assert.Equal(t, common.Hash{}, sm.Root())
}

func TestStateBalance(t *testing.T) {
	sm := NewInMemoryManager()

	assert.Equal(t, big.NewInt(0), sm.GetBalance(alice))

	balance := new(big.Int).Mul(big.NewInt(10000), big.NewInt(1e18))
	require.NoError(t, sm.SetBalance(alice, balance))
	assert.Equal(t, balance, sm.GetBalance(alice))

	// Returned values are copies
	sm.GetBalance(alice).SetInt64(1)
	assert.Equal(t, balance, sm.GetBalance(alice))
}

func TestStateNonceAndCode(t *testing.T) {
	sm := NewInMemoryManager()
	code := []byte{0x60, 0x00, 0x60, 0x00, 0xf3}

	require.NoError(t, sm.SetNonce(alice, 5))
	require.NoError(t, sm.SetCode(alice, code))

	assert.Equal(t, uint64(5), sm.GetNonce(alice))
	assert.Equal(t, code, sm.GetCode(alice))
	assert.Nil(t, sm.GetCode(bob))
}

func TestStateStorage(t *testing.T) {
	sm := NewInMemoryManager()
	slot := common.HexToHash("0x01")
	value := common.HexToHash("0x2a")

	require.NoError(t, sm.SetStorageAt(alice, slot, value))
	assert.Equal(t, value, sm.GetStorageAt(alice, slot))

	require.NoError(t, sm.SetStorageAt(alice, slot, common.Hash{}))
	assert.Equal(t, common.Hash{}, sm.GetStorageAt(alice, slot))
}

func TestTransfer(t *testing.T) {
	sm := NewInMemoryManager()
	require.NoError(t, sm.SetBalance(alice, big.NewInt(100)))

	require.NoError(t, sm.Transfer(alice, bob, big.NewInt(40)))
	assert.Equal(t, big.NewInt(60), sm.GetBalance(alice))
	assert.Equal(t, big.NewInt(40), sm.GetBalance(bob))

	err := sm.Transfer(alice, bob, big.NewInt(61))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, big.NewInt(60), sm.GetBalance(alice))
	assert.Equal(t, big.NewInt(40), sm.GetBalance(bob))

	// Zero and nil amounts are no-ops
	require.NoError(t, sm.Transfer(bob, alice, nil))
	require.NoError(t, sm.Transfer(bob, alice, big.NewInt(0)))
}

func TestSnapshotRevert(t *testing.T) {
	sm := NewInMemoryManager()
	slot := common.HexToHash("0x03")
	require.NoError(t, sm.SetBalance(alice, big.NewInt(1000)))

	id := sm.Snapshot()
	require.NoError(t, sm.SetBalance(alice, big.NewInt(2000)))
	require.NoError(t, sm.SetStorageAt(bob, slot, common.HexToHash("0x01")))

	sm.RevertToSnapshot(id)
	assert.Equal(t, big.NewInt(1000), sm.GetBalance(alice))
	assert.Equal(t, common.Hash{}, sm.GetStorageAt(bob, slot))
	assert.False(t, sm.Exist(bob))
	assert.Equal(t, 0, sm.SnapshotCount())
}

func TestSnapshotNested(t *testing.T) {
	sm := NewInMemoryManager()
	require.NoError(t, sm.SetBalance(alice, big.NewInt(1)))

	outer := sm.Snapshot()
	require.NoError(t, sm.SetBalance(alice, big.NewInt(2)))
	inner := sm.Snapshot()
	require.NoError(t, sm.SetBalance(alice, big.NewInt(3)))

	sm.DiscardSnapshot(inner)
	assert.Equal(t, big.NewInt(3), sm.GetBalance(alice))
	assert.Equal(t, 1, sm.SnapshotCount())

	sm.RevertToSnapshot(outer)
	assert.Equal(t, big.NewInt(1), sm.GetBalance(alice))

	// Reverting a dropped snapshot does nothing
	sm.RevertToSnapshot(inner)
	assert.Equal(t, big.NewInt(1), sm.GetBalance(alice))
}

func TestRootDeterministic(t *testing.T) {
	build := func(first, second common.Address) *InMemoryManager {
		sm := NewInMemoryManager()
		require.NoError(t, sm.SetBalance(first, big.NewInt(7)))
		require.NoError(t, sm.SetBalance(second, big.NewInt(9)))
		return sm
	}

	a := build(alice, bob)
	b := NewInMemoryManager()
	require.NoError(t, b.SetBalance(bob, big.NewInt(9)))
	require.NoError(t, b.SetBalance(alice, big.NewInt(7)))

	assert.Equal(t, a.Root(), b.Root())
	assert.NotEqual(t, common.Hash{}, a.Root())

	require.NoError(t, b.SetStorageAt(alice, common.HexToHash("0x1"), common.HexToHash("0x1")))
	assert.NotEqual(t, a.Root(), b.Root())
}
