package frooties

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_String(t *testing.T) {
	assert.Equal(t, "whitelist", StageWhitelist.String())
	assert.Equal(t, "stage(9)", Stage(9).String())
	assert.False(t, Stage(4).Valid())
}

func TestParseStageMode(t *testing.T) {
	mode, err := ParseStageMode("manual")
	require.NoError(t, err)
	assert.Equal(t, ModeManual, mode)

	mode, err = ParseStageMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeSchedule, mode)

	_, err = ParseStageMode("auction")
	assert.Error(t, err)
}

func TestParseReserveScope(t *testing.T) {
	scope, err := ParseReserveScope("caller")
	require.NoError(t, err)
	assert.Equal(t, ReservePerCaller, scope)

	_, err = ParseReserveScope("everyone")
	assert.Error(t, err)
}

func TestSchedule(t *testing.T) {
	s := DefaultSchedule
	assert.True(t, s.Ordered())

	assert.False(t, s.Started(StageWhitelist, s.Whitelist-1))
	assert.True(t, s.Started(StageWhitelist, s.Whitelist))
	assert.True(t, s.Started(StageWhitelist, s.Reserve))
	assert.False(t, s.Started(StageInactive, s.Reserve))

	assert.False(t, Schedule{Whitelist: 3, Public: 2, Reserve: 4}.Ordered())
}

func TestSlots(t *testing.T) {
	// Distinct mappings never collide for the same key.
	assert.NotEqual(t, AddressSlot(SlotAmounts, alice), AddressSlot(SlotBalances, alice))
	assert.NotEqual(t, AddressSlot(SlotAmounts, alice), AddressSlot(SlotAmounts, bob))
	assert.NotEqual(t, UintSlot(SlotOwners, uint256.NewInt(1)), UintSlot(SlotOwners, uint256.NewInt(2)))
}
