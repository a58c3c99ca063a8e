package frooties

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Storage slots of the contract, laid out as solc would.
const (
	SlotAdmin          = "0x0"
	SlotWhitelistAdmin = "0x1"
	SlotTotalSupply    = "0x2"
	SlotAmounts        = "0x3"
	SlotOwners         = "0x4"
	SlotBalances       = "0x5"
	SlotMintStage      = "0x6"
	SlotReserveAmounts = "0x7"
)

// AddressSlot returns the slot of mapping[key] for an address keyed mapping.
func AddressSlot(slot string, key common.Address) common.Hash {
	// keccak256(abi.encode(key, slot))
	data := make([]byte, 64)
	copy(data[12:32], key.Bytes())
	copy(data[32:64], common.HexToHash(slot).Bytes())
	return crypto.Keccak256Hash(data)
}

// UintSlot returns the slot of mapping[key] for a uint256 keyed mapping.
func UintSlot(slot string, key *uint256.Int) common.Hash {
	data := make([]byte, 64)
	keyBytes := key.Bytes32()
	copy(data[:32], keyBytes[:])
	copy(data[32:64], common.HexToHash(slot).Bytes())
	return crypto.Keccak256Hash(data)
}

// store is a typed view over the contract's Ledger storage.
type store struct {
	l Ledger
}

func (s store) uint(slot common.Hash) *uint256.Int {
	v := s.l.Load(slot)
	return new(uint256.Int).SetBytes32(v[:])
}

func (s store) setUint(slot common.Hash, v *uint256.Int) {
	s.l.Store(slot, common.Hash(v.Bytes32()))
}

func (s store) address(slot common.Hash) common.Address {
	return common.BytesToAddress(s.l.Load(slot).Bytes())
}

func (s store) setAddress(slot common.Hash, addr common.Address) {
	s.l.Store(slot, common.BytesToHash(addr.Bytes()))
}

func (s store) admin() common.Address {
	return s.address(common.HexToHash(SlotAdmin))
}

func (s store) whitelistAdmin() common.Address {
	return s.address(common.HexToHash(SlotWhitelistAdmin))
}

func (s store) totalSupply() *uint256.Int {
	return s.uint(common.HexToHash(SlotTotalSupply))
}

func (s store) amount(addr common.Address) *uint256.Int {
	return s.uint(AddressSlot(SlotAmounts, addr))
}

func (s store) reserveAmount(addr common.Address) *uint256.Int {
	return s.uint(AddressSlot(SlotReserveAmounts, addr))
}

func (s store) balance(addr common.Address) *uint256.Int {
	return s.uint(AddressSlot(SlotBalances, addr))
}

func (s store) owner(id *uint256.Int) common.Address {
	return s.address(UintSlot(SlotOwners, id))
}

func (s store) stage() Stage {
	return Stage(s.uint(common.HexToHash(SlotMintStage)).Uint64())
}
