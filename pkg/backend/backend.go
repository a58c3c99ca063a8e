// Package backend provides the main simulator backend implementation.
package backend

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fbslo/frooties-contract/pkg/blockchain"
	"github.com/fbslo/frooties-contract/pkg/tracing"
)

// Backend is the main interface for the simulator engine.
// It coordinates all components and provides the primary API.
type Backend interface {
	// Lifecycle
	Start() error
	Stop() error

	// Chain information
	ChainID() *big.Int
	CurrentBlock() *types.Block
	BlockByNumber(number uint64) (*types.Block, error)
	BlockByHash(hash common.Hash) (*types.Block, error)
	BlockNumber() uint64

	// Transaction handling
	SendTransaction(ctx context.Context, args TxArgs) (common.Hash, error)
	SendRawTransaction(ctx context.Context, data []byte) (common.Hash, error)
	Call(ctx context.Context, msg CallMsg) ([]byte, error)
	EstimateGas(ctx context.Context, msg CallMsg) (uint64, error)
	DeployFrooties(ctx context.Context, from, whitelistAdmin common.Address) (common.Address, error)

	// Receipt/Log access
	Receipt(hash common.Hash) (*types.Receipt, error)
	Transaction(hash common.Hash) (*types.Transaction, blockchain.TxLookup, error)
	RevertData(hash common.Hash) []byte
	Logs(filter FilterQuery) ([]*types.Log, error)
	Trace(hash common.Hash) (*tracing.CallFrame, error)

	// State access
	Balance(addr common.Address) *big.Int
	Nonce(addr common.Address) uint64
	Code(addr common.Address) []byte
	StorageAt(addr common.Address, slot common.Hash) common.Hash

	// Mining control
	Mine(ctx context.Context, blocks uint64) ([]*types.Block, error)
	SetAutomine(enabled bool)
	IsAutomine() bool
	SetIntervalMining(interval time.Duration) error

	// Cheat codes
	SetBalance(addr common.Address, balance *big.Int) error
	SetNonce(addr common.Address, nonce uint64) error
	SetCode(addr common.Address, code []byte) error
	SetStorageAt(addr common.Address, slot, value common.Hash) error
	ImpersonateAccount(addr common.Address)
	StopImpersonatingAccount(addr common.Address)
	SetAutoImpersonate(enabled bool)
	SetNextBlockTimestamp(timestamp uint64) error
	IncreaseTime(seconds uint64) uint64
	DropTransaction(hash common.Hash) bool

	// Snapshot
	Snapshot() uint64
	Revert(id uint64) bool

	// Accounts
	Accounts() []common.Address
	PrivateKey(addr common.Address) (*ecdsa.PrivateKey, bool)
	Sign(addr common.Address, data []byte) ([]byte, error)
}

// TxArgs are the fields of an unsigned transaction. Unset fields are filled
// in by the simulator.
type TxArgs struct {
	From     common.Address
	To       *common.Address
	Gas      *uint64
	GasPrice *big.Int
	Value    *big.Int
	Data     []byte
	Nonce    *uint64
}

// CallMsg represents a call message.
type CallMsg struct {
	From  common.Address
	To    *common.Address
	Gas   uint64
	Value *big.Int
	Data  []byte
}

// FilterQuery represents a log filter query.
type FilterQuery struct {
	BlockHash *common.Hash
	FromBlock *big.Int
	ToBlock   *big.Int
	Addresses []common.Address
	Topics    [][]common.Hash
}

// TransactionError reports a transaction that was mined but failed.
type TransactionError struct {
	Hash common.Hash
	Err  error
}

func (e *TransactionError) Error() string {
	return e.Err.Error()
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}
