// Package blockchain stores the blocks, receipts and transaction index of the simulator.
package blockchain

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Common errors.
var (
	ErrBlockNotFound   = errors.New("block not found")
	ErrReceiptNotFound = errors.New("receipt not found")
	ErrTxNotFound      = errors.New("transaction not found")
	ErrNoGenesis       = errors.New("no genesis block set")
	ErrInvalidBlock    = errors.New("invalid block")
)

// DefaultCoinbase is the first account of the default test mnemonic.
var DefaultCoinbase = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

// TxLookup locates a mined transaction.
type TxLookup struct {
	BlockHash   common.Hash
	BlockNumber uint64
	Index       uint64
	From        common.Address
}

// Chain manages the canonical block sequence.
type Chain struct {
	chainID *big.Int

	blocks   []*types.Block // index == block number
	byHash   map[common.Hash]*types.Block
	receipts map[common.Hash]*types.Receipt
	txs      map[common.Hash]TxLookup
	reverts  map[common.Hash][]byte

	coinbase common.Address

	mu sync.RWMutex
}

// NewChain creates an empty chain.
func NewChain(chainID *big.Int) *Chain {
	return &Chain{
		chainID:  new(big.Int).Set(chainID),
		byHash:   make(map[common.Hash]*types.Block),
		receipts: make(map[common.Hash]*types.Receipt),
		txs:      make(map[common.Hash]TxLookup),
		reverts:  make(map[common.Hash][]byte),
		coinbase: DefaultCoinbase,
	}
}

// ChainID returns the chain ID.
func (c *Chain) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// SetGenesis sets the genesis block, dropping anything stored before.
func (c *Chain) SetGenesis(block *types.Block) error {
	if block.NumberU64() != 0 {
		return ErrInvalidBlock
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.blocks = []*types.Block{block}
	c.byHash = map[common.Hash]*types.Block{block.Hash(): block}
	c.receipts = make(map[common.Hash]*types.Receipt)
	c.txs = make(map[common.Hash]TxLookup)
	c.reverts = make(map[common.Hash][]byte)
	return nil
}

// Genesis returns the genesis block.
func (c *Chain) Genesis() *types.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.blocks) == 0 {
		return nil
	}
	return c.blocks[0]
}

// CurrentBlock returns the chain head.
func (c *Chain) CurrentBlock() *types.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.blocks) == 0 {
		return nil
	}
	return c.blocks[len(c.blocks)-1]
}

// BlockNumber returns the head block number.
func (c *Chain) BlockNumber() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.blocks) == 0 {
		return 0
	}
	return uint64(len(c.blocks) - 1)
}

// AddBlock appends a block with the receipts of its transactions.
// senders and reverts are indexed like the block transactions; reverts may be nil.
func (c *Chain) AddBlock(block *types.Block, receipts []*types.Receipt, senders []common.Address, reverts [][]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.blocks) == 0 {
		return ErrNoGenesis
	}

	head := c.blocks[len(c.blocks)-1]
	if block.ParentHash() != head.Hash() || block.NumberU64() != head.NumberU64()+1 {
		return ErrInvalidBlock
	}
	txs := block.Transactions()
	if len(receipts) != len(txs) || len(senders) != len(txs) {
		return ErrInvalidBlock
	}

	hash := block.Hash()
	c.blocks = append(c.blocks, block)
	c.byHash[hash] = block

	for i, tx := range txs {
		receipt := receipts[i]
		receipt.BlockHash = hash
		receipt.BlockNumber = new(big.Int).Set(block.Number())
		receipt.TransactionIndex = uint(i)
		for _, log := range receipt.Logs {
			log.BlockHash = hash
			log.BlockNumber = block.NumberU64()
			log.TxHash = tx.Hash()
			log.TxIndex = uint(i)
		}

		c.receipts[tx.Hash()] = receipt
		c.txs[tx.Hash()] = TxLookup{
			BlockHash:   hash,
			BlockNumber: block.NumberU64(),
			Index:       uint64(i),
			From:        senders[i],
		}
		if i < len(reverts) && len(reverts[i]) > 0 {
			c.reverts[tx.Hash()] = common.CopyBytes(reverts[i])
		}
	}
	return nil
}

// Rewind drops every block above number.
func (c *Chain) Rewind(number uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.blocks) == 0 {
		return ErrNoGenesis
	}
	if number >= uint64(len(c.blocks)) {
		return ErrBlockNotFound
	}

	for _, block := range c.blocks[number+1:] {
		delete(c.byHash, block.Hash())
		for _, tx := range block.Transactions() {
			delete(c.receipts, tx.Hash())
			delete(c.txs, tx.Hash())
			delete(c.reverts, tx.Hash())
		}
	}
	c.blocks = c.blocks[:number+1]
	return nil
}

// BlockByNumber retrieves a block by its number.
func (c *Chain) BlockByNumber(number uint64) (*types.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if number >= uint64(len(c.blocks)) {
		return nil, ErrBlockNotFound
	}
	return c.blocks[number], nil
}

// BlockByHash retrieves a block by its hash.
func (c *Chain) BlockByHash(hash common.Hash) (*types.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	block, ok := c.byHash[hash]
	if !ok {
		return nil, ErrBlockNotFound
	}
	return block, nil
}

// Receipt retrieves a transaction receipt.
func (c *Chain) Receipt(txHash common.Hash) (*types.Receipt, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	receipt, ok := c.receipts[txHash]
	if !ok {
		return nil, ErrReceiptNotFound
	}
	return receipt, nil
}

// Transaction returns a mined transaction with its location.
func (c *Chain) Transaction(txHash common.Hash) (*types.Transaction, TxLookup, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	lookup, ok := c.txs[txHash]
	if !ok {
		return nil, TxLookup{}, ErrTxNotFound
	}
	block := c.blocks[lookup.BlockNumber]
	return block.Transactions()[lookup.Index], lookup, nil
}

// RevertData returns the revert payload of a failed transaction, if any.
func (c *Chain) RevertData(txHash common.Hash) []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return common.CopyBytes(c.reverts[txHash])
}

// SetCoinbase sets the coinbase address for new blocks.
func (c *Chain) SetCoinbase(addr common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.coinbase = addr
}

// Coinbase returns the coinbase address.
func (c *Chain) Coinbase() common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.coinbase
}
