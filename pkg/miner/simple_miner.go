package miner

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/trie"
	"go.uber.org/zap"

	"github.com/fbslo/frooties-contract/pkg/blockchain"
	"github.com/fbslo/frooties-contract/pkg/cheats"
	"github.com/fbslo/frooties-contract/pkg/execution"
	"github.com/fbslo/frooties-contract/pkg/state"
	"github.com/fbslo/frooties-contract/pkg/tracing"
	"github.com/fbslo/frooties-contract/pkg/txpool"
)

// Common errors.
var (
	ErrAlreadyRunning = errors.New("miner already running")
	ErrNotRunning     = errors.New("miner not running")
	ErrInvalidPeriod  = errors.New("mining interval must be positive")
)

// DefaultGasLimit is the gas limit of mined blocks.
const DefaultGasLimit = 30000000

// defaultBaseFee is reported in headers. Fees are never charged.
var defaultBaseFee = big.NewInt(1e9)

// Deps are the components a miner builds blocks from.
type Deps struct {
	Chain     *blockchain.Chain
	Pool      txpool.Pool
	State     state.Manager
	Processor *execution.Processor
	Cheats    *cheats.Manager
	Traces    *tracing.Store
	Logger    *zap.Logger

	// Locker serializes interval mining with other state changes. Optional.
	Locker sync.Locker
}

// SimpleMiner implements the Miner interface.
type SimpleMiner struct {
	chain     *blockchain.Chain
	pool      txpool.Pool
	state     state.Manager
	processor *execution.Processor
	cheats    *cheats.Manager
	traces    *tracing.Store
	logger    *zap.Logger
	locker    sync.Locker

	interval time.Duration
	running  bool
	stopCh   chan struct{}

	gasLimit uint64

	mu sync.Mutex
}

var _ Miner = (*SimpleMiner)(nil)

// NewSimpleMiner creates a new simple miner.
func NewSimpleMiner(deps Deps) *SimpleMiner {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	traces := deps.Traces
	if traces == nil {
		traces = tracing.NewStore()
	}
	locker := deps.Locker
	if locker == nil {
		locker = &sync.Mutex{}
	}
	return &SimpleMiner{
		chain:     deps.Chain,
		pool:      deps.Pool,
		state:     deps.State,
		processor: deps.Processor,
		cheats:    deps.Cheats,
		traces:    traces,
		logger:    logger.Named("miner"),
		locker:    locker,
		interval:  time.Second,
		gasLimit:  DefaultGasLimit,
	}
}

// MineBlock mines a single block with pending transactions.
func (m *SimpleMiner) MineBlock(ctx context.Context) (*types.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.mineBlockWithTxs(ctx, m.pool.Pending())
}

// MineBlocks mines count blocks. Pending transactions go into the first one.
func (m *SimpleMiner) MineBlocks(ctx context.Context, count uint64) ([]*types.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	blocks := make([]*types.Block, 0, count)
	for i := uint64(0); i < count; i++ {
		var pending []txpool.PendingTx
		if i == 0 {
			pending = m.pool.Pending()
		}
		block, err := m.mineBlockWithTxs(ctx, pending)
		if err != nil {
			return blocks, err
		}
		blocks = append(blocks, block)
	}

	return blocks, nil
}

// MineBlockWithTransactions mines a block with specific transactions.
func (m *SimpleMiner) MineBlockWithTransactions(ctx context.Context, txs []txpool.PendingTx) (*types.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.mineBlockWithTxs(ctx, txs)
}

func (m *SimpleMiner) mineBlockWithTxs(ctx context.Context, txs []txpool.PendingTx) (*types.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parent := m.chain.CurrentBlock()
	if parent == nil {
		return nil, blockchain.ErrNoGenesis
	}

	timestamp, err := m.cheats.NextBlockTime(parent.Time())
	if err != nil {
		return nil, err
	}

	header := &types.Header{
		ParentHash: parent.Hash(),
		Number:     new(big.Int).Add(parent.Number(), big.NewInt(1)),
		Time:       timestamp,
		GasLimit:   m.gasLimit,
		Difficulty: big.NewInt(0),
		Coinbase:   m.chain.Coinbase(),
		BaseFee:    new(big.Int).Set(defaultBaseFee),
	}
	blockCtx := execution.BlockContext{
		Number:   header.Number.Uint64(),
		Time:     header.Time,
		Coinbase: header.Coinbase,
	}

	var (
		receipts []*types.Receipt
		included []*types.Transaction
		senders  = make([]common.Address, 0, len(txs))
		reverts  = make([][]byte, 0, len(txs))
		usedGas  uint64
		logIndex uint
	)

	for _, ptx := range txs {
		tx := ptx.Tx
		res, err := m.processor.Apply(ctx, execution.Message{
			From:  ptx.From,
			To:    tx.To(),
			Value: tx.Value(),
			Data:  tx.Data(),
			Gas:   tx.Gas(),
		}, blockCtx)
		_ = m.pool.Remove(tx.Hash())
		if err != nil {
			txsDropped.Inc()
			m.logger.Warn("dropping transaction",
				zap.Stringer("hash", tx.Hash()),
				zap.Stringer("from", ptx.From),
				zap.Error(err),
			)
			continue
		}

		usedGas += res.GasUsed
		receipt := &types.Receipt{
			Type:              tx.Type(),
			Status:            types.ReceiptStatusSuccessful,
			CumulativeGasUsed: usedGas,
			TxHash:            tx.Hash(),
			GasUsed:           res.GasUsed,
			EffectiveGasPrice: new(big.Int),
			Logs:              res.Logs,
		}
		if receipt.Logs == nil {
			receipt.Logs = []*types.Log{}
		}
		if res.Failed() {
			receipt.Status = types.ReceiptStatusFailed
			txsReverted.Inc()
		} else {
			txsSucceeded.Inc()
		}
		if tx.To() == nil && !res.Failed() {
			receipt.ContractAddress = res.ContractAddress
		}
		for _, log := range receipt.Logs {
			log.Index = logIndex
			logIndex++
		}
		receipt.Bloom = types.CreateBloom(types.Receipts{receipt})

		receipts = append(receipts, receipt)
		included = append(included, tx)
		senders = append(senders, ptx.From)
		reverts = append(reverts, res.RevertData())
		m.traces.Put(tx.Hash(), res.Trace)
	}

	header.GasUsed = usedGas
	header.Root = m.state.Root()

	block := types.NewBlock(header, included, nil, receipts, trie.NewStackTrie(nil))
	if err := m.chain.AddBlock(block, receipts, senders, reverts); err != nil {
		return nil, err
	}

	blocksMined.Inc()
	chainHeight.Set(float64(block.NumberU64()))
	m.logger.Debug("mined block",
		zap.Uint64("number", block.NumberU64()),
		zap.Uint64("time", block.Time()),
		zap.Int("txs", len(included)),
	)
	return block, nil
}

// SetInterval sets the interval for interval mining.
func (m *SimpleMiner) SetInterval(d time.Duration) error {
	if d <= 0 {
		return ErrInvalidPeriod
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interval = d
	return nil
}

// Interval returns the current interval.
func (m *SimpleMiner) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

// Start starts interval mining.
func (m *SimpleMiner) Start() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.running = true
	stopCh := make(chan struct{})
	m.stopCh = stopCh
	interval := m.interval
	m.mu.Unlock()

	go m.runIntervalMining(interval, stopCh)
	return nil
}

// Stop stops interval mining. A block being mined is completed.
func (m *SimpleMiner) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return ErrNotRunning
	}
	close(m.stopCh)
	m.running = false
	return nil
}

// Running reports whether interval mining is active.
func (m *SimpleMiner) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *SimpleMiner) runIntervalMining(interval time.Duration, stopCh chan struct{}) {
	ticker := m.cheats.Clock().NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.Chan():
			m.locker.Lock()
			_, err := m.MineBlock(context.Background())
			m.locker.Unlock()
			if err != nil {
				m.logger.Warn("interval mining failed", zap.Error(err))
			}
		}
	}
}

// SetGasLimit sets the gas limit for new blocks.
func (m *SimpleMiner) SetGasLimit(gasLimit uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gasLimit = gasLimit
}
