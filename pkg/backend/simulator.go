package backend

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/fbslo/frooties-contract/pkg/blockchain"
	"github.com/fbslo/frooties-contract/pkg/cheats"
	"github.com/fbslo/frooties-contract/pkg/config"
	"github.com/fbslo/frooties-contract/pkg/execution"
	"github.com/fbslo/frooties-contract/pkg/frooties"
	"github.com/fbslo/frooties-contract/pkg/genesis"
	"github.com/fbslo/frooties-contract/pkg/miner"
	"github.com/fbslo/frooties-contract/pkg/snapshot"
	"github.com/fbslo/frooties-contract/pkg/state"
	"github.com/fbslo/frooties-contract/pkg/tracing"
	"github.com/fbslo/frooties-contract/pkg/txpool"
)

// Simulator errors.
var (
	ErrUnknownAccount = errors.New("unknown account")
	ErrTxDropped      = errors.New("transaction could not be included")
	ErrNoDeployment   = errors.New("contract deployment failed")
)

// defaultGasPrice is set on transactions built from TxArgs. Fees are not charged.
var defaultGasPrice = big.NewInt(params.GWei)

// Options configure a Simulator.
type Options struct {
	Config *config.Config
	Clock  clockwork.Clock // nil means the wall clock
	Logger *zap.Logger
}

// Simulator is the in-memory ledger every Frooties deployment runs on.
// Mutating operations are serialized; each transaction fully commits or fully
// reverts.
type Simulator struct {
	cfg     *config.Config
	chainID *big.Int
	signer  types.Signer

	state     *state.InMemoryManager
	chain     *blockchain.Chain
	pool      *txpool.InMemoryPool
	cheats    *cheats.Manager
	processor *execution.Processor
	miner     *miner.SimpleMiner
	snapshots *snapshot.Manager
	traces    *tracing.Store

	accounts []*genesis.Account
	keys     map[common.Address]*ecdsa.PrivateKey

	logger *zap.Logger

	mu sync.Mutex
}

var _ Backend = (*Simulator)(nil)

// New creates a simulator with a funded genesis block.
func New(opts Options) (*Simulator, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	contractCfg := frooties.DefaultConfig()
	if cfg.Frooties != nil {
		var err error
		if contractCfg, err = cfg.Frooties.ContractConfig(); err != nil {
			return nil, err
		}
	}

	chainID := new(big.Int).SetUint64(cfg.ChainID)
	sm := state.NewInMemoryManager()
	chain := blockchain.NewChain(chainID)
	pool := txpool.NewInMemoryPool(sm, chainID)
	cm := cheats.NewManager(sm, opts.Clock)
	traces := tracing.NewStore()
	processor := execution.NewProcessor(sm, execution.NewRegistry(), contractCfg, logger.Named("execution"))

	gen, accs, err := genesis.CreateGenesis(cfg)
	if err != nil {
		return nil, err
	}
	if gen.Timestamp == 0 {
		gen.Timestamp = cm.Now()
	} else {
		cm.SetTime(gen.Timestamp)
	}
	if err := genesis.Apply(gen, sm); err != nil {
		return nil, err
	}
	coinbase := blockchain.DefaultCoinbase
	if len(accs) > 0 {
		coinbase = accs[0].Address
	}
	chain.SetCoinbase(coinbase)
	if err := chain.SetGenesis(genesis.Block(gen, sm.Root(), coinbase)); err != nil {
		return nil, err
	}

	s := &Simulator{
		cfg:       cfg,
		chainID:   chainID,
		signer:    types.LatestSignerForChainID(chainID),
		state:     sm,
		chain:     chain,
		pool:      pool,
		cheats:    cm,
		processor: processor,
		snapshots: snapshot.NewManager(sm, chain, pool, cm, traces),
		traces:    traces,
		accounts:  accs,
		keys:      make(map[common.Address]*ecdsa.PrivateKey, len(accs)),
		logger:    logger,
	}
	for _, acc := range accs {
		s.keys[acc.Address] = acc.PrivateKey
	}

	s.miner = miner.NewSimpleMiner(miner.Deps{
		Chain:     chain,
		Pool:      pool,
		State:     sm,
		Processor: processor,
		Cheats:    cm,
		Traces:    traces,
		Logger:    logger,
		Locker:    &s.mu,
	})
	s.miner.SetGasLimit(cfg.GasLimit)

	cm.SetAutomine(cfg.IsAutomine())
	cm.SetAutoImpersonate(cfg.AutoImpersonate)
	if cfg.IsIntervalMining() {
		if err := s.miner.SetInterval(cfg.BlockTime); err != nil {
			return nil, err
		}
	}

	logger.Info("simulator initialized",
		zap.Uint64("chainId", cfg.ChainID),
		zap.Int("accounts", len(accs)),
		zap.String("miningMode", cfg.MiningMode),
		zap.Uint64("genesisTime", gen.Timestamp),
	)
	return s, nil
}

// Start starts interval mining when configured.
func (s *Simulator) Start() error {
	if !s.cfg.IsIntervalMining() {
		return nil
	}
	return s.miner.Start()
}

// Stop stops interval mining.
func (s *Simulator) Stop() error {
	if !s.miner.Running() {
		return nil
	}
	return s.miner.Stop()
}

// Config returns the configuration the simulator was created with.
func (s *Simulator) Config() *config.Config {
	return s.cfg
}

// ChainID returns the chain ID.
func (s *Simulator) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

// CurrentBlock returns the latest block.
func (s *Simulator) CurrentBlock() *types.Block {
	return s.chain.CurrentBlock()
}

// BlockByNumber retrieves a block by its number.
func (s *Simulator) BlockByNumber(number uint64) (*types.Block, error) {
	return s.chain.BlockByNumber(number)
}

// BlockByHash retrieves a block by its hash.
func (s *Simulator) BlockByHash(hash common.Hash) (*types.Block, error) {
	return s.chain.BlockByHash(hash)
}

// BlockNumber returns the latest block number.
func (s *Simulator) BlockNumber() uint64 {
	return s.chain.BlockNumber()
}

// Accounts returns the addresses of the genesis accounts.
func (s *Simulator) Accounts() []common.Address {
	addrs := make([]common.Address, len(s.accounts))
	for i, acc := range s.accounts {
		addrs[i] = acc.Address
	}
	return addrs
}

// PrivateKey returns the key of a genesis account.
func (s *Simulator) PrivateKey(addr common.Address) (*ecdsa.PrivateKey, bool) {
	key, ok := s.keys[addr]
	return key, ok
}

// Sign signs data as a personal message (eth_sign) with a genesis account key.
func (s *Simulator) Sign(addr common.Address, data []byte) ([]byte, error) {
	key, ok := s.keys[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, addr.Hex())
	}
	sig, err := crypto.Sign(accounts.TextHash(data), key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// SendTransaction submits a transaction from a genesis or impersonated
// account. With automine the transaction is mined before returning; a
// reverted transaction is mined and reported as a *TransactionError.
func (s *Simulator) SendTransaction(ctx context.Context, args TxArgs) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.buildTx(args)
	if err != nil {
		return common.Hash{}, err
	}
	if err := s.pool.AddWithSender(tx, args.From); err != nil {
		return common.Hash{}, err
	}
	return s.afterSubmit(ctx, txpool.PendingTx{Tx: tx, From: args.From})
}

// SendRawTransaction submits a signed transaction.
func (s *Simulator) SendRawTransaction(ctx context.Context, data []byte) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(data); err != nil {
		return common.Hash{}, fmt.Errorf("failed to decode transaction: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	from, err := s.pool.Add(tx)
	if err != nil {
		return common.Hash{}, err
	}
	return s.afterSubmit(ctx, txpool.PendingTx{Tx: tx, From: from})
}

func (s *Simulator) buildTx(args TxArgs) (*types.Transaction, error) {
	key, local := s.keys[args.From]
	if !local && !s.cheats.IsImpersonating(args.From) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, args.From.Hex())
	}

	nonce := s.pool.PendingNonce(args.From)
	if args.Nonce != nil {
		nonce = *args.Nonce
	}
	gas := params.TxGas
	if args.To == nil {
		gas = params.TxGasContractCreation
	}
	if args.Gas != nil {
		gas = *args.Gas
	}
	gasPrice := defaultGasPrice
	if args.GasPrice != nil {
		gasPrice = args.GasPrice
	}
	value := args.Value
	if value == nil {
		value = new(big.Int)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       args.To,
		Value:    value,
		Data:     args.Data,
	})
	if local {
		return types.SignTx(tx, s.signer, key)
	}
	return tx.WithSignature(s.signer, impersonatedSignature(args.From))
}

// impersonatedSignature is a placeholder signature unique to the sender, so
// equal transactions of different impersonated senders hash differently.
func impersonatedSignature(from common.Address) []byte {
	sig := make([]byte, crypto.SignatureLength)
	copy(sig[common.HashLength-common.AddressLength:common.HashLength], from.Bytes())
	sig[2*common.HashLength-1] = 1
	return sig
}

func (s *Simulator) afterSubmit(ctx context.Context, ptx txpool.PendingTx) (common.Hash, error) {
	hash := ptx.Tx.Hash()
	if !s.cheats.IsAutomine() {
		return hash, nil
	}

	if _, err := s.miner.MineBlockWithTransactions(ctx, []txpool.PendingTx{ptx}); err != nil {
		return hash, err
	}
	receipt, err := s.chain.Receipt(hash)
	if err != nil {
		return hash, ErrTxDropped
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return hash, &TransactionError{Hash: hash, Err: s.revertError(hash)}
	}
	return hash, nil
}

// revertError rebuilds the revert of a mined transaction.
func (s *Simulator) revertError(hash common.Hash) error {
	data := s.chain.RevertData(hash)
	if len(data) == 0 {
		return &frooties.RevertError{Kind: frooties.ErrInvalidArgument}
	}
	reason, err := frooties.DecodeRevert(data)
	if err != nil {
		return &frooties.RevertError{Kind: frooties.ErrInvalidArgument}
	}
	return &frooties.RevertError{Kind: frooties.KindOf(reason), Reason: reason}
}

// DeployFrooties deploys a Frooties contract from `from` and mines it
// immediately, whatever the mining mode. A zero whitelistAdmin makes the
// deployer the whitelist admin.
func (s *Simulator) DeployFrooties(ctx context.Context, from, whitelistAdmin common.Address) (common.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.buildTx(TxArgs{From: from, Data: frooties.CreationCode(whitelistAdmin)})
	if err != nil {
		return common.Address{}, err
	}
	if err := s.pool.AddWithSender(tx, from); err != nil {
		return common.Address{}, err
	}
	if _, err := s.miner.MineBlockWithTransactions(ctx, []txpool.PendingTx{{Tx: tx, From: from}}); err != nil {
		return common.Address{}, err
	}

	receipt, err := s.chain.Receipt(tx.Hash())
	if err != nil {
		return common.Address{}, ErrTxDropped
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return common.Address{}, ErrNoDeployment
	}
	s.logger.Info("frooties deployed",
		zap.Stringer("address", receipt.ContractAddress),
		zap.Stringer("deployer", from),
	)
	return receipt.ContractAddress, nil
}

// Call executes a read-only call in the context of the pending block. A
// revert is returned as a *frooties.RevertError.
func (s *Simulator) Call(ctx context.Context, msg CallMsg) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.call(ctx, msg)
	if err != nil {
		return nil, err
	}
	if res.Failed() {
		return nil, res.Err
	}
	return res.ReturnData, nil
}

// EstimateGas returns the gas the call reports, or the revert error.
func (s *Simulator) EstimateGas(ctx context.Context, msg CallMsg) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.call(ctx, msg)
	if err != nil {
		return 0, err
	}
	if res.Failed() {
		return 0, res.Err
	}
	return res.GasUsed, nil
}

func (s *Simulator) call(ctx context.Context, msg CallMsg) (*execution.Result, error) {
	return s.processor.Call(ctx, execution.Message{
		From:  msg.From,
		To:    msg.To,
		Value: msg.Value,
		Data:  msg.Data,
		Gas:   msg.Gas,
	}, s.pendingContext())
}

// pendingContext is the block the next mined block would be, without
// consuming a pinned timestamp.
func (s *Simulator) pendingContext() execution.BlockContext {
	parent := s.chain.CurrentBlock()
	ts := s.cheats.NextBlockTimestamp()
	if ts == 0 {
		ts = s.cheats.Now()
		if ts <= parent.Time() {
			ts = parent.Time() + 1
		}
	}
	return execution.BlockContext{
		Number:   parent.NumberU64() + 1,
		Time:     ts,
		Coinbase: s.chain.Coinbase(),
	}
}

// Receipt returns the receipt of a mined transaction.
func (s *Simulator) Receipt(hash common.Hash) (*types.Receipt, error) {
	return s.chain.Receipt(hash)
}

// Transaction returns a mined transaction and its location.
func (s *Simulator) Transaction(hash common.Hash) (*types.Transaction, blockchain.TxLookup, error) {
	return s.chain.Transaction(hash)
}

// PendingTransaction returns a transaction waiting in the pool.
func (s *Simulator) PendingTransaction(hash common.Hash) *types.Transaction {
	return s.pool.Get(hash)
}

// RevertData returns the revert payload of a failed transaction.
func (s *Simulator) RevertData(hash common.Hash) []byte {
	return s.chain.RevertData(hash)
}

// Trace returns the call frames recorded for a mined transaction.
func (s *Simulator) Trace(hash common.Hash) (*tracing.CallFrame, error) {
	return s.traces.Get(hash)
}

// Logs returns the logs of mined transactions matching filter.
func (s *Simulator) Logs(filter FilterQuery) ([]*types.Log, error) {
	var blocks []*types.Block
	if filter.BlockHash != nil {
		block, err := s.chain.BlockByHash(*filter.BlockHash)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	} else {
		head := s.chain.BlockNumber()
		from, to := uint64(0), head
		if filter.FromBlock != nil {
			from = filter.FromBlock.Uint64()
		}
		if filter.ToBlock != nil && filter.ToBlock.Uint64() < head {
			to = filter.ToBlock.Uint64()
		}
		for n := from; n <= to; n++ {
			block, err := s.chain.BlockByNumber(n)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, block)
		}
	}

	logs := []*types.Log{}
	for _, block := range blocks {
		for _, tx := range block.Transactions() {
			receipt, err := s.chain.Receipt(tx.Hash())
			if err != nil {
				continue
			}
			for _, log := range receipt.Logs {
				if matchLog(log, filter.Addresses, filter.Topics) {
					logs = append(logs, log)
				}
			}
		}
	}
	return logs, nil
}

func matchLog(log *types.Log, addresses []common.Address, topics [][]common.Hash) bool {
	if len(addresses) > 0 {
		found := false
		for _, addr := range addresses {
			if log.Address == addr {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(topics) > len(log.Topics) {
		return false
	}
	for i, alternatives := range topics {
		if len(alternatives) == 0 {
			continue
		}
		found := false
		for _, topic := range alternatives {
			if log.Topics[i] == topic {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Balance returns the balance of an account.
func (s *Simulator) Balance(addr common.Address) *big.Int {
	return s.state.GetBalance(addr)
}

// Nonce returns the nonce of an account.
func (s *Simulator) Nonce(addr common.Address) uint64 {
	return s.state.GetNonce(addr)
}

// Code returns the code of an account.
func (s *Simulator) Code(addr common.Address) []byte {
	return s.state.GetCode(addr)
}

// StorageAt returns a storage slot of an account.
func (s *Simulator) StorageAt(addr common.Address, slot common.Hash) common.Hash {
	return s.state.GetStorageAt(addr, slot)
}

// Mine mines blocks. Pending transactions go into the first one.
func (s *Simulator) Mine(ctx context.Context, blocks uint64) ([]*types.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.miner.MineBlocks(ctx, blocks)
}

// SetAutomine enables or disables mining a block per transaction.
func (s *Simulator) SetAutomine(enabled bool) {
	s.cheats.SetAutomine(enabled)
}

// IsAutomine returns true if auto-mining is enabled.
func (s *Simulator) IsAutomine() bool {
	return s.cheats.IsAutomine()
}

// SetIntervalMining mines a block every interval. Zero disables it.
func (s *Simulator) SetIntervalMining(interval time.Duration) error {
	if s.miner.Running() {
		if err := s.miner.Stop(); err != nil {
			return err
		}
	}
	if interval == 0 {
		return nil
	}
	if err := s.miner.SetInterval(interval); err != nil {
		return err
	}
	return s.miner.Start()
}

// SetBalance sets the balance of an account.
func (s *Simulator) SetBalance(addr common.Address, balance *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cheats.SetBalance(addr, balance)
}

// SetNonce sets the nonce of an account.
func (s *Simulator) SetNonce(addr common.Address, nonce uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cheats.SetNonce(addr, nonce)
}

// SetCode sets the code of an account. Native contracts keep their registry
// entry, so clearing their code turns them into plain accounts.
func (s *Simulator) SetCode(addr common.Address, code []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SetCode(addr, code)
}

// SetStorageAt sets a storage slot of an account.
func (s *Simulator) SetStorageAt(addr common.Address, slot, value common.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cheats.SetStorageAt(addr, slot, value)
}

// ImpersonateAccount lets transactions be sent from addr without its key.
func (s *Simulator) ImpersonateAccount(addr common.Address) {
	s.cheats.ImpersonateAccount(addr)
}

// StopImpersonatingAccount reverts ImpersonateAccount.
func (s *Simulator) StopImpersonatingAccount(addr common.Address) {
	s.cheats.StopImpersonatingAccount(addr)
}

// SetAutoImpersonate impersonates every account.
func (s *Simulator) SetAutoImpersonate(enabled bool) {
	s.cheats.SetAutoImpersonate(enabled)
}

// SetNextBlockTimestamp pins the timestamp of the next block. It must be
// later than the latest block.
func (s *Simulator) SetNextBlockTimestamp(timestamp uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if latest := s.chain.CurrentBlock().Time(); timestamp <= latest {
		return fmt.Errorf("%w: %d <= %d", cheats.ErrTimestampTooLow, timestamp, latest)
	}
	s.cheats.SetNextBlockTimestamp(timestamp)
	return nil
}

// IncreaseTime moves virtual time forward and returns the new timestamp.
func (s *Simulator) IncreaseTime(seconds uint64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cheats.IncreaseTime(seconds)
}

// DropTransaction removes a pending transaction.
func (s *Simulator) DropTransaction(hash common.Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.Remove(hash) == nil
}

// Snapshot captures state, chain, and virtual time.
func (s *Simulator) Snapshot() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshots.Snapshot()
}

// Revert restores a snapshot. Later snapshots are discarded.
func (s *Simulator) Revert(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok := s.snapshots.Revert(id)
	if ok {
		s.logger.Debug("reverted to snapshot",
			zap.Uint64("id", id),
			zap.Uint64("head", s.chain.BlockNumber()),
		)
	}
	return ok
}
