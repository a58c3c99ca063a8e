package execution

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"go.uber.org/zap"

	"github.com/fbslo/frooties-contract/pkg/frooties"
	"github.com/fbslo/frooties-contract/pkg/state"
	"github.com/fbslo/frooties-contract/pkg/tracing"
)

// Execution errors.
var (
	ErrInsufficientFunds = errors.New("insufficient funds for transfer")
	ErrUnsupportedCode   = errors.New("unsupported contract code")
	ErrMaxCallDepth      = errors.New("max call depth exceeded")
)

// Message is a call or contract creation.
type Message struct {
	From  common.Address
	To    *common.Address // nil for contract creation
	Nonce uint64
	Value *big.Int
	Data  []byte
	Gas   uint64
}

// BlockContext is the block a message executes in.
type BlockContext struct {
	Number   uint64
	Time     uint64
	Coinbase common.Address
}

// Result is the outcome of applying a message.
type Result struct {
	ReturnData      []byte
	Logs            []*types.Log
	Trace           *tracing.CallFrame
	ContractAddress common.Address
	GasUsed         uint64
	Err             error // execution failure, state rolled back
}

// Failed reports whether execution reverted.
func (r *Result) Failed() bool {
	return r.Err != nil
}

// RevertData returns the ABI encoded revert payload, if any.
func (r *Result) RevertData() []byte {
	var rerr *frooties.RevertError
	if errors.As(r.Err, &rerr) {
		return rerr.Data()
	}
	return nil
}

// Processor executes messages against the state.
type Processor struct {
	state    state.Manager
	registry *Registry
	config   frooties.Config
	verifier frooties.Verifier
	logger   *zap.Logger

	// pending is the contract created by the message being executed.
	pending *frooties.Contract
}

// NewProcessor creates a processor. cfg parameterizes Frooties deployments.
func NewProcessor(sm state.Manager, registry *Registry, cfg frooties.Config, logger *zap.Logger) *Processor {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		state:    sm,
		registry: registry,
		config:   cfg,
		verifier: frooties.ECDSAVerifier{},
		logger:   logger,
	}
}

// Registry returns the contract registry.
func (p *Processor) Registry() *Registry {
	return p.registry
}

// Apply executes msg and commits its effects. The sender nonce is bumped
// even when execution reverts. An error is returned only for messages that
// cannot be included at all.
func (p *Processor) Apply(ctx context.Context, msg Message, block BlockContext) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.checkFunds(msg); err != nil {
		return nil, err
	}

	nonce := p.state.GetNonce(msg.From)
	if err := p.state.SetNonce(msg.From, nonce+1); err != nil {
		return nil, fmt.Errorf("failed to bump nonce: %w", err)
	}
	msg.Nonce = nonce

	snap := p.state.Snapshot()
	result := p.execute(msg, block)
	if result.Err != nil {
		p.state.RevertToSnapshot(snap)
		p.pending = nil
		result.Logs = nil
		p.logger.Debug("message reverted",
			zap.Stringer("from", msg.From),
			zap.Error(result.Err),
		)
	} else {
		p.state.DiscardSnapshot(snap)
		if msg.To == nil {
			p.register(result.ContractAddress)
		}
	}
	return result, nil
}

// Call executes msg without committing any effects.
func (p *Processor) Call(ctx context.Context, msg Message, block BlockContext) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.checkFunds(msg); err != nil {
		return nil, err
	}
	if msg.To == nil {
		msg.Nonce = p.state.GetNonce(msg.From)
	}

	snap := p.state.Snapshot()
	defer p.state.RevertToSnapshot(snap)

	result := p.execute(msg, block)
	if msg.To == nil {
		// Deployments made by a call are never visible.
		p.pending = nil
	}
	return result, nil
}

func (p *Processor) checkFunds(msg Message) error {
	if msg.Value == nil || msg.Value.Sign() == 0 {
		return nil
	}
	if have := p.state.GetBalance(msg.From); have.Cmp(msg.Value) < 0 {
		return fmt.Errorf("%w: address %s have %s want %s", ErrInsufficientFunds, msg.From.Hex(), have, msg.Value)
	}
	return nil
}

func (p *Processor) execute(msg Message, block BlockContext) *Result {
	value := msg.Value
	if value == nil {
		value = new(big.Int)
	}

	var logs []*types.Log
	tracer := tracing.NewCallTracer(&tracing.CallTracerConfig{WithLog: true})
	root := &ledger{
		p:       p,
		address: msg.From,
		block:   block,
		tracer:  tracer,
		logs:    &logs,
	}

	result := &Result{GasUsed: params.TxGas}
	var ret []byte
	var err error
	if msg.To == nil {
		result.GasUsed = params.TxGasContractCreation
		result.ContractAddress = crypto.CreateAddress(msg.From, msg.Nonce)
		tracer.Start(vm.CREATE, msg.From, result.ContractAddress, msg.Data, msg.Gas, value)
		err = p.create(root, result.ContractAddress, value, msg.Data)
		if err == nil {
			ret = frooties.Code
		}
	} else {
		tracer.Start(vm.CALL, msg.From, *msg.To, msg.Data, msg.Gas, value)
		ret, err = p.call(root, msg.From, *msg.To, value, msg.Data)
	}
	tracer.End(ret, result.GasUsed, err)

	result.ReturnData = ret
	result.Err = err
	result.Logs = logs
	result.Trace, _ = tracer.GetResult()
	return result
}

// create installs a Frooties contract at addr and runs its constructor.
func (p *Processor) create(root *ledger, addr common.Address, value *big.Int, data []byte) error {
	if len(p.state.GetCode(addr)) > 0 {
		return fmt.Errorf("contract address collision at %s", addr.Hex())
	}
	whitelistAdmin, err := frooties.ParseCreationCode(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedCode, err)
	}
	if value.Sign() != 0 {
		return &frooties.RevertError{Kind: frooties.ErrNonPayable}
	}

	contract, err := frooties.New(addr, p.config, p.verifier)
	if err != nil {
		return err
	}
	if err := p.state.SetCode(addr, frooties.Code); err != nil {
		return err
	}
	if err := p.state.SetNonce(addr, 1); err != nil {
		return err
	}

	l := root.child(addr)
	contract.Initialize(l, root.address, whitelistAdmin)
	if l.err != nil {
		return l.err
	}
	p.pending = contract
	return nil
}

// register makes the contract created by the last committed message callable.
func (p *Processor) register(addr common.Address) {
	if p.pending == nil || p.pending.Address() != addr {
		return
	}
	p.registry.Register(addr, p.pending)
	p.pending = nil
	deployCounter.Inc()
	p.logger.Debug("contract deployed", zap.Stringer("address", addr))
}

// call moves value from caller to `to` and runs the contract at `to`, if any.
func (p *Processor) call(parent *ledger, caller, to common.Address, value *big.Int, data []byte) ([]byte, error) {
	if parent.depth >= int(params.CallCreateDepth) {
		return nil, ErrMaxCallDepth
	}
	if err := p.state.Transfer(caller, to, value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
	}

	contract, ok := p.registry.Get(to)
	if !ok || len(p.state.GetCode(to)) == 0 {
		return nil, nil
	}

	l := parent.child(to)
	ret, err := contract.Run(l, frooties.Msg{Caller: caller, Value: value}, data)
	if err == nil && l.err != nil {
		err = l.err
	}
	p.record(data, err)
	return ret, err
}

func (p *Processor) record(data []byte, err error) {
	method := frooties.MethodName(data)
	if method == "" {
		method = "unknown"
	}
	if err == nil {
		callCounter.WithLabelValues(method, "ok").Inc()
		return
	}
	callCounter.WithLabelValues(method, "reverted").Inc()

	reason, ok := frooties.Reason(err)
	if !ok || reason == "" {
		reason = "none"
	}
	revertCounter.WithLabelValues(reason).Inc()
	p.logger.Debug("native call reverted",
		zap.String("method", method),
		zap.String("reason", reason),
	)
}
