package execution

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"

	"github.com/fbslo/frooties-contract/pkg/frooties"
	"github.com/fbslo/frooties-contract/pkg/tracing"
)

// ledger gives a native contract access to its own account.
type ledger struct {
	p       *Processor
	address common.Address
	block   BlockContext
	tracer  *tracing.CallTracer
	logs    *[]*types.Log
	depth   int
	err     error
}

var _ frooties.Ledger = (*ledger)(nil)

func (l *ledger) Load(slot common.Hash) common.Hash {
	return l.p.state.GetStorageAt(l.address, slot)
}

func (l *ledger) Store(slot, value common.Hash) {
	if err := l.p.state.SetStorageAt(l.address, slot, value); err != nil && l.err == nil {
		l.err = err
	}
}

func (l *ledger) Balance() *big.Int {
	return l.p.state.GetBalance(l.address)
}

func (l *ledger) Timestamp() uint64 {
	return l.block.Time
}

func (l *ledger) Emit(topics []common.Hash, data []byte) {
	*l.logs = append(*l.logs, &types.Log{
		Address:     l.address,
		Topics:      append([]common.Hash(nil), topics...),
		Data:        common.CopyBytes(data),
		BlockNumber: l.block.Number,
	})
	l.tracer.Log(l.address, topics, data)
}

// Transfer sends value from the contract. A registered recipient runs with
// data as input.
func (l *ledger) Transfer(to common.Address, amount *big.Int, data []byte) error {
	if amount == nil {
		amount = new(big.Int)
	}
	l.tracer.Enter(vm.CALL, l.address, to, data, 0, amount)

	snap := l.p.state.Snapshot()
	ret, err := l.p.call(l, l.address, to, amount, data)
	if err != nil {
		l.p.state.RevertToSnapshot(snap)
		l.tracer.Exit(ret, params.CallValueTransferGas, err)
		return err
	}
	l.p.state.DiscardSnapshot(snap)
	l.tracer.Exit(ret, params.CallValueTransferGas, nil)
	return nil
}

// child returns a ledger for a nested call into addr.
func (l *ledger) child(addr common.Address) *ledger {
	return &ledger{
		p:       l.p,
		address: addr,
		block:   l.block,
		tracer:  l.tracer,
		logs:    l.logs,
		depth:   l.depth + 1,
	}
}
