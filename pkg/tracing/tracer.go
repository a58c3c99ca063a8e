// Package tracing records call frames of native contract execution.
package tracing

import (
	"encoding/json"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/vm"
)

// ErrTraceNotFound is returned when no trace was recorded for a transaction.
var ErrTraceNotFound = errors.New("trace not found")

// CallLog represents an event log emitted during execution.
type CallLog struct {
	Address  common.Address `json:"address"`
	Topics   []common.Hash  `json:"topics"`
	Data     hexutil.Bytes  `json:"data"`
	Position uint           `json:"position"`
}

// CallFrame represents a single call frame in the execution trace.
type CallFrame struct {
	Type         string          `json:"type"`
	From         common.Address  `json:"from"`
	To           *common.Address `json:"to,omitempty"`
	Value        *hexutil.Big    `json:"value,omitempty"`
	Gas          hexutil.Uint64  `json:"gas"`
	GasUsed      hexutil.Uint64  `json:"gasUsed"`
	Input        hexutil.Bytes   `json:"input,omitempty"`
	Output       hexutil.Bytes   `json:"output,omitempty"`
	Error        string          `json:"error,omitempty"`
	RevertReason string          `json:"revertReason,omitempty"`
	Calls        []CallFrame     `json:"calls,omitempty"`
	Logs         []CallLog       `json:"logs,omitempty"`
}

// revertData is implemented by errors carrying ABI encoded revert data.
type revertData interface {
	Data() []byte
}

type internalFrame struct {
	typ     vm.OpCode
	from    common.Address
	to      *common.Address
	value   *big.Int
	gas     uint64
	gasUsed uint64
	input   []byte
	output  []byte
	err     error
	calls   []internalFrame
	logs    []CallLog
}

func (f *internalFrame) toCallFrame() CallFrame {
	cf := CallFrame{
		Type:    f.typ.String(),
		From:    f.from,
		To:      f.to,
		Gas:     hexutil.Uint64(f.gas),
		GasUsed: hexutil.Uint64(f.gasUsed),
	}

	if f.value != nil && f.value.Sign() > 0 {
		cf.Value = (*hexutil.Big)(new(big.Int).Set(f.value))
	}

	if len(f.input) > 0 {
		cf.Input = f.input
	}

	if len(f.output) > 0 {
		cf.Output = f.output
	}

	if f.err != nil {
		cf.Error = f.err.Error()
		var rd revertData
		if errors.As(f.err, &rd) {
			if data := rd.Data(); len(data) > 0 {
				cf.Output = data
				if reason, err := abi.UnpackRevert(data); err == nil {
					cf.RevertReason = reason
				}
			}
		}
	}

	if len(f.calls) > 0 {
		cf.Calls = make([]CallFrame, len(f.calls))
		for i, c := range f.calls {
			cf.Calls[i] = c.toCallFrame()
		}
	}

	if len(f.logs) > 0 {
		cf.Logs = f.logs
	}

	return cf
}

// CallTracerConfig configures the call tracer.
type CallTracerConfig struct {
	OnlyTopCall bool `json:"onlyTopCall"`
	WithLog     bool `json:"withLog"`
}

// Filter returns a copy of the frame reduced to what cfg asks for.
func (f CallFrame) Filter(cfg CallTracerConfig) CallFrame {
	out := f
	if !cfg.WithLog {
		out.Logs = nil
	}
	if cfg.OnlyTopCall {
		out.Calls = nil
		return out
	}
	if len(f.Calls) > 0 {
		out.Calls = make([]CallFrame, len(f.Calls))
		for i, call := range f.Calls {
			out.Calls[i] = call.Filter(cfg)
		}
	}
	return out
}

// CallTracer builds a call tree from enter and exit events.
type CallTracer struct {
	callstack []internalFrame
	config    CallTracerConfig
}

// NewCallTracer creates a new call tracer.
func NewCallTracer(cfg *CallTracerConfig) *CallTracer {
	config := CallTracerConfig{}
	if cfg != nil {
		config = *cfg
	}
	return &CallTracer{
		callstack: make([]internalFrame, 1),
		config:    config,
	}
}

// Start opens the top level frame.
func (t *CallTracer) Start(typ vm.OpCode, from, to common.Address, input []byte, gas uint64, value *big.Int) {
	toCopy := to
	t.callstack = t.callstack[:1]
	t.callstack[0] = internalFrame{
		typ:   typ,
		from:  from,
		to:    &toCopy,
		input: common.CopyBytes(input),
		gas:   gas,
		value: value,
	}
}

// End closes the top level frame.
func (t *CallTracer) End(output []byte, gasUsed uint64, err error) {
	t.callstack[0].output = common.CopyBytes(output)
	t.callstack[0].gasUsed = gasUsed
	t.callstack[0].err = err
}

// Enter opens a nested frame.
func (t *CallTracer) Enter(typ vm.OpCode, from, to common.Address, input []byte, gas uint64, value *big.Int) {
	if t.config.OnlyTopCall {
		return
	}

	toCopy := to
	t.callstack = append(t.callstack, internalFrame{
		typ:   typ,
		from:  from,
		to:    &toCopy,
		input: common.CopyBytes(input),
		gas:   gas,
		value: value,
	})
}

// Exit closes the innermost nested frame.
func (t *CallTracer) Exit(output []byte, gasUsed uint64, err error) {
	if t.config.OnlyTopCall {
		return
	}

	size := len(t.callstack)
	if size <= 1 {
		return
	}

	call := t.callstack[size-1]
	t.callstack = t.callstack[:size-1]
	size--

	call.gasUsed = gasUsed
	call.output = common.CopyBytes(output)
	call.err = err

	t.callstack[size-1].calls = append(t.callstack[size-1].calls, call)
}

// Log records an event in the innermost open frame.
func (t *CallTracer) Log(address common.Address, topics []common.Hash, data []byte) {
	if !t.config.WithLog {
		return
	}

	top := &t.callstack[len(t.callstack)-1]
	top.logs = append(top.logs, CallLog{
		Address:  address,
		Topics:   append([]common.Hash(nil), topics...),
		Data:     common.CopyBytes(data),
		Position: uint(len(top.calls)),
	})
}

// GetResult returns the tracing result.
func (t *CallTracer) GetResult() (*CallFrame, error) {
	if len(t.callstack) == 0 {
		return nil, nil
	}

	result := t.callstack[0].toCallFrame()
	return &result, nil
}

// GetResultJSON returns the tracing result as JSON.
func (t *CallTracer) GetResultJSON() (json.RawMessage, error) {
	result, err := t.GetResult()
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

// Reset resets the tracer for reuse.
func (t *CallTracer) Reset() {
	t.callstack = make([]internalFrame, 1)
}

// Store keeps the traces of mined transactions.
type Store struct {
	mu     sync.RWMutex
	traces map[common.Hash]*CallFrame
}

// NewStore creates an empty trace store.
func NewStore() *Store {
	return &Store{traces: make(map[common.Hash]*CallFrame)}
}

// Put records the trace of a transaction.
func (s *Store) Put(txHash common.Hash, frame *CallFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces[txHash] = frame
}

// Get returns the trace of a transaction.
func (s *Store) Get(txHash common.Hash) (*CallFrame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	frame, ok := s.traces[txHash]
	if !ok {
		return nil, ErrTraceNotFound
	}
	return frame, nil
}

// Delete drops the traces of the given transactions.
func (s *Store) Delete(hashes ...common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range hashes {
		delete(s.traces, h)
	}
}
