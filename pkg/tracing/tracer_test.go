package tracing

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	from = common.HexToAddress("0x1111111111111111111111111111111111111111")
	to   = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type dataError struct{ data []byte }

func (e dataError) Error() string { return "execution reverted" }
func (e dataError) Data() []byte  { return e.data }

// Error(string) encoding of "Only admin".
var onlyAdminRevert = common.FromHex("0x08c379a0" +
	"0000000000000000000000000000000000000000000000000000000000000020" +
	"000000000000000000000000000000000000000000000000000000000000000a" +
	"4f6e6c792061646d696e00000000000000000000000000000000000000000000")

func TestNewCallTracer(t *testing.T) {
	tracer := NewCallTracer(nil)
	require.NotNil(t, tracer)
	assert.Len(t, tracer.callstack, 1)
}

func TestNewCallTracer_WithConfig(t *testing.T) {
	tracer := NewCallTracer(&CallTracerConfig{OnlyTopCall: true, WithLog: true})
	require.NotNil(t, tracer)
	assert.True(t, tracer.config.OnlyTopCall)
	assert.True(t, tracer.config.WithLog)
}

func TestCallTracer_StartEnd(t *testing.T) {
	tracer := NewCallTracer(nil)
	input := []byte{0x01, 0x02, 0x03}
	output := []byte{0xde, 0xad, 0xbe, 0xef}

	tracer.Start(vm.CALL, from, to, input, 100000, big.NewInt(1000))
	tracer.End(output, 21000, nil)

	result, err := tracer.GetResult()
	require.NoError(t, err)
	assert.Equal(t, "CALL", result.Type)
	assert.Equal(t, from, result.From)
	assert.Equal(t, to, *result.To)
	assert.Equal(t, int64(1000), result.Value.ToInt().Int64())
	assert.Equal(t, uint64(21000), uint64(result.GasUsed))
	assert.Equal(t, output, []byte(result.Output))
	assert.Empty(t, result.Error)
}

func TestCallTracer_Create(t *testing.T) {
	tracer := NewCallTracer(nil)
	tracer.Start(vm.CREATE, from, to, nil, 0, nil)

	result, err := tracer.GetResult()
	require.NoError(t, err)
	assert.Equal(t, "CREATE", result.Type)
	assert.Nil(t, result.Value)
}

func TestCallTracer_EnterExit(t *testing.T) {
	tracer := NewCallTracer(nil)
	target := common.HexToAddress("0x3333333333333333333333333333333333333333")

	tracer.Start(vm.CALL, from, to, nil, 0, nil)
	tracer.Enter(vm.CALL, to, target, []byte{0xaa}, 0, big.NewInt(50))
	tracer.Exit(nil, 0, nil)
	tracer.End(nil, 0, nil)

	result, err := tracer.GetResult()
	require.NoError(t, err)
	require.Len(t, result.Calls, 1)
	assert.Equal(t, to, result.Calls[0].From)
	assert.Equal(t, target, *result.Calls[0].To)
	assert.Equal(t, int64(50), result.Calls[0].Value.ToInt().Int64())
}

func TestCallTracer_OnlyTopCall(t *testing.T) {
	tracer := NewCallTracer(&CallTracerConfig{OnlyTopCall: true})

	tracer.Start(vm.CALL, from, to, nil, 0, nil)
	tracer.Enter(vm.CALL, to, from, nil, 0, nil)
	tracer.Exit(nil, 0, nil)

	result, err := tracer.GetResult()
	require.NoError(t, err)
	assert.Empty(t, result.Calls)
}

func TestCallTracer_ExitWithoutEnter(t *testing.T) {
	tracer := NewCallTracer(nil)
	tracer.Start(vm.CALL, from, to, nil, 0, nil)
	tracer.Exit(nil, 0, nil)

	assert.Len(t, tracer.callstack, 1)
}

func TestCallTracer_Log(t *testing.T) {
	topic := common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

	t.Run("disabled", func(t *testing.T) {
		tracer := NewCallTracer(nil)
		tracer.Start(vm.CALL, from, to, nil, 0, nil)
		tracer.Log(to, []common.Hash{topic}, nil)

		result, err := tracer.GetResult()
		require.NoError(t, err)
		assert.Empty(t, result.Logs)
	})

	t.Run("enabled", func(t *testing.T) {
		tracer := NewCallTracer(&CallTracerConfig{WithLog: true})
		tracer.Start(vm.CALL, from, to, nil, 0, nil)
		tracer.Log(to, []common.Hash{topic}, []byte{0x01})

		result, err := tracer.GetResult()
		require.NoError(t, err)
		require.Len(t, result.Logs, 1)
		assert.Equal(t, to, result.Logs[0].Address)
		assert.Equal(t, topic, result.Logs[0].Topics[0])
	})
}

func TestCallTracer_RevertReason(t *testing.T) {
	tracer := NewCallTracer(nil)
	tracer.Start(vm.CALL, from, to, nil, 0, nil)
	tracer.End(nil, 0, dataError{data: onlyAdminRevert})

	result, err := tracer.GetResult()
	require.NoError(t, err)
	assert.Equal(t, "execution reverted", result.Error)
	assert.Equal(t, "Only admin", result.RevertReason)
	assert.Equal(t, onlyAdminRevert, []byte(result.Output))
}

func TestCallTracer_PlainError(t *testing.T) {
	tracer := NewCallTracer(nil)
	tracer.Start(vm.CALL, from, to, nil, 0, nil)
	tracer.End(nil, 0, errors.New("boom"))

	result, err := tracer.GetResult()
	require.NoError(t, err)
	assert.Equal(t, "boom", result.Error)
	assert.Empty(t, result.RevertReason)
}

func TestCallTracer_GetResultJSON(t *testing.T) {
	tracer := NewCallTracer(nil)
	tracer.Start(vm.CALL, from, to, []byte{0x01}, 0, nil)
	tracer.End(nil, 21000, nil)

	raw, err := tracer.GetResultJSON()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "CALL", decoded["type"])
	assert.Equal(t, "0x5208", decoded["gasUsed"])
}

func TestCallTracer_Reset(t *testing.T) {
	tracer := NewCallTracer(nil)
	tracer.Start(vm.CALL, from, to, nil, 0, nil)
	tracer.Enter(vm.CALL, to, from, nil, 0, nil)

	tracer.Reset()
	assert.Len(t, tracer.callstack, 1)
}

func TestStore(t *testing.T) {
	store := NewStore()
	hash := common.HexToHash("0x01")

	_, err := store.Get(hash)
	assert.ErrorIs(t, err, ErrTraceNotFound)

	store.Put(hash, &CallFrame{Type: "CALL"})
	frame, err := store.Get(hash)
	require.NoError(t, err)
	assert.Equal(t, "CALL", frame.Type)

	store.Delete(hash)
	_, err = store.Get(hash)
	assert.ErrorIs(t, err, ErrTraceNotFound)
}

func TestCallFrame_Filter(t *testing.T) {
	frame := CallFrame{
		Type: "CALL",
		From: from,
		To:   &to,
		Logs: []CallLog{{Address: to}},
		Calls: []CallFrame{{
			Type: "CALL",
			From: to,
			Logs: []CallLog{{Address: from}},
		}},
	}

	full := frame.Filter(CallTracerConfig{WithLog: true})
	assert.Len(t, full.Logs, 1)
	require.Len(t, full.Calls, 1)
	assert.Len(t, full.Calls[0].Logs, 1)

	noLogs := frame.Filter(CallTracerConfig{})
	assert.Empty(t, noLogs.Logs)
	require.Len(t, noLogs.Calls, 1)
	assert.Empty(t, noLogs.Calls[0].Logs)

	top := frame.Filter(CallTracerConfig{OnlyTopCall: true, WithLog: true})
	assert.Empty(t, top.Calls)
	assert.Len(t, top.Logs, 1)

	// The original is untouched.
	assert.Len(t, frame.Calls[0].Logs, 1)
}
