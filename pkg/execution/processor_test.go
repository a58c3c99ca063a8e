package execution

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fbslo/frooties-contract/pkg/frooties"
	"github.com/fbslo/frooties-contract/pkg/state"
)

var (
	admin = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	alice = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	vb    = common.HexToAddress("0x220866B1A2219f40e72f5c628B65D54268cA3A9D")
)

func ether(n, div int64) *big.Int {
	return new(big.Int).Div(new(big.Int).Mul(big.NewInt(n), big.NewInt(params.Ether)), big.NewInt(div))
}

func publicBlock() BlockContext {
	return BlockContext{Number: 1, Time: frooties.DefaultSchedule.Public}
}

func setupProcessor(t *testing.T) (*Processor, *state.InMemoryManager) {
	t.Helper()
	sm := state.NewInMemoryManager()
	require.NoError(t, sm.SetBalance(admin, ether(100, 1)))
	require.NoError(t, sm.SetBalance(alice, ether(100, 1)))
	return NewProcessor(sm, nil, frooties.DefaultConfig(), zaptest.NewLogger(t)), sm
}

func deploy(t *testing.T, p *Processor) common.Address {
	t.Helper()
	res, err := p.Apply(context.Background(), Message{From: admin, Data: frooties.CreationCode(common.Address{})}, publicBlock())
	require.NoError(t, err)
	require.NoError(t, res.Err)
	return res.ContractAddress
}

func pack(t *testing.T, method string, args ...interface{}) []byte {
	t.Helper()
	data, err := frooties.Pack(method, args...)
	require.NoError(t, err)
	return data
}

func TestProcessor_Deploy(t *testing.T) {
	p, sm := setupProcessor(t)

	addr := deploy(t, p)

	assert.Equal(t, crypto.CreateAddress(admin, 0), addr)
	assert.Equal(t, uint64(1), sm.GetNonce(admin))
	assert.Equal(t, frooties.Code, sm.GetCode(addr))
	c, ok := p.Registry().Frooties(addr)
	require.True(t, ok)
	assert.Equal(t, admin, c.WhitelistAdmin(&ledger{p: p, address: addr}))
}

func TestProcessor_DeployUnsupportedCode(t *testing.T) {
	p, sm := setupProcessor(t)

	res, err := p.Apply(context.Background(), Message{From: admin, Data: []byte{0x60, 0x80}}, publicBlock())
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, ErrUnsupportedCode)
	assert.Empty(t, sm.GetCode(res.ContractAddress))
	assert.Equal(t, uint64(1), sm.GetNonce(admin))
	assert.Empty(t, p.Registry().Addresses())
}

func TestProcessor_Mint(t *testing.T) {
	p, sm := setupProcessor(t)
	addr := deploy(t, p)

	res, err := p.Apply(context.Background(), Message{
		From:  alice,
		To:    &addr,
		Value: ether(3, 20),
		Data:  pack(t, "mint", big.NewInt(3)),
	}, publicBlock())
	require.NoError(t, err)
	require.NoError(t, res.Err)

	assert.Equal(t, ether(3, 20), sm.GetBalance(addr))
	require.Len(t, res.Logs, 3)
	assert.Equal(t, addr, res.Logs[0].Address)
	assert.Equal(t, frooties.TransferEventID(), res.Logs[0].Topics[0])
	require.NotNil(t, res.Trace)
	assert.Len(t, res.Trace.Logs, 3)
}

func TestProcessor_RevertRollsBack(t *testing.T) {
	p, sm := setupProcessor(t)
	addr := deploy(t, p)
	before := sm.GetBalance(alice)

	res, err := p.Apply(context.Background(), Message{
		From:  alice,
		To:    &addr,
		Value: ether(1, 20),
		Data:  pack(t, "mint", big.NewInt(2)),
	}, publicBlock())
	require.NoError(t, err)

	require.True(t, res.Failed())
	reason, ok := frooties.Reason(res.Err)
	require.True(t, ok)
	assert.Equal(t, frooties.ReasonInsufficientFunds, reason)
	assert.Equal(t, before, sm.GetBalance(alice))
	assert.Equal(t, int64(0), sm.GetBalance(addr).Int64())
	assert.Equal(t, uint64(1), sm.GetNonce(alice))
	assert.Empty(t, res.Logs)
	assert.Equal(t, frooties.EncodeRevert(reason), res.RevertData())
	assert.Equal(t, reason, res.Trace.RevertReason)
}

func TestProcessor_Withdraw(t *testing.T) {
	p, sm := setupProcessor(t)
	addr := deploy(t, p)

	_, err := p.Apply(context.Background(), Message{
		From:  alice,
		To:    &addr,
		Value: ether(1, 20),
		Data:  pack(t, "mint", big.NewInt(1)),
	}, publicBlock())
	require.NoError(t, err)

	res, err := p.Apply(context.Background(), Message{
		From: admin,
		To:   &addr,
		Data: pack(t, "call", vb, ether(1, 20), []byte{}, []byte{}),
	}, publicBlock())
	require.NoError(t, err)
	require.NoError(t, res.Err)

	assert.Equal(t, int64(0), sm.GetBalance(addr).Int64())
	assert.Equal(t, ether(1, 20), sm.GetBalance(vb))
	require.Len(t, res.Trace.Calls, 1)
	assert.Equal(t, vb, *res.Trace.Calls[0].To)
}

func TestProcessor_WithdrawTooMuch(t *testing.T) {
	p, sm := setupProcessor(t)
	addr := deploy(t, p)

	res, err := p.Apply(context.Background(), Message{
		From: admin,
		To:   &addr,
		Data: pack(t, "call", vb, ether(1, 20), []byte{}, []byte{}),
	}, publicBlock())
	require.NoError(t, err)

	reason, ok := frooties.Reason(res.Err)
	require.True(t, ok)
	assert.Equal(t, frooties.ReasonCallFailed, reason)
	assert.Equal(t, int64(0), sm.GetBalance(vb).Int64())
}

func TestProcessor_Call(t *testing.T) {
	p, sm := setupProcessor(t)
	addr := deploy(t, p)
	root := sm.Root()

	res, err := p.Call(context.Background(), Message{
		From:  alice,
		To:    &addr,
		Value: ether(1, 20),
		Data:  pack(t, "mint", big.NewInt(1)),
	}, publicBlock())
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, root, sm.Root())

	res, err = p.Call(context.Background(), Message{From: alice, To: &addr, Data: pack(t, "admin")}, publicBlock())
	require.NoError(t, err)
	vals, err := frooties.Unpack("admin", res.ReturnData)
	require.NoError(t, err)
	assert.Equal(t, admin, vals[0].(common.Address))
	assert.Equal(t, 0, sm.SnapshotCount())
}

func TestProcessor_InsufficientFunds(t *testing.T) {
	p, sm := setupProcessor(t)
	poor := common.HexToAddress("0x1234")

	_, err := p.Apply(context.Background(), Message{From: poor, To: &alice, Value: big.NewInt(1)}, publicBlock())
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, uint64(0), sm.GetNonce(poor))
}

func TestProcessor_PlainTransfer(t *testing.T) {
	p, sm := setupProcessor(t)

	res, err := p.Apply(context.Background(), Message{From: admin, To: &vb, Value: ether(1, 1)}, publicBlock())
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, ether(1, 1), sm.GetBalance(vb))
	assert.Equal(t, params.TxGas, res.GasUsed)
}

func TestProcessor_CanceledContext(t *testing.T) {
	p, _ := setupProcessor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Apply(ctx, Message{From: admin, To: &vb}, publicBlock())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessor_RevertedStateHidesContract(t *testing.T) {
	p, sm := setupProcessor(t)
	snap := sm.Snapshot()
	addr := deploy(t, p)
	sm.RevertToSnapshot(snap)

	// The registry still knows the address but the code is gone.
	res, err := p.Call(context.Background(), Message{From: alice, To: &addr, Data: pack(t, "admin")}, publicBlock())
	require.NoError(t, err)
	assert.NoError(t, res.Err)
	assert.Empty(t, res.ReturnData)
}
