// Package benchmark provides performance benchmarks for the simulator.
package benchmark

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/fbslo/frooties-contract/pkg/backend"
	"github.com/fbslo/frooties-contract/pkg/config"
	"github.com/fbslo/frooties-contract/pkg/frooties"
	"github.com/fbslo/frooties-contract/pkg/rpc"
	"github.com/fbslo/frooties-contract/pkg/state"
)

type benchBackend struct {
	server   *rpc.Server
	sim      *backend.Simulator
	contract common.Address
}

// setupBenchBackend starts a simulator with a deployed contract whose public
// mint is open.
func setupBenchBackend(b *testing.B, accounts int) *benchBackend {
	b.Helper()
	cfg := config.Default()
	cfg.AccountCount = accounts
	sim, err := backend.New(backend.Options{
		Config: cfg,
		Clock:  clockwork.NewFakeClockAt(time.Unix(int64(frooties.DefaultSchedule.Public), 0)),
		Logger: zap.NewNop(),
	})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = sim.Stop() })

	contract, err := sim.DeployFrooties(context.Background(), sim.Accounts()[0], common.Address{})
	if err != nil {
		b.Fatal(err)
	}
	return &benchBackend{
		server:   rpc.NewServer(sim, "", zap.NewNop()),
		sim:      sim,
		contract: contract,
	}
}

func makeRPCRequest(server *rpc.Server, method string, params interface{}) *httptest.ResponseRecorder {
	reqBody := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	}
	body, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

func mustPack(b *testing.B, method string, args ...interface{}) []byte {
	b.Helper()
	data, err := frooties.Pack(method, args...)
	if err != nil {
		b.Fatal(err)
	}
	return data
}

// BenchmarkRPC_eth_chainId benchmarks eth_chainId requests.
func BenchmarkRPC_eth_chainId(b *testing.B) {
	bb := setupBenchBackend(b, 1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		makeRPCRequest(bb.server, "eth_chainId", []interface{}{})
	}
}

// BenchmarkRPC_eth_getBalance benchmarks eth_getBalance requests.
func BenchmarkRPC_eth_getBalance(b *testing.B) {
	bb := setupBenchBackend(b, 1)
	addr := bb.sim.Accounts()[0]

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		makeRPCRequest(bb.server, "eth_getBalance", []interface{}{addr.Hex(), "latest"})
	}
}

// BenchmarkRPC_eth_call_totalSupply benchmarks a contract read over RPC.
func BenchmarkRPC_eth_call_totalSupply(b *testing.B) {
	bb := setupBenchBackend(b, 1)
	call := map[string]interface{}{
		"to":   bb.contract.Hex(),
		"data": hexutil.Encode(mustPack(b, "totalSupply")),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		makeRPCRequest(bb.server, "eth_call", []interface{}{call, "latest"})
	}
}

// BenchmarkRPC_anvil_mine benchmarks anvil_mine requests.
func BenchmarkRPC_anvil_mine(b *testing.B) {
	bb := setupBenchBackend(b, 1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		makeRPCRequest(bb.server, "anvil_mine", []interface{}{"0x1"})
	}
}

// BenchmarkRPC_evm_snapshotRevert benchmarks snapshot and revert pairs.
func BenchmarkRPC_evm_snapshotRevert(b *testing.B) {
	bb := setupBenchBackend(b, 1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := bb.sim.Snapshot()
		makeRPCRequest(bb.server, "evm_revert", []interface{}{hexutil.EncodeUint64(id)})
	}
}

// BenchmarkRPC_eth_getBlockByNumber benchmarks eth_getBlockByNumber requests.
func BenchmarkRPC_eth_getBlockByNumber(b *testing.B) {
	bb := setupBenchBackend(b, 1)
	makeRPCRequest(bb.server, "anvil_mine", []interface{}{"0xa"})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		blockNum := hexutil.EncodeUint64(uint64(i % 10))
		makeRPCRequest(bb.server, "eth_getBlockByNumber", []interface{}{blockNum, false})
	}
}

// BenchmarkSimulator_PublicMint benchmarks an automined public mint. Senders
// rotate so the per-address cap is never reached.
func BenchmarkSimulator_PublicMint(b *testing.B) {
	bb := setupBenchBackend(b, 1)
	data := mustPack(b, "mint", big.NewInt(1))
	bb.sim.SetAutoImpersonate(true)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		from := common.BigToAddress(big.NewInt(int64(i + 1)))
		if err := bb.sim.SetBalance(from, frooties.DefaultPrice); err != nil {
			b.Fatal(err)
		}
		_, err := bb.sim.SendTransaction(context.Background(), backend.TxArgs{
			From:  from,
			To:    &bb.contract,
			Value: frooties.DefaultPrice,
			Data:  data,
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSimulator_Call benchmarks a read of the mint counter.
func BenchmarkSimulator_Call(b *testing.B) {
	bb := setupBenchBackend(b, 1)
	data := mustPack(b, "amounts", bb.sim.Accounts()[0])

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := bb.sim.Call(context.Background(), backend.CallMsg{To: &bb.contract, Data: data}); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkState_SetBalance benchmarks direct state SetBalance calls.
func BenchmarkState_SetBalance(b *testing.B) {
	sm := state.NewInMemoryManager()
	balance := big.NewInt(1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		addr := common.BigToAddress(big.NewInt(int64(i)))
		_ = sm.SetBalance(addr, balance)
	}
}

// BenchmarkState_SetStorageAt benchmarks direct storage writes.
func BenchmarkState_SetStorageAt(b *testing.B) {
	sm := state.NewInMemoryManager()
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	value := common.HexToHash("0x42")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		slot := common.BigToHash(big.NewInt(int64(i)))
		_ = sm.SetStorageAt(addr, slot, value)
	}
}

// BenchmarkState_Snapshot benchmarks state snapshots of a populated store.
func BenchmarkState_Snapshot(b *testing.B) {
	sm := state.NewInMemoryManager()
	for i := 0; i < 1000; i++ {
		addr := common.BigToAddress(big.NewInt(int64(i)))
		_ = sm.SetBalance(addr, big.NewInt(int64(i)))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := sm.Snapshot()
		sm.RevertToSnapshot(id)
	}
}

// BenchmarkState_Root benchmarks state root computation.
func BenchmarkState_Root(b *testing.B) {
	sm := state.NewInMemoryManager()
	for i := 0; i < 100; i++ {
		addr := common.BigToAddress(big.NewInt(int64(i)))
		_ = sm.SetBalance(addr, big.NewInt(int64(i)))
		_ = sm.SetStorageAt(addr, common.Hash{1}, common.Hash{2})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = sm.Root()
	}
}

// BenchmarkRPCParallel_eth_getBalance benchmarks parallel eth_getBalance requests.
func BenchmarkRPCParallel_eth_getBalance(b *testing.B) {
	bb := setupBenchBackend(b, 1)
	addr := bb.sim.Accounts()[0]

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			makeRPCRequest(bb.server, "eth_getBalance", []interface{}{addr.Hex(), "latest"})
		}
	})
}
