package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/fbslo/frooties-contract/pkg/tracing"
)

// anvil_setBalance sets the balance of an account.
func (s *Server) anvilSetBalance(params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 2)
	if rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := argAddress(args[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	balance, rpcErr := argBig(args[1], "balance")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.backend.SetBalance(addr, balance); err != nil {
		return nil, &ErrorObject{Code: ErrCodeInternal, Message: err.Error()}
	}
	return true, nil
}

// anvil_setNonce sets the nonce of an account.
func (s *Server) anvilSetNonce(params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 2)
	if rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := argAddress(args[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	nonce, rpcErr := argUint64(args[1], "nonce")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.backend.SetNonce(addr, nonce); err != nil {
		return nil, &ErrorObject{Code: ErrCodeInternal, Message: err.Error()}
	}
	return true, nil
}

// anvil_setCode sets the code of an account.
func (s *Server) anvilSetCode(params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 2)
	if rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := argAddress(args[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	codeStr, ok := args[1].(string)
	if !ok {
		return nil, invalidParams("Invalid code")
	}
	if err := s.backend.SetCode(addr, common.FromHex(codeStr)); err != nil {
		return nil, &ErrorObject{Code: ErrCodeInternal, Message: err.Error()}
	}
	return true, nil
}

// anvil_setStorageAt sets a storage slot of an account.
func (s *Server) anvilSetStorageAt(params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 3)
	if rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := argAddress(args[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	slot, rpcErr := argHash(args[1])
	if rpcErr != nil {
		return nil, rpcErr
	}
	value, rpcErr := argHash(args[2])
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.backend.SetStorageAt(addr, slot, value); err != nil {
		return nil, &ErrorObject{Code: ErrCodeInternal, Message: err.Error()}
	}
	return true, nil
}

// anvil_impersonateAccount lets transactions be sent from an account
// without its key.
func (s *Server) anvilImpersonateAccount(params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := argAddress(args[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	s.backend.ImpersonateAccount(addr)
	return true, nil
}

// anvil_stopImpersonatingAccount stops impersonating an account.
func (s *Server) anvilStopImpersonatingAccount(params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := argAddress(args[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	s.backend.StopImpersonatingAccount(addr)
	return true, nil
}

// anvil_autoImpersonateAccount impersonates every sender.
func (s *Server) anvilAutoImpersonateAccount(params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	enabled, ok := args[0].(bool)
	if !ok {
		return nil, invalidParams("Invalid enabled flag")
	}
	s.backend.SetAutoImpersonate(enabled)
	return true, nil
}

// anvil_mine mines count blocks, one by default.
func (s *Server) anvilMine(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}
	count := uint64(1)
	if len(args) > 0 && args[0] != nil {
		n, rpcErr := argUint64(args[0], "block count")
		if rpcErr != nil {
			return nil, rpcErr
		}
		count = n
	}
	if count == 0 {
		return true, nil
	}

	if _, err := s.backend.Mine(ctx, count); err != nil {
		return nil, &ErrorObject{Code: ErrCodeInternal, Message: err.Error()}
	}
	return true, nil
}

// evm_mine mines one block, optionally at the given timestamp.
func (s *Server) evmMine(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if len(args) > 0 && args[0] != nil {
		ts, rpcErr := argUint64(args[0], "timestamp")
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := s.backend.SetNextBlockTimestamp(ts); err != nil {
			return nil, &ErrorObject{Code: ErrCodeInvalidInput, Message: err.Error()}
		}
	}

	if _, err := s.backend.Mine(ctx, 1); err != nil {
		return nil, &ErrorObject{Code: ErrCodeInternal, Message: err.Error()}
	}
	return "0x0", nil
}

// anvil_dropTransaction removes a pending transaction from the pool.
func (s *Server) anvilDropTransaction(params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	hash, rpcErr := argHash(args[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.backend.DropTransaction(hash), nil
}

// evm_snapshot captures the chain and returns the snapshot id.
func (s *Server) evmSnapshot() (interface{}, *ErrorObject) {
	return hexutil.EncodeUint64(s.backend.Snapshot()), nil
}

// evm_revert restores a snapshot. It reports false for unknown ids.
func (s *Server) evmRevert(params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := argUint64(args[0], "snapshot id")
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.backend.Revert(id), nil
}

// evm_increaseTime moves virtual time forward by the given seconds.
func (s *Server) evmIncreaseTime(params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	seconds, rpcErr := argUint64(args[0], "seconds")
	if rpcErr != nil {
		return nil, rpcErr
	}
	return hexutil.EncodeUint64(s.backend.IncreaseTime(seconds)), nil
}

// evm_setNextBlockTimestamp pins the timestamp of the next block.
func (s *Server) evmSetNextBlockTimestamp(params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	ts, rpcErr := argUint64(args[0], "timestamp")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.backend.SetNextBlockTimestamp(ts); err != nil {
		return nil, &ErrorObject{Code: ErrCodeInvalidInput, Message: err.Error()}
	}
	return nil, nil
}

// evm_setAutomine toggles mining a block per transaction.
func (s *Server) evmSetAutomine(params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	enabled, ok := args[0].(bool)
	if !ok {
		return nil, invalidParams("Invalid enabled flag")
	}
	s.backend.SetAutomine(enabled)
	return true, nil
}

// evm_setIntervalMining mines a block every given milliseconds. Zero stops
// interval mining.
func (s *Server) evmSetIntervalMining(params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	ms, rpcErr := argUint64(args[0], "interval")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.backend.SetIntervalMining(time.Duration(ms) * time.Millisecond); err != nil {
		return nil, &ErrorObject{Code: ErrCodeInternal, Message: err.Error()}
	}
	return true, nil
}

// debug_traceTransaction returns the call frames of a mined transaction.
func (s *Server) debugTraceTransaction(params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	hash, rpcErr := argHash(args[0])
	if rpcErr != nil {
		return nil, rpcErr
	}

	var tracerCfg tracing.CallTracerConfig
	if len(args) >= 2 {
		if cfgMap, ok := args[1].(map[string]interface{}); ok {
			if tcMap, ok := cfgMap["tracerConfig"].(map[string]interface{}); ok {
				if v, ok := tcMap["onlyTopCall"].(bool); ok {
					tracerCfg.OnlyTopCall = v
				}
				if v, ok := tcMap["withLog"].(bool); ok {
					tracerCfg.WithLog = v
				}
			}
		}
	}

	frame, err := s.backend.Trace(hash)
	if errors.Is(err, tracing.ErrTraceNotFound) {
		return nil, &ErrorObject{Code: ErrCodeInvalidInput, Message: "Transaction not found"}
	} else if err != nil {
		return nil, &ErrorObject{Code: ErrCodeInternal, Message: err.Error()}
	}
	return frame.Filter(tracerCfg), nil
}
