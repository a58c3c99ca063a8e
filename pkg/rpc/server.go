// Package rpc provides the JSON-RPC server of the simulator.
package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/fbslo/frooties-contract/pkg/backend"
	"github.com/fbslo/frooties-contract/pkg/frooties"
)

// JSON-RPC error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
	ErrCodeInvalidInput   = -32000
)

// Version information.
const (
	ClientVersion = "frooties-sim/v0.1.0"
)

// Revert messages in the form hardhat reports them.
const (
	revertPrefix       = "VM Exception while processing transaction: "
	revertNoReason     = revertPrefix + "revert"
	revertReasonFormat = revertPrefix + "reverted with reason string '%s'"
)

const (
	// maxBodySize bounds request bodies.
	maxBodySize = 5 << 20

	readHeaderTimeout = 10 * time.Second
)

// Request represents a JSON-RPC request.
type Request struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response represents a JSON-RPC response.
type Response struct {
	Jsonrpc string       `json:"jsonrpc"`
	ID      interface{}  `json:"id"`
	Result  interface{}  `json:"result,omitempty"`
	Error   *ErrorObject `json:"error,omitempty"`
}

// ErrorObject represents a JSON-RPC error.
type ErrorObject struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *ErrorObject) Error() string {
	return e.Message
}

// Server implements an Ethereum JSON-RPC server on top of a simulator backend.
type Server struct {
	backend     backend.Backend
	allowOrigin string
	logger      *zap.Logger
}

// NewServer creates a new RPC server. An empty allowOrigin disables CORS headers.
func NewServer(b backend.Backend, allowOrigin string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		backend:     b,
		allowOrigin: allowOrigin,
		logger:      logger.Named("rpc"),
	}
}

// ServeHTTP handles HTTP requests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.allowOrigin != "" {
		w.Header().Set("Access-Control-Allow-Origin", s.allowOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		s.writeError(w, nil, &ErrorObject{Code: ErrCodeParseError, Message: "Failed to read request body"})
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, nil, &ErrorObject{Code: ErrCodeParseError, Message: "Parse error"})
		return
	}
	if req.Method == "" {
		s.writeError(w, req.ID, &ErrorObject{Code: ErrCodeInvalidRequest, Message: "Invalid request"})
		return
	}

	start := time.Now()
	result, rpcErr := s.handleMethod(r, req.Method, req.Params)
	observe(req.Method, rpcErr, time.Since(start))
	if rpcErr != nil {
		s.logger.Debug("request failed",
			zap.String("method", req.Method),
			zap.Int("code", rpcErr.Code),
			zap.String("message", rpcErr.Message),
		)
		s.writeError(w, req.ID, rpcErr)
		return
	}

	// Handle nil result specially to output "null" instead of omitting
	var resp interface{}
	if result == nil {
		resp = struct {
			Jsonrpc string      `json:"jsonrpc"`
			ID      interface{} `json:"id"`
			Result  interface{} `json:"result"`
		}{
			Jsonrpc: "2.0",
			ID:      req.ID,
			Result:  nil,
		}
	} else {
		resp = Response{
			Jsonrpc: "2.0",
			ID:      req.ID,
			Result:  result,
		}
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, id interface{}, rpcErr *ErrorObject) {
	resp := Response{
		Jsonrpc: "2.0",
		ID:      id,
		Error:   rpcErr,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to write error response", zap.Error(err))
	}
}

func (s *Server) handleMethod(r *http.Request, method string, params json.RawMessage) (interface{}, *ErrorObject) {
	ctx := r.Context()

	switch method {
	// eth_* methods
	case "eth_chainId":
		return s.ethChainID()
	case "eth_blockNumber":
		return s.ethBlockNumber()
	case "eth_getBalance":
		return s.ethGetBalance(params)
	case "eth_getTransactionCount":
		return s.ethGetTransactionCount(params)
	case "eth_getCode":
		return s.ethGetCode(params)
	case "eth_getStorageAt":
		return s.ethGetStorageAt(params)
	case "eth_getBlockByNumber":
		return s.ethGetBlockByNumber(params)
	case "eth_getBlockByHash":
		return s.ethGetBlockByHash(params)
	case "eth_gasPrice":
		return s.ethGasPrice()
	case "eth_estimateGas":
		return s.ethEstimateGas(ctx, params)
	case "eth_accounts":
		return s.ethAccounts()
	case "eth_sendTransaction":
		return s.ethSendTransaction(ctx, params)
	case "eth_sendRawTransaction":
		return s.ethSendRawTransaction(ctx, params)
	case "eth_call":
		return s.ethCall(ctx, params)
	case "eth_getTransactionReceipt":
		return s.ethGetTransactionReceipt(params)
	case "eth_getTransactionByHash":
		return s.ethGetTransactionByHash(params)
	case "eth_getLogs":
		return s.ethGetLogs(params)
	case "eth_sign":
		return s.ethSign(params)
	case "net_version":
		return s.netVersion()
	case "net_listening":
		return true, nil
	case "net_peerCount":
		return "0x0", nil
	case "web3_clientVersion":
		return ClientVersion, nil
	case "web3_sha3":
		return s.web3Sha3(params)

	// cheat codes, under the anvil_ and hardhat_ names
	case "anvil_setBalance", "hardhat_setBalance":
		return s.anvilSetBalance(params)
	case "anvil_setNonce", "hardhat_setNonce":
		return s.anvilSetNonce(params)
	case "anvil_setCode", "hardhat_setCode":
		return s.anvilSetCode(params)
	case "anvil_setStorageAt", "hardhat_setStorageAt":
		return s.anvilSetStorageAt(params)
	case "anvil_impersonateAccount", "hardhat_impersonateAccount":
		return s.anvilImpersonateAccount(params)
	case "anvil_stopImpersonatingAccount", "hardhat_stopImpersonatingAccount":
		return s.anvilStopImpersonatingAccount(params)
	case "anvil_autoImpersonateAccount":
		return s.anvilAutoImpersonateAccount(params)
	case "anvil_mine", "hardhat_mine":
		return s.anvilMine(ctx, params)
	case "anvil_dropTransaction", "hardhat_dropTransaction":
		return s.anvilDropTransaction(params)

	// evm_* methods
	case "evm_mine":
		return s.evmMine(ctx, params)
	case "evm_snapshot", "anvil_snapshot":
		return s.evmSnapshot()
	case "evm_revert", "anvil_revert":
		return s.evmRevert(params)
	case "evm_increaseTime", "anvil_increaseTime":
		return s.evmIncreaseTime(params)
	case "evm_setNextBlockTimestamp", "anvil_setNextBlockTimestamp":
		return s.evmSetNextBlockTimestamp(params)
	case "evm_setAutomine", "anvil_setAutomine":
		return s.evmSetAutomine(params)
	case "evm_setIntervalMining", "anvil_setIntervalMining":
		return s.evmSetIntervalMining(params)

	// frooties_* methods
	case "frooties_deploy":
		return s.frootiesDeploy(ctx, params)

	// debug_* methods
	case "debug_traceTransaction":
		return s.debugTraceTransaction(params)

	default:
		return nil, &ErrorObject{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Method %s not found", method)}
	}
}

// HTTPServer returns an http.Server serving the API on addr. The caller owns
// its lifecycle.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// toError converts a backend error into a JSON-RPC error. Reverts are
// reported the way hardhat reports them.
func toError(err error) *ErrorObject {
	var rerr *frooties.RevertError
	if errors.As(err, &rerr) {
		obj := &ErrorObject{Code: ErrCodeInternal, Message: revertNoReason, Data: "0x"}
		if rerr.Reason != "" {
			obj.Message = fmt.Sprintf(revertReasonFormat, rerr.Reason)
			obj.Data = hexutil.Encode(rerr.Data())
		}
		return obj
	}
	return &ErrorObject{Code: ErrCodeInvalidInput, Message: err.Error()}
}

func invalidParams(message string) *ErrorObject {
	return &ErrorObject{Code: ErrCodeInvalidParams, Message: message}
}
