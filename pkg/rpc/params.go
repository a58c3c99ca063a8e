package rpc

import (
	"encoding/json"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// parseArgs decodes positional params, requiring at least min of them.
func parseArgs(params json.RawMessage, min int) ([]interface{}, *ErrorObject) {
	var args []interface{}
	if len(params) == 0 {
		if min == 0 {
			return nil, nil
		}
		return nil, invalidParams("Invalid params")
	}
	if err := json.Unmarshal(params, &args); err != nil || len(args) < min {
		return nil, invalidParams("Invalid params")
	}
	return args, nil
}

func argAddress(v interface{}) (common.Address, *ErrorObject) {
	str, ok := v.(string)
	if !ok || !common.IsHexAddress(str) {
		return common.Address{}, invalidParams("Invalid address")
	}
	return common.HexToAddress(str), nil
}

func argHash(v interface{}) (common.Hash, *ErrorObject) {
	str, ok := v.(string)
	if !ok {
		return common.Hash{}, invalidParams("Invalid hash")
	}
	return common.HexToHash(str), nil
}

func argBig(v interface{}, name string) (*big.Int, *ErrorObject) {
	str, ok := v.(string)
	if !ok {
		return nil, invalidParams("Invalid " + name)
	}
	n, err := hexutil.DecodeBig(str)
	if err != nil {
		return nil, invalidParams("Invalid " + name)
	}
	return n, nil
}

// argUint64 accepts a hex quantity, a decimal string, or a JSON number.
func argUint64(v interface{}, name string) (uint64, *ErrorObject) {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0, invalidParams("Invalid " + name)
		}
		return uint64(n), nil
	case string:
		if val, err := hexutil.DecodeUint64(n); err == nil {
			return val, nil
		}
		if val, err := strconv.ParseUint(n, 10, 64); err == nil {
			return val, nil
		}
	}
	return 0, invalidParams("Invalid " + name)
}

// blockNumber resolves a block tag or quantity against the current head.
func (s *Server) blockNumber(v interface{}) (uint64, *ErrorObject) {
	head := s.backend.BlockNumber()
	if v == nil {
		return head, nil
	}
	if str, ok := v.(string); ok {
		switch str {
		case "latest", "pending", "safe", "finalized":
			return head, nil
		case "earliest":
			return 0, nil
		}
	}
	return argUint64(v, "block number")
}
