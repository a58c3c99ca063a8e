package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fbslo/frooties-contract/pkg/backend"
	"github.com/fbslo/frooties-contract/pkg/blockchain"
)

// defaultGasPrice is reported by eth_gasPrice. Fees are not charged.
var defaultGasPrice = big.NewInt(1e9)

// eth_chainId returns the chain ID.
func (s *Server) ethChainID() (interface{}, *ErrorObject) {
	return hexutil.EncodeBig(s.backend.ChainID()), nil
}

// eth_blockNumber returns the current block number.
func (s *Server) ethBlockNumber() (interface{}, *ErrorObject) {
	return hexutil.EncodeUint64(s.backend.BlockNumber()), nil
}

// net_version returns the network ID as a decimal string.
func (s *Server) netVersion() (interface{}, *ErrorObject) {
	return s.backend.ChainID().String(), nil
}

// eth_accounts returns the list of unlocked accounts.
func (s *Server) ethAccounts() (interface{}, *ErrorObject) {
	accounts := s.backend.Accounts()
	result := make([]string, len(accounts))
	for i, addr := range accounts {
		result[i] = addr.Hex()
	}
	return result, nil
}

func (s *Server) ethGasPrice() (interface{}, *ErrorObject) {
	return hexutil.EncodeBig(defaultGasPrice), nil
}

// eth_getBalance returns the balance of an account.
func (s *Server) ethGetBalance(params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := argAddress(args[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	return hexutil.EncodeBig(s.backend.Balance(addr)), nil
}

// eth_getTransactionCount returns the nonce of an account.
func (s *Server) ethGetTransactionCount(params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := argAddress(args[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	return hexutil.EncodeUint64(s.backend.Nonce(addr)), nil
}

// eth_getCode returns the code of a contract.
func (s *Server) ethGetCode(params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := argAddress(args[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	return hexutil.Encode(s.backend.Code(addr)), nil
}

// eth_getStorageAt returns the value of a storage slot.
func (s *Server) ethGetStorageAt(params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 2)
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
	return s.backend.StorageAt(addr, slot).Hex(), nil
}

// eth_getBlockByNumber returns a block by number.
func (s *Server) ethGetBlockByNumber(params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	number, rpcErr := s.blockNumber(args[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	block, err := s.backend.BlockByNumber(number)
	if err != nil {
		return nil, nil
	}
	return s.formatBlock(block, fullTxArg(args)), nil
}

// eth_getBlockByHash returns a block by hash.
func (s *Server) ethGetBlockByHash(params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	hash, rpcErr := argHash(args[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	block, err := s.backend.BlockByHash(hash)
	if err != nil {
		return nil, nil
	}
	return s.formatBlock(block, fullTxArg(args)), nil
}

func fullTxArg(args []interface{}) bool {
	if len(args) < 2 {
		return false
	}
	full, _ := args[1].(bool)
	return full
}

// formatBlock formats a block for JSON-RPC response.
func (s *Server) formatBlock(block *types.Block, fullTx bool) map[string]interface{} {
	result := map[string]interface{}{
		"number":           hexutil.EncodeUint64(block.NumberU64()),
		"hash":             block.Hash().Hex(),
		"parentHash":       block.ParentHash().Hex(),
		"timestamp":        hexutil.EncodeUint64(block.Time()),
		"gasLimit":         hexutil.EncodeUint64(block.GasLimit()),
		"gasUsed":          hexutil.EncodeUint64(block.GasUsed()),
		"miner":            block.Coinbase().Hex(),
		"difficulty":       hexutil.EncodeBig(block.Difficulty()),
		"totalDifficulty":  "0x0",
		"nonce":            hexutil.Encode(block.Header().Nonce[:]),
		"mixHash":          block.MixDigest().Hex(),
		"sha3Uncles":       block.UncleHash().Hex(),
		"logsBloom":        hexutil.Encode(block.Bloom().Bytes()),
		"transactionsRoot": block.TxHash().Hex(),
		"stateRoot":        block.Root().Hex(),
		"receiptsRoot":     block.ReceiptHash().Hex(),
		"extraData":        hexutil.Encode(block.Extra()),
		"size":             hexutil.EncodeUint64(block.Size()),
		"uncles":           []string{},
	}
	if baseFee := block.BaseFee(); baseFee != nil {
		result["baseFeePerGas"] = hexutil.EncodeBig(baseFee)
	}

	if fullTx {
		txs := make([]interface{}, 0, len(block.Transactions()))
		for _, tx := range block.Transactions() {
			_, lookup, err := s.backend.Transaction(tx.Hash())
			if err != nil {
				continue
			}
			txs = append(txs, formatTransaction(tx, lookup))
		}
		result["transactions"] = txs
	} else {
		txHashes := make([]string, len(block.Transactions()))
		for i, tx := range block.Transactions() {
			txHashes[i] = tx.Hash().Hex()
		}
		result["transactions"] = txHashes
	}

	return result
}

// parseTxArgs reads the transaction object shared by eth_sendTransaction,
// eth_call, and eth_estimateGas.
func parseTxArgs(v interface{}) (backend.TxArgs, *ErrorObject) {
	var txArgs backend.TxArgs
	obj, ok := v.(map[string]interface{})
	if !ok {
		return txArgs, invalidParams("Invalid transaction args")
	}

	if from, ok := obj["from"]; ok && from != nil {
		addr, rpcErr := argAddress(from)
		if rpcErr != nil {
			return txArgs, invalidParams("Invalid from address")
		}
		txArgs.From = addr
	}
	if to, ok := obj["to"]; ok && to != nil {
		addr, rpcErr := argAddress(to)
		if rpcErr != nil {
			return txArgs, invalidParams("Invalid to address")
		}
		txArgs.To = &addr
	}
	if value, ok := obj["value"]; ok && value != nil {
		n, rpcErr := argBig(value, "value")
		if rpcErr != nil {
			return txArgs, rpcErr
		}
		txArgs.Value = n
	}
	if gas, ok := obj["gas"]; ok && gas != nil {
		n, rpcErr := argUint64(gas, "gas")
		if rpcErr != nil {
			return txArgs, rpcErr
		}
		txArgs.Gas = &n
	}
	if gasPrice, ok := obj["gasPrice"]; ok && gasPrice != nil {
		n, rpcErr := argBig(gasPrice, "gasPrice")
		if rpcErr != nil {
			return txArgs, rpcErr
		}
		txArgs.GasPrice = n
	}
	if nonce, ok := obj["nonce"]; ok && nonce != nil {
		n, rpcErr := argUint64(nonce, "nonce")
		if rpcErr != nil {
			return txArgs, rpcErr
		}
		txArgs.Nonce = &n
	}
	if data, ok := obj["data"].(string); ok {
		txArgs.Data = common.FromHex(data)
	}
	if input, ok := obj["input"].(string); ok {
		txArgs.Data = common.FromHex(input)
	}
	return txArgs, nil
}

func callMsg(args backend.TxArgs) backend.CallMsg {
	msg := backend.CallMsg{
		From:  args.From,
		To:    args.To,
		Value: args.Value,
		Data:  args.Data,
	}
	if args.Gas != nil {
		msg.Gas = *args.Gas
	}
	return msg
}

// eth_sendTransaction sends a transaction from an unlocked or impersonated
// account.
func (s *Server) ethSendTransaction(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	txArgs, rpcErr := parseTxArgs(args[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	if txArgs.From == (common.Address{}) {
		return nil, invalidParams("Missing from address")
	}

	hash, err := s.backend.SendTransaction(ctx, txArgs)
	if err != nil {
		return nil, toError(err)
	}
	return hash.Hex(), nil
}

// eth_sendRawTransaction sends a signed raw transaction.
func (s *Server) ethSendRawTransaction(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	rawStr, ok := args[0].(string)
	if !ok {
		return nil, invalidParams("Invalid raw transaction")
	}
	raw, err := hexutil.Decode(rawStr)
	if err != nil {
		return nil, invalidParams("Invalid raw transaction")
	}

	hash, err := s.backend.SendRawTransaction(ctx, raw)
	if err != nil {
		return nil, toError(err)
	}
	return hash.Hex(), nil
}

// eth_call executes a call against the pending block without mining it.
func (s *Server) ethCall(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	txArgs, rpcErr := parseTxArgs(args[0])
	if rpcErr != nil {
		return nil, rpcErr
	}

	ret, err := s.backend.Call(ctx, callMsg(txArgs))
	if err != nil {
		return nil, toError(err)
	}
	return hexutil.Encode(ret), nil
}

// eth_estimateGas returns the gas a transaction would use.
func (s *Server) ethEstimateGas(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	txArgs, rpcErr := parseTxArgs(args[0])
	if rpcErr != nil {
		return nil, rpcErr
	}

	gas, err := s.backend.EstimateGas(ctx, callMsg(txArgs))
	if err != nil {
		return nil, toError(err)
	}
	return hexutil.EncodeUint64(gas), nil
}

// eth_getTransactionReceipt returns the receipt of a mined transaction, or
// null while it is pending or unknown.
func (s *Server) ethGetTransactionReceipt(params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	hash, rpcErr := argHash(args[0])
	if rpcErr != nil {
		return nil, rpcErr
	}

	tx, lookup, err := s.backend.Transaction(hash)
	if errors.Is(err, blockchain.ErrTxNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, toError(err)
	}
	receipt, err := s.backend.Receipt(hash)
	if err != nil {
		return nil, nil
	}

	result := map[string]interface{}{
		"transactionHash":   hash.Hex(),
		"transactionIndex":  hexutil.Uint64(lookup.Index),
		"blockHash":         lookup.BlockHash.Hex(),
		"blockNumber":       hexutil.Uint64(lookup.BlockNumber),
		"from":              lookup.From.Hex(),
		"cumulativeGasUsed": hexutil.Uint64(receipt.CumulativeGasUsed),
		"gasUsed":           hexutil.Uint64(receipt.GasUsed),
		"effectiveGasPrice": hexutil.EncodeBig(tx.GasPrice()),
		"logs":              receipt.Logs,
		"logsBloom":         hexutil.Encode(receipt.Bloom.Bytes()),
		"status":            hexutil.Uint64(receipt.Status),
		"type":              hexutil.Uint64(tx.Type()),
		"contractAddress":   nil,
	}
	if tx.To() != nil {
		result["to"] = tx.To().Hex()
	} else {
		result["to"] = nil
		if receipt.Status == types.ReceiptStatusSuccessful {
			result["contractAddress"] = receipt.ContractAddress.Hex()
		}
	}
	return result, nil
}

// eth_getTransactionByHash returns a mined transaction by hash.
func (s *Server) ethGetTransactionByHash(params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	hash, rpcErr := argHash(args[0])
	if rpcErr != nil {
		return nil, rpcErr
	}

	tx, lookup, err := s.backend.Transaction(hash)
	if err != nil {
		return nil, nil
	}
	return formatTransaction(tx, lookup), nil
}

func formatTransaction(tx *types.Transaction, lookup blockchain.TxLookup) map[string]interface{} {
	v, r, sig := tx.RawSignatureValues()
	result := map[string]interface{}{
		"hash":             tx.Hash().Hex(),
		"nonce":            hexutil.Uint64(tx.Nonce()),
		"blockHash":        lookup.BlockHash.Hex(),
		"blockNumber":      hexutil.Uint64(lookup.BlockNumber),
		"transactionIndex": hexutil.Uint64(lookup.Index),
		"from":             lookup.From.Hex(),
		"value":            hexutil.EncodeBig(tx.Value()),
		"gas":              hexutil.Uint64(tx.Gas()),
		"gasPrice":         hexutil.EncodeBig(tx.GasPrice()),
		"input":            hexutil.Encode(tx.Data()),
		"type":             hexutil.Uint64(tx.Type()),
		"v":                hexutil.EncodeBig(v),
		"r":                hexutil.EncodeBig(r),
		"s":                hexutil.EncodeBig(sig),
	}
	if tx.To() != nil {
		result["to"] = tx.To().Hex()
	} else {
		result["to"] = nil
	}
	return result
}

// eth_getLogs returns logs matching a filter.
func (s *Server) ethGetLogs(params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	filterParams, ok := args[0].(map[string]interface{})
	if !ok {
		return nil, invalidParams("Invalid filter params")
	}

	var filter backend.FilterQuery
	if hashParam, ok := filterParams["blockHash"]; ok && hashParam != nil {
		hash, rpcErr := argHash(hashParam)
		if rpcErr != nil {
			return nil, rpcErr
		}
		filter.BlockHash = &hash
	} else {
		if from, ok := filterParams["fromBlock"]; ok {
			n, rpcErr := s.blockNumber(from)
			if rpcErr != nil {
				return nil, rpcErr
			}
			filter.FromBlock = new(big.Int).SetUint64(n)
		}
		if to, ok := filterParams["toBlock"]; ok {
			n, rpcErr := s.blockNumber(to)
			if rpcErr != nil {
				return nil, rpcErr
			}
			filter.ToBlock = new(big.Int).SetUint64(n)
		}
	}

	switch v := filterParams["address"].(type) {
	case string:
		addr, rpcErr := argAddress(v)
		if rpcErr != nil {
			return nil, rpcErr
		}
		filter.Addresses = append(filter.Addresses, addr)
	case []interface{}:
		for _, a := range v {
			addr, rpcErr := argAddress(a)
			if rpcErr != nil {
				return nil, rpcErr
			}
			filter.Addresses = append(filter.Addresses, addr)
		}
	}

	if topicsParam, ok := filterParams["topics"].([]interface{}); ok {
		for _, t := range topicsParam {
			var topicGroup []common.Hash
			switch v := t.(type) {
			case string:
				topicGroup = append(topicGroup, common.HexToHash(v))
			case []interface{}:
				for _, h := range v {
					if hStr, ok := h.(string); ok {
						topicGroup = append(topicGroup, common.HexToHash(hStr))
					}
				}
			case nil:
				// nil means any topic
			}
			filter.Topics = append(filter.Topics, topicGroup)
		}
	}

	logs, err := s.backend.Logs(filter)
	if err != nil {
		return nil, toError(err)
	}
	return logs, nil
}

// eth_sign signs a message with the key of a local account.
func (s *Server) ethSign(params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 2)
	if rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := argAddress(args[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	messageStr, ok := args[1].(string)
	if !ok {
		return nil, invalidParams("Invalid message")
	}

	sig, err := s.backend.Sign(addr, common.FromHex(messageStr))
	if err != nil {
		return nil, toError(err)
	}
	return hexutil.Encode(sig), nil
}

// web3_sha3 returns the Keccak-256 hash of the input.
func (s *Server) web3Sha3(params json.RawMessage) (interface{}, *ErrorObject) {
	args, rpcErr := parseArgs(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}
	dataStr, ok := args[0].(string)
	if !ok {
		return nil, invalidParams("Invalid data")
	}
	return crypto.Keccak256Hash(common.FromHex(dataStr)).Hex(), nil
}
