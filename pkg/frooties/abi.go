package frooties

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ABIJSON is the contract interface in solc JSON form.
const ABIJSON = `[
{"type":"function","name":"whitelistMint","stateMutability":"payable","inputs":[{"name":"quantity","type":"uint256"},{"name":"signature","type":"bytes"}],"outputs":[]},
{"type":"function","name":"mint","stateMutability":"payable","inputs":[{"name":"quantity","type":"uint256"}],"outputs":[]},
{"type":"function","name":"reserveMint","stateMutability":"nonpayable","inputs":[{"name":"quantity","type":"uint256"}],"outputs":[]},
{"type":"function","name":"setMintStage","stateMutability":"nonpayable","inputs":[{"name":"stage","type":"uint256"}],"outputs":[]},
{"type":"function","name":"call","stateMutability":"nonpayable","inputs":[{"name":"target","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"},{"name":"extra","type":"bytes"}],"outputs":[{"name":"","type":"bytes"}]},
{"type":"function","name":"tokenURI","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
{"type":"function","name":"amounts","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"reserveAmounts","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"admin","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"whitelistAdmin","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"mintStage","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
{"type":"function","name":"price","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"ownerOf","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
{"type":"event","name":"Transfer","anonymous":false,"inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true}]}
]`

var (
	// ABI is the parsed contract interface.
	ABI = mustParseABI()

	// RevertSelector is the selector of Error(string).
	RevertSelector = []byte{0x08, 0xc3, 0x79, 0xa0}

	revertArgs = mustRevertArgs()
)

func mustParseABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(ABIJSON))
	if err != nil {
		panic(fmt.Sprintf("frooties: parse abi: %v", err))
	}
	return parsed
}

func mustRevertArgs() abi.Arguments {
	strType, err := abi.NewType("string", "", nil)
	if err != nil {
		panic(fmt.Sprintf("frooties: string type: %v", err))
	}
	return abi.Arguments{{Type: strType}}
}

// EncodeRevert encodes reason as Error(string) revert data.
func EncodeRevert(reason string) []byte {
	packed, err := revertArgs.Pack(reason)
	if err != nil {
		// Packing a string cannot fail.
		panic(err)
	}
	return append(common.CopyBytes(RevertSelector), packed...)
}

// DecodeRevert extracts the reason string from Error(string) revert data.
func DecodeRevert(data []byte) (string, error) {
	return abi.UnpackRevert(data)
}

// TransferEventID is the topic of the Transfer event.
func TransferEventID() common.Hash {
	return ABI.Events["Transfer"].ID
}

func transferTopics(from, to common.Address, id *uint256.Int) []common.Hash {
	return []common.Hash{
		TransferEventID(),
		common.BytesToHash(from.Bytes()),
		common.BytesToHash(to.Bytes()),
		common.Hash(id.Bytes32()),
	}
}

// MethodName returns the name of the method input calls, or "" if the
// selector is unknown.
func MethodName(input []byte) string {
	if len(input) < 4 {
		return ""
	}
	method, err := ABI.MethodById(input[:4])
	if err != nil {
		return ""
	}
	return method.Name
}

// Pack encodes a call to method.
func Pack(method string, args ...interface{}) ([]byte, error) {
	return ABI.Pack(method, args...)
}

// Unpack decodes the return data of method.
func Unpack(method string, data []byte) ([]interface{}, error) {
	return ABI.Unpack(method, data)
}

// Run decodes input, dispatches it to the contract and encodes the result.
func (c *Contract) Run(l Ledger, msg Msg, input []byte) ([]byte, error) {
	if len(input) < 4 {
		// No receive or fallback function.
		return nil, revert(ErrInvalidArgument, "")
	}
	method, err := ABI.MethodById(input[:4])
	if err != nil {
		return nil, revert(ErrInvalidArgument, "")
	}
	if !method.IsPayable() && msg.value().Sign() != 0 {
		return nil, revert(ErrNonPayable, "")
	}
	args, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		return nil, revert(ErrInvalidArgument, "")
	}

	out, err := c.dispatch(l, msg, method.Name, args)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(out...)
}

func (c *Contract) dispatch(l Ledger, msg Msg, name string, args []interface{}) ([]interface{}, error) {
	switch name {
	case "whitelistMint":
		return nil, c.WhitelistMint(l, msg, args[0].(*big.Int), args[1].([]byte))
	case "mint":
		return nil, c.Mint(l, msg, args[0].(*big.Int))
	case "reserveMint":
		return nil, c.ReserveMint(l, msg, args[0].(*big.Int))
	case "setMintStage":
		return nil, c.SetMintStage(l, msg, args[0].(*big.Int))
	case "call":
		target := args[0].(common.Address)
		err := c.Call(l, msg, target, args[1].(*big.Int), args[2].([]byte), args[3].([]byte))
		if err != nil {
			return nil, err
		}
		return []interface{}{[]byte{}}, nil
	case "tokenURI":
		return []interface{}{c.TokenURI(args[0].(*big.Int))}, nil
	case "amounts":
		return []interface{}{c.Amounts(l, args[0].(common.Address))}, nil
	case "reserveAmounts":
		return []interface{}{c.ReserveAmounts(l, args[0].(common.Address))}, nil
	case "admin":
		return []interface{}{c.Admin(l)}, nil
	case "whitelistAdmin":
		return []interface{}{c.WhitelistAdmin(l)}, nil
	case "totalSupply":
		return []interface{}{c.TotalSupply(l)}, nil
	case "mintStage":
		return []interface{}{uint8(c.MintStage(l))}, nil
	case "price":
		return []interface{}{new(big.Int).Set(c.cfg.Price)}, nil
	case "ownerOf":
		owner, err := c.OwnerOf(l, args[0].(*big.Int))
		if err != nil {
			return nil, err
		}
		return []interface{}{owner}, nil
	case "balanceOf":
		return []interface{}{c.BalanceOf(l, args[0].(common.Address))}, nil
	case "name":
		return []interface{}{c.cfg.Name}, nil
	case "symbol":
		return []interface{}{c.cfg.Symbol}, nil
	}
	return nil, errors.New("unhandled method " + name)
}
