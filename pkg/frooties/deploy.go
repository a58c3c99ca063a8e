package frooties

import (
	"bytes"
	"errors"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrNotCreationCode is returned for init code that does not deploy Frooties.
var ErrNotCreationCode = errors.New("not frooties creation code")

// Code is installed as the runtime code of deployed contracts. It starts with
// the INVALID opcode so bytecode interpreters abort on it.
var Code = append([]byte{0xfe}, []byte("FROOTIES")...)

var constructorArgs = mustConstructorArgs()

func mustConstructorArgs() abi.Arguments {
	addrType, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Name: "whitelistAdmin", Type: addrType}}
}

// CreationCode returns the init code deploying a contract whose whitelist
// signer is whitelistAdmin. The zero address selects the deployer.
func CreationCode(whitelistAdmin common.Address) []byte {
	args, err := constructorArgs.Pack(whitelistAdmin)
	if err != nil {
		panic(err)
	}
	return append(common.CopyBytes(Code), args...)
}

// IsCreationCode reports whether data deploys a Frooties contract.
func IsCreationCode(data []byte) bool {
	return bytes.HasPrefix(data, Code)
}

// ParseCreationCode returns the constructor arguments encoded in data.
func ParseCreationCode(data []byte) (common.Address, error) {
	if !IsCreationCode(data) {
		return common.Address{}, ErrNotCreationCode
	}
	rest := data[len(Code):]
	if len(rest) == 0 {
		return common.Address{}, nil
	}
	vals, err := constructorArgs.Unpack(rest)
	if err != nil {
		return common.Address{}, err
	}
	return vals[0].(common.Address), nil
}
