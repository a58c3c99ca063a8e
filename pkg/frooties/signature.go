package frooties

import (
	"crypto/ecdsa"
	"errors"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidSignature is returned for signatures that cannot be recovered.
var ErrInvalidSignature = errors.New("invalid signature")

// Verifier recovers the signer of a hash.
type Verifier interface {
	Recover(hash common.Hash, sig []byte) (common.Address, error)
}

// ECDSAVerifier recovers secp256k1 signatures in [R || S || V] form. As with
// ecrecover, V must be 27 or 28.
type ECDSAVerifier struct{}

// Recover implements Verifier.
func (ECDSAVerifier) Recover(hash common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}
	v := sig[crypto.RecoveryIDOffset]
	if v != 27 && v != 28 {
		return common.Address{}, ErrInvalidSignature
	}
	normalized := common.CopyBytes(sig)
	normalized[crypto.RecoveryIDOffset] = v - 27
	pub, err := crypto.SigToPub(hash.Bytes(), normalized)
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// WhitelistMessage is keccak256(abi.encodePacked(minter, contract)).
func WhitelistMessage(minter, contract common.Address) common.Hash {
	return crypto.Keccak256Hash(minter.Bytes(), contract.Bytes())
}

// WhitelistDigest is the personal-message hash a whitelist signature covers.
func WhitelistDigest(minter, contract common.Address) common.Hash {
	msg := WhitelistMessage(minter, contract)
	return common.BytesToHash(accounts.TextHash(msg.Bytes()))
}

// SignWhitelist produces the signature that admits minter to the whitelist
// mint of contract. key must belong to the whitelist admin.
func SignWhitelist(key *ecdsa.PrivateKey, minter, contract common.Address) ([]byte, error) {
	sig, err := crypto.Sign(WhitelistDigest(minter, contract).Bytes(), key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}
