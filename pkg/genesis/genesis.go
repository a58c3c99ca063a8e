// Package genesis provides genesis state and block creation for the simulator.
package genesis

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/tyler-smith/go-bip39"

	"github.com/fbslo/frooties-contract/pkg/config"
	"github.com/fbslo/frooties-contract/pkg/state"
)

// ErrInvalidMnemonic is returned for mnemonics that fail the BIP-39 checksum.
var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// Account represents a test account with its private key.
type Account struct {
	Address    common.Address
	PrivateKey *ecdsa.PrivateKey
}

// GenerateAccounts derives count accounts from a mnemonic along the default
// Ethereum path m/44'/60'/0'/0/i.
func GenerateAccounts(mnemonic string, count int) ([]*Account, error) {
	return GenerateAccountsAt(mnemonic, config.DefaultDerivationPath, count)
}

// GenerateAccountsAt derives count accounts below basePath. The account index
// is appended as the last, non-hardened, path component.
func GenerateAccountsAt(mnemonic, basePath string, count int) ([]*Account, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	base, err := accounts.ParseDerivationPath(strings.TrimSuffix(basePath, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid derivation path %q: %w", basePath, err)
	}

	seed := bip39.NewSeed(mnemonic, "")
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}

	parent := master
	for _, index := range base {
		if parent, err = parent.Derive(index); err != nil {
			return nil, fmt.Errorf("failed to derive %s: %w", basePath, err)
		}
	}

	accs := make([]*Account, count)
	for i := 0; i < count; i++ {
		key, err := deriveKey(parent, uint32(i))
		if err != nil {
			return nil, fmt.Errorf("failed to derive key %d: %w", i, err)
		}

		accs[i] = &Account{
			Address:    crypto.PubkeyToAddress(key.PublicKey),
			PrivateKey: key,
		}
	}

	return accs, nil
}

func deriveKey(parent *hdkeychain.ExtendedKey, index uint32) (*ecdsa.PrivateKey, error) {
	child, err := parent.Derive(index)
	if err != nil {
		return nil, err
	}
	priv, err := child.ECPrivKey()
	if err != nil {
		return nil, err
	}
	return crypto.ToECDSA(priv.Serialize())
}

// CreateGenesis builds the genesis block with funded development accounts.
func CreateGenesis(cfg *config.Config) (*core.Genesis, []*Account, error) {
	accs, err := GenerateAccountsAt(cfg.Mnemonic, cfg.DerivationPath, cfg.AccountCount)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate accounts: %w", err)
	}

	alloc := make(core.GenesisAlloc)
	for _, acc := range accs {
		alloc[acc.Address] = core.GenesisAccount{
			Balance: new(big.Int).Set(cfg.DefaultBalance),
		}
	}

	genesis := &core.Genesis{
		Config:     createChainConfig(cfg.ChainID),
		Nonce:      0,
		Timestamp:  cfg.GenesisTimestamp,
		GasLimit:   cfg.GasLimit,
		Difficulty: big.NewInt(0),
		BaseFee:    cfg.BaseFee,
		Alloc:      alloc,
	}

	return genesis, accs, nil
}

// createChainConfig creates a chain configuration with every fork active
// from genesis.
func createChainConfig(chainID uint64) *params.ChainConfig {
	return &params.ChainConfig{
		ChainID:                       new(big.Int).SetUint64(chainID),
		HomesteadBlock:                big.NewInt(0),
		EIP150Block:                   big.NewInt(0),
		EIP155Block:                   big.NewInt(0),
		EIP158Block:                   big.NewInt(0),
		ByzantiumBlock:                big.NewInt(0),
		ConstantinopleBlock:           big.NewInt(0),
		PetersburgBlock:               big.NewInt(0),
		IstanbulBlock:                 big.NewInt(0),
		MuirGlacierBlock:              big.NewInt(0),
		BerlinBlock:                   big.NewInt(0),
		LondonBlock:                   big.NewInt(0),
		ArrowGlacierBlock:             big.NewInt(0),
		GrayGlacierBlock:              big.NewInt(0),
		TerminalTotalDifficulty:       big.NewInt(0),
		TerminalTotalDifficultyPassed: true,
		ShanghaiTime:                  new(uint64),
		CancunTime:                    new(uint64),
	}
}

// Apply writes the genesis allocation into the state.
func Apply(g *core.Genesis, w state.Writer) error {
	for addr, acc := range g.Alloc {
		if acc.Balance != nil {
			if err := w.SetBalance(addr, acc.Balance); err != nil {
				return fmt.Errorf("genesis balance %s: %w", addr, err)
			}
		}
		if acc.Nonce != 0 {
			if err := w.SetNonce(addr, acc.Nonce); err != nil {
				return fmt.Errorf("genesis nonce %s: %w", addr, err)
			}
		}
		if len(acc.Code) > 0 {
			if err := w.SetCode(addr, acc.Code); err != nil {
				return fmt.Errorf("genesis code %s: %w", addr, err)
			}
		}
		for slot, value := range acc.Storage {
			if err := w.SetStorageAt(addr, slot, value); err != nil {
				return fmt.Errorf("genesis storage %s: %w", addr, err)
			}
		}
	}
	return nil
}

// Block builds block zero on top of an already applied allocation.
func Block(g *core.Genesis, root common.Hash, coinbase common.Address) *types.Block {
	header := &types.Header{
		ParentHash: common.Hash{},
		Number:     big.NewInt(0),
		Time:       g.Timestamp,
		GasLimit:   g.GasLimit,
		Difficulty: new(big.Int),
		Coinbase:   coinbase,
		Root:       root,
		Extra:      g.ExtraData,
	}
	if g.Difficulty != nil {
		header.Difficulty.Set(g.Difficulty)
	}
	if g.BaseFee != nil {
		header.BaseFee = new(big.Int).Set(g.BaseFee)
	} else {
		header.BaseFee = big.NewInt(params.InitialBaseFee)
	}
	return types.NewBlock(header, nil, nil, nil, trie.NewStackTrie(nil))
}
