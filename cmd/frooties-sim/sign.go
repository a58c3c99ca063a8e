package main

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli"

	"github.com/fbslo/frooties-contract/pkg/config"
	"github.com/fbslo/frooties-contract/pkg/frooties"
	"github.com/fbslo/frooties-contract/pkg/genesis"
)

var signWhitelistCommand = cli.Command{
	Name:      "sign-whitelist",
	ShortName: "sw",
	Usage:     "Sign a whitelist proof for a minter.",
	Description: "Sign keccak256(minter, contract) with the whitelist " +
		"admin key. The signature is passed to whitelistMint.",
	ArgsUsage: "minter contract",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:   "key, k",
			Usage:  "hex private key of the whitelist admin",
			EnvVar: "FROOTIES_WHITELIST_KEY",
		},
	},
	Action: signWhitelist,
}

func signWhitelist(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return cli.ShowCommandHelp(ctx, "sign-whitelist")
	}
	minter, contract := ctx.Args().Get(0), ctx.Args().Get(1)
	if !common.IsHexAddress(minter) {
		return fmt.Errorf("invalid minter address %q", minter)
	}
	if !common.IsHexAddress(contract) {
		return fmt.Errorf("invalid contract address %q", contract)
	}

	keyHex := strings.TrimPrefix(ctx.String("key"), "0x")
	if keyHex == "" {
		return fmt.Errorf("missing --key")
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return fmt.Errorf("invalid key: %w", err)
	}

	sig, err := frooties.SignWhitelist(key, common.HexToAddress(minter), common.HexToAddress(contract))
	if err != nil {
		return err
	}
	fmt.Println(hexutil.Encode(sig))
	return nil
}

var accountsCommand = cli.Command{
	Name:  "accounts",
	Usage: "List the development accounts derived from a mnemonic.",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "mnemonic, m",
			Value: config.DefaultMnemonic,
			Usage: "BIP-39 mnemonic",
		},
		cli.StringFlag{
			Name:  "path",
			Value: config.DefaultDerivationPath,
			Usage: "base derivation path",
		},
		cli.IntFlag{
			Name:  "count, n",
			Value: config.DefaultAccountCount,
			Usage: "number of accounts",
		},
	},
	Action: listAccounts,
}

func listAccounts(ctx *cli.Context) error {
	accs, err := genesis.GenerateAccountsAt(ctx.String("mnemonic"), ctx.String("path"), ctx.Int("count"))
	if err != nil {
		return err
	}
	for i, acc := range accs {
		fmt.Printf("(%d) %s 0x%x\n", i, acc.Address.Hex(), crypto.FromECDSA(acc.PrivateKey))
	}
	return nil
}
