package main

import (
	"flag"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"

	"github.com/fbslo/frooties-contract/pkg/config"
)

func nodeContext(t *testing.T, args ...string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("node", flag.ContinueOnError)
	for _, f := range nodeCommand.Flags {
		f.Apply(set)
	}
	require.NoError(t, set.Parse(args))
	return cli.NewContext(newApp(), set, nil)
}

func TestNodeConfig_Defaults(t *testing.T) {
	cfg, err := nodeConfig(nodeContext(t))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultChainID, cfg.ChainID)
	assert.Equal(t, config.DefaultPort, cfg.Port)
	assert.True(t, cfg.IsAutomine())
	assert.False(t, cfg.ShouldDeploy())
}

func TestNodeConfig_Flags(t *testing.T) {
	admin := "0x220866B1A2219f40e72f5c628B65D54268cA3A9D"
	cfg, err := nodeConfig(nodeContext(t,
		"-port", "9545",
		"-accounts", "3",
		"-block-time", "2s",
		"-deploy",
		"-whitelist-admin", admin,
	))
	require.NoError(t, err)

	assert.Equal(t, 9545, cfg.Port)
	assert.Equal(t, 3, cfg.AccountCount)
	assert.True(t, cfg.IsIntervalMining())
	assert.Equal(t, 2*time.Second, cfg.BlockTime)
	assert.True(t, cfg.ShouldDeploy())
	assert.Equal(t, common.HexToAddress(admin), cfg.Frooties.WhitelistAdmin)
}

func TestNodeConfig_NoMining(t *testing.T) {
	cfg, err := nodeConfig(nodeContext(t, "-no-mining"))
	require.NoError(t, err)
	assert.True(t, cfg.IsManualMining())
}

func TestNodeConfig_Invalid(t *testing.T) {
	_, err := nodeConfig(nodeContext(t, "-whitelist-admin", "nope"))
	assert.Error(t, err)

	_, err = nodeConfig(nodeContext(t, "-mnemonic", "not a valid mnemonic"))
	assert.Error(t, err)
}

func TestNodeConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chainId: 1337\nport: 8600\n"), 0o600))

	cfg, err := nodeConfig(nodeContext(t, "-config", path, "-port", "8700"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1337), cfg.ChainID)
	assert.Equal(t, 8700, cfg.Port)
}

func TestWeiToEther(t *testing.T) {
	assert.Equal(t, "10000", weiToEther(config.DefaultBalance))
	assert.Equal(t, "0", weiToEther(big.NewInt(0)))
}
