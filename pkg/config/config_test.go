package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fbslo/frooties-contract/pkg/frooties"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, uint64(31337), cfg.ChainID)
	assert.Equal(t, uint64(30000000), cfg.GasLimit)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8545, cfg.Port)
	assert.Equal(t, 20, cfg.AccountCount)
	assert.Equal(t, DefaultMnemonic, cfg.Mnemonic)
	assert.Equal(t, "m/44'/60'/0'/0/", cfg.DerivationPath)
	assert.Equal(t, "auto", cfg.MiningMode)
	assert.Equal(t, time.Duration(0), cfg.BlockTime)
	assert.Equal(t, "*", cfg.AllowOrigin)

	// Default balance should be 10000 ETH
	expectedBalance := new(big.Int).Mul(big.NewInt(10000), big.NewInt(1e18))
	assert.Equal(t, expectedBalance, cfg.DefaultBalance)

	require.NotNil(t, cfg.Frooties)
	assert.False(t, cfg.Frooties.Deploy)
	assert.Equal(t, uint64(1651845600), cfg.Frooties.WhitelistStart)
	assert.Equal(t, uint64(1651849200), cfg.Frooties.PublicStart)
	assert.Equal(t, uint64(1651860000), cfg.Frooties.ReserveStart)
	assert.Equal(t, frooties.DefaultPrice, cfg.Frooties.Price)
	assert.Equal(t, "schedule", cfg.Frooties.StageMode)
	assert.Equal(t, "global", cfg.Frooties.ReserveScope)
}

func TestConfigValidation_Valid(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	assert.NoError(t, err)
}

func TestConfigValidation_InvalidChainID(t *testing.T) {
	cfg := Default()
	cfg.ChainID = 0

	err := cfg.Validate()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "chainId")
}

func TestConfigValidation_InvalidPort(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"negative", -1},
		{"zero", 0},
		{"too high", 65536},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Port = tt.port

			err := cfg.Validate()

			assert.Error(t, err)
			assert.Contains(t, err.Error(), "port")
		})
	}
}

func TestConfigValidation_InvalidAccountCount(t *testing.T) {
	cfg := Default()
	cfg.AccountCount = 0

	err := cfg.Validate()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accountCount")
}

func TestConfigValidation_InvalidMiningMode(t *testing.T) {
	cfg := Default()
	cfg.MiningMode = "invalid"

	err := cfg.Validate()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "miningMode")
}

func TestConfigValidation_InvalidMnemonic(t *testing.T) {
	cfg := Default()
	cfg.Mnemonic = "invalid mnemonic"

	err := cfg.Validate()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "mnemonic")
}

func TestConfigValidation_InvalidGasLimit(t *testing.T) {
	cfg := Default()
	cfg.GasLimit = 0

	err := cfg.Validate()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "gasLimit")
}

func TestLoadFromFile(t *testing.T) {
	// Create temp config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	configJSON := `{
		"chainId": 12345,
		"port": 9999,
		"accountCount": 5,
		"miningMode": "manual"
	}`

	err := os.WriteFile(configPath, []byte(configJSON), 0644)
	require.NoError(t, err)

	cfg, err := LoadFromFile(configPath)

	require.NoError(t, err)
	assert.Equal(t, uint64(12345), cfg.ChainID)
	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, 5, cfg.AccountCount)
	assert.Equal(t, "manual", cfg.MiningMode)
	// Defaults should be applied for missing fields
	assert.Equal(t, "127.0.0.1", cfg.Host)
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.json")
	assert.Error(t, err)
}

func TestLoadFromFile_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	err := os.WriteFile(configPath, []byte("invalid json"), 0644)
	require.NoError(t, err)

	_, err = LoadFromFile(configPath)
	assert.Error(t, err)
}

func TestConfigCopy(t *testing.T) {
	cfg := Default()
	cfg.ChainID = 12345

	copied := cfg.Copy()

	// Modify original
	cfg.ChainID = 99999

	// Copy should be unchanged
	assert.Equal(t, uint64(12345), copied.ChainID)
}

func TestMergeWithDefaults(t *testing.T) {
	partial := &Config{
		ChainID: 12345,
		Port:    9999,
	}

	merged := MergeWithDefaults(partial)

	assert.Equal(t, uint64(12345), merged.ChainID)
	assert.Equal(t, 9999, merged.Port)
	// Defaults applied
	assert.Equal(t, "127.0.0.1", merged.Host)
	assert.Equal(t, 20, merged.AccountCount)
	assert.NotNil(t, merged.DefaultBalance)
}

func TestConfigValidation_IntervalNeedsBlockTime(t *testing.T) {
	cfg := Default()
	cfg.MiningMode = "interval"

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "blockTime")

	cfg.BlockTime = time.Second
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidation_Frooties(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *FrootiesConfig)
		want   string
	}{
		{"bad stage mode", func(f *FrootiesConfig) { f.StageMode = "weekly" }, "stage mode"},
		{"bad reserve scope", func(f *FrootiesConfig) { f.ReserveScope = "team" }, "reserve scope"},
		{"negative price", func(f *FrootiesConfig) { f.Price = big.NewInt(-1) }, "price"},
		{"unordered schedule", func(f *FrootiesConfig) { f.PublicStart = f.WhitelistStart - 1 }, "ordered"},
		{"whitelist cap too large", func(f *FrootiesConfig) { f.WhitelistCap = frooties.MaxCap + 1 }, "mint caps"},
		{"public cap too large", func(f *FrootiesConfig) { f.PublicCap = frooties.MaxCap + 1 }, "mint caps"},
		{"reserve cap too large", func(f *FrootiesConfig) { f.ReserveCap = 1 << 40 }, "mint caps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg.Frooties)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFrootiesContractConfig(t *testing.T) {
	f := DefaultFrooties()
	f.StageMode = "manual"
	f.ReserveScope = "caller"
	f.ReserveCap = 10
	f.BaseURI = "ipfs://frooties/"

	cfg, err := f.ContractConfig()
	require.NoError(t, err)
	assert.Equal(t, frooties.ModeManual, cfg.Mode)
	assert.Equal(t, frooties.ReservePerCaller, cfg.ReserveScope)
	assert.Equal(t, uint64(10), cfg.ReserveCap)
	assert.Equal(t, uint64(frooties.DefaultWhitelistCap), cfg.WhitelistCap)
	assert.Equal(t, "ipfs://frooties/", cfg.BaseURI)
	assert.Equal(t, frooties.DefaultSchedule, cfg.Schedule)
}

func TestLoadFromFile_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configYAML := `
chainId: 1337
miningMode: interval
blockTime: 2s
frooties:
  deploy: true
  whitelistAdmin: "0x4a1Fdd0B0F1bC2E1d1f0b4C8D7bFe1B2fB6d0C9E"
  stageMode: manual
  price: "10000000000000000"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configYAML), 0644))

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, uint64(1337), cfg.ChainID)
	assert.Equal(t, "interval", cfg.MiningMode)
	assert.Equal(t, 2*time.Second, cfg.BlockTime)
	assert.Equal(t, 8545, cfg.Port)
	require.True(t, cfg.ShouldDeploy())
	assert.Equal(t, common.HexToAddress("0x4a1Fdd0B0F1bC2E1d1f0b4C8D7bFe1B2fB6d0C9E"), cfg.Frooties.WhitelistAdmin)
	assert.Equal(t, "manual", cfg.Frooties.StageMode)
	assert.Equal(t, big.NewInt(1e16), cfg.Frooties.Price)
	// Unset fields keep their defaults
	assert.Equal(t, uint64(1651849200), cfg.Frooties.PublicStart)
	assert.Equal(t, uint64(frooties.DefaultReserveCap), cfg.Frooties.ReserveCap)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yml")

	require.NoError(t, os.WriteFile(configPath, []byte("chainId: [1, 2"), 0644))

	_, err := LoadFromFile(configPath)
	assert.Error(t, err)
}

func TestConfigCopy_Frooties(t *testing.T) {
	cfg := Default()
	copied := cfg.Copy()

	cfg.Frooties.Price.SetInt64(1)
	cfg.Frooties.Deploy = true

	assert.Equal(t, frooties.DefaultPrice, copied.Frooties.Price)
	assert.False(t, copied.Frooties.Deploy)
}

func TestMetricsAddr(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "", cfg.MetricsAddr())
	assert.Equal(t, "127.0.0.1:8545", cfg.ServerAddr())

	cfg.MetricsPort = 9090
	assert.Equal(t, "127.0.0.1:9090", cfg.MetricsAddr())
}
