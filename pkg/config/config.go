// Package config provides configuration management for the Frooties simulator.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tyler-smith/go-bip39"
	"gopkg.in/yaml.v3"

	"github.com/fbslo/frooties-contract/pkg/frooties"
)

// Default values.
var (
	DefaultChainID        = uint64(31337)
	DefaultGasLimit       = uint64(30000000)
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 8545
	DefaultAccountCount   = 20
	DefaultBalance        = new(big.Int).Mul(big.NewInt(10000), big.NewInt(1e18)) // 10000 ETH
	DefaultMnemonic       = "test test test test test test test test test test test junk"
	DefaultDerivationPath = "m/44'/60'/0'/0/"
	DefaultMiningMode     = "auto"
	DefaultBlockTime      = time.Duration(0)
	DefaultAllowOrigin    = "*"
	DefaultStageMode      = "schedule"
	DefaultReserveScope   = "global"
)

// Valid mining modes.
var validMiningModes = map[string]bool{
	"auto":     true,
	"interval": true,
	"manual":   true,
}

// Config defines the simulator configuration.
type Config struct {
	// Network configuration
	ChainID          uint64   `json:"chainId" yaml:"chainId"`
	GasLimit         uint64   `json:"gasLimit" yaml:"gasLimit"`
	BaseFee          *big.Int `json:"baseFee,omitempty" yaml:"baseFee,omitempty"`
	GenesisTimestamp uint64   `json:"genesisTimestamp,omitempty" yaml:"genesisTimestamp,omitempty"` // 0 = clock

	// Server configuration
	Host        string `json:"host" yaml:"host"`
	Port        int    `json:"port" yaml:"port"`
	MetricsPort int    `json:"metricsPort,omitempty" yaml:"metricsPort,omitempty"` // 0 = disabled

	// Account configuration
	AccountCount   int      `json:"accountCount" yaml:"accountCount"`
	DefaultBalance *big.Int `json:"defaultBalance" yaml:"defaultBalance"`
	Mnemonic       string   `json:"mnemonic" yaml:"mnemonic"`
	DerivationPath string   `json:"derivationPath" yaml:"derivationPath"`

	// Mining configuration
	MiningMode string        `json:"miningMode" yaml:"miningMode"` // auto, interval, manual
	BlockTime  time.Duration `json:"blockTime" yaml:"blockTime"`

	// Feature flags
	AutoImpersonate bool   `json:"autoImpersonate" yaml:"autoImpersonate"`
	AllowOrigin     string `json:"allowOrigin" yaml:"allowOrigin"`

	Frooties *FrootiesConfig `json:"frooties,omitempty" yaml:"frooties,omitempty"`
}

// FrootiesConfig defines the parameters of the Frooties deployment.
type FrootiesConfig struct {
	// Deploy deploys the contract from the first account at startup.
	Deploy bool `json:"deploy" yaml:"deploy"`

	// WhitelistAdmin signs whitelist proofs. Zero means the deployer.
	WhitelistAdmin common.Address `json:"whitelistAdmin" yaml:"whitelistAdmin"`

	StageMode      string   `json:"stageMode" yaml:"stageMode"` // schedule, manual
	WhitelistStart uint64   `json:"whitelistStart" yaml:"whitelistStart"`
	PublicStart    uint64   `json:"publicStart" yaml:"publicStart"`
	ReserveStart   uint64   `json:"reserveStart" yaml:"reserveStart"`
	Price          *big.Int `json:"price" yaml:"price"`
	WhitelistCap   uint64   `json:"whitelistCap" yaml:"whitelistCap"`
	PublicCap      uint64   `json:"publicCap" yaml:"publicCap"`
	ReserveCap     uint64   `json:"reserveCap" yaml:"reserveCap"`
	ReserveScope   string   `json:"reserveScope" yaml:"reserveScope"` // global, caller
	BaseURI        string   `json:"baseUri" yaml:"baseUri"`
}

// DefaultFrooties returns the Frooties section with default values.
func DefaultFrooties() *FrootiesConfig {
	return &FrootiesConfig{
		StageMode:      DefaultStageMode,
		WhitelistStart: frooties.DefaultSchedule.Whitelist,
		PublicStart:    frooties.DefaultSchedule.Public,
		ReserveStart:   frooties.DefaultSchedule.Reserve,
		Price:          new(big.Int).Set(frooties.DefaultPrice),
		WhitelistCap:   frooties.DefaultWhitelistCap,
		PublicCap:      frooties.DefaultPublicCap,
		ReserveCap:     frooties.DefaultReserveCap,
		ReserveScope:   DefaultReserveScope,
		BaseURI:        frooties.DefaultBaseURI,
	}
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		ChainID:        DefaultChainID,
		GasLimit:       DefaultGasLimit,
		Host:           DefaultHost,
		Port:           DefaultPort,
		AccountCount:   DefaultAccountCount,
		DefaultBalance: new(big.Int).Set(DefaultBalance),
		Mnemonic:       DefaultMnemonic,
		DerivationPath: DefaultDerivationPath,
		MiningMode:     DefaultMiningMode,
		BlockTime:      DefaultBlockTime,
		AllowOrigin:    DefaultAllowOrigin,
		Frooties:       DefaultFrooties(),
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.ChainID == 0 {
		errs = append(errs, "chainId must be greater than 0")
	}

	if c.GasLimit == 0 {
		errs = append(errs, "gasLimit must be greater than 0")
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		errs = append(errs, "metricsPort must be between 0 and 65535")
	}

	if c.AccountCount <= 0 {
		errs = append(errs, "accountCount must be greater than 0")
	}

	if !validMiningModes[c.MiningMode] {
		errs = append(errs, "miningMode must be one of: auto, interval, manual")
	}

	if c.MiningMode == "interval" && c.BlockTime <= 0 {
		errs = append(errs, "blockTime must be positive for interval mining")
	}

	if c.Mnemonic != "" && !bip39.IsMnemonicValid(c.Mnemonic) {
		errs = append(errs, "mnemonic is invalid")
	}

	if c.Frooties != nil {
		if _, err := c.Frooties.ContractConfig(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// ContractConfig converts the section into deployment parameters.
func (f *FrootiesConfig) ContractConfig() (frooties.Config, error) {
	cfg := frooties.DefaultConfig()

	mode, err := frooties.ParseStageMode(f.StageMode)
	if err != nil {
		return cfg, fmt.Errorf("frooties: %w", err)
	}
	scope, err := frooties.ParseReserveScope(f.ReserveScope)
	if err != nil {
		return cfg, fmt.Errorf("frooties: %w", err)
	}

	cfg.Mode = mode
	cfg.ReserveScope = scope
	cfg.Schedule = frooties.Schedule{
		Whitelist: f.WhitelistStart,
		Public:    f.PublicStart,
		Reserve:   f.ReserveStart,
	}
	if cfg.Mode == frooties.ModeSchedule && (cfg.Schedule.Whitelist > cfg.Schedule.Public || cfg.Schedule.Public > cfg.Schedule.Reserve) {
		return cfg, errors.New("frooties: phase start times must be ordered whitelist <= public <= reserve")
	}
	if f.Price != nil {
		if f.Price.Sign() < 0 {
			return cfg, errors.New("frooties: price must not be negative")
		}
		cfg.Price = new(big.Int).Set(f.Price)
	}
	if f.WhitelistCap != 0 {
		cfg.WhitelistCap = f.WhitelistCap
	}
	if f.PublicCap != 0 {
		cfg.PublicCap = f.PublicCap
	}
	if f.ReserveCap != 0 {
		cfg.ReserveCap = f.ReserveCap
	}
	if f.BaseURI != "" {
		cfg.BaseURI = f.BaseURI
	}
	if cfg.WhitelistCap > frooties.MaxCap || cfg.PublicCap > frooties.MaxCap || cfg.ReserveCap > frooties.MaxCap {
		return cfg, fmt.Errorf("frooties: mint caps must not exceed %d", frooties.MaxCap)
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a JSON or YAML file. The format is
// chosen by extension.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Merge with defaults
	merged := MergeWithDefaults(&cfg)

	return merged, nil
}

// MergeWithDefaults merges partial config with default values.
func MergeWithDefaults(partial *Config) *Config {
	def := Default()

	if partial.ChainID != 0 {
		def.ChainID = partial.ChainID
	}
	if partial.GasLimit != 0 {
		def.GasLimit = partial.GasLimit
	}
	if partial.BaseFee != nil {
		def.BaseFee = partial.BaseFee
	}
	if partial.GenesisTimestamp != 0 {
		def.GenesisTimestamp = partial.GenesisTimestamp
	}
	if partial.Host != "" {
		def.Host = partial.Host
	}
	if partial.Port != 0 {
		def.Port = partial.Port
	}
	if partial.MetricsPort != 0 {
		def.MetricsPort = partial.MetricsPort
	}
	if partial.AccountCount != 0 {
		def.AccountCount = partial.AccountCount
	}
	if partial.DefaultBalance != nil {
		def.DefaultBalance = partial.DefaultBalance
	}
	if partial.Mnemonic != "" {
		def.Mnemonic = partial.Mnemonic
	}
	if partial.DerivationPath != "" {
		def.DerivationPath = partial.DerivationPath
	}
	if partial.MiningMode != "" {
		def.MiningMode = partial.MiningMode
	}
	if partial.BlockTime != 0 {
		def.BlockTime = partial.BlockTime
	}
	if partial.AllowOrigin != "" {
		def.AllowOrigin = partial.AllowOrigin
	}
	def.AutoImpersonate = partial.AutoImpersonate
	if partial.Frooties != nil {
		def.Frooties = mergeFrooties(partial.Frooties)
	}

	return def
}

func mergeFrooties(partial *FrootiesConfig) *FrootiesConfig {
	def := DefaultFrooties()

	def.Deploy = partial.Deploy
	def.WhitelistAdmin = partial.WhitelistAdmin
	if partial.StageMode != "" {
		def.StageMode = partial.StageMode
	}
	if partial.WhitelistStart != 0 {
		def.WhitelistStart = partial.WhitelistStart
	}
	if partial.PublicStart != 0 {
		def.PublicStart = partial.PublicStart
	}
	if partial.ReserveStart != 0 {
		def.ReserveStart = partial.ReserveStart
	}
	if partial.Price != nil {
		def.Price = partial.Price
	}
	if partial.WhitelistCap != 0 {
		def.WhitelistCap = partial.WhitelistCap
	}
	if partial.PublicCap != 0 {
		def.PublicCap = partial.PublicCap
	}
	if partial.ReserveCap != 0 {
		def.ReserveCap = partial.ReserveCap
	}
	if partial.ReserveScope != "" {
		def.ReserveScope = partial.ReserveScope
	}
	if partial.BaseURI != "" {
		def.BaseURI = partial.BaseURI
	}

	return def
}

// Copy creates a deep copy of the configuration.
func (c *Config) Copy() *Config {
	copied := *c

	// Deep copy big.Int fields
	if c.DefaultBalance != nil {
		copied.DefaultBalance = new(big.Int).Set(c.DefaultBalance)
	}
	if c.BaseFee != nil {
		copied.BaseFee = new(big.Int).Set(c.BaseFee)
	}

	if c.Frooties != nil {
		frootiesCopy := *c.Frooties
		if c.Frooties.Price != nil {
			frootiesCopy.Price = new(big.Int).Set(c.Frooties.Price)
		}
		copied.Frooties = &frootiesCopy
	}

	return &copied
}

// ServerAddr returns the server address string.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MetricsAddr returns the metrics listen address, or "" when disabled.
func (c *Config) MetricsAddr() string {
	if c.MetricsPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// IsAutomine returns true if auto-mining is enabled.
func (c *Config) IsAutomine() bool {
	return c.MiningMode == "auto"
}

// IsIntervalMining returns true if interval mining is enabled.
func (c *Config) IsIntervalMining() bool {
	return c.MiningMode == "interval"
}

// IsManualMining returns true if manual mining is enabled.
func (c *Config) IsManualMining() bool {
	return c.MiningMode == "manual"
}

// ShouldDeploy returns true if Frooties is deployed at startup.
func (c *Config) ShouldDeploy() bool {
	return c.Frooties != nil && c.Frooties.Deploy
}
