package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/fbslo/frooties-contract/pkg/backend"
	"github.com/fbslo/frooties-contract/pkg/config"
	"github.com/fbslo/frooties-contract/pkg/metrics"
	"github.com/fbslo/frooties-contract/pkg/rpc"
)

const shutdownTimeout = 5 * time.Second

var nodeCommand = cli.Command{
	Name:  "node",
	Usage: "Run the simulator and serve JSON-RPC.",
	Description: "Start an in-memory chain with funded development " +
		"accounts, optionally deploy the Frooties contract, and " +
		"serve the Ethereum JSON-RPC API.",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:      "config, c",
			Usage:     "path to a JSON or YAML config file",
			TakesFile: true,
		},
		cli.StringFlag{
			Name:  "host",
			Usage: "the interface to listen on",
		},
		cli.IntFlag{
			Name:  "port, p",
			Usage: "the JSON-RPC port",
		},
		cli.IntFlag{
			Name:  "metrics-port",
			Usage: "serve Prometheus metrics on this port",
		},
		cli.Uint64Flag{
			Name:  "chain-id",
			Usage: "the chain ID",
		},
		cli.IntFlag{
			Name:  "accounts, a",
			Usage: "number of development accounts",
		},
		cli.StringFlag{
			Name:  "mnemonic, m",
			Usage: "BIP-39 mnemonic the accounts are derived from",
		},
		cli.Uint64Flag{
			Name:  "timestamp",
			Usage: "timestamp of the genesis block",
		},
		cli.DurationFlag{
			Name:  "block-time, b",
			Usage: "mine a block every interval instead of per transaction",
		},
		cli.BoolFlag{
			Name:  "no-mining",
			Usage: "only mine on evm_mine / hardhat_mine",
		},
		cli.BoolFlag{
			Name:  "auto-impersonate",
			Usage: "accept transactions from any sender",
		},
		cli.BoolFlag{
			Name:  "deploy",
			Usage: "deploy the Frooties contract at startup",
		},
		cli.StringFlag{
			Name:  "whitelist-admin",
			Usage: "address that signs whitelist proofs",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug logging",
		},
	},
	Action: runNode,
}

// nodeConfig builds the configuration from the config file and flags.
// Flags override the file.
func nodeConfig(ctx *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := ctx.String("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if ctx.IsSet("host") {
		cfg.Host = ctx.String("host")
	}
	if ctx.IsSet("port") {
		cfg.Port = ctx.Int("port")
	}
	if ctx.IsSet("metrics-port") {
		cfg.MetricsPort = ctx.Int("metrics-port")
	}
	if ctx.IsSet("chain-id") {
		cfg.ChainID = ctx.Uint64("chain-id")
	}
	if ctx.IsSet("accounts") {
		cfg.AccountCount = ctx.Int("accounts")
	}
	if ctx.IsSet("mnemonic") {
		cfg.Mnemonic = ctx.String("mnemonic")
	}
	if ctx.IsSet("timestamp") {
		cfg.GenesisTimestamp = ctx.Uint64("timestamp")
	}
	if ctx.IsSet("block-time") {
		cfg.MiningMode = "interval"
		cfg.BlockTime = ctx.Duration("block-time")
	}
	if ctx.Bool("no-mining") {
		cfg.MiningMode = "manual"
	}
	if ctx.Bool("auto-impersonate") {
		cfg.AutoImpersonate = true
	}
	if cfg.Frooties == nil {
		cfg.Frooties = config.DefaultFrooties()
	}
	if ctx.Bool("deploy") {
		cfg.Frooties.Deploy = true
	}
	if ctx.IsSet("whitelist-admin") {
		addr := ctx.String("whitelist-admin")
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid whitelist admin %q", addr)
		}
		cfg.Frooties.WhitelistAdmin = common.HexToAddress(addr)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runNode(ctx *cli.Context) error {
	cfg, err := nodeConfig(ctx)
	if err != nil {
		return err
	}
	logger, err := newLogger(ctx.Bool("debug"))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	sim, err := backend.New(backend.Options{Config: cfg, Logger: logger})
	if err != nil {
		return err
	}
	if err := sim.Start(); err != nil {
		return err
	}
	defer func() { _ = sim.Stop() }()

	printAccounts(sim)

	if cfg.ShouldDeploy() {
		deployer := sim.Accounts()[0]
		addr, err := sim.DeployFrooties(context.Background(), deployer, cfg.Frooties.WhitelistAdmin)
		if err != nil {
			return fmt.Errorf("deploy frooties: %w", err)
		}
		fmt.Printf("Frooties deployed at %s\n\n", addr.Hex())
	}

	servers := []*http.Server{rpc.NewServer(sim, cfg.AllowOrigin, logger).HTTPServer(cfg.ServerAddr())}
	if addr := cfg.MetricsAddr(); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		servers = append(servers, &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		srv := srv
		logger.Info("listening", zap.String("addr", srv.Addr))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.Stringer("signal", sig))
	case err = <-errCh:
		logger.Error("server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			logger.Warn("shutdown failed", zap.String("addr", srv.Addr), zap.Error(serr))
		}
	}
	return err
}

func printAccounts(sim *backend.Simulator) {
	fmt.Println("Available Accounts")
	fmt.Println("==================")
	for i, addr := range sim.Accounts() {
		fmt.Printf("(%d) %s (%s ETH)\n", i, addr.Hex(), weiToEther(sim.Balance(addr)))
	}
	fmt.Println()
	fmt.Println("Private Keys")
	fmt.Println("==================")
	for i, addr := range sim.Accounts() {
		key, ok := sim.PrivateKey(addr)
		if !ok {
			continue
		}
		fmt.Printf("(%d) 0x%x\n", i, crypto.FromECDSA(key))
	}
	fmt.Println()
}

func weiToEther(wei *big.Int) string {
	ether := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e18))
	return ether.Text('f', 0)
}
