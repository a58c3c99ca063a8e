// Package main provides the entry point for the Frooties simulator.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "frooties-sim"
	app.Version = Version
	app.Usage = "local chain simulator for the Frooties minting contract"
	app.Commands = []cli.Command{
		nodeCommand,
		accountsCommand,
		signWhitelistCommand,
	}
	return app
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[frooties-sim] %v\n", err)
	os.Exit(1)
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}
