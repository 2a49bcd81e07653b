// yentkit encodes text for transformer models and post-processes their scores.
package main

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	cli "gopkg.in/urfave/cli.v1"
)

var gitCommit = "" // set via linker flags

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML or YAML configuration file",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Value: 3,
		Usage: "Logging verbosity: 0=crit, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
	}
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "yentkit"
	app.Usage = "tokenize text and decode model scores"
	app.Version = "0.3.0"
	if gitCommit != "" {
		app.Version += "-" + gitCommit
	}
	app.Flags = []cli.Flag{configFileFlag, verbosityFlag}
	app.Before = func(ctx *cli.Context) error {
		setupLogging(ctx.GlobalInt(verbosityFlag.Name))
		return nil
	}
	app.Commands = []cli.Command{
		encodeCommand,
		decodeCommand,
		classifyCommand,
		nmsCommand,
		ctcCommand,
		runCommand,
		detectCommand,
	}
	return app
}

func setupLogging(verbosity int) {
	lvl := log.FromLegacyLevel(verbosity)
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, lvl, true)))
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
