package main

import (
	"fmt"
	"log/slog"
	"os"

	"finplotter/internal/logger"

	"github.com/urfave/cli/v2"
)

const serviceName = "finplotter"

var version = "dev"

func main() {
	app := &cli.App{
		Name:     serviceName,
		Usage:    "Compute stock charts and technical indicators from OHLCV candles",
		Version:  version,
		Before:   before,
		Flags:    globalFlags,
		Commands: commands,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// before installs a text logger on stderr so command output on stdout
// stays clean. serve replaces it with the JSON logger.
func before(c *cli.Context) error {
	level, err := cliLevel(c)
	if err != nil {
		return err
	}
	logger.InitText(os.Stderr, serviceName, level)
	return nil
}

func cliLevel(c *cli.Context) (slog.Level, error) {
	if c.Bool("debug") {
		return slog.LevelDebug, nil
	}
	return logger.ParseLevel(c.String("log-level"))
}
