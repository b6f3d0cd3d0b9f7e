package main

import (
	"github.com/urfave/cli/v2"
)

var globalFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	},
	&cli.StringFlag{
		Name:    "log-level",
		Usage:   "Log level: debug, info, warn or error",
		Value:   "info",
		EnvVars: []string{"LOG_LEVEL"},
	},
}

var (
	dbFlag = &cli.PathFlag{
		Name:    "db",
		Usage:   "SQLite candle database",
		Value:   "data/candles.db",
		EnvVars: []string{"SQLITE_PATH"},
	}
	csvFlag = &cli.PathFlag{
		Name:  "csv",
		Usage: "CSV file with Date,Open,High,Low,Close[,Volume] columns",
	}
	symbolFlag = &cli.StringFlag{
		Name:  "symbol",
		Usage: "Ticker symbol",
	}
	setupFlag = &cli.PathFlag{
		Name:    "setup",
		Usage:   "YAML chart setup, the default setup when empty",
		EnvVars: []string{"CHART_SETUP"},
	}
	limitFlag = &cli.IntFlag{
		Name:  "limit",
		Usage: "Use only the most recent N candles, 0 for all",
	}
	lastFlag = &cli.IntFlag{
		Name:  "last",
		Usage: "Print only the last N rows",
		Value: 10,
	}
	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "Print the full chart as JSON",
	}
	indicatorsFlag = &cli.StringFlag{
		Name:    "indicators",
		Usage:   "Streaming indicators, e.g. SMA:5,EMA:12,RSI:14",
		Value:   "SMA:5,SMA:26,EMA:12,EMA:26,RSI:14",
		EnvVars: []string{"STREAM_INDICATORS"},
	}
	envFileFlag = &cli.StringSliceFlag{
		Name:  "env-file",
		Usage: "Dotenv files to load when present (default .env.local)",
	}
	addrFlag = &cli.StringFlag{
		Name:  "addr",
		Usage: "HTTP listen address, overrides HTTP_ADDR",
	}
)
