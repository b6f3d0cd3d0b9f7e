package main

import (
	"github.com/urfave/cli/v2"
)

var commands = []*cli.Command{
	{
		Name:   "import",
		Usage:  "Load a CSV file of daily candles into the candle database",
		Action: importCSV,
		Flags:  []cli.Flag{dbFlag, csvFlag, symbolFlag},
	}, {
		Name:   "compute",
		Usage:  "Build the chart of a symbol and print its indicator values",
		Action: compute,
		Flags:  []cli.Flag{dbFlag, csvFlag, symbolFlag, setupFlag, limitFlag, lastFlag, jsonFlag},
	}, {
		Name:   "stream",
		Usage:  "Replay candles through the streaming indicators and print the results",
		Action: stream,
		Flags:  []cli.Flag{dbFlag, csvFlag, symbolFlag, indicatorsFlag, lastFlag},
	}, {
		Name:   "serve",
		Usage:  "Run the chart API, the WebSocket stream and the metrics endpoint",
		Action: serve,
		Flags:  []cli.Flag{envFileFlag, addrFlag},
	},
}
