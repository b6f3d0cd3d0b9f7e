package main

import (
	"fmt"
	"log/slog"

	"finplotter/internal/csvsource"
	"finplotter/internal/store/sqlite"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func importCSV(c *cli.Context) error {
	path := c.Path("csv")
	if path == "" {
		return errors.New("--csv is required")
	}
	symbol := c.String("symbol")
	if symbol == "" {
		symbol = symbolFromPath(path)
	}

	candles, err := csvsource.ReadFile(path)
	if err != nil {
		return err
	}

	store, err := sqlite.Open(c.Path("db"))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("close store failed", "component", "cli", "error", err)
		}
	}()

	if err := store.WriteCandles(c.Context, symbol, candles); err != nil {
		return errors.Wrapf(err, "import %s", path)
	}
	last, err := store.LastDate(c.Context, symbol)
	if err != nil {
		return errors.Wrapf(err, "last date of %s", symbol)
	}
	slog.Debug("imported", "component", "cli", "symbol", symbol, "candles", len(candles))
	fmt.Fprintf(c.App.Writer, "imported %d candles of %s into %s, stored through %s\n",
		len(candles), symbol, c.Path("db"), last.Format(dateLayout))
	return nil
}
