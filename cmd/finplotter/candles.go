package main

import (
	"path/filepath"
	"strings"

	"finplotter/internal/csvsource"
	"finplotter/internal/model"
	"finplotter/internal/store/sqlite"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

// loadSeries reads the candles named by --csv, or by --symbol from --db,
// keeping the most recent --limit when that flag is set.
func loadSeries(c *cli.Context) (*model.Series, error) {
	limit := 0
	if c.IsSet("limit") {
		limit = c.Int("limit")
	}

	symbol := c.String("symbol")
	var candles []model.Candle
	if path := c.Path("csv"); path != "" {
		if symbol == "" {
			symbol = symbolFromPath(path)
		}
		var err error
		if candles, err = csvsource.ReadFile(path); err != nil {
			return nil, err
		}
		series, err := model.NewSeries(symbol, candles)
		if err != nil {
			return nil, err
		}
		return series.Tail(limit), nil
	}

	if symbol == "" {
		return nil, errors.New("either --csv or --symbol is required")
	}
	r, err := sqlite.NewReader(c.Path("db"))
	if err != nil {
		return nil, err
	}
	//nolint:errcheck // read only
	defer r.Close()
	if candles, err = r.ReadCandles(c.Context, symbol, limit); err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, errors.Errorf("no candles stored for %q in %s", symbol, c.Path("db"))
	}
	return model.NewSeries(symbol, candles)
}

// symbolFromPath turns "data/aapl.csv" into "AAPL".
func symbolFromPath(path string) string {
	base := filepath.Base(path)
	return strings.ToUpper(strings.TrimSuffix(base, filepath.Ext(base)))
}
