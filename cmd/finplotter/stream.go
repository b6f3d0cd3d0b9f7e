package main

import (
	"finplotter/internal/indicator"
	"finplotter/internal/model"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"
)

func stream(c *cli.Context) error {
	series, err := loadSeries(c)
	if err != nil {
		return err
	}
	configs, err := indicator.ParseStreamSpecs(c.String("indicators"))
	if err != nil {
		return err
	}

	candles := series.Candles()
	engine := indicator.NewEngine(configs)
	in := make(chan indicator.SymbolCandle)
	out := make(chan model.IndicatorResult, series.Len()*len(configs))

	go func() {
		defer close(in)
		for _, cd := range candles {
			select {
			case in <- indicator.SymbolCandle{Symbol: series.Symbol, Candle: cd}:
			case <-c.Context.Done():
				return
			}
		}
	}()
	engine.Run(c.Context, in, out)
	close(out)

	byDate := make(map[int64]map[string]float64, series.Len())
	for r := range out {
		if !r.Ready {
			continue
		}
		row, ok := byDate[r.Date.Unix()]
		if !ok {
			row = make(map[string]float64, len(configs))
			byDate[r.Date.Unix()] = row
		}
		row[r.Name] = r.Value
	}

	t := newTable(c.App.Writer, series.Symbol+" streaming")
	header := table.Row{"Date", "Close"}
	for _, cfg := range configs {
		header = append(header, cfg.Key())
	}
	t.AppendHeader(header)
	numberColumns(t, 1, len(header))

	for _, cd := range series.Tail(c.Int("last")).Candles() {
		row := table.Row{cd.Date.Format(dateLayout), formatValue(cd.Close)}
		values := byDate[cd.Date.Unix()]
		for _, cfg := range configs {
			if v, ok := values[cfg.Key()]; ok {
				row = append(row, formatValue(v))
			} else {
				row = append(row, "")
			}
		}
		t.AppendRow(row)
	}
	t.Render()
	return nil
}
