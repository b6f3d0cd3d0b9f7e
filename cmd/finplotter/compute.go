package main

import (
	"encoding/json"

	"finplotter/internal/chart"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"
)

func compute(c *cli.Context) error {
	series, err := loadSeries(c)
	if err != nil {
		return err
	}

	setup := chart.DefaultSetup()
	if path := c.Path("setup"); path != "" {
		if setup, err = chart.LoadSetup(path); err != nil {
			return err
		}
	}

	ch, err := chart.Build(c.Context, series, setup)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(ch)
	}
	printChart(c, ch, c.Int("last"), series.HasVolume())
	return nil
}

// printChart renders the last rows of ch. The volume column is left out
// for series without volume data.
func printChart(c *cli.Context, ch *chart.Chart, last int, volume bool) {
	lines := ch.Lines()
	t := newTable(c.App.Writer, ch.Symbol)

	header := table.Row{"Date", "Open", "High", "Low", "Close"}
	if volume {
		header = append(header, "Volume")
	}
	for _, l := range lines {
		header = append(header, l.Name)
	}
	t.AppendHeader(header)
	numberColumns(t, 1, len(header))

	start := 0
	if last > 0 && len(ch.Candles) > last {
		start = len(ch.Candles) - last
	}
	for i := start; i < len(ch.Candles); i++ {
		cd := ch.Candles[i]
		row := table.Row{
			cd.Date.Format(dateLayout),
			formatValue(cd.Open), formatValue(cd.High), formatValue(cd.Low), formatValue(cd.Close),
		}
		if volume {
			row = append(row, formatValue(cd.Volume))
		}
		for _, l := range lines {
			if v, ok := l.At(i); ok {
				row = append(row, formatValue(v))
			} else {
				row = append(row, "")
			}
		}
		t.AppendRow(row)
	}
	t.Render()

	if len(ch.Annotations) == 0 {
		return
	}
	at := newTable(c.App.Writer, "Annotations")
	at.AppendHeader(table.Row{"Date", "Text", "Value"})
	numberColumns(at, 2, 3)
	for _, a := range ch.Annotations {
		at.AppendRow(table.Row{a.Date.Format(dateLayout), a.Text, formatValue(a.Value)})
	}
	at.Render()
}
