package chart

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"finplotter/internal/indicator"
	"finplotter/internal/model"
)

// MaxAnnotation is the text of the highest-high annotation.
const MaxAnnotation = "Max"

var (
	oscillatorRange = [2]float64{0, 100}
	rsiLevels       = []float64{30, 50, 70}
	stochLevels     = []float64{20, 50, 80}
)

// Builder computes charts for a setup.
type Builder struct {
	Setup Setup

	// Observe, when set, receives the compute time of every indicator.
	Observe func(indicator string, took time.Duration)
}

// Build computes a chart for s with setup.
func Build(ctx context.Context, s *model.Series, setup Setup) (*Chart, error) {
	b := &Builder{Setup: setup}
	return b.Build(ctx, s)
}

// Build computes every indicator of the setup concurrently and assembles the chart.
// The first indicator error cancels the rest and is returned.
func (b *Builder) Build(ctx context.Context, s *model.Series) (*Chart, error) {
	if s == nil || s.Len() == 0 {
		return nil, errors.Wrap(indicator.ErrEmptySeries, "chart")
	}
	setup := b.Setup
	if err := setup.Validate(); err != nil {
		return nil, err
	}

	n := s.Len()
	smas := make([]Line, len(setup.SMAs))
	emas := make([]Line, len(setup.EMAs))
	var (
		boll  []Line
		macd  *Panel
		rsi   *Panel
		stoch *Panel
	)

	g, ctx := errgroup.WithContext(ctx)
	run := func(name string, fn func() error) {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			if err := fn(); err != nil {
				return errors.Wrapf(err, "%s %s", s.Symbol, name)
			}
			if b.Observe != nil {
				b.Observe(name, time.Since(start))
			}
			return nil
		})
	}

	for i, period := range setup.SMAs {
		i, period := i, period
		run("sma", func() error {
			values, err := indicator.SMA(s.Close, period)
			if err != nil {
				return err
			}
			smas[i] = newLine(fmt.Sprintf("%d SMA", period), n, values)
			return nil
		})
	}

	for i, period := range setup.EMAs {
		i, period := i, period
		run("ema", func() error {
			values, err := indicator.EMA(s.Close, period)
			if err != nil {
				return err
			}
			emas[i] = newLine(fmt.Sprintf("%d EMA", period), n, values)
			return nil
		})
	}

	if setup.Bollinger.Enabled {
		cfg := setup.Bollinger
		run("bollinger", func() error {
			lower, middle, upper, err := indicator.BollingerBandsK(s.Close, cfg.Period, cfg.K)
			if err != nil {
				return err
			}
			prefix := fmt.Sprintf("BB %d,%g", cfg.Period, cfg.K)
			boll = []Line{
				newLine(prefix+" lower", n, lower),
				newLine(prefix+" middle", n, middle),
				newLine(prefix+" upper", n, upper),
			}
			return nil
		})
	}

	if setup.MACD.Enabled {
		cfg := setup.MACD
		run("macd", func() error {
			_, _, line, err := indicator.MACD(s.Close, cfg.Fast, cfg.Slow)
			if err != nil {
				return err
			}
			signal, div, err := indicator.MACDSignal(line, cfg.Signal)
			if err != nil {
				return err
			}
			fill := newLine("divergence", n, div)
			macd = &Panel{
				Title: fmt.Sprintf("MACD %d,%d,%d", cfg.Fast, cfg.Slow, cfg.Signal),
				Lines: []Line{newLine("macd", n, line), newLine("signal", n, signal)},
				Fill:  &fill,
			}
			return nil
		})
	}

	if setup.RSI.Enabled {
		cfg := setup.RSI
		run("rsi", func() error {
			values, err := indicator.RSI(s.Close, cfg.Period)
			if err != nil {
				return err
			}
			r := oscillatorRange
			rsi = &Panel{
				Title:  fmt.Sprintf("RSI %d", cfg.Period),
				Range:  &r,
				Levels: rsiLevels,
				Lines:  []Line{newLine("rsi", n, values)},
			}
			return nil
		})
	}

	if setup.Stochastic.Enabled {
		cfg := setup.Stochastic
		run("stochastic", func() error {
			k, d, err := indicator.SlowStochastic(s.Low, s.High, s.Close, cfg.Period, cfg.Smoothing)
			if err != nil {
				return err
			}
			r := oscillatorRange
			stoch = &Panel{
				Title:  fmt.Sprintf("SLOW STOCH %d, %d", cfg.Period, cfg.Smoothing),
				Range:  &r,
				Levels: stochLevels,
				Lines:  []Line{newLine("%K", n, k), newLine("%D", n, d)},
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	c := &Chart{
		Symbol:   s.Symbol,
		Setup:    setup,
		Candles:  s.Candles(),
		Overlays: append(append(smas, emas...), boll...),
		Panels:   make([]Panel, 0, 3),
	}
	for _, p := range []*Panel{macd, rsi, stoch} {
		if p != nil {
			c.Panels = append(c.Panels, *p)
		}
	}
	if setup.Volume {
		c.Volume = volumeOverlay(s.Volume)
	}
	if idx, high := s.MaxHigh(); idx >= 0 {
		c.Annotations = append(c.Annotations, Annotation{
			Text:  MaxAnnotation,
			Index: idx,
			Date:  s.Dates[idx],
			Value: high,
		})
	}
	return c, nil
}

func volumeOverlay(volume []float64) *Volume {
	values := append([]float64(nil), volume...)
	var max float64
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	return &Volume{Values: values, Ceiling: 8 * max}
}
