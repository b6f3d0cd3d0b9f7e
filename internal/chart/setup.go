package chart

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"finplotter/internal/indicator"
)

// Setup selects the overlays and sub-plots of a chart and their parameters.
type Setup struct {
	SMAs       []int           `yaml:"smas" json:"smas"`
	EMAs       []int           `yaml:"emas" json:"emas,omitempty"`
	Volume     bool            `yaml:"volume" json:"volume"`
	Bollinger  BollingerSetup  `yaml:"bollinger" json:"bollinger"`
	MACD       MACDSetup       `yaml:"macd" json:"macd"`
	RSI        RSISetup        `yaml:"rsi" json:"rsi"`
	Stochastic StochasticSetup `yaml:"stochastic" json:"stochastic"`
}

type BollingerSetup struct {
	Enabled bool    `yaml:"enabled" json:"enabled"`
	Period  int     `yaml:"period" json:"period"`
	K       float64 `yaml:"k" json:"k"`
}

type MACDSetup struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	Fast    int  `yaml:"fast" json:"fast"`
	Slow    int  `yaml:"slow" json:"slow"`
	Signal  int  `yaml:"signal" json:"signal"`
}

type RSISetup struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	Period  int  `yaml:"period" json:"period"`
}

type StochasticSetup struct {
	Enabled   bool `yaml:"enabled" json:"enabled"`
	Period    int  `yaml:"period" json:"period"`
	Smoothing int  `yaml:"smoothing" json:"smoothing"`
}

// DefaultSetup returns the classic layout: 26 and 5 period SMAs with volume
// and Bollinger Bands on the price panel, MACD 12,26,9, RSI 14 and a 14, 3
// slow stochastic below it.
func DefaultSetup() Setup {
	return Setup{
		SMAs:   []int{26, 5},
		Volume: true,
		Bollinger: BollingerSetup{
			Enabled: true,
			Period:  indicator.DefaultBollingerPeriod,
			K:       indicator.DefaultBollingerK,
		},
		MACD: MACDSetup{
			Enabled: true,
			Fast:    indicator.DefaultMACDFast,
			Slow:    indicator.DefaultMACDSlow,
			Signal:  indicator.DefaultMACDSignal,
		},
		RSI: RSISetup{Enabled: true, Period: indicator.DefaultRSIPeriod},
		Stochastic: StochasticSetup{
			Enabled:   true,
			Period:    indicator.DefaultStochPeriod,
			Smoothing: indicator.DefaultStochSmoothing,
		},
	}
}

// DefaultLinePeriod is the SMA/EMA period of SetupFor when none is given.
const DefaultLinePeriod = 20

// SetupFor returns a setup computing only the named indicator: "sma",
// "ema", "rsi", "macd", "stoch" or "bollinger". A positive period overrides
// the default period of every indicator except MACD.
func SetupFor(name string, period int) (Setup, error) {
	if period < 0 {
		return Setup{}, errors.Wrapf(indicator.ErrInvalidParameter, "%s period %d", name, period)
	}
	def := DefaultSetup()
	pick := func(fallback int) int {
		if period > 0 {
			return period
		}
		return fallback
	}

	var s Setup
	switch strings.ToLower(name) {
	case "sma":
		s.SMAs = []int{pick(DefaultLinePeriod)}
	case "ema":
		s.EMAs = []int{pick(DefaultLinePeriod)}
	case "rsi":
		s.RSI = RSISetup{Enabled: true, Period: pick(def.RSI.Period)}
	case "macd":
		s.MACD = def.MACD
	case "stoch", "stochastic":
		s.Stochastic = def.Stochastic
		s.Stochastic.Period = pick(def.Stochastic.Period)
	case "bollinger", "bb":
		s.Bollinger = def.Bollinger
		s.Bollinger.Period = pick(def.Bollinger.Period)
	default:
		return Setup{}, errors.Wrapf(indicator.ErrInvalidParameter, "unknown indicator %q", name)
	}
	return s, nil
}

// LoadSetup reads a YAML setup file. Keys missing from the file keep their
// DefaultSetup values.
func LoadSetup(path string) (Setup, error) {
	setup := DefaultSetup()
	data, err := os.ReadFile(path)
	if err != nil {
		return setup, errors.Wrapf(err, "read chart setup %s", path)
	}
	if err := yaml.Unmarshal(data, &setup); err != nil {
		return setup, errors.Wrapf(err, "parse chart setup %s", path)
	}
	return setup, setup.Validate()
}

// Validate rejects parameters no indicator could accept.
// Whether a period fits a given series is checked when the chart is built.
func (s Setup) Validate() error {
	for _, p := range s.SMAs {
		if p < 1 {
			return errors.Wrapf(indicator.ErrInvalidParameter, "sma period %d", p)
		}
	}
	for _, p := range s.EMAs {
		if p < 1 {
			return errors.Wrapf(indicator.ErrInvalidParameter, "ema period %d", p)
		}
	}
	k := s.Bollinger.K
	if s.Bollinger.Enabled && (s.Bollinger.Period < 1 || k < 0 || math.IsNaN(k) || math.IsInf(k, 0)) {
		return errors.Wrapf(indicator.ErrInvalidParameter, "bollinger period %d k %v", s.Bollinger.Period, s.Bollinger.K)
	}
	if s.MACD.Enabled && (s.MACD.Fast < 1 || s.MACD.Slow < 1 || s.MACD.Signal < 1) {
		return errors.Wrapf(indicator.ErrInvalidParameter, "macd %d,%d,%d", s.MACD.Fast, s.MACD.Slow, s.MACD.Signal)
	}
	if s.RSI.Enabled && s.RSI.Period < 1 {
		return errors.Wrapf(indicator.ErrInvalidParameter, "rsi period %d", s.RSI.Period)
	}
	if s.Stochastic.Enabled && (s.Stochastic.Period < 1 || s.Stochastic.Smoothing < 1) {
		return errors.Wrapf(indicator.ErrInvalidParameter, "stochastic %d, %d", s.Stochastic.Period, s.Stochastic.Smoothing)
	}
	return nil
}

// Hash returns a short stable digest of the setup, used in cache keys.
func (s Setup) Hash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%+v", s)
	return hex.EncodeToString(h.Sum(nil)[:6])
}
