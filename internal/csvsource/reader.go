// Package csvsource reads OHLCV candles from CSV files.
//
// The first record is a header naming the columns; date, open, high, low and
// close are required, volume is optional and other columns are ignored.
package csvsource

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"finplotter/internal/model"
)

var (
	// ErrMissingColumn is returned when the header lacks a required column.
	ErrMissingColumn = errors.New("missing required column")

	// ErrNotEnoughColumns is returned when a record is shorter than the header requires.
	ErrNotEnoughColumns = errors.New("not enough columns")

	// ErrInvalidTimeFormat is returned when a date cell matches no supported layout.
	ErrInvalidTimeFormat = errors.New("cannot parse date")

	// ErrInvalidPriceFormat is returned when a price cell is not a decimal number.
	ErrInvalidPriceFormat = errors.New("OHLC prices must be in valid decimal format")

	// ErrInvalidVolumeFormat is returned when a volume cell is not a decimal number.
	ErrInvalidVolumeFormat = errors.New("volume must be in valid decimal format")
)

// DateLayouts are the date formats accepted besides unix seconds. They are
// tried first, so an all-digit "20240102" is a date, not a timestamp.
var DateLayouts = []string{
	"2006-01-02",
	"20060102",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02-01-2006",
}

var required = []string{"date", "open", "high", "low", "close"}

// Reader decodes candles from a CSV stream.
type Reader struct {
	csv     *csv.Reader
	columns map[string]int
	width   int
	line    int
}

// NewReader reads the header from r and returns a Reader positioned at the first candle.
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read csv header")
	}

	columns := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if name == "timestamp" || name == "time" {
			name = "date"
		}
		columns[name] = i
	}

	width := 0
	for _, name := range required {
		idx, ok := columns[name]
		if !ok {
			return nil, errors.Wrap(ErrMissingColumn, name)
		}
		if idx+1 > width {
			width = idx + 1
		}
	}
	if idx, ok := columns["volume"]; ok && idx+1 > width {
		width = idx + 1
	}

	return &Reader{csv: cr, columns: columns, width: width, line: 1}, nil
}

// Read decodes the next candle. Returns io.EOF after the last record.
func (r *Reader) Read() (model.Candle, error) {
	var c model.Candle

	rec, err := r.csv.Read()
	if err != nil {
		return c, err
	}
	r.line++
	if len(rec) < r.width {
		return c, errors.Wrapf(ErrNotEnoughColumns, "line %d", r.line)
	}

	if c.Date, err = parseDate(rec[r.columns["date"]]); err != nil {
		return c, errors.Wrapf(err, "line %d", r.line)
	}

	prices := []*float64{&c.Open, &c.High, &c.Low, &c.Close}
	for i, name := range required[1:] {
		v, err := parseDecimal(rec[r.columns[name]])
		if err != nil {
			return c, errors.Wrapf(ErrInvalidPriceFormat, "line %d column %s: %q", r.line, name, rec[r.columns[name]])
		}
		*prices[i] = v
	}

	if idx, ok := r.columns["volume"]; ok && strings.TrimSpace(rec[idx]) != "" {
		if c.Volume, err = parseDecimal(rec[idx]); err != nil {
			return c, errors.Wrapf(ErrInvalidVolumeFormat, "line %d: %q", r.line, rec[idx])
		}
	}
	return c, nil
}

// ReadAll decodes every remaining candle and returns them sorted by ascending date.
// Sources listing the newest candle first are reordered.
func (r *Reader) ReadAll() ([]model.Candle, error) {
	var candles []model.Candle
	for {
		c, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Date.Before(candles[j].Date) })
	return candles, nil
}

// ReadFile reads every candle of a CSV file.
func ReadFile(path string) ([]model.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	//nolint:errcheck // read only
	defer f.Close()

	r, err := NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	candles, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return candles, nil
}

func parseDecimal(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, errors.Wrapf(ErrInvalidTimeFormat, "%q", s)
}
