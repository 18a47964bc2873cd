// Package feed loads historical bars from files.
package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/evdnx/gosig/types"
)

var (
	ErrOutOfOrder = errors.New("dates are not strictly increasing")
	ErrHeader     = errors.New("missing Yahoo CSV header")
)

// Options filter and adjust a Yahoo download. Zero From/To leave that end
// open; both ends are inclusive.
type Options struct {
	From   time.Time
	To     time.Time
	Adjust bool // scale OHLC by Adj Close / Close
	// Reverse accepts files listed newest first.
	Reverse bool
}

var yahooColumns = []string{"date", "open", "high", "low", "close", "adj close", "volume"}

// LoadYahooFile opens path and parses it with LoadYahooCSV.
func LoadYahooFile(path string, opts Options) ([]types.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	bars, err := LoadYahooCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

// LoadYahooCSV parses Date,Open,High,Low,Close,Adj Close,Volume rows.
// Rows carrying "null" (non-trading days in Yahoo exports) are skipped.
func LoadYahooCSV(r io.Reader, opts Options) ([]types.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHeader, err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var bars []types.Bar
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) < len(yahooColumns) {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", line, len(yahooColumns), len(rec))
		}
		if hasNull(rec) {
			continue
		}
		b, err := parseRow(rec, cols, opts.Adjust)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, b)
	}
	if opts.Reverse {
		for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
			bars[i], bars[j] = bars[j], bars[i]
		}
	}

	out := make([]types.Bar, 0, len(bars))
	for i, b := range bars {
		if i > 0 && !b.Time.After(bars[i-1].Time) {
			return nil, fmt.Errorf("%w: %s after %s", ErrOutOfOrder,
				b.Time.Format(time.DateOnly), bars[i-1].Time.Format(time.DateOnly))
		}
		if !opts.From.IsZero() && b.Time.Before(opts.From) {
			continue
		}
		if !opts.To.IsZero() && b.Time.After(opts.To) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		idx[h] = i
	}
	for _, c := range yahooColumns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("%w: no %q column", ErrHeader, c)
		}
	}
	return idx, nil
}

func hasNull(rec []string) bool {
	for _, f := range rec {
		if strings.EqualFold(strings.TrimSpace(f), "null") {
			return true
		}
	}
	return false
}

func parseRow(rec []string, cols map[string]int, adjust bool) (types.Bar, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(rec[cols["date"]]))
	if err != nil {
		return types.Bar{}, fmt.Errorf("date: %w", err)
	}
	vals := make(map[string]float64, len(yahooColumns)-1)
	for _, c := range yahooColumns[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[cols[c]]), 64)
		if err != nil {
			return types.Bar{}, fmt.Errorf("%s: %w", c, err)
		}
		vals[c] = v
	}
	b := types.Bar{
		Time:   t,
		Open:   vals["open"],
		High:   vals["high"],
		Low:    vals["low"],
		Close:  vals["close"],
		Volume: vals["volume"],
	}
	if adjust && b.Close != 0 {
		f := vals["adj close"] / b.Close
		b.Open *= f
		b.High *= f
		b.Low *= f
		b.Close = vals["adj close"]
		if f != 0 {
			b.Volume /= f
		}
	}
	return b, nil
}
