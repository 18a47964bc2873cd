package indicator

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/evdnx/goti"
	"github.com/sdcoffey/big"
	"github.com/sdcoffey/techan"

	"github.com/evdnx/gosig/types"
)

// ErrOutOfOrder is returned when a bar does not start after the previous
// bar's period ended.
var ErrOutOfOrder = errors.New("bar out of chronological order")

// Set is a live Source over a growing bar stream. Technical series are
// computed by techan and built lazily the first time a Key is requested.
// goti RSI series are streaming and must be tracked before the first bar.
type Set struct {
	series   *techan.TimeSeries
	close    techan.Indicator
	interval time.Duration
	built    map[Key]techan.Indicator
	streams  map[Key]*gotiSeries
}

// gotiSeries records one goti RSI value per bar, NaN while undefined.
type gotiSeries struct {
	rsi    *goti.RelativeStrengthIndex
	values []float64
}

// NewSet creates an empty set. interval is the bar length used for techan
// time periods.
func NewSet(interval time.Duration) *Set {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ts := techan.NewTimeSeries()
	return &Set{
		series:   ts,
		close:    techan.NewClosePriceIndicator(ts),
		interval: interval,
		built:    make(map[Key]techan.Indicator),
		streams:  make(map[Key]*gotiSeries),
	}
}

// Track registers the streaming series among keys. Keys served lazily by
// techan are ignored. It must be called before the first Add.
func (s *Set) Track(keys ...Key) error {
	for _, k := range keys {
		if k.Kind != KindGotiRSI {
			continue
		}
		if _, ok := s.streams[k]; ok {
			continue
		}
		if s.Len() > 0 {
			return fmt.Errorf("%s must be tracked before the first bar", k)
		}
		rsi, err := goti.NewRelativeStrengthIndexWithParams(k.Period, goti.DefaultConfig())
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		s.streams[k] = &gotiSeries{rsi: rsi}
	}
	return nil
}

// Len is the number of bars added so far.
func (s *Set) Len() int { return len(s.series.Candles) }

// Add appends one bar. A goti failure leaves the bar in place and only
// marks that bar's value undefined in the failing series; the error is
// still returned so the caller can report it.
func (s *Set) Add(b types.Bar) error {
	c := techan.NewCandle(techan.NewTimePeriod(b.Time, s.interval))
	c.OpenPrice = big.NewDecimal(b.Open)
	c.MaxPrice = big.NewDecimal(b.High)
	c.MinPrice = big.NewDecimal(b.Low)
	c.ClosePrice = big.NewDecimal(b.Close)
	c.Volume = big.NewDecimal(b.Volume)
	if !s.series.AddCandle(c) {
		return fmt.Errorf("%w: %s", ErrOutOfOrder, b.Time.Format(time.RFC3339))
	}
	var errs []error
	for k, g := range s.streams {
		if err := g.rsi.Add(b.Close); err != nil {
			g.values = append(g.values, math.NaN())
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
			continue
		}
		v, err := g.rsi.Calculate()
		if err != nil {
			v = math.NaN()
		}
		g.values = append(g.values, v)
	}
	return errors.Join(errs...)
}

func (s *Set) At(k Key, offset int) (float64, bool) {
	if offset > 0 {
		return 0, false
	}
	idx := s.Len() - 1 + offset
	if idx < 0 || idx < k.Warmup() {
		return 0, false
	}
	if k.Kind == KindGotiRSI {
		g, ok := s.streams[k]
		if !ok || idx >= len(g.values) {
			return 0, false
		}
		return defined(g.values[idx])
	}
	ind := s.indicator(k)
	if ind == nil {
		return 0, false
	}
	return calculate(ind, idx)
}

func (s *Set) indicator(k Key) techan.Indicator {
	if ind, ok := s.built[k]; ok {
		return ind
	}
	var ind techan.Indicator
	switch k.Kind {
	case KindClose:
		ind = s.close
	case KindSMA:
		ind = techan.NewSimpleMovingAverage(s.close, k.Period)
	case KindEMA:
		ind = techan.NewEMAIndicator(s.close, k.Period)
	case KindMACD:
		ind = techan.NewMACDIndicator(s.close, k.Period, k.Slow)
	case KindMACDSignal:
		// techan seeds an EMA with the SMA of its first window, so the MACD
		// input is shifted past its own warm-up before smoothing.
		lead := k.Slow - 1
		macd := shifted{s.indicator(MACD(k.Period, k.Slow)), lead}
		ind = shifted{techan.NewEMAIndicator(macd, k.Signal), -lead}
	case KindRSI:
		ind = techan.NewRelativeStrengthIndexIndicator(s.close, k.Period)
	case KindBollUpper:
		ind = techan.NewBollingerUpperBandIndicator(s.close, k.Period, k.Dev)
	case KindBollLower:
		ind = techan.NewBollingerLowerBandIndicator(s.close, k.Period, k.Dev)
	default:
		return nil
	}
	s.built[k] = ind
	return ind
}

// shifted reads ind by steps bars later than asked.
type shifted struct {
	ind   techan.Indicator
	steps int
}

func (s shifted) Calculate(i int) big.Decimal { return s.ind.Calculate(i + s.steps) }

// calculate reads one value. big.Decimal panics on NaN results (0/0), which
// is reported as undefined.
func calculate(ind techan.Indicator, idx int) (v float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			v, ok = 0, false
		}
	}()
	return defined(ind.Calculate(idx).Float())
}

func defined(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
