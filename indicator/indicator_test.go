package indicator

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/evdnx/gosig/types"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func bar(i int, close float64) types.Bar {
	return types.Bar{
		Time:   day0.AddDate(0, 0, i),
		Open:   close,
		High:   close + 0.5,
		Low:    close - 0.5,
		Close:  close,
		Volume: 1000,
	}
}

func feed(t *testing.T, s *Set, closes []float64) {
	t.Helper()
	for i, c := range closes {
		if err := s.Add(bar(i, c)); err != nil {
			t.Fatalf("add bar %d: %v", i, err)
		}
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestFrameOffsets(t *testing.T) {
	f := Frame{SMA(2): {9, 11}}
	if v, ok := f.At(SMA(2), 0); !ok || v != 11 {
		t.Fatalf("offset 0: got %v %v", v, ok)
	}
	if v, ok := f.At(SMA(2), -1); !ok || v != 9 {
		t.Fatalf("offset -1: got %v %v", v, ok)
	}
	if _, ok := f.At(SMA(2), -2); ok {
		t.Fatal("offset past history must be undefined")
	}
	if _, ok := f.At(SMA(2), 1); ok {
		t.Fatal("positive offsets must be undefined")
	}
	if _, ok := f.At(RSI(14), 0); ok {
		t.Fatal("missing series must be undefined")
	}
}

func TestFrameNaNIsUndefined(t *testing.T) {
	f := Frame{RSI(14): {math.NaN(), 40}}
	if _, ok := f.At(RSI(14), -1); ok {
		t.Fatal("NaN should read as undefined")
	}
	if v, ok := f.At(RSI(14), 0); !ok || v != 40 {
		t.Fatalf("unexpected current value %v %v", v, ok)
	}
}

func TestWarmupIndexes(t *testing.T) {
	cases := []struct {
		k    Key
		want int
	}{
		{Close(), 0},
		{SMA(200), 199},
		{EMA(9), 8},
		{MACD(12, 26), 25},
		{MACDSignal(12, 26, 9), 33},
		{RSI(14), 14},
		{BollLower(20, 2), 19},
		{GotiRSI(14), 14},
	}
	for _, c := range cases {
		if got := c.k.Warmup(); got != c.want {
			t.Fatalf("%s: warmup %d, want %d", c.k, got, c.want)
		}
	}
}

func TestSetSMAAndWarmup(t *testing.T) {
	s := NewSet(24 * time.Hour)
	feed(t, s, []float64{1, 2})
	if _, ok := s.At(SMA(3), 0); ok {
		t.Fatal("SMA(3) must be undefined after two bars")
	}
	feed2 := []float64{3, 4, 5, 6, 7, 8, 9, 10}
	for i, c := range feed2 {
		if err := s.Add(bar(i+2, c)); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	v, ok := s.At(SMA(3), 0)
	if !ok || !near(v, 9) {
		t.Fatalf("SMA(3) now: got %v %v, want 9", v, ok)
	}
	v, ok = s.At(SMA(3), -1)
	if !ok || !near(v, 8) {
		t.Fatalf("SMA(3) prev: got %v %v, want 8", v, ok)
	}
	if c, ok := s.At(Close(), 0); !ok || c != 10 {
		t.Fatalf("close: got %v %v", c, ok)
	}
	if _, ok := s.At(Close(), -10); ok {
		t.Fatal("offset before the first bar must be undefined")
	}
}

func TestSetRejectsOutOfOrderBar(t *testing.T) {
	s := NewSet(24 * time.Hour)
	feed(t, s, []float64{1, 2, 3})
	err := s.Add(bar(1, 4))
	if !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("expected ErrOutOfOrder, got %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("rejected bar must not be stored, len=%d", s.Len())
	}
}

func TestSetBollingerBracketsMean(t *testing.T) {
	s := NewSet(24 * time.Hour)
	closes := []float64{10, 11, 9, 12, 8, 11, 10, 13, 9, 10}
	feed(t, s, closes)
	up, okU := s.At(BollUpper(5, 2), 0)
	lo, okL := s.At(BollLower(5, 2), 0)
	mid, okM := s.At(SMA(5), 0)
	if !okU || !okL || !okM {
		t.Fatal("bands should be defined after ten bars")
	}
	if !(up > mid && mid > lo) {
		t.Fatalf("expected lower < mid < upper, got %v %v %v", lo, mid, up)
	}
	if !near(up-mid, mid-lo) {
		t.Fatalf("bands should be symmetric around the mean: %v %v", up-mid, mid-lo)
	}
}

func TestSetMACDSignalWarmup(t *testing.T) {
	s := NewSet(24 * time.Hour)
	var closes []float64
	for i := 0; i < 40; i++ {
		closes = append(closes, 100+10*math.Sin(float64(i)/4))
	}
	feed(t, s, closes[:33])
	if _, ok := s.At(MACDSignal(12, 26, 9), 0); ok {
		t.Fatal("signal line must be undefined before index 33")
	}
	if _, ok := s.At(MACD(12, 26), 0); !ok {
		t.Fatal("MACD line should be defined from index 25")
	}
	for i := 33; i < 40; i++ {
		if err := s.Add(bar(i, closes[i])); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if _, ok := s.At(MACDSignal(12, 26, 9), 0); !ok {
		t.Fatal("signal line should be defined once warmed up")
	}

	// Reference: EMA(9) of the MACD line seeded with the mean of its first
	// nine defined values (indexes 25..33).
	last := len(closes) - 1
	macdAt := func(idx int) float64 {
		v, ok := s.At(MACD(12, 26), idx-last)
		if !ok {
			t.Fatalf("MACD undefined at %d", idx)
		}
		return v
	}
	var ema float64
	for i := 25; i <= 33; i++ {
		ema += macdAt(i)
	}
	ema /= 9
	want := map[int]float64{33: ema}
	alpha := 2.0 / 10
	for i := 34; i <= last; i++ {
		ema = alpha*macdAt(i) + (1-alpha)*ema
		want[i] = ema
	}
	for _, idx := range []int{33, 34, last} {
		got, ok := s.At(MACDSignal(12, 26, 9), idx-last)
		if !ok {
			t.Fatalf("signal undefined at %d", idx)
		}
		if math.Abs(got-want[idx]) > 1e-6 {
			t.Fatalf("signal at %d: got %v want %v", idx, got, want[idx])
		}
	}
}

func TestSetRSIRange(t *testing.T) {
	s := NewSet(24 * time.Hour)
	closes := []float64{10, 11, 10.5, 11.5, 11, 12, 11.2, 12.4, 12, 12.8, 12.1, 13, 12.6, 13.4, 13, 13.9}
	feed(t, s, closes[:14])
	if _, ok := s.At(RSI(14), 0); ok {
		t.Fatal("RSI(14) needs fifteen bars")
	}
	feed2 := closes[14:]
	for i, c := range feed2 {
		if err := s.Add(bar(14+i, c)); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	v, ok := s.At(RSI(14), 0)
	if !ok {
		t.Fatal("RSI(14) should be defined")
	}
	if v <= 50 || v > 100 {
		t.Fatalf("rising zig-zag should give RSI in (50, 100], got %v", v)
	}
}

func TestSetGotiRSIWarmupAndRange(t *testing.T) {
	s := NewSet(24 * time.Hour)
	if err := s.Track(GotiRSI(5), SMA(3)); err != nil {
		t.Fatalf("track: %v", err)
	}
	closes := []float64{100, 101, 102, 101.5, 103, 104, 103.8, 105, 106}
	feed(t, s, closes[:5])
	if _, ok := s.At(GotiRSI(5), 0); ok {
		t.Fatal("goti RSI(5) must be undefined before index 5")
	}
	for i := 5; i < len(closes); i++ {
		if err := s.Add(bar(i, closes[i])); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	v, ok := s.At(GotiRSI(5), 0)
	if !ok {
		t.Fatal("goti RSI(5) should be defined from index 5")
	}
	if v <= 50 || v > 100 {
		t.Fatalf("rising closes should give goti RSI in (50, 100], got %v", v)
	}
	if _, ok := s.At(GotiRSI(5), -3); !ok {
		t.Fatal("index 5 should already be defined")
	}
	if _, ok := s.At(GotiRSI(5), -4); ok {
		t.Fatal("index 4 is still warming up")
	}
}

func TestSetGotiRSIFalling(t *testing.T) {
	s := NewSet(24 * time.Hour)
	if err := s.Track(GotiRSI(3)); err != nil {
		t.Fatalf("track: %v", err)
	}
	feed(t, s, []float64{50, 49, 48, 47, 46})
	v, ok := s.At(GotiRSI(3), 0)
	if !ok || v != 0 {
		t.Fatalf("strictly falling closes should give goti RSI 0, got %v %v", v, ok)
	}
}

func TestSetGotiRSIUntracked(t *testing.T) {
	s := NewSet(24 * time.Hour)
	feed(t, s, []float64{1, 2, 3, 4, 5, 6, 7})
	if _, ok := s.At(GotiRSI(3), 0); ok {
		t.Fatal("an untracked goti series must read as undefined")
	}
	if err := s.Track(GotiRSI(3)); err == nil {
		t.Fatal("tracking after the first bar must fail")
	}
	if err := s.Track(SMA(3)); err != nil {
		t.Fatalf("techan keys need no tracking: %v", err)
	}
}
