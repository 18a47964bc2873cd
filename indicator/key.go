package indicator

import "fmt"

type Kind uint8

const (
	KindClose Kind = iota
	KindSMA
	KindEMA
	KindMACD
	KindMACDSignal
	KindRSI
	KindGotiRSI
	KindBollUpper
	KindBollLower
)

// Key identifies one indicator series by kind and parameters. Keys are
// comparable and used as map keys.
type Key struct {
	Kind   Kind
	Period int     // SMA/EMA/RSI/goti RSI/Bollinger window; MACD fast EMA
	Slow   int     // MACD slow EMA
	Signal int     // MACD signal EMA
	Dev    float64 // Bollinger width in standard deviations
}

func Close() Key                       { return Key{Kind: KindClose} }
func SMA(n int) Key                    { return Key{Kind: KindSMA, Period: n} }
func EMA(n int) Key                    { return Key{Kind: KindEMA, Period: n} }
func MACD(fast, slow int) Key          { return Key{Kind: KindMACD, Period: fast, Slow: slow} }
func RSI(n int) Key                    { return Key{Kind: KindRSI, Period: n} }
func GotiRSI(n int) Key                { return Key{Kind: KindGotiRSI, Period: n} }
func BollUpper(n int, dev float64) Key { return Key{Kind: KindBollUpper, Period: n, Dev: dev} }
func BollLower(n int, dev float64) Key { return Key{Kind: KindBollLower, Period: n, Dev: dev} }
func MACDSignal(fast, slow, sig int) Key {
	return Key{Kind: KindMACDSignal, Period: fast, Slow: slow, Signal: sig}
}

// Warmup is the index of the first bar on which the series is defined.
func (k Key) Warmup() int {
	switch k.Kind {
	case KindSMA, KindEMA, KindBollUpper, KindBollLower:
		return k.Period - 1
	case KindMACD:
		return k.Slow - 1
	case KindMACDSignal:
		return k.Slow + k.Signal - 2
	case KindRSI, KindGotiRSI:
		return k.Period
	}
	return 0
}

func (k Key) String() string {
	switch k.Kind {
	case KindClose:
		return "close"
	case KindSMA:
		return fmt.Sprintf("sma(%d)", k.Period)
	case KindEMA:
		return fmt.Sprintf("ema(%d)", k.Period)
	case KindMACD:
		return fmt.Sprintf("macd(%d,%d)", k.Period, k.Slow)
	case KindMACDSignal:
		return fmt.Sprintf("macd_signal(%d,%d,%d)", k.Period, k.Slow, k.Signal)
	case KindRSI:
		return fmt.Sprintf("rsi(%d)", k.Period)
	case KindGotiRSI:
		return fmt.Sprintf("goti_rsi(%d)", k.Period)
	case KindBollUpper:
		return fmt.Sprintf("boll_upper(%d,%g)", k.Period, k.Dev)
	case KindBollLower:
		return fmt.Sprintf("boll_lower(%d,%g)", k.Period, k.Dev)
	}
	return fmt.Sprintf("kind(%d)", k.Kind)
}
