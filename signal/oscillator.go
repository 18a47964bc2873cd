package signal

import (
	"fmt"

	"github.com/evdnx/gosig/config"
	"github.com/evdnx/gosig/indicator"
	"github.com/evdnx/gosig/types"
)

// RSIRule enters long below BuyBelow while flat and exits above SellAbove
// while long.
type RSIRule struct {
	RSI       indicator.Key
	BuyBelow  float64
	SellAbove float64
}

func (r *RSIRule) Name() string {
	return fmt.Sprintf("%s %g/%g", r.RSI, r.BuyBelow, r.SellAbove)
}

func (r *RSIRule) Requires() []Requirement {
	return []Requirement{{Key: r.RSI}}
}

func (r *RSIRule) Evaluate(in indicator.Source, st State) types.Action {
	v, ok := in.At(r.RSI, 0)
	if !ok {
		return types.Hold
	}
	switch {
	case v < r.BuyBelow && st.Position == types.Flat:
		return types.ActionBuy
	case v > r.SellAbove && st.Position == types.Long:
		return types.ActionSell
	}
	return types.Hold
}

// BollingerRule implements both band sub-policies; see config.BandMode.
type BollingerRule struct {
	Mode         config.BandMode
	Close        indicator.Key
	Lower, Upper indicator.Key

	// touch mode only
	Trend      indicator.Key
	RSI        indicator.Key
	RSIExtreme float64
	RSIExit    float64
}

func (r *BollingerRule) Name() string {
	return fmt.Sprintf("bollinger %s %s", r.Mode, r.Lower)
}

func (r *BollingerRule) Requires() []Requirement {
	if r.Mode == config.BandTouch {
		return []Requirement{{Key: r.Close}, {Key: r.Lower}, {Key: r.Trend}, {Key: r.RSI}}
	}
	return []Requirement{{Key: r.Close, Depth: 1}, {Key: r.Lower, Depth: 1}, {Key: r.Upper, Depth: 1}}
}

func (r *BollingerRule) Evaluate(in indicator.Source, st State) types.Action {
	if r.Mode == config.BandTouch {
		return r.touch(in, st)
	}
	return r.recross(in)
}

func (r *BollingerRule) recross(in indicator.Source) types.Action {
	c, ok := read(in, r.Close, 1)
	if !ok {
		return types.Hold
	}
	lo, ok := read(in, r.Lower, 1)
	if !ok {
		return types.Hold
	}
	up, ok := read(in, r.Upper, 1)
	if !ok {
		return types.Hold
	}
	switch {
	case c[1] <= lo[1] && c[0] > lo[0]:
		return types.ActionBuy
	case c[1] >= up[1] && c[0] < up[0]:
		return types.ActionSell
	}
	return types.Hold
}

func (r *BollingerRule) touch(in indicator.Source, st State) types.Action {
	rsi, ok := in.At(r.RSI, 0)
	if !ok {
		return types.Hold
	}
	switch st.Position {
	case types.Flat:
		c, ok1 := in.At(r.Close, 0)
		lo, ok2 := in.At(r.Lower, 0)
		trend, ok3 := in.At(r.Trend, 0)
		if ok1 && ok2 && ok3 && c < lo && c > trend && rsi < r.RSIExtreme {
			return types.ActionBuy
		}
	case types.Long:
		if rsi > r.RSIExit {
			return types.ActionSell
		}
	}
	return types.Hold
}

// TimeStopRule closes a position once it has been held MaxBars bars.
type TimeStopRule struct {
	MaxBars int
}

func (r *TimeStopRule) Name() string { return fmt.Sprintf("timestop(%d)", r.MaxBars) }

func (r *TimeStopRule) Requires() []Requirement { return nil }

func (r *TimeStopRule) Evaluate(_ indicator.Source, st State) types.Action {
	if st.BarsHeld < r.MaxBars {
		return types.Hold
	}
	switch st.Position {
	case types.Long:
		return types.ActionSell
	case types.Short:
		return types.ActionBuy
	}
	return types.Hold
}
