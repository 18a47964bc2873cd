package signal

import (
	"fmt"

	"github.com/evdnx/gosig/indicator"
	"github.com/evdnx/gosig/types"
)

// CrossoverRule buys when Fast crosses above Slow and sells on the opposite
// cross. Equality on the previous bar counts as "not yet crossed"; the
// current bar must be strictly on the other side.
type CrossoverRule struct {
	Fast, Slow indicator.Key
}

func NewCrossoverRule(fast, slow indicator.Key) *CrossoverRule {
	return &CrossoverRule{Fast: fast, Slow: slow}
}

func (r *CrossoverRule) Name() string {
	return fmt.Sprintf("crossover %s/%s", r.Fast, r.Slow)
}

func (r *CrossoverRule) Requires() []Requirement {
	return []Requirement{{Key: r.Fast, Depth: 1}, {Key: r.Slow, Depth: 1}}
}

func (r *CrossoverRule) Evaluate(in indicator.Source, _ State) types.Action {
	return cross(in, r.Fast, r.Slow)
}

func cross(in indicator.Source, fast, slow indicator.Key) types.Action {
	f, ok := read(in, fast, 1)
	if !ok {
		return types.Hold
	}
	s, ok := read(in, slow, 1)
	if !ok {
		return types.Hold
	}
	switch {
	case f[0] > s[0] && f[1] <= s[1]:
		return types.ActionBuy
	case f[0] < s[0] && f[1] >= s[1]:
		return types.ActionSell
	}
	return types.Hold
}

// MACDRule is the crossover of the MACD line over its signal line.
type MACDRule struct {
	Line, Signal indicator.Key
}

func NewMACDRule(fast, slow, signal int) *MACDRule {
	return &MACDRule{
		Line:   indicator.MACD(fast, slow),
		Signal: indicator.MACDSignal(fast, slow, signal),
	}
}

func (r *MACDRule) Name() string {
	return fmt.Sprintf("macd(%d,%d,%d)", r.Signal.Period, r.Signal.Slow, r.Signal.Signal)
}

func (r *MACDRule) Requires() []Requirement {
	return []Requirement{{Key: r.Line, Depth: 1}, {Key: r.Signal, Depth: 1}}
}

func (r *MACDRule) Evaluate(in indicator.Source, _ State) types.Action {
	return cross(in, r.Line, r.Signal)
}
