package signal

import (
	"errors"
	"fmt"
	"sort"

	"github.com/evdnx/gosig/config"
	"github.com/evdnx/gosig/indicator"
	"github.com/evdnx/gosig/types"
)

// Decision is the engine's output for one bar.
type Decision struct {
	Action types.Action
	Rule   string // rule that produced the action, empty for Hold
	Reason string // why nothing fired: "pending", "warmup" or "no_signal"
}

const (
	ReasonPending  = "pending"
	ReasonWarmup   = "warmup"
	ReasonNoSignal = "no_signal"
)

// Engine combines rules under a CombineMode. It holds no per-bar state, so
// one Engine may be reused across replays and always answers the same way
// for the same inputs.
type Engine struct {
	mode      config.CombineMode
	ordered   []Rule // position-gated rules in priority order
	bands     []Rule // Bollinger rules, checked independently in ModeAny
	gateBands bool
	reqs      []Requirement
}

type Option func(*Engine)

// GateBands makes Bollinger rules obey the same position gate as the other
// rules in ModeAny.
func GateBands(on bool) Option {
	return func(e *Engine) { e.gateBands = on }
}

// NewEngine orders the rules by priority: time stop, MACD, crossover, RSI,
// then anything else in the given order. In ModeAny Bollinger rules are held
// apart and evaluated after the rest.
func NewEngine(mode config.CombineMode, rules []Rule, opts ...Option) (*Engine, error) {
	if len(rules) == 0 {
		return nil, config.ErrNoRules
	}
	switch mode {
	case config.ModeSingle:
		if len(rules) != 1 {
			return nil, fmt.Errorf("single mode takes one rule, got %d", len(rules))
		}
	case config.ModeAny:
	default:
		return nil, fmt.Errorf("unknown combine mode %q", mode)
	}
	e := &Engine{mode: mode}
	for _, o := range opts {
		o(e)
	}
	for _, r := range rules {
		if r == nil {
			return nil, errors.New("nil rule")
		}
		if _, ok := r.(*BollingerRule); ok && mode == config.ModeAny {
			e.bands = append(e.bands, r)
		} else {
			e.ordered = append(e.ordered, r)
		}
	}
	sort.SliceStable(e.ordered, func(i, j int) bool {
		return priority(e.ordered[i]) < priority(e.ordered[j])
	})
	e.reqs = mergeRequirements(rules)
	return e, nil
}

func priority(r Rule) int {
	switch r.(type) {
	case *TimeStopRule:
		return 0
	case *MACDRule:
		return 1
	case *CrossoverRule:
		return 2
	case *RSIRule:
		return 3
	}
	return 4
}

// mergeRequirements keeps the deepest lookback per key.
func mergeRequirements(rules []Rule) []Requirement {
	depth := make(map[indicator.Key]int)
	var order []indicator.Key
	for _, r := range rules {
		for _, q := range r.Requires() {
			d, seen := depth[q.Key]
			if !seen {
				order = append(order, q.Key)
			}
			if !seen || q.Depth > d {
				depth[q.Key] = q.Depth
			}
		}
	}
	out := make([]Requirement, 0, len(order))
	for _, k := range order {
		out = append(out, Requirement{Key: k, Depth: depth[k]})
	}
	return out
}

// Requires lists every series the engine reads.
func (e *Engine) Requires() []Requirement {
	out := make([]Requirement, len(e.reqs))
	copy(out, e.reqs)
	return out
}

// Decide returns the action for the current bar. It holds while an order is
// pending and until every required series is defined.
func (e *Engine) Decide(in indicator.Source, st State) Decision {
	if st.Pending {
		return Decision{Action: types.Hold, Reason: ReasonPending}
	}
	if !e.warm(in) {
		return Decision{Action: types.Hold, Reason: ReasonWarmup}
	}
	if e.mode == config.ModeSingle {
		r := e.ordered[0]
		return decided(r.Evaluate(in, st), r)
	}

	// ModeAny: flat positions look for an entry, open ones for the action
	// that flattens them.
	want := types.ActionBuy
	if st.Position == types.Long {
		want = types.ActionSell
	}
	for _, r := range e.ordered {
		if r.Evaluate(in, st) == want {
			return decided(want, r)
		}
	}
	for _, r := range e.bands {
		a := r.Evaluate(in, st)
		if a == types.Hold || (e.gateBands && a != want) {
			continue
		}
		return decided(a, r)
	}
	return Decision{Action: types.Hold, Reason: ReasonNoSignal}
}

func (e *Engine) warm(in indicator.Source) bool {
	for _, q := range e.reqs {
		for off := 0; off >= -q.Depth; off-- {
			if _, ok := in.At(q.Key, off); !ok {
				return false
			}
		}
	}
	return true
}

func decided(a types.Action, r Rule) Decision {
	if a == types.Hold {
		return Decision{Action: types.Hold, Reason: ReasonNoSignal}
	}
	return Decision{Action: a, Rule: r.Name()}
}
