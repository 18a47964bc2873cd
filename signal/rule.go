// Package signal is the per-bar decision core. Rules are stateless functions
// of indicator values and position state; the Engine reconciles them into
// at most one action per bar.
package signal

import (
	"github.com/evdnx/gosig/indicator"
	"github.com/evdnx/gosig/types"
)

// State is what the engine knows about the strategy besides indicators.
type State struct {
	Position types.Position
	Pending  bool // an order is in flight
	BarsHeld int  // bars since the entry fill; ignored while Flat
}

// Requirement names a series a rule reads and how many bars back it looks.
// Depth 1 means offsets 0 and -1.
type Requirement struct {
	Key   indicator.Key
	Depth int
}

type Rule interface {
	Name() string
	Requires() []Requirement
	// Evaluate returns Hold whenever an input it needs is undefined.
	Evaluate(in indicator.Source, st State) types.Action
}

// read fetches the values at offsets 0, -1, ... -depth. ok is false if any
// of them is undefined.
func read(in indicator.Source, k indicator.Key, depth int) (vals []float64, ok bool) {
	vals = make([]float64, depth+1)
	for i := 0; i <= depth; i++ {
		v, ok := in.At(k, -i)
		if !ok {
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}
