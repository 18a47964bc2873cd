package strategy

import (
	"testing"
	"time"

	"github.com/evdnx/gosig/config"
	"github.com/evdnx/gosig/testutils"
	"github.com/evdnx/gosig/types"
)

var day0 = time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)

// candles turns closes into daily bars with open == close.
func candles(start int, closes ...float64) []types.Bar {
	out := make([]types.Bar, len(closes))
	for i, c := range closes {
		out[i] = types.Bar{
			Time:   day0.AddDate(0, 0, start+i),
			Open:   c,
			High:   c + 0.5,
			Low:    c - 0.5,
			Close:  c,
			Volume: 1000,
		}
	}
	return out
}

// feedBars sends bars to s and returns the actions taken.
func feedBars(s *Strategy, bars []types.Bar) []types.Action {
	out := make([]types.Action, 0, len(bars))
	for _, b := range bars {
		out = append(out, s.ProcessBar(b))
	}
	return out
}

// crossCfg is a 2/3 SMA golden cross, small enough to warm up in a few bars.
func crossCfg() config.StrategyConfig {
	return config.StrategyConfig{
		Rules: []config.RuleConfig{{Type: config.RuleCrossover, FastPeriod: 2, SlowPeriod: 3}},
	}
}

// crossCloses produces HOLD x4 then a golden cross on the fifth bar:
// sma2 10→11.5 against sma3 10→11.
var crossCloses = []float64{10, 10, 10, 10, 13}

/*
buildStrategy wires a Strategy named "gc" on "TEST" to a mock broker and a
mock logger.
*/
func buildStrategy(t *testing.T, cfg config.StrategyConfig) (*Strategy, *testutils.MockBroker, *testutils.MockLogger) {
	t.Helper()
	broker := testutils.NewMockBroker(10_000)
	log := testutils.NewMockLogger()
	s, err := New("gc", "TEST", cfg, broker, log)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s, broker, log
}
