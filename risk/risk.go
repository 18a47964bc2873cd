package risk

import (
	"math"

	"github.com/evdnx/gosig/config"
)

// Sizer decides the quantity of a new entry.
type Sizer interface {
	Size(price, equity float64) float64
}

// FixedSize always trades the same stake.
type FixedSize struct {
	Stake float64
}

func (f FixedSize) Size(_, _ float64) float64 { return f.Stake }

// RiskSizer risks MaxRiskPerTrade of equity against a StopLossPct stop.
type RiskSizer struct {
	Cfg config.StrategyConfig
}

func (r RiskSizer) Size(price, equity float64) float64 {
	return CalcQty(equity, r.Cfg.MaxRiskPerTrade, r.Cfg.StopLossPct, price, r.Cfg)
}

// SizerFor picks the sizer a strategy config asks for.
func SizerFor(cfg config.StrategyConfig) Sizer {
	if cfg.MaxRiskPerTrade > 0 {
		return RiskSizer{Cfg: cfg}
	}
	return FixedSize{Stake: cfg.Stake}
}

// CalcQty sizes a position so that hitting the stop loses equity*maxRisk,
// then applies the exchange constraints from cfg: floor to StepSize, round
// to QuantityPrecision and drop anything under MinQty.
func CalcQty(equity, maxRisk, stopLossPct, price float64, cfg config.StrategyConfig) float64 {
	// Dollar risk per trade
	riskAmt := equity * maxRisk
	// Stop-loss distance in dollars
	slDist := price * stopLossPct
	if slDist <= 0 || riskAmt <= 0 {
		return 0
	}
	qty := riskAmt / slDist
	if cfg.StepSize > 0 {
		// Nudge before flooring so 66.66/0.01 does not land on 6665.999….
		qty = math.Floor(qty/cfg.StepSize+1e-9) * cfg.StepSize
	}
	if cfg.QuantityPrecision >= 0 {
		pow := math.Pow(10, float64(cfg.QuantityPrecision))
		qty = math.Floor(qty*pow+1e-9) / pow
	}
	if qty < cfg.MinQty {
		return 0
	}
	return qty
}
