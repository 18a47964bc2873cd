package config

import (
	"errors"
	"testing"
)

func TestValidateSuccess(t *testing.T) {
	cfg := StrategyConfig{
		Name: "combo",
		Rules: []RuleConfig{
			{Type: RuleMACD},
			{Type: RuleCrossover, FastPeriod: 10, SlowPeriod: 30},
			{Type: RuleRSI, BuyBelow: 25, SellAbove: 70},
			{Type: RuleBollinger, Band: BandTouch},
			{Type: RuleTimeStop, MaxBars: 5},
		},
	}.WithDefaults()
	if cfg.Mode != ModeAny {
		t.Fatalf("expected mode any for several rules, got %q", cfg.Mode)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Stake != 10 {
		t.Fatalf("expected default stake 10, got %v", cfg.Stake)
	}
}

func TestDefaultsFillGoldenCross(t *testing.T) {
	cfg := StrategyConfig{Rules: []RuleConfig{{Type: RuleCrossover}}}.WithDefaults()
	r := cfg.Rules[0]
	if r.FastPeriod != 50 || r.SlowPeriod != 200 || r.MA != "sma" {
		t.Fatalf("unexpected crossover defaults: %+v", r)
	}
	if cfg.Mode != ModeSingle {
		t.Fatalf("one rule should default to single mode, got %q", cfg.Mode)
	}
	if cfg.Name != "crossover" {
		t.Fatalf("expected name derived from rule type, got %q", cfg.Name)
	}
}

func TestWithDefaultsDoesNotAliasRules(t *testing.T) {
	orig := StrategyConfig{Rules: []RuleConfig{{Type: RuleRSI}}}
	_ = orig.WithDefaults()
	if orig.Rules[0].Period != 0 {
		t.Fatal("WithDefaults mutated the caller's rule slice")
	}
}

func TestValidateFailsOnInvertedRSI(t *testing.T) {
	cfg := StrategyConfig{
		Rules: []RuleConfig{{Type: RuleRSI, BuyBelow: 70, SellAbove: 30}},
	}.WithDefaults()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for buy_below >= sell_above")
	}
}

func TestValidateFailsOnEqualRSI(t *testing.T) {
	cfg := StrategyConfig{
		Rules: []RuleConfig{{Type: RuleRSI, BuyBelow: 50, SellAbove: 50}},
	}.WithDefaults()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for equal thresholds")
	}
}

func TestValidateFailsOnFastNotShorter(t *testing.T) {
	cfg := StrategyConfig{
		Rules: []RuleConfig{{Type: RuleCrossover, FastPeriod: 200, SlowPeriod: 50}},
	}.WithDefaults()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for fast >= slow")
	}
}

func TestValidateFailsOnSingleWithSeveralRules(t *testing.T) {
	cfg := StrategyConfig{
		Mode:  ModeSingle,
		Rules: []RuleConfig{{Type: RuleRSI}, {Type: RuleMACD}},
	}.WithDefaults()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for single mode with two rules")
	}
}

func TestValidateRejectsUnknownRule(t *testing.T) {
	cfg := StrategyConfig{Rules: []RuleConfig{{Type: "ichimoku"}}}.WithDefaults()
	err := cfg.Validate()
	if !errors.Is(err, ErrUnknownRule) {
		t.Fatalf("expected ErrUnknownRule, got %v", err)
	}
}

func TestValidateRejectsEmptyRules(t *testing.T) {
	cfg := StrategyConfig{}.WithDefaults()
	if err := cfg.Validate(); !errors.Is(err, ErrNoRules) {
		t.Fatalf("expected ErrNoRules, got %v", err)
	}
}

func TestValidateTimeStopNeedsMaxBars(t *testing.T) {
	cfg := StrategyConfig{Rules: []RuleConfig{{Type: RuleTimeStop}}}.WithDefaults()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for missing max_bars")
	}
}

func TestValidateFailsOnBadRisk(t *testing.T) {
	cfg := StrategyConfig{
		Rules:           []RuleConfig{{Type: RuleMACD}},
		MaxRiskPerTrade: 0.9, // invalid
		StopLossPct:     0.015,
		StepSize:        0.0001,
	}.WithDefaults()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for MaxRiskPerTrade above 0.5")
	}
}
