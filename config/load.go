package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// BrokerConfig parameterizes the paper broker.
type BrokerConfig struct {
	Cash       float64       `yaml:"cash"`       // default 10000
	Commission float64       `yaml:"commission"` // fraction of traded value, default 0.001
	Interval   time.Duration `yaml:"interval"`   // bar length, default 24h
}

// WithDefaults fills zero broker parameters. Parse only applies it to
// keys missing from the document.
func (b BrokerConfig) WithDefaults() BrokerConfig {
	if b.Cash == 0 {
		b.Cash = 10_000
	}
	if b.Commission == 0 {
		b.Commission = 0.001
	}
	if b.Interval == 0 {
		b.Interval = 24 * time.Hour
	}
	return b
}

// Validate rejects broker settings no simulation can run with.
func (b *BrokerConfig) Validate() error {
	if b.Cash <= 0 {
		return fmt.Errorf("cash (%f) must be positive", b.Cash)
	}
	if b.Commission < 0 || b.Commission >= 1 {
		return fmt.Errorf("commission (%f) must be within [0, 1)", b.Commission)
	}
	if b.Interval <= 0 {
		return fmt.Errorf("interval (%s) must be positive", b.Interval)
	}
	return nil
}

// File is the top-level YAML document.
type File struct {
	Broker     BrokerConfig     `yaml:"broker"`
	Strategies []StrategyConfig `yaml:"strategies"`
}

// Load reads and validates a strategies file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML document, applies defaults and validates every
// section. Broker defaults are laid down before decoding, so only absent
// keys take them and an explicit `commission: 0` is kept.
func Parse(data []byte) (*File, error) {
	f := File{Broker: BrokerConfig{}.WithDefaults()}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	for i := range f.Strategies {
		f.Strategies[i] = f.Strategies[i].WithDefaults()
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the broker section and every strategy.
func (f *File) Validate() error {
	if err := f.Broker.Validate(); err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	if len(f.Strategies) == 0 {
		return fmt.Errorf("no strategies configured")
	}
	seen := make(map[string]bool, len(f.Strategies))
	for i := range f.Strategies {
		s := &f.Strategies[i]
		if err := s.Validate(); err != nil {
			return fmt.Errorf("strategy %q: %w", s.Name, err)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate strategy name %q", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// Environment overrides applied by ApplyEnv.
const (
	EnvCash       = "GOSIG_CASH"
	EnvCommission = "GOSIG_COMMISSION"
	EnvStake      = "GOSIG_STAKE"
)

// ApplyEnv overrides broker cash/commission and every fixed-size stake from
// the environment. lookup is usually os.LookupEnv.
func (f *File) ApplyEnv(lookup func(string) (string, bool)) error {
	parse := func(key string, dst *float64) error {
		raw, ok := lookup(key)
		if !ok || raw == "" {
			return nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = v
		return nil
	}
	if err := parse(EnvCash, &f.Broker.Cash); err != nil {
		return err
	}
	if err := parse(EnvCommission, &f.Broker.Commission); err != nil {
		return err
	}
	var stake float64
	if err := parse(EnvStake, &stake); err != nil {
		return err
	}
	if stake > 0 {
		for i := range f.Strategies {
			if f.Strategies[i].MaxRiskPerTrade == 0 {
				f.Strategies[i].Stake = stake
			}
		}
	}
	return f.Validate()
}

// Default mirrors the stock setup: one 50/200 golden/death cross strategy,
// 10 000 cash, 0.1 % commission and a fixed stake of 10.
func Default() *File {
	f := &File{
		Broker: BrokerConfig{}.WithDefaults(),
		Strategies: []StrategyConfig{
			StrategyConfig{
				Name:  "golden_cross",
				Rules: []RuleConfig{{Type: RuleCrossover}},
			}.WithDefaults(),
		},
	}
	return f
}
