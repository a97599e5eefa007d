package scoring

import (
	"fmt"
	"time"

	"github.com/liamashdown/launchwatch/internal/token"
)

// RecencyStep applies Multiplier to tokens no older than MaxAge
type RecencyStep struct {
	MaxAge     time.Duration `yaml:"max_age"`
	Multiplier float64       `yaml:"multiplier"`
}

// Config is the full tuning of the scoring engine
type Config struct {
	Weights          Weights                 `yaml:"weights"`
	SubWeights       SubWeights              `yaml:"sub_weights"`
	Rules            Rules                   `yaml:"rules"`
	ChainMultipliers map[token.Chain]float64 `yaml:"chain_multipliers"`
	Recency          []RecencyStep           `yaml:"recency"`
	RecencyFallback  float64                 `yaml:"recency_fallback"`
}

// DefaultConfig returns the stock scoring configuration
func DefaultConfig() Config {
	return Config{
		Weights:    DefaultWeights(),
		SubWeights: DefaultSubWeights(),
		Rules:      DefaultRules(),
		ChainMultipliers: map[token.Chain]float64{
			token.ChainSolana:   1.10,
			token.ChainEthereum: 0.95,
			token.ChainBNB:      1.05,
			token.ChainBase:     1.00,
		},
		Recency: []RecencyStep{
			{MaxAge: time.Hour, Multiplier: 1.2},
			{MaxAge: 4 * time.Hour, Multiplier: 1.1},
			{MaxAge: 12 * time.Hour, Multiplier: 1.0},
			{MaxAge: 24 * time.Hour, Multiplier: 0.95},
		},
		RecencyFallback: 0.9,
	}
}

// Validate checks weights, sub-weights and multipliers
func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if err := c.SubWeights.Validate(); err != nil {
		return err
	}
	for chain, m := range c.ChainMultipliers {
		if m <= 0 {
			return fmt.Errorf("chain multiplier for %s must be > 0, got %v", chain, m)
		}
	}
	for i, s := range c.Recency {
		if s.Multiplier <= 0 {
			return fmt.Errorf("recency multiplier %d must be > 0, got %v", i, s.Multiplier)
		}
		if i == 0 {
			continue
		}
		prev := c.Recency[i-1]
		if s.MaxAge <= prev.MaxAge {
			return fmt.Errorf("recency steps must be ordered by increasing max_age")
		}
		if s.Multiplier > prev.Multiplier {
			return fmt.Errorf("recency multiplier %d (%v) exceeds the younger step's %v", i, s.Multiplier, prev.Multiplier)
		}
	}
	if c.RecencyFallback <= 0 {
		return fmt.Errorf("recency fallback must be > 0, got %v", c.RecencyFallback)
	}
	if n := len(c.Recency); n > 0 && c.RecencyFallback > c.Recency[n-1].Multiplier {
		return fmt.Errorf("recency fallback %v exceeds the oldest step's %v", c.RecencyFallback, c.Recency[n-1].Multiplier)
	}
	return nil
}

// Result is the outcome of scoring one token
type Result struct {
	Total             float64              `json:"total"`
	Components        map[Category]float64 `json:"components"`
	ChainMultiplier   float64              `json:"chain_multiplier"`
	RecencyMultiplier float64              `json:"recency_multiplier"`
}

// Engine converts token metrics into a bounded composite score.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	weights  Weights
	sub      SubWeights
	rules    Rules
	chains   map[token.Chain]float64
	recency  []RecencyStep
	fallback float64
}

// New validates cfg and builds an engine
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring config: %w", err)
	}

	chains := make(map[token.Chain]float64, len(cfg.ChainMultipliers))
	for k, v := range cfg.ChainMultipliers {
		chains[k] = v
	}

	return &Engine{
		weights:  cfg.Weights,
		sub:      cfg.SubWeights,
		rules:    cfg.Rules,
		chains:   chains,
		recency:  append([]RecencyStep(nil), cfg.Recency...),
		fallback: cfg.RecencyFallback,
	}, nil
}

// Score evaluates m as of now. The result is deterministic for the same
// inputs and Total always lies in [0,100].
func (e *Engine) Score(m token.Metrics, now time.Time) Result {
	m = m.Sanitized()

	components := map[Category]float64{
		CategoryLiquidity: e.scoreLiquidity(&m),
		CategoryHolders:   e.scoreHolders(&m),
		CategorySecurity:  e.scoreSecurity(&m),
		CategorySocial:    e.scoreSocial(&m),
		CategoryVolume:    e.scoreVolume(&m),
		CategoryDeveloper: e.scoreDeveloper(&m),
		CategoryCommunity: e.scoreCommunity(&m),
	}

	base := 0.0
	for _, c := range Categories {
		base += components[c] * e.weights.For(c)
	}

	chainMul := e.ChainMultiplier(m.Chain)
	recencyMul := e.RecencyMultiplier(m.LaunchTime, now)

	return Result{
		Total:             clamp(base*chainMul*recencyMul, 0, 100),
		Components:        components,
		ChainMultiplier:   chainMul,
		RecencyMultiplier: recencyMul,
	}
}

// ChainMultiplier returns the multiplier of a chain, 1.0 when unknown
func (e *Engine) ChainMultiplier(c token.Chain) float64 {
	if m, ok := e.chains[c]; ok {
		return m
	}
	return 1.0
}

// RecencyMultiplier returns the freshness multiplier for a launch time.
// A launch time in the future counts as age zero.
func (e *Engine) RecencyMultiplier(launch, now time.Time) float64 {
	age := now.Sub(launch)
	if age < 0 {
		age = 0
	}
	for _, s := range e.recency {
		if age <= s.MaxAge {
			return s.Multiplier
		}
	}
	return e.fallback
}
