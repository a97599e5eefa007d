package quota

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/liamashdown/launchwatch/internal/token"
)

// HoursPerDay is the number of hourly budgets in a plan
const HoursPerDay = 24

// Window gives the hours From..To (inclusive) a relative weight
type Window struct {
	Name   string `yaml:"name"`
	From   int    `yaml:"from"`
	To     int    `yaml:"to"`
	Weight int    `yaml:"weight"`
}

// UrgencyBand applies Threshold when the needed send rate exceeds Above
// alerts per minute
type UrgencyBand struct {
	Above     float64 `yaml:"above"`
	Threshold float64 `yaml:"threshold"`
}

// Config tunes the scheduler
type Config struct {
	DailyTarget      int                     `yaml:"daily_target"`
	ChainSplit       map[token.Chain]float64 `yaml:"chain_split"` // percent, sums to 100
	Windows          []Window                `yaml:"windows"`
	BaselineWeight   int                     `yaml:"baseline_weight"`
	MakeupHour       int                     `yaml:"makeup_hour"`
	Urgency          []UrgencyBand           `yaml:"urgency"` // highest Above first
	RelaxedThreshold float64                 `yaml:"relaxed_threshold"`
	ChainPenalty     float64                 `yaml:"chain_penalty"`
	Location         *time.Location          `yaml:"-"`
}

// DefaultChainSplit returns the stock per-chain share of the daily target
func DefaultChainSplit() map[token.Chain]float64 {
	return map[token.Chain]float64{
		token.ChainSolana:   40,
		token.ChainEthereum: 25,
		token.ChainBNB:      20,
		token.ChainBase:     15,
	}
}

// DefaultConfig returns the stock 500/day plan
func DefaultConfig() Config {
	return Config{
		DailyTarget: 500,
		ChainSplit:  DefaultChainSplit(),
		Windows: []Window{
			{Name: "night", From: 0, To: 6, Weight: 10},
			{Name: "morning_peak", From: 9, To: 11, Weight: 30},
			{Name: "afternoon_peak", From: 14, To: 16, Weight: 30},
			{Name: "evening_peak", From: 20, To: 22, Weight: 25},
		},
		BaselineWeight: 20,
		MakeupHour:     12,
		Urgency: []UrgencyBand{
			{Above: 1, Threshold: 50},
			{Above: 0.5, Threshold: 60},
		},
		RelaxedThreshold: 70,
		ChainPenalty:     20,
		Location:         time.Local,
	}
}

// Validate rejects configurations the scheduler cannot honor
func (c Config) Validate() error {
	if c.DailyTarget <= 0 {
		return fmt.Errorf("daily target must be > 0, got %d", c.DailyTarget)
	}
	if len(c.ChainSplit) == 0 {
		return fmt.Errorf("chain split must not be empty")
	}
	sum := 0.0
	for chain, pct := range c.ChainSplit {
		if pct < 0 || math.IsNaN(pct) {
			return fmt.Errorf("chain split for %s must be >= 0, got %v", chain, pct)
		}
		sum += pct
	}
	if math.Abs(sum-100) > 1e-6 {
		return fmt.Errorf("chain split must sum to 100, got %.4f", sum)
	}
	if c.BaselineWeight < 0 {
		return fmt.Errorf("baseline weight must be >= 0, got %d", c.BaselineWeight)
	}
	for _, w := range c.Windows {
		if w.From < 0 || w.To >= HoursPerDay || w.From > w.To {
			return fmt.Errorf("window %q has invalid hours %d-%d", w.Name, w.From, w.To)
		}
		if w.Weight < 0 {
			return fmt.Errorf("window %q weight must be >= 0, got %d", w.Name, w.Weight)
		}
	}
	total := 0
	for _, w := range hourWeights(c) {
		total += w
	}
	if total == 0 {
		return fmt.Errorf("hour weights must not all be zero")
	}
	if c.MakeupHour < 0 || c.MakeupHour >= HoursPerDay {
		return fmt.Errorf("makeup hour must be within 0-23, got %d", c.MakeupHour)
	}
	for i := 1; i < len(c.Urgency); i++ {
		if c.Urgency[i].Above >= c.Urgency[i-1].Above {
			return fmt.Errorf("urgency bands must be ordered by decreasing rate")
		}
	}
	if c.Location == nil {
		return fmt.Errorf("location must be set")
	}
	return nil
}

// hourWeights resolves the windows into one weight per hour. Later windows
// override earlier ones where they overlap.
func hourWeights(c Config) [HoursPerDay]int {
	var w [HoursPerDay]int
	for h := range w {
		w[h] = c.BaselineWeight
	}
	for _, win := range c.Windows {
		for h := win.From; h <= win.To && h < HoursPerDay; h++ {
			if h >= 0 {
				w[h] = win.Weight
			}
		}
	}
	return w
}

// BuildPlan distributes the daily target over the hours of the day in
// proportion to the hour weights. The rounding remainder goes to the
// make-up hour, so the budgets always sum to the daily target.
func BuildPlan(c Config) [HoursPerDay]int {
	weights := hourWeights(c)
	total := 0
	for _, w := range weights {
		total += w
	}

	var plan [HoursPerDay]int
	if total == 0 {
		return plan
	}

	allocated := 0
	for h, w := range weights {
		plan[h] = c.DailyTarget * w / total
		allocated += plan[h]
	}
	plan[c.MakeupHour] += c.DailyTarget - allocated
	return plan
}

// ChainHourQuota is a chain's share of one hour's budget, rounded up
func ChainHourQuota(hourBudget int, pct float64) int {
	return int(math.Ceil(float64(hourBudget) * pct / 100))
}

// ChainExpected splits the daily target by chain share. The rounding
// remainder goes to the largest share, so the values sum to the target.
func ChainExpected(target int, split map[token.Chain]float64) map[token.Chain]int {
	chains := make([]token.Chain, 0, len(split))
	for c := range split {
		chains = append(chains, c)
	}
	sort.Slice(chains, func(i, j int) bool {
		if split[chains[i]] != split[chains[j]] {
			return split[chains[i]] > split[chains[j]]
		}
		return chains[i] < chains[j]
	})

	out := make(map[token.Chain]int, len(chains))
	allocated := 0
	for _, c := range chains {
		out[c] = int(math.Floor(float64(target) * split[c] / 100))
		allocated += out[c]
	}
	if len(chains) > 0 {
		out[chains[0]] += target - allocated
	}
	return out
}
