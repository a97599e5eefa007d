package confidence

import (
	"fmt"
	"math"
	"sort"

	"github.com/liamashdown/launchwatch/internal/scoring"
)

// Level is the coarse confidence band of a score
type Level string

const (
	LevelVeryLow Level = "VERY_LOW"
	LevelLow     Level = "LOW"
	LevelMedium  Level = "MEDIUM"
	LevelHigh    Level = "HIGH"
)

// Risk is the assessed downside of a token
type Risk string

const (
	RiskLow    Risk = "LOW"
	RiskMedium Risk = "MEDIUM"
	RiskHigh   Risk = "HIGH"
)

// Timeframe is the predicted horizon for a 2x move
type Timeframe string

const (
	Timeframe4to8   Timeframe = "4-8h"
	Timeframe8to16  Timeframe = "8-16h"
	Timeframe16to24 Timeframe = "16-24h"
	TimeframeOver24 Timeframe = "24h+"
)

// Report summarizes how much a score can be trusted
type Report struct {
	Level              Level              `json:"level"`
	ScoreConfidence    float64            `json:"score_confidence"`
	SuccessProbability float64            `json:"success_probability"`
	CombinedConfidence float64            `json:"combined_confidence"`
	Risk               Risk               `json:"risk"`
	WeakPoints         []scoring.Category `json:"weak_points"`
	StrongPoints       []scoring.Category `json:"strong_points"`
	Timeframe          Timeframe          `json:"timeframe"`
}

// Band maps scores at or above MinScore to a level and its base confidence
type Band struct {
	MinScore   float64 `yaml:"min_score"`
	Level      Level   `yaml:"level"`
	Confidence float64 `yaml:"confidence"`
}

// Config tunes the confidence engine
type Config struct {
	Bands          []Band  `yaml:"bands"` // highest MinScore first, last band is the fallback
	ScoreWeight    float64 `yaml:"score_weight"`
	WeakBelow      float64 `yaml:"weak_below"`
	StrongFrom     float64 `yaml:"strong_from"`
	MinSecurity    float64 `yaml:"min_security"`
	MediumRiskWeak int     `yaml:"medium_risk_weak"`
}

// DefaultConfig returns the stock confidence tuning
func DefaultConfig() Config {
	return Config{
		Bands: []Band{
			{MinScore: 80, Level: LevelHigh, Confidence: 0.85},
			{MinScore: 65, Level: LevelMedium, Confidence: 0.65},
			{MinScore: 50, Level: LevelLow, Confidence: 0.45},
			{MinScore: 0, Level: LevelVeryLow, Confidence: 0.25},
		},
		ScoreWeight:    0.7,
		WeakBelow:      40,
		StrongFrom:     70,
		MinSecurity:    40,
		MediumRiskWeak: 3,
	}
}

// Validate checks band ordering and weight range
func (c Config) Validate() error {
	if len(c.Bands) == 0 {
		return fmt.Errorf("at least one confidence band is required")
	}
	for i := 1; i < len(c.Bands); i++ {
		if c.Bands[i].MinScore >= c.Bands[i-1].MinScore {
			return fmt.Errorf("confidence bands must be ordered by decreasing min_score")
		}
	}
	if c.ScoreWeight < 0 || c.ScoreWeight > 1 {
		return fmt.Errorf("score_weight must be within [0,1], got %v", c.ScoreWeight)
	}
	if c.WeakBelow > c.StrongFrom {
		return fmt.Errorf("weak_below (%v) must not exceed strong_from (%v)", c.WeakBelow, c.StrongFrom)
	}
	return nil
}

// Engine derives confidence reports. It is stateless.
type Engine struct {
	cfg Config
}

// New validates cfg and builds an engine
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid confidence config: %w", err)
	}
	cfg.Bands = append([]Band(nil), cfg.Bands...)
	return &Engine{cfg: cfg}, nil
}

// Evaluate builds the report for a score, its category components and an
// externally supplied success probability (clamped to [0,1]).
func (e *Engine) Evaluate(score float64, components map[scoring.Category]float64, successProbability float64) Report {
	p := clamp01(successProbability)

	band := e.cfg.Bands[len(e.cfg.Bands)-1]
	for _, b := range e.cfg.Bands {
		if score >= b.MinScore {
			band = b
			break
		}
	}

	combined := clamp01(band.Confidence*e.cfg.ScoreWeight + p*(1-e.cfg.ScoreWeight))

	weak := make([]scoring.Category, 0)
	strong := make([]scoring.Category, 0)
	for c, v := range components {
		if v < e.cfg.WeakBelow {
			weak = append(weak, c)
		}
		if v >= e.cfg.StrongFrom {
			strong = append(strong, c)
		}
	}
	sortCategories(weak)
	sortCategories(strong)

	return Report{
		Level:              band.Level,
		ScoreConfidence:    band.Confidence,
		SuccessProbability: p,
		CombinedConfidence: combined,
		Risk:               e.risk(components, len(weak)),
		WeakPoints:         weak,
		StrongPoints:       strong,
		Timeframe:          EstimateTimeframe(combined),
	}
}

func (e *Engine) risk(components map[scoring.Category]float64, weakCount int) Risk {
	security, ok := components[scoring.CategorySecurity]
	if ok && (security < e.cfg.MinSecurity || security < e.cfg.WeakBelow) {
		return RiskHigh
	}
	if weakCount >= e.cfg.MediumRiskWeak {
		return RiskMedium
	}
	return RiskLow
}

// EstimateTimeframe maps combined confidence to a 2x horizon
func EstimateTimeframe(combined float64) Timeframe {
	switch {
	case combined >= 0.7:
		return Timeframe4to8
	case combined >= 0.5:
		return Timeframe8to16
	case combined >= 0.3:
		return Timeframe16to24
	default:
		return TimeframeOver24
	}
}

func sortCategories(cs []scoring.Category) {
	sort.Slice(cs, func(i, j int) bool { return cs[i] < cs[j] })
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
