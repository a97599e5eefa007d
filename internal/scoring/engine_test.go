package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/liamashdown/launchwatch/internal/token"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func strongMetrics() token.Metrics {
	audit := 95.0
	return token.Metrics{
		Chain:                  token.ChainSolana,
		Address:                "So1anaMint111",
		LaunchTime:             testNow.Add(-30 * time.Minute),
		InitialLiquidityUSD:    250000,
		LiquidityLocked:        true,
		LiquidityLockDays:      400,
		LiquidityToMcapRatio:   0.2,
		LiquidityProviders:     150,
		TotalHolders:           3000,
		Top10HoldersPct:        15,
		UniqueBuyersFirstHour:  800,
		HolderGrowthRate:       150,
		WhaleConcentration:     0.1,
		ContractVerified:       true,
		MintDisabled:           true,
		OwnershipRenounced:     true,
		AuditScore:             &audit,
		TaxPct:                 1,
		MaxTxPct:               3,
		TelegramMembers:        8000,
		TwitterFollowers:       9000,
		TwitterEngagementRate:  6,
		SocialGrowthRate:       25,
		InfluencerMentions:     6,
		SentimentScore:         0.8,
		Volume1hUSD:            200000,
		BuySellRatio:           1.8,
		TradesPerMinute:        15,
		PriceVolatility:        0.1,
		GithubCommits:          80,
		CodeUpdates24h:         6,
		DeveloperWalletHistory: 4,
		TeamDoxxed:             true,
		DiscordMembers:         4000,
		RedditSubscribers:      2000,
		CommunityEngagement:    90,
	}
}

func TestLadderPoints(t *testing.T) {
	l := Ladder{Linear: true, Steps: []Step{{100, 40}, {50, 30}, {10, 10}}}

	tests := []struct {
		name     string
		value    float64
		expected float64
	}{
		{"above top step", 500, 40},
		{"exactly on top step", 100, 40},
		{"just below top step", 99.99, 30},
		{"exactly on lowest step", 10, 10},
		{"linear below lowest step", 5, 5},
		{"zero", 0, 0},
		{"negative", -3, 0},
		{"nan", math.NaN(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := l.Points(tt.value)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Points(%v) = %v, expected %v", tt.value, got, tt.expected)
			}
		})
	}

	stepped := Ladder{Steps: []Step{{5, 15}, {2, 10}, {1, 5}}}
	if got := stepped.Points(0.5); got != 0 {
		t.Errorf("non-linear ladder below lowest step = %v, expected 0", got)
	}
}

func TestInverseLadderPoints(t *testing.T) {
	l := DefaultRules().Holders.Top10Pct

	tests := []struct {
		value    float64
		expected float64
	}{
		{10, 50},
		{20, 50},
		{20.01, 40},
		{50, 20},
		{75, 10},
		{100, 0},
		{120, 0},
	}

	for _, tt := range tests {
		got := l.Points(tt.value)
		if math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("Points(%v) = %v, expected %v", tt.value, got, tt.expected)
		}
	}

	tax := DefaultRules().Security.TaxPct
	if got := tax.Points(11); got != 0 {
		t.Errorf("tax above last ceiling = %v, expected 0", got)
	}
}

func TestScoreBounds(t *testing.T) {
	e := newTestEngine(t)

	inputs := map[string]token.Metrics{
		"defaults": token.DefaultMetrics(token.DiscoveryEvent{Chain: token.ChainEthereum, Address: "0xabc", LaunchTime: testNow}),
		"strong":   strongMetrics(),
		"zero":     {},
		"garbage": {
			Chain:               token.ChainBNB,
			InitialLiquidityUSD: math.Inf(1),
			Top10HoldersPct:     -50,
			SentimentScore:      math.NaN(),
			TelegramMembers:     -10,
			CommunityEngagement: 1e9,
			WhaleConcentration:  math.Inf(-1),
		},
	}

	for name, m := range inputs {
		t.Run(name, func(t *testing.T) {
			res := e.Score(m, testNow)
			if res.Total < 0 || res.Total > 100 || math.IsNaN(res.Total) {
				t.Errorf("Total = %v, expected within [0,100]", res.Total)
			}
			if len(res.Components) != len(Categories) {
				t.Errorf("got %d components, expected %d", len(res.Components), len(Categories))
			}
			for c, v := range res.Components {
				if v < 0 || v > 100 || math.IsNaN(v) {
					t.Errorf("component %s = %v, expected within [0,100]", c, v)
				}
			}
		})
	}
}

func TestScoreDeterministic(t *testing.T) {
	e := newTestEngine(t)
	m := strongMetrics()

	first := e.Score(m, testNow)
	for i := 0; i < 10; i++ {
		got := e.Score(m, testNow)
		if got.Total != first.Total {
			t.Fatalf("run %d: Total = %v, expected %v", i, got.Total, first.Total)
		}
		for c, v := range first.Components {
			if got.Components[c] != v {
				t.Fatalf("run %d: component %s = %v, expected %v", i, c, got.Components[c], v)
			}
		}
	}
}

func TestStrongTokenIsClamped(t *testing.T) {
	e := newTestEngine(t)
	res := e.Score(strongMetrics(), testNow)

	if res.Total != 100 {
		t.Errorf("Total = %v, expected clamp to 100", res.Total)
	}
	if res.ChainMultiplier != 1.10 {
		t.Errorf("ChainMultiplier = %v, expected 1.10", res.ChainMultiplier)
	}
	if res.RecencyMultiplier != 1.2 {
		t.Errorf("RecencyMultiplier = %v, expected 1.2", res.RecencyMultiplier)
	}
}

func TestHoneypotForcesSecurityZero(t *testing.T) {
	e := newTestEngine(t)
	m := strongMetrics()
	m.Honeypot = true

	res := e.Score(m, testNow)
	if got := res.Components[CategorySecurity]; got != 0 {
		t.Errorf("security = %v, expected exactly 0 for a honeypot", got)
	}
}

func TestRugIndicatorPenalty(t *testing.T) {
	e := newTestEngine(t)
	clean := strongMetrics()
	base := e.Score(clean, testNow).Components[CategorySecurity]

	tests := []struct {
		name       string
		indicators []string
		factor     float64
	}{
		{"one indicator", []string{"lp_unlocked"}, 0.8},
		{"three indicators", []string{"a", "b", "c"}, 0.4},
		{"floor at five", []string{"a", "b", "c", "d", "e"}, 0.2},
		{"floor holds beyond five", []string{"a", "b", "c", "d", "e", "f", "g"}, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := strongMetrics()
			m.RugPullIndicators = tt.indicators
			got := e.Score(m, testNow).Components[CategorySecurity]
			if math.Abs(got-base*tt.factor) > 1e-9 {
				t.Errorf("security = %v, expected %v", got, base*tt.factor)
			}
		})
	}
}

func TestWhalePenalty(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		whale  float64
		factor float64
	}{
		{0.5, 1.0},
		{0.51, 0.75},
		{0.7, 0.75},
		{0.71, 0.5},
	}

	m := strongMetrics()
	m.WhaleConcentration = 0
	base := e.Score(m, testNow).Components[CategoryHolders]

	for _, tt := range tests {
		m.WhaleConcentration = tt.whale
		got := e.Score(m, testNow).Components[CategoryHolders]
		if math.Abs(got-base*tt.factor) > 1e-9 {
			t.Errorf("whale %v: holders = %v, expected %v", tt.whale, got, base*tt.factor)
		}
	}
}

func TestLockOnlyCountsWhenLocked(t *testing.T) {
	e := newTestEngine(t)
	m := strongMetrics()

	locked := e.Score(m, testNow).Components[CategoryLiquidity]
	m.LiquidityLocked = false
	unlocked := e.Score(m, testNow).Components[CategoryLiquidity]

	if math.Abs(locked-unlocked-30) > 1e-9 {
		t.Errorf("lock contribution = %v, expected 30", locked-unlocked)
	}
}

func TestRecencyMultiplier(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name     string
		age      time.Duration
		expected float64
	}{
		{"future launch counts as age zero", -2 * time.Hour, 1.2},
		{"brand new", 0, 1.2},
		{"exactly one hour", time.Hour, 1.2},
		{"two hours", 2 * time.Hour, 1.1},
		{"exactly twelve hours", 12 * time.Hour, 1.0},
		{"twenty hours", 20 * time.Hour, 0.95},
		{"two days", 48 * time.Hour, 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.RecencyMultiplier(testNow.Add(-tt.age), testNow)
			if got != tt.expected {
				t.Errorf("RecencyMultiplier() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestChainMultiplierUnknownChain(t *testing.T) {
	e := newTestEngine(t)
	if got := e.ChainMultiplier(token.Chain("tron")); got != 1.0 {
		t.Errorf("ChainMultiplier(tron) = %v, expected 1.0", got)
	}
}

func TestHoneypotLaunchFailsMinimumScore(t *testing.T) {
	e := newTestEngine(t)

	m := token.DefaultMetrics(token.DiscoveryEvent{
		Chain:      token.ChainSolana,
		Address:    "HoneyMint",
		LaunchTime: testNow.Add(-10 * time.Minute),
	})
	m.InitialLiquidityUSD = 5000
	m.TotalHolders = 150
	m.Top10HoldersPct = 75

	res := e.Score(m, testNow)
	if res.Components[CategorySecurity] != 0 {
		t.Errorf("security = %v, expected 0", res.Components[CategorySecurity])
	}
	if res.Total >= 60 {
		t.Errorf("Total = %v, expected below the minimum alert score 60", res.Total)
	}
}

func TestNewRejectsInvalidWeights(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"sum above one", func(c *Config) { c.Weights.Liquidity = 0.5 }},
		{"negative weight", func(c *Config) { c.Weights.Community = -0.02; c.Weights.Liquidity = 0.34 }},
		{"sub-weights off", func(c *Config) { c.SubWeights.SecurityAudit = 0.5 }},
		{"zero chain multiplier", func(c *Config) { c.ChainMultipliers[token.ChainBase] = 0 }},
		{"unordered recency", func(c *Config) { c.Recency[1].MaxAge = time.Minute }},
		{"rising recency", func(c *Config) { c.Recency[0].Multiplier = 0.9; c.Recency[1].Multiplier = 1.3 }},
		{"fallback above oldest step", func(c *Config) { c.RecencyFallback = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Error("New() expected error, got nil")
			}
		})
	}
}
