package scoring

import (
	"fmt"
	"math"
)

// Category is one of the seven scoring dimensions
type Category string

const (
	CategoryLiquidity Category = "liquidity"
	CategoryHolders   Category = "holders"
	CategorySecurity  Category = "security"
	CategorySocial    Category = "social"
	CategoryVolume    Category = "volume"
	CategoryDeveloper Category = "developer"
	CategoryCommunity Category = "community"
)

// Categories lists every category in report order
var Categories = []Category{
	CategoryLiquidity,
	CategoryHolders,
	CategorySecurity,
	CategorySocial,
	CategoryVolume,
	CategoryDeveloper,
	CategoryCommunity,
}

const weightTolerance = 1e-6

// Weights are the category weights of the composite score. They must sum to 1.
type Weights struct {
	Liquidity float64 `yaml:"liquidity"`
	Holders   float64 `yaml:"holders"`
	Security  float64 `yaml:"security"`
	Social    float64 `yaml:"social"`
	Volume    float64 `yaml:"volume"`
	Developer float64 `yaml:"developer"`
	Community float64 `yaml:"community"`
}

// DefaultWeights returns the stock category weights
func DefaultWeights() Weights {
	return Weights{
		Liquidity: 0.30,
		Holders:   0.20,
		Security:  0.25,
		Social:    0.10,
		Volume:    0.10,
		Developer: 0.03,
		Community: 0.02,
	}
}

// For returns the weight of a category
func (w Weights) For(c Category) float64 {
	switch c {
	case CategoryLiquidity:
		return w.Liquidity
	case CategoryHolders:
		return w.Holders
	case CategorySecurity:
		return w.Security
	case CategorySocial:
		return w.Social
	case CategoryVolume:
		return w.Volume
	case CategoryDeveloper:
		return w.Developer
	case CategoryCommunity:
		return w.Community
	}
	return 0
}

// Validate rejects negative weights and weights that do not sum to 1.
// Invalid weights are never renormalized.
func (w Weights) Validate() error {
	sum := 0.0
	for _, c := range Categories {
		v := w.For(c)
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("weight %s must be >= 0, got %v", c, v)
		}
		sum += v
	}
	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("category weights must sum to 1.0, got %.6f", sum)
	}
	return nil
}

// SubWeights split each category's 100 points among its sub-factors.
// A sub-factor can never contribute more than subWeight x 100 points.
type SubWeights struct {
	LiquidityAmount    float64 `yaml:"liquidity_amount"`
	LiquidityLock      float64 `yaml:"liquidity_lock"`
	LiquidityRatio     float64 `yaml:"liquidity_ratio"`
	LiquidityProviders float64 `yaml:"liquidity_providers"`

	HolderDistribution float64 `yaml:"holder_distribution"`
	HolderGrowth       float64 `yaml:"holder_growth"`
	HolderUniqueBuyers float64 `yaml:"holder_unique_buyers"`

	SecurityContract  float64 `yaml:"security_contract"`
	SecurityOwnership float64 `yaml:"security_ownership"`
	SecurityAudit     float64 `yaml:"security_audit"`
	SecurityTaxes     float64 `yaml:"security_taxes"`

	SocialCommunity  float64 `yaml:"social_community"`
	SocialEngagement float64 `yaml:"social_engagement"`
	SocialGrowth     float64 `yaml:"social_growth"`
	SocialSentiment  float64 `yaml:"social_sentiment"`

	VolumeMagnitude  float64 `yaml:"volume_magnitude"`
	VolumeBuySell    float64 `yaml:"volume_buy_sell"`
	VolumeActivity   float64 `yaml:"volume_activity"`
	VolumeVolatility float64 `yaml:"volume_volatility"`

	DeveloperTransparency float64 `yaml:"developer_transparency"`
	DeveloperCommits      float64 `yaml:"developer_commits"`
	DeveloperUpdates      float64 `yaml:"developer_updates"`
	DeveloperHistory      float64 `yaml:"developer_history"`

	CommunitySize       float64 `yaml:"community_size"`
	CommunityEngagement float64 `yaml:"community_engagement"`
}

// DefaultSubWeights returns the stock sub-factor split
func DefaultSubWeights() SubWeights {
	return SubWeights{
		LiquidityAmount:    0.40,
		LiquidityLock:      0.30,
		LiquidityRatio:     0.20,
		LiquidityProviders: 0.10,

		HolderDistribution: 0.50,
		HolderGrowth:       0.30,
		HolderUniqueBuyers: 0.20,

		SecurityContract:  0.40,
		SecurityOwnership: 0.20,
		SecurityAudit:     0.20,
		SecurityTaxes:     0.20,

		SocialCommunity:  0.40,
		SocialEngagement: 0.30,
		SocialGrowth:     0.20,
		SocialSentiment:  0.10,

		VolumeMagnitude:  0.40,
		VolumeBuySell:    0.30,
		VolumeActivity:   0.20,
		VolumeVolatility: 0.10,

		DeveloperTransparency: 0.40,
		DeveloperCommits:      0.30,
		DeveloperUpdates:      0.15,
		DeveloperHistory:      0.15,

		CommunitySize:       0.50,
		CommunityEngagement: 0.50,
	}
}

// Validate checks that every category's sub-weights sum to 1
func (s SubWeights) Validate() error {
	groups := []struct {
		cat    Category
		values []float64
	}{
		{CategoryLiquidity, []float64{s.LiquidityAmount, s.LiquidityLock, s.LiquidityRatio, s.LiquidityProviders}},
		{CategoryHolders, []float64{s.HolderDistribution, s.HolderGrowth, s.HolderUniqueBuyers}},
		{CategorySecurity, []float64{s.SecurityContract, s.SecurityOwnership, s.SecurityAudit, s.SecurityTaxes}},
		{CategorySocial, []float64{s.SocialCommunity, s.SocialEngagement, s.SocialGrowth, s.SocialSentiment}},
		{CategoryVolume, []float64{s.VolumeMagnitude, s.VolumeBuySell, s.VolumeActivity, s.VolumeVolatility}},
		{CategoryDeveloper, []float64{s.DeveloperTransparency, s.DeveloperCommits, s.DeveloperUpdates, s.DeveloperHistory}},
		{CategoryCommunity, []float64{s.CommunitySize, s.CommunityEngagement}},
	}
	for _, g := range groups {
		sum := 0.0
		for _, v := range g.values {
			if v < 0 || math.IsNaN(v) {
				return fmt.Errorf("%s sub-weight must be >= 0, got %v", g.cat, v)
			}
			sum += v
		}
		if math.Abs(sum-1) > weightTolerance {
			return fmt.Errorf("%s sub-weights must sum to 1.0, got %.6f", g.cat, sum)
		}
	}
	return nil
}

// capped limits a sub-factor's contribution to its share of 100 points
func capped(points, subWeight float64) float64 {
	return clamp(points, 0, subWeight*100)
}
