package token

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Chain identifies a monitored blockchain
type Chain string

const (
	ChainSolana   Chain = "solana"
	ChainEthereum Chain = "ethereum"
	ChainBNB      Chain = "bnb"
	ChainBase     Chain = "base"
)

// AllChains lists the chains in their canonical order
var AllChains = []Chain{ChainSolana, ChainEthereum, ChainBNB, ChainBase}

// ParseChain normalizes a chain name. Common aliases are accepted.
func ParseChain(s string) (Chain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "solana", "sol":
		return ChainSolana, nil
	case "ethereum", "eth":
		return ChainEthereum, nil
	case "bnb", "bsc":
		return ChainBNB, nil
	case "base":
		return ChainBase, nil
	default:
		return "", fmt.Errorf("unknown chain %q", s)
	}
}

// ID is the unique identity of a token across chains ("chain:address")
type ID string

// NewID builds a token ID. Addresses are case-folded for EVM chains only,
// Solana mints are case-sensitive base58.
func NewID(chain Chain, address string) ID {
	address = strings.TrimSpace(address)
	if chain != ChainSolana {
		address = strings.ToLower(address)
	}
	return ID(string(chain) + ":" + address)
}

// DiscoveryEvent is what a chain feed yields for a freshly created pool/token
type DiscoveryEvent struct {
	Chain      Chain     `json:"chain"`
	Address    string    `json:"address"`
	Name       string    `json:"name,omitempty"`
	Symbol     string    `json:"symbol,omitempty"`
	LaunchTime time.Time `json:"launch_time"`
}

// ID returns the token identity of the event
func (e DiscoveryEvent) ID() ID {
	return NewID(e.Chain, e.Address)
}

// Metrics is an immutable snapshot of one token at evaluation time
type Metrics struct {
	Chain      Chain
	Address    string
	Name       string
	Symbol     string
	LaunchTime time.Time

	// Liquidity
	InitialLiquidityUSD  float64
	LiquidityLocked      bool
	LiquidityLockDays    int
	LiquidityToMcapRatio float64
	LiquidityProviders   int

	// Holder distribution
	TotalHolders          int
	Top10HoldersPct       float64
	TopHolderPct          float64
	UniqueBuyersFirstHour int
	HolderGrowthRate      float64 // holders per hour
	WhaleConcentration    float64 // 0-1

	// Security
	ContractVerified   bool
	Honeypot           bool
	MintDisabled       bool
	MaxTxPct           float64
	TaxPct             float64
	OwnershipRenounced bool
	AuditScore         *float64 // 0-100, nil when no audit exists
	RugPullIndicators  []string
	SimilarNameTokens  int

	// Social
	TelegramMembers       int
	TwitterFollowers      int
	TwitterEngagementRate float64
	SocialGrowthRate      float64 // percent per hour
	InfluencerMentions    int
	SentimentScore        float64 // -1..1

	// Trading volume
	Volume1hUSD         float64
	Volume24hUSD        float64
	BuySellRatio        float64
	AverageTradeSizeUSD float64
	TradesPerMinute     float64
	PriceVolatility     float64

	// Developer activity
	GithubCommits          int
	CodeUpdates24h         int
	DeveloperWalletHistory int
	TeamDoxxed             bool

	// Community
	DiscordMembers      int
	RedditSubscribers   int
	CommunityEngagement float64 // 0-100
}

// ID returns the token identity
func (m Metrics) ID() ID {
	return NewID(m.Chain, m.Address)
}

// DefaultMetrics returns the documented defaults for a discovery event.
// Unknown security facts fail closed: a token is a honeypot with 100% tax
// and fully concentrated holders until an enricher says otherwise.
func DefaultMetrics(ev DiscoveryEvent) Metrics {
	return Metrics{
		Chain:              ev.Chain,
		Address:            ev.Address,
		Name:               ev.Name,
		Symbol:             ev.Symbol,
		LaunchTime:         ev.LaunchTime,
		Top10HoldersPct:    100,
		TopHolderPct:       100,
		WhaleConcentration: 1.0,
		Honeypot:           true,
		TaxPct:             100,
	}
}

// finite maps NaN and infinities to zero
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Sanitized returns a copy with non-finite numbers zeroed and negative
// counts clamped to zero. The original is left untouched.
func (m Metrics) Sanitized() Metrics {
	out := m
	for _, f := range []*float64{
		&out.InitialLiquidityUSD, &out.LiquidityToMcapRatio, &out.Top10HoldersPct,
		&out.TopHolderPct, &out.HolderGrowthRate, &out.WhaleConcentration,
		&out.MaxTxPct, &out.TaxPct, &out.TwitterEngagementRate, &out.SocialGrowthRate,
		&out.SentimentScore, &out.Volume1hUSD, &out.Volume24hUSD, &out.BuySellRatio,
		&out.AverageTradeSizeUSD, &out.TradesPerMinute, &out.PriceVolatility,
		&out.CommunityEngagement,
	} {
		*f = finite(*f)
	}
	for _, n := range []*int{
		&out.LiquidityLockDays, &out.LiquidityProviders, &out.TotalHolders,
		&out.UniqueBuyersFirstHour, &out.SimilarNameTokens, &out.TelegramMembers,
		&out.TwitterFollowers, &out.InfluencerMentions, &out.GithubCommits,
		&out.CodeUpdates24h, &out.DeveloperWalletHistory, &out.DiscordMembers,
		&out.RedditSubscribers,
	} {
		if *n < 0 {
			*n = 0
		}
	}
	if out.AuditScore != nil {
		v := finite(*out.AuditScore)
		out.AuditScore = &v
	}
	if len(m.RugPullIndicators) > 0 {
		out.RugPullIndicators = append([]string(nil), m.RugPullIndicators...)
	}
	return out
}
