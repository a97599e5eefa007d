package token

// Partial is an enrichment document. Nil fields were not provided by the
// collaborator and keep their documented default.
type Partial struct {
	Name   *string `json:"name,omitempty"`
	Symbol *string `json:"symbol,omitempty"`

	InitialLiquidityUSD  *float64 `json:"initial_liquidity,omitempty"`
	LiquidityLocked      *bool    `json:"liquidity_locked,omitempty"`
	LiquidityLockDays    *int     `json:"lock_duration,omitempty"`
	LiquidityToMcapRatio *float64 `json:"liq_mcap_ratio,omitempty"`
	LiquidityProviders   *int     `json:"lp_count,omitempty"`

	TotalHolders          *int     `json:"total_holders,omitempty"`
	Top10HoldersPct       *float64 `json:"top_10_percentage,omitempty"`
	TopHolderPct          *float64 `json:"top_holder_percentage,omitempty"`
	UniqueBuyersFirstHour *int     `json:"unique_buyers_1h,omitempty"`
	HolderGrowthRate      *float64 `json:"growth_rate,omitempty"`
	WhaleConcentration    *float64 `json:"whale_concentration,omitempty"`

	ContractVerified   *bool    `json:"verified,omitempty"`
	Honeypot           *bool    `json:"is_honeypot,omitempty"`
	MintDisabled       *bool    `json:"mint_disabled,omitempty"`
	MaxTxPct           *float64 `json:"max_tx_percent,omitempty"`
	TaxPct             *float64 `json:"tax_percent,omitempty"`
	OwnershipRenounced *bool    `json:"renounced,omitempty"`
	AuditScore         *float64 `json:"audit_score,omitempty"`
	RugPullIndicators  []string `json:"rug_indicators,omitempty"`
	SimilarNameTokens  *int     `json:"similar_tokens,omitempty"`

	TelegramMembers       *int     `json:"telegram_members,omitempty"`
	TwitterFollowers      *int     `json:"twitter_followers,omitempty"`
	TwitterEngagementRate *float64 `json:"engagement_rate,omitempty"`
	SocialGrowthRate      *float64 `json:"social_growth_rate,omitempty"`
	InfluencerMentions    *int     `json:"influencer_mentions,omitempty"`
	SentimentScore        *float64 `json:"sentiment,omitempty"`

	Volume1hUSD         *float64 `json:"volume_1h,omitempty"`
	Volume24hUSD        *float64 `json:"volume_24h,omitempty"`
	BuySellRatio        *float64 `json:"buy_sell_ratio,omitempty"`
	AverageTradeSizeUSD *float64 `json:"avg_trade_size,omitempty"`
	TradesPerMinute     *float64 `json:"trades_per_minute,omitempty"`
	PriceVolatility     *float64 `json:"volatility,omitempty"`

	GithubCommits          *int  `json:"commits,omitempty"`
	CodeUpdates24h         *int  `json:"updates_24h,omitempty"`
	DeveloperWalletHistory *int  `json:"wallet_history,omitempty"`
	TeamDoxxed             *bool `json:"doxxed,omitempty"`

	DiscordMembers      *int     `json:"discord_members,omitempty"`
	RedditSubscribers   *int     `json:"reddit_subs,omitempty"`
	CommunityEngagement *float64 `json:"engagement_score,omitempty"`
}

// Apply merges the provided fields over m and returns the result
func (p Partial) Apply(m Metrics) Metrics {
	setS := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setF := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setI := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setB := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}

	setS(&m.Name, p.Name)
	setS(&m.Symbol, p.Symbol)

	setF(&m.InitialLiquidityUSD, p.InitialLiquidityUSD)
	setB(&m.LiquidityLocked, p.LiquidityLocked)
	setI(&m.LiquidityLockDays, p.LiquidityLockDays)
	setF(&m.LiquidityToMcapRatio, p.LiquidityToMcapRatio)
	setI(&m.LiquidityProviders, p.LiquidityProviders)

	setI(&m.TotalHolders, p.TotalHolders)
	setF(&m.Top10HoldersPct, p.Top10HoldersPct)
	setF(&m.TopHolderPct, p.TopHolderPct)
	setI(&m.UniqueBuyersFirstHour, p.UniqueBuyersFirstHour)
	setF(&m.HolderGrowthRate, p.HolderGrowthRate)
	setF(&m.WhaleConcentration, p.WhaleConcentration)

	setB(&m.ContractVerified, p.ContractVerified)
	setB(&m.Honeypot, p.Honeypot)
	setB(&m.MintDisabled, p.MintDisabled)
	setF(&m.MaxTxPct, p.MaxTxPct)
	setF(&m.TaxPct, p.TaxPct)
	setB(&m.OwnershipRenounced, p.OwnershipRenounced)
	if p.AuditScore != nil {
		v := *p.AuditScore
		m.AuditScore = &v
	}
	if p.RugPullIndicators != nil {
		m.RugPullIndicators = append([]string(nil), p.RugPullIndicators...)
	}
	setI(&m.SimilarNameTokens, p.SimilarNameTokens)

	setI(&m.TelegramMembers, p.TelegramMembers)
	setI(&m.TwitterFollowers, p.TwitterFollowers)
	setF(&m.TwitterEngagementRate, p.TwitterEngagementRate)
	setF(&m.SocialGrowthRate, p.SocialGrowthRate)
	setI(&m.InfluencerMentions, p.InfluencerMentions)
	setF(&m.SentimentScore, p.SentimentScore)

	setF(&m.Volume1hUSD, p.Volume1hUSD)
	setF(&m.Volume24hUSD, p.Volume24hUSD)
	setF(&m.BuySellRatio, p.BuySellRatio)
	setF(&m.AverageTradeSizeUSD, p.AverageTradeSizeUSD)
	setF(&m.TradesPerMinute, p.TradesPerMinute)
	setF(&m.PriceVolatility, p.PriceVolatility)

	setI(&m.GithubCommits, p.GithubCommits)
	setI(&m.CodeUpdates24h, p.CodeUpdates24h)
	setI(&m.DeveloperWalletHistory, p.DeveloperWalletHistory)
	setB(&m.TeamDoxxed, p.TeamDoxxed)

	setI(&m.DiscordMembers, p.DiscordMembers)
	setI(&m.RedditSubscribers, p.RedditSubscribers)
	setF(&m.CommunityEngagement, p.CommunityEngagement)

	return m
}

// Merge combines two partial documents; fields set in other win
func (p Partial) Merge(other Partial) Partial {
	out := p
	if other.Name != nil {
		out.Name = other.Name
	}
	if other.Symbol != nil {
		out.Symbol = other.Symbol
	}
	mergeF := func(dst **float64, src *float64) {
		if src != nil {
			*dst = src
		}
	}
	mergeI := func(dst **int, src *int) {
		if src != nil {
			*dst = src
		}
	}
	mergeB := func(dst **bool, src *bool) {
		if src != nil {
			*dst = src
		}
	}
	mergeF(&out.InitialLiquidityUSD, other.InitialLiquidityUSD)
	mergeB(&out.LiquidityLocked, other.LiquidityLocked)
	mergeI(&out.LiquidityLockDays, other.LiquidityLockDays)
	mergeF(&out.LiquidityToMcapRatio, other.LiquidityToMcapRatio)
	mergeI(&out.LiquidityProviders, other.LiquidityProviders)
	mergeI(&out.TotalHolders, other.TotalHolders)
	mergeF(&out.Top10HoldersPct, other.Top10HoldersPct)
	mergeF(&out.TopHolderPct, other.TopHolderPct)
	mergeI(&out.UniqueBuyersFirstHour, other.UniqueBuyersFirstHour)
	mergeF(&out.HolderGrowthRate, other.HolderGrowthRate)
	mergeF(&out.WhaleConcentration, other.WhaleConcentration)
	mergeB(&out.ContractVerified, other.ContractVerified)
	mergeB(&out.Honeypot, other.Honeypot)
	mergeB(&out.MintDisabled, other.MintDisabled)
	mergeF(&out.MaxTxPct, other.MaxTxPct)
	mergeF(&out.TaxPct, other.TaxPct)
	mergeB(&out.OwnershipRenounced, other.OwnershipRenounced)
	mergeF(&out.AuditScore, other.AuditScore)
	if other.RugPullIndicators != nil {
		out.RugPullIndicators = other.RugPullIndicators
	}
	mergeI(&out.SimilarNameTokens, other.SimilarNameTokens)
	mergeI(&out.TelegramMembers, other.TelegramMembers)
	mergeI(&out.TwitterFollowers, other.TwitterFollowers)
	mergeF(&out.TwitterEngagementRate, other.TwitterEngagementRate)
	mergeF(&out.SocialGrowthRate, other.SocialGrowthRate)
	mergeI(&out.InfluencerMentions, other.InfluencerMentions)
	mergeF(&out.SentimentScore, other.SentimentScore)
	mergeF(&out.Volume1hUSD, other.Volume1hUSD)
	mergeF(&out.Volume24hUSD, other.Volume24hUSD)
	mergeF(&out.BuySellRatio, other.BuySellRatio)
	mergeF(&out.AverageTradeSizeUSD, other.AverageTradeSizeUSD)
	mergeF(&out.TradesPerMinute, other.TradesPerMinute)
	mergeF(&out.PriceVolatility, other.PriceVolatility)
	mergeI(&out.GithubCommits, other.GithubCommits)
	mergeI(&out.CodeUpdates24h, other.CodeUpdates24h)
	mergeI(&out.DeveloperWalletHistory, other.DeveloperWalletHistory)
	mergeB(&out.TeamDoxxed, other.TeamDoxxed)
	mergeI(&out.DiscordMembers, other.DiscordMembers)
	mergeI(&out.RedditSubscribers, other.RedditSubscribers)
	mergeF(&out.CommunityEngagement, other.CommunityEngagement)
	return out
}
