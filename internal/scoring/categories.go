package scoring

import (
	"math"

	"github.com/liamashdown/launchwatch/internal/token"
)

// Every function in this file is pure: it reads the metrics snapshot and
// the engine's immutable tables and returns a value in [0,100].

func (e *Engine) scoreLiquidity(m *token.Metrics) float64 {
	r := e.rules.Liquidity
	sw := e.sub

	score := capped(r.Amount.Points(m.InitialLiquidityUSD), sw.LiquidityAmount)
	if m.LiquidityLocked {
		score += capped(r.LockDays.Points(float64(m.LiquidityLockDays)), sw.LiquidityLock)
	}
	score += capped(r.McapRatio.Points(m.LiquidityToMcapRatio), sw.LiquidityRatio)
	score += capped(r.Providers.Points(float64(m.LiquidityProviders)), sw.LiquidityProviders)

	return clamp(score, 0, 100)
}

func (e *Engine) scoreHolders(m *token.Metrics) float64 {
	r := e.rules.Holders
	sw := e.sub

	score := capped(r.Top10Pct.Points(m.Top10HoldersPct), sw.HolderDistribution)
	score += capped(r.GrowthRate.Points(m.HolderGrowthRate), sw.HolderGrowth)
	score += capped(r.UniqueBuyers.Points(float64(m.UniqueBuyersFirstHour)), sw.HolderUniqueBuyers)

	switch {
	case m.WhaleConcentration > r.WhaleSevere:
		score *= r.WhaleSevereFactor
	case m.WhaleConcentration > r.WhaleModerate:
		score *= r.WhaleModerateFactor
	}

	return clamp(score, 0, 100)
}

func (e *Engine) scoreSecurity(m *token.Metrics) float64 {
	// A honeypot can never be redeemed by any other signal
	if m.Honeypot {
		return 0
	}

	r := e.rules.Security
	sw := e.sub

	contract := r.NotHoneypot
	if m.ContractVerified {
		contract += r.Verified
	}
	if m.MintDisabled {
		contract += r.MintDisabled
	}
	score := capped(contract, sw.SecurityContract)

	if m.OwnershipRenounced {
		score += capped(r.Renounced, sw.SecurityOwnership)
	}

	if m.AuditScore != nil {
		score += capped(clamp(*m.AuditScore, 0, 100)/100*r.AuditMax, sw.SecurityAudit)
	}

	taxes := r.TaxPct.Points(m.TaxPct) + r.MaxTxPct.Points(m.MaxTxPct)
	score += capped(taxes, sw.SecurityTaxes)

	if n := len(m.RugPullIndicators); n > 0 {
		score *= math.Max(r.RugPenaltyFloor, 1-float64(n)*r.RugPenaltyStep)
	}

	return clamp(score, 0, 100)
}

func (e *Engine) scoreSocial(m *token.Metrics) float64 {
	r := e.rules.Social
	sw := e.sub

	community := float64(m.TelegramMembers + m.TwitterFollowers)
	score := capped(r.CommunitySize.Points(community), sw.SocialCommunity)
	score += capped(r.Engagement.Points(m.TwitterEngagementRate), sw.SocialEngagement)
	score += capped(r.Growth.Points(m.SocialGrowthRate), sw.SocialGrowth)

	sentiment := (clamp(m.SentimentScore, -1, 1) + 1) / 2 * r.SentimentMax
	sentiment += r.Influencers.Points(float64(m.InfluencerMentions))
	score += capped(sentiment, sw.SocialSentiment)

	return clamp(score, 0, 100)
}

func (e *Engine) scoreVolume(m *token.Metrics) float64 {
	r := e.rules.Volume
	sw := e.sub

	score := capped(r.Volume1h.Points(m.Volume1hUSD), sw.VolumeMagnitude)
	score += capped(r.BuySell.Points(m.BuySellRatio), sw.VolumeBuySell)
	score += capped(r.TradesPerM.Points(m.TradesPerMinute), sw.VolumeActivity)
	score += capped(r.Volatility.Points(m.PriceVolatility), sw.VolumeVolatility)

	return clamp(score, 0, 100)
}

func (e *Engine) scoreDeveloper(m *token.Metrics) float64 {
	r := e.rules.Developer
	sw := e.sub

	score := 0.0
	if m.TeamDoxxed {
		score += capped(r.Doxxed, sw.DeveloperTransparency)
	}
	score += capped(r.Commits.Points(float64(m.GithubCommits)), sw.DeveloperCommits)
	score += capped(r.Updates24h.Points(float64(m.CodeUpdates24h)), sw.DeveloperUpdates)
	score += capped(r.WalletHistory.Points(float64(m.DeveloperWalletHistory)), sw.DeveloperHistory)

	return clamp(score, 0, 100)
}

func (e *Engine) scoreCommunity(m *token.Metrics) float64 {
	r := e.rules.Community
	sw := e.sub

	size := float64(m.DiscordMembers + m.RedditSubscribers)
	score := capped(r.Size.Points(size), sw.CommunitySize)
	engagement := clamp(m.CommunityEngagement, 0, 100) / 100 * r.EngagementMax
	score += capped(engagement, sw.CommunityEngagement)

	return clamp(score, 0, 100)
}
