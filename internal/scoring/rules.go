package scoring

// Rules hold the tuning tables of every category. The values below are
// example tuning; any of them can be replaced from the tuning file.
type Rules struct {
	Liquidity LiquidityRules `yaml:"liquidity"`
	Holders   HolderRules    `yaml:"holders"`
	Security  SecurityRules  `yaml:"security"`
	Social    SocialRules    `yaml:"social"`
	Volume    VolumeRules    `yaml:"volume"`
	Developer DeveloperRules `yaml:"developer"`
	Community CommunityRules `yaml:"community"`
}

type LiquidityRules struct {
	Amount    Ladder `yaml:"amount"`
	LockDays  Ladder `yaml:"lock_days"` // applies only when liquidity is locked
	McapRatio Ladder `yaml:"mcap_ratio"`
	Providers Ladder `yaml:"providers"`
}

type HolderRules struct {
	Top10Pct            InverseLadder `yaml:"top10_pct"`
	GrowthRate          Ladder        `yaml:"growth_rate"`
	UniqueBuyers        Ladder        `yaml:"unique_buyers"`
	WhaleSevere         float64       `yaml:"whale_severe"`
	WhaleSevereFactor   float64       `yaml:"whale_severe_factor"`
	WhaleModerate       float64       `yaml:"whale_moderate"`
	WhaleModerateFactor float64       `yaml:"whale_moderate_factor"`
}

type SecurityRules struct {
	Verified        float64       `yaml:"verified"`
	NotHoneypot     float64       `yaml:"not_honeypot"`
	MintDisabled    float64       `yaml:"mint_disabled"`
	Renounced       float64       `yaml:"renounced"`
	AuditMax        float64       `yaml:"audit_max"`
	TaxPct          InverseLadder `yaml:"tax_pct"`
	MaxTxPct        Ladder        `yaml:"max_tx_pct"`
	RugPenaltyStep  float64       `yaml:"rug_penalty_step"`
	RugPenaltyFloor float64       `yaml:"rug_penalty_floor"`
}

type SocialRules struct {
	CommunitySize Ladder  `yaml:"community_size"`
	Engagement    Ladder  `yaml:"engagement"`
	Growth        Ladder  `yaml:"growth"`
	SentimentMax  float64 `yaml:"sentiment_max"`
	Influencers   Ladder  `yaml:"influencers"`
}

type VolumeRules struct {
	Volume1h   Ladder `yaml:"volume_1h"`
	BuySell    Ladder `yaml:"buy_sell"`
	TradesPerM Ladder `yaml:"trades_per_minute"`
	Volatility Bands  `yaml:"volatility"`
}

type DeveloperRules struct {
	Doxxed        float64 `yaml:"doxxed"`
	Commits       Ladder  `yaml:"commits"`
	Updates24h    Ladder  `yaml:"updates_24h"`
	WalletHistory Ladder  `yaml:"wallet_history"`
}

type CommunityRules struct {
	Size          Ladder  `yaml:"size"`
	EngagementMax float64 `yaml:"engagement_max"`
}

// DefaultRules returns the stock tuning tables
func DefaultRules() Rules {
	return Rules{
		Liquidity: LiquidityRules{
			Amount: Ladder{Linear: true, Steps: []Step{
				{100000, 40}, {50000, 30}, {20000, 20}, {10000, 10},
			}},
			LockDays: Ladder{Steps: []Step{
				{365, 30}, {180, 25}, {90, 20}, {30, 15}, {0, 10},
			}},
			McapRatio: Ladder{Linear: true, Steps: []Step{
				{0.15, 20}, {0.10, 15}, {0.05, 10},
			}},
			Providers: Ladder{Linear: true, Steps: []Step{
				{100, 10}, {50, 7}, {20, 5},
			}},
		},
		Holders: HolderRules{
			Top10Pct: InverseLadder{DecayTo: 100, Steps: []Ceiling{
				{20, 50}, {30, 40}, {40, 30}, {50, 20},
			}},
			GrowthRate: Ladder{Linear: true, Steps: []Step{
				{100, 30}, {50, 25}, {20, 20}, {10, 15},
			}},
			UniqueBuyers: Ladder{Linear: true, Steps: []Step{
				{500, 20}, {200, 15}, {100, 10}, {50, 5},
			}},
			WhaleSevere:         0.7,
			WhaleSevereFactor:   0.5,
			WhaleModerate:       0.5,
			WhaleModerateFactor: 0.75,
		},
		Security: SecurityRules{
			Verified:     10,
			NotHoneypot:  20,
			MintDisabled: 10,
			Renounced:    20,
			AuditMax:     20,
			TaxPct: InverseLadder{Steps: []Ceiling{
				{5, 10}, {10, 5},
			}},
			MaxTxPct: Ladder{Steps: []Step{
				{2, 10}, {1, 5},
			}},
			RugPenaltyStep:  0.2,
			RugPenaltyFloor: 0.2,
		},
		Social: SocialRules{
			CommunitySize: Ladder{Linear: true, Steps: []Step{
				{10000, 40}, {5000, 30}, {2000, 20}, {1000, 10},
			}},
			Engagement: Ladder{Linear: true, Steps: []Step{
				{5, 30}, {3, 20}, {1, 10},
			}},
			Growth: Ladder{Linear: true, Steps: []Step{
				{20, 20}, {10, 15}, {5, 10},
			}},
			SentimentMax: 5,
			Influencers: Ladder{Steps: []Step{
				{5, 5}, {2, 3}, {1, 1},
			}},
		},
		Volume: VolumeRules{
			Volume1h: Ladder{Linear: true, Steps: []Step{
				{100000, 40}, {50000, 30}, {20000, 20}, {10000, 10},
			}},
			BuySell: Ladder{Linear: true, Steps: []Step{
				{1.5, 30}, {1.2, 20}, {1.0, 10},
			}},
			TradesPerM: Ladder{Linear: true, Steps: []Step{
				{10, 20}, {5, 15}, {2, 10},
			}},
			Volatility: Bands{
				{Low: 0.05, High: 0.15, Points: 10},
				{Low: 0.03, High: 0.20, Points: 5},
			},
		},
		Developer: DeveloperRules{
			Doxxed: 40,
			Commits: Ladder{Linear: true, Steps: []Step{
				{50, 30}, {20, 20}, {10, 10},
			}},
			Updates24h: Ladder{Steps: []Step{
				{5, 15}, {2, 10}, {1, 5},
			}},
			WalletHistory: Ladder{Steps: []Step{
				{3, 15}, {1, 10}, {0, 5},
			}},
		},
		Community: CommunityRules{
			Size: Ladder{Linear: true, Steps: []Step{
				{5000, 50}, {2000, 35}, {1000, 25}, {500, 15},
			}},
			EngagementMax: 50,
		},
	}
}
