package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/liamashdown/launchwatch/internal/confidence"
	"github.com/liamashdown/launchwatch/internal/quota"
	"github.com/liamashdown/launchwatch/internal/scoring"
	"github.com/liamashdown/launchwatch/internal/secrets"
	"github.com/liamashdown/launchwatch/internal/token"
)

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid configuration")

// AuthMode represents the authentication mode for the feed APIs
type AuthMode string

const (
	AuthModeNone   AuthMode = "none"
	AuthModeBearer AuthMode = "bearer"
	AuthModeAPIKey AuthMode = "api_key"
)

// Dedup backends
const (
	DedupMemory = "memory"
	DedupFile   = "file"
	DedupMySQL  = "mysql"
	DedupRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	// Environment
	Environment string
	LogLevel    string

	// Database
	DatabaseDSN         string
	DatabaseMaxConns    int
	DatabaseMaxIdleTime time.Duration

	// Tuning (defaults, then TUNING_FILE, then env overrides)
	TuningFile string
	Scoring    scoring.Config
	Confidence confidence.Config
	Quota      quota.Config

	// Selection
	EnabledChains     []token.Chain
	MinimumAlertScore float64
	HighTierScore     float64
	MediumTierScore   float64

	// Dedup
	DedupBackend       string
	DedupFile          string
	DedupCapacity      int
	DedupRetentionDays int
	DedupCompactEvery  int
	RedisAddr          string
	RedisPassword      string
	RedisDB            int

	// Queue persistence (used when the backend is not mysql)
	QueueStateFile string

	// Feed API
	FeedBaseURL      string
	FeedAuthMode     AuthMode
	FeedBearerToken  string
	FeedAPIKey       string
	FeedExtraHeaders map[string]string
	FeedBatchLimit   int
	EnrichBaseURL    string

	// Rate limits (requests per second)
	FeedRPS     float64
	EnrichRPS   float64
	DeliveryRPS float64

	// Timing
	FeedPollInterval     time.Duration
	EnrichTimeout        time.Duration
	HousekeepingInterval time.Duration
	ShutdownTimeout      time.Duration
	ResetSchedule        string // cron spec evaluated in the quota time zone

	// Dispatch
	MaxDeliveryAttempts int
	QueueCapacity       int
	HoldingCapacity     int
	DailySummary        bool

	// Alerts
	AlertMode          string // comma-separated: log, discord, telegram, smtp
	DiscordWebhookURLs []string
	TelegramBotToken   string
	TelegramChatIDs    []int64
	SMTPHost           string
	SMTPPort           int
	SMTPUser           string
	SMTPPassword       string
	SMTPFrom           string
	SMTPTo             []string

	// Metrics/Health/Status
	HTTPPort int
}

// Load reads configuration from environment variables and the optional
// tuning file, then validates it
func Load() (*Config, error) {
	cfg := &Config{
		Environment:          getEnv("ENVIRONMENT", "production"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		DatabaseDSN:          secrets.GetOptionalSecret("DATABASE_DSN", ""),
		DatabaseMaxConns:     getEnvInt("DATABASE_MAX_CONNS", 10),
		DatabaseMaxIdleTime:  time.Duration(getEnvInt("DATABASE_MAX_IDLE_TIME_MINS", 5)) * time.Minute,
		TuningFile:           getEnv("TUNING_FILE", ""),
		Scoring:              scoring.DefaultConfig(),
		Confidence:           confidence.DefaultConfig(),
		Quota:                quota.DefaultConfig(),
		MinimumAlertScore:    getEnvFloat("MINIMUM_ALERT_SCORE", 60),
		HighTierScore:        getEnvFloat("HIGH_TIER_SCORE", 75),
		MediumTierScore:      getEnvFloat("MEDIUM_TIER_SCORE", 60),
		DedupBackend:         strings.ToLower(getEnv("DEDUP_BACKEND", DedupFile)),
		DedupFile:            getEnv("DEDUP_FILE", "data/dedup.jsonl"),
		DedupCapacity:        getEnvInt("DEDUP_CAPACITY", 10000),
		DedupRetentionDays:   getEnvInt("DEDUP_RETENTION_DAYS", 7),
		DedupCompactEvery:    getEnvInt("DEDUP_COMPACT_EVERY", 500),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisPassword:        secrets.GetOptionalSecret("REDIS_PASSWORD", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		QueueStateFile:       getEnv("QUEUE_STATE_FILE", "data/queue.json"),
		FeedBaseURL:          getEnv("FEED_BASE_URL", ""),
		FeedAuthMode:         AuthMode(getEnv("FEED_AUTH_MODE", "none")),
		FeedBearerToken:      secrets.GetOptionalSecret("FEED_BEARER_TOKEN", ""),
		FeedAPIKey:           secrets.GetOptionalSecret("FEED_API_KEY", ""),
		FeedBatchLimit:       getEnvInt("FEED_BATCH_LIMIT", 100),
		EnrichBaseURL:        getEnv("ENRICH_BASE_URL", ""),
		FeedRPS:              getEnvFloat("FEED_RPS", 2.0),
		EnrichRPS:            getEnvFloat("ENRICH_RPS", 5.0),
		DeliveryRPS:          getEnvFloat("DELIVERY_RPS", 2.0),
		FeedPollInterval:     time.Duration(getEnvInt("FEED_POLL_INTERVAL_SEC", 15)) * time.Second,
		EnrichTimeout:        time.Duration(getEnvInt("ENRICH_TIMEOUT_SEC", 10)) * time.Second,
		HousekeepingInterval: time.Duration(getEnvInt("HOUSEKEEPING_INTERVAL_SEC", 5)) * time.Second,
		ShutdownTimeout:      time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_SEC", 15)) * time.Second,
		ResetSchedule:        getEnv("RESET_SCHEDULE", "@midnight"),
		MaxDeliveryAttempts:  getEnvInt("MAX_DELIVERY_ATTEMPTS", 3),
		QueueCapacity:        getEnvInt("QUEUE_CAPACITY", 5000),
		HoldingCapacity:      getEnvInt("HOLDING_CAPACITY", 2000),
		DailySummary:         getEnvBool("DAILY_SUMMARY", true),
		AlertMode:            getEnv("ALERT_MODE", "log"),
		DiscordWebhookURLs:   parseCSV(secrets.GetOptionalSecret("DISCORD_WEBHOOK_URLS", "")),
		TelegramBotToken:     secrets.GetOptionalSecret("TELEGRAM_BOT_TOKEN", ""),
		SMTPHost:             getEnv("SMTP_HOST", ""),
		SMTPPort:             getEnvInt("SMTP_PORT", 587),
		SMTPUser:             getEnv("SMTP_USER", ""),
		SMTPPassword:         secrets.GetOptionalSecret("SMTP_PASSWORD", ""),
		SMTPFrom:             getEnv("SMTP_FROM", "launchwatch@example.com"),
		SMTPTo:               parseCSV(getEnv("SMTP_TO", "")),
		HTTPPort:             getEnvInt("HTTP_PORT", 8080),
	}

	if cfg.TuningFile != "" {
		if err := cfg.loadTuning(cfg.TuningFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyOverrides(); err != nil {
		return nil, err
	}

	// Parse extra headers JSON
	extraHeadersJSON := getEnv("FEED_EXTRA_HEADERS", "{}")
	if err := json.Unmarshal([]byte(extraHeadersJSON), &cfg.FeedExtraHeaders); err != nil {
		return nil, fmt.Errorf("%w: FEED_EXTRA_HEADERS is not a JSON object: %v", ErrInvalid, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyOverrides layers the environment over the tuning file
func (c *Config) applyOverrides() error {
	if v, ok := lookupEnv("DAILY_ALERT_TARGET"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: DAILY_ALERT_TARGET %q is not an integer", ErrInvalid, v)
		}
		c.Quota.DailyTarget = n
	}

	if v, ok := lookupEnv("CHAIN_SPLIT"); ok {
		split, err := ParseChainSplit(v)
		if err != nil {
			return fmt.Errorf("%w: CHAIN_SPLIT: %v", ErrInvalid, err)
		}
		c.Quota.ChainSplit = split
	}

	tz := getEnv("TIMEZONE", "Local")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("%w: TIMEZONE %q: %v", ErrInvalid, tz, err)
	}
	c.Quota.Location = loc

	c.EnabledChains = token.AllChains
	if v, ok := lookupEnv("ENABLED_CHAINS"); ok {
		chains, err := ParseChains(v)
		if err != nil {
			return fmt.Errorf("%w: ENABLED_CHAINS: %v", ErrInvalid, err)
		}
		c.EnabledChains = chains
	}

	if v, ok := lookupEnv("TELEGRAM_CHAT_IDS"); ok {
		for _, item := range parseCSV(v) {
			id, err := strconv.ParseInt(item, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: TELEGRAM_CHAT_IDS entry %q is not an integer", ErrInvalid, item)
			}
			c.TelegramChatIDs = append(c.TelegramChatIDs, id)
		}
	}
	return nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("%w: scoring: %v", ErrInvalid, err)
	}
	if err := c.Confidence.Validate(); err != nil {
		return fmt.Errorf("%w: confidence: %v", ErrInvalid, err)
	}
	if err := c.Quota.Validate(); err != nil {
		return fmt.Errorf("%w: quota: %v", ErrInvalid, err)
	}

	if len(c.EnabledChains) == 0 {
		return fmt.Errorf("%w: at least one chain must be enabled", ErrInvalid)
	}
	for _, chain := range c.EnabledChains {
		if c.Quota.ChainSplit[chain] <= 0 {
			return fmt.Errorf("%w: enabled chain %s has no share in CHAIN_SPLIT", ErrInvalid, chain)
		}
	}

	for name, v := range map[string]float64{
		"MINIMUM_ALERT_SCORE": c.MinimumAlertScore,
		"HIGH_TIER_SCORE":     c.HighTierScore,
		"MEDIUM_TIER_SCORE":   c.MediumTierScore,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%w: %s must be within [0,100], got %v", ErrInvalid, name, v)
		}
	}
	if c.MediumTierScore > c.HighTierScore {
		return fmt.Errorf("%w: MEDIUM_TIER_SCORE (%v) must not exceed HIGH_TIER_SCORE (%v)",
			ErrInvalid, c.MediumTierScore, c.HighTierScore)
	}

	switch c.DedupBackend {
	case DedupMemory:
	case DedupFile:
		if c.DedupFile == "" {
			return fmt.Errorf("%w: DEDUP_FILE is required when DEDUP_BACKEND is file", ErrInvalid)
		}
	case DedupMySQL:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("%w: DATABASE_DSN is required when DEDUP_BACKEND is mysql", ErrInvalid)
		}
	case DedupRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: REDIS_ADDR is required when DEDUP_BACKEND is redis", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: invalid DEDUP_BACKEND: %s (must be memory, file, mysql, or redis)", ErrInvalid, c.DedupBackend)
	}
	if c.DedupRetentionDays < 1 {
		return fmt.Errorf("%w: DEDUP_RETENTION_DAYS must be >= 1", ErrInvalid)
	}

	// Validate auth mode
	switch c.FeedAuthMode {
	case AuthModeNone:
		// No validation needed
	case AuthModeBearer:
		if c.FeedBearerToken == "" {
			return fmt.Errorf("%w: FEED_BEARER_TOKEN is required when FEED_AUTH_MODE is bearer", ErrInvalid)
		}
	case AuthModeAPIKey:
		if c.FeedAPIKey == "" {
			return fmt.Errorf("%w: FEED_API_KEY is required when FEED_AUTH_MODE is api_key", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: invalid FEED_AUTH_MODE: %s (must be none, bearer, or api_key)", ErrInvalid, c.FeedAuthMode)
	}

	if c.MaxDeliveryAttempts < 1 {
		return fmt.Errorf("%w: MAX_DELIVERY_ATTEMPTS must be >= 1", ErrInvalid)
	}
	if c.DeliveryRPS <= 0 {
		return fmt.Errorf("%w: DELIVERY_RPS must be > 0", ErrInvalid)
	}
	if c.HousekeepingInterval <= 0 || c.EnrichTimeout <= 0 || c.FeedPollInterval <= 0 {
		return fmt.Errorf("%w: intervals and timeouts must be > 0", ErrInvalid)
	}

	// Validate alert mode (comma-separated list)
	for _, mode := range c.AlertModes() {
		switch mode {
		case "log":
		case "discord":
			if len(c.DiscordWebhookURLs) == 0 {
				return fmt.Errorf("%w: DISCORD_WEBHOOK_URLS is required when discord is in ALERT_MODE", ErrInvalid)
			}
		case "telegram":
			if c.TelegramBotToken == "" || len(c.TelegramChatIDs) == 0 {
				return fmt.Errorf("%w: TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_IDS are required when telegram is in ALERT_MODE", ErrInvalid)
			}
		case "smtp":
			if c.SMTPHost == "" || len(c.SMTPTo) == 0 {
				return fmt.Errorf("%w: SMTP_HOST and SMTP_TO are required when smtp is in ALERT_MODE", ErrInvalid)
			}
		default:
			return fmt.Errorf("%w: invalid ALERT_MODE value: %s (valid values: log, discord, telegram, smtp)", ErrInvalid, mode)
		}
	}

	return nil
}

// AlertModes returns the trimmed, non-empty entries of AlertMode
func (c *Config) AlertModes() []string {
	return parseCSV(strings.ToLower(c.AlertMode))
}

// ParseChainSplit parses "solana:40,ethereum:25,..." into percentages
func ParseChainSplit(s string) (map[token.Chain]float64, error) {
	out := make(map[token.Chain]float64)
	for _, item := range parseCSV(s) {
		name, pct, ok := strings.Cut(item, ":")
		if !ok {
			return nil, fmt.Errorf("entry %q must be chain:percent", item)
		}
		chain, err := token.ParseChain(name)
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
		if err != nil {
			return nil, fmt.Errorf("entry %q: invalid percent", item)
		}
		if _, dup := out[chain]; dup {
			return nil, fmt.Errorf("chain %s listed twice", chain)
		}
		out[chain] = v
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no chains listed")
	}
	return out, nil
}

// ParseChains parses a comma-separated chain list
func ParseChains(s string) ([]token.Chain, error) {
	var out []token.Chain
	seen := make(map[token.Chain]bool)
	for _, item := range parseCSV(s) {
		chain, err := token.ParseChain(item)
		if err != nil {
			return nil, err
		}
		if !seen[chain] {
			seen[chain] = true
			out = append(out, chain)
		}
	}
	return out, nil
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func parseCSV(s string) []string {
	var result []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
