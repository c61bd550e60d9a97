package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the signal executor.
type Config struct {
	Port         string
	AccountsFile string

	// Journal
	DBPath         string
	JournalEnabled bool

	// Dry-run simulation
	DryRun               bool
	DryRunInitialBalance float64
	DryRunFeeRate        float64 // decimal (e.g. 0.0004 = 4 bps)
	DryRunSlippageBps    float64
	DryRunPrices         map[string]float64 // starting prices, SYMBOL=PRICE pairs
	DryRunWalkInterval   time.Duration

	// Auth
	JWTSecret             string
	WebhookPassphraseHash string // bcrypt; empty disables the passphrase check

	// HTTP
	GinMode        string
	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration

	// Fan-out
	FanoutWorkers int

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:                  getEnv("PORT", "5000"),
		AccountsFile:          getEnv("ACCOUNTS_FILE", "accounts.yaml"),
		DBPath:                getEnv("DB_PATH", "./data/journal.db"),
		JournalEnabled:        getEnvBool("JOURNAL_ENABLED", true),
		DryRun:                getEnvBool("DRY_RUN", false),
		DryRunInitialBalance:  getEnvFloat("DRY_RUN_INITIAL_BALANCE", 10000.0),
		DryRunFeeRate:         getEnvFloat("DRY_RUN_FEE_RATE", 0.0004),
		DryRunSlippageBps:     getEnvFloat("DRY_RUN_SLIPPAGE_BPS", 2),
		DryRunPrices:          parsePrices(getEnv("DRY_RUN_PRICES", "BTCUSDT=65000,ETHUSDT=3500")),
		DryRunWalkInterval:    getEnvDuration("DRY_RUN_WALK_INTERVAL", time.Second),
		JWTSecret:             os.Getenv("JWT_SECRET"),
		WebhookPassphraseHash: os.Getenv("WEBHOOK_PASSPHRASE_HASH"),
		GinMode:               getEnv("GIN_MODE", "release"),
		RateLimitRPS:          getEnvFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:        getEnvInt("RATE_LIMIT_BURST", 20),
		RequestTimeout:        getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		FanoutWorkers:         getEnvInt("FANOUT_WORKERS", 8),
		LogLevel:              strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:             strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parsePrices reads "BTCUSDT=65000,ETHUSDT=3500"; malformed pairs are skipped.
func parsePrices(val string) map[string]float64 {
	out := make(map[string]float64)
	for _, pair := range splitAndTrim(val) {
		sym, price, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(price), 64)
		if err != nil || f <= 0 {
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(sym))] = f
	}
	return out
}
