package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// FeedMode selects the tick generation mode of the internal price feed.
type FeedMode string

const (
	FeedModeRandomWalk FeedMode = "random_walk"
	FeedModeTrendWalk  FeedMode = "trend_walk"
)

// VenueMode selects the venue connector implementation.
type VenueMode string

const (
	VenuePaper   VenueMode = "paper"
	VenueBinance VenueMode = "binance"
)

// Config holds all application configuration.
type Config struct {
	// Account
	InitialBalance float64 // Starting free capital

	// Price Feed
	FeedMode          FeedMode
	TickInterval      time.Duration
	InitialPrice      float64
	TargetPrice       float64 // Mean-reversion anchor for the random walk
	NoiseBand         float64 // Symmetric uniform noise band (e.g. 0.002 for ±0.2%)
	ReversionStrength float64 // Pull factor toward TargetPrice
	FeedHistorySize   int     // Bounded in-memory tick history

	// SMA Crossover Strategy
	SMAShortWindow int
	SMALongWindow  int
	SMABaseSize    float64
	SMAMinSize     float64
	SMACooldown    time.Duration

	// Mean Reversion Strategy
	MeanRevWindow    int
	MeanRevThreshold float64 // z-score trigger
	MeanRevBaseSize  float64
	MeanRevMinSize   float64
	MeanRevCooldown  time.Duration

	// Risk Management
	MaxLeverage       float64
	MaxOpenPositions  int
	RiskPerTrade      float64 // Fraction of notional counted against the 10% balance cap
	StopLossPercent   float64 // e.g. 0.05 for 5%
	TakeProfitPercent float64 // e.g. 0.10 for 10%

	// Execution
	VenueMode    VenueMode
	VenueTimeout time.Duration // Bound on a single venue call

	// Paper venue (only used when VenueMode == paper)
	PaperFeeRate     float64 // Proportional fee on filled notional
	PaperSlippagePct float64 // Symmetric slippage band around requested price
	PaperFailureRate float64 // Probability an order is rejected outright
	PaperPartialRate float64 // Probability a fill is partial

	// Binance venue (only used when VenueMode == binance)
	BinanceAPIKey    string
	BinanceSecretKey string
	BinanceSymbol    string
	BinanceTestnet   bool

	// Telegram notifications (optional; log-only when unset)
	TelegramBotToken string
	TelegramChatID   string

	// Database
	DBPath string

	// Logging
	LogLevel string
	LogFile  string // Optional; rotation is enabled when set
}

// Load loads configuration from environment variables (.env file).
func Load() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	cfg.InitialBalance, err = getEnvAsFloatRequired("INITIAL_BALANCE", 10000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid INITIAL_BALANCE: %v", err))
	} else if cfg.InitialBalance <= 0 {
		errs = append(errs, "INITIAL_BALANCE must be positive")
	}

	// Price Feed
	cfg.FeedMode = FeedMode(getEnv("FEED_MODE", string(FeedModeTrendWalk)))
	if cfg.FeedMode != FeedModeRandomWalk && cfg.FeedMode != FeedModeTrendWalk {
		errs = append(errs, fmt.Sprintf("FEED_MODE must be %q or %q", FeedModeRandomWalk, FeedModeTrendWalk))
	}
	tickIntervalMs := getEnvAsInt("TICK_INTERVAL_MS", 1000)
	if tickIntervalMs <= 0 {
		errs = append(errs, "TICK_INTERVAL_MS must be positive")
	}
	cfg.TickInterval = time.Duration(tickIntervalMs) * time.Millisecond

	cfg.InitialPrice, err = getEnvAsFloatRequired("INITIAL_PRICE", 100.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid INITIAL_PRICE: %v", err))
	} else if cfg.InitialPrice <= 0 {
		errs = append(errs, "INITIAL_PRICE must be positive")
	}
	cfg.TargetPrice = getEnvAsFloat("TARGET_PRICE", cfg.InitialPrice)
	cfg.NoiseBand = getEnvAsFloat("NOISE_BAND", 0.002)
	cfg.ReversionStrength = getEnvAsFloat("REVERSION_STRENGTH", 0.05)
	cfg.FeedHistorySize = getEnvAsInt("FEED_HISTORY_SIZE", 200)
	if cfg.FeedHistorySize <= 0 {
		errs = append(errs, "FEED_HISTORY_SIZE must be positive")
	}

	// SMA Crossover Strategy
	cfg.SMAShortWindow = getEnvAsInt("SMA_SHORT_WINDOW", 10)
	cfg.SMALongWindow = getEnvAsInt("SMA_LONG_WINDOW", 30)
	cfg.SMABaseSize = getEnvAsFloat("SMA_BASE_SIZE", 0.1)
	cfg.SMAMinSize = getEnvAsFloat("SMA_MIN_SIZE", 0.01)
	cfg.SMACooldown = time.Duration(getEnvAsInt("SMA_COOLDOWN_SECONDS", 60)) * time.Second
	if cfg.SMAShortWindow <= 0 || cfg.SMALongWindow <= 0 {
		errs = append(errs, "SMA window lengths must be positive")
	}
	if cfg.SMAShortWindow >= cfg.SMALongWindow {
		errs = append(errs, "SMA_SHORT_WINDOW must be less than SMA_LONG_WINDOW")
	}

	// Mean Reversion Strategy
	cfg.MeanRevWindow = getEnvAsInt("MEANREV_WINDOW", 20)
	cfg.MeanRevThreshold = getEnvAsFloat("MEANREV_THRESHOLD", 2.0)
	cfg.MeanRevBaseSize = getEnvAsFloat("MEANREV_BASE_SIZE", 0.1)
	cfg.MeanRevMinSize = getEnvAsFloat("MEANREV_MIN_SIZE", 0.01)
	cfg.MeanRevCooldown = time.Duration(getEnvAsInt("MEANREV_COOLDOWN_SECONDS", 60)) * time.Second
	if cfg.MeanRevWindow <= 1 {
		errs = append(errs, "MEANREV_WINDOW must be greater than 1")
	}
	if cfg.MeanRevThreshold <= 0 {
		errs = append(errs, "MEANREV_THRESHOLD must be positive")
	}

	// Risk Management
	cfg.MaxLeverage, err = getEnvAsFloatRequired("MAX_LEVERAGE", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_LEVERAGE: %v", err))
	} else if cfg.MaxLeverage <= 0 {
		errs = append(errs, "MAX_LEVERAGE must be positive")
	}
	cfg.MaxOpenPositions = getEnvAsInt("MAX_OPEN_POSITIONS", 3)
	if cfg.MaxOpenPositions <= 0 {
		errs = append(errs, "MAX_OPEN_POSITIONS must be positive")
	}
	cfg.RiskPerTrade, err = getEnvAsFloatRequired("RISK_PER_TRADE", 0.02)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RISK_PER_TRADE: %v", err))
	} else if cfg.RiskPerTrade <= 0 || cfg.RiskPerTrade >= 1 {
		errs = append(errs, "RISK_PER_TRADE must be between 0.0 and 1.0 (exclusive)")
	}
	cfg.StopLossPercent, err = getEnvAsFloatRequired("STOP_LOSS_PERCENT", 0.05)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STOP_LOSS_PERCENT: %v", err))
	} else if cfg.StopLossPercent <= 0 || cfg.StopLossPercent >= 1 {
		errs = append(errs, "STOP_LOSS_PERCENT must be between 0.0 and 1.0 (exclusive)")
	}
	cfg.TakeProfitPercent, err = getEnvAsFloatRequired("TAKE_PROFIT_PERCENT", 0.10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TAKE_PROFIT_PERCENT: %v", err))
	} else if cfg.TakeProfitPercent <= 0 {
		errs = append(errs, "TAKE_PROFIT_PERCENT must be positive")
	}

	// Execution
	cfg.VenueMode = VenueMode(getEnv("VENUE_MODE", string(VenuePaper)))
	if cfg.VenueMode != VenuePaper && cfg.VenueMode != VenueBinance {
		errs = append(errs, fmt.Sprintf("VENUE_MODE must be %q or %q", VenuePaper, VenueBinance))
	}
	venueTimeoutMs := getEnvAsInt("VENUE_TIMEOUT_MS", 5000)
	if venueTimeoutMs <= 0 {
		errs = append(errs, "VENUE_TIMEOUT_MS must be positive")
	}
	cfg.VenueTimeout = time.Duration(venueTimeoutMs) * time.Millisecond

	// Paper venue behaviour knobs.
	cfg.PaperFeeRate = getEnvAsFloat("PAPER_FEE_RATE", 0.0004)
	cfg.PaperSlippagePct = getEnvAsFloat("PAPER_SLIPPAGE_PCT", 0.0005)
	cfg.PaperFailureRate = getEnvAsFloat("PAPER_FAILURE_RATE", 0.02)
	cfg.PaperPartialRate = getEnvAsFloat("PAPER_PARTIAL_FILL_RATE", 0.05)
	if cfg.PaperFailureRate < 0 || cfg.PaperFailureRate > 1 {
		errs = append(errs, "PAPER_FAILURE_RATE must be between 0.0 and 1.0")
	}
	if cfg.PaperPartialRate < 0 || cfg.PaperPartialRate > 1 {
		errs = append(errs, "PAPER_PARTIAL_FILL_RATE must be between 0.0 and 1.0")
	}

	// Binance venue credentials are only required when that venue is selected.
	cfg.BinanceAPIKey = getEnv("BINANCE_API_KEY", "")
	cfg.BinanceSecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.BinanceSymbol = getEnv("BINANCE_SYMBOL", "ETHUSDT")
	cfg.BinanceTestnet = getEnvAsBool("BINANCE_TESTNET", true)
	if cfg.VenueMode == VenueBinance {
		if cfg.BinanceAPIKey == "" {
			errs = append(errs, "BINANCE_API_KEY must be set for the binance venue")
		}
		if cfg.BinanceSecretKey == "" {
			errs = append(errs, "BINANCE_API_SECRET must be set for the binance venue")
		}
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/quantpilot.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFile = getEnv("LOG_FILE", "")

	// Notifications
	cfg.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	cfg.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", "")

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
