// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/marketmind/marketmind/internal/domain"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for databases and backup staging (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	Engine    EngineConfig
	Backup    BackupConfig
	Scheduler SchedulerConfig
}

// EngineConfig holds the tunables of the recommendation pipeline.
// The numeric defaults are empirically chosen product decisions; they are
// kept configurable but there is no derivation behind them to "fix".
type EngineConfig struct {
	// StaticWeights is the fallback weighting used when no market context
	// is available. Values must be in [0, 1]; the triple is normalized to
	// sum to 1.0 at load time.
	StaticWeights domain.WeightTriple

	// ActionThreshold is the adjusted-score magnitude beyond which the
	// engine recommends BUY (above) or SELL (below the negation).
	ActionThreshold float64

	// ConflictStdDev is the population standard deviation of the three
	// analyzer scores above which the engine forces HOLD.
	ConflictStdDev float64

	// NeutralDamping scales signal strength when the direction is neutral.
	NeutralDamping float64

	// VIXSpikeThreshold is the raw VIX reading above which the no-trade
	// detector fires at high severity.
	VIXSpikeThreshold float64

	// IndexDropThreshold is the fraction below its 50-day moving average
	// the primary index must sit to fire a medium no-trade condition.
	IndexDropThreshold float64

	// EnableNoTrade toggles the no-trade detector. When false the
	// detector always reports inactive.
	EnableNoTrade bool

	// ContextTTL is how long a computed market context stays fresh.
	ContextTTL time.Duration

	// RiskPerTradePercent and MaxPositionPercent bound position sizing
	// in the trade level calculation.
	RiskPerTradePercent float64
	MaxPositionPercent  float64
}

// BackupConfig holds S3-compatible backup settings. Any S3-compatible
// endpoint works (AWS, R2, MinIO); leave Endpoint empty for AWS proper.
type BackupConfig struct {
	Enabled         bool
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	MaxBackups      int // archives kept in the bucket before pruning
}

// SchedulerConfig holds cron specs for the background jobs.
type SchedulerConfig struct {
	Enabled         bool
	ContextRefresh  string // market context refresh cadence
	WeightRecompute string // performance-tracker weight recompute
	Backup          string // nightly backup upload
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8010),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		Engine: EngineConfig{
			StaticWeights: domain.WeightTriple{
				Sentiment:   getEnvAsFloat("SENTIMENT_WEIGHT", 0.5),
				Technical:   getEnvAsFloat("TECHNICAL_WEIGHT", 0.3),
				Fundamental: getEnvAsFloat("FUNDAMENTAL_WEIGHT", 0.2),
			},
			ActionThreshold:     getEnvAsFloat("ACTION_THRESHOLD", 0.3),
			ConflictStdDev:      getEnvAsFloat("CONFLICT_STDDEV_THRESHOLD", 0.5),
			NeutralDamping:      getEnvAsFloat("NEUTRAL_DAMPING", 0.3),
			VIXSpikeThreshold:   getEnvAsFloat("VIX_SPIKE_THRESHOLD", 25.0),
			IndexDropThreshold:  getEnvAsFloat("NIFTY_DROP_THRESHOLD", 0.03),
			EnableNoTrade:       getEnvAsBool("ENABLE_NO_TRADE", true),
			ContextTTL:          time.Duration(getEnvAsInt("MARKET_CONTEXT_TTL_MINUTES", 15)) * time.Minute,
			RiskPerTradePercent: getEnvAsFloat("RISK_PER_TRADE_PERCENT", 1.5),
			MaxPositionPercent:  getEnvAsFloat("MAX_POSITION_PERCENT", 10.0),
		},
		Backup: BackupConfig{
			Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
			Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
			Region:          getEnv("BACKUP_S3_REGION", "auto"),
			Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
			AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
			MaxBackups:      getEnvAsInt("BACKUP_MAX_ARCHIVES", 14),
		},
		Scheduler: SchedulerConfig{
			Enabled:         getEnvAsBool("SCHEDULER_ENABLED", true),
			ContextRefresh:  getEnv("SCHEDULE_CONTEXT_REFRESH", "*/15 * * * *"),
			WeightRecompute: getEnv("SCHEDULE_WEIGHT_RECOMPUTE", "30 18 * * *"),
			Backup:          getEnv("SCHEDULE_BACKUP", "0 2 * * *"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration invariants. Weight problems are the one
// class of error that must refuse startup: they indicate operator error,
// not transient data unavailability.
func (c *Config) Validate() error {
	w := c.Engine.StaticWeights
	for name, v := range map[string]float64{
		"sentiment_weight":   w.Sentiment,
		"technical_weight":   w.Technical,
		"fundamental_weight": w.Fundamental,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("invalid configuration: %s must be in [0, 1], got %v", name, v)
		}
	}

	if w.Sum() <= 0 {
		return fmt.Errorf("invalid configuration: static weights sum to %v, cannot normalize", w.Sum())
	}

	// Normalize so downstream code can assume the triple sums to 1.0.
	c.Engine.StaticWeights = w.Normalized()

	if c.Engine.ActionThreshold <= 0 || c.Engine.ActionThreshold >= 1 {
		return fmt.Errorf("invalid configuration: action_threshold must be in (0, 1), got %v", c.Engine.ActionThreshold)
	}

	if c.Engine.ContextTTL <= 0 {
		return fmt.Errorf("invalid configuration: market context TTL must be positive, got %v", c.Engine.ContextTTL)
	}

	if c.Backup.Enabled && c.Backup.Bucket == "" {
		return fmt.Errorf("invalid configuration: backup enabled but BACKUP_S3_BUCKET is empty")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
