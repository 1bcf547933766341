package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Aggregator strategies. Exactly one runs per deployment; the strategy is
// part of the configuration, not a runtime toggle.
const (
	StrategyFull        = "full"
	StrategyIncremental = "incremental"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	App        AppConfig
	Commission CommissionConfig
	Withdrawal WithdrawalConfig
	Aggregator AggregatorConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port string
}

// AppConfig holds application-specific settings
type AppConfig struct {
	JWTSecret     string
	AdminEmail    string
	AdminPassword string
}

// TierPricing holds the money attached to one plan tier. Price is the gross
// amount the member pays; Direct and Passive are the commissions paid out of
// it when the activation or upgrade is approved.
type TierPricing struct {
	Price   decimal.Decimal
	Direct  decimal.Decimal
	Passive decimal.Decimal
}

// CommissionConfig holds the per-tier pricing table
type CommissionConfig struct {
	Tier1 TierPricing
	Tier2 TierPricing
	Tier3 TierPricing
}

// WithdrawalConfig holds payout settings
type WithdrawalConfig struct {
	MinAmount decimal.Decimal
}

// AggregatorConfig holds leaderboard aggregation settings
type AggregatorConfig struct {
	Strategy          string
	FullCronSpec      string
	IncrCronSpec      string
	WeeklyWindowDays  int
	MonthlyWindowDays int
	RetentionDaily    int
	RetentionWeekly   int
	RetentionMonthly  int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "referral_program"),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		App: AppConfig{
			JWTSecret:     getEnv("JWT_SECRET", ""),
			AdminEmail:    getEnv("ADMIN_EMAIL", ""),
			AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		},
		Commission: CommissionConfig{
			Tier1: TierPricing{
				Price:   getEnvDecimal("TIER1_PRICE", "24"),
				Direct:  getEnvDecimal("TIER1_DIRECT", "16"),
				Passive: getEnvDecimal("TIER1_PASSIVE", "2"),
			},
			Tier2: TierPricing{
				Price:   getEnvDecimal("TIER2_PRICE", "59"),
				Direct:  getEnvDecimal("TIER2_DIRECT", "40"),
				Passive: getEnvDecimal("TIER2_PASSIVE", "4"),
			},
			Tier3: TierPricing{
				Price:   getEnvDecimal("TIER3_PRICE", "130"),
				Direct:  getEnvDecimal("TIER3_DIRECT", "85"),
				Passive: getEnvDecimal("TIER3_PASSIVE", "7"),
			},
		},
		Withdrawal: WithdrawalConfig{
			MinAmount: getEnvDecimal("MIN_WITHDRAWAL", "30"),
		},
		Aggregator: AggregatorConfig{
			Strategy:          getEnv("AGGREGATOR_STRATEGY", StrategyFull),
			FullCronSpec:      getEnv("AGGREGATOR_FULL_CRON", "0 0 * * *"),
			IncrCronSpec:      getEnv("AGGREGATOR_INCR_CRON", "*/5 * * * *"),
			WeeklyWindowDays:  getEnvInt("AGGREGATOR_WEEKLY_DAYS", 7),
			MonthlyWindowDays: getEnvInt("AGGREGATOR_MONTHLY_DAYS", 30),
			RetentionDaily:    getEnvInt("RETENTION_DAILY", 7),
			RetentionWeekly:   getEnvInt("RETENTION_WEEKLY", 4),
			RetentionMonthly:  getEnvInt("RETENTION_MONTHLY", 12),
		},
	}

	// Validate required fields
	if config.App.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if config.Aggregator.Strategy != StrategyFull && config.Aggregator.Strategy != StrategyIncremental {
		return nil, fmt.Errorf("AGGREGATOR_STRATEGY must be %q or %q, got %q",
			StrategyFull, StrategyIncremental, config.Aggregator.Strategy)
	}

	return config, nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// PricingFor returns the pricing row for a tier name, matching the plan
// constants used by the models package. The second return is false for
// anything that is not a purchasable tier.
func (c *Config) PricingFor(plan string) (TierPricing, bool) {
	switch plan {
	case "TIER_1":
		return c.Commission.Tier1, true
	case "TIER_2":
		return c.Commission.Tier2, true
	case "TIER_3":
		return c.Commission.Tier3, true
	}
	return TierPricing{}, false
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable with a fallback default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("[Config] %s: invalid integer %q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

// getEnvDecimal gets a decimal environment variable with a fallback default value
func getEnvDecimal(key, defaultValue string) decimal.Decimal {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		log.Printf("[Config] %s: invalid amount %q, using %s", key, value, defaultValue)
		return decimal.RequireFromString(defaultValue)
	}
	return d
}
