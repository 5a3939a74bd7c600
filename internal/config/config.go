package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/noah-isme/gema-fees-api/internal/models"
)

// Config holds runtime configuration values for the fees service.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	DatabaseURL string
	RedisURL    string
	NATSURL     string
	EventPrefix string
	JWTSecret   string
	CORSOrigins string
	SeedEnabled bool
	SeedToken   string

	BillingCycle           models.BillingCycle
	PaymentDueDay          int
	PromotionThreshold     float64
	AcademicYearStartMonth int
	TransferRetentionYears int
	SummaryCacheTTL        time.Duration
	WorkerLimit            int
	PaymentRateLimit       int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// DefaultSettings seeds the billing settings used until an administrator stores some.
func (c Config) DefaultSettings() models.AppSettings {
	return models.AppSettings{
		BillingCycle:           c.BillingCycle,
		PaymentDueDay:          c.PaymentDueDay,
		PromotionThreshold:     c.PromotionThreshold,
		AcademicYearStartMonth: c.AcademicYearStartMonth,
		TransferRetentionYears: c.TransferRetentionYears,
	}
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("FEES")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Fees API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("nats.prefix", "fees")
	v.SetDefault("http.allow_origins", "*")
	v.SetDefault("seed.enabled", false)
	v.SetDefault("billing.cycle", string(models.BillingCycleMonthly))
	v.SetDefault("billing.due_day", 5)
	v.SetDefault("billing.promotion_threshold", 75)
	v.SetDefault("billing.academic_year_start_month", 1)
	v.SetDefault("billing.transfer_retention_years", 5)
	v.SetDefault("billing.summary_cache_ttl", "5m")
	v.SetDefault("billing.worker_limit", 8)
	v.SetDefault("billing.payment_rate_limit", 30)

	ttlString := v.GetString("billing.summary_cache_ttl")
	if ttlString == "" {
		ttlString = "5m"
	}

	ttl, err := time.ParseDuration(ttlString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid summary cache ttl: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		EventPrefix:            v.GetString("nats.prefix"),
		JWTSecret:              v.GetString("jwt.secret"),
		CORSOrigins:            v.GetString("http.allow_origins"),
		SeedEnabled:            v.GetBool("seed.enabled"),
		SeedToken:              v.GetString("seed.token"),
		BillingCycle:           models.BillingCycle(strings.ToLower(strings.TrimSpace(v.GetString("billing.cycle")))),
		PaymentDueDay:          v.GetInt("billing.due_day"),
		PromotionThreshold:     v.GetFloat64("billing.promotion_threshold"),
		AcademicYearStartMonth: v.GetInt("billing.academic_year_start_month"),
		TransferRetentionYears: v.GetInt("billing.transfer_retention_years"),
		SummaryCacheTTL:        ttl,
		WorkerLimit:            v.GetInt("billing.worker_limit"),
		PaymentRateLimit:       v.GetInt("billing.payment_rate_limit"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.BillingCycle {
	case models.BillingCycleMonthly, models.BillingCycleTermly:
	default:
		return Config{}, fmt.Errorf("unsupported billing cycle %q", cfg.BillingCycle)
	}

	if cfg.PaymentDueDay < 1 || cfg.PaymentDueDay > 28 {
		return Config{}, fmt.Errorf("billing due day must be between 1 and 28")
	}

	if cfg.AcademicYearStartMonth < 1 || cfg.AcademicYearStartMonth > 12 {
		return Config{}, fmt.Errorf("academic year start month must be between 1 and 12")
	}

	if cfg.WorkerLimit <= 0 {
		cfg.WorkerLimit = 8
	}

	return cfg, nil
}
