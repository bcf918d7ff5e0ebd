// Package config builds runtime configuration from environment variables so
// main stays lean. Every knob has a development default; production overrides
// them.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr string
}

// Postgres captures connection settings for the master store.
type Postgres struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// Redis captures connection settings for the notification dedupe cache.
// An empty URL disables Redis-backed deduplication.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka captures the event-bus transport settings. Empty brokers means the
// in-process bus is used instead (tests, local development).
type Kafka struct {
	Brokers       []string
	SignalTopic   string
	ConsumerGroup string
}

// Budget holds the governor ceilings. Values are decimal strings in the
// ledger currency.
type Budget struct {
	PerCallCeiling decimal.Decimal
	DailyCeiling   decimal.Decimal
	MonthlyCeiling decimal.Decimal
	CallTimeout    time.Duration
}

// Promotion holds promotion-time invariant configuration. Slot cardinality
// is configuration, not a constant: business rules may vary it per install.
type Promotion struct {
	SlotsPerCompany int
}

// Remediation caps how often a single validation failure may be retried
// before it is escalated regardless of remaining budget.
type Remediation struct {
	MaxAttempts int
}

// Scheduler holds the cron specs for the two scheduled entry points.
type Scheduler struct {
	RefreshSpec     string
	RemediationSpec string
}

// Config aggregates all runtime configuration.
type Config struct {
	Server      Server
	Postgres    Postgres
	Redis       Redis
	Kafka       Kafka
	Budget      Budget
	Promotion   Promotion
	Remediation Remediation
	Scheduler   Scheduler
}

// FromEnv builds the full configuration from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr: getenv("DOCTRINE_ADDR", ":8080"),
		},
		Postgres: Postgres{
			URL:          os.Getenv("DOCTRINE_POSTGRES_URL"),
			MaxOpenConns: getint("DOCTRINE_POSTGRES_MAX_OPEN", 20),
			MaxIdleConns: getint("DOCTRINE_POSTGRES_MAX_IDLE", 5),
		},
		Redis: Redis{
			URL:          os.Getenv("DOCTRINE_REDIS_URL"),
			PoolSize:     getint("DOCTRINE_REDIS_POOL_SIZE", 10),
			MinIdleConns: getint("DOCTRINE_REDIS_MIN_IDLE", 2),
			DialTimeout:  getduration("DOCTRINE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getduration("DOCTRINE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getduration("DOCTRINE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:       splitNonEmpty(os.Getenv("DOCTRINE_KAFKA_BROKERS")),
			SignalTopic:   getenv("DOCTRINE_KAFKA_SIGNAL_TOPIC", "doctrine.signals"),
			ConsumerGroup: getenv("DOCTRINE_KAFKA_CONSUMER_GROUP", "campaign-creator"),
		},
		Budget: Budget{
			PerCallCeiling: getdecimal("DOCTRINE_BUDGET_PER_CALL", "1.50"),
			DailyCeiling:   getdecimal("DOCTRINE_BUDGET_DAILY", "25.00"),
			MonthlyCeiling: getdecimal("DOCTRINE_BUDGET_MONTHLY", "500.00"),
			CallTimeout:    getduration("DOCTRINE_BUDGET_CALL_TIMEOUT", 15*time.Second),
		},
		Promotion: Promotion{
			SlotsPerCompany: getint("DOCTRINE_PROMOTION_SLOTS_PER_COMPANY", 3),
		},
		Remediation: Remediation{
			MaxAttempts: getint("DOCTRINE_REMEDIATION_MAX_ATTEMPTS", 3),
		},
		Scheduler: Scheduler{
			RefreshSpec:     getenv("DOCTRINE_SCHEDULE_REFRESH", "0 6 * * *"),
			RemediationSpec: getenv("DOCTRINE_SCHEDULE_REMEDIATION", "*/30 * * * *"),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getdecimal(key, fallback string) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return decimal.RequireFromString(fallback)
}

func splitNonEmpty(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
