package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the HTTP API process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	TokenSecret string
	TokenTTL    time.Duration

	BanTTL      time.Duration
	LocationTTL time.Duration
	UserTTL     time.Duration

	CommissionRate     float64
	SettlementAttempts int
	SettlementDelay    time.Duration

	SweepInterval   time.Duration
	StaleCutoff     time.Duration
	StaleOuterBound time.Duration

	GeocodeBaseURL string
	UserServiceURL string
	RideServiceURL string
	MailEndpoint   string
	MailKey        string

	LogLevel string
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,

		KafkaTopic: "notification-events",

		TokenTTL: 5 * time.Minute,

		BanTTL:      30 * 24 * time.Hour,
		LocationTTL: time.Hour,
		UserTTL:     60 * time.Minute,

		CommissionRate:     0.05,
		SettlementAttempts: 3,
		SettlementDelay:    time.Second,

		SweepInterval:   5 * time.Minute,
		StaleCutoff:     15 * time.Minute,
		StaleOuterBound: 2 * time.Hour,

		GeocodeBaseURL: "https://nominatim.openstreetmap.org",

		LogLevel: "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	cfg.TokenSecret = os.Getenv("TOKEN_SECRET")
	setDurationFromEnv(&cfg.TokenTTL, "TOKEN_TTL", &errs)

	setDurationFromEnv(&cfg.BanTTL, "BAN_TTL", &errs)
	setDurationFromEnv(&cfg.LocationTTL, "LOCATION_TTL", &errs)
	setDurationFromEnv(&cfg.UserTTL, "USER_CACHE_TTL", &errs)

	setFloatFromEnv(&cfg.CommissionRate, "COMMISSION_RATE", &errs)
	setIntFromEnv(&cfg.SettlementAttempts, "SETTLEMENT_ATTEMPTS", &errs)
	setDurationFromEnv(&cfg.SettlementDelay, "SETTLEMENT_DELAY", &errs)

	setDurationFromEnv(&cfg.SweepInterval, "SWEEP_INTERVAL", &errs)
	setDurationFromEnv(&cfg.StaleCutoff, "STALE_CUTOFF", &errs)
	setDurationFromEnv(&cfg.StaleOuterBound, "STALE_OUTER_BOUND", &errs)

	setStringFromEnv(&cfg.GeocodeBaseURL, "GEOCODE_BASE_URL")
	setStringFromEnv(&cfg.UserServiceURL, "USER_SERVICE_URL")
	setStringFromEnv(&cfg.RideServiceURL, "RIDE_SERVICE_URL")
	setStringFromEnv(&cfg.MailEndpoint, "MAIL_ENDPOINT")
	cfg.MailKey = os.Getenv("MAIL_KEY")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.SettlementAttempts <= 0 {
		errs = append(errs, fmt.Errorf("SETTLEMENT_ATTEMPTS must be > 0"))
	}
	if cfg.CommissionRate < 0 || cfg.CommissionRate >= 1 {
		errs = append(errs, fmt.Errorf("COMMISSION_RATE must be in [0,1)"))
	}
	if cfg.StaleCutoff >= cfg.StaleOuterBound {
		errs = append(errs, fmt.Errorf("STALE_CUTOFF must be < STALE_OUTER_BOUND"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
