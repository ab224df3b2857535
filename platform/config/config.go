// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the background scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetSweepInterval() time.Duration
}

// RoutingConfig provides settings for the lead routing engine. Implementations
// must return usable defaults when the underlying setting is absent; the
// engine never fails closed on missing configuration.
type RoutingConfig interface {
	GetLeadReservationTTL() time.Duration
	GetMaxActiveLeadsPerRealtor() int
	GetRealtorBoardEnabled() bool
	GetAutoReassignExpiredEnabled() bool
	GetFastAcceptThreshold() time.Duration
	GetBoardSelectDelay() time.Duration
	GetPinStickinessPoints() int
}

// EmailConfig provides settings for notification email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetOpsEmailAddress() string
}

// Routing defaults. These are the hard-coded safe fallbacks applied when a
// setting is missing or invalid: a reservation must always have some TTL.
const (
	DefaultLeadReservationMinutes   = 10
	DefaultMaxActiveLeadsPerRealtor = 3
	DefaultFastAcceptSeconds        = 300
	DefaultBoardSelectDelaySeconds  = 15
	DefaultPinStickinessPoints      = 10
	DefaultSweepIntervalSeconds     = 5
)

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env              string
	HTTPAddr         string
	DatabaseURL      string
	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int
	JWTAccessSecret  string
	CORSAllowAll     bool
	CORSOrigins      []string
	CORSAllowCreds   bool

	LeadReservationMinutes    int
	MaxActiveLeadsPerRealtor  int
	EnableRealtorBoard        bool
	EnableAutoReassignExpired bool
	FastAcceptSeconds         int
	BoardSelectDelaySeconds   int
	PinStickinessPoints       int
	SweepIntervalSeconds      int

	EmailEnabled     bool
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	EmailFromName    string
	EmailFromAddress string
	OpsEmailAddress  string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }
func (c *Config) GetSweepInterval() time.Duration {
	return positiveDuration(time.Duration(c.SweepIntervalSeconds)*time.Second, DefaultSweepIntervalSeconds*time.Second)
}

// RoutingConfig implementation
func (c *Config) GetLeadReservationTTL() time.Duration {
	return positiveDuration(time.Duration(c.LeadReservationMinutes)*time.Minute, DefaultLeadReservationMinutes*time.Minute)
}
func (c *Config) GetMaxActiveLeadsPerRealtor() int {
	if c.MaxActiveLeadsPerRealtor <= 0 {
		return DefaultMaxActiveLeadsPerRealtor
	}
	return c.MaxActiveLeadsPerRealtor
}
func (c *Config) GetRealtorBoardEnabled() bool        { return c.EnableRealtorBoard }
func (c *Config) GetAutoReassignExpiredEnabled() bool { return c.EnableAutoReassignExpired }
func (c *Config) GetFastAcceptThreshold() time.Duration {
	return positiveDuration(time.Duration(c.FastAcceptSeconds)*time.Second, DefaultFastAcceptSeconds*time.Second)
}
func (c *Config) GetBoardSelectDelay() time.Duration {
	return positiveDuration(time.Duration(c.BoardSelectDelaySeconds)*time.Second, DefaultBoardSelectDelaySeconds*time.Second)
}
func (c *Config) GetPinStickinessPoints() int {
	if c.PinStickinessPoints <= 0 {
		return DefaultPinStickinessPoints
	}
	return c.PinStickinessPoints
}

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetOpsEmailAddress() string  { return c.OpsEmailAddress }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:              getEnv("APP_ENV", "development"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE_NAME", "routing"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		JWTAccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:     corsAllowAll,
		CORSOrigins:      corsOrigins,
		CORSAllowCreds:   strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		LeadReservationMinutes:    mustInt(getEnv("LEAD_RESERVATION_MINUTES", strconv.Itoa(DefaultLeadReservationMinutes))),
		MaxActiveLeadsPerRealtor:  mustInt(getEnv("MAX_ACTIVE_LEADS_PER_REALTOR", strconv.Itoa(DefaultMaxActiveLeadsPerRealtor))),
		EnableRealtorBoard:        strings.EqualFold(getEnv("ENABLE_REALTOR_BOARD", "true"), "true"),
		EnableAutoReassignExpired: strings.EqualFold(getEnv("ENABLE_AUTO_REASSIGN_EXPIRED", "true"), "true"),
		FastAcceptSeconds:         mustInt(getEnv("FAST_ACCEPT_SECONDS", strconv.Itoa(DefaultFastAcceptSeconds))),
		BoardSelectDelaySeconds:   mustInt(getEnv("BOARD_SELECT_DELAY_SECONDS", strconv.Itoa(DefaultBoardSelectDelaySeconds))),
		PinStickinessPoints:       mustInt(getEnv("PIN_STICKINESS_POINTS", strconv.Itoa(DefaultPinStickinessPoints))),
		SweepIntervalSeconds:      mustInt(getEnv("SWEEP_INTERVAL_SECONDS", strconv.Itoa(DefaultSweepIntervalSeconds))),

		EmailEnabled:     emailEnabled && smtpHost != "",
		SMTPHost:         smtpHost,
		SMTPPort:         mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Realty Portal"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		OpsEmailAddress:  getEnv("EMAIL_OPS_ADDRESS", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func positiveDuration(value, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
