// Package config resolves server configuration: defaults, then a YAML file, then WK_* env vars.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Policy holds the lifecycle tunables.
type Policy struct {
	// ReminderTierDays are offsets from the due date; positive before it, negative after.
	ReminderTierDays     []int         `yaml:"reminder_tiers_days"`
	GracePeriodDays      int           `yaml:"grace_period_days"`
	VerificationTokenTTL time.Duration `yaml:"verification_token_ttl"`
	ActivationTokenTTL   time.Duration `yaml:"activation_token_ttl"`
	MinPhotos            int           `yaml:"min_photos"`
	MinPerCategory       int           `yaml:"min_per_category"`
	ExtensionMonths      int           `yaml:"extension_months"`
}

// Config is the resolved runtime configuration.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	Storage     string
	DatabaseURL string
	RedisURL    string
	JWTKey      string
	Dev         bool

	KafkaBrokers []string
	KafkaTopic   string
	OTLPEndpoint string

	PublicBaseURL     string
	SchedulerInterval time.Duration
	SweepBatchSize    int

	NotifyRatePerSecond float64
	NotifyBurst         int

	TokenFailWindow time.Duration
	TokenMaxFails   int
	TokenBlockFor   time.Duration

	Policy Policy
}

type configFile struct {
	Server struct {
		HTTPAddr string `yaml:"http_addr"`
		GRPCAddr string `yaml:"grpc_addr"`
		Storage  string `yaml:"storage"`
	} `yaml:"server"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
		KafkaTopic   string   `yaml:"kafka_topic"`
		OTLPEndpoint string   `yaml:"otlp_endpoint"`
	} `yaml:"dependencies"`
	Scheduler struct {
		Interval  time.Duration `yaml:"interval"`
		BatchSize int           `yaml:"batch_size"`
	} `yaml:"scheduler"`
	Notifications struct {
		PublicBaseURL string  `yaml:"public_base_url"`
		RatePerSecond float64 `yaml:"rate_per_second"`
		Burst         int     `yaml:"burst"`
	} `yaml:"notifications"`
	TokenLimiter struct {
		Window   time.Duration `yaml:"window"`
		MaxFails int           `yaml:"max_fails"`
		BlockFor time.Duration `yaml:"block_for"`
	} `yaml:"token_limiter"`
	Policy *Policy `yaml:"policy"`
}

// DefaultPolicy returns the built-in lifecycle tunables.
func DefaultPolicy() Policy {
	return Policy{
		ReminderTierDays:     []int{30, 14, 7, 1, -7, -30},
		GracePeriodDays:      60,
		VerificationTokenTTL: 24 * time.Hour,
		ActivationTokenTTL:   7 * 24 * time.Hour,
		MinPhotos:            3,
		MinPerCategory:       1,
		ExtensionMonths:      12,
	}
}

// Default returns the configuration used when no file or env overrides are present.
func Default() Config {
	return Config{
		HTTPAddr:            ":8080",
		GRPCAddr:            ":9090",
		Storage:             StoragePostgres,
		KafkaTopic:          "warranty-notifications",
		PublicBaseURL:       "http://localhost:8080",
		SchedulerInterval:   24 * time.Hour,
		SweepBatchSize:      200,
		NotifyRatePerSecond: 20,
		NotifyBurst:         40,
		TokenFailWindow:     15 * time.Minute,
		TokenMaxFails:       10,
		TokenBlockFor:       15 * time.Minute,
		Policy:              DefaultPolicy(),
	}
}

// Load resolves configuration in priority order: defaults -> file -> env -> overrides.
// An empty path or a missing file leaves the defaults in place. Overrides carry
// command-line flags and run before validation.
func Load(path string, overrides ...func(*Config)) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := applyFile(&cfg, raw); err != nil {
				return Config{}, err
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	applyEnv(&cfg)
	for _, o := range overrides {
		o(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	setString(&cfg.HTTPAddr, f.Server.HTTPAddr)
	setString(&cfg.GRPCAddr, f.Server.GRPCAddr)
	setString(&cfg.Storage, f.Server.Storage)
	setString(&cfg.DatabaseURL, f.Dependencies.PostgresURL)
	setString(&cfg.RedisURL, f.Dependencies.RedisURL)
	setString(&cfg.KafkaTopic, f.Dependencies.KafkaTopic)
	setString(&cfg.OTLPEndpoint, f.Dependencies.OTLPEndpoint)
	if len(f.Dependencies.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
	}
	if f.Scheduler.Interval > 0 {
		cfg.SchedulerInterval = f.Scheduler.Interval
	}
	if f.Scheduler.BatchSize > 0 {
		cfg.SweepBatchSize = f.Scheduler.BatchSize
	}
	setString(&cfg.PublicBaseURL, f.Notifications.PublicBaseURL)
	if f.Notifications.RatePerSecond > 0 {
		cfg.NotifyRatePerSecond = f.Notifications.RatePerSecond
	}
	if f.Notifications.Burst > 0 {
		cfg.NotifyBurst = f.Notifications.Burst
	}
	if f.TokenLimiter.Window > 0 {
		cfg.TokenFailWindow = f.TokenLimiter.Window
	}
	if f.TokenLimiter.MaxFails > 0 {
		cfg.TokenMaxFails = f.TokenLimiter.MaxFails
	}
	if f.TokenLimiter.BlockFor > 0 {
		cfg.TokenBlockFor = f.TokenLimiter.BlockFor
	}
	if p := f.Policy; p != nil {
		if len(p.ReminderTierDays) > 0 {
			cfg.Policy.ReminderTierDays = p.ReminderTierDays
		}
		if p.GracePeriodDays > 0 {
			cfg.Policy.GracePeriodDays = p.GracePeriodDays
		}
		if p.VerificationTokenTTL > 0 {
			cfg.Policy.VerificationTokenTTL = p.VerificationTokenTTL
		}
		if p.ActivationTokenTTL > 0 {
			cfg.Policy.ActivationTokenTTL = p.ActivationTokenTTL
		}
		if p.MinPhotos > 0 {
			cfg.Policy.MinPhotos = p.MinPhotos
		}
		if p.MinPerCategory > 0 {
			cfg.Policy.MinPerCategory = p.MinPerCategory
		}
		if p.ExtensionMonths > 0 {
			cfg.Policy.ExtensionMonths = p.ExtensionMonths
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = envOrDefault("WK_HTTP_ADDR", cfg.HTTPAddr)
	cfg.GRPCAddr = envOrDefault("WK_GRPC_ADDR", cfg.GRPCAddr)
	cfg.Storage = envOrDefault("WK_STORAGE", cfg.Storage)
	cfg.DatabaseURL = envOrDefault("WK_DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = envOrDefault("WK_REDIS_URL", cfg.RedisURL)
	cfg.JWTKey = envOrDefault("WK_JWT_KEY", cfg.JWTKey)
	cfg.KafkaBrokers = envCSV("WK_KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopic = envOrDefault("WK_KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.OTLPEndpoint = envOrDefault("WK_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.PublicBaseURL = envOrDefault("WK_PUBLIC_BASE_URL", cfg.PublicBaseURL)
	cfg.SchedulerInterval = envDuration("WK_SCHEDULER_INTERVAL", cfg.SchedulerInterval)

	cfg.Policy.ReminderTierDays = envInts("WK_REMINDER_TIERS_DAYS", cfg.Policy.ReminderTierDays)
	cfg.Policy.GracePeriodDays = envInt("WK_GRACE_PERIOD_DAYS", cfg.Policy.GracePeriodDays)
	cfg.Policy.VerificationTokenTTL = envDuration("WK_VERIFICATION_TOKEN_TTL", cfg.Policy.VerificationTokenTTL)
	cfg.Policy.ActivationTokenTTL = envDuration("WK_ACTIVATION_TOKEN_TTL", cfg.Policy.ActivationTokenTTL)
	cfg.Policy.MinPhotos = envInt("WK_MIN_PHOTOS", cfg.Policy.MinPhotos)
	cfg.Policy.ExtensionMonths = envInt("WK_EXTENSION_MONTHS", cfg.Policy.ExtensionMonths)
}

// Validate rejects configurations the lifecycle cannot run with.
func (c Config) Validate() error {
	var problems []string
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			problems = append(problems, "postgres storage requires a database URL")
		}
	case StorageMemory:
	default:
		problems = append(problems, fmt.Sprintf("unknown storage %q", c.Storage))
	}
	p := c.Policy
	if len(p.ReminderTierDays) == 0 {
		problems = append(problems, "at least one reminder tier is required")
	}
	seen := make(map[int]bool, len(p.ReminderTierDays))
	for _, d := range p.ReminderTierDays {
		if seen[d] {
			problems = append(problems, fmt.Sprintf("duplicate reminder tier %d", d))
		}
		seen[d] = true
		if d < 0 && -d >= p.GracePeriodDays {
			problems = append(problems, fmt.Sprintf("reminder tier %d falls outside the %d day grace period", d, p.GracePeriodDays))
		}
	}
	if p.GracePeriodDays <= 0 {
		problems = append(problems, "grace_period_days must be positive")
	}
	if p.VerificationTokenTTL <= 0 || p.ActivationTokenTTL <= 0 {
		problems = append(problems, "token TTLs must be positive")
	}
	if p.MinPhotos < 0 || p.MinPerCategory < 0 {
		problems = append(problems, "photo minimums must not be negative")
	}
	if p.ExtensionMonths <= 0 {
		problems = append(problems, "extension_months must be positive")
	}
	if c.SchedulerInterval <= 0 {
		problems = append(problems, "scheduler interval must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// SortedTiers returns the reminder tiers from earliest (largest offset) to latest.
func (p Policy) SortedTiers() []int {
	out := append([]int(nil), p.ReminderTierDays...)
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	var parts []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}

// envInts parses a comma-separated integer list; any bad element keeps the fallback.
func envInts(name string, fallback []int) []int {
	parts := envCSV(name, nil)
	if len(parts) == 0 {
		return fallback
	}
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return fallback
		}
		out = append(out, v)
	}
	return out
}
