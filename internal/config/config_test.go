package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithMemoryStorage(t *testing.T) {
	t.Setenv("WK_STORAGE", "memory")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, StorageMemory, cfg.Storage)
	require.Equal(t, []int{30, 14, 7, 1, -7, -30}, cfg.Policy.ReminderTierDays)
	require.Equal(t, 60, cfg.Policy.GracePeriodDays)
	require.Equal(t, 24*time.Hour, cfg.Policy.VerificationTokenTTL)
	require.Equal(t, 168*time.Hour, cfg.Policy.ActivationTokenTTL)
	require.Equal(t, 3, cfg.Policy.MinPhotos)
	require.Equal(t, 12, cfg.Policy.ExtensionMonths)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  http_addr: ":9999"
  storage: postgres
dependencies:
  postgres_url: postgres://file
  kafka_brokers: [k1:9092, k2:9092]
scheduler:
  interval: 1h
policy:
  reminder_tiers_days: [21, 3]
  grace_period_days: 30
  activation_token_ttl: 72h
`), 0o600))
	t.Setenv("WK_DATABASE_URL", "postgres://env")
	t.Setenv("WK_MIN_PHOTOS", "5")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.HTTPAddr)
	require.Equal(t, "postgres://env", cfg.DatabaseURL)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, time.Hour, cfg.SchedulerInterval)
	require.Equal(t, []int{21, 3}, cfg.Policy.ReminderTierDays)
	require.Equal(t, 30, cfg.Policy.GracePeriodDays)
	require.Equal(t, 72*time.Hour, cfg.Policy.ActivationTokenTTL)
	require.Equal(t, 24*time.Hour, cfg.Policy.VerificationTokenTTL)
	require.Equal(t, 5, cfg.Policy.MinPhotos)
}

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	t.Setenv("WK_STORAGE", "memory")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [\n"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.ErrorContains(t, cfg.Validate(), "database URL")

	cfg.Storage = StorageMemory
	require.NoError(t, cfg.Validate())

	cfg.Policy.ReminderTierDays = []int{7, 7, -90}
	err := cfg.Validate()
	require.ErrorContains(t, err, "duplicate reminder tier 7")
	require.ErrorContains(t, err, "outside the 60 day grace period")
}

func TestSortedTiers(t *testing.T) {
	p := Policy{ReminderTierDays: []int{-7, 30, 1, 14}}
	require.Equal(t, []int{30, 14, 1, -7}, p.SortedTiers())
	require.Equal(t, []int{-7, 30, 1, 14}, p.ReminderTierDays)
}

func TestLoad_OverridesRunBeforeValidation(t *testing.T) {
	t.Setenv("WK_STORAGE", "")
	_, err := Load("")
	require.Error(t, err)

	cfg, err := Load("", func(c *Config) { c.DatabaseURL = "postgres://flag" })
	require.NoError(t, err)
	require.Equal(t, "postgres://flag", cfg.DatabaseURL)
}
