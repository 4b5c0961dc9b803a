package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.02, cfg.Economy.PrestigeBonusPerCurrency)
	assert.Equal(t, time.Second, cfg.Economy.ProductionTick)
	assert.Equal(t, 30*time.Second, cfg.Economy.AutosaveInterval)
	assert.Equal(t, 2*time.Hour, cfg.Economy.MaxOffline)
	assert.Equal(t, 60*time.Second, cfg.Economy.MinOffline)
	assert.Equal(t, PolicyCurrencyGated, cfg.Economy.PrestigePolicy)
	assert.Equal(t, ClickBoundaryBefore, cfg.Economy.ClickBoundary)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
}

func TestLoadYAMLFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rush.yaml")
	body := `
server:
  addr: ":9090"
economy:
  autosave_interval: 45s
  max_offline: 3h
  prestige_policy: balance
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("RUSH_AUTOSAVE_SECS", "10")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 3*time.Hour, cfg.Economy.MaxOffline)
	assert.Equal(t, PolicyBalanceGated, cfg.Economy.PrestigePolicy)
	// env wins over the file
	assert.Equal(t, 10*time.Second, cfg.Economy.AutosaveInterval)
	// untouched keys keep defaults
	assert.Equal(t, 0.02, cfg.Economy.PrestigeBonusPerCurrency)
}

func TestFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("RUSH_AUTOSAVE_SECS", "soon")
	t.Setenv("RUSH_FORCE_RESET", "maybe")
	t.Setenv("RUSH_MAX_OFFLINE_HOURS", "4")
	t.Setenv("RUSH_PROFILE", "low")

	cfg := FromEnv(Default())
	assert.Equal(t, 30*time.Second, cfg.Economy.AutosaveInterval)
	assert.False(t, cfg.Economy.ForceReset)
	assert.Equal(t, 4*time.Hour, cfg.Economy.MaxOffline)
	assert.Equal(t, LowResourceTuning(), cfg.Tuning)
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = "mongo"
	cfg.Economy.PrestigePolicy = "vibes"
	cfg.Economy.MinOffline = 3 * time.Hour
	cfg.Economy.ClickBoundary = "during"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
	assert.Contains(t, err.Error(), "prestige_policy")
	assert.Contains(t, err.Error(), "offline bounds")
	assert.Contains(t, err.Error(), "click_boundary")
}

func TestValidateRejectsNegativeRewardsAndCosts(t *testing.T) {
	cfg := Default()
	cfg.Economy.DailyRewardBase = -1000
	cfg.Economy.PrestigeBaseCost = -10
	cfg.Economy.PrestigeRewardScale = -10
	cfg.Economy.PrestigeBalanceThreshold = -1

	err := cfg.Validate()
	require.Error(t, err)
	for _, field := range []string{"daily_reward_base", "prestige_base_cost", "prestige_reward_scale", "prestige_balance_threshold"} {
		assert.Contains(t, err.Error(), "economy."+field+" must not be negative")
	}

	cfg = Default()
	cfg.Economy.DailyRewardBase = 0
	cfg.Economy.PrestigeRewardScale = 0
	assert.NoError(t, cfg.Validate(), "zero disables a reward")
}

func TestPostgresNeedsDSN(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = DriverPostgres
	assert.Error(t, cfg.Validate())

	cfg.Store.PostgresDSN = "postgres://rush@localhost/rush?sslmode=disable"
	assert.NoError(t, cfg.Validate())
}

func TestTuningProfiles(t *testing.T) {
	assert.Equal(t, StressTuning(), TuningProfile("stress"))
	assert.Equal(t, LowResourceTuning(), TuningProfile("low"))
	assert.Equal(t, DefaultTuning(), TuningProfile("whatever"))
	assert.Greater(t, StressTuning().MaxActionsPerSecond, DefaultTuning().MaxActionsPerSecond)
}
