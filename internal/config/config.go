// Package config holds the server, store, economy and tuning settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	PolicyCurrencyGated = "currency"
	PolicyBalanceGated  = "balance"

	ClickBoundaryBefore = "before"
	ClickBoundaryAfter  = "after"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Server  ServerConfig  `yaml:"server" json:"server"`
	Store   StoreConfig   `yaml:"store" json:"store"`
	Economy EconomyConfig `yaml:"economy" json:"economy"`
	Tuning  Tuning        `yaml:"tuning" json:"tuning"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
	// CatalogPath points at a YAML definition catalog. Empty uses the embedded one.
	CatalogPath string `yaml:"catalog_path" json:"catalog_path"`
}

type StoreConfig struct {
	Driver      string `yaml:"driver" json:"driver"`
	SQLitePath  string `yaml:"sqlite_path" json:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn" json:"postgres_dsn"`
	CacheSize   int    `yaml:"cache_size" json:"cache_size"`
}

type EconomyConfig struct {
	SaveVersion int  `yaml:"save_version" json:"save_version"`
	ForceReset  bool `yaml:"force_reset" json:"force_reset"`

	// PrestigeBonusPerCurrency is k in 1 + bonusCurrency*k.
	PrestigeBonusPerCurrency float64 `yaml:"prestige_bonus_per_currency" json:"prestige_bonus_per_currency"`

	ProductionTick   time.Duration `yaml:"production_tick" json:"production_tick"`
	AutosaveInterval time.Duration `yaml:"autosave_interval" json:"autosave_interval"`
	MaxOffline       time.Duration `yaml:"max_offline" json:"max_offline"`
	MinOffline       time.Duration `yaml:"min_offline" json:"min_offline"`

	PrestigePolicy           string  `yaml:"prestige_policy" json:"prestige_policy"`
	PrestigeBaseCost         float64 `yaml:"prestige_base_cost" json:"prestige_base_cost"`
	PrestigeCostGrowth       float64 `yaml:"prestige_cost_growth" json:"prestige_cost_growth"`
	PrestigeBalanceThreshold float64 `yaml:"prestige_balance_threshold" json:"prestige_balance_threshold"`
	PrestigeRewardScale      float64 `yaml:"prestige_reward_scale" json:"prestige_reward_scale"`

	ClickBoundary   string  `yaml:"click_boundary" json:"click_boundary"`
	DailyRewardBase float64 `yaml:"daily_reward_base" json:"daily_reward_base"`

	SaveRetries int           `yaml:"save_retries" json:"save_retries"`
	SaveBackoff time.Duration `yaml:"save_backoff" json:"save_backoff"`
	SaveTimeout time.Duration `yaml:"save_timeout" json:"save_timeout"`
}

// Default returns the production defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Store: StoreConfig{
			Driver:     DriverSQLite,
			SQLitePath: "data/rush.db",
			CacheSize:  1024,
		},
		Economy: DefaultEconomy(),
		Tuning:  DefaultTuning(),
	}
}

// DefaultEconomy mirrors the balancing of the shipped game.
func DefaultEconomy() EconomyConfig {
	return EconomyConfig{
		SaveVersion:              1,
		PrestigeBonusPerCurrency: 0.02,
		ProductionTick:           time.Second,
		AutosaveInterval:         30 * time.Second,
		MaxOffline:               2 * time.Hour,
		MinOffline:               60 * time.Second,
		PrestigePolicy:           PolicyCurrencyGated,
		PrestigeBaseCost:         10,
		PrestigeCostGrowth:       1.7,
		PrestigeBalanceThreshold: 1_000_000,
		PrestigeRewardScale:      10,
		ClickBoundary:            ClickBoundaryBefore,
		DailyRewardBase:          1000,
		SaveRetries:              5,
		SaveBackoff:              500 * time.Millisecond,
		SaveTimeout:              5 * time.Second,
	}
}

// Load reads an optional YAML file over the defaults, then applies env overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg = FromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverSQLite, DriverPostgres, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of sqlite, postgres, memory", c.Store.Driver))
	}
	if c.Store.Driver == DriverPostgres && c.Store.PostgresDSN == "" {
		errs = append(errs, errors.New("store.postgres_dsn is required for the postgres driver"))
	}

	e := c.Economy
	if e.SaveVersion <= 0 {
		errs = append(errs, errors.New("economy.save_version must be positive"))
	}
	if e.PrestigeBonusPerCurrency < 0 {
		errs = append(errs, errors.New("economy.prestige_bonus_per_currency must not be negative"))
	}
	if e.ProductionTick <= 0 || e.AutosaveInterval <= 0 {
		errs = append(errs, errors.New("economy tick periods must be positive"))
	}
	if e.MaxOffline < 0 || e.MinOffline < 0 || e.MinOffline > e.MaxOffline {
		errs = append(errs, errors.New("economy offline bounds must satisfy 0 <= min_offline <= max_offline"))
	}
	switch e.PrestigePolicy {
	case PolicyCurrencyGated, PolicyBalanceGated:
	default:
		errs = append(errs, fmt.Errorf("economy.prestige_policy %q is not one of currency, balance", e.PrestigePolicy))
	}
	for name, v := range map[string]float64{
		"daily_reward_base":          e.DailyRewardBase,
		"prestige_base_cost":         e.PrestigeBaseCost,
		"prestige_reward_scale":      e.PrestigeRewardScale,
		"prestige_balance_threshold": e.PrestigeBalanceThreshold,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("economy.%s must not be negative", name))
		}
	}
	if e.PrestigeCostGrowth < 1 {
		errs = append(errs, errors.New("economy.prestige_cost_growth must be >= 1"))
	}
	switch e.ClickBoundary {
	case ClickBoundaryBefore, ClickBoundaryAfter:
	default:
		errs = append(errs, fmt.Errorf("economy.click_boundary %q is not one of before, after", e.ClickBoundary))
	}
	if e.SaveRetries < 0 {
		errs = append(errs, errors.New("economy.save_retries must not be negative"))
	}
	if c.Tuning.MaxActionsPerSecond <= 0 || c.Tuning.ActionBurst <= 0 {
		errs = append(errs, errors.New("tuning action rate limits must be positive"))
	}
	return errors.Join(errs...)
}
