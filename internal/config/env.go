package config

import (
	"os"
	"strconv"
	"time"
)

// FromEnv applies RUSH_* environment overrides on top of cfg.
// Unset or malformed variables leave the current value alone.
func FromEnv(cfg Config) Config {
	if profile := os.Getenv("RUSH_PROFILE"); profile != "" {
		cfg.Tuning = TuningProfile(profile)
	}

	if val := os.Getenv("RUSH_ADDR"); val != "" {
		cfg.Server.Addr = val
	}
	if val := os.Getenv("RUSH_CATALOG"); val != "" {
		cfg.Server.CatalogPath = val
	}
	if val := os.Getenv("RUSH_STORE"); val != "" {
		cfg.Store.Driver = val
	}
	if val := os.Getenv("RUSH_SQLITE_PATH"); val != "" {
		cfg.Store.SQLitePath = val
	}
	if val := os.Getenv("RUSH_POSTGRES_DSN"); val != "" {
		cfg.Store.PostgresDSN = val
	}
	if val := getEnvInt("RUSH_CACHE_SIZE"); val > 0 {
		cfg.Store.CacheSize = val
	}

	if val := getEnvInt("RUSH_AUTOSAVE_SECS"); val > 0 {
		cfg.Economy.AutosaveInterval = time.Duration(val) * time.Second
	}
	if val := getEnvFloat("RUSH_MAX_OFFLINE_HOURS"); val > 0 {
		cfg.Economy.MaxOffline = time.Duration(val * float64(time.Hour))
	}
	if val := getEnvInt("RUSH_SAVE_VERSION"); val > 0 {
		cfg.Economy.SaveVersion = val
	}
	if val := os.Getenv("RUSH_PRESTIGE_POLICY"); val != "" {
		cfg.Economy.PrestigePolicy = val
	}
	if val := os.Getenv("RUSH_CLICK_BOUNDARY"); val != "" {
		cfg.Economy.ClickBoundary = val
	}
	if val, ok := getEnvBool("RUSH_FORCE_RESET"); ok {
		cfg.Economy.ForceReset = val
	}

	return cfg
}

func getEnvInt(key string) int {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	num, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return num
}

func getEnvFloat(key string) float64 {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	num, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0
	}
	return num
}

func getEnvBool(key string) (bool, bool) {
	val := os.Getenv(key)
	if val == "" {
		return false, false
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, false
	}
	return b, true
}
