package config

import "runtime"

// Tuning holds channel buffers, pool sizes and rate limits for a load profile.
type Tuning struct {
	// Channel buffers
	HubUnregisterBuffer int `yaml:"hub_unregister_buffer" json:"hub_unregister_buffer"`
	ClientSendBuffer    int `yaml:"client_send_buffer" json:"client_send_buffer"`

	// Connection pools
	DBMaxOpenConns int `yaml:"db_max_open_conns" json:"db_max_open_conns"`
	DBMaxIdleConns int `yaml:"db_max_idle_conns" json:"db_max_idle_conns"`

	// Rate limiting, per connection
	MaxActionsPerSecond float64 `yaml:"max_actions_per_second" json:"max_actions_per_second"`
	ActionBurst         int     `yaml:"action_burst" json:"action_burst"`
	MaxClients          int     `yaml:"max_clients" json:"max_clients"`
}

// DefaultTuning returns sensible defaults for production.
func DefaultTuning() Tuning {
	numCPU := runtime.NumCPU()

	return Tuning{
		HubUnregisterBuffer: 64,
		ClientSendBuffer:    64,

		DBMaxOpenConns: numCPU * 4,
		DBMaxIdleConns: numCPU * 2,

		// Auto-clickers get throttled; humans rarely exceed ~15 clicks/s.
		MaxActionsPerSecond: 20,
		ActionBurst:         40,
		MaxClients:          2000,
	}
}

// StressTuning returns aggressive settings for load testing with the agitator.
func StressTuning() Tuning {
	numCPU := runtime.NumCPU()

	return Tuning{
		HubUnregisterBuffer: 256,
		ClientSendBuffer:    256,

		DBMaxOpenConns: numCPU * 8,
		DBMaxIdleConns: numCPU * 4,

		MaxActionsPerSecond: 200,
		ActionBurst:         400,
		MaxClients:          10000,
	}
}

// LowResourceTuning returns minimal settings for development.
func LowResourceTuning() Tuning {
	return Tuning{
		HubUnregisterBuffer: 8,
		ClientSendBuffer:    16,

		DBMaxOpenConns: 2,
		DBMaxIdleConns: 1,

		MaxActionsPerSecond: 10,
		ActionBurst:         20,
		MaxClients:          20,
	}
}

// TuningProfile resolves a profile name; unknown names fall back to the default.
func TuningProfile(name string) Tuning {
	switch name {
	case "stress":
		return StressTuning()
	case "low":
		return LowResourceTuning()
	default:
		return DefaultTuning()
	}
}
