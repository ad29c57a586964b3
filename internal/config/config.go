package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. OXYCOPY_DISPATCH_X.
const EnvPrefix = "OXYCOPY"

// Config represents the application configuration
type Config struct {
	Backend   BackendConfig   `mapstructure:"backend"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Buffers   BuffersConfig   `mapstructure:"buffers"`
	Planner   PlannerConfig   `mapstructure:"planner"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Profiling ProfilingConfig `mapstructure:"profiling"`
}

type BackendConfig struct {
	// Kind is one of auto, cpu or gpu. auto tries the GPU and falls back to the CPU executor.
	Kind                 string `mapstructure:"kind"`
	ForceFallbackAdapter bool   `mapstructure:"force_fallback_adapter"`
	PowerPreference      string `mapstructure:"power_preference"`
}

// DispatchConfig holds the work group counts handed to the dispatch call.
type DispatchConfig struct {
	X uint32 `mapstructure:"x"`
	Y uint32 `mapstructure:"y"`
	Z uint32 `mapstructure:"z"`
}

type BuffersConfig struct {
	// Length is the record count of both buffers. 0 sizes them to the dispatch's required length.
	Length   uint32  `mapstructure:"length"`
	Fill     string  `mapstructure:"fill"`
	Sentinel float32 `mapstructure:"sentinel"`
	Seed     int64   `mapstructure:"seed"`
}

type PlannerConfig struct {
	OverlapPolicy             string `mapstructure:"overlap_policy"`
	Workers                   int    `mapstructure:"workers"`
	MaxWorkgroupsPerDimension uint32 `mapstructure:"max_workgroups_per_dimension"`
	Repeat                    int    `mapstructure:"repeat"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	File    string `mapstructure:"file"`
	Console bool   `mapstructure:"console"`
}

type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

var (
	validBackends        = []string{"auto", "cpu", "gpu"}
	validPowerPrefs      = []string{"default", "low", "high"}
	validFills           = []string{"index", "random", "constant"}
	validOverlapPolicies = []string{"report", "reject"}
	validLevels          = []string{"debug", "info", "warn", "error"}
)

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			Kind:            "auto",
			PowerPreference: "high",
		},
		Dispatch: DispatchConfig{X: 1, Y: 1, Z: 2},
		Buffers: BuffersConfig{
			Length:   0,
			Fill:     "index",
			Sentinel: -1,
			Seed:     1,
		},
		Planner: PlannerConfig{
			OverlapPolicy:             "report",
			Workers:                   0,
			MaxWorkgroupsPerDimension: 65535,
			Repeat:                    1,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Load loads configuration from file, environment, and defaults
func Load(cfgFile string) (*Config, error) {
	return LoadWith(viper.New(), cfgFile)
}

// LoadWith is Load against a caller-owned viper instance, so CLI flags bound to
// that instance take precedence over file and environment values.
func LoadWith(v *viper.Viper, cfgFile string) (*Config, error) {
	cfg := DefaultConfig()
	setDefaults(v, cfg)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".oxycopy"))
		}
		v.SetConfigType("yaml")
		v.SetConfigName("oxycopy")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !slices.Contains(validBackends, c.Backend.Kind) {
		return fmt.Errorf("backend.kind must be one of: %v", validBackends)
	}
	if !slices.Contains(validPowerPrefs, c.Backend.PowerPreference) {
		return fmt.Errorf("backend.power_preference must be one of: %v", validPowerPrefs)
	}
	if c.Dispatch.X == 0 || c.Dispatch.Y == 0 || c.Dispatch.Z == 0 {
		return errors.New("dispatch.x, dispatch.y and dispatch.z must be greater than zero")
	}
	if !slices.Contains(validFills, c.Buffers.Fill) {
		return fmt.Errorf("buffers.fill must be one of: %v", validFills)
	}
	if !slices.Contains(validOverlapPolicies, c.Planner.OverlapPolicy) {
		return fmt.Errorf("planner.overlap_policy must be one of: %v", validOverlapPolicies)
	}
	if c.Planner.Workers < 0 {
		return errors.New("planner.workers must not be negative")
	}
	if c.Planner.MaxWorkgroupsPerDimension == 0 {
		return errors.New("planner.max_workgroups_per_dimension must be greater than zero")
	}
	if c.Planner.Repeat < 1 {
		return errors.New("planner.repeat must be at least 1")
	}
	if !slices.Contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}
	return nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("backend.kind", cfg.Backend.Kind)
	v.SetDefault("backend.force_fallback_adapter", cfg.Backend.ForceFallbackAdapter)
	v.SetDefault("backend.power_preference", cfg.Backend.PowerPreference)

	v.SetDefault("dispatch.x", cfg.Dispatch.X)
	v.SetDefault("dispatch.y", cfg.Dispatch.Y)
	v.SetDefault("dispatch.z", cfg.Dispatch.Z)

	v.SetDefault("buffers.length", cfg.Buffers.Length)
	v.SetDefault("buffers.fill", cfg.Buffers.Fill)
	v.SetDefault("buffers.sentinel", cfg.Buffers.Sentinel)
	v.SetDefault("buffers.seed", cfg.Buffers.Seed)

	v.SetDefault("planner.overlap_policy", cfg.Planner.OverlapPolicy)
	v.SetDefault("planner.workers", cfg.Planner.Workers)
	v.SetDefault("planner.max_workgroups_per_dimension", cfg.Planner.MaxWorkgroupsPerDimension)
	v.SetDefault("planner.repeat", cfg.Planner.Repeat)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.console", cfg.Logging.Console)

	v.SetDefault("profiling.enabled", cfg.Profiling.Enabled)
}
