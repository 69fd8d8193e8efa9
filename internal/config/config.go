package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/v2xlab/vextel/internal/sampler"
	"github.com/v2xlab/vextel/internal/topology"
	"github.com/v2xlab/vextel/internal/traffic"
)

// Config represents the collector configuration. Durations are kept as
// strings in the file and parsed on conversion.
type Config struct {
	Run      RunConfig      `yaml:"run"`
	Topology TopologyConfig `yaml:"topology"`
	Sampling SamplingConfig `yaml:"sampling"`
	Scenario ScenarioConfig `yaml:"scenario"`
	Server   ServerConfig   `yaml:"server"`
	Sinks    SinksConfig    `yaml:"sinks"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// RunConfig represents run-level settings.
type RunConfig struct {
	// Seed is the master seed for every random stream of the run. Zero
	// leaves the package default, giving the stock sequence.
	Seed uint64 `yaml:"seed"`
}

// TopologyConfig represents the emulated network layout.
type TopologyConfig struct {
	Endpoints  int `yaml:"endpoints"`
	HighwayEnd int `yaml:"highway_end"`
	UrbanEnd   int `yaml:"urban_end"`
	BasePort   int `yaml:"base_port"`
}

// SamplingConfig represents the sampling loop timing.
type SamplingConfig struct {
	RunDuration string `yaml:"run_duration"`
	Interval    string `yaml:"interval"`
	RTTTimeout  string `yaml:"rtt_timeout"`
	MinSleep    string `yaml:"min_sleep"`
}

// ScenarioConfig represents the traffic scheduler settings. The phase
// parameter ranges are plain numbers and decode directly.
type ScenarioConfig struct {
	Budget       string `yaml:"budget"`
	StartupDelay string `yaml:"startup_delay"`
	GracePeriod  string `yaml:"grace_period"`
	SettleAfterA string `yaml:"settle_after_a"`
	SettleAfterB string `yaml:"settle_after_b"`
	SettleAfterC string `yaml:"settle_after_c"`

	PhaseA traffic.PhaseAConfig `yaml:"phase_a"`
	PhaseB traffic.PhaseBConfig `yaml:"phase_b"`
	PhaseC traffic.PhaseCConfig `yaml:"phase_c"`
}

// ServerConfig represents the status/metrics HTTP server.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// SinksConfig represents the record destinations.
type SinksConfig struct {
	CSV      CSVSinkConfig      `yaml:"csv"`
	Postgres PostgresSinkConfig `yaml:"postgres"`

	// HistoryPoints sizes the in-memory series rings served by the
	// status API.
	HistoryPoints int `yaml:"history_points"`
}

// CSVSinkConfig represents the CSV dataset file sink.
type CSVSinkConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// PostgresSinkConfig represents the PostgreSQL sink.
type PostgresSinkConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

// LoggingConfig represents the logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	FilePath string `yaml:"file_path"`
}

// Load loads the configuration from environment variables and defaults.
func Load() (*Config, error) {
	return loadWithDefaults("")
}

// LoadFromFile loads configuration from a YAML file, with environment
// variable overrides.
func LoadFromFile(configPath string) (*Config, error) {
	return loadWithDefaults(configPath)
}

func loadWithDefaults(configPath string) (*Config, error) {
	cfg := defaults()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaults() *Config {
	params := topology.DefaultParams()
	scenario := traffic.DefaultScenarioConfig()
	sampling := sampler.DefaultConfig()

	return &Config{
		Run: RunConfig{
			Seed: getEnvUint64("VEX_SEED", 0),
		},
		Topology: TopologyConfig{
			Endpoints:  params.Endpoints,
			HighwayEnd: params.HighwayEnd,
			UrbanEnd:   params.UrbanEnd,
			BasePort:   params.BasePort,
		},
		Sampling: SamplingConfig{
			RunDuration: sampling.RunDuration.String(),
			Interval:    sampling.Interval.String(),
			RTTTimeout:  sampling.RTTTimeout.String(),
			MinSleep:    sampling.MinSleep.String(),
		},
		Scenario: ScenarioConfig{
			Budget:       "0s",
			StartupDelay: scenario.StartupDelay.String(),
			GracePeriod:  scenario.GracePeriod.String(),
			SettleAfterA: scenario.SettleAfterA.String(),
			SettleAfterB: scenario.SettleAfterB.String(),
			SettleAfterC: scenario.SettleAfterC.String(),
			PhaseA:       scenario.PhaseA,
			PhaseB:       scenario.PhaseB,
			PhaseC:       scenario.PhaseC,
		},
		Server: ServerConfig{
			Enabled: true,
			Addr:    getEnv("VEX_SERVER_ADDR", "0.0.0.0:8080"),
		},
		Sinks: SinksConfig{
			CSV: CSVSinkConfig{
				Enabled: true,
				Path:    getEnv("VEX_CSV_PATH", "v2x_dataset.csv"),
			},
			Postgres: PostgresSinkConfig{
				Enabled:    getEnvBool("VEX_POSTGRES_ENABLED", false),
				ConnString: getEnv("VEX_POSTGRES_CONN", ""),
				Table:      getEnv("VEX_POSTGRES_TABLE", "telemetry"),
			},
			HistoryPoints: getEnvInt("VEX_HISTORY_POINTS", 600),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// applyEnvOverrides lets the environment win over file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VEX_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("VEX_CSV_PATH"); v != "" {
		cfg.Sinks.CSV.Path = v
	}
	if v := os.Getenv("VEX_POSTGRES_CONN"); v != "" {
		cfg.Sinks.Postgres.ConnString = v
	}
	if v := os.Getenv("VEX_POSTGRES_TABLE"); v != "" {
		cfg.Sinks.Postgres.Table = v
	}
	if v := os.Getenv("VEX_POSTGRES_ENABLED"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.Sinks.Postgres.Enabled = parsed
		}
	}
	if v := os.Getenv("VEX_RUN_DURATION"); v != "" {
		cfg.Sampling.RunDuration = v
	}
	if v := os.Getenv("VEX_SAMPLE_INTERVAL"); v != "" {
		cfg.Sampling.Interval = v
	}
	if v := os.Getenv("VEX_SEED"); v != "" {
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Run.Seed = parsed
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseUint(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// TopologyParams converts the topology section.
func (c *Config) TopologyParams() topology.Params {
	return topology.Params{
		Endpoints:  c.Topology.Endpoints,
		HighwayEnd: c.Topology.HighwayEnd,
		UrbanEnd:   c.Topology.UrbanEnd,
		BasePort:   c.Topology.BasePort,
	}
}

// SamplerConfig parses the sampling section.
func (c *Config) SamplerConfig() (sampler.Config, error) {
	var out sampler.Config
	var err error
	if out.RunDuration, err = parseDuration("sampling.run_duration", c.Sampling.RunDuration); err != nil {
		return out, err
	}
	if out.Interval, err = parseDuration("sampling.interval", c.Sampling.Interval); err != nil {
		return out, err
	}
	if out.RTTTimeout, err = parseDuration("sampling.rtt_timeout", c.Sampling.RTTTimeout); err != nil {
		return out, err
	}
	if out.MinSleep, err = parseDuration("sampling.min_sleep", c.Sampling.MinSleep); err != nil {
		return out, err
	}
	return out, nil
}

// ScenarioConfig parses the scenario section.
func (c *Config) ScenarioConfig() (traffic.ScenarioConfig, error) {
	out := traffic.ScenarioConfig{
		PhaseA: c.Scenario.PhaseA,
		PhaseB: c.Scenario.PhaseB,
		PhaseC: c.Scenario.PhaseC,
	}
	var err error
	if out.Budget, err = parseDuration("scenario.budget", c.Scenario.Budget); err != nil {
		return out, err
	}
	if out.StartupDelay, err = parseDuration("scenario.startup_delay", c.Scenario.StartupDelay); err != nil {
		return out, err
	}
	if out.GracePeriod, err = parseDuration("scenario.grace_period", c.Scenario.GracePeriod); err != nil {
		return out, err
	}
	if out.SettleAfterA, err = parseDuration("scenario.settle_after_a", c.Scenario.SettleAfterA); err != nil {
		return out, err
	}
	if out.SettleAfterB, err = parseDuration("scenario.settle_after_b", c.Scenario.SettleAfterB); err != nil {
		return out, err
	}
	if out.SettleAfterC, err = parseDuration("scenario.settle_after_c", c.Scenario.SettleAfterC); err != nil {
		return out, err
	}
	return out, nil
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must not be negative, got %s", field, value)
	}
	return d, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.TopologyParams().Validate(); err != nil {
		return err
	}

	sampling, err := c.SamplerConfig()
	if err != nil {
		return err
	}
	if sampling.RunDuration <= 0 {
		return fmt.Errorf("sampling.run_duration must be positive")
	}
	if sampling.Interval <= 0 {
		return fmt.Errorf("sampling.interval must be positive")
	}
	if sampling.RTTTimeout <= 0 {
		return fmt.Errorf("sampling.rtt_timeout must be positive")
	}

	scenario, err := c.ScenarioConfig()
	if err != nil {
		return err
	}
	for _, r := range []struct {
		name string
		r    traffic.Range
	}{
		{"phase_a.bandwidth_mbps", scenario.PhaseA.BandwidthMbps},
		{"phase_a.duration_sec", scenario.PhaseA.DurationSec},
		{"phase_a.gap_sec", scenario.PhaseA.GapSec},
		{"phase_b.center_bandwidth_mbps", scenario.PhaseB.CenterBandwidthMbps},
		{"phase_b.center_duration_sec", scenario.PhaseB.CenterDurationSec},
		{"phase_b.neighbor_bandwidth_mbps", scenario.PhaseB.NeighborBandwidthMbps},
		{"phase_b.neighbor_duration_sec", scenario.PhaseB.NeighborDurationSec},
		{"phase_b.diffuse_delay_sec", scenario.PhaseB.DiffuseDelaySec},
		{"phase_c.bandwidth_mbps", scenario.PhaseC.BandwidthMbps},
		{"phase_c.duration_sec", scenario.PhaseC.DurationSec},
	} {
		if r.r.Min < 0 || r.r.Max < r.r.Min {
			return fmt.Errorf("scenario.%s: invalid range [%.1f, %.1f]", r.name, r.r.Min, r.r.Max)
		}
	}

	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("server address cannot be empty when the server is enabled")
	}
	if c.Sinks.CSV.Enabled && c.Sinks.CSV.Path == "" {
		return fmt.Errorf("sinks.csv.path cannot be empty when the CSV sink is enabled")
	}
	if c.Sinks.Postgres.Enabled && c.Sinks.Postgres.ConnString == "" {
		return fmt.Errorf("sinks.postgres.conn_string is required when the postgres sink is enabled")
	}
	if !c.Sinks.CSV.Enabled && !c.Sinks.Postgres.Enabled {
		return fmt.Errorf("at least one record sink must be enabled")
	}
	if c.Sinks.HistoryPoints <= 0 {
		return fmt.Errorf("sinks.history_points must be positive")
	}
	return nil
}
