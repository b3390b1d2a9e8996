package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/Podium/internal/scoring"
	"github.com/MikeSquared-Agency/Podium/internal/search"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Hermes   HermesConfig   `yaml:"hermes"`
	Search   SearchConfig   `yaml:"search"`
	Weights  WeightsConfig  `yaml:"weights"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Runner   RunnerConfig   `yaml:"runner"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	AdminToken  string `yaml:"admin_token"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type HermesConfig struct {
	URL string `yaml:"url"`
}

type SearchConfig struct {
	Competitors   int `yaml:"competitors"`
	RaceSize      int `yaml:"race_size"`
	Podium        int `yaml:"podium"`
	FrontierCap   int `yaml:"frontier_cap"`
	SuccessorCap  int `yaml:"successor_cap"`
	Workers       int `yaml:"workers"`
	MaxExpansions int `yaml:"max_expansions"`
	MaxCandidates int `yaml:"max_candidates"`
}

type WeightsConfig struct {
	Depth       float64 `yaml:"depth"`
	Unraced     float64 `yaml:"unraced"`
	InfoMissing float64 `yaml:"info_missing"`
}

// OracleConfig describes the hidden order used by one-shot solves. An
// explicit hidden order wins over the seed.
type OracleConfig struct {
	Seed        uint64 `yaml:"seed"`
	HiddenOrder []int  `yaml:"hidden_order"`
}

type RunnerConfig struct {
	TickIntervalMs int `yaml:"tick_interval_ms"`
	StaleTimeoutMs int `yaml:"stale_timeout_ms"`
	MaxAttempts    int `yaml:"max_attempts"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Runner.TickIntervalMs) * time.Millisecond
}

func (c *Config) StaleTimeout() time.Duration {
	return time.Duration(c.Runner.StaleTimeoutMs) * time.Millisecond
}

// SearchOptions converts the search and weights sections into engine options.
func (c *Config) SearchOptions() search.Options {
	return search.Options{
		Competitors:   c.Search.Competitors,
		RaceSize:      c.Search.RaceSize,
		Podium:        c.Search.Podium,
		FrontierCap:   c.Search.FrontierCap,
		SuccessorCap:  c.Search.SuccessorCap,
		Workers:       c.Search.Workers,
		MaxExpansions: c.Search.MaxExpansions,
		MaxCandidates: c.Search.MaxCandidates,
		Weights: scoring.WeightSet{
			Depth:       c.Weights.Depth,
			Unraced:     c.Weights.Unraced,
			InfoMissing: c.Weights.InfoMissing,
		},
	}
}

// Validate fails fast on configurations the search cannot run.
func (c *Config) Validate() error {
	if err := c.SearchOptions().Validate(); err != nil {
		return err
	}
	if n := len(c.Oracle.HiddenOrder); n != 0 && n != c.Search.Competitors {
		return fmt.Errorf("oracle.hidden_order has %d entries, want %d", n, c.Search.Competitors)
	}
	if c.Runner.TickIntervalMs <= 0 {
		return fmt.Errorf("runner.tick_interval_ms must be positive")
	}
	return nil
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
		},
		Hermes: HermesConfig{
			URL: "nats://localhost:4222",
		},
		Search: SearchConfig{
			Competitors:   25,
			RaceSize:      5,
			Podium:        3,
			FrontierCap:   search.DefaultFrontierCap,
			SuccessorCap:  search.DefaultSuccessorCap,
			Workers:       runtime.NumCPU(),
			MaxCandidates: search.DefaultMaxCandidates,
		},
		Weights: WeightsConfig{
			Depth:       1,
			Unraced:     50,
			InfoMissing: 1,
		},
		Oracle: OracleConfig{
			Seed: 1,
		},
		Runner: RunnerConfig{
			TickIntervalMs: 2000,
			StaleTimeoutMs: 600000,
			MaxAttempts:    2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setInt("PODIUM_PORT", &cfg.Server.Port)
	setInt("PODIUM_METRICS_PORT", &cfg.Server.MetricsPort)
	if v := os.Getenv("PODIUM_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("PODIUM_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("PODIUM_HERMES_URL"); v != "" {
		cfg.Hermes.URL = v
	}
	setInt("PODIUM_COMPETITORS", &cfg.Search.Competitors)
	setInt("PODIUM_RACE_SIZE", &cfg.Search.RaceSize)
	setInt("PODIUM_PODIUM", &cfg.Search.Podium)
	setInt("PODIUM_WORKERS", &cfg.Search.Workers)
	setInt("PODIUM_MAX_EXPANSIONS", &cfg.Search.MaxExpansions)
	setInt("PODIUM_MAX_CANDIDATES", &cfg.Search.MaxCandidates)
	if v := os.Getenv("PODIUM_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Oracle.Seed = n
		}
	}
	if v := os.Getenv("PODIUM_HIDDEN_ORDER"); v != "" {
		if order, err := parseOrder(v); err == nil {
			cfg.Oracle.HiddenOrder = order
		}
	}
	setInt("PODIUM_TICK_INTERVAL_MS", &cfg.Runner.TickIntervalMs)
	if v := os.Getenv("PODIUM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PODIUM_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// parseOrder reads a comma separated list such as "5,3,1,4,2,6".
func parseOrder(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("hidden order entry %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}
