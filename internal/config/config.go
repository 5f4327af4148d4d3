package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"voyager/internal/broker/oanda"
	"voyager/internal/risk"
	"voyager/internal/scanner"
	"voyager/internal/scoring"
	"voyager/internal/strategy"
)

// Config represents the application configuration
type Config struct {
	Broker   BrokerConfig   `yaml:"broker"`
	Strategy StrategyConfig `yaml:"strategy"`
	Risk     risk.Config    `yaml:"risk"`
	Scoring  scoring.Config `yaml:"scoring"`
	Scanner  ScannerConfig  `yaml:"scanner"`
	Web      WebConfig      `yaml:"web"`
	DataDir  string         `yaml:"data_dir"`
}

// BrokerConfig holds broker API settings
type BrokerConfig struct {
	oanda.Credentials `yaml:",inline"`
	RateLimit         int `yaml:"rate_limit"` // requests per minute
}

// StrategyConfig selects the active strategy and its parameter profile
type StrategyConfig struct {
	Active    string                     `yaml:"active"`
	Profile   string                     `yaml:"profile"`
	Watchlist []string                   `yaml:"watchlist"`
	Profiles  map[string]strategy.Params `yaml:"profiles"`
}

// ScannerConfig holds scan cadence settings
type ScannerConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// WebConfig holds the status server settings
type WebConfig struct {
	Port int `yaml:"port"`
}

// DefaultConfig returns the default configuration with the two named
// parameter profiles
func DefaultConfig() *Config {
	return &Config{
		Broker: BrokerConfig{
			Credentials: oanda.Credentials{
				APIToken:  os.Getenv("OANDA_API_TOKEN"),
				AccountID: os.Getenv("OANDA_ACCOUNT_ID"),
				Practice:  true,
			},
			RateLimit: 100,
		},
		Strategy: StrategyConfig{
			Active:    "h1_trend_m15_pullback",
			Profile:   "strict",
			Watchlist: []string{"EUR_USD", "GBP_USD", "USD_JPY", "AUD_USD"},
			Profiles: map[string]strategy.Params{
				"strict": {
					"pullback_atr_ratio": 0.6,
					"zone_atr_tolerance": 0.3,
					"rr_target":          2.0,
					"min_rr":             1.3,
				},
				"soft": {
					"pullback_atr_ratio": 0.4,
					"zone_atr_tolerance": 0.45,
					"rr_target":          1.6,
					"min_rr":             1.0,
				},
			},
		},
		Risk:    risk.DefaultConfig(),
		Scoring: scoring.DefaultConfig(),
		Scanner: ScannerConfig{
			Interval: 15 * time.Minute,
			Timeout:  60 * time.Second,
		},
		Web: WebConfig{Port: 8087},
	}
}

// Load loads configuration from a YAML file, falling back to defaults
// when the file does not exist
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Environment overrides
	if token := os.Getenv("OANDA_API_TOKEN"); token != "" {
		cfg.Broker.APIToken = token
	}
	if account := os.Getenv("OANDA_ACCOUNT_ID"); account != "" {
		cfg.Broker.AccountID = account
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Broker.APIToken == "" || c.Broker.AccountID == "" {
		return fmt.Errorf("broker credentials required (set OANDA_API_TOKEN and OANDA_ACCOUNT_ID)")
	}
	if len(c.Strategy.Watchlist) == 0 {
		return fmt.Errorf("watchlist must contain at least one pair")
	}
	if c.Strategy.Active == "" {
		return fmt.Errorf("strategy.active is required")
	}
	if _, ok := c.Strategy.Profiles[c.Strategy.Profile]; !ok {
		return fmt.Errorf("unknown parameter profile: %s", c.Strategy.Profile)
	}
	if c.Risk.MaxConcurrentTrades < 1 {
		return fmt.Errorf("risk.max_concurrent_trades must be at least 1")
	}
	return nil
}

// ScanSettings maps the loaded configuration onto one cycle's settings
func (c *Config) ScanSettings() (scanner.Settings, error) {
	params := c.Strategy.Profiles[c.Strategy.Profile]
	return scanner.Settings{
		ActiveStrategyID:    c.Strategy.Active,
		Params:              params,
		Watchlist:           c.Strategy.Watchlist,
		MaxConcurrentTrades: c.Risk.MaxConcurrentTrades,
	}, nil
}

// Source re-reads the configuration file at the start of each cycle, so
// out-of-band edits take effect without a restart
type Source struct {
	path string
}

// NewSource creates a reloading settings source for the config path
func NewSource(path string) *Source {
	return &Source{path: path}
}

// ScanSettings loads the file and maps it onto cycle settings.
// An unreadable or invalid file is an infrastructure error and
// propagates to the caller.
func (s *Source) ScanSettings() (scanner.Settings, error) {
	cfg, err := Load(s.path)
	if err != nil {
		return scanner.Settings{}, err
	}
	if _, ok := cfg.Strategy.Profiles[cfg.Strategy.Profile]; !ok {
		return scanner.Settings{}, fmt.Errorf("unknown parameter profile: %s", cfg.Strategy.Profile)
	}
	return cfg.ScanSettings()
}
