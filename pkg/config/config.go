package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"OptiBase/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Logger      struct {
		Level       string `yaml:"level" default:"info"`
		Format      string `yaml:"format" default:"console"`
		Output      string `yaml:"output" default:"stdout"`
		SummaryOnly bool   `yaml:"summary_only"`
		LastTotals  bool   `yaml:"last_totals"`
	} `yaml:"logger"`
	Storage struct {
		Root         string `yaml:"root" default:"data"`
		SplitRoot    string `yaml:"split_root" default:"data/mirror_split"`
		AtomicWrites bool   `yaml:"atomic_writes" default:"true"`
	} `yaml:"storage"`
	Market struct {
		Timezone      string             `yaml:"timezone" default:"Asia/Kolkata"`
		SessionStart  string             `yaml:"session_start" default:"09:15"`
		SessionEnd    string             `yaml:"session_end" default:"15:30"`
		Indices       []string           `yaml:"indices"`
		ExpiryBuckets []string           `yaml:"expiry_buckets"`
		Offsets       []string           `yaml:"offsets"`
		StrikeSteps   map[string]float64 `yaml:"strike_steps"`
	} `yaml:"market"`
	Session struct {
		Preflight           bool          `yaml:"preflight" default:"true"`
		Streaming           bool          `yaml:"streaming" default:"true"`
		EODEnabled          bool          `yaml:"eod_enabled" default:"true"`
		WaitPollMax         time.Duration `yaml:"wait_poll_max" default:"30s"`
		IdlePoll            time.Duration `yaml:"idle_poll" default:"5s"`
		HelperCheckInterval time.Duration `yaml:"helper_check_interval" default:"30s"`
	} `yaml:"session"`
	Monitor struct {
		Enabled         bool          `yaml:"enabled" default:"true"`
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8098"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"5s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"5s"`
	} `yaml:"monitor"`
	Helper struct {
		Command        string        `yaml:"command"`
		Args           []string      `yaml:"args"`
		SampleInterval time.Duration `yaml:"sample_interval" default:"10s"`
		Port           int           `yaml:"port" default:"8099"`
	} `yaml:"helper"`
	Mirror struct {
		Enabled    bool `yaml:"enabled"`
		ClickHouse struct {
			Host        string        `yaml:"host" default:"localhost"`
			Port        int           `yaml:"port" default:"9000"`
			Database    string        `yaml:"database" default:"optibase"`
			User        string        `yaml:"user" default:"default"`
			Password    string        `yaml:"password"`
			AsyncInsert bool          `yaml:"async_insert"`
			DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
			ReadTimeout time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"clickhouse"`
	} `yaml:"mirror"`
	Sources struct {
		RawRoots   map[string]string `yaml:"raw_roots"`
		RawPattern string            `yaml:"raw_pattern" default:"{index}/{date}.csv"`
	} `yaml:"sources"`
}

// load reads, defaults, and parses the file without validating.
func load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	// Defaults first so an explicit false in the file survives unmarshal.
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("default config: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.fillListDefaults()

	return &c, nil
}

// fillListDefaults sets the slice and map defaults the tag syntax handles badly.
func (c *Config) fillListDefaults() {
	if len(c.Market.Indices) == 0 {
		c.Market.Indices = []string{"NIFTY 50", "NIFTY BANK", "SENSEX"}
	}
	if len(c.Market.ExpiryBuckets) == 0 {
		c.Market.ExpiryBuckets = []string{"this_week", "next_week", "this_month", "next_month"}
	}
	if len(c.Market.Offsets) == 0 {
		c.Market.Offsets = []string{"atm_m2", "atm_m1", "atm", "atm_p1", "atm_p2"}
	}
	if len(c.Market.StrikeSteps) == 0 {
		c.Market.StrikeSteps = map[string]float64{
			"NIFTY 50":   50,
			"NIFTY BANK": 100,
			"SENSEX":     100,
		}
	}
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("OPTIBASE_LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
	if v := os.Getenv("OPTIBASE_ROOT"); v != "" {
		c.Storage.Root = v
	}
	if v := os.Getenv("OPTIBASE_SPLIT_ROOT"); v != "" {
		c.Storage.SplitRoot = v
	}
	if v := os.Getenv("OPTIBASE_TIMEZONE"); v != "" {
		c.Market.Timezone = v
	}
	if v := os.Getenv("OPTIBASE_SESSION_START"); v != "" {
		c.Market.SessionStart = v
	}
	if v := os.Getenv("OPTIBASE_SESSION_END"); v != "" {
		c.Market.SessionEnd = v
	}
	if v := os.Getenv("OPTIBASE_INDICES"); v != "" {
		c.Market.Indices = util.SplitCSVList(v)
	}
	c.Storage.AtomicWrites = util.ParseBoolDefault(os.Getenv("OPTIBASE_ATOMIC_WRITES"), c.Storage.AtomicWrites)
	c.Session.Streaming = util.ParseBoolDefault(os.Getenv("OPTIBASE_STREAMING"), c.Session.Streaming)
	c.Session.EODEnabled = util.ParseBoolDefault(os.Getenv("OPTIBASE_EOD"), c.Session.EODEnabled)
	c.Monitor.Port = util.ParseIntDefault(os.Getenv("OPTIBASE_MONITOR_PORT"), c.Monitor.Port)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root is required")
	}
	if c.Storage.SplitRoot == "" {
		return fmt.Errorf("storage.split_root is required")
	}
	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("market.timezone %q: %w", c.Market.Timezone, err)
	}
	start, err := time.Parse("15:04", c.Market.SessionStart)
	if err != nil {
		return fmt.Errorf("market.session_start must be HH:MM, got %q", c.Market.SessionStart)
	}
	end, err := time.Parse("15:04", c.Market.SessionEnd)
	if err != nil {
		return fmt.Errorf("market.session_end must be HH:MM, got %q", c.Market.SessionEnd)
	}
	if !end.After(start) {
		return fmt.Errorf("market session window %s-%s: end not after start", c.Market.SessionStart, c.Market.SessionEnd)
	}
	if len(c.Market.Indices) == 0 {
		return fmt.Errorf("market.indices cannot be empty")
	}
	for _, b := range c.Market.ExpiryBuckets {
		switch strings.ToLower(b) {
		case "this_week", "next_week", "this_month", "next_month":
		default:
			return fmt.Errorf("market.expiry_buckets: unknown bucket %q", b)
		}
	}
	if len(c.Market.Offsets) == 0 {
		return fmt.Errorf("market.offsets cannot be empty")
	}
	if c.Session.WaitPollMax <= 0 || c.Session.IdlePoll <= 0 || c.Session.HelperCheckInterval <= 0 {
		return fmt.Errorf("session poll intervals must be positive")
	}
	if c.Monitor.Enabled && (c.Monitor.Port < 1 || c.Monitor.Port > 65535) {
		return fmt.Errorf("monitor.port out of range: %d", c.Monitor.Port)
	}
	if c.Helper.SampleInterval <= 0 {
		return fmt.Errorf("helper.sample_interval must be positive")
	}
	if c.Helper.Port < 1 || c.Helper.Port > 65535 {
		return fmt.Errorf("helper.port out of range: %d", c.Helper.Port)
	}
	if c.Mirror.Enabled {
		if c.Mirror.ClickHouse.Host == "" || c.Mirror.ClickHouse.Database == "" || c.Mirror.ClickHouse.User == "" {
			return fmt.Errorf("mirror.clickhouse host, database, and user are required when the mirror is enabled")
		}
	}
	if !strings.Contains(c.Sources.RawPattern, "{date}") {
		return fmt.Errorf("sources.raw_pattern must contain {date}, got %q", c.Sources.RawPattern)
	}
	return nil
}
