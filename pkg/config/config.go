// Package config loads environment-driven settings plus the YAML file that
// describes venues, instruments and the example strategy. Secrets stay in
// the environment; structure lives in the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sector-fi/barter-mono/pkg/instrument"
)

// Config holds the resolved runtime settings.
type Config struct {
	LogLevel    string
	QuoterAddr  string
	MetricsAddr string
	RedisAddr   string
	WssURL      string
	DataDir     string

	BacktestToFile    bool
	ReconcileInterval time.Duration

	File FileConfig
}

// FileConfig is the top-level YAML structure.
type FileConfig struct {
	Venues   []VenueConfig  `yaml:"venues"`
	Strategy StrategyConfig `yaml:"strategy"`
}

// VenueConfig describes one venue and the instruments traded on it.
type VenueConfig struct {
	Exchange    string             `yaml:"exchange"`
	Client      string             `yaml:"client"` // simulated | binance | uniswapx
	Market      string             `yaml:"market"` // spot | futures (binance)
	Live        bool               `yaml:"live"`
	Instruments []InstrumentConfig `yaml:"instruments"`

	// UniswapX-specific.
	Tokens  map[string]string `yaml:"tokens"` // symbol -> contract address
	Wallet  string            `yaml:"wallet"`
	ChainID uint32            `yaml:"chain_id"`
	FeeBps  int64             `yaml:"fee_bps"`

	// Simulated-specific.
	Balances map[string]float64 `yaml:"balances"`
}

// InstrumentConfig is the YAML form of an instrument.
type InstrumentConfig struct {
	Base  string `yaml:"base"`
	Quote string `yaml:"quote"`
	Kind  string `yaml:"kind"`
}

// ToInstrument converts the YAML form.
func (c InstrumentConfig) ToInstrument() instrument.Instrument {
	kind := instrument.Kind(c.Kind)
	if kind == "" {
		kind = instrument.KindSpot
	}
	return instrument.New(c.Base, c.Quote, kind)
}

// ToInstruments converts the venue's full instrument list.
func (v VenueConfig) ToInstruments() []instrument.Instrument {
	instruments := make([]instrument.Instrument, 0, len(v.Instruments))
	for _, ic := range v.Instruments {
		instruments = append(instruments, ic.ToInstrument())
	}
	return instruments
}

// StrategyConfig tunes the example moving-average strategy.
type StrategyConfig struct {
	Exchange   string           `yaml:"exchange"`
	Instrument InstrumentConfig `yaml:"instrument"`
	FastPeriod int              `yaml:"fast_period"`
	SlowPeriod int              `yaml:"slow_period"`
	Size       float64          `yaml:"size"`
}

// Load reads environment variables (optionally via .env) and the YAML config
// file named by CONFIG_FILE.
func Load() (*Config, error) {
	// Ignore error so the process still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		QuoterAddr:        getEnv("QUOTER_ADDR", "127.0.0.1:8080"),
		MetricsAddr:       getEnv("METRICS_ADDR", ""),
		RedisAddr:         getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		WssURL:            getEnv("WSS_URL", ""),
		DataDir:           getEnv("DATA_DIR", "data"),
		BacktestToFile:    getEnvBool("BACKTEST_TO_FILE", false),
		ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", 60*time.Second),
	}

	path := getEnv("CONFIG_FILE", "configs/config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg.File); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}
