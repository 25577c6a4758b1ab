package configloader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port                string `yaml:"port"`
	Disabled            bool   `yaml:"disabled"`
	ReadTimeoutSeconds  int    `yaml:"readTimeoutSeconds"`
	WriteTimeoutSeconds int    `yaml:"writeTimeoutSeconds"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DEXScreenerConfig holds DEXScreener API specific configurations.
type DEXScreenerConfig struct {
	BaseURL                  string `yaml:"baseURL"`
	ChainID                  string `yaml:"chainId"`
	RequestTimeoutMillis     int64  `yaml:"requestTimeoutMillis"`
	RequestsPerMinute        int    `yaml:"requestsPerMinute"`
	MaxTokensPerBatchRequest int    `yaml:"maxTokensPerBatchRequest"`
}

// CacheConfig controls snapshot freshness.
type CacheConfig struct {
	TTLMillis      int64 `yaml:"ttlMillis"`
	MaxStaleMillis int64 `yaml:"maxStaleMillis"`
}

// MonitorConfig controls the polling batch.
type MonitorConfig struct {
	PollingIntervalMillis int64   `yaml:"pollingIntervalMillis"`
	MinBuyAmountUSD       float64 `yaml:"minBuyAmountUsd"`
	MaxConcurrentChecks   int     `yaml:"maxConcurrentChecks"`
	CheckTimeoutMillis    int64   `yaml:"checkTimeoutMillis"`
	DisableBatchPrefetch  bool    `yaml:"disableBatchPrefetch"`
}

// TelegramConfig holds bot settings. The bot runs unless Disabled is set.
type TelegramConfig struct {
	Disabled               bool   `yaml:"disabled"`
	BotToken               string `yaml:"botToken"`
	APIBaseURL             string `yaml:"apiBaseURL"`
	LongPollTimeoutSeconds int    `yaml:"longPollTimeoutSeconds"`
}

// NotifierConfig sizes the outbound queue.
type NotifierConfig struct {
	QueueSize         int   `yaml:"queueSize"`
	Workers           int   `yaml:"workers"`
	SendTimeoutMillis int64 `yaml:"sendTimeoutMillis"`
}

// KafkaConfig enables the Kafka buy-event publisher when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// RPCConfig enables on-chain token metadata lookups when URL is set.
type RPCConfig struct {
	URL           string   `yaml:"url"`
	FallbackURLs  []string `yaml:"fallbackUrls"`
	TimeoutMillis int64    `yaml:"timeoutMillis"`
}

// WatchlistConfig points at an optional file of subscriptions seeded at startup.
type WatchlistConfig struct {
	Path string `yaml:"path"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	DEXScreener DEXScreenerConfig `yaml:"dexScreener"`
	Cache       CacheConfig       `yaml:"cache"`
	Monitor     MonitorConfig     `yaml:"monitor"`
	Telegram    TelegramConfig    `yaml:"telegram"`
	Notifier    NotifierConfig    `yaml:"notifier"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	RPC         RPCConfig         `yaml:"rpc"`
	Watchlist   WatchlistConfig   `yaml:"watchlist"`
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	logrus.Infof("Loaded environment from %s", path)
	return nil
}

// Load reads the YAML file at path (optional), applies environment overrides and defaults, and validates.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
		}
		logrus.Infof("Loaded configuration from %s", path)
	case errors.Is(err, fs.ErrNotExist):
		logrus.Warnf("Config file %s not found, using defaults and environment", path)
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides file values with the deployment's environment variables.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("TELEGRAM_BOT_TOKEN", &cfg.Telegram.BotToken)
	str("DEXSCREENER_API_URL", &cfg.DEXScreener.BaseURL)
	str("MONAD_CHAIN_ID", &cfg.DEXScreener.ChainID)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("HTTP_PORT", &cfg.Server.Port)
	str("EVM_RPC_URL", &cfg.RPC.URL)

	if v, ok := lookup("POLLING_INTERVAL"); ok && v != "" {
		ms, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid POLLING_INTERVAL %q: %w", v, err)
		}
		cfg.Monitor.PollingIntervalMillis = ms
	}
	if v, ok := lookup("MIN_BUY_AMOUNT_USD"); ok && v != "" {
		amount, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("invalid MIN_BUY_AMOUNT_USD %q: %w", v, err)
		}
		cfg.Monitor.MinBuyAmountUSD = amount
	}
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		cfg.Kafka.Brokers = brokers
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
		logrus.Infof("Server.Port not set, defaulting to %s", cfg.Server.Port)
	}
	if !strings.HasPrefix(cfg.Server.Port, ":") {
		cfg.Server.Port = ":" + cfg.Server.Port
	}
	if cfg.Server.ReadTimeoutSeconds <= 0 {
		cfg.Server.ReadTimeoutSeconds = 10
	}
	if cfg.Server.WriteTimeoutSeconds <= 0 {
		cfg.Server.WriteTimeoutSeconds = 10
	}

	if cfg.DEXScreener.BaseURL == "" {
		cfg.DEXScreener.BaseURL = "https://api.dexscreener.com"
		logrus.Infof("DEXScreener.BaseURL not set, defaulting to %s", cfg.DEXScreener.BaseURL)
	}
	// older deployments configured the base with the /latest prefix
	cfg.DEXScreener.BaseURL = strings.TrimSuffix(strings.TrimRight(cfg.DEXScreener.BaseURL, "/"), "/latest")
	if cfg.DEXScreener.ChainID == "" {
		cfg.DEXScreener.ChainID = "monad"
		logrus.Infof("DEXScreener.ChainID not set, defaulting to %s", cfg.DEXScreener.ChainID)
	}
	if cfg.DEXScreener.RequestTimeoutMillis == 0 {
		cfg.DEXScreener.RequestTimeoutMillis = 10000
		logrus.Infof("DEXScreener.RequestTimeoutMillis not set, defaulting to %d ms", cfg.DEXScreener.RequestTimeoutMillis)
	}
	if cfg.DEXScreener.RequestsPerMinute == 0 {
		cfg.DEXScreener.RequestsPerMinute = 300
	}
	if cfg.DEXScreener.MaxTokensPerBatchRequest == 0 {
		cfg.DEXScreener.MaxTokensPerBatchRequest = 30
	}

	if cfg.Cache.TTLMillis == 0 {
		cfg.Cache.TTLMillis = 5000
	}
	if cfg.Cache.MaxStaleMillis == 0 {
		cfg.Cache.MaxStaleMillis = 30000
	}

	if cfg.Monitor.PollingIntervalMillis == 0 {
		cfg.Monitor.PollingIntervalMillis = 5000
		logrus.Infof("Monitor.PollingIntervalMillis not set, defaulting to %d ms", cfg.Monitor.PollingIntervalMillis)
	}
	if cfg.Monitor.MinBuyAmountUSD == 0 {
		cfg.Monitor.MinBuyAmountUSD = 100
		logrus.Infof("Monitor.MinBuyAmountUSD not set, defaulting to %.2f", cfg.Monitor.MinBuyAmountUSD)
	}
	if cfg.Monitor.MaxConcurrentChecks <= 0 {
		cfg.Monitor.MaxConcurrentChecks = 10
	}
	if cfg.Monitor.CheckTimeoutMillis == 0 {
		cfg.Monitor.CheckTimeoutMillis = 15000
	}

	if cfg.Telegram.APIBaseURL == "" {
		cfg.Telegram.APIBaseURL = "https://api.telegram.org"
	}
	if cfg.Telegram.LongPollTimeoutSeconds <= 0 {
		cfg.Telegram.LongPollTimeoutSeconds = 30
	}

	if cfg.Notifier.QueueSize <= 0 {
		cfg.Notifier.QueueSize = 256
	}
	if cfg.Notifier.Workers <= 0 {
		cfg.Notifier.Workers = 4
	}
	if cfg.Notifier.SendTimeoutMillis <= 0 {
		cfg.Notifier.SendTimeoutMillis = 10000
	}

	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "buy-events"
	}
	if cfg.RPC.TimeoutMillis <= 0 {
		cfg.RPC.TimeoutMillis = 5000
	}
}

// Validate rejects configurations the monitor cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if !c.Telegram.Disabled && c.Telegram.BotToken == "" {
		errs = append(errs, errors.New("telegram bot token is required (TELEGRAM_BOT_TOKEN) unless telegram.disabled is set"))
	}
	if c.DEXScreener.ChainID == "" {
		errs = append(errs, errors.New("dexScreener.chainId must not be empty"))
	}
	if c.DEXScreener.RequestTimeoutMillis <= 0 {
		errs = append(errs, errors.New("dexScreener.requestTimeoutMillis must be positive"))
	}
	if c.DEXScreener.MaxTokensPerBatchRequest <= 0 {
		errs = append(errs, errors.New("dexScreener.maxTokensPerBatchRequest must be positive"))
	}
	if c.Monitor.PollingIntervalMillis <= 0 {
		errs = append(errs, errors.New("monitor.pollingIntervalMillis must be positive"))
	}
	if c.Monitor.MinBuyAmountUSD < 0 {
		errs = append(errs, errors.New("monitor.minBuyAmountUsd must not be negative"))
	}
	if c.Monitor.CheckTimeoutMillis <= 0 {
		errs = append(errs, errors.New("monitor.checkTimeoutMillis must be positive"))
	}
	if c.Cache.TTLMillis <= 0 {
		errs = append(errs, errors.New("cache.ttlMillis must be positive"))
	}
	if c.Cache.MaxStaleMillis < c.Cache.TTLMillis {
		errs = append(errs, fmt.Errorf("cache.maxStaleMillis (%d) must be >= cache.ttlMillis (%d)", c.Cache.MaxStaleMillis, c.Cache.TTLMillis))
	}
	return errors.Join(errs...)
}

// PollingInterval returns the monitor interval as a duration.
func (c *Config) PollingInterval() time.Duration {
	return time.Duration(c.Monitor.PollingIntervalMillis) * time.Millisecond
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.DEXScreener.RequestTimeoutMillis) * time.Millisecond
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMillis) * time.Millisecond
}

func (c *Config) CacheMaxStale() time.Duration {
	return time.Duration(c.Cache.MaxStaleMillis) * time.Millisecond
}

func (c *Config) CheckTimeout() time.Duration {
	return time.Duration(c.Monitor.CheckTimeoutMillis) * time.Millisecond
}

func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.Notifier.SendTimeoutMillis) * time.Millisecond
}

func (c *Config) RPCTimeout() time.Duration {
	return time.Duration(c.RPC.TimeoutMillis) * time.Millisecond
}
