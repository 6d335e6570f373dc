package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. ZAPPER_SERVER_PORT
const EnvPrefix = "ZAPPER"

// Config is the whole service configuration
type Config struct {
	Server     ServerConfig   `mapstructure:"server"`
	Log        LogConfig      `mapstructure:"log"`
	Ethereum   EthereumConfig `mapstructure:"ethereum"`
	Redis      RedisConfig    `mapstructure:"redis"`
	Zap        ZapConfig      `mapstructure:"zap"`
	Fee        FeeConfig      `mapstructure:"fee"`
	Devnet     DevnetConfig   `mapstructure:"devnet"`
	Metrics    MetricsConfig  `mapstructure:"metrics"`
	TokensFile string         `mapstructure:"tokens_file"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Dir        string `mapstructure:"dir"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type EthereumConfig struct {
	RPCURL  string        `mapstructure:"rpc_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RedisConfig is optional; an empty address keeps fee config and events in process
type RedisConfig struct {
	Address      string `mapstructure:"address"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	FeeConfigKey string `mapstructure:"fee_config_key"`
	EventChannel string `mapstructure:"event_channel"`
}

// ZapConfig configures the engine itself
type ZapConfig struct {
	Engine         string        `mapstructure:"engine"`
	DefaultRouter  string        `mapstructure:"default_router"`
	DeadlineWindow time.Duration `mapstructure:"deadline_window"`
	SlippageBps    uint64        `mapstructure:"slippage_bps"`
}

// FeeConfig seeds the fee schedule on first start. A schedule already in the
// store wins over these values.
type FeeConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Owner    string `mapstructure:"owner"`
	Treasury string `mapstructure:"treasury"`
	Dev      string `mapstructure:"dev"`
	Rate     uint64 `mapstructure:"rate"`
}

type DevnetConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Fixture string `mapstructure:"fixture"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func (z ZapConfig) EngineAddress() common.Address {
	return common.HexToAddress(z.Engine)
}

func (z ZapConfig) DefaultRouterAddress() common.Address {
	return common.HexToAddress(z.DefaultRouter)
}

func (f FeeConfig) OwnerAddress() common.Address {
	return common.HexToAddress(f.Owner)
}

func (f FeeConfig) TreasuryAddress() common.Address {
	return common.HexToAddress(f.Treasury)
}

func (f FeeConfig) DevAddress() common.Address {
	if f.Dev == "" {
		return common.Address{}
	}
	return common.HexToAddress(f.Dev)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.max_size_mb", 500)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 7)

	v.SetDefault("ethereum.rpc_url", "https://eth.llamarpc.com")
	v.SetDefault("ethereum.timeout", 10*time.Second)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.fee_config_key", "zapper:fee_config")
	v.SetDefault("redis.event_channel", "zapper:zap_completed")

	v.SetDefault("zap.engine", "")
	v.SetDefault("zap.default_router", "")
	v.SetDefault("zap.deadline_window", 20*time.Minute)
	v.SetDefault("zap.slippage_bps", 50)

	v.SetDefault("fee.enabled", false)
	v.SetDefault("fee.owner", "")
	v.SetDefault("fee.treasury", "")
	v.SetDefault("fee.dev", "")
	v.SetDefault("fee.rate", 0)

	v.SetDefault("devnet.enabled", false)
	v.SetDefault("devnet.fixture", "config/devnet.json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("tokens_file", "")
}

// Loader reads the config file, applies ZAPPER_ env overrides and can watch
// the file for changes.
type Loader struct {
	v  *viper.Viper
	mu sync.Mutex
}

// NewLoader reads path, or ./config/config.yaml when path is empty. A missing
// default file is not an error; defaults and env still apply.
func NewLoader(path string) (*Loader, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./config/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return &Loader{v: v}, nil
}

// Load decodes and validates the current settings
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return decode(l.v)
}

// File returns the config file in use, or "" when running on defaults
func (l *Loader) File() string {
	return l.v.ConfigFileUsed()
}

// Watch calls onChange with the new config whenever the file changes.
// Invalid edits are reported through onError and the old config stays in use.
func (l *Loader) Watch(onChange func(*Config), onError func(error)) {
	if l.File() == "" {
		return
	}
	l.v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := l.Load()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	l.v.WatchConfig()
}

// Load is NewLoader(path).Load()
func Load(path string) (*Config, error) {
	l, err := NewLoader(path)
	if err != nil {
		return nil, err
	}
	return l.Load()
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that would otherwise fail at first use
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if c.Zap.SlippageBps > 10000 {
		return fmt.Errorf("zap.slippage_bps %d exceeds 10000", c.Zap.SlippageBps)
	}
	if err := checkAddress("zap.engine", c.Zap.Engine, true); err != nil {
		return err
	}
	if err := checkAddress("zap.default_router", c.Zap.DefaultRouter, true); err != nil {
		return err
	}
	if c.Fee.Enabled {
		if err := checkAddress("fee.owner", c.Fee.Owner, true); err != nil {
			return err
		}
		if err := checkAddress("fee.treasury", c.Fee.Treasury, true); err != nil {
			return err
		}
		if err := checkAddress("fee.dev", c.Fee.Dev, false); err != nil {
			return err
		}
	}
	if !c.Devnet.Enabled && c.Ethereum.RPCURL == "" {
		return errors.New("ethereum.rpc_url is required when devnet is disabled")
	}
	if c.Devnet.Enabled && c.Devnet.Fixture == "" {
		return errors.New("devnet.fixture is required when devnet is enabled")
	}
	return nil
}

func checkAddress(key, value string, required bool) error {
	if value == "" {
		if required {
			return fmt.Errorf("%s is required", key)
		}
		return nil
	}
	if !common.IsHexAddress(value) {
		return fmt.Errorf("%s: invalid address %q", key, value)
	}
	if common.HexToAddress(value) == (common.Address{}) {
		return fmt.Errorf("%s must not be the zero address", key)
	}
	return nil
}
