package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/devlongs/trade-guardian/internal/analysis"
	"github.com/devlongs/trade-guardian/internal/pool"
	"github.com/devlongs/trade-guardian/internal/token"
	"github.com/devlongs/trade-guardian/pkg/types"
)

// Config holds all configuration for the trade guardian
type Config struct {
	Pool    PoolConfig
	Risk    RiskConfig
	Exact   ExactConfig
	Advisor AdvisorConfig
	Cache   CacheConfig
	Server  ServerConfig
	Logging LoggingConfig
	Tokens  TokensConfig
}

// PoolConfig holds the synthetic reserve model
type PoolConfig struct {
	FeeStable            float64
	FeeMajor             float64
	FeeDefault           float64
	LiquidityDeep        float64
	LiquidityMedium      float64
	LiquidityShallow     float64
	IdentityReserve      float64
	SeedModulus          int64
	SeedDivisor          float64
	FluctuationAmplitude float64
	FluctuationTimescale time.Duration
}

// RiskConfig holds the two-threshold risk policy
type RiskConfig struct {
	RiskyAbove         float64
	WarningAbove       float64
	RiskyFraction      float64
	WarningFraction    float64
	SlippageMultiplier float64
}

// ExactConfig holds the integer base-unit check settings
type ExactConfig struct {
	Enabled        bool
	FeeDenominator uint64
	SafeBps        uint64
}

// AdvisorConfig holds advisory text generation settings
type AdvisorConfig struct {
	Enabled      bool
	APIKey       string
	BaseURL      string
	Model        string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// CacheConfig holds the Redis advisory cache settings
type CacheConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	StatsInterval   time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "console"
}

// TokensConfig overrides the built-in token table
type TokensConfig struct {
	Prices []string // SYMBOL=price
	Stable []string
	Major  []string
}

// flag name -> config key
var flagKeys = map[string]string{
	"log-level":  "logging.level",
	"log-format": "logging.format",
	"addr":       "server.addr",
	"no-advisor": "advisor.disabled",
	"no-exact":   "exact.disabled",
}

// Load reads configuration from defaults, an optional config file, .env,
// the environment and finally any flags present in flags.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// Environment variable support
	v.SetEnvPrefix("GUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("advisor.api_key", "GUARD_ADVISOR_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind advisor key: %w", err)
	}

	// Config file support
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.trade-guardian")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	cfg := &Config{
		Pool: PoolConfig{
			FeeStable:            v.GetFloat64("pool.fee_stable"),
			FeeMajor:             v.GetFloat64("pool.fee_major"),
			FeeDefault:           v.GetFloat64("pool.fee_default"),
			LiquidityDeep:        v.GetFloat64("pool.liquidity_deep"),
			LiquidityMedium:      v.GetFloat64("pool.liquidity_medium"),
			LiquidityShallow:     v.GetFloat64("pool.liquidity_shallow"),
			IdentityReserve:      v.GetFloat64("pool.identity_reserve"),
			SeedModulus:          v.GetInt64("pool.seed_modulus"),
			SeedDivisor:          v.GetFloat64("pool.seed_divisor"),
			FluctuationAmplitude: v.GetFloat64("pool.fluctuation_amplitude"),
			FluctuationTimescale: v.GetDuration("pool.fluctuation_timescale"),
		},
		Risk: RiskConfig{
			RiskyAbove:         v.GetFloat64("risk.risky_above"),
			WarningAbove:       v.GetFloat64("risk.warning_above"),
			RiskyFraction:      v.GetFloat64("risk.risky_fraction"),
			WarningFraction:    v.GetFloat64("risk.warning_fraction"),
			SlippageMultiplier: v.GetFloat64("risk.slippage_multiplier"),
		},
		Exact: ExactConfig{
			Enabled:        v.GetBool("exact.enabled") && !v.GetBool("exact.disabled"),
			FeeDenominator: v.GetUint64("exact.fee_denominator"),
			SafeBps:        v.GetUint64("exact.safe_bps"),
		},
		Advisor: AdvisorConfig{
			Enabled:      v.GetBool("advisor.enabled") && !v.GetBool("advisor.disabled"),
			APIKey:       v.GetString("advisor.api_key"),
			BaseURL:      v.GetString("advisor.base_url"),
			Model:        v.GetString("advisor.model"),
			Timeout:      v.GetDuration("advisor.timeout"),
			MaxRetries:   v.GetInt("advisor.max_retries"),
			RetryBackoff: v.GetDuration("advisor.retry_backoff"),
		},
		Cache: CacheConfig{
			Enabled:  v.GetBool("cache.enabled"),
			Addr:     v.GetString("cache.addr"),
			Password: v.GetString("cache.password"),
			DB:       v.GetInt("cache.db"),
			TTL:      v.GetDuration("cache.ttl"),
		},
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			StatsInterval:   v.GetDuration("server.stats_interval"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Tokens: TokensConfig{
			Prices: v.GetStringSlice("tokens.prices"),
			Stable: v.GetStringSlice("tokens.stable"),
			Major:  v.GetStringSlice("tokens.major"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	pd := pool.DefaultConfig()
	v.SetDefault("pool.fee_stable", pd.FeeStable)
	v.SetDefault("pool.fee_major", pd.FeeMajor)
	v.SetDefault("pool.fee_default", pd.FeeDefault)
	v.SetDefault("pool.liquidity_deep", pd.LiquidityDeep)
	v.SetDefault("pool.liquidity_medium", pd.LiquidityMedium)
	v.SetDefault("pool.liquidity_shallow", pd.LiquidityShallow)
	v.SetDefault("pool.identity_reserve", pd.IdentityReserve)
	v.SetDefault("pool.seed_modulus", pd.SeedModulus)
	v.SetDefault("pool.seed_divisor", pd.SeedDivisor)
	v.SetDefault("pool.fluctuation_amplitude", pd.FluctuationAmplitude)
	v.SetDefault("pool.fluctuation_timescale", pd.FluctuationTimescale.String())

	v.SetDefault("risk.risky_above", analysis.DefaultRiskyAbove)
	v.SetDefault("risk.warning_above", analysis.DefaultWarningAbove)
	v.SetDefault("risk.risky_fraction", analysis.DefaultRiskyFraction)
	v.SetDefault("risk.warning_fraction", analysis.DefaultWarningFraction)
	v.SetDefault("risk.slippage_multiplier", analysis.DefaultSlippageMultiplier)

	v.SetDefault("exact.enabled", true)
	v.SetDefault("exact.disabled", false)
	v.SetDefault("exact.fee_denominator", 1_000_000)
	v.SetDefault("exact.safe_bps", 300)

	v.SetDefault("advisor.enabled", true)
	v.SetDefault("advisor.disabled", false)
	v.SetDefault("advisor.api_key", "")
	v.SetDefault("advisor.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("advisor.model", "gemini-3-flash-preview")
	v.SetDefault("advisor.timeout", "10s")
	v.SetDefault("advisor.max_retries", 2)
	v.SetDefault("advisor.retry_backoff", "250ms")

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", "10m")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.stats_interval", "1m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("tokens.prices", []string{})
	v.SetDefault("tokens.stable", []string{})
	v.SetDefault("tokens.major", []string{})
}

// Validate rejects configurations the engines would refuse at startup
func (c *Config) Validate() error {
	if err := c.Pool.Build().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := analysis.NewEngine(c.Risk.Build()); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Exact.FeeDenominator == 0 {
		return fmt.Errorf("config: exact.fee_denominator must be positive")
	}
	if c.Exact.SafeBps == 0 || c.Exact.SafeBps > 10_000 {
		return fmt.Errorf("config: exact.safe_bps must be in (0, 10000], got %d", c.Exact.SafeBps)
	}
	if c.Advisor.MaxRetries < 0 {
		return fmt.Errorf("config: advisor.max_retries must be >= 0")
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return fmt.Errorf("config: cache.addr is required when the cache is enabled")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("config: server.addr is required")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown logging.level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: unknown logging.format %q", c.Logging.Format)
	}
	if _, err := c.Tokens.Registry(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Build converts to the provider's config
func (c PoolConfig) Build() pool.Config {
	return pool.Config{
		FeeStable:            c.FeeStable,
		FeeMajor:             c.FeeMajor,
		FeeDefault:           c.FeeDefault,
		LiquidityDeep:        c.LiquidityDeep,
		LiquidityMedium:      c.LiquidityMedium,
		LiquidityShallow:     c.LiquidityShallow,
		IdentityReserve:      c.IdentityReserve,
		SeedModulus:          c.SeedModulus,
		SeedDivisor:          c.SeedDivisor,
		FluctuationAmplitude: c.FluctuationAmplitude,
		FluctuationTimescale: c.FluctuationTimescale,
	}
}

// Build converts to the engine's policy, keeping the default message templates
func (c RiskConfig) Build() analysis.Config {
	cfg := analysis.DefaultConfig()
	cfg.Rules = []analysis.Rule{
		{Above: c.RiskyAbove, Health: types.Risky, ReserveFraction: c.RiskyFraction, Template: analysis.DefaultRiskyTemplate},
		{Above: c.WarningAbove, Health: types.Warning, ReserveFraction: c.WarningFraction, Template: analysis.DefaultWarningTemplate},
	}
	cfg.SlippageMultiplier = c.SlippageMultiplier
	return cfg
}

// Registry returns the default token table with overrides applied
func (c TokensConfig) Registry() (*token.Registry, error) {
	base := token.DefaultRegistry()
	if len(c.Prices) == 0 && len(c.Stable) == 0 && len(c.Major) == 0 {
		return base, nil
	}

	prices := make(map[string]float64, len(c.Prices))
	for _, entry := range c.Prices {
		sym, raw, ok := strings.Cut(entry, "=")
		sym = strings.TrimSpace(sym)
		if !ok || sym == "" {
			return nil, fmt.Errorf("token price %q: want SYMBOL=price", entry)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("token price %q: %w", entry, err)
		}
		prices[sym] = price
	}
	return base.WithOverrides(prices, c.Stable, c.Major)
}
