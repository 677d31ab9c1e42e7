package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Cron      CronConfig      `mapstructure:"cron"`
	Market    MarketConfig    `mapstructure:"market"`
	Valuation ValuationConfig `mapstructure:"valuation"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	SweepSpec string `mapstructure:"sweep_spec"`
	Secret    string `mapstructure:"secret"`
}

type MarketConfig struct {
	// Durations are the supported round classes in minutes.
	Durations        []int  `mapstructure:"durations"`
	InitialLiquidity string `mapstructure:"initial_liquidity"`
	BookLevels       int    `mapstructure:"book_levels"`
	TradeListLimit   int    `mapstructure:"trade_list_limit"`
	SettleBatchSize  int    `mapstructure:"settle_batch_size"`
}

type ValuationConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	TokenAddress string        `mapstructure:"token_address"`
	Timeout      time.Duration `mapstructure:"timeout"`
	StreamURL    string        `mapstructure:"stream_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// MaxTickAge bounds how stale a cached tick may be before settlement
	// treats the feed as unavailable.
	MaxTickAge time.Duration `mapstructure:"max_tick_age"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("UD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.sweep_spec", "@every 1m")
	v.SetDefault("cron.secret", "")
	v.SetDefault("market.durations", []int{15, 60, 240})
	v.SetDefault("market.initial_liquidity", "10000")
	v.SetDefault("market.book_levels", 15)
	v.SetDefault("market.trade_list_limit", 20)
	v.SetDefault("market.settle_batch_size", 10)
	v.SetDefault("valuation.base_url", "https://frontend-api.pump.fun")
	v.SetDefault("valuation.token_address", "")
	v.SetDefault("valuation.timeout", "10s")
	v.SetDefault("valuation.stream_url", "")
	v.SetDefault("valuation.poll_interval", "15s")
	v.SetDefault("valuation.max_tick_age", "10m")
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.rps", 5)
	v.SetDefault("rate_limit.burst", 20)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
