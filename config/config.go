package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log        Logger         `mapstructure:"logger"`
	DB         Database       `mapstructure:"database"`
	API        API            `mapstructure:"api"`
	Cache      Cache          `mapstructure:"cache"`
	Simulation Simulation     `mapstructure:"simulation"`
	Optimizer  Optimizer      `mapstructure:"optimizer"`
	Weighting  Weighting      `mapstructure:"weighting"`
	MarketData MarketData     `mapstructure:"market_data"`
	Telegram   TelegramConfig `mapstructure:"telegram"`
}

type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type Database struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	TimeZone        string        `mapstructure:"time_zone"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime string        `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	SlowQuery       time.Duration `mapstructure:"slow_query"`
}

type API struct {
	Port              int     `mapstructure:"port"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type Cache struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

type Simulation struct {
	InitialCapital float64 `mapstructure:"initial_capital"`
	Commission     float64 `mapstructure:"commission"`
}

type Optimizer struct {
	MaxCombinations int    `mapstructure:"max_combinations"`
	Workers         int    `mapstructure:"workers"`
	TopN            int    `mapstructure:"top_n"`
	Metric          string `mapstructure:"metric"`
}

type Weighting struct {
	BatchSize     int           `mapstructure:"batch_size"`
	BatchTimeout  time.Duration `mapstructure:"batch_timeout"`
	Workers       int           `mapstructure:"workers"`
	LookbackYears int           `mapstructure:"lookback_years"`
	Epsilon       float64       `mapstructure:"epsilon"`
	GoalMetric    string        `mapstructure:"goal_metric"`
	ArtifactTTL   time.Duration `mapstructure:"artifact_ttl"`
	Cron          string        `mapstructure:"cron"`
	Assets        []string      `mapstructure:"assets"`
	Strategies    []string      `mapstructure:"strategies"`
}

type MarketData struct {
	BaseURL             string        `mapstructure:"base_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	Range               string        `mapstructure:"range"`
	Breaker             Breaker       `mapstructure:"breaker"`
}

type Breaker struct {
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

type TelegramConfig struct {
	BotToken            string        `mapstructure:"bot_token"`
	ChatID              string        `mapstructure:"chat_id"`
	TimeoutDuration     time.Duration `mapstructure:"timeout_duration"`
	MaxMessagePerSecond int           `mapstructure:"max_message_per_second"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.log_level", "Warn")
	v.SetDefault("database.slow_query", "500ms")

	v.SetDefault("api.port", 8080)
	v.SetDefault("api.requests_per_second", 10)
	v.SetDefault("api.burst", 20)

	v.SetDefault("cache.default_expiration", 30*time.Minute)
	v.SetDefault("cache.cleanup_interval", 10*time.Minute)

	v.SetDefault("simulation.initial_capital", 10000.0)
	v.SetDefault("simulation.commission", 0.001)

	v.SetDefault("optimizer.max_combinations", 10000)
	v.SetDefault("optimizer.workers", runtime.NumCPU())
	v.SetDefault("optimizer.top_n", 20)
	v.SetDefault("optimizer.metric", "sharpe_ratio")

	v.SetDefault("weighting.batch_size", 10)
	v.SetDefault("weighting.batch_timeout", 2*time.Minute)
	v.SetDefault("weighting.workers", runtime.NumCPU())
	v.SetDefault("weighting.lookback_years", 3)
	v.SetDefault("weighting.epsilon", 1e-6)
	v.SetDefault("weighting.goal_metric", "sharpe_ratio")
	v.SetDefault("weighting.artifact_ttl", time.Hour)
	v.SetDefault("weighting.cron", "0 22 * * 1-5")

	v.SetDefault("market_data.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("market_data.timeout", 10*time.Second)
	v.SetDefault("market_data.max_request_per_minute", 60)
	v.SetDefault("market_data.range", "10y")
	v.SetDefault("market_data.breaker.max_requests", 1)
	v.SetDefault("market_data.breaker.interval", time.Minute)
	v.SetDefault("market_data.breaker.timeout", 30*time.Second)
	v.SetDefault("market_data.breaker.consecutive_failures", 5)

	v.SetDefault("telegram.timeout_duration", 10*time.Second)
	v.SetDefault("telegram.max_message_per_second", 1)
}

func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file loaded:", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AddConfigPath(".")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Println("No config file loaded:", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Simulation.InitialCapital <= 0 {
		return fmt.Errorf("simulation.initial_capital must be positive, got %v", c.Simulation.InitialCapital)
	}
	if c.Simulation.Commission < 0 || c.Simulation.Commission >= 1 {
		return fmt.Errorf("simulation.commission must be in [0,1), got %v", c.Simulation.Commission)
	}
	if c.Optimizer.MaxCombinations <= 0 {
		return fmt.Errorf("optimizer.max_combinations must be positive, got %d", c.Optimizer.MaxCombinations)
	}
	if c.Weighting.BatchSize <= 0 {
		return fmt.Errorf("weighting.batch_size must be positive, got %d", c.Weighting.BatchSize)
	}
	if c.Weighting.Epsilon <= 0 {
		return fmt.Errorf("weighting.epsilon must be positive, got %v", c.Weighting.Epsilon)
	}
	return nil
}
