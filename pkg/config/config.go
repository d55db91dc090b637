package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TRENDSCAN"

// DefaultTickers is the scanned universe when none is configured.
var DefaultTickers = []string{
	"SPY", "QQQ", "IWM", "DIA", "GLD", "SLV", "TLT", "USO", "VOO", "XLF",
	"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA",
	"XLE", "XLU", "XLI", "XLB", "XLP", "XLY", "XLV", "XBI", "VNQ", "EEM",
	"AMD", "TSLA", "CRM", "INTC", "JPM", "BAC", "V", "GS", "UNH", "JNJ",
	"PFE", "HD", "MCD", "NKE", "WMT", "COST", "PG", "CAT", "BA", "XOM",
}

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"oneof=development staging production test"`
	Log         struct {
		Level              string        `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format             string        `yaml:"format" default:"console" validate:"oneof=console json"`
		Output             string        `yaml:"output" default:"stdout"`
		CollectorTopic     string        `yaml:"collector_topic"`
		CollectorInterval  time.Duration `yaml:"collector_interval" default:"30s"`
		CollectorThreshold int           `yaml:"collector_threshold" default:"100"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		RateLimit       struct {
			Capacity     float64 `yaml:"capacity" default:"20"`
			RefillPerSec float64 `yaml:"refill_per_sec" default:"1"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Scanner struct {
		Tickers    []string      `yaml:"tickers"`
		Preset     string        `yaml:"preset" default:"default"`
		Lookback   string        `yaml:"lookback" default:"1y" validate:"oneof=1y 2y 5y"`
		Interval   string        `yaml:"interval" default:"1d" validate:"eq=1d"`
		Schedule   string        `yaml:"schedule" default:"@every 15m"`
		Workers    int           `yaml:"workers" default:"8" validate:"min=1,max=64"`
		Timeout    time.Duration `yaml:"timeout" default:"2m"`
		CacheTTL   time.Duration `yaml:"cache_ttl" default:"900s"`
		RunOnStart bool          `yaml:"run_on_start" default:"true"`
	} `yaml:"scanner"`
	// Presets overrides engine parameters per preset name. A preset not
	// built in starts from the "base" preset (default when unset).
	Presets    map[string]map[string]interface{} `yaml:"presets"`
	MarketData struct {
		Source      string        `yaml:"source" default:"yahoo" validate:"oneof=yahoo clickhouse"`
		BaseURL     string        `yaml:"base_url" default:"https://query1.finance.yahoo.com" validate:"url"`
		Timeout     time.Duration `yaml:"timeout" default:"10s"`
		Concurrency int           `yaml:"concurrency" default:"8" validate:"min=1"`
		RPS         float64       `yaml:"rps" default:"5" validate:"gt=0"`
		Retries     int           `yaml:"retries" default:"3" validate:"min=1"`
		Archive     bool          `yaml:"archive"`
	} `yaml:"market_data"`
	Cache struct {
		Type       string `yaml:"type" default:"memory" validate:"oneof=memory redis layered"`
		MemorySize int    `yaml:"memory_size" default:"2000"`
		Redis      struct {
			Host     string `yaml:"host" default:"localhost"`
			Port     int    `yaml:"port" default:"6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"trendscan"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Sinks struct {
		Kafka       bool   `yaml:"kafka"`
		ClickHouse  bool   `yaml:"clickhouse"`
		CSVPath     string `yaml:"csv_path"`
		WebSocket   bool   `yaml:"websocket" default:"true"`
		BufferSize  int    `yaml:"buffer_size" default:"16"`
		MaxAttempts int    `yaml:"max_attempts" default:"5"`
	} `yaml:"sinks"`
	Kafka struct {
		Brokers      []string      `yaml:"brokers"`
		RecordsTopic string        `yaml:"records_topic" default:"trendscan.records"`
		SummaryTopic string        `yaml:"summary_topic" default:"trendscan.summary"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"1s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"trendscan"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		KeyPrefix  string        `yaml:"key_prefix" default:"trendscan:queue"`
		Workers    int           `yaml:"workers" default:"2"`
		RetryLimit int           `yaml:"retry_limit" default:"2"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"10s"`
		JobTTL     time.Duration `yaml:"job_ttl" default:"24h"`
	} `yaml:"queue"`
}

// envOverrides are the TRENDSCAN_* variables applied over the file.
type envOverrides struct {
	Environment      string   `envconfig:"ENVIRONMENT"`
	LogLevel         string   `envconfig:"LOG_LEVEL"`
	LogFormat        string   `envconfig:"LOG_FORMAT"`
	ServerPort       int      `envconfig:"SERVER_PORT"`
	Tickers          []string `envconfig:"TICKERS"`
	Preset           string   `envconfig:"PRESET"`
	Lookback         string   `envconfig:"LOOKBACK"`
	Schedule         string   `envconfig:"SCHEDULE"`
	MarketDataSource string   `envconfig:"MARKET_DATA_SOURCE"`
	CacheType        string   `envconfig:"CACHE_TYPE"`
	RedisHost        string   `envconfig:"REDIS_HOST"`
	RedisPassword    string   `envconfig:"REDIS_PASSWORD"`
	KafkaBrokers     []string `envconfig:"KAFKA_BROKERS"`
	ClickHouseHost   string   `envconfig:"CLICKHOUSE_HOST"`
	ClickHouseUser   string   `envconfig:"CLICKHOUSE_USER"`
	ClickHousePass   string   `envconfig:"CLICKHOUSE_PASSWORD"`
	CSVPath          string   `envconfig:"CSV_PATH"`
	SinkKafka        *bool    `envconfig:"SINK_KAFKA"`
	SinkClickHouse   *bool    `envconfig:"SINK_CLICKHOUSE"`
	QueueEnabled     *bool    `envconfig:"QUEUE_ENABLED"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file over the defaults. An
// empty path yields the defaults.
func Load(path string) (*Config, error) {
	var c Config
	// defaults first so explicit zero values in the file (false, 0) survive
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if len(c.Scanner.Tickers) == 0 {
		c.Scanner.Tickers = append([]string(nil), DefaultTickers...)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with TRENDSCAN_*
// environment variables; a .env file in the working directory is read first.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	var ov envOverrides
	if err := envconfig.Process(EnvPrefix, &ov); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	c.applyOverrides(ov)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (c *Config) applyOverrides(ov envOverrides) {
	setString(&c.Environment, ov.Environment)
	setString(&c.Log.Level, ov.LogLevel)
	setString(&c.Log.Format, ov.LogFormat)
	if ov.ServerPort > 0 {
		c.Server.Port = ov.ServerPort
	}
	if len(ov.Tickers) > 0 {
		c.Scanner.Tickers = ov.Tickers
	}
	setString(&c.Scanner.Preset, ov.Preset)
	setString(&c.Scanner.Lookback, ov.Lookback)
	setString(&c.Scanner.Schedule, ov.Schedule)
	setString(&c.MarketData.Source, ov.MarketDataSource)
	setString(&c.Cache.Type, ov.CacheType)
	setString(&c.Cache.Redis.Host, ov.RedisHost)
	setString(&c.Cache.Redis.Password, ov.RedisPassword)
	if len(ov.KafkaBrokers) > 0 {
		c.Kafka.Brokers = ov.KafkaBrokers
	}
	setString(&c.ClickHouse.Host, ov.ClickHouseHost)
	setString(&c.ClickHouse.User, ov.ClickHouseUser)
	setString(&c.ClickHouse.Password, ov.ClickHousePass)
	setString(&c.Sinks.CSVPath, ov.CSVPath)
	if ov.SinkKafka != nil {
		c.Sinks.Kafka = *ov.SinkKafka
	}
	if ov.SinkClickHouse != nil {
		c.Sinks.ClickHouse = *ov.SinkClickHouse
	}
	if ov.QueueEnabled != nil {
		c.Queue.Enabled = *ov.QueueEnabled
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	for _, t := range c.Scanner.Tickers {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("scanner.tickers contains an empty symbol")
		}
	}
	if (c.Sinks.Kafka || c.Log.CollectorTopic != "") && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka delivery is enabled")
	}
	needsCH := c.Sinks.ClickHouse || c.MarketData.Source == "clickhouse" || c.MarketData.Archive
	if needsCH && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is used")
	}
	if c.Queue.Enabled && c.Cache.Type == "memory" {
		return fmt.Errorf("queue.enabled requires cache.type redis or layered")
	}
	return nil
}

// UsesRedis reports whether any component needs a redis connection.
func (c *Config) UsesRedis() bool {
	return c.Cache.Type != "memory" || c.Queue.Enabled
}

// RedisAddr returns host:port of the redis server.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Cache.Redis.Host, c.Cache.Redis.Port)
}
