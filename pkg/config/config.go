package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		EventTopic   string   `yaml:"event_topic"`
		MetricsTopic string   `yaml:"metrics_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Queue struct {
		Workers    int           `yaml:"workers"`
		Size       int           `yaml:"size"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"queue"`
	Logging struct {
		AggregationTopic string        `yaml:"aggregation_topic"`
		FlushInterval    time.Duration `yaml:"flush_interval"`
		CountThreshold   int           `yaml:"count_threshold"`
	} `yaml:"logging"`
	Custodian struct {
		PageSize          int           `yaml:"page_size"`
		PageDelay         time.Duration `yaml:"page_delay"`
		OrderDelay        time.Duration `yaml:"order_delay"`
		MaxFilesPerFeed   int           `yaml:"max_files_per_feed"`
		RestTimeout       time.Duration `yaml:"rest_timeout"`
		SftpTimeout       time.Duration `yaml:"sftp_timeout"`
		RetryMaxAttempts  int           `yaml:"retry_max_attempts"`
		RetryBaseDelay    time.Duration `yaml:"retry_base_delay"`
		RetryMaxDelay     time.Duration `yaml:"retry_max_delay"`
		DefaultRetryAfter time.Duration `yaml:"default_retry_after"`
		MonitorInterval   time.Duration `yaml:"monitor_interval"`
	} `yaml:"custodian"`
	Recon struct {
		SummaryCacheTTL time.Duration `yaml:"summary_cache_ttl"`
		Tolerances      struct {
			MarketValueBps float64 `yaml:"market_value_bps"`
			PriceBps       float64 `yaml:"price_bps"`
			CashAbsolute   float64 `yaml:"cash_absolute"`
			QuantityExact  bool    `yaml:"quantity_exact"`
		} `yaml:"tolerances"`
	} `yaml:"recon"`
	Correlation struct {
		MinSampleSize int           `yaml:"min_sample_size"`
		CacheTTL      time.Duration `yaml:"cache_ttl"`
		WithLags      bool          `yaml:"with_lags"`
		Stream        struct {
			URL            string        `yaml:"url"`
			Token          string        `yaml:"token"`
			Profiles       []string      `yaml:"profiles"`
			ReconnectDelay time.Duration `yaml:"reconnect_delay"`
			PingInterval   time.Duration `yaml:"ping_interval"`
		} `yaml:"stream"`
	} `yaml:"correlation"`
	Cipher struct {
		ServiceURL string        `yaml:"service_url"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"cipher"`
	Portfolio struct {
		ServiceURL string        `yaml:"service_url"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"portfolio"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_EVENT_TOPIC"); v != "" {
		c.Kafka.EventTopic = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("CIPHER_SERVICE_URL"); v != "" {
		c.Cipher.ServiceURL = v
	}

	return c, nil
}

// Validate checks if the configuration is valid and applies defaults
// for unset tunables.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	if c.Kafka.EventTopic == "" {
		return fmt.Errorf("kafka.event_topic is required")
	}
	if c.Custodian.PageSize <= 0 {
		c.Custodian.PageSize = 1000
	}
	if c.Custodian.PageDelay <= 0 {
		c.Custodian.PageDelay = time.Second
	}
	if c.Custodian.OrderDelay <= 0 {
		c.Custodian.OrderDelay = 500 * time.Millisecond
	}
	if c.Custodian.MaxFilesPerFeed <= 0 {
		c.Custodian.MaxFilesPerFeed = 5
	}
	if c.Custodian.RestTimeout <= 0 {
		c.Custodian.RestTimeout = 30 * time.Second
	}
	if c.Custodian.SftpTimeout <= 0 {
		c.Custodian.SftpTimeout = 20 * time.Second
	}
	if c.Custodian.RetryMaxAttempts <= 0 {
		c.Custodian.RetryMaxAttempts = 5
	}
	if c.Custodian.RetryBaseDelay <= 0 {
		c.Custodian.RetryBaseDelay = 2 * time.Second
	}
	if c.Custodian.RetryMaxDelay <= 0 {
		c.Custodian.RetryMaxDelay = 30 * time.Second
	}
	if c.Custodian.DefaultRetryAfter <= 0 {
		c.Custodian.DefaultRetryAfter = 300 * time.Second
	}
	if c.Queue.Workers <= 0 {
		c.Queue.Workers = 4
	}
	if c.Queue.Size <= 0 {
		c.Queue.Size = 1000
	}
	if c.Queue.RetryLimit <= 0 {
		c.Queue.RetryLimit = 3
	}
	if c.Queue.RetryDelay <= 0 {
		c.Queue.RetryDelay = 30 * time.Second
	}
	if c.Logging.FlushInterval <= 0 {
		c.Logging.FlushInterval = 30 * time.Second
	}
	if c.Logging.CountThreshold <= 0 {
		c.Logging.CountThreshold = 100
	}
	if c.Recon.SummaryCacheTTL <= 0 {
		c.Recon.SummaryCacheTTL = time.Hour
	}
	if c.Recon.Tolerances.MarketValueBps <= 0 {
		c.Recon.Tolerances.MarketValueBps = 10
	}
	if c.Recon.Tolerances.PriceBps <= 0 {
		c.Recon.Tolerances.PriceBps = 5
	}
	if c.Recon.Tolerances.CashAbsolute <= 0 {
		c.Recon.Tolerances.CashAbsolute = 0.01
	}
	if c.Correlation.MinSampleSize <= 0 {
		c.Correlation.MinSampleSize = 10
	}
	if c.Correlation.CacheTTL <= 0 {
		c.Correlation.CacheTTL = 24 * time.Hour
	}
	return nil
}
