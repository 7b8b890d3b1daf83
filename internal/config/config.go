package config

import (
	"bytes"
	_ "embed"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	MySQL      DatabaseConfig   `mapstructure:"mysql"`
	ClickHouse DatabaseConfig   `mapstructure:"clickhouse"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Radius     RadiusConfig     `mapstructure:"radius"`
	Billing    BillingConfig    `mapstructure:"billing"`
	Customers  CustomersConfig  `mapstructure:"customers"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard"`
	CoA        CoAConfig        `mapstructure:"coa"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`
}

// ---- Leaf structs ----

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug|info|warn|error
	Format string `mapstructure:"format"` // json|console
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	Topic          string   `mapstructure:"topic"`
	GroupID        string   `mapstructure:"group_id"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

type RateLimitConfig struct {
	RPS int `mapstructure:"rps"`
}

// RadiusConfig names the attributes written for the target RADIUS server.
type RadiusConfig struct {
	DownloadAttribute string `mapstructure:"download_attribute"`
	UploadAttribute   string `mapstructure:"upload_attribute"`
	Op                string `mapstructure:"op"`
	FallbackPassword  string `mapstructure:"fallback_password"`
}

type BillingConfig struct {
	InvoiceAttempts int           `mapstructure:"invoice_attempts"`
	OverdueInterval time.Duration `mapstructure:"overdue_interval"`
}

type CustomersConfig struct {
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

type DashboardConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

// EndpointConfig is one change-of-authorization HTTP gateway in front of the NAS fleet.
type EndpointConfig struct {
	Name      string        `mapstructure:"name"`
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url"`
	Path      string        `mapstructure:"path"`
	TimeoutMs int           `mapstructure:"timeout_ms"`
	Breaker   BreakerConfig `mapstructure:"breaker"`
}

type CoAConfig struct {
	MaxAttempts int              `mapstructure:"max_attempts"`
	Endpoints   []EndpointConfig `mapstructure:"endpoints"`
}

type ReconcilerConfig struct {
	WorkerCount int `mapstructure:"worker_count"`
}

// Load reads embedded defaults, merges user YAML (if provided), loads .env and applies env overrides (ISPB_*).
func Load(path string) (Config, error) {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (ISPB_MYSQL_DSN, ISPB_RADIUS_FALLBACK_PASSWORD, ...)
	v.SetEnvPrefix("ISPB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
