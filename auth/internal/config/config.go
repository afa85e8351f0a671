package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env         string        `yaml:"env" env:"ENV" env-default:"local"`
	StoragePath string        `yaml:"storage_path" env:"STORAGE_PATH" env-required:"true"`
	HTTP        HTTPConfig    `yaml:"http"`
	GRPC        GRPCConfig    `yaml:"grpc"`
	Metrics     MetricsConfig `yaml:"metrics"`
	Redis       RedisConfig   `yaml:"redis"`
	Token       TokenConfig   `yaml:"token"`
	Cookie      CookieConfig  `yaml:"cookie"`
	Kafka       KafkaConfig   `yaml:"kafka"`
	Limiter     LimiterConfig `yaml:"limiter"`
	Sweeper     SweeperConfig `yaml:"sweeper"`
}

type HTTPConfig struct {
	Port         int           `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env-default:"5s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env-default:"10s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env-default:"60s"`
	// TrustedProxies may set the client address through forwarding headers.
	TrustedProxies []string `yaml:"trusted_proxies" env:"HTTP_TRUSTED_PROXIES" env-separator:","`
}

type GRPCConfig struct {
	Port    int           `yaml:"port" env:"GRPC_PORT" env-default:"44044"`
	Timeout time.Duration `yaml:"timeout" env-default:"5s"`
}

type MetricsConfig struct {
	Port int `yaml:"port" env:"METRICS_PORT" env-default:"9090"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	Timeout  time.Duration `yaml:"timeout" env-default:"3s"`
}

// TokenConfig holds the credential codec settings. Access and refresh secrets must differ.
type TokenConfig struct {
	Format        string        `yaml:"format" env:"TOKEN_FORMAT" env-default:"jwt"`
	AccessSecret  string        `yaml:"access_secret" env:"ACCESS_SECRET" env-required:"true"`
	RefreshSecret string        `yaml:"refresh_secret" env:"REFRESH_SECRET" env-required:"true"`
	AccessTTL     time.Duration `yaml:"access_ttl" env-default:"30m"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl" env-default:"720h"`
	ClockSkew     time.Duration `yaml:"clock_skew" env-default:"60s"`
}

// CookieConfig shapes the refresh cookie. Secure is on unless COOKIE_SECURE=false:
// a false value in YAML is indistinguishable from an unset one and gets the default.
type CookieConfig struct {
	Secure bool   `yaml:"secure" env:"COOKIE_SECURE" env-default:"true"`
	Domain string `yaml:"domain" env:"COOKIE_DOMAIN"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled" env:"KAFKA_ENABLED" env-default:"false"`
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `yaml:"topic" env-default:"login-history"`
}

// LimiterConfig bounds failed logins per client IP.
type LimiterConfig struct {
	MaxAttempts int           `yaml:"max_attempts" env-default:"5"`
	Window      time.Duration `yaml:"window" env-default:"15m"`
	BlockTime   time.Duration `yaml:"block_time" env-default:"15m"`
}

type SweeperConfig struct {
	Interval time.Duration `yaml:"interval" env-default:"5m"`
	Rate     int           `yaml:"rate" env-default:"100"`
	Batch    int64         `yaml:"batch" env-default:"100"`
}

func MustLoad() *Config {
	path := fetchConfigPath()
	if path == "" {
		panic("config path is empty")
	}

	return MustLoadByPath(path)
}

func MustLoadByPath(path string) *Config {
	cfg, err := LoadByPath(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// LoadByPath reads the YAML file at path and applies env overrides.
func LoadByPath(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &PathError{Path: path}
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, &ReadError{Err: err}
	}

	return &cfg, nil
}

// fetchConfigPath fetches config path from command line flag or environment variable.
// Priority: flag > env > default.
// Default value is empty string.
func fetchConfigPath() string {
	var res string

	// --config="path/to/config.yaml"
	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}

type PathError struct {
	Path string
}

func (e *PathError) Error() string {
	return "config file does not exist: " + e.Path
}

type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return "failed to read config: " + e.Err.Error()
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
