package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Etcd      EtcdConfig      `mapstructure:"etcd"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Client    ClientConfig    `mapstructure:"client"`
}

type ServerConfig struct {
	Environment string `mapstructure:"environment"`
	Port        string `mapstructure:"port"`
}

type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type AuthConfig struct {
	SigningKey      string        `mapstructure:"signing_key"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	AdminUsername   string        `mapstructure:"admin_username"`
	AdminPassword   string        `mapstructure:"admin_password"`
}

type RateLimitConfig struct {
	LoginPerSecond int `mapstructure:"login_per_second"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type ClientConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	LoginRoute       string        `mapstructure:"login_route"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	Store            StoreConfig   `mapstructure:"store"`
}

// StoreConfig selects where the CLI keeps credentials.
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // file, redis, etcd or memory
	Path    string `mapstructure:"path"`
	Profile string `mapstructure:"profile"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.environment", "dev")
	v.SetDefault("server.port", ":8000")
	v.SetDefault("mysql.dsn", "")
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("etcd.endpoints", []string{"127.0.0.1:2379"})
	v.SetDefault("etcd.dial_timeout", 5*time.Second)
	// Every key needs a default, AutomaticEnv only overrides keys viper knows.
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.admin_username", "")
	v.SetDefault("auth.admin_password", "")
	v.SetDefault("auth.access_token_ttl", 15*time.Minute)
	v.SetDefault("auth.refresh_token_ttl", 5*24*time.Hour)
	v.SetDefault("ratelimit.login_per_second", 5)
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})
	v.SetDefault("client.base_url", "http://localhost:8000/api")
	v.SetDefault("client.timeout", 30*time.Second)
	v.SetDefault("client.login_route", "/login")
	v.SetDefault("client.progress_interval", 2*time.Second)
	v.SetDefault("client.store.backend", "file")
	v.SetDefault("client.store.path", "")
	v.SetDefault("client.store.profile", "default")
}

// Load reads config.yaml from the working directory or ./config, then
// applies BOTADMIN_* environment overrides (server.port -> BOTADMIN_SERVER_PORT).
// A missing file is not an error.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("BOTADMIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
