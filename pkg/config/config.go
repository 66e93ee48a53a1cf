package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

const (
	SessionStoreFile   = "file"
	SessionStoreRedis  = "redis"
	SessionStoreMemory = "memory"
)

type Config struct {
	AppEnv   string `mapstructure:"APP_ENV"`
	AppName  string `mapstructure:"APP_NAME"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	API      struct {
		BaseURL string        `mapstructure:"BASE_URL"`
		Prefix  string        `mapstructure:"PREFIX"`
		Timeout time.Duration `mapstructure:"TIMEOUT"`
	} `mapstructure:"API"`
	Session struct {
		Store string `mapstructure:"STORE"`
		Path  string `mapstructure:"PATH"`
		Key   string `mapstructure:"KEY"`
	} `mapstructure:"SESSION"`
	Snowflake struct {
		Node int64 `mapstructure:"NODE"`
	} `mapstructure:"SNOWFLAKE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Minio struct {
		Endpoint   string `mapstructure:"ENDPOINT"`
		AccessKey  string `mapstructure:"ACCESS_KEY"`
		SecretKey  string `mapstructure:"SECRET_KEY"`
		Secure     bool   `mapstructure:"SECURE"`
		BucketName string `mapstructure:"BUCKET_NAME"`
	} `mapstructure:"MINIO"`
}

// Module provides *Config loaded from config.yaml, .env and the environment.
var Module = fx.Module("config", fx.Provide(Provide))

// Options controls where LoadConfig looks for configuration.
type Options struct {
	// File is an explicit config file; when empty config.yaml is searched in
	// the working directory and $XDG_CONFIG_HOME/legion.
	File string
	// EnvFile is loaded into the process environment when present.
	EnvFile string
}

type Params struct {
	fx.In
	Options Options `optional:"true"`
}

func Provide(p Params) (*Config, error) {
	return LoadConfig(p.Options)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "legion")
	v.SetDefault("LOG_LEVEL", "warn")
	v.SetDefault("API.BASE_URL", "http://localhost:8000")
	v.SetDefault("API.PREFIX", "/api/v1")
	v.SetDefault("API.TIMEOUT", 30*time.Second)
	v.SetDefault("SESSION.STORE", SessionStoreFile)
	v.SetDefault("SESSION.PATH", filepath.Join(xdg.DataHome, "legion", "token.json"))
	v.SetDefault("SESSION.KEY", "token")
	v.SetDefault("SNOWFLAKE.NODE", 1)
	v.SetDefault("REDIS.ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)
	v.SetDefault("REDIS.POOL_SIZE", 4)
	v.SetDefault("REDIS.POOL_TIMEOUT", 5*time.Second)
	v.SetDefault("MINIO.ENDPOINT", "")
	v.SetDefault("MINIO.ACCESS_KEY", "")
	v.SetDefault("MINIO.SECRET_KEY", "")
	v.SetDefault("MINIO.SECURE", false)
	v.SetDefault("MINIO.BUCKET_NAME", "legion")
}

// LoadConfig reads configuration. A missing config file is not an error;
// defaults and environment variables (API_BASE_URL, SESSION_STORE, ...) apply.
func LoadConfig(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, "legion"))
	}

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

	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	return &cfg, nil
}

// IsProduction reports whether APP_ENV selects production logging.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
