package config

import (
	"errors"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	Databases DatabasesConfig `mapstructure:"databases"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Prices    PricesConfig    `mapstructure:"prices"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
}

type ServiceType string

const (
	API    ServiceType = "API"
	WORKER ServiceType = "WORKER"
)

type ServiceConfig struct {
	Type ServiceType `mapstructure:"type"`
	Port string      `mapstructure:"port"`
}

type DatabasesConfig struct {
	SQL   SQLConfig   `mapstructure:"sql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// SQLConfig selects the store. Driver is "postgres" (default) or "sqlite";
// for sqlite, Database is the file path or ":memory:".
type SQLConfig struct {
	Host             string `mapstructure:"host"`
	Port             string `mapstructure:"port"`
	Username         string `mapstructure:"username"`
	Password         string `mapstructure:"password"`
	Driver           string `mapstructure:"driver"`
	Database         string `mapstructure:"database"`
	ConnectionString string `mapstructure:"connection_string"`
	MaxConns         int32  `mapstructure:"max_conns"`
	LogQueries       bool   `mapstructure:"log_queries"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database int    `mapstructure:"database"`
}

type AuthConfig struct {
	JWTSecret       string `mapstructure:"jwt_secret"`
	TokenTTLMinutes int    `mapstructure:"token_ttl_minutes"`
	AdminUsername   string `mapstructure:"admin_username"`
	AdminPassword   string `mapstructure:"admin_password"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	ToFile   bool   `mapstructure:"to_file"`
	FilePath string `mapstructure:"file_path"`
}

type PricesConfig struct {
	// MergeCron is the schedule of the staged price merge in the worker.
	MergeCron string `mapstructure:"merge_cron"`
}

// SecretsConfig points at AWS Secrets Manager entries that override the
// plain values above when Region is set.
type SecretsConfig struct {
	Region           string `mapstructure:"region"`
	DBPasswordSecret string `mapstructure:"db_password_secret"`
	JWTSecretSecret  string `mapstructure:"jwt_secret_secret"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.type", string(API))
	v.SetDefault("service.port", "8000")
	v.SetDefault("databases.sql.driver", "postgres")
	v.SetDefault("databases.sql.max_conns", 5)
	v.SetDefault("auth.token_ttl_minutes", 60)
	v.SetDefault("logging.level", "info")
	v.SetDefault("prices.merge_cron", "*/15 * * * *")
}

// LoadConfig reads appsettings.yaml from path, or appsettings.<env>.yaml when
// env is given. Values can be overridden with DEPOTBOOK_* environment
// variables, which may also come from a .env file in the working directory.
func LoadConfig(path string, env ...string) (*Config, error) {
	var cfg Config

	// A missing .env file is fine, the process environment is used as is.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AddConfigPath(path)
	name := "appsettings"
	if len(env) > 0 && env[0] != "" {
		name = name + "." + env[0]
	}
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("DEPOTBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	err = v.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
