package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Remote    RemoteConfig    `mapstructure:"remote"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"` // sqlite or postgres
	Path        string `mapstructure:"path"`   // sqlite file path
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	Name        string `mapstructure:"name"`
	SSLMode     string `mapstructure:"ssl_mode"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`

	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN builds the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	}
	return c.Path
}

// RemoteConfig selects and configures the remote drop source.
type RemoteConfig struct {
	Type           string `mapstructure:"type"` // httpdrop or s3
	Folder         string `mapstructure:"folder"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`

	// HTTP drop
	Endpoint string `mapstructure:"endpoint"`
	Token    string `mapstructure:"token"`

	// S3-compatible drop
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type IngestionConfig struct {
	StagingDir   string `mapstructure:"staging_dir"`
	ArchiveDir   string `mapstructure:"archive_dir"`
	LookbackDays int    `mapstructure:"lookback_days"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("remote.token", "REMOTE_TOKEN")
	v.BindEnv("remote.access_key", "REMOTE_ACCESS_KEY")
	v.BindEnv("remote.secret_key", "REMOTE_SECRET_KEY")
	v.BindEnv("remote.endpoint", "REMOTE_ENDPOINT")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Schedule.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/dropsync.db")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("schedule.interval_minutes", 30)
	v.SetDefault("schedule.timezone", "UTC")
	v.SetDefault("schedule.allow_overlap", false)
	v.SetDefault("schedule.overlap_policy", "skip")
	v.SetDefault("schedule.jitter_seconds", 0)
	v.SetDefault("schedule.shutdown_timeout_seconds", 30)
	v.SetDefault("schedule.max_retries", 3)
	v.SetDefault("schedule.retry_delay_seconds", 5)

	v.SetDefault("remote.type", "httpdrop")
	v.SetDefault("remote.folder", "drops")
	v.SetDefault("remote.timeout_seconds", 60)
	v.SetDefault("remote.use_ssl", true)
	v.SetDefault("remote.region", "us-east-1")

	v.SetDefault("ingestion.staging_dir", "./data/staging")
	v.SetDefault("ingestion.archive_dir", "./data/archive")
	v.SetDefault("ingestion.lookback_days", 30)
}
