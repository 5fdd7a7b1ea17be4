package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Storage      StorageConfig      `mapstructure:"storage"`
	AI           AIConfig           `mapstructure:"ai"`
	Scoring      ScoringConfig      `mapstructure:"scoring"`
	Retry        RetryConfig        `mapstructure:"retry"`
	Batch        BatchConfig        `mapstructure:"batch"`
	Matching     MatchingConfig     `mapstructure:"matching"`
	Notification NotificationConfig `mapstructure:"notification"`
	Lease        LeaseConfig        `mapstructure:"lease"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadMB     int           `mapstructure:"max_upload_mb"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level"`
}

// DSN returns the connection string for the configured driver.
// For postgres an explicit URL wins over the individual fields.
func (c *DatabaseConfig) DSN() string {
	switch c.Driver {
	case "postgres":
		if c.URL != "" {
			return c.URL
		}
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, sslMode)
	default:
		if c.URL != "" {
			return c.URL
		}
		return c.Path
	}
}

type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	// URLTTL bounds presigned resume download links.
	URLTTL time.Duration `mapstructure:"url_ttl"`
}

type ScoringConfig struct {
	DefaultProfile string `mapstructure:"default_profile"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
}

type BatchConfig struct {
	Retry          RetryConfig   `mapstructure:"retry"`
	InterFileDelay time.Duration `mapstructure:"inter_file_delay"`
	GroupSize      int           `mapstructure:"group_size"`
}

type MatchingConfig struct {
	Retry          RetryConfig   `mapstructure:"retry"`
	InterCallDelay time.Duration `mapstructure:"inter_call_delay"`
}

type NotificationConfig struct {
	Enabled                bool       `mapstructure:"enabled"`
	ScoreThreshold         int        `mapstructure:"score_threshold"`
	RecruiterNotifications bool       `mapstructure:"recruiter_notifications"`
	MaxRetries             int        `mapstructure:"max_retries"`
	Mail                   MailConfig `mapstructure:"mail"`
	Push                   PushConfig `mapstructure:"push"`
}

type MailConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	From     string        `mapstructure:"from"`
	FromName string        `mapstructure:"from_name"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type PushConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LeaseConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
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

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("ai.api_key", "AI_API_KEY")
	v.BindEnv("ai.base_url", "AI_BASE_URL")
	v.BindEnv("ai.provider", "AI_PROVIDER")
	v.BindEnv("ai.gemini.api_key", "GEMINI_API_KEY")
	v.BindEnv("notification.mail.api_key", "MAIL_API_KEY")
	v.BindEnv("notification.push.api_key", "PUSH_API_KEY")
	v.BindEnv("notification.score_threshold", "NOTIFICATION_SCORE_THRESHOLD")
	v.BindEnv("lease.redis.addr", "REDIS_ADDR")
	v.BindEnv("lease.redis.password", "REDIS_PASSWORD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.AI.ResolveEnvVars()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.max_upload_mb", 20)
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/hireflow.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.bucket", "resumes")
	v.SetDefault("storage.prefix", "resumes")
	v.SetDefault("storage.url_ttl", "15m")

	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.extraction_model", "gpt-4o-mini")
	v.SetDefault("ai.timeout", 90*time.Second)
	v.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	v.SetDefault("ai.gemini.api_key_env", "GOOGLE_API_KEY")

	v.SetDefault("scoring.default_profile", "standard")

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", time.Second)

	v.SetDefault("batch.retry.max_attempts", 3)
	v.SetDefault("batch.retry.base_delay", 2*time.Second)
	v.SetDefault("batch.inter_file_delay", 1500*time.Millisecond)
	v.SetDefault("batch.group_size", 5)

	v.SetDefault("matching.retry.max_attempts", 3)
	v.SetDefault("matching.retry.base_delay", 2*time.Second)
	v.SetDefault("matching.inter_call_delay", 500*time.Millisecond)

	v.SetDefault("notification.enabled", true)
	v.SetDefault("notification.score_threshold", 80)
	v.SetDefault("notification.recruiter_notifications", true)
	v.SetDefault("notification.max_retries", 3)
	v.SetDefault("notification.mail.base_url", "https://api.resend.com")
	v.SetDefault("notification.mail.from", "noreply@hireflow.local")
	v.SetDefault("notification.mail.from_name", "HireFlow")
	v.SetDefault("notification.mail.timeout", 15*time.Second)
	v.SetDefault("notification.push.enabled", false)
	v.SetDefault("notification.push.timeout", 10*time.Second)

	v.SetDefault("lease.backend", "database")
	v.SetDefault("lease.ttl", 5*time.Minute)
	v.SetDefault("lease.redis.addr", "localhost:6379")
	v.SetDefault("lease.redis.prefix", "hireflow:lease:")
}

// Validate checks cross-field constraints and normalizes values that have a
// documented valid range.
func (c *Config) Validate() error {
	if err := c.AI.Validate(); err != nil {
		return err
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database: unknown driver %q", c.Database.Driver)
	}

	switch c.Lease.Backend {
	case "database", "redis", "none":
	default:
		return fmt.Errorf("lease: unknown backend %q", c.Lease.Backend)
	}

	c.Notification.ScoreThreshold = ClampThreshold(c.Notification.ScoreThreshold)
	if c.Notification.MaxRetries <= 0 {
		c.Notification.MaxRetries = 3
	}
	if c.Batch.GroupSize <= 0 {
		c.Batch.GroupSize = 5
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage: bucket is required when storage is enabled")
	}
	return nil
}

// ClampThreshold bounds a notification score threshold to 0..100.
func ClampThreshold(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
