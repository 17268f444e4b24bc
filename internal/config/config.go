package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Queue    QueueConfig    `yaml:"queue"`
	AWS      AWSConfig      `yaml:"aws"`
	JWT      JWTConfig      `yaml:"jwt"`
	Admin    AdminConfig    `yaml:"admin"`
	SMS      SMSConfig      `yaml:"sms"`
	OTP      OTPConfig      `yaml:"otp"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
	// RateLimitPerMin bounds public OTP and SMS requests per client IP.
	RateLimitPerMin int `yaml:"rate_limit_per_min"`
}

// DatabaseConfig holds document store configuration.
// Driver is "postgres" (default) or "memory".
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig holds redis configuration
type RedisConfig struct {
	Addr string `yaml:"addr"`
}

// QueueConfig selects the SMS job queue backend: "redis" or "memory".
type QueueConfig struct {
	Backend string `yaml:"backend"`
	Key     string `yaml:"key"`
	Size    int    `yaml:"size"`
}

// AWSConfig holds S3 settings for profile photo uploads
type AWSConfig struct {
	Region    string `yaml:"region"`
	S3Bucket  string `yaml:"s3_bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// AdminConfig holds the administrator credentials.
// PasswordHash is a bcrypt hash.
type AdminConfig struct {
	Email        string `yaml:"email"`
	PasswordHash string `yaml:"password_hash"`
}

// SMSConfig holds SMS provider configuration
type SMSConfig struct {
	Provider           string `yaml:"provider"`
	BaseURL            string `yaml:"base_url"`
	APIKey             string `yaml:"api_key"`
	OTPSender          string `yaml:"otp_sender"`
	AnnouncementSender string `yaml:"announcement_sender"`
}

// OTPConfig holds OTP lifecycle configuration
type OTPConfig struct {
	SingleUse     bool   `yaml:"single_use"`
	SweepSchedule string `yaml:"sweep_schedule"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file. A .env file next to the
// process is loaded first when present; environment variables override
// secrets from the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.JWT.Secret, "JWT_SECRET")
	setString(&c.Admin.Email, "ADMIN_EMAIL")
	setString(&c.Admin.PasswordHash, "ADMIN_PASSWORD_HASH")
	setString(&c.AWS.AccessKey, "AWS_ACCESS_KEY_ID")
	setString(&c.AWS.SecretKey, "AWS_SECRET_ACCESS_KEY")
	setString(&c.Log.Level, "LOG_LEVEL")
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimitPerMin <= 0 {
		c.Server.RateLimitPerMin = 30
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Queue.Backend == "" {
		c.Queue.Backend = "memory"
	}
	if c.Queue.Key == "" {
		c.Queue.Key = "blinddate:sms"
	}
	if c.Queue.Size <= 0 {
		c.Queue.Size = 256
	}
	if c.JWT.TTL <= 0 {
		c.JWT.TTL = 24 * time.Hour
	}
	if c.SMS.Provider == "" {
		c.SMS.Provider = "arkesel"
	}
	if c.SMS.BaseURL == "" {
		c.SMS.BaseURL = "https://sms.arkesel.com/sms/api"
	}
	if c.SMS.OTPSender == "" {
		c.SMS.OTPSender = "Acolatse"
	}
	if c.SMS.AnnouncementSender == "" {
		c.SMS.AnnouncementSender = "AcolatseVodziHall"
	}
	if c.OTP.SweepSchedule == "" {
		c.OTP.SweepSchedule = "@every 1m"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// Key returns the SMS provider API key. It is resolved on every call so a
// rotated SMS_API_KEY takes effect without a restart; a missing key is only
// noticed when a send fails.
func (c *SMSConfig) Key() string {
	if v := os.Getenv("SMS_API_KEY"); v != "" {
		return v
	}
	return c.APIKey
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}
