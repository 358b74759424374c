package config

import (
	"fmt"
	"strings"

	"github.com/dukani-next/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Site      SiteConfig      `mapstructure:"site"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Queue     QueueConfig     `mapstructure:"queue"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Security  SecurityConfig  `mapstructure:"security"`
	Order     OrderConfig     `mapstructure:"order"`
	Mpesa     MpesaConfig     `mapstructure:"mpesa"`
	SMS       SMSConfig       `mapstructure:"sms"`
	Email     EmailConfig     `mapstructure:"email"`
	Captcha   CaptchaConfig   `mapstructure:"captcha"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Snowflake SnowflakeConfig `mapstructure:"snowflake"`
	Delivery  DeliveryConfig  `mapstructure:"delivery"`
}

// ServerConfig HTTP server
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// SiteConfig public site identity
type SiteConfig struct {
	Name     string `mapstructure:"name"`
	BaseURL  string `mapstructure:"base_url"`
	Currency string `mapstructure:"currency"`
}

// LogConfig log output
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions converts to logger options
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig connection pool
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig database
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // sqlite / postgres
	DSN    string             `mapstructure:"dsn"`
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// JWTConfig admin token signing
type JWTConfig struct {
	SecretKey   string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// RedisConfig cache / rate limit redis
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig asynq queue
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// OrderConfig order / payment timing
type OrderConfig struct {
	MpesaQueryDelaySeconds   int `mapstructure:"mpesa_query_delay_seconds"`
	ReconcileIntervalSeconds int `mapstructure:"reconcile_interval_seconds"`
	ReconcileAfterMinutes    int `mapstructure:"reconcile_after_minutes"`
}

// MpesaConfig default M-Pesa Express credentials; overridden by the mpesa_config setting
type MpesaConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Environment      string `mapstructure:"environment"`
	PaymentMode      string `mapstructure:"payment_mode"`
	ShortCode        string `mapstructure:"short_code"`
	TillNumber       string `mapstructure:"till_number"`
	ConsumerKey      string `mapstructure:"consumer_key"`
	ConsumerSecret   string `mapstructure:"consumer_secret"`
	PassKey          string `mapstructure:"pass_key"`
	CallbackURL      string `mapstructure:"callback_url"`
	AccountReference string `mapstructure:"account_reference"`
}

// SMSConfig default SMS aggregator credentials
type SMSConfig struct {
	Provider    string `mapstructure:"provider"`
	Username    string `mapstructure:"username"`
	APIKey      string `mapstructure:"api_key"`
	SenderID    string `mapstructure:"sender_id"`
	Environment string `mapstructure:"environment"`
}

// EmailConfig SMTP
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
	UseTLS   bool   `mapstructure:"use_tls"`
	UseSSL   bool   `mapstructure:"use_ssl"`
}

// CaptchaConfig checkout captcha
type CaptchaConfig struct {
	Provider string             `mapstructure:"provider"`
	Checkout bool               `mapstructure:"checkout"`
	SMS      bool               `mapstructure:"sms"`
	Image    CaptchaImageConfig `mapstructure:"image"`
}

// CaptchaImageConfig image captcha
type CaptchaImageConfig struct {
	Length     int `mapstructure:"length"`
	Width      int `mapstructure:"width"`
	Height     int `mapstructure:"height"`
	NoiseCount int `mapstructure:"noise_count"`
	ShowLine   int `mapstructure:"show_line"`
	MaxStore   int `mapstructure:"max_store"`
	ExpireSecs int `mapstructure:"expire_seconds"`
}

// CORSConfig cross origin
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// SecurityConfig rate limits and admin password rules
type SecurityConfig struct {
	LoginRateLimit    RateLimitConfig      `mapstructure:"login_rate_limit"`
	CheckoutRateLimit RateLimitConfig      `mapstructure:"checkout_rate_limit"`
	PaymentRateLimit  RateLimitConfig      `mapstructure:"payment_rate_limit"`
	SMSRateLimit      RateLimitConfig      `mapstructure:"sms_rate_limit"`
	AdminPassword     PasswordPolicyConfig `mapstructure:"admin_password"`
}

// PasswordPolicyConfig rules applied when an admin password is set
type PasswordPolicyConfig struct {
	MinLength      int  `mapstructure:"min_length"`
	RequireUpper   bool `mapstructure:"require_upper"`
	RequireLower   bool `mapstructure:"require_lower"`
	RequireNumber  bool `mapstructure:"require_number"`
	RequireSpecial bool `mapstructure:"require_special"`
}

// RateLimitConfig fixed window limit
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxAttempts   int `mapstructure:"max_attempts"`
}

// MetricsConfig prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// SnowflakeConfig order number generator node
type SnowflakeConfig struct {
	Node int64 `mapstructure:"node"`
}

// DeliveryConfig region dataset; an empty file keeps the embedded one
type DeliveryConfig struct {
	LocationsFile string `mapstructure:"locations_file"`
}

// Load reads .env, config.yml and environment variables
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logger.Debugw("dotenv_not_loaded", "error", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("./etc")

	setDefaults(viper.GetViper())

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // server.port -> SERVER_PORT

	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("config unmarshal failed: %w", err))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("site.name", "Dukani")
	v.SetDefault("site.base_url", "http://localhost:8080")
	v.SetDefault("site.currency", "KES")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "app.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/dukani.db")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expire_hours", 24)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "dk")
	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	v.SetDefault("order.mpesa_query_delay_seconds", 90)
	v.SetDefault("order.reconcile_interval_seconds", 300)
	v.SetDefault("order.reconcile_after_minutes", 10)
	v.SetDefault("mpesa.enabled", false)
	v.SetDefault("mpesa.environment", "sandbox")
	v.SetDefault("mpesa.payment_mode", "paybill")
	v.SetDefault("sms.provider", "")
	v.SetDefault("sms.environment", "production")
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.port", 587)
	v.SetDefault("email.use_tls", true)
	v.SetDefault("captcha.provider", "none")
	v.SetDefault("captcha.checkout", false)
	v.SetDefault("captcha.sms", true)
	v.SetDefault("captcha.image.length", 5)
	v.SetDefault("captcha.image.width", 240)
	v.SetDefault("captcha.image.height", 80)
	v.SetDefault("captcha.image.noise_count", 2)
	v.SetDefault("captcha.image.show_line", 2)
	v.SetDefault("captcha.image.max_store", 10240)
	v.SetDefault("captcha.image.expire_seconds", 300)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
		"X-Request-ID",
	})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 600)
	v.SetDefault("security.login_rate_limit.window_seconds", 300)
	v.SetDefault("security.login_rate_limit.max_attempts", 5)
	v.SetDefault("security.checkout_rate_limit.window_seconds", 60)
	v.SetDefault("security.checkout_rate_limit.max_attempts", 10)
	v.SetDefault("security.payment_rate_limit.window_seconds", 60)
	v.SetDefault("security.payment_rate_limit.max_attempts", 5)
	v.SetDefault("security.sms_rate_limit.window_seconds", 60)
	v.SetDefault("security.sms_rate_limit.max_attempts", 10)
	v.SetDefault("security.admin_password.min_length", 8)
	v.SetDefault("security.admin_password.require_upper", false)
	v.SetDefault("security.admin_password.require_lower", true)
	v.SetDefault("security.admin_password.require_number", true)
	v.SetDefault("security.admin_password.require_special", false)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("snowflake.node", 1)
	v.SetDefault("delivery.locations_file", "")
}
