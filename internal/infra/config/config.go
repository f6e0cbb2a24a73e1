package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddress string

	DatabaseURL string

	JWTSecret string
	Issuer    string
	Audience  string
	TokenTTL  time.Duration

	ResetTokenTTL time.Duration
	ResetCooldown time.Duration

	PasswordPepper  string
	HashConcurrency int

	RedisAddress  string
	RedisPassword string
	RedisDB       int

	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	SMTPFrom         string
	EmailSendTimeout time.Duration

	ClientURL string

	AllowedOrigins   []string
	AllowCredentials bool

	RateLimitRPS   float64
	RateLimitBurst int

	LogLevel string
}

var required = []string{"DATABASE_URL", "JWT_SECRET"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDRESS", ":8080")
	v.SetDefault("TOKEN_TTL", "720h")
	v.SetDefault("RESET_TOKEN_TTL", "1h")
	v.SetDefault("RESET_COOLDOWN", "60s")
	v.SetDefault("HASH_CONCURRENCY", 0)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("EMAIL_SEND_TIMEOUT", "10s")
	v.SetDefault("CLIENT_URL", "http://localhost:3000")
	v.SetDefault("ALLOW_CREDENTIALS", false)
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("LOG_LEVEL", "info")
}

// Load reads an optional config.json from the working directory and lets
// environment variables override it.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	setDefaults(v)

	// AutomaticEnv only resolves keys viper already knows about.
	for _, k := range []string{
		"DATABASE_URL", "JWT_SECRET", "JWT_ISSUER", "JWT_AUDIENCE", "PASSWORD_PEPPER",
		"REDIS_ADDRESS", "REDIS_PASSWORD", "SMTP_HOST", "SMTP_USERNAME",
		"SMTP_PASSWORD", "SMTP_FROM", "ALLOWED_ORIGINS",
	} {
		if err := v.BindEnv(k); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	for _, k := range required {
		if strings.TrimSpace(v.GetString(k)) == "" {
			return nil, fmt.Errorf("%s is required", k)
		}
	}

	cfg := &Config{
		HTTPAddress:      v.GetString("HTTP_ADDRESS"),
		DatabaseURL:      v.GetString("DATABASE_URL"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		Issuer:           v.GetString("JWT_ISSUER"),
		Audience:         v.GetString("JWT_AUDIENCE"),
		TokenTTL:         v.GetDuration("TOKEN_TTL"),
		ResetTokenTTL:    v.GetDuration("RESET_TOKEN_TTL"),
		ResetCooldown:    v.GetDuration("RESET_COOLDOWN"),
		PasswordPepper:   v.GetString("PASSWORD_PEPPER"),
		HashConcurrency:  v.GetInt("HASH_CONCURRENCY"),
		RedisAddress:     v.GetString("REDIS_ADDRESS"),
		RedisPassword:    v.GetString("REDIS_PASSWORD"),
		RedisDB:          v.GetInt("REDIS_DB"),
		SMTPHost:         v.GetString("SMTP_HOST"),
		SMTPPort:         v.GetInt("SMTP_PORT"),
		SMTPUsername:     v.GetString("SMTP_USERNAME"),
		SMTPPassword:     v.GetString("SMTP_PASSWORD"),
		SMTPFrom:         v.GetString("SMTP_FROM"),
		EmailSendTimeout: v.GetDuration("EMAIL_SEND_TIMEOUT"),
		ClientURL:        strings.TrimRight(v.GetString("CLIENT_URL"), "/"),
		AllowedOrigins:   splitList(v.GetString("ALLOWED_ORIGINS")),
		AllowCredentials: v.GetBool("ALLOW_CREDENTIALS"),
		RateLimitRPS:     v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst:   v.GetInt("RATE_LIMIT_BURST"),
		LogLevel:         v.GetString("LOG_LEVEL"),
	}

	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET must be at least 32 bytes")
	}
	if cfg.TokenTTL <= 0 || cfg.ResetTokenTTL <= 0 {
		return nil, errors.New("TOKEN_TTL and RESET_TOKEN_TTL must be positive")
	}
	if cfg.SMTPFrom == "" {
		cfg.SMTPFrom = cfg.SMTPUsername
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
