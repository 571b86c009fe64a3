package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvProduction = "production"

type Config struct {
	DatabaseURL string
	HTTPAddress string
	Environment string
	LogLevel    string

	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	Issuer             string
	Audience           string
	PasswordPepper     string

	RedisAddress  string
	RedisPassword string
	RedisDB       int

	CookieDomain     string
	AllowedOrigins   []string
	AllowCredentials bool

	RepoTimeout        time.Duration
	LoginMaxAttempts   int
	LoginLockoutWindow time.Duration
	RateLimitRPS       int
	RateLimitBurst     int

	HTTPSCertFile string
	HTTPSKeyFile  string
}

// IsProduction controls the Secure attribute of credential cookies.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvProduction)
}

// TLSEnabled reports whether both certificate and key are configured.
func (c *Config) TLSEnabled() bool {
	return c.HTTPSCertFile != "" && c.HTTPSKeyFile != ""
}

var required = []string{
	"DATABASE_URL",
	"ACCESS_TOKEN_SECRET",
	"REFRESH_TOKEN_SECRET",
	"REDIS_ADDRESS",
}

// Load reads config.json from the working directory if present and lets the
// environment override every key.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")

	v.SetDefault("HTTP_ADDRESS", ":3000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "24h")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("ALLOW_CREDENTIALS", true)
	v.SetDefault("REPO_TIMEOUT", "3s")
	v.SetDefault("LOGIN_MAX_ATTEMPTS", 5)
	v.SetDefault("LOGIN_LOCKOUT_WINDOW", "15m")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file, %w", err)
		}
	}

	for _, key := range required {
		if v.GetString(key) == "" {
			return nil, fmt.Errorf("%s is not set", key)
		}
	}

	origins, err := parseList(v.GetString("ALLOWED_ORIGINS"))
	if err != nil {
		return nil, fmt.Errorf("ALLOWED_ORIGINS: %w", err)
	}

	cfg := &Config{
		DatabaseURL:        v.GetString("DATABASE_URL"),
		HTTPAddress:        v.GetString("HTTP_ADDRESS"),
		Environment:        v.GetString("APP_ENV"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		AccessTokenSecret:  v.GetString("ACCESS_TOKEN_SECRET"),
		RefreshTokenSecret: v.GetString("REFRESH_TOKEN_SECRET"),
		AccessTokenTTL:     v.GetDuration("ACCESS_TOKEN_TTL"),
		RefreshTokenTTL:    v.GetDuration("REFRESH_TOKEN_TTL"),
		Issuer:             v.GetString("JWT_ISSUER"),
		Audience:           v.GetString("JWT_AUDIENCE"),
		PasswordPepper:     v.GetString("PASSWORD_PEPPER"),
		RedisAddress:       v.GetString("REDIS_ADDRESS"),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		RedisDB:            v.GetInt("REDIS_DB"),
		CookieDomain:       v.GetString("COOKIE_DOMAIN"),
		AllowedOrigins:     origins,
		AllowCredentials:   v.GetBool("ALLOW_CREDENTIALS"),
		RepoTimeout:        v.GetDuration("REPO_TIMEOUT"),
		LoginMaxAttempts:   v.GetInt("LOGIN_MAX_ATTEMPTS"),
		LoginLockoutWindow: v.GetDuration("LOGIN_LOCKOUT_WINDOW"),
		RateLimitRPS:       v.GetInt("RATE_LIMIT_RPS"),
		RateLimitBurst:     v.GetInt("RATE_LIMIT_BURST"),
		HTTPSCertFile:      v.GetString("HTTPS_CERT_FILE"),
		HTTPSKeyFile:       v.GetString("HTTPS_KEY_FILE"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the credential code relies on.
func (c *Config) Validate() error {
	switch {
	case c.AccessTokenSecret == c.RefreshTokenSecret:
		return fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	case c.AccessTokenTTL <= 0:
		return fmt.Errorf("ACCESS_TOKEN_TTL must be positive, got %v", c.AccessTokenTTL)
	case c.RefreshTokenTTL <= c.AccessTokenTTL:
		return fmt.Errorf("REFRESH_TOKEN_TTL (%v) must exceed ACCESS_TOKEN_TTL (%v)", c.RefreshTokenTTL, c.AccessTokenTTL)
	case c.RepoTimeout <= 0:
		return fmt.Errorf("REPO_TIMEOUT must be positive, got %v", c.RepoTimeout)
	case (c.HTTPSCertFile == "") != (c.HTTPSKeyFile == ""):
		return fmt.Errorf("HTTPS_CERT_FILE and HTTPS_KEY_FILE must be set together")
	}
	return nil
}

// parseList accepts either a JSON array or a comma separated list.
func parseList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "[") {
		var out []string
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
