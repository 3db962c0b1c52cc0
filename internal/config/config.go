// Package config centralizes how StoneLedger reads environment variables and
// exposes them as strongly typed Go values.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents runtime configuration for the API server and the worker.
// The mail, archive, and database integrations are optional: leaving their
// settings empty disables the integration without failing startup.
type Config struct {
	Address     string
	UploadsDir  string
	MaxFileSize int64
	Passwords   []string
	ViewTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Workers       int

	DatabaseURL string

	MailjetAPIKey    string
	MailjetSecretKey string
	MailjetBaseURL   string
	MailFrom         string
	MailFromName     string
	NotifyRecipients []string

	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string
	S3Region      string
	S3UseSSL      bool
	ArchiveBucket string
}

const (
	defaultAddress      = ":8080"
	defaultUploadsDir   = "uploads"
	defaultMaxFileSize  = 25 << 20 // 25 MiB
	defaultViewTimeout  = 30 * time.Second
	defaultRedisAddr    = "localhost:6379"
	defaultWorkerCount  = 2
	defaultMailjetURL   = "https://api.mailjet.com"
	defaultMailFromName = "Headstone World"
)

// Load reads configuration from environment variables falling back to
// defaults. Only the password list is mandatory: without it the login
// endpoint would accept nobody and the service is useless.
func Load() (*Config, error) {
	cfg := &Config{
		Address:     readEnv("STONELEDGER_ADDRESS", defaultAddress),
		UploadsDir:  readEnv("STONELEDGER_UPLOADS_DIR", defaultUploadsDir),
		MaxFileSize: parseInt64("STONELEDGER_MAX_FILE_BYTES", defaultMaxFileSize),
		Passwords:   parseList("STONELEDGER_PASSWORDS", ""),
		ViewTimeout: parseDuration("STONELEDGER_VIEW_TIMEOUT", defaultViewTimeout),

		RedisAddr:     readEnv("STONELEDGER_REDIS_ADDR", defaultRedisAddr),
		RedisPassword: readEnv("STONELEDGER_REDIS_PASSWORD", ""),
		RedisDB:       parseInt("STONELEDGER_REDIS_DB", 0),
		Workers:       parseInt("STONELEDGER_WORKERS", defaultWorkerCount),

		DatabaseURL: readEnv("STONELEDGER_DATABASE_URL", ""),

		MailjetAPIKey:    readEnv("MJ_APIKEY_PUBLIC", ""),
		MailjetSecretKey: readEnv("MJ_APIKEY_PRIVATE", ""),
		MailjetBaseURL:   readEnv("STONELEDGER_MAILJET_URL", defaultMailjetURL),
		MailFrom:         readEnv("STONELEDGER_MAIL_FROM", ""),
		MailFromName:     readEnv("STONELEDGER_MAIL_FROM_NAME", defaultMailFromName),
		NotifyRecipients: parseList("STONELEDGER_NOTIFY_RECIPIENTS", ""),

		S3Endpoint:    readEnv("STONELEDGER_S3_ENDPOINT", ""),
		S3AccessKey:   readEnv("STONELEDGER_S3_ACCESS_KEY", ""),
		S3SecretKey:   readEnv("STONELEDGER_S3_SECRET_KEY", ""),
		S3Region:      readEnv("STONELEDGER_S3_REGION", "us-east-1"),
		S3UseSSL:      parseBool("STONELEDGER_S3_USE_SSL", false),
		ArchiveBucket: readEnv("STONELEDGER_ARCHIVE_BUCKET", ""),
	}
	if len(cfg.Passwords) == 0 {
		return nil, errors.New("STONELEDGER_PASSWORDS is required")
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.ViewTimeout <= 0 {
		cfg.ViewTimeout = defaultViewTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkerCount
	}
	return cfg, nil
}

// MailEnabled reports whether outbound email is configured.
func (c *Config) MailEnabled() bool {
	return c.MailjetAPIKey != "" && c.MailjetSecretKey != "" && c.MailFrom != ""
}

// ArchiveEnabled reports whether the S3 mirror is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.S3Endpoint != "" && c.ArchiveBucket != ""
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseList(key, def string) []string {
	val := readEnv(key, def)
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
