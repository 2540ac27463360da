// Package config handles runtime configuration: defaults overlaid with
// environment variables, read once at process start. Components receive the
// resulting struct through their constructors and never consult the
// environment themselves.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds runtime settings for the Billparty server.
type Config struct {
	// ListenAddr is the bind address for the HTTP server.
	ListenAddr string
	// DBPath is the SQLite database file path.
	DBPath string
	// StaticDir is the directory the web dashboard is served from.
	StaticDir string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogJSON switches from the colored dev handler to JSON output.
	LogJSON bool

	// Issuer is the identity provider's issuer URL. Signing keys are
	// fetched from {Issuer}/.well-known/jwks.json.
	Issuer string
	// ClientID is the expected audience for tokens that carry one.
	ClientID string
	// JWKSCacheTTL bounds how long a fetched signing-key set is reused
	// before it must be refreshed.
	JWKSCacheTTL time.Duration

	// Object storage settings for receipt uploads (S3-compatible).
	S3Bucket        string
	S3Region        string
	S3BaseEndpoint  string
	S3AccessKey     string
	S3SecretKey     string
	S3PublicBaseURL string
	// ReceiptKeyPrefix is prepended to every stored receipt object key.
	ReceiptKeyPrefix string

	// OCR vendor settings for receipt analysis.
	OCREndpoint string
	OCRAPIKey   string
}

// LoadDefaults populates Config with development defaults.
// The auth and storage values are placeholders and must be overridden
// outside local development.
func (c *Config) LoadDefaults() {
	c.ListenAddr = ":8080"
	c.DBPath = "./data/billparty.db"
	c.StaticDir = "../frontend/static"
	c.LogLevel = "info"
	c.LogJSON = false
	c.Issuer = "http://localhost:9090"
	c.ClientID = ""
	c.JWKSCacheTTL = 5 * time.Minute
	c.S3Bucket = "receipts"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000"
	c.S3AccessKey = "admin"
	c.S3SecretKey = "secretpassword"
	c.S3PublicBaseURL = ""
	c.ReceiptKeyPrefix = "receipts"
	c.OCREndpoint = ""
	c.OCRAPIKey = ""
}

// Load builds a Config by applying defaults and then overlaying values from
// the environment.
func Load() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	cfg.parseEnv()
	return cfg
}

func (c *Config) parseEnv() {
	setString(&c.ListenAddr, "LISTEN_ADDR")
	setString(&c.DBPath, "DB_PATH")
	setString(&c.StaticDir, "STATIC_PATH")
	setString(&c.LogLevel, "LOG_LEVEL")
	setBool(&c.LogJSON, "LOG_JSON")
	setString(&c.Issuer, "AUTH_ISSUER")
	setString(&c.ClientID, "AUTH_CLIENT_ID")
	setDuration(&c.JWKSCacheTTL, "JWKS_CACHE_TTL")
	setString(&c.S3Bucket, "S3_BUCKET")
	setString(&c.S3Region, "S3_REGION")
	setString(&c.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	setString(&c.S3AccessKey, "S3_ACCESS_KEY")
	setString(&c.S3SecretKey, "S3_SECRET_KEY")
	setString(&c.S3PublicBaseURL, "S3_PUBLIC_BASE_URL")
	setString(&c.ReceiptKeyPrefix, "RECEIPT_KEY_PREFIX")
	setString(&c.OCREndpoint, "OCR_ENDPOINT")
	setString(&c.OCRAPIKey, "OCR_API_KEY")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
