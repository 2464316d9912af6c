// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr    string
	DBPath        string
	CrawlInterval time.Duration
	SecretKey     []byte
}

// Load reads configuration from environment variables and returns a validated
// Config. BILIPANEL_SECRET_KEY is required: it is the 64-hex-char (32 byte)
// AES key protecting the stored cookie, and starting without it would leave
// any saved credential unreadable. Optional variables with defaults:
// BILIPANEL_LISTEN_ADDR (127.0.0.1:8080), BILIPANEL_DB_PATH (bilipanel.db),
// BILIPANEL_CRAWL_INTERVAL (10m).
func Load() (*Config, error) {
	secretHex := os.Getenv("BILIPANEL_SECRET_KEY")
	if secretHex == "" {
		return nil, fmt.Errorf("BILIPANEL_SECRET_KEY is required")
	}
	secretKey, err := hex.DecodeString(secretHex)
	if err != nil {
		return nil, fmt.Errorf("BILIPANEL_SECRET_KEY is not valid hex: %w", err)
	}
	if len(secretKey) != 32 {
		return nil, fmt.Errorf("BILIPANEL_SECRET_KEY must be 64 hex chars (32 bytes), got %d bytes", len(secretKey))
	}

	crawlInterval := 10 * time.Minute
	if v, ok := os.LookupEnv("BILIPANEL_CRAWL_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("BILIPANEL_CRAWL_INTERVAL has invalid duration %q: %w", v, err)
		}
		crawlInterval = parsed
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("BILIPANEL_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "bilipanel.db"
	if v, ok := os.LookupEnv("BILIPANEL_DB_PATH"); ok {
		dbPath = v
	}

	return &Config{
		ListenAddr:    listenAddr,
		DBPath:        dbPath,
		CrawlInterval: crawlInterval,
		SecretKey:     secretKey,
	}, nil
}
