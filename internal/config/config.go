package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ストレージドライバー。
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Storage
	StorageDriver string
	DatabaseURL   string

	// Layout
	PageCapacity  int
	PageFormat    string
	PageMargin    string
	HistoryLimit  int
	SnowflakeNode int64

	// Font fit
	FontInitialSize float64
	FontMinSize     float64
	FontStep        float64
	FontMaxSteps    int

	// PDF
	PDFRendererURL string
	PDFTimeout     time.Duration

	// Import
	SheetsFetchTimeout time.Duration
	SheetsMaxSize      int64
	ImportMaxSize      int64

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int
	RateLimitExport  int

	// Cleanup
	WorkspaceRetentionDays int

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定、または値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.StorageDriver = strings.ToLower(getEnvString("STORAGE_DRIVER", StorageMemory))
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	var missing []string
	if cfg.StorageDriver == StoragePostgres && cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.PageCapacity = getEnvInt("PAGE_CAPACITY", 18)
	cfg.PageFormat = getEnvString("PAGE_FORMAT", "A4")
	cfg.PageMargin = getEnvString("PAGE_MARGIN", "5mm")
	cfg.HistoryLimit = getEnvInt("HISTORY_LIMIT", 100)
	cfg.SnowflakeNode = getEnvInt64("SNOWFLAKE_NODE", 1)
	cfg.FontInitialSize = getEnvFloat("FONT_INITIAL_SIZE", 20)
	cfg.FontMinSize = getEnvFloat("FONT_MIN_SIZE", 10)
	cfg.FontStep = getEnvFloat("FONT_STEP", 0.5)
	cfg.FontMaxSteps = getEnvInt("FONT_MAX_STEPS", 40)
	cfg.PDFRendererURL = getEnvString("PDF_RENDERER_URL", "")
	cfg.PDFTimeout = getEnvDuration("PDF_TIMEOUT", 60*time.Second)
	cfg.SheetsFetchTimeout = getEnvDuration("SHEETS_FETCH_TIMEOUT", 15*time.Second)
	cfg.SheetsMaxSize = getEnvInt64("SHEETS_MAX_SIZE", 5242880)
	cfg.ImportMaxSize = getEnvInt64("IMPORT_MAX_SIZE", 10485760)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitExport = getEnvInt("RATE_LIMIT_EXPORT", 20)
	cfg.WorkspaceRetentionDays = getEnvInt("WORKSPACE_RETENTION_DAYS", 30)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate は値の範囲を検証する。用紙サイズと余白の書式はapp側で解釈する。
func (c *Config) validate() error {
	var invalid []string
	if c.StorageDriver != StorageMemory && c.StorageDriver != StoragePostgres {
		invalid = append(invalid, "STORAGE_DRIVER")
	}
	if c.PageCapacity <= 0 {
		invalid = append(invalid, "PAGE_CAPACITY")
	}
	if c.HistoryLimit <= 0 {
		invalid = append(invalid, "HISTORY_LIMIT")
	}
	if c.SnowflakeNode < 0 || c.SnowflakeNode > 1023 {
		invalid = append(invalid, "SNOWFLAKE_NODE")
	}
	if c.FontMinSize <= 0 || c.FontInitialSize < c.FontMinSize || c.FontStep <= 0 || c.FontMaxSteps <= 0 {
		invalid = append(invalid, "FONT_*")
	}
	if c.RateLimitGeneral <= 0 || c.RateLimitExport <= 0 {
		invalid = append(invalid, "RATE_LIMIT_*")
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid environment variables: %v", invalid)
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
