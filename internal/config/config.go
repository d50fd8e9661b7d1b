// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Session
	SessionMaxAge int // 秒

	// Feed
	FeedDefaultLimit int // GET /api/posts のデフォルト取得件数

	// Rate Limit（req/min/user）
	RateLimitGeneral    int
	RateLimitPostCreate int

	// Realtime
	RealtimeHeartbeat time.Duration // SSE接続維持用コメントの送信間隔

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string

	// Fallback（静的ファイル+JSONファイル版サーバー）
	PublicDir        string
	FallbackDataPath string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.FeedDefaultLimit = getEnvInt("FEED_DEFAULT_LIMIT", 50)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitPostCreate = getEnvInt("RATE_LIMIT_POST_CREATE", 10)
	cfg.RealtimeHeartbeat = getEnvDuration("REALTIME_HEARTBEAT", 25*time.Second)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.PublicDir = getEnvString("PUBLIC_DIR", "public")
	cfg.FallbackDataPath = getEnvString("FALLBACK_DATA_PATH", "data/posts.json")

	return cfg, nil
}

// LoadFallback はfallbackモード用のConfigを読み込む。
// fallbackモードはデータベースを使用しないためDATABASE_URLを要求しない。
func LoadFallback() *Config {
	return &Config{
		ServerPort:       getEnvString("SERVER_PORT", "3000"),
		PublicDir:        getEnvString("PUBLIC_DIR", "public"),
		FallbackDataPath: getEnvString("FALLBACK_DATA_PATH", "data/posts.json"),
	}
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
