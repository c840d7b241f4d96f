package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shouni/go-utils/envutil"
)

// デフォルト値の定義なのだ
const (
	DefaultImageModel        = "gemini-2.5-flash-image"
	DefaultAspectRatio       = "1:1"
	DefaultListenAddr        = ":8080"
	DefaultHTTPTimeout       = 30 * time.Second
	DefaultRateInterval      = 2 * time.Second
	DefaultRateBurst         = 2
	DefaultSessionTTL        = 2 * time.Hour
	DefaultReferenceCacheTTL = 30 * time.Minute
	DefaultReferenceMaxBytes = 4 << 20
	DefaultMaxUploadBytes    = 10 << 20
	DefaultShutdownTimeout   = 10 * time.Second
)

// envFiles は起動時に読み込みを試みる .env ファイルです。存在しなければ無視します。
var envFiles = []string{".env", ".env.local"}

// Config はアプリケーション全体の環境設定を保持する構造体なのだ。
type Config struct {
	GeminiAPIKey      string
	ImageModel        string
	AspectRatio       string
	StyleHint         string
	ListenAddr        string
	GinMode           string
	HTTPTimeout       time.Duration
	RateInterval      time.Duration
	RateBurst         int
	SessionTTL        time.Duration
	ReferenceCacheTTL time.Duration
	ReferenceMaxBytes int
	MaxUploadBytes    int64
	ShutdownTimeout   time.Duration
}

// LoadConfig は .env と環境変数から設定を読み込み、構造体を返すのだ！
func LoadConfig() *Config {
	loadEnvFiles(envFiles...)

	return &Config{
		GeminiAPIKey:      envutil.GetEnv("GEMINI_API_KEY", ""),
		ImageModel:        envutil.GetEnv("IMAGE_GEMINI_MODEL", DefaultImageModel),
		AspectRatio:       envutil.GetEnv("IMAGE_ASPECT_RATIO", DefaultAspectRatio),
		StyleHint:         envutil.GetEnv("BRAND_STYLE_HINT", ""),
		ListenAddr:        envutil.GetEnv("LISTEN_ADDR", DefaultListenAddr),
		GinMode:           envutil.GetEnv("GIN_MODE", "release"),
		HTTPTimeout:       durationEnv("HTTP_TIMEOUT", DefaultHTTPTimeout),
		RateInterval:      durationEnv("RATE_INTERVAL", DefaultRateInterval),
		RateBurst:         intEnv("RATE_BURST", DefaultRateBurst),
		SessionTTL:        durationEnv("SESSION_TTL", DefaultSessionTTL),
		ReferenceCacheTTL: durationEnv("REFERENCE_CACHE_TTL", DefaultReferenceCacheTTL),
		ReferenceMaxBytes: intEnv("REFERENCE_MAX_BYTES", DefaultReferenceMaxBytes),
		MaxUploadBytes:    int64(intEnv("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes)),
		ShutdownTimeout:   DefaultShutdownTimeout,
	}
}

// loadEnvFiles は存在する .env を読み込みます。既に設定済みの環境変数は上書きしません。
func loadEnvFiles(paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			slog.Warn(".env ファイルの読み込みに失敗しました", "path", path, "error", err)
		}
	}
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("環境変数の値が不正なためデフォルト値を使います", "key", key, "value", raw, "error", err)
		return fallback
	}
	return d
}

func intEnv(key string, fallback int) int {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("環境変数の値が不正なためデフォルト値を使います", "key", key, "value", raw, "error", err)
		return fallback
	}
	return n
}
