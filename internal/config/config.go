package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	Port                   string
	AllowedOrigin          string
	StoreBackend           string
	DataDir                string
	DatabaseURL            string
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	RedisPrefix            string
	BalanceCacheTTLSeconds int
	AuthSecret             string
	AdminUsername          string
	AdminPassword          string
	ViewerUsername         string
	ViewerPassword         string
	AccessTokenTTLMinutes  int
	LoginRateLimit         string
	LogDevelopment         bool
}

// LoadDotEnv reads the given env files (".env" when none are named) into the
// process environment. Missing files are not an error; variables already set
// are left alone.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	existing := make([]string, 0, len(paths))
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			existing = append(existing, path)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	cacheTTL, err := strconv.Atoi(getEnv("BALANCE_CACHE_TTL_SECONDS", "30"))
	if err != nil || cacheTTL < 1 {
		cacheTTL = 30
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	development, _ := strconv.ParseBool(getEnv("LOG_DEVELOPMENT", "false"))

	cfg := Config{
		Port:                   getEnv("PORT", "8080"),
		AllowedOrigin:          getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		StoreBackend:           strings.ToLower(getEnv("STORE_BACKEND", BackendFile)),
		DataDir:                getEnv("DATA_DIR", "data"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                redisDB,
		RedisPrefix:            getEnv("REDIS_PREFIX", "partsledger"),
		BalanceCacheTTLSeconds: cacheTTL,
		AuthSecret:             strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AdminUsername:          getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:          strings.TrimSpace(os.Getenv("ADMIN_PASSWORD")),
		ViewerUsername:         strings.TrimSpace(os.Getenv("VIEWER_USERNAME")),
		ViewerPassword:         strings.TrimSpace(os.Getenv("VIEWER_PASSWORD")),
		AccessTokenTTLMinutes:  tokenTTL,
		LoginRateLimit:         getEnv("LOGIN_RATE_LIMIT", "5-M"),
		LogDevelopment:         development,
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
