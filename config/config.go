package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Config holds the project config values
type Config struct {
	URL                   string
	DatabaseName          string
	BaseURL               string
	Port                  string
	Env                   string
	JWTSecret             string
	AccessTokenTTL        time.Duration
	IdentityLookupTimeout time.Duration
	RequestTimeout        time.Duration
	StoreTimeout          time.Duration
	RedisURL              string
	FinalizeSchedule      string
}

// New sets up all config related services
func New() *Config {
	env := os.Getenv("ENV")

	//setup zap logger and replace default logger
	logger, err := setLogger(env)
	if err != nil {
		logger = zap.NewExample()
	}
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		URL:                   os.Getenv("DB_URI"),
		DatabaseName:          getenv("DB_NAME", "trashio"),
		BaseURL:               os.Getenv("BASE_URL"),
		Port:                  getenv("PORT", "8080"),
		Env:                   env,
		JWTSecret:             os.Getenv("JWT_SECRET"),
		AccessTokenTTL:        time.Duration(getenvInt("ACCESS_TOKEN_TTL_MINUTES", 60*24*7)) * time.Minute,
		IdentityLookupTimeout: time.Duration(getenvInt("IDENTITY_LOOKUP_TIMEOUT_MS", 2000)) * time.Millisecond,
		RequestTimeout:        time.Duration(getenvInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		StoreTimeout:          time.Duration(getenvInt("STORE_TIMEOUT_SECONDS", 10)) * time.Second,
		RedisURL:              os.Getenv("REDIS_URL"),
		FinalizeSchedule:      getenv("FINALIZE_SCHEDULE", "@every 5m"),
	}
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().Errorw(message, "error", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	w.Write([]byte(fmt.Sprintf(`{"response": "%s, %v"}`, message, err)))
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
