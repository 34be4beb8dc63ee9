package config

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/truck-ledger-api/ledger"
	"github.com/linesmerrill/truck-ledger-api/models"
)

// Config holds the project config values
type Config struct {
	URL          string
	DatabaseName string
	BaseURL      string
	Port         string
	Env          string

	JWTSecret  string
	SessionTTL time.Duration

	// MongoTransactions requires a replica set
	MongoTransactions bool

	ReconcileSchedule string
	ReconcileBatch    int
	// RedisURL is optional; without it the reconciliation lock is process local
	RedisURL string

	RequestTimeout     time.Duration
	RateLimitPerMinute int
}

// New sets up all config related services
func New() *Config {
	env := getEnv("ENV", "production")

	//setup zap logger and replace default logger
	logger, err := setLogger(env)
	if err != nil {
		logger = zap.NewExample()
	}
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		URL:                os.Getenv("DB_URI"),
		DatabaseName:       os.Getenv("DB_NAME"),
		BaseURL:            os.Getenv("BASE_URL"),
		Port:               getEnv("PORT", "8080"),
		Env:                env,
		JWTSecret:          os.Getenv("JWT_SECRET"),
		SessionTTL:         getDuration("SESSION_TTL", 24*time.Hour),
		MongoTransactions:  getBool("MONGO_TRANSACTIONS", false),
		ReconcileSchedule:  getEnv("RECONCILE_SCHEDULE", "*/30 * * * *"),
		ReconcileBatch:     getInt("RECONCILE_BATCH", 200),
		RedisURL:           os.Getenv("REDIS_URL"),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 15*time.Second),
		RateLimitPerMinute: getInt("RATE_LIMIT_PER_MINUTE", 120),
	}
}

func setLogger(env string) (*zap.Logger, error) {
	switch env {
	case "local":
		return zap.NewExample(), nil
	case "development":
		return zap.NewDevelopment()
	default:
		return zap.NewProduction()
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().Errorw(message, "status", httpStatusCode, "error", err)

	resp := models.ErrorMessageResponse{
		Response: models.MessageError{
			Message:        message,
			Reauthenticate: errors.Is(err, ledger.ErrSessionExpired),
		},
	}
	if err != nil {
		resp.Response.Error = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	_ = json.NewEncoder(w).Encode(resp)
}
