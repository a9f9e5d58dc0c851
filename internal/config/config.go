package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ClassifierGroq   = "groq"
	ClassifierOpenAI = "openai"
)

// Config holds what the binary reads from the environment. API keys are
// picked up by the adapters themselves.
type Config struct {
	Classifier      string
	ClassifierModel string

	Voice    string
	Language string

	StorePath   string
	ControlAddr string

	Debounce          time.Duration
	RelistenDelay     time.Duration
	Cooldown          time.Duration
	RelistenOnUnknown bool

	ClassifyAttempts int
	ClassifyBackoff  time.Duration
}

// Load reads envFile when it exists and then the process environment.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	cfg := Config{
		Classifier:        strings.ToLower(getEnv("EMA_CLASSIFIER", ClassifierGroq)),
		ClassifierModel:   getEnv("EMA_CLASSIFIER_MODEL", ""),
		Voice:             getEnv("EMA_VOICE", ""),
		Language:          getEnv("EMA_LANGUAGE", "en-US"),
		StorePath:         getEnv("EMA_STORE_PATH", "ema-assistant.db"),
		ControlAddr:       getEnv("EMA_CONTROL_ADDR", "127.0.0.1:8765"),
		Debounce:          getEnvDuration("EMA_DEBOUNCE", 1500*time.Millisecond),
		RelistenDelay:     getEnvDuration("EMA_RELISTEN_DELAY", 700*time.Millisecond),
		Cooldown:          getEnvDuration("EMA_COOLDOWN", 400*time.Millisecond),
		RelistenOnUnknown: getEnvBool("EMA_RELISTEN_ON_UNKNOWN", false),
		ClassifyAttempts:  getEnvInt("EMA_CLASSIFY_ATTEMPTS", 3),
		ClassifyBackoff:   getEnvDuration("EMA_CLASSIFY_BACKOFF", time.Second),
	}

	switch cfg.Classifier {
	case ClassifierGroq, ClassifierOpenAI:
	default:
		return Config{}, fmt.Errorf("unknown classifier %q", cfg.Classifier)
	}
	if cfg.ClassifyAttempts < 1 {
		return Config{}, fmt.Errorf("EMA_CLASSIFY_ATTEMPTS must be at least 1")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("750ms") or plain milliseconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d >= 0 {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
