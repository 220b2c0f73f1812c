package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	BackendNative = "native"
	BackendONNX   = "onnx"
)

type Config struct {
	Port string

	ModelPath       string
	ModelBackend    string // native or onnx
	ONNXLibraryPath string
	Runs            int
	NormalizeInput  bool

	LogLevel string
	LogFile  string

	RateLimit   string // ulule/limiter format, e.g. "100-S"
	MaxUploadMB int64
	GinMode     string
}

// Load reads .env when present, then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("[Config] Could not load .env file: %v", err)
	}

	return &Config{
		Port: getEnv("PORT", "8080"),

		ModelPath:       getEnv("MODEL_PATH", "models/bin_fill_model.bin"),
		ModelBackend:    strings.ToLower(getEnv("MODEL_BACKEND", BackendNative)),
		ONNXLibraryPath: getEnv("ONNX_LIBRARY_PATH", ""),
		Runs:            getEnvInt("MC_RUNS", 10),
		NormalizeInput:  getEnvBool("NORMALIZE_INPUT", true),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		RateLimit:   getEnv("RATE_LIMIT", "100-S"),
		MaxUploadMB: int64(getEnvInt("MAX_UPLOAD_MB", 10)),
		GinMode:     getEnv("GIN_MODE", "release"),
	}
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Debugf("[Config] %s not set, using default %q", key, fallback)
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := getEnv(key, strconv.Itoa(fallback))
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Warnf("[Config] %s=%q is not an integer, using %d", key, raw, fallback)
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	raw := getEnv(key, strconv.FormatBool(fallback))
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Warnf("[Config] %s=%q is not a boolean, using %t", key, raw, fallback)
		return fallback
	}
	return v
}
