package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port           int
	NatsURL        string
	NatsToken      string
	DatabaseURL    string
	LogLevel       string
	EngineVariant  string
	ThresholdsPath string
	APIToken       string
}

func Load() Config {
	return Config{
		Port:           envInt("KARPOV_PORT", 8840),
		NatsURL:        envStr("NATS_URL", "nats://localhost:4222"),
		NatsToken:      envStr("NATS_TOKEN", ""),
		DatabaseURL:    envStr("DATABASE_URL", ""),
		LogLevel:       envStr("LOG_LEVEL", "info"),
		EngineVariant:  envStr("KARPOV_VARIANT", "legacy"),
		ThresholdsPath: envStr("KARPOV_THRESHOLDS", ""),
		APIToken:       envStr("KARPOV_API_TOKEN", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
