package config

import (
	"os"
	"strconv"
	"strings"
)

// Config centralizes runtime settings for the API and dispatch workers.
type Config struct {
	Port string

	AuthToken string

	DatabaseURL string

	EvolutionURL       string
	EvolutionInstance  string
	EvolutionToken     string
	EvolutionTimeoutMS int

	ContactsFile string
	UploadDir    string

	DispatchConcurrency int
	WorkerPoolSize      int
	SendPacingMinMS     int
	SendPacingMaxMS     int
	HistoryBatchSize    int
	TaskTTLHours        int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisStream   string
	RedisDLQ      string
	RedisGroup    string
	RedisConsumer string

	RateLimitRPS   float64
	RateLimitBurst int

	CORSAllowedOrigins []string
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		AuthToken: getEnv("API_AUTH_TOKEN", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		EvolutionURL:       strings.TrimRight(getEnv("EVOLUTION_URL", ""), "/"),
		EvolutionInstance:  getEnv("EVOLUTION_INSTANCE", ""),
		EvolutionToken:     getEnv("EVOLUTION_TOKEN", ""),
		EvolutionTimeoutMS: getEnvInt("EVOLUTION_TIMEOUT_MS", 30000),

		ContactsFile: getEnv("CONTACTS_FILE", "contatos_equipes.json"),
		UploadDir:    getEnv("UPLOAD_DIR", "uploads"),

		DispatchConcurrency: getEnvInt("DISPATCH_CONCURRENCY", 5),
		WorkerPoolSize:      getEnvInt("WORKER_POOL_SIZE", 4),
		SendPacingMinMS:     getEnvInt("SEND_PACING_MIN_MS", 300),
		SendPacingMaxMS:     getEnvInt("SEND_PACING_MAX_MS", 900),
		HistoryBatchSize:    getEnvInt("HISTORY_BATCH_SIZE", 100),
		TaskTTLHours:        getEnvInt("TASK_TTL_HOURS", 24),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisStream:   getEnv("REDIS_STREAM", "ponto_envios"),
		RedisDLQ:      getEnv("REDIS_DLQ_STREAM", "ponto_envios_dlq"),
		RedisGroup:    getEnv("REDIS_GROUP", "ponto_workers"),
		RedisConsumer: getEnv("REDIS_CONSUMER", "api-1"),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", nil),
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
