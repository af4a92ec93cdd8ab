package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every runtime setting for the server. Loaded once at
// startup; the orchestrator core never reads the environment directly.
type Config struct {
	Port    string
	GinMode string

	// LLM gateway (OpenAI-compatible chat completions endpoint).
	GatewayBaseURL string
	GatewayAPIKey  string

	// Default model set and the models used for synthesis and planning.
	SynthesisModel string
	PlannerModel   string

	// Optional YAML file overriding the built-in model registry.
	ModelRegistryPath string

	// Web augmentation (Tavily).
	TavilyAPIKey     string
	SearchMaxResults int

	// Per-invocation deadline for a single model stream. A stream that
	// exceeds this resolves to a synthetic failure entry instead of
	// stalling the whole run.
	ModelTimeout  time.Duration
	SearchTimeout time.Duration

	// Persistence (optional; saved-research routes are disabled when empty).
	DatabaseURL string

	// Database connection pool.
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxIdleTime int // in minutes
	DBConnMaxLifetime int // in minutes

	// Auth.
	JWTJWKSURL string

	// Server.
	ServerShutdownTimeoutSeconds int

	// CORS.
	CORSAllowedOrigins string

	// Logging.
	LogLevel  string
	LogFormat string
}

var AppConfig *Config

func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	AppConfig = &Config{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),

		// Gateway
		GatewayBaseURL: getEnvOrDefault("AI_GATEWAY_BASE_URL", "https://ai-gateway.vercel.sh/v1"),
		GatewayAPIKey:  getEnvOrDefault("AI_GATEWAY_API_KEY", ""),

		// Models
		SynthesisModel:    getEnvOrDefault("SYNTHESIS_MODEL", "anthropic/claude-sonnet-4.5"),
		PlannerModel:      getEnvOrDefault("PLANNER_MODEL", "anthropic/claude-sonnet-4.5"),
		ModelRegistryPath: getEnvOrDefault("MODEL_REGISTRY_PATH", ""),

		// Tavily
		TavilyAPIKey:     getEnvOrDefault("TAVILY_API_KEY", ""),
		SearchMaxResults: getEnvAsInt("SEARCH_MAX_RESULTS", 5),

		// Timeouts
		ModelTimeout:  getEnvAsDuration("MODEL_TIMEOUT", 5*time.Minute),
		SearchTimeout: getEnvAsDuration("SEARCH_TIMEOUT", 30*time.Second),

		// Database
		DatabaseURL:       getEnvOrDefault("DATABASE_URL", ""),
		DBMaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxIdleTime: getEnvAsInt("DB_CONN_MAX_IDLE_TIME", 5),
		DBConnMaxLifetime: getEnvAsInt("DB_CONN_MAX_LIFETIME", 30),

		// Auth
		JWTJWKSURL: getEnvOrDefault("JWT_JWKS_URL", ""),

		// Server
		ServerShutdownTimeoutSeconds: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 15),

		// CORS
		CORSAllowedOrigins: getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"),

		// Logging
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", ""),
	}

	if AppConfig.GatewayAPIKey == "" {
		log.Println("Warning: AI_GATEWAY_API_KEY is not set; model calls will fail")
	}
	if AppConfig.TavilyAPIKey == "" {
		log.Println("Warning: TAVILY_API_KEY is not set; web augmentation disabled")
	}
	if AppConfig.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL is not set; saved research routes disabled")
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as time.Duration, using default %v: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as int, using default %d: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}
