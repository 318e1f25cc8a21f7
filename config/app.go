package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DefaultSystemPrompt = "You are a helpful AI assistant."

// Provider selects and parameterizes one completion backend.
type Provider struct {
	Name        string // bedrock | openai | vertex
	Model       string
	MaxTokens   int
	Temperature float32
	TopP        float32

	// bedrock
	AWSRegion string

	// openai
	OpenAIKey     string
	OpenAIBaseURL string

	// vertex
	GCPProject  string
	GCPLocation string
}

type Auth struct {
	JWTSecret    string // HS256
	JWTPublicKey string // RS256 PEM, takes precedence when set
	Issuer       string
	Audience     string
}

// App is the server configuration, read once at startup.
type App struct {
	Port         string
	LogLevel     string
	SystemPrompt string

	// CompletionProvider backs POST /completion, ChatProvider backs POST /chat.
	CompletionProvider Provider
	ChatProvider       Provider

	Auth          Auth
	WebhookSecret string

	PostgresURI  string
	AutoMigrate  bool
	RedisAddr    string
	CacheTTL     time.Duration
	MongoURI     string
	MongoDB      string
	JournalTTL   time.Duration
	ShutdownWait time.Duration
}

// Load reads .env (when present) and the process environment.
func Load() (App, error) {
	_ = godotenv.Load()

	cfg := App{
		Port:         envOr("PORT", "8080"),
		LogLevel:     os.Getenv("LOG_LEVEL"),
		SystemPrompt: envOr("SYSTEM_PROMPT", DefaultSystemPrompt),

		CompletionProvider: loadProvider("COMPLETION", "bedrock", "meta.llama3-8b-instruct-v1:0"),
		ChatProvider:       loadProvider("CHAT", "openai", "gpt-4o-mini"),

		Auth: Auth{
			JWTSecret:    os.Getenv("AUTH_JWT_SECRET"),
			JWTPublicKey: os.Getenv("AUTH_JWT_PUBLIC_KEY"),
			Issuer:       os.Getenv("AUTH_JWT_ISSUER"),
			Audience:     os.Getenv("AUTH_JWT_AUDIENCE"),
		},
		WebhookSecret: os.Getenv("IDENTITY_WEBHOOK_SECRET"),

		PostgresURI:  os.Getenv("POSTGRES_URI"),
		AutoMigrate:  envBool("POSTGRES_AUTO_MIGRATE", false),
		RedisAddr:    firstEnv("REDIS_ADDR", "REDIS_URI", "REDIS_URL"),
		CacheTTL:     envDuration("CACHE_TTL", 5*time.Minute),
		MongoURI:     os.Getenv("MONGO_URI"),
		MongoDB:      envOr("MONGO_DB", "auxilium"),
		JournalTTL:   envDuration("JOURNAL_TTL", 7*24*time.Hour),
		ShutdownWait: envDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}

	if cfg.PostgresURI == "" {
		return cfg, errors.New("POSTGRES_URI environment variable is not set")
	}
	if cfg.Auth.JWTSecret == "" && cfg.Auth.JWTPublicKey == "" {
		return cfg, errors.New("AUTH_JWT_SECRET or AUTH_JWT_PUBLIC_KEY must be set")
	}
	if cfg.WebhookSecret == "" {
		return cfg, errors.New("IDENTITY_WEBHOOK_SECRET environment variable is not set")
	}
	return cfg, nil
}

// loadProvider reads <PREFIX>_PROVIDER, <PREFIX>_MODEL and the shared vendor credentials.
func loadProvider(prefix, defName, defModel string) Provider {
	name := strings.ToLower(envOr(prefix+"_PROVIDER", defName))
	model := os.Getenv(prefix + "_MODEL")
	if model == "" && name == defName {
		model = defModel
	}
	return Provider{
		Name:        name,
		Model:       model,
		MaxTokens:   envInt(prefix+"_MAX_TOKENS", 512),
		Temperature: envFloat(prefix+"_TEMPERATURE", 0.5),
		TopP:        envFloat(prefix+"_TOP_P", 0.9),

		AWSRegion: os.Getenv("AWS_REGION"),

		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),

		GCPProject:  os.Getenv("GCP_PROJECT_ID"),
		GCPLocation: envOr("GCP_LOCATION", "us-central1"),
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return fallback
}

func envFloat(key string, fallback float32) float32 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 32); err == nil {
		return float32(f)
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return fallback
}
