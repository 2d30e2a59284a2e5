package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	DatabaseURL   string

	PanelBaseURL       string
	BillingBaseURL     string
	InvoiceAmount      float64
	GatewayTimeout     time.Duration
	ReadRetries        int
	UTCOffsetHours     int
	StateTTL           time.Duration
	UserConfigTTL      time.Duration
	LockTimeout        time.Duration
	KnowledgeBase      string
	JWTSecret          string
	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string

	// Language model providers. LLMProvider "rules" selects the keyword
	// oracle and disables retrieval answers.
	LLMProvider         string
	LLMFallbackProvider string
	OracleTimeout       time.Duration
	OpenAIAPIKey        string
	OpenAIModel         string
	OpenAIFastModel     string
	GeminiAPIKey        string
	GeminiModel         string
	BedrockModelID      string
	EmbeddingModel      string // empty uses the provider's default

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Speech synthesis
	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string
	AudioBucket       string
	AudioDir          string
}

// Load reads configuration from environment variables, after applying a
// .env file from the working directory when one exists. Variables already
// set in the environment win over the file. A missing or malformed .env is
// not an error.
func Load() *Config {
	_ = godotenv.Load()
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		PanelBaseURL:       strings.TrimRight(getEnv("PANEL_BASE_URL", "http://localhost:3001"), "/"),
		BillingBaseURL:     strings.TrimRight(getEnv("BILLING_BASE_URL", "https://sandbox.asaas.com/api/v3"), "/"),
		InvoiceAmount:      getEnvAsFloat("INVOICE_AMOUNT", 300),
		GatewayTimeout:     getEnvAsDuration("GATEWAY_TIMEOUT", 5*time.Second),
		ReadRetries:        getEnvAsInt("GATEWAY_READ_RETRIES", 0),
		UTCOffsetHours:     getEnvAsInt("UTC_OFFSET_HOURS", -3),
		StateTTL:           getEnvAsDuration("STATE_TTL", 24*time.Hour),
		UserConfigTTL:      getEnvAsDuration("USER_CONFIG_TTL", time.Minute),
		LockTimeout:        getEnvAsDuration("LOCK_TIMEOUT", 10*time.Second),
		KnowledgeBase:      getEnv("KNOWLEDGE_BASE_PATH", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		LLMProvider:         strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		LLMFallbackProvider: strings.ToLower(getEnv("LLM_FALLBACK_PROVIDER", "")),
		OracleTimeout:       getEnvAsDuration("ORACLE_TIMEOUT", 8*time.Second),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o"),
		OpenAIFastModel:     getEnv("OPENAI_FAST_MODEL", "gpt-4o-mini"),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		EmbeddingModel:      getEnv("EMBEDDING_MODEL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		ElevenLabsAPIKey:  getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID: getEnv("ELEVENLABS_VOICE_ID", ""),
		AudioBucket:       getEnv("AUDIO_BUCKET", ""),
		AudioDir:          getEnv("AUDIO_DIR", ""),
	}
}

// SpeechEnabled reports whether replies should be synthesized.
func (c *Config) SpeechEnabled() bool {
	return c.ElevenLabsAPIKey != "" && (c.AudioBucket != "" || c.AudioDir != "")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
