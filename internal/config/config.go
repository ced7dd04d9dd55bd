package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string

	// Document storage
	UploadDir           string
	PageImageDir        string
	MaxFileSize         int64
	SyncProcessingLimit int64

	// MongoDB (uploaded-document bookkeeping)
	MongoURI string
	DBName   string

	// Redis (queue, session store, chunk cache)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Groq chat completions
	GroqAPIKey string
	GroqModel  string
	GroqTier   string

	// Gemini (embeddings + vision)
	GeminiAPIKey    string
	EmbeddingsModel string
	VisionModel     string

	// Pinecone vector index
	PineconeAPIKey    string
	PineconeIndexHost string
	PineconeNamespace string

	// Serper web search (optional)
	SerperAPIKey     string
	WebEnrichEnabled bool

	// Chunking
	MaxChunkSize int
	ChunkOverlap int
	MinChunkSize int

	// Retrieval and fusion
	TopK           int
	RelevanceFloor float64
	ContextBudget  int
	MaxVisionPages int

	// Streaming
	StreamWordDelayMs int

	// Session lifecycle
	SessionTTLMinutes  int
	JanitorIntervalMin int
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8000"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),

		UploadDir:           getEnv("UPLOAD_DIR", "./uploads"),
		PageImageDir:        getEnv("PAGE_IMAGE_DIR", "./uploads/pages"),
		MaxFileSize:         getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB
		SyncProcessingLimit: getEnvInt64("SYNC_PROCESSING_LIMIT", 10485760),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/veritas"),
		DBName:   getEnv("DB_NAME", "veritas"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		GroqAPIKey: getEnv("GROQ_API_KEY", ""),
		GroqModel:  getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
		GroqTier:   getEnv("GROQ_TIER", "free"),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		EmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		VisionModel:     getEnv("GOOGLE_VISION_MODEL", "gemini-2.5-flash"),

		PineconeAPIKey:    getEnv("PINECONE_API_KEY", ""),
		PineconeIndexHost: getEnv("PINECONE_INDEX_HOST", ""),
		PineconeNamespace: getEnv("PINECONE_NAMESPACE", "veritas"),

		SerperAPIKey:     getEnv("SERPER_API_KEY", ""),
		WebEnrichEnabled: getEnvBool("WEB_ENRICH_ENABLED", false),

		MaxChunkSize: getEnvInt("MAX_CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),
		MinChunkSize: getEnvInt("MIN_CHUNK_SIZE", 100),

		TopK:           getEnvInt("RETRIEVAL_TOP_K", 6),
		RelevanceFloor: getEnvFloat64("RELEVANCE_FLOOR", 0.2),
		ContextBudget:  getEnvInt("CONTEXT_BUDGET", 8000),
		MaxVisionPages: getEnvInt("MAX_VISION_PAGES", 3),

		StreamWordDelayMs: getEnvInt("STREAM_WORD_DELAY_MS", 20),

		SessionTTLMinutes:  getEnvInt("SESSION_TTL_MINUTES", 120),
		JanitorIntervalMin: getEnvInt("JANITOR_INTERVAL_MINUTES", 15),
	}

	// Validate required fields
	if cfg.GroqAPIKey == "" {
		return nil, fmt.Errorf("GROQ_API_KEY is required - set it in .env file")
	}

	if cfg.PineconeAPIKey == "" {
		return nil, fmt.Errorf("PINECONE_API_KEY is required - set it in .env file")
	}

	if cfg.PineconeIndexHost == "" {
		return nil, fmt.Errorf("PINECONE_INDEX_HOST is required - set it in .env file")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	// SERPER_API_KEY is deliberately not validated: web search is optional and
	// the pipeline proceeds without it.

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
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
