package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Policy    PolicyConfig
	Embedding EmbeddingConfig
	LLM       LLMConfig
	GigaChat  GigaChatConfig
	Renderer  RendererConfig
	Jobs      JobsConfig
	Logger    LoggerConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BodyLimitMB  int
}

type DatabaseConfig struct {
	Driver     string // sqlite or postgres
	SQLitePath string
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SSLMode    string
}

type PolicyConfig struct {
	SourcePath     string
	SnapshotDir    string
	ChunkSize      int
	ChunkOverlap   int
	TopK           int
	QueryPrefix    int
	DecisionPrefix int
	WarmUp         bool
}

type EmbeddingConfig struct {
	Provider    string // ollama or openai
	Model       string
	BaseURL     string
	APIKey      string
	Concurrency int
}

type LLMConfig struct {
	Provider   string // gemini or gigachat
	Model      string
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

type GigaChatConfig struct {
	APIKey             string
	Scope              string
	Model              string
	InsecureSkipVerify bool
}

type RendererConfig struct {
	URL               string
	PublicDownloadURL string
	Timeout           time.Duration
}

type JobsConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
	MaxConcurrent int
}

func Load() (*Config, error) {
	// .env is optional; plain environment variables work too (Docker/K8s)
	for _, envFile := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8000"),
			ReadTimeout:  getSeconds("SERVER_READ_TIMEOUT", 30),
			WriteTimeout: getSeconds("SERVER_WRITE_TIMEOUT", 30),
			BodyLimitMB:  getInt("SERVER_BODY_LIMIT_MB", 50),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "sqlite"),
			SQLitePath: getEnv("DB_SQLITE_PATH", "feedback.db"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnv("DB_PORT", "5432"),
			User:       getEnv("DB_USER", "postgres"),
			Password:   getEnv("DB_PASSWORD", "postgres"),
			DBName:     getEnv("DB_NAME", "recanalysis"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
		},
		Policy: PolicyConfig{
			SourcePath:     getEnv("POLICY_DOC_PATH", "Política Recursal.pdf"),
			SnapshotDir:    getEnv("POLICY_SNAPSHOT_DIR", "vector_store"),
			ChunkSize:      getInt("POLICY_CHUNK_SIZE", 1000),
			ChunkOverlap:   getInt("POLICY_CHUNK_OVERLAP", 100),
			TopK:           getInt("RAG_TOP_K", 3),
			QueryPrefix:    getInt("RAG_QUERY_PREFIX", 2000),
			DecisionPrefix: getInt("RAG_DECISION_PREFIX", 14000),
			WarmUp:         getEnv("POLICY_WARM_UP", "true") == "true",
		},
		Embedding: EmbeddingConfig{
			Provider:    getEnv("EMBEDDING_PROVIDER", "ollama"),
			Model:       getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			BaseURL:     getEnv("EMBEDDING_BASE_URL", ""),
			APIKey:      getEnv("EMBEDDING_API_KEY", ""),
			Concurrency: getInt("EMBEDDING_CONCURRENCY", 4),
		},
		LLM: LLMConfig{
			Provider:   getEnv("LLM_PROVIDER", "gemini"),
			Model:      getEnv("LLM_MODEL", "gemini-2.5-flash"),
			BaseURL:    getEnv("LLM_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			APIKey:     getEnv("GEMINI_API_KEY", ""),
			Timeout:    getSeconds("LLM_TIMEOUT", 120),
			MaxRetries: getInt("LLM_MAX_RETRIES", 2),
			RetryDelay: getSeconds("LLM_RETRY_DELAY", 2),
		},
		GigaChat: GigaChatConfig{
			APIKey:             getEnv("GIGACHAT_API_KEY", ""),
			Scope:              getEnv("GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
			Model:              getEnv("GIGACHAT_MODEL", "GigaChat"),
			InsecureSkipVerify: getEnv("GIGACHAT_INSECURE_SKIP_VERIFY", "false") == "true",
		},
		Renderer: RendererConfig{
			URL:               getEnv("GENERATOR_SERVICE_URL", "http://generator:8001"),
			PublicDownloadURL: getEnv("PUBLIC_DOWNLOAD_URL", "http://127.0.0.1:8001/download"),
			Timeout:           getSeconds("GENERATOR_TIMEOUT", 90),
		},
		Jobs: JobsConfig{
			TTL:           getDuration("JOB_TTL", 24*time.Hour),
			SweepInterval: getDuration("JOB_SWEEP_INTERVAL", 5*time.Minute),
			MaxConcurrent: getInt("JOB_MAX_CONCURRENT", 4),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}

func getSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getInt(key, defaultSeconds)) * time.Second
}

// getDuration accepts Go duration strings such as "30m" or "24h".
func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}
