// Package config loads docchat settings from config/<env>.yaml, an optional
// .env file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"
	_ "time/tzdata" // session id timezones on minimal images

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Session store drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverValkey = "valkey"
	DriverSQLite = "sqlite"
)

// Embedding providers.
const (
	ProviderOpenAI  = "openai"
	ProviderHashing = "hashing"
)

// Config holds the docchat configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Storage   StorageConfig   `yaml:"storage"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Chat      ChatConfig      `yaml:"chat"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings. RequestTimeoutSec cancels the chat
// handlers' context so a slow chain ends in a typed error while the
// connection can still be written; it must stay below WriteTimeoutSec.
type HTTPConfig struct {
	Port              int   `yaml:"port" env:"HTTP_PORT"`
	ReadTimeoutSec    int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec   int   `yaml:"write_timeout_sec"`
	RequestTimeoutSec int   `yaml:"request_timeout_sec"`
	ShutdownSec       int   `yaml:"shutdown_timeout_sec"`
	MaxUploadBytes    int64 `yaml:"max_upload_bytes"`

	// Browser origins allowed to call the API; nil allows any, empty disables CORS.
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// StorageConfig holds on-disk locations.
type StorageConfig struct {
	UploadDir      string `yaml:"upload_dir" env:"UPLOAD_DIR"`
	VectorStoreDir string `yaml:"vectorstore_dir" env:"VECTORSTORE_DIR"`
}

// SessionsConfig selects the transcript backend.
type SessionsConfig struct {
	Driver           string   `yaml:"driver" env:"SESSIONS_DRIVER"` // memory (default), redis, valkey, sqlite
	Addrs            []string `yaml:"addrs" env:"SESSIONS_ADDRS" envSeparator:","`
	Password         string   `yaml:"password" env:"SESSIONS_PASSWORD"`
	KeyPrefix        string   `yaml:"key_prefix"`
	SQLitePath       string   `yaml:"sqlite_path"`
	TTLSec           int      `yaml:"ttl_sec"` // 0 = no expiry
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	// Timezone used for the timestamp part of new session ids.
	Timezone string `yaml:"timezone"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Provider            string `yaml:"provider"` // openai (any compatible server) or hashing
	APIKey              string `yaml:"api_key" env:"EMBEDDING_API_KEY"`
	BaseURL             string `yaml:"base_url" env:"EMBEDDING_BASE_URL"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
	BatchSize           int    `yaml:"batch_size"`
	TimeoutSec          int    `yaml:"timeout_sec"`
	// Cache enables the embedding cache; it lives in the sessions redis/valkey.
	Cache       bool `yaml:"cache"`
	CacheTTLSec int  `yaml:"cache_ttl_sec"`
}

// LLMConfig holds chat completion settings.
type LLMConfig struct {
	APIKey        string  `yaml:"api_key" env:"GROQ_API_KEY"`
	BaseURL       string  `yaml:"base_url" env:"LLM_BASE_URL"`
	Model         string  `yaml:"model" env:"LLM_MODEL"`
	Temperature   float32 `yaml:"temperature"`
	MaxTokens     int     `yaml:"max_tokens"` // 0 = provider default
	TimeoutSec    int     `yaml:"timeout_sec"`
	MaxRetries    *int    `yaml:"max_retries"`
	RetryDelayMs  int     `yaml:"retry_delay_ms"`
	RatePerSecond float64 `yaml:"rate_per_second"` // 0 = unlimited
}

// ChunkingConfig holds splitter settings, in characters.
type ChunkingConfig struct {
	ChunkSize    int  `yaml:"chunk_size"`
	ChunkOverlap *int `yaml:"chunk_overlap"`
}

// RetrievalConfig holds search settings.
type RetrievalConfig struct {
	TopK             int     `yaml:"top_k"`
	MinScore         float64 `yaml:"min_score"`
	IndexCacheTTLSec int     `yaml:"index_cache_ttl_sec"`
}

// ChatConfig holds chain behaviour switches.
type ChatConfig struct {
	RewriteFallback bool `yaml:"rewrite_fallback"`
	MaxHistoryTurns int  `yaml:"max_history_turns"` // 0 = full transcript
	LogPreviewChars int  `yaml:"log_preview_chars"`
}

// Load reads configuration for env (local, dev, prod). A .env file in the
// working directory is loaded first when present.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit YAML path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to apply environment: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

func intPtr(v int) *int { return &v }

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 420
	}
	if c.HTTP.RequestTimeoutSec <= 0 {
		c.HTTP.RequestTimeoutSec = max(c.HTTP.WriteTimeoutSec-20, 1)
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.CORSAllowedOrigins == nil {
		c.HTTP.CORSAllowedOrigins = []string{"*"}
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		c.HTTP.MaxUploadBytes = 32 << 20
	}

	if c.Storage.UploadDir == "" {
		c.Storage.UploadDir = "data"
	}
	if c.Storage.VectorStoreDir == "" {
		c.Storage.VectorStoreDir = "faiss_index"
	}

	if c.Sessions.Driver == "" {
		c.Sessions.Driver = DriverMemory
	}
	if c.Sessions.KeyPrefix == "" {
		c.Sessions.KeyPrefix = "docchat:"
	}
	if c.Sessions.SQLitePath == "" {
		c.Sessions.SQLitePath = filepath.Join("data", "sessions.db")
	}
	if c.Sessions.ReadinessTimeout <= 0 {
		c.Sessions.ReadinessTimeout = 10
	}
	if c.Sessions.Timezone == "" {
		c.Sessions.Timezone = "UTC"
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = ProviderOpenAI
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 64
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}
	if c.Embedding.CacheTTLSec <= 0 {
		c.Embedding.CacheTTLSec = 7 * 24 * 3600
	}

	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://api.groq.com/openai/v1"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "openai/gpt-oss-20b"
	}
	if c.LLM.TimeoutSec <= 0 {
		c.LLM.TimeoutSec = 60
	}
	if c.LLM.MaxRetries == nil {
		c.LLM.MaxRetries = intPtr(2)
	}
	if c.LLM.RetryDelayMs <= 0 {
		c.LLM.RetryDelayMs = 500
	}

	if c.Chunking.ChunkSize <= 0 {
		c.Chunking.ChunkSize = 1000
	}
	if c.Chunking.ChunkOverlap == nil {
		c.Chunking.ChunkOverlap = intPtr(200)
	}

	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 4
	}
	if c.Retrieval.IndexCacheTTLSec <= 0 {
		c.Retrieval.IndexCacheTTLSec = 900
	}

	if c.Chat.LogPreviewChars <= 0 {
		c.Chat.LogPreviewChars = 150
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	if c.HTTP.RequestTimeoutSec >= c.HTTP.WriteTimeoutSec {
		return fmt.Errorf("http.request_timeout_sec (%d) must be below http.write_timeout_sec (%d)",
			c.HTTP.RequestTimeoutSec, c.HTTP.WriteTimeoutSec)
	}

	switch c.Sessions.Driver {
	case DriverMemory, DriverSQLite:
	case DriverRedis, DriverValkey:
		if len(c.Sessions.Addrs) == 0 {
			return fmt.Errorf("sessions.addrs is required for driver %q", c.Sessions.Driver)
		}
	default:
		return fmt.Errorf("sessions.driver must be one of memory, redis, valkey, sqlite, got %q", c.Sessions.Driver)
	}
	if _, err := time.LoadLocation(c.Sessions.Timezone); err != nil {
		return fmt.Errorf("sessions.timezone: %w", err)
	}

	switch c.Embedding.Provider {
	case ProviderOpenAI:
		if c.Embedding.BaseURL == "" {
			return fmt.Errorf("embedding.base_url is required for provider %q", ProviderOpenAI)
		}
	case ProviderHashing:
	default:
		return fmt.Errorf("embedding.provider must be \"openai\" or \"hashing\", got %q", c.Embedding.Provider)
	}
	if c.Embedding.Cache && c.Sessions.Driver != DriverRedis && c.Sessions.Driver != DriverValkey {
		return fmt.Errorf("embedding.cache requires sessions.driver redis or valkey, got %q", c.Sessions.Driver)
	}

	if *c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must be >= 0, got %d", *c.LLM.MaxRetries)
	}
	if budget := c.LLMBudget(); budget >= Seconds(c.HTTP.RequestTimeoutSec) {
		return fmt.Errorf("llm worst case %s (rewrite + answer, all retries) must be below http.request_timeout_sec %ds",
			budget, c.HTTP.RequestTimeoutSec)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %v", c.LLM.Temperature)
	}

	if overlap := *c.Chunking.ChunkOverlap; overlap < 0 || overlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap must be in [0, %d), got %d", c.Chunking.ChunkSize, overlap)
	}
	if c.Retrieval.MinScore < -1 || c.Retrieval.MinScore > 1 {
		return fmt.Errorf("retrieval.min_score must be between -1 and 1, got %v", c.Retrieval.MinScore)
	}
	if c.Chat.MaxHistoryTurns < 0 {
		return fmt.Errorf("chat.max_history_turns must be >= 0, got %d", c.Chat.MaxHistoryTurns)
	}
	return nil
}

// Location returns the timezone for new session ids. Validate has already
// checked the name.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Sessions.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LLMBudget is the longest one query can spend in the language model: two
// stages, each making every attempt up to its timeout with the retry delay
// between attempts.
func (c *Config) LLMBudget() time.Duration {
	retries := *c.LLM.MaxRetries
	stage := time.Duration(retries+1)*Seconds(c.LLM.TimeoutSec) +
		time.Duration(retries)*time.Duration(c.LLM.RetryDelayMs)*time.Millisecond
	return 2 * stage
}

// Seconds converts a config value in seconds.
func Seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// Relative to the source file, for go test from any package directory.
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
