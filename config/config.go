package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the qwery service, loaded once at
// startup and passed to component constructors.
type Config struct {
	Store      StoreConfig      `yaml:"store"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Documents  DocumentsConfig  `yaml:"documents"`
	Chunk      ChunkConfig      `yaml:"chunk"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// StoreConfig selects and configures the document store backend.
type StoreConfig struct {
	Backend     string `yaml:"backend"` // "bolt" or "qdrant"
	Path        string `yaml:"path"`    // bolt database file
	Host        string `yaml:"host"`    // qdrant host
	Port        int    `yaml:"port"`
	Database    string `yaml:"database"`    // qdrant collection name
	Credentials string `yaml:"credentials"` // qdrant api key
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"`   // "ollama", "huggingface", "mock"
	Model       string `yaml:"model_name"` // e.g. "nomic-embed-text"
	Dimension   int    `yaml:"dimension"`
	BaseURL     string `yaml:"base_url"`
	BatchSize   int    `yaml:"batch_size"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
	Concurrency int    `yaml:"concurrency"` // parallel embedding batches during ingestion
}

// GenerationConfig holds generation model configuration.
type GenerationConfig struct {
	Model           string `yaml:"model_name"`
	BaseURL         string `yaml:"base_url"`
	TimeoutSecs     int    `yaml:"timeout_secs"`
	MaxContextItems int    `yaml:"max_context_items"`
}

// DocumentsConfig configures the batch ingestion source.
type DocumentsConfig struct {
	SourcePath string   `yaml:"source_path"`
	Includes   []string `yaml:"includes"`
	Excludes   []string `yaml:"excludes"`
}

// ChunkConfig configures how source text is split before embedding.
type ChunkConfig struct {
	MaxLength int `yaml:"max_length"` // characters per chunk
	Overlap   int `yaml:"overlap"`    // characters shared between adjacent chunks
}

// RetrievalConfig holds query-time defaults.
type RetrievalConfig struct {
	DefaultLimit int     `yaml:"default_limit"`
	Threshold    float64 `yaml:"threshold"` // drop results scoring below this (0 = disabled)
}

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:  "bolt",
			Path:     "qwery.db",
			Host:     "localhost",
			Port:     6333,
			Database: "documents",
		},
		Embedding: EmbeddingConfig{
			Provider:    "ollama",
			Model:       "nomic-embed-text",
			Dimension:   768,
			BaseURL:     "http://localhost:11434",
			BatchSize:   32,
			TimeoutSecs: 60,
			MaxRetries:  3,
			Concurrency: 4,
		},
		Generation: GenerationConfig{
			Model:           "llama3",
			BaseURL:         "http://localhost:11434",
			TimeoutSecs:     120,
			MaxContextItems: 5,
		},
		Documents: DocumentsConfig{
			SourcePath: "./documents",
			Includes:   []string{"**/*.txt", "**/*.md"},
			Excludes:   []string{"**/.git/**", "**/node_modules/**"},
		},
		Chunk: ChunkConfig{
			MaxLength: 1000,
			Overlap:   0,
		},
		Retrieval: RetrievalConfig{
			DefaultLimit: 5,
			Threshold:    0,
		},
		Server: ServerConfig{
			Addr: ":8000",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file, applying environment
// variable overrides on top. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides configuration from QWERY_* environment variables.
func (c *Config) applyEnv() {
	setString(&c.Store.Backend, "QWERY_STORE_BACKEND")
	setString(&c.Store.Path, "QWERY_STORE_PATH")
	setString(&c.Store.Host, "QWERY_STORE_HOST")
	setInt(&c.Store.Port, "QWERY_STORE_PORT")
	setString(&c.Store.Database, "QWERY_STORE_DATABASE")
	setString(&c.Store.Credentials, "QWERY_STORE_CREDENTIALS")

	setString(&c.Embedding.Provider, "QWERY_EMBEDDING_PROVIDER")
	setString(&c.Embedding.Model, "QWERY_EMBEDDING_MODEL_NAME")
	setInt(&c.Embedding.Dimension, "QWERY_EMBEDDING_DIMENSION")
	setString(&c.Embedding.BaseURL, "QWERY_EMBEDDING_BASE_URL")

	setString(&c.Generation.Model, "QWERY_GENERATION_MODEL_NAME")
	setString(&c.Generation.BaseURL, "QWERY_GENERATION_BASE_URL")

	setString(&c.Documents.SourcePath, "QWERY_DOCUMENTS_SOURCE_PATH")
	setInt(&c.Chunk.MaxLength, "QWERY_CHUNK_MAX_LENGTH")
	setInt(&c.Chunk.Overlap, "QWERY_CHUNK_OVERLAP")
	setInt(&c.Retrieval.DefaultLimit, "QWERY_RETRIEVAL_DEFAULT_LIMIT")

	setString(&c.Server.Addr, "QWERY_SERVER_ADDR")
	setString(&c.Logging.Level, "QWERY_LOG_LEVEL")
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
