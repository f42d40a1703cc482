package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultAPIKeyEnv      = "GOOGLE_API_KEY"
	defaultOpenAIBaseURL  = "https://generativelanguage.googleapis.com/v1beta/openai/"
	defaultOllamaBaseURL  = "http://localhost:11434"
	defaultInferenceModel = "gemini-1.5-flash"
	defaultEmbeddingModel = "text-embedding-004"
	defaultTemperature    = 0.3

	defaultChunkSize    = 10000
	defaultChunkOverlap = 1000
	defaultTopK         = 4
	defaultIndexPrefix  = "index_"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	RAG      RAGConfig      `yaml:"rag"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	CorsOrigins string `yaml:"cors_origins"`
	BodyLimitMB int    `yaml:"body_limit_mb"`
}

// LLMConfig describes one model endpoint. Provider is "openai" (any
// OpenAI-compatible API) or "ollama".
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	Key         string  `yaml:"key"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

type RAGConfig struct {
	Splitter      string        `yaml:"splitter"` // recursive | fixed
	ChunkSize     int           `yaml:"chunk_size"`
	ChunkOverlap  int           `yaml:"chunk_overlap"`
	TopK          int           `yaml:"top_k"`
	Backend       string        `yaml:"backend"` // chromem | pgvector
	IndexDir      string        `yaml:"index_dir"`
	IndexPrefix   string        `yaml:"index_prefix"`
	Compress      bool          `yaml:"compress"`
	PruneReplaced bool          `yaml:"prune_replaced"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
}

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console | json
}

// LoadConfig reads the YAML file at path. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}
	cfg.ApplyDefaults()
	cfg.LLM.resolveKey()
	cfg.EmbedLLM.resolveKey()
	return &cfg, nil
}

// Default returns a config with every default applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Server.CorsOrigins == "" {
		c.Server.CorsOrigins = "*"
	}
	if c.Server.BodyLimitMB == 0 {
		c.Server.BodyLimitMB = 10
	}

	c.LLM.applyDefaults(defaultInferenceModel)
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = defaultTemperature
	}
	c.EmbedLLM.applyDefaults(defaultEmbeddingModel)

	if c.RAG.Splitter == "" {
		c.RAG.Splitter = "recursive"
	}
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = defaultChunkSize
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = defaultChunkOverlap
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = defaultTopK
	}
	if c.RAG.Backend == "" {
		c.RAG.Backend = "chromem"
	}
	if c.RAG.IndexDir == "" {
		c.RAG.IndexDir = "./indexes"
	}
	if c.RAG.IndexPrefix == "" {
		c.RAG.IndexPrefix = defaultIndexPrefix
	}

	if c.Log.Level == "" {
		c.Log.Level = "debug"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

func (l *LLMConfig) applyDefaults(model string) {
	if l.Provider == "" {
		l.Provider = "openai"
	}
	if l.BaseURL == "" {
		if l.Provider == "ollama" {
			l.BaseURL = defaultOllamaBaseURL
		} else {
			l.BaseURL = defaultOpenAIBaseURL
		}
	}
	if l.APIKeyEnv == "" {
		l.APIKeyEnv = defaultAPIKeyEnv
	}
	if l.Model == "" {
		l.Model = model
	}
}

// key in the file wins over the environment
func (l *LLMConfig) resolveKey() {
	if l.Key == "" {
		l.Key = os.Getenv(l.APIKeyEnv)
	}
}
