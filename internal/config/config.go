package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	BackendChromem  = "chromem"
	BackendPgvector = "pgvector"
	BackendChroma   = "chroma"

	ScopeAll    = "all"
	ScopeUpload = "upload"

	RetrieveByPrompt   = "prompt"
	RetrieveByQuestion = "question"
)

const defaultChunkOverlap = 80

type Config struct {
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	InferLLM LLMConfig      `yaml:"infer_llm"`
	RAG      RAGConfig      `yaml:"rag"`
	VectorDB VectorDBConfig `yaml:"vector_db"`
	Database DatabaseConfig `yaml:"database"`
	Chroma   ChromaConfig   `yaml:"chroma"`
	Quiz     QuizConfig     `yaml:"quiz"`
	Server   ServerConfig   `yaml:"server"`
	Watch    WatchConfig    `yaml:"watch"`
	Log      LogConfig      `yaml:"log"`
}

// LLMConfig describes one model endpoint, either for embeddings or for generation.
type LLMConfig struct {
	Provider    string `yaml:"provider"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	Key         string `yaml:"key"`
	KeyEnv      string `yaml:"key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

type RAGConfig struct {
	ChunkSize          int      `yaml:"chunk_size"`
	ChunkOverlap       int      `yaml:"chunk_overlap"`
	Separators         []string `yaml:"separators"`
	TopK               int      `yaml:"top_k"`
	SourcePreviewChars int      `yaml:"source_preview_chars"`
	Scope              string   `yaml:"scope"`
	OfficeFormats      bool     `yaml:"office_formats"`
	EncryptionKey      string   `yaml:"encryption_key"`
}

type VectorDBConfig struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	InMemory   bool   `yaml:"in_memory"`
	Compress   bool   `yaml:"compress"`
	ExportFile string `yaml:"export_file"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type ChromaConfig struct {
	URL string `yaml:"url"`
}

type QuizConfig struct {
	ContextDocs         int    `yaml:"context_docs"`
	ContextChars        int    `yaml:"context_chars"`
	Questions           int    `yaml:"questions"`
	Strict              bool   `yaml:"strict"`
	EvaluationRetrieval string `yaml:"evaluation_retrieval"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type WatchConfig struct {
	Dir string `yaml:"dir"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// LoadConfig reads the YAML file at path. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	// chunk_overlap: 0 is valid, so its default is set before decoding
	cfg := Config{RAG: RAGConfig{ChunkOverlap: defaultChunkOverlap}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func Default() *Config {
	cfg := Config{RAG: RAGConfig{ChunkOverlap: defaultChunkOverlap}}
	applyDefaults(&cfg)
	return &cfg
}

func (c *Config) Validate() error {
	if c.RAG.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_overlap (%d) must not be negative", c.RAG.ChunkOverlap)
	}
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	switch c.VectorDB.Backend {
	case BackendChromem, BackendPgvector, BackendChroma:
	default:
		return fmt.Errorf("unknown vector_db backend: %s", c.VectorDB.Backend)
	}
	switch c.RAG.Scope {
	case ScopeAll, ScopeUpload:
	default:
		return fmt.Errorf("unknown rag scope: %s", c.RAG.Scope)
	}
	switch c.Quiz.EvaluationRetrieval {
	case RetrieveByPrompt, RetrieveByQuestion:
	default:
		return fmt.Errorf("unknown quiz evaluation_retrieval: %s", c.Quiz.EvaluationRetrieval)
	}
	return nil
}

// APIKey returns the configured key, falling back to the environment variable named by KeyEnv.
func (l *LLMConfig) APIKey() string {
	if l.Key != "" {
		return l.Key
	}
	if l.KeyEnv != "" {
		return os.Getenv(l.KeyEnv)
	}
	return ""
}

func applyDefaults(cfg *Config) {
	applyLLMDefaults(&cfg.EmbedLLM, "all-minilm")
	applyLLMDefaults(&cfg.InferLLM, "llama3")

	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 400
	}
	if len(cfg.RAG.Separators) == 0 {
		cfg.RAG.Separators = []string{"\n\n", "\n", ".", " "}
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 4
	}
	if cfg.RAG.SourcePreviewChars == 0 {
		cfg.RAG.SourcePreviewChars = 300
	}
	if cfg.RAG.Scope == "" {
		cfg.RAG.Scope = ScopeAll
	}

	if cfg.VectorDB.Backend == "" {
		cfg.VectorDB.Backend = BackendChromem
	}
	if cfg.VectorDB.Path == "" {
		cfg.VectorDB.Path = "chroma_db"
	}
	if cfg.VectorDB.Collection == "" {
		cfg.VectorDB.Collection = "documents"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "pgdriver"
	}
	if cfg.Chroma.URL == "" {
		cfg.Chroma.URL = "http://localhost:8000"
	}

	if cfg.Quiz.ContextDocs == 0 {
		cfg.Quiz.ContextDocs = 3
	}
	if cfg.Quiz.ContextChars == 0 {
		cfg.Quiz.ContextChars = 3000
	}
	if cfg.Quiz.Questions == 0 {
		cfg.Quiz.Questions = 3
	}
	if cfg.Quiz.EvaluationRetrieval == "" {
		cfg.Quiz.EvaluationRetrieval = RetrieveByPrompt
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func applyLLMDefaults(l *LLMConfig, model string) {
	if l.Provider == "" {
		l.Provider = ProviderOllama
	}
	if l.Model == "" {
		l.Model = model
	}
	if l.BaseURL == "" {
		switch l.Provider {
		case ProviderOllama:
			l.BaseURL = "http://localhost:11434"
		case ProviderOpenAI:
			l.BaseURL = "https://api.openai.com/v1"
		}
	}
	if l.KeyEnv == "" {
		switch l.Provider {
		case ProviderOpenAI:
			l.KeyEnv = "OPENAI_API_KEY"
		case ProviderGemini:
			l.KeyEnv = "GEMINI_API_KEY"
		}
	}
}
