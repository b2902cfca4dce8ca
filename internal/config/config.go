package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	LLM       LLMConfig
	Ollama    OllamaConfig
	Retrieval RetrievalConfig
	Analysis  AnalysisConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host     string `validate:"required"`
	Port     int    `validate:"min=1,max=65535"`
	APIToken string
}

type StorageConfig struct {
	DataDir string `validate:"required"`
}

// Providers accepted in llm.provider. "ollama" generates locally through
// the Ollama chat model instead of a hosted API.
const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type LLMConfig struct {
	Provider    string  `validate:"oneof=groq openai ollama"`
	BaseURL     string  `validate:"required,url"`
	Model       string  `validate:"required"`
	Temperature float64 `validate:"min=0,max=2"`
	Timeout     string  `validate:"required"`
	APIKey      string
}

// TimeoutDuration parses Timeout. Validate has already rejected bad values,
// so a parse failure here falls back to two minutes.
func (c LLMConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

type OllamaConfig struct {
	BaseURL    string `validate:"required,url"`
	ChatModel  string `validate:"required"`
	EmbedModel string `validate:"required"`
}

type RetrievalConfig struct {
	TopK             int `validate:"min=1,max=50"`
	ChunkSize        int `validate:"min=50"`
	ChunkOverlap     int `validate:"min=0,ltfield=ChunkSize"`
	MaxContextTokens int `validate:"min=100"`

	// Rerank has the local chat model re-score retrieved chunks before they
	// are composed into the prompt.
	Rerank          bool
	RerankThreshold float64 `validate:"min=0,max=1"`
	RerankTimeout   string  `validate:"required"`
}

// RerankTimeoutDuration parses RerankTimeout, falling back to ten seconds.
func (c RetrievalConfig) RerankTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.RerankTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

type AnalysisConfig struct {
	FormatNarrative bool
	AliasFile       string
}

type LogConfig struct {
	Level string `validate:"oneof=debug info warn error"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8000,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		LLM: LLMConfig{
			Provider:    ProviderGroq,
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "openai/gpt-oss-120b",
			Temperature: 0.7,
			Timeout:     "120s",
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			ChatModel:  "llama3.1",
			EmbedModel: "all-minilm",
		},
		Retrieval: RetrievalConfig{
			TopK:             3,
			ChunkSize:        500,
			ChunkOverlap:     50,
			MaxContextTokens: 1500,
			RerankThreshold:  0.3,
			RerankTimeout:    "10s",
		},
		Analysis: AnalysisConfig{
			FormatNarrative: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.skillgap.app) and the
// LLM API key falls back to the macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/skillgap/config.json
// and the key falls back to $XDG_DATA_HOME/skillgap/secrets.json.
//
// Environment variables (SKILLGAP_*) override backend values on all
// platforms. GROQ_API_KEY is read when SKILLGAP_LLM_API_KEY is unset.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), newSecretStore())
}

type secretReader interface {
	Get(account string) (string, error)
}

// applySecrets fills unset secret keys from the secret store.
func applySecrets(cfg *Config, sr secretReader) {
	for _, s := range settings {
		if !s.secret {
			continue
		}
		field := s.field(cfg).(*string)
		if *field != "" {
			continue
		}
		if val, err := sr.Get(s.account); err == nil && val != "" {
			*field = val
		}
	}
}

func loadWith(b ConfigBackend, sr secretReader) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("GROQ_API_KEY")
	}
	applySecrets(&cfg, sr)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field ranges and enumerations. It does not require an API
// key; see RequireLLM.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := time.ParseDuration(c.LLM.Timeout); err != nil {
		return fmt.Errorf("invalid config: llm.timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Retrieval.RerankTimeout); err != nil {
		return fmt.Errorf("invalid config: retrieval.rerank_timeout: %w", err)
	}
	return nil
}

// RequireLLM reports a missing API key for hosted providers. Commands that
// run analyses call it; commands that only read data do not.
func (c Config) RequireLLM() error {
	if c.LLM.Provider == ProviderOllama || c.LLM.APIKey != "" {
		return nil
	}
	return fmt.Errorf("missing required config: LLM API key for provider %q. "+
		"Set it via environment variable SKILLGAP_LLM_API_KEY or GROQ_API_KEY%s", c.LLM.Provider, apiKeyHint())
}
