package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// setting binds a dotted key to a Config field. field returns a pointer to
// a string, int, bool or float64 field.
type setting struct {
	key   string
	env   string
	field func(*Config) any
	// secret settings live in the secret store under account and never in
	// the backend.
	secret  bool
	account string
}

func str(key, env string, f func(*Config) *string) setting {
	return setting{key: key, env: env, field: func(c *Config) any { return f(c) }}
}

func num(key, env string, f func(*Config) *int) setting {
	return setting{key: key, env: env, field: func(c *Config) any { return f(c) }}
}

func flag(key, env string, f func(*Config) *bool) setting {
	return setting{key: key, env: env, field: func(c *Config) any { return f(c) }}
}

func decimal(key, env string, f func(*Config) *float64) setting {
	return setting{key: key, env: env, field: func(c *Config) any { return f(c) }}
}

func secret(key, env, account string, f func(*Config) *string) setting {
	s := str(key, env, f)
	s.secret, s.account = true, account
	return s
}

var settings = []setting{
	str("server.host", "SKILLGAP_SERVER_HOST", func(c *Config) *string { return &c.Server.Host }),
	num("server.port", "SKILLGAP_SERVER_PORT", func(c *Config) *int { return &c.Server.Port }),
	secret("server.api_token", "SKILLGAP_API_TOKEN", "api_token", func(c *Config) *string { return &c.Server.APIToken }),

	str("storage.data_dir", "SKILLGAP_STORAGE_DATA_DIR", func(c *Config) *string { return &c.Storage.DataDir }),

	str("llm.provider", "SKILLGAP_LLM_PROVIDER", func(c *Config) *string { return &c.LLM.Provider }),
	str("llm.base_url", "SKILLGAP_LLM_BASE_URL", func(c *Config) *string { return &c.LLM.BaseURL }),
	str("llm.model", "SKILLGAP_LLM_MODEL", func(c *Config) *string { return &c.LLM.Model }),
	decimal("llm.temperature", "SKILLGAP_LLM_TEMPERATURE", func(c *Config) *float64 { return &c.LLM.Temperature }),
	str("llm.timeout", "SKILLGAP_LLM_TIMEOUT", func(c *Config) *string { return &c.LLM.Timeout }),
	secret("llm.api_key", "SKILLGAP_LLM_API_KEY", "llm_api_key", func(c *Config) *string { return &c.LLM.APIKey }),

	str("ollama.base_url", "SKILLGAP_OLLAMA_BASE_URL", func(c *Config) *string { return &c.Ollama.BaseURL }),
	str("ollama.chat_model", "SKILLGAP_OLLAMA_CHAT_MODEL", func(c *Config) *string { return &c.Ollama.ChatModel }),
	str("ollama.embed_model", "SKILLGAP_OLLAMA_EMBED_MODEL", func(c *Config) *string { return &c.Ollama.EmbedModel }),

	num("retrieval.top_k", "SKILLGAP_RETRIEVAL_TOP_K", func(c *Config) *int { return &c.Retrieval.TopK }),
	num("retrieval.chunk_size", "SKILLGAP_RETRIEVAL_CHUNK_SIZE", func(c *Config) *int { return &c.Retrieval.ChunkSize }),
	num("retrieval.chunk_overlap", "SKILLGAP_RETRIEVAL_CHUNK_OVERLAP", func(c *Config) *int { return &c.Retrieval.ChunkOverlap }),
	num("retrieval.max_context_tokens", "SKILLGAP_RETRIEVAL_MAX_CONTEXT_TOKENS", func(c *Config) *int { return &c.Retrieval.MaxContextTokens }),
	flag("retrieval.rerank", "SKILLGAP_RETRIEVAL_RERANK", func(c *Config) *bool { return &c.Retrieval.Rerank }),
	decimal("retrieval.rerank_threshold", "SKILLGAP_RETRIEVAL_RERANK_THRESHOLD", func(c *Config) *float64 { return &c.Retrieval.RerankThreshold }),
	str("retrieval.rerank_timeout", "SKILLGAP_RETRIEVAL_RERANK_TIMEOUT", func(c *Config) *string { return &c.Retrieval.RerankTimeout }),

	flag("analysis.format_narrative", "SKILLGAP_ANALYSIS_FORMAT_NARRATIVE", func(c *Config) *bool { return &c.Analysis.FormatNarrative }),
	str("analysis.alias_file", "SKILLGAP_ANALYSIS_ALIAS_FILE", func(c *Config) *string { return &c.Analysis.AliasFile }),

	str("log.level", "SKILLGAP_LOG_LEVEL", func(c *Config) *string { return &c.Log.Level }),
}

func lookup(key string) (setting, bool) {
	for _, s := range settings {
		if s.key == key {
			return s, true
		}
	}
	return setting{}, false
}

// parse converts raw to the field's type and stores it in cfg.
func (s setting) parse(cfg *Config, raw string) error {
	switch p := s.field(cfg).(type) {
	case *string:
		*p = raw
	case *int:
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s wants an integer: %w", s.key, err)
		}
		*p = v
	case *bool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%s wants true or false: %w", s.key, err)
		}
		*p = v
	case *float64:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%s wants a number: %w", s.key, err)
		}
		*p = v
	}
	return nil
}

// value returns the current value of the field.
func (s setting) value(cfg Config) any {
	switch p := s.field(&cfg).(type) {
	case *string:
		return *p
	case *int:
		return *p
	case *bool:
		return *p
	case *float64:
		return *p
	}
	return nil
}

func (s setting) isInt() bool {
	_, ok := s.field(&Config{}).(*int)
	return ok
}

// applyBackend copies persisted values into cfg. Ints are stored natively;
// everything else is stored as a string. A malformed value is logged and
// the default kept.
func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range settings {
		if s.secret {
			continue
		}
		if s.isInt() {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				*s.field(cfg).(*int) = v
			}
			continue
		}
		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok {
			continue
		}
		if _, isStr := s.field(cfg).(*string); !isStr && raw == "" {
			continue
		}
		if err := s.parse(cfg, raw); err != nil {
			slog.Warn("ignoring stored config value", "key", s.key, "value", raw, "error", err)
		}
	}
	return nil
}

// applyEnvOverrides applies every non-empty SKILLGAP_* variable.
func applyEnvOverrides(cfg *Config) {
	for _, s := range settings {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		if err := s.parse(cfg, raw); err != nil {
			slog.Warn("ignoring environment override", "env", s.env, "value", raw, "error", err)
		}
	}
}
