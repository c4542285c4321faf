package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  Server  `json:"server" yaml:"server"`
	LLM     LLM     `json:"llm" yaml:"llm"`
	Limits  Limits  `json:"limits" yaml:"limits"`
	Storage Storage `json:"storage" yaml:"storage"`
}

type Server struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

type LLM struct {
	Provider string `json:"provider" yaml:"provider"`
	Model    string `json:"model" yaml:"model"`
	// APIKey is normally supplied through the environment, see ApplyEnv
	APIKey                 string  `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL                string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	MaxTokens              int     `json:"max_tokens" yaml:"max_tokens"`
	Temperature            float64 `json:"temperature" yaml:"temperature"`
	TimeoutSeconds         int     `json:"timeout_seconds" yaml:"timeout_seconds"`
	ExtendedTimeoutSeconds int     `json:"extended_timeout_seconds" yaml:"extended_timeout_seconds"`
	HistoryWindow          int     `json:"history_window" yaml:"history_window"`
}

type Limits struct {
	MaxFileChars    int `json:"max_file_chars" yaml:"max_file_chars"`
	MaxTableRows    int `json:"max_table_rows" yaml:"max_table_rows"`
	MaxUploadBytes  int `json:"max_upload_bytes" yaml:"max_upload_bytes"`
	MaxContextChars int `json:"max_context_chars" yaml:"max_context_chars"`
	ParseWorkers    int `json:"parse_workers" yaml:"parse_workers"`
}

type Storage struct {
	// Driver is one of memory, sqlite or postgres
	Driver string `json:"driver" yaml:"driver"`
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

func Default() *Config {
	return &Config{
		Server: Server{
			Host: "localhost",
			Port: 8080,
		},
		LLM: LLM{
			Provider:               "anthropic",
			Model:                  "claude-3-5-sonnet-latest",
			MaxTokens:              4096,
			Temperature:            0.7,
			TimeoutSeconds:         60,
			ExtendedTimeoutSeconds: 180,
			HistoryWindow:          10,
		},
		Limits: Limits{
			MaxFileChars:    50000,
			MaxTableRows:    1000,
			MaxUploadBytes:  10 << 20,
			MaxContextChars: 150000,
			ParseWorkers:    4,
		},
		Storage: Storage{
			Driver: StorageSQLite,
			Path:   "lilreport.db",
		},
	}
}

func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	ext := filepath.Ext(path)

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return config, nil
}

func (c *Config) Save(path string) error {
	ext := filepath.Ext(path)
	var data []byte
	var err error

	switch ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv fills settings from the environment. API keys are only taken
// from the variable matching the configured provider.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LILREPORT_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("LILREPORT_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("LILREPORT_DATABASE_URL"); v != "" {
		c.Storage.Driver = StoragePostgres
		c.Storage.DSN = v
	}

	c.LoadProviderEnv()
}

// LoadProviderEnv fills the API key, or the Ollama host, for the configured
// provider when they are not already set
func (c *Config) LoadProviderEnv() {
	if c.LLM.APIKey == "" {
		switch strings.ToLower(c.LLM.Provider) {
		case "anthropic":
			c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "gemini":
			c.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
			if c.LLM.APIKey == "" {
				c.LLM.APIKey = os.Getenv("GOOGLE_API_KEY")
			}
		}
	}

	if strings.EqualFold(c.LLM.Provider, "ollama") && c.LLM.BaseURL == "" {
		c.LLM.BaseURL = os.Getenv("OLLAMA_HOST")
	}
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "anthropic", "openai", "gemini":
		if c.LLM.APIKey == "" {
			errs = append(errs, fmt.Errorf("llm.api_key is required for provider %s", c.LLM.Provider))
		}
	case "ollama":
	default:
		errs = append(errs, fmt.Errorf("unknown llm.provider %q", c.LLM.Provider))
	}
	if c.LLM.TimeoutSeconds <= 0 || c.LLM.ExtendedTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("llm timeouts must be positive"))
	}

	if c.Limits.MaxFileChars <= 0 || c.Limits.MaxTableRows <= 0 || c.Limits.MaxUploadBytes <= 0 || c.Limits.MaxContextChars <= 0 {
		errs = append(errs, errors.New("limits must be positive"))
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StorageSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for sqlite"))
		}
	case StoragePostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}

	return errors.Join(errs...)
}

// Timeout returns the language-model deadline for a request
func (l LLM) Timeout(extended bool) time.Duration {
	if extended {
		return time.Duration(l.ExtendedTimeoutSeconds) * time.Second
	}
	return time.Duration(l.TimeoutSeconds) * time.Second
}
