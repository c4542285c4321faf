package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDefault(t *testing.T) {
	config := Default()

	if config == nil {
		t.Fatal("Default() returned nil")
	}

	if config.Server.Host != "localhost" || config.Server.Port != 8080 {
		t.Errorf("Unexpected server defaults %+v", config.Server)
	}
	if config.LLM.Provider != "anthropic" {
		t.Errorf("Expected provider 'anthropic', got %q", config.LLM.Provider)
	}
	if config.LLM.TimeoutSeconds != 60 || config.LLM.ExtendedTimeoutSeconds != 180 {
		t.Errorf("Unexpected timeouts %d/%d", config.LLM.TimeoutSeconds, config.LLM.ExtendedTimeoutSeconds)
	}
	if config.LLM.HistoryWindow != 10 {
		t.Errorf("Expected history window 10, got %d", config.LLM.HistoryWindow)
	}
	if config.Limits.MaxFileChars != 50000 {
		t.Errorf("Expected max file chars 50000, got %d", config.Limits.MaxFileChars)
	}
	if config.Limits.MaxTableRows != 1000 {
		t.Errorf("Expected max table rows 1000, got %d", config.Limits.MaxTableRows)
	}
	if config.Limits.MaxUploadBytes != 10<<20 {
		t.Errorf("Expected 10MB upload cap, got %d", config.Limits.MaxUploadBytes)
	}
	if config.Storage.Driver != StorageSQLite || config.Storage.Path != "lilreport.db" {
		t.Errorf("Unexpected storage defaults %+v", config.Storage)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	config, err := Load("")
	if err != nil {
		t.Errorf("Load with empty path returned error: %v", err)
	}
	if config.Storage.Path != Default().Storage.Path {
		t.Error("Load with empty path should return default config")
	}
}

func TestLoad_NonexistentFile(t *testing.T) {
	config, err := Load("/nonexistent/file.json")
	if err != nil {
		t.Errorf("Load with nonexistent file returned error: %v", err)
	}
	if config.LLM.Model != Default().LLM.Model {
		t.Error("Load with nonexistent file should return default config")
	}
}

func TestLoad_JSONFile(t *testing.T) {
	tempDir := t.TempDir()

	testConfig := Default()
	testConfig.Server.Port = 9090
	testConfig.LLM.Provider = "openai"
	testConfig.LLM.Model = "gpt-4o"
	testConfig.Storage.Path = "test.db"

	configPath := filepath.Join(tempDir, "config.json")
	data, err := json.MarshalIndent(testConfig, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal test config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	loadedConfig, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load JSON config: %v", err)
	}

	if loadedConfig.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", loadedConfig.Server.Port)
	}
	if loadedConfig.LLM.Provider != "openai" || loadedConfig.LLM.Model != "gpt-4o" {
		t.Errorf("Unexpected LLM config %+v", loadedConfig.LLM)
	}
	if loadedConfig.Storage.Path != "test.db" {
		t.Errorf("Expected storage path 'test.db', got %q", loadedConfig.Storage.Path)
	}
}

func TestLoad_YAMLFilePartial(t *testing.T) {
	tempDir := t.TempDir()

	yamlContent := `
server:
  port: 9090
llm:
  provider: ollama
  model: llama3
limits:
  max_file_chars: 2000
storage:
  driver: memory
`

	configPath := filepath.Join(tempDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("Failed to write test YAML config: %v", err)
	}

	loadedConfig, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load YAML config: %v", err)
	}

	if loadedConfig.LLM.Model != "llama3" {
		t.Errorf("Expected model 'llama3', got %q", loadedConfig.LLM.Model)
	}
	if loadedConfig.Limits.MaxFileChars != 2000 {
		t.Errorf("Expected max file chars 2000, got %d", loadedConfig.Limits.MaxFileChars)
	}
	// Unset keys keep their defaults
	if loadedConfig.Limits.MaxTableRows != 1000 {
		t.Errorf("Expected default max table rows, got %d", loadedConfig.Limits.MaxTableRows)
	}
	if loadedConfig.Server.Host != "localhost" {
		t.Errorf("Expected default host, got %q", loadedConfig.Server.Host)
	}
}

func TestLoad_Errors(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "unsupported format", file: "config.txt", content: "test content"},
		{name: "invalid json", file: "config.json", content: "invalid json"},
		{name: "invalid yaml", file: "config.yaml", content: "invalid: yaml: content: ["},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(tempDir, tt.file)
			if err := os.WriteFile(configPath, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("Failed to write test file: %v", err)
			}
			if _, err := Load(configPath); err == nil {
				t.Errorf("Expected error for %s", tt.name)
			}
		})
	}
}

func TestConfig_Save(t *testing.T) {
	tempDir := t.TempDir()

	config := Default()
	config.Storage.Path = "saved.db"
	config.Server.Port = 9999

	jsonPath := filepath.Join(tempDir, "nested", "dir", "config.json")
	if err := config.Save(jsonPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("Failed to read saved config: %v", err)
	}
	var savedJSON Config
	if err := json.Unmarshal(data, &savedJSON); err != nil {
		t.Fatalf("Failed to unmarshal saved config: %v", err)
	}
	if savedJSON.Storage.Path != "saved.db" || savedJSON.Server.Port != 9999 {
		t.Errorf("Unexpected saved JSON config %+v", savedJSON)
	}

	yamlPath := filepath.Join(tempDir, "config.yaml")
	if err := config.Save(yamlPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}
	data, err = os.ReadFile(yamlPath)
	if err != nil {
		t.Fatalf("Failed to read saved config: %v", err)
	}
	var savedYAML Config
	if err := yaml.Unmarshal(data, &savedYAML); err != nil {
		t.Fatalf("Failed to unmarshal saved YAML config: %v", err)
	}
	if savedYAML.Storage.Path != "saved.db" {
		t.Errorf("Expected saved storage path 'saved.db', got %q", savedYAML.Storage.Path)
	}

	if err := config.Save(filepath.Join(tempDir, "config.txt")); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("LILREPORT_PROVIDER", "")
	t.Setenv("LILREPORT_MODEL", "")
	t.Setenv("LILREPORT_DATABASE_URL", "")

	config := Default()
	config.ApplyEnv()
	if config.LLM.APIKey != "sk-ant" {
		t.Errorf("Expected anthropic key, got %q", config.LLM.APIKey)
	}

	config = Default()
	config.LLM.Provider = "gemini"
	config.ApplyEnv()
	if config.LLM.APIKey != "g-key" {
		t.Errorf("Expected GOOGLE_API_KEY fallback, got %q", config.LLM.APIKey)
	}

	config = Default()
	config.LLM.APIKey = "from-file"
	config.ApplyEnv()
	if config.LLM.APIKey != "from-file" {
		t.Error("Expected configured key to win over environment")
	}

	t.Setenv("LILREPORT_PROVIDER", "openai")
	t.Setenv("LILREPORT_DATABASE_URL", "postgres://localhost/reports")
	config = Default()
	config.ApplyEnv()
	if config.LLM.Provider != "openai" || config.LLM.APIKey != "sk-openai" {
		t.Errorf("Unexpected LLM config %+v", config.LLM)
	}
	if config.Storage.Driver != StoragePostgres || config.Storage.DSN != "postgres://localhost/reports" {
		t.Errorf("Unexpected storage config %+v", config.Storage)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := Default()
	valid.LLM.APIKey = "key"
	if err := valid.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}

	ollama := Default()
	ollama.LLM.Provider = "ollama"
	if err := ollama.Validate(); err != nil {
		t.Errorf("Expected ollama config without key to be valid, got %v", err)
	}

	broken := Default()
	broken.Server.Port = 0
	broken.LLM.Provider = "mystery"
	broken.Storage.Driver = StoragePostgres
	err := broken.Validate()
	if err == nil {
		t.Fatal("Expected validation errors")
	}
	for _, want := range []string{"server.port", "llm.provider", "storage.dsn"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected error to mention %s, got %v", want, err)
		}
	}
}

func TestLLM_Timeout(t *testing.T) {
	llm := Default().LLM
	if got := llm.Timeout(false); got != 60*time.Second {
		t.Errorf("Expected 60s, got %v", got)
	}
	if got := llm.Timeout(true); got != 180*time.Second {
		t.Errorf("Expected 180s, got %v", got)
	}
}

func TestLoadProfile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	config, err := LoadProfile()
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}

	configPath := filepath.Join(home, ".lil-report", "config.yaml")
	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("Expected default profile to be written: %v", err)
	}
	if !strings.HasPrefix(config.Storage.Path, filepath.Join(home, ".lil-report")) {
		t.Errorf("Expected database inside profile dir, got %q", config.Storage.Path)
	}

	config.Server.Port = 7070
	if err := config.SaveProfile(); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}
	reloaded, err := LoadProfile()
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}
	if reloaded.Server.Port != 7070 {
		t.Errorf("Expected saved port 7070, got %d", reloaded.Server.Port)
	}
}
