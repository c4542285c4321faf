package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const profileDirName = ".lil-report"

// ProfileDir is the per-user directory holding config and data
func ProfileDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, profileDirName), nil
}

func GetProfileConfigPath() (string, error) {
	dir, err := ProfileDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultProfile is Default with the database placed in the profile directory
func DefaultProfile() *Config {
	config := Default()
	if dir, err := ProfileDir(); err == nil {
		config.Storage.Path = filepath.Join(dir, "data", "lilreport.db")
	}
	return config
}

// LoadProfile reads the user profile, writing a default one on first use
func LoadProfile() (*Config, error) {
	configPath, err := GetProfileConfigPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultProfile()
		if err := config.SaveProfile(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return config, nil
	}

	config, err := Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.ensureDirectories(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) SaveProfile() error {
	configPath, err := GetProfileConfigPath()
	if err != nil {
		return err
	}
	if err := c.ensureDirectories(); err != nil {
		return err
	}
	return c.Save(configPath)
}

func (c *Config) ensureDirectories() error {
	if c.Storage.Driver == StorageSQLite && c.Storage.Path != "" {
		storageDir := filepath.Dir(c.Storage.Path)
		if err := os.MkdirAll(storageDir, 0o755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	return nil
}
