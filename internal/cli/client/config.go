package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// GlobalConfig is the per-user client configuration stored in config.json
type GlobalConfig struct {
	APIURL string `json:"api_url"`
	Actor  string `json:"actor,omitempty"`
}

var (
	getConfigDirFunc  = defaultGetConfigDir
	getConfigPathFunc = defaultGetConfigPath
)

func defaultGetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "truststack"), nil
}

func defaultGetConfigPath() (string, error) {
	configDir, err := getConfigDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// GetConfigPath returns the full path to the config.json file
func GetConfigPath() (string, error) {
	return getConfigPathFunc()
}

// LoadGlobalConfig reads the global config.json. A missing file yields a nil
// config and no error.
func LoadGlobalConfig() (*GlobalConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config GlobalConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	return &config, nil
}

// SaveGlobalConfig writes the config to config.json with 0600 permissions
func SaveGlobalConfig(config *GlobalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Source names where a setting came from
type Source string

const (
	SourceFlag         Source = "flag"
	SourceEnv          Source = "env"
	SourceGlobalConfig Source = "global_config"
	SourceDefault      Source = "default"
)

// Settings are the resolved client settings
type Settings struct {
	APIURL    string
	Actor     string
	URLSource Source
}

// ResolveSettings applies the cascade flag, environment, global config,
// default. Each setting is resolved on its own.
func ResolveSettings(flagURL, flagActor string) (Settings, error) {
	s := Settings{APIURL: flagURL, Actor: flagActor, URLSource: SourceFlag}

	if s.APIURL == "" {
		s.APIURL, s.URLSource = os.Getenv(envAPIURL), SourceEnv
	}
	if s.Actor == "" {
		s.Actor = os.Getenv(envActor)
	}

	if s.APIURL == "" || s.Actor == "" {
		global, err := LoadGlobalConfig()
		if err != nil {
			return Settings{}, err
		}
		if global != nil {
			if s.APIURL == "" && global.APIURL != "" {
				s.APIURL, s.URLSource = global.APIURL, SourceGlobalConfig
			}
			if s.Actor == "" {
				s.Actor = global.Actor
			}
		}
	}

	if s.APIURL == "" {
		s.APIURL, s.URLSource = defaultAPIURL, SourceDefault
	}
	return s, nil
}
