package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".medboard"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("MEDBOARD_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := resolveHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

func resolveHomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("MEDBOARD_HOME")); h != "" {
		if strings.HasPrefix(h, "~") {
			base, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(base, h[1:]), nil
		}
		return h, nil
	}
	return os.UserHomeDir()
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Load process env vars from ~/.config/medboard/env (and fallbacks) first.
	LoadEnvFileCandidates()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil // Use defaults if we can't find config path
	}

	data, err := loadResolvedConfig(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	// If file doesn't exist, continue with defaults

	// Override with environment variables for each group
	if err := envconfig.Process("MEDBOARD_OUTLET", &cfg.Outlet); err != nil {
		return nil, fmt.Errorf("outlet env: %w", err)
	}
	if err := envconfig.Process("MEDBOARD_DISCORD", &cfg.Discord); err != nil {
		return nil, fmt.Errorf("discord env: %w", err)
	}
	if err := envconfig.Process("MEDBOARD_BOARD", &cfg.Board); err != nil {
		return nil, fmt.Errorf("board env: %w", err)
	}

	// Fallback for the bot token
	if cfg.Discord.Token == "" {
		cfg.Discord.Token = os.Getenv("DISCORD_TOKEN")
	}

	normalize(cfg)
	return cfg, nil
}

func normalize(cfg *Config) {
	def := DefaultConfig()
	if strings.TrimSpace(cfg.Outlet.BaseURL) == "" {
		cfg.Outlet.BaseURL = def.Outlet.BaseURL
	}
	if strings.TrimSpace(cfg.Outlet.SessionCookie) == "" {
		cfg.Outlet.SessionCookie = def.Outlet.SessionCookie
	}
	if cfg.Outlet.BlinkInterval <= 0 {
		cfg.Outlet.BlinkInterval = def.Outlet.BlinkInterval
	}
	if cfg.Outlet.Timeout <= 0 {
		cfg.Outlet.Timeout = def.Outlet.Timeout
	}
	if strings.TrimSpace(cfg.Discord.EmergencyText) == "" {
		cfg.Discord.EmergencyText = def.Discord.EmergencyText
	}
	if len(cfg.Board.Messages) == 0 {
		cfg.Board.Messages = def.Board.Messages
	}

	// Expand ~ in paths
	if strings.HasPrefix(cfg.Board.LogFile, "~") {
		if home, err := resolveHomeDir(); err == nil {
			cfg.Board.LogFile = filepath.Join(home, cfg.Board.LogFile[1:])
		}
	}
}

// Save writes cfg to the config path.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// loadResolvedConfig reads the config file and expands ${VAR} references in
// string values. Unset variables are left as written.
func loadResolvedConfig(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber() // contact ids overflow float64
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return json.Marshal(expandEnvRefs(doc))
}

func expandEnvRefs(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = expandEnvRefs(item)
		}
	case []any:
		for i, item := range t {
			t[i] = expandEnvRefs(item)
		}
	case string:
		return envRef.ReplaceAllStringFunc(t, func(ref string) string {
			if val, ok := os.LookupEnv(ref[2 : len(ref)-1]); ok {
				return val
			}
			return ref
		})
	}
	return v
}
