package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables that override the default locations.
const (
	EnvConfigPath = "FILMCAT_CONFIG_PATH"
	EnvHome       = "FILMCAT_HOME"
)

// Defaults holds the default file locations.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
}

// GetDefaults resolves the default locations, preferring the environment:
//   - FILMCAT_CONFIG_PATH: config file (default ~/.config/filmcat.toml)
//   - FILMCAT_HOME: data directory (default ~/.local/share/filmcat)
func GetDefaults() (Defaults, error) {
	configPath, err := fromEnvOrHome(EnvConfigPath, ".config", "filmcat.toml")
	if err != nil {
		return Defaults{}, err
	}
	baseDir, err := fromEnvOrHome(EnvHome, ".local", "share", "filmcat")
	if err != nil {
		return Defaults{}, err
	}
	return Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}

func fromEnvOrHome(env string, elem ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elem...)...), nil
}
