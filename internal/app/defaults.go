package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults are the application paths used when no config flag is given.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
}

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - DRAFTMARK_CONFIG_PATH: config file location (default: ~/.config/draftmark.toml)
//   - DRAFTMARK_HOME: base directory for draftmark data (default: ~/.local/share/draftmark)
func GetDefaults() (Defaults, error) {
	configPath, err := fromEnvOrHome("DRAFTMARK_CONFIG_PATH", ".config", "draftmark.toml")
	if err != nil {
		return Defaults{}, err
	}
	baseDir, err := fromEnvOrHome("DRAFTMARK_HOME", ".local", "share", "draftmark")
	if err != nil {
		return Defaults{}, err
	}
	return Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}

// fromEnvOrHome returns the value of env, or the path under the home
// directory built from elems when env is unset.
func fromEnvOrHome(env string, elems ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elems...)...), nil
}
