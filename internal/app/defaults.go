package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults are the paths dirzip uses when the config file does not say
// otherwise.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
	FolderRoot string
}

// GetDefaults returns application default paths. configFlag, when set,
// wins over the environment.
// Environment variables:
//   - DIRZIP_CONFIG_PATH: config file location (default: ~/.config/dirzip.toml)
//   - DIRZIP_HOME: base directory for dirzip data (default: ~/.local/share/dirzip)
func GetDefaults(configFlag string) (Defaults, error) {
	configPath := configFlag
	if configPath == "" {
		p, err := getConfigPath()
		if err != nil {
			return Defaults{}, err
		}
		configPath = p
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return Defaults{}, err
	}

	return Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		FolderRoot: filepath.Join(baseDir, "folders"),
	}, nil
}

func getConfigPath() (string, error) {
	if path := os.Getenv("DIRZIP_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "dirzip.toml"), nil
}

func getBaseDir() (string, error) {
	if path := os.Getenv("DIRZIP_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "dirzip"), nil
}
