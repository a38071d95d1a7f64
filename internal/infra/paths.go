package infra

import (
	"os"
	"path/filepath"
)

const (
	AppName = "sex"
)

// ResolveConfigPath returns the config file to load when none was given.
// It returns "" when neither candidate exists, meaning defaults only.
func ResolveConfigPath() string {
	localPath := AppName + ".yaml"

	// 1. Current working directory (standard)
	if _, err := os.Stat(localPath); err == nil {
		return localPath
	}

	// 2. OS Standard Config Dir
	configRoot, err := os.UserConfigDir()
	if err == nil {
		osPath := filepath.Join(configRoot, AppName, "config.yaml")
		if _, err := os.Stat(osPath); err == nil {
			return osPath
		}
	}

	return ""
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
