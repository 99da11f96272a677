package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"verkeeper/internal/store"
)

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".verkeeper/config.toml"
	}
	return filepath.Join(home, ".verkeeper", "config.toml")
}

func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", errors.New("empty path")
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return home, nil
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
	}
	return path, nil
}

func ResolveStorageRoot(cfg Config) (string, error) {
	expanded, err := ExpandPath(cfg.Storage.Root)
	if err != nil {
		return "", err
	}
	return filepath.Clean(expanded), nil
}

// ResolveVersionsPath returns the versions document location for cfg.
func ResolveVersionsPath(cfg Config) (string, error) {
	root, err := ResolveStorageRoot(cfg)
	if err != nil {
		return "", err
	}
	file, err := ExpandPath(cfg.Storage.VersionsFile)
	if err != nil {
		return "", err
	}
	return store.VersionsPath(root, file), nil
}
