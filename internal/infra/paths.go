package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const (
	AppName = "tickerwall"
)

// GetWorkspaceDir returns the root directory for all runtime data.
// It prioritizes a local "_workspace" directory if it exists
// (portable/dev mode), otherwise the OS-standard data directory.
func GetWorkspaceDir() string {
	localDir := "_workspace"
	if _, err := os.Stat(localDir); err == nil {
		return localDir
	}

	var baseDir string
	switch runtime.GOOS {
	case "windows":
		baseDir = os.Getenv("APPDATA")
		if baseDir == "" {
			baseDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, _ := os.UserHomeDir()
		baseDir = filepath.Join(home, "Library", "Application Support")
	case "linux":
		dataHome := os.Getenv("XDG_DATA_HOME")
		if dataHome != "" {
			baseDir = dataHome
		} else {
			home, _ := os.UserHomeDir()
			baseDir = filepath.Join(home, ".local", "share")
		}
	default:
		return localDir
	}

	return filepath.Join(baseDir, AppName)
}

// EnsureDir creates the directory if it doesn't exist (0755).
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// CreateLockFile creates a lock file to prevent multiple instances from
// mutating the same workspace. Returns a closer that removes the lock.
func CreateLockFile(workDir string) (func(), error) {
	lockPath := filepath.Join(workDir, "instance.lock")

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("another instance is already running (lock file exists: %s)", lockPath)
		}
		return nil, err
	}

	f.WriteString(fmt.Sprintf("%d", os.Getpid()))
	f.Close()

	return func() { os.Remove(lockPath) }, nil
}

// ResolveConfigPath attempts to find the config.yaml.
// Priority: 1. current dir, 2. OS config dir.
func ResolveConfigPath() string {
	defaultPath := filepath.Join("configs", "config.yaml")

	if _, err := os.Stat(defaultPath); err == nil {
		return defaultPath
	}

	configRoot, err := os.UserConfigDir()
	if err == nil {
		osPath := filepath.Join(configRoot, AppName, "config.yaml")
		if _, err := os.Stat(osPath); err == nil {
			return osPath
		}
	}

	return defaultPath
}
