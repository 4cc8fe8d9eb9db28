package commands

import (
	"os"
	"path/filepath"

	"github.com/colonyops/refine/internal/core/config"
)

// Flags holds the global flag values shared by every command.
type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	DataDir    string

	// Config is loaded in the Before hook.
	Config *config.Config
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/refine/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "refine", "config.yaml")
}

// DefaultDataDir returns $XDG_DATA_HOME/refine, where the database and logs
// live.
func DefaultDataDir() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share")), "refine")
}

func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, fallback)
}
