package config

import (
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
)

const appDirName = ".reviewdeck"

// DataDir returns the base data directory for reviewdeck.
func DataDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, appDirName), nil
}

// CoreConfigPath returns the path to the core TOML configuration.
func CoreConfigPath() (string, error) {
	return dataPath("config.toml")
}

// UIConfigPath returns the path to the UI TOML configuration.
func UIConfigPath() (string, error) {
	return dataPath("ui.toml")
}

// StorePath returns the path to the local settings database.
func StorePath() (string, error) {
	return dataPath("state.db")
}

// LogPath returns the file the terminal UI logs to.
func LogPath() (string, error) {
	return dataPath("ui.log")
}

// ExportsDir returns the directory downloaded exports are archived in.
func ExportsDir() (string, error) {
	return dataPath("exports")
}

func dataPath(name string) (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, name), nil
}
