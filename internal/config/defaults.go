package config

import (
	"os"
	"path/filepath"

	"whisperdesk/internal/domain"
)

// appDirName is the per-user directory holding settings, history and models.
const appDirName = ".whisperdesk"

// AppDir returns the per-user application directory.
func AppDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, appDirName)
}

// DefaultSettings returns baseline transcription options for first launch.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		ModelPath:    filepath.Join(AppDir(), "models"),
		ResultFormat: domain.OutputFormatText,
		Language:     "auto",
	}
}
