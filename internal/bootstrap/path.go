package bootstrap

import (
	"os"
	"path/filepath"
)

// EnsureToolDirOnPATH creates dir and prepends it to PATH so tools dropped
// there (ffmpeg) are found by the diagnostics and the media decoder.
func EnsureToolDirOnPATH(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	current := os.Getenv("PATH")
	for _, entry := range filepath.SplitList(current) {
		if filepath.Clean(entry) == filepath.Clean(dir) {
			return nil
		}
	}

	if current == "" {
		return os.Setenv("PATH", dir)
	}
	return os.Setenv("PATH", dir+string(os.PathListSeparator)+current)
}
