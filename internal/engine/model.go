package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ResolveModelPath returns a model file from a file or directory path. For a
// directory the first .bin or .gguf file in name order is chosen.
func ResolveModelPath(rawPath string) (string, error) {
	return resolveModelPath(rawPath, os.Stat, os.ReadDir)
}

func resolveModelPath(
	rawPath string,
	stat func(name string) (os.FileInfo, error),
	readDir func(name string) ([]os.DirEntry, error),
) (string, error) {
	modelPath := strings.TrimSpace(rawPath)
	if modelPath == "" {
		return "", fmt.Errorf("model path is required")
	}

	info, err := stat(modelPath)
	if err != nil {
		return "", fmt.Errorf("cannot access model path: %s", modelPath)
	}
	if !info.IsDir() {
		return modelPath, nil
	}

	entries, err := readDir(modelPath)
	if err != nil {
		return "", fmt.Errorf("cannot read model directory: %s", modelPath)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if isModelFile(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no .bin or .gguf model files found in: %s", modelPath)
	}

	sort.Strings(names)
	return filepath.Join(modelPath, names[0]), nil
}

// isModelFile reports whether name has a whisper model extension.
func isModelFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".bin" || ext == ".gguf"
}
