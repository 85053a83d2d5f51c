package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"whisperdesk/internal/config"
	"whisperdesk/internal/domain"
)

// ErrOutputExists is returned when the output file exists and the policy is fail.
var ErrOutputExists = errors.New("output file already exists")

// OutputPathFor places the result next to the input, swapping in the
// format's extension.
func OutputPathFor(inputPath string, format domain.OutputFormat) string {
	ext := format.Extension()
	if ext == "" {
		return ""
	}
	return strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ext
}

var counterPattern = regexp.MustCompile(`^(.*)\((\d+)\)(\.[^.]*)?$`)

// bumpName turns "name(n).ext" into "name(n+1).ext" and anything else into
// "name(2).ext".
func bumpName(path string) string {
	dir, base := filepath.Split(path)
	if m := counterPattern.FindStringSubmatch(base); m != nil {
		n, err := strconv.Atoi(m[2])
		if err == nil {
			return dir + fmt.Sprintf("%s(%d)%s", m[1], n+1, m[3])
		}
	}
	ext := filepath.Ext(base)
	return dir + strings.TrimSuffix(base, ext) + "(2)" + ext
}

// NextFreePath bumps the counter suffix until exists reports false.
func NextFreePath(path string, exists func(string) bool) string {
	for exists(path) {
		path = bumpName(path)
	}
	return path
}

// ResolveExisting applies the existing-output policy to path.
func ResolveExisting(path string, policy config.OnExisting, exists func(string) bool) (string, error) {
	if exists == nil {
		exists = fileExists
	}
	if !exists(path) {
		return path, nil
	}
	switch policy {
	case config.OnExistingOverwrite:
		return path, nil
	case config.OnExistingFail:
		return "", fmt.Errorf("%w: %s", ErrOutputExists, path)
	default:
		return NextFreePath(path, exists), nil
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
