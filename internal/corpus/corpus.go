// Package corpus loads the static, file-backed lists the bot answers from
// (FAQ entries, practice phrases).
//
// Files are read fresh on every call; nothing is cached. JSON is the default
// format, files ending in .yaml or .yml are decoded as YAML. Either way the
// document must be a list.
package corpus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrConfig is returned when a corpus file is missing or malformed.
var ErrConfig = errors.New("corpus: configuration error")

// LoadList reads the list stored at path into a slice of T.
func LoadList[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: file not found: %s", ErrConfig, path)
		}
		return nil, fmt.Errorf("%w: read %q: %w", ErrConfig, path, err)
	}

	var items []T
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &items)
	default:
		err = json.Unmarshal(data, &items)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a list: %w", ErrConfig, path, err)
	}
	if items == nil && !isEmptyList(data) {
		return nil, fmt.Errorf("%w: %s must be a list", ErrConfig, path)
	}
	return items, nil
}

// isEmptyList reports whether data holds an explicit empty list, which both
// decoders may leave as a nil slice.
func isEmptyList(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return bytes.HasPrefix(trimmed, []byte("[")) && bytes.HasSuffix(trimmed, []byte("]"))
}
