package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Hard limits applied before any config bytes are parsed.
const (
	maxConfigSize = 10 << 20 // config file size cap
	maxJSONDepth  = 100      // nesting cap for hand-written JSON
	maxEnvVarLen  = 10000    // env override value cap
	maxPathLen    = 4096
)

// jsonExtensions is the default allowed set; manifest loading widens it to
// the YAML variants.
var jsonExtensions = []string{".json", ".json5"}

// checkTraversal rejects paths that resolve outside the working directory
// through parent references.
func checkTraversal(path string) error {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("cannot resolve absolute path: %w", err)
	}

	if filepath.IsAbs(path) {
		if strings.Contains(filepath.ToSlash(absPath), "..") {
			return fmt.Errorf("path traversal not allowed: %s", path)
		}
		return nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("cannot get working directory: %w", err)
	}
	rel, err := filepath.Rel(cwd, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("path traversal not allowed: %s resolves outside working directory", path)
	}
	return nil
}

// validateConfigPath does basic path validation. When no extensions are
// given, only JSON files are accepted.
func validateConfigPath(path string, exts ...string) error {
	if path == "" {
		return errors.New("empty config path")
	}
	if len(path) > maxPathLen {
		return fmt.Errorf("path too long: %d > %d", len(path), maxPathLen)
	}
	if err := checkTraversal(path); err != nil {
		return err
	}

	if len(exts) == 0 {
		exts = jsonExtensions
	}
	for _, ext := range exts {
		if strings.HasSuffix(path, ext) {
			return nil
		}
	}
	return fmt.Errorf("config file extension not allowed (want %s): %s", strings.Join(exts, ", "), path)
}

// safeReadFile reads a config file after validating its path, size and kind.
func safeReadFile(path string, exts ...string) ([]byte, error) {
	if err := validateConfigPath(path, exts...); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot stat config file: %w", err)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes > %d", info.Size(), maxConfigSize)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}
	return data, nil
}

// safeWriteFile writes a config file with owner-only permissions.
func safeWriteFile(path string, data []byte) error {
	if err := validateConfigPath(path); err != nil {
		return fmt.Errorf("invalid config path: %w", err)
	}
	if len(data) > maxConfigSize {
		return fmt.Errorf("config data too large: %d bytes > %d", len(data), maxConfigSize)
	}
	return os.WriteFile(path, data, 0600)
}

// validateEnvVar bounds override values and rejects embedded null bytes.
func validateEnvVar(key, value string) error {
	switch {
	case value == "":
		return nil
	case len(value) > maxEnvVarLen:
		return fmt.Errorf("environment variable %s too long: %d > %d", key, len(value), maxEnvVarLen)
	case strings.Contains(value, "\x00"):
		return fmt.Errorf("null byte in environment variable %s", key)
	}
	return nil
}

// validateJSONDepth walks the raw bytes counting bracket depth, skipping
// string contents. It rejects input nested beyond maxJSONDepth and
// obviously unbalanced documents before the real parser sees them.
func validateJSONDepth(data []byte) error {
	var depth int
	var inString, escaped bool

	for _, b := range data {
		switch {
		case escaped:
			escaped = false
		case inString:
			switch b {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
		case b == '"':
			inString = true
		case b == '{' || b == '[':
			depth++
			if depth > maxJSONDepth {
				return fmt.Errorf("JSON nesting too deep: %d > %d", depth, maxJSONDepth)
			}
		case b == '}' || b == ']':
			depth--
			if depth < 0 {
				return errors.New("malformed JSON: unbalanced brackets")
			}
		}
	}

	if depth != 0 {
		return fmt.Errorf("malformed JSON: unclosed brackets (depth=%d)", depth)
	}
	return nil
}
