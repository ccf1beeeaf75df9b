package cashier

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// IgnoreManager holds regular expressions for root-relative paths that are
// left out of the hash, exactly like hidden entries.
type IgnoreManager struct {
	ignorePath string
	patterns   []*regexp.Regexp
	loaded     bool
}

// NewIgnoreManager creates an ignore manager reading <rootDir>/.cashier/ignore
func NewIgnoreManager(rootDir string) *IgnoreManager {
	return &IgnoreManager{
		ignorePath: filepath.Join(rootDir, ConfigDirName, IgnoreFileName),
		patterns:   make([]*regexp.Regexp, 0),
	}
}

// LoadIgnorePatterns loads ignore patterns from the ignore file. A missing
// file means no patterns.
func (im *IgnoreManager) LoadIgnorePatterns() error {
	if im.loaded {
		return nil
	}

	file, err := os.Open(im.ignorePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			im.loaded = true
			return nil
		}
		return fmt.Errorf("failed to open ignore file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		pattern, err := regexp.Compile(line)
		if err != nil {
			return fmt.Errorf("invalid regex pattern at line %d: %s - %w", lineNum, line, err)
		}

		im.patterns = append(im.patterns, pattern)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading ignore file: %w", err)
	}

	im.loaded = true
	return nil
}

// ShouldIgnore checks if a root-relative path matches any pattern
func (im *IgnoreManager) ShouldIgnore(relativePath string) bool {
	if len(im.patterns) == 0 {
		return false
	}

	normalisedPath := filepath.ToSlash(relativePath)
	for _, pattern := range im.patterns {
		if pattern.MatchString(normalisedPath) {
			return true
		}
	}
	return false
}

// AddPattern adds a new ignore pattern
func (im *IgnoreManager) AddPattern(patternStr string) error {
	pattern, err := regexp.Compile(patternStr)
	if err != nil {
		return fmt.Errorf("invalid regex pattern: %s - %w", patternStr, err)
	}

	im.patterns = append(im.patterns, pattern)
	return nil
}

// HasPatterns returns true if there are any ignore patterns loaded
func (im *IgnoreManager) HasPatterns() bool {
	return len(im.patterns) > 0
}

// GetIgnoreFilePath returns the path to the ignore file
func (im *IgnoreManager) GetIgnoreFilePath() string {
	return im.ignorePath
}
