package cashier

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-ini/ini"
)

// Config represents the cashier configuration
type Config struct {
	configPath string
	ini        *ini.File
}

// HashConfig represents hash algorithm configuration
type HashConfig struct {
	Default string // Default hash algorithm
}

// VerboseConfig represents verbosity configuration
type VerboseConfig struct {
	Level int    // Default verbose level (0=quiet, 1=basic, 2=detailed, 3=trace)
	Debug string // Default debug flags (comma-separated)
}

// PerformanceConfig represents performance-related configuration
type PerformanceConfig struct {
	HashWorkers int    // Number of concurrent hash workers (default: 4)
	HashBuffer  string // Read buffer size for interruptible hashing (default: "2M")
}

// WalkConfig represents traversal limits
type WalkConfig struct {
	MaxDepth   int // Directories deeper than this are excluded with a warning
	DirWorkers int // Sub-directory tasks that may run concurrently
}

// AllConfig represents all configuration options
type AllConfig struct {
	Hash        *HashConfig
	Verbose     *VerboseConfig
	Performance *PerformanceConfig
	Walk        *WalkConfig
}

// DefaultConfigPath returns <rootDir>/.cashier/config
func DefaultConfigPath(rootDir string) string {
	return filepath.Join(rootDir, ConfigDirName, ConfigFileName)
}

// LoadConfig loads configuration from configPath. A missing file yields the
// built-in defaults; nothing is written until Save is called.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{
		configPath: configPath,
	}

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		cfg.ini = ini.Empty()
		if err := cfg.setDefaults(); err != nil {
			return nil, fmt.Errorf("failed to set default config: %w", err)
		}
		return cfg, nil
	}

	iniFile, err := ini.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	cfg.ini = iniFile
	return cfg, nil
}

// Path returns the file the configuration is saved to
func (c *Config) Path() string {
	return c.configPath
}

// setDefaults sets default configuration values
func (c *Config) setDefaults() error {
	defaults := []struct {
		section, key, value string
	}{
		{"filehash", "default", DefaultHashAlgorithm},
		{"verbose", "level", "0"},
		{"verbose", "debug", ""},
		{"performance", "hash_workers", strconv.Itoa(DefaultHashWorkers)},
		{"performance", "hash_buffer", DefaultHashBuffer},
		{"walk", "max_depth", strconv.Itoa(DefaultMaxDepth)},
		{"walk", "dir_workers", strconv.Itoa(DefaultDirWorkers)},
	}

	for _, d := range defaults {
		section, err := c.ini.NewSection(d.section)
		if err != nil {
			return fmt.Errorf("failed to create %s section: %w", d.section, err)
		}
		if _, err := section.NewKey(d.key, d.value); err != nil {
			return fmt.Errorf("failed to set default %s.%s: %w", d.section, d.key, err)
		}
	}
	return nil
}

// GetHashConfig returns the hash configuration
func (c *Config) GetHashConfig() *HashConfig {
	hashConfig := &HashConfig{
		Default: DefaultHashAlgorithm,
	}

	if c.ini.HasSection("filehash") {
		section := c.ini.Section("filehash")
		if section.HasKey("default") {
			hashConfig.Default = section.Key("default").String()
		}
	}

	return hashConfig
}

// GetVerboseConfig returns the verbose configuration
func (c *Config) GetVerboseConfig() *VerboseConfig {
	verboseConfig := &VerboseConfig{}

	if c.ini.HasSection("verbose") {
		section := c.ini.Section("verbose")
		if section.HasKey("level") {
			if level, err := section.Key("level").Int(); err == nil {
				verboseConfig.Level = level
			}
		}
		if section.HasKey("debug") {
			verboseConfig.Debug = section.Key("debug").String()
		}
	}

	return verboseConfig
}

// GetPerformanceConfig returns the performance configuration
func (c *Config) GetPerformanceConfig() *PerformanceConfig {
	performanceConfig := &PerformanceConfig{
		HashWorkers: DefaultHashWorkers,
		HashBuffer:  DefaultHashBuffer,
	}

	if c.ini.HasSection("performance") {
		section := c.ini.Section("performance")
		if section.HasKey("hash_workers") {
			if workers, err := section.Key("hash_workers").Int(); err == nil {
				performanceConfig.HashWorkers = workers
			}
		}
		if section.HasKey("hash_buffer") {
			if bufferSize := section.Key("hash_buffer").String(); bufferSize != "" {
				performanceConfig.HashBuffer = bufferSize
			}
		}
	}

	return performanceConfig
}

// GetWalkConfig returns the traversal configuration
func (c *Config) GetWalkConfig() *WalkConfig {
	walkConfig := &WalkConfig{
		MaxDepth:   DefaultMaxDepth,
		DirWorkers: DefaultDirWorkers,
	}

	if c.ini.HasSection("walk") {
		section := c.ini.Section("walk")
		if section.HasKey("max_depth") {
			if depth, err := section.Key("max_depth").Int(); err == nil {
				walkConfig.MaxDepth = depth
			}
		}
		if section.HasKey("dir_workers") {
			if workers, err := section.Key("dir_workers").Int(); err == nil {
				walkConfig.DirWorkers = workers
			}
		}
	}

	return walkConfig
}

// GetAllConfig returns all configuration options
func (c *Config) GetAllConfig() *AllConfig {
	return &AllConfig{
		Hash:        c.GetHashConfig(),
		Verbose:     c.GetVerboseConfig(),
		Performance: c.GetPerformanceConfig(),
		Walk:        c.GetWalkConfig(),
	}
}

// String renders the configuration as INI text
func (c *Config) String() string {
	var b strings.Builder
	c.ini.WriteTo(&b)
	return b.String()
}

// Save saves the configuration to disk, creating the parent directory
func (c *Config) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return c.ini.SaveTo(c.configPath)
}

// overrideKeys maps override keys onto their section
var overrideKeys = map[string]string{
	"default":      "filehash",
	"level":        "verbose",
	"debug":        "verbose",
	"hash_workers": "performance",
	"hash_buffer":  "performance",
	"max_depth":    "walk",
	"dir_workers":  "walk",
}

// ApplyOverrides applies command-line overrides to the configuration
// Accepts strings like "default:sha256", "level:2", "debug:walk", "hash_workers:8"
func (c *Config) ApplyOverrides(overrides []string) error {
	for _, override := range overrides {
		parts := strings.SplitN(override, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid override format '%s', expected 'key:value'", override)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		sectionName, ok := overrideKeys[key]
		if !ok {
			return fmt.Errorf("unsupported override key '%s' (supported: default, level, debug, hash_workers, hash_buffer, max_depth, dir_workers)", key)
		}
		c.ini.Section(sectionName).Key(key).SetValue(value)
	}

	return nil
}

// Validate checks every configured value
func (c *Config) Validate() error {
	allConfig := c.GetAllConfig()

	if err := ValidateHashAlgorithm(allConfig.Hash.Default); err != nil {
		return err
	}
	if err := ValidateVerboseLevel(allConfig.Verbose.Level); err != nil {
		return err
	}
	if err := ValidateHashWorkers(allConfig.Performance.HashWorkers); err != nil {
		return err
	}
	if _, err := ParseHumanSize(allConfig.Performance.HashBuffer); err != nil {
		return fmt.Errorf("invalid hash buffer: %w", err)
	}
	if err := ValidateMaxDepth(allConfig.Walk.MaxDepth); err != nil {
		return err
	}
	if err := ValidateDirWorkers(allConfig.Walk.DirWorkers); err != nil {
		return err
	}
	return nil
}

// ValidateHashAlgorithm validates that a hash algorithm is supported
func ValidateHashAlgorithm(algorithm string) error {
	if _, err := GetHashAlgorithm(algorithm); err != nil {
		return fmt.Errorf("%w (supported: sha1, sha256, sha512, blake3)", err)
	}
	return nil
}

// ValidateVerboseLevel validates that a verbose level is valid
func ValidateVerboseLevel(level int) error {
	if level < 0 || level > 3 {
		return fmt.Errorf("invalid verbose level: %d (supported: 0-3)", level)
	}
	return nil
}

// ValidateHashWorkers validates that the hash worker count is reasonable
func ValidateHashWorkers(workers int) error {
	if workers < 1 {
		return fmt.Errorf("hash workers must be at least 1, got: %d", workers)
	}
	if workers > 64 {
		return fmt.Errorf("hash workers should not exceed 64, got: %d", workers)
	}
	return nil
}

// ValidateMaxDepth validates the traversal depth bound
func ValidateMaxDepth(depth int) error {
	if depth < 1 {
		return fmt.Errorf("max depth must be at least 1, got: %d", depth)
	}
	return nil
}

// ValidateDirWorkers validates the concurrent sub-directory task bound
func ValidateDirWorkers(workers int) error {
	if workers < 1 {
		return fmt.Errorf("dir workers must be at least 1, got: %d", workers)
	}
	if workers > 256 {
		return fmt.Errorf("dir workers should not exceed 256, got: %d", workers)
	}
	return nil
}

// ParseHumanSize parses human-readable size strings (e.g., "2M", "512k", "1G")
func ParseHumanSize(sizeStr string) (int, error) {
	if sizeStr == "" {
		return 0, fmt.Errorf("empty size string")
	}

	sizeStr = strings.ToUpper(strings.TrimSpace(sizeStr))

	var numPart string
	var suffix string
	for i, char := range sizeStr {
		if char >= '0' && char <= '9' || char == '.' {
			numPart += string(char)
		} else {
			suffix = sizeStr[i:]
			break
		}
	}

	if numPart == "" {
		return 0, fmt.Errorf("no numeric part in size string: %s", sizeStr)
	}

	num, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric part in size string %s: %w", sizeStr, err)
	}

	var multiplier float64
	switch suffix {
	case "", "B":
		multiplier = 1
	case "K", "KB":
		multiplier = 1024
	case "M", "MB":
		multiplier = 1024 * 1024
	case "G", "GB":
		multiplier = 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("unknown size suffix in %s", sizeStr)
	}

	size := int(num * multiplier)
	if size <= 0 {
		return 0, fmt.Errorf("size must be positive: %s", sizeStr)
	}
	return size, nil
}
