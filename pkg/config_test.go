package cashier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	root := t.TempDir()
	configPath := DefaultConfigPath(root)

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, configPath, cfg.Path())

	all := cfg.GetAllConfig()
	assert.Equal(t, "sha1", all.Hash.Default)
	assert.Equal(t, 0, all.Verbose.Level)
	assert.Equal(t, "", all.Verbose.Debug)
	assert.Equal(t, 4, all.Performance.HashWorkers)
	assert.Equal(t, "2M", all.Performance.HashBuffer)
	assert.Equal(t, 4096, all.Walk.MaxDepth)
	assert.Equal(t, 8, all.Walk.DirWorkers)
	require.NoError(t, cfg.Validate())

	// Loading never creates the file
	assert.NoDirExists(t, filepath.Join(root, ConfigDirName))
}

func TestConfigLoadFromFile(t *testing.T) {
	root := t.TempDir()
	configPath := DefaultConfigPath(root)
	require.NoError(t, os.MkdirAll(filepath.Dir(configPath), 0755))

	content := `[filehash]
default = blake3

[verbose]
level = 2
debug = walk,record

[performance]
hash_workers = 8
hash_buffer = 512k
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	all := cfg.GetAllConfig()
	assert.Equal(t, "blake3", all.Hash.Default)
	assert.Equal(t, 2, all.Verbose.Level)
	assert.Equal(t, "walk,record", all.Verbose.Debug)
	assert.Equal(t, 8, all.Performance.HashWorkers)
	assert.Equal(t, "512k", all.Performance.HashBuffer)
	assert.Equal(t, DefaultMaxDepth, all.Walk.MaxDepth, "missing section falls back to default")

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "blake3", opts.Algorithm)
	assert.Equal(t, 8, opts.HashWorkers)
	assert.Equal(t, 512*1024, opts.HashBufferSize)
	assert.Equal(t, DefaultMaxDepth, opts.MaxDepth)
	assert.Equal(t, DefaultDirWorkers, opts.DirWorkers)
}

func TestConfigSaveRoundTrip(t *testing.T) {
	root := t.TempDir()
	configPath := DefaultConfigPath(root)

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	require.NoError(t, cfg.ApplyOverrides([]string{"default:sha256", "max_depth:16"}))
	require.NoError(t, cfg.Save())
	assert.FileExists(t, configPath)

	reloaded, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, "sha256", reloaded.GetHashConfig().Default)
	assert.Equal(t, 16, reloaded.GetWalkConfig().MaxDepth)
	assert.Contains(t, reloaded.String(), "[filehash]")
}

func TestConfigApplyOverrides(t *testing.T) {
	tests := []struct {
		name      string
		overrides []string
		wantErr   bool
		check     func(t *testing.T, all *AllConfig)
	}{
		{
			name:      "algorithm",
			overrides: []string{"default:sha512"},
			check: func(t *testing.T, all *AllConfig) {
				assert.Equal(t, "sha512", all.Hash.Default)
			},
		},
		{
			name:      "several keys",
			overrides: []string{"level:1", "debug:walk", "hash_workers:2", "hash_buffer:64k"},
			check: func(t *testing.T, all *AllConfig) {
				assert.Equal(t, 1, all.Verbose.Level)
				assert.Equal(t, "walk", all.Verbose.Debug)
				assert.Equal(t, 2, all.Performance.HashWorkers)
				assert.Equal(t, "64k", all.Performance.HashBuffer)
			},
		},
		{
			name:      "missing separator",
			overrides: []string{"default"},
			wantErr:   true,
		},
		{
			name:      "unknown key",
			overrides: []string{"colour:blue"},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(DefaultConfigPath(t.TempDir()))
			require.NoError(t, err)

			err = cfg.ApplyOverrides(tt.overrides)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg.GetAllConfig())
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		override string
		wantErr  bool
	}{
		{"default:blake3", false},
		{"default:md5", true},
		{"level:3", false},
		{"level:4", true},
		{"hash_workers:64", false},
		{"hash_workers:0", true},
		{"hash_workers:65", true},
		{"hash_buffer:1G", false},
		{"hash_buffer:12Q", true},
		{"max_depth:1", false},
		{"max_depth:0", true},
		{"dir_workers:1", false},
		{"dir_workers:0", true},
		{"dir_workers:257", true},
	}

	for _, tt := range tests {
		t.Run(tt.override, func(t *testing.T) {
			cfg, err := LoadConfig(DefaultConfigPath(t.TempDir()))
			require.NoError(t, err)
			require.NoError(t, cfg.ApplyOverrides([]string{tt.override}))

			err = cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				_, optErr := OptionsFromConfig(cfg)
				assert.Error(t, optErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseHumanSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"1024", 1024, false},
		{"512B", 512, false},
		{"512k", 512 * 1024, false},
		{"2M", 2 * 1024 * 1024, false},
		{"2MB", 2 * 1024 * 1024, false},
		{"1.5K", 1536, false},
		{"1G", 1024 * 1024 * 1024, false},
		{"", 0, true},
		{"M", 0, true},
		{"10X", 0, true},
		{"0", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseHumanSize(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
