package cashier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIgnoreManagerMissingFile(t *testing.T) {
	root := t.TempDir()
	im := NewIgnoreManager(root)

	require.NoError(t, im.LoadIgnorePatterns())
	assert.False(t, im.HasPatterns())
	assert.False(t, im.ShouldIgnore("anything"))
	assert.Equal(t, filepath.Join(root, ".cashier", "ignore"), im.GetIgnoreFilePath())
	assert.NoFileExists(t, im.GetIgnoreFilePath())
}

func TestIgnoreManagerPatterns(t *testing.T) {
	root := t.TempDir()
	im := NewIgnoreManager(root)
	require.NoError(t, os.MkdirAll(filepath.Dir(im.GetIgnoreFilePath()), 0755))

	content := `# build output
^build(/|$)

\.o$
`
	require.NoError(t, os.WriteFile(im.GetIgnoreFilePath(), []byte(content), 0644))
	require.NoError(t, im.LoadIgnorePatterns())
	require.True(t, im.HasPatterns())

	tests := []struct {
		path string
		want bool
	}{
		{"build", true},
		{"build/out.bin", true},
		{"buildscripts", false},
		{"src/main.o", true},
		{"src/main.c", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, im.ShouldIgnore(tt.path))
		})
	}

	// Loading again is a no-op
	require.NoError(t, im.LoadIgnorePatterns())
	require.NoError(t, im.AddPattern(`^tmp/`))
	assert.True(t, im.ShouldIgnore("tmp/x"))
}

func TestIgnoreManagerInvalidPattern(t *testing.T) {
	root := t.TempDir()
	im := NewIgnoreManager(root)
	require.NoError(t, os.MkdirAll(filepath.Dir(im.GetIgnoreFilePath()), 0755))
	require.NoError(t, os.WriteFile(im.GetIgnoreFilePath(), []byte("ok\n[unclosed\n"), 0644))

	err := im.LoadIgnorePatterns()
	assert.ErrorContains(t, err, "line 2")
	assert.Error(t, im.AddPattern("("))
}
