package cashier

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(name, hash string) *TreeNode {
	return &TreeNode{DirName: name, Hash: Digest(hash), NameHash: Digest("n-" + name)}
}

func TestCompareTreesEqual(t *testing.T) {
	a := &TreeNode{DirName: "root", Hash: "h", NameHash: "n", SubFiles: []*TreeNode{leaf("x", "1")}}
	b := &TreeNode{DirName: "copy", Hash: "h", NameHash: "n", SubFiles: []*TreeNode{leaf("x", "1")}}
	assert.Empty(t, CompareTrees(a, b))
	assert.Empty(t, CompareTrees(a, nil))
}

func TestCompareTrees(t *testing.T) {
	first := &TreeNode{
		DirName: "root", Hash: "r1", NameHash: "rn1",
		SubFiles: []*TreeNode{leaf("same", "1"), leaf("changed", "2"), leaf("gone", "3")},
		SubDirs: []*TreeNode{
			{DirName: "docs", Hash: "d1", NameHash: "dn", SubFiles: []*TreeNode{leaf("a", "4")}},
			{DirName: "old", Hash: "o", NameHash: "on"},
		},
	}
	second := &TreeNode{
		DirName: "root", Hash: "r2", NameHash: "rn2",
		SubFiles: []*TreeNode{leaf("same", "1"), leaf("changed", "X"), leaf("added", "5")},
		SubDirs: []*TreeNode{
			{DirName: "docs", Hash: "d2", NameHash: "dn", SubFiles: []*TreeNode{leaf("a", "Y")}},
			{DirName: "new", Hash: "w", NameHash: "wn"},
		},
	}

	diffs := CompareTrees(first, second)
	require.Len(t, diffs, 4)

	paths := make([]string, len(diffs))
	for i, d := range diffs {
		paths[i] = d.Path
	}
	assert.Equal(t, []string{"root", "root/changed", "root/docs", "root/docs/a"}, paths)

	assert.True(t, diffs[0].IsDir)
	assert.Equal(t, []string{"gone", "old/"}, diffs[0].OnlyInFirst)
	assert.Equal(t, []string{"added", "new/"}, diffs[0].OnlyInSecond)
	assert.False(t, diffs[1].IsDir)
	assert.True(t, diffs[2].IsDir)

	var out bytes.Buffer
	require.NoError(t, WriteDifferences(&out, diffs, false))
	assert.Equal(t, `root/
>>>! gone
>>>! old/
!<<< added
!<<< new/
root/changed
root/docs/
root/docs/a
`, out.String())
}

func TestWriteDifferencesDetails(t *testing.T) {
	first := &TreeNode{DirName: "root", Hash: "r1", NameHash: "n", SubFiles: []*TreeNode{leaf("f", "1")}}
	second := &TreeNode{DirName: "root", Hash: "r2", NameHash: "n", SubFiles: []*TreeNode{leaf("f", "2")}}

	var out bytes.Buffer
	require.NoError(t, WriteDifferences(&out, CompareTrees(first, second), true))

	text := out.String()
	assert.Contains(t, text, "= root differs =\n1:r1-n\n2:r2-n\n")
	assert.Contains(t, text, "--- 1/root\n+++ 2/root\n")
	assert.Contains(t, text, "-f n-f 1\n+f n-f 2\n")
	assert.Contains(t, text, "= root/f differs =\n1:1-n-f\n2:2-n-f\n")
}

func TestWriteDifferencesOneSidedDetails(t *testing.T) {
	first := &TreeNode{
		DirName: "root", Hash: "r1", NameHash: "n1",
		SubFiles: []*TreeNode{leaf("gone", "1")},
		SubDirs:  []*TreeNode{{DirName: "old", Hash: "o", NameHash: "on", SubFiles: []*TreeNode{}, SubDirs: []*TreeNode{}}},
	}
	second := &TreeNode{
		DirName: "root", Hash: "r2", NameHash: "n2",
		SubFiles: []*TreeNode{leaf("added", "2")},
		SubDirs:  []*TreeNode{},
	}

	var out bytes.Buffer
	require.NoError(t, WriteDifferences(&out, CompareTrees(first, second), true))

	text := out.String()
	assert.Contains(t, text, ">>>! gone\n= gone differs =\nsubfiles: gone in 1 but not 2\n")
	assert.Contains(t, text, ">>>! old/\n= old differs =\nsubdirs: old in 1 but not 2\n")
	assert.Contains(t, text, "!<<< added\n= added differs =\nsubfiles: added in 2 but not 1\n")

	// Without details only the marker lines are printed
	out.Reset()
	require.NoError(t, WriteDifferences(&out, CompareTrees(first, second), false))
	assert.NotContains(t, out.String(), "but not")
}

type failingWriter struct {
	allowed int
}

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.allowed <= 0 {
		return 0, assert.AnError
	}
	f.allowed--
	return len(p), nil
}

func TestWriteDifferencesWriteErrors(t *testing.T) {
	first := &TreeNode{DirName: "root", Hash: "r1", NameHash: "n", SubFiles: []*TreeNode{leaf("gone", "1"), leaf("f", "1")}}
	second := &TreeNode{DirName: "root", Hash: "r2", NameHash: "n", SubFiles: []*TreeNode{leaf("added", "2"), leaf("f", "2")}}
	diffs := CompareTrees(first, second)

	var full countingWriter
	require.NoError(t, WriteDifferences(&full, diffs, true))
	require.Greater(t, full.writes, 3)

	// Every write, not only the first, must surface its error
	for allowed := 0; allowed < full.writes; allowed++ {
		err := WriteDifferences(&failingWriter{allowed: allowed}, diffs, true)
		assert.ErrorIs(t, err, assert.AnError, "write %d", allowed)
	}
}

type countingWriter struct {
	writes int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.writes++
	return len(p), nil
}

func TestWriteTreeShape(t *testing.T) {
	tree := &TreeNode{
		DirName: "root", Hash: "h", NameHash: "n",
		SubFiles: []*TreeNode{leaf("a", "1")},
		SubDirs:  []*TreeNode{{DirName: "empty", Hash: "e", NameHash: "en", SubFiles: []*TreeNode{}, SubDirs: []*TreeNode{}}},
	}

	var out bytes.Buffer
	require.NoError(t, WriteTree(&out, tree))

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	file := doc["subfiles"].([]interface{})[0].(map[string]interface{})
	assert.NotContains(t, file, "subfiles")
	assert.NotContains(t, file, "subdirs")

	empty := doc["subdirs"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, []interface{}{}, empty["subfiles"])
	assert.Equal(t, []interface{}{}, empty["subdirs"])

	// A directory built without children still encodes both arrays
	bare := &TreeNode{DirName: "bare", Hash: "b", NameHash: "bn", SubDirs: []*TreeNode{}}
	out.Reset()
	require.NoError(t, WriteTree(&out, bare))
	assert.Contains(t, out.String(), `"subfiles": []`)

	decoded, err := ReadTree(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	assert.NotNil(t, decoded.SubFiles)
	assert.Empty(t, decoded.SubFiles)
}

func TestCompareExportedTrees(t *testing.T) {
	dir := t.TempDir()

	export := func(name, changed string) *TreeNode {
		root := filepath.Join(dir, name)
		buildTree(t, root, map[string]string{"a": "1", "d/b": "2", "d/c": changed})
		engine, _ := newTestEngine(t, root, Options{})
		result, err := engine.Export(context.Background())
		require.NoError(t, err)

		path := filepath.Join(dir, name+".json")
		require.NoError(t, WriteTreeFile(path, result.Tree))
		tree, err := LoadTree(path)
		require.NoError(t, err)
		assert.Equal(t, result.Tree, tree)
		return tree
	}

	first := export("one", "3")
	second := export("two", "changed")
	assert.Empty(t, CompareTrees(first, export("three", "3")))

	var out bytes.Buffer
	require.NoError(t, WriteDifferences(&out, CompareTrees(first, second), false))
	assert.Equal(t, []string{"one/", "one/d/", "one/d/c"}, strings.Fields(out.String()))
}

func TestLoadTreeErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadTree(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("[1,2"), 0644))
	_, err = LoadTree(bad)
	assert.ErrorContains(t, err, "failed to decode tree")
}
