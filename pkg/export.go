package cashier

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// TreeNode is one node of an exported tree document. Directories always
// carry non-nil SubFiles and SubDirs, encoded as arrays even when empty.
// Files leave both nil and the keys are omitted.
type TreeNode struct {
	DirName  string      `json:"dirname"`
	Hash     Digest      `json:"hash"`
	NameHash Digest      `json:"namehash"`
	SubFiles []*TreeNode `json:"subfiles"`
	SubDirs  []*TreeNode `json:"subdirs"`
}

// fileTreeNode is the encoded form of a file node
type fileTreeNode struct {
	DirName  string `json:"dirname"`
	Hash     Digest `json:"hash"`
	NameHash Digest `json:"namehash"`
}

// MarshalJSON omits the child keys for file nodes only
func (n TreeNode) MarshalJSON() ([]byte, error) {
	if n.SubFiles == nil && n.SubDirs == nil {
		return json.Marshal(fileTreeNode{DirName: n.DirName, Hash: n.Hash, NameHash: n.NameHash})
	}
	type dirTreeNode TreeNode
	dir := dirTreeNode(n)
	if dir.SubFiles == nil {
		dir.SubFiles = []*TreeNode{}
	}
	if dir.SubDirs == nil {
		dir.SubDirs = []*TreeNode{}
	}
	return json.Marshal(dir)
}

// buildTreeNode assembles the export node for dir from its already built
// subdirectory nodes.
func buildTreeNode(dir *DirNode, childTrees map[*DirNode]*TreeNode) *TreeNode {
	tree := &TreeNode{
		DirName:  dir.RawName(),
		Hash:     dir.Digest(),
		NameHash: dir.StructureDigest(),
		SubFiles: []*TreeNode{},
		SubDirs:  []*TreeNode{},
	}

	dir.children.ForEach(func(n Node, context string) bool {
		switch context {
		case DirContext:
			if sub, ok := n.(*DirNode); ok {
				if child := childTrees[sub]; child != nil {
					tree.SubDirs = append(tree.SubDirs, child)
				}
			}
		case FileContext:
			if file, ok := n.(*FileNode); ok {
				tree.SubFiles = append(tree.SubFiles, &TreeNode{
					DirName:  file.RawName(),
					Hash:     file.Digest(),
					NameHash: file.StructureDigest(),
				})
			}
		}
		return true
	})
	return tree
}

// WriteTree encodes tree as indented JSON
func WriteTree(w io.Writer, tree *TreeNode) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(tree); err != nil {
		return fmt.Errorf("failed to encode tree: %w", err)
	}
	return nil
}

// WriteTreeFile writes tree to path
func WriteTreeFile(path string, tree *TreeNode) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteTree(file, tree); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// ReadTree decodes a tree document
func ReadTree(r io.Reader) (*TreeNode, error) {
	var tree TreeNode
	if err := json.NewDecoder(r).Decode(&tree); err != nil {
		return nil, fmt.Errorf("failed to decode tree: %w", err)
	}
	return &tree, nil
}

// LoadTree reads a tree document from path
func LoadTree(path string) (*TreeNode, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	tree, err := ReadTree(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tree, nil
}
