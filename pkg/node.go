package cashier

import (
	"path/filepath"
)

// Node is either a FileNode or a DirNode
type Node interface {
	Name() string // normalized base name
	Path() string
	IsDir() bool
	Digest() Digest
	StructureDigest() Digest
	ModTime() float64
}

// FileNode is a regular file. Its content digest is filled lazily, only when
// the owning directory is recomputed.
type FileNode struct {
	path      string
	baseName  string
	mtime     float64
	digest    Digest
	structure Digest
}

// NewFileNode creates a file node; structure is the digest of the normalized name
func NewFileNode(path string, mtime float64, structure Digest) *FileNode {
	return &FileNode{
		path:      path,
		baseName:  filepath.Base(path),
		mtime:     mtime,
		structure: structure,
	}
}

func (f *FileNode) Name() string            { return NormalizeName(f.baseName) }
func (f *FileNode) RawName() string         { return f.baseName }
func (f *FileNode) Path() string            { return f.path }
func (f *FileNode) IsDir() bool             { return false }
func (f *FileNode) Digest() Digest          { return f.digest }
func (f *FileNode) StructureDigest() Digest { return f.structure }
func (f *FileNode) ModTime() float64        { return f.mtime }

// SetDigest records the content digest once the file has been read
func (f *FileNode) SetDigest(d Digest) {
	f.digest = d
}

// DirNode is a directory together with its aggregated record
type DirNode struct {
	path     string
	baseName string
	record   Record
	children *childList
}

// NewDirNode creates a directory node with an empty child set
func NewDirNode(path string) *DirNode {
	return &DirNode{
		path:     path,
		baseName: filepath.Base(path),
		children: newChildList(),
	}
}

func (d *DirNode) Name() string            { return NormalizeName(d.baseName) }
func (d *DirNode) RawName() string         { return d.baseName }
func (d *DirNode) Path() string            { return d.path }
func (d *DirNode) IsDir() bool             { return true }
func (d *DirNode) Digest() Digest          { return d.record.Content }
func (d *DirNode) StructureDigest() Digest { return d.record.Structure }
func (d *DirNode) ModTime() float64        { return d.record.MTime }

// Record returns the directory's aggregated record
func (d *DirNode) Record() Record {
	return d.record
}

// SetRecord swaps in a new aggregate for the directory
func (d *DirNode) SetRecord(r Record) {
	d.record = r
}

// AddChild inserts a child keeping the canonical order
func (d *DirNode) AddChild(n Node) bool {
	return d.children.Insert(n)
}

// RemoveChild drops a child from the ordered set
func (d *DirNode) RemoveChild(n Node) bool {
	return d.children.Delete(n)
}

// Children returns the children in canonical order: subdirectories first, then
// files, each sorted by normalized name.
func (d *DirNode) Children() []Node {
	return d.children.Nodes()
}

// NamedDigests returns the children's (name, structure digest) pairs in order
func (d *DirNode) NamedDigests() []NamedDigest {
	nodes := d.Children()
	out := make([]NamedDigest, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, NamedDigest{Name: n.Name(), Structure: n.StructureDigest()})
	}
	return out
}

// TimedDigests returns the children's (content digest, mtime) pairs in order
func (d *DirNode) TimedDigests() []TimedDigest {
	nodes := d.Children()
	out := make([]TimedDigest, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, TimedDigest{Content: n.Digest(), MTime: n.ModTime()})
	}
	return out
}
