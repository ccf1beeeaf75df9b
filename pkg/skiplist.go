package cashier

import (
	"strings"

	zcsl "github.com/mattkeenan/zerocopyskiplist"
)

// Child kinds, used as the skiplist context
const (
	DirContext  = "dir"
	FileContext = "file"
)

// childRef is the item stored in the child skiplist
type childRef struct {
	node Node
}

// childList keeps a directory's children in canonical order
type childList struct {
	skiplist *zcsl.ZeroCopySkiplist[childRef, string, string]
}

// childSortKey orders directories before files, then by normalized name. The
// raw name breaks ties between names that differ only in case.
func childSortKey(n Node) string {
	kind := "1"
	if n.IsDir() {
		kind = "0"
	}
	raw := n.Name()
	if r, ok := n.(interface{ RawName() string }); ok {
		raw = r.RawName()
	}
	return kind + n.Name() + "\x00" + raw
}

func newChildList() *childList {
	getKeyFromItem := func(ref *childRef) string {
		return childSortKey(ref.node)
	}
	getItemSize := func(ref *childRef) int {
		return 1
	}
	cmpKey := func(a, b string) int {
		return strings.Compare(a, b)
	}

	return &childList{
		skiplist: zcsl.MakeZeroCopySkiplist[childRef, string, string](
			16,
			getKeyFromItem,
			getItemSize,
			cmpKey,
		),
	}
}

// Insert adds a child, returning false if one with the same key exists
func (cl *childList) Insert(n Node) bool {
	context := FileContext
	if n.IsDir() {
		context = DirContext
	}
	return cl.skiplist.Insert(&childRef{node: n}, context)
}

// Delete removes a child
func (cl *childList) Delete(n Node) bool {
	return cl.skiplist.Delete(childSortKey(n))
}

// ForEach iterates through children in order with a callback
func (cl *childList) ForEach(callback func(Node, string) bool) {
	for current := cl.skiplist.First(); current != nil; current = current.Next() {
		ref := current.Item()
		if ref == nil || ref.node == nil {
			continue
		}
		if !callback(ref.node, current.Context()) {
			break
		}
	}
}

// ForEachContext iterates through children of one kind
func (cl *childList) ForEachContext(context string, callback func(Node) bool) {
	cl.ForEach(func(n Node, nodeContext string) bool {
		if nodeContext == context {
			return callback(n)
		}
		return true
	})
}

// Nodes returns all children in order
func (cl *childList) Nodes() []Node {
	out := make([]Node, 0, cl.Length())
	cl.ForEach(func(n Node, _ string) bool {
		out = append(out, n)
		return true
	})
	return out
}

// Length returns the number of children
func (cl *childList) Length() int {
	return cl.skiplist.Length()
}
