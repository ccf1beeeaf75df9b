package cashier

import (
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"
)

// Markers for entries present in only one of the compared trees
const (
	OnlyInFirstMarker  = ">>>!"
	OnlyInSecondMarker = "!<<<"
)

// TreeDifference is one pair of corresponding nodes whose digests differ
type TreeDifference struct {
	Path         string
	IsDir        bool
	First        *TreeNode
	Second       *TreeNode
	OnlyInFirst  []string // directory names carry a trailing "/"
	OnlyInSecond []string
}

// CompareTrees walks two exported trees in lock-step by name and returns the
// differing nodes in pre-order. Equal subtrees are not descended into.
func CompareTrees(first, second *TreeNode) []TreeDifference {
	var diffs []TreeDifference
	if first == nil || second == nil {
		return diffs
	}
	compareNodes(first, second, first.DirName, true, &diffs)
	return diffs
}

func compareNodes(first, second *TreeNode, nodePath string, isDir bool, diffs *[]TreeDifference) {
	if first.Hash == second.Hash && first.NameHash == second.NameHash {
		return
	}

	idx := len(*diffs)
	*diffs = append(*diffs, TreeDifference{
		Path:   nodePath,
		IsDir:  isDir,
		First:  first,
		Second: second,
	})

	type pair struct {
		name          string
		first, second *TreeNode
		isDir         bool
	}
	var common []pair

	for _, kind := range []struct {
		firstList, secondList []*TreeNode
		isDir                 bool
	}{
		{first.SubFiles, second.SubFiles, false},
		{first.SubDirs, second.SubDirs, true},
	} {
		firstByName := indexByName(kind.firstList)
		secondByName := indexByName(kind.secondList)
		suffix := ""
		if kind.isDir {
			suffix = "/"
		}

		for _, name := range sortedNames(firstByName) {
			if other, ok := secondByName[name]; ok {
				common = append(common, pair{name, firstByName[name], other, kind.isDir})
			} else {
				(*diffs)[idx].OnlyInFirst = append((*diffs)[idx].OnlyInFirst, name+suffix)
			}
		}
		for _, name := range sortedNames(secondByName) {
			if _, ok := firstByName[name]; !ok {
				(*diffs)[idx].OnlyInSecond = append((*diffs)[idx].OnlyInSecond, name+suffix)
			}
		}
	}

	for _, p := range common {
		compareNodes(p.first, p.second, path.Join(nodePath, p.name), p.isDir, diffs)
	}
}

func indexByName(nodes []*TreeNode) map[string]*TreeNode {
	byName := make(map[string]*TreeNode, len(nodes))
	for _, n := range nodes {
		byName[n.DirName] = n
	}
	return byName
}

func sortedNames(byName map[string]*TreeNode) []string {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WriteDifferences prints each differing path followed by its one-sided
// entries. With details, both digest pairs and a unified diff of the two child
// listings are added.
func WriteDifferences(w io.Writer, diffs []TreeDifference, details bool) error {
	for _, diff := range diffs {
		suffix := ""
		if diff.IsDir {
			suffix = "/"
		}
		if _, err := fmt.Fprintf(w, "%s%s\n", diff.Path, suffix); err != nil {
			return err
		}

		if details {
			if _, err := fmt.Fprintf(w, "= %s differs =\n1:%s-%s\n2:%s-%s\n",
				diff.Path,
				diff.First.Hash, diff.First.NameHash,
				diff.Second.Hash, diff.Second.NameHash); err != nil {
				return err
			}
		}

		if err := writeOneSided(w, OnlyInFirstMarker, "in 1 but not 2", diff.OnlyInFirst, details); err != nil {
			return err
		}
		if err := writeOneSided(w, OnlyInSecondMarker, "in 2 but not 1", diff.OnlyInSecond, details); err != nil {
			return err
		}

		if details && diff.IsDir {
			listing, err := listingDiff(diff)
			if err != nil {
				return err
			}
			if _, err := io.WriteString(w, listing); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeOneSided prints the marker line for each entry. With details each entry
// also gets its own header and a "<kind>: <name> <where>" line, kind being
// subdirs or subfiles.
func writeOneSided(w io.Writer, marker, where string, names []string, details bool) error {
	for _, name := range names {
		if _, err := fmt.Fprintf(w, "%s %s\n", marker, name); err != nil {
			return err
		}
		if !details {
			continue
		}
		kind := "subfiles"
		bare := name
		if strings.HasSuffix(name, "/") {
			kind = "subdirs"
			bare = strings.TrimSuffix(name, "/")
		}
		if _, err := fmt.Fprintf(w, "= %s differs =\n%s: %s %s\n", bare, kind, bare, where); err != nil {
			return err
		}
	}
	return nil
}

// childListing renders a node's children one per line, directories first
func childListing(n *TreeNode) []string {
	var lines []string
	for _, d := range n.SubDirs {
		lines = append(lines, fmt.Sprintf("%s/ %s %s\n", d.DirName, d.NameHash, d.Hash))
	}
	for _, f := range n.SubFiles {
		lines = append(lines, fmt.Sprintf("%s %s %s\n", f.DirName, f.NameHash, f.Hash))
	}
	return lines
}

func listingDiff(diff TreeDifference) (string, error) {
	u := difflib.UnifiedDiff{
		A:        childListing(diff.First),
		B:        childListing(diff.Second),
		FromFile: "1/" + diff.Path,
		ToFile:   "2/" + diff.Path,
		Context:  1,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return "", fmt.Errorf("failed to diff listings of %s: %w", diff.Path, err)
	}
	return s, nil
}
