package cashier

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// walker performs one bottom-up pass over the tree. Each directory is a task
// that starts its subdirectory tasks, joins them, and only then aggregates.
type walker struct {
	rootDir   string
	algorithm *HashAlgorithm
	store     *RecordStore
	ignore    *IgnoreManager
	hashes    *hashManager
	maxDepth  int
	dirSlots  chan struct{}
	log       *zap.SugaredLogger
	counters  *runCounters
	export    bool
}

// visitResult is what a finished directory task hands to its parent
type visitResult struct {
	node *DirNode
	tree *TreeNode
}

// modTimeSeconds converts a modification time into the record's unit
func modTimeSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func (w *walker) warnf(format string, args ...interface{}) {
	w.counters.warnings.Add(1)
	w.log.Warnf(format, args...)
}

// isIgnored applies the ignore patterns to a root-relative path
func (w *walker) isIgnored(path string) bool {
	if w.ignore == nil || !w.ignore.HasPatterns() {
		return false
	}
	relPath, err := filepath.Rel(w.rootDir, path)
	if err != nil {
		return false
	}
	return w.ignore.ShouldIgnore(relPath)
}

// needsRecompute is the single branch point of the engine: a child newer than
// the stored record, or a changed structure, forces recomputation.
func needsRecompute(prior Record, children []Node, newStructure Digest) bool {
	for _, child := range children {
		if child.ModTime() > prior.MTime {
			return true
		}
	}
	if newStructure != prior.Structure {
		return true
	}
	return prior.Content.IsZero()
}

// listDir enumerates the immediate children of dirPath that take part in the
// hash: hidden entries, symlinks, ignored paths and special files are skipped.
func (w *walker) listDir(dirPath string) ([]string, []*FileNode, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read directory %s: %w", dirPath, err)
	}

	var subdirs []string
	var files []*FileNode
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, HiddenPrefix) {
			continue
		}
		childPath := filepath.Join(dirPath, name)
		if entry.Type()&fs.ModeSymlink != 0 {
			if IsDebugEnabled("walk") {
				VerboseLog(2, "walk: skipping symlink %s", childPath)
			}
			continue
		}
		if w.isIgnored(childPath) {
			if IsDebugEnabled("walk") {
				VerboseLog(2, "walk: ignoring %s", childPath)
			}
			continue
		}

		switch {
		case entry.IsDir():
			subdirs = append(subdirs, childPath)
		case entry.Type().IsRegular():
			info, err := entry.Info()
			if err != nil {
				w.warnf("unreadable file %s excluded: %v", childPath, err)
				continue
			}
			files = append(files, NewFileNode(childPath, modTimeSeconds(info.ModTime()), w.algorithm.FileStructureDigest(name)))
		}
	}
	return subdirs, files, nil
}

// visit processes dirPath after all of its subdirectories
func (w *walker) visit(ctx context.Context, dirPath string, depth int) (*visitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.counters.dirsVisited.Add(1)

	old, err := w.store.Load(dirPath)
	if err != nil {
		w.warnf("ignoring record of %s: %v", dirPath, err)
		old = nil
	}
	var prior Record
	if old != nil {
		prior = *old
	}

	subdirs, files, err := w.listDir(dirPath)
	if err != nil {
		return nil, err
	}

	if len(subdirs) > 0 && depth >= w.maxDepth {
		for _, sub := range subdirs {
			w.warnf("sub-directory %s exceeds max depth %d, excluded from %s", sub, w.maxDepth, dirPath)
		}
		subdirs = nil
	}

	results, errs := w.visitSubdirs(ctx, subdirs, depth+1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := NewDirNode(dirPath)
	childTrees := make(map[*DirNode]*TreeNode)
	for i, sub := range subdirs {
		if errs[i] != nil || results[i] == nil {
			w.warnf("sub-directory %s has no record, excluded from %s: %v", sub, dirPath, errs[i])
			continue
		}
		dir.AddChild(results[i].node)
		if results[i].tree != nil {
			childTrees[results[i].node] = results[i].tree
		}
	}
	for _, file := range files {
		dir.AddChild(file)
	}

	newStructure := w.algorithm.StructureDigest(dir.NamedDigests())
	recompute := needsRecompute(prior, dir.Children(), newStructure)
	if IsDebugEnabled("walk") {
		VerboseLog(2, "walk: %s recompute=%t", dirPath, recompute)
	}

	if recompute || w.export {
		dropped, err := w.hashFiles(ctx, dir, files)
		if err != nil {
			return nil, err
		}
		if dropped > 0 {
			newStructure = w.algorithm.StructureDigest(dir.NamedDigests())
			recompute = recompute || newStructure != prior.Structure
		}
	}

	if recompute {
		content, mtime := w.algorithm.Combine(dir.TimedDigests())
		record := Record{Content: content, Structure: newStructure, MTime: mtime}
		dir.SetRecord(record)
		w.counters.dirsRecomputed.Add(1)

		if err := w.store.Save(dirPath, record); err != nil {
			w.warnf("failed to persist record for %s: %v", dirPath, err)
		} else {
			w.counters.recordsWritten.Add(1)
		}
	} else {
		dir.SetRecord(prior)
	}

	result := &visitResult{node: dir}
	if w.export {
		result.tree = buildTreeNode(dir, childTrees)
	}
	return result, nil
}

// visitSubdirs runs one task per sub-directory and joins them. A task gets its
// own goroutine only while a dir slot is free; otherwise the caller runs it
// inline. No task ever blocks waiting for a slot, so the join cannot deadlock
// and the walk uses at most cap(dirSlots) extra goroutines.
func (w *walker) visitSubdirs(ctx context.Context, subdirs []string, depth int) ([]*visitResult, []error) {
	results := make([]*visitResult, len(subdirs))
	errs := make([]error, len(subdirs))

	var wg sync.WaitGroup
	for i, sub := range subdirs {
		select {
		case w.dirSlots <- struct{}{}:
			wg.Add(1)
			go func(i int, sub string) {
				defer wg.Done()
				defer func() { <-w.dirSlots }()
				results[i], errs[i] = w.visit(ctx, sub, depth)
			}(i, sub)
		default:
			results[i], errs[i] = w.visit(ctx, sub, depth)
		}
	}
	wg.Wait()
	return results, errs
}

// hashFiles reads every file child through the hash pool and waits for them.
// Files that fail to read are removed from dir with a warning; the count of
// removed files is returned. Only cancellation is an error.
func (w *walker) hashFiles(ctx context.Context, dir *DirNode, files []*FileNode) (int, error) {
	if len(files) == 0 {
		return 0, nil
	}

	var done sync.WaitGroup
	jobs := make([]*hashJob, len(files))
	for i, file := range files {
		jobs[i] = &hashJob{node: file, done: &done}
		done.Add(1)
		w.hashes.Submit(jobs[i])
	}
	done.Wait()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	dropped := 0
	for _, job := range jobs {
		if job.err == nil {
			continue
		}
		w.warnf("unreadable file %s excluded: %v", job.node.Path(), job.err)
		dir.RemoveChild(job.node)
		dropped++
	}
	return dropped, nil
}
