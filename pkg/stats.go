package cashier

import (
	"sync/atomic"
)

// runCounters is updated concurrently by directory tasks and hash workers
type runCounters struct {
	dirsVisited    atomic.Int64
	dirsRecomputed atomic.Int64
	filesHashed    atomic.Int64
	recordsWritten atomic.Int64
	warnings       atomic.Int64
}

// RunStats summarises the work done by one run
type RunStats struct {
	DirsVisited    int64 // Directories whose record was loaded
	DirsRecomputed int64 // Directories whose aggregate was rebuilt
	FilesHashed    int64 // File contents read
	RecordsWritten int64 // Record files replaced on disk
	Warnings       int64 // Recovered per-node problems
}

func (rc *runCounters) snapshot() RunStats {
	return RunStats{
		DirsVisited:    rc.dirsVisited.Load(),
		DirsRecomputed: rc.dirsRecomputed.Load(),
		FilesHashed:    rc.filesHashed.Load(),
		RecordsWritten: rc.recordsWritten.Load(),
		Warnings:       rc.warnings.Load(),
	}
}
