package cashier

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Root validation errors. These are the only user input errors.
var (
	ErrRootNotFound     = errors.New("root directory does not exist")
	ErrRootNotDirectory = errors.New("root path is not a directory")
)

// Options configures an Engine
type Options struct {
	Algorithm      string         // Digest algorithm name (default sha1)
	HashWorkers    int            // Concurrent leaf reads (default 4)
	HashBufferSize int            // Read buffer per leaf read in bytes (default 2M)
	MaxDepth       int            // Deepest directory level included (default 4096)
	DirWorkers     int            // Extra goroutines for sub-directory tasks (default 8)
	Ignore         *IgnoreManager // Optional extra exclusions
	Logger         *zap.Logger    // Diagnostic sink (default: package logger)
}

// OptionsFromConfig builds engine options from a loaded configuration
func OptionsFromConfig(cfg *Config) (Options, error) {
	if err := cfg.Validate(); err != nil {
		return Options{}, fmt.Errorf("invalid configuration: %w", err)
	}
	all := cfg.GetAllConfig()
	bufferSize, err := ParseHumanSize(all.Performance.HashBuffer)
	if err != nil {
		return Options{}, fmt.Errorf("invalid hash buffer: %w", err)
	}
	return Options{
		Algorithm:      all.Hash.Default,
		HashWorkers:    all.Performance.HashWorkers,
		HashBufferSize: bufferSize,
		MaxDepth:       all.Walk.MaxDepth,
		DirWorkers:     all.Walk.DirWorkers,
	}, nil
}

// Result is the outcome of one run
type Result struct {
	Fingerprint Digest
	Root        Record
	Stats       RunStats
	Tree        *TreeNode // Export only
}

// Engine computes the incremental fingerprint of one directory tree
type Engine struct {
	RootDir   string
	algorithm *HashAlgorithm
	store     *RecordStore
	opts      Options
}

// ValidateRoot checks that rootDir exists and is a directory
func ValidateRoot(rootDir string) error {
	info, err := os.Stat(rootDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", rootDir, ErrRootNotFound)
		}
		return fmt.Errorf("failed to stat %s: %w", rootDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", rootDir, ErrRootNotDirectory)
	}
	return nil
}

// NewEngine validates the root and prepares an engine. Nothing is written.
func NewEngine(rootDir string, opts Options) (*Engine, error) {
	if err := ValidateRoot(rootDir); err != nil {
		return nil, err
	}

	if opts.Algorithm == "" {
		opts.Algorithm = DefaultHashAlgorithm
	}
	algorithm, err := GetHashAlgorithm(opts.Algorithm)
	if err != nil {
		return nil, err
	}
	if opts.HashWorkers <= 0 {
		opts.HashWorkers = DefaultHashWorkers
	}
	if err := ValidateHashWorkers(opts.HashWorkers); err != nil {
		return nil, err
	}
	if opts.HashBufferSize <= 0 {
		opts.HashBufferSize, _ = ParseHumanSize(DefaultHashBuffer)
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.DirWorkers <= 0 {
		opts.DirWorkers = DefaultDirWorkers
	}
	if err := ValidateDirWorkers(opts.DirWorkers); err != nil {
		return nil, err
	}

	return &Engine{
		RootDir:   filepath.Clean(rootDir),
		algorithm: algorithm,
		store:     NewRecordStore(),
		opts:      opts,
	}, nil
}

// Algorithm returns the digest algorithm in use
func (e *Engine) Algorithm() *HashAlgorithm {
	return e.algorithm
}

func (e *Engine) logger() *zap.SugaredLogger {
	if e.opts.Logger != nil {
		return e.opts.Logger.Sugar()
	}
	return Logger().Sugar()
}

// Hash walks the tree bottom-up, refreshing stale records, and returns the
// fingerprint of the root. Sub-directories that could not be processed are
// excluded from their parent with a warning, so the fingerprint only covers
// what was readable.
func (e *Engine) Hash(ctx context.Context) (*Result, error) {
	return e.run(ctx, false)
}

// Export is Hash that also returns the nested tree document. Every file is
// read so the document carries per-file digests.
func (e *Engine) Export(ctx context.Context) (*Result, error) {
	return e.run(ctx, true)
}

func (e *Engine) run(ctx context.Context, export bool) (*Result, error) {
	defer VerboseEnter()()

	counters := &runCounters{}
	hashes := newHashManager(ctx, e.opts.HashWorkers, e.algorithm, e.opts.HashBufferSize, counters)
	defer hashes.Shutdown()

	w := &walker{
		rootDir:   e.RootDir,
		algorithm: e.algorithm,
		store:     e.store,
		ignore:    e.opts.Ignore,
		hashes:    hashes,
		maxDepth:  e.opts.MaxDepth,
		dirSlots:  make(chan struct{}, e.opts.DirWorkers),
		log:       e.logger(),
		counters:  counters,
		export:    export,
	}

	root, err := w.visit(ctx, e.RootDir, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", e.RootDir, err)
	}

	record := root.node.Record()
	result := &Result{
		Fingerprint: e.algorithm.Fingerprint(record.Structure, record.Content),
		Root:        record,
		Stats:       counters.snapshot(),
		Tree:        root.tree,
	}
	VerboseLog(1, "hashed %s: %d dirs visited, %d recomputed, %d files read, %d records written, %d warnings",
		e.RootDir, result.Stats.DirsVisited, result.Stats.DirsRecomputed,
		result.Stats.FilesHashed, result.Stats.RecordsWritten, result.Stats.Warnings)
	return result, nil
}

// Clean removes every record file under the tree, hidden directories included,
// without following symlinks. Failures are logged; only cancellation stops it.
// It returns the number of files removed.
func (e *Engine) Clean(ctx context.Context) (int, error) {
	log := e.logger()
	removed := 0

	err := filepath.WalkDir(e.RootDir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			log.Warnf("failed to read %s while cleaning: %v", path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			n, errs := e.store.Clean(path)
			removed += n
			for _, cleanErr := range errs {
				log.Warn(cleanErr)
			}
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("clean of %s interrupted: %w", e.RootDir, err)
	}

	VerboseLog(1, "cleaned %s: %d record files removed", e.RootDir, removed)
	return removed, nil
}
