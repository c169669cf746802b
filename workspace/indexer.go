package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/marusama/semaphore/v2"
	"github.com/samber/lo"
	"github.com/spf13/afero"
)

// Filter decides whether an entry found during a walk is kept.
// A rejected directory is never read.
type Filter func(path string, info os.FileInfo) bool

// IgnoreFilter keeps every entry whose basename does not match rule.
func IgnoreFilter(rule *IgnoreRule) Filter {
	return func(path string, _ os.FileInfo) bool {
		return !rule.Match(path)
	}
}

// Indexer walks a directory tree and collects the files in it.
type Indexer struct {
	fs          afero.Fs
	parallelism int
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithParallelism bounds how many directories are read at the same time.
// Values below 1 select runtime.NumCPU().
func WithParallelism(n int) IndexerOption {
	return func(ix *Indexer) {
		ix.parallelism = n
	}
}

// NewIndexer creates an Indexer reading from fs.
func NewIndexer(fs afero.Fs, opts ...IndexerOption) *Indexer {
	ix := &Indexer{fs: fs, parallelism: 1}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.parallelism < 1 {
		ix.parallelism = runtime.NumCPU()
	}
	return ix
}

// Index returns every file under root whose basename, and whose ancestors'
// basenames, do not match ignore. Directories are never returned.
func (ix *Indexer) Index(ctx context.Context, root string, ignore *IgnoreRule) ([]string, error) {
	return ix.Walk(ctx, root, IgnoreFilter(ignore))
}

// Walk collects files under root, applying keep to each entry before it is
// recorded or descended into. The walk proceeds one directory level at a
// time; directories of a level are read concurrently up to the configured
// parallelism. Unreadable subdirectories are skipped; only a failure on
// root itself is returned, as *ScanRootError.
func (ix *Indexer) Walk(ctx context.Context, root string, keep Filter) ([]string, error) {
	l := sub("indexer")
	root = filepath.Clean(root)
	if keep == nil {
		keep = func(string, os.FileInfo) bool { return true }
	}

	info, err := ix.fs.Stat(root)
	if err != nil {
		return nil, &ScanRootError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &ScanRootError{Root: root, Err: fmt.Errorf("not a directory")}
	}

	files, level, err := ix.readDir(root, keep)
	if err != nil {
		return nil, &ScanRootError{Root: root, Err: err}
	}
	l.Debug("index start", "root", root, "parallelism", ix.parallelism)

	sem := semaphore.New(ix.parallelism)
	for len(level) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Each goroutine owns one slot of found/next; no shared append.
		found := make([][]string, len(level))
		next := make([][]string, len(level))
		var wg sync.WaitGroup
		var acquireErr error
		for i, dir := range level {
			if err := sem.Acquire(ctx, 1); err != nil {
				acquireErr = err
				break
			}
			wg.Add(1)
			go func(i int, dir string) {
				defer wg.Done()
				defer sem.Release(1)
				f, d, err := ix.readDir(dir, keep)
				if err != nil {
					l.Warn("skipping unreadable directory", "path", dir, "err", err)
					return
				}
				found[i], next[i] = f, d
			}(i, dir)
		}
		wg.Wait()
		if acquireErr != nil {
			return nil, acquireErr
		}

		files = append(files, lo.Flatten(found)...)
		level = lo.Flatten(next)
	}

	l.Debug("index complete", "root", root, "files", len(files))
	return files, nil
}

// readDir lists one directory and splits the kept entries into files and
// subdirectories. Symlinks are not followed and count as files.
func (ix *Indexer) readDir(dir string, keep Filter) (files, dirs []string, err error) {
	entries, err := afero.ReadDir(ix.fs, dir)
	if err != nil {
		return nil, nil, err
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if !keep(path, e) {
			if logEnabled(slog.LevelDebug) {
				sub("indexer").Debug("pruned", "path", path, "dir", e.IsDir())
			}
			continue
		}
		if e.IsDir() {
			dirs = append(dirs, path)
			continue
		}
		files = append(files, path)
	}
	return files, dirs, nil
}
