package workspace

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
)

// ServiceConfig wires the core components together.
type ServiceConfig struct {
	Fs   afero.Fs
	Root string
	// Pattern returns the current ignore pattern. It is called on every
	// scan and every compress, so configuration changes apply immediately.
	Pattern     func() string
	QuietPeriod time.Duration
	Parallelism int
	Archive     ArchiveOptions
	Notifier    Notifier
	Clock       Clock
}

// Service is the composition root: it owns the published ranked list and
// the debouncer, and exposes the refresh and compress commands.
//
// Refreshes are not serialized. Under continuous change two scans may
// overlap and whichever finishes last is published; the list is a display
// aid, so the next quiet period corrects any staleness.
type Service struct {
	fs        afero.Fs
	root      string
	pattern   func() string
	matchers  *MatcherCache
	indexer   *Indexer
	ranker    *Ranker
	builder   *ArchiveBuilder
	notifier  Notifier
	debouncer *Debouncer

	ranked atomic.Pointer[RankedList]

	mu     sync.Mutex
	runCtx context.Context
}

// NewService creates a Service. Missing dependencies get defaults: the OS
// filesystem, an empty ignore pattern and a LogNotifier.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Pattern == nil {
		cfg.Pattern = func() string { return "" }
	}
	if cfg.Notifier == nil {
		cfg.Notifier = LogNotifier{}
	}

	indexer := NewIndexer(cfg.Fs, WithParallelism(cfg.Parallelism))
	s := &Service{
		fs:       cfg.Fs,
		root:     filepath.Clean(cfg.Root),
		pattern:  cfg.Pattern,
		matchers: NewMatcherCache(0),
		indexer:  indexer,
		ranker:   NewRanker(cfg.Fs),
		builder:  NewArchiveBuilder(cfg.Fs, indexer, cfg.Archive),
		notifier: cfg.Notifier,
		runCtx:   context.Background(),
	}
	s.debouncer = NewDebouncer(cfg.QuietPeriod, s.refreshFromDebounce, WithClock(cfg.Clock))
	return s
}

// Root returns the workspace root.
func (s *Service) Root() string {
	return s.root
}

// Ranked returns the last published list. Before the first scan it is empty.
func (s *Service) Ranked() *RankedList {
	if l := s.ranked.Load(); l != nil {
		return l
	}
	return &RankedList{Root: s.root}
}

// Refresh runs one index and rank pass and publishes the result.
// If the root cannot be opened an empty list is published and the
// *ScanRootError is returned.
func (s *Service) Refresh(ctx context.Context) (*RankedList, error) {
	l := sub("service")
	start := time.Now()
	rule := s.matchers.Get(s.pattern())

	paths, err := s.indexer.Index(ctx, s.root, rule)
	if err != nil {
		recordScan(start, 0, err)
		var rootErr *ScanRootError
		if errors.As(err, &rootErr) {
			empty := &RankedList{Root: s.root, ScannedAt: nowFunc()}
			s.ranked.Store(empty)
			s.notifier.ScanCompleted(empty)
		}
		l.Warn("refresh failed", "root", s.root, "err", err)
		return nil, err
	}

	list := s.ranker.Rank(paths)
	list.Root = s.root
	s.ranked.Store(list)
	recordScan(start, list.Len(), nil)
	l.Debug("refresh complete", "files", list.Len(), "took", time.Since(start))
	s.notifier.ScanCompleted(list)
	return list, nil
}

// HandleEvent feeds one watcher event to the debouncer.
func (s *Service) HandleEvent(ev WatchEvent) {
	s.debouncer.OnEvent(ev)
}

// RefreshPending reports whether a debounced refresh is scheduled.
func (s *Service) RefreshPending() bool {
	return s.debouncer.Pending()
}

func (s *Service) refreshFromDebounce() {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
		sub("service").Warn("debounced refresh failed", "err", err)
	}
}

// Run performs an initial refresh and then forwards events to the
// debouncer until ctx is done or events is closed.
func (s *Service) Run(ctx context.Context, events <-chan WatchEvent) error {
	l := sub("service")
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()
	defer s.debouncer.Stop()

	l.Info("service starting", "root", s.root)
	if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
		l.Warn("initial refresh failed", "err", err)
	}

	for {
		select {
		case <-ctx.Done():
			l.Info("service stopping, context cancelled")
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				l.Info("event stream closed")
				return nil
			}
			s.HandleEvent(ev)
		}
	}
}

// Close stops the debouncer; pending refreshes are dropped.
func (s *Service) Close() {
	s.debouncer.Stop()
}

// CompressWholeTree archives root (the service root when empty) into
// "{base}_{timestamp}.zip" inside it, honoring the ignore pattern.
func (s *Service) CompressWholeTree(ctx context.Context, root string) (*ArchiveResult, error) {
	if root == "" {
		root = s.root
	}
	root = filepath.Clean(root)
	return s.runArchive(ctx, ArchiveJob{
		RootDir:    root,
		Mode:       ModeWholeTree,
		OutputPath: filepath.Join(root, WholeTreeArchiveName(root, nowFunc())),
		Ignore:     s.matchers.Get(s.pattern()),
	})
}

// CompressSelection archives the given files and directories into
// "selected-items.zip" inside root (the service root when empty).
func (s *Service) CompressSelection(ctx context.Context, paths []string, root string) (*ArchiveResult, error) {
	if root == "" {
		root = s.root
	}
	root = filepath.Clean(root)
	return s.runArchive(ctx, ArchiveJob{
		RootDir:    root,
		Mode:       ModeSelection,
		Selection:  paths,
		OutputPath: filepath.Join(root, SelectionArchiveName),
		Ignore:     s.matchers.Get(s.pattern()),
	})
}

// runArchive turns the builder outcome into exactly one notifier call.
func (s *Service) runArchive(ctx context.Context, job ArchiveJob) (*ArchiveResult, error) {
	res, err := s.builder.Build(ctx, job)
	if err != nil {
		s.notifier.ArchiveFailed(err.Error())
		return nil, err
	}
	s.notifier.ArchiveCompleted(res.OutputPath, res.SizeBytes)
	return res, nil
}
