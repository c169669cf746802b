package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// writeTree creates files (relative path → content) under root on fs.
func writeTree(t *testing.T, fs afero.Fs, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, fs.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, afero.WriteFile(fs, p, []byte(content), 0644))
	}
}

func setMtime(t *testing.T, fs afero.Fs, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, fs.Chtimes(path, mtime, mtime))
}

// relAll maps absolute paths to sorted forward-slash paths relative to root.
func relAll(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(rel))
	}
	sort.Strings(out)
	return out
}

func fixNow(t *testing.T, now time.Time) {
	t.Helper()
	orig := nowFunc
	nowFunc = func() time.Time { return now }
	t.Cleanup(func() { nowFunc = orig })
}

// --- recordingFs: remembers every Open call ---

type recordingFs struct {
	afero.Fs
	mu     sync.Mutex
	opened []string
}

func (r *recordingFs) Open(name string) (afero.File, error) {
	r.mu.Lock()
	r.opened = append(r.opened, filepath.Clean(name))
	r.mu.Unlock()
	return r.Fs.Open(name)
}

func (r *recordingFs) openedPaths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.opened...)
}

// --- faultyFs: injects failures on chosen paths ---

var errInjected = errors.New("injected failure")

type faultyFs struct {
	afero.Fs
	denyOpen     map[string]bool // Open fails for these paths
	failWrites   bool            // files from OpenFile fail every Write
	failRemove   bool
	removeCalled bool
}

func (f *faultyFs) Open(name string) (afero.File, error) {
	if f.denyOpen[filepath.Clean(name)] {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	return f.Fs.Open(name)
}

func (f *faultyFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	file, err := f.Fs.OpenFile(name, flag, perm)
	if err != nil || !f.failWrites {
		return file, err
	}
	return &failingFile{File: file}, nil
}

func (f *faultyFs) Remove(name string) error {
	f.removeCalled = true
	if f.failRemove {
		return errInjected
	}
	return f.Fs.Remove(name)
}

type failingFile struct {
	afero.File
}

func (f *failingFile) Write(p []byte) (int, error) {
	return 0, errInjected
}

// --- manualClock: timers fire only when Advance passes their deadline ---

type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
	// leaky timers ignore Stop, as a real timer can when it has already
	// expired and its callback is about to run.
	leaky bool
}

type manualTimer struct {
	c       *manualClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.c.leaky || t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// --- recordingNotifier ---

type recordingNotifier struct {
	mu        sync.Mutex
	completed []ArchiveResult
	failed    []string
	scans     int
}

func (n *recordingNotifier) ArchiveCompleted(outputPath string, sizeBytes int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, ArchiveResult{OutputPath: outputPath, SizeBytes: sizeBytes})
}

func (n *recordingNotifier) ArchiveFailed(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, message)
}

func (n *recordingNotifier) ScanCompleted(*RankedList) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.scans++
}
