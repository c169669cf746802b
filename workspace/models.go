package workspace

import "time"

// nowFunc is the time source, replaceable in tests.
var nowFunc = time.Now

// FileEntry is one indexed file with its modification time.
// Entries are immutable once produced and rebuilt on every scan.
type FileEntry struct {
	Path       string    `json:"path"`
	ModifiedAt time.Time `json:"modifiedAt"`
	Size       int64     `json:"size"`
}

// RankedList is the recency-sorted result of one scan: ModifiedAt descending,
// ties broken by Path ascending.
type RankedList struct {
	Root      string      `json:"root"`
	Entries   []FileEntry `json:"entries"`
	ScannedAt time.Time   `json:"scannedAt"`
}

// Len returns the number of ranked entries. Safe on a nil list.
func (l *RankedList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Entries)
}

// WatchOp is the kind of filesystem change carried by a WatchEvent.
type WatchOp string

const (
	OpChanged WatchOp = "changed"
	OpCreated WatchOp = "created"
	OpDeleted WatchOp = "deleted"
)

// WatchEvent is a single change notification from the environment's watcher.
type WatchEvent struct {
	Op   WatchOp `json:"op"`
	Path string  `json:"path"`
}

// ArchiveMode selects which files an ArchiveJob covers.
type ArchiveMode int

const (
	// ModeWholeTree archives everything under the root, filtered by the ignore rule.
	ModeWholeTree ArchiveMode = iota
	// ModeSelection archives an explicit list of files and directories.
	ModeSelection
)

func (m ArchiveMode) String() string {
	switch m {
	case ModeWholeTree:
		return "whole-tree"
	case ModeSelection:
		return "selection"
	}
	return "unknown"
}

// ArchiveJob describes one compress request. It lives only for the duration
// of a single Build call.
type ArchiveJob struct {
	RootDir    string
	Mode       ArchiveMode
	Selection  []string
	OutputPath string
	// Ignore is applied in whole-tree mode, and in selection mode only when
	// ArchiveOptions.ApplyIgnoreToSelection is set.
	Ignore *IgnoreRule
}

// ArchiveEntry maps a source file to its name inside the archive.
type ArchiveEntry struct {
	SourcePath    string
	NameInArchive string
}

// ArchiveResult is reported when an archive has been fully written.
type ArchiveResult struct {
	OutputPath string `json:"outputPath"`
	SizeBytes  int64  `json:"sizeBytes"`
	Entries    int    `json:"entries"`
	HumanSize  string `json:"size"`
}
