package workspace

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/afero"
)

// Ranker orders indexed files by modification time.
type Ranker struct {
	fs afero.Fs
}

// NewRanker creates a Ranker that stats files through fs.
func NewRanker(fs afero.Fs) *Ranker {
	return &Ranker{fs: fs}
}

// Rank stats each path and returns them newest first. Paths whose
// modification time cannot be read, or that turn out to be directories,
// are left out.
func (r *Ranker) Rank(paths []string) *RankedList {
	l := sub("ranker")
	entries := make([]FileEntry, 0, len(paths))
	for _, p := range paths {
		info, err := r.fs.Stat(p)
		if err != nil {
			l.Debug("excluding unreadable file", "path", p, "err", err)
			continue
		}
		if info.IsDir() {
			continue
		}
		entries = append(entries, FileEntry{
			Path:       p,
			ModifiedAt: info.ModTime(),
			Size:       info.Size(),
		})
	}

	SortEntries(entries)
	return &RankedList{Entries: entries, ScannedAt: nowFunc()}
}

// SortEntries sorts by ModifiedAt descending, then Path ascending.
func SortEntries(entries []FileEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.ModifiedAt.Equal(b.ModifiedAt) {
			return a.ModifiedAt.After(b.ModifiedAt)
		}
		return a.Path < b.Path
	})
}

// FreshnessBucket classifies an entry's age for display.
type FreshnessBucket string

const (
	FreshToday FreshnessBucket = "today"
	FreshWeek  FreshnessBucket = "week"
	FreshOlder FreshnessBucket = "older"
)

const freshWeekWindow = 7 * 24 * time.Hour

// Freshness buckets modifiedAt relative to now. Same calendar day (in now's
// location) is today, and so is anything in the future.
func Freshness(modifiedAt, now time.Time) FreshnessBucket {
	if !modifiedAt.Before(now) {
		return FreshToday
	}
	m := modifiedAt.In(now.Location())
	y1, m1, d1 := m.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return FreshToday
	}
	if now.Sub(modifiedAt) < freshWeekWindow {
		return FreshWeek
	}
	return FreshOlder
}

// RankedItem is a FileEntry with read-time display metadata.
type RankedItem struct {
	FileEntry
	Name         string          `json:"name"`
	RelativePath string          `json:"relativePath"`
	Freshness    FreshnessBucket `json:"freshness"`
}

// Annotated returns the entries with their freshness computed against now.
// Nothing is stored on the list itself.
func (l *RankedList) Annotated(now time.Time) []RankedItem {
	if l == nil {
		return nil
	}
	items := make([]RankedItem, len(l.Entries))
	for i, e := range l.Entries {
		rel := e.Path
		if l.Root != "" {
			if r, err := filepath.Rel(l.Root, e.Path); err == nil {
				rel = filepath.ToSlash(r)
			}
		}
		items[i] = RankedItem{
			FileEntry:    e,
			Name:         filepath.Base(e.Path),
			RelativePath: rel,
			Freshness:    Freshness(e.ModifiedAt, now),
		}
	}
	return items
}
