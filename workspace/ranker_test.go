package workspace

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRanker_SortsNewestFirstWithPathTieBreak(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTree(t, fs, "/ws", map[string]string{
		"old.txt":   "o",
		"mid_b.txt": "b",
		"mid_a.txt": "a",
		"new.txt":   "n",
	})
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	setMtime(t, fs, "/ws/old.txt", base)
	setMtime(t, fs, "/ws/mid_b.txt", base.Add(time.Hour))
	setMtime(t, fs, "/ws/mid_a.txt", base.Add(time.Hour))
	setMtime(t, fs, "/ws/new.txt", base.Add(2*time.Hour))

	list := NewRanker(fs).Rank([]string{"/ws/old.txt", "/ws/mid_b.txt", "/ws/new.txt", "/ws/mid_a.txt"})

	var got []string
	for _, e := range list.Entries {
		got = append(got, e.Path)
	}
	assert.Equal(t, []string{"/ws/new.txt", "/ws/mid_a.txt", "/ws/mid_b.txt", "/ws/old.txt"}, got)

	for i := 1; i < len(list.Entries); i++ {
		prev, cur := list.Entries[i-1], list.Entries[i]
		assert.False(t, cur.ModifiedAt.After(prev.ModifiedAt))
		if cur.ModifiedAt.Equal(prev.ModifiedAt) {
			assert.Less(t, prev.Path, cur.Path)
		}
	}
}

func TestRanker_ExcludesUnstatablePaths(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTree(t, fs, "/ws", map[string]string{"here.txt": "h"})
	require.NoError(t, fs.MkdirAll("/ws/dir", 0755))

	list := NewRanker(fs).Rank([]string{"/ws/here.txt", "/ws/gone.txt", "/ws/dir"})
	require.Equal(t, 1, list.Len())
	assert.Equal(t, "/ws/here.txt", list.Entries[0].Path)
	assert.Equal(t, int64(1), list.Entries[0].Size)
}

func TestRanker_StableAcrossRuns(t *testing.T) {
	fs := afero.NewMemMapFs()
	same := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tree := map[string]string{"c.txt": "", "a.txt": "", "b/a.txt": "", "b.txt": ""}
	writeTree(t, fs, "/ws", tree)
	for rel := range tree {
		setMtime(t, fs, "/ws/"+rel, same)
	}

	ix := NewIndexer(fs)
	r := NewRanker(fs)
	run := func() []FileEntry {
		files, err := ix.Index(context.Background(), "/ws", nil)
		require.NoError(t, err)
		return r.Rank(files).Entries
	}

	first := run()
	assert.Equal(t, first, run())
	assert.Equal(t, "/ws/a.txt", first[0].Path)
	assert.Equal(t, "/ws/b.txt", first[1].Path)
}

func TestRanker_SetsScanTime(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	fixNow(t, now)

	list := NewRanker(afero.NewMemMapFs()).Rank(nil)
	assert.Equal(t, now, list.ScannedAt)
	assert.Empty(t, list.Entries)
}

func TestFreshness(t *testing.T) {
	loc := time.FixedZone("test", 2*3600)
	now := time.Date(2024, 6, 10, 9, 30, 0, 0, loc)

	tests := []struct {
		name string
		at   time.Time
		want FreshnessBucket
	}{
		{"just now", now.Add(-time.Minute), FreshToday},
		{"start of day", time.Date(2024, 6, 10, 0, 0, 1, 0, loc), FreshToday},
		{"future", now.Add(48 * time.Hour), FreshToday},
		{"yesterday late", time.Date(2024, 6, 9, 23, 59, 0, 0, loc), FreshWeek},
		{"two days", now.Add(-48 * time.Hour), FreshWeek},
		{"just under a week", now.Add(-7*24*time.Hour + time.Second), FreshWeek},
		{"exactly a week", now.Add(-7 * 24 * time.Hour), FreshOlder},
		{"last year", now.AddDate(-1, 0, 0), FreshOlder},
		{"same day other zone", time.Date(2024, 6, 10, 0, 30, 0, 0, time.UTC), FreshToday},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Freshness(tt.at, now))
		})
	}
}

func TestRankedList_Annotated(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	list := &RankedList{
		Root: "/ws",
		Entries: []FileEntry{
			{Path: "/ws/a.txt", ModifiedAt: now.Add(-time.Hour)},
			{Path: "/ws/b/c.txt", ModifiedAt: now.Add(-48 * time.Hour)},
			{Path: "/ws/old/d.txt", ModifiedAt: now.AddDate(0, -2, 0)},
		},
	}

	items := list.Annotated(now)
	require.Len(t, items, 3)
	assert.Equal(t, "a.txt", items[0].RelativePath)
	assert.Equal(t, FreshToday, items[0].Freshness)
	assert.Equal(t, "b/c.txt", items[1].RelativePath)
	assert.Equal(t, "c.txt", items[1].Name)
	assert.Equal(t, FreshWeek, items[1].Freshness)
	assert.Equal(t, FreshOlder, items[2].Freshness)

	var nilList *RankedList
	assert.Nil(t, nilList.Annotated(now))
	assert.Equal(t, 0, nilList.Len())
}
