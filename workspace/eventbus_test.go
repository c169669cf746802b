package workspace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_SubscribeAndPublish(t *testing.T) {
	bus := NewEventBus()
	a := bus.Subscribe()
	b := bus.Subscribe()
	defer bus.Unsubscribe(a)
	defer bus.Unsubscribe(b)

	bus.Publish(Event{Type: EventScanCompleted})

	for _, ch := range []chan Event{a, b} {
		select {
		case ev := <-ch:
			assert.Equal(t, EventScanCompleted, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestEventBus_SlowClientDoesNotBlock(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	for i := 0; i < 100; i++ {
		bus.Publish(Event{Type: EventScanCompleted})
	}
	assert.Len(t, ch, cap(ch))
}

func TestEventBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	_, ok := <-ch
	assert.False(t, ok)
	bus.Publish(Event{Type: EventScanCompleted})
}

func TestEventBus_Notifier(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fixNow(t, now)

	bus := NewEventBus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	var n Notifier = bus
	n.ArchiveCompleted("/ws/out.zip", 2_500_000)
	n.ArchiveFailed("disk full")
	n.ScanCompleted(&RankedList{Entries: make([]FileEntry, 3)})

	done := <-ch
	assert.Equal(t, EventArchiveCompleted, done.Type)
	assert.Equal(t, "/ws/out.zip", done.OutputPath)
	assert.Equal(t, int64(2_500_000), done.SizeBytes)
	assert.Equal(t, "2.50 MB", done.Size)
	assert.Equal(t, now, done.Time)

	failed := <-ch
	assert.Equal(t, EventArchiveFailed, failed.Type)
	assert.Equal(t, "disk full", failed.Message)

	scan := <-ch
	assert.Equal(t, EventScanCompleted, scan.Type)
	require.NotNil(t, scan.Files)
	assert.Equal(t, 3, *scan.Files)
}

func TestMultiNotifier(t *testing.T) {
	a, b := &recordingNotifier{}, &recordingNotifier{}
	m := MultiNotifier{a, LogNotifier{}, b}

	m.ArchiveCompleted("/ws/x.zip", 10)
	m.ArchiveFailed("boom")
	m.ScanCompleted(nil)

	for _, r := range []*recordingNotifier{a, b} {
		assert.Len(t, r.completed, 1)
		assert.Equal(t, []string{"boom"}, r.failed)
		assert.Equal(t, 1, r.scans)
	}
}
