package workspace

import (
	"sync"
	"time"
)

// Notifier receives the externally visible outcomes of core operations.
type Notifier interface {
	ArchiveCompleted(outputPath string, sizeBytes int64)
	ArchiveFailed(message string)
	ScanCompleted(list *RankedList)
}

// Event is a notification broadcast to SSE clients.
type Event struct {
	Type       string    `json:"type"` // "archive-completed"|"archive-failed"|"scan-completed"
	OutputPath string    `json:"outputPath,omitempty"`
	SizeBytes  int64     `json:"sizeBytes,omitempty"`
	Size       string    `json:"size,omitempty"`
	Message    string    `json:"message,omitempty"`
	Files      *int      `json:"files,omitempty"`
	Time       time.Time `json:"time"`
}

const (
	EventArchiveCompleted = "archive-completed"
	EventArchiveFailed    = "archive-failed"
	EventScanCompleted    = "scan-completed"
)

// EventBus broadcasts Events to all subscribers. It implements Notifier.
type EventBus struct {
	mu      sync.RWMutex
	clients map[chan Event]struct{}
}

// NewEventBus creates a new EventBus.
func NewEventBus() *EventBus {
	return &EventBus{
		clients: make(map[chan Event]struct{}),
	}
}

// Subscribe registers a new client and returns its event channel.
func (b *EventBus) Subscribe() chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.clients, ch)
	b.mu.Unlock()
	close(ch)
}

// Publish sends an event to all connected clients.
// Slow clients are skipped (non-blocking send).
func (b *EventBus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- event:
		default:
			// slow client, drop event
		}
	}
}

func (b *EventBus) ArchiveCompleted(outputPath string, sizeBytes int64) {
	b.Publish(Event{
		Type:       EventArchiveCompleted,
		OutputPath: outputPath,
		SizeBytes:  sizeBytes,
		Size:       FormatSize(sizeBytes),
		Time:       nowFunc(),
	})
}

func (b *EventBus) ArchiveFailed(message string) {
	b.Publish(Event{Type: EventArchiveFailed, Message: message, Time: nowFunc()})
}

func (b *EventBus) ScanCompleted(list *RankedList) {
	n := list.Len()
	b.Publish(Event{Type: EventScanCompleted, Files: &n, Time: nowFunc()})
}

// LogNotifier reports outcomes through the package logger.
type LogNotifier struct{}

func (LogNotifier) ArchiveCompleted(outputPath string, sizeBytes int64) {
	sub("notify").Info("compression completed", "output", outputPath, "size", FormatSize(sizeBytes))
}

func (LogNotifier) ArchiveFailed(message string) {
	sub("notify").Error("compression failed", "err", message)
}

func (LogNotifier) ScanCompleted(list *RankedList) {
	sub("notify").Debug("scan completed", "files", list.Len())
}

// MultiNotifier forwards every call to each notifier in order.
type MultiNotifier []Notifier

func (m MultiNotifier) ArchiveCompleted(outputPath string, sizeBytes int64) {
	for _, n := range m {
		n.ArchiveCompleted(outputPath, sizeBytes)
	}
}

func (m MultiNotifier) ArchiveFailed(message string) {
	for _, n := range m {
		n.ArchiveFailed(message)
	}
}

func (m MultiNotifier) ScanCompleted(list *RankedList) {
	for _, n := range m {
		n.ScanCompleted(list)
	}
}
