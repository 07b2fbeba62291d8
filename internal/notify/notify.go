// Package notify implements the process-wide toast bus. The bus is a
// constructed singleton owned by the application, not ambient package
// state: everything that publishes or renders toasts receives the *Bus.
package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Severity classifies a toast.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// DefaultDuration is how long a toast stays visible unless overridden.
const DefaultDuration = 5 * time.Second

// Toast is one notification in the active set.
type Toast struct {
	ID        string        `json:"id"`
	Severity  Severity      `json:"severity"`
	Title     string        `json:"title"`
	Message   string        `json:"message,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	CreatedAt time.Time     `json:"created_at"`

	seq uint64
}

// EventKind distinguishes bus events.
type EventKind string

const (
	EventCreated   EventKind = "created"
	EventDismissed EventKind = "dismissed"
)

// Event is delivered to subscribers on every toast transition. Expiry and
// manual dismissal both emit EventDismissed so subscribers track the active
// set with one code path.
type Event struct {
	Kind  EventKind
	Toast Toast
}

// Handler processes bus events.
type Handler func(Event)

type handlerEntry struct {
	id int64
	fn Handler
}

type activeToast struct {
	toast Toast
	timer *time.Timer
}

// Bus is the toast channel. Safe for concurrent use; handlers are invoked
// outside the lock in subscription order.
type Bus struct {
	mu       sync.Mutex
	active   map[string]*activeToast
	handlers []handlerEntry
	nextID   int64
	seq      uint64
	duration time.Duration
	now      func() time.Time
	closed   bool
}

// Option configures a Bus.
type Option func(*Bus)

// WithDefaultDuration overrides the default toast lifetime.
func WithDefaultDuration(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.duration = d
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) {
		if now != nil {
			b.now = now
		}
	}
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		active:   make(map[string]*activeToast),
		duration: DefaultDuration,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish emits a toast with the default duration.
func (b *Bus) Publish(severity Severity, title, message string) Toast {
	return b.PublishFor(severity, title, message, 0)
}

// PublishFor emits a toast that expires after d; d <= 0 selects the default.
// The toast self-dismisses when its duration elapses unless dismissed first.
func (b *Bus) PublishFor(severity Severity, title, message string, d time.Duration) Toast {
	if d <= 0 {
		d = b.duration
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return Toast{}
	}
	b.seq++
	toast := Toast{
		ID:        uuid.NewString(),
		Severity:  severity,
		Title:     title,
		Message:   message,
		Duration:  d,
		CreatedAt: b.now(),
		seq:       b.seq,
	}
	entry := &activeToast{toast: toast}
	entry.timer = time.AfterFunc(d, func() { b.Dismiss(toast.ID) })
	b.active[toast.ID] = entry
	handlers := b.snapshotHandlersLocked()
	b.mu.Unlock()

	for _, h := range handlers {
		h.fn(Event{Kind: EventCreated, Toast: toast})
	}
	return toast
}

// Dismiss removes a toast from the active set. Dismissing an unknown or
// already-removed id is a no-op and emits nothing.
func (b *Bus) Dismiss(id string) {
	b.mu.Lock()
	entry, ok := b.active[id]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.active, id)
	entry.timer.Stop()
	handlers := b.snapshotHandlersLocked()
	b.mu.Unlock()

	for _, h := range handlers {
		h.fn(Event{Kind: EventDismissed, Toast: entry.toast})
	}
}

// snapshotHandlersLocked copies the handler slice so dispatch can run
// outside the lock. Callers must hold b.mu.
func (b *Bus) snapshotHandlersLocked() []handlerEntry {
	return append([]handlerEntry(nil), b.handlers...)
}

// Subscribe registers a handler and returns its unsubscribe function.
// Unsubscribing twice is safe.
func (b *Bus) Subscribe(fn Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers = append(b.handlers, handlerEntry{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, h := range b.handlers {
				if h.id == id {
					b.handlers = append(b.handlers[:i], b.handlers[i+1:]...)
					return
				}
			}
		})
	}
}

// Active returns the live toasts in publish order.
func (b *Bus) Active() []Toast {
	b.mu.Lock()
	toasts := make([]Toast, 0, len(b.active))
	for _, entry := range b.active {
		toasts = append(toasts, entry.toast)
	}
	b.mu.Unlock()

	sort.Slice(toasts, func(i, j int) bool { return toasts[i].seq < toasts[j].seq })
	return toasts
}

// Close stops all expiry timers and drops every subscriber. Publishing on a
// closed bus is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, entry := range b.active {
		entry.timer.Stop()
		delete(b.active, id)
	}
	b.handlers = nil
}
