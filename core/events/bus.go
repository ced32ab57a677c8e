package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event types.
const (
	TypeUpdate       = "update"
	TypeTagsDeleted  = "tags-deleted"
	TypeTagsModified = "tags-modified"
)

// Event is one notification.
type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Library string    `json:"library"`
	Since   int       `json:"since"`
	Version int       `json:"version"`
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// Handler receives published events.
type Handler func(Event)

// Publisher is what engine components depend on.
type Publisher interface {
	Publish(Event)
}

// Bus is an in-process publish/subscribe list.
type Bus struct {
	mu       sync.RWMutex
	handlers map[int]Handler
	nextID   int
	logger   *zap.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{handlers: make(map[int]Handler), logger: logger}
}

// Subscribe registers a handler and returns its unsubscribe function.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// Channel subscribes a buffered channel. Events that do not fit are dropped.
func (b *Bus) Channel(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	var once sync.Once
	var closed bool
	var mu sync.Mutex

	unsubscribe := b.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- e:
		default:
			b.logger.Warn("Dropping event for slow subscriber", zap.String("type", e.Type), zap.String("library", e.Library))
		}
	})

	return ch, func() {
		once.Do(func() {
			unsubscribe()
			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()
		})
	}
}

// Publish delivers an event to every subscriber. ID and At are filled when empty.
func (b *Bus) Publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(h, e)
	}
}

func (b *Bus) deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked", zap.String("type", e.Type), zap.Any("panic", r))
		}
	}()
	h(e)
}
