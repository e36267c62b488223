package hooks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

// EventType defines the type of a hook event.
type EventType string

// --- Event Type Constants ---
const (
	// Load lifecycle
	EventPreLoad  EventType = "PreLoad"
	EventPostLoad EventType = "PostLoad"

	// Save lifecycle
	EventPreSave  EventType = "PreSave"
	EventPostSave EventType = "PostSave"

	// Save progress, once per stage step
	EventProgress EventType = "Progress"

	// Header cache
	EventOnHeaderCacheHit  EventType = "OnHeaderCacheHit"
	EventOnHeaderCacheMiss EventType = "OnHeaderCacheMiss"
)

// --- HookManager Interface and Implementation ---

// HookManager defines the interface for managing and triggering hooks.
type HookManager interface {
	// Register adds a listener for a specific event type.
	Register(eventType EventType, listener HookListener)
	// Trigger fires all registered listeners for a given event.
	// It handles synchronous vs. asynchronous execution based on the event type and listener preference.
	Trigger(ctx context.Context, event HookEvent) error
	// Stop waits for all asynchronous listeners to complete. Useful for graceful shutdown.
	Stop()
}

// HookEvent is the interface that all event objects must implement.
type HookEvent interface {
	// Type returns the type of the event.
	Type() EventType
	// Payload returns the data associated with the event.
	Payload() interface{}
}

// HookListener receives events it was registered for.
type HookListener interface {
	OnEvent(ctx context.Context, event HookEvent) error
	// Priority orders listeners; lower runs first.
	Priority() int
	// IsAsync requests asynchronous delivery. Pre-hooks and progress events
	// are always delivered synchronously.
	IsAsync() bool
}

// BaseEvent provides a base implementation for HookEvent.
type BaseEvent struct {
	eventType EventType
	payload   interface{}
}

func (e *BaseEvent) Type() EventType      { return e.eventType }
func (e *BaseEvent) Payload() interface{} { return e.payload }

// PreLoadPayload is sent before a file is opened. A listener error cancels
// the load.
type PreLoadPayload struct {
	Path    string
	MaxRows int
}

func NewPreLoadEvent(payload PreLoadPayload) HookEvent {
	return &BaseEvent{eventType: EventPreLoad, payload: payload}
}

// PostLoadPayload is sent after a load finishes, successfully or not.
type PostLoadPayload struct {
	Path      string
	Fields    int
	Records   int
	BytesRead int64
	Duration  time.Duration
	Error     error
}

func NewPostLoadEvent(payload PostLoadPayload) HookEvent {
	return &BaseEvent{eventType: EventPostLoad, payload: payload}
}

// PreSavePayload is sent before anything is written. A listener error
// cancels the save.
type PreSavePayload struct {
	Path    string
	Columns []string
	Rows    int
}

func NewPreSaveEvent(payload PreSavePayload) HookEvent {
	return &BaseEvent{eventType: EventPreSave, payload: payload}
}

// PostSavePayload is sent after a save finishes, successfully or not.
type PostSavePayload struct {
	Path         string
	Records      int
	BytesWritten int64
	Duration     time.Duration
	Error        error
}

func NewPostSaveEvent(payload PostSavePayload) HookEvent {
	return &BaseEvent{eventType: EventPostSave, payload: payload}
}

// ProgressPayload reports coarse progress through one save stage. Every
// stage ends with Percent == 100 before the next stage begins.
type ProgressPayload struct {
	Stage   string
	Current int
	Total   int
	Percent float64
}

// NewProgressEvent computes Percent from current and total. A stage with no
// work is complete.
func NewProgressEvent(stage string, current, total int) HookEvent {
	pct := 100.0
	if total > 0 {
		pct = float64(current) * 100 / float64(total)
	}
	return &BaseEvent{eventType: EventProgress, payload: ProgressPayload{
		Stage: stage, Current: current, Total: total, Percent: pct,
	}}
}

// HeaderCachePayload identifies the file whose parsed header was looked up.
type HeaderCachePayload struct {
	Key string
}

func NewHeaderCacheHitEvent(key string) HookEvent {
	return &BaseEvent{eventType: EventOnHeaderCacheHit, payload: HeaderCachePayload{Key: key}}
}

func NewHeaderCacheMissEvent(key string) HookEvent {
	return &BaseEvent{eventType: EventOnHeaderCacheMiss, payload: HeaderCachePayload{Key: key}}
}

// ProgressFunc adapts a plain callback to a HookListener for EventProgress.
type ProgressFunc func(ProgressPayload)

func (f ProgressFunc) OnEvent(_ context.Context, event HookEvent) error {
	if p, ok := event.Payload().(ProgressPayload); ok {
		f(p)
	}
	return nil
}

func (f ProgressFunc) Priority() int { return 0 }
func (f ProgressFunc) IsAsync() bool { return false }

// listenerWithPriority wraps a listener with its priority for heap management.
type listenerWithPriority struct {
	listener HookListener
	priority int
}

// DefaultHookManager is a concrete implementation of HookManager.
type DefaultHookManager struct {
	// The map stores slices of listeners, kept sorted by priority.
	listeners map[EventType][]*listenerWithPriority
	mu        sync.RWMutex
	wg        sync.WaitGroup // For tracking async listeners
	logger    *slog.Logger
}

// NewHookManager creates a new DefaultHookManager.
func NewHookManager(logger *slog.Logger) HookManager {
	if logger == nil {
		// Default to a discard logger to prevent nil panics if no logger is provided.
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &DefaultHookManager{
		listeners: make(map[EventType][]*listenerWithPriority),
		logger:    logger,
	}
}

// Register adds a listener for a specific event type, maintaining priority order.
func (m *DefaultHookManager) Register(eventType EventType, listener HookListener) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := &listenerWithPriority{
		listener: listener,
		priority: listener.Priority(),
	}

	l := m.listeners[eventType]

	// Insert after every listener of equal priority so registration order
	// breaks ties.
	idx := sort.Search(len(l), func(i int) bool {
		return l[i].priority > item.priority
	})

	// Trigger iterates the old slice without the lock, so never write into
	// its backing array.
	m.listeners[eventType] = slices.Insert(slices.Clone(l), idx, item)
}

// Trigger fires all registered listeners for a given event in priority order.
func (m *DefaultHookManager) Trigger(ctx context.Context, event HookEvent) error {
	m.mu.RLock()
	listeners, ok := m.listeners[event.Type()]
	m.mu.RUnlock()

	if !ok || len(listeners) == 0 {
		return nil
	}

	isPreHook := strings.HasPrefix(string(event.Type()), "Pre")
	mustBeSync := isPreHook || event.Type() == EventProgress

	for _, item := range listeners {
		isListenerAsync := item.listener.IsAsync()

		if mustBeSync || !isListenerAsync {
			// --- Synchronous Execution ---
			if mustBeSync && isListenerAsync {
				m.logger.Warn("Listener requested async execution for an event that is always synchronous.", "event", event.Type(), "priority", item.priority)
			}

			if err := item.listener.OnEvent(ctx, event); err != nil {
				if isPreHook {
					// For Pre-hooks, the error is critical and cancels the operation.
					return fmt.Errorf("pre-hook for event %s (priority %d) failed: %w", event.Type(), item.priority, err)
				}
				m.logger.Error("Error from synchronous hook listener", "event", event.Type(), "priority", item.priority, "error", err)
			}
		} else {
			// --- Asynchronous Execution ---
			m.wg.Add(1)
			go func(currentItem *listenerWithPriority) {
				defer m.wg.Done()
				if err := currentItem.listener.OnEvent(ctx, event); err != nil {
					m.logger.Error("Error from asynchronous hook listener", "event", event.Type(), "priority", currentItem.priority, "error", err)
				}
			}(item)
		}
	}
	return nil
}

// Stop waits for all asynchronous listeners to complete.
func (m *DefaultHookManager) Stop() {
	m.wg.Wait()
}
