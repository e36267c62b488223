package hooks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockListener is a mock implementation of HookListener for testing.
type mockListener struct {
	priority int
	// A channel to signal when OnEvent is called, for async tests.
	callSignal chan string
	// A slice to record the order of calls, for sync tests.
	callOrder *[]string
	name      string
	returnErr error
	isAsync   bool
	workDelay time.Duration
}

func (m *mockListener) OnEvent(ctx context.Context, event HookEvent) error {
	if m.workDelay > 0 {
		time.Sleep(m.workDelay)
	}
	if m.callOrder != nil {
		*m.callOrder = append(*m.callOrder, m.name)
	}
	if m.callSignal != nil {
		m.callSignal <- m.name
	}
	return m.returnErr
}

func (m *mockListener) Priority() int { return m.priority }
func (m *mockListener) IsAsync() bool { return m.isAsync }

func TestNewHookManager(t *testing.T) {
	manager := NewHookManager(nil)
	defaultManager, ok := manager.(*DefaultHookManager)
	if !ok {
		t.Fatalf("NewHookManager did not return a *DefaultHookManager")
	}
	if defaultManager.listeners == nil {
		t.Error("Expected listeners map to be initialized, but it was nil")
	}
	if defaultManager.logger == nil {
		t.Error("Expected logger to be initialized, but it was nil")
	}
}

func TestDefaultHookManager_Register(t *testing.T) {
	manager := NewHookManager(nil).(*DefaultHookManager)

	manager.Register(EventPreLoad, &mockListener{name: "p10", priority: 10})
	manager.Register(EventPreLoad, &mockListener{name: "p1", priority: 1})
	manager.Register(EventPreLoad, &mockListener{name: "p5a", priority: 5})
	manager.Register(EventPreLoad, &mockListener{name: "p5b", priority: 5})

	want := []string{"p1", "p5a", "p5b", "p10"}
	got := manager.listeners[EventPreLoad]
	if len(got) != len(want) {
		t.Fatalf("Expected %d listeners, got %d", len(want), len(got))
	}
	for i, name := range want {
		if n := got[i].listener.(*mockListener).name; n != name {
			t.Errorf("position %d: got %s, want %s", i, n, name)
		}
	}
}

func TestDefaultHookManager_RegisterDoesNotDisturbSnapshot(t *testing.T) {
	manager := NewHookManager(nil).(*DefaultHookManager)
	manager.Register(EventProgress, &mockListener{name: "a", priority: 1})
	manager.Register(EventProgress, &mockListener{name: "c", priority: 3})

	// Grow capacity so an in-place insert would not need to reallocate.
	manager.listeners[EventProgress] = append(make([]*listenerWithPriority, 0, 8), manager.listeners[EventProgress]...)
	snapshot := manager.listeners[EventProgress]

	manager.Register(EventProgress, &mockListener{name: "b", priority: 2})

	if n := snapshot[1].listener.(*mockListener).name; n != "c" {
		t.Errorf("snapshot taken before Register changed: position 1 is %s, want c", n)
	}
	if got := len(manager.listeners[EventProgress]); got != 3 {
		t.Fatalf("Expected 3 listeners, got %d", got)
	}
}

func TestDefaultHookManager_RegisterDuringTrigger(t *testing.T) {
	manager := NewHookManager(nil)
	manager.Register(EventProgress, ProgressFunc(func(ProgressPayload) {}))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			manager.Register(EventProgress, &mockListener{priority: i % 3})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = manager.Trigger(context.Background(), NewProgressEvent("write", i, 200))
		}
	}()
	wg.Wait()
	manager.Stop()
}

func TestDefaultHookManager_PreHookCancels(t *testing.T) {
	manager := NewHookManager(nil)
	callOrder := make([]string, 0)
	simulatedErr := errors.New("refuse")

	manager.Register(EventPreSave, &mockListener{name: "last", priority: 10, callOrder: &callOrder})
	manager.Register(EventPreSave, &mockListener{name: "first", priority: 1, callOrder: &callOrder})
	manager.Register(EventPreSave, &mockListener{name: "veto", priority: 5, callOrder: &callOrder, returnErr: simulatedErr, isAsync: true})

	err := manager.Trigger(context.Background(), NewPreSaveEvent(PreSavePayload{Path: "x.qvd"}))
	if !errors.Is(err, simulatedErr) {
		t.Fatalf("Trigger returned %v, want %v", err, simulatedErr)
	}
	if len(callOrder) != 2 || callOrder[0] != "first" || callOrder[1] != "veto" {
		t.Fatalf("unexpected call order %v", callOrder)
	}
}

func TestDefaultHookManager_PostHookErrorsAreLogged(t *testing.T) {
	manager := NewHookManager(nil)
	callOrder := make([]string, 0)
	manager.Register(EventPostLoad, &mockListener{name: "fails", priority: 1, callOrder: &callOrder, returnErr: errors.New("boom")})
	manager.Register(EventPostLoad, &mockListener{name: "runs", priority: 2, callOrder: &callOrder})

	if err := manager.Trigger(context.Background(), NewPostLoadEvent(PostLoadPayload{Path: "x.qvd"})); err != nil {
		t.Fatalf("post-hook errors must not propagate, got %v", err)
	}
	if len(callOrder) != 2 {
		t.Fatalf("expected both listeners to run, got %v", callOrder)
	}
}

func TestDefaultHookManager_AsyncPostHook(t *testing.T) {
	manager := NewHookManager(nil)
	signal := make(chan string, 1)
	manager.Register(EventPostSave, &mockListener{name: "async", isAsync: true, callSignal: signal, workDelay: 20 * time.Millisecond})

	start := time.Now()
	if err := manager.Trigger(context.Background(), NewPostSaveEvent(PostSavePayload{})); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) >= 20*time.Millisecond {
		t.Error("async listener blocked Trigger")
	}
	manager.Stop()
	select {
	case name := <-signal:
		if name != "async" {
			t.Errorf("unexpected listener %s", name)
		}
	default:
		t.Fatal("Stop returned before the async listener finished")
	}
}

func TestProgressFunc(t *testing.T) {
	manager := NewHookManager(nil)

	var mu sync.Mutex
	var got []ProgressPayload
	manager.Register(EventProgress, ProgressFunc(func(p ProgressPayload) {
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	}))

	ctx := context.Background()
	_ = manager.Trigger(ctx, NewProgressEvent("symbol-table", 1, 4))
	_ = manager.Trigger(ctx, NewProgressEvent("symbol-table", 4, 4))
	_ = manager.Trigger(ctx, NewProgressEvent("index-table", 0, 0))

	if len(got) != 3 {
		t.Fatalf("expected 3 progress calls, got %d", len(got))
	}
	if got[0].Percent != 25 || got[1].Percent != 100 {
		t.Errorf("unexpected percentages %v %v", got[0].Percent, got[1].Percent)
	}
	if got[2].Percent != 100 || got[2].Stage != "index-table" {
		t.Errorf("an empty stage must report completion, got %+v", got[2])
	}
}
