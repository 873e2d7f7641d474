package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/davidmr/geotrack/internal/domain"
)

type recordingAppender struct {
	mu     sync.Mutex
	events []domain.LocationEvent
	fail   bool
}

func (a *recordingAppender) AppendLocation(_ context.Context, ev domain.LocationEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return errors.New("disk full")
	}
	a.events = append(a.events, ev)
	return nil
}

func (a *recordingAppender) all() []domain.LocationEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.LocationEvent, len(a.events))
	copy(out, a.events)
	return out
}

func TestLocationWriter_PreservesOrder(t *testing.T) {
	appender := &recordingAppender{}
	writer := NewLocationWriter(appender, 64)

	for i := 1; i <= 10; i++ {
		writer.Enqueue(domain.LocationEvent{UserID: "u1", Ts: int64(i)})
	}
	writer.Close()

	events := appender.all()
	if len(events) != 10 {
		t.Fatalf("Expected 10 appends, got %d", len(events))
	}
	for i, ev := range events {
		if ev.Ts != int64(i+1) {
			t.Fatalf("Expected ts %d at index %d, got %d", i+1, i, ev.Ts)
		}
	}
}

func TestLocationWriter_AppendFailureIsNonFatal(t *testing.T) {
	appender := &recordingAppender{fail: true}
	writer := NewLocationWriter(appender, 8)

	writer.Enqueue(domain.LocationEvent{UserID: "u1", Ts: 1})

	// The writer must keep running after a failed append
	appender.mu.Lock()
	appender.fail = false
	appender.mu.Unlock()

	writer.Enqueue(domain.LocationEvent{UserID: "u1", Ts: 2})
	writer.Close()

	events := appender.all()
	if len(events) != 1 || events[0].Ts != 2 {
		t.Errorf("Expected only the second event recorded, got %+v", events)
	}
}

func TestLocationWriter_DropsWhenFull(t *testing.T) {
	appender := &recordingAppender{}
	// Buffer of 1 with a blocked consumer: fill it, then overflow
	block := make(chan struct{})
	gate := &gatedAppender{inner: appender, gate: block, entered: make(chan struct{})}
	writer := NewLocationWriter(gate, 1)

	writer.Enqueue(domain.LocationEvent{Ts: 1}) // consumed, blocks in append
	<-gate.entered
	writer.Enqueue(domain.LocationEvent{Ts: 2}) // fills the buffer
	writer.Enqueue(domain.LocationEvent{Ts: 3}) // dropped, must not block

	close(block)
	writer.Close()

	events := appender.all()
	if len(events) != 2 {
		t.Fatalf("Expected 2 events after overflow, got %d", len(events))
	}
	if events[0].Ts != 1 || events[1].Ts != 2 {
		t.Errorf("Unexpected surviving events: %+v", events)
	}
}

func TestLocationWriter_EnqueueAfterClose(t *testing.T) {
	appender := &recordingAppender{}
	writer := NewLocationWriter(appender, 4)
	writer.Close()

	// A straggler connection may still deliver a location during shutdown;
	// the update is dropped, never a crash
	writer.Enqueue(domain.LocationEvent{UserID: "u1", Ts: 1})

	if events := appender.all(); len(events) != 0 {
		t.Errorf("Expected no appends after close, got %+v", events)
	}
}

func TestLocationWriter_CloseIdempotent(t *testing.T) {
	appender := &recordingAppender{}
	writer := NewLocationWriter(appender, 4)

	writer.Enqueue(domain.LocationEvent{UserID: "u1", Ts: 1})
	writer.Close()
	writer.Close()

	if events := appender.all(); len(events) != 1 {
		t.Errorf("Expected the queued event flushed exactly once, got %+v", events)
	}
}

type gatedAppender struct {
	inner   *recordingAppender
	gate    chan struct{}
	once    sync.Once
	entered chan struct{}
}

func (g *gatedAppender) AppendLocation(ctx context.Context, ev domain.LocationEvent) error {
	g.once.Do(func() { close(g.entered) })
	<-g.gate
	return g.inner.AppendLocation(ctx, ev)
}
