package storage

import (
	"context"
	"log"
	"sync"

	"github.com/davidmr/geotrack/internal/domain"
)

// LocationAppender is the write side of the position log
type LocationAppender interface {
	AppendLocation(ctx context.Context, ev domain.LocationEvent) error
}

// LocationWriter decouples location persistence from message handling: all
// appends flow through one buffered queue into a single goroutine, so writes
// never block a broadcast and events keep their arrival order. Append
// failures are logged and otherwise dropped.
type LocationWriter struct {
	appender LocationAppender
	events   chan domain.LocationEvent
	quit     chan struct{}
	done     chan struct{}
	closing  sync.Once
}

// NewLocationWriter starts the writer goroutine
func NewLocationWriter(appender LocationAppender, buffer int) *LocationWriter {
	w := &LocationWriter{
		appender: appender,
		events:   make(chan domain.LocationEvent, buffer),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.run()
	return w
}

// Enqueue submits an event for persistence without blocking. Events arriving
// while the queue is full, or after Close, are dropped and the drop is
// logged. The events channel is never closed, so a straggler connection
// enqueueing during shutdown loses its update instead of panicking.
func (w *LocationWriter) Enqueue(ev domain.LocationEvent) {
	select {
	case <-w.quit:
		log.Printf("location writer closed, dropping update from user %s", ev.UserID)
		return
	default:
	}
	select {
	case w.events <- ev:
	default:
		log.Printf("location queue full, dropping update from user %s", ev.UserID)
	}
}

// Close drains pending events and stops the writer. Safe to call more than
// once, and Enqueue after Close is a logged no-op.
func (w *LocationWriter) Close() {
	w.closing.Do(func() { close(w.quit) })
	<-w.done
}

func (w *LocationWriter) run() {
	defer close(w.done)
	for {
		select {
		case ev := <-w.events:
			w.append(ev)
		case <-w.quit:
			// Flush whatever was queued before the close signal
			for {
				select {
				case ev := <-w.events:
					w.append(ev)
				default:
					return
				}
			}
		}
	}
}

func (w *LocationWriter) append(ev domain.LocationEvent) {
	if err := w.appender.AppendLocation(context.Background(), ev); err != nil {
		log.Printf("location append failed for user %s: %v", ev.UserID, err)
	}
}
