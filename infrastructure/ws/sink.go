package ws

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"careerlink/domain/event"
)

// Sink is the connection-bound event sink handed to the presence registry.
// Consume parks events on a buffered channel; a single write pump goroutine
// (started by the gateway) drains the channel onto the socket, so all
// outbound traffic for one connection is serialized through one writer no
// matter how many goroutines push concurrently.
type Sink struct {
	log     *slog.Logger
	events  chan event.DomainEvent
	done    chan struct{}
	once    sync.Once
	timeout time.Duration
}

func NewSink(log *slog.Logger, bufferSize int, timeout time.Duration) *Sink {
	return &Sink{
		log:     log,
		events:  make(chan event.DomainEvent, bufferSize),
		done:    make(chan struct{}),
		timeout: timeout,
	}
}

// Consume queues one event for the write pump. It fails when the connection
// is closed, the caller's context ends, or the buffer stays full past the
// timeout; a slow consumer must not stall other users' dispatchers.
func (s *Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case <-s.done:
		return fmt.Errorf("connection closed")
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("outbound buffer full after %s", s.timeout)
	case s.events <- e:
		return nil
	}
}

// Events exposes the outbound channel to the write pump.
func (s *Sink) Events() <-chan event.DomainEvent {
	return s.events
}

// Done is closed once the sink is retired.
func (s *Sink) Done() <-chan struct{} {
	return s.done
}

// Close retires the sink. Safe to call twice: the registry closes a
// replaced sink while the gateway closes it again on socket teardown.
func (s *Sink) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}
