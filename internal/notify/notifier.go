// Package notify delivers security events to external channels. Delivery is
// best-effort and fully decoupled from the decision path: a slow or failing
// channel can never change an authentication or gateway outcome.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventType identifies what happened.
type EventType string

const (
	// EventAccountBlocked fires on the transition into the blocked state.
	EventAccountBlocked EventType = "account_blocked"
	// EventBlockedAttempt fires on every denied attempt against an
	// already-blocked identity.
	EventBlockedAttempt EventType = "login_blocked_attempt"
)

// Event is a notification payload.
type Event struct {
	Type          EventType  `json:"type"`
	Email         string     `json:"email"`
	IPAddress     string     `json:"ip"`
	BlockedUntil  *time.Time `json:"blocked_until,omitempty"`
	Reason        string     `json:"reason"`
	TriggeredBy   string     `json:"triggered_by,omitempty"`
	UserAgent     string     `json:"user_agent,omitempty"`
	// Policy values captured at block time, so the notification reflects the
	// policy that actually triggered it even if an admin changes it later.
	MaxAttempts   int           `json:"max_attempts,omitempty"`
	BlockDuration time.Duration `json:"block_duration,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Notifier sends a single event to an external channel.
type Notifier interface {
	Send(ctx context.Context, event Event) error
	Name() string
}

// Dispatcher fans events out to its notifiers from a background worker.
// Emit never blocks: when the buffer is full the event is dropped and
// counted. Close drains whatever is buffered before returning.
type Dispatcher struct {
	notifiers []Notifier
	logger    *slog.Logger
	timeout   time.Duration

	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	mu      sync.Mutex
	dropped uint64
}

// NewDispatcher starts a dispatcher with the given buffer size and per-send
// timeout. A nil or empty notifier list is valid; events are then discarded.
func NewDispatcher(logger *slog.Logger, timeout time.Duration, bufferSize int, notifiers ...Notifier) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}

	d := &Dispatcher{
		notifiers: notifiers,
		logger:    logger,
		timeout:   timeout,
		ch:        make(chan Event, bufferSize),
		done:      make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	for _, n := range d.notifiers {
		if err := n.Send(ctx, event); err != nil {
			d.logger.Error("notification failed",
				slog.String("provider", n.Name()),
				slog.String("event_type", string(event.Type)),
				slog.Any("error", err))
		}
	}
}

// Emit queues an event for delivery. Never blocks.
func (d *Dispatcher) Emit(event Event) {
	if d == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case d.ch <- event:
	case <-d.done:
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
		d.logger.Warn("notification dropped, buffer full",
			slog.String("event_type", string(event.Type)))
	}
}

// Dropped reports how many events were discarded due to a full buffer.
func (d *Dispatcher) Dropped() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Close drains the buffer and stops the worker.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.done)
		d.wg.Wait()
	})
}
