package app

import (
	"sync"

	"github.com/anventec/dlpal/internal/domain"
)

// busBuffer bounds the event channel so a slow subscriber cannot stall the
// orchestrator; overflow drops the oldest pending event, never the terminal
// signal.
const busBuffer = 64

// Finished is the terminal signal closing one session's progress stream.
// Err is nil on success and carries the classified failure otherwise.
type Finished struct {
	SessionID string `json:"session_id"`
	Err       error  `json:"-"`
}

// Subscription is one consumer's view of the progress stream: zero or more
// ordered events followed by exactly one terminal signal, after which both
// channels are closed.
type Subscription struct {
	Events <-chan domain.ProgressEvent
	Done   <-chan Finished
}

// ProgressBus carries progress events from the orchestrator to at most one
// subscriber at a time. Publishing without a subscriber is legal and drops
// the event; the terminal signal is likewise dropped, not queued, so a late
// subscriber only ever observes the session it attached during.
type ProgressBus struct {
	mu     sync.Mutex
	events chan domain.ProgressEvent
	done   chan Finished
}

func NewProgressBus() *ProgressBus {
	return &ProgressBus{}
}

// Subscribe attaches the single subscriber, replacing any previous one. The
// previous subscriber's channels are closed so it observes a clean end of
// stream.
func (b *ProgressBus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closeLocked()
	b.events = make(chan domain.ProgressEvent, busBuffer)
	b.done = make(chan Finished, 1)
	return &Subscription{Events: b.events, Done: b.done}
}

// Unsubscribe detaches the current subscriber and closes its channels.
func (b *ProgressBus) Unsubscribe() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()
}

func (b *ProgressBus) closeLocked() {
	if b.events != nil {
		close(b.events)
		b.events = nil
	}
	if b.done != nil {
		close(b.done)
		b.done = nil
	}
}

// Publish delivers one progress event to the subscriber, if any. When the
// buffer is full the oldest pending event is discarded; progress is a
// stream of snapshots, so losing an intermediate one is harmless.
func (b *ProgressBus) Publish(ev domain.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.events == nil {
		return
	}
	select {
	case b.events <- ev:
	default:
		select {
		case <-b.events:
		default:
		}
		b.events <- ev
	}
}

// Finish delivers the terminal signal and closes the stream. Exactly one
// Finish is delivered per session; the subscriber must re-subscribe to
// observe a later session.
func (b *ProgressBus) Finish(sessionID string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done == nil {
		return
	}
	b.done <- Finished{SessionID: sessionID, Err: err}
	b.closeLocked()
}
