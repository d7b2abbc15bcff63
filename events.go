package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EventKind identifies one kind of session event.
type EventKind uint8

const (
	EventInit EventKind = 1 << iota
	EventOutput
	EventResize
	EventSnapshot
)

// EventMask is the set of event kinds a subscriber wants.
type EventMask uint8

// MaskAll covers every published event kind.
const MaskAll = EventMask(EventInit | EventOutput | EventResize | EventSnapshot)

// Queue capacities per subscriber type. JSON clients get a small queue
// and are expected to keep up; the binary live stream buffers more.
const (
	jsonQueueSize = 64
	alisQueueSize = 256
)

// ParseEventMask parses a separated list of event names ("init",
// "output", "resize", "snapshot") into a mask.
func ParseEventMask(list, sep string) (EventMask, error) {
	var mask EventMask
	for _, name := range strings.Split(list, sep) {
		switch strings.TrimSpace(name) {
		case "":
		case "init":
			mask |= EventMask(EventInit)
		case "output":
			mask |= EventMask(EventOutput)
		case "resize":
			mask |= EventMask(EventResize)
		case "snapshot":
			mask |= EventMask(EventSnapshot)
		default:
			return 0, fmt.Errorf("unknown event name %q", name)
		}
	}
	return mask, nil
}

// Event is one session event. Which fields are meaningful depends on Kind:
// Init carries dimensions and the child pid, Output carries raw PTY bytes,
// Resize carries dimensions, Snapshot carries the rendered screen.
type Event struct {
	Kind EventKind
	Seq  uint64

	Cols int
	Rows int
	Pid  int

	Data []byte

	Text          string
	CursorCol     int
	CursorRow     int
	CursorVisible bool
}

// Subscriber is one consumer of the event bus. Events arrive on C in
// publish order with strictly increasing Seq. When the subscriber lags
// behind its queue capacity the bus closes C and forgets it.
type Subscriber struct {
	ID   string
	Mask EventMask
	C    chan Event
}

// Bus is a single-publisher, many-subscriber broadcast channel. The event
// loop is the sole publisher; subscriber sinks only receive. Publishing
// never blocks: a subscriber whose queue is full is dropped.
type Bus struct {
	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	seq    uint64
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscriber]struct{})}
}

// Add registers a new subscriber with the given mask and queue capacity.
// The caller is responsible for delivering the initial Init event via
// SendTo before any broadcast reaches the subscriber.
func (b *Bus) Add(mask EventMask, capacity int) *Subscriber {
	sub := &Subscriber{
		ID:   uuid.NewString(),
		Mask: mask,
		C:    make(chan Event, capacity),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.C)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Remove detaches a subscriber, closing its channel. Safe to call for a
// subscriber the bus already dropped.
func (b *Bus) Remove(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.C)
	}
}

// SendTo delivers an event to a single subscriber, stamping the next
// sequence number. Used for the synthesized Init a new subscriber sees
// before joining the broadcast stream.
func (b *Bus) SendTo(sub *Subscriber, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	b.seq++
	ev.Seq = b.seq
	select {
	case sub.C <- ev:
	default:
		delete(b.subs, sub)
		close(sub.C)
	}
}

// Publish broadcasts an event to every subscriber whose mask includes its
// kind. A subscriber with a full queue is dropped rather than blocking the
// publisher.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.seq++
	ev.Seq = b.seq

	for sub := range b.subs {
		if sub.Mask&EventMask(ev.Kind) == 0 {
			continue
		}
		select {
		case sub.C <- ev:
		default:
			log.Warn().Str("subscriber", sub.ID).Msg("subscriber lagged, dropping")
			delete(b.subs, sub)
			close(sub.C)
		}
	}
}

// Close drops every subscriber and rejects further publishes. Subscriber
// sinks observe their channel closing and shut their clients down.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.C)
	}
}
