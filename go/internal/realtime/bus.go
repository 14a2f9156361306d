package realtime

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Bus is an in-process Feed and Publisher. Every subscriber gets its own
// unbounded FIFO queue, so a slow subscriber never blocks a publisher and
// per-row order is the publish order.
type Bus struct {
	mu   sync.Mutex
	seq  int64
	subs map[*subscriber]struct{}
}

type subscriber struct {
	filter Filter
	mu     sync.Mutex
	queue  []Change
	wake   chan struct{}
	out    chan Change
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[*subscriber]struct{})}
}

// Publish stamps a sequence number on changes that have none and queues
// the change on every matching subscriber.
func (b *Bus) Publish(_ context.Context, c Change) error {
	b.mu.Lock()
	if c.Seq == 0 {
		b.seq++
		c.Seq = b.seq
	} else if c.Seq > b.seq {
		b.seq = c.Seq
	}
	targets := make([]*subscriber, 0, len(b.subs))
	for s := range b.subs {
		if s.filter.Match(c) {
			targets = append(targets, s)
		}
	}
	b.mu.Unlock()

	for _, s := range targets {
		s.push(c)
	}
	return nil
}

// Redeliver publishes c again with its original id and sequence.
func (b *Bus) Redeliver(ctx context.Context, c Change) error {
	return b.Publish(ctx, c)
}

// Subscribe registers a subscriber until ctx is done.
func (b *Bus) Subscribe(ctx context.Context, f Filter) (<-chan Change, error) {
	s := &subscriber{
		filter: f,
		wake:   make(chan struct{}, 1),
		out:    make(chan Change),
	}

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		defer func() {
			b.mu.Lock()
			delete(b.subs, s)
			b.mu.Unlock()
			close(s.out)
		}()
		s.run(ctx)
	}()

	log.Debug().
		Str("room_id", f.RoomID.String()).
		Int("tables", len(f.Tables)).
		Msg("bus subscription opened")
	return s.out, nil
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (s *subscriber) push(c Change) {
	s.mu.Lock()
	s.queue = append(s.queue, c)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) run(ctx context.Context) {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			}
		}
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case s.out <- next:
		}
	}
}
