package calc

import "sync"

// Bus fans calculation results out to subscribers. Results are delivered
// in publish order by a single dispatcher goroutine, so publishing never
// blocks the coordinator even when a subscriber is slow.
type Bus struct {
	buffer int

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Result
	subs   map[int]*Subscription
	nextID int
	closed bool
}

// Subscription is one subscriber's view of the bus. Receive from C until
// done; Close detaches the subscription without disturbing others.
type Subscription struct {
	// C receives results in publish order. It is never closed while the
	// bus is running; after Close it simply stops receiving.
	C <-chan Result

	id   int
	ch   chan Result
	done chan struct{}
	bus  *Bus
	once sync.Once
}

// Close detaches the subscription. Idempotent.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		s.bus.mu.Unlock()
		close(s.done)
	})
}

func newBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 16
	}
	b := &Bus{
		buffer: buffer,
		subs:   make(map[int]*Subscription),
	}
	b.cond = sync.NewCond(&b.mu)
	go b.dispatch()
	return b
}

// Subscribe registers a new subscriber. Only results published after the
// call are delivered.
func (b *Bus) Subscribe() *Subscription {
	ch := make(chan Result, b.buffer)
	s := &Subscription{
		C:    ch,
		ch:   ch,
		done: make(chan struct{}),
		bus:  b,
	}

	b.mu.Lock()
	s.id = b.nextID
	b.nextID++
	if !b.closed {
		b.subs[s.id] = s
	} else {
		close(ch)
	}
	b.mu.Unlock()
	return s
}

// publish enqueues a result for dispatch. Never blocks; safe to call while
// holding the coordinator lock.
func (b *Bus) publish(r Result) {
	b.mu.Lock()
	if !b.closed {
		b.queue = append(b.queue, r)
		b.cond.Signal()
	}
	b.mu.Unlock()
}

// close stops intake. Already queued results are still delivered, then
// subscriber channels are closed.
func (b *Bus) close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.cond.Signal()
	b.mu.Unlock()
}

func (b *Bus) dispatch() {
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closed {
			b.cond.Wait()
		}
		if len(b.queue) == 0 && b.closed {
			subs := make([]*Subscription, 0, len(b.subs))
			for _, s := range b.subs {
				subs = append(subs, s)
			}
			b.subs = map[int]*Subscription{}
			b.mu.Unlock()
			for _, s := range subs {
				close(s.ch)
			}
			return
		}

		r := b.queue[0]
		b.queue = b.queue[1:]
		subs := make([]*Subscription, 0, len(b.subs))
		for _, s := range b.subs {
			subs = append(subs, s)
		}
		b.mu.Unlock()

		for _, s := range subs {
			select {
			case s.ch <- r:
			case <-s.done:
			}
		}
	}
}
