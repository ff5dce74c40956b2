package tasks

import "sync"

// Subscription delivers [Completion] events in order. Events queue without bound until read, so the
// orchestrator never waits on a subscriber.
type Subscription struct {
	o      *Orchestrator
	ch     chan Completion
	signal chan struct{}
	done   chan struct{}
	once   sync.Once

	mu    sync.Mutex
	queue []Completion
}

func newSubscription(o *Orchestrator) *Subscription {
	s := &Subscription{
		o:      o,
		ch:     make(chan Completion),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go s.pump()
	return s
}

// C returns the completion channel. It is closed after Unsubscribe or when the orchestrator closes.
func (s *Subscription) C() <-chan Completion {
	return s.ch
}

// Unsubscribe stops delivery. Queued events are discarded.
func (s *Subscription) Unsubscribe() {
	_ = s.o.do(func() { delete(s.o.subs, s) })
	s.stop()
}

func (s *Subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *Subscription) push(c Completion) {
	s.mu.Lock()
	s.queue = append(s.queue, c)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.ch)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.signal:
				continue
			case <-s.done:
				return
			}
		}
		next := s.queue[0]
		s.mu.Unlock()

		select {
		case s.ch <- next:
			s.mu.Lock()
			s.queue = s.queue[1:]
			s.mu.Unlock()
		case <-s.done:
			return
		}
	}
}
