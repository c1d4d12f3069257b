package player

import "sync"

// SignalHub delivers resource signals to subscribers on its own goroutine, in
// emission order. Resources emit through it so that subscribers never run
// while the resource holds its own lock.
type SignalHub struct {
	queue chan Signal
	stop  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup

	mu     sync.RWMutex
	subs   map[int]func(Signal)
	nextID int
}

// NewSignalHub starts a hub with the given queue capacity.
func NewSignalHub(capacity int) *SignalHub {
	if capacity <= 0 {
		capacity = 64
	}
	h := &SignalHub{
		queue: make(chan Signal, capacity),
		stop:  make(chan struct{}),
		subs:  make(map[int]func(Signal)),
	}

	h.wg.Add(1)
	go h.run()
	return h
}

func (h *SignalHub) run() {
	defer h.wg.Done()
	for {
		select {
		case <-h.stop:
			return
		case sig := <-h.queue:
			h.mu.RLock()
			fns := make([]func(Signal), 0, len(h.subs))
			for _, fn := range h.subs {
				fns = append(fns, fn)
			}
			h.mu.RUnlock()

			for _, fn := range fns {
				fn(sig)
			}
		}
	}
}

// Subscribe registers fn and returns its unsubscribe function.
func (h *SignalHub) Subscribe(fn func(Signal)) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// Emit queues signals for delivery. Signals emitted after Close are dropped.
func (h *SignalHub) Emit(signals ...Signal) {
	for _, sig := range signals {
		select {
		case h.queue <- sig:
		case <-h.stop:
			return
		}
	}
}

// Close stops delivery and waits for the dispatcher to exit.
func (h *SignalHub) Close() {
	h.once.Do(func() { close(h.stop) })
	h.wg.Wait()
}
