package viewer

import (
	"sync"

	"remoteplay/native/internal/domain"
)

// emitter delivers events and user callbacks in order on its own
// goroutine, so the session loop never blocks on a slow consumer.
type emitter struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	out    chan domain.Event
}

func newEmitter() *emitter {
	e := &emitter{out: make(chan domain.Event, 16)}
	e.cond = sync.NewCond(&e.mu)
	go e.run()
	return e
}

// emit queues ev. A final event closes the stream after it is delivered.
func (e *emitter) emit(ev domain.Event) {
	e.enqueue(func() { e.out <- ev }, ev.Final())
}

// invoke runs fn on the emitter goroutine, ordered with events.
func (e *emitter) invoke(fn func()) {
	if fn == nil {
		return
	}
	e.enqueue(fn, false)
}

func (e *emitter) enqueue(fn func(), last bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.queue = append(e.queue, fn)
	if last {
		e.closed = true
	}
	e.cond.Signal()
}

func (e *emitter) run() {
	defer close(e.out)
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.queue) == 0 {
			e.mu.Unlock()
			return
		}
		fn := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.mu.Unlock()

		fn()
	}
}
