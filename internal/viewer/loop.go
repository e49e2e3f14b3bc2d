package viewer

import "sync"

// loop runs every state mutation of a session on one goroutine.
type loop struct {
	tasks chan func()
	quit  chan struct{}
	done  chan struct{}

	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
}

func newLoop() *loop {
	l := &loop{
		tasks: make(chan func(), 64),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *loop) run() {
	defer close(l.done)
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-l.quit:
			l.drain()
			return
		}
	}
}

// drain runs tasks accepted before stop so that results carrying
// resources still reach their handlers.
func (l *loop) drain() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	for {
		select {
		case fn := <-l.tasks:
			fn()
		default:
			return
		}
	}
}

// post queues fn without waiting for it. It reports false once the loop is
// stopping. Must not be called from the loop goroutine.
func (l *loop) post(fn func()) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return false
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// call runs fn on the loop and waits for it. It returns false if the loop
// stopped before fn ran.
func (l *loop) call(fn func()) bool {
	finished := make(chan struct{})
	if !l.post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.done:
		select {
		case <-finished:
			return true
		default:
			return false
		}
	}
}

// stop makes the loop exit once the current task returns. Tasks already
// queued still run.
func (l *loop) stop() {
	l.stopOnce.Do(func() { close(l.quit) })
}
