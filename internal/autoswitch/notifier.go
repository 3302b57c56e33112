package autoswitch

import "sync"

// notifier runs observer callbacks in order on its own goroutine, so an
// observer may call back into the Controller without deadlocking the loop.
type notifier struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newNotifier() *notifier {
	n := &notifier{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *notifier) push(fn func()) {
	n.mu.Lock()
	n.queue = append(n.queue, fn)
	n.mu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *notifier) take() []func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	q := n.queue
	n.queue = nil
	return q
}

func (n *notifier) run() {
	defer close(n.done)
	for {
		q := n.take()
		for _, fn := range q {
			fn()
		}
		if len(q) > 0 {
			continue
		}
		select {
		case <-n.wake:
		case <-n.quit:
			for _, fn := range n.take() {
				fn()
			}
			return
		}
	}
}

// close delivers everything queued and stops the goroutine.
func (n *notifier) close() {
	n.once.Do(func() { close(n.quit) })
	<-n.done
}
