package alerts

import "sync"

type pendingAlert struct {
	eventID string
	msg     Message
}

// outbox is an unbounded FIFO between evaluation and delivery.
type outbox struct {
	mu      sync.Mutex
	pending []pendingAlert
	closed  bool
	signal  chan struct{}
}

func newOutbox() *outbox {
	return &outbox{signal: make(chan struct{}, 1)}
}

func (o *outbox) push(alert pendingAlert) {
	o.mu.Lock()
	o.pending = append(o.pending, alert)
	o.mu.Unlock()
	o.wake()
}

func (o *outbox) close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.wake()
}

// take hands over everything queued so far.
func (o *outbox) take() ([]pendingAlert, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	batch := o.pending
	o.pending = nil
	return batch, o.closed
}

func (o *outbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

func (o *outbox) wake() {
	select {
	case o.signal <- struct{}{}:
	default:
	}
}
