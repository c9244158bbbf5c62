package worker

// Notifier is the wake signal between request handlers and the delivery
// worker. The channel holds one pending signal; extra Notify calls while one
// is queued coalesce, which is fine because the worker drains the whole due
// set on every pass.
type Notifier struct {
	ch chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

// Notify wakes the worker without blocking the caller.
func (n *Notifier) Notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// Wait returns the channel the worker selects on while idle.
func (n *Notifier) Wait() <-chan struct{} {
	return n.ch
}
