package launch

import (
	"sync"
	"sync/atomic"
)

// Observer receives a snapshot after every state change, in mutation order.
// Implementations must return quickly and must not call back into the controller.
type Observer interface {
	OnSnapshot(Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Snapshot)

func (f ObserverFunc) OnSnapshot(s Snapshot) { f(s) }

// MultiObserver fans a snapshot out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) OnSnapshot(s Snapshot) {
	for _, o := range m {
		if o != nil {
			o.OnSnapshot(s)
		}
	}
}

// ChannelObserver buffers snapshots in a bounded channel. When the reader
// falls behind, the oldest buffered snapshot is dropped so the controller
// never blocks.
type ChannelObserver struct {
	mu      sync.Mutex
	ch      chan Snapshot
	closed  bool
	dropped atomic.Uint64
}

// NewChannelObserver creates an observer buffering up to size snapshots.
func NewChannelObserver(size int) *ChannelObserver {
	if size < 1 {
		size = 1
	}
	return &ChannelObserver{ch: make(chan Snapshot, size)}
}

func (o *ChannelObserver) OnSnapshot(s Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	for {
		select {
		case o.ch <- s:
			return
		default:
		}
		select {
		case <-o.ch:
			o.dropped.Add(1)
		default:
		}
	}
}

// C returns the receive side. It is closed by Close.
func (o *ChannelObserver) C() <-chan Snapshot { return o.ch }

// Dropped returns how many snapshots were discarded for a slow reader.
func (o *ChannelObserver) Dropped() uint64 { return o.dropped.Load() }

// Close stops delivery and closes the channel. Safe to call more than once.
func (o *ChannelObserver) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.ch)
	}
}
