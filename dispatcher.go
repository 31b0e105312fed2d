package graphitesend

import (
	"sync"

	"github.com/hnakamur/ltsvlog"
)

// DispatchedAck is returned by sends handed to a concurrent dispatcher.
const DispatchedAck = "dispatched"

type dispatcher interface {
	dispatch(write func() (string, error)) (string, error)
	wait()
}

func newDispatcher(mode string, onError func(error)) dispatcher {
	switch mode {
	case DispatchBlocking:
		return blockingDispatcher{}
	case DispatchConcurrent:
		return newConcurrentDispatcher(onError)
	default:
		panic("should not happen")
	}
}

type blockingDispatcher struct{}

func (blockingDispatcher) dispatch(write func() (string, error)) (string, error) {
	return write()
}

func (blockingDispatcher) wait() {}

// concurrentDispatcher runs every write on its own goroutine. Writes
// are serialized by the client, but their order is unspecified.
// dispatch and wait may be called concurrently; wait returns once no
// write is pending.
type concurrentDispatcher struct {
	mu      sync.Mutex
	idle    *sync.Cond
	pending int
	onError func(error)
}

func newConcurrentDispatcher(onError func(error)) *concurrentDispatcher {
	d := &concurrentDispatcher{onError: onError}
	d.idle = sync.NewCond(&d.mu)
	return d
}

func (d *concurrentDispatcher) dispatch(write func() (string, error)) (string, error) {
	d.mu.Lock()
	d.pending++
	d.mu.Unlock()
	go func() {
		defer d.done()
		if _, err := write(); err != nil {
			ltsvlog.Logger.Err(err)
			if d.onError != nil {
				d.onError(err)
			}
		}
	}()
	return DispatchedAck, nil
}

func (d *concurrentDispatcher) done() {
	d.mu.Lock()
	d.pending--
	if d.pending == 0 {
		d.idle.Broadcast()
	}
	d.mu.Unlock()
}

func (d *concurrentDispatcher) wait() {
	d.mu.Lock()
	for d.pending > 0 {
		d.idle.Wait()
	}
	d.mu.Unlock()
}
