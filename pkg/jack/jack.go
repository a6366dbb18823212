// Package jack holds the plumbing shared by transport jacks: the dispatch
// surface they deliver into and the idempotent receive-loop lifecycle.
// Concrete jacks live in the subpackages udp, tcp and mem.
package jack

import "sync"

// Receiver is the switch-side entry point a jack feeds inbound frames to.
// Implemented by *router.Router.
type Receiver interface {
	Receive(raw []byte)
}

// Loop owns one background receive goroutine with idempotent start/stop.
// The zero value is ready to use.
type Loop struct {
	mu      sync.Mutex
	stopCh  chan struct{}
	running bool
}

// Start launches fn in a goroutine unless the loop is already running.
// fn should return promptly once stop is closed. Reports whether a new
// goroutine was started.
func (l *Loop) Start(fn func(stop <-chan struct{})) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return false
	}
	stop := make(chan struct{})
	l.stopCh = stop
	l.running = true
	go func() {
		fn(stop)
		l.mu.Lock()
		if l.stopCh == stop {
			l.running = false
		}
		l.mu.Unlock()
	}()
	return true
}

// Stop signals the loop goroutine. Safe to call repeatedly and when the
// loop was never started. Reports whether a running loop was signalled.
func (l *Loop) Stop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return false
	}
	close(l.stopCh)
	l.running = false
	return true
}

// Running reports whether the loop goroutine is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}
