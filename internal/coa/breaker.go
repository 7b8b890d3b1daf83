package coa

import (
	"sync"
	"time"
)

// BreakerState is the health of one gateway as seen by the notifier.
type BreakerState int

const (
	Closed BreakerState = iota
	Open
	HalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker counts consecutive gateway faults. NAKs are answers from a healthy
// gateway and are recorded as healthy.
type Breaker struct {
	mu        sync.Mutex
	state     BreakerState
	faults    int
	threshold int
	cooldown  time.Duration
	reopenAt  time.Time
	trial     bool
	now       func() time.Time
}

func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow reports whether a request may be sent now. After the cooldown it
// admits exactly one trial request until that request is recorded.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open && !b.now().Before(b.reopenAt) {
		b.state = HalfOpen
	}
	switch b.state {
	case Closed:
		return true
	case HalfOpen:
		if b.trial {
			return false
		}
		b.trial = true
		return true
	}
	return false
}

// Record closes the breaker on a healthy answer and counts a fault otherwise.
// A failed trial reopens it immediately.
func (b *Breaker) Record(healthy bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.trial = false
	if healthy {
		b.state = Closed
		b.faults = 0
		return
	}

	b.faults++
	if b.state == HalfOpen || b.faults >= b.threshold {
		b.state = Open
		b.reopenAt = b.now().Add(b.cooldown)
	}
}

// Abandon gives back a trial whose request never reached the gateway.
func (b *Breaker) Abandon() {
	b.mu.Lock()
	b.trial = false
	b.mu.Unlock()
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
