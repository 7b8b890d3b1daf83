// Package coa sends change-of-authorization and disconnect requests so that
// live sessions pick up new RADIUS state without reconnecting.
package coa

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/jmehdipour/isp-billing/internal/metrics"
)

// ErrNoHealthy means every endpoint's breaker refused the request.
var ErrNoHealthy = errors.New("no healthy coa endpoints")

// Notifier spreads requests round-robin over the gateways whose breakers
// admit them. Gateway faults move the request to the next gateway; a NAK ends
// it, since every gateway fronts the same NAS fleet.
type Notifier struct {
	endpoints   []Endpoint
	next        atomic.Uint64
	maxAttempts int
}

func NewNotifier(endpoints []Endpoint, maxAttempts int) *Notifier {
	if maxAttempts < 1 {
		maxAttempts = 2
	}
	return &Notifier{endpoints: endpoints, maxAttempts: maxAttempts}
}

// Enabled reports whether any endpoint is configured.
func (n *Notifier) Enabled() bool { return n != nil && len(n.endpoints) > 0 }

// pick returns the first admitting endpoint at or after the round-robin cursor.
func (n *Notifier) pick() (Endpoint, error) {
	if len(n.endpoints) == 0 {
		return nil, ErrNoHealthy
	}
	start := int((n.next.Add(1) - 1) % uint64(len(n.endpoints)))
	for i := range n.endpoints {
		ep := n.endpoints[(start+i)%len(n.endpoints)]
		if ep.Allow() {
			return ep, nil
		}
	}
	return nil, ErrNoHealthy
}

// Notify delivers req, trying up to maxAttempts gateways. It returns nil on
// ACK and a *NakError on NAK.
func (n *Notifier) Notify(ctx context.Context, req Request) error {
	if req.Action == "" {
		req.Action = ActionUpdate
	}

	var last error
	for i := 0; i < n.maxAttempts; i++ {
		ep, err := n.pick()
		if err != nil {
			last = err
			break
		}

		err = ep.Send(ctx, req)
		if err == nil {
			metrics.CoANotifications.WithLabelValues("ack").Inc()
			return nil
		}
		if errors.Is(err, ErrNak) {
			metrics.CoANotifications.WithLabelValues("nak").Inc()
			return err
		}
		last = err
		if ctx.Err() != nil {
			break
		}
	}

	metrics.CoANotifications.WithLabelValues("failed").Inc()
	return last
}
