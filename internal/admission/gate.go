// SPDX-License-Identifier: MIT

// Package admission provides the process-wide single-slot gate that
// limits the fleet member to one in-flight recording session.
package admission

import (
	"sync"

	"github.com/meetkit/botd/internal/metrics"
)

// Reason provides the admission failure taxonomy for metrics/headers.
// All values are lowercase for stable PromQL queries.
type Reason string

const (
	ReasonAdmitted Reason = "admitted"
	ReasonBusy     Reason = "busy"
)

// Gate is a single-slot mutual-exclusion primitive. At most one
// non-empty holder exists at any instant; acquiring while held fails
// immediately, and release is idempotent and keyed by correlation ID
// so a stale release can never free a slot held by a newer session.
type Gate struct {
	mu     sync.Mutex
	holder string
}

// NewGate returns an empty gate. Tests inject a fresh gate per scenario.
func NewGate() *Gate {
	return &Gate{}
}

// TryAcquire claims the slot for correlationID. Exactly one concurrent
// caller succeeds when the slot is empty; everyone else observes busy.
func (g *Gate) TryAcquire(correlationID string) (bool, Reason) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.holder != "" {
		return false, ReasonBusy
	}
	g.holder = correlationID
	metrics.SetSessionInFlight(true)
	return true, ReasonAdmitted
}

// Release frees the slot if correlationID still holds it. Safe to call
// from every exit path, any number of times.
func (g *Gate) Release(correlationID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.holder != correlationID {
		return
	}
	g.holder = ""
	metrics.SetSessionInFlight(false)
}

// Busy reports whether a session is in flight.
func (g *Gate) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holder != ""
}

// Holder returns the correlation ID of the in-flight session, or "".
func (g *Gate) Holder() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holder
}
