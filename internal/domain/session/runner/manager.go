// SPDX-License-Identifier: MIT

package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meetkit/botd/internal/domain/session/model"
)

// ErrBusy is the synchronous rejection for a request arriving while a
// session is in flight. No retry guidance; callers poll or retry later.
var ErrBusy = errors.New("a session is already in flight")

// ErrStoreUnavailable marks a status-store write failure during
// admission. The slot is released; the request itself was fine.
var ErrStoreUnavailable = errors.New("status store unavailable")

// Manager is the single front door for both ingestion paths. It races
// them on the admission gate and owns the background execution of the
// admitted session.
type Manager struct {
	runner *Runner

	rootCtx context.Context
	wg      sync.WaitGroup
}

// NewManager wraps a runner for concurrent ingestion. rootCtx bounds
// every session the manager starts; cancel it to drain on shutdown.
func NewManager(rootCtx context.Context, r *Runner) *Manager {
	return &Manager{runner: r, rootCtx: rootCtx}
}

// TryStart validates the request and races for the admission slot.
// It returns ErrBusy without consuming anything when the slot is held;
// on success the session runs in the background and the correlation ID
// is returned immediately.
func (m *Manager) TryStart(req model.JoinRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("invalid join request: %w", err)
	}

	correlationID := uuid.NewString()
	ok, _ := m.runner.deps.Gate.TryAcquire(correlationID)
	if !ok {
		return "", ErrBusy
	}

	rec := model.NewRecord(correlationID, req, time.Now())
	// Record visible to the status surface before the session makes
	// progress; failure here must release the slot.
	if err := m.runner.deps.Store.Put(m.rootCtx, rec); err != nil {
		m.runner.deps.Gate.Release(correlationID)
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_ = m.runner.Execute(m.rootCtx, rec)
	}()
	return correlationID, nil
}

// Busy reports the admission-gate snapshot for status polling.
func (m *Manager) Busy() bool {
	return m.runner.deps.Gate.Busy()
}

// Holder returns the correlation ID of the in-flight session, or ""
// when the slot is free.
func (m *Manager) Holder() string {
	return m.runner.deps.Gate.Holder()
}

// Wait blocks until all in-flight sessions have finished. Used during
// shutdown after rootCtx is cancelled.
func (m *Manager) Wait() {
	m.wg.Wait()
}
