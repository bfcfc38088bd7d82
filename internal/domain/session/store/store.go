// SPDX-License-Identifier: MIT

// Package store persists session records for the external status
// surface. The runner is the only writer; the API reads snapshots.
package store

import (
	"context"
	"errors"

	"github.com/meetkit/botd/internal/domain/session/model"
)

// ErrNotFound is returned when no record exists for a correlation ID.
var ErrNotFound = errors.New("session not found")

// StatusStore receives a session's append-only status history.
type StatusStore interface {
	// Put upserts the full record snapshot.
	Put(ctx context.Context, rec *model.SessionRecord) error
	// Get fetches a record by correlation ID.
	Get(ctx context.Context, correlationID string) (*model.SessionRecord, error)
	// List returns all known records, newest first.
	List(ctx context.Context) ([]*model.SessionRecord, error)
	Close() error
}
