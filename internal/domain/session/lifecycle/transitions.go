// SPDX-License-Identifier: MIT

// Package lifecycle defines the legal state graph for a session and the
// retry decision policy applied around the join phase.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/meetkit/botd/internal/domain/session/model"
)

// transitions is the closed set of legal edges. Failed is reachable
// from every non-terminal state and is handled in CanTransition.
var transitions = map[model.SessionState][]model.SessionState{
	model.StateJoining:          {model.StateWaitingAdmission, model.StateRecording},
	model.StateWaitingAdmission: {model.StateRecording},
	model.StateRecording:        {model.StateStopping},
	model.StateStopping:         {model.StateUploading},
	model.StateUploading:        {model.StateNotifying},
	model.StateNotifying:        {model.StateCompleted},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to model.SessionState) bool {
	if from.IsTerminal() {
		return false
	}
	if to == model.StateFailed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Advance moves the record to the target state and appends a history
// entry. The history is append-only; illegal edges are errors so a bug
// in the runner surfaces instead of corrupting the audit trail.
func Advance(r *model.SessionRecord, to model.SessionState, note string, now time.Time) error {
	if !CanTransition(r.State, to) {
		return fmt.Errorf("illegal transition: %s -> %s", r.State, to)
	}
	r.State = to
	r.History = append(r.History, model.StatusEntry{State: to, At: now, Note: note})
	if to.IsTerminal() {
		r.EndedAt = now
	}
	return nil
}

// Terminalize forces the record into the failed state from wherever it
// is, recording the triggering error. Safe to call on an already
// terminal record (no-op), so racing cleanup paths cannot double-fail.
func Terminalize(r *model.SessionRecord, reason string, now time.Time) {
	if r.State.IsTerminal() {
		return
	}
	r.State = model.StateFailed
	r.TerminationReason = reason
	r.History = append(r.History, model.StatusEntry{State: model.StateFailed, At: now, Note: reason})
	r.EndedAt = now
}
