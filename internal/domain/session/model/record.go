// SPDX-License-Identifier: MIT

package model

import "time"

// StatusEntry is one element of a session's append-only status history.
type StatusEntry struct {
	State SessionState `json:"state"`
	At    time.Time    `json:"at"`
	Note  string       `json:"note,omitempty"`
}

// SessionRecord is the source of truth for one session's lifecycle.
// It is owned exclusively by the session runner until it reaches a
// terminal state; the status store only ever sees copies.
type SessionRecord struct {
	CorrelationID string        `json:"correlationId"`
	Request       JoinRequest   `json:"request"`
	State         SessionState  `json:"state"`
	History       []StatusEntry `json:"history"`
	RetryCount    int           `json:"retryCount"`
	StartedAt     time.Time     `json:"startedAt"`
	EndedAt       time.Time     `json:"endedAt,omitempty"`

	// TerminationReason records the end condition or failure class that
	// finished the session. Set exactly once.
	TerminationReason string `json:"terminationReason,omitempty"`
}

// NewRecord creates a session record in the initial joining state.
func NewRecord(correlationID string, req JoinRequest, now time.Time) *SessionRecord {
	r := &SessionRecord{
		CorrelationID: correlationID,
		Request:       req,
		State:         StateJoining,
		StartedAt:     now,
	}
	r.History = append(r.History, StatusEntry{State: StateJoining, At: now})
	return r
}

// Clone returns a deep copy safe to hand to observers.
func (r *SessionRecord) Clone() *SessionRecord {
	cp := *r
	cp.History = make([]StatusEntry, len(r.History))
	copy(cp.History, r.History)
	if r.Request.WebinarRegistration != nil {
		cp.Request.WebinarRegistration = make(map[string]string, len(r.Request.WebinarRegistration))
		for k, v := range r.Request.WebinarRegistration {
			cp.Request.WebinarRegistration[k] = v
		}
	}
	return &cp
}
