// SPDX-License-Identifier: MIT

package model

// SessionState is the client-visible lifecycle for a recording session.
// Keep these stable: status history + client UX depend on them.
type SessionState string

const (
	StateJoining           SessionState = "joining"
	StateWaitingAdmission  SessionState = "waiting_admission"
	StateRecording         SessionState = "recording"
	StateStopping          SessionState = "stopping"
	StateUploading         SessionState = "uploading"
	StateNotifying         SessionState = "notifying"
	StateCompleted         SessionState = "completed"
	StateFailed            SessionState = "failed"
)

// IsTerminal returns true if the state is a final state.
func (s SessionState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed:
		return true
	}
	return false
}

func (s SessionState) String() string { return string(s) }

// EndCondition is the tagged signal that moves a session out of the
// recording state. Exactly one condition wins per session; later
// conditions are no-ops.
type EndCondition string

const (
	EndDurationExceeded  EndCondition = "duration_exceeded"
	EndInactivityTimeout EndCondition = "inactivity_timeout"
	EndHostEnded         EndCondition = "host_ended_meeting"
	EndLoneParticipant   EndCondition = "lone_participant"
	EndExplicitStop      EndCondition = "explicit_stop"
	EndFatalError        EndCondition = "fatal_error"
)

func (e EndCondition) String() string { return string(e) }

// Fatal reports whether the condition marks the session as failed
// rather than completed.
func (e EndCondition) Fatal() bool {
	return e == EndFatalError
}

// Provider identifies the meeting platform a request targets.
// The core treats all providers identically past registry selection.
type Provider string

const (
	ProviderZoom  Provider = "zoom"
	ProviderMeet  Provider = "meet"
	ProviderTeams Provider = "teams"
)

// Known reports whether p is one of the registered provider names.
func (p Provider) Known() bool {
	switch p {
	case ProviderZoom, ProviderMeet, ProviderTeams:
		return true
	}
	return false
}
