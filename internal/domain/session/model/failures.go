// SPDX-License-Identifier: MIT

package model

import (
	"errors"
	"fmt"
)

// FailureKind tags a pre-classified failure raised by a collaborator.
type FailureKind string

const (
	FailLobbyTimeout    FailureKind = "lobby_timeout"
	FailLobbyDenied     FailureKind = "lobby_denied"
	FailJoinNavigation  FailureKind = "join_navigation"
	FailCaptureStart    FailureKind = "capture_start"
	FailRecordingSink   FailureKind = "recording_sink"
	FailUpload          FailureKind = "upload"
	FailInvalidMeeting  FailureKind = "invalid_meeting"
	FailProviderCrashed FailureKind = "provider_crashed"
)

// KnownFailure is a failure with an explicit retry classification.
// Anything not wrapped in a KnownFailure is treated as retryable with
// the system-default retry ceiling.
type KnownFailure struct {
	Kind       FailureKind
	Message    string
	Retryable  bool
	MaxRetries int
	Cause      error
}

func (f *KnownFailure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *KnownFailure) Unwrap() error { return f.Cause }

// NewKnownFailure wraps cause with an explicit classification.
func NewKnownFailure(kind FailureKind, msg string, retryable bool, maxRetries int, cause error) *KnownFailure {
	return &KnownFailure{Kind: kind, Message: msg, Retryable: retryable, MaxRetries: maxRetries, Cause: cause}
}

// LobbyTimeout reports that the bot waited out the full lobby ceiling
// without being admitted. Never retried: a human already decided.
func LobbyTimeout(msg string) *KnownFailure {
	return &KnownFailure{Kind: FailLobbyTimeout, Message: msg, Retryable: false}
}

// LobbyDenied reports an explicit host-side rejection. Never retried.
func LobbyDenied(msg string) *KnownFailure {
	return &KnownFailure{Kind: FailLobbyDenied, Message: msg, Retryable: false}
}

// AsKnown extracts a KnownFailure from err's chain, if any.
func AsKnown(err error) (*KnownFailure, bool) {
	var kf *KnownFailure
	if errors.As(err, &kf) {
		return kf, true
	}
	return nil, false
}

// IsLobbyFailure reports whether err is a lobby timeout or denial.
func IsLobbyFailure(err error) bool {
	if kf, ok := AsKnown(err); ok {
		return kf.Kind == FailLobbyTimeout || kf.Kind == FailLobbyDenied
	}
	return false
}
