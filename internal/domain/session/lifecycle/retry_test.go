// SPDX-License-Identifier: MIT

package lifecycle_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/meetkit/botd/internal/domain/session/lifecycle"
	"github.com/meetkit/botd/internal/domain/session/model"
)

func TestPolicy_LobbyFailuresNeverRetry(t *testing.T) {
	p := lifecycle.NewPolicy(3)

	for _, err := range []error{
		model.LobbyTimeout("waited out the ceiling"),
		model.LobbyDenied("host said no"),
	} {
		d := p.Decide(err, 0)
		assert.False(t, d.Retry, "lobby failure must be terminal: %v", err)
	}
}

func TestPolicy_LinearBackoffSequence(t *testing.T) {
	p := lifecycle.NewPolicy(3)
	err := errors.New("transient join flake")

	d := p.Decide(err, 0)
	assert.True(t, d.Retry)
	assert.Equal(t, 30*time.Second, d.Delay)

	d = p.Decide(err, 1)
	assert.True(t, d.Retry)
	assert.Equal(t, 60*time.Second, d.Delay)

	d = p.Decide(err, 2)
	assert.True(t, d.Retry)
	assert.Equal(t, 90*time.Second, d.Delay)

	d = p.Decide(err, 3)
	assert.False(t, d.Retry, "default ceiling must stop the fourth attempt")
}

func TestPolicy_KnownFailureClassification(t *testing.T) {
	p := lifecycle.NewPolicy(5)

	tests := []struct {
		name      string
		err       error
		retries   int
		wantRetry bool
		wantDelay time.Duration
	}{
		{
			name:      "non-retryable known failure",
			err:       model.NewKnownFailure(model.FailInvalidMeeting, "404 meeting", false, 0, nil),
			retries:   0,
			wantRetry: false,
		},
		{
			name:      "retryable under its own ceiling",
			err:       model.NewKnownFailure(model.FailJoinNavigation, "page flake", true, 2, nil),
			retries:   0,
			wantRetry: true,
			wantDelay: 30 * time.Second,
		},
		{
			name:      "retryable at its own ceiling",
			err:       model.NewKnownFailure(model.FailJoinNavigation, "page flake", true, 2, nil),
			retries:   2,
			wantRetry: false,
		},
		{
			name:      "known ceiling wins over default ceiling",
			err:       model.NewKnownFailure(model.FailCaptureStart, "encoder busy", true, 1, nil),
			retries:   1,
			wantRetry: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Decide(tt.err, tt.retries)
			assert.Equal(t, tt.wantRetry, d.Retry)
			if tt.wantRetry {
				assert.Equal(t, tt.wantDelay, d.Delay)
			}
		})
	}
}

func TestPolicy_WrappedKnownFailure(t *testing.T) {
	p := lifecycle.NewPolicy(3)
	wrapped := errors.Join(errors.New("outer"), model.LobbyDenied("no"))

	d := p.Decide(wrapped, 0)
	assert.False(t, d.Retry, "classification must see through wrapping")
}

func TestPolicy_NilError(t *testing.T) {
	p := lifecycle.NewPolicy(3)
	assert.False(t, p.Decide(nil, 0).Retry)
}
